package wire

import "corevo/go-backend/pkg/models"

type MessageKind uint8

const (
	KindAnnounceOwnPubKey MessageKind = iota
	KindInviteVoter
	KindCommit
	KindRevealOneTimeSalt
)

func (k MessageKind) String() string {
	switch k {
	case KindAnnounceOwnPubKey:
		return "announce_own_pubkey"
	case KindInviteVoter:
		return "invite_voter"
	case KindCommit:
		return "commit"
	case KindRevealOneTimeSalt:
		return "reveal_one_time_salt"
	default:
		return "unknown"
	}
}

// Message is one of AnnounceOwnPubKey, InviteVoter, Commit or RevealOneTimeSalt.
// The kind doubles as the wire discriminant.
type Message interface {
	Kind() MessageKind
}

// AnnounceOwnPubKey publishes the sender's X25519 key so others can encrypt to it.
type AnnounceOwnPubKey struct {
	PubKey models.EncryptionPublicKey
}

// InviteVoter is sent by a context proposer and carries the common salt sealed to Voter.
type InviteVoter struct {
	Voter               models.AccountID
	EncryptedCommonSalt []byte
}

// Commit publishes the salted commitment and a VoteAndSalt sealed to the sender itself.
type Commit struct {
	Commitment           models.Commitment
	EncryptedVoteAndSalt []byte
}

// RevealOneTimeSalt discloses the one-time salt behind an earlier Commit.
type RevealOneTimeSalt struct {
	OneTimeSalt models.Salt
}

func (AnnounceOwnPubKey) Kind() MessageKind { return KindAnnounceOwnPubKey }
func (InviteVoter) Kind() MessageKind       { return KindInviteVoter }
func (Commit) Kind() MessageKind            { return KindCommit }
func (RevealOneTimeSalt) Kind() MessageKind { return KindRevealOneTimeSalt }

// Envelope is the V1 remark body: a voting context plus one message.
type Envelope struct {
	Context models.VotingContext
	Message Message
}
