package indexer

import (
	"encoding/json"
	"fmt"

	"corevo/go-backend/internal/crypto"
	"corevo/go-backend/pkg/models"
)

// Reasons carried by VoteStatus when a reveal could not produce a vote.
const (
	ReasonPendingBruteForce = "pending brute-force"
	ReasonNoSecretMatched   = "no secret matched commitment"
	ReasonVoteUndisclosed   = "commitment verified, vote undisclosed"
)

type VoteState uint8

const (
	StateUncast VoteState = iota
	StateCommitted
	StateRevealed
	StateRevealedWithoutCommitment
)

func (s VoteState) String() string {
	switch s {
	case StateUncast:
		return "uncast"
	case StateCommitted:
		return "committed"
	case StateRevealed:
		return "revealed"
	case StateRevealedWithoutCommitment:
		return "revealed_without_commitment"
	default:
		return "unknown"
	}
}

// VoteStatus is one voter's standing in a context.
// For StateRevealed exactly one of Vote and Reason is set.
type VoteStatus struct {
	State      VoteState
	Commitment models.Commitment
	Vote       *models.Vote
	Reason     string
}

func Uncast() VoteStatus { return VoteStatus{State: StateUncast} }

func Committed(c models.Commitment) VoteStatus {
	return VoteStatus{State: StateCommitted, Commitment: c}
}

func RevealedOK(v models.Vote) VoteStatus {
	return VoteStatus{State: StateRevealed, Vote: &v}
}

func RevealedErr(reason string) VoteStatus {
	return VoteStatus{State: StateRevealed, Reason: reason}
}

func RevealedWithoutCommitment() VoteStatus {
	return VoteStatus{State: StateRevealedWithoutCommitment}
}

// IsRevealed covers both Revealed outcomes.
func (s VoteStatus) IsRevealed() bool { return s.State == StateRevealed }

func (s VoteStatus) String() string {
	switch s.State {
	case StateCommitted:
		return fmt.Sprintf("committed(%s)", s.Commitment.Hex())
	case StateRevealed:
		if s.Vote != nil {
			return fmt.Sprintf("revealed(%s)", s.Vote)
		}
		return fmt.Sprintf("revealed(error: %s)", s.Reason)
	default:
		return s.State.String()
	}
}

func (s VoteStatus) MarshalJSON() ([]byte, error) {
	out := struct {
		State      string             `json:"state"`
		Commitment *models.Commitment `json:"commitment,omitempty"`
		Vote       *models.Vote       `json:"vote,omitempty"`
		Reason     string             `json:"reason,omitempty"`
	}{State: s.State.String(), Vote: s.Vote, Reason: s.Reason}
	if s.State == StateCommitted {
		c := s.Commitment
		out.Commitment = &c
	}
	return json.Marshal(out)
}

// CommitData is the live commitment of a voter.
type CommitData struct {
	Commitment           models.Commitment `json:"commitment"`
	EncryptedVoteAndSalt []byte            `json:"encrypted_vote_and_salt"`
}

// KnownAccount is an identity whose encryption secret the caller holds.
type KnownAccount struct {
	AccountID  models.AccountID
	Encryption crypto.KeyPair
}

// ContextSummary is the reconstructed state of one voting context.
type ContextSummary struct {
	Context       models.VotingContext             `json:"context"`
	Proposer      *models.AccountID                `json:"proposer,omitempty"`
	Voters        []models.AccountID               `json:"voters"`
	Votes         map[models.AccountID]VoteStatus  `json:"votes"`
	CommonSalts   []models.Salt                    `json:"common_salts,omitempty"`
	Commits       map[models.AccountID]CommitData  `json:"-"`
	RevealedSalts map[models.AccountID]models.Salt `json:"-"`
	Invites       map[models.AccountID][][]byte    `json:"-"`
}

// HasVoter reports whether id was invited to the context.
func (s *ContextSummary) HasVoter(id models.AccountID) bool {
	for _, v := range s.Voters {
		if v == id {
			return true
		}
	}
	return false
}

// VotingHistory is an immutable reconstruction result.
type VotingHistory struct {
	Contexts []*ContextSummary                               `json:"contexts"`
	PubKeys  map[models.AccountID]models.EncryptionPublicKey `json:"voter_pubkeys"`
}

// Context looks up the summary for c.
func (h *VotingHistory) Context(c models.VotingContext) (*ContextSummary, bool) {
	if h == nil {
		return nil, false
	}
	for _, s := range h.Contexts {
		if s.Context == c {
			return s, true
		}
	}
	return nil, false
}
