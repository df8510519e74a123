package wire

import (
	"fmt"

	"corevo/go-backend/pkg/models"
)

const voteAndSaltLen = 1 + models.KeyLen

// VoteAndSalt is the plaintext a voter seals to itself inside Commit, so the
// vote can be recovered and the one-time salt revealed later.
type VoteAndSalt struct {
	Vote        models.Vote
	OneTimeSalt models.Salt
}

func (v VoteAndSalt) Encode() []byte {
	out := make([]byte, 0, voteAndSaltLen)
	out = append(out, byte(v.Vote))
	return append(out, v.OneTimeSalt[:]...)
}

func DecodeVoteAndSalt(raw []byte) (VoteAndSalt, error) {
	if len(raw) != voteAndSaltLen {
		return VoteAndSalt{}, fmt.Errorf("%w: vote payload length %d", ErrMalformedMessage, len(raw))
	}
	vote := models.Vote(raw[0])
	if !vote.Valid() {
		return VoteAndSalt{}, fmt.Errorf("%w: unknown vote %d", ErrMalformedMessage, raw[0])
	}
	var out VoteAndSalt
	out.Vote = vote
	copy(out.OneTimeSalt[:], raw[1:])
	return out, nil
}
