package commitment

import (
	"crypto/rand"
	"crypto/subtle"

	"corevo/go-backend/pkg/models"

	"golang.org/x/crypto/blake2b"
)

// Commit hashes oneTime and, when present, the context's common salt.
// The digest is blake2b-512 truncated to 32 bytes.
func Commit(oneTime models.Salt, common *models.Salt) models.Commitment {
	buf := make([]byte, 0, 2*len(oneTime))
	buf = append(buf, oneTime[:]...)
	if common != nil {
		buf = append(buf, common[:]...)
	}
	sum := blake2b.Sum512(buf)
	var out models.Commitment
	copy(out[:], sum[:len(out)])
	return out
}

// Verify reports whether oneTime and common reproduce target.
func Verify(oneTime models.Salt, common *models.Salt, target models.Commitment) bool {
	got := Commit(oneTime, common)
	return subtle.ConstantTimeCompare(got[:], target[:]) == 1
}

// MatchCommonSalt searches candidates, in order, for the common salt that together
// with the revealed oneTime salt reproduces target. Only salts are searched; the
// vote value is not part of the commitment input and cannot be recovered here.
func MatchCommonSalt(oneTime models.Salt, candidates []models.Salt, target models.Commitment) (models.Salt, int, bool) {
	for i := range candidates {
		if Verify(oneTime, &candidates[i], target) {
			return candidates[i], i, true
		}
	}
	return models.Salt{}, -1, false
}

// RandomSalt draws a fresh 32-byte salt.
func RandomSalt() (models.Salt, error) {
	var s models.Salt
	if _, err := rand.Read(s[:]); err != nil {
		return models.Salt{}, err
	}
	return s, nil
}
