package identity

import (
	"corevo/go-backend/internal/crypto"

	"golang.org/x/crypto/blake2b"
)

// DeriveEncryptionKeys derives the X25519 key pair bound to a secret URI.
// Input is blake2b-512(phrase ++ password? ++ debug(junction)...), truncated to 32 bytes.
func DeriveEncryptionKeys(uri SecretURI) (crypto.KeyPair, error) {
	h, err := blake2b.New512(nil)
	if err != nil {
		return crypto.KeyPair{}, err
	}
	h.Write([]byte(uri.Phrase))
	if uri.HasPassword {
		h.Write([]byte(uri.Password))
	}
	for _, j := range uri.Junctions {
		h.Write([]byte(j.debugString()))
	}
	sum := h.Sum(nil)
	defer zeroBytes(sum)

	var secret [crypto.KeySize]byte
	copy(secret[:], sum[:crypto.KeySize])
	return crypto.KeyPairFromSecret(secret)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
