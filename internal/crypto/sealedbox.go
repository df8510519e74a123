package crypto

import (
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
)

const (
	KeySize   = curve25519.ScalarSize
	NonceSize = chacha20poly1305.NonceSizeX
	Overhead  = NonceSize + chacha20poly1305.Overhead
)

var (
	ErrDecryptionFailed = errors.New("decryption failed")
	ErrInvalidKey       = errors.New("invalid x25519 key")
)

// KeyPair is an X25519 encryption key pair. Secret holds the unclamped scalar
// bytes; clamping happens inside every scalar multiplication.
type KeyPair struct {
	Public [KeySize]byte
	Secret [KeySize]byte
}

// KeyPairFromSecret computes the public half for a secret scalar.
func KeyPairFromSecret(secret [KeySize]byte) (KeyPair, error) {
	pub, err := curve25519.X25519(secret[:], curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	kp := KeyPair{Secret: secret}
	copy(kp.Public[:], pub)
	return kp, nil
}

// GenerateKeyPair draws a random key pair from the platform CSPRNG.
func GenerateKeyPair() (KeyPair, error) {
	var secret [KeySize]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return KeyPair{}, err
	}
	return KeyPairFromSecret(secret)
}

// EncryptForRecipient seals plaintext from mySecret to theirPublic.
// Output is nonce(24) ++ XChaCha20-Poly1305 ciphertext with tag.
func EncryptForRecipient(mySecret, theirPublic [KeySize]byte, plaintext []byte) ([]byte, error) {
	aead, err := boxAEAD(mySecret, theirPublic)
	if err != nil {
		return nil, err
	}
	out := make([]byte, NonceSize, NonceSize+len(plaintext)+chacha20poly1305.Overhead)
	if _, err := rand.Read(out); err != nil {
		return nil, err
	}
	return aead.Seal(out, out[:NonceSize], plaintext, nil), nil
}

// DecryptFromSender opens a box produced by EncryptForRecipient on the other side.
// Every failure maps to ErrDecryptionFailed so callers can move on to the next key.
func DecryptFromSender(mySecret, theirPublic [KeySize]byte, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize {
		return nil, ErrDecryptionFailed
	}
	aead, err := boxAEAD(mySecret, theirPublic)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	plaintext, err := aead.Open(nil, ciphertext[:NonceSize], ciphertext[NonceSize:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// boxAEAD derives the crypto_box ChaCha key: HChaCha20(X25519(sk, pk), 0^16).
func boxAEAD(secret, public [KeySize]byte) (cipher.AEAD, error) {
	shared, err := curve25519.X25519(secret[:], public[:])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	defer zeroBytes(shared)
	var zeroNonce [16]byte
	key, err := chacha20.HChaCha20(shared, zeroNonce[:])
	if err != nil {
		return nil, err
	}
	defer zeroBytes(key)
	return chacha20poly1305.NewX(key)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
