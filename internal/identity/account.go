package identity

import (
	"errors"
	"fmt"
	"strings"

	"corevo/go-backend/internal/crypto"
	"corevo/go-backend/pkg/models"

	"github.com/tyler-smith/go-bip39"
	subkey "github.com/vedhavyas/go-subkey/v2"
	"github.com/vedhavyas/go-subkey/v2/sr25519"
)

var (
	ErrInvalidMnemonic  = errors.New("invalid mnemonic")
	ErrMnemonicRequired = errors.New("mnemonic is required")
)

// Signer signs extrinsic payloads on behalf of an account.
type Signer interface {
	Sign(msg []byte) ([]byte, error)
}

// VotingAccount bundles the signing identity with its derived encryption keys.
type VotingAccount struct {
	AccountID  models.AccountID
	Signer     Signer
	Encryption crypto.KeyPair
}

// EncryptionPublicKey returns the key announced on chain for this account.
func (a *VotingAccount) EncryptionPublicKey() models.EncryptionPublicKey {
	return models.EncryptionPublicKey(a.Encryption.Public)
}

// DeriveAccount resolves a secret URI into an sr25519 signer plus encryption keys.
// Word phrases must be valid bip39 mnemonics; 0x-prefixed phrases are raw seeds.
func DeriveAccount(raw string) (*VotingAccount, error) {
	uri, err := ParseSecretURI(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if !models.HasHexPrefix(uri.Phrase) && !bip39.IsMnemonicValid(uri.Phrase) {
		return nil, ErrInvalidMnemonic
	}
	kp, err := subkey.DeriveKeyPair(sr25519.Scheme{}, uri.String())
	if err != nil {
		return nil, fmt.Errorf("derive signing key: %w", err)
	}
	var id models.AccountID
	if n := copy(id[:], kp.AccountID()); n != models.AccountIDLen {
		return nil, fmt.Errorf("derive signing key: unexpected account id length %d", n)
	}
	enc, err := DeriveEncryptionKeys(uri)
	if err != nil {
		return nil, err
	}
	return &VotingAccount{AccountID: id, Signer: kp, Encryption: enc}, nil
}

// GenerateSecretURI creates a fresh 12-word mnemonic usable as a secret URI.
func GenerateSecretURI() (string, error) {
	entropy, err := bip39.NewEntropy(128)
	if err != nil {
		return "", err
	}
	return bip39.NewMnemonic(entropy)
}

// ValidateMnemonic reports whether the phrase part of uri is a usable mnemonic.
func ValidateMnemonic(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return ErrMnemonicRequired
	}
	uri, err := ParseSecretURI(strings.TrimSpace(raw))
	if err != nil {
		return err
	}
	if models.HasHexPrefix(uri.Phrase) || bip39.IsMnemonicValid(uri.Phrase) {
		return nil
	}
	return ErrInvalidMnemonic
}
