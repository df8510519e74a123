package models

import (
	"encoding/hex"
	"errors"
	"strings"
)

const (
	AccountIDLen = 32
	KeyLen       = 32
)

var ErrInvalidHex = errors.New("invalid hex string")

// AccountID is the 32-byte public identifier of a signing account.
type AccountID [AccountIDLen]byte

// EncryptionPublicKey is an announced X25519 public key.
type EncryptionPublicKey [KeyLen]byte

// Salt is a 32-byte secret: a common salt shared per context or a voter's one-time salt.
type Salt [KeyLen]byte

// Commitment binds a one-time salt (and optionally a common salt) before reveal.
type Commitment [KeyLen]byte

// Remark is one stored record of the append-only remark log.
type Remark struct {
	Sender     string `json:"sender" bson:"sender"`
	PayloadHex string `json:"payload_hex" bson:"payload_hex"`
	Block      uint64 `json:"block" bson:"block"`
	Index      uint32 `json:"index" bson:"index"`
	Signature  string `json:"signature,omitempty" bson:"signature,omitempty"`
}

// RemarkFilter narrows a remark scan. PayloadPattern is a case-insensitive
// regular expression over PayloadHex; Sender, when set, must match exactly.
// FromBlock skips remarks included before that block.
type RemarkFilter struct {
	PayloadPattern string
	Sender         string
	FromBlock      uint64
}

func (a AccountID) String() string {
	return a.SS58(GenericSS58Prefix)
}

func (a AccountID) Hex() string {
	return EncodeHex(a[:])
}

func (a AccountID) IsZero() bool {
	return a == AccountID{}
}

func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *AccountID) UnmarshalText(text []byte) error {
	parsed, err := ParseAccountID(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAccountID accepts an SS58 address of any network prefix or a 0x-prefixed hex key.
func ParseAccountID(raw string) (AccountID, error) {
	raw = strings.TrimSpace(raw)
	if HasHexPrefix(raw) {
		b, err := DecodeHex(raw)
		if err != nil {
			return AccountID{}, err
		}
		if len(b) != AccountIDLen {
			return AccountID{}, ErrInvalidAddress
		}
		var id AccountID
		copy(id[:], b)
		return id, nil
	}
	_, pub, err := DecodeSS58(raw)
	if err != nil {
		return AccountID{}, err
	}
	var id AccountID
	copy(id[:], pub)
	return id, nil
}

func (k EncryptionPublicKey) Hex() string { return EncodeHex(k[:]) }
func (s Salt) Hex() string                { return EncodeHex(s[:]) }
func (c Commitment) Hex() string          { return EncodeHex(c[:]) }

func (k EncryptionPublicKey) MarshalText() ([]byte, error) { return []byte(k.Hex()), nil }
func (s Salt) MarshalText() ([]byte, error)                { return []byte(s.Hex()), nil }
func (c Commitment) MarshalText() ([]byte, error)          { return []byte(c.Hex()), nil }

func HasHexPrefix(s string) bool {
	return len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X')
}

// DecodeHex decodes hex with an optional 0x prefix.
func DecodeHex(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if HasHexPrefix(s) {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidHex
	}
	return b, nil
}

func EncodeHex(b []byte) string {
	return "0x" + hex.EncodeToString(b)
}
