package securestore

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	envelopeVersion = 1
	saltSize        = 16
	filePrefix      = "CRVKEY1\n"
	kdfName         = "argon2id"
)

var (
	ErrAuthFailed = errors.New("keystore authentication failed")
	ErrInvalid    = errors.New("keystore envelope is invalid")
	ErrNotSealed  = errors.New("keystore data is not sealed")
)

// KDFParams tunes argon2id. Stored in every envelope so older files stay readable.
type KDFParams struct {
	Time     uint32 `json:"kdf_time" yaml:"time"`
	MemoryKB uint32 `json:"kdf_memory_kb" yaml:"memoryKB"`
	Threads  uint8  `json:"kdf_threads" yaml:"threads"`
}

func DefaultKDFParams() KDFParams {
	return KDFParams{Time: 2, MemoryKB: 64 * 1024, Threads: 1}
}

func (p KDFParams) normalized() KDFParams {
	def := DefaultKDFParams()
	if p.Time == 0 {
		p.Time = def.Time
	}
	if p.MemoryKB < 8 {
		p.MemoryKB = def.MemoryKB
	}
	if p.Threads == 0 {
		p.Threads = def.Threads
	}
	return p
}

type Envelope struct {
	Version uint32 `json:"version"`
	KDF     string `json:"kdf"`
	KDFParams
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Seal encrypts plaintext under passphrase and returns the prefixed file form.
func Seal(passphrase string, params KDFParams, plaintext []byte) ([]byte, error) {
	env, err := SealEnvelope(passphrase, params, plaintext)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append([]byte(filePrefix), raw...), nil
}

func SealEnvelope(passphrase string, params KDFParams, plaintext []byte) (*Envelope, error) {
	params = params.normalized()
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := deriveKey(passphrase, salt, params)
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return &Envelope{
		Version:    envelopeVersion,
		KDF:        kdfName,
		KDFParams:  params,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, []byte(filePrefix)),
	}, nil
}

// Open reverses Seal.
func Open(passphrase string, data []byte) ([]byte, error) {
	rest, ok := strings.CutPrefix(string(data), filePrefix)
	if !ok {
		return nil, ErrNotSealed
	}
	var env Envelope
	if err := json.Unmarshal([]byte(rest), &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return OpenEnvelope(passphrase, &env)
}

func OpenEnvelope(passphrase string, env *Envelope) ([]byte, error) {
	if env == nil || env.Version != envelopeVersion || env.KDF != kdfName {
		return nil, ErrInvalid
	}
	if len(env.Salt) != saltSize || len(env.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, ErrInvalid
	}
	key := deriveKey(passphrase, env.Salt, env.KDFParams.normalized())
	defer zeroBytes(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, []byte(filePrefix))
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

func deriveKey(passphrase string, salt []byte, p KDFParams) []byte {
	return argon2.IDKey([]byte(passphrase), salt, p.Time, p.MemoryKB, p.Threads, chacha20poly1305.KeySize)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
