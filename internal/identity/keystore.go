package identity

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"corevo/go-backend/internal/securestore"
	"corevo/go-backend/pkg/models"
)

var (
	ErrLabelRequired     = errors.New("keystore label is required")
	ErrLabelExists       = errors.New("keystore label already exists")
	ErrAccountNotFound   = errors.New("keystore account not found")
	ErrPassphraseMissing = errors.New("keystore passphrase is required")
)

// KeystoreEntry is one persisted secret URI.
type KeystoreEntry struct {
	Label     string           `json:"label"`
	SecretURI string           `json:"secret_uri"`
	AccountID models.AccountID `json:"account_id"`
	AddedAt   time.Time        `json:"added_at"`
}

type keystoreFile struct {
	Accounts []KeystoreEntry `json:"accounts"`
}

// Keystore keeps the caller's known accounts in a passphrase-sealed file.
type Keystore struct {
	mu         sync.Mutex
	path       string
	passphrase string
	kdf        securestore.KDFParams
	now        func() time.Time
}

func NewKeystore(path, passphrase string, kdf securestore.KDFParams) (*Keystore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("keystore path is required")
	}
	if passphrase == "" {
		return nil, ErrPassphraseMissing
	}
	return &Keystore{path: path, passphrase: passphrase, kdf: kdf, now: time.Now}, nil
}

// Add derives the account for uri and stores it under label.
func (k *Keystore) Add(label, uri string) (KeystoreEntry, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return KeystoreEntry{}, ErrLabelRequired
	}
	acc, err := DeriveAccount(uri)
	if err != nil {
		return KeystoreEntry{}, err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	file, err := k.loadLocked()
	if err != nil {
		return KeystoreEntry{}, err
	}
	for _, e := range file.Accounts {
		if e.Label == label {
			return KeystoreEntry{}, fmt.Errorf("%w: %s", ErrLabelExists, label)
		}
	}
	entry := KeystoreEntry{
		Label:     label,
		SecretURI: strings.TrimSpace(uri),
		AccountID: acc.AccountID,
		AddedAt:   k.now().UTC(),
	}
	file.Accounts = append(file.Accounts, entry)
	if err := securestore.WriteSealedJSON(k.path, k.passphrase, k.kdf, file); err != nil {
		return KeystoreEntry{}, err
	}
	return entry, nil
}

// Remove deletes the entry stored under label.
func (k *Keystore) Remove(label string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	file, err := k.loadLocked()
	if err != nil {
		return err
	}
	idx := slices.IndexFunc(file.Accounts, func(e KeystoreEntry) bool { return e.Label == label })
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, label)
	}
	file.Accounts = slices.Delete(file.Accounts, idx, idx+1)
	return securestore.WriteSealedJSON(k.path, k.passphrase, k.kdf, file)
}

// List returns entries in insertion order.
func (k *Keystore) List() ([]KeystoreEntry, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	file, err := k.loadLocked()
	if err != nil {
		return nil, err
	}
	return file.Accounts, nil
}

// Account derives the voting account stored under label.
func (k *Keystore) Account(label string) (*VotingAccount, error) {
	entries, err := k.List()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.Label == label {
			return DeriveAccount(e.SecretURI)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, label)
}

// Accounts derives every stored account.
func (k *Keystore) Accounts() ([]*VotingAccount, error) {
	entries, err := k.List()
	if err != nil {
		return nil, err
	}
	out := make([]*VotingAccount, 0, len(entries))
	for _, e := range entries {
		acc, err := DeriveAccount(e.SecretURI)
		if err != nil {
			return nil, fmt.Errorf("keystore entry %q: %w", e.Label, err)
		}
		out = append(out, acc)
	}
	return out, nil
}

func (k *Keystore) loadLocked() (keystoreFile, error) {
	var file keystoreFile
	if _, err := securestore.ReadSealedJSON(k.path, k.passphrase, &file); err != nil {
		return keystoreFile{}, err
	}
	return file, nil
}
