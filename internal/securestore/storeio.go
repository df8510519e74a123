package securestore

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// ReadSealedJSON opens path and unmarshals its plaintext into v.
// A missing file leaves v untouched and reports found=false.
func ReadSealedJSON(path, passphrase string, v any) (found bool, err error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	plain, err := Open(passphrase, raw)
	if err != nil {
		return true, err
	}
	defer zeroBytes(plain)
	return true, json.Unmarshal(plain, v)
}

// WriteSealedJSON marshals v, seals it and replaces path via a temp file rename.
func WriteSealedJSON(path, passphrase string, params KDFParams, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	defer zeroBytes(payload)
	sealed, err := Seal(passphrase, params, payload)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".keystore-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(sealed); err != nil {
		return errors.Join(err, tmp.Close(), os.Remove(tmpName))
	}
	if err := tmp.Close(); err != nil {
		return errors.Join(err, os.Remove(tmpName))
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return errors.Join(err, os.Remove(tmpName))
	}
	return os.Rename(tmpName, path)
}
