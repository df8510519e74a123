package identity

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/spacemeshos/go-scale"
	"golang.org/x/crypto/blake2b"
)

// DevPhrase is used when a secret URI carries no phrase, e.g. "//Alice".
const DevPhrase = "bottom drive obey lake curtain smoke basket hold race lonely fit walk"

const junctionIDLen = 32

var ErrInvalidSecretURI = errors.New("invalid secret uri")

var (
	secretURIPattern = regexp.MustCompile(`^(?P<phrase>[\w ]+)?(?P<path>(//?[^/]+)*)(///(?P<password>.*))?$`)
	junctionPattern  = regexp.MustCompile(`/(/?[^/]+)`)
)

// Junction is one step of a key-derivation path.
type Junction struct {
	Hard bool
	ID   [junctionIDLen]byte
}

// SecretURI is a parsed "phrase//hard/soft///password" string.
type SecretURI struct {
	Phrase      string
	Path        string
	Junctions   []Junction
	Password    string
	HasPassword bool
}

// ParseSecretURI splits a Substrate-style secret URI. An empty phrase falls back to DevPhrase.
func ParseSecretURI(uri string) (SecretURI, error) {
	loc := secretURIPattern.FindStringSubmatchIndex(uri)
	if loc == nil {
		return SecretURI{}, fmt.Errorf("%w: unexpected characters", ErrInvalidSecretURI)
	}
	group := func(name string) (string, bool) {
		i := secretURIPattern.SubexpIndex(name)
		if loc[2*i] < 0 {
			return "", false
		}
		return uri[loc[2*i]:loc[2*i+1]], true
	}
	var out SecretURI
	out.Phrase, _ = group("phrase")
	if out.Phrase == "" {
		out.Phrase = DevPhrase
	}
	out.Path, _ = group("path")
	out.Password, out.HasPassword = group("password")
	for _, jm := range junctionPattern.FindAllStringSubmatch(out.Path, -1) {
		j, err := parseJunction(jm[1])
		if err != nil {
			return SecretURI{}, err
		}
		out.Junctions = append(out.Junctions, j)
	}
	return out, nil
}

// String returns the canonical URI with the phrase spelled out.
func (u SecretURI) String() string {
	var b strings.Builder
	b.WriteString(u.Phrase)
	b.WriteString(u.Path)
	if u.HasPassword {
		b.WriteString("///")
		b.WriteString(u.Password)
	}
	return b.String()
}

func parseJunction(code string) (Junction, error) {
	var j Junction
	if rest, ok := strings.CutPrefix(code, "/"); ok {
		j.Hard = true
		code = rest
	}
	var encoded []byte
	if n, err := strconv.ParseUint(code, 10, 64); err == nil {
		encoded = make([]byte, 8)
		for i := range encoded {
			encoded[i] = byte(n >> (8 * i))
		}
	} else {
		var buf bytes.Buffer
		enc := scale.NewEncoder(&buf)
		if _, err := scale.EncodeCompact32(enc, uint32(len(code))); err != nil {
			return Junction{}, fmt.Errorf("%w: %v", ErrInvalidSecretURI, err)
		}
		if _, err := scale.EncodeByteArray(enc, []byte(code)); err != nil {
			return Junction{}, fmt.Errorf("%w: %v", ErrInvalidSecretURI, err)
		}
		encoded = buf.Bytes()
	}
	if len(encoded) > junctionIDLen {
		j.ID = blake2b.Sum256(encoded)
	} else {
		copy(j.ID[:], encoded)
	}
	return j, nil
}

// debugString renders the junction as Hard([b0, b1, ...]) or Soft([...]).
// The rendering is part of the encryption key derivation input and must not change.
func (j Junction) debugString() string {
	var b strings.Builder
	if j.Hard {
		b.WriteString("Hard([")
	} else {
		b.WriteString("Soft([")
	}
	for i, v := range j.ID {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(strconv.Itoa(int(v)))
	}
	b.WriteString("])")
	return b.String()
}
