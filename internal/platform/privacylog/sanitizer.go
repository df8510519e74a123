package privacylog

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const redactedValue = "[REDACTED]"

// treatment says what happens to an attribute before it is written.
type treatment int

const (
	keep treatment = iota
	redact
	fingerprint
)

var (
	processKey = newProcessKey()

	// Keystore locations are local to the operator's machine.
	fingerprinted = []string{"keystore_label", "keystore_path"}

	// Matched as substrings of the lowered key.
	secretMarkers = []string{
		"secret", "phrase", "mnemonic", "seed", "password", "salt",
		"token", "authorization", "mongo_uri", "dsn",
	}
)

func classify(key string) treatment {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, marker := range secretMarkers {
		if strings.Contains(key, marker) {
			return redact
		}
	}
	for _, name := range fingerprinted {
		if key == name {
			return fingerprint
		}
	}
	return keep
}

// SanitizingHandler scrubs key material and keystore locations out of
// records before they reach the wrapped handler.
type SanitizingHandler struct {
	next slog.Handler
}

func WrapHandler(next slog.Handler) slog.Handler {
	if next == nil {
		return nil
	}
	return &SanitizingHandler{next: next}
}

func (h *SanitizingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SanitizingHandler) Handle(ctx context.Context, rec slog.Record) error {
	clean := slog.NewRecord(rec.Time, rec.Level, rec.Message, rec.PC)
	rec.Attrs(func(a slog.Attr) bool {
		clean.AddAttrs(Sanitize(a))
		return true
	})
	return h.next.Handle(ctx, clean)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SanitizingHandler{next: h.next.WithAttrs(sanitizeAll(attrs))}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{next: h.next.WithGroup(name)}
}

// Sanitize rewrites one attribute, descending into groups.
func Sanitize(a slog.Attr) slog.Attr {
	switch classify(a.Key) {
	case redact:
		return slog.String(a.Key, redactedValue)
	case fingerprint:
		name := a.Key
		if !strings.HasSuffix(name, "_fp") {
			name += "_fp"
		}
		return slog.String(name, Fingerprint(a.Value.Resolve().String()))
	}
	v := a.Value.Resolve()
	if v.Kind() != slog.KindGroup {
		return slog.Attr{Key: a.Key, Value: v}
	}
	return slog.Attr{Key: a.Key, Value: slog.GroupValue(sanitizeAll(v.Group())...)}
}

// Fingerprint returns a digest of value keyed per process, so equal values
// correlate within one run and nothing links runs together.
func Fingerprint(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	h, err := blake2b.New(8, processKey)
	if err != nil {
		return redactedValue
	}
	h.Write([]byte(value))
	return "fp_" + hex.EncodeToString(h.Sum(nil))
}

func sanitizeAll(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = Sanitize(a)
	}
	return out
}

func newProcessKey() []byte {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		panic("privacylog: read random key: " + err.Error())
	}
	return key
}
