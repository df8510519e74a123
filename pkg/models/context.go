package models

import (
	"encoding/hex"
	"strings"
)

type ContextKind uint8

const (
	ContextBytes  ContextKind = 0
	ContextString ContextKind = 1
)

// VotingContext namespaces one voting round. Value carries the raw bytes for
// ContextBytes and the UTF-8 label for ContextString, so the struct stays comparable.
type VotingContext struct {
	Kind  ContextKind
	Value string
}

// GlobalContext is where context-independent announcements are published.
var GlobalContext = StringContext("")

func BytesContext(b []byte) VotingContext {
	return VotingContext{Kind: ContextBytes, Value: string(b)}
}

func StringContext(label string) VotingContext {
	return VotingContext{Kind: ContextString, Value: label}
}

// ParseContext treats valid 0x-hex input as a byte context and anything else as a label.
func ParseContext(raw string) VotingContext {
	if HasHexPrefix(raw) {
		if b, err := DecodeHex(raw); err == nil {
			return BytesContext(b)
		}
	}
	return StringContext(raw)
}

func (c VotingContext) Bytes() []byte {
	return []byte(c.Value)
}

func (c VotingContext) String() string {
	if c.Kind == ContextBytes {
		return "0x" + hex.EncodeToString([]byte(c.Value))
	}
	return c.Value
}

func (c VotingContext) IsGlobal() bool {
	return c.Kind == ContextString && strings.TrimSpace(c.Value) == ""
}

func (c VotingContext) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
