package wire

import (
	"bytes"
	"errors"
	"fmt"
	"unicode/utf8"

	"corevo/go-backend/pkg/models"

	"github.com/spacemeshos/go-scale"
)

const (
	VersionV1 byte = 0

	// HexPrefixPattern selects protocol remarks in an indexer holding 0x-hex payloads.
	HexPrefixPattern = "^0xcc00ee"
)

// Magic prefixes every encoded envelope so remarks can be filtered cheaply.
var Magic = [3]byte{0xcc, 0x00, 0xee}

var (
	ErrFormat            = errors.New("format error")
	ErrMalformedEnvelope = fmt.Errorf("%w: malformed envelope", ErrFormat)
	ErrMalformedMessage  = fmt.Errorf("%w: malformed message", ErrFormat)
	ErrNilMessage        = errors.New("envelope has no message")
)

// Encode renders magic ++ version ++ context ++ message.
func Encode(env Envelope) ([]byte, error) {
	if env.Message == nil {
		return nil, ErrNilMessage
	}
	var buf bytes.Buffer
	w := writer{enc: scale.NewEncoder(&buf)}
	w.fixed(Magic[:])
	w.fixed([]byte{VersionV1})
	w.context(env.Context)
	w.message(env.Message)
	if w.err != nil {
		return nil, w.err
	}
	return buf.Bytes(), nil
}

// EncodeHex returns the 0x-hex form used by remark indexers.
func EncodeHex(env Envelope) (string, error) {
	raw, err := Encode(env)
	if err != nil {
		return "", err
	}
	return models.EncodeHex(raw), nil
}

// HasMagic reports whether raw starts with the protocol prefix.
func HasMagic(raw []byte) bool {
	return len(raw) >= len(Magic) && bytes.Equal(raw[:len(Magic)], Magic[:])
}

// Decode parses an encoded envelope. Trailing bytes are rejected.
func Decode(raw []byte) (Envelope, error) {
	if !HasMagic(raw) {
		return Envelope{}, fmt.Errorf("%w: missing prefix", ErrMalformedEnvelope)
	}
	if len(raw) == len(Magic) {
		return Envelope{}, fmt.Errorf("%w: missing version", ErrMalformedEnvelope)
	}
	if v := raw[len(Magic)]; v != VersionV1 {
		return Envelope{}, fmt.Errorf("%w: unknown version %d", ErrMalformedEnvelope, v)
	}
	src := bytes.NewReader(raw[len(Magic)+1:])
	r := reader{src: src, dec: scale.NewDecoder(src)}
	ctx := r.context()
	msg := r.message()
	if r.err != nil {
		return Envelope{}, r.err
	}
	if src.Len() != 0 {
		return Envelope{}, fmt.Errorf("%w: %d trailing bytes", ErrMalformedMessage, src.Len())
	}
	return Envelope{Context: ctx, Message: msg}, nil
}

// DecodeHex decodes the 0x-hex form of an envelope.
func DecodeHex(payloadHex string) (Envelope, error) {
	raw, err := models.DecodeHex(payloadHex)
	if err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return Decode(raw)
}

type writer struct {
	enc *scale.Encoder
	err error
}

func (w *writer) fixed(b []byte) {
	if w.err != nil {
		return
	}
	_, w.err = scale.EncodeByteArray(w.enc, b)
}

func (w *writer) bytes(b []byte) {
	if w.err != nil {
		return
	}
	if _, w.err = scale.EncodeCompact32(w.enc, uint32(len(b))); w.err != nil {
		return
	}
	w.fixed(b)
}

func (w *writer) context(c models.VotingContext) {
	switch c.Kind {
	case models.ContextBytes, models.ContextString:
		w.fixed([]byte{byte(c.Kind)})
		w.bytes([]byte(c.Value))
	default:
		if w.err == nil {
			w.err = fmt.Errorf("unknown context kind %d", c.Kind)
		}
	}
}

func (w *writer) message(m Message) {
	w.fixed([]byte{byte(m.Kind())})
	switch msg := m.(type) {
	case AnnounceOwnPubKey:
		w.fixed(msg.PubKey[:])
	case InviteVoter:
		w.fixed(msg.Voter[:])
		w.bytes(msg.EncryptedCommonSalt)
	case Commit:
		w.fixed(msg.Commitment[:])
		w.bytes(msg.EncryptedVoteAndSalt)
	case RevealOneTimeSalt:
		w.fixed(msg.OneTimeSalt[:])
	default:
		if w.err == nil {
			w.err = fmt.Errorf("unsupported message type %T", m)
		}
	}
}

type reader struct {
	src *bytes.Reader
	dec *scale.Decoder
	err error
}

func (r *reader) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: "+format, append([]any{ErrMalformedMessage}, args...)...)
	}
}

func (r *reader) fixed(dst []byte) {
	if r.err != nil {
		return
	}
	if r.src.Len() < len(dst) {
		r.fail("need %d bytes, have %d", len(dst), r.src.Len())
		return
	}
	if _, err := scale.DecodeByteArray(r.dec, dst); err != nil {
		r.fail("%v", err)
	}
}

func (r *reader) tag() byte {
	var b [1]byte
	r.fixed(b[:])
	return b[0]
}

func (r *reader) bytes() []byte {
	if r.err != nil {
		return nil
	}
	n, _, err := scale.DecodeCompact32(r.dec)
	if err != nil {
		r.fail("length prefix: %v", err)
		return nil
	}
	if int64(n) > int64(r.src.Len()) {
		r.fail("declared length %d exceeds remaining %d", n, r.src.Len())
		return nil
	}
	if n == 0 {
		return []byte{}
	}
	out := make([]byte, n)
	r.fixed(out)
	return out
}

func (r *reader) context() models.VotingContext {
	kind := models.ContextKind(r.tag())
	if r.err != nil {
		return models.VotingContext{}
	}
	switch kind {
	case models.ContextBytes:
		return models.BytesContext(r.bytes())
	case models.ContextString:
		b := r.bytes()
		if r.err == nil && !utf8.Valid(b) {
			r.fail("context label is not valid utf-8")
		}
		return models.StringContext(string(b))
	default:
		r.fail("unknown context tag %d", kind)
		return models.VotingContext{}
	}
}

func (r *reader) message() Message {
	kind := MessageKind(r.tag())
	if r.err != nil {
		return nil
	}
	switch kind {
	case KindAnnounceOwnPubKey:
		var msg AnnounceOwnPubKey
		r.fixed(msg.PubKey[:])
		return msg
	case KindInviteVoter:
		var msg InviteVoter
		r.fixed(msg.Voter[:])
		msg.EncryptedCommonSalt = r.bytes()
		return msg
	case KindCommit:
		var msg Commit
		r.fixed(msg.Commitment[:])
		msg.EncryptedVoteAndSalt = r.bytes()
		return msg
	case KindRevealOneTimeSalt:
		var msg RevealOneTimeSalt
		r.fixed(msg.OneTimeSalt[:])
		return msg
	default:
		r.fail("unknown message tag %d", kind)
		return nil
	}
}
