package wire

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"corevo/go-backend/pkg/models"
)

func filled(b byte) [32]byte {
	var out [32]byte
	for i := range out {
		out[i] = b
	}
	return out
}

func sampleMessages() []Message {
	long := bytes.Repeat([]byte{0xab}, 300)
	return []Message{
		AnnounceOwnPubKey{PubKey: filled(1)},
		InviteVoter{Voter: filled(2), EncryptedCommonSalt: []byte{9, 8, 7}},
		InviteVoter{Voter: filled(2), EncryptedCommonSalt: long},
		Commit{Commitment: filled(3), EncryptedVoteAndSalt: []byte{1}},
		Commit{Commitment: filled(3), EncryptedVoteAndSalt: []byte{}},
		RevealOneTimeSalt{OneTimeSalt: filled(4)},
	}
}

func sampleContexts() []models.VotingContext {
	return []models.VotingContext{
		models.StringContext("corevo_test_voting"),
		models.StringContext(""),
		models.BytesContext([]byte{0xde, 0xad}),
		models.BytesContext(bytes.Repeat([]byte{1}, 70)),
	}
}

func TestEncodeDecodeRoundtrip(t *testing.T) {
	for _, ctx := range sampleContexts() {
		for _, msg := range sampleMessages() {
			env := Envelope{Context: ctx, Message: msg}
			raw, err := Encode(env)
			if err != nil {
				t.Fatalf("encode %T failed: %v", msg, err)
			}
			got, err := Decode(raw)
			if err != nil {
				t.Fatalf("decode %T failed: %v", msg, err)
			}
			if !reflect.DeepEqual(got, env) {
				t.Fatalf("roundtrip mismatch:\n got %#v\nwant %#v", got, env)
			}
		}
	}
}

func TestDecodeKeepsEmptyByteFieldsNonNil(t *testing.T) {
	env := Envelope{
		Context: models.BytesContext([]byte{}),
		Message: InviteVoter{Voter: filled(5), EncryptedCommonSalt: []byte{}},
	}
	raw, err := Encode(env)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	invite, ok := got.Message.(InviteVoter)
	if !ok {
		t.Fatalf("unexpected message %T", got.Message)
	}
	if invite.EncryptedCommonSalt == nil {
		t.Fatal("empty encrypted salt decoded as nil")
	}
	if !reflect.DeepEqual(got, env) {
		t.Fatalf("roundtrip mismatch:\n got %#v\nwant %#v", got, env)
	}
}

func TestEncodeExactLayout(t *testing.T) {
	raw, err := Encode(Envelope{
		Context: models.StringContext("ab"),
		Message: AnnounceOwnPubKey{PubKey: filled(1)},
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	want := []byte{0xcc, 0x00, 0xee, 0x00, 0x01, 0x08, 'a', 'b', 0x00}
	want = append(want, bytes.Repeat([]byte{1}, 32)...)
	if !bytes.Equal(raw, want) {
		t.Fatalf("unexpected layout:\n got %x\nwant %x", raw, want)
	}

	raw, err = Encode(Envelope{
		Context: models.BytesContext([]byte{0x42}),
		Message: Commit{Commitment: filled(3), EncryptedVoteAndSalt: bytes.Repeat([]byte{7}, 64)},
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	// 64 needs the two-byte compact form: (64<<2)|1 little endian.
	if !bytes.Equal(raw[:7], []byte{0xcc, 0x00, 0xee, 0x00, 0x00, 0x04, 0x42}) {
		t.Fatalf("unexpected header %x", raw[:7])
	}
	if raw[7] != byte(KindCommit) {
		t.Fatalf("unexpected message tag %d", raw[7])
	}
	if !bytes.Equal(raw[40:42], []byte{0x01, 0x01}) {
		t.Fatalf("unexpected compact length %x", raw[40:42])
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	raw, err := Encode(Envelope{Context: models.StringContext("x"), Message: RevealOneTimeSalt{OneTimeSalt: filled(5)}})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	for i := 0; i < len(Magic); i++ {
		tampered := append([]byte(nil), raw...)
		tampered[i] ^= 0x01
		if _, err := Decode(tampered); !errors.Is(err, ErrMalformedEnvelope) {
			t.Fatalf("byte %d: expected ErrMalformedEnvelope, got %v", i, err)
		}
	}
	for _, short := range [][]byte{nil, {0xcc}, {0xcc, 0x00}} {
		if _, err := Decode(short); !errors.Is(err, ErrMalformedEnvelope) {
			t.Fatalf("short input %x: expected ErrMalformedEnvelope, got %v", short, err)
		}
	}
	if _, err := Decode([]byte("hello world")); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected format error, got %v", err)
	}
}

func TestDecodeRejectsUnknownVersionAndTags(t *testing.T) {
	raw, err := Encode(Envelope{Context: models.StringContext("x"), Message: RevealOneTimeSalt{OneTimeSalt: filled(5)}})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	badVersion := append([]byte(nil), raw...)
	badVersion[3] = 1
	if _, err := Decode(badVersion); !errors.Is(err, ErrMalformedEnvelope) {
		t.Fatalf("expected ErrMalformedEnvelope for version, got %v", err)
	}

	badContext := append([]byte(nil), raw...)
	badContext[4] = 7
	if _, err := Decode(badContext); !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("expected ErrMalformedMessage for context tag, got %v", err)
	}

	badMessage := append([]byte(nil), raw...)
	badMessage[7] = 9
	if _, err := Decode(badMessage); !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("expected ErrMalformedMessage for message tag, got %v", err)
	}
}

func TestDecodeRejectsTruncationOverLengthAndTrailing(t *testing.T) {
	raw, err := Encode(Envelope{
		Context: models.StringContext("x"),
		Message: InviteVoter{Voter: filled(2), EncryptedCommonSalt: []byte{1, 2, 3, 4}},
	})
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	for cut := 4; cut < len(raw); cut++ {
		if _, err := Decode(raw[:cut]); !errors.Is(err, ErrMalformedMessage) {
			t.Fatalf("cut %d: expected ErrMalformedMessage, got %v", cut, err)
		}
	}

	overLength := append([]byte(nil), raw...)
	// compact length of the payload sits right after the 32-byte voter id
	overLength[len(raw)-5] = 60 << 2
	if _, err := Decode(overLength); !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("expected ErrMalformedMessage for over-length, got %v", err)
	}

	trailing := append(append([]byte(nil), raw...), 0x00)
	if _, err := Decode(trailing); !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("expected ErrMalformedMessage for trailing bytes, got %v", err)
	}
}

func TestDecodeRejectsInvalidUTF8Label(t *testing.T) {
	raw := []byte{0xcc, 0x00, 0xee, 0x00, 0x01, 0x04, 0xff, byte(KindRevealOneTimeSalt)}
	raw = append(raw, bytes.Repeat([]byte{1}, 32)...)
	if _, err := Decode(raw); !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("expected ErrMalformedMessage, got %v", err)
	}
}

func TestHexRoundtripIsCaseInsensitive(t *testing.T) {
	env := Envelope{Context: models.StringContext("ctx"), Message: AnnounceOwnPubKey{PubKey: filled(0xaa)}}
	h, err := EncodeHex(env)
	if err != nil {
		t.Fatalf("encode hex failed: %v", err)
	}
	if h[:8] != "0xcc00ee" {
		t.Fatalf("unexpected hex prefix %q", h[:8])
	}
	upper := "0X" + string(bytes.ToUpper([]byte(h[2:])))
	got, err := DecodeHex(upper)
	if err != nil {
		t.Fatalf("decode hex failed: %v", err)
	}
	if !reflect.DeepEqual(got, env) {
		t.Fatal("hex roundtrip mismatch")
	}
	if _, err := DecodeHex("0xzz"); !errors.Is(err, ErrMalformedEnvelope) {
		t.Fatalf("expected ErrMalformedEnvelope for bad hex, got %v", err)
	}
}

func TestEncodeRejectsNilMessage(t *testing.T) {
	if _, err := Encode(Envelope{Context: models.StringContext("x")}); !errors.Is(err, ErrNilMessage) {
		t.Fatalf("expected ErrNilMessage, got %v", err)
	}
}

func TestVoteAndSaltCodec(t *testing.T) {
	in := VoteAndSalt{Vote: models.VoteNay, OneTimeSalt: filled(6)}
	raw := in.Encode()
	if len(raw) != 33 || raw[0] != 1 {
		t.Fatalf("unexpected encoding %x", raw)
	}
	out, err := DecodeVoteAndSalt(raw)
	if err != nil || out != in {
		t.Fatalf("roundtrip failed: %+v %v", out, err)
	}
	raw[0] = 3
	if _, err := DecodeVoteAndSalt(raw); !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("expected ErrMalformedMessage for bad vote, got %v", err)
	}
	if _, err := DecodeVoteAndSalt(raw[:10]); !errors.Is(err, ErrMalformedMessage) {
		t.Fatalf("expected ErrMalformedMessage for short payload, got %v", err)
	}
}
