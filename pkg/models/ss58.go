package models

import (
	"errors"
	"strings"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

const (
	GenericSS58Prefix uint16 = 42
	PolkadotPrefix    uint16 = 0
	KusamaPrefix      uint16 = 2

	ss58ChecksumLen = 2
)

var (
	ErrInvalidAddress  = errors.New("invalid ss58 address")
	ErrInvalidChecksum = errors.New("invalid ss58 checksum")
	ss58Preimage       = []byte("SS58PRE")
)

// SS58 renders the account for the given network prefix.
func (a AccountID) SS58(prefix uint16) string {
	return EncodeSS58(a[:], prefix)
}

func EncodeSS58(pub []byte, prefix uint16) string {
	ident := prefix & 0x3fff
	var data []byte
	if ident < 64 {
		data = append(data, byte(ident))
	} else {
		first := byte((ident&0x00fc)>>2) | 0x40
		second := byte(ident>>8) | byte(ident&0x0003)<<6
		data = append(data, first, second)
	}
	data = append(data, pub...)
	sum := ss58Checksum(data)
	data = append(data, sum[:ss58ChecksumLen]...)
	return base58.Encode(data)
}

// DecodeSS58 returns the network prefix and the 32-byte public key.
func DecodeSS58(address string) (uint16, []byte, error) {
	data, err := base58.Decode(address)
	if err != nil || len(data) < 1 {
		return 0, nil, ErrInvalidAddress
	}
	var (
		prefixLen int
		ident     uint16
	)
	switch {
	case data[0] < 64:
		prefixLen, ident = 1, uint16(data[0])
	case data[0] < 128:
		if len(data) < 2 {
			return 0, nil, ErrInvalidAddress
		}
		lower := (data[0] << 2) | (data[1] >> 6)
		upper := data[1] & 0x3f
		prefixLen, ident = 2, uint16(lower)|uint16(upper)<<8
	default:
		return 0, nil, ErrInvalidAddress
	}
	if len(data) != prefixLen+AccountIDLen+ss58ChecksumLen {
		return 0, nil, ErrInvalidAddress
	}
	body := data[:prefixLen+AccountIDLen]
	sum := ss58Checksum(body)
	if sum[0] != data[len(body)] || sum[1] != data[len(body)+1] {
		return 0, nil, ErrInvalidChecksum
	}
	pub := append([]byte(nil), data[prefixLen:prefixLen+AccountIDLen]...)
	return ident, pub, nil
}

func ss58Checksum(data []byte) [blake2b.Size]byte {
	buf := make([]byte, 0, len(ss58Preimage)+len(data))
	buf = append(buf, ss58Preimage...)
	buf = append(buf, data...)
	return blake2b.Sum512(buf)
}

// SS58PrefixForChain guesses the address format from a chain endpoint URL.
func SS58PrefixForChain(chainURL string) uint16 {
	url := strings.ToLower(chainURL)
	switch {
	case strings.Contains(url, "kusama"):
		return KusamaPrefix
	case strings.Contains(url, "polkadot") && !strings.Contains(url, "paseo") && !strings.Contains(url, "westend"):
		return PolkadotPrefix
	default:
		return GenericSS58Prefix
	}
}
