package models

import (
	"errors"
	"strings"
)

type Vote uint8

const (
	VoteAye Vote = iota
	VoteNay
	VoteAbstain
)

var ErrUnknownVote = errors.New("unknown vote")

func (v Vote) Valid() bool {
	return v <= VoteAbstain
}

func (v Vote) String() string {
	switch v {
	case VoteAye:
		return "aye"
	case VoteNay:
		return "nay"
	case VoteAbstain:
		return "abstain"
	default:
		return "unknown"
	}
}

func (v Vote) MarshalText() ([]byte, error) {
	if !v.Valid() {
		return nil, ErrUnknownVote
	}
	return []byte(v.String()), nil
}

func ParseVote(raw string) (Vote, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "aye", "yes", "1":
		return VoteAye, nil
	case "nay", "no", "2":
		return VoteNay, nil
	case "abstain", "3":
		return VoteAbstain, nil
	default:
		return 0, ErrUnknownVote
	}
}
