package storage

import (
	"errors"
	"fmt"
	"regexp"

	"corevo/go-backend/pkg/models"
)

var (
	ErrInvalidFilter = errors.New("invalid remark filter")
	ErrPositionTaken = errors.New("ledger position already used")
)

type matcher struct {
	filter  models.RemarkFilter
	pattern *regexp.Regexp
	sender  *models.AccountID
}

func newMatcher(f models.RemarkFilter) (matcher, error) {
	m := matcher{filter: f}
	if f.Sender != "" {
		if id, err := models.ParseAccountID(f.Sender); err == nil {
			m.sender = &id
		}
	}
	if f.PayloadPattern != "" {
		re, err := regexp.Compile("(?i)" + f.PayloadPattern)
		if err != nil {
			return matcher{}, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
		m.pattern = re
	}
	return m, nil
}

func (m matcher) match(r models.Remark) bool {
	if r.Block < m.filter.FromBlock {
		return false
	}
	if m.filter.Sender != "" && !m.sameSender(r.Sender) {
		return false
	}
	return m.pattern == nil || m.pattern.MatchString(r.PayloadHex)
}

// sameSender compares account ids so any SS58 network prefix matches.
func (m matcher) sameSender(raw string) bool {
	if m.sender == nil {
		return raw == m.filter.Sender
	}
	id, err := models.ParseAccountID(raw)
	return err == nil && id == *m.sender
}
