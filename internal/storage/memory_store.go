package storage

import (
	"context"
	"slices"
	"sync"

	"corevo/go-backend/pkg/models"
)

// MemoryStore keeps remarks in process memory in append order.
type MemoryStore struct {
	mu      sync.RWMutex
	remarks []models.Remark
}

func NewMemoryStore(remarks ...models.Remark) *MemoryStore {
	return &MemoryStore{remarks: slices.Clone(remarks)}
}

func (s *MemoryStore) AppendRemark(_ context.Context, r models.Remark) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remarks = append(s.remarks, r)
	return nil
}

// Head returns the highest block seen, or zero for an empty store.
func (s *MemoryStore) Head(context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var head uint64
	for _, r := range s.remarks {
		head = max(head, r.Block)
	}
	return head, nil
}

// ScanRemarks walks a snapshot taken at call time, so fn may append.
func (s *MemoryStore) ScanRemarks(ctx context.Context, filter models.RemarkFilter, fn func(models.Remark) error) error {
	m, err := newMatcher(filter)
	if err != nil {
		return err
	}
	s.mu.RLock()
	snapshot := slices.Clone(s.remarks)
	s.mu.RUnlock()
	for _, r := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !m.match(r) {
			continue
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.remarks)
}
