package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"corevo/go-backend/pkg/models"

	bbolt "go.etcd.io/bbolt"
)

var remarksBucket = []byte("remarks")

const ledgerKeyLen = 12

// BoltLedger is an embedded append-only remark log ordered by (block, index).
type BoltLedger struct {
	db *bbolt.DB
}

func OpenBoltLedger(path string) (*BoltLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(remarksBucket)
		return err
	})
	if err != nil {
		return nil, errors.Join(err, db.Close())
	}
	return &BoltLedger{db: db}, nil
}

func (l *BoltLedger) Close() error {
	return l.db.Close()
}

func ledgerKey(block uint64, index uint32) []byte {
	k := make([]byte, ledgerKeyLen)
	binary.BigEndian.PutUint64(k, block)
	binary.BigEndian.PutUint32(k[8:], index)
	return k
}

// AppendRemark stores r under its (block, index) position. Positions are
// immutable: rewriting an existing one with different content fails.
func (l *BoltLedger) AppendRemark(ctx context.Context, r models.Remark) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	val, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(remarksBucket)
		key := ledgerKey(r.Block, r.Index)
		if existing := b.Get(key); existing != nil {
			if string(existing) == string(val) {
				return nil
			}
			return fmt.Errorf("%w: block %d index %d", ErrPositionTaken, r.Block, r.Index)
		}
		return b.Put(key, val)
	})
}

// Head returns the block of the last stored remark, or zero.
func (l *BoltLedger) Head(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	var head uint64
	err := l.db.View(func(tx *bbolt.Tx) error {
		k, _ := tx.Bucket(remarksBucket).Cursor().Last()
		if len(k) == ledgerKeyLen {
			head = binary.BigEndian.Uint64(k)
		}
		return nil
	})
	return head, err
}

// ScanRemarks iterates in ledger order inside a single read transaction.
func (l *BoltLedger) ScanRemarks(ctx context.Context, filter models.RemarkFilter, fn func(models.Remark) error) error {
	m, err := newMatcher(filter)
	if err != nil {
		return err
	}
	return l.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(remarksBucket).Cursor()
		for k, v := c.Seek(ledgerKey(filter.FromBlock, 0)); k != nil; k, v = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var r models.Remark
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("corrupt ledger entry %x: %w", k, err)
			}
			if !m.match(r) {
				continue
			}
			if err := fn(r); err != nil {
				return err
			}
		}
		return nil
	})
}
