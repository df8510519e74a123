package chain

import (
	"context"
	"log/slog"
	"time"

	"corevo/go-backend/internal/wire"
	"corevo/go-backend/pkg/models"
)

// RemarkSource is the read side of the remark log.
type RemarkSource interface {
	ScanRemarks(ctx context.Context, filter models.RemarkFilter, fn func(models.Remark) error) error
}

// Event is one newly observed protocol remark.
type Event struct {
	Remark   models.Remark
	Sender   models.AccountID
	Envelope wire.Envelope
}

type WatchOptions struct {
	Interval  time.Duration
	FromBlock uint64
	Logger    *slog.Logger
}

type position struct {
	block uint64
	index uint32
}

// cursor remembers how many remarks were reported at each position of the
// newest block. Sources may report several remarks at one position, e.g.
// an indexer without per-extrinsic indexes.
type cursor struct {
	frontier uint64
	reported map[position]int
}

func (c *cursor) fresh(pos position, seen int) bool {
	if pos.block < c.frontier || seen <= c.reported[pos] {
		return false
	}
	if pos.block > c.frontier {
		c.frontier = pos.block
		clear(c.reported)
	}
	c.reported[pos] = seen
	return true
}

// Watch polls source for protocol remarks past the last seen position and
// hands each decoded one to fn. It returns when ctx ends or fn fails.
func Watch(ctx context.Context, source RemarkSource, opts WatchOptions, fn func(Event) error) error {
	interval := opts.Interval
	if interval <= 0 {
		interval = 6 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	logger = logger.With("component", "chain.watch")

	cur := &cursor{frontier: opts.FromBlock, reported: map[position]int{}}
	poll := func() error {
		filter := models.RemarkFilter{PayloadPattern: wire.HexPrefixPattern, FromBlock: cur.frontier}
		seen := map[position]int{}
		return source.ScanRemarks(ctx, filter, func(r models.Remark) error {
			pos := position{block: r.Block, index: r.Index}
			seen[pos]++
			if !cur.fresh(pos, seen[pos]) {
				return nil
			}
			sender, err := models.ParseAccountID(r.Sender)
			if err != nil {
				logger.Debug("remark with unparsable sender", "operation", "chain.watch", "block", r.Block)
				return nil
			}
			env, err := wire.DecodeHex(r.PayloadHex)
			if err != nil {
				logger.Debug("undecodable remark", "operation", "chain.watch", "block", r.Block, "error", err.Error())
				return nil
			}
			return fn(Event{Remark: r, Sender: sender, Envelope: env})
		})
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := poll(); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
