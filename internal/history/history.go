package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"corevo/go-backend/internal/identity"
	"corevo/go-backend/internal/indexer"
	"corevo/go-backend/internal/metrics"
	"corevo/go-backend/internal/wire"
	"corevo/go-backend/pkg/models"
)

var (
	ErrSourceRequired = errors.New("remark source is required")
	ErrTransport      = errors.New("remark source failed")
)

// RemarkSource streams stored remarks matching filter in log order.
type RemarkSource interface {
	ScanRemarks(ctx context.Context, filter models.RemarkFilter, fn func(models.Remark) error) error
}

// Query rebuilds voting history from a remark source. The With* methods
// return modified copies so a base query can be shared.
type Query struct {
	source      RemarkSource
	logger      *slog.Logger
	metrics     *metrics.Metrics
	parallelism int
	ss58Prefix  uint16

	filterContext *models.VotingContext
	sender        *models.AccountID
	known         []indexer.KnownAccount
}

type Option func(*Query)

func WithLogger(logger *slog.Logger) Option {
	return func(q *Query) {
		if logger != nil {
			q.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Query) { q.metrics = m }
}

func WithParallelism(n int) Option {
	return func(q *Query) { q.parallelism = n }
}

// WithSS58Prefix sets the address format the source stores senders in.
// Sender filters are pushed down in that format.
func WithSS58Prefix(prefix uint16) Option {
	return func(q *Query) { q.ss58Prefix = prefix }
}

func New(source RemarkSource, opts ...Option) *Query {
	q := &Query{
		source:     source,
		logger:     slog.New(slog.DiscardHandler),
		ss58Prefix: models.GenericSS58Prefix,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.logger = q.logger.With("component", "history")
	return q
}

// WithContext limits contextual messages to c. Key announcements are kept
// regardless since they are published under the global context.
func (q *Query) WithContext(c models.VotingContext) *Query {
	out := q.clone()
	out.filterContext = &c
	return out
}

// WithSender restricts the scan to remarks signed by id.
func (q *Query) WithSender(id models.AccountID) *Query {
	out := q.clone()
	out.sender = &id
	return out
}

func (q *Query) WithKnownAccounts(accounts []indexer.KnownAccount) *Query {
	out := q.clone()
	out.known = slices.Clone(accounts)
	return out
}

func (q *Query) clone() *Query {
	out := *q
	return &out
}

// Execute scans the source and returns a complete snapshot, or an error and
// no snapshot when the source fails.
func (q *Query) Execute(ctx context.Context) (_ *indexer.VotingHistory, err error) {
	if q.source == nil {
		return nil, ErrSourceRequired
	}
	started := time.Now()
	defer func() { q.metrics.RecordOp("history.execute", started, err) }()

	engine := indexer.NewEngine(
		indexer.WithLogger(q.logger),
		indexer.WithMetrics(q.metrics),
		indexer.WithParallelism(q.parallelism),
	)
	filter := models.RemarkFilter{PayloadPattern: wire.HexPrefixPattern}
	if q.sender != nil {
		filter.Sender = q.sender.SS58(q.ss58Prefix)
	}
	var applied int
	scanErr := q.source.ScanRemarks(ctx, filter, func(r models.Remark) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		sender, env, ok := q.decode(r)
		if !ok {
			return nil
		}
		engine.Apply(sender, env)
		applied++
		return nil
	})
	if scanErr != nil {
		q.metrics.RecordError(metrics.CategoryTransport)
		q.logger.Error("remark scan failed", "operation", "history.execute", "error", scanErr.Error())
		return nil, fmt.Errorf("%w: %w", ErrTransport, scanErr)
	}
	if err := engine.Resolve(ctx, q.known); err != nil {
		return nil, err
	}
	out := engine.Snapshot()
	q.logger.Debug("history rebuilt",
		"operation", "history.execute",
		"messages", applied,
		"contexts", len(out.Contexts),
		"pubkeys", len(out.PubKeys),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return out, nil
}

func (q *Query) decode(r models.Remark) (models.AccountID, wire.Envelope, bool) {
	sender, err := models.ParseAccountID(r.Sender)
	if err != nil {
		q.skip(r, metrics.RemarkBadSender, err)
		return models.AccountID{}, wire.Envelope{}, false
	}
	if q.sender != nil && sender != *q.sender {
		return models.AccountID{}, wire.Envelope{}, false
	}
	raw, err := models.DecodeHex(r.PayloadHex)
	if err != nil {
		q.skip(r, metrics.RemarkBadHex, err)
		return models.AccountID{}, wire.Envelope{}, false
	}
	env, err := wire.Decode(raw)
	if err != nil {
		q.skip(r, metrics.RemarkBadEnvelope, err)
		return models.AccountID{}, wire.Envelope{}, false
	}
	if q.filterContext != nil && env.Message.Kind() != wire.KindAnnounceOwnPubKey && env.Context != *q.filterContext {
		q.metrics.RecordRemark(metrics.RemarkFilteredByCtx)
		return models.AccountID{}, wire.Envelope{}, false
	}
	q.metrics.RecordRemark(metrics.RemarkDecoded)
	return sender, env, true
}

func (q *Query) skip(r models.Remark, result string, err error) {
	q.metrics.RecordRemark(result)
	q.logger.Debug("remark skipped",
		"operation", "history.decode",
		"block", r.Block,
		"index", r.Index,
		"reason", result,
		"error", err.Error(),
	)
}

// KnownAccounts exposes the encryption keys of accounts to a query.
func KnownAccounts(accounts ...*identity.VotingAccount) []indexer.KnownAccount {
	out := make([]indexer.KnownAccount, 0, len(accounts))
	for _, a := range accounts {
		if a == nil {
			continue
		}
		out = append(out, indexer.KnownAccount{AccountID: a.AccountID, Encryption: a.Encryption})
	}
	return out
}
