package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"corevo/go-backend/internal/identity"
	"corevo/go-backend/internal/metrics"
	"corevo/go-backend/internal/platform/ratelimiter"
	"corevo/go-backend/internal/wire"
	"corevo/go-backend/pkg/models"
)

var (
	ErrSignerRequired = errors.New("signer account is required")
	ErrEmptyRemark    = errors.New("remark payload is empty")
)

// Receipt locates a finalized remark.
type Receipt struct {
	Block uint64
	Index uint32
}

// Submitter publishes a remark signed by account and returns once it is final.
type Submitter interface {
	SubmitRemark(ctx context.Context, account *identity.VotingAccount, payload []byte) (Receipt, error)
}

// RemarkAppender is the log a LocalLedger writes into.
type RemarkAppender interface {
	AppendRemark(ctx context.Context, r models.Remark) error
	Head(ctx context.Context) (uint64, error)
}

// LocalLedger is a single-node Submitter: each remark becomes final in its
// own block, appended to a local store.
type LocalLedger struct {
	store   RemarkAppender
	limiter *ratelimiter.MapLimiter
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu   sync.Mutex
	head uint64
	init bool
}

type LedgerOption func(*LocalLedger)

// WithSubmitRate throttles submissions per signer.
func WithSubmitRate(rps float64, burst int) LedgerOption {
	return func(l *LocalLedger) { l.limiter = ratelimiter.New(rps, burst, 10*time.Minute) }
}

func WithLedgerLogger(logger *slog.Logger) LedgerOption {
	return func(l *LocalLedger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

func WithLedgerMetrics(m *metrics.Metrics) LedgerOption {
	return func(l *LocalLedger) { l.metrics = m }
}

func NewLocalLedger(store RemarkAppender, opts ...LedgerOption) *LocalLedger {
	l := &LocalLedger{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "chain.ledger")
	return l
}

func (l *LocalLedger) SubmitRemark(ctx context.Context, account *identity.VotingAccount, payload []byte) (_ Receipt, err error) {
	started := time.Now()
	defer func() { l.metrics.RecordOp("chain.submit", started, err) }()
	if account == nil || account.Signer == nil {
		return Receipt{}, ErrSignerRequired
	}
	if len(payload) == 0 {
		return Receipt{}, ErrEmptyRemark
	}
	sender := account.AccountID.String()
	if err := l.limiter.Wait(ctx, sender); err != nil {
		return Receipt{}, fmt.Errorf("submit throttled: %w", err)
	}
	sig, err := account.Signer.Sign(payload)
	if err != nil {
		return Receipt{}, fmt.Errorf("sign remark: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.init {
		head, err := l.store.Head(ctx)
		if err != nil {
			l.metrics.RecordError(metrics.CategoryStorage)
			return Receipt{}, fmt.Errorf("read ledger head: %w", err)
		}
		l.head, l.init = head, true
	}
	r := models.Remark{
		Sender:     sender,
		PayloadHex: models.EncodeHex(payload),
		Block:      l.head + 1,
		Index:      0,
		Signature:  models.EncodeHex(sig),
	}
	if err := l.store.AppendRemark(ctx, r); err != nil {
		l.metrics.RecordError(metrics.CategoryStorage)
		return Receipt{}, fmt.Errorf("append remark: %w", err)
	}
	l.head = r.Block
	l.metrics.RecordSubmission(payloadKind(payload))
	l.logger.Info("remark finalized",
		"operation", "chain.submit",
		"sender", sender,
		"block", r.Block,
		"kind", payloadKind(payload),
	)
	return Receipt{Block: r.Block, Index: r.Index}, nil
}

func payloadKind(payload []byte) string {
	env, err := wire.Decode(payload)
	if err != nil {
		return "foreign"
	}
	return env.Message.Kind().String()
}
