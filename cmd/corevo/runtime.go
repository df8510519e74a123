package main

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"corevo/go-backend/internal/chain"
	"corevo/go-backend/internal/config"
	"corevo/go-backend/internal/history"
	"corevo/go-backend/internal/identity"
	"corevo/go-backend/internal/metrics"
	"corevo/go-backend/internal/platform/privacylog"
	"corevo/go-backend/internal/storage"
	"corevo/go-backend/internal/voting"
	"corevo/go-backend/pkg/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

var (
	errReadOnlyBackend = errors.New("store backend is read-only; submit through a chain node")
	errNoAccount       = errors.New("no acting account: pass --suri or --account")
)

// runtime holds what one command invocation needs.
type runtime struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	source   history.RemarkSource
	appender chain.RemarkAppender
	closers  []func() error
}

func newRuntime(c *cli.Context) (*runtime, error) {
	cfg, err := config.LoadFromPath(c.String("config"))
	if err != nil {
		return nil, err
	}
	if v := strings.TrimSpace(c.String("store")); v != "" {
		cfg.Backend = v
	}
	if v := strings.TrimSpace(c.String("ledger")); v != "" {
		cfg.BoltPath = v
	}

	logger := newLogger(c, cfg)
	registry := prometheus.NewRegistry()
	r := &runtime{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		metrics:  metrics.New(registry),
	}

	switch cfg.Backend {
	case config.BackendMongo:
		store, err := storage.OpenMongoStore(c.Context, cfg.Mongo, logger)
		if err != nil {
			return nil, err
		}
		r.source = store
		r.closers = append(r.closers, func() error { return store.Close(context.Background()) })
	case config.BackendMemory:
		store := storage.NewMemoryStore()
		r.source, r.appender = store, store
	default:
		ledger, err := storage.OpenBoltLedger(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		r.source, r.appender = ledger, ledger
		r.closers = append(r.closers, ledger.Close)
	}
	logger.Debug("runtime ready", "component", "cli", "operation", "cli.init", "backend", cfg.Backend)
	return r, nil
}

// newLogger writes JSON records to the app's error stream through the
// privacy filter.
func newLogger(c *cli.Context, cfg config.Config) *slog.Logger {
	handler := slog.NewJSONHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: cfg.SlogLevel()})
	return slog.New(privacylog.WrapHandler(handler))
}

func (r *runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

func (r *runtime) query() *history.Query {
	return history.New(r.source,
		history.WithLogger(r.logger),
		history.WithMetrics(r.metrics),
		history.WithParallelism(r.cfg.Parallelism),
		history.WithSS58Prefix(r.cfg.SS58Prefix),
	)
}

func (r *runtime) submitter() (chain.Submitter, error) {
	if r.appender == nil {
		return nil, errReadOnlyBackend
	}
	opts := []chain.LedgerOption{
		chain.WithLedgerLogger(r.logger),
		chain.WithLedgerMetrics(r.metrics),
	}
	if r.cfg.SubmitRate > 0 {
		opts = append(opts, chain.WithSubmitRate(r.cfg.SubmitRate, r.cfg.SubmitBurst))
	}
	return chain.NewLocalLedger(r.appender, opts...), nil
}

func (r *runtime) keystore(c *cli.Context) (*identity.Keystore, error) {
	return identity.NewKeystore(r.cfg.KeystorePath, c.String("passphrase"), r.cfg.KeystoreKDF)
}

// actingAccount resolves --suri first, then the --account keystore label.
func (r *runtime) actingAccount(c *cli.Context) (*identity.VotingAccount, error) {
	if uri := c.String("suri"); uri != "" {
		return identity.DeriveAccount(uri)
	}
	label := c.String("account")
	if label == "" {
		return nil, errNoAccount
	}
	ks, err := r.keystore(c)
	if err != nil {
		return nil, err
	}
	return ks.Account(label)
}

// knownAccounts collects every account whose secrets are at hand. A keystore
// is only consulted when a passphrase is given.
func (r *runtime) knownAccounts(c *cli.Context) ([]*identity.VotingAccount, error) {
	var out []*identity.VotingAccount
	if c.String("suri") != "" || c.String("account") != "" {
		acc, err := r.actingAccount(c)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	if c.String("passphrase") == "" {
		return out, nil
	}
	ks, err := r.keystore(c)
	if err != nil {
		return nil, err
	}
	stored, err := ks.Accounts()
	if err != nil {
		return nil, err
	}
	return append(out, stored...), nil
}

func (r *runtime) client(c *cli.Context) (*voting.Client, error) {
	acc, err := r.actingAccount(c)
	if err != nil {
		return nil, err
	}
	sub, err := r.submitter()
	if err != nil {
		return nil, err
	}
	return voting.NewClient(acc, sub, r.query(), voting.WithLogger(r.logger), voting.WithMetrics(r.metrics))
}

func (r *runtime) address(id models.AccountID) string {
	return id.SS58(r.cfg.SS58Prefix)
}

// withRuntime wraps an action with runtime setup and teardown.
func withRuntime(fn func(*cli.Context, *runtime) error) cli.ActionFunc {
	return func(c *cli.Context) (err error) {
		r, err := newRuntime(c)
		if err != nil {
			return err
		}
		defer func() { err = errors.Join(err, r.Close()) }()
		return fn(c, r)
	}
}
