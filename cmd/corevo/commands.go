package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"corevo/go-backend/internal/chain"
	"corevo/go-backend/internal/config"
	"corevo/go-backend/internal/history"
	"corevo/go-backend/internal/identity"
	"corevo/go-backend/internal/indexer"
	"corevo/go-backend/internal/metrics"
	"corevo/go-backend/internal/voting"
	"corevo/go-backend/pkg/models"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
)

var errUsage = errors.New("missing arguments")

func runHistory(c *cli.Context, r *runtime) error {
	known, err := r.knownAccounts(c)
	if err != nil {
		return err
	}
	q := r.query().WithKnownAccounts(history.KnownAccounts(known...))
	if raw := c.String("context"); raw != "" {
		q = q.WithContext(models.ParseContext(raw))
	}
	if raw := c.String("sender"); raw != "" {
		id, err := models.ParseAccountID(raw)
		if err != nil {
			return fmt.Errorf("sender: %w", err)
		}
		q = q.WithSender(id)
	}
	h, err := q.Execute(c.Context)
	if err != nil {
		return err
	}
	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(h)
	}
	printHistory(c.App.Writer, r, h)
	return nil
}

func printHistory(w io.Writer, r *runtime, h *indexer.VotingHistory) {
	for _, s := range h.Contexts {
		proposer := "-"
		if s.Proposer != nil {
			proposer = r.address(*s.Proposer)
		}
		fmt.Fprintf(w, "context %q proposer %s common_salts %d\n", s.Context.String(), proposer, len(s.CommonSalts))
		for _, voter := range s.Voters {
			fmt.Fprintf(w, "  %s %s\n", r.address(voter), s.Votes[voter])
		}
		for id, st := range s.Votes {
			if !s.HasVoter(id) {
				fmt.Fprintf(w, "  %s %s (not invited)\n", r.address(id), st)
			}
		}
	}
	fmt.Fprintf(w, "announced keys %d\n", len(h.PubKeys))
}

func runAnnounce(c *cli.Context, r *runtime) error {
	client, err := r.client(c)
	if err != nil {
		return err
	}
	receipt, err := client.Announce(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "announced %s in block %d\n", client.Account().EncryptionPublicKey().Hex(), receipt.Block)
	return nil
}

func runPropose(c *cli.Context, r *runtime) error {
	if c.NArg() < 2 {
		return fmt.Errorf("%w: propose <context> <voter>...", errUsage)
	}
	vc := models.ParseContext(c.Args().First())
	voters := make([]models.AccountID, 0, c.NArg()-1)
	for _, raw := range c.Args().Tail() {
		id, err := models.ParseAccountID(raw)
		if err != nil {
			return fmt.Errorf("voter %q: %w", raw, err)
		}
		voters = append(voters, id)
	}
	client, err := r.client(c)
	if err != nil {
		return err
	}
	res, err := client.Propose(c.Context, vc, voters)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "proposed %q with %d voters\n", res.Context.String(), len(res.Invited))
	return nil
}

func runCommit(c *cli.Context, r *runtime) error {
	if c.NArg() != 2 {
		return fmt.Errorf("%w: commit <context> <aye|nay|abstain>", errUsage)
	}
	vote, err := models.ParseVote(c.Args().Get(1))
	if err != nil {
		return err
	}
	client, err := r.client(c)
	if err != nil {
		return err
	}
	res, err := client.Commit(c.Context, models.ParseContext(c.Args().First()), vote)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "committed %s in block %d\n", res.Commitment.Hex(), res.Receipt.Block)
	return nil
}

func runReveal(c *cli.Context, r *runtime) error {
	if c.NArg() != 1 {
		return fmt.Errorf("%w: reveal <context>", errUsage)
	}
	client, err := r.client(c)
	if err != nil {
		return err
	}
	receipt, err := client.Reveal(c.Context, models.ParseContext(c.Args().First()))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "revealed in block %d\n", receipt.Block)
	return nil
}

func runPending(c *cli.Context, r *runtime) error {
	acc, err := r.actingAccount(c)
	if err != nil {
		return err
	}
	h, err := r.query().WithKnownAccounts(history.KnownAccounts(acc)).Execute(c.Context)
	if err != nil {
		return err
	}
	for _, vc := range voting.PendingReveals(h, history.KnownAccounts(acc)[0]) {
		fmt.Fprintln(c.App.Writer, vc.String())
	}
	return nil
}

func runVoters(c *cli.Context, r *runtime) error {
	h, err := r.query().Execute(c.Context)
	if err != nil {
		return err
	}
	lines := make([]string, 0, len(h.PubKeys))
	for id, pk := range h.PubKeys {
		lines = append(lines, r.address(id)+" "+pk.Hex())
	}
	slices.Sort(lines)
	for _, line := range lines {
		fmt.Fprintln(c.App.Writer, line)
	}
	return nil
}

func runWatch(c *cli.Context, r *runtime) error {
	if r.cfg.MetricsListen != "" {
		srv := &http.Server{
			Addr:              r.cfg.MetricsListen,
			Handler:           promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				r.logger.Error("metrics server failed", "component", "cli", "operation", "cli.metrics", "error", err.Error())
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
	}
	opts := chain.WatchOptions{Interval: r.cfg.WatchInterval, FromBlock: c.Uint64("from"), Logger: r.logger}
	err := chain.Watch(c.Context, r.source, opts, func(ev chain.Event) error {
		r.metrics.RecordRemark(metrics.RemarkDecoded)
		_, err := fmt.Fprintf(c.App.Writer, "%d#%d %s %s %q\n",
			ev.Remark.Block, ev.Remark.Index, r.address(ev.Sender),
			ev.Envelope.Message.Kind(), ev.Envelope.Context.String())
		return err
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func keygenAction(c *cli.Context) error {
	cfg, err := config.LoadFromPath(c.String("config"))
	if err != nil {
		return err
	}
	uri, err := identity.GenerateSecretURI()
	if err != nil {
		return err
	}
	acc, err := identity.DeriveAccount(uri)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "mnemonic: %s\naddress: %s\nencryption key: %s\n",
		uri, acc.AccountID.SS58(cfg.SS58Prefix), acc.EncryptionPublicKey().Hex())
	return nil
}

func openKeystore(c *cli.Context) (*identity.Keystore, config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFromPath(c.String("config"))
	if err != nil {
		return nil, config.Config{}, nil, err
	}
	logger := newLogger(c, cfg)
	ks, err := identity.NewKeystore(cfg.KeystorePath, c.String("passphrase"), cfg.KeystoreKDF)
	return ks, cfg, logger, err
}

func keystoreAddAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return fmt.Errorf("%w: keystore add <label> [secret-uri]", errUsage)
	}
	uri := c.Args().Get(1)
	if uri == "" {
		uri = c.String("suri")
	}
	if uri == "" {
		return errNoAccount
	}
	ks, cfg, logger, err := openKeystore(c)
	if err != nil {
		return err
	}
	entry, err := ks.Add(c.Args().First(), uri)
	if err != nil {
		return err
	}
	logger.Info("keystore entry added",
		"component", "cli",
		"operation", "keystore.add",
		"keystore_label", entry.Label,
		"keystore_path", cfg.KeystorePath,
	)
	fmt.Fprintf(c.App.Writer, "stored %s as %s\n", entry.AccountID.SS58(cfg.SS58Prefix), entry.Label)
	return nil
}

func keystoreListAction(c *cli.Context) error {
	ks, cfg, _, err := openKeystore(c)
	if err != nil {
		return err
	}
	entries, err := ks.List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Fprintf(c.App.Writer, "%s %s %s\n", e.Label, e.AccountID.SS58(cfg.SS58Prefix), e.AddedAt.Format(time.RFC3339))
	}
	return nil
}

func keystoreRemoveAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("%w: keystore remove <label>", errUsage)
	}
	ks, cfg, logger, err := openKeystore(c)
	if err != nil {
		return err
	}
	label := c.Args().First()
	if err := ks.Remove(label); err != nil {
		return err
	}
	logger.Info("keystore entry removed",
		"component", "cli",
		"operation", "keystore.remove",
		"keystore_label", label,
		"keystore_path", cfg.KeystorePath,
	)
	return nil
}
