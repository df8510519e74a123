package voting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"corevo/go-backend/internal/chain"
	"corevo/go-backend/internal/commitment"
	"corevo/go-backend/internal/crypto"
	"corevo/go-backend/internal/history"
	"corevo/go-backend/internal/identity"
	"corevo/go-backend/internal/indexer"
	"corevo/go-backend/internal/metrics"
	"corevo/go-backend/internal/wire"
	"corevo/go-backend/pkg/models"
)

var (
	ErrAccountRequired   = errors.New("voting account is required")
	ErrGlobalContext     = errors.New("the global context cannot host a vote")
	ErrNoVoters          = errors.New("at least one voter is required")
	ErrVoterKeyUnknown   = errors.New("voter has not announced an encryption key")
	ErrContextNotFound   = errors.New("voting context not found")
	ErrNotInvited        = errors.New("account is not invited to this context")
	ErrCommonSaltMissing = errors.New("common salt could not be recovered")
	ErrNothingToReveal   = errors.New("no commit to reveal in this context")
	ErrAlreadyRevealed   = errors.New("commit already revealed")
	ErrInvalidVote       = errors.New("invalid vote")
)

// Client runs the participant side of the protocol for one account.
type Client struct {
	account   *identity.VotingAccount
	submitter chain.Submitter
	query     *history.Query
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Client)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient wires account to a submitter and a history query. The query is
// given the account's keys so its own invites and commits can be opened.
func NewClient(account *identity.VotingAccount, submitter chain.Submitter, query *history.Query, opts ...Option) (*Client, error) {
	if account == nil {
		return nil, ErrAccountRequired
	}
	if submitter == nil || query == nil {
		return nil, errors.New("submitter and history query are required")
	}
	c := &Client{
		account:   account,
		submitter: submitter,
		query:     query.WithKnownAccounts(history.KnownAccounts(account)),
		logger:    slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "voting", "account", account.AccountID.String())
	return c, nil
}

func (c *Client) Account() *identity.VotingAccount { return c.account }

func (c *Client) self() indexer.KnownAccount {
	return indexer.KnownAccount{AccountID: c.account.AccountID, Encryption: c.account.Encryption}
}

// Announce publishes the account's encryption key under the global context.
func (c *Client) Announce(ctx context.Context) (chain.Receipt, error) {
	return c.submit(ctx, "voting.announce", models.GlobalContext, wire.AnnounceOwnPubKey{PubKey: c.account.EncryptionPublicKey()})
}

// ProposeResult describes a freshly opened voting context.
type ProposeResult struct {
	Context    models.VotingContext
	CommonSalt models.Salt
	Invited    []models.AccountID
}

// Propose announces the proposer key in vc, draws a common salt and seals
// it to every voter. All voter keys are resolved before anything is sent.
func (c *Client) Propose(ctx context.Context, vc models.VotingContext, voters []models.AccountID) (_ ProposeResult, err error) {
	started := time.Now()
	defer func() { c.metrics.RecordOp("voting.propose", started, err) }()
	if vc.IsGlobal() {
		return ProposeResult{}, ErrGlobalContext
	}
	voters = dedupeAccounts(voters)
	if len(voters) == 0 {
		return ProposeResult{}, ErrNoVoters
	}
	h, err := c.query.Execute(ctx)
	if err != nil {
		return ProposeResult{}, err
	}
	keys := make([]models.EncryptionPublicKey, len(voters))
	for i, v := range voters {
		switch pk, ok := h.PubKeys[v]; {
		case ok:
			keys[i] = pk
		case v == c.account.AccountID:
			keys[i] = c.account.EncryptionPublicKey()
		default:
			return ProposeResult{}, fmt.Errorf("%w: %s", ErrVoterKeyUnknown, v)
		}
	}

	common, err := commitment.RandomSalt()
	if err != nil {
		return ProposeResult{}, err
	}
	if _, err := c.submit(ctx, "voting.propose", vc, wire.AnnounceOwnPubKey{PubKey: c.account.EncryptionPublicKey()}); err != nil {
		return ProposeResult{}, fmt.Errorf("announce in context: %w", err)
	}
	for i, v := range voters {
		sealed, err := crypto.EncryptForRecipient(c.account.Encryption.Secret, keys[i], common[:])
		if err != nil {
			c.metrics.RecordError(metrics.CategoryCrypto)
			return ProposeResult{}, fmt.Errorf("seal common salt for %s: %w", v, err)
		}
		if _, err := c.submit(ctx, "voting.propose", vc, wire.InviteVoter{Voter: v, EncryptedCommonSalt: sealed}); err != nil {
			return ProposeResult{}, fmt.Errorf("invite %s: %w", v, err)
		}
	}
	c.logger.Info("context proposed", "operation", "voting.propose", "context", vc.String(), "voters", len(voters))
	return ProposeResult{Context: vc, CommonSalt: common, Invited: voters}, nil
}

// CommitResult carries what the voter needs to verify the commit later.
type CommitResult struct {
	Commitment  models.Commitment
	OneTimeSalt models.Salt
	Receipt     chain.Receipt
}

// Commit seals vote under a fresh one-time salt bound to the context's
// common salt, keeping a self-encrypted copy for the later reveal.
func (c *Client) Commit(ctx context.Context, vc models.VotingContext, vote models.Vote) (_ CommitResult, err error) {
	started := time.Now()
	defer func() { c.metrics.RecordOp("voting.commit", started, err) }()
	if !vote.Valid() {
		return CommitResult{}, fmt.Errorf("%w: %d", ErrInvalidVote, vote)
	}
	summary, err := c.contextSummary(ctx, vc)
	if err != nil {
		return CommitResult{}, err
	}
	if !summary.HasVoter(c.account.AccountID) {
		return CommitResult{}, ErrNotInvited
	}
	if len(summary.CommonSalts) == 0 {
		return CommitResult{}, ErrCommonSaltMissing
	}
	common := summary.CommonSalts[0]

	oneTime, err := commitment.RandomSalt()
	if err != nil {
		return CommitResult{}, err
	}
	payload := wire.VoteAndSalt{Vote: vote, OneTimeSalt: oneTime}.Encode()
	sealed, err := crypto.EncryptForRecipient(c.account.Encryption.Secret, c.account.Encryption.Public, payload)
	if err != nil {
		c.metrics.RecordError(metrics.CategoryCrypto)
		return CommitResult{}, err
	}
	msg := wire.Commit{Commitment: commitment.Commit(oneTime, &common), EncryptedVoteAndSalt: sealed}
	receipt, err := c.submit(ctx, "voting.commit", vc, msg)
	if err != nil {
		return CommitResult{}, err
	}
	return CommitResult{Commitment: msg.Commitment, OneTimeSalt: oneTime, Receipt: receipt}, nil
}

// Reveal discloses the one-time salt of the account's live commit in vc.
func (c *Client) Reveal(ctx context.Context, vc models.VotingContext) (_ chain.Receipt, err error) {
	started := time.Now()
	defer func() { c.metrics.RecordOp("voting.reveal", started, err) }()
	summary, err := c.contextSummary(ctx, vc)
	if err != nil {
		return chain.Receipt{}, err
	}
	own, err := indexer.OwnVote(summary, c.self())
	if errors.Is(err, indexer.ErrNoCommit) {
		return chain.Receipt{}, ErrNothingToReveal
	}
	if err != nil {
		c.metrics.RecordError(metrics.CategoryCrypto)
		return chain.Receipt{}, fmt.Errorf("open own commit: %w", err)
	}
	if revealed, ok := summary.RevealedSalts[c.account.AccountID]; ok && revealed == own.OneTimeSalt {
		return chain.Receipt{}, ErrAlreadyRevealed
	}
	return c.submit(ctx, "voting.reveal", vc, wire.RevealOneTimeSalt{OneTimeSalt: own.OneTimeSalt})
}

// OwnVote returns the vote the account committed in vc.
func (c *Client) OwnVote(ctx context.Context, vc models.VotingContext) (models.Vote, error) {
	summary, err := c.contextSummary(ctx, vc)
	if err != nil {
		return 0, err
	}
	own, err := indexer.OwnVote(summary, c.self())
	if err != nil {
		return 0, err
	}
	return own.Vote, nil
}

// PendingReveals lists contexts where the account's live commit has not
// been revealed yet.
func (c *Client) PendingReveals(ctx context.Context) ([]models.VotingContext, error) {
	h, err := c.query.Execute(ctx)
	if err != nil {
		return nil, err
	}
	return PendingReveals(h, c.self()), nil
}

// PendingReveals compares each revealed salt with the one sealed in the
// live commit, so a re-commit after a reveal is pending again.
func PendingReveals(h *indexer.VotingHistory, account indexer.KnownAccount) []models.VotingContext {
	var out []models.VotingContext
	for _, s := range h.Contexts {
		if _, committed := s.Commits[account.AccountID]; !committed {
			continue
		}
		revealed, ok := s.RevealedSalts[account.AccountID]
		if !ok {
			out = append(out, s.Context)
			continue
		}
		own, err := indexer.OwnVote(s, account)
		if err == nil && own.OneTimeSalt != revealed {
			out = append(out, s.Context)
		}
	}
	return out
}

// AvailableVoters lists accounts that announced an encryption key, ordered by address.
func (c *Client) AvailableVoters(ctx context.Context) ([]models.AccountID, error) {
	h, err := c.query.Execute(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.AccountID, 0, len(h.PubKeys))
	for id := range h.PubKeys {
		out = append(out, id)
	}
	slices.SortFunc(out, func(a, b models.AccountID) int { return strings.Compare(a.String(), b.String()) })
	return out, nil
}

// History rebuilds the full voting history as seen by this account.
func (c *Client) History(ctx context.Context) (*indexer.VotingHistory, error) {
	return c.query.Execute(ctx)
}

func (c *Client) contextSummary(ctx context.Context, vc models.VotingContext) (*indexer.ContextSummary, error) {
	h, err := c.query.WithContext(vc).Execute(ctx)
	if err != nil {
		return nil, err
	}
	s, ok := h.Context(vc)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrContextNotFound, vc)
	}
	return s, nil
}

func (c *Client) submit(ctx context.Context, op string, vc models.VotingContext, msg wire.Message) (chain.Receipt, error) {
	payload, err := wire.Encode(wire.Envelope{Context: vc, Message: msg})
	if err != nil {
		return chain.Receipt{}, err
	}
	receipt, err := c.submitter.SubmitRemark(ctx, c.account, payload)
	if err != nil {
		c.metrics.RecordError(metrics.CategoryTransport)
		return chain.Receipt{}, err
	}
	c.logger.Debug("message submitted",
		"operation", op,
		"context", vc.String(),
		"kind", msg.Kind().String(),
		"block", receipt.Block,
	)
	return receipt, nil
}

func dedupeAccounts(in []models.AccountID) []models.AccountID {
	seen := make(map[models.AccountID]struct{}, len(in))
	out := make([]models.AccountID, 0, len(in))
	for _, id := range in {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
