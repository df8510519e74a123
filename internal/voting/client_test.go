package voting

import (
	"context"
	"errors"
	"testing"

	"corevo/go-backend/internal/chain"
	"corevo/go-backend/internal/history"
	"corevo/go-backend/internal/identity"
	"corevo/go-backend/internal/indexer"
	"corevo/go-backend/internal/storage"
	"corevo/go-backend/pkg/models"
)

type network struct {
	store  *storage.MemoryStore
	ledger *chain.LocalLedger
	query  *history.Query
}

func newNetwork() *network {
	store := storage.NewMemoryStore()
	return &network{
		store:  store,
		ledger: chain.NewLocalLedger(store),
		query:  history.New(store),
	}
}

func (n *network) client(t *testing.T, uri string) *Client {
	t.Helper()
	account, err := identity.DeriveAccount(uri)
	if err != nil {
		t.Fatalf("derive %s: %v", uri, err)
	}
	c, err := NewClient(account, n.ledger, n.query)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func announceAll(t *testing.T, clients ...*Client) {
	t.Helper()
	for _, c := range clients {
		if _, err := c.Announce(context.Background()); err != nil {
			t.Fatalf("announce: %v", err)
		}
	}
}

func summaryFor(t *testing.T, c *Client, vc models.VotingContext) *indexer.ContextSummary {
	t.Helper()
	h, err := c.History(context.Background())
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	s, ok := h.Context(vc)
	if !ok {
		t.Fatalf("context %s missing", vc)
	}
	return s
}

func TestFullRoundAsSeenByEachParticipant(t *testing.T) {
	ctx := context.Background()
	n := newNetwork()
	alice := n.client(t, "//Alice")
	bob := n.client(t, "//Bob")
	charlie := n.client(t, "//Charlie")
	announceAll(t, alice, bob, charlie)

	vc := models.StringContext("budget-2026")
	voters := []models.AccountID{alice.Account().AccountID, bob.Account().AccountID, charlie.Account().AccountID}
	res, err := alice.Propose(ctx, vc, voters)
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if len(res.Invited) != 3 {
		t.Fatalf("expected 3 invites, got %d", len(res.Invited))
	}

	votes := map[*Client]models.Vote{alice: models.VoteAye, bob: models.VoteNay, charlie: models.VoteAbstain}
	for c, v := range votes {
		if _, err := c.Commit(ctx, vc, v); err != nil {
			t.Fatalf("commit: %v", err)
		}
	}
	pending, err := bob.PendingReveals(ctx)
	if err != nil || len(pending) != 1 || pending[0] != vc {
		t.Fatalf("pending reveals: %v, %v", pending, err)
	}
	for _, c := range []*Client{alice, bob} {
		if _, err := c.Reveal(ctx, vc); err != nil {
			t.Fatalf("reveal: %v", err)
		}
	}

	s := summaryFor(t, bob, vc)
	if s.Proposer == nil || *s.Proposer != alice.Account().AccountID {
		t.Fatalf("unexpected proposer %v", s.Proposer)
	}
	if len(s.CommonSalts) != 1 || s.CommonSalts[0] != res.CommonSalt {
		t.Fatalf("bob did not recover the common salt")
	}
	if st := s.Votes[bob.Account().AccountID]; st.Vote == nil || *st.Vote != models.VoteNay {
		t.Fatalf("bob should see his own vote, got %s", st)
	}
	if st := s.Votes[alice.Account().AccountID]; !st.IsRevealed() || st.Reason != indexer.ReasonVoteUndisclosed {
		t.Fatalf("bob should see alice revealed but undisclosed, got %s", st)
	}
	if st := s.Votes[charlie.Account().AccountID]; st.State != indexer.StateCommitted {
		t.Fatalf("charlie has not revealed, got %s", st)
	}

	// The proposer holds the common salt too, and still cannot read other votes.
	s = summaryFor(t, alice, vc)
	if st := s.Votes[bob.Account().AccountID]; st.Vote != nil || st.Reason != indexer.ReasonVoteUndisclosed {
		t.Fatalf("alice should not learn bob's vote, got %s", st)
	}
	if st := s.Votes[alice.Account().AccountID]; st.Vote == nil || *st.Vote != models.VoteAye {
		t.Fatalf("alice should see her own vote, got %s", st)
	}

	// An outside observer sees only that reveals happened.
	observer := n.client(t, "//Dave")
	s = summaryFor(t, observer, vc)
	if st := s.Votes[bob.Account().AccountID]; st.Reason != indexer.ReasonPendingBruteForce {
		t.Fatalf("observer should be pending, got %s", st)
	}

	got, err := charlie.OwnVote(ctx, vc)
	if err != nil || got != models.VoteAbstain {
		t.Fatalf("charlie own vote: %v, %v", got, err)
	}
}

func TestProposeRejectsBeforeSubmitting(t *testing.T) {
	ctx := context.Background()
	n := newNetwork()
	alice := n.client(t, "//Alice")
	bob := n.client(t, "//Bob")

	if _, err := alice.Propose(ctx, models.GlobalContext, []models.AccountID{bob.Account().AccountID}); !errors.Is(err, ErrGlobalContext) {
		t.Fatalf("expected ErrGlobalContext, got %v", err)
	}
	if _, err := alice.Propose(ctx, models.StringContext("x"), nil); !errors.Is(err, ErrNoVoters) {
		t.Fatalf("expected ErrNoVoters, got %v", err)
	}
	_, err := alice.Propose(ctx, models.StringContext("x"), []models.AccountID{bob.Account().AccountID})
	if !errors.Is(err, ErrVoterKeyUnknown) {
		t.Fatalf("expected ErrVoterKeyUnknown, got %v", err)
	}
	if n.store.Len() != 0 {
		t.Fatalf("nothing should be submitted, store has %d remarks", n.store.Len())
	}
}

func TestProposeToSelfWithoutAnnouncement(t *testing.T) {
	ctx := context.Background()
	n := newNetwork()
	alice := n.client(t, "//Alice")
	vc := models.StringContext("solo")
	if _, err := alice.Propose(ctx, vc, []models.AccountID{alice.Account().AccountID, alice.Account().AccountID}); err != nil {
		t.Fatalf("propose: %v", err)
	}
	// Context announcement plus one deduplicated invite.
	if n.store.Len() != 2 {
		t.Fatalf("expected 2 remarks, got %d", n.store.Len())
	}
	if _, err := alice.Commit(ctx, vc, models.VoteAye); err != nil {
		t.Fatalf("commit: %v", err)
	}
}

func TestCommitAndRevealPreconditions(t *testing.T) {
	ctx := context.Background()
	n := newNetwork()
	alice := n.client(t, "//Alice")
	bob := n.client(t, "//Bob")
	charlie := n.client(t, "//Charlie")
	announceAll(t, alice, bob, charlie)
	vc := models.StringContext("ctx")

	if _, err := bob.Commit(ctx, vc, models.VoteAye); !errors.Is(err, ErrContextNotFound) {
		t.Fatalf("expected ErrContextNotFound, got %v", err)
	}
	if _, err := alice.Propose(ctx, vc, []models.AccountID{bob.Account().AccountID}); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := charlie.Commit(ctx, vc, models.VoteAye); !errors.Is(err, ErrNotInvited) {
		t.Fatalf("expected ErrNotInvited, got %v", err)
	}
	if _, err := bob.Commit(ctx, vc, models.Vote(9)); !errors.Is(err, ErrInvalidVote) {
		t.Fatalf("expected ErrInvalidVote, got %v", err)
	}
	if _, err := bob.Reveal(ctx, vc); !errors.Is(err, ErrNothingToReveal) {
		t.Fatalf("expected ErrNothingToReveal, got %v", err)
	}
	if _, err := bob.Commit(ctx, vc, models.VoteNay); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := bob.Reveal(ctx, vc); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if _, err := bob.Reveal(ctx, vc); !errors.Is(err, ErrAlreadyRevealed) {
		t.Fatalf("expected ErrAlreadyRevealed, got %v", err)
	}
	pending, err := bob.PendingReveals(ctx)
	if err != nil || len(pending) != 0 {
		t.Fatalf("no reveals should be pending: %v, %v", pending, err)
	}
}

func TestRecommitReplacesEarlierVote(t *testing.T) {
	ctx := context.Background()
	n := newNetwork()
	alice := n.client(t, "//Alice")
	bob := n.client(t, "//Bob")
	announceAll(t, alice, bob)
	vc := models.StringContext("ctx")
	if _, err := alice.Propose(ctx, vc, []models.AccountID{bob.Account().AccountID}); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := bob.Commit(ctx, vc, models.VoteAye); err != nil {
		t.Fatalf("commit: %v", err)
	}
	second, err := bob.Commit(ctx, vc, models.VoteNay)
	if err != nil {
		t.Fatalf("recommit: %v", err)
	}
	if _, err := bob.Reveal(ctx, vc); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	s := summaryFor(t, bob, vc)
	st := s.Votes[bob.Account().AccountID]
	if st.Vote == nil || *st.Vote != models.VoteNay {
		t.Fatalf("expected the later vote, got %s", st)
	}
	if s.Commits[bob.Account().AccountID].Commitment != second.Commitment {
		t.Fatalf("live commit should be the second one")
	}
}

func TestAvailableVotersSorted(t *testing.T) {
	n := newNetwork()
	alice := n.client(t, "//Alice")
	bob := n.client(t, "//Bob")
	announceAll(t, bob, alice)
	got, err := alice.AvailableVoters(context.Background())
	if err != nil || len(got) != 2 {
		t.Fatalf("available voters: %v, %v", got, err)
	}
	if got[0].String() > got[1].String() {
		t.Fatalf("voters not sorted: %v", got)
	}
}

func TestNewClientValidation(t *testing.T) {
	n := newNetwork()
	if _, err := NewClient(nil, n.ledger, n.query); !errors.Is(err, ErrAccountRequired) {
		t.Fatalf("expected ErrAccountRequired, got %v", err)
	}
}

func TestRecommitAfterRevealIsPendingAgain(t *testing.T) {
	ctx := context.Background()
	n := newNetwork()
	alice := n.client(t, "//Alice")
	bob := n.client(t, "//Bob")
	announceAll(t, alice, bob)
	vc := models.StringContext("ctx")
	if _, err := alice.Propose(ctx, vc, []models.AccountID{bob.Account().AccountID}); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := bob.Commit(ctx, vc, models.VoteAye); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := bob.Reveal(ctx, vc); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if _, err := bob.Commit(ctx, vc, models.VoteNay); err != nil {
		t.Fatalf("recommit: %v", err)
	}

	st := summaryFor(t, bob, vc).Votes[bob.Account().AccountID]
	if !st.IsRevealed() || st.Reason != indexer.ReasonNoSecretMatched {
		t.Fatalf("old salt should not open the new commit, got %s", st)
	}
	pending, err := bob.PendingReveals(ctx)
	if err != nil || len(pending) != 1 || pending[0] != vc {
		t.Fatalf("recommit should be pending: %v, %v", pending, err)
	}

	if _, err := bob.Reveal(ctx, vc); err != nil {
		t.Fatalf("second reveal: %v", err)
	}
	st = summaryFor(t, bob, vc).Votes[bob.Account().AccountID]
	if st.Vote == nil || *st.Vote != models.VoteNay {
		t.Fatalf("expected revealed nay, got %s", st)
	}
}
