package indexer

import (
	"log/slog"
	"maps"
	"slices"

	"corevo/go-backend/internal/metrics"
	"corevo/go-backend/internal/wire"
	"corevo/go-backend/pkg/models"
)

type contextState struct {
	proposer      *models.AccountID
	voters        []models.AccountID
	invites       map[models.AccountID][][]byte
	commonSalts   []models.Salt
	commits       map[models.AccountID]CommitData
	revealedSalts map[models.AccountID]models.Salt
	votes         map[models.AccountID]VoteStatus
}

func newContextState() *contextState {
	return &contextState{
		invites:       map[models.AccountID][][]byte{},
		commits:       map[models.AccountID]CommitData{},
		revealedSalts: map[models.AccountID]models.Salt{},
		votes:         map[models.AccountID]VoteStatus{},
	}
}

// Engine folds decoded remarks into per-context voting state.
// It is not safe for concurrent use; build one per query.
type Engine struct {
	logger      *slog.Logger
	metrics     *metrics.Metrics
	parallelism int

	order    []models.VotingContext
	contexts map[models.VotingContext]*contextState
	pubKeys  map[models.AccountID]models.EncryptionPublicKey
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithParallelism bounds the number of contexts resolved concurrently.
func WithParallelism(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:      slog.New(slog.DiscardHandler),
		parallelism: 4,
		contexts:    map[models.VotingContext]*contextState{},
		pubKeys:     map[models.AccountID]models.EncryptionPublicKey{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "indexer")
	return e
}

// Apply folds one message sent by sender. It never fails; inconsistent
// sequences end up as explicit vote states.
func (e *Engine) Apply(sender models.AccountID, env wire.Envelope) {
	if env.Message == nil {
		return
	}
	e.metrics.RecordMessage(env.Message.Kind().String())
	switch msg := env.Message.(type) {
	case wire.AnnounceOwnPubKey:
		e.pubKeys[sender] = msg.PubKey
	case wire.InviteVoter:
		cs := e.context(env.Context)
		if cs.proposer == nil {
			p := sender
			cs.proposer = &p
		} else if *cs.proposer != sender {
			e.logger.Debug("invite from non-proposer kept", "operation", "indexer.apply", "context", env.Context.String(), "sender", sender.String())
		}
		if _, ok := cs.invites[msg.Voter]; !ok {
			cs.voters = append(cs.voters, msg.Voter)
		}
		cs.invites[msg.Voter] = append(cs.invites[msg.Voter], msg.EncryptedCommonSalt)
	case wire.Commit:
		cs := e.context(env.Context)
		cs.votes[sender] = Committed(msg.Commitment)
		cs.commits[sender] = CommitData{Commitment: msg.Commitment, EncryptedVoteAndSalt: msg.EncryptedVoteAndSalt}
	case wire.RevealOneTimeSalt:
		cs := e.context(env.Context)
		cs.revealedSalts[sender] = msg.OneTimeSalt
		status, ok := cs.votes[sender]
		switch {
		case !ok:
			cs.votes[sender] = RevealedWithoutCommitment()
		case status.State == StateCommitted:
			cs.votes[sender] = RevealedErr(ReasonPendingBruteForce)
		}
	}
}

func (e *Engine) context(c models.VotingContext) *contextState {
	cs, ok := e.contexts[c]
	if !ok {
		cs = newContextState()
		e.contexts[c] = cs
		e.order = append(e.order, c)
	}
	return cs
}

// Snapshot copies the current state. Invited voters without activity are Uncast.
func (e *Engine) Snapshot() *VotingHistory {
	out := &VotingHistory{
		Contexts: make([]*ContextSummary, 0, len(e.order)),
		PubKeys:  maps.Clone(e.pubKeys),
	}
	for _, c := range e.order {
		cs := e.contexts[c]
		s := &ContextSummary{
			Context:       c,
			Voters:        slices.Clone(cs.voters),
			Votes:         maps.Clone(cs.votes),
			CommonSalts:   slices.Clone(cs.commonSalts),
			Commits:       make(map[models.AccountID]CommitData, len(cs.commits)),
			RevealedSalts: maps.Clone(cs.revealedSalts),
			Invites:       make(map[models.AccountID][][]byte, len(cs.invites)),
		}
		if cs.proposer != nil {
			p := *cs.proposer
			s.Proposer = &p
		}
		for _, v := range cs.voters {
			if _, ok := s.Votes[v]; !ok {
				s.Votes[v] = Uncast()
			}
		}
		for id, cd := range cs.commits {
			s.Commits[id] = CommitData{Commitment: cd.Commitment, EncryptedVoteAndSalt: slices.Clone(cd.EncryptedVoteAndSalt)}
		}
		for id, list := range cs.invites {
			copied := make([][]byte, len(list))
			for i, p := range list {
				copied[i] = slices.Clone(p)
			}
			s.Invites[id] = copied
		}
		out.Contexts = append(out.Contexts, s)
	}
	return out
}
