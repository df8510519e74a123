package indexer

import (
	"context"
	"errors"

	"corevo/go-backend/internal/commitment"
	"corevo/go-backend/internal/crypto"
	"corevo/go-backend/internal/wire"
	"corevo/go-backend/pkg/models"

	"golang.org/x/sync/errgroup"
)

const (
	pathProposer = "proposer"
	pathVoter    = "voter"
	pathSelf     = "self"
)

// Resolve runs common salt recovery and reveal resolution using the
// encryption secrets in known. Contexts are processed concurrently; each
// goroutine only touches its own context state.
func (e *Engine) Resolve(ctx context.Context, known []KnownAccount) error {
	secrets := make(map[models.AccountID]crypto.KeyPair, len(known))
	for _, k := range known {
		secrets[k.AccountID] = k.Encryption
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.parallelism)
	for _, c := range e.order {
		cs := e.contexts[c]
		g.Go(func() error {
			if err := e.recoverCommonSalts(gctx, cs, secrets); err != nil {
				return err
			}
			e.resolveReveals(cs, secrets)
			return nil
		})
	}
	return g.Wait()
}

func (e *Engine) recoverCommonSalts(ctx context.Context, cs *contextState, secrets map[models.AccountID]crypto.KeyPair) error {
	if cs.proposer == nil {
		return nil
	}
	seen := make(map[models.Salt]struct{}, len(cs.commonSalts))
	for _, s := range cs.commonSalts {
		seen[s] = struct{}{}
	}
	add := func(path string, plaintext []byte, err error) {
		ok := err == nil && len(plaintext) == models.KeyLen
		e.metrics.RecordDecryption(path, ok)
		if !ok {
			return
		}
		var salt models.Salt
		copy(salt[:], plaintext)
		if _, dup := seen[salt]; dup {
			return
		}
		seen[salt] = struct{}{}
		cs.commonSalts = append(cs.commonSalts, salt)
	}

	proposer := *cs.proposer
	if pk, ok := secrets[proposer]; ok {
		for _, voter := range cs.voters {
			voterPub, ok := e.voterPublicKey(voter, secrets)
			if !ok {
				continue
			}
			for _, sealed := range cs.invites[voter] {
				if err := ctx.Err(); err != nil {
					return err
				}
				plain, err := crypto.DecryptFromSender(pk.Secret, voterPub, sealed)
				add(pathProposer, plain, err)
			}
		}
	}

	proposerPub, ok := e.pubKeys[proposer]
	if !ok {
		return nil
	}
	for _, voter := range cs.voters {
		vk, ok := secrets[voter]
		if !ok {
			continue
		}
		for _, sealed := range cs.invites[voter] {
			if err := ctx.Err(); err != nil {
				return err
			}
			plain, err := crypto.DecryptFromSender(vk.Secret, proposerPub, sealed)
			add(pathVoter, plain, err)
		}
	}
	return nil
}

// voterPublicKey prefers the announced key and falls back to a known account.
func (e *Engine) voterPublicKey(voter models.AccountID, secrets map[models.AccountID]crypto.KeyPair) ([crypto.KeySize]byte, bool) {
	if pk, ok := e.pubKeys[voter]; ok {
		return pk, true
	}
	if kp, ok := secrets[voter]; ok {
		return kp.Public, true
	}
	return [crypto.KeySize]byte{}, false
}

func (e *Engine) resolveReveals(cs *contextState, secrets map[models.AccountID]crypto.KeyPair) {
	if len(cs.commonSalts) == 0 {
		return
	}
	for voter, cd := range cs.commits {
		oneTime, ok := cs.revealedSalts[voter]
		if !ok {
			continue
		}
		if _, _, ok := commitment.MatchCommonSalt(oneTime, cs.commonSalts, cd.Commitment); !ok {
			cs.votes[voter] = RevealedErr(ReasonNoSecretMatched)
			e.metrics.RecordReveal("no_match")
			continue
		}
		kp, ok := secrets[voter]
		if !ok {
			cs.votes[voter] = RevealedErr(ReasonVoteUndisclosed)
			e.metrics.RecordReveal("undisclosed")
			continue
		}
		payload, err := openVoteAndSalt(kp, cd.EncryptedVoteAndSalt)
		e.metrics.RecordDecryption(pathSelf, err == nil)
		if err != nil || payload.OneTimeSalt != oneTime {
			cs.votes[voter] = RevealedErr(ReasonVoteUndisclosed)
			e.metrics.RecordReveal("undisclosed")
			continue
		}
		cs.votes[voter] = RevealedOK(payload.Vote)
		e.metrics.RecordReveal("ok")
	}
}

var ErrNoCommit = errors.New("no commit from account in context")

// OwnVote opens the self-sealed payload of account's commit in s.
func OwnVote(s *ContextSummary, account KnownAccount) (wire.VoteAndSalt, error) {
	if s == nil {
		return wire.VoteAndSalt{}, ErrNoCommit
	}
	cd, ok := s.Commits[account.AccountID]
	if !ok {
		return wire.VoteAndSalt{}, ErrNoCommit
	}
	return openVoteAndSalt(account.Encryption, cd.EncryptedVoteAndSalt)
}

func openVoteAndSalt(kp crypto.KeyPair, sealed []byte) (wire.VoteAndSalt, error) {
	plain, err := crypto.DecryptFromSender(kp.Secret, kp.Public, sealed)
	if err != nil {
		return wire.VoteAndSalt{}, err
	}
	return wire.DecodeVoteAndSalt(plain)
}
