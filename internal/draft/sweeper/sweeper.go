package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/openfantasy/draftcore/internal/draft"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Outcome classifies what one sweep cycle did for one due draft.
type Outcome string

const (
	OutcomeAutopicked Outcome = "autopicked"
	OutcomeLockHeld   Outcome = "lock_held"
	OutcomeNoOp       Outcome = "noop"
	OutcomeError      Outcome = "error"
)

// DraftResult is the per-draft record inside a sweep Result.
type DraftResult struct {
	DraftID uuid.UUID `json:"draft_id"`
	Outcome Outcome   `json:"outcome"`
	Err     string    `json:"error,omitempty"`
}

// Result summarizes one sweep invocation.
type Result struct {
	Attempted int           `json:"attempted"`
	Succeeded int           `json:"succeeded"`
	PerDraft  []DraftResult `json:"per_draft"`
}

// DueLister lists drafting drafts whose deadline has passed.
type DueLister interface {
	ListDueDrafts(ctx context.Context, now time.Time, limit int) ([]draft.DueDraft, error)
}

// Resolver autopicks for a single due draft. A (nil, nil) return means the
// deadline was no longer expired by the time the resolver looked.
type Resolver interface {
	Resolve(ctx context.Context, draftID uuid.UUID) (*draft.Snapshot, error)
}

// Config tunes a Sweeper. Zero values fall back to defaults.
type Config struct {
	BatchLimit  int           // max due drafts scanned per sweep
	Concurrency int           // max drafts resolved in parallel
	LockTTL     time.Duration // how long a per-deadline lock shields other sweepers
}

const (
	defaultBatchLimit  = 100
	defaultConcurrency = 8
	defaultLockTTL     = 30 * time.Second
)

// Sweeper scans for expired deadlines and triggers autopicks. It is safe to
// run multiple instances against the same store: the per-deadline lock is the
// sole dedupe mechanism, and a held lock is skipped, never waited on.
type Sweeper struct {
	drafts   DueLister
	resolver Resolver
	locker   Locker
	clock    clockwork.Clock
	holder   string
	cfg      Config
}

// New creates a Sweeper. holder identifies this instance in lock rows.
func New(drafts DueLister, resolver Resolver, locker Locker, clock clockwork.Clock, cfg Config) *Sweeper {
	if cfg.BatchLimit <= 0 {
		cfg.BatchLimit = defaultBatchLimit
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	return &Sweeper{
		drafts:   drafts,
		resolver: resolver,
		locker:   locker,
		clock:    clock,
		holder:   uuid.NewString(),
		cfg:      cfg,
	}
}

// Sweep runs one cycle: list due drafts, then resolve each under its lock.
// Individual draft failures are recorded in the Result, not returned; only a
// failure to scan at all is an error.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (*Result, error) {
	due, err := s.drafts.ListDueDrafts(ctx, now, s.cfg.BatchLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due drafts: %w", err)
	}
	res := &Result{
		Attempted: len(due),
		PerDraft:  make([]DraftResult, len(due)),
	}
	if len(due) == 0 {
		return res, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, d := range due {
		i, d := i, d
		g.Go(func() error {
			res.PerDraft[i] = s.sweepOne(gctx, d)
			return nil
		})
	}
	g.Wait()

	for _, dr := range res.PerDraft {
		if dr.Outcome == OutcomeAutopicked {
			res.Succeeded++
		}
	}
	log.Info().
		Int("attempted", res.Attempted).
		Int("succeeded", res.Succeeded).
		Msg("sweep complete")
	return res, nil
}

func (s *Sweeper) sweepOne(ctx context.Context, d draft.DueDraft) DraftResult {
	key := lockKey(d)
	acquired, err := s.locker.Acquire(ctx, key, s.holder, s.cfg.LockTTL)
	if err != nil {
		log.Error().Err(err).Str("draft_id", d.DraftID.String()).Msg("sweep lock acquire failed")
		return DraftResult{DraftID: d.DraftID, Outcome: OutcomeError, Err: err.Error()}
	}
	if !acquired {
		return DraftResult{DraftID: d.DraftID, Outcome: OutcomeLockHeld}
	}

	snap, err := s.resolver.Resolve(ctx, d.DraftID)
	if err != nil {
		// Keep the lock until its TTL so a fatal draft does not get retried
		// hot by every subsequent sweep.
		log.Error().Err(err).Str("draft_id", d.DraftID.String()).Msg("autopick failed")
		return DraftResult{DraftID: d.DraftID, Outcome: OutcomeError, Err: err.Error()}
	}
	if relErr := s.locker.Release(ctx, key, s.holder); relErr != nil {
		log.Warn().Err(relErr).Str("draft_id", d.DraftID.String()).Msg("sweep lock release failed")
	}
	if snap == nil {
		return DraftResult{DraftID: d.DraftID, Outcome: OutcomeNoOp}
	}
	return DraftResult{DraftID: d.DraftID, Outcome: OutcomeAutopicked}
}

// lockKey scopes the lock to one draft at one specific deadline. A human pick
// or a resume moves the deadline, which naturally yields a fresh key.
func lockKey(d draft.DueDraft) string {
	return fmt.Sprintf("draft:%s:%d", d.DraftID, d.DeadlineAt.UnixMilli())
}
