package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/openfantasy/draftcore/internal/draft/events"
	"github.com/openfantasy/draftcore/internal/draft/turn"
	"github.com/openfantasy/draftcore/internal/models"
	"github.com/rs/zerolog/log"
)

// Repository defines what the draft app layer needs from the draft repository.
type Repository interface {
	CreateDraft(ctx context.Context, req CreateDraftRequest) (*models.Draft, error)
	GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error)
	SetDraftStatus(ctx context.Context, id uuid.UUID, status models.DraftStatus, at time.Time) (*models.Draft, error)
	GetState(ctx context.Context, draftID uuid.UUID) (*models.DraftState, error)
	// BeginDrafting atomically flips a SCHEDULED draft to DRAFTING and seeds
	// its state row; it reports ErrConflict when the draft is no longer
	// SCHEDULED.
	BeginDrafting(ctx context.Context, st *models.DraftState, at time.Time) error
	// SwapState overwrites the state row only while its current status still
	// matches expect; otherwise it reports ErrConflict.
	SwapState(ctx context.Context, expect models.DraftStatus, st *models.DraftState) error
	ListDueDrafts(ctx context.Context, now time.Time, limit int) ([]DueDraft, error)
}

// OutboxApp defines what the draft app layer needs from the outbox.
type OutboxApp interface {
	InsertDraftStartedEvent(ctx context.Context, draftID uuid.UUID, payload []byte) error
	InsertDraftPausedEvent(ctx context.Context, draftID uuid.UUID, payload []byte) error
	InsertDraftResumedEvent(ctx context.Context, draftID uuid.UUID, payload []byte) error
	InsertPickStartedEvent(ctx context.Context, draftID uuid.UUID, payload []byte) error
}

// App handles draft lifecycle logic: creation, start, pause, resume, and the
// deadline queries the sweeper runs on.
type App struct {
	repo   Repository
	outbox OutboxApp
	clock  clockwork.Clock
}

// NewApp creates a new draft App.
func NewApp(repo Repository, outbox OutboxApp, clock clockwork.Clock) *App {
	return &App{
		repo:   repo,
		outbox: outbox,
		clock:  clock,
	}
}

// CreateDraft creates a new draft in SCHEDULED status.
func (a *App) CreateDraft(ctx context.Context, req CreateDraftRequest) (*models.Draft, error) {
	if err := a.validateCreateDraftRequest(req); err != nil {
		return nil, err
	}

	draft, err := a.repo.CreateDraft(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create draft: %w", err)
	}

	log.Info().
		Str("draft_id", draft.ID.String()).
		Str("league_id", draft.LeagueID.String()).
		Int("rounds", draft.Settings.Rounds).
		Int("teams", draft.TeamCount()).
		Msg("created draft")
	return draft, nil
}

// GetDraft retrieves a draft by ID.
func (a *App) GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	draft, err := a.repo.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}
	return draft, nil
}

// GetState retrieves the live turn state for a draft.
func (a *App) GetState(ctx context.Context, draftID uuid.UUID) (*models.DraftState, error) {
	return a.repo.GetState(ctx, draftID)
}

// GetSnapshot returns the committed state as a publishable snapshot.
func (a *App) GetSnapshot(ctx context.Context, draftID uuid.UUID) (*Snapshot, error) {
	st, err := a.repo.GetState(ctx, draftID)
	if err != nil {
		return nil, err
	}
	return SnapshotOf(st, a.clock.Now()), nil
}

// StartDraft moves a SCHEDULED draft to DRAFTING and seeds its state row:
// round 1, pick 1, first team in the order on the clock, a fresh deadline.
// Starting an already-drafting draft is an idempotent no-op.
func (a *App) StartDraft(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	draft, err := a.repo.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}

	switch draft.Status {
	case models.DraftStatusDrafting:
		return a.GetSnapshot(ctx, id)
	case models.DraftStatusScheduled:
		// proceed
	default:
		return nil, fmt.Errorf("%w: cannot start draft in status %s", ErrInvalidTransition, draft.Status)
	}

	// A bad order at drafting start is a fatal configuration error: the
	// draft stays SCHEDULED and an operator has to fix the order.
	if err := validateDraftOrder(draft.Settings.DraftOrder); err != nil {
		return nil, err
	}

	now := a.clock.Now()
	st := &models.DraftState{
		DraftID:     id,
		Status:      models.DraftStatusDrafting,
		Round:       1,
		PickInRound: 1,
		OverallPick: 1,
		OnClockTeam: turn.OnClock(1, 1, draft.Settings.DraftOrder),
		DeadlineAt:  nextDeadline(draft.Settings, now),
		UpdatedAt:   now,
	}
	if err := a.repo.BeginDrafting(ctx, st, now); err != nil {
		if errors.Is(err, ErrConflict) {
			// A concurrent start won the status flip. The state row exists;
			// report it.
			return a.GetSnapshot(ctx, id)
		}
		return nil, fmt.Errorf("failed to start draft: %w", err)
	}

	a.emitDraftStarted(ctx, draft, st, now)
	a.emitPickStarted(ctx, st, now)

	log.Info().
		Str("draft_id", id.String()).
		Str("on_clock", st.OnClockTeam.String()).
		Msg("draft started")
	return SnapshotOf(st, now), nil
}

// PauseDraft suspends the deadline clock. The remaining window is recorded
// for the audit trail; the deadline itself is cleared so the sweeper no
// longer sees the draft as due. Pausing a paused draft is a no-op.
func (a *App) PauseDraft(ctx context.Context, id uuid.UUID, reason string) (*Snapshot, error) {
	st, err := a.repo.GetState(ctx, id)
	if err != nil {
		return nil, err
	}

	switch st.Status {
	case models.DraftStatusPaused:
		return SnapshotOf(st, a.clock.Now()), nil
	case models.DraftStatusDrafting:
		// proceed
	default:
		return nil, fmt.Errorf("%w: cannot pause draft in status %s", ErrInvalidTransition, st.Status)
	}

	now := a.clock.Now()
	var remaining *int
	if st.DeadlineAt != nil {
		secs := int(st.DeadlineAt.Sub(now).Seconds())
		if secs < 0 {
			secs = 0
		}
		remaining = &secs
	}

	next := *st
	next.Status = models.DraftStatusPaused
	next.DeadlineAt = nil
	next.PausedRemainingSec = remaining
	next.UpdatedAt = now

	if err := a.repo.SwapState(ctx, models.DraftStatusDrafting, &next); err != nil {
		return nil, fmt.Errorf("failed to pause draft: %w", err)
	}
	if _, err := a.repo.SetDraftStatus(ctx, id, models.DraftStatusPaused, now); err != nil {
		return nil, fmt.Errorf("failed to mark draft paused: %w", err)
	}

	a.emitDraftPaused(ctx, id, now, remaining, reason)

	log.Info().
		Str("draft_id", id.String()).
		Str("reason", reason).
		Msg("draft paused")
	return SnapshotOf(&next, now), nil
}

// ResumeDraft puts a paused draft back on the clock with a fresh full pick
// window. It deliberately does not restore the exact remaining time.
// Resuming a drafting draft is a no-op.
func (a *App) ResumeDraft(ctx context.Context, id uuid.UUID) (*Snapshot, error) {
	st, err := a.repo.GetState(ctx, id)
	if err != nil {
		return nil, err
	}

	switch st.Status {
	case models.DraftStatusDrafting:
		return SnapshotOf(st, a.clock.Now()), nil
	case models.DraftStatusPaused:
		// proceed
	default:
		return nil, fmt.Errorf("%w: cannot resume draft in status %s", ErrInvalidTransition, st.Status)
	}

	draft, err := a.repo.GetDraft(ctx, id)
	if err != nil {
		return nil, err
	}

	now := a.clock.Now()
	next := *st
	next.Status = models.DraftStatusDrafting
	next.DeadlineAt = nextDeadline(draft.Settings, now)
	next.PausedRemainingSec = nil
	next.UpdatedAt = now

	if err := a.repo.SwapState(ctx, models.DraftStatusPaused, &next); err != nil {
		return nil, fmt.Errorf("failed to resume draft: %w", err)
	}
	if _, err := a.repo.SetDraftStatus(ctx, id, models.DraftStatusDrafting, now); err != nil {
		return nil, fmt.Errorf("failed to mark draft drafting: %w", err)
	}

	a.emitDraftResumed(ctx, id, now, next.DeadlineAt)
	a.emitPickStarted(ctx, &next, now)

	log.Info().
		Str("draft_id", id.String()).
		Str("on_clock", next.OnClockTeam.String()).
		Msg("draft resumed")
	return SnapshotOf(&next, now), nil
}

// ListDueDrafts returns drafting drafts whose deadline has passed, bounded
// by limit. The sweeper is the only intended caller.
func (a *App) ListDueDrafts(ctx context.Context, now time.Time, limit int) ([]DueDraft, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than 0")
	}
	due, err := a.repo.ListDueDrafts(ctx, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due drafts: %w", err)
	}
	return due, nil
}

// nextDeadline computes the absolute deadline for a fresh pick window, or nil
// for untimed drafts.
func nextDeadline(settings models.DraftSettings, now time.Time) *time.Time {
	if !settings.Timed() {
		return nil
	}
	d := now.Add(settings.PickTime())
	return &d
}

// Validation

func (a *App) validateCreateDraftRequest(req CreateDraftRequest) error {
	if req.ID == uuid.Nil {
		return fmt.Errorf("%w: id is required", ErrInvalidRequest)
	}
	if req.LeagueID == uuid.Nil {
		return fmt.Errorf("%w: league_id is required", ErrInvalidRequest)
	}
	if req.Settings.Rounds < 1 {
		return fmt.Errorf("%w: rounds must be at least 1", ErrInvalidRequest)
	}
	if req.Settings.PickTimeSec < 0 {
		return fmt.Errorf("%w: pick_time_sec cannot be negative", ErrInvalidRequest)
	}
	if len(req.Settings.DraftOrder) < 2 {
		return fmt.Errorf("%w: draft_order needs at least 2 teams", ErrInvalidRequest)
	}
	return validateDraftOrder(req.Settings.DraftOrder)
}

func validateDraftOrder(order []uuid.UUID) error {
	if len(order) < 2 {
		return fmt.Errorf("%w: fewer than 2 teams", ErrMalformedDraftOrder)
	}
	seen := make(map[uuid.UUID]bool, len(order))
	for _, teamID := range order {
		if teamID == uuid.Nil {
			return fmt.Errorf("%w: contains nil team id", ErrMalformedDraftOrder)
		}
		if seen[teamID] {
			return fmt.Errorf("%w: duplicate team %s", ErrMalformedDraftOrder, teamID)
		}
		seen[teamID] = true
	}
	return nil
}

// Event emission. Outbox failures are logged, not propagated: the state
// mutation has already committed and the relay replays from the store.

func (a *App) emitDraftStarted(ctx context.Context, draft *models.Draft, st *models.DraftState, now time.Time) {
	payload, err := json.Marshal(events.DraftStartedPayload{
		DraftID:     draft.ID.String(),
		StartedAt:   now,
		TotalRounds: draft.Settings.Rounds,
		TotalPicks:  draft.TotalPicks(),
		DeadlineAt:  st.DeadlineAt,
	})
	if err == nil {
		err = a.outbox.InsertDraftStartedEvent(ctx, draft.ID, payload)
	}
	if err != nil {
		log.Error().Err(err).Str("draft_id", draft.ID.String()).Msg("failed to emit DraftStarted event")
	}
}

func (a *App) emitDraftPaused(ctx context.Context, id uuid.UUID, now time.Time, remaining *int, reason string) {
	payload, err := json.Marshal(events.DraftPausedPayload{
		DraftID:      id.String(),
		PausedAt:     now,
		RemainingSec: remaining,
		Reason:       reason,
	})
	if err == nil {
		err = a.outbox.InsertDraftPausedEvent(ctx, id, payload)
	}
	if err != nil {
		log.Error().Err(err).Str("draft_id", id.String()).Msg("failed to emit DraftPaused event")
	}
}

func (a *App) emitDraftResumed(ctx context.Context, id uuid.UUID, now time.Time, deadline *time.Time) {
	payload, err := json.Marshal(events.DraftResumedPayload{
		DraftID:    id.String(),
		ResumedAt:  now,
		DeadlineAt: deadline,
	})
	if err == nil {
		err = a.outbox.InsertDraftResumedEvent(ctx, id, payload)
	}
	if err != nil {
		log.Error().Err(err).Str("draft_id", id.String()).Msg("failed to emit DraftResumed event")
	}
}

func (a *App) emitPickStarted(ctx context.Context, st *models.DraftState, now time.Time) {
	payload, err := json.Marshal(events.PickStartedPayload{
		DraftID:     st.DraftID.String(),
		TeamID:      st.OnClockTeam.String(),
		Round:       st.Round,
		PickInRound: st.PickInRound,
		OverallPick: st.OverallPick,
		StartedAt:   now,
		DeadlineAt:  st.DeadlineAt,
	})
	if err == nil {
		err = a.outbox.InsertPickStartedEvent(ctx, st.DraftID, payload)
	}
	if err != nil {
		log.Error().Err(err).Str("draft_id", st.DraftID.String()).Msg("failed to emit PickStarted event")
	}
}
