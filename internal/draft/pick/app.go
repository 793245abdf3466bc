package pick

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/openfantasy/draftcore/internal/draft"
	"github.com/openfantasy/draftcore/internal/draft/events"
	"github.com/openfantasy/draftcore/internal/draft/turn"
	"github.com/openfantasy/draftcore/internal/models"
	"github.com/rs/zerolog/log"
)

// DraftStore defines what the pick app layer needs from the draft record store.
type DraftStore interface {
	GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error)
	GetState(ctx context.Context, draftID uuid.UUID) (*models.DraftState, error)
}

// Repository defines what the pick app layer needs from the pick repository.
type Repository interface {
	// CommitPick appends the pick and swaps the state row in one transaction,
	// serialized per draft. It reports draft.ErrPlayerAlreadyDrafted or
	// draft.ErrStaleSubmission when a concurrent commit won the race.
	CommitPick(ctx context.Context, p *models.Pick, next *models.DraftState, completed bool) error
	GetLastPick(ctx context.Context, draftID uuid.UUID) (*models.Pick, error)
	PlayerTaken(ctx context.Context, draftID, playerID uuid.UUID) (bool, error)
	ListPicks(ctx context.Context, draftID uuid.UUID) ([]models.Pick, error)
	PickedPlayerIDs(ctx context.Context, draftID uuid.UUID) ([]uuid.UUID, error)
}

// OutboxApp defines what the pick app layer needs from the outbox.
type OutboxApp interface {
	InsertPickMadeEvent(ctx context.Context, draftID uuid.UUID, payload []byte) error
	InsertPickStartedEvent(ctx context.Context, draftID uuid.UUID, payload []byte) error
	InsertDraftCompletedEvent(ctx context.Context, draftID uuid.UUID, payload []byte) error
}

// App implements the pick commit protocol. All mutations of a draft's turn
// state during play flow through CommitPick; side effects become observable
// only after every precondition has passed.
type App struct {
	drafts DraftStore
	repo   Repository
	outbox OutboxApp
	clock  clockwork.Clock
}

// NewApp creates a new pick App.
func NewApp(drafts DraftStore, repo Repository, outbox OutboxApp, clock clockwork.Clock) *App {
	return &App{
		drafts: drafts,
		repo:   repo,
		outbox: outbox,
		clock:  clock,
	}
}

// CommitPick validates and applies a single pick, then advances the turn.
// A losing concurrent caller gets draft.ErrNotOnClock or
// draft.ErrStaleSubmission; state is never left partially written.
func (a *App) CommitPick(ctx context.Context, req CommitPickRequest) (*draft.Snapshot, error) {
	if err := a.validateCommitPickRequest(req); err != nil {
		return nil, err
	}

	d, err := a.drafts.GetDraft(ctx, req.DraftID)
	if err != nil {
		return nil, err
	}
	st, err := a.drafts.GetState(ctx, req.DraftID)
	if err != nil {
		return nil, err
	}

	// Exact duplicate of the last committed pick is an idempotent retry: the
	// caller's first attempt landed but the response was lost. Answer with
	// the committed snapshot. This must run before the on-clock check, which
	// has already moved past the retrying team.
	last, err := a.repo.GetLastPick(ctx, req.DraftID)
	if err != nil {
		return nil, fmt.Errorf("failed to read last pick: %w", err)
	}
	if last != nil && a.isDuplicateRetry(req, last) {
		log.Debug().
			Str("draft_id", req.DraftID.String()).
			Int("overall_pick", last.OverallPick).
			Msg("duplicate pick submission; returning committed state")
		return draft.SnapshotOf(st, a.clock.Now()), nil
	}

	if st.Status != models.DraftStatusDrafting {
		return nil, fmt.Errorf("%w: status is %s", draft.ErrInvalidState, st.Status)
	}
	if req.TeamID != st.OnClockTeam {
		return nil, draft.ErrNotOnClock
	}
	taken, err := a.repo.PlayerTaken(ctx, req.DraftID, req.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to check player availability: %w", err)
	}
	if taken {
		return nil, draft.ErrPlayerAlreadyDrafted
	}
	if req.OverallPick != 0 && req.OverallPick != st.OverallPick {
		return nil, draft.ErrStaleSubmission
	}

	now := a.clock.Now()
	p := &models.Pick{
		ID:          uuid.New(),
		DraftID:     req.DraftID,
		Round:       st.Round,
		PickInRound: st.PickInRound,
		OverallPick: st.OverallPick,
		TeamID:      req.TeamID,
		PlayerID:    req.PlayerID,
		Source:      req.Source,
		IdemKey:     req.IdemKey,
		PickedAt:    now,
	}

	nextRound, nextPick := turn.Advance(st.Round, st.PickInRound, d.TeamCount())
	completed := turn.Complete(nextRound, d.Settings.Rounds)

	next := *st
	next.UpdatedAt = now
	if completed {
		// Terminal: position fields stay at the final pick.
		next.Status = models.DraftStatusCompleted
		next.DeadlineAt = nil
	} else {
		next.Round = nextRound
		next.PickInRound = nextPick
		next.OverallPick = st.OverallPick + 1
		next.OnClockTeam = turn.OnClock(nextRound, nextPick, d.Settings.DraftOrder)
		if d.Settings.Timed() {
			deadline := now.Add(d.Settings.PickTime())
			next.DeadlineAt = &deadline
		} else {
			next.DeadlineAt = nil
		}
	}

	if err := a.repo.CommitPick(ctx, p, &next, completed); err != nil {
		return nil, err
	}

	a.emitPickMade(ctx, p, &next)
	if completed {
		a.emitDraftCompleted(ctx, d, p)
	} else {
		a.emitPickStarted(ctx, &next)
	}

	log.Info().
		Str("draft_id", req.DraftID.String()).
		Str("team_id", req.TeamID.String()).
		Str("player_id", req.PlayerID.String()).
		Str("source", string(req.Source)).
		Int("overall_pick", p.OverallPick).
		Bool("completed", completed).
		Msg("pick committed")
	return draft.SnapshotOf(&next, now), nil
}

// ListPicks returns all committed picks for a draft ordered by overall pick.
func (a *App) ListPicks(ctx context.Context, draftID uuid.UUID) ([]models.Pick, error) {
	picks, err := a.repo.ListPicks(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to list picks: %w", err)
	}
	return picks, nil
}

// PickedPlayerIDs returns the ids of every player already taken in a draft.
func (a *App) PickedPlayerIDs(ctx context.Context, draftID uuid.UUID) ([]uuid.UUID, error) {
	ids, err := a.repo.PickedPlayerIDs(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to list picked players: %w", err)
	}
	return ids, nil
}

func (a *App) isDuplicateRetry(req CommitPickRequest, last *models.Pick) bool {
	if req.TeamID != last.TeamID || req.PlayerID != last.PlayerID {
		return false
	}
	if req.OverallPick != 0 && req.OverallPick != last.OverallPick {
		return false
	}
	if req.IdemKey != "" && last.IdemKey != "" && req.IdemKey != last.IdemKey {
		return false
	}
	return true
}

func (a *App) validateCommitPickRequest(req CommitPickRequest) error {
	if req.DraftID == uuid.Nil {
		return fmt.Errorf("%w: draft_id is required", draft.ErrInvalidRequest)
	}
	if req.TeamID == uuid.Nil {
		return fmt.Errorf("%w: team_id is required", draft.ErrInvalidRequest)
	}
	if req.PlayerID == uuid.Nil {
		return fmt.Errorf("%w: player_id is required", draft.ErrInvalidRequest)
	}
	if req.OverallPick < 0 {
		return fmt.Errorf("%w: overall_pick cannot be negative", draft.ErrInvalidRequest)
	}
	switch req.Source {
	case models.PickSourceHuman, models.PickSourceAutopick:
		return nil
	default:
		return fmt.Errorf("%w: invalid pick source %q", draft.ErrInvalidRequest, req.Source)
	}
}

// Event emission. Failures are logged, not propagated: the commit is durable
// and the outbox relay replays unsent events from the store.

func (a *App) emitPickMade(ctx context.Context, p *models.Pick, next *models.DraftState) {
	payload := events.PickMadePayload{
		PickID:      p.ID.String(),
		DraftID:     p.DraftID.String(),
		TeamID:      p.TeamID.String(),
		PlayerID:    p.PlayerID.String(),
		Round:       p.Round,
		PickInRound: p.PickInRound,
		OverallPick: p.OverallPick,
		Source:      string(p.Source),
		MadeAt:      p.PickedAt,
		NextStatus:  string(next.Status),
	}
	if next.Status == models.DraftStatusDrafting {
		payload.NextOnClockTeam = next.OnClockTeam.String()
		payload.NextDeadlineAt = next.DeadlineAt
	}
	b, err := json.Marshal(payload)
	if err == nil {
		err = a.outbox.InsertPickMadeEvent(ctx, p.DraftID, b)
	}
	if err != nil {
		log.Error().Err(err).Str("draft_id", p.DraftID.String()).Msg("failed to emit PickMade event")
	}
}

func (a *App) emitPickStarted(ctx context.Context, next *models.DraftState) {
	b, err := json.Marshal(events.PickStartedPayload{
		DraftID:     next.DraftID.String(),
		TeamID:      next.OnClockTeam.String(),
		Round:       next.Round,
		PickInRound: next.PickInRound,
		OverallPick: next.OverallPick,
		StartedAt:   next.UpdatedAt,
		DeadlineAt:  next.DeadlineAt,
	})
	if err == nil {
		err = a.outbox.InsertPickStartedEvent(ctx, next.DraftID, b)
	}
	if err != nil {
		log.Error().Err(err).Str("draft_id", next.DraftID.String()).Msg("failed to emit PickStarted event")
	}
}

func (a *App) emitDraftCompleted(ctx context.Context, d *models.Draft, lastPick *models.Pick) {
	b, err := json.Marshal(events.DraftCompletedPayload{
		DraftID:     d.ID.String(),
		CompletedAt: lastPick.PickedAt,
		TotalPicks:  lastPick.OverallPick,
	})
	if err == nil {
		err = a.outbox.InsertDraftCompletedEvent(ctx, d.ID, b)
	}
	if err != nil {
		log.Error().Err(err).Str("draft_id", d.ID.String()).Msg("failed to emit DraftCompleted event")
	}
}
