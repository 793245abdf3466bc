package autopick

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/openfantasy/draftcore/internal/catalog"
	"github.com/openfantasy/draftcore/internal/draft"
	"github.com/openfantasy/draftcore/internal/draft/pick"
	"github.com/openfantasy/draftcore/internal/models"
	"github.com/rs/zerolog/log"
)

// poolLimit bounds the candidate window fetched per autopick. Position caps
// can disqualify the top of the pool, so fetch more than one.
const poolLimit = 50

// StateStore defines what the resolver needs from the draft record store.
type StateStore interface {
	GetState(ctx context.Context, draftID uuid.UUID) (*models.DraftState, error)
}

// Catalog defines what the resolver needs from the player catalog.
type Catalog interface {
	RankedAvailable(ctx context.Context, draftID uuid.UUID, limit int) ([]catalog.Player, error)
	TeamPositionCounts(ctx context.Context, draftID, teamID uuid.UUID) (map[string]int, error)
}

// Picker defines what the resolver needs from the pick commit protocol.
type Picker interface {
	CommitPick(ctx context.Context, req pick.CommitPickRequest) (*draft.Snapshot, error)
}

// Resolver picks on behalf of a team whose clock expired. It holds no state
// of its own; every resolution re-reads the draft fresh.
type Resolver struct {
	states   StateStore
	catalog  Catalog
	picker   Picker
	strategy Strategy
	clock    clockwork.Clock
}

// NewResolver creates a new Resolver.
func NewResolver(states StateStore, cat Catalog, picker Picker, strategy Strategy, clock clockwork.Clock) *Resolver {
	return &Resolver{
		states:   states,
		catalog:  cat,
		picker:   picker,
		strategy: strategy,
		clock:    clock,
	}
}

// Resolve autopicks for the given draft if its deadline has truly expired.
// It returns (nil, nil) when there is nothing to do: a human pick advanced
// the clock, or the draft paused, between the sweep scan and now.
func (r *Resolver) Resolve(ctx context.Context, draftID uuid.UUID) (*draft.Snapshot, error) {
	// The sweep lock window can be seconds long. Re-read before acting.
	st, err := r.states.GetState(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to read draft state: %w", err)
	}
	now := r.clock.Now()
	if st.Status != models.DraftStatusDrafting || !st.Expired(now) {
		log.Debug().
			Str("draft_id", draftID.String()).
			Str("status", string(st.Status)).
			Msg("deadline no longer expired, skipping autopick")
		return nil, nil
	}

	pool, err := r.catalog.RankedAvailable(ctx, draftID, poolLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load available players: %w", err)
	}
	counts, err := r.catalog.TeamPositionCounts(ctx, draftID, st.OnClockTeam)
	if err != nil {
		return nil, fmt.Errorf("failed to load position counts: %w", err)
	}
	playerID, err := r.strategy.Choose(pool, counts)
	if err != nil {
		// No eligible player is a configuration fault for this draft, not a
		// transient condition. Surface it so the operator sees it.
		return nil, fmt.Errorf("autopick for draft %s: %w", draftID, err)
	}

	snap, err := r.picker.CommitPick(ctx, pick.CommitPickRequest{
		DraftID:     draftID,
		TeamID:      st.OnClockTeam,
		PlayerID:    playerID,
		Source:      models.PickSourceAutopick,
		OverallPick: st.OverallPick,
	})
	if err != nil {
		if lostRace(err) {
			log.Info().
				Str("draft_id", draftID.String()).
				Err(err).
				Msg("autopick lost race to a concurrent commit, skipping")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to commit autopick: %w", err)
	}

	log.Info().
		Str("draft_id", draftID.String()).
		Str("team_id", st.OnClockTeam.String()).
		Str("player_id", playerID.String()).
		Int("overall_pick", st.OverallPick).
		Msg("autopicked for expired deadline")
	return snap, nil
}

// lostRace reports whether a commit failure means a concurrent actor already
// advanced or suspended the draft. Those are expected outcomes of the sweep
// re-check window, not faults.
func lostRace(err error) bool {
	return errors.Is(err, draft.ErrNotOnClock) ||
		errors.Is(err, draft.ErrStaleSubmission) ||
		errors.Is(err, draft.ErrInvalidState) ||
		errors.Is(err, draft.ErrPlayerAlreadyDrafted)
}
