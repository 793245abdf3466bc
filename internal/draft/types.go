package draft

import (
	"time"

	"github.com/google/uuid"
	"github.com/openfantasy/draftcore/internal/models"
)

// CreateDraftRequest represents a request to create a new draft.
type CreateDraftRequest struct {
	ID          uuid.UUID            `json:"id"`
	LeagueID    uuid.UUID            `json:"league_id"`
	Settings    models.DraftSettings `json:"settings"`
	ScheduledAt *time.Time           `json:"scheduled_at,omitempty"`
}

// DueDraft is a drafting draft whose deadline has passed.
type DueDraft struct {
	DraftID    uuid.UUID `json:"draft_id"`
	DeadlineAt time.Time `json:"deadline_at"`
}

// Snapshot is the committed turn state published to subscribers after every
// successful commit, pause, or resume. It always reflects a value that was
// actually persisted, never a speculative one.
type Snapshot struct {
	DraftID     uuid.UUID          `json:"draft_id"`
	Status      models.DraftStatus `json:"status"`
	Round       int                `json:"round"`
	PickInRound int                `json:"pick_in_round"`
	OverallPick int                `json:"overall_pick"`
	OnClockTeam uuid.UUID          `json:"on_clock_team_id"`
	DeadlineAt  *time.Time         `json:"deadline_at,omitempty"`
	ServerNow   time.Time          `json:"server_now"` // for client clock sync
}

// SnapshotOf builds a Snapshot from a persisted state row.
func SnapshotOf(st *models.DraftState, now time.Time) *Snapshot {
	return &Snapshot{
		DraftID:     st.DraftID,
		Status:      st.Status,
		Round:       st.Round,
		PickInRound: st.PickInRound,
		OverallPick: st.OverallPick,
		OnClockTeam: st.OnClockTeam,
		DeadlineAt:  st.DeadlineAt,
		ServerNow:   now,
	}
}
