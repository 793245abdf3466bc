package models

import (
	"time"

	"github.com/google/uuid"
)

// DraftState is the live turn snapshot for a draft. There is exactly one row
// per draft and it is continuously overwritten, never appended. It is mutated
// only by the pick commit path and the pause/resume controller.
type DraftState struct {
	DraftID     uuid.UUID   `json:"draft_id"`
	Status      DraftStatus `json:"status"`
	Round       int         `json:"round"`         // 1-indexed
	PickInRound int         `json:"pick_in_round"` // 1-indexed, <= team count
	OverallPick int         `json:"overall_pick"`
	OnClockTeam uuid.UUID   `json:"on_clock_team_id"`
	DeadlineAt  *time.Time  `json:"deadline_at,omitempty"` // nil while paused, untimed, or completed

	// PausedRemainingSec records the unexpired portion of the pick window at
	// pause time. Resume deliberately restarts a full window; this is kept
	// for the audit trail only.
	PausedRemainingSec *int `json:"paused_remaining_sec,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Expired reports whether the state's deadline has passed at the given time.
func (s *DraftState) Expired(now time.Time) bool {
	return s.DeadlineAt != nil && !now.Before(*s.DeadlineAt)
}
