package models

import (
	"time"

	"github.com/google/uuid"
)

// DraftStatus defines the lifecycle status of a draft.
type DraftStatus string

const (
	DraftStatusScheduled DraftStatus = "SCHEDULED"
	DraftStatusDrafting  DraftStatus = "DRAFTING"
	DraftStatusPaused    DraftStatus = "PAUSED"
	DraftStatusCompleted DraftStatus = "COMPLETED"
)

// Valid reports whether s is one of the four known statuses.
func (s DraftStatus) Valid() bool {
	switch s {
	case DraftStatusScheduled, DraftStatusDrafting, DraftStatusPaused, DraftStatusCompleted:
		return true
	}
	return false
}

// DraftSettings holds JSONB configuration for drafts.
type DraftSettings struct {
	Rounds      int         `json:"rounds"`
	PickTimeSec int         `json:"pick_time_sec"` // 0 = untimed
	DraftOrder  []uuid.UUID `json:"draft_order"`
}

// Timed reports whether picks in this draft run against a clock.
func (s DraftSettings) Timed() bool {
	return s.PickTimeSec > 0
}

// PickTime returns the per-pick window as a duration.
func (s DraftSettings) PickTime() time.Duration {
	return time.Duration(s.PickTimeSec) * time.Second
}

// Draft represents a draft instance.
type Draft struct {
	ID          uuid.UUID     `json:"id"`
	LeagueID    uuid.UUID     `json:"league_id"`
	Status      DraftStatus   `json:"status"`
	Settings    DraftSettings `json:"settings"`
	ScheduledAt *time.Time    `json:"scheduled_at,omitempty"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// TeamCount returns the number of participating teams.
func (d *Draft) TeamCount() int {
	return len(d.Settings.DraftOrder)
}

// TotalPicks returns the number of picks a full draft produces.
func (d *Draft) TotalPicks() int {
	return d.Settings.Rounds * len(d.Settings.DraftOrder)
}
