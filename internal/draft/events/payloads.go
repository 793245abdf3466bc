// Package events holds the payload types shared between the draft core, the
// outbox relay, and the gateway.
package events

import "time"

// Event type names as they appear in the outbox and on the bus.
const (
	TypeDraftStarted   = "DraftStarted"
	TypeDraftPaused    = "DraftPaused"
	TypeDraftResumed   = "DraftResumed"
	TypeDraftCompleted = "DraftCompleted"
	TypePickStarted    = "PickStarted"
	TypePickMade       = "PickMade"
	TypeSlotClaimed    = "SlotClaimed"
)

// DraftStartedPayload is the payload for a DraftStarted event.
type DraftStartedPayload struct {
	DraftID     string     `json:"draft_id"`
	StartedAt   time.Time  `json:"started_at"`
	TotalRounds int        `json:"total_rounds"`
	TotalPicks  int        `json:"total_picks"`
	DeadlineAt  *time.Time `json:"deadline_at,omitempty"`
}

// DraftPausedPayload is the audit payload for a commissioner pause.
type DraftPausedPayload struct {
	DraftID      string    `json:"draft_id"`
	PausedAt     time.Time `json:"paused_at"`
	RemainingSec *int      `json:"remaining_sec,omitempty"`
	Reason       string    `json:"reason"`
}

// DraftResumedPayload is the audit payload for a commissioner resume.
type DraftResumedPayload struct {
	DraftID    string     `json:"draft_id"`
	ResumedAt  time.Time  `json:"resumed_at"`
	DeadlineAt *time.Time `json:"deadline_at,omitempty"`
}

// DraftCompletedPayload is the payload for a DraftCompleted event.
type DraftCompletedPayload struct {
	DraftID     string    `json:"draft_id"`
	CompletedAt time.Time `json:"completed_at"`
	TotalPicks  int       `json:"total_picks"`
}

// PickStartedPayload is emitted whenever a new team goes on the clock.
type PickStartedPayload struct {
	DraftID     string     `json:"draft_id"`
	TeamID      string     `json:"team_id"`
	Round       int        `json:"round"`
	PickInRound int        `json:"pick_in_round"`
	OverallPick int        `json:"overall_pick"`
	StartedAt   time.Time  `json:"started_at"`
	DeadlineAt  *time.Time `json:"deadline_at,omitempty"`
}

// PickMadePayload is emitted after a pick commits, along with the new
// committed snapshot fields subscribers need to render the next turn.
type PickMadePayload struct {
	PickID      string    `json:"pick_id"`
	DraftID     string    `json:"draft_id"`
	TeamID      string    `json:"team_id"`
	PlayerID    string    `json:"player_id"`
	Round       int       `json:"round"`
	PickInRound int       `json:"pick_in_round"`
	OverallPick int       `json:"overall_pick"`
	Source      string    `json:"source"`
	MadeAt      time.Time `json:"made_at"`

	NextStatus      string     `json:"next_status"`
	NextOnClockTeam string     `json:"next_on_clock_team_id,omitempty"`
	NextDeadlineAt  *time.Time `json:"next_deadline_at,omitempty"`
}

// SlotClaimedPayload is emitted when a human claims a placeholder slot.
type SlotClaimedPayload struct {
	DraftID     string    `json:"draft_id"`
	SlotIndex   int       `json:"slot_index"`
	OwnerID     string    `json:"owner_id"`
	DisplayName string    `json:"display_name"`
	ClaimedAt   time.Time `json:"claimed_at"`
}
