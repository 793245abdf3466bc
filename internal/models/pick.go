package models

import (
	"time"

	"github.com/google/uuid"
)

// PickSource identifies who made a pick.
type PickSource string

const (
	PickSourceHuman    PickSource = "HUMAN"
	PickSourceAutopick PickSource = "AUTOPICK"
)

// Pick represents a single completed selection. Picks are append-only; for a
// given draft the overall_pick sequence has no gaps and no duplicates, and a
// player appears at most once.
type Pick struct {
	ID          uuid.UUID  `json:"id"`
	DraftID     uuid.UUID  `json:"draft_id"`
	Round       int        `json:"round"`
	PickInRound int        `json:"pick_in_round"`
	OverallPick int        `json:"overall_pick"`
	TeamID      uuid.UUID  `json:"team_id"`
	PlayerID    uuid.UUID  `json:"player_id"`
	Source      PickSource `json:"source"`
	IdemKey     string     `json:"idem_key,omitempty"`
	PickedAt    time.Time  `json:"picked_at"`
}
