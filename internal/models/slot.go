package models

import (
	"time"

	"github.com/google/uuid"
)

// SlotKind distinguishes placeholder (bot) slots from claimed human slots.
type SlotKind string

const (
	SlotKindBot   SlotKind = "BOT"
	SlotKindHuman SlotKind = "HUMAN"
)

// Slot is a draft position that may be occupied by a placeholder until a
// human claims it. Claiming is one-way: bot to human, never reversed.
type Slot struct {
	ID          uuid.UUID  `json:"id"`
	DraftID     uuid.UUID  `json:"draft_id"`
	SlotIndex   int        `json:"slot_index"` // 1-indexed
	Kind        SlotKind   `json:"kind"`
	OwnerID     *uuid.UUID `json:"owner_id,omitempty"` // nil until claimed
	DisplayName string     `json:"display_name"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
}
