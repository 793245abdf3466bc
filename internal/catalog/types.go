package catalog

import "github.com/google/uuid"

// Player is one entry in the externally ranked player catalog. Rank is a
// precomputed ordering where lower is better.
type Player struct {
	ID       uuid.UUID `json:"id"`
	FullName string    `json:"full_name"`
	Position string    `json:"position"`
	Rank     int       `json:"rank"`
}
