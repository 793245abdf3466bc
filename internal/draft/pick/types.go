package pick

import (
	"github.com/google/uuid"
	"github.com/openfantasy/draftcore/internal/models"
)

// CommitPickRequest represents one selection attempt, human or autopick.
type CommitPickRequest struct {
	DraftID  uuid.UUID         `json:"draft_id"`
	TeamID   uuid.UUID         `json:"team_id"`
	PlayerID uuid.UUID         `json:"player_id"`
	Source   models.PickSource `json:"source"`

	// OverallPick is the pick number the caller believes it is making.
	// Zero means "whatever the current turn is"; a non-zero mismatch against
	// the live state is rejected as stale.
	OverallPick int `json:"overall_pick,omitempty"`

	// IdemKey lets a caller retry a submission safely: a key matching the
	// last committed pick is answered with the committed snapshot.
	IdemKey string `json:"idem_key,omitempty"`
}
