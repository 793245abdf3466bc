package autopick

import (
	"github.com/google/uuid"
	"github.com/openfantasy/draftcore/internal/catalog"
	"github.com/openfantasy/draftcore/internal/draft"
)

// Strategy selects a player from the available pool. Implementations must be
// deterministic given the same pool and counts, and must never return a
// player outside the pool.
type Strategy interface {
	Choose(pool []catalog.Player, positionCounts map[string]int) (uuid.UUID, error)
}

// BestAvailable picks the best-ranked player whose position is still under
// this team's cap. With no caps it is a pure best-player-available policy.
type BestAvailable struct {
	// PositionCaps limits how many players a team may hold per position.
	// A position absent from the map is uncapped.
	PositionCaps map[string]int
}

// Choose returns the first eligible player in rank order.
func (s BestAvailable) Choose(pool []catalog.Player, positionCounts map[string]int) (uuid.UUID, error) {
	for _, p := range pool {
		if cap, capped := s.PositionCaps[p.Position]; capped && positionCounts[p.Position] >= cap {
			continue
		}
		return p.ID, nil
	}
	return uuid.Nil, draft.ErrNoEligiblePlayer
}
