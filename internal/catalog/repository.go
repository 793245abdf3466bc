package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository reads the player catalog and per-draft availability from
// Postgres. The catalog itself is loaded and ranked by an external pipeline;
// this layer only queries it.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository creates a new Postgres-backed catalog repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// RankedAvailable returns the best-ranked players not yet picked in the given
// draft, ordered by rank ascending. Equal ranks tiebreak on player id so the
// pool order, and any selection derived from it, is stable across calls.
func (r *PGRepository) RankedAvailable(ctx context.Context, draftID uuid.UUID, limit int) ([]Player, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.full_name, p.position, p.rank
		FROM players p
		WHERE NOT EXISTS (
			SELECT 1 FROM picks k WHERE k.draft_id = $1 AND k.player_id = p.id
		)
		ORDER BY p.rank, p.id
		LIMIT $2`,
		draftID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query available players: %w", err)
	}
	defer rows.Close()

	var players []Player
	for rows.Next() {
		var p Player
		if err := rows.Scan(&p.ID, &p.FullName, &p.Position, &p.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate players: %w", err)
	}
	return players, nil
}

// TeamPositionCounts returns how many players a team has already drafted at
// each position.
func (r *PGRepository) TeamPositionCounts(ctx context.Context, draftID, teamID uuid.UUID) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.position, COUNT(*)
		FROM picks k
		JOIN players p ON p.id = k.player_id
		WHERE k.draft_id = $1 AND k.team_id = $2
		GROUP BY p.position`,
		draftID, teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query position counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var position string
		var n int
		if err := rows.Scan(&position, &n); err != nil {
			return nil, fmt.Errorf("failed to scan position count: %w", err)
		}
		counts[position] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate position counts: %w", err)
	}
	return counts, nil
}
