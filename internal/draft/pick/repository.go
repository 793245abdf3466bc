package pick

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openfantasy/draftcore/internal/draft"
	"github.com/openfantasy/draftcore/internal/models"
)

// PGRepository implements Repository on top of Postgres.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository creates a new Postgres-backed pick repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// CommitPick appends the pick row and swaps the live state row in one
// transaction. Concurrent commits for the same draft are serialized by an
// advisory lock; a writer that read stale state loses on the state CAS and
// gets draft.ErrStaleSubmission.
func (r *PGRepository) CommitPick(ctx context.Context, p *models.Pick, next *models.DraftState, completed bool) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin pick transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, p.DraftID.String())
	if err != nil {
		return fmt.Errorf("failed to take draft lock: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO picks (id, draft_id, round, pick_in_round, overall_pick, team_id, player_id, source, idem_key, picked_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10)`,
		p.ID, p.DraftID, p.Round, p.PickInRound, p.OverallPick,
		p.TeamID, p.PlayerID, p.Source, p.IdemKey, p.PickedAt,
	)
	if err != nil {
		return mapPickInsertError(err)
	}

	// CAS on the position the caller validated against. Zero rows means a
	// concurrent commit or a pause landed first.
	tag, err := tx.Exec(ctx, `
		UPDATE draft_states
		SET status = $2, round = $3, pick_in_round = $4, overall_pick = $5,
		    on_clock_team_id = $6, deadline_at = $7, paused_remaining_sec = NULL,
		    updated_at = $8
		WHERE draft_id = $1 AND overall_pick = $9 AND status = 'DRAFTING'`,
		next.DraftID, next.Status, next.Round, next.PickInRound, next.OverallPick,
		next.OnClockTeam, next.DeadlineAt, next.UpdatedAt, p.OverallPick,
	)
	if err != nil {
		return fmt.Errorf("failed to advance draft state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return draft.ErrStaleSubmission
	}

	if completed {
		_, err = tx.Exec(ctx, `
			UPDATE drafts
			SET status = 'COMPLETED', completed_at = $2, updated_at = $2
			WHERE id = $1`,
			p.DraftID, next.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to complete draft: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit pick transaction: %w", err)
	}
	return nil
}

// GetLastPick returns the most recent pick for a draft, or nil when none exist.
func (r *PGRepository) GetLastPick(ctx context.Context, draftID uuid.UUID) (*models.Pick, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, draft_id, round, pick_in_round, overall_pick, team_id, player_id, source, COALESCE(idem_key, ''), picked_at
		FROM picks
		WHERE draft_id = $1
		ORDER BY overall_pick DESC
		LIMIT 1`,
		draftID,
	)
	p, err := scanPick(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last pick: %w", err)
	}
	return p, nil
}

// PlayerTaken reports whether a player has already been picked in a draft.
func (r *PGRepository) PlayerTaken(ctx context.Context, draftID, playerID uuid.UUID) (bool, error) {
	var taken bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM picks WHERE draft_id = $1 AND player_id = $2)`,
		draftID, playerID,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("failed to check player availability: %w", err)
	}
	return taken, nil
}

// ListPicks returns every pick for a draft in commit order.
func (r *PGRepository) ListPicks(ctx context.Context, draftID uuid.UUID) ([]models.Pick, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, draft_id, round, pick_in_round, overall_pick, team_id, player_id, source, COALESCE(idem_key, ''), picked_at
		FROM picks
		WHERE draft_id = $1
		ORDER BY overall_pick`,
		draftID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query picks: %w", err)
	}
	defer rows.Close()

	var picks []models.Pick
	for rows.Next() {
		p, err := scanPick(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pick: %w", err)
		}
		picks = append(picks, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate picks: %w", err)
	}
	return picks, nil
}

// PickedPlayerIDs returns the ids of every player already taken in a draft.
func (r *PGRepository) PickedPlayerIDs(ctx context.Context, draftID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT player_id FROM picks WHERE draft_id = $1`,
		draftID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query picked players: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan player id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate picked players: %w", err)
	}
	return ids, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPick(row rowScanner) (*models.Pick, error) {
	var p models.Pick
	err := row.Scan(
		&p.ID, &p.DraftID, &p.Round, &p.PickInRound, &p.OverallPick,
		&p.TeamID, &p.PlayerID, &p.Source, &p.IdemKey, &p.PickedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// mapPickInsertError translates unique violations into domain errors. The DB
// constraints are the backstop for races the application checks did not see.
func mapPickInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "picks_draft_id_player_id_key":
			return draft.ErrPlayerAlreadyDrafted
		case "picks_draft_id_overall_pick_key":
			return draft.ErrStaleSubmission
		}
	}
	return fmt.Errorf("failed to insert pick: %w", err)
}
