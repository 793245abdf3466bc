package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openfantasy/draftcore/internal/models"
)

// PGRepository persists drafts and their state rows in Postgres.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

func (r *PGRepository) CreateDraft(ctx context.Context, req CreateDraftRequest) (*models.Draft, error) {
	settings, err := json.Marshal(req.Settings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal draft settings: %w", err)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO drafts (id, league_id, status, settings, scheduled_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, league_id, status, settings, scheduled_at, started_at, completed_at, created_at, updated_at`,
		req.ID, req.LeagueID, models.DraftStatusScheduled, settings, req.ScheduledAt)

	draft, err := scanDraft(row)
	if err != nil {
		return nil, fmt.Errorf("failed to create draft: %w", err)
	}
	return draft, nil
}

func (r *PGRepository) GetDraft(ctx context.Context, id uuid.UUID) (*models.Draft, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, league_id, status, settings, scheduled_at, started_at, completed_at, created_at, updated_at
		FROM drafts WHERE id = $1`, id)

	draft, err := scanDraft(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	return draft, nil
}

func (r *PGRepository) SetDraftStatus(ctx context.Context, id uuid.UUID, status models.DraftStatus, at time.Time) (*models.Draft, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE drafts SET
			status = $2,
			started_at = CASE WHEN $2 = 'DRAFTING' AND started_at IS NULL THEN $3 ELSE started_at END,
			completed_at = CASE WHEN $2 = 'COMPLETED' THEN $3 ELSE completed_at END,
			updated_at = $3
		WHERE id = $1
		RETURNING id, league_id, status, settings, scheduled_at, started_at, completed_at, created_at, updated_at`,
		id, status, at)

	draft, err := scanDraft(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set draft status: %w", err)
	}
	return draft, nil
}

func (r *PGRepository) GetState(ctx context.Context, draftID uuid.UUID) (*models.DraftState, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT draft_id, status, round, pick_in_round, overall_pick, on_clock_team_id,
		       deadline_at, paused_remaining_sec, updated_at
		FROM draft_states WHERE draft_id = $1`, draftID)

	st, err := scanState(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft state: %w", err)
	}
	return st, nil
}

// BeginDrafting flips a SCHEDULED draft to DRAFTING and seeds its state row
// in one transaction. Either both writes land or neither does, so a failed
// start leaves the draft SCHEDULED and a retry works. Zero rows on the
// status flip means another starter won; the caller re-reads the state.
func (r *PGRepository) BeginDrafting(ctx context.Context, st *models.DraftState, at time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin start transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE drafts SET
			status = 'DRAFTING',
			started_at = COALESCE(started_at, $2),
			updated_at = $2
		WHERE id = $1 AND status = 'SCHEDULED'`,
		st.DraftID, at)
	if err != nil {
		return fmt.Errorf("failed to mark draft drafting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO draft_states (draft_id, status, round, pick_in_round, overall_pick,
		                          on_clock_team_id, deadline_at, paused_remaining_sec, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		st.DraftID, st.Status, st.Round, st.PickInRound, st.OverallPick,
		st.OnClockTeam, st.DeadlineAt, st.PausedRemainingSec, st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to seed draft state: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit draft start: %w", err)
	}
	return nil
}

func (r *PGRepository) SwapState(ctx context.Context, expect models.DraftStatus, st *models.DraftState) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE draft_states SET
			status = $2, round = $3, pick_in_round = $4, overall_pick = $5,
			on_clock_team_id = $6, deadline_at = $7, paused_remaining_sec = $8, updated_at = $9
		WHERE draft_id = $1 AND status = $10`,
		st.DraftID, st.Status, st.Round, st.PickInRound, st.OverallPick,
		st.OnClockTeam, st.DeadlineAt, st.PausedRemainingSec, st.UpdatedAt, expect)
	if err != nil {
		return fmt.Errorf("failed to swap draft state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (r *PGRepository) ListDueDrafts(ctx context.Context, now time.Time, limit int) ([]DueDraft, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT draft_id, deadline_at
		FROM draft_states
		WHERE status = 'DRAFTING' AND deadline_at IS NOT NULL AND deadline_at <= $1
		ORDER BY deadline_at
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list due drafts: %w", err)
	}
	defer rows.Close()

	var due []DueDraft
	for rows.Next() {
		var d DueDraft
		if err := rows.Scan(&d.DraftID, &d.DeadlineAt); err != nil {
			return nil, fmt.Errorf("failed to scan due draft: %w", err)
		}
		due = append(due, d)
	}
	return due, rows.Err()
}

func scanDraft(row pgx.Row) (*models.Draft, error) {
	var (
		d        models.Draft
		settings []byte
	)
	if err := row.Scan(&d.ID, &d.LeagueID, &d.Status, &settings,
		&d.ScheduledAt, &d.StartedAt, &d.CompletedAt, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(settings, &d.Settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft settings: %w", err)
	}
	return &d, nil
}

func scanState(row pgx.Row) (*models.DraftState, error) {
	var st models.DraftState
	if err := row.Scan(&st.DraftID, &st.Status, &st.Round, &st.PickInRound, &st.OverallPick,
		&st.OnClockTeam, &st.DeadlineAt, &st.PausedRemainingSec, &st.UpdatedAt); err != nil {
		return nil, err
	}
	return &st, nil
}
