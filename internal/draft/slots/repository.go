package slots

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openfantasy/draftcore/internal/draft"
	"github.com/openfantasy/draftcore/internal/models"
)

// PGRepository implements Repository on top of Postgres.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository creates a new Postgres-backed slot repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) CreateSlots(ctx context.Context, slots []models.Slot) error {
	batch := &pgx.Batch{}
	for _, s := range slots {
		batch.Queue(`
			INSERT INTO draft_slots (id, draft_id, slot_index, kind, owner_id, display_name, claimed_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			s.ID, s.DraftID, s.SlotIndex, s.Kind, s.OwnerID, s.DisplayName, s.ClaimedAt,
		)
	}
	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range slots {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("failed to insert slot: %w", err)
		}
	}
	return nil
}

func (r *PGRepository) GetSlotByOwner(ctx context.Context, draftID, ownerID uuid.UUID) (*models.Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, draft_id, slot_index, kind, owner_id, display_name, claimed_at
		FROM draft_slots
		WHERE draft_id = $1 AND owner_id = $2`,
		draftID, ownerID,
	)
	s, err := scanSlot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot by owner: %w", err)
	}
	return s, nil
}

func (r *PGRepository) GetSlot(ctx context.Context, draftID uuid.UUID, slotIndex int) (*models.Slot, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, draft_id, slot_index, kind, owner_id, display_name, claimed_at
		FROM draft_slots
		WHERE draft_id = $1 AND slot_index = $2`,
		draftID, slotIndex,
	)
	s, err := scanSlot(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, draft.ErrNoOpenSlot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get slot: %w", err)
	}
	return s, nil
}

func (r *PGRepository) ListSlots(ctx context.Context, draftID uuid.UUID) ([]models.Slot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, draft_id, slot_index, kind, owner_id, display_name, claimed_at
		FROM draft_slots
		WHERE draft_id = $1
		ORDER BY slot_index`,
		draftID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	defer rows.Close()

	var slots []models.Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		slots = append(slots, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate slots: %w", err)
	}
	return slots, nil
}

// ClaimSlot targets one row by id and succeeds only if that row is still an
// unowned bot slot. Exactly one of two racing claimers sees a row update.
func (r *PGRepository) ClaimSlot(ctx context.Context, slot *models.Slot) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE draft_slots
		SET kind = 'HUMAN', owner_id = $2, display_name = $3, claimed_at = $4
		WHERE id = $1 AND kind = 'BOT' AND owner_id IS NULL`,
		slot.ID, slot.OwnerID, slot.DisplayName, slot.ClaimedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to claim slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return draft.ErrAlreadyClaimed
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSlot(row rowScanner) (*models.Slot, error) {
	var s models.Slot
	err := row.Scan(&s.ID, &s.DraftID, &s.SlotIndex, &s.Kind, &s.OwnerID, &s.DisplayName, &s.ClaimedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
