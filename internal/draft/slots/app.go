package slots

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/openfantasy/draftcore/internal/draft"
	"github.com/openfantasy/draftcore/internal/draft/events"
	"github.com/openfantasy/draftcore/internal/models"
	"github.com/rs/zerolog/log"
)

// ClaimSlotRequest asks to seat a human in a draft slot. SlotIndex zero means
// "any open slot".
type ClaimSlotRequest struct {
	DraftID     uuid.UUID `json:"draft_id"`
	OwnerID     uuid.UUID `json:"owner_id"`
	DisplayName string    `json:"display_name"`
	SlotIndex   int       `json:"slot_index,omitempty"`
}

// Repository defines what the slot app layer needs from storage.
type Repository interface {
	CreateSlots(ctx context.Context, slots []models.Slot) error
	// GetSlotByOwner returns nil, nil when the owner holds no slot.
	GetSlotByOwner(ctx context.Context, draftID, ownerID uuid.UUID) (*models.Slot, error)
	GetSlot(ctx context.Context, draftID uuid.UUID, slotIndex int) (*models.Slot, error)
	ListSlots(ctx context.Context, draftID uuid.UUID) ([]models.Slot, error)
	// ClaimSlot flips one specific bot slot to human. It reports
	// draft.ErrAlreadyClaimed when the targeted row was no longer a bot.
	ClaimSlot(ctx context.Context, slot *models.Slot) error
}

// OutboxApp defines what the slot app layer needs from the outbox.
type OutboxApp interface {
	InsertSlotClaimedEvent(ctx context.Context, draftID uuid.UUID, payload []byte) error
}

// App manages placeholder slots for bot-filled drafts.
type App struct {
	repo   Repository
	outbox OutboxApp
	clock  clockwork.Clock
}

// NewApp creates a new slot App.
func NewApp(repo Repository, outbox OutboxApp, clock clockwork.Clock) *App {
	return &App{repo: repo, outbox: outbox, clock: clock}
}

// SeedSlots creates count bot slots for a draft, indexed 1..count.
func (a *App) SeedSlots(ctx context.Context, draftID uuid.UUID, count int) ([]models.Slot, error) {
	if count < 2 {
		return nil, fmt.Errorf("slot count must be at least 2, got %d", count)
	}
	slots := make([]models.Slot, count)
	for i := range slots {
		slots[i] = models.Slot{
			ID:          uuid.New(),
			DraftID:     draftID,
			SlotIndex:   i + 1,
			Kind:        models.SlotKindBot,
			DisplayName: fmt.Sprintf("Bot %d", i+1),
		}
	}
	if err := a.repo.CreateSlots(ctx, slots); err != nil {
		return nil, fmt.Errorf("failed to seed slots: %w", err)
	}
	log.Info().Str("draft_id", draftID.String()).Int("count", count).Msg("seeded bot slots")
	return slots, nil
}

// ClaimSlot seats a human in a bot slot. Rejoining is idempotent: an owner
// who already holds a slot gets that slot back regardless of the requested
// index. A claim targets one specific row, so two humans racing for the same
// slot resolve to exactly one winner.
func (a *App) ClaimSlot(ctx context.Context, req ClaimSlotRequest) (*models.Slot, error) {
	if err := a.validateClaimSlotRequest(req); err != nil {
		return nil, err
	}

	existing, err := a.repo.GetSlotByOwner(ctx, req.DraftID, req.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up existing slot: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	if req.SlotIndex > 0 {
		return a.claimSpecific(ctx, req)
	}
	return a.claimAny(ctx, req)
}

// ListSlots returns every slot for a draft ordered by index.
func (a *App) ListSlots(ctx context.Context, draftID uuid.UUID) ([]models.Slot, error) {
	slots, err := a.repo.ListSlots(ctx, draftID)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	return slots, nil
}

func (a *App) claimSpecific(ctx context.Context, req ClaimSlotRequest) (*models.Slot, error) {
	s, err := a.repo.GetSlot(ctx, req.DraftID, req.SlotIndex)
	if err != nil {
		return nil, err
	}
	if s.Kind != models.SlotKindBot {
		return nil, draft.ErrAlreadyClaimed
	}
	return a.claim(ctx, s, req)
}

func (a *App) claimAny(ctx context.Context, req ClaimSlotRequest) (*models.Slot, error) {
	all, err := a.repo.ListSlots(ctx, req.DraftID)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	for i := range all {
		if all[i].Kind != models.SlotKindBot {
			continue
		}
		claimed, err := a.claim(ctx, &all[i], req)
		if errors.Is(err, draft.ErrAlreadyClaimed) {
			// Someone beat us to this row. Try the next open one.
			continue
		}
		return claimed, err
	}
	return nil, draft.ErrNoOpenSlot
}

func (a *App) claim(ctx context.Context, s *models.Slot, req ClaimSlotRequest) (*models.Slot, error) {
	now := a.clock.Now()
	claimed := *s
	claimed.Kind = models.SlotKindHuman
	claimed.OwnerID = &req.OwnerID
	claimed.DisplayName = req.DisplayName
	claimed.ClaimedAt = &now
	if err := a.repo.ClaimSlot(ctx, &claimed); err != nil {
		return nil, err
	}

	a.emitSlotClaimed(ctx, &claimed)
	log.Info().
		Str("draft_id", req.DraftID.String()).
		Str("owner_id", req.OwnerID.String()).
		Int("slot_index", claimed.SlotIndex).
		Msg("slot claimed")
	return &claimed, nil
}

func (a *App) validateClaimSlotRequest(req ClaimSlotRequest) error {
	if req.DraftID == uuid.Nil {
		return fmt.Errorf("%w: draft_id is required", draft.ErrInvalidRequest)
	}
	if req.OwnerID == uuid.Nil {
		return fmt.Errorf("%w: owner_id is required", draft.ErrInvalidRequest)
	}
	if req.DisplayName == "" {
		return fmt.Errorf("%w: display_name is required", draft.ErrInvalidRequest)
	}
	if req.SlotIndex < 0 {
		return fmt.Errorf("%w: slot_index cannot be negative", draft.ErrInvalidRequest)
	}
	return nil
}

func (a *App) emitSlotClaimed(ctx context.Context, s *models.Slot) {
	b, err := json.Marshal(events.SlotClaimedPayload{
		DraftID:     s.DraftID.String(),
		SlotIndex:   s.SlotIndex,
		OwnerID:     s.OwnerID.String(),
		DisplayName: s.DisplayName,
		ClaimedAt:   *s.ClaimedAt,
	})
	if err == nil {
		err = a.outbox.InsertSlotClaimedEvent(ctx, s.DraftID, b)
	}
	if err != nil {
		log.Error().Err(err).Str("draft_id", s.DraftID.String()).Msg("failed to emit SlotClaimed event")
	}
}
