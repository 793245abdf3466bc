package outbox

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/openfantasy/draftcore/internal/draft/events"
	"github.com/rs/zerolog/log"
)

// Repository defines what the outbox app layer needs from storage.
type Repository interface {
	InsertEvent(ctx context.Context, draftID uuid.UUID, eventType string, payload []byte) error
	FetchUnsent(ctx context.Context, limit int) ([]Event, error)
	FetchByID(ctx context.Context, id uuid.UUID) (*Event, error)
	MarkSent(ctx context.Context, id uuid.UUID) error
}

// App handles outbox writes. One Insert method per event type keeps the
// producing packages decoupled from event-type strings.
type App struct {
	repo Repository
}

// NewApp creates a new outbox App.
func NewApp(repo Repository) *App {
	return &App{repo: repo}
}

func (a *App) InsertDraftStartedEvent(ctx context.Context, draftID uuid.UUID, payload []byte) error {
	return a.insert(ctx, draftID, events.TypeDraftStarted, payload)
}

func (a *App) InsertDraftPausedEvent(ctx context.Context, draftID uuid.UUID, payload []byte) error {
	return a.insert(ctx, draftID, events.TypeDraftPaused, payload)
}

func (a *App) InsertDraftResumedEvent(ctx context.Context, draftID uuid.UUID, payload []byte) error {
	return a.insert(ctx, draftID, events.TypeDraftResumed, payload)
}

func (a *App) InsertDraftCompletedEvent(ctx context.Context, draftID uuid.UUID, payload []byte) error {
	return a.insert(ctx, draftID, events.TypeDraftCompleted, payload)
}

func (a *App) InsertPickStartedEvent(ctx context.Context, draftID uuid.UUID, payload []byte) error {
	return a.insert(ctx, draftID, events.TypePickStarted, payload)
}

func (a *App) InsertPickMadeEvent(ctx context.Context, draftID uuid.UUID, payload []byte) error {
	return a.insert(ctx, draftID, events.TypePickMade, payload)
}

func (a *App) InsertSlotClaimedEvent(ctx context.Context, draftID uuid.UUID, payload []byte) error {
	return a.insert(ctx, draftID, events.TypeSlotClaimed, payload)
}

func (a *App) insert(ctx context.Context, draftID uuid.UUID, eventType string, payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("invalid %s payload: empty", eventType)
	}
	if err := a.repo.InsertEvent(ctx, draftID, eventType, payload); err != nil {
		return fmt.Errorf("failed to insert %s event: %w", eventType, err)
	}
	log.Debug().
		Str("draft_id", draftID.String()).
		Str("event_type", eventType).
		Msg("outbox event inserted")
	return nil
}

// FetchUnsentEvents returns up to limit events that have not been relayed.
func (a *App) FetchUnsentEvents(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than 0")
	}
	evs, err := a.repo.FetchUnsent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unsent events: %w", err)
	}
	return evs, nil
}

// GetEventByID fetches one outbox event.
func (a *App) GetEventByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	ev, err := a.repo.FetchByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch event by id: %w", err)
	}
	return ev, nil
}

// MarkEventSent stamps an event as relayed.
func (a *App) MarkEventSent(ctx context.Context, id uuid.UUID) error {
	if err := a.repo.MarkSent(ctx, id); err != nil {
		return fmt.Errorf("failed to mark event as sent: %w", err)
	}
	return nil
}
