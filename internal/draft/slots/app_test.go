package slots

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/openfantasy/draftcore/internal/draft"
	"github.com/openfantasy/draftcore/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	slots []models.Slot
}

func (f *fakeRepo) CreateSlots(_ context.Context, slots []models.Slot) error {
	f.slots = append(f.slots, slots...)
	return nil
}

func (f *fakeRepo) GetSlotByOwner(_ context.Context, draftID, ownerID uuid.UUID) (*models.Slot, error) {
	for i := range f.slots {
		s := &f.slots[i]
		if s.DraftID == draftID && s.OwnerID != nil && *s.OwnerID == ownerID {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) GetSlot(_ context.Context, draftID uuid.UUID, slotIndex int) (*models.Slot, error) {
	for i := range f.slots {
		s := &f.slots[i]
		if s.DraftID == draftID && s.SlotIndex == slotIndex {
			cp := *s
			return &cp, nil
		}
	}
	return nil, draft.ErrNoOpenSlot
}

func (f *fakeRepo) ListSlots(_ context.Context, draftID uuid.UUID) ([]models.Slot, error) {
	var out []models.Slot
	for _, s := range f.slots {
		if s.DraftID == draftID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeRepo) ClaimSlot(_ context.Context, slot *models.Slot) error {
	for i := range f.slots {
		s := &f.slots[i]
		if s.ID == slot.ID && s.Kind == models.SlotKindBot && s.OwnerID == nil {
			*s = *slot
			return nil
		}
	}
	return draft.ErrAlreadyClaimed
}

type fakeOutbox struct {
	claimed int
}

func (f *fakeOutbox) InsertSlotClaimedEvent(_ context.Context, _ uuid.UUID, _ []byte) error {
	f.claimed++
	return nil
}

func newApp(t *testing.T) (*App, *fakeRepo, *fakeOutbox, uuid.UUID) {
	t.Helper()
	repo := &fakeRepo{}
	outbox := &fakeOutbox{}
	app := NewApp(repo, outbox, clockwork.NewFakeClock())
	draftID := uuid.New()
	_, err := app.SeedSlots(context.Background(), draftID, 8)
	require.NoError(t, err)
	return app, repo, outbox, draftID
}

func TestSeedSlots(t *testing.T) {
	_, repo, _, draftID := newApp(t)

	require.Len(t, repo.slots, 8)
	for i, s := range repo.slots {
		assert.Equal(t, draftID, s.DraftID)
		assert.Equal(t, i+1, s.SlotIndex)
		assert.Equal(t, models.SlotKindBot, s.Kind)
		assert.Nil(t, s.OwnerID)
	}
}

func TestSeedSlotsRejectsTooFew(t *testing.T) {
	app := NewApp(&fakeRepo{}, &fakeOutbox{}, clockwork.NewFakeClock())
	_, err := app.SeedSlots(context.Background(), uuid.New(), 1)
	require.Error(t, err)
}

func TestClaimSpecificSlot(t *testing.T) {
	app, _, outbox, draftID := newApp(t)
	owner := uuid.New()

	s, err := app.ClaimSlot(context.Background(), ClaimSlotRequest{
		DraftID:     draftID,
		OwnerID:     owner,
		DisplayName: "Alex",
		SlotIndex:   3,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, s.SlotIndex)
	assert.Equal(t, models.SlotKindHuman, s.Kind)
	require.NotNil(t, s.OwnerID)
	assert.Equal(t, owner, *s.OwnerID)
	assert.Equal(t, "Alex", s.DisplayName)
	assert.Equal(t, 1, outbox.claimed)
}

func TestClaimTakenSlotFails(t *testing.T) {
	app, _, _, draftID := newApp(t)

	_, err := app.ClaimSlot(context.Background(), ClaimSlotRequest{
		DraftID: draftID, OwnerID: uuid.New(), DisplayName: "Alex", SlotIndex: 3,
	})
	require.NoError(t, err)

	// A second human wants the now-human slot 3.
	_, err = app.ClaimSlot(context.Background(), ClaimSlotRequest{
		DraftID: draftID, OwnerID: uuid.New(), DisplayName: "Blake", SlotIndex: 3,
	})
	require.ErrorIs(t, err, draft.ErrAlreadyClaimed)

	// Slot 5 is still a bot, so that claim goes through.
	s, err := app.ClaimSlot(context.Background(), ClaimSlotRequest{
		DraftID: draftID, OwnerID: uuid.New(), DisplayName: "Blake", SlotIndex: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, s.SlotIndex)
}

func TestClaimAnyTakesFirstOpen(t *testing.T) {
	app, _, _, draftID := newApp(t)
	_, err := app.ClaimSlot(context.Background(), ClaimSlotRequest{
		DraftID: draftID, OwnerID: uuid.New(), DisplayName: "Alex", SlotIndex: 1,
	})
	require.NoError(t, err)

	s, err := app.ClaimSlot(context.Background(), ClaimSlotRequest{
		DraftID: draftID, OwnerID: uuid.New(), DisplayName: "Blake",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, s.SlotIndex)
}

func TestClaimIsIdempotentPerOwner(t *testing.T) {
	app, repo, outbox, draftID := newApp(t)
	owner := uuid.New()

	first, err := app.ClaimSlot(context.Background(), ClaimSlotRequest{
		DraftID: draftID, OwnerID: owner, DisplayName: "Alex", SlotIndex: 2,
	})
	require.NoError(t, err)

	// Rejoin, even asking for a different slot, returns the held slot.
	again, err := app.ClaimSlot(context.Background(), ClaimSlotRequest{
		DraftID: draftID, OwnerID: owner, DisplayName: "Alex", SlotIndex: 6,
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 1, outbox.claimed)

	human := 0
	for _, s := range repo.slots {
		if s.Kind == models.SlotKindHuman {
			human++
		}
	}
	assert.Equal(t, 1, human)
}

func TestClaimNoOpenSlot(t *testing.T) {
	repo := &fakeRepo{}
	app := NewApp(repo, &fakeOutbox{}, clockwork.NewFakeClock())
	draftID := uuid.New()
	_, err := app.SeedSlots(context.Background(), draftID, 2)
	require.NoError(t, err)

	for i := 1; i <= 2; i++ {
		_, err := app.ClaimSlot(context.Background(), ClaimSlotRequest{
			DraftID: draftID, OwnerID: uuid.New(), DisplayName: "Someone", SlotIndex: i,
		})
		require.NoError(t, err)
	}

	_, err = app.ClaimSlot(context.Background(), ClaimSlotRequest{
		DraftID: draftID, OwnerID: uuid.New(), DisplayName: "Late",
	})
	require.ErrorIs(t, err, draft.ErrNoOpenSlot)
}

func TestClaimValidation(t *testing.T) {
	app, _, _, draftID := newApp(t)

	_, err := app.ClaimSlot(context.Background(), ClaimSlotRequest{OwnerID: uuid.New(), DisplayName: "x"})
	require.Error(t, err)
	_, err = app.ClaimSlot(context.Background(), ClaimSlotRequest{DraftID: draftID, DisplayName: "x"})
	require.Error(t, err)
	_, err = app.ClaimSlot(context.Background(), ClaimSlotRequest{DraftID: draftID, OwnerID: uuid.New()})
	require.Error(t, err)
}
