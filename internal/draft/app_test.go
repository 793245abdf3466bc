package draft

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/openfantasy/draftcore/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	drafts   map[uuid.UUID]*models.Draft
	states   map[uuid.UUID]*models.DraftState
	beginErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		drafts: make(map[uuid.UUID]*models.Draft),
		states: make(map[uuid.UUID]*models.DraftState),
	}
}

func (f *fakeRepo) CreateDraft(_ context.Context, req CreateDraftRequest) (*models.Draft, error) {
	d := &models.Draft{
		ID:          req.ID,
		LeagueID:    req.LeagueID,
		Status:      models.DraftStatusScheduled,
		Settings:    req.Settings,
		ScheduledAt: req.ScheduledAt,
	}
	f.drafts[d.ID] = d
	return d, nil
}

func (f *fakeRepo) GetDraft(_ context.Context, id uuid.UUID) (*models.Draft, error) {
	d, ok := f.drafts[id]
	if !ok {
		return nil, ErrDraftNotFound
	}
	cp := *d
	return &cp, nil
}

func (f *fakeRepo) SetDraftStatus(_ context.Context, id uuid.UUID, status models.DraftStatus, at time.Time) (*models.Draft, error) {
	d, ok := f.drafts[id]
	if !ok {
		return nil, ErrDraftNotFound
	}
	d.Status = status
	d.UpdatedAt = at
	cp := *d
	return &cp, nil
}

func (f *fakeRepo) GetState(_ context.Context, draftID uuid.UUID) (*models.DraftState, error) {
	st, ok := f.states[draftID]
	if !ok {
		return nil, ErrDraftNotFound
	}
	cp := *st
	return &cp, nil
}

func (f *fakeRepo) BeginDrafting(_ context.Context, st *models.DraftState, at time.Time) error {
	if f.beginErr != nil {
		return f.beginErr
	}
	d, ok := f.drafts[st.DraftID]
	if !ok || d.Status != models.DraftStatusScheduled {
		return ErrConflict
	}
	d.Status = models.DraftStatusDrafting
	d.UpdatedAt = at
	cp := *st
	f.states[st.DraftID] = &cp
	return nil
}

func (f *fakeRepo) SwapState(_ context.Context, expect models.DraftStatus, st *models.DraftState) error {
	cur, ok := f.states[st.DraftID]
	if !ok || cur.Status != expect {
		return ErrConflict
	}
	cp := *st
	f.states[st.DraftID] = &cp
	return nil
}

func (f *fakeRepo) ListDueDrafts(_ context.Context, now time.Time, limit int) ([]DueDraft, error) {
	var due []DueDraft
	for _, st := range f.states {
		if st.Status == models.DraftStatusDrafting && st.Expired(now) {
			due = append(due, DueDraft{DraftID: st.DraftID, DeadlineAt: *st.DeadlineAt})
		}
		if len(due) == limit {
			break
		}
	}
	return due, nil
}

type fakeOutbox struct {
	events []string
}

func (f *fakeOutbox) InsertDraftStartedEvent(_ context.Context, _ uuid.UUID, _ []byte) error {
	f.events = append(f.events, "DraftStarted")
	return nil
}

func (f *fakeOutbox) InsertDraftPausedEvent(_ context.Context, _ uuid.UUID, _ []byte) error {
	f.events = append(f.events, "DraftPaused")
	return nil
}

func (f *fakeOutbox) InsertDraftResumedEvent(_ context.Context, _ uuid.UUID, _ []byte) error {
	f.events = append(f.events, "DraftResumed")
	return nil
}

func (f *fakeOutbox) InsertPickStartedEvent(_ context.Context, _ uuid.UUID, _ []byte) error {
	f.events = append(f.events, "PickStarted")
	return nil
}

func draftOrder(n int) []uuid.UUID {
	order := make([]uuid.UUID, n)
	for i := range order {
		order[i] = uuid.New()
	}
	return order
}

func setup(t *testing.T, pickTimeSec int) (*App, *fakeRepo, *fakeOutbox, *clockwork.FakeClock, *models.Draft) {
	t.Helper()
	repo := newFakeRepo()
	outbox := &fakeOutbox{}
	clock := clockwork.NewFakeClock()
	app := NewApp(repo, outbox, clock)

	d, err := app.CreateDraft(context.Background(), CreateDraftRequest{
		ID:       uuid.New(),
		LeagueID: uuid.New(),
		Settings: models.DraftSettings{
			Rounds:      2,
			PickTimeSec: pickTimeSec,
			DraftOrder:  draftOrder(4),
		},
	})
	require.NoError(t, err)
	return app, repo, outbox, clock, d
}

func TestCreateDraftValidation(t *testing.T) {
	app := NewApp(newFakeRepo(), &fakeOutbox{}, clockwork.NewFakeClock())
	ctx := context.Background()
	valid := CreateDraftRequest{
		ID:       uuid.New(),
		LeagueID: uuid.New(),
		Settings: models.DraftSettings{Rounds: 1, PickTimeSec: 30, DraftOrder: draftOrder(2)},
	}

	tests := []struct {
		name   string
		mutate func(*CreateDraftRequest)
	}{
		{"missing id", func(r *CreateDraftRequest) { r.ID = uuid.Nil }},
		{"missing league", func(r *CreateDraftRequest) { r.LeagueID = uuid.Nil }},
		{"zero rounds", func(r *CreateDraftRequest) { r.Settings.Rounds = 0 }},
		{"negative pick time", func(r *CreateDraftRequest) { r.Settings.PickTimeSec = -1 }},
		{"one team", func(r *CreateDraftRequest) { r.Settings.DraftOrder = draftOrder(1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			req.Settings.DraftOrder = append([]uuid.UUID(nil), valid.Settings.DraftOrder...)
			tt.mutate(&req)
			_, err := app.CreateDraft(ctx, req)
			require.ErrorIs(t, err, ErrInvalidRequest)
		})
	}

	t.Run("duplicate team", func(t *testing.T) {
		req := valid
		req.Settings.DraftOrder = []uuid.UUID{valid.Settings.DraftOrder[0], valid.Settings.DraftOrder[0]}
		_, err := app.CreateDraft(ctx, req)
		require.ErrorIs(t, err, ErrMalformedDraftOrder)
	})
}

func TestStartDraftSeedsState(t *testing.T) {
	app, repo, outbox, clock, d := setup(t, 90)

	snap, err := app.StartDraft(context.Background(), d.ID)
	require.NoError(t, err)

	assert.Equal(t, models.DraftStatusDrafting, snap.Status)
	assert.Equal(t, 1, snap.Round)
	assert.Equal(t, 1, snap.PickInRound)
	assert.Equal(t, 1, snap.OverallPick)
	assert.Equal(t, d.Settings.DraftOrder[0], snap.OnClockTeam)
	require.NotNil(t, snap.DeadlineAt)
	assert.Equal(t, clock.Now().Add(90*time.Second), *snap.DeadlineAt)
	assert.Equal(t, models.DraftStatusDrafting, repo.drafts[d.ID].Status)
	assert.Equal(t, []string{"DraftStarted", "PickStarted"}, outbox.events)
}

func TestStartDraftIdempotent(t *testing.T) {
	app, _, outbox, _, d := setup(t, 90)

	first, err := app.StartDraft(context.Background(), d.ID)
	require.NoError(t, err)
	again, err := app.StartDraft(context.Background(), d.ID)
	require.NoError(t, err)

	assert.Equal(t, first.OnClockTeam, again.OnClockTeam)
	assert.Equal(t, []string{"DraftStarted", "PickStarted"}, outbox.events)
}

func TestStartDraftRetriesAfterTransientFailure(t *testing.T) {
	app, repo, _, _, d := setup(t, 90)

	// A store failure during start must leave the draft SCHEDULED with no
	// state row, so the same request works once the store recovers.
	repo.beginErr = errors.New("connection reset")
	_, err := app.StartDraft(context.Background(), d.ID)
	require.Error(t, err)
	assert.Equal(t, models.DraftStatusScheduled, repo.drafts[d.ID].Status)
	assert.NotContains(t, repo.states, d.ID)

	repo.beginErr = nil
	snap, err := app.StartDraft(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusDrafting, snap.Status)
	assert.Equal(t, 1, snap.OverallPick)
}

func TestStartDraftConcurrentStartReturnsSnapshot(t *testing.T) {
	app, repo, outbox, _, d := setup(t, 90)
	_, err := app.StartDraft(context.Background(), d.ID)
	require.NoError(t, err)

	// Simulate a racing starter that read SCHEDULED but lost the status
	// flip: BeginDrafting conflicts and the caller gets the winner's state
	// instead of an error.
	repo.drafts[d.ID].Status = models.DraftStatusScheduled
	repo.beginErr = ErrConflict
	snap, err := app.StartDraft(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusDrafting, snap.Status)
	assert.Equal(t, []string{"DraftStarted", "PickStarted"}, outbox.events)
}

func TestStartDraftRejectsCompleted(t *testing.T) {
	app, repo, _, _, d := setup(t, 90)
	repo.drafts[d.ID].Status = models.DraftStatusCompleted

	_, err := app.StartDraft(context.Background(), d.ID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestStartDraftUntimedHasNoDeadline(t *testing.T) {
	app, _, _, _, d := setup(t, 0)

	snap, err := app.StartDraft(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Nil(t, snap.DeadlineAt)
}

func TestPauseClearsDeadlineAndRecordsRemaining(t *testing.T) {
	app, repo, _, clock, d := setup(t, 90)
	_, err := app.StartDraft(context.Background(), d.ID)
	require.NoError(t, err)

	clock.Advance(50 * time.Second)
	snap, err := app.PauseDraft(context.Background(), d.ID, "commissioner break")
	require.NoError(t, err)

	assert.Equal(t, models.DraftStatusPaused, snap.Status)
	assert.Nil(t, snap.DeadlineAt)
	st := repo.states[d.ID]
	require.NotNil(t, st.PausedRemainingSec)
	assert.Equal(t, 40, *st.PausedRemainingSec)
	assert.Equal(t, models.DraftStatusPaused, repo.drafts[d.ID].Status)
}

func TestPauseIdempotent(t *testing.T) {
	app, _, outbox, _, d := setup(t, 90)
	_, err := app.StartDraft(context.Background(), d.ID)
	require.NoError(t, err)

	_, err = app.PauseDraft(context.Background(), d.ID, "x")
	require.NoError(t, err)
	before := len(outbox.events)
	snap, err := app.PauseDraft(context.Background(), d.ID, "x")
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusPaused, snap.Status)
	assert.Len(t, outbox.events, before)
}

func TestPauseRequiresDrafting(t *testing.T) {
	app, repo, _, _, d := setup(t, 90)
	_, err := app.StartDraft(context.Background(), d.ID)
	require.NoError(t, err)

	repo.states[d.ID].Status = models.DraftStatusCompleted
	_, err = app.PauseDraft(context.Background(), d.ID, "x")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestResumeRestartsFullWindow(t *testing.T) {
	app, _, _, clock, d := setup(t, 90)
	_, err := app.StartDraft(context.Background(), d.ID)
	require.NoError(t, err)

	// Pause with 40s left, wait 10 minutes, resume. The new deadline is a
	// full window from resume time, not the 40s that remained.
	clock.Advance(50 * time.Second)
	_, err = app.PauseDraft(context.Background(), d.ID, "break")
	require.NoError(t, err)
	clock.Advance(10 * time.Minute)

	snap, err := app.ResumeDraft(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusDrafting, snap.Status)
	require.NotNil(t, snap.DeadlineAt)
	assert.Equal(t, clock.Now().Add(90*time.Second), *snap.DeadlineAt)
}

func TestResumeIdempotent(t *testing.T) {
	app, _, _, _, d := setup(t, 90)
	_, err := app.StartDraft(context.Background(), d.ID)
	require.NoError(t, err)

	snap, err := app.ResumeDraft(context.Background(), d.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusDrafting, snap.Status)
}

func TestPausedDraftNotListedAsDue(t *testing.T) {
	app, _, _, clock, d := setup(t, 90)
	_, err := app.StartDraft(context.Background(), d.ID)
	require.NoError(t, err)

	clock.Advance(2 * time.Minute)
	due, err := app.ListDueDrafts(context.Background(), clock.Now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	_, err = app.PauseDraft(context.Background(), d.ID, "x")
	require.NoError(t, err)
	due, err = app.ListDueDrafts(context.Background(), clock.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}
