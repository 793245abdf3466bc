package pick

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/openfantasy/draftcore/internal/draft"
	"github.com/openfantasy/draftcore/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDraftStore struct {
	draft *models.Draft
	state *models.DraftState
}

func (f *fakeDraftStore) GetDraft(_ context.Context, id uuid.UUID) (*models.Draft, error) {
	if f.draft == nil || f.draft.ID != id {
		return nil, draft.ErrDraftNotFound
	}
	return f.draft, nil
}

func (f *fakeDraftStore) GetState(_ context.Context, draftID uuid.UUID) (*models.DraftState, error) {
	if f.state == nil || f.state.DraftID != draftID {
		return nil, draft.ErrDraftNotFound
	}
	cp := *f.state
	return &cp, nil
}

type fakeRepo struct {
	store     *fakeDraftStore
	picks     []models.Pick
	completed bool

	commitErr error
}

func (f *fakeRepo) CommitPick(_ context.Context, p *models.Pick, next *models.DraftState, completed bool) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	if f.store.state.OverallPick != p.OverallPick || f.store.state.Status != models.DraftStatusDrafting {
		return draft.ErrStaleSubmission
	}
	for _, prev := range f.picks {
		if prev.PlayerID == p.PlayerID {
			return draft.ErrPlayerAlreadyDrafted
		}
	}
	f.picks = append(f.picks, *p)
	cp := *next
	f.store.state = &cp
	f.completed = completed
	return nil
}

func (f *fakeRepo) GetLastPick(_ context.Context, draftID uuid.UUID) (*models.Pick, error) {
	if len(f.picks) == 0 {
		return nil, nil
	}
	p := f.picks[len(f.picks)-1]
	return &p, nil
}

func (f *fakeRepo) PlayerTaken(_ context.Context, _ uuid.UUID, playerID uuid.UUID) (bool, error) {
	for _, p := range f.picks {
		if p.PlayerID == playerID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) ListPicks(_ context.Context, _ uuid.UUID) ([]models.Pick, error) {
	return f.picks, nil
}

func (f *fakeRepo) PickedPlayerIDs(_ context.Context, _ uuid.UUID) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(f.picks))
	for _, p := range f.picks {
		ids = append(ids, p.PlayerID)
	}
	return ids, nil
}

type fakeOutbox struct {
	events []string
}

func (f *fakeOutbox) InsertPickMadeEvent(_ context.Context, _ uuid.UUID, _ []byte) error {
	f.events = append(f.events, "PickMade")
	return nil
}

func (f *fakeOutbox) InsertPickStartedEvent(_ context.Context, _ uuid.UUID, _ []byte) error {
	f.events = append(f.events, "PickStarted")
	return nil
}

func (f *fakeOutbox) InsertDraftCompletedEvent(_ context.Context, _ uuid.UUID, _ []byte) error {
	f.events = append(f.events, "DraftCompleted")
	return nil
}

type fixture struct {
	app    *App
	store  *fakeDraftStore
	repo   *fakeRepo
	outbox *fakeOutbox
	clock  *clockwork.FakeClock
	draft  *models.Draft
	order  []uuid.UUID
}

func newFixture(t *testing.T, teams, rounds, pickTimeSec int) *fixture {
	t.Helper()
	order := make([]uuid.UUID, teams)
	for i := range order {
		order[i] = uuid.New()
	}
	clock := clockwork.NewFakeClock()
	now := clock.Now()
	deadline := now.Add(time.Duration(pickTimeSec) * time.Second)

	d := &models.Draft{
		ID:       uuid.New(),
		LeagueID: uuid.New(),
		Status:   models.DraftStatusDrafting,
		Settings: models.DraftSettings{
			Rounds:      rounds,
			PickTimeSec: pickTimeSec,
			DraftOrder:  order,
		},
	}
	st := &models.DraftState{
		DraftID:     d.ID,
		Status:      models.DraftStatusDrafting,
		Round:       1,
		PickInRound: 1,
		OverallPick: 1,
		OnClockTeam: order[0],
		UpdatedAt:   now,
	}
	if pickTimeSec > 0 {
		st.DeadlineAt = &deadline
	}

	store := &fakeDraftStore{draft: d, state: st}
	repo := &fakeRepo{store: store}
	outbox := &fakeOutbox{}
	return &fixture{
		app:    NewApp(store, repo, outbox, clock),
		store:  store,
		repo:   repo,
		outbox: outbox,
		clock:  clock,
		draft:  d,
		order:  order,
	}
}

func (fx *fixture) commit(t *testing.T, team uuid.UUID, player uuid.UUID) *draft.Snapshot {
	t.Helper()
	snap, err := fx.app.CommitPick(context.Background(), CommitPickRequest{
		DraftID:  fx.draft.ID,
		TeamID:   team,
		PlayerID: player,
		Source:   models.PickSourceHuman,
	})
	require.NoError(t, err)
	return snap
}

func TestCommitPickAdvancesTurn(t *testing.T) {
	fx := newFixture(t, 4, 2, 60)

	snap := fx.commit(t, fx.order[0], uuid.New())

	assert.Equal(t, models.DraftStatusDrafting, snap.Status)
	assert.Equal(t, 1, snap.Round)
	assert.Equal(t, 2, snap.PickInRound)
	assert.Equal(t, 2, snap.OverallPick)
	assert.Equal(t, fx.order[1], snap.OnClockTeam)
	require.NotNil(t, snap.DeadlineAt)
	assert.Equal(t, fx.clock.Now().Add(60*time.Second), *snap.DeadlineAt)
	assert.Equal(t, []string{"PickMade", "PickStarted"}, fx.outbox.events)
}

func TestCommitPickSnakeReversal(t *testing.T) {
	fx := newFixture(t, 4, 2, 0)

	for i := 0; i < 4; i++ {
		fx.commit(t, fx.order[i], uuid.New())
	}

	// Round 2 opens with the last team of round 1 picking again.
	st := fx.store.state
	assert.Equal(t, 2, st.Round)
	assert.Equal(t, 1, st.PickInRound)
	assert.Equal(t, 5, st.OverallPick)
	assert.Equal(t, fx.order[3], st.OnClockTeam)
}

func TestCommitPickNotOnClock(t *testing.T) {
	fx := newFixture(t, 4, 2, 60)

	_, err := fx.app.CommitPick(context.Background(), CommitPickRequest{
		DraftID:  fx.draft.ID,
		TeamID:   fx.order[1],
		PlayerID: uuid.New(),
		Source:   models.PickSourceHuman,
	})
	require.ErrorIs(t, err, draft.ErrNotOnClock)
	assert.Empty(t, fx.repo.picks)
	assert.Empty(t, fx.outbox.events)
}

func TestCommitPickPlayerAlreadyDrafted(t *testing.T) {
	fx := newFixture(t, 4, 2, 60)
	player := uuid.New()
	fx.commit(t, fx.order[0], player)

	_, err := fx.app.CommitPick(context.Background(), CommitPickRequest{
		DraftID:  fx.draft.ID,
		TeamID:   fx.order[1],
		PlayerID: player,
		Source:   models.PickSourceHuman,
	})
	require.ErrorIs(t, err, draft.ErrPlayerAlreadyDrafted)
	assert.Len(t, fx.repo.picks, 1)
}

func TestCommitPickStaleOverall(t *testing.T) {
	fx := newFixture(t, 4, 2, 60)
	fx.commit(t, fx.order[0], uuid.New())

	_, err := fx.app.CommitPick(context.Background(), CommitPickRequest{
		DraftID:     fx.draft.ID,
		TeamID:      fx.order[1],
		PlayerID:    uuid.New(),
		Source:      models.PickSourceHuman,
		OverallPick: 1,
	})
	require.ErrorIs(t, err, draft.ErrStaleSubmission)
}

func TestCommitPickRejectsPausedDraft(t *testing.T) {
	fx := newFixture(t, 4, 2, 60)
	fx.store.state.Status = models.DraftStatusPaused
	fx.store.state.DeadlineAt = nil

	_, err := fx.app.CommitPick(context.Background(), CommitPickRequest{
		DraftID:  fx.draft.ID,
		TeamID:   fx.order[0],
		PlayerID: uuid.New(),
		Source:   models.PickSourceHuman,
	})
	require.ErrorIs(t, err, draft.ErrInvalidState)
}

func TestCommitPickIdempotentRetry(t *testing.T) {
	fx := newFixture(t, 4, 2, 60)
	player := uuid.New()
	first := fx.commit(t, fx.order[0], player)

	// Same team, same player: the retry of a commit whose response was lost.
	// The turn has moved on, yet the caller still gets a success.
	retry := fx.commit(t, fx.order[0], player)

	assert.Equal(t, first.OverallPick, retry.OverallPick)
	assert.Equal(t, first.OnClockTeam, retry.OnClockTeam)
	assert.Len(t, fx.repo.picks, 1)
	assert.Equal(t, []string{"PickMade", "PickStarted"}, fx.outbox.events)
}

func TestCommitPickIdempotentRetryAfterCompletion(t *testing.T) {
	fx := newFixture(t, 2, 1, 0)
	fx.commit(t, fx.order[0], uuid.New())
	lastPlayer := uuid.New()
	fx.commit(t, fx.order[1], lastPlayer)
	require.True(t, fx.repo.completed)

	snap, err := fx.app.CommitPick(context.Background(), CommitPickRequest{
		DraftID:  fx.draft.ID,
		TeamID:   fx.order[1],
		PlayerID: lastPlayer,
		Source:   models.PickSourceHuman,
	})
	require.NoError(t, err)
	assert.Equal(t, models.DraftStatusCompleted, snap.Status)
	assert.Len(t, fx.repo.picks, 2)
}

func TestFinalPickCompletesDraft(t *testing.T) {
	fx := newFixture(t, 2, 2, 60)
	players := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	fx.commit(t, fx.order[0], players[0])
	fx.commit(t, fx.order[1], players[1])
	fx.commit(t, fx.order[1], players[2])
	snap := fx.commit(t, fx.order[0], players[3])

	assert.Equal(t, models.DraftStatusCompleted, snap.Status)
	assert.Nil(t, snap.DeadlineAt)
	assert.Equal(t, 4, snap.OverallPick)
	assert.True(t, fx.repo.completed)
	assert.Equal(t, "DraftCompleted", fx.outbox.events[len(fx.outbox.events)-1])
}

func TestUntimedDraftHasNoDeadline(t *testing.T) {
	fx := newFixture(t, 4, 2, 0)

	snap := fx.commit(t, fx.order[0], uuid.New())
	assert.Nil(t, snap.DeadlineAt)
}

func TestCommitPickValidation(t *testing.T) {
	fx := newFixture(t, 4, 2, 60)

	tests := []struct {
		name string
		req  CommitPickRequest
	}{
		{
			name: "missing draft id",
			req:  CommitPickRequest{TeamID: fx.order[0], PlayerID: uuid.New(), Source: models.PickSourceHuman},
		},
		{
			name: "missing team id",
			req:  CommitPickRequest{DraftID: fx.draft.ID, PlayerID: uuid.New(), Source: models.PickSourceHuman},
		},
		{
			name: "missing player id",
			req:  CommitPickRequest{DraftID: fx.draft.ID, TeamID: fx.order[0], Source: models.PickSourceHuman},
		},
		{
			name: "bad source",
			req:  CommitPickRequest{DraftID: fx.draft.ID, TeamID: fx.order[0], PlayerID: uuid.New(), Source: "ROBOT"},
		},
		{
			name: "negative overall pick",
			req:  CommitPickRequest{DraftID: fx.draft.ID, TeamID: fx.order[0], PlayerID: uuid.New(), Source: models.PickSourceHuman, OverallPick: -1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.app.CommitPick(context.Background(), tt.req)
			require.Error(t, err)
		})
	}
}
