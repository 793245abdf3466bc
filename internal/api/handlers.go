package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/openfantasy/draftcore/internal/draft"
	"github.com/openfantasy/draftcore/internal/draft/pick"
	"github.com/openfantasy/draftcore/internal/draft/slots"
	"github.com/openfantasy/draftcore/internal/draft/sweeper"
	"github.com/openfantasy/draftcore/internal/models"
)

// Handler wires the draft core's operations to HTTP. Authentication happens
// upstream; requests arrive with resolved team and user identities.
type Handler struct {
	drafts  *draft.App
	picks   *pick.App
	slots   *slots.App
	sweeper *sweeper.Sweeper
	clock   clockwork.Clock
}

// NewHandler creates a Handler.
func NewHandler(drafts *draft.App, picks *pick.App, slotApp *slots.App, sw *sweeper.Sweeper, clock clockwork.Clock) *Handler {
	return &Handler{
		drafts:  drafts,
		picks:   picks,
		slots:   slotApp,
		sweeper: sw,
		clock:   clock,
	}
}

type createDraftBody struct {
	LeagueID    uuid.UUID            `json:"league_id"`
	Settings    models.DraftSettings `json:"settings"`
	ScheduledAt *time.Time           `json:"scheduled_at,omitempty"`
	BotSlots    bool                 `json:"bot_slots,omitempty"`
}

func (h *Handler) CreateDraft(w http.ResponseWriter, r *http.Request) {
	var body createDraftBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, fmt.Errorf("%w: %v", draft.ErrInvalidRequest, err))
		return
	}

	d, err := h.drafts.CreateDraft(r.Context(), draft.CreateDraftRequest{
		ID:          uuid.New(),
		LeagueID:    body.LeagueID,
		Settings:    body.Settings,
		ScheduledAt: body.ScheduledAt,
	})
	if err != nil {
		respondError(w, err)
		return
	}

	if body.BotSlots {
		if _, err := h.slots.SeedSlots(r.Context(), d.ID, len(body.Settings.DraftOrder)); err != nil {
			respondError(w, err)
			return
		}
	}
	respondJSON(w, http.StatusCreated, d)
}

func (h *Handler) GetDraft(w http.ResponseWriter, r *http.Request) {
	id, err := draftID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	d, err := h.drafts.GetDraft(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

func (h *Handler) StartDraft(w http.ResponseWriter, r *http.Request) {
	id, err := draftID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	snap, err := h.drafts.StartDraft(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	id, err := draftID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	snap, err := h.drafts.GetSnapshot(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

type commitPickBody struct {
	TeamID      uuid.UUID `json:"team_id"`
	PlayerID    uuid.UUID `json:"player_id"`
	OverallPick int       `json:"overall_pick,omitempty"`
}

func (h *Handler) CommitPick(w http.ResponseWriter, r *http.Request) {
	id, err := draftID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var body commitPickBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, fmt.Errorf("%w: %v", draft.ErrInvalidRequest, err))
		return
	}

	snap, err := h.picks.CommitPick(r.Context(), pick.CommitPickRequest{
		DraftID:     id,
		TeamID:      body.TeamID,
		PlayerID:    body.PlayerID,
		Source:      models.PickSourceHuman,
		OverallPick: body.OverallPick,
		IdemKey:     r.Header.Get("Idempotency-Key"),
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *Handler) ListPicks(w http.ResponseWriter, r *http.Request) {
	id, err := draftID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	picks, err := h.picks.ListPicks(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, picks)
}

// Results returns the full record of a draft: config, final state, and every
// pick in commit order.
func (h *Handler) Results(w http.ResponseWriter, r *http.Request) {
	id, err := draftID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	d, err := h.drafts.GetDraft(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	snap, err := h.drafts.GetSnapshot(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	picks, err := h.picks.ListPicks(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"draft": d,
		"state": snap,
		"picks": picks,
	})
}

type pauseBody struct {
	Reason string `json:"reason,omitempty"`
}

func (h *Handler) PauseDraft(w http.ResponseWriter, r *http.Request) {
	id, err := draftID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var body pauseBody
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondError(w, fmt.Errorf("%w: %v", draft.ErrInvalidRequest, err))
			return
		}
	}
	snap, err := h.drafts.PauseDraft(r.Context(), id, body.Reason)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (h *Handler) ResumeDraft(w http.ResponseWriter, r *http.Request) {
	id, err := draftID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	snap, err := h.drafts.ResumeDraft(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

type claimSlotBody struct {
	OwnerID     uuid.UUID `json:"owner_id"`
	DisplayName string    `json:"display_name"`
	SlotIndex   int       `json:"slot_index,omitempty"`
}

func (h *Handler) ClaimSlot(w http.ResponseWriter, r *http.Request) {
	id, err := draftID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	var body claimSlotBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, fmt.Errorf("%w: %v", draft.ErrInvalidRequest, err))
		return
	}
	slot, err := h.slots.ClaimSlot(r.Context(), slots.ClaimSlotRequest{
		DraftID:     id,
		OwnerID:     body.OwnerID,
		DisplayName: body.DisplayName,
		SlotIndex:   body.SlotIndex,
	})
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, slot)
}

func (h *Handler) ListSlots(w http.ResponseWriter, r *http.Request) {
	id, err := draftID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	list, err := h.slots.ListSlots(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, list)
}

// Sweep triggers one sweep cycle. External schedulers call this on a fixed
// cadence; concurrent invocations are safe.
func (h *Handler) Sweep(w http.ResponseWriter, r *http.Request) {
	res, err := h.sweeper.Sweep(r.Context(), h.clock.Now())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func draftID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "draftID"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid draft id", draft.ErrInvalidRequest)
	}
	return id, nil
}
