package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/openfantasy/draftcore/internal/draft"
	"github.com/rs/zerolog/log"
)

// errorBody is the wire shape of every rejected request. Kind is a stable
// machine-readable discriminator; callers switch on it to explain the
// rejection to users.
type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorMapping struct {
	status int
	kind   string
}

var errorMappings = []struct {
	err     error
	mapping errorMapping
}{
	{draft.ErrInvalidRequest, errorMapping{http.StatusBadRequest, "invalid_request"}},
	{draft.ErrDraftNotFound, errorMapping{http.StatusNotFound, "draft_not_found"}},
	{draft.ErrNotOnClock, errorMapping{http.StatusConflict, "not_on_clock"}},
	{draft.ErrPlayerAlreadyDrafted, errorMapping{http.StatusConflict, "player_already_drafted"}},
	{draft.ErrStaleSubmission, errorMapping{http.StatusConflict, "stale_submission"}},
	{draft.ErrInvalidState, errorMapping{http.StatusConflict, "invalid_state"}},
	{draft.ErrInvalidTransition, errorMapping{http.StatusConflict, "invalid_transition"}},
	{draft.ErrAlreadyClaimed, errorMapping{http.StatusConflict, "already_claimed"}},
	{draft.ErrNoOpenSlot, errorMapping{http.StatusConflict, "no_open_slot"}},
	{draft.ErrConflict, errorMapping{http.StatusConflict, "conflict"}},
	{draft.ErrMalformedDraftOrder, errorMapping{http.StatusUnprocessableEntity, "malformed_draft_order"}},
	{draft.ErrNoEligiblePlayer, errorMapping{http.StatusUnprocessableEntity, "no_eligible_player"}},
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			respondJSON(w, m.mapping.status, errorBody{Kind: m.mapping.kind, Message: err.Error()})
			return
		}
	}
	log.Error().Err(err).Msg("request failed")
	respondJSON(w, http.StatusInternalServerError, errorBody{Kind: "internal", Message: "internal error"})
}
