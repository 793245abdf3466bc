package draft

import "errors"

// Validation errors are caller-visible and never retried by the core: they
// mean the caller's view of the draft was stale and it should re-sync.
var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrDraftNotFound        = errors.New("draft not found")
	ErrInvalidState         = errors.New("draft is not accepting picks")
	ErrNotOnClock           = errors.New("team is not on the clock")
	ErrPlayerAlreadyDrafted = errors.New("player already drafted")
	ErrStaleSubmission      = errors.New("pick submission does not match the current turn")
	ErrNoOpenSlot           = errors.New("no open slot available")
	ErrAlreadyClaimed       = errors.New("slot already claimed")
	ErrInvalidTransition    = errors.New("invalid draft status transition")
)

// Coordination failures are recovered locally (skip this cycle, or retry with
// fresh preconditions) before being surfaced.
var (
	ErrConflict = errors.New("draft state was modified concurrently")
)

// Fatal configuration errors leave the draft in its last valid state and
// require operator intervention; the core never loops retrying them.
var (
	ErrMalformedDraftOrder = errors.New("draft order is malformed")
	ErrNoEligiblePlayer    = errors.New("no eligible player available for autopick")
)
