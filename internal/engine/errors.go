package engine

import "errors"

var (
	// ErrInvalidPayload rejects a submission whose shape or ranges are bad.
	ErrInvalidPayload = errors.New("invalid training payload")

	// ErrStateInvariant means an update would corrupt progression state,
	// e.g. a completed-exercise counter exceeding the level's total. Never
	// silently clamped: it indicates a bug upstream and aborts the write.
	ErrStateInvariant = errors.New("progress state invariant violated")

	// ErrStoreUnavailable is a transient store failure. The write did not
	// happen; retrying with the same idempotency key is safe.
	ErrStoreUnavailable = errors.New("progress store unavailable")

	// ErrAlreadyReached rejects a skip-level challenge whose target is at or
	// below the user's current level.
	ErrAlreadyReached = errors.New("target level already reached")

	// ErrDuplicateSubmission is returned by stores when a training record
	// with the same idempotency key already exists for the user.
	ErrDuplicateSubmission = errors.New("duplicate submission")
)
