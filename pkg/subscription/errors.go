package subscription

import "errors"

var (
	// ErrNotFound means the subject user does not exist at all, not merely
	// that no subscription has been provisioned yet. Events for unknown
	// users are dropped silently; the account may have been deleted.
	ErrNotFound = errors.New("subscription: user not found")

	// ErrConflict is a concurrent-write race on a record. Callers retry with
	// bounded attempts; reapplying an event is always safe.
	ErrConflict = errors.New("subscription: concurrent update conflict")

	// ErrStaleEvent marks an event whose ordering key is not strictly newer
	// than the applied state. It is an idempotent success, never surfaced to
	// the provider as a failure.
	ErrStaleEvent = errors.New("subscription: stale or duplicate event")

	// ErrCorrelationMissing means an event could not be mapped to a user or
	// plan. Logged and treated as a no-op.
	ErrCorrelationMissing = errors.New("subscription: event correlation missing")

	// ErrValidation marks a malformed event that must not be applied.
	ErrValidation = errors.New("subscription: invalid event")
)
