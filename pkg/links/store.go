package links

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrLinkNotFound means the slot does not exist or belongs to another
	// user.
	ErrLinkNotFound = errors.New("links: link not found")

	// ErrInvalidLink means the slot payload failed validation.
	ErrInvalidLink = errors.New("links: invalid link")
)

// Store is the persistence contract for link slots.
type Store interface {
	// List returns all of a user's slots ordered by creation time, oldest
	// first.
	List(ctx context.Context, userID uuid.UUID) ([]Link, error)

	// CountEnabled returns the number of enabled slots for a user.
	CountEnabled(ctx context.Context, userID uuid.UUID) (int64, error)

	// Create persists a new slot.
	Create(ctx context.Context, link Link) error

	// SetEnabled toggles a slot owned by the user. Fails with
	// ErrLinkNotFound when the slot does not exist for that user.
	SetEnabled(ctx context.Context, userID, linkID uuid.UUID, enabled bool) error

	// DisableMostRecent disables the n most recently created enabled slots
	// and returns how many it disabled. This is the deterministic
	// last-in-first-disabled rule: the user's oldest configured slots
	// survive a downgrade.
	DisableMostRecent(ctx context.Context, userID uuid.UUID, n int) (int, error)
}
