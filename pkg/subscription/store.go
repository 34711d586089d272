package subscription

import (
	"context"

	"github.com/google/uuid"
)

// Store is the persistence contract for subscription records.
//
// Implementations must make concurrent writers for the same user safe: a
// causally newer mutation wins, a stale one must not overwrite newer state.
// The optimistic version carried by each record is the serialization
// mechanism; cross-user operations need no coordination.
type Store interface {
	// Get retrieves the record for a user, materializing an implicit default
	// trial record when the user exists but has no subscription yet. It
	// fails with ErrNotFound only when the user itself does not exist.
	Get(ctx context.Context, userID uuid.UUID) (Record, error)

	// CompareAndApply persists the result of mutate applied to the user's
	// current record, but only if the stored version still equals
	// expectedVersion. It reports applied=false when another writer got
	// there first; callers re-read and retry. The returned record is the
	// newly persisted state when applied.
	CompareAndApply(ctx context.Context, userID uuid.UUID, expectedVersion int64, mutate func(*Record)) (Record, bool, error)
}
