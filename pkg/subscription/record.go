package subscription

import (
	"time"

	"github.com/google/uuid"

	"github.com/divyansh14-yadav/getqrbackend/pkg/plan"
)

// Record is the authoritative subscription state for one user. There is
// exactly one record per user; accounts that never paid hold an implicit
// trial record.
//
// A record is mutated only by the event reconciler, by the capacity enforcer
// when it persists an observed expiration, or by an explicit administrative
// override. Everything else reads.
type Record struct {
	UserID uuid.UUID
	Tier   plan.Tier

	// ExpiresAt is the end of the current paid period. Nil means the record
	// never expires (lifetime/business) or has not been provisioned yet
	// (trial before the first provider event).
	ExpiresAt *time.Time

	// Active is the provider-reported payment health, independent of
	// ExpiresAt. A failed renewal clears it without touching the tier.
	Active bool

	// Provider correlation references. Set once known, never required for
	// access decisions.
	ProviderCustomerID     string
	ProviderSubscriptionID string

	// LastEventAt is the ordering key of the most recent event applied to
	// this record. Events with a key not strictly newer are duplicates or
	// stale replays and are discarded.
	LastEventAt time.Time

	// Version supports optimistic concurrency in the store. Zero for a
	// record that has never been persisted.
	Version int64

	UpdatedAt time.Time
}

// NewTrialRecord returns the default record for a user with no subscription
// history.
func NewTrialRecord(userID uuid.UUID) Record {
	return Record{
		UserID: userID,
		Tier:   plan.TierTrial,
		Active: true,
	}
}

// ExpiredAt reports whether the paid period has ended at the given time.
// A nil ExpiresAt never expires by construction.
func (r Record) ExpiredAt(now time.Time) bool {
	return r.ExpiresAt != nil && now.After(*r.ExpiresAt)
}
