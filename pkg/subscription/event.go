package subscription

import (
	"time"

	"github.com/google/uuid"

	"github.com/divyansh14-yadav/getqrbackend/pkg/plan"
)

// EventType is the normalized billing event type. Provider adapters map
// their own event names onto these so the reconciler never branches on
// provider-specific payload shapes.
type EventType string

const (
	EventCheckoutCompleted     EventType = "checkout_completed"
	EventSubscriptionCreated   EventType = "subscription_created"
	EventSubscriptionUpdated   EventType = "subscription_updated"
	EventSubscriptionCancelled EventType = "subscription_cancelled"
	EventInvoicePaid           EventType = "invoice_paid"
	EventInvoiceFailed         EventType = "invoice_failed"
)

// StatusActive is the normalized provider status that marks a subscription
// as paid and healthy.
const StatusActive = "active"

// InboundEvent is a provider lifecycle notification normalized at the
// boundary. Events are processed and discarded; they are not persisted here.
type InboundEvent struct {
	// ID is the provider's event identifier, used only for fast-path
	// duplicate suppression. Correctness does not depend on it.
	ID string

	Type          EventType
	ProviderEvent string // original provider event name, for logging

	// UserID is the subject user. Zero when the event carried no usable
	// correlation; such events are no-ops.
	UserID uuid.UUID

	// Tier is the plan resolved from the event's price identifier. Empty
	// when the event carries no plan information.
	Tier plan.Tier

	// Status is the provider-reported subscription status, normalized to
	// lower case.
	Status string

	ProviderCustomerID     string
	ProviderSubscriptionID string

	// PeriodEnd is the end of the billing period the event describes.
	PeriodEnd *time.Time

	// OccurredAt is the provider's own event timestamp, the preferred
	// ordering key.
	OccurredAt time.Time
}

// OrderingKey returns the monotonically comparable key used to discard
// stale and duplicate deliveries. The provider's event timestamp is
// preferred; the period end is a documented approximation used only when no
// better signal exists.
func (e InboundEvent) OrderingKey() time.Time {
	if !e.OccurredAt.IsZero() {
		return e.OccurredAt
	}
	if e.PeriodEnd != nil {
		return *e.PeriodEnd
	}
	return time.Time{}
}
