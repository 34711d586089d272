package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/divyansh14-yadav/getqrbackend/pkg/plan"
)

// SubscriptionResolver fetches the authoritative subscription state from the
// payment provider. Checkout and invoice events are only triggers; the
// resolved subscription is the source of truth for plan, status, and period.
type SubscriptionResolver interface {
	ResolveSubscription(ctx context.Context, providerSubscriptionID string) (*InboundEvent, error)
}

// CapacityEnforcer reconciles provisioned resources with the entitlement
// that results from a subscription change.
type CapacityEnforcer interface {
	Enforce(ctx context.Context, userID uuid.UUID) (CapacityReport, error)
}

// CapacityReport is the outcome of a capacity enforcement pass.
type CapacityReport struct {
	DowngradeApplied bool `json:"downgrade_applied"`
	DisabledCount    int  `json:"disabled_count"`
}

const defaultMaxApplyAttempts = 3

// Reconciler consumes normalized provider lifecycle events and applies them
// to subscription records idempotently. Duplicate, replayed, and out-of-order
// deliveries are tolerated by construction: an event whose ordering key is
// not strictly newer than the record's applied state is a no-op.
type Reconciler struct {
	store       Store
	resolver    SubscriptionResolver
	enforcer    CapacityEnforcer
	dedup       DedupCache
	log         *slog.Logger
	maxAttempts int
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithDedupCache installs a fast-path duplicate suppression cache.
func WithDedupCache(c DedupCache) ReconcilerOption {
	return func(r *Reconciler) { r.dedup = c }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if l != nil {
			r.log = l
		}
	}
}

// WithMaxApplyAttempts bounds the retries on optimistic-concurrency
// conflicts. When attempts exhaust, the provider's own redelivery is relied
// upon; reapplying is always safe.
func WithMaxApplyAttempts(n int) ReconcilerOption {
	return func(r *Reconciler) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

// NewReconciler creates a Reconciler. Panics if store is nil to fail fast
// during initialization. resolver may be nil, in which case events that
// require provider lookups degrade to logged no-ops; enforcer may be nil in
// tests that do not exercise capacity.
func NewReconciler(store Store, resolver SubscriptionResolver, enforcer CapacityEnforcer, opts ...ReconcilerOption) *Reconciler {
	if store == nil {
		panic("subscription: store is required")
	}
	r := &Reconciler{
		store:       store,
		resolver:    resolver,
		enforcer:    enforcer,
		log:         slog.Default(),
		maxAttempts: defaultMaxApplyAttempts,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Apply processes one inbound event. It returns nil for every outcome the
// provider should treat as success, including duplicates, stale replays,
// events for deleted users, and events with no usable correlation. Only
// infrastructure failures (store errors, exhausted conflict retries,
// provider lookup failures) surface as errors so the provider retries.
func (r *Reconciler) Apply(ctx context.Context, ev InboundEvent) error {
	if ev.Type == "" {
		return fmt.Errorf("%w: missing event type", ErrValidation)
	}

	log := r.log.With(
		slog.String("event_type", string(ev.Type)),
		slog.String("provider_event", ev.ProviderEvent),
		slog.String("event_id", ev.ID),
	)

	if r.dedup != nil && ev.ID != "" {
		seen, err := r.dedup.Seen(ctx, ev.ID)
		if err != nil {
			// Fail open: the ordering rule still guarantees idempotency.
			log.WarnContext(ctx, "event dedup check failed", slog.Any("error", err))
		} else if seen {
			log.DebugContext(ctx, "duplicate event suppressed by dedup cache")
			return nil
		}
	}

	switch ev.Type {
	case EventCheckoutCompleted, EventInvoicePaid:
		resolved, err := r.resolveAuthoritative(ctx, ev)
		if err != nil {
			if errors.Is(err, ErrCorrelationMissing) {
				log.WarnContext(ctx, "event has no usable subscription reference, ignoring")
				return nil
			}
			return err
		}
		ev = resolved
	}

	// Last-resort correlation: look the user up on the provider's
	// subscription object when the event itself carried none.
	if ev.UserID == uuid.Nil && ev.ProviderSubscriptionID != "" && r.resolver != nil {
		if resolved, err := r.resolver.ResolveSubscription(ctx, ev.ProviderSubscriptionID); err == nil && resolved.UserID != uuid.Nil {
			ev.UserID = resolved.UserID
		}
	}
	if ev.UserID == uuid.Nil {
		log.WarnContext(ctx, "event correlation missing, ignoring")
		return nil
	}
	log = log.With(slog.String("user_id", ev.UserID.String()))

	mutate, err := r.transition(ev)
	if err != nil {
		if errors.Is(err, ErrCorrelationMissing) || errors.Is(err, ErrValidation) {
			log.WarnContext(ctx, "event not applicable", slog.Any("error", err))
			return nil
		}
		return err
	}

	rec, err := r.applyWithRetry(ctx, ev, mutate)
	switch {
	case errors.Is(err, ErrNotFound):
		// The account may have been deleted since the event was emitted.
		log.DebugContext(ctx, "event subject user does not exist, dropping")
		return nil
	case errors.Is(err, ErrStaleEvent):
		// A redelivery can arrive after the record was applied but before
		// enforcement succeeded. Enforcement is idempotent, so running it on
		// the stale path too lets the retry heal that gap.
		log.DebugContext(ctx, "stale or duplicate event discarded")
		if r.enforcer != nil {
			if _, err := r.enforcer.Enforce(ctx, ev.UserID); err != nil {
				return fmt.Errorf("enforce capacity after %s: %w", ev.Type, err)
			}
		}
		r.markProcessed(ctx, ev, log)
		return nil
	case err != nil:
		return err
	}

	log.InfoContext(ctx, "subscription event applied",
		slog.String("tier", string(rec.Tier)),
		slog.Bool("active", rec.Active),
		slog.Int64("version", rec.Version),
	)

	// Capacity must never be left inconsistent between a plan change and
	// the next read, so enforcement runs synchronously here.
	if r.enforcer != nil {
		report, err := r.enforcer.Enforce(ctx, ev.UserID)
		if err != nil {
			return fmt.Errorf("enforce capacity after %s: %w", ev.Type, err)
		}
		if report.DowngradeApplied {
			log.InfoContext(ctx, "capacity reduced after subscription change",
				slog.Int("disabled_links", report.DisabledCount))
		}
	}

	r.markProcessed(ctx, ev, log)
	return nil
}

// AdminOverride is the explicit administrative mutation path. It bypasses
// event ordering but still goes through the store's optimistic versioning
// and triggers capacity enforcement like any other entitlement change.
func (r *Reconciler) AdminOverride(ctx context.Context, userID uuid.UUID, tier plan.Tier, active bool, expiresAt *time.Time) (Record, error) {
	if !tier.Valid() {
		return Record{}, fmt.Errorf("%w: unknown tier %q", ErrValidation, tier)
	}

	var rec Record
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		cur, err := r.store.Get(ctx, userID)
		if err != nil {
			return Record{}, err
		}
		next, applied, err := r.store.CompareAndApply(ctx, userID, cur.Version, func(rec *Record) {
			rec.Tier = tier
			rec.Active = active
			rec.ExpiresAt = expiresAt
		})
		if err != nil {
			return Record{}, err
		}
		if applied {
			rec = next
			break
		}
		if attempt == r.maxAttempts-1 {
			return Record{}, ErrConflict
		}
	}

	r.log.InfoContext(ctx, "subscription overridden by admin",
		slog.String("user_id", userID.String()),
		slog.String("tier", string(tier)),
		slog.Bool("active", active),
	)

	if r.enforcer != nil {
		if _, err := r.enforcer.Enforce(ctx, userID); err != nil {
			return rec, fmt.Errorf("enforce capacity after override: %w", err)
		}
	}
	return rec, nil
}

// resolveAuthoritative turns a trigger event into the canonical
// "subscription updated" effect by fetching the provider's subscription.
// Correlation prefers the most specific source present: metadata on the
// trigger event itself wins over metadata on the resolved subscription.
func (r *Reconciler) resolveAuthoritative(ctx context.Context, ev InboundEvent) (InboundEvent, error) {
	if ev.ProviderSubscriptionID == "" || r.resolver == nil {
		return ev, fmt.Errorf("%w: %s event without subscription reference", ErrCorrelationMissing, ev.Type)
	}

	resolved, err := r.resolver.ResolveSubscription(ctx, ev.ProviderSubscriptionID)
	if err != nil {
		return ev, fmt.Errorf("resolve subscription %s: %w", ev.ProviderSubscriptionID, err)
	}

	out := *resolved
	out.Type = EventSubscriptionUpdated
	out.ID = ev.ID
	out.ProviderEvent = ev.ProviderEvent
	if ev.UserID != uuid.Nil {
		out.UserID = ev.UserID
	}
	if out.Tier == "" {
		out.Tier = ev.Tier
	}
	if out.ProviderSubscriptionID == "" {
		out.ProviderSubscriptionID = ev.ProviderSubscriptionID
	}
	if out.OccurredAt.IsZero() {
		out.OccurredAt = ev.OccurredAt
	}
	return out, nil
}

// transition maps a normalized event to its record mutation.
func (r *Reconciler) transition(ev InboundEvent) (func(*Record), error) {
	switch ev.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		if ev.Tier == "" {
			return nil, fmt.Errorf("%w: %s event carries no plan", ErrCorrelationMissing, ev.Type)
		}
		if !ev.Tier.Valid() {
			return nil, fmt.Errorf("%w: unknown tier %q", ErrValidation, ev.Tier)
		}
		return func(rec *Record) {
			rec.Tier = ev.Tier
			rec.ExpiresAt = ev.PeriodEnd
			rec.Active = ev.Status == StatusActive
			if ev.ProviderCustomerID != "" {
				rec.ProviderCustomerID = ev.ProviderCustomerID
			}
			if ev.ProviderSubscriptionID != "" {
				rec.ProviderSubscriptionID = ev.ProviderSubscriptionID
			}
		}, nil

	case EventSubscriptionCancelled:
		return func(rec *Record) {
			rec.Tier = plan.TierTrial
			rec.ExpiresAt = nil
			rec.Active = false
		}, nil

	case EventInvoiceFailed:
		// A failed renewal flags the account unhealthy but does not evict:
		// tier and expiry stay until cancellation or natural expiration.
		return func(rec *Record) {
			rec.Active = false
		}, nil

	default:
		return nil, fmt.Errorf("%w: unhandled event type %q", ErrValidation, ev.Type)
	}
}

// applyWithRetry performs the get/check/compare-and-apply loop. Staleness is
// re-evaluated on every attempt because a competing writer may have applied
// a causally newer event between reads.
func (r *Reconciler) applyWithRetry(ctx context.Context, ev InboundEvent, mutate func(*Record)) (Record, error) {
	key := ev.OrderingKey()

	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		cur, err := r.store.Get(ctx, ev.UserID)
		if err != nil {
			return Record{}, err
		}
		if !key.IsZero() && !key.After(cur.LastEventAt) {
			return cur, ErrStaleEvent
		}

		next, applied, err := r.store.CompareAndApply(ctx, ev.UserID, cur.Version, func(rec *Record) {
			mutate(rec)
			if !key.IsZero() {
				rec.LastEventAt = key
			}
		})
		if err != nil {
			return Record{}, err
		}
		if applied {
			return next, nil
		}
	}
	return Record{}, ErrConflict
}

func (r *Reconciler) markProcessed(ctx context.Context, ev InboundEvent, log *slog.Logger) {
	if r.dedup == nil || ev.ID == "" {
		return
	}
	if err := r.dedup.Mark(ctx, ev.ID); err != nil {
		log.WarnContext(ctx, "failed to mark event processed", slog.Any("error", err))
	}
}
