package links

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/divyansh14-yadav/getqrbackend/pkg/entitlement"
	"github.com/divyansh14-yadav/getqrbackend/pkg/plan"
	"github.com/divyansh14-yadav/getqrbackend/pkg/subscription"
)

// ErrLimitReached means the operation would push the enabled-slot count past
// the plan cap.
var ErrLimitReached = errors.New("links: link limit reached")

// LimitError carries the structured detail behind ErrLimitReached so the API
// layer can render an upgrade prompt.
type LimitError struct {
	Tier     plan.Tier
	MaxLinks int64
	Enabled  int64
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("links: plan %s allows %d enabled links, %d already enabled", e.Tier, e.MaxLinks, e.Enabled)
}

func (e *LimitError) Unwrap() error { return ErrLimitReached }

const defaultDemoteAttempts = 3

// Service owns link slots and enforces the capacity side of entitlement:
// whenever the effective plan shrinks, excess enabled slots are disabled
// deterministically, newest first, and never deleted.
type Service struct {
	store          Store
	subs           subscription.Store
	catalog        *plan.Catalog
	log            *slog.Logger
	now            func() time.Time
	demoteAttempts int
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the structured logger.
func WithServiceLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source, for tests with fixed time values.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates a Service. Panics if required dependencies are nil to
// fail fast during initialization.
func NewService(store Store, subs subscription.Store, catalog *plan.Catalog, opts ...ServiceOption) *Service {
	if store == nil {
		panic("links: store is required")
	}
	if subs == nil {
		panic("links: subscription store is required")
	}
	if catalog == nil {
		panic("links: plan catalog is required")
	}
	s := &Service{
		store:          store,
		subs:           subs,
		catalog:        catalog,
		log:            slog.Default(),
		now:            func() time.Time { return time.Now().UTC() },
		demoteAttempts: defaultDemoteAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enforce reconciles the user's enabled slots with their current effective
// entitlement. It runs after every subscription change and lazily on reads,
// because expiration can shrink entitlement silently between events.
//
// Running it twice in a row is a no-op: the second pass sees a fitting count
// and reports DowngradeApplied=false.
func (s *Service) Enforce(ctx context.Context, userID uuid.UUID) (subscription.CapacityReport, error) {
	rec, err := s.subs.Get(ctx, userID)
	if err != nil {
		return subscription.CapacityReport{}, err
	}

	access := entitlement.Resolve(s.catalog, rec, s.now())
	if access.Expired {
		// The evaluator already answered with trial access; persisting the
		// demotion here keeps the stored record honest too.
		s.persistExpiration(ctx, userID)
	}

	if access.Definition.LinksUnlimited() {
		return subscription.CapacityReport{}, nil
	}

	enabled, err := s.store.CountEnabled(ctx, userID)
	if err != nil {
		return subscription.CapacityReport{}, err
	}
	excess := enabled - access.Definition.MaxLinks
	if excess <= 0 {
		return subscription.CapacityReport{}, nil
	}

	disabled, err := s.store.DisableMostRecent(ctx, userID, int(excess))
	if err != nil {
		return subscription.CapacityReport{}, err
	}

	s.log.InfoContext(ctx, "disabled excess links after entitlement change",
		slog.String("user_id", userID.String()),
		slog.String("tier", string(access.Tier)),
		slog.Int64("max_links", access.Definition.MaxLinks),
		slog.Int("disabled", disabled),
	)
	return subscription.CapacityReport{DowngradeApplied: true, DisabledCount: disabled}, nil
}

// List returns the user's slots after a lazy capacity check. The report is
// surfaced to the caller so the UI can explain a downgrade that just
// happened.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]Link, subscription.CapacityReport, error) {
	report, err := s.Enforce(ctx, userID)
	if err != nil {
		return nil, subscription.CapacityReport{}, err
	}
	out, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, subscription.CapacityReport{}, err
	}
	return out, report, nil
}

// Create adds a new enabled slot if the plan cap allows one more.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, platform, url string) (Link, error) {
	if platform == "" || url == "" {
		return Link{}, fmt.Errorf("%w: platform and url are required", ErrInvalidLink)
	}

	if _, err := s.Enforce(ctx, userID); err != nil {
		return Link{}, err
	}
	access, enabled, err := s.currentAccess(ctx, userID)
	if err != nil {
		return Link{}, err
	}
	if !access.Definition.AllowsLinkCount(enabled + 1) {
		return Link{}, &LimitError{Tier: access.Tier, MaxLinks: access.Definition.MaxLinks, Enabled: enabled}
	}

	now := s.now()
	link := Link{
		ID:        uuid.New(),
		UserID:    userID,
		Platform:  platform,
		URL:       url,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, link); err != nil {
		return Link{}, err
	}
	return link, nil
}

// Enable re-enables a previously disabled slot, subject to the current cap.
// Capacity is re-checked here because entitlement may have shrunk since the
// slot was disabled.
func (s *Service) Enable(ctx context.Context, userID, linkID uuid.UUID) error {
	if _, err := s.Enforce(ctx, userID); err != nil {
		return err
	}
	access, enabled, err := s.currentAccess(ctx, userID)
	if err != nil {
		return err
	}
	if !access.Definition.AllowsLinkCount(enabled + 1) {
		return &LimitError{Tier: access.Tier, MaxLinks: access.Definition.MaxLinks, Enabled: enabled}
	}
	return s.store.SetEnabled(ctx, userID, linkID, true)
}

// Disable hides a slot. Always allowed; reducing usage needs no entitlement.
func (s *Service) Disable(ctx context.Context, userID, linkID uuid.UUID) error {
	return s.store.SetEnabled(ctx, userID, linkID, false)
}

func (s *Service) currentAccess(ctx context.Context, userID uuid.UUID) (entitlement.Access, int64, error) {
	rec, err := s.subs.Get(ctx, userID)
	if err != nil {
		return entitlement.Access{}, 0, err
	}
	access := entitlement.Resolve(s.catalog, rec, s.now())
	enabled, err := s.store.CountEnabled(ctx, userID)
	if err != nil {
		return entitlement.Access{}, 0, err
	}
	return access, enabled, nil
}

// persistExpiration writes the read-time trial fallback back to the record:
// tier trial, no expiry, inactive. The event ordering key is left untouched
// so a later provider event still applies normally. Best effort; the
// evaluator's fallback keeps access correct even if every attempt loses.
func (s *Service) persistExpiration(ctx context.Context, userID uuid.UUID) {
	for attempt := 0; attempt < s.demoteAttempts; attempt++ {
		rec, err := s.subs.Get(ctx, userID)
		if err != nil {
			s.log.WarnContext(ctx, "failed to read record for expiration demotion",
				slog.String("user_id", userID.String()), slog.Any("error", err))
			return
		}
		if !rec.ExpiredAt(s.now()) {
			// A newer event already moved the record on.
			return
		}
		_, applied, err := s.subs.CompareAndApply(ctx, userID, rec.Version, func(rec *subscription.Record) {
			rec.Tier = plan.TierTrial
			rec.ExpiresAt = nil
			rec.Active = false
		})
		if err != nil {
			s.log.WarnContext(ctx, "failed to persist expiration demotion",
				slog.String("user_id", userID.String()), slog.Any("error", err))
			return
		}
		if applied {
			s.log.InfoContext(ctx, "expired subscription demoted to trial",
				slog.String("user_id", userID.String()))
			return
		}
	}
}
