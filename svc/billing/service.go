// Package billing exposes the HTTP surface of the billing domain: the
// provider webhook endpoint, checkout and portal session creation, the
// subscription status projection, and the public plan listing.
package billing

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/divyansh14-yadav/getqrbackend/pkg/billing"
	"github.com/divyansh14-yadav/getqrbackend/pkg/entitlement"
	"github.com/divyansh14-yadav/getqrbackend/pkg/plan"
	"github.com/divyansh14-yadav/getqrbackend/pkg/subscription"
)

// Config holds the endpoint-level settings.
type Config struct {
	// Default redirect target for hosted checkout. A request may override
	// it per session.
	CheckoutSuccessURL string `env:"CHECKOUT_SUCCESS_URL,required"`

	// WebhookMaxBodyBytes caps the webhook payload size.
	WebhookMaxBodyBytes int64 `env:"WEBHOOK_MAX_BODY_BYTES" envDefault:"1048576"`
}

// Service wires the billing domain to HTTP.
type Service struct {
	cfg        Config
	provider   billing.Provider
	reconciler *subscription.Reconciler
	subs       subscription.Store
	catalog    *plan.Catalog
	gate       *entitlement.Gate
	log        *slog.Logger
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates the billing HTTP service. All dependencies are
// required.
func NewService(
	cfg Config,
	provider billing.Provider,
	reconciler *subscription.Reconciler,
	subs subscription.Store,
	catalog *plan.Catalog,
	gate *entitlement.Gate,
	opts ...Option,
) *Service {
	if provider == nil {
		panic("billing: provider is required")
	}
	if reconciler == nil {
		panic("billing: reconciler is required")
	}
	if subs == nil {
		panic("billing: subscription store is required")
	}
	if catalog == nil {
		panic("billing: plan catalog is required")
	}
	if gate == nil {
		panic("billing: entitlement gate is required")
	}
	if cfg.WebhookMaxBodyBytes <= 0 {
		cfg.WebhookMaxBodyBytes = 1 << 20
	}
	s := &Service{
		cfg:        cfg,
		provider:   provider,
		reconciler: reconciler,
		subs:       subs,
		catalog:    catalog,
		gate:       gate,
		log:        slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routes of the billing surface. The webhook and plan
// listing are public; everything else expects an authenticated user in the
// request context.
func (s *Service) Handler(authn func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Post("/webhook", s.handleWebhook)
	r.Get("/plans", s.handlePlans)

	r.Group(func(r chi.Router) {
		if authn != nil {
			r.Use(authn)
		}
		r.Post("/checkout", s.handleCheckout)
		r.Post("/portal", s.handlePortal)
		r.Get("/subscription", s.handleStatus)
	})

	r.Group(func(r chi.Router) {
		if authn != nil {
			r.Use(authn)
		}
		r.Put("/admin/subscriptions/{user_id}", s.handleAdminOverride)
	})

	return r
}
