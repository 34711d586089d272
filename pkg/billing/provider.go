package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/divyansh14-yadav/getqrbackend/pkg/plan"
	"github.com/divyansh14-yadav/getqrbackend/pkg/subscription"
)

// Provider is the payment provider boundary. Implementations normalize all
// provider payload shapes into subscription.InboundEvent at this boundary so
// the reconciler never branches on SDK-specific objects, and they stamp
// every created session with the subject user and intended plan so webhook
// correlation can succeed later.
type Provider interface {
	// CreateCheckoutSession creates a hosted checkout for a plan.
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)

	// CreatePortalSession returns a pre-authenticated customer portal link
	// for managing an existing subscription.
	CreatePortalSession(ctx context.Context, providerCustomerID, providerSubscriptionID string) (*PortalSession, error)

	// ParseWebhook verifies the payload signature and normalizes the event.
	// A signature failure returns ErrSignatureVerification; event types the
	// system does not care about return (nil, nil) so the endpoint stays
	// forward-compatible with new provider events.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*subscription.InboundEvent, error)

	// ResolveSubscription fetches the provider's authoritative subscription
	// state, normalized to the same event shape.
	ResolveSubscription(ctx context.Context, providerSubscriptionID string) (*subscription.InboundEvent, error)
}

// CheckoutRequest contains what is needed to start a checkout. Paddle's
// hosted checkout takes a single redirect URL, so there is no separate
// cancel target.
type CheckoutRequest struct {
	UserID     uuid.UUID
	Tier       plan.Tier
	Email      string // pre-fill billing email if known
	SuccessURL string
}

// CheckoutSession is a hosted checkout created at the provider.
type CheckoutSession struct {
	URL       string    `json:"url"`
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PortalSession is a customer portal link.
type PortalSession struct {
	URL              string `json:"url"`
	CancelURL        string `json:"cancel_url,omitempty"`
	UpdatePaymentURL string `json:"update_payment_url,omitempty"`
}
