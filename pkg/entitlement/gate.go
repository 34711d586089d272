package entitlement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/divyansh14-yadav/getqrbackend/pkg/plan"
	"github.com/divyansh14-yadav/getqrbackend/pkg/subscription"
)

// Requirement describes what a protected operation needs: a minimum plan
// tier, a named capability flag, or both.
type Requirement struct {
	MinTier    plan.Tier       // empty means no tier floor
	Capability plan.Capability // empty means no capability needed
}

// MinimumTier requires at least the given plan level.
func MinimumTier(t plan.Tier) Requirement {
	return Requirement{MinTier: t}
}

// RequireCapability requires a named feature flag.
func RequireCapability(c plan.Capability) Requirement {
	return Requirement{Capability: c}
}

// Deny reason codes. These are part of the API contract: callers render
// upgrade prompts from them.
const (
	DenyReasonInactive          = "subscription_inactive"
	DenyReasonTierTooLow        = "plan_upgrade_required"
	DenyReasonCapabilityMissing = "feature_not_in_plan"
)

// Decision is the outcome of an authorization check. Denial is a normal
// result value carrying upgrade guidance, not an error.
type Decision struct {
	Allowed bool  `json:"allowed"`
	Denial  *Deny `json:"denial,omitempty"`
}

// Deny carries enough structured detail for the caller to render an
// upgrade prompt.
type Deny struct {
	Reason             string          `json:"reason"`
	CurrentTier        plan.Tier       `json:"current_plan"`
	RequiredTier       plan.Tier       `json:"required_plan,omitempty"`
	RequiredCapability plan.Capability `json:"required_capability,omitempty"`
}

// Evaluate checks a resolved access against a requirement. Pure; the Gate
// wraps it with a store lookup for request-time use.
func Evaluate(access Access, req Requirement) Decision {
	if !access.Active {
		return Decision{Denial: &Deny{
			Reason:             DenyReasonInactive,
			CurrentTier:        access.Tier,
			RequiredTier:       req.MinTier,
			RequiredCapability: req.Capability,
		}}
	}
	if req.MinTier != "" && !access.Tier.AtLeast(req.MinTier) {
		return Decision{Denial: &Deny{
			Reason:       DenyReasonTierTooLow,
			CurrentTier:  access.Tier,
			RequiredTier: req.MinTier,
		}}
	}
	if req.Capability != "" && !access.Definition.Has(req.Capability) {
		return Decision{Denial: &Deny{
			Reason:             DenyReasonCapabilityMissing,
			CurrentTier:        access.Tier,
			RequiredCapability: req.Capability,
		}}
	}
	return Decision{Allowed: true}
}

// Gate is the request-time authorization check for protected operations.
// It combines the stored record with live expiration evaluation, so a lapsed
// subscription is denied even before any reconciliation has persisted the
// demotion.
type Gate struct {
	subs    subscription.Store
	catalog *plan.Catalog
	now     func() time.Time
}

// NewGate creates a Gate. Panics on nil dependencies to fail fast during
// initialization.
func NewGate(subs subscription.Store, catalog *plan.Catalog) *Gate {
	if subs == nil {
		panic("entitlement: subscription store is required")
	}
	if catalog == nil {
		panic("entitlement: plan catalog is required")
	}
	return &Gate{
		subs:    subs,
		catalog: catalog,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Authorize resolves the user's current access and checks it against the
// requirement. The error is non-nil only for store failures (including
// subscription.ErrNotFound for unknown users); a denial is a normal result.
func (g *Gate) Authorize(ctx context.Context, userID uuid.UUID, req Requirement) (Decision, error) {
	rec, err := g.subs.Get(ctx, userID)
	if err != nil {
		return Decision{}, err
	}
	return Evaluate(Resolve(g.catalog, rec, g.now()), req), nil
}

// Access resolves the user's current access without a requirement check,
// for read-only status projections.
func (g *Gate) Access(ctx context.Context, userID uuid.UUID) (Access, error) {
	rec, err := g.subs.Get(ctx, userID)
	if err != nil {
		return Access{}, err
	}
	return Resolve(g.catalog, rec, g.now()), nil
}
