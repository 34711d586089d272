package plan

import (
	"slices"
	"time"
)

// Unlimited indicates no cap for a countable limit (-1 chosen for SQL and
// JSON compatibility).
const Unlimited int64 = -1

// Capability is a named plan feature flag.
type Capability string

const (
	CapabilityCustomizeAppearance Capability = "customize_appearance"
	CapabilityViewAnalytics       Capability = "view_analytics"
	CapabilityUnlimitedLinks      Capability = "unlimited_links"
	CapabilityReferralRewards     Capability = "referral_rewards"
	CapabilityBrandingRemoval     Capability = "branding_removal"
	CapabilityAdminPanel          Capability = "admin_panel"
)

// ParseCapability converts a raw string into a Capability. Unknown values
// report ok=false.
func ParseCapability(s string) (Capability, bool) {
	switch c := Capability(s); c {
	case CapabilityCustomizeAppearance, CapabilityViewAnalytics, CapabilityUnlimitedLinks,
		CapabilityReferralRewards, CapabilityBrandingRemoval, CapabilityAdminPanel:
		return c, true
	default:
		return "", false
	}
}

// Money represents a monetary amount in the smallest currency unit.
// For example, ₹99.00 INR is Amount: 9900, Currency: "INR".
type Money struct {
	Amount   int64  `json:"amount" yaml:"amount"`
	Currency string `json:"currency" yaml:"currency"`
}

// Definition is the feature-access matrix for a single tier. Definitions are
// fixed at deploy time; changing one is a deployment event, not a runtime
// mutation.
type Definition struct {
	Tier         Tier
	Name         string
	MaxLinks     int64 // Unlimited for no cap
	Capabilities []Capability
	Duration     time.Duration // nominal billing period; 0 means does not expire
	Price        Money
	PriceID      string // payment provider price identifier, empty for trial
	Public       bool   // available for self-service checkout
}

// Has reports whether the definition grants the named capability.
func (d Definition) Has(c Capability) bool {
	return slices.Contains(d.Capabilities, c)
}

// LinksUnlimited reports whether the definition has no link cap.
func (d Definition) LinksUnlimited() bool {
	return d.MaxLinks == Unlimited
}

// AllowsLinkCount reports whether n enabled links fit within the cap.
func (d Definition) AllowsLinkCount(n int64) bool {
	return d.MaxLinks == Unlimited || n <= d.MaxLinks
}
