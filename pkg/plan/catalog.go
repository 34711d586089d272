package plan

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidDefinition = errors.New("invalid plan definition")

// Catalog is the single immutable source of truth for plan definitions.
// Every entitlement decision in the system goes through DefinitionFor so the
// feature matrix cannot drift between call sites.
type Catalog struct {
	defs      map[Tier]Definition
	byPriceID map[string]Tier
}

// NewCatalog builds a catalog from the given definitions. A trial definition
// is required because it is the least-privilege fallback for every lookup.
func NewCatalog(defs ...Definition) (*Catalog, error) {
	c := &Catalog{
		defs:      make(map[Tier]Definition, len(defs)),
		byPriceID: make(map[string]Tier),
	}
	for _, d := range defs {
		if !d.Tier.Valid() {
			return nil, fmt.Errorf("%w: unknown tier %q", ErrInvalidDefinition, d.Tier)
		}
		if d.MaxLinks < 0 && d.MaxLinks != Unlimited {
			return nil, fmt.Errorf("%w: tier %q has negative link cap %d", ErrInvalidDefinition, d.Tier, d.MaxLinks)
		}
		if _, dup := c.defs[d.Tier]; dup {
			return nil, fmt.Errorf("%w: duplicate definition for tier %q", ErrInvalidDefinition, d.Tier)
		}
		c.defs[d.Tier] = d
		if d.PriceID != "" {
			c.byPriceID[d.PriceID] = d.Tier
		}
	}
	if _, ok := c.defs[TierTrial]; !ok {
		return nil, fmt.Errorf("%w: trial definition is required", ErrInvalidDefinition)
	}
	return c, nil
}

// MustCatalog is like NewCatalog but panics on invalid configuration, for use
// during application startup where a bad catalog should prevent boot.
func MustCatalog(defs ...Definition) *Catalog {
	c, err := NewCatalog(defs...)
	if err != nil {
		panic(err)
	}
	return c
}

// DefinitionFor returns the feature matrix for a tier. It is a total
// function: unknown or missing tiers resolve to the trial definition so a
// corrupt or forged tier value can never grant extra access.
func (c *Catalog) DefinitionFor(tier Tier) Definition {
	if d, ok := c.defs[tier]; ok {
		return d
	}
	return c.defs[TierTrial]
}

// TierForPriceID maps a payment provider price identifier back to a tier.
// Used to correlate webhook events with plan definitions.
func (c *Catalog) TierForPriceID(priceID string) (Tier, bool) {
	t, ok := c.byPriceID[priceID]
	return t, ok
}

// Public returns the purchasable definitions in tier order, for the plans
// listing endpoint.
func (c *Catalog) Public() []Definition {
	out := make([]Definition, 0, len(c.defs))
	for _, t := range Tiers() {
		if d, ok := c.defs[t]; ok && d.Public {
			out = append(out, d)
		}
	}
	return out
}

// Default returns the built-in catalog. Paid tiers from monthly up have no
// link cap; trial and weekly are deliberately tight to drive upgrades.
func Default() *Catalog {
	return MustCatalog(defaultDefinitions()...)
}

func defaultDefinitions() []Definition {
	return []Definition{
		Definition{
			Tier:         TierTrial,
			Name:         "Free Trial",
			MaxLinks:     2,
			Capabilities: []Capability{CapabilityViewAnalytics},
			Duration:     7 * 24 * time.Hour,
		},
		Definition{
			Tier:     TierWeekly,
			Name:     "Weekly Plan",
			MaxLinks: 3,
			Duration: 7 * 24 * time.Hour,
			Price:    Money{Amount: 9900, Currency: "INR"},
			Public:   true,
		},
		Definition{
			Tier:     TierMonthly,
			Name:     "Monthly Plan",
			MaxLinks: Unlimited,
			Capabilities: []Capability{
				CapabilityCustomizeAppearance,
				CapabilityViewAnalytics,
				CapabilityUnlimitedLinks,
			},
			Duration: 30 * 24 * time.Hour,
			Price:    Money{Amount: 29900, Currency: "INR"},
			Public:   true,
		},
		Definition{
			Tier:     TierYearly,
			Name:     "Yearly Plan",
			MaxLinks: Unlimited,
			Capabilities: []Capability{
				CapabilityCustomizeAppearance,
				CapabilityViewAnalytics,
				CapabilityUnlimitedLinks,
				CapabilityReferralRewards,
			},
			Duration: 365 * 24 * time.Hour,
			Price:    Money{Amount: 299900, Currency: "INR"},
			Public:   true,
		},
		Definition{
			Tier:     TierLifetime,
			Name:     "Lifetime Plan",
			MaxLinks: Unlimited,
			Capabilities: []Capability{
				CapabilityCustomizeAppearance,
				CapabilityViewAnalytics,
				CapabilityUnlimitedLinks,
				CapabilityReferralRewards,
			},
			Price:  Money{Amount: 999900, Currency: "INR"},
			Public: true,
		},
		Definition{
			Tier:     TierBusiness,
			Name:     "Business Plan",
			MaxLinks: Unlimited,
			Capabilities: []Capability{
				CapabilityCustomizeAppearance,
				CapabilityViewAnalytics,
				CapabilityUnlimitedLinks,
				CapabilityReferralRewards,
				CapabilityBrandingRemoval,
				CapabilityAdminPanel,
			},
		},
	}
}
