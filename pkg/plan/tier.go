package plan

// Tier identifies a subscription plan level. Every user is always on exactly
// one tier; accounts without a paid subscription are on TierTrial.
type Tier string

const (
	TierTrial    Tier = "trial"
	TierWeekly   Tier = "weekly"
	TierMonthly  Tier = "monthly"
	TierYearly   Tier = "yearly"
	TierLifetime Tier = "lifetime"
	TierBusiness Tier = "business"
)

// tierRank orders tiers from least to most privileged. Used for minimum-tier
// authorization checks.
var tierRank = map[Tier]int{
	TierTrial:    0,
	TierWeekly:   1,
	TierMonthly:  2,
	TierYearly:   3,
	TierLifetime: 4,
	TierBusiness: 5,
}

// ParseTier converts a raw string into a Tier. Unknown values report ok=false
// so callers can fall back to least privilege instead of trusting input.
func ParseTier(s string) (Tier, bool) {
	t := Tier(s)
	_, ok := tierRank[t]
	return t, ok
}

// Valid reports whether the tier is one of the known plan levels.
func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// AtLeast reports whether the tier grants at least the privilege level of
// required. Unknown tiers rank below trial on either side.
func (t Tier) AtLeast(required Tier) bool {
	tr, ok := tierRank[t]
	if !ok {
		tr = -1
	}
	rr, ok := tierRank[required]
	if !ok {
		rr = -1
	}
	return tr >= rr
}

// Tiers returns all known tiers ordered from least to most privileged.
func Tiers() []Tier {
	return []Tier{TierTrial, TierWeekly, TierMonthly, TierYearly, TierLifetime, TierBusiness}
}
