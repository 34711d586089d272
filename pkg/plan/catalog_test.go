package plan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divyansh14-yadav/getqrbackend/pkg/plan"
)

func TestTierOrdering(t *testing.T) {
	t.Parallel()

	ordered := []plan.Tier{
		plan.TierTrial,
		plan.TierWeekly,
		plan.TierMonthly,
		plan.TierYearly,
		plan.TierLifetime,
		plan.TierBusiness,
	}

	for i, lower := range ordered {
		for _, higher := range ordered[i:] {
			assert.True(t, higher.AtLeast(lower), "%s should satisfy a %s requirement", higher, lower)
		}
		for _, higher := range ordered[i+1:] {
			assert.False(t, lower.AtLeast(higher), "%s should not satisfy a %s requirement", lower, higher)
		}
	}
}

func TestParseTier(t *testing.T) {
	t.Parallel()

	t.Run("accepts known tiers", func(t *testing.T) {
		t.Parallel()
		tier, ok := plan.ParseTier("monthly")
		require.True(t, ok)
		assert.Equal(t, plan.TierMonthly, tier)
	})

	t.Run("rejects unknown values", func(t *testing.T) {
		t.Parallel()
		_, ok := plan.ParseTier("platinum")
		assert.False(t, ok)
	})

	t.Run("rejects empty string", func(t *testing.T) {
		t.Parallel()
		_, ok := plan.ParseTier("")
		assert.False(t, ok)
	})
}

func TestNewCatalog(t *testing.T) {
	t.Parallel()

	t.Run("requires a trial definition", func(t *testing.T) {
		t.Parallel()
		_, err := plan.NewCatalog(plan.Definition{Tier: plan.TierMonthly, Name: "Monthly", MaxLinks: plan.Unlimited})
		require.Error(t, err)
	})

	t.Run("rejects duplicate tiers", func(t *testing.T) {
		t.Parallel()
		_, err := plan.NewCatalog(
			plan.Definition{Tier: plan.TierTrial, Name: "Trial", MaxLinks: 2},
			plan.Definition{Tier: plan.TierTrial, Name: "Trial Again", MaxLinks: 3},
		)
		require.Error(t, err)
	})

	t.Run("rejects negative non-unlimited caps", func(t *testing.T) {
		t.Parallel()
		_, err := plan.NewCatalog(plan.Definition{Tier: plan.TierTrial, Name: "Trial", MaxLinks: -2})
		require.Error(t, err)
	})
}

func TestCatalogDefinitionFor(t *testing.T) {
	t.Parallel()
	catalog := plan.Default()

	t.Run("returns the definition for a known tier", func(t *testing.T) {
		t.Parallel()
		def := catalog.DefinitionFor(plan.TierMonthly)
		assert.Equal(t, plan.TierMonthly, def.Tier)
		assert.True(t, def.LinksUnlimited())
	})

	t.Run("falls back to trial for unknown tiers", func(t *testing.T) {
		t.Parallel()
		def := catalog.DefinitionFor(plan.Tier("legacy_gold"))
		assert.Equal(t, plan.TierTrial, def.Tier, "unknown tiers resolve to the trial definition")
	})
}

func TestCatalogTierForPriceID(t *testing.T) {
	t.Parallel()
	catalog := plan.Default()

	monthly := catalog.DefinitionFor(plan.TierMonthly)
	require.NotEmpty(t, monthly.PriceID)

	tier, ok := catalog.TierForPriceID(monthly.PriceID)
	require.True(t, ok)
	assert.Equal(t, plan.TierMonthly, tier)

	_, ok = catalog.TierForPriceID("pri_does_not_exist")
	assert.False(t, ok)
}

func TestCatalogPublic(t *testing.T) {
	t.Parallel()
	catalog := plan.Default()

	for _, def := range catalog.Public() {
		assert.True(t, def.Public, "Public() must only return purchasable plans")
		assert.NotEqual(t, plan.TierBusiness, def.Tier, "business plans are provisioned manually")
	}
}

func TestDefaultMatrix(t *testing.T) {
	t.Parallel()
	catalog := plan.Default()

	t.Run("trial is capped and feature-light", func(t *testing.T) {
		t.Parallel()
		def := catalog.DefinitionFor(plan.TierTrial)
		assert.EqualValues(t, 2, def.MaxLinks)
		assert.False(t, def.Has(plan.CapabilityCustomizeAppearance))
		assert.True(t, def.Has(plan.CapabilityViewAnalytics))
	})

	t.Run("monthly and above are unlimited", func(t *testing.T) {
		t.Parallel()
		for _, tier := range []plan.Tier{plan.TierMonthly, plan.TierYearly, plan.TierLifetime, plan.TierBusiness} {
			def := catalog.DefinitionFor(tier)
			assert.True(t, def.LinksUnlimited(), "%s should have no link cap", tier)
			assert.True(t, def.Has(plan.CapabilityUnlimitedLinks))
		}
	})

	t.Run("lifetime never expires", func(t *testing.T) {
		t.Parallel()
		def := catalog.DefinitionFor(plan.TierLifetime)
		assert.Zero(t, def.Duration)
	})

	t.Run("only business carries admin panel", func(t *testing.T) {
		t.Parallel()
		for _, tier := range plan.Tiers() {
			def := catalog.DefinitionFor(tier)
			assert.Equal(t, tier == plan.TierBusiness, def.Has(plan.CapabilityAdminPanel), "tier %s", tier)
		}
	})
}

func TestAllowsLinkCount(t *testing.T) {
	t.Parallel()

	capped := plan.Definition{Tier: plan.TierWeekly, MaxLinks: 3}
	assert.True(t, capped.AllowsLinkCount(3))
	assert.False(t, capped.AllowsLinkCount(4))

	open := plan.Definition{Tier: plan.TierMonthly, MaxLinks: plan.Unlimited}
	assert.True(t, open.AllowsLinkCount(10_000))
}
