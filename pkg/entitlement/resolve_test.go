package entitlement_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/divyansh14-yadav/getqrbackend/pkg/entitlement"
	"github.com/divyansh14-yadav/getqrbackend/pkg/plan"
	"github.com/divyansh14-yadav/getqrbackend/pkg/subscription"
)

func TestResolve(t *testing.T) {
	t.Parallel()

	catalog := plan.Default()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("stored state passes through while the period is current", func(t *testing.T) {
		t.Parallel()
		expires := now.Add(24 * time.Hour)
		rec := subscription.Record{
			UserID:    uuid.New(),
			Tier:      plan.TierMonthly,
			ExpiresAt: &expires,
			Active:    true,
		}

		access := entitlement.Resolve(catalog, rec, now)

		assert.Equal(t, plan.TierMonthly, access.Tier)
		assert.True(t, access.Active)
		assert.False(t, access.Expired)
		assert.True(t, access.Definition.LinksUnlimited())
	})

	t.Run("expired record falls back to trial", func(t *testing.T) {
		t.Parallel()
		expires := now.Add(-time.Minute)
		rec := subscription.Record{
			UserID:    uuid.New(),
			Tier:      plan.TierYearly,
			ExpiresAt: &expires,
			Active:    true, // provider has not reported anything yet
		}

		access := entitlement.Resolve(catalog, rec, now)

		assert.Equal(t, plan.TierTrial, access.Tier)
		assert.False(t, access.Active)
		assert.True(t, access.Expired)
		assert.Equal(t, catalog.DefinitionFor(plan.TierTrial), access.Definition)
	})

	t.Run("expiration boundary is exclusive of the instant itself", func(t *testing.T) {
		t.Parallel()
		rec := subscription.Record{Tier: plan.TierMonthly, ExpiresAt: &now, Active: true}

		access := entitlement.Resolve(catalog, rec, now)
		assert.False(t, access.Expired, "a period ending exactly now is still current")

		access = entitlement.Resolve(catalog, rec, now.Add(time.Nanosecond))
		assert.True(t, access.Expired)
	})

	t.Run("nil expiry never expires", func(t *testing.T) {
		t.Parallel()
		rec := subscription.Record{Tier: plan.TierLifetime, Active: true}

		access := entitlement.Resolve(catalog, rec, now.AddDate(50, 0, 0))

		assert.Equal(t, plan.TierLifetime, access.Tier)
		assert.True(t, access.Active)
		assert.False(t, access.Expired)
	})

	t.Run("inactive record stays on its tier", func(t *testing.T) {
		t.Parallel()
		expires := now.Add(24 * time.Hour)
		rec := subscription.Record{Tier: plan.TierMonthly, ExpiresAt: &expires, Active: false}

		access := entitlement.Resolve(catalog, rec, now)

		assert.Equal(t, plan.TierMonthly, access.Tier, "a failed renewal does not change the tier")
		assert.False(t, access.Active)
		assert.False(t, access.Expired)
	})
}
