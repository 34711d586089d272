package entitlement_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divyansh14-yadav/getqrbackend/pkg/entitlement"
	"github.com/divyansh14-yadav/getqrbackend/pkg/plan"
	"github.com/divyansh14-yadav/getqrbackend/pkg/subscription"
)

func activeAccess(t *testing.T, tier plan.Tier) entitlement.Access {
	t.Helper()
	catalog := plan.Default()
	return entitlement.Access{
		Tier:       tier,
		Active:     true,
		Definition: catalog.DefinitionFor(tier),
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	t.Run("inactive subscription is denied before anything else", func(t *testing.T) {
		t.Parallel()
		access := activeAccess(t, plan.TierBusiness)
		access.Active = false

		decision := entitlement.Evaluate(access, entitlement.MinimumTier(plan.TierTrial))

		assert.False(t, decision.Allowed)
		require.NotNil(t, decision.Denial)
		assert.Equal(t, entitlement.DenyReasonInactive, decision.Denial.Reason)
	})

	t.Run("tier floor", func(t *testing.T) {
		t.Parallel()
		decision := entitlement.Evaluate(activeAccess(t, plan.TierWeekly), entitlement.MinimumTier(plan.TierMonthly))

		assert.False(t, decision.Allowed)
		require.NotNil(t, decision.Denial)
		assert.Equal(t, entitlement.DenyReasonTierTooLow, decision.Denial.Reason)
		assert.Equal(t, plan.TierWeekly, decision.Denial.CurrentTier)
		assert.Equal(t, plan.TierMonthly, decision.Denial.RequiredTier)
	})

	t.Run("capability check consults the plan matrix", func(t *testing.T) {
		t.Parallel()
		req := entitlement.RequireCapability(plan.CapabilityCustomizeAppearance)

		denied := entitlement.Evaluate(activeAccess(t, plan.TierTrial), req)
		assert.False(t, denied.Allowed)
		require.NotNil(t, denied.Denial)
		assert.Equal(t, entitlement.DenyReasonCapabilityMissing, denied.Denial.Reason)
		assert.Equal(t, plan.CapabilityCustomizeAppearance, denied.Denial.RequiredCapability)

		allowed := entitlement.Evaluate(activeAccess(t, plan.TierMonthly), req)
		assert.True(t, allowed.Allowed)
		assert.Nil(t, allowed.Denial)
	})

	t.Run("trial cannot claim unlimited links, business can", func(t *testing.T) {
		t.Parallel()
		req := entitlement.RequireCapability(plan.CapabilityUnlimitedLinks)

		denied := entitlement.Evaluate(activeAccess(t, plan.TierTrial), req)
		assert.False(t, denied.Allowed)
		require.NotNil(t, denied.Denial)
		assert.Equal(t, plan.TierTrial, denied.Denial.CurrentTier)

		assert.True(t, entitlement.Evaluate(activeAccess(t, plan.TierBusiness), req).Allowed)
	})

	t.Run("empty requirement only checks payment health", func(t *testing.T) {
		t.Parallel()
		decision := entitlement.Evaluate(activeAccess(t, plan.TierTrial), entitlement.Requirement{})
		assert.True(t, decision.Allowed)
	})
}

func TestGateAuthorize(t *testing.T) {
	t.Parallel()

	catalog := plan.Default()

	t.Run("user without history is on trial", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		userID := uuid.New()
		store.AddUser(userID)
		gate := entitlement.NewGate(store, catalog)

		decision, err := gate.Authorize(context.Background(), userID, entitlement.MinimumTier(plan.TierMonthly))
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		require.NotNil(t, decision.Denial)
		assert.Equal(t, plan.TierTrial, decision.Denial.CurrentTier)
	})

	t.Run("unknown user surfaces the store error", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		gate := entitlement.NewGate(store, catalog)

		_, err := gate.Authorize(context.Background(), uuid.New(), entitlement.Requirement{})
		require.ErrorIs(t, err, subscription.ErrNotFound)
	})

	t.Run("lapsed paid plan is denied at read time", func(t *testing.T) {
		t.Parallel()
		store := subscription.NewMemoryStore()
		userID := uuid.New()
		store.AddUser(userID)

		expired := time.Now().Add(-48 * time.Hour)
		_, applied, err := store.CompareAndApply(context.Background(), userID, 0, func(rec *subscription.Record) {
			rec.Tier = plan.TierMonthly
			rec.Active = true
			rec.ExpiresAt = &expired
		})
		require.NoError(t, err)
		require.True(t, applied)

		gate := entitlement.NewGate(store, catalog)
		decision, err := gate.Authorize(context.Background(), userID,
			entitlement.RequireCapability(plan.CapabilityUnlimitedLinks))
		require.NoError(t, err)
		assert.False(t, decision.Allowed)
		require.NotNil(t, decision.Denial)
		assert.Equal(t, entitlement.DenyReasonInactive, decision.Denial.Reason)
	})
}
