package links_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divyansh14-yadav/getqrbackend/pkg/links"
	"github.com/divyansh14-yadav/getqrbackend/pkg/plan"
	"github.com/divyansh14-yadav/getqrbackend/pkg/subscription"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *links.Service
	store *links.MemoryStore
	subs  *subscription.MemoryStore
	user  uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := links.NewMemoryStore()
	subs := subscription.NewMemoryStore()
	user := uuid.New()
	subs.AddUser(user)
	svc := links.NewService(store, subs, plan.Default(),
		links.WithClock(func() time.Time { return testNow }))
	return &fixture{svc: svc, store: store, subs: subs, user: user}
}

func (f *fixture) setTier(t *testing.T, tier plan.Tier, expiresAt *time.Time) {
	t.Helper()
	ctx := context.Background()
	rec, err := f.subs.Get(ctx, f.user)
	require.NoError(t, err)
	_, applied, err := f.subs.CompareAndApply(ctx, f.user, rec.Version, func(rec *subscription.Record) {
		rec.Tier = tier
		rec.Active = true
		rec.ExpiresAt = expiresAt
	})
	require.NoError(t, err)
	require.True(t, applied)
}

func (f *fixture) seedLinks(t *testing.T, n int) []links.Link {
	t.Helper()
	ctx := context.Background()
	out := make([]links.Link, n)
	for i := range out {
		created := testNow.Add(time.Duration(i-n) * time.Minute)
		out[i] = links.Link{
			ID:        uuid.New(),
			UserID:    f.user,
			Platform:  "instagram",
			URL:       "https://example.com/profile",
			Enabled:   true,
			CreatedAt: created,
			UpdatedAt: created,
		}
		require.NoError(t, f.store.Create(ctx, out[i]))
	}
	return out
}

func enabledIDs(t *testing.T, f *fixture) map[uuid.UUID]bool {
	t.Helper()
	list, err := f.store.List(context.Background(), f.user)
	require.NoError(t, err)
	out := make(map[uuid.UUID]bool)
	for _, l := range list {
		if l.Enabled {
			out[l.ID] = true
		}
	}
	return out
}

func TestServiceEnforce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("downgrade disables the newest links first", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		expires := testNow.AddDate(0, 1, 0)
		f.setTier(t, plan.TierMonthly, &expires)
		seeded := f.seedLinks(t, 10)

		f.setTier(t, plan.TierWeekly, &expires) // cap 3

		report, err := f.svc.Enforce(ctx, f.user)
		require.NoError(t, err)
		assert.True(t, report.DowngradeApplied)
		assert.Equal(t, 7, report.DisabledCount)

		enabled := enabledIDs(t, f)
		require.Len(t, enabled, 3)
		for _, l := range seeded[:3] {
			assert.True(t, enabled[l.ID], "the oldest links survive the downgrade")
		}
	})

	t.Run("second pass is a no-op", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		expires := testNow.AddDate(0, 1, 0)
		f.setTier(t, plan.TierWeekly, &expires)
		f.seedLinks(t, 10)

		first, err := f.svc.Enforce(ctx, f.user)
		require.NoError(t, err)
		require.True(t, first.DowngradeApplied)

		second, err := f.svc.Enforce(ctx, f.user)
		require.NoError(t, err)
		assert.False(t, second.DowngradeApplied)
		assert.Zero(t, second.DisabledCount)
	})

	t.Run("unlimited plans never disable anything", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		expires := testNow.AddDate(0, 1, 0)
		f.setTier(t, plan.TierMonthly, &expires)
		f.seedLinks(t, 50)

		report, err := f.svc.Enforce(ctx, f.user)
		require.NoError(t, err)
		assert.False(t, report.DowngradeApplied)
		assert.Len(t, enabledIDs(t, f), 50)
	})

	t.Run("expired plan is demoted and capped at trial", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		expired := testNow.Add(-time.Hour)
		f.setTier(t, plan.TierYearly, &expired)
		f.seedLinks(t, 5)

		report, err := f.svc.Enforce(ctx, f.user)
		require.NoError(t, err)
		assert.True(t, report.DowngradeApplied)
		assert.Equal(t, 3, report.DisabledCount)

		// The demotion is persisted, not just computed at read time.
		rec, err := f.subs.Get(ctx, f.user)
		require.NoError(t, err)
		assert.Equal(t, plan.TierTrial, rec.Tier)
		assert.False(t, rec.Active)
		assert.Nil(t, rec.ExpiresAt)
		assert.True(t, rec.LastEventAt.IsZero(), "demotion must not block later provider events")
	})
}

func TestServiceCreate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("creates an enabled link within the cap", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		link, err := f.svc.Create(ctx, f.user, "youtube", "https://youtube.com/@me")
		require.NoError(t, err)
		assert.True(t, link.Enabled)
		assert.Equal(t, f.user, link.UserID)
		assert.NotEqual(t, uuid.Nil, link.ID)
	})

	t.Run("rejects the link past the trial cap", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		f.seedLinks(t, 2) // trial cap

		_, err := f.svc.Create(ctx, f.user, "tiktok", "https://tiktok.com/@me")
		require.ErrorIs(t, err, links.ErrLimitReached)

		var limitErr *links.LimitError
		require.ErrorAs(t, err, &limitErr)
		assert.Equal(t, plan.TierTrial, limitErr.Tier)
		assert.EqualValues(t, 2, limitErr.MaxLinks)
		assert.EqualValues(t, 2, limitErr.Enabled)
	})

	t.Run("rejects empty fields", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, err := f.svc.Create(ctx, f.user, "", "https://example.com")
		require.ErrorIs(t, err, links.ErrInvalidLink)
	})

	t.Run("unknown user surfaces not found", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)

		_, err := f.svc.Create(ctx, uuid.New(), "x", "https://x.com/me")
		require.ErrorIs(t, err, subscription.ErrNotFound)
	})
}

func TestServiceEnable(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("re-enabling past the cap is rejected", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		seeded := f.seedLinks(t, 2)
		require.NoError(t, f.svc.Disable(ctx, f.user, seeded[0].ID))

		// Fill the freed slot, then try to bring the disabled one back.
		_, err := f.svc.Create(ctx, f.user, "github", "https://github.com/me")
		require.NoError(t, err)

		err = f.svc.Enable(ctx, f.user, seeded[0].ID)
		require.ErrorIs(t, err, links.ErrLimitReached)
	})

	t.Run("enable within the cap succeeds", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		seeded := f.seedLinks(t, 2)
		require.NoError(t, f.svc.Disable(ctx, f.user, seeded[1].ID))
		require.NoError(t, f.svc.Enable(ctx, f.user, seeded[1].ID))

		assert.Len(t, enabledIDs(t, f), 2)
	})

	t.Run("disable is always allowed", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		expired := testNow.Add(-time.Hour)
		f.setTier(t, plan.TierMonthly, &expired)
		seeded := f.seedLinks(t, 1)

		require.NoError(t, f.svc.Disable(ctx, f.user, seeded[0].ID))
	})

	t.Run("toggling a foreign link reports not found", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		err := f.svc.Disable(ctx, f.user, uuid.New())
		require.ErrorIs(t, err, links.ErrLinkNotFound)
	})
}

func TestServiceList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t)
	expires := testNow.AddDate(0, 1, 0)
	f.setTier(t, plan.TierWeekly, &expires)
	f.seedLinks(t, 5)

	list, report, err := f.svc.List(ctx, f.user)
	require.NoError(t, err)
	assert.True(t, report.DowngradeApplied, "listing runs the lazy capacity check")
	assert.Equal(t, 2, report.DisabledCount)
	require.Len(t, list, 5, "disabled links stay listed, just not live")

	for i := 1; i < len(list); i++ {
		assert.False(t, list[i].CreatedAt.Before(list[i-1].CreatedAt), "list is ordered oldest first")
	}
}
