package billing_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgbilling "github.com/divyansh14-yadav/getqrbackend/pkg/billing"
	"github.com/divyansh14-yadav/getqrbackend/pkg/entitlement"
	"github.com/divyansh14-yadav/getqrbackend/pkg/plan"
	"github.com/divyansh14-yadav/getqrbackend/pkg/subscription"
	billingapi "github.com/divyansh14-yadav/getqrbackend/svc/billing"
	"github.com/divyansh14-yadav/getqrbackend/svc/rest"
)

type fakeProvider struct {
	parsed     *subscription.InboundEvent
	parseErr   error
	checkout   *pkgbilling.CheckoutSession
	portal     *pkgbilling.PortalSession
	portalErr  error
	resolved   *subscription.InboundEvent
	resolveErr error

	lastCheckout pkgbilling.CheckoutRequest
}

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, req pkgbilling.CheckoutRequest) (*pkgbilling.CheckoutSession, error) {
	f.lastCheckout = req
	if f.checkout == nil {
		return nil, pkgbilling.ErrPlanNotPurchasable
	}
	return f.checkout, nil
}

func (f *fakeProvider) CreatePortalSession(context.Context, string, string) (*pkgbilling.PortalSession, error) {
	return f.portal, f.portalErr
}

func (f *fakeProvider) ParseWebhook(context.Context, []byte, string) (*subscription.InboundEvent, error) {
	return f.parsed, f.parseErr
}

func (f *fakeProvider) ResolveSubscription(context.Context, string) (*subscription.InboundEvent, error) {
	return f.resolved, f.resolveErr
}

type env struct {
	svc      *billingapi.Service
	provider *fakeProvider
	subs     *subscription.MemoryStore
	user     uuid.UUID
	handler  http.Handler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	provider := &fakeProvider{}
	subs := subscription.NewMemoryStore()
	user := uuid.New()
	subs.AddUser(user)
	catalog := plan.Default()
	reconciler := subscription.NewReconciler(subs, provider, nil)
	gate := entitlement.NewGate(subs, catalog)

	svc := billingapi.NewService(billingapi.Config{
		CheckoutSuccessURL: "https://app.example.com/done",
	}, provider, reconciler, subs, catalog, gate)

	authn := func(next http.Handler) http.Handler {
		return rest.TrustedHeaderAuth("X-User-ID")(rest.RequireUser(next))
	}
	return &env{
		svc:      svc,
		provider: provider,
		subs:     subs,
		user:     user,
		handler:  svc.Handler(authn),
	}
}

func (e *env) do(t *testing.T, method, path string, body any, asUser bool) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if asUser {
		req.Header.Set("X-User-ID", e.user.String())
	}
	rr := httptest.NewRecorder()
	e.handler.ServeHTTP(rr, req)
	return rr
}

func TestWebhook(t *testing.T) {
	t.Parallel()

	t.Run("applies a parsed event", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		periodEnd := time.Now().AddDate(0, 1, 0)
		e.provider.parsed = &subscription.InboundEvent{
			ID:         "evt_1",
			Type:       subscription.EventSubscriptionUpdated,
			UserID:     e.user,
			Tier:       plan.TierMonthly,
			Status:     subscription.StatusActive,
			PeriodEnd:  &periodEnd,
			OccurredAt: time.Now(),
		}

		rr := e.do(t, http.MethodPost, "/webhook", map[string]string{"any": "payload"}, false)
		assert.Equal(t, http.StatusOK, rr.Code)

		rec, err := e.subs.Get(context.Background(), e.user)
		require.NoError(t, err)
		assert.Equal(t, plan.TierMonthly, rec.Tier)
	})

	t.Run("rejects a bad signature permanently", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		e.provider.parseErr = pkgbilling.ErrSignatureVerification

		rr := e.do(t, http.MethodPost, "/webhook", nil, false)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("acknowledges unrecognized event types", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		// provider.parsed stays nil: the adapter ignored the event type

		rr := e.do(t, http.MethodPost, "/webhook", nil, false)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "ignored")
	})

	t.Run("asks for redelivery on processing failure", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		e.provider.parsed = &subscription.InboundEvent{
			ID:                     "evt_2",
			Type:                   subscription.EventInvoicePaid,
			ProviderSubscriptionID: "sub_1",
			OccurredAt:             time.Now(),
		}
		e.provider.resolveErr = errors.New("provider 503")

		rr := e.do(t, http.MethodPost, "/webhook", nil, false)
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestCheckout(t *testing.T) {
	t.Parallel()

	t.Run("creates a session stamped with the user", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		e.provider.checkout = &pkgbilling.CheckoutSession{URL: "https://pay.example.com/txn_1", SessionID: "txn_1"}

		rr := e.do(t, http.MethodPost, "/checkout", map[string]string{"plan": "monthly"}, true)
		assert.Equal(t, http.StatusCreated, rr.Code)
		assert.Contains(t, rr.Body.String(), "txn_1")

		assert.Equal(t, e.user, e.provider.lastCheckout.UserID)
		assert.Equal(t, plan.TierMonthly, e.provider.lastCheckout.Tier)
		assert.Equal(t, "https://app.example.com/done", e.provider.lastCheckout.SuccessURL)
	})

	t.Run("rejects unknown plans", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)

		rr := e.do(t, http.MethodPost, "/checkout", map[string]string{"plan": "diamond"}, true)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("maps non-purchasable plans to a client error", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)

		rr := e.do(t, http.MethodPost, "/checkout", map[string]string{"plan": "business"}, true)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "plan_not_purchasable")
	})

	t.Run("requires authentication", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)

		rr := e.do(t, http.MethodPost, "/checkout", map[string]string{"plan": "monthly"}, false)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestPortal(t *testing.T) {
	t.Parallel()

	t.Run("requires an existing billing account", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)

		rr := e.do(t, http.MethodPost, "/portal", nil, true)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("returns the portal link", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		_, applied, err := e.subs.CompareAndApply(context.Background(), e.user, 0, func(rec *subscription.Record) {
			rec.ProviderCustomerID = "ctm_1"
			rec.ProviderSubscriptionID = "sub_1"
		})
		require.NoError(t, err)
		require.True(t, applied)
		e.provider.portal = &pkgbilling.PortalSession{URL: "https://portal.example.com/s"}

		rr := e.do(t, http.MethodPost, "/portal", nil, true)
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "portal.example.com")
	})
}

func TestStatus(t *testing.T) {
	t.Parallel()

	t.Run("projects the resolved state", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		expires := time.Now().AddDate(0, 1, 0)
		_, applied, err := e.subs.CompareAndApply(context.Background(), e.user, 0, func(rec *subscription.Record) {
			rec.Tier = plan.TierMonthly
			rec.Active = true
			rec.ExpiresAt = &expires
		})
		require.NoError(t, err)
		require.True(t, applied)

		rr := e.do(t, http.MethodGet, "/subscription", nil, true)
		require.Equal(t, http.StatusOK, rr.Code)

		var body struct {
			Data struct {
				Plan         string   `json:"plan"`
				Active       bool     `json:"active"`
				Expired      bool     `json:"expired"`
				MaxLinks     int64    `json:"max_links"`
				Capabilities []string `json:"capabilities"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "monthly", body.Data.Plan)
		assert.True(t, body.Data.Active)
		assert.EqualValues(t, plan.Unlimited, body.Data.MaxLinks)
		assert.Contains(t, body.Data.Capabilities, "unlimited_links")
	})

	t.Run("expired subscription reads as trial", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		expired := time.Now().Add(-time.Hour)
		_, applied, err := e.subs.CompareAndApply(context.Background(), e.user, 0, func(rec *subscription.Record) {
			rec.Tier = plan.TierYearly
			rec.Active = true
			rec.ExpiresAt = &expired
		})
		require.NoError(t, err)
		require.True(t, applied)

		rr := e.do(t, http.MethodGet, "/subscription", nil, true)
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), `"plan":"trial"`)
		assert.Contains(t, rr.Body.String(), `"expired":true`)
	})
}

func TestPlans(t *testing.T) {
	t.Parallel()
	e := newEnv(t)

	rr := e.do(t, http.MethodGet, "/plans", nil, false)
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Data []struct {
			Plan string `json:"plan"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.NotEmpty(t, body.Data)
	for _, p := range body.Data {
		assert.NotEqual(t, "business", p.Plan, "private plans stay out of the listing")
	}
}

func TestAdminOverride(t *testing.T) {
	t.Parallel()

	t.Run("denied without the admin capability", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		target := uuid.New()
		e.subs.AddUser(target)

		rr := e.do(t, http.MethodPut, "/admin/subscriptions/"+target.String(),
			map[string]any{"plan": "lifetime", "active": true}, true)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("forces the target record", func(t *testing.T) {
		t.Parallel()
		e := newEnv(t)
		_, applied, err := e.subs.CompareAndApply(context.Background(), e.user, 0, func(rec *subscription.Record) {
			rec.Tier = plan.TierBusiness
			rec.Active = true
		})
		require.NoError(t, err)
		require.True(t, applied)

		target := uuid.New()
		e.subs.AddUser(target)

		rr := e.do(t, http.MethodPut, "/admin/subscriptions/"+target.String(),
			map[string]any{"plan": "lifetime", "active": true}, true)
		require.Equal(t, http.StatusOK, rr.Code)

		rec, err := e.subs.Get(context.Background(), target)
		require.NoError(t, err)
		assert.Equal(t, plan.TierLifetime, rec.Tier)
		assert.True(t, rec.Active)
	})
}
