package billing

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/divyansh14-yadav/getqrbackend/pkg/billing"
	"github.com/divyansh14-yadav/getqrbackend/pkg/entitlement"
	"github.com/divyansh14-yadav/getqrbackend/pkg/plan"
	"github.com/divyansh14-yadav/getqrbackend/pkg/subscription"
	"github.com/divyansh14-yadav/getqrbackend/svc/rest"
)

// signatureHeader carries the provider's webhook signature.
const signatureHeader = "Paddle-Signature"

// handleWebhook receives provider events. The response code is the retry
// contract with the provider: 2xx acknowledges, 4xx rejects permanently, and
// 5xx asks for redelivery. Events the system does not recognize are
// acknowledged without processing.
func (s *Service) handleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.WebhookMaxBodyBytes))
	if err != nil {
		rest.Error(w, http.StatusBadRequest, "invalid_payload", "failed to read request body")
		return
	}

	ev, err := s.provider.ParseWebhook(r.Context(), payload, r.Header.Get(signatureHeader))
	switch {
	case errors.Is(err, billing.ErrSignatureVerification):
		s.log.WarnContext(r.Context(), "webhook signature verification failed")
		rest.Error(w, http.StatusBadRequest, "invalid_signature", "webhook signature verification failed")
		return
	case err != nil:
		s.log.WarnContext(r.Context(), "malformed webhook payload", slog.Any("error", err))
		rest.Error(w, http.StatusBadRequest, "invalid_payload", "malformed webhook payload")
		return
	case ev == nil:
		rest.JSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if err := s.reconciler.Apply(r.Context(), *ev); err != nil {
		s.log.ErrorContext(r.Context(), "failed to apply billing event",
			slog.String("event_id", ev.ID),
			slog.String("event_type", string(ev.Type)),
			slog.Any("error", err))
		rest.Error(w, http.StatusInternalServerError, "apply_failed", "event processing failed, retry later")
		return
	}

	rest.JSON(w, http.StatusOK, map[string]string{"status": "processed"})
}

type checkoutRequest struct {
	Plan       string `json:"plan"`
	Email      string `json:"email,omitempty"`
	SuccessURL string `json:"success_url,omitempty"`
}

func (s *Service) handleCheckout(w http.ResponseWriter, r *http.Request) {
	userID, ok := rest.UserIDFromContext(r.Context())
	if !ok {
		rest.Error(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.Error(w, http.StatusBadRequest, "invalid_payload", "invalid request body")
		return
	}
	tier, ok := plan.ParseTier(req.Plan)
	if !ok {
		rest.Error(w, http.StatusBadRequest, "unknown_plan", "unknown plan: "+req.Plan)
		return
	}

	successURL := req.SuccessURL
	if successURL == "" {
		successURL = s.cfg.CheckoutSuccessURL
	}
	session, err := s.provider.CreateCheckoutSession(r.Context(), billing.CheckoutRequest{
		UserID:     userID,
		Tier:       tier,
		Email:      req.Email,
		SuccessURL: successURL,
	})
	switch {
	case errors.Is(err, billing.ErrPlanNotPurchasable):
		rest.Error(w, http.StatusBadRequest, "plan_not_purchasable", "plan is not available for checkout")
		return
	case err != nil:
		s.log.ErrorContext(r.Context(), "failed to create checkout session",
			slog.String("user_id", userID.String()),
			slog.String("plan", string(tier)),
			slog.Any("error", err))
		rest.Error(w, http.StatusBadGateway, "provider_error", "failed to create checkout session")
		return
	}

	rest.JSON(w, http.StatusCreated, session)
}

func (s *Service) handlePortal(w http.ResponseWriter, r *http.Request) {
	userID, ok := rest.UserIDFromContext(r.Context())
	if !ok {
		rest.Error(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	rec, err := s.subs.Get(r.Context(), userID)
	if err != nil {
		s.log.ErrorContext(r.Context(), "failed to load subscription record",
			slog.String("user_id", userID.String()),
			slog.Any("error", err))
		rest.Error(w, http.StatusInternalServerError, "internal_error", "failed to load subscription")
		return
	}
	if rec.ProviderCustomerID == "" {
		rest.Error(w, http.StatusConflict, "no_subscription", "no billing account on record")
		return
	}

	session, err := s.provider.CreatePortalSession(r.Context(), rec.ProviderCustomerID, rec.ProviderSubscriptionID)
	if err != nil {
		s.log.ErrorContext(r.Context(), "failed to create portal session",
			slog.String("user_id", userID.String()),
			slog.Any("error", err))
		rest.Error(w, http.StatusBadGateway, "provider_error", "failed to create portal session")
		return
	}

	rest.JSON(w, http.StatusOK, session)
}

// statusResponse is the subscription state as the frontend consumes it:
// already resolved, so clients never re-implement expiration.
type statusResponse struct {
	Plan         string     `json:"plan"`
	PlanName     string     `json:"plan_name"`
	Active       bool       `json:"active"`
	Expired      bool       `json:"expired"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	MaxLinks     int64      `json:"max_links"`
	Capabilities []string   `json:"capabilities"`
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := rest.UserIDFromContext(r.Context())
	if !ok {
		rest.Error(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	access, err := s.gate.Access(r.Context(), userID)
	if err != nil {
		s.log.ErrorContext(r.Context(), "failed to resolve entitlements",
			slog.String("user_id", userID.String()),
			slog.Any("error", err))
		rest.Error(w, http.StatusInternalServerError, "internal_error", "failed to resolve subscription")
		return
	}

	rec, err := s.subs.Get(r.Context(), userID)
	if err != nil {
		s.log.ErrorContext(r.Context(), "failed to load subscription record",
			slog.String("user_id", userID.String()),
			slog.Any("error", err))
		rest.Error(w, http.StatusInternalServerError, "internal_error", "failed to load subscription")
		return
	}

	caps := make([]string, 0, len(access.Definition.Capabilities))
	for _, c := range access.Definition.Capabilities {
		caps = append(caps, string(c))
	}

	var expiresAt *time.Time
	if !access.Expired {
		expiresAt = rec.ExpiresAt
	}

	rest.JSON(w, http.StatusOK, statusResponse{
		Plan:         string(access.Tier),
		PlanName:     access.Definition.Name,
		Active:       access.Active,
		Expired:      access.Expired,
		ExpiresAt:    expiresAt,
		MaxLinks:     access.Definition.MaxLinks,
		Capabilities: caps,
	})
}

// planResponse is a public plan listing entry. Provider price IDs stay
// internal.
type planResponse struct {
	Plan         string     `json:"plan"`
	Name         string     `json:"name"`
	MaxLinks     int64      `json:"max_links"`
	Capabilities []string   `json:"capabilities"`
	Price        plan.Money `json:"price"`
	DurationDays int        `json:"duration_days,omitempty"`
}

func (s *Service) handlePlans(w http.ResponseWriter, r *http.Request) {
	defs := s.catalog.Public()
	out := make([]planResponse, 0, len(defs))
	for _, d := range defs {
		caps := make([]string, 0, len(d.Capabilities))
		for _, c := range d.Capabilities {
			caps = append(caps, string(c))
		}
		out = append(out, planResponse{
			Plan:         string(d.Tier),
			Name:         d.Name,
			MaxLinks:     d.MaxLinks,
			Capabilities: caps,
			Price:        d.Price,
			DurationDays: int(d.Duration / (24 * time.Hour)),
		})
	}
	rest.JSON(w, http.StatusOK, out)
}

type adminOverrideRequest struct {
	Plan      string     `json:"plan"`
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// handleAdminOverride lets an operator force a user's subscription state,
// the escape hatch for support cases the provider's event stream cannot
// express. Requires the admin_panel capability.
func (s *Service) handleAdminOverride(w http.ResponseWriter, r *http.Request) {
	adminID, ok := rest.UserIDFromContext(r.Context())
	if !ok {
		rest.Error(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	decision, err := s.gate.Authorize(r.Context(), adminID, entitlement.RequireCapability(plan.CapabilityAdminPanel))
	if err != nil {
		s.log.ErrorContext(r.Context(), "failed to authorize admin override",
			slog.String("user_id", adminID.String()),
			slog.Any("error", err))
		rest.Error(w, http.StatusInternalServerError, "internal_error", "authorization failed")
		return
	}
	if !decision.Allowed {
		rest.ErrorDetails(w, http.StatusForbidden, "forbidden", "admin access required", decision.Denial)
		return
	}

	targetID, err := uuid.Parse(chi.URLParam(r, "user_id"))
	if err != nil {
		rest.Error(w, http.StatusBadRequest, "invalid_user_id", "user_id must be a UUID")
		return
	}

	var req adminOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.Error(w, http.StatusBadRequest, "invalid_payload", "invalid request body")
		return
	}
	tier, ok := plan.ParseTier(req.Plan)
	if !ok {
		rest.Error(w, http.StatusBadRequest, "unknown_plan", "unknown plan: "+req.Plan)
		return
	}

	rec, err := s.reconciler.AdminOverride(r.Context(), targetID, tier, req.Active, req.ExpiresAt)
	switch {
	case errors.Is(err, subscription.ErrNotFound):
		rest.Error(w, http.StatusNotFound, "user_not_found", "no such user")
		return
	case err != nil:
		s.log.ErrorContext(r.Context(), "admin override failed",
			slog.String("admin_id", adminID.String()),
			slog.String("target_id", targetID.String()),
			slog.Any("error", err))
		rest.Error(w, http.StatusInternalServerError, "internal_error", "override failed")
		return
	}

	s.log.InfoContext(r.Context(), "admin override applied",
		slog.String("admin_id", adminID.String()),
		slog.String("target_id", targetID.String()),
		slog.String("plan", string(tier)))

	access := entitlement.Resolve(s.catalog, rec, s.now())
	rest.JSON(w, http.StatusOK, statusResponse{
		Plan:      string(access.Tier),
		PlanName:  access.Definition.Name,
		Active:    access.Active,
		Expired:   access.Expired,
		ExpiresAt: rec.ExpiresAt,
		MaxLinks:  access.Definition.MaxLinks,
	})
}
