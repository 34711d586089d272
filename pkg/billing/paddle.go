package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/google/uuid"

	"github.com/divyansh14-yadav/getqrbackend/pkg/plan"
	"github.com/divyansh14-yadav/getqrbackend/pkg/subscription"
)

// PaddleConfig holds configuration for the Paddle billing provider.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY,required"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddleProvider implements Provider for Paddle.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
	catalog  *plan.Catalog
}

// NewPaddleProvider creates a Paddle billing provider. The catalog maps
// between tiers and Paddle price IDs in both directions: outward when
// creating checkouts, inward when correlating webhook events.
func NewPaddleProvider(cfg PaddleConfig, catalog *plan.Catalog) (*PaddleProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}
	if catalog == nil {
		return nil, errors.New("billing: plan catalog is required")
	}

	var client *paddle.SDK
	var err error
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidEnvironment, cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("billing: create paddle client: %w", err)
	}

	return &PaddleProvider{
		client:   client,
		verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret),
		catalog:  catalog,
	}, nil
}

// CreateCheckoutSession implements Provider. The user ID and intended plan
// are stamped into the transaction's custom data; that stamp is the
// correlation every later webhook depends on.
func (p *PaddleProvider) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	def := p.catalog.DefinitionFor(req.Tier)
	if !def.Public || def.PriceID == "" {
		return nil, fmt.Errorf("%w: %s", ErrPlanNotPurchasable, req.Tier)
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  def.PriceID,
		Quantity: 1,
	})

	txReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			"user_id": req.UserID.String(),
			"plan":    string(req.Tier),
		},
	}
	if req.Email != "" {
		txReq.CustomData["email"] = req.Email
	}
	if req.SuccessURL != "" {
		txReq.Checkout = &paddle.TransactionCheckout{
			URL: paddle.PtrTo(req.SuccessURL),
		}
	}

	tx, err := p.client.TransactionsClient.CreateTransaction(ctx, txReq)
	if err != nil {
		return nil, fmt.Errorf("billing: create paddle transaction: %w", err)
	}

	if tx.Checkout == nil || tx.Checkout.URL == nil || *tx.Checkout.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	return &CheckoutSession{
		URL:       *tx.Checkout.URL,
		SessionID: tx.ID,
		// Paddle checkout links typically expire within 24 hours.
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}, nil
}

// CreatePortalSession implements Provider.
func (p *PaddleProvider) CreatePortalSession(ctx context.Context, providerCustomerID, providerSubscriptionID string) (*PortalSession, error) {
	if providerCustomerID == "" {
		return nil, ErrMissingProviderCustomerID
	}

	req := &paddle.CreateCustomerPortalSessionRequest{
		CustomerID: providerCustomerID,
	}
	if providerSubscriptionID != "" {
		req.SubscriptionIDs = []string{providerSubscriptionID}
	}

	session, err := p.client.CustomerPortalSessionsClient.CreateCustomerPortalSession(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("billing: create paddle portal session: %w", err)
	}

	out := &PortalSession{URL: session.URLs.General.Overview}
	for _, subURL := range session.URLs.Subscriptions {
		if subURL.ID != providerSubscriptionID {
			continue
		}
		out.CancelURL = subURL.CancelSubscription
		out.UpdatePaymentURL = subURL.UpdateSubscriptionPaymentMethod
		break
	}
	if out.URL == "" {
		return nil, ErrNoPortalURL
	}
	return out, nil
}

// paddleEnvelope is the common wrapper around every Paddle webhook payload.
type paddleEnvelope struct {
	EventID    string         `json:"event_id"`
	EventType  string         `json:"event_type"`
	OccurredAt string         `json:"occurred_at"`
	Data       map[string]any `json:"data"`
}

// ParseWebhook implements Provider.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*subscription.InboundEvent, error) {
	// The SDK verifier consumes an http.Request, so wrap the raw payload.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("billing: build verification request: %w", err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrSignatureVerification, err)
	}
	if !valid {
		return nil, ErrSignatureVerification
	}

	var env paddleEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, errors.Join(ErrMalformedPayload, err)
	}

	eventType, known := mapPaddleEventType(env.EventType)
	if !known {
		// Unknown event types are accepted and ignored for forward
		// compatibility with new provider events.
		return nil, nil
	}

	ev := &subscription.InboundEvent{
		ID:            env.EventID,
		Type:          eventType,
		ProviderEvent: env.EventType,
	}
	if t, err := time.Parse(time.RFC3339, env.OccurredAt); err == nil {
		ev.OccurredAt = t.UTC()
	}
	p.fillFromData(ev, env.Data, strings.HasPrefix(env.EventType, "subscription."))
	return ev, nil
}

// ResolveSubscription implements Provider.
func (p *PaddleProvider) ResolveSubscription(ctx context.Context, providerSubscriptionID string) (*subscription.InboundEvent, error) {
	sub, err := p.client.SubscriptionsClient.GetSubscription(ctx, &paddle.GetSubscriptionRequest{
		SubscriptionID: providerSubscriptionID,
	})
	if err != nil {
		return nil, fmt.Errorf("billing: get paddle subscription %s: %w", providerSubscriptionID, err)
	}

	ev := &subscription.InboundEvent{
		Type:                   subscription.EventSubscriptionUpdated,
		Status:                 strings.ToLower(string(sub.Status)),
		ProviderCustomerID:     sub.CustomerID,
		ProviderSubscriptionID: sub.ID,
	}

	if sub.CustomData != nil {
		if raw, ok := sub.CustomData["user_id"].(string); ok {
			if id, err := uuid.Parse(raw); err == nil {
				ev.UserID = id
			}
		}
	}
	if len(sub.Items) > 0 {
		if tier, ok := p.catalog.TierForPriceID(sub.Items[0].Price.ID); ok {
			ev.Tier = tier
		}
	}
	if sub.CurrentBillingPeriod != nil {
		if t, err := time.Parse(time.RFC3339, sub.CurrentBillingPeriod.EndsAt); err == nil {
			t = t.UTC()
			ev.PeriodEnd = &t
		}
	}
	return ev, nil
}

// fillFromData extracts the correlation fields Paddle scatters across its
// event shapes. Subscription events carry the price under items[].price.id;
// transaction events carry it under items[].price_id. Whichever correlation
// is present is used; missing correlation is the reconciler's problem, not
// a parse error.
func (p *PaddleProvider) fillFromData(ev *subscription.InboundEvent, data map[string]any, isSubscription bool) {
	if id, ok := data["id"].(string); ok {
		if isSubscription {
			ev.ProviderSubscriptionID = id
		}
	}
	if subID, ok := data["subscription_id"].(string); ok && subID != "" {
		ev.ProviderSubscriptionID = subID
	}
	if customerID, ok := data["customer_id"].(string); ok {
		ev.ProviderCustomerID = customerID
	}
	if status, ok := data["status"].(string); ok {
		ev.Status = strings.ToLower(status)
	}

	if customData, ok := data["custom_data"].(map[string]any); ok {
		if raw, ok := customData["user_id"].(string); ok {
			if id, err := uuid.Parse(raw); err == nil {
				ev.UserID = id
			}
		}
		if ev.Tier == "" {
			if raw, ok := customData["plan"].(string); ok {
				if tier, ok := plan.ParseTier(raw); ok {
					ev.Tier = tier
				}
			}
		}
	}

	if items, ok := data["items"].([]any); ok && len(items) > 0 {
		if item, ok := items[0].(map[string]any); ok {
			var priceID string
			if price, ok := item["price"].(map[string]any); ok {
				priceID, _ = price["id"].(string)
			}
			if priceID == "" {
				priceID, _ = item["price_id"].(string)
			}
			if tier, ok := p.catalog.TierForPriceID(priceID); ok {
				ev.Tier = tier
			}
		}
	}

	if period, ok := data["current_billing_period"].(map[string]any); ok {
		if raw, ok := period["ends_at"].(string); ok {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				t = t.UTC()
				ev.PeriodEnd = &t
			}
		}
	}
	if ev.PeriodEnd == nil {
		if raw, ok := data["next_billed_at"].(string); ok {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				t = t.UTC()
				ev.PeriodEnd = &t
			}
		}
	}
}

// mapPaddleEventType maps Paddle event names to normalized event types.
func mapPaddleEventType(paddleEvent string) (subscription.EventType, bool) {
	switch paddleEvent {
	case "transaction.completed":
		return subscription.EventCheckoutCompleted, true
	case "subscription.created":
		return subscription.EventSubscriptionCreated, true
	case "subscription.updated", "subscription.resumed":
		return subscription.EventSubscriptionUpdated, true
	case "subscription.canceled":
		return subscription.EventSubscriptionCancelled, true
	case "transaction.payment_succeeded":
		return subscription.EventInvoicePaid, true
	case "transaction.payment_failed":
		return subscription.EventInvoiceFailed, true
	default:
		return "", false
	}
}
