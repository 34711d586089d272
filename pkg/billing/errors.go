package billing

import "errors"

var (
	ErrMissingAPIKey             = errors.New("billing: provider API key is required")
	ErrMissingWebhookSecret      = errors.New("billing: webhook secret is required")
	ErrInvalidEnvironment        = errors.New("billing: invalid provider environment")
	ErrSignatureVerification     = errors.New("billing: webhook signature verification failed")
	ErrMalformedPayload          = errors.New("billing: malformed webhook payload")
	ErrNoCheckoutURL             = errors.New("billing: no checkout URL returned from provider")
	ErrNoPortalURL               = errors.New("billing: no portal URL returned from provider")
	ErrPlanNotPurchasable        = errors.New("billing: plan is not purchasable")
	ErrMissingProviderCustomerID = errors.New("billing: provider customer ID not available")
)
