// Package subscription owns the authoritative subscription record per user
// and the reconciliation of payment-provider lifecycle events onto it.
//
// The payment provider delivers notifications asynchronously, at least once,
// possibly out of order and in parallel retries. The reconciler makes that
// safe with two mechanisms: per-record optimistic versioning in the Store
// (concurrent writers for the same user cannot interleave) and a monotonic
// ordering key on every event (a key not strictly newer than the record's
// applied state is discarded as an idempotent no-op). Replaying any event
// sequence therefore converges on the same final record.
//
// Events that only reference a subscription (checkout completed, invoice
// paid) are triggers: the reconciler fetches the authoritative subscription
// from the provider through a SubscriptionResolver rather than trusting the
// trigger payload.
package subscription
