// Package webhooks reconciles inbound dispatch-provider deliveries onto
// the authoritative order status: verify, normalize, resolve the order,
// compute the transition, persist status and tracking ledger in one
// transactional update, then fire guarded side effects.
//
// The pipeline is at-least-once: a persistence failure surfaces as an
// error so the provider's own retry policy redelivers the webhook. Every
// mutation downstream of that boundary is therefore idempotent.
package webhooks
