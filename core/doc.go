// Package core contains canonical courier domain contracts, entities, and
// the order status transition engine. Adapters (stores, transports,
// dispatch providers) must depend on this package; core must not depend on
// provider-specific or transport-specific adapters.
package core
