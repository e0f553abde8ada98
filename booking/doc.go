// Package booking drives the early order lifecycle: placement,
// sender/receiver availability collection, approval, and leg scheduling.
// Once a leg is handed to the dispatch provider the webhook pipeline
// takes over.
package booking
