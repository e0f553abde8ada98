// Package transport is the HTTP surface: the dispatch-provider webhook
// endpoint, booking and order operations, the jobs and drivers registries,
// route optimization, and health. Handlers decode requests, call the
// domain services, and serialize results; every error goes through the
// shared envelope mapper so clients see one error shape.
package transport
