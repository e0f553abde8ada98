// Package routing builds multi-day courier route plans from the jobs and
// drivers registries. Plans cover a five-day horizon, honor each driver's
// daily hours budget, and keep an order's collection stop ahead of its
// delivery stop. Travel times come from a pluggable matrix provider; an
// offline estimator serves when no external provider is configured.
package routing
