// Package shipday adapts the Shipday dispatch provider's webhook surface
// to the canonical courier domain: payload normalization, leg
// classification, and request verification. Parsing is a pure function of
// the payload; storage is never touched here.
package shipday
