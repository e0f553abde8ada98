package core

import (
	"strings"
	"time"
)

// Canonical ledger event labels as recorded in the tracking log. These are
// the provider's wire labels, kept verbatim so the customer-facing tracking
// view and the provider dashboard line up.
const (
	LedgerEventAssigned  = "ORDER_ASSIGNED"
	LedgerEventOnTheWay  = "ORDER_ONTHEWAY"
	LedgerEventCompleted = "ORDER_COMPLETED"
	LedgerEventPOD       = "ORDER_POD_UPLOAD"
	LedgerEventFailed    = "ORDER_FAILED"
)

// TrackingEvent is one append-only row in an order's tracking ledger.
type TrackingEvent struct {
	Status       OrderStatus `json:"status"`
	Event        string      `json:"event"`
	Leg          LegType     `json:"leg"`
	LegOrderID   string      `json:"leg_order_id,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
	Description  string      `json:"description,omitempty"`
	PODURLs      []string    `json:"pod_urls,omitempty"`
	SignatureURL string      `json:"signature_url,omitempty"`
	DriverName   string      `json:"driver_name,omitempty"`
}

// TrackingLog is the per-order ordered history of dispatch events. Entries
// are never mutated after insertion, with one documented exception:
// MergeProof backfills proof-of-delivery data onto the latest completed
// entry for a leg when the provider uploads proof after (or without) a
// paired completion event.
type TrackingLog struct {
	Updates     []TrackingEvent `json:"updates"`
	LastStatus  OrderStatus     `json:"last_status,omitempty"`
	LastUpdated time.Time       `json:"last_updated,omitempty"`
}

func (l *TrackingLog) Append(event TrackingEvent) {
	if l == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	l.Updates = append(l.Updates, event)
	l.LastStatus = event.Status
	l.LastUpdated = event.Timestamp
}

// HasCompletion reports whether a completion entry has already been
// recorded for the given leg.
func (l *TrackingLog) HasCompletion(leg LegType) bool {
	if l == nil {
		return false
	}
	for _, event := range l.Updates {
		if event.Leg == leg && event.Event == LedgerEventCompleted {
			return true
		}
	}
	return false
}

// MergeProof folds proof data into the most recent completed entry for the
// leg. Returns false when no completed entry exists, in which case the
// caller synthesizes a completion instead. URLs already present are not
// duplicated, so replaying the same proof upload is a no-op.
func (l *TrackingLog) MergeProof(leg LegType, podURLs []string, signatureURL string) bool {
	if l == nil {
		return false
	}
	for i := len(l.Updates) - 1; i >= 0; i-- {
		event := &l.Updates[i]
		if event.Leg != leg || event.Event != LedgerEventCompleted {
			continue
		}
		for _, url := range podURLs {
			url = strings.TrimSpace(url)
			if url == "" || containsURL(event.PODURLs, url) {
				continue
			}
			event.PODURLs = append(event.PODURLs, url)
		}
		if signatureURL = strings.TrimSpace(signatureURL); signatureURL != "" {
			event.SignatureURL = signatureURL
		}
		return true
	}
	return false
}

func (l *TrackingLog) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Updates)
}

func containsURL(urls []string, candidate string) bool {
	for _, url := range urls {
		if url == candidate {
			return true
		}
	}
	return false
}
