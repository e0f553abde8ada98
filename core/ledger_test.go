package core

import (
	"testing"
	"time"
)

func TestTrackingLog_AppendKeepsInsertionOrder(t *testing.T) {
	log := &TrackingLog{}
	first := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	log.Append(TrackingEvent{Status: StatusDriverToCollection, Event: LedgerEventOnTheWay, Leg: LegCollection, Timestamp: first})
	log.Append(TrackingEvent{Status: StatusCollected, Event: LedgerEventCompleted, Leg: LegCollection, Timestamp: first.Add(time.Hour)})

	if log.Len() != 2 {
		t.Fatalf("expected 2 entries, got %d", log.Len())
	}
	if log.Updates[0].Event != LedgerEventOnTheWay || log.Updates[1].Event != LedgerEventCompleted {
		t.Fatalf("expected insertion order preserved")
	}
	if log.LastStatus != StatusCollected {
		t.Fatalf("expected last status collected, got %q", log.LastStatus)
	}
	if !log.LastUpdated.Equal(first.Add(time.Hour)) {
		t.Fatalf("expected last updated from newest entry")
	}
}

func TestTrackingLog_HasCompletionIsPerLeg(t *testing.T) {
	log := &TrackingLog{}
	log.Append(TrackingEvent{Status: StatusCollected, Event: LedgerEventCompleted, Leg: LegCollection})

	if !log.HasCompletion(LegCollection) {
		t.Fatalf("expected collection completion recorded")
	}
	if log.HasCompletion(LegDelivery) {
		t.Fatalf("delivery leg must not inherit collection completion")
	}
}

func TestTrackingLog_MergeProofBackfillsLatestCompletion(t *testing.T) {
	log := &TrackingLog{}
	log.Append(TrackingEvent{Status: StatusCollected, Event: LedgerEventCompleted, Leg: LegCollection})
	log.Append(TrackingEvent{Status: StatusDelivered, Event: LedgerEventCompleted, Leg: LegDelivery})

	if !log.MergeProof(LegDelivery, []string{"https://pods.example/1.jpg"}, "https://pods.example/sig.png") {
		t.Fatalf("expected merge onto delivery completion")
	}
	if log.Len() != 2 {
		t.Fatalf("merge must not append entries, got %d", log.Len())
	}
	delivery := log.Updates[1]
	if len(delivery.PODURLs) != 1 || delivery.PODURLs[0] != "https://pods.example/1.jpg" {
		t.Fatalf("expected pod url merged, got %v", delivery.PODURLs)
	}
	if delivery.SignatureURL != "https://pods.example/sig.png" {
		t.Fatalf("expected signature merged, got %q", delivery.SignatureURL)
	}
	if len(log.Updates[0].PODURLs) != 0 {
		t.Fatalf("collection entry must be untouched")
	}
}

func TestTrackingLog_MergeProofIsIdempotent(t *testing.T) {
	log := &TrackingLog{}
	log.Append(TrackingEvent{Status: StatusCollected, Event: LedgerEventCompleted, Leg: LegCollection})

	urls := []string{"https://pods.example/1.jpg"}
	if !log.MergeProof(LegCollection, urls, "") {
		t.Fatalf("expected first merge to succeed")
	}
	if !log.MergeProof(LegCollection, urls, "") {
		t.Fatalf("expected replayed merge to succeed")
	}
	if got := len(log.Updates[0].PODURLs); got != 1 {
		t.Fatalf("expected no duplicate pod urls, got %d", got)
	}
}

func TestTrackingLog_MergeProofWithoutCompletionFails(t *testing.T) {
	log := &TrackingLog{}
	log.Append(TrackingEvent{Status: StatusDriverToCollection, Event: LedgerEventOnTheWay, Leg: LegCollection})

	if log.MergeProof(LegCollection, []string{"https://pods.example/1.jpg"}, "") {
		t.Fatalf("expected merge to fail without a completion entry")
	}
}
