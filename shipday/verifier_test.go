package shipday

import (
	"context"
	"testing"

	"github.com/pedalfleet/courier-ops/core"
)

func TestTokenVerifier_AcceptsMatchingToken(t *testing.T) {
	verifier := NewTokenVerifier(core.WebhookConfig{Token: "secret-1", RequireToken: true})
	err := verifier.Verify(context.Background(), core.InboundRequest{
		Headers: map[string]string{"x-shipday-token": "secret-1"},
	})
	if err != nil {
		t.Fatalf("expected matching token accepted: %v", err)
	}
}

func TestTokenVerifier_RejectsMissingOrWrongToken(t *testing.T) {
	verifier := NewTokenVerifier(core.WebhookConfig{Token: "secret-1", RequireToken: true})

	if err := verifier.Verify(context.Background(), core.InboundRequest{}); err == nil {
		t.Fatalf("expected missing token rejected")
	}
	err := verifier.Verify(context.Background(), core.InboundRequest{
		Headers: map[string]string{HeaderToken: "secret-2"},
	})
	if err == nil {
		t.Fatalf("expected wrong token rejected")
	}
}

func TestTokenVerifier_SkipsWhenNotEnforced(t *testing.T) {
	verifier := NewTokenVerifier(core.WebhookConfig{RequireToken: false})
	if err := verifier.Verify(context.Background(), core.InboundRequest{}); err != nil {
		t.Fatalf("expected unenforced verifier to accept: %v", err)
	}
}

func TestExtractDeliveryID(t *testing.T) {
	req := core.InboundRequest{
		Headers:  map[string]string{"X-Shipday-Delivery-Id": "dlv-7"},
		Metadata: map[string]any{},
	}
	if got := ExtractDeliveryID(req); got != "dlv-7" {
		t.Fatalf("expected header delivery id, got %q", got)
	}
	req.Metadata["delivery_id"] = "dlv-8"
	if got := ExtractDeliveryID(req); got != "dlv-8" {
		t.Fatalf("expected metadata delivery id to win, got %q", got)
	}
	if got := ExtractDeliveryID(core.InboundRequest{}); got != "" {
		t.Fatalf("expected empty id without headers, got %q", got)
	}
}
