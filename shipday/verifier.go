package shipday

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/pedalfleet/courier-ops/core"
)

const HeaderToken = "X-Shipday-Token"

// TokenVerifier checks the shared webhook token Shipday is configured to
// send. Enforcement is feature-flagged so environments without a
// provider-side token keep accepting deliveries.
type TokenVerifier struct {
	Token   string
	Enforce bool
}

func NewTokenVerifier(cfg core.WebhookConfig) TokenVerifier {
	return TokenVerifier{
		Token:   strings.TrimSpace(cfg.Token),
		Enforce: cfg.RequireToken,
	}
}

func (v TokenVerifier) Verify(_ context.Context, req core.InboundRequest) error {
	if !v.Enforce {
		return nil
	}
	expected := strings.TrimSpace(v.Token)
	if expected == "" {
		return unauthorized("shipday: verification token is not configured")
	}
	actual := strings.TrimSpace(headerValue(req.Headers, HeaderToken))
	if actual == "" {
		return unauthorized("shipday: " + HeaderToken + " header is required")
	}
	if subtle.ConstantTimeCompare([]byte(actual), []byte(expected)) != 1 {
		return unauthorized("shipday: webhook token mismatch")
	}
	return nil
}

// ExtractDeliveryID returns the provider's delivery id when present. An
// empty id is not an error: Shipday does not attach one on every API
// version, and the pipeline is idempotent without claim-based dedupe.
func ExtractDeliveryID(req core.InboundRequest) string {
	if req.Metadata != nil {
		if value, ok := req.Metadata["delivery_id"].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return strings.TrimSpace(headerValue(req.Headers, "X-Shipday-Delivery-Id"))
}

func unauthorized(message string) error {
	return goerrors.New(message, goerrors.CategoryAuth).
		WithCode(http.StatusUnauthorized).
		WithTextCode(core.CourierErrorUnauthorized)
}

func headerValue(headers map[string]string, key string) string {
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
