package shipday

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/pedalfleet/courier-ops/core"
)

const ProviderID = "shipday"

// Leg suffix convention: the platform places each order as two Shipday
// jobs, order_number "<tracking>-PICKUP" and "<tracking>-DELIVERY".
const (
	SuffixPickup   = "-PICKUP"
	SuffixDelivery = "-DELIVERY"
)

// Wire labels Shipday sends in the "event" field. Labels vary across
// provider API versions; normalization is the only place that knows them.
const (
	wireAssigned           = "ORDER_ASSIGNED"
	wireAcceptedAndStarted = "ORDER_ACCEPTED_AND_STARTED"
	wireAccepted           = "ORDER_ACCEPTED"
	wireStarted            = "ORDER_STARTED"
	wireOnTheWay           = "ORDER_ONTHEWAY"
	wireCompleted          = "ORDER_COMPLETED"
	wirePODUpload          = "ORDER_POD_UPLOAD"
	wireFailed             = "ORDER_FAILED"
	wireDeleted            = "ORDER_DELETED"
	wireUnassigned         = "ORDER_UNASSIGNED"
)

type webhookPayload struct {
	Event       string          `json:"event"`
	OrderStatus string          `json:"order_status"`
	Timestamp   string          `json:"timestamp"`
	Order       *webhookOrder   `json:"order"`
	Carrier     *webhookCarrier `json:"carrier"`
	PODs        []string        `json:"pods"`
	Signatures  []string        `json:"signatures"`
}

type webhookOrder struct {
	ID          json.Number `json:"id"`
	OrderNumber string      `json:"order_number"`
}

type webhookCarrier struct {
	ID    json.Number `json:"id"`
	Name  string      `json:"name"`
	Phone string      `json:"phone"`
	Email string      `json:"email"`
}

// Normalize parses a raw Shipday webhook body into a canonical event.
// Unrecognized payload shapes are rejected here rather than accessed
// speculatively downstream.
func Normalize(body []byte) (core.NormalizedEvent, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return core.NormalizedEvent{}, invalidPayload("shipday: malformed webhook body", map[string]any{
			"parse_error": err.Error(),
		})
	}

	wireLabel := strings.ToUpper(strings.TrimSpace(payload.Event))
	if wireLabel == "" {
		return core.NormalizedEvent{}, invalidPayload("shipday: event field is required", nil)
	}
	if payload.Order == nil || strings.TrimSpace(payload.Order.OrderNumber) == "" {
		return core.NormalizedEvent{}, invalidPayload("shipday: order.order_number is required", nil)
	}

	orderNumber := strings.TrimSpace(payload.Order.OrderNumber)
	leg, err := ClassifyLeg(orderNumber)
	if err != nil {
		return core.NormalizedEvent{}, err
	}

	event := core.NormalizedEvent{
		Leg:             leg,
		Event:           mapEventType(wireLabel),
		ProviderOrderID: strings.TrimSpace(payload.Order.ID.String()),
		RawOrderNumber:  orderNumber,
		TrackingNumber:  TrackingNumber(orderNumber),
		WireLabel:       wireLabel,
		OccurredAt:      parseTimestamp(payload.Timestamp),
		PODURLs:         trimURLs(payload.PODs),
	}
	if len(payload.Signatures) > 0 {
		event.SignatureURL = strings.TrimSpace(payload.Signatures[0])
	}
	if payload.Carrier != nil {
		event.DriverName = strings.TrimSpace(payload.Carrier.Name)
	}
	return event, nil
}

// ClassifyLeg maps the order_number suffix to a leg type.
func ClassifyLeg(orderNumber string) (core.LegType, error) {
	upper := strings.ToUpper(strings.TrimSpace(orderNumber))
	switch {
	case strings.HasSuffix(upper, SuffixPickup):
		return core.LegCollection, nil
	case strings.HasSuffix(upper, SuffixDelivery):
		return core.LegDelivery, nil
	default:
		return "", invalidOrderNumber(orderNumber)
	}
}

// TrackingNumber strips the leg suffix, recovering the internal tracking
// number for the fallback order lookup.
func TrackingNumber(orderNumber string) string {
	trimmed := strings.TrimSpace(orderNumber)
	upper := strings.ToUpper(trimmed)
	switch {
	case strings.HasSuffix(upper, SuffixPickup):
		return trimmed[:len(trimmed)-len(SuffixPickup)]
	case strings.HasSuffix(upper, SuffixDelivery):
		return trimmed[:len(trimmed)-len(SuffixDelivery)]
	default:
		return trimmed
	}
}

func mapEventType(wireLabel string) core.EventType {
	switch wireLabel {
	case wireAssigned:
		return core.EventAssigned
	case wireAcceptedAndStarted, wireAccepted:
		return core.EventAccepted
	case wireStarted:
		return core.EventStarted
	case wireOnTheWay:
		return core.EventOnTheWay
	case wireCompleted:
		return core.EventCompleted
	case wirePODUpload:
		return core.EventProofUploaded
	case wireFailed:
		return core.EventFailed
	case wireDeleted:
		return core.EventDeleted
	case wireUnassigned:
		return core.EventUnassigned
	default:
		return core.EventUnknown
	}
}

func parseTimestamp(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC()
		}
	}
	return time.Time{}
}

func trimURLs(urls []string) []string {
	if len(urls) == 0 {
		return nil
	}
	out := make([]string, 0, len(urls))
	for _, url := range urls {
		if url = strings.TrimSpace(url); url != "" {
			out = append(out, url)
		}
	}
	return out
}

func invalidPayload(message string, metadata map[string]any) error {
	err := goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.CourierErrorInvalidPayload)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func invalidOrderNumber(orderNumber string) error {
	return goerrors.New(
		"shipday: order_number is missing the -PICKUP/-DELIVERY leg suffix",
		goerrors.CategoryBadInput,
	).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.CourierErrorInvalidOrderNumber).
		WithMetadata(map[string]any{"order_number": orderNumber})
}
