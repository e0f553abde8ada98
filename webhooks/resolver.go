package webhooks

import (
	"context"
	"errors"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/pedalfleet/courier-ops/core"
)

// OrderResolver maps a provider-side order id to the internal order row.
type OrderResolver struct {
	Orders core.OrderStore
	Logger core.Logger
}

func NewOrderResolver(orders core.OrderStore, logger core.Logger) *OrderResolver {
	return &OrderResolver{
		Orders: orders,
		Logger: glog.Ensure(logger),
	}
}

// Resolve finds the order for a normalized event. Primary lookup is by the
// leg-specific provider id; the fallback strips the leg suffix and looks
// up by tracking number, backfilling the provider id onto the order so the
// next webhook for the leg hits the primary path.
func (r *OrderResolver) Resolve(ctx context.Context, event core.NormalizedEvent) (core.Order, error) {
	if r == nil || r.Orders == nil {
		return core.Order{}, resolverInternal("webhooks: order resolver is not configured")
	}

	providerOrderID := strings.TrimSpace(event.ProviderOrderID)
	if providerOrderID != "" {
		order, err := r.Orders.GetByProviderLegID(ctx, event.Leg, providerOrderID)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, core.ErrOrderNotFound) {
			return core.Order{}, resolverLookupFailed(err, event)
		}
	}

	trackingNumber := strings.TrimSpace(event.TrackingNumber)
	if trackingNumber == "" {
		return core.Order{}, orderNotFound(event)
	}
	order, err := r.Orders.GetByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		if errors.Is(err, core.ErrOrderNotFound) {
			return core.Order{}, orderNotFound(event)
		}
		return core.Order{}, resolverLookupFailed(err, event)
	}

	if providerOrderID != "" && order.ProviderLegID(event.Leg) == "" {
		if err := r.Orders.BindProviderLegID(ctx, order.ID, event.Leg, providerOrderID); err != nil {
			// Backfill is an optimization for the next delivery; the order
			// itself resolved fine.
			r.logger().Error("bind provider leg id failed",
				"order_id", order.ID,
				"leg", string(event.Leg),
				"provider_order_id", providerOrderID,
				"error", err.Error(),
			)
		} else if event.Leg == core.LegDelivery {
			order.ProviderDeliveryID = providerOrderID
		} else {
			order.ProviderPickupID = providerOrderID
		}
	}
	return order, nil
}

func (r *OrderResolver) logger() core.Logger {
	if r != nil && r.Logger != nil {
		return r.Logger
	}
	return glog.Nop()
}

func orderNotFound(event core.NormalizedEvent) error {
	return goerrors.New(
		"webhooks: no matching order for webhook",
		goerrors.CategoryNotFound,
	).
		WithCode(http.StatusNotFound).
		WithTextCode(core.CourierErrorOrderNotFound).
		WithMetadata(map[string]any{
			"provider_order_id": event.ProviderOrderID,
			"order_number":      event.RawOrderNumber,
			"leg":               string(event.Leg),
		})
}

func resolverLookupFailed(source error, event core.NormalizedEvent) error {
	return goerrors.Wrap(source, goerrors.CategoryOperation, "webhooks: order lookup failed").
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.CourierErrorOrderUpdateFailed).
		WithMetadata(map[string]any{
			"provider_order_id": event.ProviderOrderID,
			"order_number":      event.RawOrderNumber,
		})
}

func resolverInternal(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.CourierErrorInternal)
}
