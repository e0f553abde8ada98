package notify

import (
	"fmt"

	"github.com/pedalfleet/courier-ops/core"
)

// ConfirmationTemplates renders the collection and delivery confirmation
// messages sent when an order reaches a leg milestone.
type ConfirmationTemplates struct {
	// ServiceName appears in the message signature. Defaults to the
	// configured service name when wired through the facade.
	ServiceName string
}

func (t ConfirmationTemplates) RenderConfirmation(order core.Order, leg core.LegType) core.Notification {
	serviceName := t.ServiceName
	if serviceName == "" {
		serviceName = "Courier Ops"
	}

	if leg == core.LegDelivery {
		return core.Notification{
			Kind:           core.NotificationDeliveryConfirmed,
			OrderID:        order.ID,
			TrackingNumber: order.TrackingNumber,
			Leg:            leg,
			Subject:        fmt.Sprintf("Your bike has been delivered (%s)", order.TrackingNumber),
			Body: fmt.Sprintf(
				"Hi %s,\n\nYour bike has been delivered. Tracking number: %s.\n\nThanks,\n%s",
				order.Receiver.Name, order.TrackingNumber, serviceName,
			),
		}
	}
	return core.Notification{
		Kind:           core.NotificationCollectionConfirmed,
		OrderID:        order.ID,
		TrackingNumber: order.TrackingNumber,
		Leg:            leg,
		Subject:        fmt.Sprintf("Your bike has been collected (%s)", order.TrackingNumber),
		Body: fmt.Sprintf(
			"Hi %s,\n\nYour bike has been collected and is on its way. Tracking number: %s.\n\nThanks,\n%s",
			order.Sender.Name, order.TrackingNumber, serviceName,
		),
	}
}
