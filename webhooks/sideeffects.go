package webhooks

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/pedalfleet/courier-ops/core"
)

// ConfirmationRenderer builds the customer-facing confirmation message for
// a leg milestone.
type ConfirmationRenderer interface {
	RenderConfirmation(order core.Order, leg core.LegType) core.Notification
}

// SideEffectDispatcher fires the notification and job-propagation side
// effects after a status mutation has committed. Everything here is
// best-effort: failures are logged and never surfaced to the webhook
// caller, because the authoritative state is already correct.
type SideEffectDispatcher struct {
	Orders   core.OrderStore
	Jobs     core.JobStore
	Notifier core.Notifier
	Renderer ConfirmationRenderer
	Logger   core.Logger
	Now      func() time.Time
}

func NewSideEffectDispatcher(
	orders core.OrderStore,
	jobs core.JobStore,
	notifier core.Notifier,
	renderer ConfirmationRenderer,
	logger core.Logger,
) *SideEffectDispatcher {
	return &SideEffectDispatcher{
		Orders:   orders,
		Jobs:     jobs,
		Notifier: notifier,
		Renderer: renderer,
		Logger:   glog.Ensure(logger),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Dispatch triggers side effects for the order's just-committed status.
// Only the collected and delivered milestones carry side effects.
func (d *SideEffectDispatcher) Dispatch(ctx context.Context, order core.Order) {
	if d == nil {
		return
	}

	var leg core.LegType
	switch order.Status {
	case core.StatusCollected:
		leg = core.LegCollection
	case core.StatusDelivered:
		leg = core.LegDelivery
	default:
		return
	}

	d.propagateJobs(ctx, order)
	d.sendConfirmation(ctx, order, leg)
}

// PropagateJobs pushes the derived per-leg job statuses for any order
// status change, milestone or not. Used by the processor for transitions
// that move status without reaching a confirmation milestone.
func (d *SideEffectDispatcher) PropagateJobs(ctx context.Context, order core.Order) {
	if d == nil {
		return
	}
	d.propagateJobs(ctx, order)
}

func (d *SideEffectDispatcher) propagateJobs(ctx context.Context, order core.Order) {
	if d.Jobs == nil {
		return
	}
	for _, leg := range []core.LegType{core.LegCollection, core.LegDelivery} {
		status, mapped := core.JobStatusFor(leg, order.Status)
		if !mapped {
			continue
		}
		if err := d.Jobs.SetStatus(ctx, order.ID, leg, status); err != nil {
			d.logger().Error("job status propagation failed",
				"order_id", order.ID,
				"leg", string(leg),
				"job_status", string(status),
				"error", err.Error(),
			)
		}
	}
}

func (d *SideEffectDispatcher) sendConfirmation(ctx context.Context, order core.Order, leg core.LegType) {
	if d.Notifier == nil || d.Orders == nil {
		return
	}
	if order.ConfirmationSentAt(leg) != nil {
		return
	}

	// Atomic claim on the confirmation timestamp closes the race between
	// concurrent duplicate deliveries: only one caller wins the column.
	claimed, err := d.Orders.MarkConfirmationSent(ctx, order.ID, leg, d.now())
	if err != nil {
		d.logger().Error("confirmation claim failed",
			"order_id", order.ID,
			"leg", string(leg),
			"error", err.Error(),
		)
		return
	}
	if !claimed {
		return
	}

	recipient := order.Sender
	if leg == core.LegDelivery {
		recipient = order.Receiver
	}
	notification := d.render(order, leg)
	if err := d.Notifier.Send(ctx, recipient, notification); err != nil {
		d.logger().Error("confirmation send failed",
			"order_id", order.ID,
			"leg", string(leg),
			"kind", string(notification.Kind),
			"error", err.Error(),
		)
	}
}

func (d *SideEffectDispatcher) render(order core.Order, leg core.LegType) core.Notification {
	if d.Renderer != nil {
		return d.Renderer.RenderConfirmation(order, leg)
	}
	kind := core.NotificationCollectionConfirmed
	if leg == core.LegDelivery {
		kind = core.NotificationDeliveryConfirmed
	}
	return core.Notification{
		Kind:           kind,
		OrderID:        order.ID,
		TrackingNumber: order.TrackingNumber,
		Leg:            leg,
	}
}

func (d *SideEffectDispatcher) now() time.Time {
	if d != nil && d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

func (d *SideEffectDispatcher) logger() core.Logger {
	if d != nil && d.Logger != nil {
		return d.Logger
	}
	return glog.Nop()
}
