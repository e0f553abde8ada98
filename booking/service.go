package booking

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/google/uuid"

	"github.com/pedalfleet/courier-ops/core"
)

// bookingProgression lists the statuses an operation may start from. The
// webhook pipeline owns everything from driver_to_collection onward.
var bookingProgression = map[string][]core.OrderStatus{
	"request_sender_availability":   {core.StatusCreated},
	"confirm_sender_availability":   {core.StatusCreated, core.StatusSenderAvailabilityPending},
	"request_receiver_availability": {core.StatusSenderAvailabilityConfirmed},
	"confirm_receiver_availability": {core.StatusSenderAvailabilityConfirmed, core.StatusReceiverAvailabilityPending},
	"submit_for_approval":           {core.StatusReceiverAvailabilityConfirmed},
	"approve":                       {core.StatusPendingApproval},
	"schedule_collection":           {core.StatusScheduled, core.StatusScheduledDatesPending},
	"schedule_delivery":             {core.StatusCollected, core.StatusCollectionScheduled},
	"cancel": {
		core.StatusCreated,
		core.StatusSenderAvailabilityPending,
		core.StatusSenderAvailabilityConfirmed,
		core.StatusReceiverAvailabilityPending,
		core.StatusReceiverAvailabilityConfirmed,
		core.StatusPendingApproval,
		core.StatusScheduled,
		core.StatusScheduledDatesPending,
	},
}

type Service struct {
	Orders core.OrderStore
	Jobs   core.JobStore
	Logger core.Logger
	Now    func() time.Time
}

func NewService(orders core.OrderStore, jobs core.JobStore, logger core.Logger) *Service {
	return &Service{
		Orders: orders,
		Jobs:   jobs,
		Logger: glog.Ensure(logger),
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type PlaceOrderInput struct {
	TrackingNumber string
	Sender         core.Contact
	Receiver       core.Contact
	Bike           string
}

// PlaceOrder creates an order in the created state. The contacts are
// snapshots: later customer-record edits do not rewrite placed orders.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (core.Order, error) {
	if s == nil || s.Orders == nil {
		return core.Order{}, bookingInternal("booking: service is not configured")
	}
	if strings.TrimSpace(in.Sender.Name) == "" || strings.TrimSpace(in.Receiver.Name) == "" {
		return core.Order{}, bookingBadInput("booking: sender and receiver names are required")
	}

	trackingNumber := strings.TrimSpace(in.TrackingNumber)
	if trackingNumber == "" {
		trackingNumber = newTrackingNumber()
	}

	order, err := s.Orders.Create(ctx, core.Order{
		TrackingNumber: trackingNumber,
		Status:         core.StatusCreated,
		Sender:         in.Sender,
		Receiver:       in.Receiver,
		Bike:           strings.TrimSpace(in.Bike),
	})
	if err != nil {
		return core.Order{}, bookingWrap(err, "booking: place order failed")
	}
	s.logger().Info("order placed",
		"order_id", order.ID,
		"tracking_number", order.TrackingNumber,
	)
	return order, nil
}

func (s *Service) RequestSenderAvailability(ctx context.Context, orderID string) (core.Order, error) {
	return s.advance(ctx, orderID, "request_sender_availability", core.StatusSenderAvailabilityPending)
}

// ConfirmSenderAvailability records the sender's preferred collection
// dates and creates the collection leg job.
func (s *Service) ConfirmSenderAvailability(ctx context.Context, orderID string, dates []time.Time) (core.Order, error) {
	order, err := s.advance(ctx, orderID, "confirm_sender_availability", core.StatusSenderAvailabilityConfirmed)
	if err != nil {
		return core.Order{}, err
	}
	if err := s.seedLegJob(ctx, order, core.LegCollection, order.Sender.Address, dates); err != nil {
		return core.Order{}, err
	}
	return order, nil
}

func (s *Service) RequestReceiverAvailability(ctx context.Context, orderID string) (core.Order, error) {
	return s.advance(ctx, orderID, "request_receiver_availability", core.StatusReceiverAvailabilityPending)
}

func (s *Service) ConfirmReceiverAvailability(ctx context.Context, orderID string, dates []time.Time) (core.Order, error) {
	order, err := s.advance(ctx, orderID, "confirm_receiver_availability", core.StatusReceiverAvailabilityConfirmed)
	if err != nil {
		return core.Order{}, err
	}
	if err := s.seedLegJob(ctx, order, core.LegDelivery, order.Receiver.Address, dates); err != nil {
		return core.Order{}, err
	}
	return order, nil
}

func (s *Service) SubmitForApproval(ctx context.Context, orderID string) (core.Order, error) {
	return s.advance(ctx, orderID, "submit_for_approval", core.StatusPendingApproval)
}

// Approve moves the order to scheduled and flips both leg jobs to the
// scheduled status so route planning picks them up.
func (s *Service) Approve(ctx context.Context, orderID string) (core.Order, error) {
	order, err := s.advance(ctx, orderID, "approve", core.StatusScheduled)
	if err != nil {
		return core.Order{}, err
	}
	if s.Jobs == nil {
		return order, nil
	}
	for _, leg := range []core.LegType{core.LegCollection, core.LegDelivery} {
		if err := s.Jobs.SetStatus(ctx, order.ID, leg, core.JobStatusScheduled); err != nil {
			return core.Order{}, bookingWrap(err, "booking: schedule leg jobs failed")
		}
	}
	return order, nil
}

func (s *Service) ScheduleCollection(ctx context.Context, orderID string) (core.Order, error) {
	return s.advance(ctx, orderID, "schedule_collection", core.StatusCollectionScheduled)
}

// ScheduleDelivery books the delivery leg. Reached from collected, which
// covers both the normal flow and redelivery after a failed attempt.
func (s *Service) ScheduleDelivery(ctx context.Context, orderID string) (core.Order, error) {
	return s.advance(ctx, orderID, "schedule_delivery", core.StatusDeliveryScheduled)
}

func (s *Service) Cancel(ctx context.Context, orderID string) (core.Order, error) {
	return s.advance(ctx, orderID, "cancel", core.StatusCancelled)
}

func (s *Service) Get(ctx context.Context, orderID string) (core.Order, error) {
	if s == nil || s.Orders == nil {
		return core.Order{}, bookingInternal("booking: service is not configured")
	}
	order, err := s.Orders.GetByID(ctx, orderID)
	if err != nil {
		return core.Order{}, bookingLookupError(err)
	}
	return order, nil
}

func (s *Service) GetByTrackingNumber(ctx context.Context, trackingNumber string) (core.Order, error) {
	if s == nil || s.Orders == nil {
		return core.Order{}, bookingInternal("booking: service is not configured")
	}
	order, err := s.Orders.GetByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return core.Order{}, bookingLookupError(err)
	}
	return order, nil
}

func (s *Service) advance(ctx context.Context, orderID string, operation string, next core.OrderStatus) (core.Order, error) {
	if s == nil || s.Orders == nil {
		return core.Order{}, bookingInternal("booking: service is not configured")
	}
	order, err := s.Orders.GetByID(ctx, strings.TrimSpace(orderID))
	if err != nil {
		return core.Order{}, bookingLookupError(err)
	}

	if !statusAllowed(bookingProgression[operation], order.Status) {
		return core.Order{}, bookingConflict(operation, order)
	}

	updated, err := s.Orders.UpdateStatus(ctx, order.ID, next)
	if err != nil {
		return core.Order{}, bookingWrap(err, "booking: status update failed")
	}
	s.logger().Info("booking status advanced",
		"order_id", updated.ID,
		"operation", operation,
		"status", string(updated.Status),
	)
	return updated, nil
}

func (s *Service) seedLegJob(ctx context.Context, order core.Order, leg core.LegType, location string, dates []time.Time) error {
	if s.Jobs == nil {
		return nil
	}
	_, err := s.Jobs.Create(ctx, core.Job{
		OrderID:        order.ID,
		Leg:            leg,
		Status:         core.JobStatusPending,
		Location:       strings.TrimSpace(location),
		PreferredDates: append([]time.Time(nil), dates...),
	})
	if err != nil {
		return bookingWrap(err, "booking: seed leg job failed")
	}
	return nil
}

func (s *Service) logger() core.Logger {
	if s != nil && s.Logger != nil {
		return s.Logger
	}
	return glog.Nop()
}

func statusAllowed(allowed []core.OrderStatus, current core.OrderStatus) bool {
	for _, status := range allowed {
		if status == current {
			return true
		}
	}
	return false
}

// newTrackingNumber builds the customer-facing tracking number. The
// uppercase uuid fragment keeps it short enough to read over the phone.
func newTrackingNumber() string {
	fragment := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "PF" + fragment[:10]
}

func bookingBadInput(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.CourierErrorInvalidPayload)
}

func bookingConflict(operation string, order core.Order) error {
	return goerrors.New(
		"booking: operation not allowed for current order status",
		goerrors.CategoryConflict,
	).
		WithCode(http.StatusConflict).
		WithTextCode(core.CourierErrorConflict).
		WithMetadata(map[string]any{
			"operation": operation,
			"order_id":  order.ID,
			"status":    string(order.Status),
		})
}

func bookingWrap(source error, message string) error {
	return goerrors.Wrap(source, goerrors.CategoryOperation, message)
}

// bookingLookupError keeps the not-found sentinel visible so the HTTP
// layer maps it to 404 instead of a generic operation failure.
func bookingLookupError(err error) error {
	if errors.Is(err, core.ErrOrderNotFound) {
		return err
	}
	return bookingWrap(err, "booking: order lookup failed")
}

func bookingInternal(message string) error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.CourierErrorInternal)
}
