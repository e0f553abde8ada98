package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidOrderStatus = errors.New("core: invalid order status")
	ErrInvalidLegType     = errors.New("core: invalid leg type")
	ErrOrderNotFound      = errors.New("core: order not found")
	ErrJobNotFound        = errors.New("core: job not found")
	ErrDriverNotFound     = errors.New("core: driver not found")
)

type OrderStatus string

const (
	StatusCreated                       OrderStatus = "created"
	StatusSenderAvailabilityPending     OrderStatus = "sender_availability_pending"
	StatusSenderAvailabilityConfirmed   OrderStatus = "sender_availability_confirmed"
	StatusReceiverAvailabilityPending   OrderStatus = "receiver_availability_pending"
	StatusReceiverAvailabilityConfirmed OrderStatus = "receiver_availability_confirmed"
	StatusPendingApproval               OrderStatus = "pending_approval"
	StatusScheduled                     OrderStatus = "scheduled"
	StatusScheduledDatesPending         OrderStatus = "scheduled_dates_pending"
	StatusCollectionScheduled           OrderStatus = "collection_scheduled"
	StatusDeliveryScheduled             OrderStatus = "delivery_scheduled"
	StatusDriverToCollection            OrderStatus = "driver_to_collection"
	StatusCollected                     OrderStatus = "collected"
	StatusDriverToDelivery              OrderStatus = "driver_to_delivery"
	StatusDelivered                     OrderStatus = "delivered"
	StatusShipped                       OrderStatus = "shipped"
	StatusCancelled                     OrderStatus = "cancelled"
)

var orderStatuses = map[OrderStatus]struct{}{
	StatusCreated:                       {},
	StatusSenderAvailabilityPending:     {},
	StatusSenderAvailabilityConfirmed:   {},
	StatusReceiverAvailabilityPending:   {},
	StatusReceiverAvailabilityConfirmed: {},
	StatusPendingApproval:               {},
	StatusScheduled:                     {},
	StatusScheduledDatesPending:         {},
	StatusCollectionScheduled:           {},
	StatusDeliveryScheduled:             {},
	StatusDriverToCollection:            {},
	StatusCollected:                     {},
	StatusDriverToDelivery:              {},
	StatusDelivered:                     {},
	StatusShipped:                       {},
	StatusCancelled:                     {},
}

func ParseOrderStatus(value string) (OrderStatus, error) {
	status := OrderStatus(strings.TrimSpace(strings.ToLower(value)))
	if _, ok := orderStatuses[status]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidOrderStatus, value)
	}
	return status, nil
}

func (s OrderStatus) Valid() bool {
	_, ok := orderStatuses[s]
	return ok
}

// LegType identifies one half of an order's physical movement. Each order
// has exactly one collection leg and one delivery leg, tracked as separate
// jobs on the dispatch provider side.
type LegType string

const (
	LegCollection LegType = "collection"
	LegDelivery   LegType = "delivery"
)

func ParseLegType(value string) (LegType, error) {
	leg := LegType(strings.TrimSpace(strings.ToLower(value)))
	switch leg {
	case LegCollection, LegDelivery:
		return leg, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidLegType, value)
	}
}

// EventType is the canonical set of dispatch-provider webhook events.
type EventType string

const (
	EventAssigned      EventType = "assigned"
	EventAccepted      EventType = "accepted"
	EventStarted       EventType = "started"
	EventOnTheWay      EventType = "on_the_way"
	EventCompleted     EventType = "completed"
	EventProofUploaded EventType = "proof_uploaded"
	EventFailed        EventType = "failed"
	EventDeleted       EventType = "deleted"
	EventUnassigned    EventType = "unassigned"
	EventUnknown       EventType = "unknown"
)

// Contact is a point-in-time snapshot captured at order placement. Later
// edits to the customer record must not rewrite history on placed orders.
type Contact struct {
	Name    string
	Phone   string
	Email   string
	Address string
}

type Order struct {
	ID             string
	TrackingNumber string
	Status         OrderStatus

	// Provider-side job ids, one per leg. Empty until the dispatch
	// provider acknowledges the leg or a webhook backfills them.
	ProviderPickupID   string
	ProviderDeliveryID string

	Sender   Contact
	Receiver Contact
	Bike     string

	CollectionDriverName string
	DeliveryDriverName   string

	OrderCollected bool
	OrderDelivered bool

	CollectionConfirmationSentAt *time.Time
	DeliveryConfirmationSentAt   *time.Time

	Tracking TrackingLog

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProviderLegID returns the provider-side job id for the given leg.
func (o Order) ProviderLegID(leg LegType) string {
	if leg == LegDelivery {
		return o.ProviderDeliveryID
	}
	return o.ProviderPickupID
}

func (o Order) ConfirmationSentAt(leg LegType) *time.Time {
	if leg == LegDelivery {
		return o.DeliveryConfirmationSentAt
	}
	return o.CollectionConfirmationSentAt
}

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusScheduled  JobStatus = "scheduled"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusCompleted  JobStatus = "completed"
)

// Job is the per-leg operational record used by dispatch views and route
// planning. Its status is derived from the order status via JobStatusFor
// and is never set independently.
type Job struct {
	ID             string
	OrderID        string
	Leg            LegType
	Status         JobStatus
	Location       string
	DriverID       string
	PreferredDates []time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Driver is a courier available for route assignment.
type Driver struct {
	ID             string
	Name           string
	Email          string
	Phone          string
	AvailableHours int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

const DefaultDriverHours = 9

// collectionJobStatus maps order status to the collection leg's job status.
var collectionJobStatus = map[OrderStatus]JobStatus{
	StatusScheduled:           JobStatusScheduled,
	StatusCollectionScheduled: JobStatusScheduled,
	StatusDriverToCollection:  JobStatusInProgress,
	StatusCollected:           JobStatusCompleted,
	StatusDriverToDelivery:    JobStatusCompleted,
	StatusDelivered:           JobStatusCompleted,
	StatusShipped:             JobStatusCompleted,
}

// deliveryJobStatus maps order status to the delivery leg's job status.
var deliveryJobStatus = map[OrderStatus]JobStatus{
	StatusDeliveryScheduled: JobStatusScheduled,
	StatusDriverToDelivery:  JobStatusInProgress,
	StatusDelivered:         JobStatusCompleted,
	StatusShipped:           JobStatusCompleted,
}

// JobStatusFor derives the per-leg job status from the order status. The
// second return is false when the status does not move the leg off its
// default, in which case the leg stays pending.
func JobStatusFor(leg LegType, status OrderStatus) (JobStatus, bool) {
	table := collectionJobStatus
	if leg == LegDelivery {
		table = deliveryJobStatus
	}
	mapped, ok := table[status]
	if !ok {
		return JobStatusPending, false
	}
	return mapped, true
}
