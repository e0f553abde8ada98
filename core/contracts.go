package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

// NormalizedEvent is the canonical form of one inbound dispatch-provider
// webhook, produced by the provider package's normalizer. It is a pure
// function of the payload; nothing here has touched storage yet.
type NormalizedEvent struct {
	Leg             LegType
	Event           EventType
	ProviderOrderID string
	// RawOrderNumber is the provider's order_number including the leg
	// suffix, kept for the fallback lookup.
	RawOrderNumber string
	// TrackingNumber is RawOrderNumber with the leg suffix stripped — the
	// internal tracking number the fallback lookup keys on.
	TrackingNumber string
	// WireLabel is the provider's own event label, recorded in the ledger
	// verbatim for audit.
	WireLabel    string
	OccurredAt   time.Time
	PODURLs      []string
	SignatureURL string
	DriverName   string
}

// InboundRequest carries one raw webhook invocation into the processor.
type InboundRequest struct {
	ProviderID string
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

type InboundResult struct {
	Accepted          bool
	StatusCode        int
	OrderID           string
	StatusDescription string
	Metadata          map[string]any
}

// ProofMerge backfills proof data onto the ledger's existing completed
// entry for a leg.
type ProofMerge struct {
	Leg          LegType
	PODURLs      []string
	SignatureURL string
}

// TransitionApplication is the persisted shape of a computed Transition:
// everything the store must commit in one transactional update.
type TransitionApplication struct {
	NextStatus   OrderStatus
	Append       *TrackingEvent
	Merge        *ProofMerge
	SetCollected bool
	SetDelivered bool
}

type OrderStore interface {
	GetByID(ctx context.Context, id string) (Order, error)
	GetByTrackingNumber(ctx context.Context, trackingNumber string) (Order, error)
	GetByProviderLegID(ctx context.Context, leg LegType, providerOrderID string) (Order, error)
	Create(ctx context.Context, order Order) (Order, error)
	UpdateStatus(ctx context.Context, orderID string, status OrderStatus) (Order, error)
	// BindProviderLegID backfills the provider-side job id for a leg.
	// Idempotent: an already-bound leg is left untouched.
	BindProviderLegID(ctx context.Context, orderID string, leg LegType, providerOrderID string) error
	SetDriverName(ctx context.Context, orderID string, leg LegType, driverName string) error
	// ApplyTransition commits status, ledger, and milestone flags in a
	// single transactional update.
	ApplyTransition(ctx context.Context, orderID string, apply TransitionApplication) (Order, error)
	// MarkConfirmationSent sets the leg's confirmation timestamp and
	// reports whether this call won the claim. A false return means a
	// concurrent duplicate delivery already sent the confirmation.
	MarkConfirmationSent(ctx context.Context, orderID string, leg LegType, sentAt time.Time) (bool, error)
}

type JobStore interface {
	Create(ctx context.Context, job Job) (Job, error)
	Get(ctx context.Context, id string) (Job, error)
	List(ctx context.Context) ([]Job, error)
	ListByOrder(ctx context.Context, orderID string) ([]Job, error)
	Update(ctx context.Context, job Job) (Job, error)
	Delete(ctx context.Context, id string) error
	// SetStatus updates the derived status of the order's leg job, if one
	// exists. Orders placed before scheduling have no job rows yet; that
	// is not an error.
	SetStatus(ctx context.Context, orderID string, leg LegType, status JobStatus) error
}

type DriverStore interface {
	Create(ctx context.Context, driver Driver) (Driver, error)
	Get(ctx context.Context, id string) (Driver, error)
	List(ctx context.Context) ([]Driver, error)
	Update(ctx context.Context, driver Driver) (Driver, error)
	Delete(ctx context.Context, id string) error
}

type NotificationKind string

const (
	NotificationCollectionConfirmed NotificationKind = "collection_confirmed"
	NotificationDeliveryConfirmed   NotificationKind = "delivery_confirmed"
)

type Notification struct {
	Kind           NotificationKind
	OrderID        string
	TrackingNumber string
	Leg            LegType
	Subject        string
	Body           string
	Metadata       map[string]any
}

// Notifier delivers a customer-facing notification. Implementations are
// best-effort collaborators: the webhook pipeline never fails a request
// because a send failed.
type Notifier interface {
	Send(ctx context.Context, recipient Contact, notification Notification) error
}

// StoreProvider exposes the persistence stores to composition code.
type StoreProvider interface {
	OrderStore() OrderStore
	JobStore() JobStore
	DriverStore() DriverStore
}
