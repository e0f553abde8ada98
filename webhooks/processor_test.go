package webhooks

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/pedalfleet/courier-ops/core"
	"github.com/pedalfleet/courier-ops/shipday"
)

func TestProcessor_OnTheWayMovesCollectionLeg(t *testing.T) {
	store := newMemOrderStore(core.Order{
		ID:               "ord_1",
		TrackingNumber:   "TRK100",
		Status:           core.StatusCollectionScheduled,
		ProviderPickupID: "9001",
	})
	processor := newTestProcessor(store, nil, nil)

	result, err := processor.Process(context.Background(), shipdayRequest(`{
		"event": "ORDER_ONTHEWAY",
		"order": {"id": 9001, "order_number": "TRK100-PICKUP"},
		"carrier": {"name": "Ada"}
	}`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !result.Accepted || result.StatusCode != http.StatusOK {
		t.Fatalf("expected accepted 200, got %+v", result)
	}

	order := store.mustGet(t, "ord_1")
	if order.Status != core.StatusDriverToCollection {
		t.Fatalf("expected driver_to_collection, got %q", order.Status)
	}
	if order.Tracking.Len() != 1 {
		t.Fatalf("expected one ledger entry, got %d", order.Tracking.Len())
	}
	entry := order.Tracking.Updates[0]
	if entry.Event != core.LedgerEventOnTheWay || entry.Leg != core.LegCollection {
		t.Fatalf("unexpected ledger entry %+v", entry)
	}
	if entry.DriverName != "Ada" {
		t.Fatalf("expected driver name on ledger entry, got %q", entry.DriverName)
	}
}

func TestProcessor_CompletedCollectionSendsConfirmationToSender(t *testing.T) {
	store := newMemOrderStore(core.Order{
		ID:               "ord_1",
		TrackingNumber:   "TRK100",
		Status:           core.StatusDriverToCollection,
		ProviderPickupID: "9001",
		Sender:           core.Contact{Name: "Sam Sender", Email: "sam@example.com"},
		Receiver:         core.Contact{Name: "Rae Receiver", Email: "rae@example.com"},
	})
	jobs := newMemJobStore()
	notifier := &memNotifier{}
	processor := newTestProcessor(store, jobs, notifier)

	_, err := processor.Process(context.Background(), shipdayRequest(`{
		"event": "ORDER_COMPLETED",
		"order": {"id": 9001, "order_number": "TRK100-PICKUP"},
		"pods": ["https://cdn.example.com/pod1.jpg"],
		"signatures": ["https://cdn.example.com/sig.png"]
	}`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	order := store.mustGet(t, "ord_1")
	if order.Status != core.StatusCollected {
		t.Fatalf("expected collected, got %q", order.Status)
	}
	if !order.OrderCollected {
		t.Fatalf("expected order_collected flag")
	}
	if order.CollectionConfirmationSentAt == nil {
		t.Fatalf("expected collection confirmation timestamp")
	}

	if len(notifier.sent) != 1 {
		t.Fatalf("expected one notification, got %d", len(notifier.sent))
	}
	if notifier.sent[0].recipient.Email != "sam@example.com" {
		t.Fatalf("expected confirmation to the sender, got %q", notifier.sent[0].recipient.Email)
	}
	if notifier.sent[0].notification.Kind != core.NotificationCollectionConfirmed {
		t.Fatalf("unexpected notification kind %q", notifier.sent[0].notification.Kind)
	}

	if status := jobs.statusFor("ord_1", core.LegCollection); status != core.JobStatusCompleted {
		t.Fatalf("expected collection job completed, got %q", status)
	}
}

func TestProcessor_ProofUploadAfterCompletionMergesWithoutNewEntry(t *testing.T) {
	order := core.Order{
		ID:               "ord_1",
		TrackingNumber:   "TRK100",
		Status:           core.StatusCollected,
		ProviderPickupID: "9001",
		OrderCollected:   true,
	}
	sentAt := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	order.CollectionConfirmationSentAt = &sentAt
	order.Tracking.Append(core.TrackingEvent{
		Status: core.StatusCollected,
		Event:  core.LedgerEventCompleted,
		Leg:    core.LegCollection,
	})
	store := newMemOrderStore(order)
	notifier := &memNotifier{}
	processor := newTestProcessor(store, nil, notifier)

	_, err := processor.Process(context.Background(), shipdayRequest(`{
		"event": "ORDER_POD_UPLOAD",
		"order": {"id": 9001, "order_number": "TRK100-PICKUP"},
		"pods": ["https://cdn.example.com/pod1.jpg"]
	}`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	updated := store.mustGet(t, "ord_1")
	if updated.Status != core.StatusCollected {
		t.Fatalf("expected status unchanged, got %q", updated.Status)
	}
	if updated.Tracking.Len() != 1 {
		t.Fatalf("expected proof merged into existing entry, got %d entries", updated.Tracking.Len())
	}
	if got := updated.Tracking.Updates[0].PODURLs; len(got) != 1 || got[0] != "https://cdn.example.com/pod1.jpg" {
		t.Fatalf("expected merged proof url, got %v", got)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("expected no duplicate confirmation, got %d", len(notifier.sent))
	}
}

func TestProcessor_ProofUploadWithoutCompletionCompletesDeliveryLeg(t *testing.T) {
	store := newMemOrderStore(core.Order{
		ID:                 "ord_1",
		TrackingNumber:     "TRK100",
		Status:             core.StatusDriverToDelivery,
		ProviderDeliveryID: "9002",
		OrderCollected:     true,
		Receiver:           core.Contact{Name: "Rae Receiver", Email: "rae@example.com"},
	})
	notifier := &memNotifier{}
	processor := newTestProcessor(store, nil, notifier)

	_, err := processor.Process(context.Background(), shipdayRequest(`{
		"event": "ORDER_POD_UPLOAD",
		"order": {"id": 9002, "order_number": "TRK100-DELIVERY"},
		"pods": ["https://cdn.example.com/pod2.jpg"]
	}`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	order := store.mustGet(t, "ord_1")
	if order.Status != core.StatusDelivered {
		t.Fatalf("expected delivered, got %q", order.Status)
	}
	if !order.OrderDelivered {
		t.Fatalf("expected order_delivered flag")
	}
	entry := order.Tracking.Updates[order.Tracking.Len()-1]
	if entry.Event != core.LedgerEventCompleted {
		t.Fatalf("expected synthesized completion entry, got %q", entry.Event)
	}
	if len(entry.PODURLs) != 1 {
		t.Fatalf("expected proof on synthesized completion, got %v", entry.PODURLs)
	}
	if len(notifier.sent) != 1 || notifier.sent[0].recipient.Email != "rae@example.com" {
		t.Fatalf("expected delivery confirmation to receiver, got %+v", notifier.sent)
	}
}

func TestProcessor_RedeliveredCompletionIsIdempotent(t *testing.T) {
	store := newMemOrderStore(core.Order{
		ID:               "ord_1",
		TrackingNumber:   "TRK100",
		Status:           core.StatusDriverToCollection,
		ProviderPickupID: "9001",
		Sender:           core.Contact{Email: "sam@example.com"},
	})
	notifier := &memNotifier{}
	processor := newTestProcessor(store, nil, notifier)

	body := `{
		"event": "ORDER_COMPLETED",
		"order": {"id": 9001, "order_number": "TRK100-PICKUP"},
		"pods": ["https://cdn.example.com/pod1.jpg"]
	}`
	for i := 0; i < 2; i++ {
		if _, err := processor.Process(context.Background(), shipdayRequest(body)); err != nil {
			t.Fatalf("process attempt %d: %v", i+1, err)
		}
	}

	order := store.mustGet(t, "ord_1")
	if order.Status != core.StatusCollected {
		t.Fatalf("expected collected, got %q", order.Status)
	}
	if order.Tracking.Len() != 1 {
		t.Fatalf("expected a single completion entry after redelivery, got %d", order.Tracking.Len())
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected a single confirmation after redelivery, got %d", len(notifier.sent))
	}
}

func TestProcessor_FailedDeliveryKeepsCollectedMilestone(t *testing.T) {
	store := newMemOrderStore(core.Order{
		ID:                 "ord_1",
		TrackingNumber:     "TRK100",
		Status:             core.StatusDriverToDelivery,
		ProviderDeliveryID: "9002",
		OrderCollected:     true,
	})
	processor := newTestProcessor(store, nil, nil)

	_, err := processor.Process(context.Background(), shipdayRequest(`{
		"event": "ORDER_FAILED",
		"order": {"id": 9002, "order_number": "TRK100-DELIVERY"}
	}`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	order := store.mustGet(t, "ord_1")
	if order.Status != core.StatusCollected {
		t.Fatalf("expected collected after failed delivery, got %q", order.Status)
	}
	if !order.OrderCollected {
		t.Fatalf("expected order_collected to survive a failed delivery")
	}
	if order.OrderDelivered {
		t.Fatalf("order_delivered must not be set by a failed delivery")
	}
}

func TestProcessor_AssignmentOnlyUpdatesDriverName(t *testing.T) {
	store := newMemOrderStore(core.Order{
		ID:               "ord_1",
		TrackingNumber:   "TRK100",
		Status:           core.StatusCollectionScheduled,
		ProviderPickupID: "9001",
	})
	processor := newTestProcessor(store, nil, nil)

	_, err := processor.Process(context.Background(), shipdayRequest(`{
		"event": "ORDER_ASSIGNED",
		"order": {"id": 9001, "order_number": "TRK100-PICKUP"},
		"carrier": {"name": "Ada"}
	}`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	order := store.mustGet(t, "ord_1")
	if order.CollectionDriverName != "Ada" {
		t.Fatalf("expected collection driver name, got %q", order.CollectionDriverName)
	}
	if order.Status != core.StatusCollectionScheduled {
		t.Fatalf("expected status unchanged, got %q", order.Status)
	}
	if order.Tracking.Len() != 0 {
		t.Fatalf("expected no ledger entry for assignment, got %d", order.Tracking.Len())
	}
}

func TestProcessor_FallbackLookupBackfillsProviderLegID(t *testing.T) {
	store := newMemOrderStore(core.Order{
		ID:             "ord_1",
		TrackingNumber: "TRK100",
		Status:         core.StatusCollectionScheduled,
	})
	processor := newTestProcessor(store, nil, nil)

	_, err := processor.Process(context.Background(), shipdayRequest(`{
		"event": "ORDER_ONTHEWAY",
		"order": {"id": 9001, "order_number": "TRK100-PICKUP"}
	}`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	order := store.mustGet(t, "ord_1")
	if order.ProviderPickupID != "9001" {
		t.Fatalf("expected backfilled pickup id, got %q", order.ProviderPickupID)
	}
}

func TestProcessor_UnknownOrderReturnsNotFound(t *testing.T) {
	processor := newTestProcessor(newMemOrderStore(), nil, nil)

	_, err := processor.Process(context.Background(), shipdayRequest(`{
		"event": "ORDER_ONTHEWAY",
		"order": {"id": 9001, "order_number": "TRK404-PICKUP"}
	}`))
	if err == nil {
		t.Fatalf("expected not found error")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected rich error, got %T", err)
	}
	if richErr.Code != http.StatusNotFound || richErr.TextCode != core.CourierErrorOrderNotFound {
		t.Fatalf("unexpected error envelope %d %q", richErr.Code, richErr.TextCode)
	}
}

func TestProcessor_MalformedPayloadReturnsBadInput(t *testing.T) {
	processor := newTestProcessor(newMemOrderStore(), nil, nil)

	_, err := processor.Process(context.Background(), shipdayRequest(`{not json`))
	if err == nil {
		t.Fatalf("expected payload error")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected rich error, got %T", err)
	}
	if richErr.Code != http.StatusBadRequest || richErr.TextCode != core.CourierErrorInvalidPayload {
		t.Fatalf("unexpected error envelope %d %q", richErr.Code, richErr.TextCode)
	}
}

func TestProcessor_UpdateFailureReleasesClaimForRetry(t *testing.T) {
	store := newMemOrderStore(core.Order{
		ID:               "ord_1",
		TrackingNumber:   "TRK100",
		Status:           core.StatusDriverToCollection,
		ProviderPickupID: "9001",
	})
	store.failApply = fmt.Errorf("database unavailable")

	ledger := NewMemoryDeliveryLedger()
	processor := newTestProcessor(store, nil, nil)
	processor.Ledger = ledger
	processor.ExtractID = shipday.ExtractDeliveryID

	req := shipdayRequest(`{
		"event": "ORDER_COMPLETED",
		"order": {"id": 9001, "order_number": "TRK100-PICKUP"}
	}`)
	req.Headers["X-Shipday-Delivery-Id"] = "dl_1"

	_, err := processor.Process(context.Background(), req)
	if err == nil {
		t.Fatalf("expected update failure")
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected rich error, got %T", err)
	}
	if richErr.TextCode != core.CourierErrorOrderUpdateFailed {
		t.Fatalf("unexpected text code %q", richErr.TextCode)
	}

	record, err := ledger.Get(context.Background(), shipday.ProviderID, "dl_1")
	if err != nil {
		t.Fatalf("get delivery record: %v", err)
	}
	if record.Status != DeliveryStatusRetryReady {
		t.Fatalf("expected retry_ready claim, got %q", record.Status)
	}
}

func TestProcessor_DeduplicatesByDeliveryID(t *testing.T) {
	store := newMemOrderStore(core.Order{
		ID:               "ord_1",
		TrackingNumber:   "TRK100",
		Status:           core.StatusCollectionScheduled,
		ProviderPickupID: "9001",
	})
	processor := newTestProcessor(store, nil, nil)
	processor.Ledger = NewMemoryDeliveryLedger()
	processor.ExtractID = shipday.ExtractDeliveryID

	req := shipdayRequest(`{
		"event": "ORDER_ONTHEWAY",
		"order": {"id": 9001, "order_number": "TRK100-PICKUP"}
	}`)
	req.Headers["X-Shipday-Delivery-Id"] = "dl_1"

	if _, err := processor.Process(context.Background(), req); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	result, err := processor.Process(context.Background(), req)
	if err != nil {
		t.Fatalf("second delivery: %v", err)
	}
	if deduped, _ := result.Metadata["deduped"].(bool); !deduped {
		t.Fatalf("expected second delivery to dedupe, got %+v", result)
	}
	if store.applyCalls != 1 {
		t.Fatalf("expected one transition application, got %d", store.applyCalls)
	}
}

func TestProcessor_RejectsBadToken(t *testing.T) {
	processor := newTestProcessor(newMemOrderStore(), nil, nil)
	processor.Verifier = shipday.NewTokenVerifier(core.WebhookConfig{
		Token:        "secret",
		RequireToken: true,
	})

	req := shipdayRequest(`{"event": "ORDER_ONTHEWAY", "order": {"order_number": "TRK100-PICKUP"}}`)
	req.Headers[shipday.HeaderToken] = "wrong"

	result, err := processor.Process(context.Background(), req)
	if err == nil {
		t.Fatalf("expected auth error")
	}
	if result.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", result.StatusCode)
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		t.Fatalf("expected rich error, got %T", err)
	}
	if richErr.TextCode != core.CourierErrorUnauthorized {
		t.Fatalf("unexpected text code %q", richErr.TextCode)
	}
}

func TestProcessor_IgnoresUnknownEvents(t *testing.T) {
	store := newMemOrderStore(core.Order{
		ID:               "ord_1",
		TrackingNumber:   "TRK100",
		Status:           core.StatusCollectionScheduled,
		ProviderPickupID: "9001",
	})
	processor := newTestProcessor(store, nil, nil)

	result, err := processor.Process(context.Background(), shipdayRequest(`{
		"event": "ORDER_DELETED",
		"order": {"id": 9001, "order_number": "TRK100-PICKUP"}
	}`))
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if !result.Accepted {
		t.Fatalf("expected ignored event to be acknowledged")
	}
	if store.applyCalls != 0 {
		t.Fatalf("expected no writes for ignored event, got %d", store.applyCalls)
	}
}

func newTestProcessor(store *memOrderStore, jobs *memJobStore, notifier *memNotifier) *Processor {
	var jobStore core.JobStore
	if jobs != nil {
		jobStore = jobs
	}
	var sender core.Notifier
	if notifier != nil {
		sender = notifier
	}
	sideEffects := NewSideEffectDispatcher(store, jobStore, sender, nil, nil)
	return NewProcessor(
		nil,
		shipday.Normalize,
		NewOrderResolver(store, nil),
		store,
		sideEffects,
		nil,
	)
}

func shipdayRequest(body string) core.InboundRequest {
	return core.InboundRequest{
		ProviderID: shipday.ProviderID,
		Headers:    map[string]string{},
		Body:       []byte(body),
	}
}

// memOrderStore is an in-memory core.OrderStore with the same semantics
// the SQL store commits transactionally.
type memOrderStore struct {
	mu         sync.Mutex
	orders     map[string]core.Order
	applyCalls int
	failApply  error
}

func newMemOrderStore(seed ...core.Order) *memOrderStore {
	store := &memOrderStore{orders: map[string]core.Order{}}
	for _, order := range seed {
		store.orders[order.ID] = order
	}
	return store
}

func (s *memOrderStore) mustGet(t *testing.T, id string) core.Order {
	t.Helper()
	order, err := s.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get order %q: %v", id, err)
	}
	return order
}

func (s *memOrderStore) GetByID(_ context.Context, id string) (core.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[id]
	if !ok {
		return core.Order{}, core.ErrOrderNotFound
	}
	return order, nil
}

func (s *memOrderStore) GetByTrackingNumber(_ context.Context, trackingNumber string) (core.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range s.orders {
		if order.TrackingNumber == trackingNumber {
			return order, nil
		}
	}
	return core.Order{}, core.ErrOrderNotFound
}

func (s *memOrderStore) GetByProviderLegID(_ context.Context, leg core.LegType, providerOrderID string) (core.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, order := range s.orders {
		if order.ProviderLegID(leg) == providerOrderID {
			return order, nil
		}
	}
	return core.Order{}, core.ErrOrderNotFound
}

func (s *memOrderStore) Create(_ context.Context, order core.Order) (core.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if order.ID == "" {
		order.ID = fmt.Sprintf("ord_%d", len(s.orders)+1)
	}
	s.orders[order.ID] = order
	return order, nil
}

func (s *memOrderStore) UpdateStatus(_ context.Context, orderID string, status core.OrderStatus) (core.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return core.Order{}, core.ErrOrderNotFound
	}
	order.Status = status
	s.orders[orderID] = order
	return order, nil
}

func (s *memOrderStore) BindProviderLegID(_ context.Context, orderID string, leg core.LegType, providerOrderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return core.ErrOrderNotFound
	}
	if order.ProviderLegID(leg) != "" {
		return nil
	}
	if leg == core.LegDelivery {
		order.ProviderDeliveryID = providerOrderID
	} else {
		order.ProviderPickupID = providerOrderID
	}
	s.orders[orderID] = order
	return nil
}

func (s *memOrderStore) SetDriverName(_ context.Context, orderID string, leg core.LegType, driverName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return core.ErrOrderNotFound
	}
	if leg == core.LegDelivery {
		order.DeliveryDriverName = driverName
	} else {
		order.CollectionDriverName = driverName
	}
	s.orders[orderID] = order
	return nil
}

func (s *memOrderStore) ApplyTransition(_ context.Context, orderID string, apply core.TransitionApplication) (core.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyCalls++
	if s.failApply != nil {
		return core.Order{}, s.failApply
	}
	order, ok := s.orders[orderID]
	if !ok {
		return core.Order{}, core.ErrOrderNotFound
	}
	if apply.Merge != nil {
		order.Tracking.MergeProof(apply.Merge.Leg, apply.Merge.PODURLs, apply.Merge.SignatureURL)
	}
	if apply.Append != nil {
		order.Tracking.Append(*apply.Append)
	}
	order.Status = apply.NextStatus
	if apply.SetCollected {
		order.OrderCollected = true
	}
	if apply.SetDelivered {
		order.OrderDelivered = true
	}
	order.UpdatedAt = time.Now().UTC()
	s.orders[orderID] = order
	return order, nil
}

func (s *memOrderStore) MarkConfirmationSent(_ context.Context, orderID string, leg core.LegType, sentAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order, ok := s.orders[orderID]
	if !ok {
		return false, core.ErrOrderNotFound
	}
	if order.ConfirmationSentAt(leg) != nil {
		return false, nil
	}
	if leg == core.LegDelivery {
		order.DeliveryConfirmationSentAt = &sentAt
	} else {
		order.CollectionConfirmationSentAt = &sentAt
	}
	s.orders[orderID] = order
	return true, nil
}

// memJobStore records SetStatus calls; the CRUD surface is unused by the
// webhook pipeline.
type memJobStore struct {
	mu       sync.Mutex
	statuses map[string]core.JobStatus
}

func newMemJobStore() *memJobStore {
	return &memJobStore{statuses: map[string]core.JobStatus{}}
}

func (s *memJobStore) statusFor(orderID string, leg core.LegType) core.JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.statuses[orderID+"/"+string(leg)]
}

func (s *memJobStore) Create(_ context.Context, job core.Job) (core.Job, error) { return job, nil }

func (s *memJobStore) Get(_ context.Context, _ string) (core.Job, error) {
	return core.Job{}, core.ErrJobNotFound
}

func (s *memJobStore) List(_ context.Context) ([]core.Job, error) { return nil, nil }

func (s *memJobStore) ListByOrder(_ context.Context, _ string) ([]core.Job, error) { return nil, nil }

func (s *memJobStore) Update(_ context.Context, job core.Job) (core.Job, error) { return job, nil }

func (s *memJobStore) Delete(_ context.Context, _ string) error { return nil }

func (s *memJobStore) SetStatus(_ context.Context, orderID string, leg core.LegType, status core.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[orderID+"/"+string(leg)] = status
	return nil
}

type sentNotification struct {
	recipient    core.Contact
	notification core.Notification
}

type memNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
	fail error
}

func (n *memNotifier) Send(_ context.Context, recipient core.Contact, notification core.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail != nil {
		return n.fail
	}
	n.sent = append(n.sent, sentNotification{recipient: recipient, notification: notification})
	return nil
}
