package webhooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	DeliveryStatusPending    = "pending"
	DeliveryStatusProcessed  = "processed"
	DeliveryStatusRetryReady = "retry_ready"
	DeliveryStatusDead       = "dead"
)

// DeliveryRecord tracks one provider delivery id through the dedupe
// ledger.
type DeliveryRecord struct {
	ID            string
	ClaimID       string
	ProviderID    string
	DeliveryID    string
	Status        string
	Attempts      int
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DeliveryLedger deduplicates provider deliveries that carry a delivery
// id. Claim returns false when the delivery is already processed or held
// by a live claim; Fail releases the claim for the provider's next retry.
type DeliveryLedger interface {
	Claim(ctx context.Context, providerID, deliveryID string, payload []byte, lease time.Duration) (DeliveryRecord, bool, error)
	Get(ctx context.Context, providerID, deliveryID string) (DeliveryRecord, error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time) error
}

type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialRetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

func (p ExponentialRetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 30 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

type memoryDeliveryEntry struct {
	record         DeliveryRecord
	leaseExpiresAt time.Time
}

// MemoryDeliveryLedger is the single-process ledger used in tests and in
// deployments without a shared database table.
type MemoryDeliveryLedger struct {
	mu      sync.Mutex
	entries map[string]*memoryDeliveryEntry
	claims  map[string]string
	nextID  int
	Now     func() time.Time
}

func NewMemoryDeliveryLedger() *MemoryDeliveryLedger {
	return &MemoryDeliveryLedger{
		entries: map[string]*memoryDeliveryEntry{},
		claims:  map[string]string{},
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (l *MemoryDeliveryLedger) Claim(
	_ context.Context,
	providerID string,
	deliveryID string,
	_ []byte,
	lease time.Duration,
) (DeliveryRecord, bool, error) {
	if l == nil {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: delivery ledger is not configured")
	}
	providerID = strings.TrimSpace(providerID)
	deliveryID = strings.TrimSpace(deliveryID)
	if providerID == "" || deliveryID == "" {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: provider id and delivery id are required")
	}
	if lease <= 0 {
		lease = 30 * time.Second
	}
	now := l.now()
	key := providerID + ":" + deliveryID

	l.mu.Lock()
	defer l.mu.Unlock()
	entry, exists := l.entries[key]
	if !exists {
		claimID := l.nextClaimID()
		record := DeliveryRecord{
			ID:         key,
			ClaimID:    claimID,
			ProviderID: providerID,
			DeliveryID: deliveryID,
			Status:     DeliveryStatusPending,
			Attempts:   1,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		l.entries[key] = &memoryDeliveryEntry{record: record, leaseExpiresAt: now.Add(lease)}
		l.claims[claimID] = key
		return record, true, nil
	}

	switch entry.record.Status {
	case DeliveryStatusProcessed, DeliveryStatusDead:
		return entry.record, false, nil
	case DeliveryStatusPending:
		if now.Before(entry.leaseExpiresAt) {
			return entry.record, false, nil
		}
	case DeliveryStatusRetryReady:
		if entry.record.NextAttemptAt != nil && now.Before(*entry.record.NextAttemptAt) {
			return entry.record, false, nil
		}
	}

	if entry.record.ClaimID != "" {
		delete(l.claims, entry.record.ClaimID)
	}
	claimID := l.nextClaimID()
	entry.record.ClaimID = claimID
	entry.record.Status = DeliveryStatusPending
	entry.record.Attempts++
	entry.record.NextAttemptAt = nil
	entry.record.UpdatedAt = now
	entry.leaseExpiresAt = now.Add(lease)
	l.claims[claimID] = key
	return entry.record, true, nil
}

func (l *MemoryDeliveryLedger) Get(_ context.Context, providerID, deliveryID string) (DeliveryRecord, error) {
	if l == nil {
		return DeliveryRecord{}, fmt.Errorf("webhooks: delivery ledger is not configured")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[strings.TrimSpace(providerID)+":"+strings.TrimSpace(deliveryID)]
	if !ok {
		return DeliveryRecord{}, fmt.Errorf(
			"webhooks: delivery not found for provider %q delivery %q", providerID, deliveryID)
	}
	return entry.record, nil
}

func (l *MemoryDeliveryLedger) Complete(_ context.Context, claimID string) error {
	if l == nil {
		return fmt.Errorf("webhooks: delivery ledger is not configured")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key, ok := l.claims[strings.TrimSpace(claimID)]
	if !ok {
		return nil
	}
	entry := l.entries[key]
	if entry == nil || entry.record.ClaimID != claimID {
		delete(l.claims, claimID)
		return nil
	}
	entry.record.Status = DeliveryStatusProcessed
	entry.record.NextAttemptAt = nil
	entry.record.UpdatedAt = l.now()
	delete(l.claims, claimID)
	return nil
}

func (l *MemoryDeliveryLedger) Fail(_ context.Context, claimID string, _ error, nextAttemptAt time.Time) error {
	if l == nil {
		return fmt.Errorf("webhooks: delivery ledger is not configured")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	key, ok := l.claims[strings.TrimSpace(claimID)]
	if !ok {
		return nil
	}
	entry := l.entries[key]
	if entry == nil || entry.record.ClaimID != claimID {
		delete(l.claims, claimID)
		return nil
	}
	if nextAttemptAt.IsZero() {
		nextAttemptAt = l.now()
	}
	nextAttemptAt = nextAttemptAt.UTC()
	entry.record.Status = DeliveryStatusRetryReady
	entry.record.NextAttemptAt = &nextAttemptAt
	entry.record.UpdatedAt = l.now()
	delete(l.claims, claimID)
	return nil
}

func (l *MemoryDeliveryLedger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

func (l *MemoryDeliveryLedger) nextClaimID() string {
	l.nextID++
	return fmt.Sprintf("claim_%d", l.nextID)
}
