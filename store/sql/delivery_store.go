package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/pedalfleet/courier-ops/webhooks"
)

// WebhookDeliveryStore is the shared-database delivery ledger. The claim
// column makes Claim/Complete/Fail safe across processes: each claim gets
// a fresh id and the completion updates are keyed on it, so a stale
// worker can never complete a claim it lost.
type WebhookDeliveryStore struct {
	db *bun.DB
}

func NewWebhookDeliveryStore(db *bun.DB) (*WebhookDeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &WebhookDeliveryStore{db: db}, nil
}

func (s *WebhookDeliveryStore) Claim(
	ctx context.Context,
	providerID string,
	deliveryID string,
	payload []byte,
	lease time.Duration,
) (webhooks.DeliveryRecord, bool, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	providerID = strings.TrimSpace(providerID)
	deliveryID = strings.TrimSpace(deliveryID)
	if providerID == "" || deliveryID == "" {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: provider id and delivery id are required")
	}
	if lease <= 0 {
		lease = 30 * time.Second
	}
	now := time.Now().UTC()
	leaseExpiresAt := now.Add(lease)
	claimID := uuid.NewString()

	record := &webhookDeliveryRecord{
		ID:             uuid.NewString(),
		ClaimID:        claimID,
		ProviderID:     providerID,
		DeliveryID:     deliveryID,
		Status:         webhooks.DeliveryStatusPending,
		Attempts:       1,
		LeaseExpiresAt: &leaseExpiresAt,
		Payload:        append([]byte(nil), payload...),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if !isUniqueViolation(err) {
			return webhooks.DeliveryRecord{}, false, err
		}
		return s.reclaim(ctx, providerID, deliveryID, claimID, now, leaseExpiresAt)
	}
	return webhookDeliveryToDomain(record), true, nil
}

// reclaim takes over an existing row when its previous claim is no longer
// live: a retry_ready row whose backoff elapsed, or a pending row whose
// lease expired. A processed or dead row is never reclaimed.
func (s *WebhookDeliveryStore) reclaim(
	ctx context.Context,
	providerID string,
	deliveryID string,
	claimID string,
	now time.Time,
	leaseExpiresAt time.Time,
) (webhooks.DeliveryRecord, bool, error) {
	res, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("claim_id = ?", claimID).
		Set("status = ?", webhooks.DeliveryStatusPending).
		Set("attempts = attempts + 1").
		Set("next_attempt_at = NULL").
		Set("lease_expires_at = ?", leaseExpiresAt).
		Set("updated_at = ?", now).
		Where("provider_id = ?", providerID).
		Where("delivery_id = ?", deliveryID).
		Where(
			"((status = ? AND (next_attempt_at IS NULL OR next_attempt_at <= ?)) OR (status = ? AND lease_expires_at <= ?))",
			webhooks.DeliveryStatusRetryReady, now,
			webhooks.DeliveryStatusPending, now,
		).
		Exec(ctx)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}

	existing, err := s.Get(ctx, providerID, deliveryID)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	return existing, affected == 1, nil
}

func (s *WebhookDeliveryStore) Get(ctx context.Context, providerID, deliveryID string) (webhooks.DeliveryRecord, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	record := &webhookDeliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.provider_id = ?", strings.TrimSpace(providerID)).
		Where("?TableAlias.delivery_id = ?", strings.TrimSpace(deliveryID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return webhooks.DeliveryRecord{}, fmt.Errorf(
				"sqlstore: webhook delivery not found for provider %q delivery %q",
				providerID,
				deliveryID,
			)
		}
		return webhooks.DeliveryRecord{}, err
	}
	return webhookDeliveryToDomain(record), nil
}

func (s *WebhookDeliveryStore) Complete(ctx context.Context, claimID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	_, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusProcessed).
		Set("next_attempt_at = NULL").
		Set("updated_at = ?", time.Now().UTC()).
		Where("claim_id = ?", strings.TrimSpace(claimID)).
		Exec(ctx)
	return err
}

func (s *WebhookDeliveryStore) Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}
	if nextAttemptAt.IsZero() {
		nextAttemptAt = time.Now().UTC()
	}
	_, err := s.db.NewUpdate().
		Model((*webhookDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusRetryReady).
		Set("next_attempt_at = ?", nextAttemptAt.UTC()).
		Set("last_error = ?", lastError).
		Set("updated_at = ?", time.Now().UTC()).
		Where("claim_id = ?", strings.TrimSpace(claimID)).
		Exec(ctx)
	return err
}

func webhookDeliveryToDomain(record *webhookDeliveryRecord) webhooks.DeliveryRecord {
	if record == nil {
		return webhooks.DeliveryRecord{}
	}
	result := webhooks.DeliveryRecord{
		ID:         record.ID,
		ClaimID:    record.ClaimID,
		ProviderID: record.ProviderID,
		DeliveryID: record.DeliveryID,
		Status:     record.Status,
		Attempts:   record.Attempts,
		CreatedAt:  record.CreatedAt,
		UpdatedAt:  record.UpdatedAt,
	}
	if record.NextAttemptAt != nil {
		value := *record.NextAttemptAt
		result.NextAttemptAt = &value
	}
	return result
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
