package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/pedalfleet/courier-ops/core"
)

// OrderStore persists orders with their embedded tracking ledger. The
// ledger travels as one jsonb column so a transition commits status,
// ledger, and milestone flags in a single row update.
type OrderStore struct {
	db   *bun.DB
	repo repository.Repository[*orderRecord]
}

func NewOrderStore(db *bun.DB) (*OrderStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*orderRecord](db, orderHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid order repository wiring: %w", err)
		}
	}
	return &OrderStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *OrderStore) Create(ctx context.Context, order core.Order) (core.Order, error) {
	if s == nil || s.db == nil {
		return core.Order{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	order.TrackingNumber = strings.TrimSpace(order.TrackingNumber)
	if order.TrackingNumber == "" {
		return core.Order{}, fmt.Errorf("sqlstore: tracking number is required")
	}
	if strings.TrimSpace(order.ID) == "" {
		order.ID = uuid.NewString()
	}
	if strings.TrimSpace(string(order.Status)) == "" {
		order.Status = core.StatusCreated
	}

	record := newOrderRecord(order, time.Now().UTC())
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.Order{}, err
	}
	return record.toDomain(), nil
}

func (s *OrderStore) GetByID(ctx context.Context, id string) (core.Order, error) {
	if s == nil || s.db == nil {
		return core.Order{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	record := &orderRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return core.Order{}, orderScanError(err, id)
	}
	return record.toDomain(), nil
}

func (s *OrderStore) GetByTrackingNumber(ctx context.Context, trackingNumber string) (core.Order, error) {
	if s == nil || s.db == nil {
		return core.Order{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	record := &orderRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.tracking_number = ?", strings.TrimSpace(trackingNumber)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return core.Order{}, orderScanError(err, trackingNumber)
	}
	return record.toDomain(), nil
}

func (s *OrderStore) GetByProviderLegID(ctx context.Context, leg core.LegType, providerOrderID string) (core.Order, error) {
	if s == nil || s.db == nil {
		return core.Order{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	column := "provider_pickup_id"
	if leg == core.LegDelivery {
		column = "provider_delivery_id"
	}
	record := &orderRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias."+column+" = ?", strings.TrimSpace(providerOrderID)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return core.Order{}, orderScanError(err, providerOrderID)
	}
	return record.toDomain(), nil
}

func (s *OrderStore) UpdateStatus(ctx context.Context, orderID string, status core.OrderStatus) (core.Order, error) {
	if s == nil || s.db == nil {
		return core.Order{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	if !status.Valid() {
		return core.Order{}, fmt.Errorf("%w: %q", core.ErrInvalidOrderStatus, status)
	}
	now := time.Now().UTC()
	res, err := s.db.NewUpdate().
		Model((*orderRecord)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", now).
		Where("id = ?", strings.TrimSpace(orderID)).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return core.Order{}, err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return core.Order{}, fmt.Errorf("sqlstore: order %q: %w", orderID, core.ErrOrderNotFound)
	}
	return s.GetByID(ctx, orderID)
}

// BindProviderLegID backfills the provider-side job id for a leg. A leg
// that is already bound keeps its value; the conditional update makes the
// backfill safe under concurrent duplicate deliveries.
func (s *OrderStore) BindProviderLegID(ctx context.Context, orderID string, leg core.LegType, providerOrderID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: order store is not configured")
	}
	column := "provider_pickup_id"
	if leg == core.LegDelivery {
		column = "provider_delivery_id"
	}
	_, err := s.db.NewUpdate().
		Model((*orderRecord)(nil)).
		Set(column+" = ?", strings.TrimSpace(providerOrderID)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", strings.TrimSpace(orderID)).
		Where("("+column+" IS NULL OR "+column+" = '')").
		Exec(ctx)
	return err
}

func (s *OrderStore) SetDriverName(ctx context.Context, orderID string, leg core.LegType, driverName string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: order store is not configured")
	}
	column := "collection_driver_name"
	if leg == core.LegDelivery {
		column = "delivery_driver_name"
	}
	res, err := s.db.NewUpdate().
		Model((*orderRecord)(nil)).
		Set(column+" = ?", strings.TrimSpace(driverName)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", strings.TrimSpace(orderID)).
		Where("deleted_at IS NULL").
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("sqlstore: order %q: %w", orderID, core.ErrOrderNotFound)
	}
	return nil
}

// ApplyTransition re-reads the order inside the transaction, mutates the
// ledger, and writes the full row back, so two racing deliveries fold
// their ledger entries instead of overwriting each other.
func (s *OrderStore) ApplyTransition(ctx context.Context, orderID string, apply core.TransitionApplication) (core.Order, error) {
	if s == nil || s.db == nil {
		return core.Order{}, fmt.Errorf("sqlstore: order store is not configured")
	}
	if !apply.NextStatus.Valid() {
		return core.Order{}, fmt.Errorf("%w: %q", core.ErrInvalidOrderStatus, apply.NextStatus)
	}

	var updated core.Order
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record := &orderRecord{}
		err := tx.NewSelect().
			Model(record).
			Where("?TableAlias.id = ?", strings.TrimSpace(orderID)).
			Limit(1).
			Scan(ctx)
		if err != nil {
			return orderScanError(err, orderID)
		}

		if apply.Merge != nil {
			record.Tracking.MergeProof(apply.Merge.Leg, apply.Merge.PODURLs, apply.Merge.SignatureURL)
		}
		if apply.Append != nil {
			record.Tracking.Append(*apply.Append)
		}
		record.Status = string(apply.NextStatus)
		if apply.SetCollected {
			record.OrderCollected = true
		}
		if apply.SetDelivered {
			record.OrderDelivered = true
		}
		record.UpdatedAt = time.Now().UTC()

		if _, err := tx.NewUpdate().Model(record).WherePK().Exec(ctx); err != nil {
			return err
		}
		updated = record.toDomain()
		return nil
	})
	if err != nil {
		return core.Order{}, err
	}
	return updated, nil
}

// MarkConfirmationSent claims the leg's confirmation column. The claim is
// a conditional update: only the caller that flips NULL to a timestamp
// wins, so concurrent duplicate deliveries send at most one confirmation.
func (s *OrderStore) MarkConfirmationSent(ctx context.Context, orderID string, leg core.LegType, sentAt time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: order store is not configured")
	}
	column := "collection_confirmation_sent_at"
	if leg == core.LegDelivery {
		column = "delivery_confirmation_sent_at"
	}
	res, err := s.db.NewUpdate().
		Model((*orderRecord)(nil)).
		Set(column+" = ?", sentAt.UTC()).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", strings.TrimSpace(orderID)).
		Where(column+" IS NULL").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func orderScanError(err error, key string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("sqlstore: order %q: %w", key, core.ErrOrderNotFound)
	}
	return err
}
