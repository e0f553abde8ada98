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

type DriverStore struct {
	db   *bun.DB
	repo repository.Repository[*driverRecord]
}

func NewDriverStore(db *bun.DB) (*DriverStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*driverRecord](db, driverHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid driver repository wiring: %w", err)
		}
	}
	return &DriverStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *DriverStore) Create(ctx context.Context, driver core.Driver) (core.Driver, error) {
	if s == nil || s.db == nil {
		return core.Driver{}, fmt.Errorf("sqlstore: driver store is not configured")
	}
	driver.Name = strings.TrimSpace(driver.Name)
	if driver.Name == "" {
		return core.Driver{}, fmt.Errorf("sqlstore: driver name is required")
	}
	if strings.TrimSpace(driver.ID) == "" {
		driver.ID = uuid.NewString()
	}
	if driver.AvailableHours <= 0 {
		driver.AvailableHours = core.DefaultDriverHours
	}

	record := newDriverRecord(driver, time.Now().UTC())
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.Driver{}, err
	}
	return record.toDomain(), nil
}

func (s *DriverStore) Get(ctx context.Context, id string) (core.Driver, error) {
	if s == nil || s.db == nil {
		return core.Driver{}, fmt.Errorf("sqlstore: driver store is not configured")
	}
	record := &driverRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Driver{}, fmt.Errorf("sqlstore: driver %q: %w", id, core.ErrDriverNotFound)
		}
		return core.Driver{}, err
	}
	return record.toDomain(), nil
}

func (s *DriverStore) List(ctx context.Context) ([]core.Driver, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: driver store is not configured")
	}
	var records []*driverRecord
	err := s.db.NewSelect().
		Model(&records).
		Order("name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Driver, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (s *DriverStore) Update(ctx context.Context, driver core.Driver) (core.Driver, error) {
	if s == nil || s.db == nil {
		return core.Driver{}, fmt.Errorf("sqlstore: driver store is not configured")
	}
	driverID := strings.TrimSpace(driver.ID)
	if driverID == "" {
		return core.Driver{}, fmt.Errorf("sqlstore: driver id is required")
	}
	current, err := s.Get(ctx, driverID)
	if err != nil {
		return core.Driver{}, err
	}
	driver.CreatedAt = current.CreatedAt
	if driver.AvailableHours <= 0 {
		driver.AvailableHours = current.AvailableHours
	}

	record := newDriverRecord(driver, time.Now().UTC())
	record.CreatedAt = current.CreatedAt
	if _, err := s.db.NewUpdate().Model(record).WherePK().Exec(ctx); err != nil {
		return core.Driver{}, err
	}
	return record.toDomain(), nil
}

func (s *DriverStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: driver store is not configured")
	}
	res, err := s.db.NewDelete().
		Model((*driverRecord)(nil)).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("sqlstore: driver %q: %w", id, core.ErrDriverNotFound)
	}
	return nil
}
