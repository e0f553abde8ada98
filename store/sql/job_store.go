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

type JobStore struct {
	db   *bun.DB
	repo repository.Repository[*jobRecord]
}

func NewJobStore(db *bun.DB) (*JobStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*jobRecord](db, jobHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid job repository wiring: %w", err)
		}
	}
	return &JobStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *JobStore) Create(ctx context.Context, job core.Job) (core.Job, error) {
	if s == nil || s.db == nil {
		return core.Job{}, fmt.Errorf("sqlstore: job store is not configured")
	}
	job.OrderID = strings.TrimSpace(job.OrderID)
	if job.OrderID == "" {
		return core.Job{}, fmt.Errorf("sqlstore: order id is required")
	}
	if job.Leg != core.LegCollection && job.Leg != core.LegDelivery {
		return core.Job{}, fmt.Errorf("%w: %q", core.ErrInvalidLegType, job.Leg)
	}
	if strings.TrimSpace(job.ID) == "" {
		job.ID = uuid.NewString()
	}
	if strings.TrimSpace(string(job.Status)) == "" {
		job.Status = core.JobStatusPending
	}

	record := newJobRecord(job, time.Now().UTC())
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		return core.Job{}, err
	}
	return record.toDomain(), nil
}

func (s *JobStore) Get(ctx context.Context, id string) (core.Job, error) {
	if s == nil || s.db == nil {
		return core.Job{}, fmt.Errorf("sqlstore: job store is not configured")
	}
	record := &jobRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", strings.TrimSpace(id)).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Job{}, fmt.Errorf("sqlstore: job %q: %w", id, core.ErrJobNotFound)
		}
		return core.Job{}, err
	}
	return record.toDomain(), nil
}

func (s *JobStore) List(ctx context.Context) ([]core.Job, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: job store is not configured")
	}
	var records []*jobRecord
	err := s.db.NewSelect().
		Model(&records).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return jobsToDomain(records), nil
}

func (s *JobStore) ListByOrder(ctx context.Context, orderID string) ([]core.Job, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: job store is not configured")
	}
	var records []*jobRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.order_id = ?", strings.TrimSpace(orderID)).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return jobsToDomain(records), nil
}

func (s *JobStore) Update(ctx context.Context, job core.Job) (core.Job, error) {
	if s == nil || s.db == nil {
		return core.Job{}, fmt.Errorf("sqlstore: job store is not configured")
	}
	jobID := strings.TrimSpace(job.ID)
	if jobID == "" {
		return core.Job{}, fmt.Errorf("sqlstore: job id is required")
	}
	current, err := s.Get(ctx, jobID)
	if err != nil {
		return core.Job{}, err
	}
	job.OrderID = current.OrderID
	job.CreatedAt = current.CreatedAt

	record := newJobRecord(job, time.Now().UTC())
	record.CreatedAt = current.CreatedAt
	if _, err := s.db.NewUpdate().Model(record).WherePK().Exec(ctx); err != nil {
		return core.Job{}, err
	}
	return record.toDomain(), nil
}

func (s *JobStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: job store is not configured")
	}
	res, err := s.db.NewDelete().
		Model((*jobRecord)(nil)).
		Where("id = ?", strings.TrimSpace(id)).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("sqlstore: job %q: %w", id, core.ErrJobNotFound)
	}
	return nil
}

// SetStatus pushes the derived status onto the order's leg job. Orders
// placed before scheduling have no job rows yet; zero affected rows is
// not an error.
func (s *JobStore) SetStatus(ctx context.Context, orderID string, leg core.LegType, status core.JobStatus) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: job store is not configured")
	}
	_, err := s.db.NewUpdate().
		Model((*jobRecord)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("order_id = ?", strings.TrimSpace(orderID)).
		Where("leg = ?", string(leg)).
		Where("deleted_at IS NULL").
		Exec(ctx)
	return err
}

func jobsToDomain(records []*jobRecord) []core.Job {
	out := make([]core.Job, 0, len(records))
	for _, record := range records {
		out = append(out, record.toDomain())
	}
	return out
}
