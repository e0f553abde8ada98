package sqlstore_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"testing"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	"github.com/pedalfleet/courier-ops/core"
	couriermigrations "github.com/pedalfleet/courier-ops/migrations"
	sqlstore "github.com/pedalfleet/courier-ops/store/sql"
	"github.com/pedalfleet/courier-ops/webhooks"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "courier-ops-tests"
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	for _, table := range []string{"courier_orders", "courier_jobs", "courier_drivers", "courier_webhook_deliveries"} {
		var tableName string
		if err := client.DB().NewRaw(
			"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
			table,
		).Scan(context.Background(), &tableName); err != nil {
			t.Fatalf("query sqlite master for %s: %v", table, err)
		}
		if tableName != table {
			t.Fatalf("expected %s table, got %q", table, tableName)
		}
	}
}

func TestOrderStore_LifecycleRoundtrip(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	orders := factory.OrderStore()

	created, err := orders.Create(ctx, core.Order{
		TrackingNumber: "TRK100",
		Status:         core.StatusCollectionScheduled,
		Sender:         core.Contact{Name: "Sam Sender", Email: "sam@example.com"},
		Receiver:       core.Contact{Name: "Rae Receiver", Email: "rae@example.com"},
		Bike:           "Road bike",
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated order id")
	}

	byTracking, err := orders.GetByTrackingNumber(ctx, "TRK100")
	if err != nil {
		t.Fatalf("get by tracking number: %v", err)
	}
	if byTracking.ID != created.ID {
		t.Fatalf("tracking lookup returned wrong order %q", byTracking.ID)
	}

	if err := orders.BindProviderLegID(ctx, created.ID, core.LegCollection, "9001"); err != nil {
		t.Fatalf("bind provider leg id: %v", err)
	}
	// A second bind for the same leg must not overwrite the first.
	if err := orders.BindProviderLegID(ctx, created.ID, core.LegCollection, "9999"); err != nil {
		t.Fatalf("rebind provider leg id: %v", err)
	}
	byLeg, err := orders.GetByProviderLegID(ctx, core.LegCollection, "9001")
	if err != nil {
		t.Fatalf("get by provider leg id: %v", err)
	}
	if byLeg.ID != created.ID || byLeg.ProviderPickupID != "9001" {
		t.Fatalf("unexpected leg lookup result %+v", byLeg)
	}

	if err := orders.SetDriverName(ctx, created.ID, core.LegCollection, "Ada"); err != nil {
		t.Fatalf("set driver name: %v", err)
	}

	updated, err := orders.ApplyTransition(ctx, created.ID, core.TransitionApplication{
		NextStatus: core.StatusCollected,
		Append: &core.TrackingEvent{
			Status:      core.StatusCollected,
			Event:       core.LedgerEventCompleted,
			Leg:         core.LegCollection,
			Description: "Bike collected from sender",
			PODURLs:     []string{"https://cdn.example.com/pod1.jpg"},
		},
		SetCollected: true,
	})
	if err != nil {
		t.Fatalf("apply transition: %v", err)
	}
	if updated.Status != core.StatusCollected || !updated.OrderCollected {
		t.Fatalf("unexpected order after transition %+v", updated)
	}
	if updated.CollectionDriverName != "Ada" {
		t.Fatalf("driver name lost across transition, got %q", updated.CollectionDriverName)
	}
	if updated.Tracking.Len() != 1 {
		t.Fatalf("expected one ledger entry, got %d", updated.Tracking.Len())
	}

	reloaded, err := orders.GetByID(ctx, created.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if reloaded.Tracking.Len() != 1 || !reloaded.Tracking.HasCompletion(core.LegCollection) {
		t.Fatalf("ledger did not round-trip through the database: %+v", reloaded.Tracking)
	}
}

func TestOrderStore_ApplyTransitionMergesProofIntoLedger(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	orders := factory.OrderStore()
	created, err := orders.Create(ctx, core.Order{
		TrackingNumber: "TRK200",
		Status:         core.StatusDriverToDelivery,
		Sender:         core.Contact{Name: "Sam"},
		Receiver:       core.Contact{Name: "Rae"},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	if _, err := orders.ApplyTransition(ctx, created.ID, core.TransitionApplication{
		NextStatus: core.StatusDelivered,
		Append: &core.TrackingEvent{
			Status: core.StatusDelivered,
			Event:  core.LedgerEventCompleted,
			Leg:    core.LegDelivery,
		},
		SetCollected: true,
		SetDelivered: true,
	}); err != nil {
		t.Fatalf("apply completion: %v", err)
	}

	merged, err := orders.ApplyTransition(ctx, created.ID, core.TransitionApplication{
		NextStatus: core.StatusDelivered,
		Merge: &core.ProofMerge{
			Leg:          core.LegDelivery,
			PODURLs:      []string{"https://cdn.example.com/pod2.jpg"},
			SignatureURL: "https://cdn.example.com/sig.png",
		},
	})
	if err != nil {
		t.Fatalf("apply proof merge: %v", err)
	}
	if merged.Tracking.Len() != 1 {
		t.Fatalf("merge must not append, got %d entries", merged.Tracking.Len())
	}
	entry := merged.Tracking.Updates[0]
	if len(entry.PODURLs) != 1 || entry.SignatureURL == "" {
		t.Fatalf("proof did not merge: %+v", entry)
	}
}

func TestOrderStore_MarkConfirmationSentClaimsOnce(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	orders := factory.OrderStore()
	created, err := orders.Create(ctx, core.Order{
		TrackingNumber: "TRK300",
		Status:         core.StatusCollected,
		Sender:         core.Contact{Name: "Sam"},
		Receiver:       core.Contact{Name: "Rae"},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	claimed, err := orders.MarkConfirmationSent(ctx, created.ID, core.LegCollection, time.Now().UTC())
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if !claimed {
		t.Fatalf("expected first claim to win")
	}

	claimed, err = orders.MarkConfirmationSent(ctx, created.ID, core.LegCollection, time.Now().UTC())
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed {
		t.Fatalf("second claim must lose")
	}

	// The delivery leg's column is independent.
	claimed, err = orders.MarkConfirmationSent(ctx, created.ID, core.LegDelivery, time.Now().UTC())
	if err != nil {
		t.Fatalf("delivery claim: %v", err)
	}
	if !claimed {
		t.Fatalf("expected delivery claim to win")
	}
}

func TestOrderStore_NotFoundSentinel(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	_, err := factory.OrderStore().GetByTrackingNumber(ctx, "TRK404")
	if !errors.Is(err, core.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	_, err = factory.OrderStore().GetByProviderLegID(ctx, core.LegDelivery, "0")
	if !errors.Is(err, core.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestJobStore_SetStatusTargetsOrderLeg(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	orders := factory.OrderStore()
	jobs := factory.JobStore()

	order, err := orders.Create(ctx, core.Order{
		TrackingNumber: "TRK400",
		Status:         core.StatusScheduled,
		Sender:         core.Contact{Name: "Sam"},
		Receiver:       core.Contact{Name: "Rae"},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}

	collection, err := jobs.Create(ctx, core.Job{
		OrderID:  order.ID,
		Leg:      core.LegCollection,
		Status:   core.JobStatusScheduled,
		Location: "12 High Street, Birmingham",
	})
	if err != nil {
		t.Fatalf("create collection job: %v", err)
	}
	if _, err := jobs.Create(ctx, core.Job{
		OrderID:  order.ID,
		Leg:      core.LegDelivery,
		Status:   core.JobStatusScheduled,
		Location: "3 Mill Lane, Leeds",
	}); err != nil {
		t.Fatalf("create delivery job: %v", err)
	}

	if err := jobs.SetStatus(ctx, order.ID, core.LegCollection, core.JobStatusCompleted); err != nil {
		t.Fatalf("set status: %v", err)
	}
	updated, err := jobs.Get(ctx, collection.ID)
	if err != nil {
		t.Fatalf("get job: %v", err)
	}
	if updated.Status != core.JobStatusCompleted {
		t.Fatalf("expected completed, got %q", updated.Status)
	}

	listed, err := jobs.ListByOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("list by order: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected two jobs, got %d", len(listed))
	}
	for _, job := range listed {
		if job.Leg == core.LegDelivery && job.Status != core.JobStatusScheduled {
			t.Fatalf("delivery leg must be untouched, got %q", job.Status)
		}
	}

	// No job rows for the order is not an error.
	if err := jobs.SetStatus(ctx, "ord_without_jobs", core.LegCollection, core.JobStatusCompleted); err != nil {
		t.Fatalf("set status without rows: %v", err)
	}
}

func TestDriverStore_CRUD(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	drivers := factory.DriverStore()

	created, err := drivers.Create(ctx, core.Driver{Name: "Ada", Email: "ada@example.com"})
	if err != nil {
		t.Fatalf("create driver: %v", err)
	}
	if created.AvailableHours != core.DefaultDriverHours {
		t.Fatalf("expected default hours %d, got %d", core.DefaultDriverHours, created.AvailableHours)
	}

	created.AvailableHours = 6
	updated, err := drivers.Update(ctx, created)
	if err != nil {
		t.Fatalf("update driver: %v", err)
	}
	if updated.AvailableHours != 6 {
		t.Fatalf("expected 6 hours, got %d", updated.AvailableHours)
	}

	listed, err := drivers.List(ctx)
	if err != nil {
		t.Fatalf("list drivers: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("expected one driver, got %d", len(listed))
	}

	if err := drivers.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete driver: %v", err)
	}
	if _, err := drivers.Get(ctx, created.ID); !errors.Is(err, core.ErrDriverNotFound) {
		t.Fatalf("expected ErrDriverNotFound, got %v", err)
	}
}

func TestWebhookDeliveryStore_ClaimLifecycle(t *testing.T) {
	ctx := context.Background()
	factory, cleanup := newFactory(t)
	defer cleanup()

	ledger := factory.WebhookDeliveryStore()

	record, claimed, err := ledger.Claim(ctx, "shipday", "dl_1", []byte(`{}`), time.Minute)
	if err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if !claimed || record.ClaimID == "" {
		t.Fatalf("expected winning claim, got %+v", record)
	}

	// A live claim blocks duplicates.
	_, claimed, err = ledger.Claim(ctx, "shipday", "dl_1", []byte(`{}`), time.Minute)
	if err != nil {
		t.Fatalf("duplicate claim: %v", err)
	}
	if claimed {
		t.Fatalf("duplicate claim must lose while the lease is live")
	}

	// Failing the claim opens the row for the provider's retry.
	if err := ledger.Fail(ctx, record.ClaimID, fmt.Errorf("database unavailable"), time.Now().UTC().Add(-time.Second)); err != nil {
		t.Fatalf("fail claim: %v", err)
	}
	retry, claimed, err := ledger.Claim(ctx, "shipday", "dl_1", []byte(`{}`), time.Minute)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if !claimed {
		t.Fatalf("expected reclaim after failure")
	}
	if retry.Attempts != 2 {
		t.Fatalf("expected second attempt, got %d", retry.Attempts)
	}

	// Completion is terminal.
	if err := ledger.Complete(ctx, retry.ClaimID); err != nil {
		t.Fatalf("complete claim: %v", err)
	}
	final, claimed, err := ledger.Claim(ctx, "shipday", "dl_1", []byte(`{}`), time.Minute)
	if err != nil {
		t.Fatalf("post-completion claim: %v", err)
	}
	if claimed {
		t.Fatalf("processed delivery must not be reclaimed")
	}
	if final.Status != webhooks.DeliveryStatusProcessed {
		t.Fatalf("expected processed status, got %q", final.Status)
	}
}

func newFactory(t *testing.T) (*sqlstore.RepositoryFactory, func()) {
	t.Helper()
	client, cleanup := newSQLiteClient(t)
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		cleanup()
		t.Fatalf("new repository factory: %v", err)
	}
	return factory, cleanup
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:courier-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	_, err = couriermigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != couriermigrations.DialectSQLite {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, couriermigrations.WithValidationTargets(couriermigrations.DialectSQLite))
	if err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}
