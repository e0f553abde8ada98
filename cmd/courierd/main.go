package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	courierops "github.com/pedalfleet/courier-ops"
	"github.com/pedalfleet/courier-ops/core"
	couriermigrations "github.com/pedalfleet/courier-ops/migrations"
	"github.com/pedalfleet/courier-ops/notify"
	"github.com/pedalfleet/courier-ops/routing"
	sqlstore "github.com/pedalfleet/courier-ops/store/sql"
	"github.com/pedalfleet/courier-ops/transport"
)

func main() {
	port := flag.Int("port", 0, "http listen port")
	apiKey := flag.String("api-key", "", "api key required on /api routes")
	driver := flag.String("db-driver", "", "database driver: postgres | sqlite3")
	dsn := flag.String("db-dsn", "", "database connection string")
	webhookToken := flag.String("webhook-token", "", "shared secret the dispatch provider sends")
	amqpURL := flag.String("amqp-url", "", "amqp broker url for notifications (empty keeps them in memory)")
	depot := flag.String("depot", "", "route planning depot address")
	flag.Parse()

	_, logger := glog.Resolve("courierd", nil, nil)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(ctx, flagOverrides(*port, *apiKey, *driver, *dsn, *webhookToken, *amqpURL, *depot))
	if err != nil {
		logger.Error("configuration failed", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("courierd exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg core.Config, logger core.Logger) error {
	client, err := openDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer client.Close()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		return err
	}

	options := []courierops.AppOption{
		courierops.WithLogger(logger),
		courierops.WithDeliveryLedger(factory.WebhookDeliveryStore()),
	}

	if strings.TrimSpace(cfg.AMQP.URL) != "" {
		notifier, err := notify.DialAMQP(cfg.AMQP.URL, cfg.AMQP.Exchange)
		if err != nil {
			return fmt.Errorf("courierd: amqp connect: %w", err)
		}
		defer notifier.Close()
		options = append(options, courierops.WithNotifier(notifier))
		logger.Info("amqp notifier connected", "exchange", cfg.AMQP.Exchange)
	} else {
		logger.Info("amqp url not set, confirmations stay in memory")
	}

	if key := strings.TrimSpace(cfg.Routing.GoogleMapsAPIKey); key != "" {
		options = append(options, courierops.WithTravelTimeMatrix(routing.NewGoogleMatrix(key)))
	} else {
		logger.Info("google maps key not set, using estimated travel times")
	}

	app, err := courierops.NewApp(cfg, factory, options...)
	if err != nil {
		return err
	}

	server := transport.NewServer(cfg.HTTP.Port, app.Handler(), logger)
	return server.Run(ctx)
}

func openDatabase(ctx context.Context, cfg core.DatabaseConfig) (*persistence.Client, error) {
	driver := strings.TrimSpace(cfg.Driver)
	var dialect schema.Dialect
	switch driver {
	case "postgres":
		dialect = pgdialect.New()
	case "sqlite3":
		dialect = sqlitedialect.New()
	default:
		return nil, fmt.Errorf("courierd: unsupported database driver %q", driver)
	}

	sqlDB, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("courierd: open database: %w", err)
	}
	if driver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
	}

	client, err := persistence.New(persistenceConfig{cfg: cfg}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("courierd: persistence client: %w", err)
	}

	target := couriermigrations.DialectPostgres
	if driver == "sqlite3" {
		target = couriermigrations.DialectSQLite
	}
	_, err = couriermigrations.Register(ctx, func(_ context.Context, dialect string, _ string, fsys fs.FS) error {
		if dialect != target {
			return nil
		}
		client.RegisterSQLMigrations(fsys)
		return nil
	}, couriermigrations.WithValidationTargets(target))
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("courierd: register migrations: %w", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("courierd: migrate: %w", err)
	}
	return client, nil
}

type persistenceConfig struct {
	cfg core.DatabaseConfig
}

func (p persistenceConfig) GetDebug() bool { return p.cfg.Debug }

func (p persistenceConfig) GetDriver() string { return p.cfg.Driver }

func (p persistenceConfig) GetServer() string { return p.cfg.DSN }

func (p persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }

func (p persistenceConfig) GetOtelIdentifier() string { return "courier-ops" }

// loadConfig layers defaults < environment < flags into one validated
// configuration. Flags win.
func loadConfig(ctx context.Context, flags map[string]any) (core.Config, error) {
	raw := envValues()
	mergeNested(raw, flags)

	provider := core.NewCfgxConfigProvider(core.StaticRawConfigLoader{Values: raw})
	return provider.Load(ctx, core.DefaultConfig())
}

func flagOverrides(port int, apiKey, driver, dsn, webhookToken, amqpURL, depot string) map[string]any {
	values := map[string]any{}
	if port > 0 {
		putNested(values, port, "http", "port")
	}
	if apiKey != "" {
		putNested(values, apiKey, "http", "api_key")
	}
	if driver != "" {
		putNested(values, driver, "database", "driver")
	}
	if dsn != "" {
		putNested(values, dsn, "database", "dsn")
	}
	if webhookToken != "" {
		putNested(values, webhookToken, "webhook", "token")
	}
	if amqpURL != "" {
		putNested(values, amqpURL, "amqp", "url")
	}
	if depot != "" {
		putNested(values, depot, "routing", "depot")
	}
	return values
}

func mergeNested(dst, src map[string]any) {
	for key, value := range src {
		if nested, ok := value.(map[string]any); ok {
			existing, ok := dst[key].(map[string]any)
			if !ok {
				existing = map[string]any{}
				dst[key] = existing
			}
			mergeNested(existing, nested)
			continue
		}
		dst[key] = value
	}
}

// envValues maps COURIER_* environment variables onto the raw config tree.
func envValues() map[string]any {
	values := map[string]any{}

	setString := func(envKey string, path ...string) {
		if value := strings.TrimSpace(os.Getenv(envKey)); value != "" {
			putNested(values, value, path...)
		}
	}
	setInt := func(envKey string, path ...string) {
		raw := strings.TrimSpace(os.Getenv(envKey))
		if raw == "" {
			return
		}
		if parsed, err := strconv.Atoi(raw); err == nil {
			putNested(values, parsed, path...)
		}
	}
	setBool := func(envKey string, path ...string) {
		raw := strings.TrimSpace(os.Getenv(envKey))
		if raw == "" {
			return
		}
		if parsed, err := strconv.ParseBool(raw); err == nil {
			putNested(values, parsed, path...)
		}
	}

	setString("COURIER_SERVICE_NAME", "service_name")
	setInt("COURIER_HTTP_PORT", "http", "port")
	setString("COURIER_API_KEY", "http", "api_key")
	setString("COURIER_DB_DRIVER", "database", "driver")
	setString("COURIER_DB_DSN", "database", "dsn")
	setBool("COURIER_DB_DEBUG", "database", "debug")
	setString("COURIER_WEBHOOK_TOKEN", "webhook", "token")
	setBool("COURIER_WEBHOOK_REQUIRE_TOKEN", "webhook", "require_token")
	setString("COURIER_AMQP_URL", "amqp", "url")
	setString("COURIER_AMQP_EXCHANGE", "amqp", "exchange")
	setString("COURIER_DEPOT", "routing", "depot")
	setString("COURIER_GOOGLE_MAPS_API_KEY", "routing", "google_maps_api_key")

	return values
}

func putNested(values map[string]any, value any, path ...string) {
	current := values
	for i, key := range path {
		if i == len(path)-1 {
			current[key] = value
			return
		}
		next, ok := current[key].(map[string]any)
		if !ok {
			next = map[string]any{}
			current[key] = next
		}
		current = next
	}
}
