package courierops

import (
	"fmt"
	"net/http"

	glog "github.com/goliatone/go-logger/glog"

	"github.com/pedalfleet/courier-ops/booking"
	"github.com/pedalfleet/courier-ops/core"
	"github.com/pedalfleet/courier-ops/notify"
	"github.com/pedalfleet/courier-ops/routing"
	"github.com/pedalfleet/courier-ops/shipday"
	sqlstore "github.com/pedalfleet/courier-ops/store/sql"
	"github.com/pedalfleet/courier-ops/transport"
	"github.com/pedalfleet/courier-ops/webhooks"
)

// App wires the stores, services, and HTTP surface into one unit. Optional
// collaborators (notifier, travel-time matrix, delivery ledger) default to
// safe local implementations so tests and development need no brokers or
// external APIs.
type App struct {
	config    core.Config
	bookings  *booking.Service
	processor *webhooks.Processor
	planner   *routing.Planner
	api       *transport.API
	stores    *sqlstore.RepositoryFactory
}

type AppOption func(*appOptions)

type appOptions struct {
	notifier core.Notifier
	matrix   routing.TravelTimeMatrix
	ledger   webhooks.DeliveryLedger
	logger   core.Logger
}

// WithNotifier routes confirmation messages through the given notifier
// instead of the in-memory default.
func WithNotifier(notifier core.Notifier) AppOption {
	return func(options *appOptions) {
		options.notifier = notifier
	}
}

// WithTravelTimeMatrix swaps the route planner's travel-time provider.
func WithTravelTimeMatrix(matrix routing.TravelTimeMatrix) AppOption {
	return func(options *appOptions) {
		options.matrix = matrix
	}
}

// WithDeliveryLedger enables claim-based webhook deduplication through the
// given ledger.
func WithDeliveryLedger(ledger webhooks.DeliveryLedger) AppOption {
	return func(options *appOptions) {
		options.ledger = ledger
	}
}

func WithLogger(logger core.Logger) AppOption {
	return func(options *appOptions) {
		options.logger = logger
	}
}

func NewApp(cfg core.Config, stores *sqlstore.RepositoryFactory, opts ...AppOption) (*App, error) {
	if stores == nil {
		return nil, fmt.Errorf("courierops: store factory is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := appOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&options)
	}

	logger := glog.Ensure(options.logger)
	notifier := options.notifier
	if notifier == nil {
		notifier = notify.NewMemoryNotifier()
	}

	orders := stores.OrderStore()
	jobs := stores.JobStore()
	drivers := stores.DriverStore()

	renderer := notify.ConfirmationTemplates{ServiceName: cfg.ServiceName}
	sideEffects := webhooks.NewSideEffectDispatcher(orders, jobs, notifier, renderer, logger)

	processor := webhooks.NewProcessor(
		shipday.NewTokenVerifier(cfg.Webhook),
		shipday.Normalize,
		webhooks.NewOrderResolver(orders, logger),
		orders,
		sideEffects,
		logger,
	)
	processor.ExtractID = shipday.ExtractDeliveryID
	if options.ledger != nil {
		processor.Ledger = options.ledger
	}

	bookings := booking.NewService(orders, jobs, logger)
	planner := routing.NewPlanner(options.matrix, cfg.Routing.Depot, logger)

	api := transport.NewAPI(bookings, processor, planner, jobs, drivers, logger)
	api.APIKey = cfg.HTTP.APIKey

	return &App{
		config:    cfg,
		bookings:  bookings,
		processor: processor,
		planner:   planner,
		api:       api,
		stores:    stores,
	}, nil
}

func (a *App) Config() core.Config {
	if a == nil {
		return core.Config{}
	}
	return a.config
}

func (a *App) Bookings() *booking.Service {
	if a == nil {
		return nil
	}
	return a.bookings
}

func (a *App) Processor() *webhooks.Processor {
	if a == nil {
		return nil
	}
	return a.processor
}

func (a *App) Planner() *routing.Planner {
	if a == nil {
		return nil
	}
	return a.planner
}

func (a *App) Stores() *sqlstore.RepositoryFactory {
	if a == nil {
		return nil
	}
	return a.stores
}

// Handler returns the full HTTP route table.
func (a *App) Handler() http.Handler {
	if a == nil || a.api == nil {
		return http.NotFoundHandler()
	}
	return a.api.Handler()
}
