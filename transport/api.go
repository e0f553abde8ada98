package transport

import (
	"io"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/pedalfleet/courier-ops/booking"
	"github.com/pedalfleet/courier-ops/core"
	"github.com/pedalfleet/courier-ops/routing"
	"github.com/pedalfleet/courier-ops/webhooks"
)

const apiKeyHeader = "X-API-KEY"

// maxWebhookBody bounds inbound webhook payloads. Shipday events are a
// few KB; anything near this limit is garbage.
const maxWebhookBody = 1 << 20

// API owns the route table. Endpoints under /api require the configured
// key; the webhook endpoint authenticates with the provider token inside
// the processor, and health is open.
type API struct {
	Bookings *booking.Service
	Webhooks *webhooks.Processor
	Planner  *routing.Planner
	Jobs     core.JobStore
	Drivers  core.DriverStore

	// APIKey guards /api routes. Empty disables the check, mirroring
	// unconfigured development environments.
	APIKey string
	Logger core.Logger
}

func NewAPI(bookings *booking.Service, processor *webhooks.Processor, planner *routing.Planner, jobs core.JobStore, drivers core.DriverStore, logger core.Logger) *API {
	return &API{
		Bookings: bookings,
		Webhooks: processor,
		Planner:  planner,
		Jobs:     jobs,
		Drivers:  drivers,
		Logger:   glog.Ensure(logger),
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("POST /webhooks/shipday", a.handleWebhook)

	mux.Handle("POST /api/orders", a.requireKey(a.handlePlaceOrder))
	mux.Handle("GET /api/orders/{id}", a.requireKey(a.handleGetOrder))
	mux.Handle("GET /api/orders/tracking/{trackingNumber}", a.requireKey(a.handleGetOrderByTracking))
	mux.Handle("POST /api/orders/{id}/request-sender-availability", a.requireKey(a.orderAction(actionRequestSender)))
	mux.Handle("POST /api/orders/{id}/confirm-sender-availability", a.requireKey(a.confirmAvailability(core.LegCollection)))
	mux.Handle("POST /api/orders/{id}/request-receiver-availability", a.requireKey(a.orderAction(actionRequestReceiver)))
	mux.Handle("POST /api/orders/{id}/confirm-receiver-availability", a.requireKey(a.confirmAvailability(core.LegDelivery)))
	mux.Handle("POST /api/orders/{id}/submit", a.requireKey(a.orderAction(actionSubmit)))
	mux.Handle("POST /api/orders/{id}/approve", a.requireKey(a.orderAction(actionApprove)))
	mux.Handle("POST /api/orders/{id}/schedule-collection", a.requireKey(a.orderAction(actionScheduleCollection)))
	mux.Handle("POST /api/orders/{id}/schedule-delivery", a.requireKey(a.orderAction(actionScheduleDelivery)))
	mux.Handle("POST /api/orders/{id}/cancel", a.requireKey(a.orderAction(actionCancel)))

	mux.Handle("GET /api/jobs", a.requireKey(a.handleListJobs))
	mux.Handle("POST /api/jobs", a.requireKey(a.handleCreateJob))
	mux.Handle("GET /api/jobs/{id}", a.requireKey(a.handleGetJob))
	mux.Handle("PUT /api/jobs/{id}", a.requireKey(a.handleUpdateJob))
	mux.Handle("DELETE /api/jobs/{id}", a.requireKey(a.handleDeleteJob))

	mux.Handle("GET /api/drivers", a.requireKey(a.handleListDrivers))
	mux.Handle("POST /api/drivers", a.requireKey(a.handleCreateDriver))
	mux.Handle("GET /api/drivers/{id}", a.requireKey(a.handleGetDriver))
	mux.Handle("PUT /api/drivers/{id}", a.requireKey(a.handleUpdateDriver))
	mux.Handle("DELETE /api/drivers/{id}", a.requireKey(a.handleDeleteDriver))

	mux.Handle("POST /api/optimize", a.requireKey(a.handleOptimize))

	return mux
}

func (a *API) requireKey(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.APIKey != "" && r.Header.Get(apiKeyHeader) != a.APIKey {
			a.logger().Info("request rejected", "path", r.URL.Path, "reason", "invalid api key")
			writeError(w, goerrors.New("transport: could not validate api key", goerrors.CategoryAuthz).
				WithCode(http.StatusForbidden).
				WithTextCode(core.CourierErrorUnauthorized))
			return
		}
		next(w, r)
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "healthy"})
}

type webhookResponse struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	OrderID           string `json:"orderId,omitempty"`
	StatusDescription string `json:"statusDescription,omitempty"`
}

func (a *API) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, errInvalidBody(err))
		return
	}

	headers := make(map[string]string, len(r.Header))
	for name := range r.Header {
		headers[name] = r.Header.Get(name)
	}

	result, err := a.Webhooks.Process(r.Context(), core.InboundRequest{
		ProviderID: "shipday",
		Headers:    headers,
		Body:       body,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := result.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	writeJSON(w, status, webhookResponse{
		Success:           true,
		Message:           "webhook processed",
		OrderID:           result.OrderID,
		StatusDescription: result.StatusDescription,
	})
}

func (a *API) logger() core.Logger {
	if a != nil && a.Logger != nil {
		return a.Logger
	}
	return glog.Nop()
}

func pathID(r *http.Request) string {
	return strings.TrimSpace(r.PathValue("id"))
}
