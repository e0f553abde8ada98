package transport

import (
	"net/http"

	"github.com/pedalfleet/courier-ops/booking"
	"github.com/pedalfleet/courier-ops/core"
)

type placeOrderRequest struct {
	TrackingNumber string      `json:"tracking_number,omitempty"`
	Sender         contactView `json:"sender"`
	Receiver       contactView `json:"receiver"`
	Bike           string      `json:"bike,omitempty"`
}

func (a *API) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	order, err := a.Bookings.PlaceOrder(r.Context(), placeOrderInput(req))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newOrderView(order))
}

func placeOrderInput(req placeOrderRequest) booking.PlaceOrderInput {
	return booking.PlaceOrderInput{
		TrackingNumber: req.TrackingNumber,
		Sender:         contactFromView(req.Sender),
		Receiver:       contactFromView(req.Receiver),
		Bike:           req.Bike,
	}
}

func contactFromView(view contactView) core.Contact {
	return core.Contact{
		Name:    view.Name,
		Phone:   view.Phone,
		Email:   view.Email,
		Address: view.Address,
	}
}

func (a *API) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := a.Bookings.Get(r.Context(), pathID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderView(order))
}

func (a *API) handleGetOrderByTracking(w http.ResponseWriter, r *http.Request) {
	order, err := a.Bookings.GetByTrackingNumber(r.Context(), r.PathValue("trackingNumber"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderView(order))
}

type orderActionKind int

const (
	actionRequestSender orderActionKind = iota
	actionRequestReceiver
	actionSubmit
	actionApprove
	actionScheduleCollection
	actionScheduleDelivery
	actionCancel
)

// orderAction adapts the body-less booking operations to one handler
// shape. Confirmations carry dates and get their own handler.
func (a *API) orderAction(kind orderActionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := pathID(r)
		var (
			order core.Order
			err   error
		)
		switch kind {
		case actionRequestSender:
			order, err = a.Bookings.RequestSenderAvailability(r.Context(), orderID)
		case actionRequestReceiver:
			order, err = a.Bookings.RequestReceiverAvailability(r.Context(), orderID)
		case actionSubmit:
			order, err = a.Bookings.SubmitForApproval(r.Context(), orderID)
		case actionApprove:
			order, err = a.Bookings.Approve(r.Context(), orderID)
		case actionScheduleCollection:
			order, err = a.Bookings.ScheduleCollection(r.Context(), orderID)
		case actionScheduleDelivery:
			order, err = a.Bookings.ScheduleDelivery(r.Context(), orderID)
		case actionCancel:
			order, err = a.Bookings.Cancel(r.Context(), orderID)
		}
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newOrderView(order))
	}
}

type confirmAvailabilityRequest struct {
	Dates []string `json:"dates"`
}

func (a *API) confirmAvailability(leg core.LegType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req confirmAvailabilityRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
		dates, err := parseDates(req.Dates)
		if err != nil {
			writeError(w, err)
			return
		}

		confirm := a.Bookings.ConfirmSenderAvailability
		if leg == core.LegDelivery {
			confirm = a.Bookings.ConfirmReceiverAvailability
		}
		order, err := confirm(r.Context(), pathID(r), dates)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newOrderView(order))
	}
}
