package transport

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/pedalfleet/courier-ops/core"
)

type jobRequest struct {
	OrderID        string   `json:"order_id"`
	Leg            string   `json:"leg"`
	Location       string   `json:"location"`
	DriverID       string   `json:"driver_id,omitempty"`
	PreferredDates []string `json:"preferred_dates,omitempty"`
}

func (a *API) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := a.Jobs.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		views = append(views, newJobView(job))
	}
	writeJSON(w, http.StatusOK, views)
}

func (a *API) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req jobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	dates, err := parseDates(req.PreferredDates)
	if err != nil {
		writeError(w, err)
		return
	}

	job, err := a.Jobs.Create(r.Context(), core.Job{
		OrderID:        req.OrderID,
		Leg:            core.LegType(req.Leg),
		Location:       req.Location,
		DriverID:       req.DriverID,
		PreferredDates: dates,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newJobView(job))
}

func (a *API) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.Get(r.Context(), pathID(r))
	if err != nil {
		writeError(w, registryLookupError(err))
		return
	}
	writeJSON(w, http.StatusOK, newJobView(job))
}

func (a *API) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	job, err := a.Jobs.Get(r.Context(), pathID(r))
	if err != nil {
		writeError(w, registryLookupError(err))
		return
	}

	var req jobRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.OrderID != "" {
		job.OrderID = req.OrderID
	}
	if req.Leg != "" {
		job.Leg = core.LegType(req.Leg)
	}
	if req.Location != "" {
		job.Location = req.Location
	}
	if req.DriverID != "" {
		job.DriverID = req.DriverID
	}
	if len(req.PreferredDates) > 0 {
		dates, err := parseDates(req.PreferredDates)
		if err != nil {
			writeError(w, err)
			return
		}
		job.PreferredDates = dates
	}

	updated, err := a.Jobs.Update(r.Context(), job)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newJobView(updated))
}

func (a *API) handleDeleteJob(w http.ResponseWriter, r *http.Request) {
	if err := a.Jobs.Delete(r.Context(), pathID(r)); err != nil {
		writeError(w, registryLookupError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type driverRequest struct {
	Name           string `json:"name,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	AvailableHours int    `json:"available_hours,omitempty"`
}

func (a *API) handleListDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := a.Drivers.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]driverView, 0, len(drivers))
	for _, driver := range drivers {
		views = append(views, newDriverView(driver))
	}
	writeJSON(w, http.StatusOK, views)
}

func (a *API) handleCreateDriver(w http.ResponseWriter, r *http.Request) {
	var req driverRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	driver, err := a.Drivers.Create(r.Context(), core.Driver{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		AvailableHours: req.AvailableHours,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newDriverView(driver))
}

func (a *API) handleGetDriver(w http.ResponseWriter, r *http.Request) {
	driver, err := a.Drivers.Get(r.Context(), pathID(r))
	if err != nil {
		writeError(w, registryLookupError(err))
		return
	}
	writeJSON(w, http.StatusOK, newDriverView(driver))
}

func (a *API) handleUpdateDriver(w http.ResponseWriter, r *http.Request) {
	driver, err := a.Drivers.Get(r.Context(), pathID(r))
	if err != nil {
		writeError(w, registryLookupError(err))
		return
	}

	var req driverRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Name != "" {
		driver.Name = req.Name
	}
	if req.Email != "" {
		driver.Email = req.Email
	}
	if req.Phone != "" {
		driver.Phone = req.Phone
	}
	if req.AvailableHours > 0 {
		driver.AvailableHours = req.AvailableHours
	}

	updated, err := a.Drivers.Update(r.Context(), driver)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newDriverView(updated))
}

func (a *API) handleDeleteDriver(w http.ResponseWriter, r *http.Request) {
	if err := a.Drivers.Delete(r.Context(), pathID(r)); err != nil {
		writeError(w, registryLookupError(err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// registryLookupError promotes the store sentinels to 404 envelopes; the
// generic mapper only recognizes order lookups.
func registryLookupError(err error) error {
	if errors.Is(err, core.ErrJobNotFound) || errors.Is(err, core.ErrDriverNotFound) {
		return goerrors.Wrap(err, goerrors.CategoryNotFound, err.Error()).
			WithCode(http.StatusNotFound)
	}
	return err
}

var dateLayouts = []string{"2006-01-02", time.RFC3339}

func parseDates(raw []string) ([]time.Time, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	dates := make([]time.Time, 0, len(raw))
	for _, value := range raw {
		parsed, err := parseDate(value)
		if err != nil {
			return nil, err
		}
		dates = append(dates, parsed)
	}
	return dates, nil
}

func parseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, goerrors.New(
		fmt.Sprintf("transport: invalid date %q, expected YYYY-MM-DD", value),
		goerrors.CategoryBadInput,
	).WithCode(http.StatusBadRequest).WithTextCode(core.CourierErrorInvalidPayload)
}
