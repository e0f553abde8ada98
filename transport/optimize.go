package transport

import (
	"net/http"

	"github.com/pedalfleet/courier-ops/core"
	"github.com/pedalfleet/courier-ops/routing"
)

type optimizeJobInput struct {
	ID             string   `json:"id"`
	OrderID        string   `json:"order_id"`
	Leg            string   `json:"leg"`
	Location       string   `json:"location"`
	PreferredDates []string `json:"preferred_dates,omitempty"`
}

type optimizeDriverInput struct {
	ID             string `json:"id"`
	AvailableHours int    `json:"available_hours,omitempty"`
}

type optimizeRequest struct {
	Jobs             []optimizeJobInput    `json:"jobs"`
	Drivers          []optimizeDriverInput `json:"drivers"`
	NumDriversPerDay int                   `json:"num_drivers_per_day"`
}

func (a *API) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	jobs := make([]core.Job, 0, len(req.Jobs))
	for _, input := range req.Jobs {
		dates, err := parseDates(input.PreferredDates)
		if err != nil {
			writeError(w, err)
			return
		}
		jobs = append(jobs, core.Job{
			ID:             input.ID,
			OrderID:        input.OrderID,
			Leg:            core.LegType(input.Leg),
			Location:       input.Location,
			PreferredDates: dates,
		})
	}

	drivers := make([]core.Driver, 0, len(req.Drivers))
	for _, input := range req.Drivers {
		drivers = append(drivers, core.Driver{
			ID:             input.ID,
			AvailableHours: input.AvailableHours,
		})
	}

	plan, err := a.Planner.Plan(r.Context(), routing.PlanRequest{
		Jobs:          jobs,
		Drivers:       drivers,
		DriversPerDay: req.NumDriversPerDay,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	// Unassigned serializes as [] rather than null for empty plans.
	if plan.Unassigned == nil {
		plan.Unassigned = []string{}
	}
	if plan.Routes == nil {
		plan.Routes = []routing.Route{}
	}
	writeJSON(w, http.StatusOK, plan)
}
