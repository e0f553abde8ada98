package routing

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/pedalfleet/courier-ops/core"
)

const (
	// DefaultDepot is where every route starts when no depot is configured.
	DefaultDepot = "Birmingham, UK"

	planningDays   = 5
	stopWindowMins = 180
)

// PlanRequest carries one optimization run's inputs.
type PlanRequest struct {
	Jobs          []core.Job
	Drivers       []core.Driver
	DriversPerDay int
}

// Stop is one visit on a route. Window holds the start and end minute of
// the stop's service window, measured from the route's start of day.
type Stop struct {
	JobID  string `json:"job_id"`
	Window [2]int `json:"window"`
}

// Route is one driver's day of work. Day is 1-indexed within the planning
// horizon. TotalTime includes the return leg to the depot.
type Route struct {
	DriverID  string `json:"driver_id"`
	Day       int    `json:"day"`
	Stops     []Stop `json:"stops"`
	TotalTime int    `json:"total_time"`
}

// Plan is the outcome of an optimization run. Unassigned lists the ids of
// jobs no route could absorb within the horizon.
type Plan struct {
	Routes     []Route  `json:"routes"`
	Unassigned []string `json:"unassigned"`
}

// Planner builds route plans with a nearest-stop heuristic over the travel
// time matrix. Construction order guarantees a collection stop is always
// planned before its order's delivery stop.
type Planner struct {
	Matrix TravelTimeMatrix
	Depot  string
	Logger core.Logger
	Now    func() time.Time
}

func NewPlanner(matrix TravelTimeMatrix, depot string, logger core.Logger) *Planner {
	return &Planner{Matrix: matrix, Depot: depot, Logger: logger}
}

type planJob struct {
	id          string
	orderID     string
	locationIdx int
	delivery    bool
	pairIdx     int
	days        [planningDays]bool
}

func (p *Planner) Plan(ctx context.Context, req PlanRequest) (Plan, error) {
	if len(req.Jobs) == 0 {
		return Plan{}, routingBadInput("routing: no jobs provided for optimization")
	}
	if req.DriversPerDay <= 0 {
		return Plan{}, routingBadInput("routing: drivers per day must be positive")
	}
	for _, job := range req.Jobs {
		if strings.TrimSpace(job.Location) == "" {
			return Plan{}, routingBadInput(fmt.Sprintf("routing: job %s has no location", job.ID))
		}
	}

	maxMinutes := p.driverBudgetMinutes(req.Drivers)
	locations, jobs := p.indexJobs(req.Jobs)

	matrix, err := p.matrix().Times(ctx, locations)
	if err != nil {
		return Plan{}, goerrors.Wrap(err, goerrors.CategoryOperation, "routing: travel time matrix failed").
			WithCode(http.StatusInternalServerError).
			WithTextCode(core.CourierErrorInternal)
	}

	plan := p.buildPlan(req, jobs, matrix, maxMinutes)
	p.logger().Info("route plan built",
		"jobs", len(req.Jobs),
		"routes", len(plan.Routes),
		"unassigned", len(plan.Unassigned),
	)
	return plan, nil
}

// indexJobs maps jobs onto a deduplicated location list with the depot at
// index zero, and links each delivery to its order's collection job.
func (p *Planner) indexJobs(input []core.Job) ([]string, []planJob) {
	locations := []string{p.depot()}
	locationIdx := map[string]int{p.depot(): 0}

	collectionIdx := map[string]int{}
	for i, job := range input {
		if job.Leg == core.LegCollection {
			collectionIdx[job.OrderID] = i
		}
	}

	startDate := p.now().Truncate(24 * time.Hour)
	jobs := make([]planJob, 0, len(input))
	for _, job := range input {
		location := strings.TrimSpace(job.Location)
		idx, ok := locationIdx[location]
		if !ok {
			idx = len(locations)
			locationIdx[location] = idx
			locations = append(locations, location)
		}

		planned := planJob{
			id:          job.ID,
			orderID:     job.OrderID,
			locationIdx: idx,
			delivery:    job.Leg == core.LegDelivery,
			pairIdx:     -1,
		}
		if planned.delivery {
			if pair, ok := collectionIdx[job.OrderID]; ok {
				planned.pairIdx = pair
			}
		}
		planned.days = eligibleDays(job.PreferredDates, startDate)
		jobs = append(jobs, planned)
	}
	return locations, jobs
}

// eligibleDays maps preferred dates onto the planning horizon. A job with
// no preferred dates can run on any day; dates outside the horizon are
// ignored, and a job whose dates all fall outside it gets no days.
func eligibleDays(preferred []time.Time, startDate time.Time) [planningDays]bool {
	var days [planningDays]bool
	if len(preferred) == 0 {
		for d := range days {
			days[d] = true
		}
		return days
	}
	for _, date := range preferred {
		diff := int(date.Truncate(24 * time.Hour).Sub(startDate).Hours() / 24)
		if diff >= 0 && diff < planningDays {
			days[diff] = true
		}
	}
	return days
}

func (p *Planner) buildPlan(req PlanRequest, jobs []planJob, matrix [][]int, maxMinutes int) Plan {
	assigned := make([]bool, len(jobs))
	var routes []Route

	for day := 0; day < planningDays; day++ {
		for vehicle := 0; vehicle < req.DriversPerDay; vehicle++ {
			route := p.buildRoute(jobs, matrix, assigned, day, maxMinutes)
			if len(route.Stops) == 0 {
				continue
			}
			route.Day = day + 1
			route.DriverID = driverIDForVehicle(req.Drivers, vehicle)
			routes = append(routes, route)
		}
	}

	var unassigned []string
	for i, job := range jobs {
		if !assigned[i] {
			unassigned = append(unassigned, job.id)
		}
	}
	sort.Strings(unassigned)

	return Plan{Routes: routes, Unassigned: unassigned}
}

// buildRoute grows one route by repeatedly taking the nearest eligible
// job. A delivery only becomes eligible once its collection is assigned,
// and every candidate must fit the day budget including the return leg.
func (p *Planner) buildRoute(jobs []planJob, matrix [][]int, assigned []bool, day, maxMinutes int) Route {
	current := 0
	elapsed := 0
	var stops []Stop

	for {
		best := -1
		bestTravel := 0
		for i, job := range jobs {
			if assigned[i] || !job.days[day] {
				continue
			}
			if job.delivery && job.pairIdx >= 0 && !assigned[job.pairIdx] {
				continue
			}
			travel := matrix[current][job.locationIdx]
			arrival := elapsed + travel
			if arrival+matrix[job.locationIdx][0] > maxMinutes {
				continue
			}
			if best == -1 || travel < bestTravel {
				best = i
				bestTravel = travel
			}
		}
		if best == -1 {
			break
		}

		elapsed += bestTravel
		windowEnd := elapsed + stopWindowMins
		if windowEnd > maxMinutes {
			windowEnd = maxMinutes
		}
		stops = append(stops, Stop{
			JobID:  jobs[best].id,
			Window: [2]int{elapsed, windowEnd},
		})
		assigned[best] = true
		current = jobs[best].locationIdx
	}

	total := elapsed
	if len(stops) > 0 {
		total += matrix[current][0]
	}
	return Route{Stops: stops, TotalTime: total}
}

func (p *Planner) driverBudgetMinutes(drivers []core.Driver) int {
	hours := 0
	for _, driver := range drivers {
		if driver.AvailableHours > hours {
			hours = driver.AvailableHours
		}
	}
	if hours <= 0 {
		hours = core.DefaultDriverHours
	}
	return hours * 60
}

func driverIDForVehicle(drivers []core.Driver, vehicle int) string {
	if vehicle < len(drivers) {
		return drivers[vehicle].ID
	}
	return fmt.Sprintf("additional-driver-%d", vehicle-len(drivers)+1)
}

func (p *Planner) matrix() TravelTimeMatrix {
	if p != nil && p.Matrix != nil {
		return p.Matrix
	}
	return EstimatorMatrix{}
}

func (p *Planner) depot() string {
	if p != nil && strings.TrimSpace(p.Depot) != "" {
		return p.Depot
	}
	return DefaultDepot
}

func (p *Planner) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Planner) logger() core.Logger {
	if p != nil && p.Logger != nil {
		return p.Logger
	}
	return glog.Nop()
}

func routingBadInput(message string) error {
	return goerrors.New(message, goerrors.CategoryBadInput).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.CourierErrorInvalidPayload)
}
