package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// unreachableMinutes marks location pairs the provider could not route
// between. Large enough that the planner never picks them.
const unreachableMinutes = 9999

// TravelTimeMatrix computes pairwise travel times in minutes. Row i column
// j of the result is the time from locations[i] to locations[j].
type TravelTimeMatrix interface {
	Times(ctx context.Context, locations []string) ([][]int, error)
}

// EstimatorMatrix is the offline fallback used when no distance provider is
// configured. Times grow with index distance and floor at 30 minutes, which
// keeps plans deterministic for development and tests.
type EstimatorMatrix struct{}

func (EstimatorMatrix) Times(_ context.Context, locations []string) ([][]int, error) {
	n := len(locations)
	matrix := make([][]int, n)
	for i := range matrix {
		row := make([]int, n)
		for j := range row {
			minutes := (i - j) * 20
			if minutes < 0 {
				minutes = -minutes
			}
			if minutes < 30 {
				minutes = 30
			}
			row[j] = minutes
		}
		matrix[i] = row
	}
	return matrix, nil
}

const (
	googleMatrixBaseURL = "https://maps.googleapis.com/maps/api/distancematrix/json"
	googleMatrixBatch   = 10
)

// GoogleMatrix resolves travel times through the Google Distance Matrix
// API. Destinations are requested in batches of ten per origin to stay
// inside the API's element limits.
type GoogleMatrix struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

func NewGoogleMatrix(apiKey string) *GoogleMatrix {
	return &GoogleMatrix{APIKey: apiKey}
}

type googleMatrixResponse struct {
	Status string `json:"status"`
	Rows   []struct {
		Elements []struct {
			Status   string `json:"status"`
			Duration struct {
				Value int `json:"value"`
			} `json:"duration"`
		} `json:"elements"`
	} `json:"rows"`
}

func (m *GoogleMatrix) Times(ctx context.Context, locations []string) ([][]int, error) {
	if m == nil || m.APIKey == "" {
		return nil, goerrors.New("routing: google matrix requires an api key", goerrors.CategoryOperation)
	}

	matrix := make([][]int, 0, len(locations))
	for _, origin := range locations {
		row := make([]int, 0, len(locations))
		for start := 0; start < len(locations); start += googleMatrixBatch {
			end := start + googleMatrixBatch
			if end > len(locations) {
				end = len(locations)
			}
			minutes, err := m.fetchBatch(ctx, origin, locations[start:end])
			if err != nil {
				return nil, err
			}
			row = append(row, minutes...)
		}
		matrix = append(matrix, row)
	}
	return matrix, nil
}

func (m *GoogleMatrix) fetchBatch(ctx context.Context, origin string, destinations []string) ([]int, error) {
	query := url.Values{}
	query.Set("origins", origin)
	query.Set("destinations", strings.Join(destinations, "|"))
	query.Set("mode", "driving")
	query.Set("departure_time", "now")
	query.Set("key", m.APIKey)

	base := m.BaseURL
	if base == "" {
		base = googleMatrixBaseURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"?"+query.Encode(), nil)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "routing: build distance matrix request")
	}

	resp, err := m.client().Do(req)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "routing: distance matrix request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, goerrors.New(
			fmt.Sprintf("routing: distance matrix returned status %d", resp.StatusCode),
			goerrors.CategoryOperation,
		)
	}

	var payload googleMatrixResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "routing: decode distance matrix response")
	}
	if payload.Status != "OK" || len(payload.Rows) == 0 {
		return nil, goerrors.New(
			fmt.Sprintf("routing: distance matrix rejected request: %s", payload.Status),
			goerrors.CategoryOperation,
		)
	}

	minutes := make([]int, 0, len(destinations))
	for _, element := range payload.Rows[0].Elements {
		if element.Status != "OK" {
			minutes = append(minutes, unreachableMinutes)
			continue
		}
		minutes = append(minutes, element.Duration.Value/60)
	}
	if len(minutes) != len(destinations) {
		return nil, goerrors.New("routing: distance matrix returned a short row", goerrors.CategoryOperation)
	}
	return minutes, nil
}

func (m *GoogleMatrix) client() *http.Client {
	if m.Client != nil {
		return m.Client
	}
	return &http.Client{Timeout: 15 * time.Second}
}
