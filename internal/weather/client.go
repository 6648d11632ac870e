// Package weather implements forecast retrieval from the Open-Meteo API:
// the HTTP client, the response-to-domain mapper, and the caching service
// that the decision engine consumes.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	"umbrella/internal/external"
	"umbrella/internal/types"
)

// ForecastResponse mirrors the Open-Meteo /v1/forecast JSON shape for the
// fields the daemon requests. Hourly arrays are index-aligned; probability,
// temperature, and weather code entries may be null.
type ForecastResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	Hourly    struct {
		Time                     []string   `json:"time"`
		PrecipitationProbability []*int     `json:"precipitation_probability"`
		Temperature2m            []*float64 `json:"temperature_2m"`
		WeatherCode              []*int     `json:"weather_code"`
	} `json:"hourly"`
}

// Client fetches raw forecasts from the Open-Meteo API through the shared
// resilient BaseClient.
type Client struct {
	base    *external.BaseClient
	baseURL string
	tzName  string
	days    int
}

// NewClient creates a forecast API client. tzName is passed to the API so
// hourly timestamps come back in the reference timezone; days bounds the
// forecast horizon.
func NewClient(base *external.BaseClient, baseURL, tzName string, days int) *Client {
	return &Client{base: base, baseURL: baseURL, tzName: tzName, days: days}
}

// FetchHourly requests the hourly forecast for a coordinate. Failures are
// classified into the fetch error taxonomy: transport problems map to
// network failure, upstream rejections to API failure, everything else to
// unknown failure.
func (c *Client) FetchHourly(ctx context.Context, loc types.Location) (*ForecastResponse, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", loc.Latitude))
	q.Set("longitude", fmt.Sprintf("%.4f", loc.Longitude))
	q.Set("hourly", "precipitation_probability,temperature_2m,weather_code")
	q.Set("timezone", c.tzName)
	q.Set("forecast_days", fmt.Sprintf("%d", c.days))

	reqURL := c.baseURL + "/v1/forecast?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeFetchUnknown, "failed to build forecast request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, classifyFetchError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, types.NewAppError(types.ErrCodeFetchAPI,
			fmt.Sprintf("forecast API returned %d: %s", resp.StatusCode, body), nil)
	}

	var parsed ForecastResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, types.NewAppError(types.ErrCodeFetchAPI, "failed to decode forecast response", err)
	}
	return &parsed, nil
}

// classifyFetchError maps transport and resilience-layer errors onto the
// fetch taxonomy.
func classifyFetchError(err error) error {
	var netErr net.Error
	var dnsErr *net.DNSError
	var urlErr *url.Error
	switch {
	case errors.As(err, &dnsErr), errors.As(err, &netErr), errors.As(err, &urlErr):
		return types.NewAppError(types.ErrCodeFetchNetwork, "network failure fetching forecast", err)
	}

	switch types.CodeOf(err) {
	case types.ErrCodeUpstreamUnavailable, types.ErrCodeUpstreamRateLimited:
		// The resilient client already retried; surface as an API failure
		// unless the cause was transport-level.
		var cause *types.AppError
		if errors.As(err, &cause) && cause.Err != nil {
			var innerURL *url.Error
			if errors.As(cause.Err, &innerURL) {
				return types.NewAppError(types.ErrCodeFetchNetwork, "network failure fetching forecast", err)
			}
		}
		return types.NewAppError(types.ErrCodeFetchAPI, "forecast API unavailable", err)
	}

	return types.NewAppError(types.ErrCodeFetchUnknown, "forecast fetch failed", err)
}
