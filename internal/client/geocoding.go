package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/kjstillabower/weather-lookup-service/internal/models"
	"github.com/kjstillabower/weather-lookup-service/internal/observability"
)

// GeocodingClient resolves city names to coordinate candidates via the
// Open-Meteo geocoding search API.
type GeocodingClient struct {
	apiURL  string
	timeout time.Duration
	client  *http.Client
}

// NewGeocodingClient returns a client for the geocoding API at apiURL.
func NewGeocodingClient(apiURL string, timeout time.Duration) *GeocodingClient {
	return &GeocodingClient{
		apiURL:  apiURL,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

type geocodingResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	} `json:"results"`
}

// Search returns up to five candidate locations for name, country-filtered to
// CN with Chinese names. Zero candidates is ErrCityNotFound; transport and
// HTTP failures map to the upstream sentinels.
func (c *GeocodingClient) Search(ctx context.Context, name string) ([]models.ResolvedLocation, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid geocoding URL: %w", err)
	}
	params := url.Values{}
	params.Set("name", name)
	params.Set("country", "CN")
	params.Set("count", "5")
	params.Set("language", "zh")
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.RecordUpstreamCall("geocoding", "error", time.Since(start).Seconds())
		wrapped := wrapTransportError(err)
		observability.RecordUpstreamError("geocoding", string(CategorizeError(wrapped)))
		return nil, wrapped
	}
	defer resp.Body.Close()

	observability.RecordUpstreamCall("geocoding", statusLabel(resp.StatusCode), time.Since(start).Seconds())
	if err := checkStatus(resp); err != nil {
		observability.RecordUpstreamError("geocoding", string(CategorizeError(err)))
		return nil, err
	}

	var geoResp geocodingResponse
	if err := json.NewDecoder(resp.Body).Decode(&geoResp); err != nil {
		observability.RecordUpstreamError("geocoding", string(ErrorCategoryDataInvalid))
		return nil, fmt.Errorf("%w: parse geocoding response: %v", ErrUpstreamDataInvalid, err)
	}

	if len(geoResp.Results) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrCityNotFound, name)
	}

	candidates := make([]models.ResolvedLocation, 0, len(geoResp.Results))
	for _, r := range geoResp.Results {
		candidates = append(candidates, models.ResolvedLocation{
			Name:      r.Name,
			Latitude:  r.Latitude,
			Longitude: r.Longitude,
		})
	}
	return candidates, nil
}

func extractCorrelationID(ctx context.Context) string {
	if v := ctx.Value("correlation_id"); v != nil {
		if corrID, ok := v.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "success"
	case statusCode == http.StatusTooManyRequests:
		return "rate_limited"
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return "error"
	}
}
