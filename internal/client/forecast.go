package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kjstillabower/weather-lookup-service/internal/circuitbreaker"
	"github.com/kjstillabower/weather-lookup-service/internal/models"
	"github.com/kjstillabower/weather-lookup-service/internal/observability"
)

const (
	currentFields = "temperature_2m,relative_humidity_2m,weather_code,wind_speed_10m,wind_direction_10m,pressure_msl,visibility"
	dailyFields   = "temperature_2m_max,temperature_2m_min,apparent_temperature_max,apparent_temperature_min,precipitation_sum,wind_speed_10m_max"
	timezone      = "Asia/Shanghai"
)

// CurrentConditions is the raw current-weather block of the forecast API,
// before condition mapping.
type CurrentConditions struct {
	Temperature   float64
	Humidity      float64
	WeatherCode   int
	WindSpeedKmh  float64
	WindDirection float64
	PressureHpa   float64
	VisibilityM   float64
	ObservedAt    time.Time
}

// ForecastClient fetches current conditions and weekly forecasts from the
// Open-Meteo forecast API.
type ForecastClient struct {
	apiURL  string
	timeout time.Duration
	client  *http.Client
	breaker *circuitbreaker.CircuitBreaker
}

// NewForecastClient returns a client for the forecast API at apiURL.
func NewForecastClient(apiURL string, timeout time.Duration) *ForecastClient {
	return &ForecastClient{
		apiURL:  apiURL,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

// SetCircuitBreaker guards forecast calls with cb. Optional; nil means calls
// go straight through.
func (c *ForecastClient) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

type currentResponse struct {
	Current *struct {
		Time          string  `json:"time"`
		Temperature   float64 `json:"temperature_2m"`
		Humidity      float64 `json:"relative_humidity_2m"`
		WeatherCode   int     `json:"weather_code"`
		WindSpeed     float64 `json:"wind_speed_10m"`
		WindDirection float64 `json:"wind_direction_10m"`
		PressureMsl   float64 `json:"pressure_msl"`
		Visibility    float64 `json:"visibility"`
	} `json:"current"`
}

type dailyResponse struct {
	Daily *struct {
		Time             []string  `json:"time"`
		TemperatureMax   []float64 `json:"temperature_2m_max"`
		TemperatureMin   []float64 `json:"temperature_2m_min"`
		ApparentTempMax  []float64 `json:"apparent_temperature_max"`
		ApparentTempMin  []float64 `json:"apparent_temperature_min"`
		PrecipitationSum []float64 `json:"precipitation_sum"`
		WindSpeedMax     []float64 `json:"wind_speed_10m_max"`
	} `json:"daily"`
}

// FetchCurrent returns the current conditions at the given coordinates.
// A response without the expected current block is ErrUpstreamDataInvalid.
func (c *ForecastClient) FetchCurrent(ctx context.Context, lat, lon float64) (CurrentConditions, error) {
	params := url.Values{}
	params.Set("latitude", formatCoord(lat))
	params.Set("longitude", formatCoord(lon))
	params.Set("current", currentFields)
	params.Set("wind_speed_unit", "kmh")
	params.Set("timezone", timezone)

	var apiResp currentResponse
	if err := c.call(ctx, params, &apiResp); err != nil {
		return CurrentConditions{}, err
	}
	if apiResp.Current == nil {
		return CurrentConditions{}, fmt.Errorf("%w: missing current block", ErrUpstreamDataInvalid)
	}

	cur := apiResp.Current
	observedAt, err := time.ParseInLocation("2006-01-02T15:04", cur.Time, time.Local)
	if err != nil {
		observedAt = time.Now()
	}
	return CurrentConditions{
		Temperature:   cur.Temperature,
		Humidity:      cur.Humidity,
		WeatherCode:   cur.WeatherCode,
		WindSpeedKmh:  cur.WindSpeed,
		WindDirection: cur.WindDirection,
		PressureHpa:   cur.PressureMsl,
		VisibilityM:   cur.Visibility,
		ObservedAt:    observedAt,
	}, nil
}

// FetchWeekly returns per-day aggregates for the next seven days.
func (c *ForecastClient) FetchWeekly(ctx context.Context, lat, lon float64) ([]models.DailyForecast, error) {
	params := url.Values{}
	params.Set("latitude", formatCoord(lat))
	params.Set("longitude", formatCoord(lon))
	params.Set("daily", dailyFields)
	params.Set("timezone", timezone)
	params.Set("forecast_days", "7")

	var apiResp dailyResponse
	if err := c.call(ctx, params, &apiResp); err != nil {
		return nil, err
	}
	if apiResp.Daily == nil || len(apiResp.Daily.Time) == 0 {
		return nil, fmt.Errorf("%w: missing daily block", ErrUpstreamDataInvalid)
	}

	d := apiResp.Daily
	forecast := make([]models.DailyForecast, 0, len(d.Time))
	for i := range d.Time {
		if i >= len(d.TemperatureMax) || i >= len(d.TemperatureMin) ||
			i >= len(d.ApparentTempMax) || i >= len(d.ApparentTempMin) ||
			i >= len(d.PrecipitationSum) || i >= len(d.WindSpeedMax) {
			return nil, fmt.Errorf("%w: ragged daily arrays", ErrUpstreamDataInvalid)
		}
		forecast = append(forecast, models.DailyForecast{
			Date:            d.Time[i],
			MaxTemp:         d.TemperatureMax[i],
			MinTemp:         d.TemperatureMin[i],
			MaxApparentTemp: d.ApparentTempMax[i],
			MinApparentTemp: d.ApparentTempMin[i],
			Precipitation:   d.PrecipitationSum[i],
			MaxWindSpeed:    d.WindSpeedMax[i],
		})
	}
	return forecast, nil
}

// call performs one GET against the forecast API and decodes into out,
// routed through the circuit breaker when one is set.
func (c *ForecastClient) call(ctx context.Context, params url.Values, out interface{}) error {
	if c.breaker == nil {
		return c.doCall(ctx, params, out)
	}
	err := c.breaker.Call(ctx, func() error {
		return c.doCall(ctx, params, out)
	})
	if err != nil && err.Error() == "circuit breaker open" {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return err
}

func (c *ForecastClient) doCall(ctx context.Context, params url.Values, out interface{}) error {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return fmt.Errorf("invalid forecast URL: %w", err)
	}
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		observability.RecordUpstreamCall("forecast", "error", time.Since(start).Seconds())
		wrapped := wrapTransportError(err)
		observability.RecordUpstreamError("forecast", string(CategorizeError(wrapped)))
		return wrapped
	}
	defer resp.Body.Close()

	observability.RecordUpstreamCall("forecast", statusLabel(resp.StatusCode), time.Since(start).Seconds())
	if err := checkStatus(resp); err != nil {
		observability.RecordUpstreamError("forecast", string(CategorizeError(err)))
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		observability.RecordUpstreamError("forecast", string(ErrorCategoryDataInvalid))
		return fmt.Errorf("%w: parse forecast response: %v", ErrUpstreamDataInvalid, err)
	}
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
