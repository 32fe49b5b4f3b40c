package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup-service/internal/client"
	"github.com/kjstillabower/weather-lookup-service/internal/degraded"
	"github.com/kjstillabower/weather-lookup-service/internal/idle"
	"github.com/kjstillabower/weather-lookup-service/internal/lifecycle"
	"github.com/kjstillabower/weather-lookup-service/internal/models"
	"github.com/kjstillabower/weather-lookup-service/internal/overload"
	"github.com/kjstillabower/weather-lookup-service/internal/service"
)

type mockResolver struct {
	loc models.ResolvedLocation
	err error
}

func (m *mockResolver) Resolve(ctx context.Context, rawCity string) (models.ResolvedLocation, error) {
	return m.loc, m.err
}

type mockForecast struct {
	current    client.CurrentConditions
	weekly     []models.DailyForecast
	currentErr error
	weeklyErr  error
}

func (m *mockForecast) FetchCurrent(ctx context.Context, lat, lon float64) (client.CurrentConditions, error) {
	return m.current, m.currentErr
}

func (m *mockForecast) FetchWeekly(ctx context.Context, lat, lon float64) ([]models.DailyForecast, error) {
	return m.weekly, m.weeklyErr
}

type mockStore struct {
	cache   map[string]models.WeatherRecord
	byDate  []models.HistoricalRecord
	recent  []models.HistoricalRecord
	popular []string
	pingErr error
}

func (m *mockStore) GetCached(ctx context.Context, city string) (models.WeatherRecord, bool) {
	rec, ok := m.cache[city]
	return rec, ok
}

func (m *mockStore) PutCache(ctx context.Context, rec models.WeatherRecord) bool { return true }

func (m *mockStore) PutHistorical(ctx context.Context, rec models.WeatherRecord) bool { return true }

func (m *mockStore) GetHistorical(ctx context.Context, city string, days int) []models.HistoricalRecord {
	return m.recent
}

func (m *mockStore) GetHistoricalByDate(ctx context.Context, city, date string) []models.HistoricalRecord {
	return m.byDate
}

func (m *mockStore) ListPopularCities(ctx context.Context) []string { return m.popular }

func newTestHandler(resolver *mockResolver, forecast *mockForecast, store *mockStore) *Handler {
	svc := service.NewWeatherService(resolver, forecast, store, nil)
	logger := zap.NewNop()
	return NewHandler(svc, nil, logger, nil, 1, 64)
}

func resetLifecycle() {
	lifecycle.SetShuttingDown(false)
	degraded.Reset()
	idle.Reset()
	overload.Reset()
}

func decodeErrorCode(t *testing.T, body []byte) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, body)
	}
	return resp.Error.Code
}

// TestHandler_GetWeather_Success verifies the happy path returns the built
// weather record as JSON.
func TestHandler_GetWeather_Success(t *testing.T) {
	resetLifecycle()
	resolver := &mockResolver{loc: models.ResolvedLocation{Name: "北京", Latitude: 39.9042, Longitude: 116.4074}}
	forecast := &mockForecast{current: client.CurrentConditions{
		Temperature: 21.5, Humidity: 40, WeatherCode: 0, WindSpeedKmh: 7.2,
		WindDirection: 180, PressureHpa: 1015, VisibilityM: 30000,
		ObservedAt: time.Date(2026, 5, 1, 14, 0, 0, 0, time.Local),
	}}
	h := newTestHandler(resolver, forecast, &mockStore{})

	req := httptest.NewRequest(http.MethodGet, "/weather?city=北京", nil)
	rec := httptest.NewRecorder()
	h.GetWeather(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}
	var got models.WeatherRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.City != "北京" {
		t.Errorf("city = %q, want 北京", got.City)
	}
	if got.Temperature != "21.5°C" {
		t.Errorf("temperature = %q, want 21.5°C", got.Temperature)
	}
	if got.Condition != "晴朗" {
		t.Errorf("weather = %q, want 晴朗", got.Condition)
	}
}

// TestHandler_GetWeather_MissingCity verifies the 400 for an absent city
// parameter.
func TestHandler_GetWeather_MissingCity(t *testing.T) {
	resetLifecycle()
	h := newTestHandler(&mockResolver{}, &mockForecast{}, &mockStore{})

	req := httptest.NewRequest(http.MethodGet, "/weather", nil)
	rec := httptest.NewRecorder()
	h.GetWeather(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if code := decodeErrorCode(t, rec.Body.Bytes()); code != "INVALID_CITY" {
		t.Errorf("error code = %q, want INVALID_CITY", code)
	}
}

// TestHandler_GetWeather_ErrorMapping verifies the pipeline error taxonomy
// maps onto the right statuses and codes.
func TestHandler_GetWeather_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		resolveErr error
		fetchErr   error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "city not found",
			resolveErr: client.ErrCityNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   "CITY_NOT_FOUND",
		},
		{
			name:       "upstream timeout",
			fetchErr:   client.ErrUpstreamTimeout,
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   "UPSTREAM_TIMEOUT",
		},
		{
			name:       "upstream unavailable",
			fetchErr:   client.ErrUpstreamUnavailable,
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "UPSTREAM_UNAVAILABLE",
		},
		{
			name:       "upstream http error",
			fetchErr:   client.ErrUpstreamHTTP,
			wantStatus: http.StatusBadGateway,
			wantCode:   "UPSTREAM_HTTP_ERROR",
		},
		{
			name:       "upstream data invalid",
			fetchErr:   client.ErrUpstreamDataInvalid,
			wantStatus: http.StatusBadGateway,
			wantCode:   "UPSTREAM_DATA_INVALID",
		},
		{
			name:       "unclassified",
			fetchErr:   errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resetLifecycle()
			resolver := &mockResolver{loc: models.ResolvedLocation{Name: "北京"}, err: tc.resolveErr}
			forecast := &mockForecast{currentErr: tc.fetchErr}
			h := newTestHandler(resolver, forecast, &mockStore{})

			req := httptest.NewRequest(http.MethodGet, "/weather?city=北京", nil)
			rec := httptest.NewRecorder()
			h.GetWeather(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if code := decodeErrorCode(t, rec.Body.Bytes()); code != tc.wantCode {
				t.Errorf("error code = %q, want %q", code, tc.wantCode)
			}
		})
	}
}

// TestHandler_GetWeather_CacheHit verifies a cached record is served without
// error even when upstream would fail.
func TestHandler_GetWeather_CacheHit(t *testing.T) {
	resetLifecycle()
	store := &mockStore{cache: map[string]models.WeatherRecord{
		"北京": {City: "北京", Temperature: "20°C", Condition: "晴朗"},
	}}
	forecast := &mockForecast{currentErr: client.ErrUpstreamUnavailable}
	h := newTestHandler(&mockResolver{}, forecast, store)

	req := httptest.NewRequest(http.MethodGet, "/weather?city=北京", nil)
	rec := httptest.NewRecorder()
	h.GetWeather(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 from cache", rec.Code)
	}
}

// TestHandler_GetHistorical verifies parameter validation and the happy path
// response envelope.
func TestHandler_GetHistorical(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		resetLifecycle()
		store := &mockStore{byDate: []models.HistoricalRecord{
			{WeatherRecord: models.WeatherRecord{City: "北京", Temperature: "18°C"}, RecordDate: "2026-05-01", RecordHour: 9},
		}}
		h := newTestHandler(&mockResolver{}, &mockForecast{}, store)

		req := httptest.NewRequest(http.MethodGet, "/historical?city=北京&date=2026-05-01", nil)
		rec := httptest.NewRecorder()
		h.GetHistorical(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
		}
		var resp struct {
			City string                    `json:"city"`
			Date string                    `json:"date"`
			Data []models.HistoricalRecord `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if resp.City != "北京" || resp.Date != "2026-05-01" || len(resp.Data) != 1 {
			t.Errorf("response = %+v, want one row for 北京 on 2026-05-01", resp)
		}
	})

	t.Run("malformed date", func(t *testing.T) {
		resetLifecycle()
		h := newTestHandler(&mockResolver{}, &mockForecast{}, &mockStore{})

		req := httptest.NewRequest(http.MethodGet, "/historical?city=北京&date=01-05-2026", nil)
		rec := httptest.NewRecorder()
		h.GetHistorical(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if code := decodeErrorCode(t, rec.Body.Bytes()); code != "INVALID_DATE" {
			t.Errorf("error code = %q, want INVALID_DATE", code)
		}
	})

	t.Run("no rows", func(t *testing.T) {
		resetLifecycle()
		h := newTestHandler(&mockResolver{}, &mockForecast{}, &mockStore{})

		req := httptest.NewRequest(http.MethodGet, "/historical?city=北京&date=2026-05-01", nil)
		rec := httptest.NewRecorder()
		h.GetHistorical(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
		if code := decodeErrorCode(t, rec.Body.Bytes()); code != "NO_HISTORICAL_DATA" {
			t.Errorf("error code = %q, want NO_HISTORICAL_DATA", code)
		}
	})
}

// TestHandler_GetRecentHistory verifies the days parameter handling and that
// an empty archive is an empty success.
func TestHandler_GetRecentHistory(t *testing.T) {
	t.Run("default days", func(t *testing.T) {
		resetLifecycle()
		h := newTestHandler(&mockResolver{}, &mockForecast{}, &mockStore{})

		req := httptest.NewRequest(http.MethodGet, "/historical/recent?city=北京", nil)
		rec := httptest.NewRecorder()
		h.GetRecentHistory(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var resp struct {
			Days int                       `json:"days"`
			Data []models.HistoricalRecord `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if resp.Days != 7 {
			t.Errorf("days = %d, want default 7", resp.Days)
		}
		if resp.Data == nil {
			t.Error("data = null, want empty array")
		}
	})

	t.Run("bad days", func(t *testing.T) {
		resetLifecycle()
		h := newTestHandler(&mockResolver{}, &mockForecast{}, &mockStore{})

		req := httptest.NewRequest(http.MethodGet, "/historical/recent?city=北京&days=abc", nil)
		rec := httptest.NewRecorder()
		h.GetRecentHistory(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

// TestHandler_GetWeeklyForecast verifies the response envelope.
func TestHandler_GetWeeklyForecast(t *testing.T) {
	resetLifecycle()
	resolver := &mockResolver{loc: models.ResolvedLocation{Name: "上海", Latitude: 31.2304, Longitude: 121.4737}}
	forecast := &mockForecast{weekly: []models.DailyForecast{
		{Date: "2026-05-01", MaxTemp: 24, MinTemp: 17},
	}}
	h := newTestHandler(resolver, forecast, &mockStore{})

	req := httptest.NewRequest(http.MethodGet, "/weekly-forecast?city=上海", nil)
	rec := httptest.NewRecorder()
	h.GetWeeklyForecast(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		City     string                 `json:"city"`
		Forecast []models.DailyForecast `json:"forecast"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.City != "上海" || len(resp.Forecast) != 1 {
		t.Errorf("response = %+v, want 上海 with one day", resp)
	}
}

// TestHandler_GetPopularCities verifies the cities envelope.
func TestHandler_GetPopularCities(t *testing.T) {
	resetLifecycle()
	store := &mockStore{popular: []string{"北京", "上海"}}
	h := newTestHandler(&mockResolver{}, &mockForecast{}, store)

	req := httptest.NewRequest(http.MethodGet, "/popular-cities", nil)
	rec := httptest.NewRecorder()
	h.GetPopularCities(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Cities []string `json:"cities"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(resp.Cities) != 2 {
		t.Errorf("cities = %v, want two entries", resp.Cities)
	}
}

// TestHandler_GetHealth_Healthy verifies the default healthy response.
func TestHandler_GetHealth_Healthy(t *testing.T) {
	resetLifecycle()
	h := newTestHandler(&mockResolver{}, &mockForecast{}, &mockStore{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.GetHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
}

// TestHandler_GetHealth_ShuttingDown verifies the shutdown flag outranks
// everything else.
func TestHandler_GetHealth_ShuttingDown(t *testing.T) {
	resetLifecycle()
	lifecycle.SetShuttingDown(true)
	defer lifecycle.SetShuttingDown(false)

	h := newTestHandler(&mockResolver{}, &mockForecast{}, &mockStore{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.GetHealth(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Status != "shutting-down" {
		t.Errorf("status = %q, want shutting-down", resp.Status)
	}
}

// TestHandler_GetHealth_StoreUnreachable verifies a failed store ping reports
// degraded with an unhealthy store check.
func TestHandler_GetHealth_StoreUnreachable(t *testing.T) {
	resetLifecycle()
	hc := &HealthConfig{
		StorePing: func(ctx context.Context) error { return errors.New("database is locked") },
	}
	svc := service.NewWeatherService(&mockResolver{}, &mockForecast{}, &mockStore{}, nil)
	h := NewHandler(svc, hc, zap.NewNop(), nil, 1, 64)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.GetHealth(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("status = %q, want degraded", resp.Status)
	}
	if resp.Checks["store"] != "unhealthy" {
		t.Errorf("store check = %q, want unhealthy", resp.Checks["store"])
	}
}

// TestHandler_GetHealth_ErrorRateDegraded verifies the error-rate breach path.
func TestHandler_GetHealth_ErrorRateDegraded(t *testing.T) {
	resetLifecycle()
	defer degraded.Reset()
	for i := 0; i < 10; i++ {
		degraded.RecordError()
	}

	hc := &HealthConfig{
		DegradedWindow:   time.Minute,
		DegradedErrorPct: 5,
	}
	svc := service.NewWeatherService(&mockResolver{}, &mockForecast{}, &mockStore{}, nil)
	h := NewHandler(svc, hc, zap.NewNop(), nil, 1, 64)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.GetHealth(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
	var resp struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("status = %q, want degraded", resp.Status)
	}
	if resp.Checks["upstream"] != "unhealthy" {
		t.Errorf("upstream check = %q, want unhealthy", resp.Checks["upstream"])
	}
}
