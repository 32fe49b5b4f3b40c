package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-lookup-service/internal/client"
	"github.com/kjstillabower/weather-lookup-service/internal/conditions"
	"github.com/kjstillabower/weather-lookup-service/internal/geo"
	"github.com/kjstillabower/weather-lookup-service/internal/models"
	"github.com/kjstillabower/weather-lookup-service/internal/observability"
)

// Caller-input errors. Handlers map these to 400/404 with errors.Is.
var (
	ErrCityRequired     = errors.New("city is required")
	ErrDateRequired     = errors.New("date is required")
	ErrInvalidDate      = errors.New("invalid date, expected YYYY-MM-DD")
	ErrNoHistoricalData = errors.New("no historical data")
)

// Resolver maps a raw city name to coordinates.
type Resolver interface {
	Resolve(ctx context.Context, rawCity string) (models.ResolvedLocation, error)
}

// ForecastClient fetches current and weekly weather for coordinates.
type ForecastClient interface {
	FetchCurrent(ctx context.Context, lat, lon float64) (client.CurrentConditions, error)
	FetchWeekly(ctx context.Context, lat, lon float64) ([]models.DailyForecast, error)
}

// Store is the persistence surface the orchestrator needs. All methods are
// best-effort; see the store package.
type Store interface {
	GetCached(ctx context.Context, city string) (models.WeatherRecord, bool)
	PutCache(ctx context.Context, rec models.WeatherRecord) bool
	PutHistorical(ctx context.Context, rec models.WeatherRecord) bool
	GetHistorical(ctx context.Context, city string, days int) []models.HistoricalRecord
	GetHistoricalByDate(ctx context.Context, city, date string) []models.HistoricalRecord
	ListPopularCities(ctx context.Context) []string
}

// WeatherService runs the lookup pipeline: cache short-circuit, resolution,
// upstream fetch, condition mapping, best-effort persistence. One synchronous
// pipeline per request; concurrent requests for the same city are not
// deduplicated, and the append-only cache plus last-write-wins historical
// slots make the duplicate writes harmless.
type WeatherService struct {
	resolver        Resolver
	forecast        ForecastClient
	store           Store
	aqi             *conditions.AQIGenerator
	stampedeTracker *stampedeTracker
}

// NewWeatherService creates a WeatherService with the provided dependencies.
// A nil aqi falls back to the shared RNG.
func NewWeatherService(resolver Resolver, forecast ForecastClient, store Store, aqi *conditions.AQIGenerator) *WeatherService {
	if aqi == nil {
		aqi = conditions.NewAQIGenerator(nil)
	}
	return &WeatherService{
		resolver:        resolver,
		forecast:        forecast,
		store:           store,
		aqi:             aqi,
		stampedeTracker: newStampedeTracker(),
	}
}

// loggerFromContext extracts a zap.Logger from request context if present.
// Returns nil if logger is not found or context is invalid.
func loggerFromContext(ctx context.Context) *zap.Logger {
	if v := ctx.Value("logger"); v != nil {
		if l, ok := v.(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return nil
}

// GetWeather returns current weather for city. The cache is consulted with
// the raw input string exactly as given, the fast path for literal repeat
// queries, while the record built from a live fetch carries the resolved
// canonical name. Persistence failures never fail the response.
func (s *WeatherService) GetWeather(ctx context.Context, city string) (models.WeatherRecord, error) {
	if strings.TrimSpace(city) == "" {
		return models.WeatherRecord{}, ErrCityRequired
	}
	start := time.Now()
	logger := loggerFromContext(ctx)
	observability.RecordWeatherQuery(city)

	if cached, ok := s.store.GetCached(ctx, city); ok {
		observability.CacheHitsTotal.Inc()
		if logger != nil {
			logger.Debug("cache hit", zap.String("city", city))
			logger.Debug("weather served", zap.String("city", city), zap.Bool("cached", true), zap.Duration("duration", time.Since(start)))
		}
		return cached, nil
	}

	concurrentMisses := s.stampedeTracker.RecordMiss(city)
	defer s.stampedeTracker.RecordHit(city)
	if concurrentMisses > 1 {
		cityLabel := observability.MetricCityLabel(city)
		observability.CacheStampedeDetectedTotal.WithLabelValues(cityLabel).Inc()
		observability.CacheStampedeConcurrency.WithLabelValues(cityLabel).Observe(float64(concurrentMisses))
	}

	if logger != nil {
		logger.Debug("cache miss, fetching upstream", zap.String("city", city))
	}

	loc, err := s.resolver.Resolve(ctx, city)
	if err != nil {
		return models.WeatherRecord{}, err
	}

	cur, err := s.forecast.FetchCurrent(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		return models.WeatherRecord{}, fmt.Errorf("fetch weather for %s: %w", loc.Name, err)
	}

	rec := s.buildRecord(loc.Name, cur)

	if ok := s.store.PutCache(ctx, rec); !ok && logger != nil {
		logger.Warn("cache write failed", zap.String("city", rec.City))
	}
	if ok := s.store.PutHistorical(ctx, rec); !ok && logger != nil {
		logger.Warn("historical write failed", zap.String("city", rec.City))
	}

	if logger != nil {
		logger.Debug("weather served", zap.String("city", city), zap.Bool("cached", false), zap.Duration("duration", time.Since(start)))
	}
	return rec, nil
}

// buildRecord normalizes raw upstream conditions into the display record.
func (s *WeatherService) buildRecord(cityName string, cur client.CurrentConditions) models.WeatherRecord {
	windLevel := conditions.WindLevel(cur.WindSpeedKmh)
	return models.WeatherRecord{
		City:          cityName,
		Temperature:   formatFloat(cur.Temperature) + "°C",
		Humidity:      formatFloat(cur.Humidity) + "%",
		Condition:     conditions.ConditionText(cur.WeatherCode),
		WindLevel:     windLevel,
		WindDirection: conditions.WindDirectionText(cur.WindDirection),
		Pressure:      formatFloat(cur.PressureHpa) + "hPa",
		Visibility:    formatFloat(cur.VisibilityM/1000) + "km",
		AQI:           s.aqi.Generate(cur.WeatherCode, windLevel),
		ObservedAt:    cur.ObservedAt,
	}
}

// GetWeeklyForecast returns seven per-day summaries for city. Resolution and
// fetch only: forecasts are neither cached nor archived.
func (s *WeatherService) GetWeeklyForecast(ctx context.Context, city string) (string, []models.DailyForecast, error) {
	if strings.TrimSpace(city) == "" {
		return "", nil, ErrCityRequired
	}

	loc, err := s.resolver.Resolve(ctx, city)
	if err != nil {
		return "", nil, err
	}

	forecast, err := s.forecast.FetchWeekly(ctx, loc.Latitude, loc.Longitude)
	if err != nil {
		return "", nil, fmt.Errorf("fetch weekly forecast for %s: %w", loc.Name, err)
	}
	return loc.Name, forecast, nil
}

// GetHistoricalByDate returns archived rows for city on date (YYYY-MM-DD),
// ascending by hour. The city is normalized before the lookup since archived
// rows use canonical names. An empty result is ErrNoHistoricalData, not an
// empty success.
func (s *WeatherService) GetHistoricalByDate(ctx context.Context, city, date string) (string, []models.HistoricalRecord, error) {
	if strings.TrimSpace(city) == "" {
		return "", nil, ErrCityRequired
	}
	if strings.TrimSpace(date) == "" {
		return "", nil, ErrDateRequired
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return "", nil, fmt.Errorf("%w: %s", ErrInvalidDate, date)
	}

	cityName := geo.Normalize(city)
	records := s.store.GetHistoricalByDate(ctx, cityName, date)
	if len(records) == 0 {
		return "", nil, fmt.Errorf("%w: %s on %s", ErrNoHistoricalData, cityName, date)
	}
	return cityName, records, nil
}

// RecentHistory returns the archived rows for city over the last days days,
// newest slot first. days defaults to 7 when non-positive.
func (s *WeatherService) RecentHistory(ctx context.Context, city string, days int) (string, []models.HistoricalRecord, error) {
	if strings.TrimSpace(city) == "" {
		return "", nil, ErrCityRequired
	}
	if days <= 0 {
		days = 7
	}
	cityName := geo.Normalize(city)
	return cityName, s.store.GetHistorical(ctx, cityName, days), nil
}

// ListPopularCities returns the static reference city list.
func (s *WeatherService) ListPopularCities(ctx context.Context) []string {
	return s.store.ListPopularCities(ctx)
}

// formatFloat renders like the upstream JSON: no exponent, no trailing zeros.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
