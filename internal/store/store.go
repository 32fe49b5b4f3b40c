package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/kjstillabower/weather-lookup-service/internal/models"
	"github.com/kjstillabower/weather-lookup-service/internal/observability"
)

// DefaultFreshness is the cache validity window: a cache row answers reads
// for exactly one hour after insertion.
const DefaultFreshness = time.Hour

// popularCities is the fixed reference list, seeded once in insertion order.
var popularCities = []string{"北京", "上海", "广州", "深圳", "杭州", "成都", "武汉", "西安", "重庆", "南京"}

const schema = `
CREATE TABLE IF NOT EXISTS weather_cache (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	city TEXT NOT NULL,
	temperature TEXT,
	humidity TEXT,
	weather TEXT,
	wind INTEGER,
	wind_dir TEXT,
	pressure TEXT,
	visibility TEXT,
	aqi INTEGER,
	observed_at INTEGER NOT NULL,
	inserted_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_city ON weather_cache (city);
CREATE INDEX IF NOT EXISTS idx_cache_inserted ON weather_cache (inserted_at);
CREATE INDEX IF NOT EXISTS idx_cache_city_inserted ON weather_cache (city, inserted_at);

CREATE TABLE IF NOT EXISTS historical_weather (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	city TEXT NOT NULL,
	temperature TEXT,
	humidity TEXT,
	weather TEXT,
	wind INTEGER,
	wind_dir TEXT,
	pressure TEXT,
	visibility TEXT,
	aqi INTEGER,
	record_date TEXT NOT NULL,
	record_hour INTEGER NOT NULL,
	observed_at INTEGER NOT NULL,
	inserted_at INTEGER NOT NULL,
	UNIQUE(city, record_date, record_hour)
);

CREATE TABLE IF NOT EXISTS popular_cities (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	city TEXT NOT NULL UNIQUE
);
`

// WeatherStore is the persistent cache and historical archive backed by
// SQLite. The cache table is append-only (no eviction; unbounded growth is a
// known limitation of the system); the historical table holds at most one row
// per (city, record_date, record_hour) with last-write-wins upserts.
//
// Accessors are best-effort: storage faults are logged and counted, then
// degrade to a no-result return. The orchestrator treats a cache miss and a
// cache fault identically, so nothing here ever surfaces an error to callers.
type WeatherStore struct {
	db        *sql.DB
	freshness time.Duration
	clock     clockwork.Clock
	logger    *zap.Logger
}

// Open opens (creating if needed) the SQLite database at path, applies the
// schema, and seeds the popular city list. Reseeding is idempotent. A nil
// clock defaults to the real clock; freshness <= 0 defaults to one hour.
func Open(path string, freshness time.Duration, clock clockwork.Clock, logger *zap.Logger) (*WeatherStore, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if freshness <= 0 {
		freshness = DefaultFreshness
	}

	// WAL and a busy timeout let independent worker processes share the file
	// without write conflicts surfacing as immediate errors.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &WeatherStore{db: db, freshness: freshness, clock: clock, logger: logger}
	if err := s.seedPopularCities(); err != nil {
		db.Close()
		return nil, fmt.Errorf("seed popular cities: %w", err)
	}
	return s, nil
}

func (s *WeatherStore) seedPopularCities() error {
	for _, city := range popularCities {
		if _, err := s.db.Exec(`INSERT OR IGNORE INTO popular_cities (city) VALUES (?)`, city); err != nil {
			return err
		}
	}
	return nil
}

// GetCached returns the most recent cache row for city inserted within the
// freshness window, keyed by the string exactly as given. The raw input is
// the deliberate cache key: a literal repeat query short-circuits without
// alias resolution, while "北京市" and "北京" cache independently.
func (s *WeatherStore) GetCached(ctx context.Context, city string) (models.WeatherRecord, bool) {
	cutoff := s.clock.Now().Add(-s.freshness).Unix()
	row := s.db.QueryRowContext(ctx, `
		SELECT city, temperature, humidity, weather, wind, wind_dir, pressure, visibility, aqi, observed_at
		FROM weather_cache
		WHERE city = ? AND inserted_at >= ?
		ORDER BY inserted_at DESC, id DESC
		LIMIT 1`, city, cutoff)

	var rec models.WeatherRecord
	var observedAt int64
	err := row.Scan(&rec.City, &rec.Temperature, &rec.Humidity, &rec.Condition, &rec.WindLevel,
		&rec.WindDirection, &rec.Pressure, &rec.Visibility, &rec.AQI, &observedAt)
	if err == sql.ErrNoRows {
		return models.WeatherRecord{}, false
	}
	if err != nil {
		s.fault("get_cached", err)
		return models.WeatherRecord{}, false
	}
	rec.ObservedAt = time.Unix(observedAt, 0)
	return rec, true
}

// PutCache appends a new cache row for the record; rows are never updated in
// place. The row is keyed by rec.City, the canonical suffix-stripped name, so
// a raw-input read only hits when the caller's spelling already matches.
// Returns false (already logged) on a storage fault.
func (s *WeatherStore) PutCache(ctx context.Context, rec models.WeatherRecord) bool {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO weather_cache (city, temperature, humidity, weather, wind, wind_dir, pressure, visibility, aqi, observed_at, inserted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.City, rec.Temperature, rec.Humidity, rec.Condition, rec.WindLevel, rec.WindDirection,
		rec.Pressure, rec.Visibility, rec.AQI, rec.ObservedAt.Unix(), s.clock.Now().Unix())
	if err != nil {
		s.fault("put_cache", err)
		return false
	}
	return true
}

// PutHistorical upserts the record into its hourly slot. The slot key (date,
// hour) is computed from the write-time clock, not the record's ObservedAt,
// so repeated lookups within one hour collapse to a single row with the
// latest values. The upsert is a single statement so concurrent writers
// cannot race the uniqueness constraint.
func (s *WeatherStore) PutHistorical(ctx context.Context, rec models.WeatherRecord) bool {
	now := s.clock.Now()
	recordDate := now.Format("2006-01-02")
	recordHour := now.Hour()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO historical_weather (city, temperature, humidity, weather, wind, wind_dir, pressure, visibility, aqi, record_date, record_hour, observed_at, inserted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(city, record_date, record_hour) DO UPDATE SET
			temperature = excluded.temperature,
			humidity = excluded.humidity,
			weather = excluded.weather,
			wind = excluded.wind,
			wind_dir = excluded.wind_dir,
			pressure = excluded.pressure,
			visibility = excluded.visibility,
			aqi = excluded.aqi,
			observed_at = excluded.observed_at,
			inserted_at = excluded.inserted_at`,
		rec.City, rec.Temperature, rec.Humidity, rec.Condition, rec.WindLevel, rec.WindDirection,
		rec.Pressure, rec.Visibility, rec.AQI, recordDate, recordHour, rec.ObservedAt.Unix(), now.Unix())
	if err != nil {
		s.fault("put_historical", err)
		return false
	}
	return true
}

// GetHistorical returns all archived rows for city with record_date within
// the last days days, newest slot first. Faults degrade to an empty slice.
func (s *WeatherStore) GetHistorical(ctx context.Context, city string, days int) []models.HistoricalRecord {
	cutoff := s.clock.Now().AddDate(0, 0, -days).Format("2006-01-02")
	rows, err := s.db.QueryContext(ctx, `
		SELECT city, temperature, humidity, weather, wind, wind_dir, pressure, visibility, aqi, record_date, record_hour, observed_at
		FROM historical_weather
		WHERE city = ? AND record_date >= ?
		ORDER BY record_date DESC, record_hour DESC`, city, cutoff)
	if err != nil {
		s.fault("get_historical", err)
		return nil
	}
	defer rows.Close()
	return s.scanHistorical(rows, "get_historical")
}

// GetHistoricalByDate returns the archived rows for city on the exact date,
// ascending by hour. An empty result is not a fault.
func (s *WeatherStore) GetHistoricalByDate(ctx context.Context, city, date string) []models.HistoricalRecord {
	rows, err := s.db.QueryContext(ctx, `
		SELECT city, temperature, humidity, weather, wind, wind_dir, pressure, visibility, aqi, record_date, record_hour, observed_at
		FROM historical_weather
		WHERE city = ? AND record_date = ?
		ORDER BY record_hour ASC`, city, date)
	if err != nil {
		s.fault("get_historical_by_date", err)
		return nil
	}
	defer rows.Close()
	return s.scanHistorical(rows, "get_historical_by_date")
}

func (s *WeatherStore) scanHistorical(rows *sql.Rows, op string) []models.HistoricalRecord {
	var out []models.HistoricalRecord
	for rows.Next() {
		var rec models.HistoricalRecord
		var observedAt int64
		if err := rows.Scan(&rec.City, &rec.Temperature, &rec.Humidity, &rec.Condition, &rec.WindLevel,
			&rec.WindDirection, &rec.Pressure, &rec.Visibility, &rec.AQI,
			&rec.RecordDate, &rec.RecordHour, &observedAt); err != nil {
			s.fault(op, err)
			return nil
		}
		rec.ObservedAt = time.Unix(observedAt, 0)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		s.fault(op, err)
		return nil
	}
	return out
}

// ListPopularCities returns the seeded reference list in insertion order.
func (s *WeatherStore) ListPopularCities(ctx context.Context) []string {
	rows, err := s.db.QueryContext(ctx, `SELECT city FROM popular_cities ORDER BY id`)
	if err != nil {
		s.fault("list_popular_cities", err)
		return nil
	}
	defer rows.Close()

	var cities []string
	for rows.Next() {
		var city string
		if err := rows.Scan(&city); err != nil {
			s.fault("list_popular_cities", err)
			return nil
		}
		cities = append(cities, city)
	}
	if err := rows.Err(); err != nil {
		s.fault("list_popular_cities", err)
		return nil
	}
	return cities
}

// Ping reports database reachability. Used by the health handler.
func (s *WeatherStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *WeatherStore) Close() error {
	return s.db.Close()
}

func (s *WeatherStore) fault(op string, err error) {
	observability.RecordStoreError(op)
	if s.logger != nil {
		s.logger.Warn("store fault", zap.String("op", op), zap.Error(err))
	}
}
