package models

import "time"

// WeatherRecord is the normalized current-conditions result. String fields
// carry display-formatted values ("25.1°C", "63%") exactly as cached and
// archived; WindLevel is the Beaufort-style level 0-12.
type WeatherRecord struct {
	City          string    `json:"city"`
	Temperature   string    `json:"temperature"`
	Humidity      string    `json:"humidity"`
	Condition     string    `json:"weather"`
	WindLevel     int       `json:"wind"`
	WindDirection string    `json:"wind_dir"`
	Pressure      string    `json:"pressure"`
	Visibility    string    `json:"visibility"`
	AQI           int       `json:"aqi"`
	ObservedAt    time.Time `json:"timestamp"`
}

// HistoricalRecord is a WeatherRecord archived into an hourly slot.
// At most one record exists per (City, RecordDate, RecordHour).
type HistoricalRecord struct {
	WeatherRecord
	RecordDate string `json:"record_date"` // YYYY-MM-DD
	RecordHour int    `json:"record_hour"` // 0-23
}

// DailyForecast is one day of the weekly forecast. Temperatures are °C,
// precipitation mm, wind speed km/h, straight from the upstream daily block.
type DailyForecast struct {
	Date            string  `json:"date"`
	MaxTemp         float64 `json:"max_temp"`
	MinTemp         float64 `json:"min_temp"`
	MaxApparentTemp float64 `json:"max_apparent_temp"`
	MinApparentTemp float64 `json:"min_apparent_temp"`
	Precipitation   float64 `json:"precipitation"`
	MaxWindSpeed    float64 `json:"wind_speed_max"`
}

// ResolvedLocation is the output of city resolution. Consumed immediately by
// the upstream fetch; never persisted.
type ResolvedLocation struct {
	Name      string
	Latitude  float64
	Longitude float64
}
