package types

import "time"

// Condition is a provider weather-group label ("Thunderstorm", "Snow", ...).
type Condition string

const (
	ConditionThunderstorm Condition = "Thunderstorm"
	ConditionSnow         Condition = "Snow"
	ConditionMist         Condition = "Mist"
	ConditionFog          Condition = "Fog"
	ConditionRain         Condition = "Rain"
	ConditionDrizzle      Condition = "Drizzle"
	ConditionClear        Condition = "Clear"
	ConditionClouds       Condition = "Clouds"
)

// WeatherSnapshot is the canonical current-weather observation for one
// location. HasAlert, AlertMessage and HourlyForecast are derived after
// normalization.
type WeatherSnapshot struct {
	LocationName   string          `json:"location_name"`
	CountryCode    string          `json:"country_code"`
	TemperatureC   int             `json:"temperature_c"`
	FeelsLikeC     int             `json:"feels_like_c"`
	HumidityPct    int             `json:"humidity_pct"`
	PressureHPa    int             `json:"pressure_hpa"`
	CloudsPct      int             `json:"clouds_pct"`
	WindSpeedMs    float64         `json:"wind_speed_ms"`
	Description    string          `json:"description"`
	IconCode       string          `json:"icon_code"`
	ConditionCodes []Condition     `json:"condition_codes"`
	ObservedAt     time.Time       `json:"observed_at"`
	HasAlert       bool            `json:"has_alert"`
	AlertMessage   *string         `json:"alert_message"`
	HourlyForecast []ForecastPoint `json:"hourly_forecast"`
}

// HasCondition reports whether the snapshot carries the given condition.
func (s *WeatherSnapshot) HasCondition(c Condition) bool {
	for _, code := range s.ConditionCodes {
		if code == c {
			return true
		}
	}
	return false
}

// ForecastPoint is one entry of the hourly forecast series. Interpolated
// marks points synthesized between two provider points.
type ForecastPoint struct {
	Time         string    `json:"time"`
	Timestamp    time.Time `json:"timestamp"`
	TemperatureC int       `json:"temperature_c"`
	TempMinC     int       `json:"temp_min_c"`
	TempMaxC     int       `json:"temp_max_c"`
	WindSpeedMs  float64   `json:"wind_speed_ms"`
	HumidityPct  int       `json:"humidity_pct"`
	PressureHPa  int       `json:"pressure_hpa"`
	CloudsPct    int       `json:"clouds_pct"`
	Description  string    `json:"description"`
	IconCode     string    `json:"icon_code"`
	Interpolated bool      `json:"interpolated"`

	// Readings holds the provider values before rounding. Genuine points
	// carry it so interpolation starts from unrounded values.
	Readings *Readings `json:"-"`
}

// Readings are a forecast point's unrounded provider values.
type Readings struct {
	TemperatureC float64
	TempMinC     float64
	TempMaxC     float64
	HumidityPct  float64
	PressureHPa  float64
	CloudsPct    float64
}
