// Package weather orchestrates a weather read: provider fetch, snapshot
// normalization, alert evaluation, forecast interpolation and push dispatch.
package weather

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"meteoalert/internal/external"
	"meteoalert/internal/types"
)

var shapeValidator = validator.New()

// round is half away from zero: 2.5 -> 3, -2.5 -> -3.
func round(v float64) int {
	return int(math.Round(v))
}

func invalidShape(err error) error {
	return types.NewAppError(types.ErrCodeUpstreamWeatherInvalid, "weather provider response has an unexpected shape", err)
}

// Normalize maps a provider observation onto the canonical snapshot.
// Temperatures are rounded; wind keeps provider precision in m/s.
func Normalize(resp *external.CurrentWeatherResponse, observedAt time.Time) (*types.WeatherSnapshot, error) {
	if resp == nil {
		return nil, invalidShape(nil)
	}
	if err := shapeValidator.Struct(resp); err != nil {
		return nil, invalidShape(err)
	}

	primary := resp.Weather[0]
	return &types.WeatherSnapshot{
		LocationName:   resp.Name,
		CountryCode:    resp.Sys.Country,
		TemperatureC:   round(*resp.Main.Temp),
		FeelsLikeC:     round(*resp.Main.FeelsLike),
		HumidityPct:    round(*resp.Main.Humidity),
		PressureHPa:    round(*resp.Main.Pressure),
		CloudsPct:      round(*resp.Clouds.All),
		WindSpeedMs:    *resp.Wind.Speed,
		Description:    primary.Description,
		IconCode:       primary.Icon,
		ConditionCodes: conditionCodes(resp.Weather),
		ObservedAt:     observedAt.UTC(),
		HourlyForecast: []types.ForecastPoint{},
	}, nil
}

// conditionCodes collects the distinct weather groups in provider order.
func conditionCodes(groups []external.WeatherGroup) []types.Condition {
	out := make([]types.Condition, 0, len(groups))
	seen := make(map[types.Condition]bool, len(groups))
	for _, g := range groups {
		c := types.Condition(g.Main)
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// NormalizeForecast maps the provider series onto coarse forecast points and
// returns the location whose wall clock labels them.
func NormalizeForecast(resp *external.ForecastResponse) ([]types.ForecastPoint, *time.Location, error) {
	if resp == nil {
		return nil, time.UTC, invalidShape(nil)
	}
	if err := shapeValidator.Struct(resp); err != nil {
		return nil, time.UTC, invalidShape(err)
	}

	loc := time.UTC
	if resp.City.Timezone != 0 {
		loc = time.FixedZone("", resp.City.Timezone)
	}

	points := make([]types.ForecastPoint, 0, len(resp.List))
	for _, e := range resp.List {
		ts := time.Unix(e.Dt, 0).UTC()
		temp := *e.Main.Temp
		raw := &types.Readings{
			TemperatureC: temp,
			TempMinC:     valueOr(e.Main.TempMin, temp),
			TempMaxC:     valueOr(e.Main.TempMax, temp),
			HumidityPct:  *e.Main.Humidity,
			PressureHPa:  *e.Main.Pressure,
			CloudsPct:    *e.Clouds.All,
		}
		p := types.ForecastPoint{
			Time:         label(ts, loc),
			Timestamp:    ts,
			TemperatureC: round(raw.TemperatureC),
			TempMinC:     round(raw.TempMinC),
			TempMaxC:     round(raw.TempMaxC),
			WindSpeedMs:  *e.Wind.Speed,
			HumidityPct:  round(raw.HumidityPct),
			PressureHPa:  round(raw.PressureHPa),
			CloudsPct:    round(raw.CloudsPct),
			Description:  e.Weather[0].Description,
			IconCode:     e.Weather[0].Icon,
			Readings:     raw,
		}
		points = append(points, p)
	}
	return points, loc, nil
}

func valueOr(v *float64, fallback float64) float64 {
	if v == nil {
		return fallback
	}
	return *v
}

func label(ts time.Time, loc *time.Location) string {
	return ts.In(loc).Format("15:04")
}
