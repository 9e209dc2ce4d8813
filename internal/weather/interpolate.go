package weather

import (
	"time"

	"meteoalert/internal/types"
)

// MaxCoarsePoints caps the provider series at 48 hours of 3-hour steps.
const MaxCoarsePoints = 16

// stepsPerGap is the number of output intervals per coarse interval.
const stepsPerGap = 3

// Interpolate expands a 3-hourly series to hourly. Between each consecutive
// pair two points are synthesized at 1/3 and 2/3 of the interval; genuine
// points pass through unchanged. Synthesized points copy description and
// icon from the earlier point. N inputs yield 3(N-1)+1 outputs.
func Interpolate(coarse []types.ForecastPoint, loc *time.Location) []types.ForecastPoint {
	if len(coarse) > MaxCoarsePoints {
		coarse = coarse[:MaxCoarsePoints]
	}
	if len(coarse) == 0 {
		return []types.ForecastPoint{}
	}
	if loc == nil {
		loc = time.UTC
	}

	out := make([]types.ForecastPoint, 0, stepsPerGap*(len(coarse)-1)+1)
	for i := 0; i < len(coarse)-1; i++ {
		cur, next := coarse[i], coarse[i+1]
		out = append(out, cur)
		for k := 1; k < stepsPerGap; k++ {
			out = append(out, between(cur, next, k, loc))
		}
	}
	return append(out, coarse[len(coarse)-1])
}

// between synthesizes the point k/stepsPerGap of the way from a to b.
// Values are interpolated unrounded and rounded once.
func between(a, b types.ForecastPoint, k int, loc *time.Location) types.ForecastPoint {
	r := float64(k) / stepsPerGap
	lerp := func(x, y float64) int {
		return round(x + (y-x)*r)
	}
	ra, rb := readings(a), readings(b)
	ts := a.Timestamp.Add(b.Timestamp.Sub(a.Timestamp) * time.Duration(k) / stepsPerGap)

	return types.ForecastPoint{
		Time:         label(ts, loc),
		Timestamp:    ts,
		TemperatureC: lerp(ra.TemperatureC, rb.TemperatureC),
		TempMinC:     lerp(ra.TempMinC, rb.TempMinC),
		TempMaxC:     lerp(ra.TempMaxC, rb.TempMaxC),
		WindSpeedMs:  a.WindSpeedMs + (b.WindSpeedMs-a.WindSpeedMs)*r,
		HumidityPct:  lerp(ra.HumidityPct, rb.HumidityPct),
		PressureHPa:  lerp(ra.PressureHPa, rb.PressureHPa),
		CloudsPct:    lerp(ra.CloudsPct, rb.CloudsPct),
		Description:  a.Description,
		IconCode:     a.IconCode,
		Interpolated: true,
	}
}

// readings falls back to the rounded fields for points built without
// provider values.
func readings(p types.ForecastPoint) types.Readings {
	if p.Readings != nil {
		return *p.Readings
	}
	return types.Readings{
		TemperatureC: float64(p.TemperatureC),
		TempMinC:     float64(p.TempMinC),
		TempMaxC:     float64(p.TempMaxC),
		HumidityPct:  float64(p.HumidityPct),
		PressureHPa:  float64(p.PressureHPa),
		CloudsPct:    float64(p.CloudsPct),
	}
}
