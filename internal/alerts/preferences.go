// Package alerts turns a weather snapshot and a user's thresholds into an
// alert decision. Everything here is pure: no I/O, no clock, no logging.
package alerts

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"meteoalert/internal/types"
)

// Defaults applied to every field a user has not set.
const (
	DefaultTemperatureMin        = 0.0
	DefaultTemperatureMax        = 35.0
	DefaultWindSpeedThresholdKmh = 50.0
)

// DefaultPreferences returns the full default threshold set.
func DefaultPreferences() types.AlertPreferences {
	return types.AlertPreferences{
		TemperatureMin:        DefaultTemperatureMin,
		TemperatureMax:        DefaultTemperatureMax,
		WindSpeedThresholdKmh: DefaultWindSpeedThresholdKmh,
		EnableThunderstorm:    true,
		EnableSnow:            true,
		EnableFog:             true,
	}
}

// ResolvePreferences merges stored over the defaults. A nil record yields the
// defaults verbatim.
func ResolvePreferences(stored *types.StoredPreferences) types.AlertPreferences {
	p := DefaultPreferences()
	if stored == nil {
		return p
	}
	if stored.TemperatureMin != nil {
		p.TemperatureMin = *stored.TemperatureMin
	}
	if stored.TemperatureMax != nil {
		p.TemperatureMax = *stored.TemperatureMax
	}
	if stored.WindSpeedThresholdKmh != nil {
		p.WindSpeedThresholdKmh = *stored.WindSpeedThresholdKmh
	}
	if stored.EnableThunderstorm != nil {
		p.EnableThunderstorm = *stored.EnableThunderstorm
	}
	if stored.EnableSnow != nil {
		p.EnableSnow = *stored.EnableSnow
	}
	if stored.EnableFog != nil {
		p.EnableFog = *stored.EnableFog
	}
	return p
}

// Number is a numeric patch field that accepts either a JSON number or a
// numeric string ("12.5"). Parsing is deferred to ValidateUpdate so that a
// malformed value is reported per field instead of failing the whole body.
type Number struct {
	raw string
}

// NumberOf wraps a float as a patch value.
func NumberOf(v float64) *Number {
	return &Number{raw: strconv.FormatFloat(v, 'f', -1, 64)}
}

func (n *Number) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n.raw = s
		return nil
	}
	n.raw = string(b)
	return nil
}

func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(n.raw)), nil
}

// Float parses the raw value.
func (n Number) Float() (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(n.raw), 64)
}

// PreferencesPatch is a partial update. A nil field is absent and keeps the
// stored value; zero and false are real values.
type PreferencesPatch struct {
	TemperatureMin        *Number `json:"temperature_min"`
	TemperatureMax        *Number `json:"temperature_max"`
	WindSpeedThresholdKmh *Number `json:"wind_speed_threshold_kmh"`
	EnableThunderstorm    *bool   `json:"enable_thunderstorm"`
	EnableSnow            *bool   `json:"enable_snow"`
	EnableFog             *bool   `json:"enable_fog"`
}

// thresholdRanges holds the parsed numeric fields of a patch. Range rules
// live in the validate tags; reasons are derived from the same bounds.
type thresholdRanges struct {
	TemperatureMin        *float64 `json:"temperature_min" validate:"omitempty,gte=-50,lte=50"`
	TemperatureMax        *float64 `json:"temperature_max" validate:"omitempty,gte=-50,lte=60"`
	WindSpeedThresholdKmh *float64 `json:"wind_speed_threshold_kmh" validate:"omitempty,gte=0,lte=200"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		return name
	})
	return v
}

// rangeReason renders the bounds of a field's validate tag.
func rangeReason(field string) string {
	t := reflect.TypeOf(thresholdRanges{})
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name != field {
			continue
		}
		var lo, hi string
		for _, rule := range strings.Split(f.Tag.Get("validate"), ",") {
			if v, ok := strings.CutPrefix(rule, "gte="); ok {
				lo = v
			}
			if v, ok := strings.CutPrefix(rule, "lte="); ok {
				hi = v
			}
		}
		return fmt.Sprintf("must be between %s and %s", lo, hi)
	}
	return "out of range"
}

// ValidateUpdate checks patch and merges it over current, then over the
// defaults. Every invalid field is reported in a single
// validation_threshold_out_of_range error; nothing is merged in that case.
func ValidateUpdate(current *types.StoredPreferences, patch PreferencesPatch) (types.AlertPreferences, error) {
	var parsed thresholdRanges
	numeric := []struct {
		name string
		in   *Number
		out  **float64
	}{
		{"temperature_min", patch.TemperatureMin, &parsed.TemperatureMin},
		{"temperature_max", patch.TemperatureMax, &parsed.TemperatureMax},
		{"wind_speed_threshold_kmh", patch.WindSpeedThresholdKmh, &parsed.WindSpeedThresholdKmh},
	}

	reasons := make(map[string]string)
	for _, f := range numeric {
		if f.in == nil {
			continue
		}
		v, err := f.in.Float()
		if err != nil {
			reasons[f.name] = "must be a number"
			continue
		}
		*f.out = &v
	}

	if err := validate.Struct(parsed); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return types.AlertPreferences{}, err
		}
		for _, fe := range verrs {
			reasons[fe.Field()] = rangeReason(fe.Field())
		}
	}

	if len(reasons) > 0 {
		fields := make([]types.FieldError, 0, len(reasons))
		for _, f := range numeric {
			if r, ok := reasons[f.name]; ok {
				fields = append(fields, types.FieldError{Field: f.name, Reason: r})
			}
		}
		return types.AlertPreferences{}, types.NewValidationError(
			types.ErrCodeValidationThresholdRange, "invalid alert preferences", fields)
	}

	merged := ResolvePreferences(current)
	if parsed.TemperatureMin != nil {
		merged.TemperatureMin = *parsed.TemperatureMin
	}
	if parsed.TemperatureMax != nil {
		merged.TemperatureMax = *parsed.TemperatureMax
	}
	if parsed.WindSpeedThresholdKmh != nil {
		merged.WindSpeedThresholdKmh = *parsed.WindSpeedThresholdKmh
	}
	if patch.EnableThunderstorm != nil {
		merged.EnableThunderstorm = *patch.EnableThunderstorm
	}
	if patch.EnableSnow != nil {
		merged.EnableSnow = *patch.EnableSnow
	}
	if patch.EnableFog != nil {
		merged.EnableFog = *patch.EnableFog
	}
	return merged, nil
}
