package alerts

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meteoalert/internal/types"
)

func ptr[T any](v T) *T { return &v }

func fieldErrors(t *testing.T, err error) []types.FieldError {
	t.Helper()
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeValidationThresholdRange, appErr.Code)
	fields, ok := appErr.Details["errors"].([]types.FieldError)
	require.True(t, ok, "details[errors] has type %T", appErr.Details["errors"])
	return fields
}

func TestResolvePreferences_NilYieldsDefaults(t *testing.T) {
	got := ResolvePreferences(nil)
	assert.Equal(t, types.AlertPreferences{
		TemperatureMin:        0,
		TemperatureMax:        35,
		WindSpeedThresholdKmh: 50,
		EnableThunderstorm:    true,
		EnableSnow:            true,
		EnableFog:             true,
	}, got)
}

func TestResolvePreferences_PartialRecord(t *testing.T) {
	got := ResolvePreferences(&types.StoredPreferences{
		TemperatureMax: ptr(30.0),
		EnableFog:      ptr(false),
	})

	assert.Equal(t, 0.0, got.TemperatureMin)
	assert.Equal(t, 30.0, got.TemperatureMax)
	assert.Equal(t, 50.0, got.WindSpeedThresholdKmh)
	assert.True(t, got.EnableSnow)
	assert.False(t, got.EnableFog)
}

func TestResolvePreferences_Idempotent(t *testing.T) {
	inputs := []*types.StoredPreferences{
		nil,
		{},
		{TemperatureMin: ptr(-10.0)},
		{WindSpeedThresholdKmh: ptr(0.0), EnableThunderstorm: ptr(false)},
		DefaultPreferences().Stored(),
	}
	for _, in := range inputs {
		once := ResolvePreferences(in)
		twice := ResolvePreferences(once.Stored())
		assert.Equal(t, once, twice)
	}
}

func TestValidateUpdate_MergesOverCurrent(t *testing.T) {
	current := &types.StoredPreferences{TemperatureMin: ptr(-5.0), EnableSnow: ptr(false)}
	patch := PreferencesPatch{TemperatureMax: NumberOf(30)}

	got, err := ValidateUpdate(current, patch)
	require.NoError(t, err)

	assert.Equal(t, -5.0, got.TemperatureMin)
	assert.Equal(t, 30.0, got.TemperatureMax)
	assert.Equal(t, 50.0, got.WindSpeedThresholdKmh)
	assert.False(t, got.EnableSnow)
	assert.True(t, got.EnableFog)
}

func TestValidateUpdate_ZeroAndFalseAreValues(t *testing.T) {
	current := &types.StoredPreferences{TemperatureMin: ptr(-5.0)}
	patch := PreferencesPatch{
		TemperatureMin:        NumberOf(0),
		WindSpeedThresholdKmh: NumberOf(0),
		EnableThunderstorm:    ptr(false),
	}

	got, err := ValidateUpdate(current, patch)
	require.NoError(t, err)

	assert.Equal(t, 0.0, got.TemperatureMin)
	assert.Equal(t, 0.0, got.WindSpeedThresholdKmh)
	assert.False(t, got.EnableThunderstorm)
}

func TestValidateUpdate_RejectsOutOfRange(t *testing.T) {
	tests := []struct {
		name   string
		patch  PreferencesPatch
		field  string
		reason string
	}{
		{"min above 50", PreferencesPatch{TemperatureMin: NumberOf(51)}, "temperature_min", "must be between -50 and 50"},
		{"min below -50", PreferencesPatch{TemperatureMin: NumberOf(-50.5)}, "temperature_min", "must be between -50 and 50"},
		{"max above 60", PreferencesPatch{TemperatureMax: NumberOf(61)}, "temperature_max", "must be between -50 and 60"},
		{"negative wind", PreferencesPatch{WindSpeedThresholdKmh: NumberOf(-1)}, "wind_speed_threshold_kmh", "must be between 0 and 200"},
		{"wind above 200", PreferencesPatch{WindSpeedThresholdKmh: NumberOf(200.1)}, "wind_speed_threshold_kmh", "must be between 0 and 200"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateUpdate(nil, tt.patch)
			fields := fieldErrors(t, err)
			require.Len(t, fields, 1)
			assert.Equal(t, tt.field, fields[0].Field)
			assert.Equal(t, tt.reason, fields[0].Reason)
		})
	}
}

func TestValidateUpdate_BoundsAreInclusive(t *testing.T) {
	got, err := ValidateUpdate(nil, PreferencesPatch{
		TemperatureMin:        NumberOf(-50),
		TemperatureMax:        NumberOf(60),
		WindSpeedThresholdKmh: NumberOf(200),
	})
	require.NoError(t, err)
	assert.Equal(t, -50.0, got.TemperatureMin)
	assert.Equal(t, 60.0, got.TemperatureMax)
	assert.Equal(t, 200.0, got.WindSpeedThresholdKmh)
}

func TestValidateUpdate_AggregatesAllFields(t *testing.T) {
	var patch PreferencesPatch
	require.NoError(t, json.Unmarshal([]byte(`{
		"temperature_min": 51,
		"temperature_max": "hot",
		"wind_speed_threshold_kmh": -1
	}`), &patch))

	_, err := ValidateUpdate(nil, patch)
	fields := fieldErrors(t, err)

	assert.Equal(t, []types.FieldError{
		{Field: "temperature_min", Reason: "must be between -50 and 50"},
		{Field: "temperature_max", Reason: "must be a number"},
		{Field: "wind_speed_threshold_kmh", Reason: "must be between 0 and 200"},
	}, fields)
}

func TestPreferencesPatch_DecodesNumericStrings(t *testing.T) {
	var patch PreferencesPatch
	require.NoError(t, json.Unmarshal([]byte(`{"temperature_min":"-2.5","temperature_max":30,"enable_fog":false}`), &patch))

	got, err := ValidateUpdate(nil, patch)
	require.NoError(t, err)

	assert.Equal(t, -2.5, got.TemperatureMin)
	assert.Equal(t, 30.0, got.TemperatureMax)
	assert.False(t, got.EnableFog)
	assert.True(t, got.EnableSnow)
}

func TestPreferencesPatch_NullIsAbsent(t *testing.T) {
	var patch PreferencesPatch
	require.NoError(t, json.Unmarshal([]byte(`{"temperature_min":null}`), &patch))
	assert.Nil(t, patch.TemperatureMin)

	got, err := ValidateUpdate(&types.StoredPreferences{TemperatureMin: ptr(-7.0)}, patch)
	require.NoError(t, err)
	assert.Equal(t, -7.0, got.TemperatureMin)
}
