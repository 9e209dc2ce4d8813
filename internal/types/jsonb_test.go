package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoredPreferences_ScanPartialRow(t *testing.T) {
	var p StoredPreferences
	require.NoError(t, p.Scan([]byte(`{"temperature_min": -3}`)))

	require.NotNil(t, p.TemperatureMin)
	assert.Equal(t, -3.0, *p.TemperatureMin)
	assert.Nil(t, p.TemperatureMax)
	assert.Nil(t, p.EnableFog)
}

func TestStoredPreferences_ScanStringAndNil(t *testing.T) {
	var p StoredPreferences
	require.NoError(t, p.Scan(`{"enable_snow": false}`))
	require.NotNil(t, p.EnableSnow)
	assert.False(t, *p.EnableSnow)

	var empty StoredPreferences
	require.NoError(t, empty.Scan(nil))
	assert.Equal(t, StoredPreferences{}, empty)
}

func TestStoredPreferences_ScanUnsupportedType(t *testing.T) {
	var p StoredPreferences
	err := p.Scan(42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported scan type int")
}

func TestStoredPreferences_ValueRoundTrip(t *testing.T) {
	in := AlertPreferences{
		TemperatureMin:        0,
		TemperatureMax:        35,
		WindSpeedThresholdKmh: 50,
		EnableThunderstorm:    true,
		EnableSnow:            false,
		EnableFog:             true,
	}.Stored()

	v, err := in.Value()
	require.NoError(t, err)

	var out StoredPreferences
	require.NoError(t, out.Scan(v))

	// Zero and false survive because presence is pointer based.
	require.NotNil(t, out.TemperatureMin)
	assert.Equal(t, 0.0, *out.TemperatureMin)
	require.NotNil(t, out.EnableSnow)
	assert.False(t, *out.EnableSnow)
}

func TestPushSubscription_ValueRoundTrip(t *testing.T) {
	in := PushSubscription{
		Endpoint: "https://fcm.googleapis.com/fcm/send/abc",
		Keys:     PushSubscriptionKeys{P256dh: "BNc...", Auth: "tBH..."},
	}
	v, err := in.Value()
	require.NoError(t, err)
	assert.JSONEq(t, `{"endpoint":"https://fcm.googleapis.com/fcm/send/abc","keys":{"p256dh":"BNc...","auth":"tBH..."}}`, string(v.([]byte)))

	var out PushSubscription
	require.NoError(t, out.Scan(v))
	assert.Equal(t, in, out)
}
