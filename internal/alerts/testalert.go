package alerts

import (
	"slices"
	"strings"

	"meteoalert/internal/types"
)

// TestAlertKind selects a fixture scenario. Unknown kinds fall back to the
// generic scenario.
type TestAlertKind string

const (
	TestAlertCold     TestAlertKind = "cold"
	TestAlertHot      TestAlertKind = "hot"
	TestAlertWind     TestAlertKind = "wind"
	TestAlertStorm    TestAlertKind = "storm"
	TestAlertSnow     TestAlertKind = "snow"
	TestAlertFog      TestAlertKind = "fog"
	TestAlertMultiple TestAlertKind = "multiple"
)

// Fixture messages. These are fixed literals, not threshold templates, so the
// UI renders the same text whatever the user configured.
const (
	testMsgCold    = "⚠️ Temperatura sotto zero - Rischio ghiaccio"
	testMsgHot     = "⚠️ Temperatura molto elevata - Evitare esposizione prolungata"
	testMsgWind    = "💨 Vento forte - Prestare attenzione"
	testMsgGeneric = "🧪 Allerta di test generica"
)

// GenerateTestAlert overlays a fixed scenario on a copy of base. base is not
// modified. Every scenario marks the result as alerting.
func GenerateTestAlert(kind TestAlertKind, base types.WeatherSnapshot) types.WeatherSnapshot {
	s := base
	s.ConditionCodes = slices.Clone(base.ConditionCodes)
	s.HourlyForecast = slices.Clone(base.HourlyForecast)
	s.HasAlert = true

	var msg string
	switch kind {
	case TestAlertCold:
		s.TemperatureC, s.FeelsLikeC = -5, -8
		s.Description = "cielo sereno (TEST)"
		msg = testMsgCold
	case TestAlertHot:
		s.TemperatureC, s.FeelsLikeC = 38, 42
		s.Description = "cielo sereno (TEST)"
		msg = testMsgHot
	case TestAlertWind:
		s.WindSpeedMs = 18.5
		s.Description = "vento forte (TEST)"
		msg = testMsgWind
	case TestAlertStorm:
		s.IconCode = "11d"
		s.Description = "temporale (TEST)"
		s.ConditionCodes = []types.Condition{types.ConditionThunderstorm}
		msg = msgStorm
	case TestAlertSnow:
		s.TemperatureC = -2
		s.IconCode = "13d"
		s.Description = "neve (TEST)"
		s.ConditionCodes = []types.Condition{types.ConditionSnow}
		msg = msgSnow
	case TestAlertFog:
		s.IconCode = "50d"
		s.Description = "nebbia (TEST)"
		s.ConditionCodes = []types.Condition{types.ConditionFog}
		msg = msgFog
	case TestAlertMultiple:
		s.TemperatureC = -3
		s.WindSpeedMs = 16
		s.IconCode = "13d"
		s.Description = "condizioni estreme (TEST)"
		s.ConditionCodes = []types.Condition{types.ConditionSnow}
		msg = strings.Join([]string{testMsgCold, testMsgWind, msgSnow}, MessageSeparator)
	default:
		s.Description = "test generico (TEST)"
		msg = testMsgGeneric
	}
	s.AlertMessage = &msg
	return s
}
