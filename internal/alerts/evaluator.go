package alerts

import (
	"fmt"
	"strconv"
	"strings"

	"meteoalert/internal/types"
)

// Clause names one independent alert condition.
type Clause string

const (
	ClauseCold  Clause = "cold"
	ClauseHot   Clause = "hot"
	ClauseWind  Clause = "wind"
	ClauseStorm Clause = "storm"
	ClauseSnow  Clause = "snow"
	ClauseFog   Clause = "fog"
)

// MessageSeparator joins clause messages.
const MessageSeparator = " | "

// kmhPerMs converts m/s to km/h.
const kmhPerMs = 3.6

const (
	msgStorm = "⛈️ Temporale in corso - Cercare riparo"
	msgSnow  = "🌨️ Nevicate - Prestare attenzione alla viabilità"
	msgFog   = "🌫️ Nebbia - Ridotta visibilità"
)

// Evaluation is the outcome of checking one snapshot against one preference set.
type Evaluation struct {
	Triggered bool
	Message   *string
	Clauses   []Clause
}

// Evaluate applies every clause to snapshot. Messages appear in the fixed
// order cold, hot, wind, storm, snow, fog. Temperatures are compared using the
// rounded display value carried by the snapshot; comparisons are strict.
func Evaluate(snapshot *types.WeatherSnapshot, prefs types.AlertPreferences) Evaluation {
	temp := float64(snapshot.TemperatureC)

	var clauses []Clause
	var parts []string
	add := func(c Clause, msg string) {
		clauses = append(clauses, c)
		parts = append(parts, msg)
	}

	if temp < prefs.TemperatureMin {
		add(ClauseCold, fmt.Sprintf("⚠️ Temperatura sotto %s°C - Rischio ghiaccio", formatThreshold(prefs.TemperatureMin)))
	}
	if temp > prefs.TemperatureMax {
		add(ClauseHot, fmt.Sprintf("⚠️ Temperatura sopra %s°C - Evitare esposizione prolungata", formatThreshold(prefs.TemperatureMax)))
	}
	if snapshot.WindSpeedMs > prefs.WindSpeedThresholdKmh/kmhPerMs {
		add(ClauseWind, fmt.Sprintf("💨 Vento oltre %s km/h - Prestare attenzione", formatThreshold(prefs.WindSpeedThresholdKmh)))
	}
	if prefs.EnableThunderstorm && snapshot.HasCondition(types.ConditionThunderstorm) {
		add(ClauseStorm, msgStorm)
	}
	if prefs.EnableSnow && snapshot.HasCondition(types.ConditionSnow) {
		add(ClauseSnow, msgSnow)
	}
	if prefs.EnableFog && (snapshot.HasCondition(types.ConditionMist) || snapshot.HasCondition(types.ConditionFog)) {
		add(ClauseFog, msgFog)
	}

	if len(parts) == 0 {
		return Evaluation{}
	}
	msg := strings.Join(parts, MessageSeparator)
	return Evaluation{Triggered: true, Message: &msg, Clauses: clauses}
}

// Apply evaluates snapshot and stores the result on it.
func Apply(snapshot *types.WeatherSnapshot, prefs types.AlertPreferences) Evaluation {
	ev := Evaluate(snapshot, prefs)
	snapshot.HasAlert = ev.Triggered
	snapshot.AlertMessage = ev.Message
	return ev
}

// formatThreshold prints the shortest exact decimal form: 0, 35, -2.5.
func formatThreshold(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
