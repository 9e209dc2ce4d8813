package types

import "time"

// User is a registered account. AlertPreferences and PushSubscription are
// mutated independently of the profile fields.
type User struct {
	ID               string             `json:"id" db:"id"`
	Email            string             `json:"email" db:"email"`
	PasswordHash     string             `json:"-" db:"password_hash"`
	FirstName        string             `json:"first_name" db:"first_name"`
	LastName         string             `json:"last_name" db:"last_name"`
	Age              int                `json:"age" db:"age"`
	Location         string             `json:"location" db:"location"`
	AlertPreferences *StoredPreferences `json:"alert_preferences,omitempty" db:"alert_preferences"`
	PushSubscription *PushSubscription  `json:"-" db:"push_subscription"`
	CreatedAt        time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at" db:"updated_at"`
}

// HasPushSubscription reports whether the user can receive push notifications.
func (u *User) HasPushSubscription() bool {
	return u != nil && u.PushSubscription != nil && u.PushSubscription.Endpoint != ""
}

// ProfileUpdate carries the editable profile fields.
type ProfileUpdate struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Age       int    `json:"age" validate:"gte=0,lte=150"`
	Location  string `json:"location" validate:"required,max=200"`
}

// AlertPreferences is the fully resolved set of thresholds used for
// evaluation. Every field is always populated.
type AlertPreferences struct {
	TemperatureMin        float64 `json:"temperature_min"`
	TemperatureMax        float64 `json:"temperature_max"`
	WindSpeedThresholdKmh float64 `json:"wind_speed_threshold_kmh"`
	EnableThunderstorm    bool    `json:"enable_thunderstorm"`
	EnableSnow            bool    `json:"enable_snow"`
	EnableFog             bool    `json:"enable_fog"`
}

// StoredPreferences is the persisted shape of a user's preferences. Rows
// written by older clients may carry only some fields, so every field is
// optional and resolved over the defaults at read time.
type StoredPreferences struct {
	TemperatureMin        *float64 `json:"temperature_min,omitempty"`
	TemperatureMax        *float64 `json:"temperature_max,omitempty"`
	WindSpeedThresholdKmh *float64 `json:"wind_speed_threshold_kmh,omitempty"`
	EnableThunderstorm    *bool    `json:"enable_thunderstorm,omitempty"`
	EnableSnow            *bool    `json:"enable_snow,omitempty"`
	EnableFog             *bool    `json:"enable_fog,omitempty"`
}

// Stored converts a resolved preference set into its persisted shape.
func (p AlertPreferences) Stored() *StoredPreferences {
	return &StoredPreferences{
		TemperatureMin:        &p.TemperatureMin,
		TemperatureMax:        &p.TemperatureMax,
		WindSpeedThresholdKmh: &p.WindSpeedThresholdKmh,
		EnableThunderstorm:    &p.EnableThunderstorm,
		EnableSnow:            &p.EnableSnow,
		EnableFog:             &p.EnableFog,
	}
}

// PushSubscription is the browser Web Push subscription as produced by
// PushManager.subscribe(). The server treats it as opaque apart from the
// endpoint and keys it hands to the push transport.
type PushSubscription struct {
	Endpoint       string               `json:"endpoint" validate:"required,url"`
	ExpirationTime *int64               `json:"expirationTime,omitempty"`
	Keys           PushSubscriptionKeys `json:"keys" validate:"required"`
}

// PushSubscriptionKeys holds the client's ECDH public key and auth secret.
type PushSubscriptionKeys struct {
	P256dh string `json:"p256dh" validate:"required"`
	Auth   string `json:"auth" validate:"required"`
}
