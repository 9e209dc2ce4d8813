package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppErrorFormat(t *testing.T) {
	plain := NewAppError(ErrCodeNotFoundUser, "user not found", nil)
	if got, want := plain.Error(), "not_found_user: user not found"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	wrapped := NewAppError(ErrCodeInternalDB, "query failed", errors.New("conn reset"))
	if got, want := wrapped.Error(), "internal_database_error: query failed: conn reset"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestAppErrorChain(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	appErr := NewAppError(ErrCodeUpstreamWeather, "weather provider unavailable", cause)
	wrapped := fmt.Errorf("fetch current weather: %w", appErr)

	if !errors.Is(wrapped, cause) {
		t.Error("errors.Is should reach the cause through the AppError")
	}

	var target *AppError
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As should find the AppError")
	}
	if target.Code != ErrCodeUpstreamWeather {
		t.Errorf("Code = %q", target.Code)
	}
	if !HasCode(wrapped, ErrCodeUpstreamWeather) {
		t.Error("HasCode should match the wrapped code")
	}
	if HasCode(wrapped, ErrCodeNotFoundLocation) {
		t.Error("HasCode should not match a different code")
	}
	if HasCode(cause, ErrCodeUpstreamWeather) {
		t.Error("HasCode should be false for plain errors")
	}
}

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationThresholdRange, http.StatusBadRequest},
		{ErrCodeValidationInvalidJSON, http.StatusBadRequest},
		{ErrCodeAuthTokenInvalid, http.StatusUnauthorized},
		{ErrCodeAuthInvalidCreds, http.StatusUnauthorized},
		{ErrCodeNotFoundUser, http.StatusNotFound},
		{ErrCodeNotFoundLocation, http.StatusNotFound},
		{ErrCodeConflictEmail, http.StatusConflict},
		{ErrCodeUpstreamWeather, http.StatusBadGateway},
		{ErrCodeUpstreamWeatherInvalid, http.StatusBadGateway},
		{ErrCodeUpstreamRateLimited, http.StatusServiceUnavailable},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrorCode("something_else"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			if got := tt.code.HTTPStatus(); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError(ErrCodeValidationThresholdRange, "invalid alert preferences", []FieldError{
		{Field: "temperature_min", Reason: "must be between -50 and 50"},
		{Field: "wind_speed_threshold_kmh", Reason: "must be between 0 and 200"},
	})

	fields, ok := err.Details["errors"].([]FieldError)
	if !ok {
		t.Fatalf("details[errors] has type %T", err.Details["errors"])
	}
	if len(fields) != 2 {
		t.Fatalf("expected 2 field errors, got %d", len(fields))
	}
	if fields[0].Field != "temperature_min" {
		t.Errorf("first field = %q", fields[0].Field)
	}
	if err.HTTPStatus() != http.StatusBadRequest {
		t.Errorf("status = %d", err.HTTPStatus())
	}
}
