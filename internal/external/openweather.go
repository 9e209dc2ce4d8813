package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"meteoalert/internal/types"
)

// The provider payloads below use pointers for numeric fields so a missing
// field can be told apart from a zero reading. Shape checks happen in the
// normalizer.

// MainReadings is the "main" block of a provider observation.
type MainReadings struct {
	Temp      *float64 `json:"temp" validate:"required"`
	FeelsLike *float64 `json:"feels_like" validate:"required"`
	TempMin   *float64 `json:"temp_min"`
	TempMax   *float64 `json:"temp_max"`
	Humidity  *float64 `json:"humidity" validate:"required"`
	Pressure  *float64 `json:"pressure" validate:"required"`
}

// WeatherGroup is one entry of the provider "weather" array.
type WeatherGroup struct {
	Main        string `json:"main" validate:"required"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Wind is the provider wind block, speed in m/s.
type Wind struct {
	Speed *float64 `json:"speed" validate:"required"`
}

// Clouds is the provider cloud cover block, in percent.
type Clouds struct {
	All *float64 `json:"all" validate:"required"`
}

// CurrentWeatherResponse is the /weather payload.
type CurrentWeatherResponse struct {
	Name string `json:"name" validate:"required"`
	Sys  struct {
		Country string `json:"country"`
	} `json:"sys"`
	Main     MainReadings   `json:"main"`
	Weather  []WeatherGroup `json:"weather" validate:"required,min=1,dive"`
	Wind     Wind           `json:"wind"`
	Clouds   Clouds         `json:"clouds"`
	Dt       int64          `json:"dt"`
	Timezone int            `json:"timezone"`
}

// ForecastEntry is one 3-hour step of the /forecast payload.
type ForecastEntry struct {
	Dt      int64          `json:"dt" validate:"required"`
	Main    MainReadings   `json:"main"`
	Weather []WeatherGroup `json:"weather" validate:"required,min=1,dive"`
	Wind    Wind           `json:"wind"`
	Clouds  Clouds         `json:"clouds"`
}

// ForecastResponse is the /forecast payload.
type ForecastResponse struct {
	List []ForecastEntry `json:"list" validate:"dive"`
	City struct {
		Name     string `json:"name"`
		Country  string `json:"country"`
		Timezone int    `json:"timezone"`
	} `json:"city"`
}

// OpenWeatherClient fetches current conditions and the 5-day/3-hour forecast
// for a named location, in metric units.
type OpenWeatherClient struct {
	base     *BaseClient
	baseURL  string
	apiKey   types.SecretString
	language string
}

// NewOpenWeatherClient builds a client against baseURL (no trailing slash).
func NewOpenWeatherClient(base *BaseClient, baseURL string, apiKey types.SecretString, language string) *OpenWeatherClient {
	return &OpenWeatherClient{
		base:     base,
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		language: language,
	}
}

// GetCurrent returns the current observation for location.
func (c *OpenWeatherClient) GetCurrent(ctx context.Context, location string) (*CurrentWeatherResponse, error) {
	var out CurrentWeatherResponse
	if err := c.get(ctx, "/weather", location, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetForecast returns the coarse forecast series for location.
func (c *OpenWeatherClient) GetForecast(ctx context.Context, location string) (*ForecastResponse, error) {
	var out ForecastResponse
	if err := c.get(ctx, "/forecast", location, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *OpenWeatherClient) get(ctx context.Context, path, location string, dst any) error {
	q := url.Values{}
	q.Set("q", location)
	q.Set("appid", c.apiKey.Unmask())
	q.Set("units", "metric")
	if c.language != "" {
		q.Set("lang", c.language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build weather request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return types.NewAppError(types.ErrCodeUpstreamWeather, "weather provider unavailable", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return types.NewAppError(types.ErrCodeNotFoundLocation, fmt.Sprintf("location %q not found", location), nil)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		// Drain a bounded amount so the provider's reason ends up in logs.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return types.NewAppError(types.ErrCodeUpstreamWeather,
			fmt.Sprintf("weather provider returned %d", resp.StatusCode),
			fmt.Errorf("%s", strings.TrimSpace(string(snippet))))
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(dst); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamWeatherInvalid, "malformed weather provider response", err)
	}
	return nil
}
