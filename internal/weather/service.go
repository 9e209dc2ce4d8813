package weather

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"meteoalert/internal/alerts"
	"meteoalert/internal/external"
	"meteoalert/internal/notifications/push"
	"meteoalert/internal/types"
)

// Provider fetches raw provider payloads for a named location.
type Provider interface {
	GetCurrent(ctx context.Context, location string) (*external.CurrentWeatherResponse, error)
	GetForecast(ctx context.Context, location string) (*external.ForecastResponse, error)
}

// UserStore is the subset of the user repository the service needs.
type UserStore interface {
	GetByID(ctx context.Context, id string) (*types.User, error)
	UpdateAlertPreferences(ctx context.Context, id string, prefs *types.StoredPreferences) error
}

// Dispatcher turns an alerting snapshot into a push notification.
type Dispatcher interface {
	Dispatch(ctx context.Context, snapshot *types.WeatherSnapshot, user *types.User) push.Result
}

// Metrics records provider latency and evaluation outcomes.
type Metrics interface {
	RecordProviderCall(op, outcome string, d time.Duration)
	RecordEvaluation(clauses []alerts.Clause)
}

// DefaultDispatchTimeout bounds one background push delivery.
const DefaultDispatchTimeout = 15 * time.Second

// Provider operation labels.
const (
	opCurrent  = "current"
	opForecast = "forecast"
)

// Service is the weather read path: fetch, normalize, evaluate, interpolate
// and, for a user's own location, dispatch.
type Service struct {
	provider   Provider
	users      UserStore
	dispatcher Dispatcher
	metrics    Metrics
	clock      clockwork.Clock
	logger     *slog.Logger

	dispatchTimeout time.Duration
	pending         sync.WaitGroup
}

// ServiceOption customizes a Service.
type ServiceOption func(*Service)

// WithClock overrides the clock stamping snapshot observation times.
func WithClock(c clockwork.Clock) ServiceOption {
	return func(s *Service) { s.clock = c }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m Metrics) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

// WithDispatchTimeout overrides DefaultDispatchTimeout.
func WithDispatchTimeout(d time.Duration) ServiceOption {
	return func(s *Service) { s.dispatchTimeout = d }
}

// NewService creates a Service. A nil logger falls back to slog.Default.
func NewService(provider Provider, users UserStore, dispatcher Dispatcher, logger *slog.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		provider:   provider,
		users:      users,
		dispatcher: dispatcher,
		clock:      clockwork.NewRealClock(),
		logger:     logger,

		dispatchTimeout: DefaultDispatchTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Wait blocks until background notifications started so far have finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

// GetCurrentWeatherForUser reads the weather at the user's stored location,
// evaluates it against the user's preferences and notifies the user when an
// alert triggers. The notification is sent in the background; the snapshot
// is returned without waiting for the push service.
func (s *Service) GetCurrentWeatherForUser(ctx context.Context, userID string) (*types.WeatherSnapshot, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	snapshot, err := s.read(ctx, user.Location, alerts.ResolvePreferences(user.AlertPreferences))
	if err != nil {
		return nil, err
	}

	// A cancelled caller gets no notification.
	if ctx.Err() == nil && s.dispatcher != nil {
		s.dispatch(ctx, snapshot, user)
	}
	return snapshot, nil
}

// dispatch delivers outside the request's lifetime, bounded by
// dispatchTimeout. The snapshot must not be mutated afterwards.
func (s *Service) dispatch(ctx context.Context, snapshot *types.WeatherSnapshot, user *types.User) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.dispatchTimeout)
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		defer cancel()
		s.dispatcher.Dispatch(dctx, snapshot, user)
	}()
}

// GetWeatherForLocation reads the weather for an arbitrary location using the
// default preferences. It never notifies.
func (s *Service) GetWeatherForLocation(ctx context.Context, location string) (*types.WeatherSnapshot, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, types.NewValidationError(types.ErrCodeValidationMissingField, "location is required",
			[]types.FieldError{{Field: "city", Reason: "is required"}})
	}
	return s.read(ctx, location, alerts.DefaultPreferences())
}

// GetAlertPreferences returns the user's effective preferences.
func (s *Service) GetAlertPreferences(ctx context.Context, userID string) (types.AlertPreferences, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return types.AlertPreferences{}, err
	}
	return alerts.ResolvePreferences(user.AlertPreferences), nil
}

// UpdateAlertPreferences validates patch against the stored preferences and
// persists the merged result. Nothing is written when validation fails.
func (s *Service) UpdateAlertPreferences(ctx context.Context, userID string, patch alerts.PreferencesPatch) (types.AlertPreferences, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return types.AlertPreferences{}, err
	}

	merged, err := alerts.ValidateUpdate(user.AlertPreferences, patch)
	if err != nil {
		return types.AlertPreferences{}, err
	}

	if err := s.users.UpdateAlertPreferences(ctx, userID, merged.Stored()); err != nil {
		return types.AlertPreferences{}, err
	}
	s.logger.InfoContext(ctx, "alert preferences updated", "user_id", userID)
	return merged, nil
}

// TestAlertForUser reads the user's real weather and overlays the kind
// scenario on it. It never notifies.
func (s *Service) TestAlertForUser(ctx context.Context, userID string, kind alerts.TestAlertKind) (*types.WeatherSnapshot, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	base, err := s.read(ctx, user.Location, alerts.ResolvePreferences(user.AlertPreferences))
	if err != nil {
		return nil, err
	}
	out := alerts.GenerateTestAlert(kind, *base)
	return &out, nil
}

func (s *Service) loadUser(ctx context.Context, userID string) (*types.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(user.Location) == "" {
		return nil, types.NewValidationError(types.ErrCodeValidationMissingField, "user has no location configured",
			[]types.FieldError{{Field: "location", Reason: "is required"}})
	}
	return user, nil
}

// read fetches current conditions and the forecast concurrently. A forecast
// failure degrades to an empty series; a current-weather failure aborts.
func (s *Service) read(ctx context.Context, location string, prefs types.AlertPreferences) (*types.WeatherSnapshot, error) {
	var (
		current  *external.CurrentWeatherResponse
		forecast *external.ForecastResponse
		fcErr    error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := s.clock.Now()
		resp, err := s.provider.GetCurrent(gctx, location)
		s.recordCall(opCurrent, err, s.clock.Since(start))
		current = resp
		return err
	})
	g.Go(func() error {
		start := s.clock.Now()
		resp, err := s.provider.GetForecast(gctx, location)
		s.recordCall(opForecast, err, s.clock.Since(start))
		forecast, fcErr = resp, err
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snapshot, err := Normalize(current, s.clock.Now())
	if err != nil {
		return nil, err
	}

	ev := alerts.Apply(snapshot, prefs)
	if s.metrics != nil {
		s.metrics.RecordEvaluation(ev.Clauses)
	}

	snapshot.HourlyForecast = s.hourly(ctx, location, forecast, fcErr)
	return snapshot, nil
}

func (s *Service) hourly(ctx context.Context, location string, resp *external.ForecastResponse, fetchErr error) []types.ForecastPoint {
	if fetchErr != nil {
		s.logger.WarnContext(ctx, "forecast unavailable, continuing without it", "location", location, "error", fetchErr)
		return []types.ForecastPoint{}
	}
	coarse, loc, err := NormalizeForecast(resp)
	if err != nil {
		s.logger.WarnContext(ctx, "forecast payload rejected", "location", location, "error", err)
		return []types.ForecastPoint{}
	}
	return Interpolate(coarse, loc)
}

func (s *Service) recordCall(op string, err error, d time.Duration) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.metrics.RecordProviderCall(op, outcome, d)
}
