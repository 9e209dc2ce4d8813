package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meteoalert/internal/alerts"
	"meteoalert/internal/types"
)

type mockProfileRepo struct {
	getByIDFn       func(ctx context.Context, id string) (*types.User, error)
	updateProfileFn func(ctx context.Context, id string, p types.ProfileUpdate) (*types.User, error)
	deleteFn        func(ctx context.Context, id string) error

	updateCalls int
}

func (m *mockProfileRepo) GetByID(ctx context.Context, id string) (*types.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
}

func (m *mockProfileRepo) UpdateProfile(ctx context.Context, id string, p types.ProfileUpdate) (*types.User, error) {
	m.updateCalls++
	return m.updateProfileFn(ctx, id, p)
}

func (m *mockProfileRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockPreferences struct {
	getFn    func(ctx context.Context, userID string) (types.AlertPreferences, error)
	updateFn func(ctx context.Context, userID string, patch alerts.PreferencesPatch) (types.AlertPreferences, error)
}

func (m *mockPreferences) GetAlertPreferences(ctx context.Context, userID string) (types.AlertPreferences, error) {
	return m.getFn(ctx, userID)
}

func (m *mockPreferences) UpdateAlertPreferences(ctx context.Context, userID string, patch alerts.PreferencesPatch) (types.AlertPreferences, error) {
	return m.updateFn(ctx, userID, patch)
}

func newUserHandler(repo *mockProfileRepo, prefs *mockPreferences) *UserHandler {
	return NewUserHandler(repo, prefs, nil, discardLogger())
}

func TestGetProfile_Success(t *testing.T) {
	repo := &mockProfileRepo{getByIDFn: func(_ context.Context, id string) (*types.User, error) {
		return &types.User{ID: id, Email: "mario.rossi@example.com", PasswordHash: "$2a$12$secret", Location: "Roma"}, nil
	}}
	h := newUserHandler(repo, nil)

	rec := serve(h.RegisterRoutes, authed(newRequest(http.MethodGet, "/profile", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	var user types.User
	decodeData(t, rec, &user)
	assert.Equal(t, testUserID, user.ID)
	assert.Equal(t, "Roma", user.Location)
	assert.NotContains(t, rec.Body.String(), "$2a$12$secret")
}

func TestGetProfile_NotFound(t *testing.T) {
	h := newUserHandler(&mockProfileRepo{}, nil)

	rec := serve(h.RegisterRoutes, authed(newRequest(http.MethodGet, "/profile", nil)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, string(types.ErrCodeNotFoundUser), decodeError(t, rec).Code)
}

func TestGetProfile_NoActor(t *testing.T) {
	h := newUserHandler(&mockProfileRepo{}, nil)

	rec := serve(h.RegisterRoutes, newRequest(http.MethodGet, "/profile", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, string(types.ErrCodeAuthTokenMissing), decodeError(t, rec).Code)
}

func TestUpdateProfile_TrimsAndPersists(t *testing.T) {
	repo := &mockProfileRepo{updateProfileFn: func(_ context.Context, id string, p types.ProfileUpdate) (*types.User, error) {
		return &types.User{ID: id, FirstName: p.FirstName, LastName: p.LastName, Age: p.Age, Location: p.Location}, nil
	}}
	h := newUserHandler(repo, nil)

	rec := serve(h.RegisterRoutes, authed(newRequest(http.MethodPut, "/profile", types.ProfileUpdate{
		FirstName: "  Mario ",
		LastName:  "Rossi",
		Age:       41,
		Location:  " Milano ",
	})))

	require.Equal(t, http.StatusOK, rec.Code)
	var user types.User
	decodeData(t, rec, &user)
	assert.Equal(t, "Mario", user.FirstName)
	assert.Equal(t, "Milano", user.Location)
	assert.Equal(t, 41, user.Age)
}

func TestUpdateProfile_ValidationRejectedBeforeWrite(t *testing.T) {
	repo := &mockProfileRepo{}
	h := newUserHandler(repo, nil)

	rec := serve(h.RegisterRoutes, authed(newRequest(http.MethodPut, "/profile", types.ProfileUpdate{
		FirstName: "Mario",
		LastName:  "Rossi",
		Age:       30,
		Location:  "   ",
	})))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeValidationMissingField), detail.Code)
	assert.Contains(t, rec.Body.String(), `"field":"location"`)
	assert.Zero(t, repo.updateCalls)
}

func TestDeleteProfile_NoContent(t *testing.T) {
	var deleted string
	repo := &mockProfileRepo{deleteFn: func(_ context.Context, id string) error {
		deleted = id
		return nil
	}}
	h := newUserHandler(repo, nil)

	rec := serve(h.RegisterRoutes, authed(newRequest(http.MethodDelete, "/profile", nil)))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, testUserID, deleted)
}

func TestGetAlertPreferences_ReturnsResolved(t *testing.T) {
	prefs := &mockPreferences{getFn: func(context.Context, string) (types.AlertPreferences, error) {
		return alerts.DefaultPreferences(), nil
	}}
	h := newUserHandler(nil, prefs)

	rec := serve(h.RegisterRoutes, authed(newRequest(http.MethodGet, "/alert-preferences", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	var got types.AlertPreferences
	decodeData(t, rec, &got)
	assert.Equal(t, alerts.DefaultPreferences(), got)
}

func TestUpdateAlertPreferences_PassesPatchThrough(t *testing.T) {
	var got alerts.PreferencesPatch
	prefs := &mockPreferences{updateFn: func(_ context.Context, userID string, patch alerts.PreferencesPatch) (types.AlertPreferences, error) {
		assert.Equal(t, testUserID, userID)
		got = patch
		p := alerts.DefaultPreferences()
		p.TemperatureMin = -3
		p.EnableFog = false
		return p, nil
	}}
	h := newUserHandler(nil, prefs)

	rec := serve(h.RegisterRoutes, authed(newRequest(http.MethodPut, "/alert-preferences",
		`{"temperature_min":"-3","enable_fog":false}`)))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got.TemperatureMin)
	v, err := got.TemperatureMin.Float()
	require.NoError(t, err)
	assert.Equal(t, -3.0, v)
	require.NotNil(t, got.EnableFog)
	assert.False(t, *got.EnableFog)
	assert.Nil(t, got.TemperatureMax)

	var resp types.AlertPreferences
	decodeData(t, rec, &resp)
	assert.Equal(t, -3.0, resp.TemperatureMin)
	assert.False(t, resp.EnableFog)
}

func TestUpdateAlertPreferences_RangeError(t *testing.T) {
	prefs := &mockPreferences{updateFn: func(context.Context, string, alerts.PreferencesPatch) (types.AlertPreferences, error) {
		return types.AlertPreferences{}, types.NewValidationError(types.ErrCodeValidationThresholdRange, "alert preferences out of range",
			[]types.FieldError{{Field: "temperature_min", Reason: "must be between -50 and 50"}})
	}}
	h := newUserHandler(nil, prefs)

	rec := serve(h.RegisterRoutes, authed(newRequest(http.MethodPut, "/alert-preferences", `{"temperature_min":99}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	detail := decodeError(t, rec)
	assert.Equal(t, string(types.ErrCodeValidationThresholdRange), detail.Code)
	assert.Contains(t, detail.Details, "errors")
}
