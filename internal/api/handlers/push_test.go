package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meteoalert/internal/types"
)

type mockSubscriptionRepo struct {
	setFn   func(ctx context.Context, id string, sub *types.PushSubscription) error
	clearFn func(ctx context.Context, id string) error

	saved *types.PushSubscription
}

func (m *mockSubscriptionRepo) SetPushSubscription(ctx context.Context, id string, sub *types.PushSubscription) error {
	m.saved = sub
	if m.setFn != nil {
		return m.setFn(ctx, id, sub)
	}
	return nil
}

func (m *mockSubscriptionRepo) ClearPushSubscription(ctx context.Context, id string) error {
	if m.clearFn != nil {
		return m.clearFn(ctx, id)
	}
	return nil
}

type staticKey string

func (k staticKey) PublicKey() string { return string(k) }

func validSubscriptionBody() map[string]any {
	return map[string]any{
		"subscription": map[string]any{
			"endpoint":       "https://fcm.googleapis.com/fcm/send/abc123",
			"expirationTime": nil,
			"keys": map[string]any{
				"p256dh": "BNcRdreALRFXTkOOUHK1EtK2wtaz5Ry4YfYCA_0QTpQtUbVlUls0VJXg7A8u-Ts1XbjhazAkj7I99e8QcYP7DkM",
				"auth":   "tBHItJI5svbpez7KI4CCXg",
			},
		},
	}
}

func TestVAPIDPublicKey(t *testing.T) {
	h := NewPushHandler(&mockSubscriptionRepo{}, staticKey("BPublicKey"), nil, discardLogger())

	rec := serve(h.RegisterRoutes, newRequest(http.MethodGet, "/vapid-public-key", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp VAPIDKeyResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, "BPublicKey", resp.PublicKey)
}

func TestVAPIDPublicKey_Unconfigured(t *testing.T) {
	h := NewPushHandler(&mockSubscriptionRepo{}, nil, nil, discardLogger())

	rec := serve(h.RegisterRoutes, newRequest(http.MethodGet, "/vapid-public-key", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":{"publicKey":""}}`, rec.Body.String())
}

func TestSubscribe_Saves(t *testing.T) {
	repo := &mockSubscriptionRepo{}
	h := NewPushHandler(repo, staticKey("k"), nil, discardLogger())

	rec := serve(h.RegisterRoutes, authed(newRequest(http.MethodPost, "/subscribe", validSubscriptionBody())))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, repo.saved)
	assert.Equal(t, "https://fcm.googleapis.com/fcm/send/abc123", repo.saved.Endpoint)
	assert.Equal(t, "tBHItJI5svbpez7KI4CCXg", repo.saved.Keys.Auth)
	assert.Nil(t, repo.saved.ExpirationTime)
}

func TestSubscribe_MissingEndpoint(t *testing.T) {
	repo := &mockSubscriptionRepo{}
	h := NewPushHandler(repo, staticKey("k"), nil, discardLogger())

	body := validSubscriptionBody()
	delete(body["subscription"].(map[string]any), "endpoint")
	rec := serve(h.RegisterRoutes, authed(newRequest(http.MethodPost, "/subscribe", body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationSubscription), decodeError(t, rec).Code)
	assert.Contains(t, rec.Body.String(), `"field":"subscription.endpoint"`)
	assert.Nil(t, repo.saved)
}

func TestSubscribe_RejectsInternalEndpoint(t *testing.T) {
	repo := &mockSubscriptionRepo{}
	h := NewPushHandler(repo, staticKey("k"), nil, discardLogger())

	body := validSubscriptionBody()
	body["subscription"].(map[string]any)["endpoint"] = "https://169.254.169.254/latest/meta-data"
	rec := serve(h.RegisterRoutes, authed(newRequest(http.MethodPost, "/subscribe", body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationSubscription), decodeError(t, rec).Code)
	assert.Nil(t, repo.saved)
}

func TestSubscribe_MissingSubscription(t *testing.T) {
	repo := &mockSubscriptionRepo{}
	h := NewPushHandler(repo, staticKey("k"), nil, discardLogger())

	rec := serve(h.RegisterRoutes, authed(newRequest(http.MethodPost, "/subscribe", `{}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, string(types.ErrCodeValidationSubscription), decodeError(t, rec).Code)
	assert.Nil(t, repo.saved)
}

func TestSubscribe_UnknownUser(t *testing.T) {
	repo := &mockSubscriptionRepo{setFn: func(context.Context, string, *types.PushSubscription) error {
		return types.NewAppError(types.ErrCodeNotFoundUser, "user not found", nil)
	}}
	h := NewPushHandler(repo, staticKey("k"), nil, discardLogger())

	rec := serve(h.RegisterRoutes, authed(newRequest(http.MethodPost, "/subscribe", validSubscriptionBody())))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUnsubscribe(t *testing.T) {
	var cleared string
	repo := &mockSubscriptionRepo{clearFn: func(_ context.Context, id string) error {
		cleared = id
		return nil
	}}
	h := NewPushHandler(repo, staticKey("k"), nil, discardLogger())

	rec := serve(h.RegisterRoutes, authed(newRequest(http.MethodPost, "/unsubscribe", nil)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, testUserID, cleared)
	assert.JSONEq(t, `{"data":{"subscribed":false}}`, rec.Body.String())
}
