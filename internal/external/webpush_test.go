package external

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meteoalert/internal/types"
)

// newSubscription generates real client keys so the payload can be encrypted.
func newSubscription(t *testing.T, endpoint string) *types.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	require.NoError(t, err)
	auth := make([]byte, 16)
	_, err = rand.Read(auth)
	require.NoError(t, err)

	return &types.PushSubscription{
		Endpoint: endpoint,
		Keys: types.PushSubscriptionKeys{
			P256dh: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
			Auth:   base64.RawURLEncoding.EncodeToString(auth),
		},
	}
}

func newNotifier(t *testing.T, opts ...BaseClientOption) *WebPushNotifier {
	t.Helper()
	priv, pub, err := webpush.GenerateVAPIDKeys()
	require.NoError(t, err)
	return NewWebPushNotifier(newTestClient(testPolicy(0), opts...), VAPIDConfig{
		PublicKey:  pub,
		PrivateKey: types.SecretString(priv),
		Subject:    "mailto:admin@weatherapp.com",
		TTL:        time.Hour,
	})
}

func testMessage() PushMessage {
	return PushMessage{
		Title: "⚠️ Allerta Meteo",
		Body:  "🌫️ Nebbia - Ridotta visibilità",
		Icon:  "/weather-icon.png",
		Badge: "/badge-icon.png",
		Data:  map[string]any{"city": "Milano", "url": "/dashboard"},
	}
}

func TestWebPush_Delivered(t *testing.T) {
	var gotAuth, gotTTL, gotEncoding string
	var bodyLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotTTL = r.Header.Get("TTL")
		gotEncoding = r.Header.Get("Content-Encoding")
		b, _ := io.ReadAll(r.Body)
		bodyLen = len(b)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	n := newNotifier(t)
	err := n.Send(context.Background(), newSubscription(t, srv.URL+"/push/abc"), testMessage())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(gotAuth, "vapid "), "Authorization = %q", gotAuth)
	assert.Equal(t, "3600", gotTTL)
	assert.Equal(t, "aes128gcm", gotEncoding)
	assert.Greater(t, bodyLen, 0)
}

func TestWebPush_GoneStatuses(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusGone} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		err := newNotifier(t).Send(context.Background(), newSubscription(t, srv.URL), testMessage())
		assert.True(t, errors.Is(err, ErrSubscriptionGone), "status %d", status)
		srv.Close()
	}
}

func TestWebPush_OtherFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := newNotifier(t).Send(context.Background(), newSubscription(t, srv.URL), testMessage())
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrSubscriptionGone))
	assert.True(t, types.HasCode(err, types.ErrCodeUpstreamPush))
}

func TestWebPush_FailingEndpointDoesNotBlockOthers(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer healthy.Close()

	n := newNotifier(t, WithHostBreakers())
	for i := 0; i <= breakerTripAfter+1; i++ {
		err := n.Send(context.Background(), newSubscription(t, broken.URL+"/push/bad"), testMessage())
		require.Error(t, err)
	}

	err := n.Send(context.Background(), newSubscription(t, healthy.URL+"/push/ok"), testMessage())
	assert.NoError(t, err)
}

func TestWebPush_PublicKey(t *testing.T) {
	n := NewWebPushNotifier(nil, VAPIDConfig{PublicKey: "BPub"})
	assert.Equal(t, "BPub", n.PublicKey())
}
