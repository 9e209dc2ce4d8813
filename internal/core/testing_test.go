package core

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"meteoalert/internal/config"
	"meteoalert/internal/types"
)

type mockAuthenticator struct {
	actor *types.Actor
	err   error
	calls int
}

func (m *mockAuthenticator) ResolveToken(_ context.Context, _ string) (*types.Actor, error) {
	m.calls++
	return m.actor, m.err
}

type recordedRequest struct {
	method, endpoint string
	status           int
}

type mockMetrics struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (m *mockMetrics) RecordRequest(method, endpoint string, status int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, recordedRequest{method, endpoint, status})
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(&config.Config{}, discardLogger())
	require.NoError(t, err)
	return s
}
