package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	botcommand "github.com/adopsbot/adopsbot/internal/command"
	"github.com/adopsbot/adopsbot/internal/config"
	"github.com/adopsbot/adopsbot/internal/permission"
	"github.com/adopsbot/adopsbot/internal/web/handler"
)

type staticDispatcher struct{}

func (staticDispatcher) Dispatch(_ context.Context, _ permission.Identity, _ string) botcommand.Reply {
	return botcommand.Reply{Text: "ok", Success: true}
}

func newService(t *testing.T, reg *prometheus.Registry) *Service {
	t.Helper()

	hash, err := argon2id.CreateHash("token", &argon2id.Params{
		Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	})
	require.NoError(t, err)

	cfg := &config.Config{
		DevMode:   true,
		Webserver: config.Webserver{APITokenHash: hash},
	}

	s, err := New(cfg, Options{Dispatcher: staticDispatcher{}, Gatherer: reg})
	require.NoError(t, err)

	return s
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)
}

func TestNewRequiresDispatcher(t *testing.T) {
	_, err := New(&config.Config{}, Options{})
	assert.Error(t, err)
}

func TestCheckAlive(t *testing.T) {
	s := newService(t, prometheus.NewRegistry())

	resp, err := s.App.Test(httptest.NewRequest(fiber.MethodGet, handler.CheckAlivePath, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	s.alive.Store(false)

	resp, err = s.App.Test(httptest.NewRequest(fiber.MethodGet, handler.CheckAlivePath, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	promauto.With(reg).NewCounter(prometheus.CounterOpts{Name: "adopsbot_test_total", Help: "test"}).Inc()

	s := newService(t, reg)

	resp, err := s.App.Test(httptest.NewRequest(fiber.MethodGet, handler.MetricsPath, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "adopsbot_test_total 1")
}

func TestErrorHandlerRendersJSON(t *testing.T) {
	s := newService(t, prometheus.NewRegistry())

	resp, err := s.App.Test(httptest.NewRequest(fiber.MethodPost, handler.CommandPath, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "missing bearer token", body["error"])
}

func TestShutdown(t *testing.T) {
	s := newService(t, prometheus.NewRegistry())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// the app never listened, only the health flag matters here
	_ = s.Shutdown(ctx)
	assert.False(t, s.alive.Load())
}
