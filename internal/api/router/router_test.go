package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthgpt/clinic-assistant/internal/http/handlers"
	"github.com/healthgpt/clinic-assistant/internal/messaging"
	"github.com/healthgpt/clinic-assistant/internal/schedule"
	"github.com/healthgpt/clinic-assistant/internal/scheduling"
	"github.com/healthgpt/clinic-assistant/pkg/logging"
)

type noopPublisher struct{}

func (noopPublisher) EnqueueMessage(_ context.Context, _, _ string) (string, error) {
	return "job-1", nil
}

type noopResetter struct{}

func (noopResetter) Reset(_ context.Context, _ string) error { return nil }

type noopReleaser struct{}

func (noopReleaser) Release(_ context.Context, slotID string) (*scheduling.Reservation, error) {
	return &scheduling.Reservation{ID: "res-1", SlotID: slotID}, nil
}

func newTestRouter(t *testing.T, adminToken string) http.Handler {
	t.Helper()
	logger := logging.New("error")

	engine, err := scheduling.NewEngine(schedule.Clinic(), scheduling.NewMemoryStore(),
		45*time.Minute, time.UTC, logger)
	require.NoError(t, err)

	registry := prometheus.NewRegistry()

	return New(&Config{
		Logger:            logger,
		Webhook:           messaging.NewWebhookHandler("verify-token", noopPublisher{}, nil, logger),
		AdminSlots:        handlers.NewAdminSlotsHandler(engine, logger),
		AdminSessions:     handlers.NewAdminSessionsHandler(noopResetter{}, logger),
		AdminReservations: handlers.NewAdminReservationsHandler(noopReleaser{}, nil, nil, logger),
		AdminToken:        adminToken,
		MetricsHandler:    promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})
}

func TestRouterHealth(t *testing.T) {
	router := newTestRouter(t, "admin-token")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
}

func TestRouterWebhookVerification(t *testing.T) {
	router := newTestRouter(t, "admin-token")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/webhooks/whatsapp/?hub.mode=subscribe&hub.verify_token=verify-token&hub.challenge=99", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "99", rec.Body.String())
}

func TestRouterMetricsExposed(t *testing.T) {
	router := newTestRouter(t, "admin-token")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterAdminRequiresToken(t *testing.T) {
	router := newTestRouter(t, "admin-token")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/slots", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/slots", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/admin/slots", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouterAdminDisabledWithoutToken(t *testing.T) {
	router := newTestRouter(t, "")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/slots", nil)
	req.Header.Set("Authorization", "Bearer anything")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterAdminReservationRelease(t *testing.T) {
	router := newTestRouter(t, "admin-token")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/admin/slots/20260105T1400-1445/reservation", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"released"`)
}

func TestRouterAdminSessionReset(t *testing.T) {
	router := newTestRouter(t, "admin-token")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/admin/sessions/5511999990000", nil)
	req.Header.Set("Authorization", "Bearer admin-token")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}
