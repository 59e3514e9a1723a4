package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"reservas-backend/config"
	"reservas-backend/internal/api"
	"reservas-backend/internal/api/v1/apitest"
	"reservas-backend/internal/middleware"
	"reservas-backend/internal/scheduler"
	"reservas-backend/internal/services"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) *apitest.Harness {
	h := apitest.New(t)
	rdb := redis.NewClient(&redis.Options{Addr: h.Redis.Addr()})
	sched := scheduler.New(rdb, h.Svc.Calendar.Location(), h.Log)
	require.NoError(t, sched.Add(services.JobCloseSlots, "@every 5m", h.Svc.Reconciliation.CloseElapsedSlots))
	require.NoError(t, sched.Add(services.JobPenalizeDebts, "@daily", h.Svc.Reconciliation.PenalizeDebts))

	cfg := &config.Config{CronSecret: "cron-secret"}
	h.Engine = api.NewRouter(cfg, h.Svc, sched, h.Log)
	return h
}

func TestRouterAccessControl(t *testing.T) {
	h := newRouter(t)

	tests := []struct {
		name           string
		method         string
		path           string
		token          string
		expectedStatus int
	}{
		{"Public Facilities", http.MethodGet, "/api/v1/facilities", "", http.StatusOK},
		{"Public Sports", http.MethodGet, "/api/v1/sports", "", http.StatusOK},
		{"Reservations Without Token", http.MethodGet, "/api/v1/reservations", "", http.StatusUnauthorized},
		{"Reservations As Customer", http.MethodGet, "/api/v1/reservations", h.CustomerToken, http.StatusOK},
		{"Profile As Customer", http.MethodGet, "/api/v1/me", h.CustomerToken, http.StatusOK},
		{"Admin Users As Customer", http.MethodGet, "/api/v1/admin/users", h.CustomerToken, http.StatusForbidden},
		{"Admin Users As Admin", http.MethodGet, "/api/v1/admin/users", h.AdminToken, http.StatusOK},
		{"Admin Payments As Admin", http.MethodGet, "/api/v1/admin/payments", h.AdminToken, http.StatusOK},
		{"Admin Reports As Admin", http.MethodGet, "/api/v1/admin/reports?from=2026-03-01&to=2026-03-07", h.AdminToken, http.StatusOK},
		{"Admin Refunds Without Token", http.MethodGet, "/api/v1/admin/refunds", "", http.StatusUnauthorized},
		{"Jobs Without Secret", http.MethodPost, "/api/v1/jobs/close-slots", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.Do(tt.method, tt.path, tt.token, nil)
			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
		})
	}
}

func TestRouterLoginAndBook(t *testing.T) {
	h := newRouter(t)
	court := h.Facility("Court 1", 10000)

	w := h.Do(http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "ana@example.com",
		"password": "secret123",
	})
	apitest.RequireStatus(t, w, http.StatusOK)
	var login struct {
		Token string `json:"token"`
	}
	apitest.Decode(t, w, &login)
	require.NotEmpty(t, login.Token)

	w = h.Do(http.MethodPost, "/api/v1/reservations", login.Token, map[string]interface{}{
		"facility_id": court.ID,
		"date":        "2026-03-03",
		"start_hour":  18,
		"deposit":     3000,
	})
	apitest.RequireStatus(t, w, http.StatusCreated)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouterTriggersJobs(t *testing.T) {
	h := newRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/penalize-debts", nil)
	req.Header.Set(middleware.CronSecretHeader, "cron-secret")
	w := httptest.NewRecorder()
	h.Engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestRouterMetrics(t *testing.T) {
	h := newRouter(t)
	h.Do(http.MethodGet, "/api/v1/facilities", "", nil)

	w := h.Do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `reservas_http_requests_total{method="GET",path="/api/v1/facilities",status="200"}`)
}

func TestRouterCORSPreflight(t *testing.T) {
	h := newRouter(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/reservations", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	h.Engine.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
}
