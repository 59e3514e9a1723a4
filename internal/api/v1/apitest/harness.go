// Package apitest wires a full service stack behind a gin engine for
// handler tests.
package apitest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"reservas-backend/config"
	"reservas-backend/internal/clock"
	"reservas-backend/internal/middleware"
	"reservas-backend/internal/models"
	"reservas-backend/internal/notify"
	"reservas-backend/internal/payment/stub"
	"reservas-backend/internal/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Now is Monday 2026-03-02 09:00 at the club.
var Now = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

type Harness struct {
	T       *testing.T
	DB      *gorm.DB
	Svc     *services.Services
	Clock   *clock.Mock
	Gateway *stub.Gateway
	Notes   *notify.Memory
	Redis   *miniredis.Miniredis
	Log     *zap.Logger

	Engine *gin.Engine
	// Authed requires a valid token; Admin additionally requires the admin role.
	Authed *gin.RouterGroup
	Admin  *gin.RouterGroup
	Public *gin.RouterGroup

	AdminUser     *models.User
	AdminToken    string
	Customer      *models.User
	CustomerToken string
}

func New(t *testing.T) *Harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	h := &Harness{
		T:       t,
		DB:      db,
		Clock:   clock.NewMock(Now),
		Gateway: stub.New(),
		Notes:   notify.NewMemory(),
		Redis:   miniredis.RunT(t),
		Log:     zap.NewNop(),
	}
	h.Svc = services.New(services.Deps{
		DB:            db,
		Redis:         redis.NewClient(&redis.Options{Addr: h.Redis.Addr()}),
		Clock:         h.Clock,
		Policy:        config.DefaultPolicy(),
		Gateway:       h.Gateway,
		Notifier:      h.Notes,
		Logger:        h.Log,
		PaymentSecret: "payment-secret",
		JWTSecret:     "jwt-secret",
	})

	h.Engine = gin.New()
	v1 := h.Engine.Group("/api/v1")
	h.Public = v1
	h.Authed = v1.Group("", middleware.AuthMiddleware(h.Svc.Auth))
	h.Admin = v1.Group("/admin", middleware.AuthMiddleware(h.Svc.Auth), middleware.AdminAuthMiddleware(h.Log))

	// The first account registered becomes the admin.
	h.AdminUser, h.AdminToken = h.Register("10000000", "Root", "root@example.com")
	h.Customer, h.CustomerToken = h.Register("20000000", "Ana", "ana@example.com")
	return h
}

// Register creates an account with password "secret123" and logs it in.
func (h *Harness) Register(dni, name, email string) (*models.User, string) {
	h.T.Helper()
	ctx := context.Background()
	u, err := h.Svc.Auth.Register(ctx, services.RegisterInput{DNI: dni, Name: name, Email: email, Password: "secret123"})
	require.NoError(h.T, err)
	token, _, err := h.Svc.Auth.Login(ctx, email, "secret123")
	require.NoError(h.T, err)
	return u, token
}

// Facility creates an active facility open 08:00-23:00.
func (h *Harness) Facility(name string, rate float64) *models.Facility {
	h.T.Helper()
	ctx := context.Background()
	sport, err := h.Svc.Facilities.CreateSport(ctx, name+" sport")
	require.NoError(h.T, err)
	f, err := h.Svc.Facilities.Create(ctx, services.FacilityInput{
		Name: name, SportID: sport.ID, OpensAt: "08:00", ClosesAt: "23:00", HourlyRate: rate,
	})
	require.NoError(h.T, err)
	return f
}

// Book reserves a slot for u and returns the reservation ID.
func (h *Harness) Book(u *models.User, f *models.Facility, date string, hour int, deposit float64) uint {
	h.T.Helper()
	res, err := h.Svc.Reservations.Create(context.Background(), services.CreateReservationInput{
		Actor: u, FacilityID: f.ID, Date: date, StartHour: hour, Deposit: deposit,
	})
	require.NoError(h.T, err)
	return res.ReservationID
}

// Do sends a request through the engine. body is JSON-encoded unless it is
// nil or already a string.
func (h *Harness) Do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	h.T.Helper()
	var buf bytes.Buffer
	switch v := body.(type) {
	case nil:
	case string:
		buf.WriteString(v)
	default:
		require.NoError(h.T, json.NewEncoder(&buf).Encode(v))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.Engine.ServeHTTP(w, req)
	return w
}

// Envelope is the decoded response wrapper.
type Envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Decode unmarshals the envelope and, when out is non-nil, its data.
func Decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out), string(env.Data))
	}
	return env
}

// RequireStatus fails with the body when the status differs.
func RequireStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
}
