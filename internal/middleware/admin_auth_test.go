package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"reservas-backend/config"
	"reservas-backend/internal/models"
	"reservas-backend/internal/services"
	"reservas-backend/internal/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testSecret = "test_secret"

type authEnv struct {
	svc        *services.Services
	adminToken string
	userToken  string
	customer   *models.User
	mr         *miniredis.Miniredis
}

func setupAuth(t *testing.T) *authEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))

	mr := miniredis.RunT(t)
	svc := services.New(services.Deps{
		DB:        db,
		Redis:     redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		Policy:    config.DefaultPolicy(),
		JWTSecret: testSecret,
	})

	ctx := context.Background()
	_, err = svc.Auth.Register(ctx, services.RegisterInput{DNI: "1", Name: "Root", Email: "root@example.com", Password: "pw"})
	require.NoError(t, err)
	customer, err := svc.Auth.Register(ctx, services.RegisterInput{DNI: "2", Name: "Ana", Email: "ana@example.com", Password: "pw"})
	require.NoError(t, err)

	adminToken, _, err := svc.Auth.Login(ctx, "root@example.com", "pw")
	require.NoError(t, err)
	userToken, _, err := svc.Auth.Login(ctx, "ana@example.com", "pw")
	require.NoError(t, err)

	return &authEnv{svc: svc, adminToken: adminToken, userToken: userToken, customer: customer, mr: mr}
}

func TestAdminAuthMiddleware(t *testing.T) {
	env := setupAuth(t)

	expiredToken := func() string {
		claims := jwt.MapClaims{
			"user_id": 1,
			"role":    "admin",
			"exp":     time.Now().Add(-time.Hour).Unix(),
		}
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		tString, _ := token.SignedString([]byte(testSecret))
		return tString
	}

	tests := []struct {
		name           string
		authHeader     string
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "Missing Authorization Header",
			authHeader:     "",
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "authorization header is required",
		},
		{
			name:           "Invalid Token Format",
			authHeader:     "InvalidToken",
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "bearer token not found",
		},
		{
			name:           "Invalid Token Signature",
			authHeader:     "Bearer invalid.token.signature",
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "invalid or expired token",
		},
		{
			name:           "Expired Token",
			authHeader:     "Bearer " + expiredToken(),
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   "invalid or expired token",
		},
		{
			name:           "Non-Admin User",
			authHeader:     "Bearer " + env.userToken,
			expectedStatus: http.StatusForbidden,
			expectedBody:   "Forbidden: Admins only",
		},
		{
			name:           "Admin User",
			authHeader:     "Bearer " + env.adminToken,
			expectedStatus: http.StatusOK,
			expectedBody:   "Success",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(AuthMiddleware(env.svc.Auth), AdminAuthMiddleware(zap.NewNop()))
			r.GET("/admin/test", func(c *gin.Context) {
				c.String(http.StatusOK, "Success")
			})

			req, _ := http.NewRequest(http.MethodGet, "/admin/test", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			if tt.expectedStatus != http.StatusOK {
				var resp utils.Response
				err := json.Unmarshal(w.Body.Bytes(), &resp)
				assert.NoError(t, err)
				assert.Contains(t, resp.Message, tt.expectedBody)
			} else {
				assert.Equal(t, tt.expectedBody, w.Body.String())
			}
		})
	}
}

func TestAuthMiddlewareStoresUserAndHonoursLogout(t *testing.T) {
	env := setupAuth(t)

	r := gin.New()
	r.Use(AuthMiddleware(env.svc.Auth))
	r.GET("/me", func(c *gin.Context) {
		u, ok := CurrentUser(c)
		require.True(t, ok)
		assert.Equal(t, env.userToken, CurrentToken(c))
		c.String(http.StatusOK, u.Email)
	})

	call := func() *httptest.ResponseRecorder {
		req, _ := http.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+env.userToken)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := call()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ana@example.com", w.Body.String())

	require.NoError(t, env.svc.Auth.Logout(context.Background(), env.userToken))
	w = call()
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "revoked")
}

func TestCronSecretMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		secret string
		header string
		want   int
	}{
		{"matching secret", "s3cret", "s3cret", http.StatusOK},
		{"wrong secret", "s3cret", "nope", http.StatusUnauthorized},
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"triggers disabled", "", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/jobs", CronSecretMiddleware(tt.secret), func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{"success": true})
			})
			req, _ := http.NewRequest(http.MethodPost, "/jobs", nil)
			if tt.header != "" {
				req.Header.Set(CronSecretHeader, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)

	r := gin.New()
	r.Use(Logger(zap.New(core)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	req, _ := http.NewRequest(http.MethodGet, "/ok", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	req, _ = http.NewRequest(http.MethodGet, "/missing", nil)
	req.Header.Set("X-Request-ID", "abc")
	r.ServeHTTP(httptest.NewRecorder(), req)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Request", entries[0].Message)
	assert.Equal(t, "Client Error", entries[1].Message)
	assert.Equal(t, "abc", entries[1].ContextMap()["request_id"])
}
