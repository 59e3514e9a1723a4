package api

import (
	"reservas-backend/config"
	adminFacility "reservas-backend/internal/api/v1/admin/facility"
	adminPayment "reservas-backend/internal/api/v1/admin/payment"
	adminReport "reservas-backend/internal/api/v1/admin/report"
	adminUser "reservas-backend/internal/api/v1/admin/user"
	"reservas-backend/internal/api/v1/auth"
	"reservas-backend/internal/api/v1/facility"
	"reservas-backend/internal/api/v1/jobs"
	"reservas-backend/internal/api/v1/reservation"
	userRoutes "reservas-backend/internal/api/v1/user"
	"reservas-backend/internal/metrics"
	"reservas-backend/internal/middleware"
	"reservas-backend/internal/services"

	"github.com/gin-contrib/cors" // Import the cors middleware
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter mounts every v1 route on a fresh engine. runner serves the
// job trigger endpoints and is usually the process scheduler.
func NewRouter(cfg *config.Config, svc *services.Services, runner jobs.Runner, log *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(middleware.Logger(log), gin.Recovery(), metrics.Middleware())

	// Configure CORS
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:5173", "http://localhost:8080"}, // Allow frontend origin
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300, // Maximum age for preflight requests
	}))

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// API v1
	v1 := router.Group("/api/v1")
	{
		auth.RegisterRoutes(v1, auth.NewHandler(svc.Auth, log))
		facility.RegisterRoutes(v1, facility.NewHandler(svc.Facilities, svc.Reservations, svc.Calendar, log))
		jobs.RegisterRoutes(v1, jobs.NewHandler(runner, log), cfg.CronSecret)

		authorized := v1.Group("")
		authorized.Use(middleware.AuthMiddleware(svc.Auth))
		{
			reservation.RegisterRoutes(authorized, reservation.NewHandler(svc.Reservations, svc.Calendar, log))
			userRoutes.RegisterRoutes(authorized, userRoutes.NewHandler(svc.Users, svc.Reservations, svc.Calendar, log))
		}

		// Admin routes
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(svc.Auth), middleware.AdminAuthMiddleware(log))
		{
			adminFacility.RegisterRoutes(admin, adminFacility.NewHandler(svc.Facilities, svc.Calendar, log))
			adminUser.RegisterRoutes(admin, adminUser.NewHandler(svc.Users, svc.Calendar, log))
			adminPayment.RegisterRoutes(admin, adminPayment.NewHandler(svc.Payments, svc.Ledger, log))
			adminReport.RegisterRoutes(admin, adminReport.NewHandler(svc.Reports, log))
		}
	}

	return router
}
