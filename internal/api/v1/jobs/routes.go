package jobs

import (
	"reservas-backend/internal/middleware"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(router *gin.RouterGroup, h *Handler, secret string) {
	j := router.Group("/jobs", middleware.CronSecretMiddleware(secret))
	j.POST("/close-slots", h.CloseSlots)
	j.POST("/penalize-debts", h.PenalizeDebts)
}
