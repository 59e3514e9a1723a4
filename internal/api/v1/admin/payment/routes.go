package payment

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(router *gin.RouterGroup, h *Handler) {
	router.GET("/payments", h.ListPayments)
	router.GET("/payments/export", h.ExportPayments)
	router.GET("/refunds", h.ListRefunds)
	router.POST("/refunds/:id/resolve", h.ResolveRefund)
}
