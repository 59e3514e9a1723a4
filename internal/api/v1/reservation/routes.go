package reservation

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes expects an authenticated group. Admin-only actions are
// checked by the service.
func RegisterRoutes(router *gin.RouterGroup, h *Handler) {
	r := router.Group("/reservations")
	r.POST("", h.CreateReservation)
	r.GET("", h.ListReservations)
	r.GET("/:id", h.GetReservation)
	r.POST("/:id/cancel", h.CancelReservation)
	r.POST("/:id/confirm", h.ConfirmAttendance)
	r.POST("/:id/complete-payment", h.CompletePayment)
}
