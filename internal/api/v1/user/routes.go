package user

import "github.com/gin-gonic/gin"

// RegisterRoutes expects an authenticated group.
func RegisterRoutes(router *gin.RouterGroup, h *Handler) {
	me := router.Group("/me")
	me.GET("", h.CurrentUser)
	me.DELETE("", h.DeleteAccount)
	me.GET("/pending-payments", h.PendingPayments)
}
