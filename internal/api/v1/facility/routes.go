package facility

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes mounts the read-only catalogue. It needs no authentication.
func RegisterRoutes(router *gin.RouterGroup, h *Handler) {
	router.GET("/facilities", h.ListFacilities)
	router.GET("/facilities/:id", h.GetFacility)
	router.GET("/facilities/:id/reservations", h.ListSlots)
	router.GET("/sports", h.ListSports)
}
