package facility

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(router *gin.RouterGroup, h *Handler) {
	router.POST("/facilities", h.CreateFacility)
	router.PUT("/facilities/:id", h.UpdateFacility)
	router.DELETE("/facilities/:id", h.DeleteFacility)
	router.POST("/facilities/:id/suspensions", h.SuspendFacility)
	router.GET("/facilities/:id/suspensions", h.ListSuspensions)
	router.DELETE("/suspensions/:id", h.LiftSuspension)

	router.POST("/sports", h.CreateSport)
	router.PUT("/sports/:id/rate", h.UpdateSportRate)
}
