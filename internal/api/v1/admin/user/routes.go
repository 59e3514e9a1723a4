package user

import "github.com/gin-gonic/gin"

func RegisterRoutes(router *gin.RouterGroup, h *Handler) {
	router.GET("/users", h.ListUsers)
	router.GET("/users/dni/:dni", h.GetUserByDNI)
	router.GET("/users/:id", h.GetUser)
	router.PATCH("/users/:id", h.UpdateUser)
	router.POST("/users/:id/enable", h.EnableUser)
	router.DELETE("/users/:id", h.DeleteUser)
}
