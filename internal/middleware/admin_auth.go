package middleware

import (
	"net/http"

	"reservas-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminAuthMiddleware lets only administrators through. It must run after
// AuthMiddleware.
func AdminAuthMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, utils.NewErrorResponse(http.StatusUnauthorized, "authorization header is required"))
			c.Abort()
			return
		}
		if !user.IsAdmin() {
			log.Warn("Unauthorized admin access attempt",
				zap.Uint("user_id", user.ID),
				zap.String("path", c.Request.URL.Path))
			c.JSON(http.StatusForbidden, utils.NewErrorResponse(http.StatusForbidden, "Forbidden: Admins only"))
			c.Abort()
			return
		}
		c.Next()
	}
}
