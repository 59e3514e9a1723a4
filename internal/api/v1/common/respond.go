// Package common holds helpers shared by the v1 handlers.
package common

import (
	"errors"
	"net/http"
	"strconv"

	"reservas-backend/internal/middleware"
	"reservas-backend/internal/models"
	"reservas-backend/internal/services"
	"reservas-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// StatusOf maps a service error kind to its HTTP status.
func StatusOf(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, services.ErrPermission):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrDependency):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Fail writes err in the standard envelope. Unknown errors are logged and
// replaced by fallback so storage details never reach the client.
func Fail(c *gin.Context, log *zap.Logger, err error, fallback string) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		log.Error(fallback,
			zap.String("method", c.Request.Method),
			zap.String("route", c.FullPath()),
			zap.Error(err))
		c.JSON(status, utils.NewErrorResponse(status, fallback))
		return
	}
	msg := services.Message(err)
	if msg == "" {
		msg = err.Error()
	}
	c.JSON(status, utils.NewErrorResponse(status, msg))
}

// ParseID reads a numeric path parameter, answering 400 when it is invalid.
func ParseID(c *gin.Context, name, label string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid "+label+" ID"))
		return 0, false
	}
	return uint(id), true
}

// Pagination reads page and limit query parameters.
func Pagination(c *gin.Context) (page, limit int, ok bool) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid page number"))
		return 0, 0, false
	}
	limit, err = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 500 {
		c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid limit number"))
		return 0, 0, false
	}
	return page, limit, true
}

// Actor returns the authenticated user or answers 401.
func Actor(c *gin.Context) (*models.User, bool) {
	u, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, utils.NewErrorResponse(http.StatusUnauthorized, "authorization header is required"))
		return nil, false
	}
	return u, true
}

// OptionalUint parses an optional numeric query parameter.
func OptionalUint(c *gin.Context, name string) (*uint, bool) {
	raw, exists := c.GetQuery(name)
	if !exists {
		return nil, true
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid "+name))
		return nil, false
	}
	u := uint(v)
	return &u, true
}
