package auth

import (
	"errors"
	"net/http"

	"reservas-backend/internal/api/v1/common"
	"reservas-backend/internal/middleware"
	"reservas-backend/internal/services"
	"reservas-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	auth *services.AuthService
	log  *zap.Logger
}

func NewHandler(auth *services.AuthService, log *zap.Logger) *Handler {
	return &Handler{auth: auth, log: log}
}

// Register godoc
// @Summary Register a new user
// @Description Register a customer account. The first account created becomes admin.
// @Tags auth
// @Accept  json
// @Produce  json
// @Param   input     body   RegisterInput  true  "Register Input"
// @Success 201 {object} utils.Response{data=UserResponse}
// @Failure 400 {object} utils.Response
// @Failure 409 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var input RegisterInput
	if !utils.BindAndValidate(c, &input) {
		return
	}

	u, err := h.auth.Register(c.Request.Context(), services.RegisterInput{
		DNI:      input.DNI,
		Name:     input.Name,
		Email:    input.Email,
		Password: input.Password,
	})
	if err != nil {
		common.Fail(c, h.log, err, "Failed to register user due to an internal error")
		return
	}

	token, _, err := h.auth.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		common.Fail(c, h.log, err, "Could not generate token")
		return
	}

	c.JSON(http.StatusCreated, utils.NewResponse(http.StatusCreated, "User registered successfully", UserResponse{
		ID:      u.ID,
		DNI:     u.DNI,
		Name:    u.Name,
		Email:   u.Email,
		Role:    u.Role,
		Enabled: u.Enabled,
		Token:   token,
	}))
}

// Login godoc
// @Summary Log in a user
// @Description Log in with email and password
// @Tags auth
// @Accept  json
// @Produce  json
// @Param   input     body   LoginInput  true  "Login Input"
// @Success 200 {object} utils.Response{data=UserResponse}
// @Failure 400 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var input LoginInput
	if !utils.BindAndValidate(c, &input) {
		return
	}

	token, u, err := h.auth.Login(c.Request.Context(), input.Email, input.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, utils.NewErrorResponse(http.StatusUnauthorized, "Invalid email or password"))
			return
		}
		common.Fail(c, h.log, err, "Failed to log in")
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Logged in successfully", UserResponse{
		ID:      u.ID,
		DNI:     u.DNI,
		Name:    u.Name,
		Email:   u.Email,
		Role:    u.Role,
		Enabled: u.Enabled,
		Token:   token,
	}))
}

// Logout godoc
// @Summary Log out a user
// @Description Invalidate the user's current token
// @Tags auth
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /auth/logout [post]
func (h *Handler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), middleware.CurrentToken(c)); err != nil {
		h.log.Error("Failed to denylist token", zap.Error(err))
		c.JSON(http.StatusInternalServerError, utils.NewErrorResponse(http.StatusInternalServerError, "Failed to denylist token"))
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("Logged out successfully", nil))
}
