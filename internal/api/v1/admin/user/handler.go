package user

import (
	"net/http"
	"strings"
	"time"

	"reservas-backend/internal/api/v1/common"
	meuser "reservas-backend/internal/api/v1/user"
	"reservas-backend/internal/clock"
	"reservas-backend/internal/models"
	"reservas-backend/internal/services"
	"reservas-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	users *services.UserService
	cal   *clock.Calendar
	log   *zap.Logger
}

func NewHandler(users *services.UserService, cal *clock.Calendar, log *zap.Logger) *Handler {
	return &Handler{users: users, cal: cal, log: log}
}

type UserListItem struct {
	ID        uint      `json:"id"`
	DNI       string    `json:"dni"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type UserListResponse struct {
	Users []UserListItem `json:"users"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
}

func newUserListItem(u *models.User) UserListItem {
	return UserListItem{
		ID:        u.ID,
		DNI:       u.DNI,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Enabled:   u.Enabled,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// ListUsers godoc
// @Summary List all users
// @Description Get a paginated list of active users. Admin only.
// @Tags admin
// @Produce json
// @Security Bearer
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Success 200 {object} utils.Response{data=UserListResponse}
// @Failure 400 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Failure 403 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /admin/users [get]
func (h *Handler) ListUsers(c *gin.Context) {
	page, limit, ok := common.Pagination(c)
	if !ok {
		return
	}

	users, total, err := h.users.FindUsers(c.Request.Context(), page, limit)
	if err != nil {
		common.Fail(c, h.log, err, "Failed to fetch users")
		return
	}

	userItems := make([]UserListItem, 0, len(users))
	for i := range users {
		userItems = append(userItems, newUserListItem(&users[i]))
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Users retrieved successfully", UserListResponse{
		Users: userItems,
		Total: total,
		Page:  page,
		Limit: limit,
	}))
}

// GetUser godoc
// @Summary Get a user
// @Description Get a user with their active penalties and current debt. Admin only.
// @Tags admin
// @Produce json
// @Security Bearer
// @Param id path int true "User ID"
// @Success 200 {object} utils.Response{data=user.ProfileResponse}
// @Failure 404 {object} utils.Response
// @Router /admin/users/{id} [get]
func (h *Handler) GetUser(c *gin.Context) {
	id, ok := common.ParseID(c, "id", "user")
	if !ok {
		return
	}
	d, err := h.users.Detail(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, h.log, err, "Failed to fetch user")
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("User retrieved successfully", meuser.NewProfileResponse(d, h.cal)))
}

// GetUserByDNI godoc
// @Summary Find a user by DNI
// @Tags admin
// @Produce json
// @Security Bearer
// @Param dni path string true "National ID"
// @Success 200 {object} utils.Response{data=UserListItem}
// @Failure 404 {object} utils.Response
// @Router /admin/users/dni/{dni} [get]
func (h *Handler) GetUserByDNI(c *gin.Context) {
	u, err := h.users.FindByDNI(c.Request.Context(), c.Param("dni"))
	if err != nil {
		common.Fail(c, h.log, err, "Failed to fetch user")
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("User retrieved successfully", newUserListItem(u)))
}

// UpdateUserRequest represents the request body for updating a user
type UpdateUserRequest struct {
	Name     *string `json:"name,omitempty" binding:"omitempty,min=1,max=120"`
	Email    *string `json:"email,omitempty" binding:"omitempty,email"`
	Password *string `json:"password,omitempty" binding:"omitempty,min=6"`
	Role     *string `json:"role,omitempty" binding:"omitempty,oneof=admin customer"`
}

// UpdateUser godoc
// @Summary Update a user
// @Description Update user details. Admin only.
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "User ID"
// @Param body body UpdateUserRequest true "User details to update"
// @Success 200 {object} utils.Response{data=UserListItem}
// @Failure 400 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Failure 409 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /admin/users/{id} [patch]
func (h *Handler) UpdateUser(c *gin.Context) {
	id, ok := common.ParseID(c, "id", "user")
	if !ok {
		return
	}

	var req UpdateUserRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Email != nil {
		updates["email"] = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if req.Password != nil {
		updates["password"] = *req.Password
	}
	if req.Role != nil {
		updates["role"] = *req.Role
	}

	if len(updates) == 0 {
		c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "No fields to update"))
		return
	}

	actor, ok := common.Actor(c)
	if !ok {
		return
	}

	updatedUser, err := h.users.UpdateUser(c.Request.Context(), id, updates, actor.Email)
	if err != nil {
		common.Fail(c, h.log, err, "Failed to update user")
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("User updated successfully", newUserListItem(updatedUser)))
}

// EnableUser godoc
// @Summary Re-enable a user
// @Description Lets a disabled user book again. Active penalties are left untouched. Admin only.
// @Tags admin
// @Produce json
// @Security Bearer
// @Param id path int true "User ID"
// @Success 200 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Router /admin/users/{id}/enable [post]
func (h *Handler) EnableUser(c *gin.Context) {
	id, ok := common.ParseID(c, "id", "user")
	if !ok {
		return
	}
	if err := h.users.Enable(c.Request.Context(), id); err != nil {
		common.Fail(c, h.log, err, "Failed to enable user")
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("User enabled successfully", nil))
}

// DeleteUser godoc
// @Summary Delete a user
// @Description Without force, a user with penalties or unpaid reservations is not deleted and a confirmation is requested instead. Admin only.
// @Tags admin
// @Produce json
// @Security Bearer
// @Param id path int true "User ID"
// @Param force query bool false "Delete even with penalties or debts"
// @Success 200 {object} utils.Response{data=services.DeleteAccountResult}
// @Failure 404 {object} utils.Response
// @Router /admin/users/{id} [delete]
func (h *Handler) DeleteUser(c *gin.Context) {
	actor, ok := common.Actor(c)
	if !ok {
		return
	}
	id, ok := common.ParseID(c, "id", "user")
	if !ok {
		return
	}
	force := c.Query("force") == "true"

	res, err := h.users.DeleteAccount(c.Request.Context(), actor, id, force)
	if err != nil {
		common.Fail(c, h.log, err, "Failed to delete user")
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse(res.Message, res))
}
