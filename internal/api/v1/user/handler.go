package user

import (
	"net/http"

	"reservas-backend/internal/api/v1/common"
	"reservas-backend/internal/clock"
	"reservas-backend/internal/services"
	"reservas-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	users        *services.UserService
	reservations *services.ReservationService
	cal          *clock.Calendar
	log          *zap.Logger
}

func NewHandler(users *services.UserService, reservations *services.ReservationService, cal *clock.Calendar, log *zap.Logger) *Handler {
	return &Handler{users: users, reservations: reservations, cal: cal, log: log}
}

// CurrentUser godoc
// @Summary Get current user
// @Description Get the current user's profile with active penalties and the debt owed today
// @Tags user
// @Produce  json
// @Security Bearer
// @Success 200 {object} utils.Response{data=user.ProfileResponse}
// @Failure 401 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /me [get]
func (h *Handler) CurrentUser(c *gin.Context) {
	u, ok := common.Actor(c)
	if !ok {
		return
	}

	// Reload so the penalties and debt reflect the latest state, not the
	// copy resolved by the middleware.
	d, err := h.users.Detail(c.Request.Context(), u.ID)
	if err != nil {
		common.Fail(c, h.log, err, "Failed to fetch user")
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("User information retrieved successfully", NewProfileResponse(d, h.cal)))
}

// PendingPayments godoc
// @Summary List reservations awaiting payment
// @Tags user
// @Produce json
// @Security Bearer
// @Success 200 {object} utils.Response{data=[]PendingPaymentItem}
// @Router /me/pending-payments [get]
func (h *Handler) PendingPayments(c *gin.Context) {
	u, ok := common.Actor(c)
	if !ok {
		return
	}
	rs, err := h.reservations.PendingPayments(c.Request.Context(), u.ID)
	if err != nil {
		common.Fail(c, h.log, err, "Failed to fetch pending payments")
		return
	}
	out := make([]PendingPaymentItem, 0, len(rs))
	for _, r := range rs {
		out = append(out, PendingPaymentItem{
			ReservationID: r.ID,
			FacilityID:    r.FacilityID,
			SlotStart:     h.cal.Format(r.SlotStart),
			Tariff:        r.Tariff,
		})
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("Pending payments retrieved successfully", out))
}

// DeleteAccount godoc
// @Summary Delete own account
// @Description Refused while the user has active penalties or unpaid reservations. Upcoming reservations are cancelled.
// @Tags user
// @Produce json
// @Security Bearer
// @Success 200 {object} utils.Response{data=services.DeleteAccountResult}
// @Failure 409 {object} utils.Response
// @Router /me [delete]
func (h *Handler) DeleteAccount(c *gin.Context) {
	u, ok := common.Actor(c)
	if !ok {
		return
	}
	res, err := h.users.DeleteAccount(c.Request.Context(), u, u.ID, false)
	if err != nil {
		common.Fail(c, h.log, err, "Failed to delete account")
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse(res.Message, res))
}
