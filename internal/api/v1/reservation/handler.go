package reservation

import (
	"net/http"

	"reservas-backend/internal/api/v1/common"
	"reservas-backend/internal/clock"
	"reservas-backend/internal/models"
	"reservas-backend/internal/services"
	"reservas-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	reservations *services.ReservationService
	cal          *clock.Calendar
	log          *zap.Logger
}

func NewHandler(reservations *services.ReservationService, cal *clock.Calendar, log *zap.Logger) *Handler {
	return &Handler{reservations: reservations, cal: cal, log: log}
}

// CreateReservation godoc
// @Summary Book a slot
// @Description Book a one-hour slot and pay the deposit. Admins may book for a customer by DNI.
// @Tags reservations
// @Accept json
// @Produce json
// @Security Bearer
// @Param body body CreateReservationRequest true "Reservation"
// @Success 201 {object} utils.Response{data=CreateReservationResponse}
// @Failure 400 {object} utils.Response
// @Failure 403 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Failure 409 {object} utils.Response
// @Failure 502 {object} utils.Response
// @Router /reservations [post]
func (h *Handler) CreateReservation(c *gin.Context) {
	actor, ok := common.Actor(c)
	if !ok {
		return
	}
	var req CreateReservationRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	res, err := h.reservations.Create(c.Request.Context(), services.CreateReservationInput{
		Actor:       actor,
		FacilityID:  req.FacilityID,
		Date:        req.Date,
		StartHour:   *req.StartHour,
		Deposit:     req.Deposit,
		CustomerDNI: req.CustomerDNI,
	})
	if err != nil {
		common.Fail(c, h.log, err, "Failed to create reservation")
		return
	}

	c.JSON(http.StatusCreated, utils.NewResponse(http.StatusCreated, "Reservation created successfully", CreateReservationResponse{
		ReservationID: res.ReservationID,
		SlotStart:     h.cal.Format(res.SlotStart),
		Deposit:       res.Deposit,
	}))
}

// CancelReservation godoc
// @Summary Cancel a reservation
// @Description Cancel an active reservation. Payments are refunded when cancelling far enough in advance.
// @Tags reservations
// @Produce json
// @Security Bearer
// @Param id path int true "Reservation ID"
// @Success 200 {object} utils.Response{data=services.CancelResult}
// @Failure 403 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Failure 409 {object} utils.Response
// @Router /reservations/{id}/cancel [post]
func (h *Handler) CancelReservation(c *gin.Context) {
	actor, ok := common.Actor(c)
	if !ok {
		return
	}
	id, ok := common.ParseID(c, "id", "reservation")
	if !ok {
		return
	}

	res, err := h.reservations.Cancel(c.Request.Context(), id, actor)
	if err != nil {
		common.Fail(c, h.log, err, "Failed to cancel reservation")
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse(res.Message, res))
}

// ConfirmAttendance godoc
// @Summary Confirm attendance
// @Description Mark the customer as present. Returns a warning instead when the customer owes another reservation. Admin only.
// @Tags reservations
// @Produce json
// @Security Bearer
// @Param id path int true "Reservation ID"
// @Success 200 {object} utils.Response{data=services.ConfirmResult}
// @Failure 403 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Failure 409 {object} utils.Response
// @Router /reservations/{id}/confirm [post]
func (h *Handler) ConfirmAttendance(c *gin.Context) {
	actor, ok := common.Actor(c)
	if !ok {
		return
	}
	id, ok := common.ParseID(c, "id", "reservation")
	if !ok {
		return
	}

	res, err := h.reservations.ConfirmAttendance(c.Request.Context(), id, actor)
	if err != nil {
		common.Fail(c, h.log, err, "Failed to confirm attendance")
		return
	}
	msg := "Attendance confirmed"
	if !res.Confirmed {
		msg = res.Warning
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse(msg, res))
}

// CompletePayment godoc
// @Summary Complete the payment of a reservation
// @Description Charge the outstanding balance, or the accrued debt when a debt penalty is active. Admin only.
// @Tags reservations
// @Produce json
// @Security Bearer
// @Param id path int true "Reservation ID"
// @Success 200 {object} utils.Response{data=services.PaymentResult}
// @Failure 403 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Failure 409 {object} utils.Response
// @Failure 502 {object} utils.Response
// @Router /reservations/{id}/complete-payment [post]
func (h *Handler) CompletePayment(c *gin.Context) {
	actor, ok := common.Actor(c)
	if !ok {
		return
	}
	id, ok := common.ParseID(c, "id", "reservation")
	if !ok {
		return
	}

	res, err := h.reservations.CompletePayment(c.Request.Context(), id, actor)
	if err != nil {
		common.Fail(c, h.log, err, "Failed to complete payment")
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse(res.Message, res))
}

// GetReservation godoc
// @Summary Get a reservation
// @Description Get a reservation with its payments. Customers only see their own.
// @Tags reservations
// @Produce json
// @Security Bearer
// @Param id path int true "Reservation ID"
// @Success 200 {object} utils.Response{data=ReservationResponse}
// @Failure 404 {object} utils.Response
// @Router /reservations/{id} [get]
func (h *Handler) GetReservation(c *gin.Context) {
	actor, ok := common.Actor(c)
	if !ok {
		return
	}
	id, ok := common.ParseID(c, "id", "reservation")
	if !ok {
		return
	}

	r, err := h.reservations.Get(c.Request.Context(), id, actor)
	if err != nil {
		common.Fail(c, h.log, err, "Failed to fetch reservation")
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("Reservation retrieved successfully", NewReservationResponse(r, h.cal)))
}

// ListReservations godoc
// @Summary List reservations
// @Description Paginated reservations. Customers get their own; admins may filter by user.
// @Tags reservations
// @Produce json
// @Security Bearer
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param user_id query int false "Filter by user ID (admin)"
// @Param facility_id query int false "Filter by facility ID"
// @Param state query string false "Filter by state"
// @Param from query string false "Slots on or after this date (YYYY-MM-DD)"
// @Param to query string false "Slots before the end of this date (YYYY-MM-DD)"
// @Success 200 {object} utils.Response{data=ReservationListResponse}
// @Failure 400 {object} utils.Response
// @Router /reservations [get]
func (h *Handler) ListReservations(c *gin.Context) {
	actor, ok := common.Actor(c)
	if !ok {
		return
	}
	page, limit, ok := common.Pagination(c)
	if !ok {
		return
	}

	filter := services.ReservationFilter{Page: page, Limit: limit}
	if actor.IsAdmin() {
		if filter.UserID, ok = common.OptionalUint(c, "user_id"); !ok {
			return
		}
	} else {
		uid := actor.ID
		filter.UserID = &uid
	}
	if filter.FacilityID, ok = common.OptionalUint(c, "facility_id"); !ok {
		return
	}
	if name, exists := c.GetQuery("state"); exists {
		st, valid := models.ParseReservationState(name)
		if !valid {
			c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid state"))
			return
		}
		filter.State = &st
	}
	if date, exists := c.GetQuery("from"); exists {
		from, _, err := h.cal.DayBounds(date)
		if err != nil {
			c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid from date"))
			return
		}
		filter.From = &from
	}
	if date, exists := c.GetQuery("to"); exists {
		_, to, err := h.cal.DayBounds(date)
		if err != nil {
			c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid to date"))
			return
		}
		filter.To = &to
	}

	rs, total, err := h.reservations.List(c.Request.Context(), filter)
	if err != nil {
		common.Fail(c, h.log, err, "Failed to fetch reservations")
		return
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Reservations retrieved successfully", ReservationListResponse{
		Reservations: NewReservationList(rs, h.cal),
		Total:        total,
		Page:         page,
		Limit:        limit,
	}))
}
