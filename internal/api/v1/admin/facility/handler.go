package facility

import (
	"net/http"
	"time"

	"reservas-backend/internal/api/v1/common"
	"reservas-backend/internal/api/v1/facility"
	"reservas-backend/internal/clock"
	"reservas-backend/internal/models"
	"reservas-backend/internal/services"
	"reservas-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	facilities *services.FacilityService
	cal        *clock.Calendar
	log        *zap.Logger
}

func NewHandler(facilities *services.FacilityService, cal *clock.Calendar, log *zap.Logger) *Handler {
	return &Handler{facilities: facilities, cal: cal, log: log}
}

func (r FacilityRequest) input() services.FacilityInput {
	return services.FacilityInput{
		Name:        r.Name,
		SportID:     r.SportID,
		Description: r.Description,
		OpensAt:     r.OpensAt,
		ClosesAt:    r.ClosesAt,
		HourlyRate:  r.HourlyRate,
	}
}

func (h *Handler) suspensionResponse(s *models.Suspension) SuspensionResponse {
	out := SuspensionResponse{
		ID:         s.ID,
		FacilityID: s.FacilityID,
		StartsAt:   h.cal.Format(s.StartsAt),
		Reason:     s.Reason,
		Active:     s.Active,
	}
	if s.EndsAt != nil {
		end := h.cal.Format(*s.EndsAt)
		out.EndsAt = &end
	}
	return out
}

// CreateFacility godoc
// @Summary Create a facility
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param body body FacilityRequest true "Facility"
// @Success 201 {object} utils.Response{data=facility.FacilityResponse}
// @Failure 400 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Failure 409 {object} utils.Response
// @Router /admin/facilities [post]
func (h *Handler) CreateFacility(c *gin.Context) {
	var req FacilityRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	f, err := h.facilities.Create(c.Request.Context(), req.input())
	if err != nil {
		common.Fail(c, h.log, err, "Failed to create facility")
		return
	}
	h.log.Info("Facility created", zap.Uint("facility_id", f.ID), zap.String("name", f.Name))
	c.JSON(http.StatusCreated, utils.NewResponse(http.StatusCreated, "Facility created successfully", facility.NewFacilityResponse(f)))
}

// UpdateFacility godoc
// @Summary Update a facility
// @Description Existing reservations keep the tariff they were booked with
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "Facility ID"
// @Param body body FacilityRequest true "Facility"
// @Success 200 {object} utils.Response{data=facility.FacilityResponse}
// @Failure 400 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Failure 409 {object} utils.Response
// @Router /admin/facilities/{id} [put]
func (h *Handler) UpdateFacility(c *gin.Context) {
	id, ok := common.ParseID(c, "id", "facility")
	if !ok {
		return
	}
	var req FacilityRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	f, err := h.facilities.Update(c.Request.Context(), id, req.input())
	if err != nil {
		common.Fail(c, h.log, err, "Failed to update facility")
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("Facility updated successfully", facility.NewFacilityResponse(f)))
}

// DeleteFacility godoc
// @Summary Delete a facility
// @Description Cancels and refunds every live reservation, then removes the facility
// @Tags admin
// @Produce json
// @Security Bearer
// @Param id path int true "Facility ID"
// @Success 200 {object} utils.Response{data=DeleteFacilityResponse}
// @Failure 404 {object} utils.Response
// @Router /admin/facilities/{id} [delete]
func (h *Handler) DeleteFacility(c *gin.Context) {
	id, ok := common.ParseID(c, "id", "facility")
	if !ok {
		return
	}
	n, err := h.facilities.Delete(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, h.log, err, "Failed to delete facility")
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("Facility deleted successfully", DeleteFacilityResponse{CancelledReservations: n}))
}

// SuspendFacility godoc
// @Summary Suspend a facility
// @Description Blocks a time window and cancels, with a full refund, the reservations inside it
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "Facility ID"
// @Param body body SuspensionRequest true "Suspension window"
// @Success 201 {object} utils.Response{data=SuspensionResponse}
// @Failure 400 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Router /admin/facilities/{id}/suspensions [post]
func (h *Handler) SuspendFacility(c *gin.Context) {
	id, ok := common.ParseID(c, "id", "facility")
	if !ok {
		return
	}
	var req SuspensionRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	// Both layouts were checked by the binding.
	start, _ := time.Parse(time.RFC3339, req.StartsAt)
	var end *time.Time
	if req.EndsAt != "" {
		e, _ := time.Parse(time.RFC3339, req.EndsAt)
		end = &e
	}

	sp, n, err := h.facilities.Suspend(c.Request.Context(), id, start, end, req.Reason)
	if err != nil {
		common.Fail(c, h.log, err, "Failed to suspend facility")
		return
	}
	out := h.suspensionResponse(sp)
	out.CancelledReservations = &n
	c.JSON(http.StatusCreated, utils.NewResponse(http.StatusCreated, "Facility suspended successfully", out))
}

// ListSuspensions godoc
// @Summary List suspensions of a facility
// @Tags admin
// @Produce json
// @Security Bearer
// @Param id path int true "Facility ID"
// @Success 200 {object} utils.Response{data=[]SuspensionResponse}
// @Router /admin/facilities/{id}/suspensions [get]
func (h *Handler) ListSuspensions(c *gin.Context) {
	id, ok := common.ParseID(c, "id", "facility")
	if !ok {
		return
	}
	list, err := h.facilities.ListSuspensions(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, h.log, err, "Failed to fetch suspensions")
		return
	}
	out := make([]SuspensionResponse, 0, len(list))
	for i := range list {
		out = append(out, h.suspensionResponse(&list[i]))
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("Suspensions retrieved successfully", out))
}

// LiftSuspension godoc
// @Summary Lift a suspension
// @Description Slots covered by the suspension become bookable again. Cancelled reservations are not restored.
// @Tags admin
// @Produce json
// @Security Bearer
// @Param id path int true "Suspension ID"
// @Success 200 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Router /admin/suspensions/{id} [delete]
func (h *Handler) LiftSuspension(c *gin.Context) {
	id, ok := common.ParseID(c, "id", "suspension")
	if !ok {
		return
	}
	if err := h.facilities.LiftSuspension(c.Request.Context(), id); err != nil {
		common.Fail(c, h.log, err, "Failed to lift suspension")
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("Suspension lifted successfully", nil))
}

// CreateSport godoc
// @Summary Create a sport
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param body body SportRequest true "Sport"
// @Success 201 {object} utils.Response{data=facility.SportResponse}
// @Failure 409 {object} utils.Response
// @Router /admin/sports [post]
func (h *Handler) CreateSport(c *gin.Context) {
	var req SportRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	s, err := h.facilities.CreateSport(c.Request.Context(), req.Name)
	if err != nil {
		common.Fail(c, h.log, err, "Failed to create sport")
		return
	}
	c.JSON(http.StatusCreated, utils.NewResponse(http.StatusCreated, "Sport created successfully", facility.SportResponse{ID: s.ID, Name: s.Name}))
}

// UpdateSportRate godoc
// @Summary Set the hourly rate of every facility of a sport
// @Tags admin
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path int true "Sport ID"
// @Param body body SportRateRequest true "Rate"
// @Success 200 {object} utils.Response{data=SportRateResponse}
// @Failure 400 {object} utils.Response
// @Router /admin/sports/{id}/rate [put]
func (h *Handler) UpdateSportRate(c *gin.Context) {
	id, ok := common.ParseID(c, "id", "sport")
	if !ok {
		return
	}
	var req SportRateRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	n, err := h.facilities.UpdateSportRate(c.Request.Context(), id, req.HourlyRate)
	if err != nil {
		common.Fail(c, h.log, err, "Failed to update rate")
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("Rate updated successfully", SportRateResponse{UpdatedFacilities: n}))
}
