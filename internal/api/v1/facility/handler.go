package facility

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
	facilities   *services.FacilityService
	reservations *services.ReservationService
	cal          *clock.Calendar
	log          *zap.Logger
}

func NewHandler(facilities *services.FacilityService, reservations *services.ReservationService, cal *clock.Calendar, log *zap.Logger) *Handler {
	return &Handler{facilities: facilities, reservations: reservations, cal: cal, log: log}
}

// ListFacilities godoc
// @Summary List facilities
// @Description List the active facilities with their sport and hourly rate
// @Tags facilities
// @Produce json
// @Success 200 {object} utils.Response{data=[]FacilityResponse}
// @Failure 500 {object} utils.Response
// @Router /facilities [get]
func (h *Handler) ListFacilities(c *gin.Context) {
	fs, err := h.facilities.List(c.Request.Context())
	if err != nil {
		common.Fail(c, h.log, err, "Failed to fetch facilities")
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("Facilities retrieved successfully", NewFacilityList(fs)))
}

// GetFacility godoc
// @Summary Get a facility
// @Tags facilities
// @Produce json
// @Param id path int true "Facility ID"
// @Success 200 {object} utils.Response{data=FacilityResponse}
// @Failure 404 {object} utils.Response
// @Router /facilities/{id} [get]
func (h *Handler) GetFacility(c *gin.Context) {
	id, ok := common.ParseID(c, "id", "facility")
	if !ok {
		return
	}
	f, err := h.facilities.Get(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, h.log, err, "Failed to fetch facility")
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("Facility retrieved successfully", NewFacilityResponse(f)))
}

// ListSlots godoc
// @Summary List taken slots
// @Description List the booked slots of a facility on one day
// @Tags facilities
// @Produce json
// @Param id path int true "Facility ID"
// @Param date query string true "Day (YYYY-MM-DD)"
// @Success 200 {object} utils.Response{data=[]SlotResponse}
// @Failure 400 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Router /facilities/{id}/reservations [get]
func (h *Handler) ListSlots(c *gin.Context) {
	id, ok := common.ParseID(c, "id", "facility")
	if !ok {
		return
	}
	rs, err := h.reservations.ListFacilitySlots(c.Request.Context(), id, c.Query("date"))
	if err != nil {
		common.Fail(c, h.log, err, "Failed to fetch slots")
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("Slots retrieved successfully", NewSlotList(rs, h.cal)))
}

// ListSports godoc
// @Summary List sports
// @Tags facilities
// @Produce json
// @Success 200 {object} utils.Response{data=[]SportResponse}
// @Router /sports [get]
func (h *Handler) ListSports(c *gin.Context) {
	sports, err := h.facilities.ListSports(c.Request.Context())
	if err != nil {
		common.Fail(c, h.log, err, "Failed to fetch sports")
		return
	}
	out := make([]SportResponse, 0, len(sports))
	for _, s := range sports {
		out = append(out, SportResponse{ID: s.ID, Name: s.Name})
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("Sports retrieved successfully", out))
}
