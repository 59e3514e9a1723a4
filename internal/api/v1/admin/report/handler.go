package report

import (
	"net/http"

	"reservas-backend/internal/api/v1/common"
	"reservas-backend/internal/services"
	"reservas-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	reports *services.ReportService
	log     *zap.Logger
}

func NewHandler(reports *services.ReportService, log *zap.Logger) *Handler {
	return &Handler{reports: reports, log: log}
}

// DailyReport godoc
// @Summary Daily revenue and occupancy
// @Description Non-refunded payments and occupied slots per sport for each local day of the range. Admin only.
// @Tags admin
// @Produce json
// @Security Bearer
// @Param from query string true "First day (YYYY-MM-DD)"
// @Param to query string true "Last day (YYYY-MM-DD)"
// @Param sport_id query int false "Filter by sport ID"
// @Success 200 {object} utils.Response{data=services.DailyReport}
// @Failure 400 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /admin/reports [get]
func (h *Handler) DailyReport(c *gin.Context) {
	from, to := c.Query("from"), c.Query("to")
	if from == "" || to == "" {
		c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "from and to are required"))
		return
	}
	sportID, ok := common.OptionalUint(c, "sport_id")
	if !ok {
		return
	}

	report, err := h.reports.Daily(c.Request.Context(), from, to, sportID)
	if err != nil {
		common.Fail(c, h.log, err, "Failed to build report")
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("Report generated successfully", report))
}
