package payment

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"reservas-backend/internal/api/v1/common"
	"reservas-backend/internal/models"
	"reservas-backend/internal/services"
	"reservas-backend/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// exportLimit caps the rows written by a single CSV export.
const exportLimit = 10000

type Handler struct {
	payments *services.PaymentService
	ledger   *services.Ledger
	log      *zap.Logger
}

func NewHandler(payments *services.PaymentService, ledger *services.Ledger, log *zap.Logger) *Handler {
	return &Handler{payments: payments, ledger: ledger, log: log}
}

// parseFilter reads the optional filters shared by listing and export.
func parseFilter(c *gin.Context, filter *services.PaymentFilter) bool {
	var ok bool
	if filter.UserID, ok = common.OptionalUint(c, "user_id"); !ok {
		return false
	}
	if filter.ReservationID, ok = common.OptionalUint(c, "reservation_id"); !ok {
		return false
	}

	if kindStr, exists := c.GetQuery("kind"); exists {
		k := models.PaymentKind(kindStr)
		filter.Kind = &k
	}

	if refundedStr, exists := c.GetQuery("refunded"); exists {
		refunded, err := strconv.ParseBool(refundedStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid refunded flag"))
			return false
		}
		filter.Refunded = &refunded
	}

	if startTimeStr, exists := c.GetQuery("start_time"); exists {
		startTime, err := time.Parse(time.RFC3339, startTimeStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid start_time format"))
			return false
		}
		filter.StartTime = &startTime
	}

	if endTimeStr, exists := c.GetQuery("end_time"); exists {
		endTime, err := time.Parse(time.RFC3339, endTimeStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid end_time format"))
			return false
		}
		filter.EndTime = &endTime
	}

	if minAmountStr, exists := c.GetQuery("min_amount"); exists {
		minAmount, err := strconv.ParseFloat(minAmountStr, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid min_amount"))
			return false
		}
		filter.MinAmount = &minAmount
	}

	if maxAmountStr, exists := c.GetQuery("max_amount"); exists {
		maxAmount, err := strconv.ParseFloat(maxAmountStr, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, utils.NewErrorResponse(http.StatusBadRequest, "Invalid max_amount"))
			return false
		}
		filter.MaxAmount = &maxAmount
	}
	return true
}

// ListPayments godoc
// @Summary List payments
// @Description Get a paginated list of payments with filtering. Admin only.
// @Tags admin
// @Produce json
// @Security Bearer
// @Param page query int false "Page number" default(1)
// @Param limit query int false "Items per page" default(20)
// @Param user_id query int false "Filter by user ID"
// @Param reservation_id query int false "Filter by reservation ID"
// @Param kind query string false "Filter by payment kind"
// @Param refunded query bool false "Filter by refund status"
// @Param start_time query string false "Filter by start time (RFC3339)"
// @Param end_time query string false "Filter by end time (RFC3339)"
// @Param min_amount query number false "Filter by minimum amount"
// @Param max_amount query number false "Filter by maximum amount"
// @Success 200 {object} utils.Response{data=PaymentListResponse}
// @Failure 400 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /admin/payments [get]
func (h *Handler) ListPayments(c *gin.Context) {
	page, limit, ok := common.Pagination(c)
	if !ok {
		return
	}

	filter := services.PaymentFilter{
		Page:  page,
		Limit: limit,
	}
	if !parseFilter(c, &filter) {
		return
	}

	payments, total, err := h.payments.FindPayments(c.Request.Context(), filter)
	if err != nil {
		common.Fail(c, h.log, err, "Failed to fetch payments")
		return
	}

	items := make([]PaymentListItem, 0, len(payments))
	for i := range payments {
		p := &payments[i]
		items = append(items, PaymentListItem{
			ID:            p.ID,
			CreatedAt:     p.CreatedAt,
			ReservationID: p.ReservationID,
			Amount:        p.Amount,
			Kind:          p.Kind,
			Refunded:      p.Refunded,
			RefundedAt:    p.RefundedAt,
			ChargeRef:     p.ChargeRef,
			OperatorID:    p.OperatorID,
			Hash:          p.Hash,
			Valid:         h.ledger.Verify(p),
		})
	}

	c.JSON(http.StatusOK, utils.NewSuccessResponse("Payments retrieved successfully", PaymentListResponse{
		Payments: items,
		Total:    total,
		Page:     page,
		Limit:    limit,
	}))
}

// ExportPayments godoc
// @Summary Export payments
// @Description Export payments to CSV. Tampered rows are flagged in the last column. Admin only.
// @Tags admin
// @Produce text/csv
// @Security Bearer
// @Param user_id query int false "Filter by user ID"
// @Param kind query string false "Filter by payment kind"
// @Param start_time query string false "Filter by start time (RFC3339)"
// @Param end_time query string false "Filter by end time (RFC3339)"
// @Success 200 {string} string "CSV content"
// @Failure 400 {object} utils.Response
// @Failure 401 {object} utils.Response
// @Failure 500 {object} utils.Response
// @Router /admin/payments/export [get]
func (h *Handler) ExportPayments(c *gin.Context) {
	filter := services.PaymentFilter{
		Page:  1,
		Limit: exportLimit,
	}
	if !parseFilter(c, &filter) {
		return
	}

	payments, _, err := h.payments.FindPayments(c.Request.Context(), filter)
	if err != nil {
		common.Fail(c, h.log, err, "Failed to fetch payments")
		return
	}

	csvContent, err := h.payments.GeneratePaymentCSV(payments)
	if err != nil {
		common.Fail(c, h.log, err, "Failed to generate CSV")
		return
	}

	filename := fmt.Sprintf("payments_%s.csv", time.Now().Format("20060102150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "text/csv", csvContent)
}

// ListRefunds godoc
// @Summary List pending refunds
// @Description Credit left over after settling a debt, owed back to the customer. Admin only.
// @Tags admin
// @Produce json
// @Security Bearer
// @Param all query bool false "Include resolved refunds"
// @Success 200 {object} utils.Response{data=[]PendingRefundItem}
// @Router /admin/refunds [get]
func (h *Handler) ListRefunds(c *gin.Context) {
	onlyOpen := c.Query("all") != "true"
	refunds, err := h.payments.PendingRefunds(c.Request.Context(), onlyOpen)
	if err != nil {
		common.Fail(c, h.log, err, "Failed to fetch refunds")
		return
	}
	items := make([]PendingRefundItem, 0, len(refunds))
	for _, r := range refunds {
		items = append(items, PendingRefundItem{
			ID:            r.ID,
			CreatedAt:     r.CreatedAt,
			UserID:        r.UserID,
			ReservationID: r.ReservationID,
			Amount:        r.Amount,
			Resolved:      r.Resolved,
			ResolvedBy:    r.ResolvedBy,
			ResolvedAt:    r.ResolvedAt,
		})
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("Refunds retrieved successfully", items))
}

// ResolveRefund godoc
// @Summary Mark a pending refund as paid out
// @Tags admin
// @Produce json
// @Security Bearer
// @Param id path int true "Pending refund ID"
// @Success 200 {object} utils.Response
// @Failure 404 {object} utils.Response
// @Router /admin/refunds/{id}/resolve [post]
func (h *Handler) ResolveRefund(c *gin.Context) {
	actor, ok := common.Actor(c)
	if !ok {
		return
	}
	id, ok := common.ParseID(c, "id", "refund")
	if !ok {
		return
	}
	if err := h.payments.ResolveRefund(c.Request.Context(), id, actor.ID); err != nil {
		common.Fail(c, h.log, err, "Failed to resolve refund")
		return
	}
	c.JSON(http.StatusOK, utils.NewSuccessResponse("Refund resolved successfully", nil))
}
