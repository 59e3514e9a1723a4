// Package jobs exposes the reconciliation jobs to an external cron.
package jobs

import (
	"context"
	"net/http"

	"reservas-backend/internal/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Runner runs a registered job under its run guard. ran is false when
// another instance held the guard.
type Runner interface {
	Trigger(ctx context.Context, name string) (report services.JobReport, ran bool, err error)
}

type Handler struct {
	runner Runner
	log    *zap.Logger
}

func NewHandler(runner Runner, log *zap.Logger) *Handler {
	return &Handler{runner: runner, log: log}
}

func (h *Handler) run(c *gin.Context, name string) {
	report, ran, err := h.runner.Trigger(c.Request.Context(), name)
	if err != nil {
		h.log.Error("Triggered job failed", zap.String("job", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "job failed"})
		return
	}
	body := gin.H{"success": true}
	if ran {
		body["report"] = report
	} else {
		body["skipped"] = true
	}
	c.JSON(http.StatusOK, body)
}

// CloseSlots godoc
// @Summary Close elapsed slots
// @Description Marks unattended reservations absent and moves attended ones to finished or pending payment
// @Tags jobs
// @Produce json
// @Param X-Cron-Secret header string true "Shared cron secret"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /jobs/close-slots [post]
func (h *Handler) CloseSlots(c *gin.Context) {
	h.run(c, services.JobCloseSlots)
}

// PenalizeDebts godoc
// @Summary Penalize stale debts
// @Description Turns balances unpaid past the grace period into debt penalties
// @Tags jobs
// @Produce json
// @Param X-Cron-Secret header string true "Shared cron secret"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /jobs/penalize-debts [post]
func (h *Handler) PenalizeDebts(c *gin.Context) {
	h.run(c, services.JobPenalizeDebts)
}
