package services

import (
	"context"
	"errors"

	"reservas-backend/internal/models"
	"reservas-backend/internal/notify"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type cancelOutcome struct {
	Refunded        float64
	RefundAttempted bool
	RefundFailed    bool
}

// refundable reports whether cancelling r now returns its payments: only
// Active reservations at least MinRefundHours ahead qualify.
func (e *env) refundable(r *models.Reservation) bool {
	return r.State == models.StateActive && e.hoursUntil(r.SlotStart) >= e.policy.MinRefundHours
}

// cancelReservation moves r to Cancelled and, when refund is set, returns
// its payments. A failed refund does not undo the cancellation. Refunds go
// through the gateway, so callers passing a tx must not ask for one.
func (e *env) cancelReservation(ctx context.Context, tx *gorm.DB, r *models.Reservation, byCustomer, refund bool) (cancelOutcome, error) {
	if tx != nil && refund {
		return cancelOutcome{}, errors.New("refund requested inside a transaction")
	}
	now := e.now()
	if err := e.transition(ctx, tx, r.ID, r.State, models.StateCancelled, map[string]interface{}{
		"cancelled_by_customer": byCustomer,
		"cancelled_at":          now,
	}); err != nil {
		return cancelOutcome{}, err
	}
	r.State = models.StateCancelled
	r.CancelledByCustomer = byCustomer
	r.CancelledAt = &now

	var out cancelOutcome
	if !refund {
		return out, nil
	}
	out.RefundAttempted = true
	amount, err := e.ledger.RefundAll(ctx, r.ID)
	out.Refunded = amount
	if err != nil {
		out.RefundFailed = true
		e.log.Error("Refund failed after cancellation",
			zap.Uint("reservation_id", r.ID),
			zap.Float64("refunded", amount),
			zap.Error(err))
	}
	return out, nil
}

type bulkCancel struct {
	byCustomer bool
	// refund decides per reservation, evaluated before the state changes.
	refund func(r *models.Reservation) bool
	// notice, when set, is sent to each owner as a cancellation notification.
	notice string
}

// cancelMany cancels each reservation independently. Rows that changed state
// concurrently or fail are logged and skipped.
func (e *env) cancelMany(ctx context.Context, rs []models.Reservation, opts bulkCancel) int {
	cancelled := 0
	for i := range rs {
		r := &rs[i]
		refund := opts.refund != nil && opts.refund(r)
		out, err := e.cancelReservation(ctx, nil, r, opts.byCustomer, refund)
		if err != nil {
			if errors.Is(err, ErrStateConflict) {
				e.log.Info("Reservation changed state before cancellation", zap.Uint("reservation_id", r.ID))
			} else {
				e.log.Error("Failed to cancel reservation", zap.Uint("reservation_id", r.ID), zap.Error(err))
			}
			continue
		}
		cancelled++

		if opts.notice != "" {
			d := e.reservationDetails(r)
			if out.Refunded > 0 {
				d.Amount = amountPtr(out.Refunded)
			}
			e.send(ctx, notify.Notification{
				RecipientUserID: r.UserID,
				Email:           r.User.Email,
				Kind:            notify.KindCancellation,
				Message:         opts.notice,
				Details:         d,
			})
		}
	}
	return cancelled
}

func (e *env) reservationDetails(r *models.Reservation) *notify.Details {
	return &notify.Details{
		Facility:      r.Facility.Name,
		Datetime:      e.cal.Format(r.SlotStart),
		ReservationID: uintPtr(r.ID),
	}
}
