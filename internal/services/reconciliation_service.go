package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"reservas-backend/internal/metrics"
	"reservas-backend/internal/models"
	"reservas-backend/internal/notify"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	JobCloseSlots    = "close_slots"
	JobPenalizeDebts = "penalize_debts"
)

// JobReport summarizes one reconciliation run.
type JobReport struct {
	Job          string `json:"job"`
	Candidates   int    `json:"candidates"`
	Transitioned int    `json:"transitioned"`
	Skipped      int    `json:"skipped"`
	Failed       int    `json:"failed"`
	// ExpiredPenalties is only set by the debt job.
	ExpiredPenalties int `json:"expired_penalties,omitempty"`
}

// ReconciliationService closes elapsed slots and turns stale unpaid balances
// into debt penalties. Both jobs are safe to run repeatedly and concurrently:
// every write is a conditional transition.
type ReconciliationService struct {
	*env
	penalties *PenaltyService
}

type rowOutcome int

const (
	rowTransitioned rowOutcome = iota
	rowSkipped
)

func (s *ReconciliationService) record(report *JobReport, start time.Time, err error) {
	metrics.RecordJobRun(report.Job, err == nil, time.Since(start), report.Transitioned, report.Failed)
	fields := []zap.Field{
		zap.String("job", report.Job),
		zap.Int("candidates", report.Candidates),
		zap.Int("transitioned", report.Transitioned),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		s.log.Error("Reconciliation job failed", append(fields, zap.Error(err))...)
		return
	}
	s.log.Info("Reconciliation job finished", fields...)
}

func (s *ReconciliationService) tally(report *JobReport, r *models.Reservation, outcome rowOutcome, err error) {
	switch {
	case errors.Is(err, ErrStateConflict):
		report.Skipped++
	case err != nil:
		report.Failed++
		s.log.Error("Reconciliation row failed",
			zap.String("job", report.Job),
			zap.Uint("reservation_id", r.ID),
			zap.Error(err))
	case outcome == rowSkipped:
		report.Skipped++
	default:
		report.Transitioned++
	}
}

// CloseElapsedSlots settles reservations whose slot started more than
// ClosureGrace ago. InProgress ones finish when fully paid and otherwise
// await payment; Active ones were never attended and become Absent.
func (s *ReconciliationService) CloseElapsedSlots(ctx context.Context) (report JobReport, err error) {
	start := time.Now()
	report.Job = JobCloseSlots
	defer func() { s.record(&report, start, err) }()

	cutoff := s.now().Add(-s.policy.ClosureGrace)
	var rs []models.Reservation
	if err = s.db.WithContext(ctx).Preload("Facility").Preload("User").
		Where("state IN ? AND slot_start < ?",
			[]models.ReservationState{models.StateActive, models.StateInProgress}, cutoff).
		Order("slot_start").
		Find(&rs).Error; err != nil {
		return report, err
	}
	report.Candidates = len(rs)

	for i := range rs {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		outcome, rowErr := s.closeSlot(ctx, &rs[i])
		s.tally(&report, &rs[i], outcome, rowErr)
	}
	return report, nil
}

func (s *ReconciliationService) closeSlot(ctx context.Context, r *models.Reservation) (rowOutcome, error) {
	if r.State == models.StateActive {
		return rowTransitioned, s.transition(ctx, nil, r.ID, models.StateActive, models.StateAbsent, nil)
	}

	outstanding, err := s.ledger.Outstanding(ctx, nil, r)
	if err != nil {
		return rowSkipped, err
	}
	if outstanding <= 0 {
		return rowTransitioned, s.transition(ctx, nil, r.ID, models.StateInProgress, models.StateFinished, nil)
	}

	if err := s.transition(ctx, nil, r.ID, models.StateInProgress, models.StatePendingPayment, nil); err != nil {
		return rowSkipped, err
	}
	d := s.reservationDetails(r)
	d.Amount = amountPtr(outstanding)
	s.send(ctx, notify.Notification{
		RecipientUserID: r.UserID,
		Email:           r.User.Email,
		Kind:            notify.KindReminder,
		Message: fmt.Sprintf("Your reservation at %s on %s has a pending balance of $%s. Please pay it within %sh to avoid a debt penalty.",
			r.Facility.Name, s.cal.Format(r.SlotStart), formatAmount(outstanding), formatAmount(s.policy.DebtGrace.Hours())),
		Details: d,
	})
	return rowTransitioned, nil
}

// PenalizeDebts first expires finished cancellation penalties, then settles
// reservations left unpaid for longer than DebtGrace. The customer's other
// Active reservations are cancelled and what was paid for them is credited
// against the debt; any remaining balance becomes an active debt penalty.
func (s *ReconciliationService) PenalizeDebts(ctx context.Context) (report JobReport, err error) {
	start := time.Now()
	report.Job = JobPenalizeDebts
	defer func() { s.record(&report, start, err) }()

	expired, err := s.penalties.ExpireCancellationPenalties(ctx)
	if err != nil {
		return report, fmt.Errorf("expire cancellation penalties: %w", err)
	}
	report.ExpiredPenalties = expired

	cutoff := s.now().Add(-s.policy.DebtGrace)
	var rs []models.Reservation
	if err = s.db.WithContext(ctx).Preload("Facility").Preload("User").
		Where("state = ? AND slot_start < ?", models.StatePendingPayment, cutoff).
		Order("slot_start").
		Find(&rs).Error; err != nil {
		return report, err
	}
	report.Candidates = len(rs)

	for i := range rs {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		outcome, rowErr := s.settleDebt(ctx, &rs[i])
		s.tally(&report, &rs[i], outcome, rowErr)
	}
	return report, nil
}

// debtSettlement is what settleDebt committed for one reservation.
type debtSettlement struct {
	skipped bool
	unpaid  float64
	credit  float64
	balance float64
}

// settleDebt consumes the user's Active reservations as credit and records
// the outcome in the same transaction, so a failed write leaves every
// reservation as it was.
func (s *ReconciliationService) settleDebt(ctx context.Context, r *models.Reservation) (rowOutcome, error) {
	var out debtSettlement
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.Reservation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "state").
			First(&current, r.ID).Error; err != nil {
			return err
		}
		if current.State != models.StatePendingPayment {
			return ErrStateConflict
		}

		existing, err := s.penalties.activeOfKind(ctx, tx, r.UserID, models.PenaltyDebt)
		if err != nil {
			return err
		}
		if existing != nil {
			out.skipped = true
			return nil
		}

		if out.unpaid, err = s.ledger.Outstanding(ctx, tx, r); err != nil {
			return err
		}
		if out.credit, err = s.consumeActiveReservations(ctx, tx, r.UserID); err != nil {
			return err
		}
		out.balance = roundCents(out.unpaid - out.credit)

		if out.balance > 0 {
			_, err := s.penalties.ActivateDebtPenalty(ctx, tx, r.UserID, out.balance)
			return err
		}

		if err := s.transition(ctx, tx, r.ID, models.StatePendingPayment, models.StateFinished, nil); err != nil {
			return err
		}
		if _, err := s.penalties.RecordSettledDebt(ctx, tx, r.UserID); err != nil {
			return err
		}
		if out.balance < 0 {
			return tx.Create(&models.PendingRefund{
				UserID:        r.UserID,
				ReservationID: r.ID,
				Amount:        -out.balance,
			}).Error
		}
		return nil
	})
	if err != nil {
		return rowSkipped, err
	}
	if out.skipped {
		s.log.Info("User already has an active debt, skipping",
			zap.Uint("user_id", r.UserID), zap.Uint("reservation_id", r.ID))
		return rowSkipped, nil
	}

	credit, balance := out.credit, out.balance
	log := s.log.With(
		zap.Uint("reservation_id", r.ID),
		zap.Uint("user_id", r.UserID),
		zap.Float64("unpaid", out.unpaid),
		zap.Float64("credit", credit),
		zap.Float64("balance", balance))

	if balance > 0 {
		log.Info("Debt penalty applied")

		msg := fmt.Sprintf("A debt was generated for the unpaid reservation at %s on %s. You owe $%s and your account is disabled until it is paid. Interest of %s%% per day applies.",
			r.Facility.Name, s.cal.Format(r.SlotStart), formatAmount(balance), formatAmount(s.policy.DailyInterestPct*100))
		if credit > 0 {
			msg = fmt.Sprintf("A debt was generated for the unpaid reservation at %s on %s. $%s from your upcoming reservations was applied to it, leaving $%s owed. Your account is disabled until it is paid.",
				r.Facility.Name, s.cal.Format(r.SlotStart), formatAmount(credit), formatAmount(balance))
		}
		d := s.reservationDetails(r)
		d.Amount = amountPtr(balance)
		s.send(ctx, notify.Notification{
			RecipientUserID: r.UserID,
			Email:           r.User.Email,
			Kind:            notify.KindPenalty,
			Message:         msg,
			Details:         d,
		})
		return rowTransitioned, nil
	}

	msg := fmt.Sprintf("Your unpaid balance for the reservation at %s on %s was covered with $%s from your upcoming reservations, which were cancelled.",
		r.Facility.Name, s.cal.Format(r.SlotStart), formatAmount(credit))
	d := s.reservationDetails(r)
	if balance < 0 {
		log.Warn("Debt settled with surplus, refund pending", zap.Float64("surplus", -balance))
		msg += fmt.Sprintf(" The remaining $%s will be refunded to you.", formatAmount(-balance))
		d.Amount = amountPtr(-balance)
	} else {
		log.Info("Debt settled with credit")
	}
	s.send(ctx, notify.Notification{
		RecipientUserID: r.UserID,
		Email:           r.User.Email,
		Kind:            notify.KindInfo,
		Message:         msg,
		Details:         d,
	})
	return rowTransitioned, nil
}

// consumeActiveReservations cancels the user's Active reservations inside tx
// without refund and returns what had been paid for them.
func (s *ReconciliationService) consumeActiveReservations(ctx context.Context, tx *gorm.DB, userID uint) (float64, error) {
	active, err := s.reservationsByUser(ctx, tx, userID, models.StateActive)
	if err != nil {
		return 0, err
	}

	var credit float64
	for i := range active {
		a := &active[i]
		paid, err := s.ledger.TotalPaid(ctx, tx, a.ID)
		if err != nil {
			return 0, err
		}
		if _, err := s.cancelReservation(ctx, tx, a, false, false); err != nil {
			if errors.Is(err, ErrStateConflict) {
				continue
			}
			return 0, err
		}
		credit += paid
	}
	return roundCents(credit), nil
}
