package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"reservas-backend/internal/models"
	"reservas-backend/internal/notify"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReservationService struct {
	*env
	penalties *PenaltyService
}

type CreateReservationInput struct {
	Actor      *models.User
	FacilityID uint
	Date       string // YYYY-MM-DD, local
	StartHour  int
	Deposit    float64
	// CustomerDNI lets an admin book on behalf of a customer.
	CustomerDNI string
}

type CreatedReservation struct {
	ReservationID uint
	SlotStart     time.Time
	Deposit       float64
}

// Create books a slot and collects the deposit. The work runs as a saga:
// insert a Temporary reservation, take the deposit, then activate it. A
// failing step undoes the previous ones.
func (s *ReservationService) Create(ctx context.Context, in CreateReservationInput) (*CreatedReservation, error) {
	if in.Actor == nil {
		return nil, permissionError("authentication required")
	}

	target, onBehalf, err := s.resolveCustomer(ctx, in.Actor, in.CustomerDNI)
	if err != nil {
		return nil, err
	}

	facility, err := s.activeFacility(ctx, in.FacilityID)
	if err != nil {
		return nil, err
	}

	slot, err := s.cal.SlotStart(in.Date, in.StartHour)
	if err != nil {
		return nil, validationError("invalid slot: %v", err)
	}
	if err := checkOpeningHours(facility, in.StartHour); err != nil {
		return nil, err
	}
	if !slot.After(s.now()) {
		return nil, validationError("cannot book a slot in the past")
	}

	suspended, err := s.isSuspended(ctx, facility.ID, slot)
	if err != nil {
		return nil, err
	}
	if suspended {
		return nil, conflictError("facility is suspended at the requested time")
	}

	pending, err := s.countPendingPayments(ctx, nil, target.ID, 0)
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		return nil, conflictError("cannot create a reservation because the user has reservations pending payment")
	}
	penalties, err := s.penalties.ActivePenalties(ctx, target.ID)
	if err != nil {
		return nil, err
	}
	if len(penalties) > 0 {
		return nil, permissionError("cannot create a reservation because the user has active penalties")
	}
	if !target.Enabled {
		return nil, permissionError("cannot create a reservation because the user is disabled")
	}

	deposit := roundCents(in.Deposit)
	minDeposit := roundCents(s.policy.MinDepositPct * facility.HourlyRate)
	if deposit < minDeposit {
		return nil, validationError("minimum deposit $%s", formatAmount(minDeposit))
	}
	if deposit > facility.HourlyRate {
		return nil, validationError("maximum deposit $%s", formatAmount(facility.HourlyRate))
	}

	release, err := s.lockSlot(ctx, facility.ID, slot)
	if err != nil {
		return nil, err
	}
	defer release()

	sg := newSaga("create_reservation", s.log)

	r := &models.Reservation{
		UserID:     target.ID,
		FacilityID: facility.ID,
		SlotStart:  slot.UTC(),
		State:      models.StateTemporary,
		Tariff:     facility.HourlyRate,
	}
	if err := s.insertTemporary(ctx, r); err != nil {
		return nil, err
	}
	sg.completed("insert_temporary", func(ctx context.Context) error {
		return s.db.WithContext(ctx).Delete(&models.Reservation{}, r.ID).Error
	})

	var p *models.Payment
	if onBehalf {
		// Paid at the desk, no gateway charge.
		p, err = s.ledger.Record(ctx, nil, r.ID, deposit, models.PaymentKindDeposit, "", in.Actor.ID)
	} else {
		p, err = s.ledger.Charge(ctx, target.ID, r.ID, deposit, models.PaymentKindDeposit, target.ID)
	}
	if err != nil {
		sg.abort(ctx, "deposit", err)
		return nil, err
	}
	sg.completed("deposit", func(ctx context.Context) error {
		if !onBehalf {
			if err := s.ledger.Refund(ctx, p); err != nil {
				return err
			}
		}
		return s.db.WithContext(ctx).Delete(&models.Payment{}, p.ID).Error
	})

	if err := s.transition(ctx, nil, r.ID, models.StateTemporary, models.StateActive, nil); err != nil {
		sg.abort(ctx, "activate", err)
		return nil, err
	}

	s.log.Info("Reservation created",
		zap.Uint("reservation_id", r.ID),
		zap.Uint("user_id", target.ID),
		zap.Uint("facility_id", facility.ID),
		zap.Time("slot_start", r.SlotStart),
		zap.Float64("deposit", deposit))

	r.Facility = *facility
	d := s.reservationDetails(r)
	d.Amount = amountPtr(deposit)
	s.send(ctx, notify.Notification{
		RecipientUserID: target.ID,
		Email:           target.Email,
		Kind:            notify.KindConfirmation,
		Message: fmt.Sprintf("Your reservation at %s on %s is confirmed. Deposit paid: $%s.",
			facility.Name, s.cal.Format(slot), formatAmount(deposit)),
		Details: d,
	})

	return &CreatedReservation{ReservationID: r.ID, SlotStart: slot, Deposit: deposit}, nil
}

// insertTemporary re-checks the slot under a row lock and inserts r.
func (s *ReservationService) insertTemporary(ctx context.Context, r *models.Reservation) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var taken []models.Reservation
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("facility_id = ? AND slot_start = ? AND state <> ?", r.FacilityID, r.SlotStart, models.StateCancelled).
			Find(&taken).Error; err != nil {
			return err
		}
		if len(taken) > 0 {
			return ErrSlotTaken
		}
		return tx.Create(r).Error
	})
}

func (s *ReservationService) resolveCustomer(ctx context.Context, actor *models.User, dni string) (*models.User, bool, error) {
	dni = strings.TrimSpace(dni)
	if dni == "" {
		u, err := s.findUser(ctx, nil, actor.ID)
		if err != nil {
			return nil, false, err
		}
		if !u.Active {
			return nil, false, ErrUserNotFound
		}
		return u, false, nil
	}

	if !actor.IsAdmin() {
		return nil, false, permissionError("only administrators can book for another customer")
	}
	u, err := s.userByDNI(ctx, dni)
	if err != nil {
		return nil, false, err
	}
	return u, u.ID != actor.ID, nil
}

// checkOpeningHours requires the whole hour to fit between opening and
// closing time. A closing time of 00:00 means midnight.
func checkOpeningHours(f *models.Facility, hour int) error {
	open, err := parseTimeOfDay(f.OpensAt)
	if err != nil {
		return fmt.Errorf("facility %d opening time: %w", f.ID, err)
	}
	closing, err := parseTimeOfDay(f.ClosesAt)
	if err != nil {
		return fmt.Errorf("facility %d closing time: %w", f.ID, err)
	}
	if closing == 0 {
		closing = 24 * 60
	}
	start := hour * 60
	if start < open || start+60 > closing {
		return validationError("slot outside opening hours (%s-%s)", f.OpensAt, f.ClosesAt)
	}
	return nil
}

type CancelResult struct {
	Message        string  `json:"message"`
	Refunded       float64 `json:"refunded"`
	PenaltyApplied bool    `json:"penalty_applied"`
}

// Cancel cancels an Active reservation on behalf of its owner or an admin.
// Payments are refunded in full when the slot is at least MinRefundHours
// away. Exceeding the monthly cancellation allowance disables the user.
func (s *ReservationService) Cancel(ctx context.Context, reservationID uint, actor *models.User) (*CancelResult, error) {
	r, err := s.getReservation(ctx, nil, reservationID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && r.UserID != actor.ID {
		return nil, permissionError("you can only cancel your own reservations")
	}
	if r.State != models.StateActive {
		return nil, conflictError("only active reservations can be cancelled")
	}

	refund := s.refundable(r)
	out, err := s.cancelReservation(ctx, nil, r, true, refund)
	if err != nil {
		return nil, err
	}

	res := &CancelResult{Refunded: out.Refunded}
	hours := formatAmount(s.policy.MinRefundHours)
	switch {
	case !refund:
		res.Message = fmt.Sprintf("No refund was issued for cancelling less than %sh in advance.", hours)
	case out.RefundFailed:
		res.Message = "The reservation was cancelled but the refund could not be processed. It will be handled manually."
	default:
		res.Message = fmt.Sprintf("Refunded 100%% of the payment ($%s) for cancelling at least %sh in advance.", formatAmount(out.Refunded), hours)
	}

	count, err := s.monthlyCancellations(ctx, r.UserID)
	if err != nil {
		s.log.Error("Failed to count cancellations", zap.Uint("user_id", r.UserID), zap.Error(err))
	} else if count > int64(s.policy.MaxAllowedCancellations) {
		if _, created, err := s.penalties.ActivateCancellationPenalty(ctx, r.UserID); err != nil {
			s.log.Error("Failed to apply cancellation penalty", zap.Uint("user_id", r.UserID), zap.Error(err))
		} else if created {
			res.PenaltyApplied = true
			res.Message += fmt.Sprintf(" You exceeded %d cancellations this month, so your account is disabled for %d days.",
				s.policy.MaxAllowedCancellations, s.policy.DaysDisabled)
		}
	}

	d := s.reservationDetails(r)
	if out.Refunded > 0 {
		d.Amount = amountPtr(out.Refunded)
	}
	s.send(ctx, notify.Notification{
		RecipientUserID: r.UserID,
		Email:           r.User.Email,
		Kind:            notify.KindCancellation,
		Message:         fmt.Sprintf("Your reservation at %s on %s was cancelled. %s", r.Facility.Name, s.cal.Format(r.SlotStart), res.Message),
		Details:         d,
	})

	return res, nil
}

// monthlyCancellations counts the customer's own cancellations in the
// current local calendar month.
func (s *ReservationService) monthlyCancellations(ctx context.Context, userID uint) (int64, error) {
	from, to := s.cal.MonthBounds(s.now())
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Reservation{}).
		Where("user_id = ? AND state = ? AND cancelled_by_customer = ?", userID, models.StateCancelled, true).
		Where("cancelled_at >= ? AND cancelled_at < ?", from.UTC(), to.UTC()).
		Count(&n).Error
	return n, err
}

type ConfirmResult struct {
	Confirmed bool   `json:"confirmed"`
	Warning   string `json:"warning,omitempty"`
}

// ConfirmAttendance marks the customer as present. When the customer still
// owes another reservation nothing changes and a warning is returned.
func (s *ReservationService) ConfirmAttendance(ctx context.Context, reservationID uint, actor *models.User) (*ConfirmResult, error) {
	if !actor.IsAdmin() {
		return nil, permissionError("only administrators can confirm attendance")
	}
	r, err := s.getReservation(ctx, nil, reservationID)
	if err != nil {
		return nil, err
	}
	if r.State != models.StateActive {
		return nil, conflictError("reservation is not active")
	}

	pending, err := s.countPendingPayments(ctx, nil, r.UserID, r.ID)
	if err != nil {
		return nil, err
	}
	if pending > 0 {
		return &ConfirmResult{
			Warning: "The user has a reservation pending payment. If it is not settled before confirming, this reservation will end up marked absent.",
		}, nil
	}

	if err := s.transition(ctx, nil, r.ID, models.StateActive, models.StateInProgress, map[string]interface{}{"attended": true}); err != nil {
		return nil, err
	}
	return &ConfirmResult{Confirmed: true}, nil
}

type PaymentResult struct {
	Amount  float64 `json:"amount"`
	Message string  `json:"message"`
}

// CompletePayment settles a PendingPayment reservation. With an active debt
// penalty the accrued debt is charged and the penalty closed; otherwise the
// outstanding balance is charged.
func (s *ReservationService) CompletePayment(ctx context.Context, reservationID uint, actor *models.User) (*PaymentResult, error) {
	if !actor.IsAdmin() {
		return nil, permissionError("only administrators can complete payments")
	}
	r, err := s.getReservation(ctx, nil, reservationID)
	if err != nil {
		return nil, err
	}
	if r.State != models.StatePendingPayment {
		return nil, conflictError("reservation is not pending payment")
	}

	debt, err := s.penalties.ActiveDebt(ctx, r.UserID)
	if err != nil {
		return nil, err
	}

	var (
		amount  float64
		kind    models.PaymentKind
		message string
	)
	if debt != nil {
		amount = s.penalties.debtOf(debt).Total
		kind = models.PaymentKindDebt
		message = fmt.Sprintf("A debt penalty was applied. Amount paid: $%s", formatAmount(amount))
	} else {
		amount, err = s.ledger.Outstanding(ctx, nil, r)
		if err != nil {
			return nil, err
		}
		if amount <= 0 {
			return nil, conflictError("nothing to pay: the amount paid already covers the tariff")
		}
		kind = models.PaymentKindBalance
		message = fmt.Sprintf("Payment completed. Amount paid: $%s", formatAmount(amount))
	}
	if amount <= 0 {
		return nil, conflictError("nothing to pay")
	}

	p, err := s.ledger.Charge(ctx, r.UserID, r.ID, amount, kind, actor.ID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.transition(ctx, tx, r.ID, models.StatePendingPayment, models.StateFinished, nil); err != nil {
			return err
		}
		if debt != nil {
			return s.penalties.DeactivateDebtPenalty(ctx, tx, r.UserID)
		}
		return nil
	})
	if err != nil {
		if rerr := s.ledger.Refund(context.WithoutCancel(ctx), p); rerr != nil {
			s.log.Error("Failed to refund payment after completion failure",
				zap.Uint("payment_id", p.ID), zap.Error(rerr))
		}
		return nil, err
	}

	d := s.reservationDetails(r)
	d.Amount = amountPtr(amount)
	s.send(ctx, notify.Notification{
		RecipientUserID: r.UserID,
		Email:           r.User.Email,
		Kind:            notify.KindPayment,
		Message:         fmt.Sprintf("Payment for your reservation at %s received. %s", r.Facility.Name, message),
		Details:         d,
	})

	return &PaymentResult{Amount: amount, Message: message}, nil
}

// Get returns a reservation visible to actor.
func (s *ReservationService) Get(ctx context.Context, reservationID uint, actor *models.User) (*models.Reservation, error) {
	r, err := s.getReservation(ctx, nil, reservationID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && r.UserID != actor.ID {
		return nil, ErrReservationNotFound
	}
	if err := s.db.WithContext(ctx).Where("reservation_id = ?", r.ID).Order("id").Find(&r.Payments).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// ReservationFilter defines criteria for listing reservations
type ReservationFilter struct {
	UserID     *uint
	FacilityID *uint
	State      *models.ReservationState
	From       *time.Time
	To         *time.Time
	Page       int
	Limit      int
}

func (s *ReservationService) List(ctx context.Context, filter ReservationFilter) ([]models.Reservation, int64, error) {
	var rs []models.Reservation
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Reservation{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.FacilityID != nil {
		query = query.Where("facility_id = ?", *filter.FacilityID)
	}
	if filter.State != nil {
		query = query.Where("state = ?", *filter.State)
	}
	if filter.From != nil {
		query = query.Where("slot_start >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		query = query.Where("slot_start < ?", filter.To.UTC())
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	offset := (filter.Page - 1) * filter.Limit
	if err := query.Preload("Facility").Order("slot_start desc").Limit(filter.Limit).Offset(offset).Find(&rs).Error; err != nil {
		return nil, 0, err
	}
	return rs, total, nil
}

// ListFacilitySlots returns the non-cancelled reservations of a facility on
// one local day, in slot order.
func (s *ReservationService) ListFacilitySlots(ctx context.Context, facilityID uint, date string) ([]models.Reservation, error) {
	from, to, err := s.cal.DayBounds(date)
	if err != nil {
		return nil, validationError("invalid date %q, expected YYYY-MM-DD", date)
	}
	if _, err := s.activeFacility(ctx, facilityID); err != nil {
		return nil, err
	}

	var rs []models.Reservation
	err = s.db.WithContext(ctx).
		Where("facility_id = ? AND state <> ? AND slot_start >= ? AND slot_start < ?",
			facilityID, models.StateCancelled, from.UTC(), to.UTC()).
		Order("slot_start").
		Find(&rs).Error
	return rs, err
}

// PendingPayments lists the user's reservations awaiting payment.
func (s *ReservationService) PendingPayments(ctx context.Context, userID uint) ([]models.Reservation, error) {
	return s.reservationsByUser(ctx, nil, userID, models.StatePendingPayment)
}
