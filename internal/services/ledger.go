package services

import (
	"context"
	"fmt"
	"time"

	"reservas-backend/internal/models"
	"reservas-backend/internal/payment"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Ledger records money moving in and out of reservations. Methods taking a
// tx run inside it when it is non-nil.
type Ledger struct {
	*env
}

// Record inserts a signed payment row.
func (l *Ledger) Record(ctx context.Context, tx *gorm.DB, reservationID uint, amount float64, kind models.PaymentKind, chargeRef string, operatorID uint) (*models.Payment, error) {
	if amount <= 0 {
		return nil, validationError("payment amount must be positive")
	}
	p := &models.Payment{
		ReservationID: reservationID,
		Amount:        roundCents(amount),
		Kind:          kind,
		ChargeRef:     chargeRef,
		OperatorID:    operatorID,
		CreatedAt:     l.now().Truncate(time.Millisecond),
	}
	p.Hash = p.GenerateHash(l.paymentSecret)
	if err := l.conn(ctx, tx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// Charge collects amount through the gateway and records it. When the row
// cannot be written the charge is refunded.
func (l *Ledger) Charge(ctx context.Context, userID, reservationID uint, amount float64, kind models.PaymentKind, operatorID uint) (*models.Payment, error) {
	res, err := l.gateway.Charge(ctx, payment.ChargeRequest{
		UserID:        userID,
		ReservationID: reservationID,
		Amount:        roundCents(amount),
		Description:   fmt.Sprintf("%s for reservation %d", kind, reservationID),
	})
	if err != nil {
		l.log.Warn("Charge failed", zap.Uint("reservation_id", reservationID), zap.Error(err))
		return nil, dependencyError("payment could not be processed")
	}

	p, err := l.Record(ctx, nil, reservationID, amount, kind, res.Reference, operatorID)
	if err != nil {
		if rerr := l.gateway.Refund(context.WithoutCancel(ctx), payment.RefundRequest{
			Reference: res.Reference, ReservationID: reservationID, Amount: roundCents(amount),
		}); rerr != nil {
			l.log.Error("Failed to refund orphaned charge", zap.String("reference", res.Reference), zap.Error(rerr))
		}
		return nil, err
	}
	return p, nil
}

// TotalPaid sums the non-refunded payments of a reservation.
func (l *Ledger) TotalPaid(ctx context.Context, tx *gorm.DB, reservationID uint) (float64, error) {
	var total float64
	err := l.conn(ctx, tx).Model(&models.Payment{}).
		Where("reservation_id = ? AND refunded = ?", reservationID, false).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return roundCents(total), nil
}

// Outstanding is tariff minus what has been paid. It can be negative.
func (l *Ledger) Outstanding(ctx context.Context, tx *gorm.DB, r *models.Reservation) (float64, error) {
	paid, err := l.TotalPaid(ctx, tx, r.ID)
	if err != nil {
		return 0, err
	}
	return roundCents(r.Tariff - paid), nil
}

// RefundAll returns every non-refunded payment of the reservation through the
// gateway and marks each one refunded. It returns the amount refunded so far
// even when a later refund fails.
func (l *Ledger) RefundAll(ctx context.Context, reservationID uint) (float64, error) {
	var payments []models.Payment
	if err := l.db.WithContext(ctx).
		Where("reservation_id = ? AND refunded = ?", reservationID, false).
		Order("id").Find(&payments).Error; err != nil {
		return 0, err
	}

	var refunded float64
	for i := range payments {
		if err := l.Refund(ctx, &payments[i]); err != nil {
			return roundCents(refunded), err
		}
		refunded += payments[i].Amount
	}
	return roundCents(refunded), nil
}

// Refund returns a single payment through the gateway and marks it refunded.
func (l *Ledger) Refund(ctx context.Context, p *models.Payment) error {
	if err := l.gateway.Refund(ctx, payment.RefundRequest{
		Reference:     p.ChargeRef,
		ReservationID: p.ReservationID,
		Amount:        p.Amount,
	}); err != nil {
		return fmt.Errorf("refund payment %d: %w", p.ID, err)
	}

	now := l.now()
	if err := l.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND refunded = ?", p.ID, false).
		Updates(map[string]interface{}{"refunded": true, "refunded_at": now}).Error; err != nil {
		return fmt.Errorf("mark payment %d refunded: %w", p.ID, err)
	}
	p.Refunded = true
	p.RefundedAt = &now
	return nil
}

// Payments lists the rows of one reservation, oldest first.
func (l *Ledger) Payments(ctx context.Context, reservationID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := l.db.WithContext(ctx).Where("reservation_id = ?", reservationID).Order("id").Find(&payments).Error
	return payments, err
}

// Verify reports whether a payment row still matches its signature.
func (l *Ledger) Verify(p *models.Payment) bool {
	return p.Hash == p.GenerateHash(l.paymentSecret)
}
