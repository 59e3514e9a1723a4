package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"time"

	"reservas-backend/internal/models"

	"go.uber.org/zap"
)

type PaymentService struct {
	*env
}

// PaymentFilter defines criteria for filtering payments
type PaymentFilter struct {
	UserID        *uint
	ReservationID *uint
	Kind          *models.PaymentKind
	Refunded      *bool
	StartTime     *time.Time
	EndTime       *time.Time
	MinAmount     *float64
	MaxAmount     *float64
	Page          int
	Limit         int
}

// FindPayments retrieves a paginated list of payments with filtering
func (s *PaymentService) FindPayments(ctx context.Context, filter PaymentFilter) ([]models.Payment, int64, error) {
	var payments []models.Payment
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Payment{})

	if filter.UserID != nil {
		query = query.Where("reservation_id IN (?)",
			s.db.Model(&models.Reservation{}).Select("id").Where("user_id = ?", *filter.UserID))
	}
	if filter.ReservationID != nil {
		query = query.Where("reservation_id = ?", *filter.ReservationID)
	}
	if filter.Kind != nil {
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.Refunded != nil {
		query = query.Where("refunded = ?", *filter.Refunded)
	}
	if filter.StartTime != nil {
		query = query.Where("created_at >= ?", filter.StartTime.UTC())
	}
	if filter.EndTime != nil {
		query = query.Where("created_at <= ?", filter.EndTime.UTC())
	}
	if filter.MinAmount != nil {
		query = query.Where("amount >= ?", *filter.MinAmount)
	}
	if filter.MaxAmount != nil {
		query = query.Where("amount <= ?", *filter.MaxAmount)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (filter.Page - 1) * filter.Limit
	if err := query.Order("created_at desc").Limit(filter.Limit).Offset(offset).Find(&payments).Error; err != nil {
		return nil, 0, err
	}

	return payments, total, nil
}

// GeneratePaymentCSV renders payments as CSV. Rows whose signature no longer
// matches are flagged in the last column.
func (s *PaymentService) GeneratePaymentCSV(payments []models.Payment) ([]byte, error) {
	b := &bytes.Buffer{}
	w := csv.NewWriter(b)

	header := []string{
		"ID", "Time", "Reservation ID", "Kind", "Amount",
		"Refunded", "Refunded At", "Charge Ref", "Operator ID", "Hash", "Valid",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, p := range payments {
		refundedAt := ""
		if p.RefundedAt != nil {
			refundedAt = s.cal.Format(*p.RefundedAt)
		}
		record := []string{
			fmt.Sprintf("%d", p.ID),
			s.cal.Format(p.CreatedAt),
			fmt.Sprintf("%d", p.ReservationID),
			string(p.Kind),
			fmt.Sprintf("%.2f", p.Amount),
			fmt.Sprintf("%t", p.Refunded),
			refundedAt,
			p.ChargeRef,
			fmt.Sprintf("%d", p.OperatorID),
			p.Hash,
			fmt.Sprintf("%t", s.ledger.Verify(&p)),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

// PendingRefunds lists surplus refunds, unresolved first.
func (s *PaymentService) PendingRefunds(ctx context.Context, onlyOpen bool) ([]models.PendingRefund, error) {
	var out []models.PendingRefund
	q := s.db.WithContext(ctx).Order("resolved, created_at")
	if onlyOpen {
		q = q.Where("resolved = ?", false)
	}
	err := q.Find(&out).Error
	return out, err
}

// ResolveRefund marks a pending refund as paid out by an admin.
func (s *PaymentService) ResolveRefund(ctx context.Context, id uint, operatorID uint) error {
	res := s.db.WithContext(ctx).Model(&models.PendingRefund{}).
		Where("id = ? AND resolved = ?", id, false).
		Updates(map[string]interface{}{
			"resolved":    true,
			"resolved_by": operatorID,
			"resolved_at": s.now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFoundError("pending refund not found or already resolved")
	}
	s.log.Info("Pending refund resolved", zap.Uint("refund_id", id), zap.Uint("operator_id", operatorID))
	return nil
}
