package services

import (
	"context"
	"errors"
	"fmt"

	"reservas-backend/internal/models"
	"reservas-backend/internal/notify"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type PenaltyService struct {
	*env
}

// DebtAmount is the breakdown of what a debtor owes today.
type DebtAmount struct {
	PenaltyID uint    `json:"penalty_id"`
	Principal float64 `json:"principal"`
	Interest  float64 `json:"interest"`
	Total     float64 `json:"total"`
	Days      int     `json:"days"`
}

// AccruedDebt applies simple daily interest on principal.
func AccruedDebt(principal float64, days int, dailyPct float64) float64 {
	if days < 0 {
		days = 0
	}
	return roundCents(principal + float64(days)*principal*dailyPct)
}

// ActivePenalties lists the user's active penalties of any kind.
func (s *PenaltyService) ActivePenalties(ctx context.Context, userID uint) ([]models.Penalty, error) {
	return s.activePenalties(ctx, nil, userID)
}

func (s *PenaltyService) activePenalties(ctx context.Context, tx *gorm.DB, userID uint) ([]models.Penalty, error) {
	var ps []models.Penalty
	err := s.conn(ctx, tx).Where("user_id = ? AND active = ?", userID, true).Order("starts_at").Find(&ps).Error
	return ps, err
}

func (s *PenaltyService) activeOfKind(ctx context.Context, tx *gorm.DB, userID uint, kind models.PenaltyKind) (*models.Penalty, error) {
	var p models.Penalty
	err := s.conn(ctx, tx).
		Where("user_id = ? AND kind = ? AND active = ?", userID, kind, true).
		Order("starts_at DESC").
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// ActiveDebt returns the user's active debt penalty, or nil.
func (s *PenaltyService) ActiveDebt(ctx context.Context, userID uint) (*models.Penalty, error) {
	return s.activeOfKind(ctx, nil, userID, models.PenaltyDebt)
}

// ComputeDebtAmount recomputes the debt as of now. Whole local calendar days
// since the penalty started accrue interest; day 0 owes the principal.
func (s *PenaltyService) ComputeDebtAmount(ctx context.Context, userID uint) (DebtAmount, error) {
	p, err := s.ActiveDebt(ctx, userID)
	if err != nil {
		return DebtAmount{}, err
	}
	if p == nil {
		return DebtAmount{}, notFoundError("user has no active debt")
	}
	return s.debtOf(p), nil
}

func (s *PenaltyService) debtOf(p *models.Penalty) DebtAmount {
	var principal float64
	if p.InitialAmount != nil {
		principal = *p.InitialAmount
	}
	days := s.cal.DaysBetween(p.StartsAt, s.now())
	total := AccruedDebt(principal, days, s.policy.DailyInterestPct)
	return DebtAmount{
		PenaltyID: p.ID,
		Principal: roundCents(principal),
		Interest:  roundCents(total - principal),
		Total:     total,
		Days:      days,
	}
}

// ActivateDebtPenalty opens a debt for amount and disables the user.
func (s *PenaltyService) ActivateDebtPenalty(ctx context.Context, tx *gorm.DB, userID uint, amount float64) (*models.Penalty, error) {
	if amount <= 0 {
		return nil, validationError("debt amount must be positive")
	}
	existing, err := s.activeOfKind(ctx, tx, userID, models.PenaltyDebt)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, conflictError("user already has an active debt penalty")
	}

	p := &models.Penalty{
		UserID:        userID,
		Kind:          models.PenaltyDebt,
		StartsAt:      s.now(),
		InitialAmount: amountPtr(amount),
		Active:        true,
	}
	if err := s.conn(ctx, tx).Create(p).Error; err != nil {
		return nil, err
	}
	if err := s.setEnabled(ctx, tx, userID, false); err != nil {
		return nil, err
	}
	return p, nil
}

// RecordSettledDebt keeps an inactive zero-amount debt as a trace of a debt
// that was settled against credit.
func (s *PenaltyService) RecordSettledDebt(ctx context.Context, tx *gorm.DB, userID uint) (*models.Penalty, error) {
	now := s.now()
	p := &models.Penalty{
		UserID:        userID,
		Kind:          models.PenaltyDebt,
		StartsAt:      now,
		EndsAt:        &now,
		InitialAmount: amountPtr(0),
		Active:        false,
	}
	if err := s.conn(ctx, tx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

// DeactivateDebtPenalty closes the user's active debts. The user is enabled
// again only when no other penalty remains active.
func (s *PenaltyService) DeactivateDebtPenalty(ctx context.Context, tx *gorm.DB, userID uint) error {
	now := s.now()
	if err := s.conn(ctx, tx).Model(&models.Penalty{}).
		Where("user_id = ? AND kind = ? AND active = ?", userID, models.PenaltyDebt, true).
		Updates(map[string]interface{}{"active": false, "ends_at": now}).Error; err != nil {
		return err
	}
	return s.reenableIfClear(ctx, tx, userID)
}

// ActivateCancellationPenalty disables the user for DaysDisabled and cancels
// their Active and InProgress reservations. Only Active reservations far
// enough ahead are refunded. created is false when the user already had an
// active cancellation penalty, which is returned unchanged.
func (s *PenaltyService) ActivateCancellationPenalty(ctx context.Context, userID uint) (p *models.Penalty, created bool, err error) {
	existing, err := s.activeOfKind(ctx, nil, userID, models.PenaltyExcessiveCancellations)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	user, err := s.findUser(ctx, nil, userID)
	if err != nil {
		return nil, false, err
	}

	now := s.now()
	end := now.AddDate(0, 0, s.policy.DaysDisabled)
	p = &models.Penalty{
		UserID:   userID,
		Kind:     models.PenaltyExcessiveCancellations,
		StartsAt: now,
		EndsAt:   &end,
		Active:   true,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		return s.setEnabled(ctx, tx, userID, false)
	})
	if err != nil {
		return nil, false, err
	}

	rs, err := s.reservationsByUser(ctx, nil, userID, models.StateActive, models.StateInProgress)
	if err != nil {
		s.log.Error("Failed to load reservations for penalty cascade", zap.Uint("user_id", userID), zap.Error(err))
	} else {
		n := s.cancelMany(ctx, rs, bulkCancel{refund: s.refundable})
		s.log.Info("Cancellation penalty applied",
			zap.Uint("user_id", userID),
			zap.Int("cancelled_reservations", n),
			zap.Time("ends_at", end))
	}

	s.send(ctx, notify.Notification{
		RecipientUserID: userID,
		Email:           user.Email,
		Kind:            notify.KindDisablement,
		Message: fmt.Sprintf("Your account has been disabled until %s for exceeding %d cancellations in a month. Your upcoming reservations were cancelled.",
			s.cal.FormatDate(end), s.policy.MaxAllowedCancellations),
	})
	return p, true, nil
}

// ExpireCancellationPenalties closes cancellation penalties whose end has
// passed and re-enables users left without penalties.
func (s *PenaltyService) ExpireCancellationPenalties(ctx context.Context) (int, error) {
	var expired []models.Penalty
	if err := s.db.WithContext(ctx).
		Where("kind = ? AND active = ? AND ends_at IS NOT NULL AND ends_at <= ?",
			models.PenaltyExcessiveCancellations, true, s.now()).
		Find(&expired).Error; err != nil {
		return 0, err
	}

	n := 0
	for _, p := range expired {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Model(&models.Penalty{}).Where("id = ? AND active = ?", p.ID, true).Update("active", false)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return nil
			}
			return s.reenableIfClear(ctx, tx, p.UserID)
		})
		if err != nil {
			s.log.Error("Failed to expire penalty", zap.Uint("penalty_id", p.ID), zap.Error(err))
			continue
		}
		n++
	}
	return n, nil
}

func (s *PenaltyService) reenableIfClear(ctx context.Context, tx *gorm.DB, userID uint) error {
	var remaining int64
	if err := s.conn(ctx, tx).Model(&models.Penalty{}).
		Where("user_id = ? AND active = ?", userID, true).
		Count(&remaining).Error; err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}
	return s.setEnabled(ctx, tx, userID, true)
}

// setEnabled flips the user's Enabled flag and bumps its version.
func (s *PenaltyService) setEnabled(ctx context.Context, tx *gorm.DB, userID uint, enabled bool) error {
	res := s.conn(ctx, tx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"enabled": enabled,
			"version": gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	s.invalidateUser(ctx, userID)
	return nil
}
