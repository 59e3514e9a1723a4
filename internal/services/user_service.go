package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"reservas-backend/internal/models"
	"reservas-backend/internal/notify"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type UserService struct {
	*env
	penalties *PenaltyService
}

func (s *UserService) FindUserByID(ctx context.Context, userID uint) (models.User, error) {
	// Try cache
	cacheKey := s.userCacheKey(userID)
	if s.redis != nil {
		val, err := s.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var user models.User
			if err := json.Unmarshal([]byte(val), &user); err == nil {
				return user, nil
			}
		}
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user, ErrUserNotFound
		}
		return user, err
	}

	// Set cache
	if s.redis != nil {
		if data, err := json.Marshal(user); err == nil {
			s.redis.Set(ctx, cacheKey, data, time.Hour)
		}
	}

	return user, nil
}

// FindUsers retrieves a paginated list of active users.
func (s *UserService) FindUsers(ctx context.Context, page, limit int) ([]models.User, int64, error) {
	var users []models.User
	var total int64

	offset := (page - 1) * limit
	query := s.db.WithContext(ctx).Model(&models.User{}).Where("active = ?", true)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := query.Order("id").Limit(limit).Offset(offset).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *UserService) FindByDNI(ctx context.Context, dni string) (*models.User, error) {
	return s.userByDNI(ctx, dni)
}

func (e *env) userByDNI(ctx context.Context, dni string) (*models.User, error) {
	var u models.User
	err := e.db.WithContext(ctx).Where("dni = ? AND active = ?", strings.TrimSpace(dni), true).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

type UserDetail struct {
	User                models.User     `json:"user"`
	DebtPenalty         *models.Penalty `json:"debt_penalty"`
	CancellationPenalty *models.Penalty `json:"cancellation_penalty"`
	Debt                *DebtAmount     `json:"debt,omitempty"`
}

// Detail returns the user with their active penalties and current debt.
func (s *UserService) Detail(ctx context.Context, userID uint) (*UserDetail, error) {
	u, err := s.findUser(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	out := &UserDetail{User: *u}

	if out.DebtPenalty, err = s.penalties.activeOfKind(ctx, nil, userID, models.PenaltyDebt); err != nil {
		return nil, err
	}
	if out.CancellationPenalty, err = s.penalties.activeOfKind(ctx, nil, userID, models.PenaltyExcessiveCancellations); err != nil {
		return nil, err
	}
	if out.DebtPenalty != nil {
		d := s.penalties.debtOf(out.DebtPenalty)
		out.Debt = &d
	}
	return out, nil
}

// Enable lets an admin re-enable a user by hand.
func (s *UserService) Enable(ctx context.Context, userID uint) error {
	return s.penalties.setEnabled(ctx, nil, userID, true)
}

// UpdateUser updates a user with optimistic locking and selective fields.
func (s *UserService) UpdateUser(ctx context.Context, id uint, updates map[string]interface{}, operator string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}

		// Password handling
		if password, ok := updates["password"].(string); ok && password != "" {
			hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			updates["password"] = string(hashedPassword)
		}

		// Optimistic Lock Check
		currentVersion := user.Version
		updates["version"] = currentVersion + 1

		result := tx.Model(&user).Where("version = ?", currentVersion).Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrOptimisticLock
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateUser(ctx, id)
	fields := make([]string, 0, len(updates))
	for k := range updates {
		if k != "password" {
			fields = append(fields, k)
		}
	}
	s.log.Info("User updated", zap.Uint("user_id", id), zap.String("operator", operator), zap.Strings("fields", fields))

	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

type DeleteAccountResult struct {
	Deleted              bool   `json:"deleted"`
	RequiresConfirmation bool   `json:"requires_confirmation"`
	Message              string `json:"message"`
}

// DeleteAccount soft-deletes target. Customers deleting themselves are
// blocked by active penalties or unpaid reservations; admins are asked to
// confirm instead unless force is set. Live reservations are cancelled.
func (s *UserService) DeleteAccount(ctx context.Context, actor *models.User, targetID uint, force bool) (*DeleteAccountResult, error) {
	if !actor.IsAdmin() && actor.ID != targetID {
		return nil, permissionError("not authorized")
	}
	target, err := s.findUser(ctx, nil, targetID)
	if err != nil {
		return nil, err
	}
	if !target.Active {
		return nil, ErrUserNotFound
	}

	penalties, err := s.penalties.ActivePenalties(ctx, targetID)
	if err != nil {
		return nil, err
	}
	pending, err := s.countPendingPayments(ctx, nil, targetID, 0)
	if err != nil {
		return nil, err
	}
	hasPenalties := len(penalties) > 0
	hasDebts := pending > 0

	if !actor.IsAdmin() {
		if hasPenalties {
			return nil, conflictError("you cannot delete your account while you have active penalties, please contact the administration")
		}
		if hasDebts {
			return nil, conflictError("you cannot delete your account while you have reservations pending payment, please contact the administration")
		}
	} else if !force && (hasPenalties || hasDebts) {
		var reasons []string
		if hasPenalties {
			reasons = append(reasons, "active penalties")
		}
		if hasDebts {
			reasons = append(reasons, "unpaid reservations")
		}
		return &DeleteAccountResult{
			RequiresConfirmation: true,
			Message:              "The user has " + strings.Join(reasons, " and ") + ". Delete anyway? Their upcoming reservations will be cancelled.",
		}, nil
	}

	rs, err := s.reservationsByUser(ctx, nil, targetID, models.StateActive, models.StateInProgress)
	if err != nil {
		return nil, err
	}
	n := s.cancelMany(ctx, rs, bulkCancel{refund: s.refundable})

	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND active = ?", targetID, true).
		Updates(map[string]interface{}{"active": false, "version": gorm.Expr("version + 1")})
	if res.Error != nil {
		return nil, res.Error
	}
	s.invalidateUser(ctx, targetID)
	s.log.Info("User deleted",
		zap.Uint("user_id", targetID),
		zap.Uint("operator_id", actor.ID),
		zap.Int("cancelled_reservations", n))

	s.send(ctx, notify.Notification{
		RecipientUserID: target.ID,
		Email:           target.Email,
		Kind:            notify.KindDeletion,
		Message:         "Your account has been deleted. Upcoming reservations were cancelled.",
	})

	return &DeleteAccountResult{Deleted: true, Message: "Account deleted"}, nil
}
