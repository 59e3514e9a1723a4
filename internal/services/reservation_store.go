package services

import (
	"context"
	"errors"

	"reservas-backend/internal/metrics"
	"reservas-backend/internal/models"

	"gorm.io/gorm"
)

// transition moves a reservation from one state to another only if it is
// still in the expected state. Losing the race returns ErrStateConflict.
func (e *env) transition(ctx context.Context, tx *gorm.DB, id uint, from, to models.ReservationState, extra map[string]interface{}) error {
	updates := map[string]interface{}{"state": to}
	for k, v := range extra {
		updates[k] = v
	}

	result := e.conn(ctx, tx).Model(&models.Reservation{}).
		Where("id = ? AND state = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStateConflict
	}
	metrics.RecordTransition(to.String())
	return nil
}

func (e *env) getReservation(ctx context.Context, tx *gorm.DB, id uint) (*models.Reservation, error) {
	var r models.Reservation
	if err := e.conn(ctx, tx).Preload("Facility").Preload("User").First(&r, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (e *env) reservationsByUser(ctx context.Context, tx *gorm.DB, userID uint, states ...models.ReservationState) ([]models.Reservation, error) {
	var rs []models.Reservation
	err := e.conn(ctx, tx).Preload("Facility").
		Where("user_id = ? AND state IN ?", userID, states).
		Order("slot_start").
		Find(&rs).Error
	return rs, err
}

func (e *env) countPendingPayments(ctx context.Context, tx *gorm.DB, userID uint, excludeID uint) (int64, error) {
	var n int64
	q := e.conn(ctx, tx).Model(&models.Reservation{}).
		Where("user_id = ? AND state = ?", userID, models.StatePendingPayment)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&n).Error
	return n, err
}

func (e *env) findUser(ctx context.Context, tx *gorm.DB, id uint) (*models.User, error) {
	var u models.User
	if err := e.conn(ctx, tx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}
