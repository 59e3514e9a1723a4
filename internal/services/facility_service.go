package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"reservas-backend/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	activeFacilitiesKey = "facilities:active"
	facilityCacheTTL    = 10 * time.Minute

	facilityUnavailableNotice = "The facility is not available due to a suspension or removal. Your payment has been refunded."
)

type FacilityService struct {
	*env
}

type FacilityInput struct {
	Name        string
	SportID     uint
	Description string
	OpensAt     string
	ClosesAt    string
	HourlyRate  float64
}

func parseTimeOfDay(v string) (int, error) {
	t, err := time.Parse("15:04", v)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q", v)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func (s *FacilityService) validate(ctx context.Context, in *FacilityInput, excludeID uint) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return validationError("name is required")
	}
	if in.SportID == 0 {
		return validationError("sport is required")
	}
	if in.OpensAt == "" || in.ClosesAt == "" {
		return validationError("opening and closing times are required")
	}
	open, err := parseTimeOfDay(in.OpensAt)
	if err != nil {
		return validationError("%v", err)
	}
	closing, err := parseTimeOfDay(in.ClosesAt)
	if err != nil {
		return validationError("%v", err)
	}
	if closing == 0 {
		closing = 24 * 60
	}
	if closing <= open {
		return validationError("closing time must be after opening time")
	}
	if in.HourlyRate <= 0 {
		return validationError("hourly rate must be greater than 0")
	}

	var sports int64
	if err := s.db.WithContext(ctx).Model(&models.Sport{}).Where("id = ?", in.SportID).Count(&sports).Error; err != nil {
		return err
	}
	if sports == 0 {
		return notFoundError("sport not found")
	}

	var clash int64
	q := s.db.WithContext(ctx).Model(&models.Facility{}).
		Where("LOWER(name) = ? AND active = ?", strings.ToLower(in.Name), true)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&clash).Error; err != nil {
		return err
	}
	if clash > 0 {
		return conflictError("a facility with that name already exists")
	}
	return nil
}

func (s *FacilityService) Create(ctx context.Context, in FacilityInput) (*models.Facility, error) {
	if err := s.validate(ctx, &in, 0); err != nil {
		return nil, err
	}
	f := &models.Facility{
		Name:        in.Name,
		SportID:     in.SportID,
		Description: in.Description,
		OpensAt:     in.OpensAt,
		ClosesAt:    in.ClosesAt,
		HourlyRate:  roundCents(in.HourlyRate),
		Active:      true,
	}
	if err := s.db.WithContext(ctx).Create(f).Error; err != nil {
		return nil, err
	}
	s.invalidateFacilities(ctx)
	return f, nil
}

// Update changes a facility. Existing reservations keep their tariff.
func (s *FacilityService) Update(ctx context.Context, id uint, in FacilityInput) (*models.Facility, error) {
	f, err := s.activeFacility(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, &in, id); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(f).Updates(map[string]interface{}{
		"name":        in.Name,
		"sport_id":    in.SportID,
		"description": in.Description,
		"opens_at":    in.OpensAt,
		"closes_at":   in.ClosesAt,
		"hourly_rate": roundCents(in.HourlyRate),
	}).Error; err != nil {
		return nil, err
	}
	s.invalidateFacilities(ctx)
	return s.activeFacility(ctx, id)
}

// UpdateSportRate sets the hourly rate of every active facility of a sport.
func (s *FacilityService) UpdateSportRate(ctx context.Context, sportID uint, rate float64) (int64, error) {
	if sportID == 0 || rate <= 0 {
		return 0, validationError("invalid data")
	}
	res := s.db.WithContext(ctx).Model(&models.Facility{}).
		Where("sport_id = ? AND active = ?", sportID, true).
		Update("hourly_rate", roundCents(rate))
	if res.Error != nil {
		return 0, res.Error
	}
	s.invalidateFacilities(ctx)
	return res.RowsAffected, nil
}

// Suspend blocks a window of slots and cancels, with a full refund, the
// reservations already booked inside it.
func (s *FacilityService) Suspend(ctx context.Context, facilityID uint, start time.Time, end *time.Time, reason string) (*models.Suspension, int, error) {
	if start.IsZero() {
		return nil, 0, validationError("invalid data")
	}
	if end != nil && !end.After(start) {
		return nil, 0, validationError("suspension end must be after its start")
	}
	if _, err := s.activeFacility(ctx, facilityID); err != nil {
		return nil, 0, err
	}

	sp := &models.Suspension{
		FacilityID: facilityID,
		StartsAt:   start.UTC(),
		Reason:     reason,
		Active:     true,
	}
	if end != nil {
		e := end.UTC()
		sp.EndsAt = &e
	}
	if err := s.db.WithContext(ctx).Create(sp).Error; err != nil {
		return nil, 0, err
	}

	rs, err := s.facilityReservations(ctx, facilityID, &sp.StartsAt, sp.EndsAt)
	if err != nil {
		return sp, 0, err
	}
	n := s.cancelMany(ctx, rs, bulkCancel{
		refund: func(*models.Reservation) bool { return true },
		notice: facilityUnavailableNotice,
	})
	s.log.Info("Facility suspended",
		zap.Uint("facility_id", facilityID),
		zap.Uint("suspension_id", sp.ID),
		zap.Int("cancelled_reservations", n))
	return sp, n, nil
}

func (s *FacilityService) LiftSuspension(ctx context.Context, suspensionID uint) error {
	res := s.db.WithContext(ctx).Model(&models.Suspension{}).
		Where("id = ? AND active = ?", suspensionID, true).
		Update("active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFoundError("suspension not found")
	}
	return nil
}

func (s *FacilityService) ListSuspensions(ctx context.Context, facilityID uint) ([]models.Suspension, error) {
	var out []models.Suspension
	err := s.db.WithContext(ctx).Where("facility_id = ?", facilityID).Order("starts_at desc").Find(&out).Error
	return out, err
}

// Delete cancels every live reservation of the facility with a refund and
// soft-deletes it.
func (s *FacilityService) Delete(ctx context.Context, facilityID uint) (int, error) {
	if _, err := s.activeFacility(ctx, facilityID); err != nil {
		return 0, err
	}
	rs, err := s.facilityReservations(ctx, facilityID, nil, nil)
	if err != nil {
		return 0, err
	}
	n := s.cancelMany(ctx, rs, bulkCancel{
		refund: func(*models.Reservation) bool { return true },
		notice: facilityUnavailableNotice,
	})

	if err := s.db.WithContext(ctx).Model(&models.Facility{}).
		Where("id = ?", facilityID).
		Update("active", false).Error; err != nil {
		return n, err
	}
	s.invalidateFacilities(ctx)
	s.log.Info("Facility deleted", zap.Uint("facility_id", facilityID), zap.Int("cancelled_reservations", n))
	return n, nil
}

// facilityReservations loads Active and InProgress reservations whose slot
// starts in [from, to). Nil bounds are open.
func (s *FacilityService) facilityReservations(ctx context.Context, facilityID uint, from, to *time.Time) ([]models.Reservation, error) {
	q := s.db.WithContext(ctx).Preload("Facility").Preload("User").
		Where("facility_id = ? AND state IN ?", facilityID,
			[]models.ReservationState{models.StateActive, models.StateInProgress})
	if from != nil {
		q = q.Where("slot_start >= ?", from.UTC())
	}
	if to != nil {
		q = q.Where("slot_start < ?", to.UTC())
	}
	var rs []models.Reservation
	err := q.Order("slot_start").Find(&rs).Error
	return rs, err
}

func (s *FacilityService) Get(ctx context.Context, id uint) (*models.Facility, error) {
	return s.activeFacility(ctx, id)
}

// List returns the active facilities, served from Redis when cached.
func (s *FacilityService) List(ctx context.Context) ([]models.Facility, error) {
	if s.redis != nil {
		val, err := s.redis.Get(ctx, activeFacilitiesKey).Result()
		if err == nil {
			var cached []models.Facility
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return cached, nil
			}
		}
	}

	var fs []models.Facility
	if err := s.db.WithContext(ctx).Preload("Sport").Where("active = ?", true).Order("name").Find(&fs).Error; err != nil {
		return nil, err
	}

	if s.redis != nil {
		if data, err := json.Marshal(fs); err == nil {
			s.redis.Set(ctx, activeFacilitiesKey, data, facilityCacheTTL)
		}
	}
	return fs, nil
}

func (s *FacilityService) invalidateFacilities(ctx context.Context) {
	if s.redis != nil {
		s.redis.Del(ctx, activeFacilitiesKey)
	}
}

func (s *FacilityService) CreateSport(ctx context.Context, name string) (*models.Sport, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("name is required")
	}
	var clash int64
	if err := s.db.WithContext(ctx).Model(&models.Sport{}).Where("LOWER(name) = ?", strings.ToLower(name)).Count(&clash).Error; err != nil {
		return nil, err
	}
	if clash > 0 {
		return nil, conflictError("a sport with that name already exists")
	}
	sp := &models.Sport{Name: name}
	if err := s.db.WithContext(ctx).Create(sp).Error; err != nil {
		return nil, err
	}
	return sp, nil
}

func (s *FacilityService) ListSports(ctx context.Context) ([]models.Sport, error) {
	var out []models.Sport
	err := s.db.WithContext(ctx).Order("name").Find(&out).Error
	return out, err
}

func (e *env) activeFacility(ctx context.Context, id uint) (*models.Facility, error) {
	var f models.Facility
	if err := e.db.WithContext(ctx).Preload("Sport").Where("id = ? AND active = ?", id, true).First(&f).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFacilityNotFound
		}
		return nil, err
	}
	return &f, nil
}

// isSuspended reports whether an active suspension covers slot.
func (e *env) isSuspended(ctx context.Context, facilityID uint, slot time.Time) (bool, error) {
	var sps []models.Suspension
	if err := e.db.WithContext(ctx).
		Where("facility_id = ? AND active = ? AND starts_at <= ?", facilityID, true, slot.UTC()).
		Find(&sps).Error; err != nil {
		return false, err
	}
	for i := range sps {
		if sps[i].Covers(slot) {
			return true, nil
		}
	}
	return false, nil
}
