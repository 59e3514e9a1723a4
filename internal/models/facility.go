package models

import "time"

type Sport struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	Name      string `gorm:"uniqueIndex;type:varchar(60);not null"`
}

// Facility is a bookable court. OpensAt and ClosesAt are "HH:MM" local times.
type Facility struct {
	ID          uint `gorm:"primarykey"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Name        string  `gorm:"type:varchar(120);not null;index"`
	SportID     uint    `gorm:"index;not null"`
	Sport       Sport   `gorm:"foreignKey:SportID"`
	Description string  `gorm:"type:text"`
	OpensAt     string  `gorm:"type:varchar(5);not null"`
	ClosesAt    string  `gorm:"type:varchar(5);not null"`
	HourlyRate  float64 `gorm:"type:decimal(12,2);not null"`
	Active      bool    `gorm:"not null;index"`
}

// Suspension blocks slots whose start falls in [StartsAt, EndsAt).
// A nil EndsAt means the suspension is open-ended.
type Suspension struct {
	ID         uint `gorm:"primarykey"`
	CreatedAt  time.Time
	FacilityID uint       `gorm:"index;not null"`
	StartsAt   time.Time  `gorm:"not null"`
	EndsAt     *time.Time
	Reason     string `gorm:"type:varchar(255)"`
	Active     bool   `gorm:"not null;index"`
}

// Covers reports whether a slot starting at t is blocked.
func (s *Suspension) Covers(t time.Time) bool {
	if !s.Active || t.Before(s.StartsAt) {
		return false
	}
	return s.EndsAt == nil || t.Before(*s.EndsAt)
}
