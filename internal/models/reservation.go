package models

import "time"

type ReservationState int

const (
	StateTemporary ReservationState = iota
	StateActive
	StateInProgress
	StateFinished
	StatePendingPayment
	StateCancelled
	StateAbsent
)

var stateNames = map[ReservationState]string{
	StateTemporary:      "temporary",
	StateActive:         "active",
	StateInProgress:     "in_progress",
	StateFinished:       "finished",
	StatePendingPayment: "pending_payment",
	StateCancelled:      "cancelled",
	StateAbsent:         "absent",
}

func (s ReservationState) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// ParseReservationState is the inverse of String.
func ParseReservationState(name string) (ReservationState, bool) {
	for s, n := range stateNames {
		if n == name {
			return s, true
		}
	}
	return 0, false
}

// IsTerminal reports whether no further transition leaves s.
func (s ReservationState) IsTerminal() bool {
	return s == StateFinished || s == StateCancelled || s == StateAbsent
}

type Reservation struct {
	ID                  uint `gorm:"primarykey"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
	UserID              uint             `gorm:"index;not null"`
	User                User             `gorm:"foreignKey:UserID"`
	FacilityID          uint             `gorm:"index:idx_facility_slot;not null"`
	Facility            Facility         `gorm:"foreignKey:FacilityID"`
	SlotStart           time.Time        `gorm:"index:idx_facility_slot;not null"`
	State               ReservationState `gorm:"index;not null"`
	Tariff              float64          `gorm:"type:decimal(12,2);not null"`
	Attended            bool             `gorm:"not null"`
	CancelledByCustomer bool             `gorm:"not null"`
	CancelledAt         *time.Time       `gorm:"index"`
	Payments            []Payment        `gorm:"foreignKey:ReservationID"`
}
