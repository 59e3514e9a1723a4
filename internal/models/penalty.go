package models

import "time"

type PenaltyKind int

const (
	PenaltyDebt                   PenaltyKind = 1
	PenaltyExcessiveCancellations PenaltyKind = 2
)

func (k PenaltyKind) String() string {
	switch k {
	case PenaltyDebt:
		return "debt"
	case PenaltyExcessiveCancellations:
		return "excessive_cancellations"
	}
	return "unknown"
}

// Penalty disables a user while Active. InitialAmount is only set for debts;
// the amount owed grows with interest from StartsAt.
type Penalty struct {
	ID            uint `gorm:"primarykey"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
	UserID        uint        `gorm:"index;not null"`
	Kind          PenaltyKind `gorm:"index;not null"`
	StartsAt      time.Time   `gorm:"not null"`
	EndsAt        *time.Time
	InitialAmount *float64 `gorm:"type:decimal(12,2)"`
	Active        bool     `gorm:"not null;index"`
}
