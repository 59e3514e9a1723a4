package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationLog keeps every notification handed to the delivery channel.
type NotificationLog struct {
	ID          uint `gorm:"primarykey"`
	CreatedAt   time.Time
	MessageID   string         `gorm:"type:varchar(36);uniqueIndex"`
	RecipientID uint           `gorm:"index;not null"`
	Email       string         `gorm:"type:varchar(255)"`
	Kind        string         `gorm:"type:varchar(30);index;not null"`
	Message     string         `gorm:"type:text"`
	Details     datatypes.JSON `gorm:"type:json"`
	Delivered   bool           `gorm:"not null"`
	Error       string         `gorm:"type:text"`
}

// All lists every model for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Sport{},
		&Facility{},
		&Suspension{},
		&Reservation{},
		&Payment{},
		&PendingRefund{},
		&Penalty{},
		&NotificationLog{},
	}
}
