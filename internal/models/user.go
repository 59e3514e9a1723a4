package models

import "time"

const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User is a club member. Enabled drops to false while a penalty is active;
// Active drops to false when the account is removed.
type User struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DNI       string `gorm:"uniqueIndex;type:varchar(20);not null"`
	Name      string `gorm:"type:varchar(120);not null"`
	Email     string `gorm:"uniqueIndex;type:varchar(255);not null"`
	Password  string `gorm:"not null"`
	Role      string `gorm:"type:varchar(20);not null;default:'customer'"`
	Enabled   bool   `gorm:"not null"`
	Active    bool   `gorm:"not null;index"`
	Version   int    `gorm:"default:1"`
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }
