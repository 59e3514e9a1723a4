package models

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

type PaymentKind string

const (
	PaymentKindDeposit PaymentKind = "deposit"
	PaymentKindBalance PaymentKind = "balance"
	PaymentKindDebt    PaymentKind = "debt"
)

type Payment struct {
	ID            uint        `gorm:"primarykey"`
	CreatedAt     time.Time   `gorm:"precision:3"`
	ReservationID uint        `gorm:"index;not null"`
	Amount        float64     `gorm:"type:decimal(12,2);not null"`
	Kind          PaymentKind `gorm:"type:varchar(20);not null"`
	Refunded      bool        `gorm:"not null;index"`
	RefundedAt    *time.Time
	ChargeRef     string `gorm:"type:varchar(64)"`
	OperatorID    uint   `gorm:"index;default:0"` // 0 for the scheduler
	Hash          string `gorm:"type:varchar(64);default:''"`
}

// GenerateHash signs the immutable fields of the payment row.
func (p *Payment) GenerateHash(secret string) string {
	data := fmt.Sprintf("%d|%d|%.2f|%s|%s|%d",
		p.ReservationID, p.CreatedAt.UnixNano(), p.Amount, p.Kind, p.ChargeRef, p.OperatorID)

	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

// PendingRefund is money owed back to a user after a debt was settled with
// more credit than needed. It is resolved by hand.
type PendingRefund struct {
	ID            uint `gorm:"primarykey"`
	CreatedAt     time.Time
	UserID        uint    `gorm:"index;not null"`
	ReservationID uint    `gorm:"index;not null"`
	Amount        float64 `gorm:"type:decimal(12,2);not null"`
	Resolved      bool    `gorm:"not null;index"`
	ResolvedBy    uint
	ResolvedAt    *time.Time
}
