package payment

import (
	"time"

	"reservas-backend/internal/models"
)

type PaymentListItem struct {
	ID            uint               `json:"id"`
	CreatedAt     time.Time          `json:"created_at"`
	ReservationID uint               `json:"reservation_id"`
	Amount        float64            `json:"amount"`
	Kind          models.PaymentKind `json:"kind"`
	Refunded      bool               `json:"refunded"`
	RefundedAt    *time.Time         `json:"refunded_at,omitempty"`
	ChargeRef     string             `json:"charge_ref,omitempty"`
	OperatorID    uint               `json:"operator_id"`
	Hash          string             `json:"hash"`
	// Valid is false when the row no longer matches its signature.
	Valid bool `json:"valid"`
}

type PaymentListResponse struct {
	Payments []PaymentListItem `json:"payments"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

type PendingRefundItem struct {
	ID            uint       `json:"id"`
	CreatedAt     time.Time  `json:"created_at"`
	UserID        uint       `json:"user_id"`
	ReservationID uint       `json:"reservation_id"`
	Amount        float64    `json:"amount"`
	Resolved      bool       `json:"resolved"`
	ResolvedBy    uint       `json:"resolved_by,omitempty"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
}
