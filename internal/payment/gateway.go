package payment

import (
	"context"
	"errors"
)

var (
	ErrChargeDeclined = errors.New("charge declined")
	ErrRefundFailed   = errors.New("refund failed")
)

type ChargeRequest struct {
	UserID        uint
	ReservationID uint
	Amount        float64
	Description   string
}

type ChargeResult struct {
	// Reference identifies the charge at the provider and is needed to refund it.
	Reference string
}

type RefundRequest struct {
	Reference     string
	ReservationID uint
	Amount        float64
}

// Gateway is the interface every payment provider must implement.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) error
}
