// Package stub is an in-process payment gateway: every charge and refund
// succeeds unless told otherwise.
package stub

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"reservas-backend/internal/payment"

	"github.com/google/uuid"
)

type Gateway struct {
	mu sync.Mutex

	FailCharges bool
	FailRefunds bool

	Charges []payment.ChargeRequest
	Refunds []payment.RefundRequest
}

func New() *Gateway {
	return &Gateway{}
}

func (g *Gateway) Charge(ctx context.Context, req payment.ChargeRequest) (payment.ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return payment.ChargeResult{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.FailCharges {
		return payment.ChargeResult{}, fmt.Errorf("%w: %.2f for reservation %d", payment.ErrChargeDeclined, req.Amount, req.ReservationID)
	}
	g.Charges = append(g.Charges, req)
	return payment.ChargeResult{Reference: "ch_" + strings.ReplaceAll(uuid.New().String(), "-", "")}, nil
}

func (g *Gateway) Refund(ctx context.Context, req payment.RefundRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.FailRefunds {
		return fmt.Errorf("%w: reservation %d", payment.ErrRefundFailed, req.ReservationID)
	}
	g.Refunds = append(g.Refunds, req)
	return nil
}

// RefundedTotal sums every successful refund.
func (g *Gateway) RefundedTotal() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	var total float64
	for _, r := range g.Refunds {
		total += r.Amount
	}
	return total
}
