package reservation

import (
	"reservas-backend/internal/clock"
	"reservas-backend/internal/models"
)

type CreateReservationRequest struct {
	FacilityID uint    `json:"facility_id" binding:"required"`
	Date       string  `json:"date" binding:"required,datetime=2006-01-02"`
	StartHour  *int    `json:"start_hour" binding:"required,min=0,max=23"`
	Deposit    float64 `json:"deposit" binding:"required,gt=0"`
	// Admins only.
	CustomerDNI string `json:"customer_dni,omitempty" binding:"omitempty,max=20"`
}

type CreateReservationResponse struct {
	ReservationID uint    `json:"reservation_id"`
	SlotStart     string  `json:"slot_start"`
	Deposit       float64 `json:"deposit"`
}

type PaymentItem struct {
	ID        uint    `json:"id"`
	CreatedAt string  `json:"created_at"`
	Kind      string  `json:"kind"`
	Amount    float64 `json:"amount"`
	Refunded  bool    `json:"refunded"`
}

// ReservationResponse renders slot times with the club's UTC offset.
type ReservationResponse struct {
	ID                  uint          `json:"id"`
	UserID              uint          `json:"user_id"`
	FacilityID          uint          `json:"facility_id"`
	FacilityName        string        `json:"facility_name,omitempty"`
	SlotStart           string        `json:"slot_start"`
	State               string        `json:"state"`
	Tariff              float64       `json:"tariff"`
	Attended            bool          `json:"attended"`
	CancelledByCustomer bool          `json:"cancelled_by_customer"`
	CancelledAt         *string       `json:"cancelled_at,omitempty"`
	Payments            []PaymentItem `json:"payments,omitempty"`
}

type ReservationListResponse struct {
	Reservations []ReservationResponse `json:"reservations"`
	Total        int64                 `json:"total"`
	Page         int                   `json:"page"`
	Limit        int                   `json:"limit"`
}

func NewReservationResponse(r *models.Reservation, cal *clock.Calendar) ReservationResponse {
	out := ReservationResponse{
		ID:                  r.ID,
		UserID:              r.UserID,
		FacilityID:          r.FacilityID,
		FacilityName:        r.Facility.Name,
		SlotStart:           cal.Format(r.SlotStart),
		State:               r.State.String(),
		Tariff:              r.Tariff,
		Attended:            r.Attended,
		CancelledByCustomer: r.CancelledByCustomer,
	}
	if r.CancelledAt != nil {
		s := cal.Format(*r.CancelledAt)
		out.CancelledAt = &s
	}
	for _, p := range r.Payments {
		out.Payments = append(out.Payments, PaymentItem{
			ID:        p.ID,
			CreatedAt: cal.Format(p.CreatedAt),
			Kind:      string(p.Kind),
			Amount:    p.Amount,
			Refunded:  p.Refunded,
		})
	}
	return out
}

func NewReservationList(rs []models.Reservation, cal *clock.Calendar) []ReservationResponse {
	items := make([]ReservationResponse, 0, len(rs))
	for i := range rs {
		items = append(items, NewReservationResponse(&rs[i], cal))
	}
	return items
}
