package user

import (
	"time"

	"reservas-backend/internal/clock"
	"reservas-backend/internal/models"
	"reservas-backend/internal/services"
)

// UserResponse defines the response structure for user information.
type UserResponse struct {
	ID        uint      `json:"id"`
	DNI       string    `json:"dni"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
}

// PenaltyInfo describes an active penalty.
type PenaltyInfo struct {
	Kind     string  `json:"kind"`
	StartsAt string  `json:"starts_at"`
	EndsAt   *string `json:"ends_at,omitempty"`
}

// DebtInfo is the amount owed today under a debt penalty.
type DebtInfo struct {
	Principal float64 `json:"principal"`
	Days      int     `json:"days"`
	Interest  float64 `json:"interest"`
	Total     float64 `json:"total"`
}

type ProfileResponse struct {
	User      UserResponse  `json:"user"`
	Penalties []PenaltyInfo `json:"penalties"`
	Debt      *DebtInfo     `json:"debt,omitempty"`
}

type PendingPaymentItem struct {
	ReservationID uint    `json:"reservation_id"`
	FacilityID    uint    `json:"facility_id"`
	SlotStart     string  `json:"slot_start"`
	Tariff        float64 `json:"tariff"`
}

func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		DNI:       u.DNI,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		Enabled:   u.Enabled,
		CreatedAt: u.CreatedAt,
	}
}

func NewProfileResponse(d *services.UserDetail, cal *clock.Calendar) ProfileResponse {
	out := ProfileResponse{User: NewUserResponse(&d.User), Penalties: []PenaltyInfo{}}
	for _, p := range []*models.Penalty{d.DebtPenalty, d.CancellationPenalty} {
		if p == nil {
			continue
		}
		info := PenaltyInfo{Kind: p.Kind.String(), StartsAt: cal.Format(p.StartsAt)}
		if p.EndsAt != nil {
			end := cal.Format(*p.EndsAt)
			info.EndsAt = &end
		}
		out.Penalties = append(out.Penalties, info)
	}
	if d.Debt != nil {
		out.Debt = &DebtInfo{
			Principal: d.Debt.Principal,
			Days:      d.Debt.Days,
			Interest:  d.Debt.Interest,
			Total:     d.Debt.Total,
		}
	}
	return out
}
