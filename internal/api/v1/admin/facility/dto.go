package facility

type FacilityRequest struct {
	Name        string  `json:"name" binding:"required,max=120"`
	SportID     uint    `json:"sport_id" binding:"required"`
	Description string  `json:"description"`
	OpensAt     string  `json:"opens_at" binding:"required,datetime=15:04"`
	ClosesAt    string  `json:"closes_at" binding:"required,datetime=15:04"`
	HourlyRate  float64 `json:"hourly_rate" binding:"required,gt=0"`
}

type SportRequest struct {
	Name string `json:"name" binding:"required,max=60"`
}

type SportRateRequest struct {
	HourlyRate float64 `json:"hourly_rate" binding:"required,gt=0"`
}

// SuspensionRequest takes RFC 3339 timestamps. Omitting ends_at suspends
// the facility until the suspension is lifted.
type SuspensionRequest struct {
	StartsAt string `json:"starts_at" binding:"required,datetime=2006-01-02T15:04:05Z07:00"`
	EndsAt   string `json:"ends_at" binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Reason   string `json:"reason" binding:"max=255"`
}

type SuspensionResponse struct {
	ID                    uint    `json:"id"`
	FacilityID            uint    `json:"facility_id"`
	StartsAt              string  `json:"starts_at"`
	EndsAt                *string `json:"ends_at"`
	Reason                string  `json:"reason,omitempty"`
	Active                bool    `json:"active"`
	CancelledReservations *int    `json:"cancelled_reservations,omitempty"`
}

type DeleteFacilityResponse struct {
	CancelledReservations int `json:"cancelled_reservations"`
}

type SportRateResponse struct {
	UpdatedFacilities int64 `json:"updated_facilities"`
}
