package facility

import (
	"reservas-backend/internal/clock"
	"reservas-backend/internal/models"
)

type SportResponse struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

type FacilityResponse struct {
	ID          uint    `json:"id"`
	Name        string  `json:"name"`
	SportID     uint    `json:"sport_id"`
	Sport       string  `json:"sport,omitempty"`
	Description string  `json:"description,omitempty"`
	OpensAt     string  `json:"opens_at"`
	ClosesAt    string  `json:"closes_at"`
	HourlyRate  float64 `json:"hourly_rate"`
}

// SlotResponse is a taken slot. Customer identities are not exposed.
type SlotResponse struct {
	SlotStart string `json:"slot_start"`
	Hour      int    `json:"hour"`
	State     string `json:"state"`
}

func NewFacilityResponse(f *models.Facility) FacilityResponse {
	return FacilityResponse{
		ID:          f.ID,
		Name:        f.Name,
		SportID:     f.SportID,
		Sport:       f.Sport.Name,
		Description: f.Description,
		OpensAt:     f.OpensAt,
		ClosesAt:    f.ClosesAt,
		HourlyRate:  f.HourlyRate,
	}
}

func NewFacilityList(fs []models.Facility) []FacilityResponse {
	out := make([]FacilityResponse, 0, len(fs))
	for i := range fs {
		out = append(out, NewFacilityResponse(&fs[i]))
	}
	return out
}

func NewSlotList(rs []models.Reservation, cal *clock.Calendar) []SlotResponse {
	out := make([]SlotResponse, 0, len(rs))
	for _, r := range rs {
		out = append(out, SlotResponse{
			SlotStart: cal.Format(r.SlotStart),
			Hour:      cal.In(r.SlotStart).Hour(),
			State:     r.State.String(),
		})
	}
	return out
}
