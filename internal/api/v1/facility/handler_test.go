package facility_test

import (
	"fmt"
	"net/http"
	"testing"

	"reservas-backend/internal/api/v1/apitest"
	"reservas-backend/internal/api/v1/facility"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *apitest.Harness {
	h := apitest.New(t)
	facility.RegisterRoutes(h.Public, facility.NewHandler(h.Svc.Facilities, h.Svc.Reservations, h.Svc.Calendar, h.Log))
	return h
}

func TestListFacilities(t *testing.T) {
	h := setup(t)
	h.Facility("Court B", 12000)
	h.Facility("Court A", 10000)

	w := h.Do(http.MethodGet, "/api/v1/facilities", "", nil)
	apitest.RequireStatus(t, w, http.StatusOK)
	var list []facility.FacilityResponse
	apitest.Decode(t, w, &list)
	require.Len(t, list, 2)
	assert.Equal(t, "Court A", list[0].Name)
	assert.Equal(t, "Court A sport", list[0].Sport)
	assert.Equal(t, "08:00", list[0].OpensAt)

	w = h.Do(http.MethodGet, fmt.Sprintf("/api/v1/facilities/%d", list[1].ID), "", nil)
	apitest.RequireStatus(t, w, http.StatusOK)
	var one facility.FacilityResponse
	apitest.Decode(t, w, &one)
	assert.Equal(t, 12000.0, one.HourlyRate)

	w = h.Do(http.MethodGet, "/api/v1/facilities/999", "", nil)
	apitest.RequireStatus(t, w, http.StatusNotFound)

	w = h.Do(http.MethodGet, "/api/v1/sports", "", nil)
	apitest.RequireStatus(t, w, http.StatusOK)
	var sports []facility.SportResponse
	apitest.Decode(t, w, &sports)
	assert.Len(t, sports, 2)
}

func TestListSlots(t *testing.T) {
	h := setup(t)
	court := h.Facility("Court 1", 10000)
	h.Book(h.Customer, court, "2026-03-03", 10, 3000)
	h.Book(h.Customer, court, "2026-03-03", 8, 3000)
	h.Book(h.Customer, court, "2026-03-04", 10, 3000)

	w := h.Do(http.MethodGet, fmt.Sprintf("/api/v1/facilities/%d/reservations?date=2026-03-03", court.ID), "", nil)
	apitest.RequireStatus(t, w, http.StatusOK)
	var slots []facility.SlotResponse
	apitest.Decode(t, w, &slots)
	require.Len(t, slots, 2)
	assert.Equal(t, 8, slots[0].Hour)
	assert.Equal(t, "2026-03-03T10:00:00-03:00", slots[1].SlotStart)
	assert.Equal(t, "active", slots[1].State)

	w = h.Do(http.MethodGet, fmt.Sprintf("/api/v1/facilities/%d/reservations?date=tomorrow", court.ID), "", nil)
	apitest.RequireStatus(t, w, http.StatusBadRequest)
}
