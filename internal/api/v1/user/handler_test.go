package user_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"reservas-backend/internal/api/v1/apitest"
	"reservas-backend/internal/api/v1/user"
	"reservas-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) *apitest.Harness {
	h := apitest.New(t)
	user.RegisterRoutes(h.Authed, user.NewHandler(h.Svc.Users, h.Svc.Reservations, h.Svc.Calendar, h.Log))
	return h
}

func TestCurrentUser(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	debtor, debtorToken := h.Register("30000000", "Debtor", "debtor@example.com")
	_, err := h.Svc.Penalties.ActivateDebtPenalty(ctx, nil, debtor.ID, 1000)
	require.NoError(t, err)
	banned, bannedToken := h.Register("40000000", "Banned", "banned@example.com")
	_, _, err = h.Svc.Penalties.ActivateCancellationPenalty(ctx, banned.ID)
	require.NoError(t, err)
	h.Clock.Advance(48 * time.Hour)

	tests := []struct {
		name           string
		token          string
		expectedStatus int
		checkResponse  func(t *testing.T, resp user.ProfileResponse)
	}{
		{
			name:           "Customer in good standing",
			token:          h.CustomerToken,
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, resp user.ProfileResponse) {
				assert.Equal(t, "Ana", resp.User.Name)
				assert.Equal(t, models.RoleCustomer, resp.User.Role)
				assert.True(t, resp.User.Enabled)
				assert.Empty(t, resp.Penalties)
				assert.Nil(t, resp.Debt)
			},
		},
		{
			name:           "Customer with a debt accruing interest",
			token:          debtorToken,
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, resp user.ProfileResponse) {
				assert.False(t, resp.User.Enabled)
				require.Len(t, resp.Penalties, 1)
				assert.Equal(t, "debt", resp.Penalties[0].Kind)
				require.NotNil(t, resp.Debt)
				assert.Equal(t, 2, resp.Debt.Days)
				assert.Equal(t, 1020.0, resp.Debt.Total)
			},
		},
		{
			name:           "Customer disabled for cancelling too often",
			token:          bannedToken,
			expectedStatus: http.StatusOK,
			checkResponse: func(t *testing.T, resp user.ProfileResponse) {
				require.Len(t, resp.Penalties, 1)
				assert.Equal(t, "excessive_cancellations", resp.Penalties[0].Kind)
				assert.NotNil(t, resp.Penalties[0].EndsAt)
				assert.Nil(t, resp.Debt)
			},
		},
		{
			name:           "No token",
			token:          "",
			expectedStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.Do(http.MethodGet, "/api/v1/me", tt.token, nil)
			apitest.RequireStatus(t, w, tt.expectedStatus)
			if tt.checkResponse != nil {
				var resp user.ProfileResponse
				apitest.Decode(t, w, &resp)
				tt.checkResponse(t, resp)
			}
		})
	}
}

func TestPendingPayments(t *testing.T) {
	h := setup(t)
	court := h.Facility("Court 1", 10000)
	h.Book(h.Customer, court, "2026-03-02", 10, 3000)

	w := h.Do(http.MethodGet, "/api/v1/me/pending-payments", h.CustomerToken, nil)
	apitest.RequireStatus(t, w, http.StatusOK)
	var items []user.PendingPaymentItem
	apitest.Decode(t, w, &items)
	assert.Empty(t, items)

	// Closed without full payment.
	var r models.Reservation
	require.NoError(t, h.DB.Where("user_id = ?", h.Customer.ID).First(&r).Error)
	require.NoError(t, h.DB.Model(&r).Update("state", models.StatePendingPayment).Error)

	w = h.Do(http.MethodGet, "/api/v1/me/pending-payments", h.CustomerToken, nil)
	apitest.RequireStatus(t, w, http.StatusOK)
	apitest.Decode(t, w, &items)
	require.Len(t, items, 1)
	assert.Equal(t, r.ID, items[0].ReservationID)
	assert.Equal(t, "2026-03-02T10:00:00-03:00", items[0].SlotStart)
}

func TestDeleteOwnAccount(t *testing.T) {
	h := setup(t)
	debtor, debtorToken := h.Register("30000000", "Debtor", "debtor@example.com")
	_, err := h.Svc.Penalties.ActivateDebtPenalty(context.Background(), nil, debtor.ID, 500)
	require.NoError(t, err)

	w := h.Do(http.MethodDelete, "/api/v1/me", debtorToken, nil)
	apitest.RequireStatus(t, w, http.StatusConflict)

	w = h.Do(http.MethodDelete, "/api/v1/me", h.CustomerToken, nil)
	apitest.RequireStatus(t, w, http.StatusOK)
	env := apitest.Decode(t, w, nil)
	assert.Equal(t, "Account deleted", env.Message)

	// The token no longer resolves to an active user.
	w = h.Do(http.MethodGet, "/api/v1/me", h.CustomerToken, nil)
	apitest.RequireStatus(t, w, http.StatusUnauthorized)
}
