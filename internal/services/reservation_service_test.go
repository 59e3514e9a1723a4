package services

import (
	"fmt"
	"testing"
	"time"

	"reservas-backend/config"
	"reservas-backend/internal/models"
	"reservas-backend/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateRejectsDoubleBooking(t *testing.T) {
	f := newFixture(t)
	ana, bruno := f.user("ana"), f.user("bruno")
	court := f.facility("Court 1", 10000)

	id := f.book(ana, court, "2026-03-03", 18, 3000)

	_, err := f.svc.Reservations.Create(f.ctx, CreateReservationInput{
		Actor: bruno, FacilityID: court.ID, Date: "2026-03-03", StartHour: 18, Deposit: 3000,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "already booked by another user", Message(err))
	assert.Equal(t, int64(1), f.count(&models.Reservation{}, "facility_id = ?", court.ID))

	// A cancelled reservation frees the slot.
	_, err = f.svc.Reservations.Cancel(f.ctx, id, ana)
	require.NoError(t, err)
	f.book(bruno, court, "2026-03-03", 18, 3000)
	assert.Equal(t, int64(1), f.count(&models.Reservation{}, "facility_id = ? AND state <> ?", court.ID, models.StateCancelled))
}

func TestCreateRejectsSlotLockedByAnotherInstance(t *testing.T) {
	f := newFixture(t, withRedis())
	ana := f.user("ana")
	court := f.facility("Court 1", 10000)

	slot := f.slot("2026-03-03", 18)
	f.mr.Set(fmt.Sprintf("lock:slot:%d:%d", court.ID, slot.Unix()), "other")

	_, err := f.svc.Reservations.Create(f.ctx, CreateReservationInput{
		Actor: ana, FacilityID: court.ID, Date: "2026-03-03", StartHour: 18, Deposit: 3000,
	})
	assert.ErrorIs(t, err, ErrSlotTaken)

	// Our own lock is released after a successful booking.
	f.book(ana, court, "2026-03-03", 19, 3000)
	assert.False(t, f.mr.Exists(fmt.Sprintf("lock:slot:%d:%d", court.ID, f.slot("2026-03-03", 19).Unix())))
}

func TestCreateDepositBounds(t *testing.T) {
	f := newFixture(t)
	ana := f.user("ana")
	court := f.facility("Court 1", 10000)

	tests := []struct {
		name    string
		hour    int
		deposit float64
		wantErr string
	}{
		{name: "below minimum", hour: 10, deposit: 2999, wantErr: "minimum deposit $3000"},
		{name: "above tariff", hour: 10, deposit: 10000.01, wantErr: "maximum deposit $10000"},
		{name: "exact minimum", hour: 10, deposit: 3000},
		{name: "full tariff", hour: 11, deposit: 10000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Reservations.Create(f.ctx, CreateReservationInput{
				Actor: ana, FacilityID: court.ID, Date: "2026-03-03", StartHour: tt.hour, Deposit: tt.deposit,
			})
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, ErrValidation)
			assert.Equal(t, tt.wantErr, Message(err))
		})
	}
}

func TestCreatePreconditions(t *testing.T) {
	f := newFixture(t)
	court := f.facility("Court 1", 10000)

	create := func(u *models.User, date string, hour int) error {
		_, err := f.svc.Reservations.Create(f.ctx, CreateReservationInput{
			Actor: u, FacilityID: court.ID, Date: date, StartHour: hour, Deposit: 3000,
		})
		return err
	}

	t.Run("facility not found", func(t *testing.T) {
		_, err := f.svc.Reservations.Create(f.ctx, CreateReservationInput{
			Actor: f.user("x"), FacilityID: 999, Date: "2026-03-03", StartHour: 10, Deposit: 3000,
		})
		assert.ErrorIs(t, err, ErrFacilityNotFound)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("past slot", func(t *testing.T) {
		err := create(f.user("past"), "2026-03-02", 8)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("outside opening hours", func(t *testing.T) {
		err := create(f.user("late"), "2026-03-03", 23)
		assert.ErrorIs(t, err, ErrValidation)
		assert.Contains(t, Message(err), "opening hours")
	})

	t.Run("invalid hour", func(t *testing.T) {
		err := create(f.user("hour"), "2026-03-03", 24)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("suspended slot", func(t *testing.T) {
		start := f.slot("2026-03-04", 10)
		end := start.Add(3 * time.Hour)
		_, _, err := f.svc.Facilities.Suspend(f.ctx, court.ID, start, &end, "maintenance")
		require.NoError(t, err)

		err = create(f.user("susp"), "2026-03-04", 12)
		assert.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, "facility is suspended at the requested time", Message(err))

		// The window is half-open.
		assert.NoError(t, create(f.user("after"), "2026-03-04", 13))
	})

	t.Run("pending payment", func(t *testing.T) {
		u := f.user("debtor")
		f.insertReservation(u, court, testNow.Add(-48*time.Hour), models.StatePendingPayment, 3000)
		err := create(u, "2026-03-05", 10)
		assert.ErrorIs(t, err, ErrConflict)
		assert.Contains(t, Message(err), "pending payment")
	})

	t.Run("active penalty", func(t *testing.T) {
		u := f.user("penalized")
		require.NoError(t, f.db.Create(&models.Penalty{UserID: u.ID, Kind: models.PenaltyExcessiveCancellations, StartsAt: testNow, Active: true}).Error)
		err := create(u, "2026-03-05", 11)
		assert.ErrorIs(t, err, ErrPermission)
	})

	t.Run("disabled user", func(t *testing.T) {
		u := f.user("disabled")
		require.NoError(t, f.db.Model(u).Update("enabled", false).Error)
		err := create(u, "2026-03-05", 12)
		assert.ErrorIs(t, err, ErrPermission)
	})

	t.Run("customer cannot book for others", func(t *testing.T) {
		other := f.user("other")
		_, err := f.svc.Reservations.Create(f.ctx, CreateReservationInput{
			Actor: f.user("sneaky"), FacilityID: court.ID, Date: "2026-03-05", StartHour: 13, Deposit: 3000, CustomerDNI: other.DNI,
		})
		assert.ErrorIs(t, err, ErrPermission)
	})
}

func TestCreateCompensatesWhenChargeFails(t *testing.T) {
	f := newFixture(t)
	ana := f.user("ana")
	court := f.facility("Court 1", 10000)
	f.gw.FailCharges = true

	_, err := f.svc.Reservations.Create(f.ctx, CreateReservationInput{
		Actor: ana, FacilityID: court.ID, Date: "2026-03-03", StartHour: 18, Deposit: 3000,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDependency)

	assert.Zero(t, f.count(&models.Reservation{}, ""))
	assert.Zero(t, f.count(&models.Payment{}, ""))
	assert.Empty(t, f.notes.OfKind(notify.KindConfirmation))

	// The slot is free again.
	f.gw.FailCharges = false
	f.book(ana, court, "2026-03-03", 18, 3000)
}

func TestCreateActivatesAndNotifies(t *testing.T) {
	f := newFixture(t)
	ana := f.user("ana")
	court := f.facility("Court 1", 10000)

	id := f.book(ana, court, "2026-03-03", 18, 4000)

	r := f.reload(id)
	assert.Equal(t, models.StateActive, r.State)
	assert.Equal(t, 10000.0, r.Tariff)
	assert.Equal(t, 4000.0, f.paid(id))
	require.Len(t, f.gw.Charges, 1)
	assert.Equal(t, 4000.0, f.gw.Charges[0].Amount)

	sent := f.notes.OfKind(notify.KindConfirmation)
	require.Len(t, sent, 1)
	assert.Equal(t, ana.ID, sent[0].RecipientUserID)
	assert.Equal(t, "2026-03-03T18:00:00-03:00", sent[0].Details.Datetime)
	assert.Equal(t, 4000.0, *sent[0].Details.Amount)
}

func TestAdminBooksOnBehalfWithoutCharging(t *testing.T) {
	f := newFixture(t)
	admin, ana := f.admin("root"), f.user("ana")
	court := f.facility("Court 1", 10000)

	res, err := f.svc.Reservations.Create(f.ctx, CreateReservationInput{
		Actor: admin, FacilityID: court.ID, Date: "2026-03-03", StartHour: 18, Deposit: 3000, CustomerDNI: ana.DNI,
	})
	require.NoError(t, err)

	r := f.reload(res.ReservationID)
	assert.Equal(t, ana.ID, r.UserID)
	assert.Empty(t, f.gw.Charges)

	payments, err := f.svc.Ledger.Payments(f.ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, admin.ID, payments[0].OperatorID)
	assert.True(t, f.svc.Ledger.Verify(&payments[0]))

	_, err = f.svc.Reservations.Create(f.ctx, CreateReservationInput{
		Actor: admin, FacilityID: court.ID, Date: "2026-03-03", StartHour: 19, Deposit: 3000, CustomerDNI: "00000000",
	})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCancelRefundBoundary(t *testing.T) {
	f := newFixture(t)
	ana := f.user("ana")
	courtA := f.facility("Court A", 10000)
	courtB := f.facility("Court B", 10000)

	// 14:00 local is exactly five hours after testNow.
	exact := f.book(ana, courtA, "2026-03-02", 14, 3000)
	short := f.book(ana, courtB, "2026-03-02", 14, 3000)

	res, err := f.svc.Reservations.Cancel(f.ctx, exact, ana)
	require.NoError(t, err)
	assert.Equal(t, 3000.0, res.Refunded)
	assert.Contains(t, res.Message, "Refunded 100% of the payment ($3000)")
	assert.Zero(t, f.paid(exact))

	f.clock.Advance(time.Minute)
	res, err = f.svc.Reservations.Cancel(f.ctx, short, ana)
	require.NoError(t, err)
	assert.Zero(t, res.Refunded)
	assert.Contains(t, res.Message, "No refund")
	assert.Equal(t, 3000.0, f.paid(short))

	r := f.reload(short)
	assert.Equal(t, models.StateCancelled, r.State)
	assert.True(t, r.CancelledByCustomer)
	require.NotNil(t, r.CancelledAt)
	assert.Len(t, f.notes.OfKind(notify.KindCancellation), 2)
}

func TestCancelRefundFailureStillCancels(t *testing.T) {
	f := newFixture(t)
	ana := f.user("ana")
	court := f.facility("Court 1", 10000)
	id := f.book(ana, court, "2026-03-05", 18, 3000)

	f.gw.FailRefunds = true
	res, err := f.svc.Reservations.Cancel(f.ctx, id, ana)
	require.NoError(t, err)
	assert.Contains(t, res.Message, "refund could not be processed")
	assert.Equal(t, models.StateCancelled, f.reload(id).State)
	assert.Equal(t, 3000.0, f.paid(id))
}

func TestCancelRules(t *testing.T) {
	f := newFixture(t)
	ana, bruno, admin := f.user("ana"), f.user("bruno"), f.admin("root")
	court := f.facility("Court 1", 10000)
	id := f.book(ana, court, "2026-03-05", 18, 3000)

	_, err := f.svc.Reservations.Cancel(f.ctx, id, bruno)
	assert.ErrorIs(t, err, ErrPermission)

	_, err = f.svc.Reservations.Cancel(f.ctx, 12345, ana)
	assert.ErrorIs(t, err, ErrReservationNotFound)

	_, err = f.svc.Reservations.Cancel(f.ctx, id, admin)
	require.NoError(t, err)

	_, err = f.svc.Reservations.Cancel(f.ctx, id, ana)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestExcessiveCancellationsDisableUser(t *testing.T) {
	f := newFixture(t)
	ana := f.user("ana")
	court := f.facility("Court 1", 10000)

	var ids []uint
	for hour := 10; hour <= 14; hour++ {
		ids = append(ids, f.book(ana, court, "2026-03-10", hour, 3000))
	}

	for i := 0; i < 3; i++ {
		res, err := f.svc.Reservations.Cancel(f.ctx, ids[i], ana)
		require.NoError(t, err)
		assert.False(t, res.PenaltyApplied, "cancellation %d", i+1)
	}
	assert.True(t, f.reloadUser(ana.ID).Enabled)

	res, err := f.svc.Reservations.Cancel(f.ctx, ids[3], ana)
	require.NoError(t, err)
	assert.True(t, res.PenaltyApplied)
	assert.Contains(t, res.Message, "disabled for 30 days")

	assert.False(t, f.reloadUser(ana.ID).Enabled)

	penalties, err := f.svc.Penalties.ActivePenalties(f.ctx, ana.ID)
	require.NoError(t, err)
	require.Len(t, penalties, 1)
	assert.Equal(t, models.PenaltyExcessiveCancellations, penalties[0].Kind)
	require.NotNil(t, penalties[0].EndsAt)
	assert.WithinDuration(t, testNow.AddDate(0, 0, 30), *penalties[0].EndsAt, time.Second)

	// The remaining reservation was cancelled by the club and refunded.
	last := f.reload(ids[4])
	assert.Equal(t, models.StateCancelled, last.State)
	assert.False(t, last.CancelledByCustomer)
	assert.Zero(t, f.paid(ids[4]))

	assert.Len(t, f.notes.OfKind(notify.KindDisablement), 1)

	_, err = f.svc.Reservations.Create(f.ctx, CreateReservationInput{
		Actor: ana, FacilityID: court.ID, Date: "2026-03-11", StartHour: 10, Deposit: 3000,
	})
	assert.ErrorIs(t, err, ErrPermission)

	// A further cancellation while penalized does not announce a new penalty.
	extra := f.insertReservation(ana, court, f.slot("2026-03-12", 10), models.StateActive, 3000)
	res, err = f.svc.Reservations.Cancel(f.ctx, extra.ID, ana)
	require.NoError(t, err)
	assert.False(t, res.PenaltyApplied)
	assert.NotContains(t, res.Message, "disabled for")
	assert.Equal(t, int64(1), f.count(&models.Penalty{}, "user_id = ?", ana.ID))
	assert.Len(t, f.notes.OfKind(notify.KindDisablement), 1)
}

func TestCancellationsAreCountedPerLocalMonth(t *testing.T) {
	f := newFixture(t, withPolicy(func(p *config.Policy) { p.MaxAllowedCancellations = 1 }))
	ana := f.user("ana")
	court := f.facility("Court 1", 10000)

	first := f.book(ana, court, "2026-04-10", 10, 3000)
	second := f.book(ana, court, "2026-04-10", 11, 3000)

	_, err := f.svc.Reservations.Cancel(f.ctx, first, ana)
	require.NoError(t, err)

	// 02:00 UTC on April 1st is still March 31st locally; next local month
	// starts at 03:00 UTC.
	f.clock.Set(time.Date(2026, 4, 1, 3, 30, 0, 0, time.UTC))
	res, err := f.svc.Reservations.Cancel(f.ctx, second, ana)
	require.NoError(t, err)
	assert.False(t, res.PenaltyApplied)
}

func TestConfirmAttendance(t *testing.T) {
	f := newFixture(t)
	ana, admin := f.user("ana"), f.admin("root")
	court := f.facility("Court 1", 10000)
	id := f.book(ana, court, "2026-03-02", 14, 3000)

	_, err := f.svc.Reservations.ConfirmAttendance(f.ctx, id, ana)
	assert.ErrorIs(t, err, ErrPermission)

	old := f.insertReservation(ana, court, testNow.Add(-72*time.Hour), models.StatePendingPayment, 3000)
	res, err := f.svc.Reservations.ConfirmAttendance(f.ctx, id, admin)
	require.NoError(t, err)
	assert.False(t, res.Confirmed)
	assert.Contains(t, res.Warning, "pending payment")
	assert.Equal(t, models.StateActive, f.reload(id).State)

	require.NoError(t, f.db.Model(old).Update("state", models.StateFinished).Error)
	res, err = f.svc.Reservations.ConfirmAttendance(f.ctx, id, admin)
	require.NoError(t, err)
	assert.True(t, res.Confirmed)

	r := f.reload(id)
	assert.Equal(t, models.StateInProgress, r.State)
	assert.True(t, r.Attended)

	_, err = f.svc.Reservations.ConfirmAttendance(f.ctx, id, admin)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestReservationLifecycleEndToEnd(t *testing.T) {
	f := newFixture(t)
	ana, admin := f.user("ana"), f.admin("root")
	court := f.facility("Court 1", 10000)

	_, err := f.svc.Reservations.Create(f.ctx, CreateReservationInput{
		Actor: ana, FacilityID: court.ID, Date: "2026-03-02", StartHour: 18, Deposit: 2999,
	})
	require.Error(t, err)
	assert.Contains(t, Message(err), "minimum deposit $3000")

	id := f.book(ana, court, "2026-03-02", 18, 3000)

	_, err = f.svc.Reservations.CompletePayment(f.ctx, id, admin)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, Message(err), "not pending payment")

	// Customer shows up at 18:00 local.
	f.clock.Set(f.slot("2026-03-02", 18))
	confirm, err := f.svc.Reservations.ConfirmAttendance(f.ctx, id, admin)
	require.NoError(t, err)
	require.True(t, confirm.Confirmed)

	f.clock.Advance(61 * time.Minute)
	report, err := f.svc.Reconciliation.CloseElapsedSlots(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Transitioned)
	assert.Equal(t, models.StatePendingPayment, f.reload(id).State)
	require.Len(t, f.notes.OfKind(notify.KindReminder), 1)
	assert.Equal(t, 7000.0, *f.notes.OfKind(notify.KindReminder)[0].Details.Amount)

	res, err := f.svc.Reservations.CompletePayment(f.ctx, id, admin)
	require.NoError(t, err)
	assert.Equal(t, 7000.0, res.Amount)
	assert.Contains(t, res.Message, "$7000")

	assert.Equal(t, models.StateFinished, f.reload(id).State)
	assert.Equal(t, 10000.0, f.paid(id))
	assert.Len(t, f.notes.OfKind(notify.KindPayment), 1)
}

func TestCompletePaymentChargesAccruedDebt(t *testing.T) {
	f := newFixture(t)
	ana, admin := f.user("ana"), f.admin("root")
	court := f.facility("Court 1", 10000)

	r := f.insertReservation(ana, court, testNow.Add(-30*time.Hour), models.StatePendingPayment, 3000)
	report, err := f.svc.Reconciliation.PenalizeDebts(f.ctx)
	require.NoError(t, err)
	require.Equal(t, 1, report.Transitioned)
	assert.False(t, f.reloadUser(ana.ID).Enabled)

	f.clock.Advance(3 * 24 * time.Hour)
	res, err := f.svc.Reservations.CompletePayment(f.ctx, r.ID, admin)
	require.NoError(t, err)
	// 7000 plus three days at 1%.
	assert.Equal(t, 7210.0, res.Amount)
	assert.Contains(t, res.Message, "debt penalty")

	assert.Equal(t, models.StateFinished, f.reload(r.ID).State)
	assert.True(t, f.reloadUser(ana.ID).Enabled)
	debt, err := f.svc.Penalties.ActiveDebt(f.ctx, ana.ID)
	require.NoError(t, err)
	assert.Nil(t, debt)
}

func TestCompletePaymentRules(t *testing.T) {
	f := newFixture(t)
	ana, admin := f.user("ana"), f.admin("root")
	court := f.facility("Court 1", 10000)
	r := f.insertReservation(ana, court, testNow.Add(-2*time.Hour), models.StatePendingPayment, 3000)

	_, err := f.svc.Reservations.CompletePayment(f.ctx, r.ID, ana)
	assert.ErrorIs(t, err, ErrPermission)

	f.gw.FailCharges = true
	_, err = f.svc.Reservations.CompletePayment(f.ctx, r.ID, admin)
	assert.ErrorIs(t, err, ErrDependency)
	assert.Equal(t, models.StatePendingPayment, f.reload(r.ID).State)
	assert.Equal(t, 3000.0, f.paid(r.ID))

	paidInFull := f.insertReservation(ana, court, testNow.Add(-3*time.Hour), models.StatePendingPayment, 10000)
	f.gw.FailCharges = false
	_, err = f.svc.Reservations.CompletePayment(f.ctx, paidInFull.ID, admin)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestListAndFacilitySlots(t *testing.T) {
	f := newFixture(t)
	ana, bruno := f.user("ana"), f.user("bruno")
	court := f.facility("Court 1", 10000)

	a1 := f.book(ana, court, "2026-03-03", 10, 3000)
	f.book(ana, court, "2026-03-03", 11, 3000)
	f.book(bruno, court, "2026-03-04", 10, 3000)
	_, err := f.svc.Reservations.Cancel(f.ctx, a1, ana)
	require.NoError(t, err)

	slots, err := f.svc.Reservations.ListFacilitySlots(f.ctx, court.ID, "2026-03-03")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, f.slot("2026-03-03", 11), slots[0].SlotStart.UTC())

	_, err = f.svc.Reservations.ListFacilitySlots(f.ctx, court.ID, "03/03/2026")
	assert.ErrorIs(t, err, ErrValidation)

	uid := ana.ID
	list, total, err := f.svc.Reservations.List(f.ctx, ReservationFilter{UserID: &uid, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, list, 2)

	active := models.StateActive
	_, total, err = f.svc.Reservations.List(f.ctx, ReservationFilter{State: &active, Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	_, err = f.svc.Reservations.Get(f.ctx, a1, bruno)
	assert.ErrorIs(t, err, ErrReservationNotFound)
	got, err := f.svc.Reservations.Get(f.ctx, a1, ana)
	require.NoError(t, err)
	assert.Len(t, got.Payments, 1)
}
