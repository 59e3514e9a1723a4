package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"reservas-backend/config"
	"reservas-backend/internal/clock"
	"reservas-backend/internal/models"
	"reservas-backend/internal/notify"
	"reservas-backend/internal/payment/stub"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// testNow is Monday 2026-03-02 09:00 at the club (-03:00).
var testNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	db    *gorm.DB
	clock *clock.Mock
	cal   *clock.Calendar
	gw    *stub.Gateway
	notes *notify.Memory
	mr    *miniredis.Miniredis
	svc   *Services
}

type fixtureOption func(*Deps, *fixture)

func withRedis() fixtureOption {
	return func(d *Deps, f *fixture) {
		f.mr = miniredis.RunT(f.t)
		d.Redis = redis.NewClient(&redis.Options{Addr: f.mr.Addr()})
	}
}

func withPolicy(mutate func(p *config.Policy)) fixtureOption {
	return func(d *Deps, _ *fixture) {
		mutate(&d.Policy)
	}
}

func setupTestDB(t *testing.T) *gorm.DB {
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		db:    setupTestDB(t),
		clock: clock.NewMock(testNow),
		gw:    stub.New(),
		notes: notify.NewMemory(),
	}
	policy := config.DefaultPolicy()
	f.cal = clock.NewCalendar(policy.TZOffsetHours)

	d := Deps{
		DB:            f.db,
		Clock:         f.clock,
		Calendar:      f.cal,
		Policy:        policy,
		Gateway:       f.gw,
		Notifier:      f.notes,
		Logger:        zap.NewNop(),
		PaymentSecret: "payment-secret",
		JWTSecret:     "jwt-secret",
	}
	for _, opt := range opts {
		opt(&d, f)
	}
	f.svc = New(d)
	return f
}

var dniSeq = 30000000

func (f *fixture) user(name string) *models.User {
	return f.userWithRole(name, models.RoleCustomer)
}

func (f *fixture) admin(name string) *models.User {
	return f.userWithRole(name, models.RoleAdmin)
}

func (f *fixture) userWithRole(name, role string) *models.User {
	f.t.Helper()
	dniSeq++
	u := &models.User{
		DNI:      fmt.Sprintf("%d", dniSeq),
		Name:     name,
		Email:    fmt.Sprintf("%s.%d@example.com", name, dniSeq),
		Password: "x",
		Role:     role,
		Enabled:  true,
		Active:   true,
	}
	require.NoError(f.t, f.db.Create(u).Error)
	return u
}

func (f *fixture) facility(name string, rate float64) *models.Facility {
	f.t.Helper()
	sport := models.Sport{Name: "sport-" + name}
	require.NoError(f.t, f.db.Create(&sport).Error)
	fac := &models.Facility{
		Name:       name,
		SportID:    sport.ID,
		OpensAt:    "08:00",
		ClosesAt:   "23:00",
		HourlyRate: rate,
		Active:     true,
	}
	require.NoError(f.t, f.db.Create(fac).Error)
	return fac
}

// slot returns the UTC start of a local date/hour.
func (f *fixture) slot(date string, hour int) time.Time {
	f.t.Helper()
	s, err := f.cal.SlotStart(date, hour)
	require.NoError(f.t, err)
	return s.UTC()
}

func (f *fixture) book(u *models.User, fac *models.Facility, date string, hour int, deposit float64) uint {
	f.t.Helper()
	res, err := f.svc.Reservations.Create(f.ctx, CreateReservationInput{
		Actor:      u,
		FacilityID: fac.ID,
		Date:       date,
		StartHour:  hour,
		Deposit:    deposit,
	})
	require.NoError(f.t, err)
	return res.ReservationID
}

// insertReservation writes a reservation and its deposit directly, bypassing
// the booking rules.
func (f *fixture) insertReservation(u *models.User, fac *models.Facility, slot time.Time, state models.ReservationState, paid float64) *models.Reservation {
	f.t.Helper()
	r := &models.Reservation{
		UserID:     u.ID,
		FacilityID: fac.ID,
		SlotStart:  slot.UTC(),
		State:      state,
		Tariff:     fac.HourlyRate,
	}
	require.NoError(f.t, f.db.Create(r).Error)
	if paid > 0 {
		_, err := f.svc.Ledger.Record(f.ctx, nil, r.ID, paid, models.PaymentKindDeposit, "ch_test", u.ID)
		require.NoError(f.t, err)
	}
	return r
}

func (f *fixture) reload(id uint) models.Reservation {
	f.t.Helper()
	var r models.Reservation
	require.NoError(f.t, f.db.First(&r, id).Error)
	return r
}

func (f *fixture) reloadUser(id uint) models.User {
	f.t.Helper()
	var u models.User
	require.NoError(f.t, f.db.First(&u, id).Error)
	return u
}

func (f *fixture) paid(reservationID uint) float64 {
	f.t.Helper()
	total, err := f.svc.Ledger.TotalPaid(f.ctx, nil, reservationID)
	require.NoError(f.t, err)
	return total
}

func (f *fixture) count(model interface{}, query string, args ...interface{}) int64 {
	f.t.Helper()
	var n int64
	q := f.db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(f.t, q.Count(&n).Error)
	return n
}
