package services

import (
	"testing"
	"time"

	"reservas-backend/internal/models"
	"reservas-backend/internal/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t, withRedis())

	first, err := f.svc.Auth.Register(f.ctx, RegisterInput{DNI: "11111111", Name: "Root", Email: "Root@Example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, first.Role)
	assert.Equal(t, "root@example.com", first.Email)
	assert.True(t, first.Enabled)

	second, err := f.svc.Auth.Register(f.ctx, RegisterInput{DNI: "22222222", Name: "Ana", Email: "ana@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleCustomer, second.Role)
	assert.NotEqual(t, "secret123", second.Password)

	_, err = f.svc.Auth.Register(f.ctx, RegisterInput{DNI: "22222222", Name: "Dup", Email: "dup@example.com", Password: "x"})
	assert.ErrorIs(t, err, ErrUserAlreadyExists)

	_, _, err = f.svc.Auth.Login(f.ctx, "ana@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = f.svc.Auth.Login(f.ctx, "nobody@example.com", "secret123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	token, u, err := f.svc.Auth.Login(f.ctx, " ANA@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, second.ID, u.ID)

	authed, err := f.svc.Auth.Authenticate(f.ctx, token)
	require.NoError(t, err)
	assert.Equal(t, second.ID, authed.ID)

	require.NoError(t, f.svc.Auth.Logout(f.ctx, token))
	assert.True(t, f.mr.Exists(denylistPrefix+token))
	_, err = f.svc.Auth.Authenticate(f.ctx, token)
	assert.ErrorIs(t, err, ErrPermission)

	_, err = f.svc.Auth.Authenticate(f.ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrPermission)
}

func TestAuthenticateRejectsDeletedUser(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Auth.Register(f.ctx, RegisterInput{DNI: "1", Name: "A", Email: "a@example.com", Password: "pw"})
	require.NoError(t, err)
	token, u, err := f.svc.Auth.Login(f.ctx, "a@example.com", "pw")
	require.NoError(t, err)

	require.NoError(t, f.db.Model(&models.User{}).Where("id = ?", u.ID).Update("active", false).Error)
	_, err = f.svc.Auth.Authenticate(f.ctx, token)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestFindUserByIDUsesCache(t *testing.T) {
	f := newFixture(t, withRedis())
	ana := f.user("ana")

	got, err := f.svc.Users.FindUserByID(f.ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana", got.Name)
	assert.True(t, f.mr.Exists(f.svc.Users.userCacheKey(ana.ID)))

	_, err = f.svc.Users.UpdateUser(f.ctx, ana.ID, map[string]interface{}{"name": "Ana Maria"}, "root")
	require.NoError(t, err)
	assert.False(t, f.mr.Exists(f.svc.Users.userCacheKey(ana.ID)))

	got, err = f.svc.Users.FindUserByID(f.ctx, ana.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", got.Name)
	assert.Equal(t, 2, got.Version)

	_, err = f.svc.Users.FindUserByID(f.ctx, 9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserDetailIncludesDebt(t *testing.T) {
	f := newFixture(t)
	ana := f.user("ana")
	_, err := f.svc.Penalties.ActivateDebtPenalty(f.ctx, nil, ana.ID, 1000)
	require.NoError(t, err)
	f.clock.Advance(48 * time.Hour)

	d, err := f.svc.Users.Detail(f.ctx, ana.ID)
	require.NoError(t, err)
	require.NotNil(t, d.DebtPenalty)
	assert.Nil(t, d.CancellationPenalty)
	require.NotNil(t, d.Debt)
	assert.Equal(t, 1020.0, d.Debt.Total)

	require.NoError(t, f.svc.Users.Enable(f.ctx, ana.ID))
	assert.True(t, f.reloadUser(ana.ID).Enabled)
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture(t)
	admin := f.admin("root")
	court := f.facility("Court 1", 10000)

	t.Run("customer with penalties is blocked", func(t *testing.T) {
		u := f.user("blocked")
		_, err := f.svc.Penalties.ActivateDebtPenalty(f.ctx, nil, u.ID, 100)
		require.NoError(t, err)
		_, err = f.svc.Users.DeleteAccount(f.ctx, u, u.ID, false)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("customer cannot delete others", func(t *testing.T) {
		u, other := f.user("u"), f.user("other")
		_, err := f.svc.Users.DeleteAccount(f.ctx, u, other.ID, false)
		assert.ErrorIs(t, err, ErrPermission)
	})

	t.Run("admin must confirm for a debtor", func(t *testing.T) {
		u := f.user("debtor")
		f.insertReservation(u, court, testNow.Add(-3*time.Hour), models.StatePendingPayment, 3000)
		upcoming := f.insertReservation(u, court, testNow.Add(72*time.Hour), models.StateActive, 3000)

		res, err := f.svc.Users.DeleteAccount(f.ctx, admin, u.ID, false)
		require.NoError(t, err)
		assert.True(t, res.RequiresConfirmation)
		assert.False(t, res.Deleted)
		assert.Contains(t, res.Message, "unpaid reservations")
		assert.True(t, f.reloadUser(u.ID).Active)

		res, err = f.svc.Users.DeleteAccount(f.ctx, admin, u.ID, true)
		require.NoError(t, err)
		assert.True(t, res.Deleted)
		assert.False(t, f.reloadUser(u.ID).Active)
		assert.Equal(t, models.StateCancelled, f.reload(upcoming.ID).State)
		assert.Zero(t, f.paid(upcoming.ID))
	})

	t.Run("customer deletes themselves", func(t *testing.T) {
		u := f.user("leaving")
		id := f.book(u, court, "2026-03-02", 12, 3000)

		res, err := f.svc.Users.DeleteAccount(f.ctx, u, u.ID, false)
		require.NoError(t, err)
		assert.True(t, res.Deleted)
		// Too close to refund.
		assert.Equal(t, 3000.0, f.paid(id))

		users, total, err := f.svc.Users.FindUsers(f.ctx, 1, 100)
		require.NoError(t, err)
		for _, listed := range users {
			assert.NotEqual(t, u.ID, listed.ID)
		}
		assert.Equal(t, int64(len(users)), total)

		_, err = f.svc.Users.FindByDNI(f.ctx, u.DNI)
		assert.ErrorIs(t, err, ErrUserNotFound)
		_, err = f.svc.Users.DeleteAccount(f.ctx, admin, u.ID, true)
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	assert.Len(t, f.notes.OfKind(notify.KindDeletion), 2)
}
