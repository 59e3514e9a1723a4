package services

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"reservas-backend/config"
	"reservas-backend/internal/clock"
	"reservas-backend/internal/notify"
	"reservas-backend/internal/payment"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the collaborators shared by every service. Redis is optional.
type Deps struct {
	DB            *gorm.DB
	Redis         *redis.Client
	Clock         clock.Clock
	Calendar      *clock.Calendar
	Policy        config.Policy
	Gateway       payment.Gateway
	Notifier      notify.Notifier
	Logger        *zap.Logger
	PaymentSecret string
	JWTSecret     string
	TokenTTL      time.Duration
}

type Services struct {
	Calendar       *clock.Calendar
	Ledger         *Ledger
	Penalties      *PenaltyService
	Reservations   *ReservationService
	Reconciliation *ReconciliationService
	Facilities     *FacilityService
	Users          *UserService
	Auth           *AuthService
	Tokens         *TokenService
	Payments       *PaymentService
	Reports        *ReportService
}

func New(d Deps) *Services {
	if d.Clock == nil {
		d.Clock = clock.RealClock{}
	}
	if d.Calendar == nil {
		d.Calendar = clock.NewCalendar(d.Policy.TZOffsetHours)
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Notifier == nil {
		d.Notifier = notify.NewLogNotifier(d.Logger)
	}
	if d.TokenTTL == 0 {
		d.TokenTTL = 72 * time.Hour
	}

	e := &env{
		db:            d.DB,
		redis:         d.Redis,
		clock:         d.Clock,
		cal:           d.Calendar,
		policy:        d.Policy,
		gateway:       d.Gateway,
		notifier:      d.Notifier,
		log:           d.Logger,
		paymentSecret: d.PaymentSecret,
	}
	e.ledger = &Ledger{env: e}

	s := &Services{Calendar: d.Calendar, Ledger: e.ledger}
	s.Penalties = &PenaltyService{env: e}
	s.Reservations = &ReservationService{env: e, penalties: s.Penalties}
	s.Reconciliation = &ReconciliationService{env: e, penalties: s.Penalties}
	s.Facilities = &FacilityService{env: e}
	s.Users = &UserService{env: e, penalties: s.Penalties}
	s.Tokens = &TokenService{env: e}
	s.Auth = &AuthService{env: e, secret: []byte(d.JWTSecret), ttl: d.TokenTTL, tokens: s.Tokens}
	s.Payments = &PaymentService{env: e}
	s.Reports = &ReportService{env: e}
	return s
}

// env is the state every service works against.
type env struct {
	db            *gorm.DB
	redis         *redis.Client
	clock         clock.Clock
	cal           *clock.Calendar
	policy        config.Policy
	gateway       payment.Gateway
	notifier      notify.Notifier
	log           *zap.Logger
	paymentSecret string
	ledger        *Ledger
}

// now is always UTC so stored timestamps compare consistently across drivers.
func (e *env) now() time.Time {
	return e.clock.Now().UTC()
}

// conn returns tx when inside a transaction, the pool otherwise.
func (e *env) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return e.db.WithContext(ctx)
}

// send delivers a notification. Failures are logged only.
func (e *env) send(ctx context.Context, n notify.Notification) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if err := e.notifier.Notify(ctx, n); err != nil {
		e.log.Warn("Failed to send notification",
			zap.String("kind", string(n.Kind)),
			zap.Uint("user_id", n.RecipientUserID),
			zap.Error(err))
	}
}

func (e *env) hoursUntil(t time.Time) float64 {
	return t.Sub(e.now()).Hours()
}

func (e *env) userCacheKey(id uint) string {
	return fmt.Sprintf("user:%d", id)
}

func (e *env) invalidateUser(ctx context.Context, id uint) {
	if e.redis == nil {
		return
	}
	if err := e.redis.Del(ctx, e.userCacheKey(id)).Err(); err != nil {
		e.log.Warn("Failed to invalidate user cache", zap.Uint("user_id", id), zap.Error(err))
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// formatAmount renders money without trailing zeros, e.g. 3000 or 2999.5.
func formatAmount(v float64) string {
	return strconv.FormatFloat(roundCents(v), 'f', -1, 64)
}

func amountPtr(v float64) *float64 {
	v = roundCents(v)
	return &v
}

func uintPtr(v uint) *uint {
	return &v
}
