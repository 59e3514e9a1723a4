// Package notify delivers semantic events (confirmation, cancellation, ...)
// to the channel that renders and sends them.
package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type Kind string

const (
	KindConfirmation Kind = "confirmation"
	KindCancellation Kind = "cancellation"
	KindPayment      Kind = "payment"
	KindInfo         Kind = "info"
	KindDisablement  Kind = "disablement"
	KindReminder     Kind = "reminder"
	KindPenalty      Kind = "penalty"
	KindDeletion     Kind = "deletion"
)

type Details struct {
	Facility      string   `json:"facility,omitempty"`
	Datetime      string   `json:"datetime,omitempty"`
	Amount        *float64 `json:"amount,omitempty"`
	ReservationID *uint    `json:"reservation_id,omitempty"`
}

type Notification struct {
	ID              string   `json:"id"`
	RecipientUserID uint     `json:"recipient_user_id"`
	Email           string   `json:"email"`
	Kind            Kind     `json:"template_kind"`
	Message         string   `json:"message"`
	Details         *Details `json:"details,omitempty"`
}

// Notifier hands a notification to a delivery channel.
// Callers log failures and never roll back on them.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.logger.Info("notification",
		zap.String("id", n.ID),
		zap.Uint("recipient", n.RecipientUserID),
		zap.String("kind", string(n.Kind)),
		zap.String("message", n.Message),
	)
	return nil
}

// Memory keeps notifications in memory. Used by tests.
type Memory struct {
	mu   sync.Mutex
	sent []Notification
	Err  error
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Notify(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, n)
	return nil
}

func (m *Memory) Sent() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Notification, len(m.sent))
	copy(out, m.sent)
	return out
}

// OfKind filters the sent notifications by kind.
func (m *Memory) OfKind(k Kind) []Notification {
	var out []Notification
	for _, n := range m.Sent() {
		if n.Kind == k {
			out = append(out, n)
		}
	}
	return out
}
