package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type compensation struct {
	step string
	fn   func(ctx context.Context) error
}

// saga runs forward steps and remembers how to undo each completed one.
type saga struct {
	id    string
	name  string
	log   *zap.Logger
	undos []compensation
}

func newSaga(name string, log *zap.Logger) *saga {
	id := uuid.New().String()
	return &saga{id: id, name: name, log: log.With(zap.String("saga", name), zap.String("saga_id", id))}
}

// completed registers the undo for a step that has just succeeded.
func (s *saga) completed(step string, undo func(ctx context.Context) error) {
	s.log.Debug("Saga step completed", zap.String("step", step))
	s.undos = append(s.undos, compensation{step: step, fn: undo})
}

// abort undoes the completed steps in reverse order. Compensations run on a
// context detached from the caller's cancellation.
func (s *saga) abort(ctx context.Context, step string, cause error) {
	ctx = context.WithoutCancel(ctx)
	s.log.Warn("Saga step failed, compensating", zap.String("step", step), zap.Error(cause))

	for i := len(s.undos) - 1; i >= 0; i-- {
		c := s.undos[i]
		if err := c.fn(ctx); err != nil {
			s.log.Error("Compensation failed", zap.String("step", c.step), zap.Error(err))
			continue
		}
		s.log.Info("Compensated", zap.String("step", c.step))
	}
	s.undos = nil
}
