// Package scheduler runs the reconciliation jobs on cron schedules. A Redis
// run guard keeps replicas from running the same job at the same time.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"reservas-backend/internal/services"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	guardPrefix     = "job:guard:"
	defaultGuardTTL = 10 * time.Minute
)

const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

// RunFunc is one reconciliation job.
type RunFunc func(ctx context.Context) (services.JobReport, error)

type Scheduler struct {
	cron     *cron.Cron
	redis    *redis.Client
	log      *zap.Logger
	guardTTL time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	jobs   map[string]RunFunc
}

type Option func(*Scheduler)

// WithGuardTTL bounds how long a crashed replica can keep a job locked.
func WithGuardTTL(d time.Duration) Option {
	return func(s *Scheduler) { s.guardTTL = d }
}

// New builds a scheduler evaluating specs in loc. rdb may be nil, in which
// case jobs are only serialized within this process.
func New(rdb *redis.Client, loc *time.Location, logger *zap.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	cl := cronLogger{l: logger.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		redis:    rdb,
		log:      logger,
		guardTTL: defaultGuardTTL,
		ctx:      ctx,
		cancel:   cancel,
		jobs:     make(map[string]RunFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers run under name on a standard cron spec or descriptor such as
// "@every 5m".
func (s *Scheduler) Add(name, spec string, run RunFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.jobs[name]; dup {
		return fmt.Errorf("job %q already registered", name)
	}
	if _, err := s.cron.AddFunc(spec, func() {
		if _, _, err := s.RunOnce(s.ctx, name, run); err != nil {
			s.log.Error("Scheduled job failed", zap.String("job", name), zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule %q (%s): %w", name, spec, err)
	}
	s.jobs[name] = run
	s.log.Info("Job scheduled", zap.String("job", name), zap.String("spec", spec))
	return nil
}

// RunOnce runs a job now under the run guard. ran is false when another
// replica holds the guard.
func (s *Scheduler) RunOnce(ctx context.Context, name string, run RunFunc) (report services.JobReport, ran bool, err error) {
	release, ok, err := s.acquire(ctx, name)
	if err != nil {
		return report, false, err
	}
	if !ok {
		s.log.Info("Job already running elsewhere, skipping", zap.String("job", name))
		return report, false, nil
	}
	defer release()

	report, err = run(ctx)
	return report, true, err
}

// Trigger runs a registered job by name.
func (s *Scheduler) Trigger(ctx context.Context, name string) (services.JobReport, bool, error) {
	s.mu.Lock()
	run, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return services.JobReport{}, false, fmt.Errorf("unknown job %q", name)
	}
	return s.RunOnce(ctx, name, run)
}

func (s *Scheduler) acquire(ctx context.Context, name string) (func(), bool, error) {
	if s.redis == nil {
		return func() {}, true, nil
	}
	key := guardPrefix + name
	token := uuid.New().String()
	ok, err := s.redis.SetNX(ctx, key, token, s.guardTTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire job guard: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		if err := s.redis.Eval(context.WithoutCancel(ctx), releaseScript, []string{key}, token).Err(); err != nil {
			s.log.Warn("Failed to release job guard", zap.String("key", key), zap.Error(err))
		}
	}, true, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("Scheduler started", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop cancels running jobs and waits for them to return or ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		s.log.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
