package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"reservas-backend/internal/services"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	return mr, redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestRunOnceSkipsWhenGuardHeld(t *testing.T) {
	mr, rdb := setupRedis(t)
	s := New(rdb, time.UTC, zap.NewNop())

	var calls int32
	run := func(ctx context.Context) (services.JobReport, error) {
		atomic.AddInt32(&calls, 1)
		return services.JobReport{Job: "close_slots", Transitioned: 2}, nil
	}

	report, ran, err := s.RunOnce(context.Background(), "close_slots", run)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 2, report.Transitioned)
	assert.False(t, mr.Exists(guardPrefix+"close_slots"), "guard released after run")

	require.NoError(t, mr.Set(guardPrefix+"close_slots", "other-replica"))
	_, ran, err = s.RunOnce(context.Background(), "close_slots", run)
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// Someone else's guard is left alone.
	got, err := mr.Get(guardPrefix + "close_slots")
	require.NoError(t, err)
	assert.Equal(t, "other-replica", got)
}

func TestRunOnceReleasesGuardOnFailure(t *testing.T) {
	mr, rdb := setupRedis(t)
	s := New(rdb, time.UTC, zap.NewNop())

	boom := errors.New("boom")
	_, ran, err := s.RunOnce(context.Background(), "penalize_debts", func(context.Context) (services.JobReport, error) {
		return services.JobReport{}, boom
	})
	assert.True(t, ran)
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists(guardPrefix+"penalize_debts"))
}

func TestRunOnceWithoutRedis(t *testing.T) {
	s := New(nil, nil, nil)
	_, ran, err := s.RunOnce(context.Background(), "close_slots", func(context.Context) (services.JobReport, error) {
		return services.JobReport{}, nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestAddAndTrigger(t *testing.T) {
	_, rdb := setupRedis(t)
	s := New(rdb, time.UTC, zap.NewNop())

	var calls int32
	run := func(context.Context) (services.JobReport, error) {
		atomic.AddInt32(&calls, 1)
		return services.JobReport{}, nil
	}
	require.NoError(t, s.Add("close_slots", "@every 5m", run))
	assert.Error(t, s.Add("close_slots", "@every 5m", run))
	assert.Error(t, s.Add("broken", "not a spec", run))

	_, ran, err := s.Trigger(context.Background(), "close_slots")
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	_, _, err = s.Trigger(context.Background(), "unknown")
	assert.Error(t, err)
}

func TestScheduledJobRuns(t *testing.T) {
	s := New(nil, time.UTC, zap.NewNop())
	fired := make(chan struct{}, 1)
	require.NoError(t, s.Add("tick", "@every 1s", func(context.Context) (services.JobReport, error) {
		select {
		case fired <- struct{}{}:
		default:
		}
		return services.JobReport{}, nil
	}))

	s.Start()
	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job did not fire")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}
