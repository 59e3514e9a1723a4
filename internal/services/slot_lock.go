package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const slotLockTTL = 10 * time.Second

// releaseScript deletes the lock only if we still own it.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

// lockSlot serializes bookings of one (facility, slot) across instances.
// Without Redis it returns a no-op release and relies on the DB transaction.
func (e *env) lockSlot(ctx context.Context, facilityID uint, slot time.Time) (func(), error) {
	if e.redis == nil {
		return func() {}, nil
	}

	key := fmt.Sprintf("lock:slot:%d:%d", facilityID, slot.Unix())
	token := uuid.New().String()
	ok, err := e.redis.SetNX(ctx, key, token, slotLockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire slot lock: %w", err)
	}
	if !ok {
		return nil, ErrSlotTaken
	}

	return func() {
		if err := e.redis.Eval(context.WithoutCancel(ctx), releaseScript, []string{key}, token).Err(); err != nil {
			e.log.Warn("Failed to release slot lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}
