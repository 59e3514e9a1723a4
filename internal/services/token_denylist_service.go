package services

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const denylistPrefix = "denylist:"

// TokenService tracks revoked JWTs. Without Redis nothing is ever revoked.
type TokenService struct {
	*env
}

func (s *TokenService) AddToDenylist(ctx context.Context, tokenString string, expiration time.Duration) error {
	if s.redis == nil {
		return nil
	}
	key := denylistPrefix + tokenString
	return s.redis.Set(ctx, key, 1, expiration).Err()
}

func (s *TokenService) IsDenylisted(ctx context.Context, tokenString string) (bool, error) {
	if s.redis == nil {
		return false, nil
	}
	key := denylistPrefix + tokenString
	val, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil { // key does not exist
			return false, nil
		}
		return false, err
	}
	return val != "", nil
}
