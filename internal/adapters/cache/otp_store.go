package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"dealflow/internal/core/services"
)

const otpKeyPrefix = "dealflow:otp:"

// OTPStore keeps confirmation codes in Redis so every instance sees the same
// code and attempt counter.
type OTPStore struct {
	client redis.Cmdable
}

// NewOTPStore creates a Redis backed store.
func NewOTPStore(client redis.Cmdable) *OTPStore {
	return &OTPStore{client: client}
}

func (s *OTPStore) Get(ctx context.Context, key string) (*services.OTPEntry, error) {
	raw, err := s.client.Get(ctx, otpKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entry services.OTPEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decode otp entry: %w", err)
	}
	return &entry, nil
}

func (s *OTPStore) Put(ctx context.Context, key string, entry *services.OTPEntry, ttl time.Duration) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return s.Delete(ctx, key)
	}
	return s.client.Set(ctx, otpKeyPrefix+key, raw, ttl).Err()
}

func (s *OTPStore) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, otpKeyPrefix+key).Err()
}
