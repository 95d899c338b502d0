package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pmorrisey/njord/internal/domain"
)

const redisKeyPrefix = "checkout:session:"

// RedisStore keeps the checkout session server-side in Redis, keyed by an
// opaque session ID carried in a small cookie. Use it when session payloads
// outgrow the cookie size limit or when sessions must be shared across
// storefront instances.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore creates a Redis-backed store for the session identified by
// key. Sessions expire after ttl; a zero ttl means no expiry.
func NewRedisStore(client *redis.Client, key string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, key: key, ttl: ttl}
}

func (s *RedisStore) Save(ctx context.Context, session *domain.CheckoutSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "session.save", "failed to serialize checkout session")
	}
	if err := s.client.Set(ctx, redisKeyPrefix+s.key, payload, s.ttl).Err(); err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "session.save", "failed to write checkout session")
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context) (*domain.CheckoutSession, error) {
	payload, err := s.client.Get(ctx, redisKeyPrefix+s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, domain.WrapError(err, domain.EINTERNAL, "session.load", "failed to read checkout session")
	}

	var session domain.CheckoutSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, domain.ErrSessionNotFound
	}
	return &session, nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, redisKeyPrefix+s.key).Err(); err != nil {
		return domain.WrapError(err, domain.EINTERNAL, "session.clear", "failed to delete checkout session")
	}
	return nil
}
