package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"conceptforge/internal/model"
)

// SessionCache keeps the active session blob hot so cross-device resume and
// repeated saves don't hit mongo on every touch.
type SessionCache interface {
	Set(ctx context.Context, sess *model.WizardSession) error
	Get(ctx context.Context, key string) (*model.WizardSession, error)
	Delete(ctx context.Context, key string) error
}

type sessionCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionCache(client *redis.Client, ttl time.Duration) SessionCache {
	return &sessionCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *sessionCache) Set(ctx context.Context, sess *model.WizardSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, "session:"+sess.Key, data, c.ttl).Err()
}

func (c *sessionCache) Get(ctx context.Context, key string) (*model.WizardSession, error) {
	data, err := c.client.Get(ctx, "session:"+key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var sess model.WizardSession
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

func (c *sessionCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, "session:"+key).Err()
}
