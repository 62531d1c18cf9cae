package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"company-quiz-service/internal/domain"
)

// AnswerCache stores last-given answers in Redis as plain string keys:
// SET answer:{userID}:{questionID} {answerText} EX {ttl}
type AnswerCache struct {
	client *redis.Client
}

func NewAnswerCache(client *redis.Client) *AnswerCache {
	return &AnswerCache{client: client}
}

func (c *AnswerCache) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, c.key(key), value, ttl).Err()
}

func (c *AnswerCache) Get(ctx context.Context, key string) (string, error) {
	value, err := c.client.Get(ctx, c.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.NotFound("no cached answer for %s", key)
		}
		return "", err
	}
	return value, nil
}

func (c *AnswerCache) key(key string) string {
	return "answer:" + key
}
