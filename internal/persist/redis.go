package persist

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// KV is the part of redis.Cmdable a RedisBlob needs.
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisBlob keeps a blob under a single Redis key with no expiry. It is a
// drop-in replacement for FileBlob; there is still exactly one writer per
// process.
type RedisBlob struct {
	client KV
	key    string
}

// NewRedisBlob creates a RedisBlob stored under key.
func NewRedisBlob(client KV, key string) *RedisBlob {
	return &RedisBlob{client: client, key: key}
}

func (b *RedisBlob) Location() string {
	return "redis:" + b.key
}

func (b *RedisBlob) Load(ctx context.Context) ([]byte, error) {
	data, err := b.client.Get(ctx, b.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotExist
		}
		return nil, &Error{Op: "load", Location: b.Location(), Err: err}
	}
	return data, nil
}

func (b *RedisBlob) Save(ctx context.Context, data []byte) error {
	if err := b.client.Set(ctx, b.key, data, 0).Err(); err != nil {
		return &Error{Op: "save", Location: b.Location(), Err: err}
	}
	return nil
}
