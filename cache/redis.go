package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kochabonline/hartshorn/errors"
)

const scanCount = 256

// Redis stores entries under "<name>:<key>".
type Redis struct {
	name   string
	client redis.UniversalClient
}

func NewRedis(name string, client redis.UniversalClient) *Redis {
	return &Redis{name: name, client: client}
}

func (r *Redis) Name() string { return r.name }

func (r *Redis) key(key string) string {
	return r.name + ":" + key
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, errors.CodeCache, "get %s", r.key(key))
	}
	return b, true, nil
}

func (r *Redis) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return errors.Wrap(err, errors.CodeCache, "put %s", r.key(key))
	}
	return nil
}

func (r *Redis) Evict(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return errors.Wrap(err, errors.CodeCache, "evict %s", r.key(key))
	}
	return nil
}

// Clear deletes every key of the cache with SCAN and DEL. On a cluster each
// master is scanned.
func (r *Redis) Clear(ctx context.Context) error {
	var err error
	if cc, ok := r.client.(*redis.ClusterClient); ok {
		err = cc.ForEachMaster(ctx, func(ctx context.Context, c *redis.Client) error {
			return r.clear(ctx, c)
		})
	} else {
		err = r.clear(ctx, r.client)
	}
	if err != nil {
		return errors.Wrap(err, errors.CodeCache, "clear %s", r.name)
	}
	return nil
}

func (r *Redis) clear(ctx context.Context, c redis.Cmdable) error {
	var cursor uint64
	for {
		keys, next, err := c.Scan(ctx, cursor, r.key("*"), scanCount).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
