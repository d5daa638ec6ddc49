package attribution

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// RedisCache stores one hash per document; each hash field is an upper
// bound version holding the JSON-encoded map. A separate counter key holds
// the document's generation. Invalidation bumps the counter and deletes
// the hash in one transaction.
type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisCache connects to addr and verifies the connection.
func NewRedisCache(ctx context.Context, addr string, ttl time.Duration) (*RedisCache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, eris.Wrap(err, "redis: ping")
	}
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: "attribution:"}, nil
}

func (c *RedisCache) key(documentID string) string {
	return c.prefix + documentID
}

func (c *RedisCache) genKey(documentID string) string {
	return c.prefix + "gen:" + documentID
}

func (c *RedisCache) Get(ctx context.Context, documentID string, upTo int) (map[string]int, bool, error) {
	raw, err := c.rdb.HGet(ctx, c.key(documentID), strconv.Itoa(upTo)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "redis: hget attribution")
	}
	var m map[string]int
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false, eris.Wrap(err, "redis: decode attribution")
	}
	return m, true, nil
}

// getter is satisfied by both the client and a WATCH transaction.
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (c *RedisCache) Generation(ctx context.Context, documentID string) (uint64, error) {
	return c.generation(ctx, c.rdb, documentID)
}

func (c *RedisCache) generation(ctx context.Context, cmd getter, documentID string) (uint64, error) {
	gen, err := cmd.Get(ctx, c.genKey(documentID)).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrap(err, "redis: get attribution generation")
	}
	return gen, nil
}

// Set writes m under WATCH on the generation key. A concurrent Invalidate
// aborts the transaction, and the map is dropped.
func (c *RedisCache) Set(ctx context.Context, documentID string, upTo int, gen uint64, m map[string]int) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "redis: encode attribution")
	}
	key := c.key(documentID)
	err = c.rdb.Watch(ctx, func(tx *redis.Tx) error {
		current, err := c.generation(ctx, tx, documentID)
		if err != nil {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, strconv.Itoa(upTo), raw)
			if c.ttl > 0 {
				pipe.Expire(ctx, key, c.ttl)
			}
			return nil
		})
		return err
	}, c.genKey(documentID))
	if errors.Is(err, redis.TxFailedErr) {
		return nil
	}
	return eris.Wrap(err, "redis: hset attribution")
}

func (c *RedisCache) Invalidate(ctx context.Context, documentID string) error {
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, c.genKey(documentID))
		pipe.Del(ctx, c.key(documentID))
		return nil
	})
	return eris.Wrap(err, "redis: invalidate attribution")
}

// Close releases the client.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
