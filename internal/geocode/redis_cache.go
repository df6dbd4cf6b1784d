package geocode

import (
	"context"
	"errors"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/example/party-rides/internal/models"
)

// RedisCache implements Cache as one redis hash per address key, stored
// without a TTL.
type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(addr, password, prefix string) *RedisCache {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return NewRedisCacheFromClient(c, prefix)
}

func NewRedisCacheFromClient(c *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: c, prefix: prefix}
}

func (r *RedisCache) Get(ctx context.Context, key string) (models.Coordinates, bool, error) {
	m, err := r.client.HGetAll(ctx, r.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return models.Coordinates{}, false, nil
	}
	if err != nil {
		return models.Coordinates{}, false, err
	}
	if len(m) == 0 {
		return models.Coordinates{}, false, nil
	}
	lat, err := strconv.ParseFloat(m["lat"], 64)
	if err != nil {
		return models.Coordinates{}, false, err
	}
	lng, err := strconv.ParseFloat(m["lng"], 64)
	if err != nil {
		return models.Coordinates{}, false, err
	}
	return models.Coordinates{Lat: lat, Lng: lng}, true, nil
}

func (r *RedisCache) Put(ctx context.Context, key string, c models.Coordinates) error {
	return r.client.HSet(ctx, r.prefix+key, map[string]interface{}{
		"lat": strconv.FormatFloat(c.Lat, 'f', -1, 64),
		"lng": strconv.FormatFloat(c.Lng, 'f', -1, 64),
	}).Err()
}

func (r *RedisCache) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *RedisCache) Close() error { return r.client.Close() }
