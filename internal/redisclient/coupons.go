package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"checkout-service/internal/models"
	"checkout-service/internal/util"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// CouponSource is the authoritative coupon lookup behind the cache
type CouponSource interface {
	GetCouponByID(ctx context.Context, id string) (*models.Coupon, error)
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
}

// CouponCache is a read-through cache in front of a CouponSource. Misses are
// not cached so new coupons become usable immediately. Redis failures fall
// through to the source.
type CouponCache struct {
	rdb    *redis.Client
	source CouponSource
	ttl    time.Duration
	logger *zap.Logger
}

func NewCouponCache(c *Client, source CouponSource, ttl time.Duration) *CouponCache {
	return &CouponCache{
		rdb:    c.rdb,
		source: source,
		ttl:    ttl,
		logger: util.GetLogger(),
	}
}

func (c *CouponCache) GetCouponByID(ctx context.Context, id string) (*models.Coupon, error) {
	return c.get(ctx, fmt.Sprintf("coupon:id:%s", id), func() (*models.Coupon, error) {
		return c.source.GetCouponByID(ctx, id)
	})
}

func (c *CouponCache) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	return c.get(ctx, fmt.Sprintf("coupon:code:%s", code), func() (*models.Coupon, error) {
		return c.source.GetCouponByCode(ctx, code)
	})
}

func (c *CouponCache) get(ctx context.Context, key string, load func() (*models.Coupon, error)) (*models.Coupon, error) {
	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var coupon models.Coupon
		if err := json.Unmarshal(data, &coupon); err == nil {
			return &coupon, nil
		}
		c.logger.Warn("Dropping undecodable cached coupon", zap.String("key", key))
		c.rdb.Del(ctx, key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("Coupon cache read failed", zap.String("key", key), zap.Error(err))
	}

	coupon, err := load()
	if err != nil || coupon == nil {
		return coupon, err
	}

	if data, err := json.Marshal(coupon); err == nil {
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("Coupon cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return coupon, nil
}
