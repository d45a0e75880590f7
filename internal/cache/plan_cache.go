package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lapublica/platform-api/internal/config"
	"github.com/lapublica/platform-api/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PlanCache caches resolved plans per company in redis. Plans change rarely
// but are read on every limit check, so a short TTL takes most of the read
// load off postgres. The cache is optional: when disabled or unreachable,
// callers fall through to the database.
type PlanCache struct {
	client  *redis.Client
	ttl     time.Duration
	enabled bool
	logger  *zap.Logger
}

// NewDisabledPlanCache returns a cache that always misses
func NewDisabledPlanCache(logger *zap.Logger) *PlanCache {
	return &PlanCache{enabled: false, logger: logger}
}

// NewPlanCache connects to redis and verifies the connection
func NewPlanCache(ctx context.Context, cfg *config.CacheConfig, logger *zap.Logger) (*PlanCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("plan cache connected",
		zap.String("addr", cfg.Addr),
	)

	return &PlanCache{
		client:  client,
		ttl:     cfg.PlanTTLDuration(),
		enabled: true,
		logger:  logger,
	}, nil
}

func planKey(companyID uuid.UUID) string {
	return "plan:company:" + companyID.String()
}

// Get returns the cached plan for a company, or (nil, nil) on a miss
func (c *PlanCache) Get(ctx context.Context, companyID uuid.UUID) (*domain.Plan, error) {
	if !c.enabled {
		return nil, nil
	}

	data, err := c.client.Get(ctx, planKey(companyID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		c.logger.Warn("plan cache read failed", zap.Error(err))
		return nil, nil
	}

	var plan domain.Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, nil
	}
	return &plan, nil
}

// Set stores a company's plan. Failures are logged and swallowed.
func (c *PlanCache) Set(ctx context.Context, companyID uuid.UUID, plan *domain.Plan) {
	if !c.enabled {
		return
	}

	data, err := json.Marshal(plan)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, planKey(companyID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("plan cache write failed", zap.Error(err))
	}
}

// Invalidate drops a company's cached plan, e.g. after a plan change
func (c *PlanCache) Invalidate(ctx context.Context, companyID uuid.UUID) {
	if !c.enabled {
		return
	}
	if err := c.client.Del(ctx, planKey(companyID)).Err(); err != nil {
		c.logger.Warn("plan cache invalidation failed", zap.Error(err))
	}
}

// Close releases the redis connection
func (c *PlanCache) Close() error {
	if !c.enabled || c.client == nil {
		return nil
	}
	return c.client.Close()
}
