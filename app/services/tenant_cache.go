package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TenantRef is the cached view of a company used to resolve tenant routes.
// Sequence counters are never cached.
type TenantRef struct {
	ID     uint   `json:"id"`
	UUID   string `json:"uuid"`
	Slug   string `json:"slug"`
	Prefix string `json:"prefix"`
	Active bool   `json:"active"`
}

// TenantCache maps company slugs to TenantRef. Failures are treated as misses.
type TenantCache interface {
	Get(ctx context.Context, slug string) (*TenantRef, bool)
	Set(ctx context.Context, ref *TenantRef)
	Invalidate(ctx context.Context, slug string)
}

// NewTenantCache returns a redis backed cache, or a cache that always misses when client is nil
func NewTenantCache(client *redis.Client, keyPrefix string, ttl time.Duration, logger *zap.Logger) TenantCache {
	if client == nil {
		return noopTenantCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisTenantCache{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		logger:    logger.Named("tenant_cache"),
	}
}

// RedisTenantCache stores TenantRef values as JSON strings
type RedisTenantCache struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
	logger    *zap.Logger
}

func (c *RedisTenantCache) key(slug string) string {
	return c.keyPrefix + "tenant:" + slug
}

func (c *RedisTenantCache) Get(ctx context.Context, slug string) (*TenantRef, bool) {
	raw, err := c.client.Get(ctx, c.key(slug)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Tenant cache read failed", zap.String("slug", slug), zap.Error(err))
		}
		return nil, false
	}

	ref, err := decodeTenantRef(raw)
	if err != nil {
		c.logger.Warn("Dropping undecodable tenant cache entry", zap.String("slug", slug), zap.Error(err))
		c.Invalidate(ctx, slug)
		return nil, false
	}
	return ref, true
}

func (c *RedisTenantCache) Set(ctx context.Context, ref *TenantRef) {
	if ref == nil || ref.Slug == "" {
		return
	}
	raw, err := json.Marshal(ref)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, c.key(ref.Slug), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("Tenant cache write failed", zap.String("slug", ref.Slug), zap.Error(err))
	}
}

func (c *RedisTenantCache) Invalidate(ctx context.Context, slug string) {
	if err := c.client.Del(ctx, c.key(slug)).Err(); err != nil {
		c.logger.Warn("Tenant cache invalidation failed", zap.String("slug", slug), zap.Error(err))
	}
}

func decodeTenantRef(raw []byte) (*TenantRef, error) {
	var ref TenantRef
	if err := json.Unmarshal(raw, &ref); err != nil {
		return nil, err
	}
	if ref.ID == 0 || ref.Slug == "" {
		return nil, errors.New("incomplete tenant entry")
	}
	return &ref, nil
}

type noopTenantCache struct{}

func (noopTenantCache) Get(context.Context, string) (*TenantRef, bool) { return nil, false }
func (noopTenantCache) Set(context.Context, *TenantRef)                {}
func (noopTenantCache) Invalidate(context.Context, string)             {}
