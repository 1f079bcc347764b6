package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shstksdbs/ERP-Project-sub001/internal/supply/entity"
	"go.uber.org/zap"
)

// KV the subset of the redis client the catalog cache needs
type KV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

type branchFinder interface {
	FindBranch(ctx context.Context, id uint) (*entity.Branch, error)
}

type materialFinder interface {
	FindMaterial(ctx context.Context, id uint) (*entity.Material, error)
}

// CatalogCache read-through redis cache over branch and material lookups.
// Redis errors fall back to the database.
type CatalogCache struct {
	kv        KV
	branches  branchFinder
	materials materialFinder
	ttl       time.Duration
	logger    *zap.Logger
}

func NewCatalogCache(kv KV, branches branchFinder, materials materialFinder, ttl time.Duration, logger *zap.Logger) *CatalogCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogCache{kv: kv, branches: branches, materials: materials, ttl: ttl, logger: logger}
}

func branchKey(id uint) string   { return fmt.Sprintf("catalog:branch:%d", id) }
func materialKey(id uint) string { return fmt.Sprintf("catalog:material:%d", id) }

// FindBranch cached branch lookup
func (c *CatalogCache) FindBranch(ctx context.Context, id uint) (*entity.Branch, error) {
	var b entity.Branch
	if c.get(ctx, branchKey(id), &b) {
		return &b, nil
	}
	found, err := c.branches.FindBranch(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, branchKey(id), found)
	return found, nil
}

// FindMaterial cached material lookup
func (c *CatalogCache) FindMaterial(ctx context.Context, id uint) (*entity.Material, error) {
	var m entity.Material
	if c.get(ctx, materialKey(id), &m) {
		return &m, nil
	}
	found, err := c.materials.FindMaterial(ctx, id)
	if err != nil {
		return nil, err
	}
	c.set(ctx, materialKey(id), found)
	return found, nil
}

func (c *CatalogCache) get(ctx context.Context, key string, out interface{}) bool {
	raw, err := c.kv.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("catalog cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Warn("catalog cache decode failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *CatalogCache) set(ctx context.Context, key string, v interface{}) {
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.kv.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("catalog cache set failed", zap.String("key", key), zap.Error(err))
	}
}
