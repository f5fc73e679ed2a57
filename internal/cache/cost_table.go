package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ecom_ops_backend/internal/models"
	"ecom_ops_backend/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const costTableKey = "cost_lookup:v1"

// CostTable caches the full cost lookup table. A miss or any cache failure
// reports ok=false so callers read the store.
type CostTable interface {
	Get(ctx context.Context) (rows []models.CostLookupRow, ok bool)
	Set(ctx context.Context, rows []models.CostLookupRow)
	Invalidate(ctx context.Context)
}

// NewCostTable returns a Redis cache, or a no-op cache when rdb is nil.
func NewCostTable(rdb *redis.Client, ttl time.Duration) CostTable {
	if rdb == nil {
		return noopCostTable{}
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &redisCostTable{rdb: rdb, ttl: ttl}
}

type redisCostTable struct {
	rdb *redis.Client
	ttl time.Duration
}

func (c *redisCostTable) Get(ctx context.Context) ([]models.CostLookupRow, bool) {
	raw, err := c.rdb.Get(ctx, costTableKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			utils.LogWarn("Cost table cache read failed", map[string]interface{}{"error": err.Error()})
		}
		return nil, false
	}
	var rows []models.CostLookupRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		utils.LogWarn("Cost table cache entry is corrupt", map[string]interface{}{"error": err.Error()})
		return nil, false
	}
	return rows, true
}

func (c *redisCostTable) Set(ctx context.Context, rows []models.CostLookupRow) {
	raw, err := json.Marshal(rows)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, costTableKey, raw, c.ttl).Err(); err != nil {
		utils.LogWarn("Cost table cache write failed", map[string]interface{}{"error": err.Error()})
	}
}

func (c *redisCostTable) Invalidate(ctx context.Context) {
	if err := c.rdb.Del(ctx, costTableKey).Err(); err != nil {
		utils.LogWarn("Cost table cache invalidation failed", map[string]interface{}{"error": err.Error()})
	}
}

type noopCostTable struct{}

func (noopCostTable) Get(context.Context) ([]models.CostLookupRow, bool) { return nil, false }
func (noopCostTable) Set(context.Context, []models.CostLookupRow)        {}
func (noopCostTable) Invalidate(context.Context)                         {}
