// Package masterdata exposes cross-entity lookups over the reference tables.
//
// The registry answers two questions the rest of the system keeps asking:
// does a natural key already exist, and what are the active rows for a
// dropdown. Selector lists are cached in Redis; every write path through the
// entity handlers calls Invalidate for its table.
package masterdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"github.com/bagline-erp/bagline/internal/shared"
)

// Selector is one row of a dropdown list.
type Selector struct {
	ID    uuid.UUID `json:"id"`
	Label string    `json:"label"`
}

type entityDef struct {
	table    string
	keyCol   string
	labelCol string
}

var entities = map[string]entityDef{
	"items":     {table: "items", keyCol: "item_code", labelCol: "item_code || ' — ' || item_name"},
	"sizes":     {table: "sizes", keyCol: "size_label", labelCol: "size_label"},
	"suppliers": {table: "suppliers", keyCol: "supplier_name", labelCol: "supplier_name"},
	"customers": {table: "customers", keyCol: "customer_name", labelCol: "customer_name"},
	"carriers":  {table: "carriers", keyCol: "carrier_code", labelCol: "carrier_code || ' — ' || carrier_name"},
}

type Registry struct {
	logger *slog.Logger
	pool   *pgxpool.Pool
	cache  *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

func NewRegistry(logger *slog.Logger, pool *pgxpool.Pool, cache *redis.Client, ttl time.Duration) *Registry {
	return &Registry{logger: logger, pool: pool, cache: cache, ttl: ttl}
}

// Exists reports whether an active row with the given natural key is present.
func (reg *Registry) Exists(ctx context.Context, entity, naturalKey string) (bool, error) {
	def, ok := entities[entity]
	if !ok {
		return false, shared.Validation("unknown entity %q", entity)
	}
	var exists bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s = $1 AND is_active)`, def.table, def.keyCol)
	if err := reg.pool.QueryRow(ctx, query, naturalKey).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// FindActive returns the active selector rows for an entity, cache-first.
// A cache miss or a broken Redis falls through to the database.
func (reg *Registry) FindActive(ctx context.Context, entity string) ([]Selector, error) {
	def, ok := entities[entity]
	if !ok {
		return nil, shared.Validation("unknown entity %q", entity)
	}

	key := cacheKey(entity)
	payload, err := reg.cache.Get(ctx, key).Bytes()
	if err == nil {
		var cached []Selector
		if err := json.Unmarshal(payload, &cached); err == nil {
			return cached, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		reg.logger.Warn("selector cache read", slog.String("entity", entity), slog.Any("error", err))
	}

	// singleflight collapses concurrent misses into one rebuild per entity
	result, err, _ := reg.group.Do(key, func() (any, error) {
		return reg.rebuild(ctx, entity, def, key)
	})
	if err != nil {
		return nil, err
	}
	return result.([]Selector), nil
}

func (reg *Registry) rebuild(ctx context.Context, entity string, def entityDef, key string) ([]Selector, error) {
	query := fmt.Sprintf(`SELECT id, %s FROM %s WHERE is_active ORDER BY 2`, def.labelCol, def.table)
	rows, err := reg.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Selector{}
	for rows.Next() {
		var s Selector
		if err := rows.Scan(&s.ID, &s.Label); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(out); err == nil {
		if err := reg.cache.Set(ctx, key, payload, reg.ttl).Err(); err != nil {
			reg.logger.Warn("selector cache write", slog.String("entity", entity), slog.Any("error", err))
		}
	}
	return out, nil
}

// Invalidate drops the cached selector list for an entity. Safe to call for
// entities that are never cached.
func (reg *Registry) Invalidate(ctx context.Context, entity string) {
	if _, ok := entities[entity]; !ok {
		return
	}
	if err := reg.cache.Del(ctx, cacheKey(entity)).Err(); err != nil {
		reg.logger.Warn("selector cache invalidate", slog.String("entity", entity), slog.Any("error", err))
	}
}

func cacheKey(entity string) string {
	return "bagline:selectors:" + entity
}
