package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/tamias-pos/customer-display/internal/display"
	"github.com/tamias-pos/customer-display/pkg/models"
	"go.uber.org/zap"
)

func storeByCodeKey(code string) string {
	return fmt.Sprintf("store:display:%s", code)
}

func storeByIDKey(id string) string {
	return fmt.Sprintf("store:id:%s", id)
}

func cashiersKey(storeID string) string {
	return fmt.Sprintf("store:%s:cashiers", storeID)
}

// CachedDirectory is a read-through cache in front of a slower directory.
// Misses and errors are never cached; a Redis failure falls back to the source.
type CachedDirectory struct {
	source display.Directory
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

func NewCachedDirectory(source display.Directory, client *redis.Client, ttl time.Duration, log *zap.Logger) *CachedDirectory {
	return &CachedDirectory{
		source: source,
		client: client,
		ttl:    ttl,
		log:    log.Named("directory_cache"),
	}
}

func (d *CachedDirectory) StoreByDisplayID(ctx context.Context, code string) (*models.Store, error) {
	var store models.Store
	if d.get(ctx, storeByCodeKey(code), &store) {
		return &store, nil
	}

	found, err := d.source.StoreByDisplayID(ctx, code)
	if err != nil {
		return nil, err
	}
	d.set(ctx, found, storeByCodeKey(code), storeByIDKey(found.ID))
	return found, nil
}

func (d *CachedDirectory) StoreByID(ctx context.Context, id string) (*models.Store, error) {
	var store models.Store
	if d.get(ctx, storeByIDKey(id), &store) {
		return &store, nil
	}

	found, err := d.source.StoreByID(ctx, id)
	if err != nil {
		return nil, err
	}
	keys := []string{storeByIDKey(id)}
	if found.DisplayID != "" {
		keys = append(keys, storeByCodeKey(found.DisplayID))
	}
	d.set(ctx, found, keys...)
	return found, nil
}

func (d *CachedDirectory) CashiersByStore(ctx context.Context, storeID string) ([]models.Cashier, error) {
	var cashiers []models.Cashier
	if d.get(ctx, cashiersKey(storeID), &cashiers) {
		return cashiers, nil
	}

	found, err := d.source.CashiersByStore(ctx, storeID)
	if err != nil {
		return nil, err
	}
	d.set(ctx, found, cashiersKey(storeID))
	return found, nil
}

// Invalidate drops everything cached for a store, e.g. after its staff changed.
func (d *CachedDirectory) Invalidate(ctx context.Context, store models.Store) error {
	keys := []string{storeByIDKey(store.ID), cashiersKey(store.ID)}
	if store.DisplayID != "" {
		keys = append(keys, storeByCodeKey(store.DisplayID))
	}
	if err := d.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate store %s: %w", store.ID, err)
	}
	return nil
}

func (d *CachedDirectory) get(ctx context.Context, key string, dst any) bool {
	raw, err := d.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			d.log.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		d.log.Warn("discarding unreadable cache entry", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (d *CachedDirectory) set(ctx context.Context, value any, keys ...string) {
	raw, err := json.Marshal(value)
	if err != nil {
		d.log.Warn("cache encode failed", zap.Error(err))
		return
	}

	pipe := d.client.TxPipeline()
	for _, key := range keys {
		pipe.Set(ctx, key, raw, d.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		d.log.Warn("cache write failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
