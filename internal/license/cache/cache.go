// Package cache evicts computed license projections from Redis after a
// committed mutation. The registry never serves licenses from the cache
// itself; downstream readers (the plugin store frontend, the console) cache
// per-license and per-owner views under the keys invalidated here.
package cache

import (
	"context"
	"fmt"
	"strconv"

	platformredis "licensenet/internal/platform/redis"
	id "licensenet/pkg/domain"
)

const (
	licenseKeyPrefix = "licensenet:license:"
	ownerKeyPrefix   = "licensenet:owner:"
)

// Invalidator deletes cached projections.
type Invalidator struct {
	client *platformredis.Client
}

func NewInvalidator(client *platformredis.Client) *Invalidator {
	return &Invalidator{client: client}
}

func (i *Invalidator) InvalidateLicense(ctx context.Context, key string) error {
	if err := i.client.Del(ctx, licenseKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("invalidate license cache: %w", err)
	}
	return nil
}

func (i *Invalidator) InvalidateOwner(ctx context.Context, ownerID id.AccountID) error {
	if err := i.client.Del(ctx, ownerKeyPrefix+strconv.FormatInt(int64(ownerID), 10)).Err(); err != nil {
		return fmt.Errorf("invalidate owner cache: %w", err)
	}
	return nil
}
