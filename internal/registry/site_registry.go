// Package registry tracks which scan sites have already been reconciled, so
// the periodic reconciliation sweep does not re-create tickets for a site on
// every tick.
package registry

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// SiteRegistry is an atomic check-and-insert set of processed site ids.
type SiteRegistry interface {
	// Add records the site and reports whether this call was the first to do
	// so. A false return means the site was already processed.
	Add(ctx context.Context, siteID string) (bool, error)
	// Contains reports whether the site has been processed.
	Contains(ctx context.Context, siteID string) (bool, error)
	// Remove releases a claim, used when a reconciliation run fails after
	// claiming the site.
	Remove(ctx context.Context, siteID string) error
}

// MemorySiteRegistry is a mutex-guarded in-process set.
type MemorySiteRegistry struct {
	mu    sync.Mutex
	sites map[string]struct{}
}

// NewMemorySiteRegistry builds an empty registry.
func NewMemorySiteRegistry() *MemorySiteRegistry {
	return &MemorySiteRegistry{sites: make(map[string]struct{})}
}

func (r *MemorySiteRegistry) Add(ctx context.Context, siteID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sites[siteID]; ok {
		return false, nil
	}
	r.sites[siteID] = struct{}{}
	return true, nil
}

func (r *MemorySiteRegistry) Contains(ctx context.Context, siteID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sites[siteID]
	return ok, nil
}

func (r *MemorySiteRegistry) Remove(ctx context.Context, siteID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sites, siteID)
	return nil
}

const redisSetKey = "vulnticket:processed_sites"

// RedisSiteRegistry shares the processed-site set across replicas via a redis
// set; SADD gives the atomic check-and-insert.
type RedisSiteRegistry struct {
	client *redis.Client
}

// NewRedisSiteRegistry wraps an existing client.
func NewRedisSiteRegistry(client *redis.Client) *RedisSiteRegistry {
	return &RedisSiteRegistry{client: client}
}

func (r *RedisSiteRegistry) Add(ctx context.Context, siteID string) (bool, error) {
	added, err := r.client.SAdd(ctx, redisSetKey, siteID).Result()
	if err != nil {
		return false, err
	}
	return added == 1, nil
}

func (r *RedisSiteRegistry) Contains(ctx context.Context, siteID string) (bool, error) {
	return r.client.SIsMember(ctx, redisSetKey, siteID).Result()
}

func (r *RedisSiteRegistry) Remove(ctx context.Context, siteID string) error {
	return r.client.SRem(ctx, redisSetKey, siteID).Err()
}
