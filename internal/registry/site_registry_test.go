package registry

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistries(t *testing.T) map[string]SiteRegistry {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]SiteRegistry{
		"memory": NewMemorySiteRegistry(),
		"redis":  NewRedisSiteRegistry(client),
	}
}

func TestSiteRegistryAddIsFirstWins(t *testing.T) {
	for name, reg := range testRegistries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			claimed, err := reg.Add(ctx, "42")
			require.NoError(t, err)
			assert.True(t, claimed)

			claimed, err = reg.Add(ctx, "42")
			require.NoError(t, err)
			assert.False(t, claimed)

			seen, err := reg.Contains(ctx, "42")
			require.NoError(t, err)
			assert.True(t, seen)

			seen, err = reg.Contains(ctx, "other")
			require.NoError(t, err)
			assert.False(t, seen)
		})
	}
}

func TestSiteRegistryRemoveReleasesClaim(t *testing.T) {
	for name, reg := range testRegistries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := reg.Add(ctx, "7")
			require.NoError(t, err)
			require.NoError(t, reg.Remove(ctx, "7"))

			claimed, err := reg.Add(ctx, "7")
			require.NoError(t, err)
			assert.True(t, claimed, "claim should be available again after Remove")
		})
	}
}

func TestMemorySiteRegistryConcurrentAdd(t *testing.T) {
	reg := NewMemorySiteRegistry()
	ctx := context.Background()

	const workers = 16
	var wg sync.WaitGroup
	wins := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := reg.Add(ctx, "contended")
			assert.NoError(t, err)
			if claimed {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	count := 0
	for range wins {
		count++
	}
	assert.Equal(t, 1, count, "exactly one goroutine should win the claim")
}
