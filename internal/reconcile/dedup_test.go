package reconcile_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/kindbridge/backend-giving/internal/reconcile"
)

func TestRedisGateClaimOnce(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	gate := reconcile.RedisGate{R: client, TTL: time.Hour}
	ctx := context.Background()

	ok, err := gate.Claim(ctx, reconcile.ProviderCard, "i9")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = gate.Claim(ctx, reconcile.ProviderCard, "i9")
	require.NoError(t, err)
	require.False(t, ok)

	// A different provider scope is an independent claim.
	ok, err = gate.Claim(ctx, reconcile.ProviderWallet, "i9")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisGateRelease(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	gate := reconcile.RedisGate{R: client, TTL: time.Hour}
	ctx := context.Background()

	ok, err := gate.Claim(ctx, reconcile.ProviderCard, "i9")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, gate.Release(ctx, reconcile.ProviderCard, "i9"))

	ok, err = gate.Claim(ctx, reconcile.ProviderCard, "i9")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRedisGateClaimExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	gate := reconcile.RedisGate{R: client, TTL: time.Minute}
	ctx := context.Background()

	ok, err := gate.Claim(ctx, reconcile.ProviderCard, "i9")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)

	ok, err = gate.Claim(ctx, reconcile.ProviderCard, "i9")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestMemoryGateZeroValue(t *testing.T) {
	var gate reconcile.MemoryGate
	ctx := context.Background()

	ok, err := gate.Claim(ctx, reconcile.ProviderCard, "i9")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = gate.Claim(ctx, reconcile.ProviderCard, "i9")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, gate.Release(ctx, reconcile.ProviderCard, "i9"))
}

func TestMemoryGateConcurrentClaims(t *testing.T) {
	gate := reconcile.NewMemoryGate()
	ctx := context.Background()

	const attempts = 32
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := gate.Claim(ctx, reconcile.ProviderCard, "i9")
			require.NoError(t, err)
			if ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, wins)
}
