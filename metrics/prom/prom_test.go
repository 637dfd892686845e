package prom

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/asynccache/cache"
)

func TestAdapter_DirectHooks(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	a := New(reg, "test", "cache", prometheus.Labels{"instance": "t"})

	a.Hit()
	a.Hit()
	a.Miss()
	a.Evict(cache.EvictCapacity)
	a.Evict(cache.EvictRemoved)
	a.Evict(cache.EvictRemoved)
	a.Size(7)
	a.LoadStarted()
	a.LoadJoined()
	a.LoadSettled(cache.StatusSuccess, 3*time.Millisecond)
	a.LoadSettled(cache.StatusError, time.Millisecond)
	a.ListenerPanic()

	require.Equal(t, 2.0, testutil.ToFloat64(a.hits))
	require.Equal(t, 1.0, testutil.ToFloat64(a.misses))
	require.Equal(t, 1.0, testutil.ToFloat64(a.evicts.WithLabelValues("capacity")))
	require.Equal(t, 2.0, testutil.ToFloat64(a.evicts.WithLabelValues("removed")))
	require.Equal(t, 7.0, testutil.ToFloat64(a.sizeEnt))
	require.Equal(t, 1.0, testutil.ToFloat64(a.started))
	require.Equal(t, 1.0, testutil.ToFloat64(a.joined))
	require.Equal(t, 1.0, testutil.ToFloat64(a.lisPanics))
	require.Equal(t, 2, testutil.CollectAndCount(a.settled))

	expected := `
# HELP test_cache_hits_total Read lookups that found an entry
# TYPE test_cache_hits_total counter
test_cache_hits_total{instance="t"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "test_cache_hits_total"))
}

// The adapter wired into a cache reflects what the cache does.
func TestAdapter_WiredIntoCache(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	a := New(reg, "", "asynccache", nil)

	c, err := cache.New(func(_ context.Context, k string, _ ...any) (int, error) {
		if k == "bad" {
			return 0, errors.New("bad key")
		}
		return len(k), nil
	}, cache.Options[string, int]{Capacity: 1, Metrics: a})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	_, err = c.Load(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, c.Read("a"))
	require.Nil(t, c.Read("zz"))

	_, err = c.Load(ctx, "bad") // evicts "a"
	require.NoError(t, err)
	require.True(t, c.Remove("bad"))

	require.Equal(t, 1.0, testutil.ToFloat64(a.hits))
	require.Equal(t, 1.0, testutil.ToFloat64(a.misses))
	require.Equal(t, 2.0, testutil.ToFloat64(a.started))
	require.Equal(t, 1.0, testutil.ToFloat64(a.evicts.WithLabelValues("capacity")))
	require.Equal(t, 1.0, testutil.ToFloat64(a.evicts.WithLabelValues("removed")))
	require.Equal(t, 0.0, testutil.ToFloat64(a.sizeEnt))
	require.Equal(t, 2, testutil.CollectAndCount(a.settled), "one series per status")
}

func TestAdapter_DuplicateRegistrationPanics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	New(reg, "dup", "cache", nil)
	require.Panics(t, func() { New(reg, "dup", "cache", nil) })
}
