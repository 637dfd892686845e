package redisres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IvanBrykalov/asynccache/cache"
)

type user struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// fakeRedis serves canned replies keyed by the full Redis key.
type fakeRedis struct {
	mu    sync.Mutex
	data  map[string]string
	err   error
	gets  []string
	block chan struct{}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	f.gets = append(f.gets, key)
	block, err := f.block, f.err
	v, ok := f.data[key]
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return redis.NewStringResult("", ctx.Err())
		}
	}
	switch {
	case err != nil:
		return redis.NewStringResult("", err)
	case !ok:
		return redis.NewStringResult("", redis.Nil)
	default:
		return redis.NewStringResult(v, nil)
	}
}

func (f *fakeRedis) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.gets...)
}

func TestResolver_DecodesJSON(t *testing.T) {
	t.Parallel()

	f := &fakeRedis{data: map[string]string{"user:1": `{"id":"1","name":"Ada"}`}}
	resolve := New[user](f, "user:", zerolog.Nop())

	u, err := resolve(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, user{ID: "1", Name: "Ada"}, u)
	assert.Equal(t, []string{"user:1"}, f.calls())
}

func TestResolver_Miss(t *testing.T) {
	t.Parallel()

	resolve := New[user](&fakeRedis{}, "user:", zerolog.Nop())
	_, err := resolve(context.Background(), "404")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, err, redis.Nil)
}

func TestResolver_TransportAndDecodeErrors(t *testing.T) {
	t.Parallel()

	down := errors.New("connection refused")
	_, err := New[user](&fakeRedis{err: down}, "", zerolog.Nop())(context.Background(), "x")
	require.ErrorIs(t, err, down)
	require.NotErrorIs(t, err, ErrNotFound)

	bad := &fakeRedis{data: map[string]string{"x": "not json"}}
	_, err = New[user](bad, "", zerolog.Nop())(context.Background(), "x")
	require.Error(t, err)
	require.Contains(t, err.Error(), `decode "x"`)
}

// Through the cache: concurrent loads hit Redis once and a miss is kept as
// the entry's error state.
func TestResolver_InCache(t *testing.T) {
	t.Parallel()

	f := &fakeRedis{
		data:  map[string]string{"u:1": `{"id":"1","name":"Ada"}`},
		block: make(chan struct{}),
	}
	c, err := cache.New(New[user](f, "u:", zerolog.Nop()), cache.Options[string, user]{Capacity: 8})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	chans := make([]<-chan *cache.State[user], 5)
	for i := range chans {
		chans[i] = c.LoadAsync("1")
	}
	close(f.block)
	for _, ch := range chans {
		st := <-ch
		v, ok := st.Value()
		require.True(t, ok)
		require.Equal(t, "Ada", v.Name)
	}
	require.Equal(t, []string{"u:1"}, f.calls())

	st, err := c.Load(context.Background(), "2")
	require.NoError(t, err)
	require.Equal(t, cache.StatusError, st.Status())
	require.ErrorIs(t, st.Err(), ErrNotFound)
}

// Cancelling the load cancels the context of the in-flight GET.
func TestResolver_CancelStopsGet(t *testing.T) {
	t.Parallel()

	f := &fakeRedis{block: make(chan struct{})}
	c := cache.MustNew(New[user](f, "", zerolog.Nop()), cache.Options[string, user]{})
	t.Cleanup(func() { _ = c.Close() })

	ch := c.LoadAsync("slow")
	require.Eventually(t, func() bool { return len(f.calls()) == 1 }, time.Second, time.Millisecond)
	c.Cancel("slow")
	require.Equal(t, cache.StatusCancelled, (<-ch).Status())
}

func TestNewClient_Unreachable(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err := NewClient(ctx, Config{Addr: "127.0.0.1:1"}, zerolog.Nop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to connect to redis")
}
