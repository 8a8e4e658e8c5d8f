package profilecache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"jobboard-messaging/internal/domain"
)

type setCall struct {
	key   string
	value string
	ttl   time.Duration
}

// fakeRedis is an in-memory stand-in for the commands the cache issues.
type fakeRedis struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
	setErr error
	sets   []setCall
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets = append(f.sets, setCall{key: key, value: value.(string), ttl: ttl})
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.data[key] = value.(string)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

type countingSource struct {
	profiles map[string]domain.UserProfile
	err      error
	calls    int
}

func (s *countingSource) GetUserProfile(_ context.Context, userID string) (*domain.UserProfile, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func newTestCache(t *testing.T, src Source, rdb redisAPI) *Cache {
	t.Helper()
	c, err := New(src, rdb, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	return c
}

var ada = domain.UserProfile{ID: "U1", FullName: "Ada Lovelace", Avatar: "https://img/ada.png"}

func TestGetUserProfile_ReadThrough(t *testing.T) {
	src := &countingSource{profiles: map[string]domain.UserProfile{"U1": ada}}
	rdb := newFakeRedis()
	c := newTestCache(t, src, rdb)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p, err := c.GetUserProfile(ctx, "U1")
		require.NoError(t, err)
		require.Equal(t, &ada, p)
	}
	require.Equal(t, 1, src.calls)
	require.Len(t, rdb.sets, 1)
	require.Equal(t, "profile:U1", rdb.sets[0].key)
	require.Equal(t, DefaultTTL, rdb.sets[0].ttl)
}

func TestGetUserProfile_CachesMissingUsersBriefly(t *testing.T) {
	src := &countingSource{}
	rdb := newFakeRedis()
	c := newTestCache(t, src, rdb)

	p, err := c.GetUserProfile(context.Background(), "ghost")
	require.NoError(t, err)
	require.Nil(t, p)
	p, err = c.GetUserProfile(context.Background(), "ghost")
	require.NoError(t, err)
	require.Nil(t, p)

	require.Equal(t, 1, src.calls)
	require.Equal(t, setCall{key: "profile:ghost", value: missingMarker, ttl: DefaultMissingTTL}, rdb.sets[0])
}

func TestGetUserProfile_RedisDownFallsThrough(t *testing.T) {
	src := &countingSource{profiles: map[string]domain.UserProfile{"U1": ada}}
	rdb := newFakeRedis()
	rdb.getErr = errors.New("dial tcp: connection refused")
	rdb.setErr = errors.New("dial tcp: connection refused")
	c := newTestCache(t, src, rdb)

	p, err := c.GetUserProfile(context.Background(), "U1")
	require.NoError(t, err)
	require.Equal(t, "Ada Lovelace", p.FullName)
}

func TestGetUserProfile_SourceErrorNotCached(t *testing.T) {
	src := &countingSource{err: errors.New("db down")}
	rdb := newFakeRedis()
	c := newTestCache(t, src, rdb)

	_, err := c.GetUserProfile(context.Background(), "U1")
	require.ErrorContains(t, err, "db down")
	require.Empty(t, rdb.sets)
}

func TestGetUserProfile_CorruptEntryRefetched(t *testing.T) {
	src := &countingSource{profiles: map[string]domain.UserProfile{"U1": ada}}
	rdb := newFakeRedis()
	rdb.data["profile:U1"] = "{not json"
	c := newTestCache(t, src, rdb)

	p, err := c.GetUserProfile(context.Background(), "U1")
	require.NoError(t, err)
	require.Equal(t, &ada, p)
	require.Equal(t, 1, src.calls)
}

func TestInvalidate(t *testing.T) {
	src := &countingSource{profiles: map[string]domain.UserProfile{"U1": ada}}
	rdb := newFakeRedis()
	c := newTestCache(t, src, rdb)
	ctx := context.Background()

	_, err := c.GetUserProfile(ctx, "U1")
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, "U1"))
	_, err = c.GetUserProfile(ctx, "U1")
	require.NoError(t, err)
	require.Equal(t, 2, src.calls)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, newFakeRedis())
	require.Error(t, err)
	_, err = New(&countingSource{}, nil)
	require.Error(t, err)

	c, err := New(&countingSource{}, newFakeRedis(), WithTTL(time.Hour), WithMissingTTL(0))
	require.NoError(t, err)
	require.Equal(t, time.Hour, c.ttl)
	require.Equal(t, DefaultMissingTTL, c.missingTTL)
}
