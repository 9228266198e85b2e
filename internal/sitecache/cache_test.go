package sitecache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonesrussell/north-cloud/spectre/internal/domain"
	"github.com/jonesrussell/north-cloud/spectre/internal/platform/logger"
	"github.com/jonesrussell/north-cloud/spectre/internal/sitecache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	sites      map[string]bool
	goals      map[string][]domain.GoalRule
	siteCalls  int
	goalCalls  int
	failLookup bool
}

func (f *fakeSource) SiteExists(_ context.Context, siteID string) (bool, error) {
	f.siteCalls++
	if f.failLookup {
		return false, errors.New("db down")
	}
	return f.sites[siteID], nil
}

func (f *fakeSource) ActiveGoals(_ context.Context, siteID string) ([]domain.GoalRule, error) {
	f.goalCalls++
	return f.goals[siteID], nil
}

func setup(t *testing.T) (*sitecache.Cache, *fakeSource, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	src := &fakeSource{
		sites: map[string]bool{"TR-1234-A": true},
		goals: map[string][]domain.GoalRule{
			"TR-1234-A": {{ID: 1, Name: "Signup", MatchType: domain.MatchCSSClass, MatchValue: "btn-success"}},
		},
	}
	return sitecache.New(client, src, time.Minute, logger.NewNop()), src, mr
}

func TestCache_SiteExists_ReadThrough(t *testing.T) {
	cache, src, mr := setup(t)
	ctx := context.Background()

	ok, err := cache.SiteExists(ctx, "TR-1234-A")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cache.SiteExists(ctx, "TR-1234-A")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, src.siteCalls)

	assert.Equal(t, time.Minute, mr.TTL("spectre:site:TR-1234-A"))
}

func TestCache_SiteExists_NegativeEntryHasShortTTL(t *testing.T) {
	cache, _, mr := setup(t)

	ok, err := cache.SiteExists(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 6*time.Second, mr.TTL("spectre:site:NOPE"))
}

func TestCache_SiteExists_RedisDownFallsThrough(t *testing.T) {
	cache, src, mr := setup(t)
	mr.Close()

	ok, err := cache.SiteExists(context.Background(), "TR-1234-A")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, src.siteCalls)
}

func TestCache_SiteExists_SourceError(t *testing.T) {
	cache, src, _ := setup(t)
	src.failLookup = true

	_, err := cache.SiteExists(context.Background(), "TR-1234-A")
	require.Error(t, err)
}

func TestCache_ActiveGoals_CachedAndInvalidated(t *testing.T) {
	cache, src, _ := setup(t)
	ctx := context.Background()

	goals, err := cache.ActiveGoals(ctx, "TR-1234-A")
	require.NoError(t, err)
	require.Len(t, goals, 1)

	goals, err = cache.ActiveGoals(ctx, "TR-1234-A")
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, "btn-success", goals[0].MatchValue)
	assert.Equal(t, 1, src.goalCalls)

	require.NoError(t, cache.Invalidate(ctx, "TR-1234-A"))
	_, err = cache.ActiveGoals(ctx, "TR-1234-A")
	require.NoError(t, err)
	assert.Equal(t, 2, src.goalCalls)
}
