package retention

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonesrussell/north-cloud/spectre/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	cutoff time.Time
	n      int64
	err    error
}

func (f *fakeStore) PruneHeatmap(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.n, f.err
}

type fakeObserver struct{ rows int64 }

func (f *fakeObserver) ObservePrune(rows int64) { f.rows += rows }

func TestPruner_RunOnceUsesRetentionWindow(t *testing.T) {
	store := &fakeStore{n: 12}
	obs := &fakeObserver{}
	p := NewPruner(store, obs, logger.NewNop(), 30, "0 3 * * *")
	p.now = func() time.Time { return time.Date(2025, 6, 30, 3, 0, 0, 0, time.UTC) }

	n, err := p.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	assert.Equal(t, time.Date(2025, 5, 31, 3, 0, 0, 0, time.UTC), store.cutoff)
	assert.Equal(t, int64(12), obs.rows)
}

func TestPruner_RunOnceError(t *testing.T) {
	store := &fakeStore{err: errors.New("db down")}
	obs := &fakeObserver{}
	p := NewPruner(store, obs, logger.NewNop(), 30, "0 3 * * *")

	_, err := p.RunOnce(context.Background())
	require.Error(t, err)
	assert.Zero(t, obs.rows)
}

func TestPruner_StartRejectsBadSchedule(t *testing.T) {
	p := NewPruner(&fakeStore{}, nil, logger.NewNop(), 30, "not a schedule")
	require.Error(t, p.Start())
}

func TestPruner_StartStop(t *testing.T) {
	p := NewPruner(&fakeStore{}, nil, logger.NewNop(), 30, "@daily")
	require.NoError(t, p.Start())
	p.Stop()
}
