package handler_test

import (
	"context"
	"errors"
	"sync"

	"github.com/jonesrussell/north-cloud/spectre/internal/domain"
)

const testSiteID = "TR-1234-A"

var errStorage = errors.New("storage unavailable")

type fakeSites struct {
	known map[string]bool
	goals []domain.GoalRule
	err   error
}

func newFakeSites() *fakeSites {
	return &fakeSites{known: map[string]bool{testSiteID: true}}
}

func (f *fakeSites) SiteExists(_ context.Context, siteID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.known[siteID], nil
}

func (f *fakeSites) ActiveGoals(_ context.Context, _ string) ([]domain.GoalRule, error) {
	return f.goals, nil
}

type fakeRecorder struct {
	mu        sync.Mutex
	pageViews []domain.PageView
	events    []domain.Event
	goals     []domain.GoalConversion
	err       error
}

func (f *fakeRecorder) RecordPageView(_ context.Context, pv *domain.PageView) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.pageViews = append(f.pageViews, *pv)
	return nil
}

func (f *fakeRecorder) InsertEvent(_ context.Context, ev *domain.Event) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.events = append(f.events, *ev)
	return int64(len(f.events)), nil
}

func (f *fakeRecorder) InsertGoal(_ context.Context, g *domain.GoalConversion) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.goals = append(f.goals, *g)
	return int64(len(f.goals)), nil
}

type fixedSalt string

func (s fixedSalt) Current() string { return string(s) }

type fakeSink struct {
	capacity int
	rows     []domain.HeatmapRow
}

func (f *fakeSink) SendAll(rows []domain.HeatmapRow) int {
	n := len(rows)
	if f.capacity >= 0 && n > f.capacity-len(f.rows) {
		n = f.capacity - len(f.rows)
	}
	f.rows = append(f.rows, rows[:n]...)
	return n
}

type fakeReader struct {
	stats     *domain.HeatmapStats
	urls      []domain.HeatmapURL
	lastType  string
	lastLimit int
}

func (f *fakeReader) HeatmapPoints(_ context.Context, _, _, typ string, limit int) (*domain.HeatmapStats, error) {
	f.lastType, f.lastLimit = typ, limit
	if f.stats == nil {
		return domain.NewHeatmapStats(), nil
	}
	return f.stats, nil
}

func (f *fakeReader) HeatmapURLs(_ context.Context, _ string, limit int) ([]domain.HeatmapURL, error) {
	f.lastLimit = limit
	return f.urls, nil
}
