package storage_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/jonesrussell/north-cloud/spectre/internal/domain"
	"github.com/jonesrussell/north-cloud/spectre/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) (*storage.Repository, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	return storage.NewRepository(sqlx.NewDb(mockDB, "postgres")), mock
}

func expectationsMet(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet sqlmock expectations: %v", err)
	}
}

func TestRepository_SiteExists(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("TR-1234-A").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.SiteExists(context.Background(), "TR-1234-A")
	require.NoError(t, err)
	assert.True(t, ok)
	expectationsMet(t, mock)
}

func TestRepository_SiteExists_Error(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("TR-1234-A").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.SiteExists(context.Background(), "TR-1234-A")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "check site")
	expectationsMet(t, mock)
}

func TestRepository_ActiveGoals(t *testing.T) {
	repo, mock := newRepo(t)

	cols := []string{"id", "site_id", "name", "match_type", "match_value", "event_type", "default_value", "active"}
	mock.ExpectQuery("FROM goal_rules").
		WithArgs("TR-1234-A").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, "TR-1234-A", "Signup", "css_class", "btn-success", "click", 10.0, true).
			AddRow(2, "TR-1234-A", "Hero CTA", "css_id", "cta-1", "click", 0.0, true))

	goals, err := repo.ActiveGoals(context.Background(), "TR-1234-A")
	require.NoError(t, err)
	require.Len(t, goals, 2)
	assert.Equal(t, domain.MatchCSSClass, goals[0].MatchType)
	assert.InDelta(t, 10.0, goals[0].DefaultValue, 0.001)
	assert.Equal(t, "cta-1", goals[1].MatchValue)
	expectationsMet(t, mock)
}

func TestRepository_RecordPageView(t *testing.T) {
	repo, mock := newRepo(t)
	loadTime := 850

	pv := &domain.PageView{
		SiteID:        "TR-1234-A",
		SessionID:     "sess_0123456789abcdef",
		URL:           "https://shop.example/",
		Referrer:      "https://www.bing.com/search?q=shoes",
		Device:        domain.DeviceDesktop,
		PageLoadTime:  &loadTime,
		ViewportWidth: 1280,
		UTMSource:     "bing",
		UTMMedium:     "organic",
		UTMTerm:       "shoes",
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO page_views").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE sites SET last_active_at").
		WithArgs("TR-1234-A").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO sessions").
		WithArgs("TR-1234-A", "sess_0123456789abcdef", false, domain.DeviceDesktop).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.RecordPageView(context.Background(), pv))
	expectationsMet(t, mock)
}

func TestRepository_RecordPageView_NoSessionSkipsUpsert(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO page_views").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE sites").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.RecordPageView(context.Background(), &domain.PageView{SiteID: "TR-1234-A"}))
	expectationsMet(t, mock)
}

func TestRepository_RecordPageView_RollsBackOnError(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO page_views").WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := repo.RecordPageView(context.Background(), &domain.PageView{SiteID: "TR-1234-A"})
	require.Error(t, err)
	expectationsMet(t, mock)
}

func TestRepository_InsertEvent_TouchesSession(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("INSERT INTO events").
		WithArgs("TR-1234-A", "sess_1", "heartbeat", "system", nil, 0.0,
			[]byte(`{"type":"ping"}`), "https://shop.example/", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))
	mock.ExpectExec("UPDATE sessions SET last_activity").
		WithArgs("sess_1", "TR-1234-A").
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := repo.InsertEvent(context.Background(), &domain.Event{
		SiteID:    "TR-1234-A",
		SessionID: "sess_1",
		Name:      "heartbeat",
		Category:  "system",
		Metadata:  map[string]any{"type": "ping"},
		URL:       "https://shop.example/",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	expectationsMet(t, mock)
}

func TestRepository_InsertGoal(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("INSERT INTO goals").
		WithArgs("TR-1234-A", "sess_1", "Signup", 10.0, []byte("{}"), "https://shop.example/", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	id, err := repo.InsertGoal(context.Background(), &domain.GoalConversion{
		SiteID: "TR-1234-A", SessionID: "sess_1", Name: "Signup", Value: 10, URL: "https://shop.example/",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	expectationsMet(t, mock)
}

var pointColumns = []string{
	"interaction_type", "x_position", "y_position", "scroll_depth",
	"viewport_width", "viewport_height", "element_tag", "element_id", "element_class", "created_at",
}

func TestRepository_HeatmapPoints_All(t *testing.T) {
	repo, mock := newRepo(t)
	now := time.Now()

	mock.ExpectQuery("FROM heatmap_data").
		WithArgs("TR-1234-A", "https://shop.example/%").
		WillReturnRows(sqlmock.NewRows(pointColumns).
			AddRow("click", 100, 200, nil, 1280, 800, "BUTTON", "buy", nil, now).
			AddRow("scroll", nil, nil, 640, 1280, 800, nil, nil, nil, now).
			AddRow("movement", 5, 6, nil, 1280, 800, nil, nil, nil, now))

	stats, err := repo.HeatmapPoints(context.Background(), "TR-1234-A", "https://shop.example/", "all", 5000)
	require.NoError(t, err)

	require.Len(t, stats.Clicks, 1)
	assert.Equal(t, 100, stats.Clicks[0].X)
	require.NotNil(t, stats.Clicks[0].ElementTag)
	assert.Equal(t, "BUTTON", *stats.Clicks[0].ElementTag)
	assert.Nil(t, stats.Clicks[0].ElementClass)

	require.Len(t, stats.Scrolls, 1)
	assert.Equal(t, 640, stats.Scrolls[0].ScrollDepth)
	assert.Equal(t, 0, stats.Scrolls[0].X)

	require.Len(t, stats.Movements, 1)
	expectationsMet(t, mock)
}

func TestRepository_HeatmapPoints_FiltersTypeAndEscapesPrefix(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("AND interaction_type = .+ ORDER BY created_at DESC LIMIT 10").
		WithArgs("TR-1234-A", `https://shop.example/100\%\_off%`, "click").
		WillReturnRows(sqlmock.NewRows(pointColumns))

	stats, err := repo.HeatmapPoints(context.Background(), "TR-1234-A", "https://shop.example/100%_off", "click", 10)
	require.NoError(t, err)
	assert.Empty(t, stats.Clicks)
	assert.NotNil(t, stats.Clicks)
	expectationsMet(t, mock)
}

func TestRepository_HeatmapURLs(t *testing.T) {
	repo, mock := newRepo(t)

	mock.ExpectQuery("GROUP BY url").
		WithArgs("TR-1234-A", 50).
		WillReturnRows(sqlmock.NewRows([]string{"url", "title", "interaction_count"}).
			AddRow("https://shop.example/", "Home", 120).
			AddRow("https://shop.example/cart", "https://shop.example/cart", 12))

	urls, err := repo.HeatmapURLs(context.Background(), "TR-1234-A", 50)
	require.NoError(t, err)
	require.Len(t, urls, 2)
	assert.Equal(t, "Home", urls[0].Title)
	assert.Equal(t, 12, urls[1].Count)
	expectationsMet(t, mock)
}

func TestRepository_PruneHeatmap(t *testing.T) {
	repo, mock := newRepo(t)
	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec("DELETE FROM heatmap_data WHERE created_at").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 321))

	n, err := repo.PruneHeatmap(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(321), n)
	expectationsMet(t, mock)
}

func TestRepository_InsertHeatmapRows_Chunks(t *testing.T) {
	repo, mock := newRepo(t)

	rows := make([]domain.HeatmapRow, 120)
	for i := range rows {
		rows[i] = domain.HeatmapRow{SiteID: "TR-1234-A", InteractionType: domain.InteractionMovement}
	}

	mock.ExpectExec("INSERT INTO heatmap_data").WillReturnResult(sqlmock.NewResult(0, 50))
	mock.ExpectExec("INSERT INTO heatmap_data").WillReturnResult(sqlmock.NewResult(0, 50))
	mock.ExpectExec("INSERT INTO heatmap_data").WillReturnResult(sqlmock.NewResult(0, 20))

	require.NoError(t, repo.InsertHeatmapRows(context.Background(), rows))
	expectationsMet(t, mock)
}
