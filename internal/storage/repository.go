package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonesrussell/north-cloud/spectre/internal/domain"
)

// ErrSiteNotFound is returned when a site_id is not registered.
var ErrSiteNotFound = errors.New("site not found")

// Repository handles PostgreSQL access for the collector.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates a new repository.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// Ping verifies the database connection.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// SiteExists reports whether siteID is registered.
func (r *Repository) SiteExists(ctx context.Context, siteID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM sites WHERE site_id = $1)`, siteID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check site: %w", err)
	}
	return exists, nil
}

// ActiveGoals returns the active goal rules for a site, oldest first.
func (r *Repository) ActiveGoals(ctx context.Context, siteID string) ([]domain.GoalRule, error) {
	goals := []domain.GoalRule{}
	query := `
		SELECT id, site_id, name, match_type, match_value, event_type, default_value, active
		FROM goal_rules
		WHERE site_id = $1 AND active = true
		ORDER BY id
	`
	if err := r.db.SelectContext(ctx, &goals, query, siteID); err != nil {
		return nil, fmt.Errorf("list active goals: %w", err)
	}
	return goals, nil
}

// RecordPageView stores a page view, marks the site active and upserts the
// session (page_views+1, last_activity) in one transaction.
func (r *Repository) RecordPageView(ctx context.Context, pv *domain.PageView) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin page view tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO page_views (site_id, session_id, url, page_title, referrer, device, is_bot,
			page_load_time, viewport_width, viewport_height,
			utm_source, utm_medium, utm_campaign, utm_term, utm_content)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		pv.SiteID, pv.SessionID, pv.URL, nullable(pv.PageTitle), pv.Referrer, pv.Device, pv.IsBot,
		pv.PageLoadTime, pv.ViewportWidth, pv.ViewportHeight,
		nullable(pv.UTMSource), nullable(pv.UTMMedium), nullable(pv.UTMCampaign),
		nullable(pv.UTMTerm), nullable(pv.UTMContent),
	)
	if err != nil {
		return fmt.Errorf("insert page view: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE sites SET last_active_at = NOW() WHERE site_id = $1`, pv.SiteID,
	); err != nil {
		return fmt.Errorf("touch site: %w", err)
	}

	if pv.SessionID != "" {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sessions (site_id, session_id, page_views, is_bot, device)
			VALUES ($1, $2, 1, $3, $4)
			ON CONFLICT (site_id, session_id)
			DO UPDATE SET last_activity = NOW(), page_views = sessions.page_views + 1
		`, pv.SiteID, pv.SessionID, pv.IsBot, pv.Device)
		if err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit page view: %w", err)
	}
	return nil
}

// InsertEvent stores an event and refreshes the session's last_activity.
func (r *Repository) InsertEvent(ctx context.Context, ev *domain.Event) (int64, error) {
	metadata, err := marshalMetadata(ev.Metadata)
	if err != nil {
		return 0, err
	}

	var id int64
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO events (site_id, session_id, event_name, event_category, event_label,
			event_value, metadata, url, page_title)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`,
		ev.SiteID, ev.SessionID, ev.Name, ev.Category, nullable(ev.Label),
		ev.Value, metadata, ev.URL, nullable(ev.PageTitle),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}

	if ev.SessionID != "" {
		if _, err = r.db.ExecContext(ctx,
			`UPDATE sessions SET last_activity = NOW() WHERE session_id = $1 AND site_id = $2`,
			ev.SessionID, ev.SiteID,
		); err != nil {
			return id, fmt.Errorf("touch session: %w", err)
		}
	}

	return id, nil
}

// InsertGoal stores a goal conversion.
func (r *Repository) InsertGoal(ctx context.Context, g *domain.GoalConversion) (int64, error) {
	metadata, err := marshalMetadata(g.Metadata)
	if err != nil {
		return 0, err
	}

	var id int64
	err = r.db.QueryRowContext(ctx, `
		INSERT INTO goals (site_id, session_id, goal_name, goal_value, metadata, url, page_title)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`,
		g.SiteID, g.SessionID, g.Name, g.Value, metadata, g.URL, nullable(g.PageTitle),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert goal: %w", err)
	}
	return id, nil
}

type heatmapPointRow struct {
	InteractionType string    `db:"interaction_type"`
	X               *int      `db:"x_position"`
	Y               *int      `db:"y_position"`
	ScrollDepth     *int      `db:"scroll_depth"`
	ViewportWidth   int       `db:"viewport_width"`
	ViewportHeight  int       `db:"viewport_height"`
	ElementTag      *string   `db:"element_tag"`
	ElementID       *string   `db:"element_id"`
	ElementClass    *string   `db:"element_class"`
	CreatedAt       time.Time `db:"created_at"`
}

// HeatmapPoints returns the newest limit points whose URL starts with
// urlPrefix, grouped by interaction type. interactionType "all" disables
// the type filter.
func (r *Repository) HeatmapPoints(
	ctx context.Context,
	siteID, urlPrefix, interactionType string,
	limit int,
) (*domain.HeatmapStats, error) {
	query := `
		SELECT interaction_type, x_position, y_position, scroll_depth,
		       viewport_width, viewport_height, element_tag, element_id, element_class, created_at
		FROM heatmap_data
		WHERE site_id = $1 AND url LIKE $2
	`
	args := []any{siteID, escapeLike(urlPrefix) + "%"}

	if interactionType != domain.InteractionAll {
		query += " AND interaction_type = $3"
		args = append(args, interactionType)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	var rows []heatmapPointRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("query heatmap points: %w", err)
	}

	stats := domain.NewHeatmapStats()
	for i := range rows {
		row := &rows[i]
		stats.Add(row.InteractionType, domain.HeatmapPoint{
			X:              deref(row.X),
			Y:              deref(row.Y),
			ScrollDepth:    deref(row.ScrollDepth),
			ViewportWidth:  row.ViewportWidth,
			ViewportHeight: row.ViewportHeight,
			ElementTag:     row.ElementTag,
			ElementID:      row.ElementID,
			ElementClass:   row.ElementClass,
			Timestamp:      row.CreatedAt,
		})
	}
	return stats, nil
}

// HeatmapURLs returns the URLs with the most recorded interactions.
// Title falls back to the URL when no page title was recorded.
func (r *Repository) HeatmapURLs(ctx context.Context, siteID string, limit int) ([]domain.HeatmapURL, error) {
	urls := []domain.HeatmapURL{}
	query := `
		SELECT url, COALESCE(MAX(page_title), url) AS title, COUNT(*) AS interaction_count
		FROM heatmap_data
		WHERE site_id = $1
		GROUP BY url
		ORDER BY interaction_count DESC
		LIMIT $2
	`
	if err := r.db.SelectContext(ctx, &urls, query, siteID, limit); err != nil {
		return nil, fmt.Errorf("list heatmap urls: %w", err)
	}
	return urls, nil
}

// PruneHeatmap deletes heatmap rows created before cutoff.
func (r *Repository) PruneHeatmap(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM heatmap_data WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune heatmap data: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune heatmap rows affected: %w", err)
	}
	return n, nil
}

func marshalMetadata(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return b, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
