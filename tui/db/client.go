package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"
)

// Client reads the daemon's two stores side by side: SQLite for runs, logs
// and the command queue, Postgres for the listing archive. The Postgres side
// is optional, matching the daemon; without it the archive queries return
// empty results.
type Client struct {
	pg     *pgxpool.Pool
	sqlite *sql.DB
	ctx    context.Context
}

type HandlerStats struct {
	Handler       string
	LastRunAt     *time.Time
	LastRunStatus *string
	TotalRuns     int
	SuccessRate   float64
}

type ScrapeRun struct {
	ID            string
	Handler       string
	Region        string
	StartedAt     time.Time
	FinishedAt    *time.Time
	Status        string
	ListingsFound int
	ListingsKept  int
	ErrorsCount   int
	ErrorMessage  string
}

type ScrapeLog struct {
	ID        int64
	Timestamp time.Time
	Level     string
	Message   string
	Handler   string
}

type ArchivedListing struct {
	ID                 string
	Fingerprint        string
	MLSNumber          string
	Address            string
	City               string
	PropertyType       string
	Price              int64
	Bedrooms           float64
	Bathrooms          float64
	SquareFeet         float64
	ListingURL         string
	Description        string
	AgentName          string
	Brokerage          string
	FirstSeenAt        time.Time
	LastSeenAt         time.Time
	TimesSeen          int
	IsActive           bool
	DelistedAt         *time.Time
	EnrichmentAttempts int
}

type CityStats struct {
	City     string
	Province string
	Total    int
	Active   int
	AvgPrice int64
}

type Match struct {
	MatchedFingerprint  string
	IncomingFingerprint string
	Confidence          float64
	Status              string
	CreatedAt           time.Time
}

func New(postgresURL, sqlitePath string) (*Client, error) {
	ctx := context.Background()

	var pgPool *pgxpool.Pool
	if postgresURL != "" {
		pool, err := pgxpool.New(ctx, postgresURL)
		if err != nil {
			return nil, err
		}
		pgPool = pool
	}

	sqliteDB, err := sql.Open("sqlite", sqlitePath)
	if err != nil {
		if pgPool != nil {
			pgPool.Close()
		}
		return nil, err
	}

	return &Client{
		pg:     pgPool,
		sqlite: sqliteDB,
		ctx:    ctx,
	}, nil
}

func (c *Client) Close() error {
	if c.pg != nil {
		c.pg.Close()
	}
	return c.sqlite.Close()
}

// HasArchive reports whether a Postgres archive is connected.
func (c *Client) HasArchive() bool {
	return c.pg != nil
}

// The daemon writes SQLite timestamps through its own driver, so several
// text layouts show up in the same column.
var sqliteTimeFormats = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
}

func parseSQLiteTime(s string) time.Time {
	for _, layout := range sqliteTimeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (c *Client) HandlerStats() ([]HandlerStats, error) {
	rows, err := c.sqlite.Query(`
		SELECT handler, COUNT(*),
			CAST(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) AS REAL) / COUNT(*)
		FROM scrape_runs GROUP BY handler ORDER BY handler
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []HandlerStats
	for rows.Next() {
		var s HandlerStats
		if err := rows.Scan(&s.Handler, &s.TotalRuns, &s.SuccessRate); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range stats {
		var startedAt sql.NullString
		var status sql.NullString
		err := c.sqlite.QueryRow(`
			SELECT started_at, status FROM scrape_runs
			WHERE handler = ? ORDER BY started_at DESC LIMIT 1
		`, stats[i].Handler).Scan(&startedAt, &status)
		if err != nil && err != sql.ErrNoRows {
			return nil, err
		}
		if startedAt.Valid {
			t := parseSQLiteTime(startedAt.String)
			stats[i].LastRunAt = &t
		}
		if status.Valid {
			stats[i].LastRunStatus = &status.String
		}
	}
	return stats, nil
}

func (c *Client) RecentRuns(limit int) ([]ScrapeRun, error) {
	rows, err := c.sqlite.Query(`
		SELECT id, handler, COALESCE(region, ''), started_at, finished_at, status,
			listings_found, listings_kept, errors_count, COALESCE(error_message, '')
		FROM scrape_runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ScrapeRun
	for rows.Next() {
		var r ScrapeRun
		var startedAt, finishedAt sql.NullString
		err := rows.Scan(&r.ID, &r.Handler, &r.Region, &startedAt, &finishedAt, &r.Status,
			&r.ListingsFound, &r.ListingsKept, &r.ErrorsCount, &r.ErrorMessage)
		if err != nil {
			return nil, err
		}
		if startedAt.Valid {
			r.StartedAt = parseSQLiteTime(startedAt.String)
		}
		if finishedAt.Valid {
			t := parseSQLiteTime(finishedAt.String)
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, nil
}

func (c *Client) RecentLogs(limit int, level *string) ([]ScrapeLog, error) {
	var rows *sql.Rows
	var err error

	if level != nil && *level != "ALL" {
		rows, err = c.sqlite.Query(`
			SELECT id, timestamp, level, message, COALESCE(handler, '')
			FROM scrape_logs
			WHERE UPPER(level) = UPPER(?)
			ORDER BY timestamp DESC
			LIMIT ?
		`, *level, limit)
	} else {
		rows, err = c.sqlite.Query(`
			SELECT id, timestamp, level, message, COALESCE(handler, '')
			FROM scrape_logs
			ORDER BY timestamp DESC
			LIMIT ?
		`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []ScrapeLog
	for rows.Next() {
		var l ScrapeLog
		var ts string
		if err := rows.Scan(&l.ID, &ts, &l.Level, &l.Message, &l.Handler); err != nil {
			return nil, err
		}
		l.Timestamp = parseSQLiteTime(ts)
		logs = append(logs, l)
	}
	return logs, nil
}

// ScrapingPaused reports whether the most recently processed pause/resume
// command left the daemon paused.
func (c *Client) ScrapingPaused() (bool, error) {
	var command string
	err := c.sqlite.QueryRow(`
		SELECT command FROM commands
		WHERE command IN ('pause', 'resume') AND processed_at IS NOT NULL
		ORDER BY processed_at DESC, id DESC LIMIT 1
	`).Scan(&command)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return command == "pause", nil
}

// Commands go through SQLite; the daemon polls the queue from there.
func (c *Client) SendCommand(command string, params map[string]interface{}) error {
	paramsJSON, _ := json.Marshal(params)
	_, err := c.sqlite.Exec(`
		INSERT INTO commands (command, params, created_at)
		VALUES (?, ?, datetime('now'))
	`, command, string(paramsJSON))
	return err
}

func (c *Client) ScrapeNow() error {
	return c.SendCommand("scrape_now", nil)
}

func (c *Client) Pause() error {
	return c.SendCommand("pause", nil)
}

func (c *Client) Resume() error {
	return c.SendCommand("resume", nil)
}

func (c *Client) ArchivedCount(activeOnly bool) (int, error) {
	if c.pg == nil {
		return 0, nil
	}
	query := "SELECT COUNT(*) FROM archived_listings"
	if activeOnly {
		query += " WHERE is_active"
	}
	var count int
	err := c.pg.QueryRow(c.ctx, query).Scan(&count)
	return count, err
}

func (c *Client) PendingMediaCount() (int, error) {
	if c.pg == nil {
		return 0, nil
	}
	var count int
	err := c.pg.QueryRow(c.ctx, "SELECT COUNT(*) FROM media WHERE status = 'pending'").Scan(&count)
	return count, err
}

func (c *Client) PendingEnrichmentCount() (int, error) {
	if c.pg == nil {
		return 0, nil
	}
	var count int
	err := c.pg.QueryRow(c.ctx, `
		SELECT COUNT(*) FROM archived_listings
		WHERE is_active AND description = '' AND listing_url <> '' AND enrichment_attempts < 3
	`).Scan(&count)
	return count, err
}

func (c *Client) CityStats() ([]CityStats, error) {
	if c.pg == nil {
		return nil, nil
	}
	rows, err := c.pg.Query(c.ctx, `
		SELECT
			COALESCE(NULLIF(city, ''), 'Unknown') as city,
			COALESCE(province, '') as province,
			COUNT(*)::int as total,
			COUNT(*) FILTER (WHERE is_active)::int as active,
			COALESCE(AVG(price) FILTER (WHERE is_active), 0)::bigint as avg_price
		FROM archived_listings
		GROUP BY city, province
		ORDER BY COUNT(*) DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []CityStats
	for rows.Next() {
		var s CityStats
		if err := rows.Scan(&s.City, &s.Province, &s.Total, &s.Active, &s.AvgPrice); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, nil
}

func (c *Client) ArchivedListings(limit, offset int, activeOnly bool) ([]ArchivedListing, error) {
	if c.pg == nil {
		return nil, nil
	}
	query := `
		SELECT
			id,
			fingerprint,
			mls_number,
			address,
			city,
			property_type,
			COALESCE(price, 0)::bigint,
			COALESCE(bedrooms, 0)::float8,
			COALESCE(bathrooms, 0)::float8,
			COALESCE(sqft, 0)::float8,
			listing_url,
			description,
			agent_name,
			brokerage,
			first_seen_at,
			last_seen_at,
			times_seen,
			is_active,
			delisted_at,
			enrichment_attempts
		FROM archived_listings
	`
	if activeOnly {
		query += " WHERE is_active"
	}
	query += " ORDER BY last_seen_at DESC LIMIT $1 OFFSET $2"

	rows, err := c.pg.Query(c.ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var listings []ArchivedListing
	for rows.Next() {
		var l ArchivedListing
		err := rows.Scan(&l.ID, &l.Fingerprint, &l.MLSNumber, &l.Address, &l.City,
			&l.PropertyType, &l.Price, &l.Bedrooms, &l.Bathrooms, &l.SquareFeet,
			&l.ListingURL, &l.Description, &l.AgentName, &l.Brokerage,
			&l.FirstSeenAt, &l.LastSeenAt, &l.TimesSeen, &l.IsActive,
			&l.DelistedAt, &l.EnrichmentAttempts)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, nil
}

// MatchesFor returns the recorded relist matches touching one fingerprint.
func (c *Client) MatchesFor(fingerprint string) ([]Match, error) {
	if c.pg == nil {
		return nil, nil
	}
	rows, err := c.pg.Query(c.ctx, `
		SELECT matched_fingerprint, incoming_fingerprint, confidence, status, created_at
		FROM listing_matches
		WHERE matched_fingerprint = $1 OR incoming_fingerprint = $1
		ORDER BY created_at DESC
		LIMIT 10
	`, fingerprint)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.MatchedFingerprint, &m.IncomingFingerprint,
			&m.Confidence, &m.Status, &m.CreatedAt); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, nil
}
