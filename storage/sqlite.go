package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"we_listings/models"
)

// SQLiteStore is the operational store: cached snapshots, run history, the
// scrape log and the control command queue.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cache_entries (
		key TEXT PRIMARY KEY,
		value BLOB,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS scrape_runs (
		id TEXT PRIMARY KEY,
		handler TEXT,
		region TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		listings_found INTEGER DEFAULT 0,
		listings_kept INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0,
		error_message TEXT
	);

	CREATE TABLE IF NOT EXISTS scrape_logs (
		id INTEGER PRIMARY KEY,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		handler TEXT
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_runs_status ON scrape_runs(status, started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_handler ON scrape_runs(handler, started_at);
	CREATE INDEX IF NOT EXISTS idx_logs_time ON scrape_logs(timestamp);
	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get implements cache.Store.
func (s *SQLiteStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM cache_entries WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Set implements cache.Store.
func (s *SQLiteStore) Set(key string, value []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO cache_entries (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	return err
}

// Delete implements cache.Store.
func (s *SQLiteStore) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM cache_entries WHERE key = ?`, key)
	return err
}

func (s *SQLiteStore) CreateRun(run *models.ScrapeRun) error {
	_, err := s.db.Exec(`
		INSERT INTO scrape_runs (id, handler, region, started_at, status,
			listings_found, listings_kept, errors_count)
		VALUES (?, ?, ?, ?, ?, 0, 0, 0)`,
		run.ID, run.Handler, run.Region, run.StartedAt, run.Status)
	return err
}

func (s *SQLiteStore) UpdateRun(run *models.ScrapeRun) error {
	_, err := s.db.Exec(`
		UPDATE scrape_runs SET finished_at = ?, status = ?, listings_found = ?,
			listings_kept = ?, errors_count = ?, error_message = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.ListingsFound, run.ListingsKept,
		run.ErrorsCount, run.ErrorMessage, run.ID)
	return err
}

func (s *SQLiteStore) RecentRuns(limit int) ([]models.ScrapeRun, error) {
	rows, err := s.db.Query(`
		SELECT id, handler, region, started_at, finished_at, status,
			listings_found, listings_kept, errors_count, COALESCE(error_message, '')
		FROM scrape_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.ScrapeRun
	for rows.Next() {
		var run models.ScrapeRun
		if err := rows.Scan(&run.ID, &run.Handler, &run.Region, &run.StartedAt,
			&run.FinishedAt, &run.Status, &run.ListingsFound, &run.ListingsKept,
			&run.ErrorsCount, &run.ErrorMessage); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// HandlerStats aggregates run history per handler for the health endpoint.
func (s *SQLiteStore) HandlerStats() ([]models.HandlerStats, error) {
	rows, err := s.db.Query(`
		SELECT handler, COUNT(*),
			CAST(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) AS REAL) / COUNT(*)
		FROM scrape_runs GROUP BY handler`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.HandlerStats
	for rows.Next() {
		var st models.HandlerStats
		if err := rows.Scan(&st.Handler, &st.TotalRuns, &st.SuccessRate); err != nil {
			return nil, err
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range stats {
		row := s.db.QueryRow(`
			SELECT started_at, status FROM scrape_runs
			WHERE handler = ? ORDER BY started_at DESC LIMIT 1`, stats[i].Handler)
		if err := row.Scan(&stats[i].LastRunAt, &stats[i].LastRunStatus); err != nil && err != sql.ErrNoRows {
			return nil, err
		}
	}
	return stats, nil
}

func (s *SQLiteStore) Log(level models.LogLevel, handler, message string) error {
	_, err := s.db.Exec(`
		INSERT INTO scrape_logs (timestamp, level, message, handler)
		VALUES (?, ?, ?, ?)`,
		time.Now().UTC(), level, message, handler)
	return err
}

func (s *SQLiteStore) QueueCommand(command models.CommandType, params json.RawMessage) error {
	_, err := s.db.Exec(`INSERT INTO commands (command, params) VALUES (?, ?)`,
		command, params)
	return err
}

func (s *SQLiteStore) PendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt, &cmd.ProcessedAt); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = json.RawMessage(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now().UTC(), id)
	return err
}

func (s *SQLiteStore) ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	if cmd.Params == nil || string(cmd.Params) == "null" {
		return &models.CommandParams{}, nil
	}
	var params models.CommandParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

// ResetAllData clears every operational table.
func (s *SQLiteStore) ResetAllData() error {
	tables := []string{
		"scrape_logs",
		"scrape_runs",
		"commands",
		"cache_entries",
	}

	for _, table := range tables {
		if _, err := s.db.Exec(fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}
