package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"we_listings/models"
)

const (
	maxMediaAttempts      = 3
	maxEnrichmentAttempts = 3
)

// PostgresStore is the long-term listing archive. Rows are keyed by the
// identity fingerprint, so a property that cycles through MLS numbers keeps
// one history row. The store is optional; the daemon runs without it when
// DATABASE_URL is unset.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

var archiveSchema = []string{
	`CREATE TABLE IF NOT EXISTS archived_listings (
		id TEXT PRIMARY KEY,
		fingerprint TEXT NOT NULL UNIQUE,
		mls_number TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		province TEXT NOT NULL DEFAULT '',
		postal_code TEXT NOT NULL DEFAULT '',
		property_type TEXT NOT NULL DEFAULT '',
		price DOUBLE PRECISION,
		bedrooms DOUBLE PRECISION,
		bathrooms DOUBLE PRECISION,
		sqft DOUBLE PRECISION,
		listing_url TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		agent_name TEXT NOT NULL DEFAULT '',
		brokerage TEXT NOT NULL DEFAULT '',
		first_seen_at TIMESTAMPTZ NOT NULL,
		last_seen_at TIMESTAMPTZ NOT NULL,
		times_seen INTEGER NOT NULL DEFAULT 1,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		delisted_at TIMESTAMPTZ,
		enrichment_attempts INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_archived_mls ON archived_listings (mls_number)`,
	`CREATE INDEX IF NOT EXISTS idx_archived_active_city ON archived_listings (city) WHERE is_active`,
	`CREATE INDEX IF NOT EXISTS idx_archived_active_seen ON archived_listings (last_seen_at) WHERE is_active`,
	`CREATE TABLE IF NOT EXISTS media (
		id BIGSERIAL PRIMARY KEY,
		listing_id TEXT NOT NULL,
		original_url TEXT NOT NULL UNIQUE,
		s3_key TEXT,
		content_hash TEXT NOT NULL DEFAULT '',
		mime_type TEXT NOT NULL DEFAULT '',
		file_size_bytes BIGINT,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_media_pending ON media (created_at) WHERE status = 'pending'`,
	`CREATE TABLE IF NOT EXISTS listing_matches (
		id BIGSERIAL PRIMARY KEY,
		matched_fingerprint TEXT NOT NULL,
		incoming_fingerprint TEXT NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		reasons JSONB,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (matched_fingerprint, incoming_fingerprint)
	)`,
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	for _, stmt := range archiveSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// UpsertArchivedListing inserts the listing or folds it into the existing row
// with the same fingerprint. Known values are never overwritten by blanks,
// first_seen_at is preserved, and a re-sighted listing comes back active with
// its delisted_at cleared. The merged id, first_seen_at and times_seen are
// written back into l.
func (s *PostgresStore) UpsertArchivedListing(ctx context.Context, l *models.ArchivedListing) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}

	query := `
		INSERT INTO archived_listings (
			id, fingerprint, mls_number, address, city, province, postal_code,
			property_type, price, bedrooms, bathrooms, sqft, listing_url,
			description, first_seen_at, last_seen_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16
		)
		ON CONFLICT (fingerprint) DO UPDATE SET
			mls_number = COALESCE(NULLIF(EXCLUDED.mls_number, ''), archived_listings.mls_number),
			address = COALESCE(NULLIF(EXCLUDED.address, ''), archived_listings.address),
			city = COALESCE(NULLIF(EXCLUDED.city, ''), archived_listings.city),
			province = COALESCE(NULLIF(EXCLUDED.province, ''), archived_listings.province),
			postal_code = COALESCE(NULLIF(EXCLUDED.postal_code, ''), archived_listings.postal_code),
			property_type = COALESCE(NULLIF(EXCLUDED.property_type, ''), archived_listings.property_type),
			price = COALESCE(EXCLUDED.price, archived_listings.price),
			bedrooms = COALESCE(EXCLUDED.bedrooms, archived_listings.bedrooms),
			bathrooms = COALESCE(EXCLUDED.bathrooms, archived_listings.bathrooms),
			sqft = COALESCE(EXCLUDED.sqft, archived_listings.sqft),
			listing_url = COALESCE(NULLIF(EXCLUDED.listing_url, ''), archived_listings.listing_url),
			description = COALESCE(NULLIF(EXCLUDED.description, ''), archived_listings.description),
			last_seen_at = EXCLUDED.last_seen_at,
			times_seen = archived_listings.times_seen + 1,
			is_active = TRUE,
			delisted_at = NULL
		RETURNING id, first_seen_at, times_seen`

	return s.pool.QueryRow(ctx, query,
		l.ID, l.Fingerprint, l.MLSNumber, l.Address, l.City, l.Province, l.PostalCode,
		l.PropertyType, l.Price, l.Bedrooms, l.Bathrooms, l.SquareFeet, l.ListingURL,
		l.Description, l.FirstSeenAt, l.LastSeenAt,
	).Scan(&l.ID, &l.FirstSeenAt, &l.TimesSeen)
}

const archivedColumns = `id, fingerprint, mls_number, address, city, province, postal_code,
	property_type, price, bedrooms, bathrooms, sqft, listing_url, description,
	agent_name, brokerage, first_seen_at, last_seen_at, times_seen, is_active,
	delisted_at, enrichment_attempts`

func scanArchived(row pgx.Row) (*models.ArchivedListing, error) {
	var l models.ArchivedListing
	err := row.Scan(
		&l.ID, &l.Fingerprint, &l.MLSNumber, &l.Address, &l.City, &l.Province, &l.PostalCode,
		&l.PropertyType, &l.Price, &l.Bedrooms, &l.Bathrooms, &l.SquareFeet, &l.ListingURL,
		&l.Description, &l.AgentName, &l.Brokerage, &l.FirstSeenAt, &l.LastSeenAt,
		&l.TimesSeen, &l.IsActive, &l.DelistedAt, &l.EnrichmentAttempts,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func collectArchived(rows pgx.Rows) ([]models.ArchivedListing, error) {
	defer rows.Close()

	var listings []models.ArchivedListing
	for rows.Next() {
		l, err := scanArchived(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *l)
	}
	return listings, rows.Err()
}

func (s *PostgresStore) ArchivedByFingerprint(ctx context.Context, fingerprint string) (*models.ArchivedListing, error) {
	query := `SELECT ` + archivedColumns + ` FROM archived_listings WHERE fingerprint = $1`
	return scanArchived(s.pool.QueryRow(ctx, query, fingerprint))
}

func (s *PostgresStore) ArchivedByMLS(ctx context.Context, mlsNumber string) (*models.ArchivedListing, error) {
	query := `SELECT ` + archivedColumns + ` FROM archived_listings
		WHERE mls_number = $1 ORDER BY last_seen_at DESC LIMIT 1`
	return scanArchived(s.pool.QueryRow(ctx, query, mlsNumber))
}

// ActiveInCity returns the active archive rows for one city, used as the
// candidate pool when matching an incoming listing against past ones.
func (s *PostgresStore) ActiveInCity(ctx context.Context, city string) ([]models.ArchivedListing, error) {
	query := `SELECT ` + archivedColumns + ` FROM archived_listings
		WHERE is_active AND LOWER(city) = LOWER($1)`

	rows, err := s.pool.Query(ctx, query, city)
	if err != nil {
		return nil, err
	}
	return collectArchived(rows)
}

// StaleActive returns active rows not seen for olderThan, oldest first.
func (s *PostgresStore) StaleActive(ctx context.Context, olderThan time.Duration, limit int) ([]models.ArchivedListing, error) {
	query := `SELECT ` + archivedColumns + ` FROM archived_listings
		WHERE is_active AND last_seen_at < $1
		ORDER BY last_seen_at
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, time.Now().UTC().Add(-olderThan), limit)
	if err != nil {
		return nil, err
	}
	return collectArchived(rows)
}

func (s *PostgresStore) MarkDelisted(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE archived_listings SET is_active = FALSE, delisted_at = $2 WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, at)
	return err
}

// MarkSeen refreshes last_seen_at without touching the rest of the row, for
// health checks that confirm a listing is still live.
func (s *PostgresStore) MarkSeen(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE archived_listings SET last_seen_at = $2 WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, at)
	return err
}

func (s *PostgresStore) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM archived_listings WHERE is_active`).Scan(&count)
	return count, err
}

// NeedingEnrichment returns active rows that still lack a description and
// have a detail page left to try.
func (s *PostgresStore) NeedingEnrichment(ctx context.Context, limit int) ([]models.ArchivedListing, error) {
	query := `SELECT ` + archivedColumns + ` FROM archived_listings
		WHERE is_active AND description = '' AND listing_url <> '' AND enrichment_attempts < $1
		ORDER BY last_seen_at DESC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, maxEnrichmentAttempts, limit)
	if err != nil {
		return nil, err
	}
	return collectArchived(rows)
}

// SaveEnrichment records one detail-page attempt. Blank fields leave the
// stored values alone; the attempt still counts, so pages that never parse
// eventually fall out of the queue.
func (s *PostgresStore) SaveEnrichment(ctx context.Context, id string, e *models.Enrichment) error {
	query := `
		UPDATE archived_listings SET
			description = CASE WHEN $2 <> '' THEN $2 ELSE description END,
			sqft = COALESCE($3, sqft),
			agent_name = CASE WHEN $4 <> '' THEN $4 ELSE agent_name END,
			brokerage = CASE WHEN $5 <> '' THEN $5 ELSE brokerage END,
			enrichment_attempts = enrichment_attempts + 1
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query, id, e.Description, e.SquareFeet, e.AgentName, e.Brokerage)
	return err
}

// UpdatePrice records an asking price change spotted by the health check and
// counts the sighting.
func (s *PostgresStore) UpdatePrice(ctx context.Context, id string, price float64, at time.Time) error {
	query := `UPDATE archived_listings SET price = $2, last_seen_at = $3 WHERE id = $1`
	_, err := s.pool.Exec(ctx, query, id, price, at)
	return err
}

// EnqueueMedia queues image URLs for the mirror worker. URLs already queued
// or mirrored are left untouched.
func (s *PostgresStore) EnqueueMedia(ctx context.Context, listingID string, urls []string) error {
	query := `INSERT INTO media (listing_id, original_url) VALUES ($1, $2)
		ON CONFLICT (original_url) DO NOTHING`

	for _, u := range urls {
		if u == "" {
			continue
		}
		if _, err := s.pool.Exec(ctx, query, listingID, u); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) PendingMedia(ctx context.Context, limit int) ([]models.Media, error) {
	query := `
		SELECT id, listing_id, original_url, s3_key, content_hash, mime_type,
			file_size_bytes, status, attempts, created_at
		FROM media
		WHERE status = $1 AND attempts < $2
		ORDER BY created_at
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, models.MediaStatusPending, maxMediaAttempts, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var media []models.Media
	for rows.Next() {
		var m models.Media
		if err := rows.Scan(
			&m.ID, &m.ListingID, &m.OriginalURL, &m.S3Key, &m.ContentHash, &m.MimeType,
			&m.FileSizeBytes, &m.Status, &m.Attempts, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		media = append(media, m)
	}
	return media, rows.Err()
}

func (s *PostgresStore) MarkMediaUploaded(ctx context.Context, id int64, s3Key, contentHash, mimeType string, sizeBytes int64) error {
	query := `
		UPDATE media SET
			status = $2, s3_key = $3, content_hash = $4, mime_type = $5,
			file_size_bytes = $6, attempts = attempts + 1
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query, id, models.MediaStatusUploaded, s3Key, contentHash, mimeType, sizeBytes)
	return err
}

// MarkMediaFailed bumps the attempt counter and parks the row as failed once
// the attempt limit is reached.
func (s *PostgresStore) MarkMediaFailed(ctx context.Context, id int64) error {
	query := `
		UPDATE media SET
			attempts = attempts + 1,
			status = CASE WHEN attempts + 1 >= $2 THEN $3 ELSE status END
		WHERE id = $1`

	_, err := s.pool.Exec(ctx, query, id, maxMediaAttempts, models.MediaStatusFailed)
	return err
}

// InsertMatch records a suspected duplicate pair. Re-inserting a pair already
// on file is a no-op.
func (s *PostgresStore) InsertMatch(ctx context.Context, m *models.ListingMatch) error {
	query := `
		INSERT INTO listing_matches (matched_fingerprint, incoming_fingerprint, confidence, reasons, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (matched_fingerprint, incoming_fingerprint) DO NOTHING
		RETURNING id`

	err := s.pool.QueryRow(ctx, query,
		m.MatchedFingerprint, m.IncomingFingerprint, m.Confidence, m.Reasons, m.Status, m.CreatedAt,
	).Scan(&m.ID)

	if err == pgx.ErrNoRows {
		return nil
	}
	return err
}
