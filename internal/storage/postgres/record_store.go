// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/localbiz-crawler/internal/crawler"
)

const defaultTable = "business_records"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// RecordStoreConfig controls the Postgres connection pool used for business rows.
type RecordStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type txBeginner interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// RecordStore upserts business records into Postgres. A listing is stored
// once per county it was found in.
type RecordStore struct {
	pool  txBeginner
	table string
}

// NewRecordStore creates a Postgres-backed RecordStore using the provided config.
func NewRecordStore(ctx context.Context, cfg RecordStoreConfig) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("output.postgres_dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &RecordStore{pool: pool, table: table}, nil
}

// NewRecordStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRecordStoreWithPool(pool txBeginner, table string) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &RecordStore{pool: pool, table: table}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the records table when it does not exist.
func (s *RecordStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	listing_id     TEXT NOT NULL,
	county         TEXT NOT NULL,
	state_code     TEXT NOT NULL,
	name           TEXT NOT NULL DEFAULT '',
	category       TEXT NOT NULL DEFAULT '',
	phone          TEXT NOT NULL DEFAULT '',
	hours          TEXT NOT NULL DEFAULT '',
	website        TEXT NOT NULL DEFAULT '',
	rating         DOUBLE PRECISION NOT NULL DEFAULT 0,
	raw_address    TEXT NOT NULL DEFAULT '',
	street_address TEXT NOT NULL DEFAULT '',
	city           TEXT NOT NULL DEFAULT '',
	state          TEXT NOT NULL DEFAULT '',
	zip            TEXT NOT NULL DEFAULT '',
	inserted_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (listing_id, county, state_code)
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// Upsert inserts records that are not stored yet inside one transaction and
// returns how many rows were new. Records without a listing ID cannot be
// keyed and are skipped.
func (s *RecordStore) Upsert(ctx context.Context, records []crawler.BusinessRecord) (int64, error) {
	if s == nil || s.pool == nil {
		return 0, fmt.Errorf("record store is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	listing_id,
	county,
	state_code,
	name,
	category,
	phone,
	hours,
	website,
	rating,
	raw_address,
	street_address,
	city,
	state,
	zip
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
)
ON CONFLICT (listing_id, county, state_code) DO NOTHING`, s.table)

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin upsert: %w", err)
	}
	var inserted int64
	for _, r := range records {
		if r.ListingID == "" {
			continue
		}
		tag, err := tx.Exec(ctx, query,
			r.ListingID,
			r.County,
			r.StateCode,
			r.Name,
			r.Category,
			r.Phone,
			r.Hours,
			r.Website,
			r.Rating,
			r.RawAddress,
			r.StreetAddress,
			r.City,
			r.State,
			r.Zip,
		)
		if err != nil {
			_ = tx.Rollback(ctx)
			return 0, fmt.Errorf("upsert listing %s: %w", r.ListingID, err)
		}
		inserted += tag.RowsAffected()
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit upsert: %w", err)
	}
	return inserted, nil
}
