package registry

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/s0up4200/ptseed/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Registry is the durable record of every torrent the system has ever
// admitted. It exclusively owns record lifetime and is the single writer
// of lifecycle state.
type Registry struct {
	db     *sql.DB
	logger zerolog.Logger
	echo   bool
}

// Open initializes or connects to the registry database and applies the schema.
func Open(cfg config.DatabaseConfig, logger zerolog.Logger) (*Registry, error) {
	db, err := sql.Open("sqlite", cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if cfg.PoolSize > 0 {
		db.SetMaxIdleConns(cfg.PoolSize)
		db.SetMaxOpenConns(cfg.PoolSize + cfg.MaxOverflow)
	}

	r := &Registry{db: db, logger: logger, echo: cfg.Echo}
	if err := r.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return r, nil
}

// Close closes the underlying database connection.
func (r *Registry) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Registry) initSchema(ctx context.Context) error {
	var tableExists int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return tx.Commit()
	}

	var version int
	if err := r.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}

	return nil
}

// Admit registers a new torrent in the pending state. The content hash is
// the unique key; re-admitting a known hash fails with ErrDuplicateHash.
func (r *Registry) Admit(ctx context.Context, params AdmitParams) (*Record, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	r.trace("INSERT torrents", params.Hash)

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO torrents (
            hash, name, classification, size, added_at,
            ratio, seed_time_secs, state, priority, updated_at
        ) VALUES (?, ?, ?, ?, ?, 0, 0, ?, ?, ?)`,
		params.Hash,
		params.Name,
		string(params.Classification),
		params.Size,
		timestamp,
		string(StatePending),
		params.Priority,
		timestamp,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateHash, params.Hash)
		}
		return nil, fmt.Errorf("insert torrent: %w", err)
	}

	return r.Get(ctx, params.Hash)
}

// Get fetches one record by content hash.
func (r *Registry) Get(ctx context.Context, hash string) (*Record, error) {
	row := r.db.QueryRowContext(ctx,
		selectColumns+` FROM torrents WHERE hash = ?`, hash)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	return rec, err
}

// UpdateMetrics ingests a live metric snapshot for a torrent. The stored
// ratio never decreases: a regression is logged as a data anomaly and the
// lower value is dropped. Seed time and size are upserted as reported.
func (r *Registry) UpdateMetrics(ctx context.Context, hash string, ratio float64, seedTime time.Duration, size int64) error {
	current, err := r.Get(ctx, hash)
	if err != nil {
		return err
	}

	if ratio < current.Ratio {
		r.logger.Warn().
			Str("hash", hash).
			Float64("stored", current.Ratio).
			Float64("reported", ratio).
			Msg("Ratio regression reported by downloader, ignoring")
		ratio = current.Ratio
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	r.trace("UPDATE torrents metrics", hash)

	_, err = r.db.ExecContext(ctx,
		`UPDATE torrents SET ratio = ?, seed_time_secs = ?, size = ?, updated_at = ? WHERE hash = ?`,
		ratio, int64(seedTime.Seconds()), size, timestamp, hash)
	if err != nil {
		return fmt.Errorf("update metrics: %w", err)
	}
	return nil
}

// Transition moves a record from one state to another. It returns false
// without error when the record is no longer in the expected from state,
// which makes concurrent transition attempts race-safe: exactly one wins.
func (r *Registry) Transition(ctx context.Context, hash string, from, to State) (bool, error) {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	r.trace("UPDATE torrents state", hash)

	res, err := r.db.ExecContext(ctx,
		`UPDATE torrents SET state = ?, updated_at = ? WHERE hash = ? AND state = ?`,
		string(to), timestamp, hash, string(from))
	if err != nil {
		return false, fmt.Errorf("transition %s -> %s: %w", from, to, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		r.logger.Debug().
			Str("hash", hash).
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("Transition skipped, state moved underneath us")
		return false, nil
	}
	return true, nil
}

// SetPriority updates the manual priority override.
func (r *Registry) SetPriority(ctx context.Context, hash string, priority int) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := r.db.ExecContext(ctx,
		`UPDATE torrents SET priority = ?, updated_at = ? WHERE hash = ?`,
		priority, timestamp, hash)
	if err != nil {
		return fmt.Errorf("set priority: %w", err)
	}
	return nil
}

// SetLastError records the most recent failure reason for operator inspection.
func (r *Registry) SetLastError(ctx context.Context, hash, reason string) error {
	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := r.db.ExecContext(ctx,
		`UPDATE torrents SET last_error = ?, updated_at = ? WHERE hash = ?`,
		reason, timestamp, hash)
	if err != nil {
		return fmt.Errorf("set last error: %w", err)
	}
	return nil
}

// ByState returns all records in any of the given states, oldest first.
func (r *Registry) ByState(ctx context.Context, states ...State) ([]*Record, error) {
	if len(states) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(states))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(states))
	for i, s := range states {
		args[i] = string(s)
	}

	rows, err := r.db.QueryContext(ctx,
		selectColumns+` FROM torrents WHERE state IN (`+placeholders+`) ORDER BY added_at ASC`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("query by state: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Active returns all records that count toward the managed pool.
func (r *Registry) Active(ctx context.Context) ([]*Record, error) {
	return r.ByState(ctx, StatePending, StateSeeding, StateEligible)
}

// Aggregate recomputes the pool aggregate from scratch. freeDisk is the
// downloader-reported free space, passed through for policy evaluation.
func (r *Registry) Aggregate(ctx context.Context, freeDisk int64) (PoolAggregate, error) {
	var agg PoolAggregate
	agg.FreeDisk = freeDisk

	row := r.db.QueryRowContext(ctx, `
        SELECT
            COALESCE(SUM(CASE WHEN state IN (?, ?) THEN size ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN state = ? THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN state IN (?, ?, ?) THEN 1 ELSE 0 END), 0)
        FROM torrents`,
		string(StateSeeding), string(StateEligible),
		string(StateSeeding),
		string(StatePending), string(StateSeeding), string(StateEligible),
	)
	if err := row.Scan(&agg.DiskUsed, &agg.SeedingCount, &agg.ActiveCount); err != nil {
		return agg, fmt.Errorf("aggregate pool: %w", err)
	}
	return agg, nil
}

func (r *Registry) trace(op, hash string) {
	if r.echo {
		r.logger.Debug().Str("op", op).Str("hash", hash).Msg("registry statement")
	}
}

const selectColumns = `SELECT hash, name, classification, size, added_at,
    ratio, seed_time_secs, state, priority, COALESCE(last_error, ''), updated_at`

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*Record, error) {
	var (
		rec          Record
		class        string
		state        string
		addedAt      string
		updatedAt    string
		seedTimeSecs int64
	)

	err := row.Scan(&rec.Hash, &rec.Name, &class, &rec.Size, &addedAt,
		&rec.Ratio, &seedTimeSecs, &state, &rec.Priority, &rec.LastError, &updatedAt)
	if err != nil {
		return nil, err
	}

	rec.Classification = Classification(class)
	rec.State = State(state)
	rec.SeedTime = time.Duration(seedTimeSecs) * time.Second

	if rec.AddedAt, err = time.Parse(time.RFC3339Nano, addedAt); err != nil {
		return nil, fmt.Errorf("parse added_at: %w", err)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &rec, nil
}
