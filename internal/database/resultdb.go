package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/netprobe/internal/probe"
)

// FileName is the database file created inside the data directory.
const FileName = "netprobe.db"

// timeLayout is fixed width so stored event times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ResultDB stores probe results and site hashes in SQLite.
type ResultDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures ResultDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file when missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the database in dbDir.
func Open(dbDir string, opts Options) (*ResultDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	mode := "rwc"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	} else {
		if _, err := os.Stat(dbPath); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
		mode = "rw"
	}

	db, err := sql.Open("sqlite", dbPath+"?mode="+mode+"&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer; results arrive from many probe goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &ResultDB{db: db, dbPath: dbPath}

	ctx := context.Background()
	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := rdb.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return rdb, nil
}

// Path returns the database file path.
func (r *ResultDB) Path() string { return r.dbPath }

// Close closes the database connection.
func (r *ResultDB) Close() error {
	return r.db.Close()
}

func (r *ResultDB) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS probe_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity_id INTEGER NOT NULL,
		cycle_id TEXT NOT NULL,
		endpoint_type TEXT NOT NULL,
		address TEXT NOT NULL,
		is_up INTEGER NOT NULL,
		status TEXT NOT NULL,
		status_code INTEGER NOT NULL DEFAULT 0,
		round_trip_ms INTEGER,
		message TEXT NOT NULL,
		event_time TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_results_entity ON probe_results(entity_id, id);
	CREATE INDEX IF NOT EXISTS idx_results_cycle ON probe_results(cycle_id);
	CREATE INDEX IF NOT EXISTS idx_results_time ON probe_results(event_time);

	CREATE TABLE IF NOT EXISTS site_hashes (
		entity_id INTEGER PRIMARY KEY,
		hash TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// ResultRecord is one stored probe result.
type ResultRecord struct {
	ID           int64
	EntityID     int
	CycleID      uuid.UUID
	EndpointType string
	Address      string
	IsUp         bool
	Status       string
	StatusCode   int

	// RoundTrip is nil for failed runs.
	RoundTrip *time.Duration
	Message   string
	EventTime time.Time
}

// Probe rebuilds the settings and result a record was saved from. Only the
// fields SaveResult stores are set.
func (rec ResultRecord) Probe() (probe.Settings, probe.Result) {
	s := probe.Settings{
		EntityID:     rec.EntityID,
		EndpointType: rec.EndpointType,
		Address:      rec.Address,
		Enabled:      true,
	}
	rtt := probe.UnknownRoundTrip
	if rec.RoundTrip != nil {
		rtt = rec.RoundTrip.Milliseconds()
	}
	res := probe.Result{
		EntityID:  rec.EntityID,
		CycleID:   rec.CycleID,
		IsUp:      rec.IsUp,
		Message:   rec.Message,
		EventTime: rec.EventTime,
		Snapshot: probe.StatusSnapshot{
			Status:        rec.Status,
			RoundTripTime: rtt,
			StatusCode:    rec.StatusCode,
		},
	}
	return s, res
}

// SaveResult stores the result of one run of the probe configured by s.
func (r *ResultDB) SaveResult(ctx context.Context, s probe.Settings, res probe.Result) error {
	var rtt sql.NullInt64
	if res.Snapshot.RoundTripTime != probe.UnknownRoundTrip {
		rtt = sql.NullInt64{Int64: res.Snapshot.RoundTripTime, Valid: true}
	}

	query := `
	INSERT INTO probe_results
		(entity_id, cycle_id, endpoint_type, address, is_up, status, status_code, round_trip_ms, message, event_time)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		res.EntityID,
		res.CycleID.String(),
		s.EndpointType,
		s.Address,
		res.IsUp,
		res.Snapshot.Status,
		res.Snapshot.StatusCode,
		rtt,
		res.Message,
		res.EventTime.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}
	return nil
}

const selectResult = `
	SELECT id, entity_id, cycle_id, endpoint_type, address, is_up, status, status_code, round_trip_ms, message, event_time
	FROM probe_results
`

// RecentResults returns up to limit results of one entity, newest first.
func (r *ResultDB) RecentResults(ctx context.Context, entityID, limit int) ([]ResultRecord, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	rows, err := r.db.QueryContext(ctx, selectResult+` WHERE entity_id = ? ORDER BY id DESC LIMIT ?`, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	return scanResults(rows)
}

// LatestResults returns the newest result of every entity, ordered by
// entity ID.
func (r *ResultDB) LatestResults(ctx context.Context) ([]ResultRecord, error) {
	rows, err := r.db.QueryContext(ctx, selectResult+`
	WHERE id IN (SELECT MAX(id) FROM probe_results GROUP BY entity_id)
	ORDER BY entity_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest results: %w", err)
	}
	return scanResults(rows)
}

// PruneBefore deletes results older than cutoff and returns the number of
// rows removed.
func (r *ResultDB) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM probe_results WHERE event_time < ?`, cutoff.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("failed to prune results: %w", err)
	}
	return res.RowsAffected()
}

func scanResults(rows *sql.Rows) ([]ResultRecord, error) {
	defer rows.Close()

	var out []ResultRecord
	for rows.Next() {
		var (
			rec       ResultRecord
			cycleID   string
			rtt       sql.NullInt64
			eventTime string
		)
		err := rows.Scan(
			&rec.ID,
			&rec.EntityID,
			&cycleID,
			&rec.EndpointType,
			&rec.Address,
			&rec.IsUp,
			&rec.Status,
			&rec.StatusCode,
			&rtt,
			&rec.Message,
			&eventTime,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}

		// A malformed cycle ID leaves uuid.Nil rather than dropping the row.
		rec.CycleID, _ = uuid.Parse(cycleID) //nolint:errcheck // see above
		if rtt.Valid {
			d := time.Duration(rtt.Int64) * time.Millisecond
			rec.RoundTrip = &d
		}
		rec.EventTime = parseTimestamp(eventTime)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SaveSiteHash stores the content hash of a site hash probe.
func (r *ResultDB) SaveSiteHash(ctx context.Context, entityID int, hash string) error {
	query := `
	INSERT INTO site_hashes (entity_id, hash) VALUES (?, ?)
	ON CONFLICT(entity_id) DO UPDATE SET
		hash = excluded.hash,
		updated_at = CURRENT_TIMESTAMP
	`
	if _, err := r.db.ExecContext(ctx, query, entityID, hash); err != nil {
		return fmt.Errorf("failed to save site hash: %w", err)
	}
	return nil
}

// SiteHashes returns every stored content hash keyed by entity ID.
func (r *ResultDB) SiteHashes(ctx context.Context) (map[int]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT entity_id, hash FROM site_hashes`)
	if err != nil {
		return nil, fmt.Errorf("failed to query site hashes: %w", err)
	}
	defer rows.Close()

	hashes := make(map[int]string)
	for rows.Next() {
		var (
			id   int
			hash string
		)
		if err := rows.Scan(&id, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan site hash: %w", err)
		}
		hashes[id] = hash
	}
	return hashes, rows.Err()
}

// timestampFormats lists the layouts SQLite and SaveResult produce.
var timestampFormats = []string{
	timeLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp tries each known layout and returns the zero time when
// none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
