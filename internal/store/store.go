// Package store is the embedded SQLite persistence layer: schema, inserts,
// range queries, hourly/daily roll-ups, and the retention sweep. One file per
// host, one writer at a time.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/avolkhov/logly/internal/logging"
)

// DBFileName is the single database file logly ever opens.
const DBFileName = "logly.db"

// ErrPathMismatch is returned when Options.Path points anywhere other than
// the well-known file under the data directory. The guard prevents accidental
// multi-writer setups and divergent schemas.
var ErrPathMismatch = errors.New("store: database path must be the logly.db file under the data directory")

// DefaultPath returns the pinned database path for a data directory.
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, DBFileName)
}

// Options configures Open.
type Options struct {
	// DataDir is the directory holding logly.db. Created if missing.
	DataDir string

	// Path optionally names the database file. It must equal
	// DefaultPath(DataDir) unless AllowNonDefaultPath is set; that flag
	// exists for tests only.
	Path                string
	AllowNonDefaultPath bool

	Logger *zap.SugaredLogger
}

// Store wraps the SQLite handle. All writes serialize on mu so commit order
// equals lock-acquisition order; reads go straight to the WAL.
type Store struct {
	db   *sql.DB
	path string
	log  *zap.SugaredLogger

	mu sync.Mutex
}

// Open opens (creating if needed) the pinned database file, applies the
// journal pragmas, and initializes the schema idempotently. Transient open
// failures are retried with bounded exponential backoff: 5 attempts starting
// at 100 ms, doubling.
func Open(opts Options) (*Store, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	path := opts.Path
	if path == "" {
		path = DefaultPath(opts.DataDir)
	} else if path != DefaultPath(opts.DataDir) && !opts.AllowNonDefaultPath {
		return nil, ErrPathMismatch
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
	}

	var db *sql.DB
	open := func() error {
		var err error
		db, err = sql.Open("sqlite", path+"?_pragma=busy_timeout(60000)")
		if err != nil {
			return err
		}
		if err = db.Ping(); err != nil {
			db.Close()
			return err
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 100 * time.Millisecond
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	if err := backoff.Retry(open, backoff.WithMaxRetries(bo, 4)); err != nil {
		return nil, fmt.Errorf("open database %s: %w", path, err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-65536",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	s := &Store{db: db, path: path, log: opts.Logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// FileSize returns the size of the database file in bytes.
func (s *Store) FileSize() (int64, error) {
	fi, err := os.Stat(s.path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("initialize schema: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS system_metrics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL,
	cpu_percent REAL,
	cpu_count INTEGER,
	memory_total INTEGER,
	memory_available INTEGER,
	memory_percent REAL,
	disk_total INTEGER,
	disk_used INTEGER,
	disk_percent REAL,
	disk_read_bytes INTEGER,
	disk_write_bytes INTEGER,
	load_1min REAL,
	load_5min REAL,
	load_15min REAL
);
CREATE INDEX IF NOT EXISTS idx_system_metrics_ts ON system_metrics(ts);

CREATE TABLE IF NOT EXISTS network_metrics (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL,
	bytes_sent INTEGER,
	bytes_recv INTEGER,
	packets_sent INTEGER,
	packets_recv INTEGER,
	errors_in INTEGER,
	errors_out INTEGER,
	drops_in INTEGER,
	drops_out INTEGER,
	connections_established INTEGER,
	connections_listen INTEGER,
	connections_time_wait INTEGER
);
CREATE INDEX IF NOT EXISTS idx_network_metrics_ts ON network_metrics(ts);

CREATE TABLE IF NOT EXISTS log_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL,
	source TEXT NOT NULL,
	message TEXT NOT NULL,
	level TEXT,
	ip TEXT,
	user TEXT,
	service TEXT,
	action TEXT,
	metadata TEXT
);
CREATE INDEX IF NOT EXISTS idx_log_events_ts ON log_events(ts);
CREATE INDEX IF NOT EXISTS idx_log_events_source ON log_events(source, ts);
CREATE INDEX IF NOT EXISTS idx_log_events_action ON log_events(action, ts);

CREATE TABLE IF NOT EXISTS event_traces (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	ts INTEGER NOT NULL,
	source TEXT NOT NULL,
	level TEXT,
	severity_score REAL NOT NULL,
	root_cause TEXT,
	trigger TEXT,
	causality_chain TEXT,
	related_services TEXT,
	tracers_used TEXT
);
CREATE INDEX IF NOT EXISTS idx_event_traces_ts ON event_traces(ts);
CREATE INDEX IF NOT EXISTS idx_event_traces_severity ON event_traces(severity_score);

CREATE TABLE IF NOT EXISTS process_traces (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	trace_id INTEGER NOT NULL REFERENCES event_traces(id),
	ts INTEGER NOT NULL,
	pid INTEGER NOT NULL,
	name TEXT NOT NULL,
	cmdline TEXT,
	parent_pid INTEGER,
	memory_rss INTEGER,
	memory_vm INTEGER,
	cpu_utime REAL,
	cpu_stime REAL,
	threads INTEGER,
	read_bytes INTEGER,
	write_bytes INTEGER
);
CREATE INDEX IF NOT EXISTS idx_process_traces_trace ON process_traces(trace_id);

CREATE TABLE IF NOT EXISTS network_traces (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	trace_id INTEGER NOT NULL REFERENCES event_traces(id),
	ts INTEGER NOT NULL,
	local_addr TEXT NOT NULL,
	local_port INTEGER NOT NULL,
	remote_addr TEXT,
	remote_port INTEGER,
	state TEXT NOT NULL,
	pid INTEGER
);
CREATE INDEX IF NOT EXISTS idx_network_traces_trace ON network_traces(trace_id);

CREATE TABLE IF NOT EXISTS error_traces (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	trace_id INTEGER NOT NULL REFERENCES event_traces(id),
	ts INTEGER NOT NULL,
	source TEXT NOT NULL,
	error_type TEXT,
	category TEXT NOT NULL,
	message TEXT,
	severity_bump REAL,
	root_cause_hints TEXT,
	recovery_suggestions TEXT
);
CREATE INDEX IF NOT EXISTS idx_error_traces_ts ON error_traces(ts);
CREATE INDEX IF NOT EXISTS idx_error_traces_category ON error_traces(category, ts);

CREATE TABLE IF NOT EXISTS ip_reputation (
	ip TEXT PRIMARY KEY,
	type TEXT NOT NULL,
	is_whitelisted INTEGER NOT NULL DEFAULT 0,
	is_blacklisted INTEGER NOT NULL DEFAULT 0,
	threat_score REAL NOT NULL DEFAULT 0,
	first_seen INTEGER NOT NULL,
	last_seen INTEGER NOT NULL,
	total_events INTEGER NOT NULL DEFAULT 0,
	failed_login_count INTEGER NOT NULL DEFAULT 0,
	banned_count INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ip_reputation_threat ON ip_reputation(threat_score);

CREATE TABLE IF NOT EXISTS hourly_aggregates (
	hour_ts INTEGER PRIMARY KEY,
	avg_cpu_percent REAL,
	max_cpu_percent REAL,
	avg_memory_percent REAL,
	max_memory_percent REAL,
	avg_disk_percent REAL,
	max_disk_percent REAL,
	bytes_sent INTEGER NOT NULL DEFAULT 0,
	bytes_recv INTEGER NOT NULL DEFAULT 0,
	packets_sent INTEGER NOT NULL DEFAULT 0,
	packets_recv INTEGER NOT NULL DEFAULT 0,
	total_events INTEGER NOT NULL DEFAULT 0,
	error_events INTEGER NOT NULL DEFAULT 0,
	warning_events INTEGER NOT NULL DEFAULT 0,
	security_events INTEGER NOT NULL DEFAULT 0,
	sample_count INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS daily_aggregates (
	date TEXT PRIMARY KEY,
	avg_cpu_percent REAL,
	max_cpu_percent REAL,
	avg_memory_percent REAL,
	max_memory_percent REAL,
	avg_disk_percent REAL,
	bytes_sent INTEGER NOT NULL DEFAULT 0,
	bytes_recv INTEGER NOT NULL DEFAULT 0,
	packets_sent INTEGER NOT NULL DEFAULT 0,
	packets_recv INTEGER NOT NULL DEFAULT 0,
	total_events INTEGER NOT NULL DEFAULT 0,
	error_events INTEGER NOT NULL DEFAULT 0,
	security_events INTEGER NOT NULL DEFAULT 0,
	unique_ips INTEGER NOT NULL DEFAULT 0,
	unique_users INTEGER NOT NULL DEFAULT 0,
	hour_count INTEGER NOT NULL DEFAULT 0
);
`

// errInvalidTimestamp and errInvalidSeverity guard the integrity invariants
// the store enforces at commit time.
var (
	errInvalidTimestamp = errors.New("store: timestamp must be >= 0")
	errInvalidSeverity  = errors.New("store: severity score must be within [0, 100]")
)

func checkTimestamp(ts int64) error {
	if ts < 0 {
		return errInvalidTimestamp
	}
	return nil
}

func checkSeverity(score float64) error {
	if score < 0 || score > 100 {
		return errInvalidSeverity
	}
	return nil
}

// Counts returns per-table row counts for the status command.
func (s *Store) Counts() (map[string]int64, error) {
	tables := []string{
		"system_metrics", "network_metrics", "log_events",
		"event_traces", "error_traces", "ip_reputation",
		"hourly_aggregates", "daily_aggregates",
	}
	out := make(map[string]int64, len(tables))
	for _, table := range tables {
		var n int64
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		out[table] = n
	}
	return out, nil
}

// limitClause renders an optional LIMIT. limit <= 0 means no limit.
func limitClause(limit int) string {
	if limit > 0 {
		return fmt.Sprintf(" LIMIT %d", limit)
	}
	return ""
}
