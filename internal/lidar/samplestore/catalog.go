package samplestore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/lidar-samples/internal/lidar"
	"github.com/banshee-data/lidar-samples/internal/lidar/l2scans"
	"github.com/banshee-data/lidar-samples/internal/timeutil"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Run statuses recorded in the catalog.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunCancelled = "cancelled"
	RunFailed    = "failed"
)

// Catalog is the SQLite index of conversion runs and the samples they wrote.
type Catalog struct {
	*sql.DB
	path  string
	clock timeutil.Clock
}

// RunRecord is one row of the runs table.
type RunRecord struct {
	RunID               string
	StartedNs           int64
	FinishedNs          int64
	ChannelCount        int
	PointsPerSecond     int
	RevolutionFrequency float64
	PointsPerChannel    int
	Source              string
	Status              string
	Packets             int64
	SamplesWritten      int
	Error               string
}

// SampleRecord is one row of the samples table.
type SampleRecord struct {
	RunID       string
	SampleIndex int
	Path        string
	SizeBytes   int64
	SHA256      string
	CreatedNs   int64
}

// OpenCatalog opens (creating if needed) the catalog at path and migrates
// it to the latest schema.
func OpenCatalog(path string) (*Catalog, error) {
	c, err := OpenCatalogNoMigrate(path)
	if err != nil {
		return nil, err
	}
	if err := c.MigrateUp(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// OpenCatalogNoMigrate opens the catalog without touching its schema. The
// migrate CLI uses this so that it alone decides the schema version.
func OpenCatalogNoMigrate(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", path, err)
	}
	// One writer at a time; sqlite serialises writes anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000; PRAGMA foreign_keys = ON;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure catalog pragmas: %w", err)
	}
	return &Catalog{DB: db, path: path, clock: timeutil.RealClock{}}, nil
}

// Path returns the database file path.
func (c *Catalog) Path() string { return c.path }

// SetClock replaces the clock used to stamp runs and samples. A nil clock
// restores the wall clock.
func (c *Catalog) SetClock(clock timeutil.Clock) { c.clock = timeutil.OrReal(clock) }

func (c *Catalog) nowNs() int64 { return c.clock.Now().UnixNano() }

// MigrateUp runs all pending migrations up to the latest version.
func (c *Catalog) MigrateUp() error {
	m, err := c.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: closing it would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateDown rolls back the most recent migration.
func (c *Catalog) MigrateDown() error {
	m, err := c.newMigrate()
	if err != nil {
		return err
	}
	if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the current schema version and dirty state.
// Returns 0, false, nil if no migrations have been applied yet.
func (c *Catalog) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := c.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (c *Catalog) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(c.DB, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateLogger implements migrate.Logger on the ops stream.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	lidar.Opsf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool { return false }

// StartRun records a new run and returns its ID.
func (c *Catalog) StartRun(ctx context.Context, cfg l2scans.ScanConfig, source string) (string, error) {
	target, err := cfg.TargetPointsPerChannel()
	if err != nil {
		return "", err
	}
	runID := uuid.New().String()
	_, err = c.ExecContext(ctx, `
		INSERT INTO runs (run_id, started_ns, channel_count, points_per_second,
			revolution_frequency, points_per_channel, source, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, c.nowNs(), cfg.ChannelCount, cfg.PointsPerSecond,
		cfg.RevolutionFrequency, target, source, RunRunning)
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return runID, nil
}

// FinishRun stores the final status and counters of a run.
func (c *Catalog) FinishRun(ctx context.Context, runID, status string, packets int64, samples int, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	res, err := c.ExecContext(ctx, `
		UPDATE runs
		SET finished_ns = ?, status = ?, packets = ?, samples_written = ?, error = ?
		WHERE run_id = ?
	`, c.nowNs(), status, packets, samples, msg, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s not found", runID)
	}
	return nil
}

// GetRun loads a run by ID.
func (c *Catalog) GetRun(ctx context.Context, runID string) (*RunRecord, error) {
	var r RunRecord
	var finished sql.NullInt64
	err := c.QueryRowContext(ctx, `
		SELECT run_id, started_ns, finished_ns, channel_count, points_per_second,
			revolution_frequency, points_per_channel, source, status, packets,
			samples_written, error
		FROM runs WHERE run_id = ?
	`, runID).Scan(&r.RunID, &r.StartedNs, &finished, &r.ChannelCount, &r.PointsPerSecond,
		&r.RevolutionFrequency, &r.PointsPerChannel, &r.Source, &r.Status, &r.Packets,
		&r.SamplesWritten, &r.Error)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	r.FinishedNs = finished.Int64
	return &r, nil
}

// RecordSample adds a written sample to the catalog.
func (c *Catalog) RecordSample(ctx context.Context, runID string, index int, path string, payload []byte) error {
	sum := sha256.Sum256(payload)
	_, err := c.ExecContext(ctx, `
		INSERT INTO samples (run_id, sample_index, path, size_bytes, sha256, created_ns)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, sample_index) DO UPDATE SET
			path = excluded.path, size_bytes = excluded.size_bytes,
			sha256 = excluded.sha256, created_ns = excluded.created_ns
	`, runID, index, path, len(payload), hex.EncodeToString(sum[:]), c.nowNs())
	if err != nil {
		return fmt.Errorf("failed to record sample %d: %w", index, err)
	}
	return nil
}

// ListSamples returns the samples of a run ordered by index.
func (c *Catalog) ListSamples(ctx context.Context, runID string) ([]SampleRecord, error) {
	rows, err := c.QueryContext(ctx, `
		SELECT run_id, sample_index, path, size_bytes, sha256, created_ns
		FROM samples WHERE run_id = ? ORDER BY sample_index
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}
	defer rows.Close()

	var out []SampleRecord
	for rows.Next() {
		var s SampleRecord
		if err := rows.Scan(&s.RunID, &s.SampleIndex, &s.Path, &s.SizeBytes, &s.SHA256, &s.CreatedNs); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// LatestSample returns the most recently recorded sample across all runs
// together with the shape of the run that produced it.
func (c *Catalog) LatestSample(ctx context.Context) (*SampleRecord, *RunRecord, error) {
	var s SampleRecord
	err := c.QueryRowContext(ctx, `
		SELECT run_id, sample_index, path, size_bytes, sha256, created_ns
		FROM samples ORDER BY created_ns DESC, sample_index DESC LIMIT 1
	`).Scan(&s.RunID, &s.SampleIndex, &s.Path, &s.SizeBytes, &s.SHA256, &s.CreatedNs)
	if err != nil {
		return nil, nil, err
	}
	run, err := c.GetRun(ctx, s.RunID)
	if err != nil {
		return nil, nil, err
	}
	return &s, run, nil
}
