// Package history keeps successful classification results in a local
// sqlite database so the web dashboard can show recent gestures.
package history

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/relabs-tech/proximity_gesture/internal/gesture"
	"github.com/relabs-tech/proximity_gesture/internal/proximity"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a sqlite-backed result log.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and migrates it to the
// latest schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	// sqlite allows one writer; the web server reads through the same handle.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("history db pragmas: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("history migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = migrateLogger{}
	// m is not closed: that would close s.db.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...interface{}) {
	log.Debugf("history: migrate: "+format, v...)
}

func (migrateLogger) Verbose() bool { return false }

func (s *Store) Close() error { return s.db.Close() }

// Record stores r. Recording the same cycle twice is a no-op.
func (s *Store) Record(r gesture.Result) error {
	top, ok := r.Top()
	if !ok {
		return fmt.Errorf("history: result %s has no scores", r.CycleID)
	}
	scores, err := json.Marshal(r.Scores)
	if err != nil {
		return fmt.Errorf("history: marshal scores: %w", err)
	}
	_, err = s.db.Exec(`
		INSERT OR IGNORE INTO results
			(cycle_id, captured_at, top_label, top_score, dsp_us, classification_us, anomaly_us, scores)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.CycleID.String(),
		r.CapturedAt.UnixMicro(),
		top.Label,
		top.Value,
		r.Timing.DSP.Microseconds(),
		r.Timing.Classification.Microseconds(),
		r.Timing.Anomaly.Microseconds(),
		string(scores),
	)
	if err != nil {
		return fmt.Errorf("history: insert %s: %w", r.CycleID, err)
	}
	return nil
}

// Recent returns up to n results, newest first.
func (s *Store) Recent(n int) ([]gesture.Result, error) {
	rows, err := s.db.Query(`
		SELECT cycle_id, captured_at, dsp_us, classification_us, anomaly_us, scores
		FROM results
		ORDER BY captured_at DESC
		LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	out := []gesture.Result{}
	for rows.Next() {
		var (
			id                 string
			at, dsp, cls, anom int64
			scores             string
			r                  gesture.Result
		)
		if err := rows.Scan(&id, &at, &dsp, &cls, &anom, &scores); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		if r.CycleID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("history: bad cycle id %q: %w", id, err)
		}
		if err := json.Unmarshal([]byte(scores), &r.Scores); err != nil {
			return nil, fmt.Errorf("history: scores for %s: %w", id, err)
		}
		r.CapturedAt = time.UnixMicro(at).UTC()
		r.Timing = gesture.Timing{
			DSP:            time.Duration(dsp) * time.Microsecond,
			Classification: time.Duration(cls) * time.Microsecond,
			Anomaly:        time.Duration(anom) * time.Microsecond,
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Count returns how many results are stored.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM results`).Scan(&n)
	return n, err
}

// ShowReading is a no-op; only results are kept.
func (s *Store) ShowReading(proximity.Sample, *gesture.Result) error { return nil }

func (s *Store) ShowResult(r gesture.Result) error { return s.Record(r) }

func (s *Store) ShowFailure(error) error { return nil }
