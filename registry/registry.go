// Package registry is the SQLite store shared by the strategy lab: past run
// records, their metrics, and risk incidents. The risk subsystem reads the
// runs/metrics tables and appends to incidents; run records themselves are
// written by the orchestration side.
package registry

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Registry wraps a single SQLite connection. Callers that coordinate across
// processes open a fresh Registry per operation rather than sharing one.
type Registry struct {
	db *sql.DB
}

// Run is one row of the runs table. Timestamps are UTC ISO-8601 strings,
// matching how the orchestrator records them; an empty StartedUTC sorts last
// in recency queries.
type Run struct {
	ID          string
	Kind        string
	StartedUTC  string
	FinishedUTC string
	Status      string
}

// Incident is one row of the incidents table.
type Incident struct {
	ID             string
	RunID          string
	Severity       string
	Description    string
	LogExcerptPath string
	CreatedUTC     string
}

// Open opens (creating if necessary) the registry at path and ensures the
// schema exists. Schema creation is idempotent.
func Open(path string) (*Registry, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}

	return &Registry{db: db}, nil
}

func (r *Registry) RecordRun(run Run) error {
	if run.StartedUTC == "" {
		run.StartedUTC = time.Now().UTC().Format(time.RFC3339)
	}
	_, err := r.db.Exec(`
		INSERT INTO runs (id, kind, started_utc, finished_utc, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_utc = excluded.finished_utc,
			status = excluded.status`,
		run.ID, run.Kind, run.StartedUTC, run.FinishedUTC, run.Status,
	)
	return err
}

// RecordMetric upserts a (run_id, key) metric value.
func (r *Registry) RecordMetric(runID, key string, value float64) error {
	_, err := r.db.Exec(`
		INSERT INTO metrics (run_id, key, value)
		VALUES (?, ?, ?)
		ON CONFLICT(run_id, key) DO UPDATE SET value = excluded.value`,
		runID, key, value,
	)
	return err
}

func (r *Registry) InsertIncident(inc Incident) error {
	_, err := r.db.Exec(`
		INSERT INTO incidents (id, run_id, severity, description, log_excerpt_path, created_utc)
		VALUES (?, ?, ?, ?, ?, ?)`,
		inc.ID, inc.RunID, inc.Severity, inc.Description, inc.LogExcerptPath, inc.CreatedUTC,
	)
	return err
}

func (r *Registry) Close() error {
	return r.db.Close()
}
