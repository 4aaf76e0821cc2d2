// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists screening audit entries and ground-truth labels in
// a SQLite ledger. The ledger is the source of labeled history for the
// offline calibrator, weight, and threshold fitting commands.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/screening-engine/pkg/types"
)

const (
	dbFile            = "screening.db"
	defaultMaxResults = 1000
)

// Store manages the screening ledger database.
type Store struct {
	db  *sql.DB
	dir string
}

// Open opens or creates the ledger at cfg.Dir/screening.db and creates the
// schema if it does not exist.
func Open(cfg types.StoreConfig) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: dir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dir returns the directory holding the database and exports.
func (s *Store) Dir() string { return s.dir }

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			criteria_id TEXT,
			criteria_version TEXT,
			seed INTEGER,
			thresholds TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS audit_entries (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(id),
			record_id TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			decision TEXT NOT NULL,
			tier INTEGER NOT NULL,
			final_score REAL,
			ensemble_confidence REAL,
			entry TEXT NOT NULL,
			UNIQUE(run_id, record_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_record_id ON audit_entries(record_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_decision ON audit_entries(decision)`,
		`CREATE TABLE IF NOT EXISTS labels (
			record_id TEXT PRIMARY KEY,
			include INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RecordEntries writes audit entries in one transaction. Entries of a run
// not seen before create the run row from the first entry. Re-recording a
// (run, record) pair replaces the earlier entry.
func (s *Store) RecordEntries(ctx context.Context, entries []types.AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	runStmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO runs (id, started_at, criteria_id, criteria_version, seed, thresholds)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing run insert: %w", err)
	}
	defer runStmt.Close()

	entryStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO audit_entries (run_id, record_id, timestamp, decision, tier, final_score, ensemble_confidence, entry)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, record_id) DO UPDATE SET
			timestamp=excluded.timestamp, decision=excluded.decision, tier=excluded.tier,
			final_score=excluded.final_score, ensemble_confidence=excluded.ensemble_confidence,
			entry=excluded.entry`)
	if err != nil {
		return fmt.Errorf("preparing entry insert: %w", err)
	}
	defer entryStmt.Close()

	for _, e := range entries {
		if e.RunID == "" || e.RecordID == "" {
			return errors.New("audit entry requires run_id and record_id")
		}
		thresholdsJSON, _ := json.Marshal(e.Thresholds)
		ts := e.Timestamp.UTC().Format(time.RFC3339Nano)
		if _, err := runStmt.ExecContext(ctx,
			e.RunID, ts, e.CriteriaID, e.CriteriaVersion, e.Seed, string(thresholdsJSON),
		); err != nil {
			return fmt.Errorf("inserting run %s: %w", e.RunID, err)
		}

		entryJSON, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("encoding entry %s: %w", e.RecordID, err)
		}
		if _, err := entryStmt.ExecContext(ctx,
			e.RunID, e.RecordID, ts, string(e.Decision), int(e.Tier),
			e.FinalScore, e.EnsembleConfidence, string(entryJSON),
		); err != nil {
			return fmt.Errorf("inserting entry %s: %w", e.RecordID, err)
		}
	}
	return tx.Commit()
}

// QueryOptions filters audit entries.
type QueryOptions struct {
	RunID    string
	RecordID string
	Decision types.Decision

	// Tier filters by router tier when non-nil.
	Tier *types.Tier

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// Entries returns audit entries matching opts, oldest first.
func (s *Store) Entries(ctx context.Context, opts QueryOptions) ([]types.AuditEntry, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = defaultMaxResults
	}

	var (
		qb   strings.Builder
		args []any
	)
	qb.WriteString(`SELECT entry FROM audit_entries WHERE 1=1`)
	if opts.RunID != "" {
		qb.WriteString(` AND run_id = ?`)
		args = append(args, opts.RunID)
	}
	if opts.RecordID != "" {
		qb.WriteString(` AND record_id = ?`)
		args = append(args, opts.RecordID)
	}
	if opts.Decision != "" {
		qb.WriteString(` AND decision = ?`)
		args = append(args, string(opts.Decision))
	}
	if opts.Tier != nil {
		qb.WriteString(` AND tier = ?`)
		args = append(args, int(*opts.Tier))
	}
	qb.WriteString(` ORDER BY rowid LIMIT ?`)
	args = append(args, maxResults)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	var entries []types.AuditEntry
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		var e types.AuditEntry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decoding audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SetLabels upserts ground-truth labels and returns how many were written.
func (s *Store) SetLabels(ctx context.Context, labels []types.Label) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO labels (record_id, include, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(record_id) DO UPDATE SET include=excluded.include, updated_at=excluded.updated_at`)
	if err != nil {
		return 0, fmt.Errorf("preparing label insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	n := 0
	for _, l := range labels {
		if l.RecordID == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, l.RecordID, l.Include, now); err != nil {
			return 0, fmt.Errorf("inserting label %s: %w", l.RecordID, err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// Labels returns every stored label keyed by record id.
func (s *Store) Labels(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record_id, include FROM labels`)
	if err != nil {
		return nil, fmt.Errorf("querying labels: %w", err)
	}
	defer rows.Close()

	labels := make(map[string]bool)
	for rows.Next() {
		var id string
		var include bool
		if err := rows.Scan(&id, &include); err != nil {
			return nil, fmt.Errorf("scanning label: %w", err)
		}
		labels[id] = include
	}
	return labels, rows.Err()
}

// History returns the model outputs of every labeled record, one item per
// record, ordered by record id. When runID is empty the most recent entry
// of each record is used.
func (s *Store) History(ctx context.Context, runID string) ([]types.LabeledOutputs, error) {
	query := `SELECT a.record_id, a.entry, l.include
		FROM audit_entries a
		JOIN labels l ON l.record_id = a.record_id
		WHERE a.rowid IN (SELECT max(rowid) FROM audit_entries GROUP BY record_id)
		ORDER BY a.record_id`
	args := []any{}
	if runID != "" {
		query = `SELECT a.record_id, a.entry, l.include
			FROM audit_entries a
			JOIN labels l ON l.record_id = a.record_id
			WHERE a.run_id = ?
			ORDER BY a.record_id`
		args = append(args, runID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var history []types.LabeledOutputs
	for rows.Next() {
		var (
			id, raw string
			include bool
			e       types.AuditEntry
		)
		if err := rows.Scan(&id, &raw, &include); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return nil, fmt.Errorf("decoding audit entry %s: %w", id, err)
		}
		history = append(history, types.LabeledOutputs{RecordID: id, Outputs: e.Outputs, Include: include})
	}
	return history, rows.Err()
}

// RunSummary counts the decisions of one run.
type RunSummary struct {
	RunID           string                 `json:"run_id" yaml:"run_id"`
	StartedAt       time.Time              `json:"started_at" yaml:"started_at"`
	CriteriaID      string                 `json:"criteria_id" yaml:"criteria_id"`
	CriteriaVersion string                 `json:"criteria_version" yaml:"criteria_version"`
	Seed            int64                  `json:"seed" yaml:"seed"`
	Records         int                    `json:"records" yaml:"records"`
	Decisions       map[types.Decision]int `json:"decisions" yaml:"decisions"`
}

// Runs returns a summary of every run, newest first.
func (s *Store) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.started_at, r.criteria_id, r.criteria_version, r.seed, a.decision, count(a.rowid)
		 FROM runs r
		 LEFT JOIN audit_entries a ON a.run_id = r.id
		 GROUP BY r.id, a.decision
		 ORDER BY r.started_at DESC, r.id`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	index := make(map[string]int)
	for rows.Next() {
		var (
			id, started     string
			critID, critVer sql.NullString
			seed            sql.NullInt64
			decision        sql.NullString
			count           int
		)
		if err := rows.Scan(&id, &started, &critID, &critVer, &seed, &decision, &count); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		i, ok := index[id]
		if !ok {
			ts, _ := time.Parse(time.RFC3339Nano, started)
			runs = append(runs, RunSummary{
				RunID:           id,
				StartedAt:       ts,
				CriteriaID:      critID.String,
				CriteriaVersion: critVer.String,
				Seed:            seed.Int64,
				Decisions:       make(map[types.Decision]int),
			})
			i = len(runs) - 1
			index[id] = i
		}
		if decision.Valid {
			runs[i].Decisions[types.Decision(decision.String)] += count
			runs[i].Records += count
		}
	}
	return runs, rows.Err()
}
