// Package auditstore provides optional persistence for completed Audit
// Results. It is a supplementary feature: spec.md's core API is in-memory
// and stateless (§4.8 "No further I/O"), but a front end that wants
// history — "show me every past finding for this contract" — needs
// somewhere durable to put results. Disabled unless a caller opens a Store.
package auditstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/auditcore/auditcore/internal/logging"
	"github.com/auditcore/auditcore/pkg/audit"
)

// CurrentSchemaVersion tracks the on-disk schema. v1: audits + findings
// tables, findings indexed by stable id.
const CurrentSchemaVersion = 1

// Store persists Audit Results to a local SQLite database.
type Store struct {
	db *sql.DB
}

// Open creates (if needed) and opens the database at path, running schema
// setup idempotently.
func Open(path string) (*Store, error) {
	log := logging.For(logging.CategoryAudit)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("auditstore: create dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("auditstore: open %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("audit store opened", zap.String("path", path))
	return s, nil
}

func (s *Store) initialize() error {
	const schema = `
CREATE TABLE IF NOT EXISTS audits (
	audit_id    TEXT PRIMARY KEY,
	timestamp   TEXT NOT NULL,
	path        TEXT NOT NULL,
	mode        TEXT NOT NULL,
	duration_ms INTEGER NOT NULL,
	result_json TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS findings (
	finding_id        TEXT NOT NULL,
	audit_id          TEXT NOT NULL REFERENCES audits(audit_id),
	weakness          TEXT NOT NULL,
	severity          TEXT NOT NULL,
	file              TEXT NOT NULL,
	PRIMARY KEY (finding_id, audit_id)
);
CREATE INDEX IF NOT EXISTS idx_findings_finding_id ON findings(finding_id);
CREATE INDEX IF NOT EXISTS idx_findings_file ON findings(file);
`
	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("auditstore: schema init: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// Save persists one completed Audit Result, including its full JSON
// rendering so a caller can retrieve the exact original document later.
func (s *Store) Save(ctx context.Context, result audit.Result) error {
	body, err := audit.ToJSON(result)
	if err != nil {
		return fmt.Errorf("auditstore: marshal result: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("auditstore: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO audits (audit_id, timestamp, path, mode, duration_ms, result_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		result.AuditID, result.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z"),
		result.Input.Path, string(result.Mode), result.Duration.Milliseconds(), string(body))
	if err != nil {
		return fmt.Errorf("auditstore: insert audit: %w", err)
	}

	for _, f := range result.Findings {
		_, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO findings (finding_id, audit_id, weakness, severity, file)
			 VALUES (?, ?, ?, ?, ?)`,
			f.ID, result.AuditID, string(f.Weakness), string(f.Severity), f.Location.File)
		if err != nil {
			return fmt.Errorf("auditstore: insert finding: %w", err)
		}
	}

	return tx.Commit()
}

// HistoryEntry is one past audit's identity, for listing without
// deserializing the full result.
type HistoryEntry struct {
	AuditID   string
	Timestamp string
	Path      string
	Mode      string
}

// History returns past audits for the given contract path, most recent first.
func (s *Store) History(ctx context.Context, path string) ([]HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT audit_id, timestamp, path, mode FROM audits WHERE path = ? ORDER BY timestamp DESC`, path)
	if err != nil {
		return nil, fmt.Errorf("auditstore: query history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.AuditID, &e.Timestamp, &e.Path, &e.Mode); err != nil {
			return nil, fmt.Errorf("auditstore: scan history row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// FindingHistory returns every audit_id under which the given stable
// finding id has ever been reported, most recent first — "has this
// specific vulnerability been flagged before, and when."
func (s *Store) FindingHistory(ctx context.Context, findingID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.audit_id FROM findings f JOIN audits a ON a.audit_id = f.audit_id
		 WHERE f.finding_id = ? ORDER BY a.timestamp DESC`, findingID)
	if err != nil {
		return nil, fmt.Errorf("auditstore: query finding history: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var auditID string
		if err := rows.Scan(&auditID); err != nil {
			return nil, fmt.Errorf("auditstore: scan finding history row: %w", err)
		}
		out = append(out, auditID)
	}
	return out, rows.Err()
}

// LoadJSON retrieves the exact stored JSON rendering of a past audit.
func (s *Store) LoadJSON(ctx context.Context, auditID string) ([]byte, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT result_json FROM audits WHERE audit_id = ?`, auditID).Scan(&body)
	if err != nil {
		return nil, fmt.Errorf("auditstore: load %s: %w", auditID, err)
	}
	return []byte(body), nil
}
