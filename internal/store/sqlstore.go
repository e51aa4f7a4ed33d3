package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"riskgraph/pkg/types"

	_ "modernc.org/sqlite"
)

// timeLayout has a fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// nullStr converts a sql.NullString to a plain string (empty if null).
func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// currentSchemaVersion is the target schema version for this build.
const currentSchemaVersion = schemaVersionV1

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory (e.g. .riskgraph) if it does not exist.
func Open(path string) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows one writer; concurrent runs persist through one connection.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableCount == 0 {
		return s.freshInstall()
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return s.freshInstall()
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != currentSchemaVersion {
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

func (s *SqlStore) freshInstall() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(schemaV1); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.Exec("INSERT INTO schema_version(version) VALUES(?)", currentSchemaVersion); err != nil {
		return fmt.Errorf("set schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SqlStore) Close() error {
	return s.db.Close()
}

// --- Decisions ---

func (s *SqlStore) SaveDecision(rec *types.DecisionRecord) error {
	if rec == nil {
		return errors.New("decision record is nil")
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO decisions(trace_id, transaction_id, customer_id, source, decision, confidence, escalated, payload, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(trace_id) DO UPDATE SET payload = excluded.payload, decision = excluded.decision,
		   confidence = excluded.confidence, escalated = excluded.escalated`,
		rec.TraceID, rec.TransactionID, rec.CustomerID, string(rec.Source), string(rec.Outcome.Decision),
		rec.Outcome.Confidence, rec.Outcome.Escalated, payload, formatTime(rec.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

func (s *SqlStore) GetDecision(traceID string) (*types.DecisionRecord, error) {
	var payload []byte
	err := s.db.QueryRow("SELECT payload FROM decisions WHERE trace_id = ?", traceID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get decision: %w", err)
	}
	var rec types.DecisionRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal decision: %w", err)
	}
	return &rec, nil
}

// ListDecisions returns the newest decisions first; limit <= 0 means all.
func (s *SqlStore) ListDecisions(limit int) ([]*types.DecisionRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query("SELECT payload FROM decisions ORDER BY created_at DESC, rowid DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()
	var out []*types.DecisionRecord
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		var rec types.DecisionRecord
		if err := json.Unmarshal(payload, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal decision: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}

// --- Audit traces ---

func (s *SqlStore) SaveTrace(trace *types.AuditTrace) error {
	if trace == nil {
		return errors.New("audit trace is nil")
	}
	payload, err := json.Marshal(trace)
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}
	_, err = s.db.Exec(
		`INSERT INTO audit_traces(trace_id, transaction_id, source, error, payload, started_at, finished_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(trace_id) DO UPDATE SET error = excluded.error, payload = excluded.payload,
		   finished_at = excluded.finished_at`,
		trace.TraceID, trace.TransactionID, string(trace.Source), nilIfEmpty(trace.Error), payload,
		formatTime(trace.StartedAt), formatTime(trace.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("insert trace: %w", err)
	}
	return nil
}

func (s *SqlStore) GetTrace(traceID string) (*types.AuditTrace, error) {
	var payload []byte
	err := s.db.QueryRow("SELECT payload FROM audit_traces WHERE trace_id = ?", traceID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get trace: %w", err)
	}
	var trace types.AuditTrace
	if err := json.Unmarshal(payload, &trace); err != nil {
		return nil, fmt.Errorf("unmarshal trace: %w", err)
	}
	return &trace, nil
}

// --- Review cases ---

const reviewColumns = `id, trace_id, transaction_id, customer_id, proposed_decision, confidence,
	status, assigned_to, human_decision, notes, created_at, resolved_at`

// OpenReview opens a case for rec. A second call for the same trace returns
// the existing case.
func (s *SqlStore) OpenReview(rec *types.DecisionRecord) (*ReviewCase, error) {
	if rec == nil {
		return nil, errors.New("decision record is nil")
	}
	proposed := rec.Outcome.ProposedDecision
	if proposed == "" {
		proposed = rec.Outcome.Decision
	}
	_, err := s.db.Exec(
		`INSERT INTO review_cases(id, trace_id, transaction_id, customer_id, proposed_decision, confidence, status, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(trace_id) DO NOTHING`,
		uuid.NewString(), rec.TraceID, rec.TransactionID, rec.CustomerID, string(proposed),
		rec.Outcome.Confidence, string(ReviewOpen), formatTime(s.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("insert review case: %w", err)
	}
	return s.scanReview(s.db.QueryRow("SELECT "+reviewColumns+" FROM review_cases WHERE trace_id = ?", rec.TraceID))
}

func (s *SqlStore) GetReview(id string) (*ReviewCase, error) {
	rc, err := s.scanReview(s.db.QueryRow("SELECT "+reviewColumns+" FROM review_cases WHERE id = ?", id))
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return rc, err
}

// ListReviews returns cases with status, oldest first; empty status means all.
func (s *SqlStore) ListReviews(status ReviewStatus) ([]*ReviewCase, error) {
	query := "SELECT " + reviewColumns + " FROM review_cases"
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY created_at, rowid"
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list review cases: %w", err)
	}
	defer rows.Close()
	var out []*ReviewCase
	for rows.Next() {
		rc, err := s.scanReview(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

func (s *SqlStore) ResolveReview(id string, res Resolution) (*ReviewCase, error) {
	if err := res.Validate(); err != nil {
		return nil, err
	}
	result, err := s.db.Exec(
		`UPDATE review_cases SET status = ?, human_decision = ?, assigned_to = ?, notes = ?, resolved_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		string(ReviewResolved), string(res.Decision), nilIfEmpty(res.Reviewer), nilIfEmpty(res.Notes),
		formatTime(s.now()), id, string(ReviewOpen), string(ReviewInProgress),
	)
	if err != nil {
		return nil, fmt.Errorf("resolve review case: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("resolve review case: %w", err)
	}
	if n == 0 {
		existing, err := s.GetReview(id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("review case %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("review case %s: %w", id, ErrAlreadyResolved)
	}
	return s.GetReview(id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SqlStore) scanReview(row rowScanner) (*ReviewCase, error) {
	var rc ReviewCase
	var proposed, status, createdAt string
	var assigned, human, notes, resolvedAt sql.NullString
	err := row.Scan(&rc.ID, &rc.TraceID, &rc.TransactionID, &rc.CustomerID, &proposed, &rc.Confidence,
		&status, &assigned, &human, &notes, &createdAt, &resolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan review case: %w", err)
	}
	rc.ProposedDecision = types.Decision(proposed)
	rc.Status = ReviewStatus(status)
	rc.AssignedTo = nullStr(assigned)
	rc.HumanDecision = types.Decision(nullStr(human))
	rc.Notes = nullStr(notes)
	rc.CreatedAt = parseTime(createdAt)
	if resolvedAt.Valid {
		t := parseTime(resolvedAt.String)
		rc.ResolvedAt = &t
	}
	return &rc, nil
}
