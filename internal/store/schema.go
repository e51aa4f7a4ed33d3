package store

// schemaVersionV1 is the current schema.
const schemaVersionV1 = 1

// schemaV1 stores each record as a JSON payload next to the columns the
// queries filter and sort on.
var schemaV1 = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS decisions (
	trace_id       TEXT PRIMARY KEY,
	transaction_id TEXT NOT NULL,
	customer_id    TEXT NOT NULL,
	source         TEXT NOT NULL,
	decision       TEXT NOT NULL,
	confidence     REAL NOT NULL,
	escalated      INTEGER NOT NULL DEFAULT 0,
	payload        BLOB NOT NULL,
	created_at     TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_tx ON decisions(transaction_id);

CREATE TABLE IF NOT EXISTS audit_traces (
	trace_id       TEXT PRIMARY KEY,
	transaction_id TEXT NOT NULL,
	source         TEXT NOT NULL,
	error          TEXT,
	payload        BLOB NOT NULL,
	started_at     TEXT NOT NULL,
	finished_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS review_cases (
	id                TEXT PRIMARY KEY,
	trace_id          TEXT NOT NULL UNIQUE,
	transaction_id    TEXT NOT NULL,
	customer_id       TEXT NOT NULL,
	proposed_decision TEXT NOT NULL,
	confidence        REAL NOT NULL,
	status            TEXT NOT NULL DEFAULT 'OPEN',
	assigned_to       TEXT,
	human_decision    TEXT,
	notes             TEXT,
	created_at        TEXT NOT NULL,
	resolved_at       TEXT
);
CREATE INDEX IF NOT EXISTS idx_review_status ON review_cases(status);
`
