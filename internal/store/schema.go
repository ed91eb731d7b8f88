package store

// schema is applied with CREATE TABLE IF NOT EXISTS so opening an existing
// database is idempotent; new columns land as migrations (migrations.go)
// the same way the teacher's sqlite layer grows its issues table over time.
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
    name TEXT PRIMARY KEY,
    workspace_path TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'creating',
    lifecycle_state TEXT NOT NULL DEFAULT 'created',
    tab_label TEXT DEFAULT '',
    branch_label TEXT DEFAULT '',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_synced DATETIME,
    metadata TEXT NOT NULL DEFAULT '{}',
    worker_error TEXT DEFAULT '',
    removal_failed_reason TEXT DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);

CREATE TABLE IF NOT EXISTS queue_entries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    workspace TEXT NOT NULL,
    bead_id TEXT DEFAULT '',
    priority INTEGER NOT NULL DEFAULT 5,
    status TEXT NOT NULL DEFAULT 'pending',
    added_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    started_at DATETIME,
    completed_at DATETIME,
    error_message TEXT DEFAULT '',
    agent_id TEXT DEFAULT '',
    dedupe_key TEXT NOT NULL,
    head_sha TEXT DEFAULT '',
    tested_against_sha TEXT DEFAULT '',
    attempt_count INTEGER NOT NULL DEFAULT 0,
    max_attempts INTEGER NOT NULL DEFAULT 3,
    rebase_count INTEGER NOT NULL DEFAULT 0,
    last_rebase_at DATETIME,
    parent_workspace TEXT DEFAULT '',
    stack_depth INTEGER NOT NULL DEFAULT 0,
    stack_root TEXT DEFAULT '',
    stack_merge_state TEXT NOT NULL DEFAULT 'independent',
    lock_expires_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_queue_status ON queue_entries(status);
CREATE INDEX IF NOT EXISTS idx_queue_priority_added ON queue_entries(priority ASC, added_at ASC);
CREATE INDEX IF NOT EXISTS idx_queue_parent ON queue_entries(parent_workspace);

-- INV-QUEUE-001: at most one active (non-terminal) entry per dedupe_key.
-- Enforced with a partial unique index rather than a plain UNIQUE constraint
-- so terminal rows (Merged/FailedTerminal) don't block re-submission.
CREATE UNIQUE INDEX IF NOT EXISTS idx_queue_dedupe_active
    ON queue_entries(dedupe_key)
    WHERE status NOT IN ('merged', 'failed_terminal');

CREATE TABLE IF NOT EXISTS queue_dependents (
    entry_id INTEGER NOT NULL,
    dependent_workspace TEXT NOT NULL,
    PRIMARY KEY (entry_id, dependent_workspace),
    FOREIGN KEY (entry_id) REFERENCES queue_entries(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS queue_audit_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    entry_id INTEGER NOT NULL,
    from_state TEXT NOT NULL,
    to_state TEXT NOT NULL,
    at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    actor TEXT DEFAULT '',
    reason TEXT DEFAULT '',
    FOREIGN KEY (entry_id) REFERENCES queue_entries(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_audit_entry ON queue_audit_events(entry_id, id);

CREATE TABLE IF NOT EXISTS processing_lock (
    singleton INTEGER PRIMARY KEY CHECK (singleton = 1),
    entry_id INTEGER,
    agent_id TEXT,
    expires_at DATETIME
);

CREATE TABLE IF NOT EXISTS workspace_locks (
    session_name TEXT PRIMARY KEY,
    agent_id TEXT NOT NULL,
    acquired_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    reason TEXT DEFAULT ''
);

CREATE TABLE IF NOT EXISTS agents (
    agent_id TEXT PRIMARY KEY,
    registered_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    last_seen DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    current_session TEXT DEFAULT '',
    current_command TEXT DEFAULT '',
    actions_count INTEGER NOT NULL DEFAULT 0,
    capabilities TEXT DEFAULT ''
);

CREATE TABLE IF NOT EXISTS checkpoints (
    id TEXT PRIMARY KEY,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    state TEXT NOT NULL DEFAULT 'pending',
    command TEXT DEFAULT '',
    session_name TEXT DEFAULT '',
    pre_revision TEXT DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_state ON checkpoints(state);

CREATE TABLE IF NOT EXISTS schema_migrations (
    name TEXT PRIMARY KEY,
    applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`
