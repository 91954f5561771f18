package queue

// Schema contains the DDL for the instruction queue. Timestamps are
// INTEGER milliseconds since epoch; executed_at stays NULL until the
// first pending→executing transition.
const Schema = `
CREATE TABLE IF NOT EXISTS placement_instructions (
    id                TEXT PRIMARY KEY,
    target_content_id TEXT NOT NULL,
    opportunity_id    TEXT NOT NULL DEFAULT '',
    status            TEXT NOT NULL DEFAULT 'pending',
    target_url        TEXT NOT NULL,
    anchor_text       TEXT NOT NULL,
    keywords          TEXT NOT NULL DEFAULT '[]',
    execution_result  TEXT,
    retry_count       INTEGER NOT NULL DEFAULT 0,
    created_at        INTEGER NOT NULL,
    executed_at       INTEGER,
    updated_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_instructions_pending
    ON placement_instructions(target_content_id, status, created_at);
`
