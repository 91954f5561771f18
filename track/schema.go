package track

// Schema contains the DDL for tracked content. Timestamps are INTEGER
// milliseconds since epoch. The content hash is not stored: it is cheap to
// recompute and storing it alongside the content it derives from invites
// drift.
const Schema = `
CREATE TABLE IF NOT EXISTS tracked_content (
    id              TEXT PRIMARY KEY,
    owner_id        TEXT NOT NULL,
    url             TEXT NOT NULL,
    title           TEXT NOT NULL DEFAULT '',
    referrer_url    TEXT NOT NULL DEFAULT '',
    content         TEXT NOT NULL DEFAULT '',
    keywords        TEXT NOT NULL DEFAULT '[]',
    keyword_density TEXT NOT NULL DEFAULT '{}',
    created_at      INTEGER NOT NULL,
    updated_at      INTEGER NOT NULL,
    UNIQUE (owner_id, url)
);
CREATE INDEX IF NOT EXISTS idx_tracked_owner ON tracked_content(owner_id);
`
