package audit

// Schema contains the DDL for the audit trail. placement_attempts is
// append-only: no UPDATE statement in this package touches it.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_events (
    event_id    TEXT PRIMARY KEY,
    event_type  TEXT NOT NULL,
    entity_type TEXT NOT NULL DEFAULT '',
    entity_id   TEXT NOT NULL DEFAULT '',
    owner_id    TEXT NOT NULL DEFAULT '',
    action      TEXT NOT NULL DEFAULT '',
    details     TEXT NOT NULL DEFAULT '',
    success     INTEGER NOT NULL DEFAULT 1,
    created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_events_entity ON audit_events(entity_type, entity_id);

CREATE TABLE IF NOT EXISTS placement_attempts (
    id                     TEXT PRIMARY KEY,
    opportunity_id         TEXT NOT NULL,
    target_domain          TEXT NOT NULL DEFAULT '',
    placement_method       TEXT NOT NULL DEFAULT '',
    success                INTEGER NOT NULL DEFAULT 0,
    verification_attempted INTEGER NOT NULL DEFAULT 0,
    verification_success   INTEGER NOT NULL DEFAULT 0,
    attempted_at           INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_opportunity ON placement_attempts(opportunity_id);
`
