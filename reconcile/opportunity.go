package reconcile

import (
	"context"
	"database/sql"
	"time"
)

// Opportunity is the downstream record an instruction fulfills. Scoring
// and partner selection happen outside weave; this store only persists
// the slice of the record the reconciler owns: the placed flag and its
// timestamp.
type Opportunity struct {
	ID                   string `json:"id"`
	OwnerID              string `json:"owner_id"`
	TargetDomain         string `json:"target_domain"`
	Status               string `json:"status"`
	PlacementAttemptedAt int64  `json:"placement_attempted_at,omitempty"`
	CreatedAt            int64  `json:"created_at"`
	UpdatedAt            int64  `json:"updated_at"`
}

// OpportunitySchema contains the DDL for the opportunities table.
const OpportunitySchema = `
CREATE TABLE IF NOT EXISTS opportunities (
    id                     TEXT PRIMARY KEY,
    owner_id               TEXT NOT NULL DEFAULT '',
    target_domain          TEXT NOT NULL DEFAULT '',
    status                 TEXT NOT NULL DEFAULT 'open',
    placement_attempted_at INTEGER,
    created_at             INTEGER NOT NULL,
    updated_at             INTEGER NOT NULL
);
`

// OpportunityStore is the data access layer for opportunities.
type OpportunityStore struct {
	DB *sql.DB
}

// NewOpportunityStore creates a store from an already-opened database.
func NewOpportunityStore(db *sql.DB) *OpportunityStore {
	return &OpportunityStore{DB: db}
}

// Insert adds an opportunity. Used by the matcher intake side and by
// tests; the reconciler itself never creates opportunities.
func (s *OpportunityStore) Insert(ctx context.Context, o *Opportunity) error {
	now := time.Now().UnixMilli()
	if o.CreatedAt == 0 {
		o.CreatedAt = now
	}
	if o.UpdatedAt == 0 {
		o.UpdatedAt = now
	}
	if o.Status == "" {
		o.Status = "open"
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO opportunities (id, owner_id, target_domain, status, placement_attempted_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.OwnerID, o.TargetDomain, o.Status, nullableInt(o.PlacementAttemptedAt), o.CreatedAt, o.UpdatedAt)
	return err
}

// Get retrieves an opportunity by ID, or nil if absent.
func (s *OpportunityStore) Get(ctx context.Context, id string) (*Opportunity, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, owner_id, target_domain, status, placement_attempted_at, created_at, updated_at
		FROM opportunities WHERE id = ?`, id)

	var o Opportunity
	var attempted sql.NullInt64
	err := row.Scan(&o.ID, &o.OwnerID, &o.TargetDomain, &o.Status, &attempted, &o.CreatedAt, &o.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if attempted.Valid {
		o.PlacementAttemptedAt = attempted.Int64
	}
	return &o, nil
}

// MarkPlaced sets the opportunity to placed and stamps
// placement_attempted_at. Returns false if no such opportunity exists;
// the record lives downstream, so absence is tolerated, not fatal.
func (s *OpportunityStore) MarkPlaced(ctx context.Context, id string, at int64) (bool, error) {
	if at == 0 {
		at = time.Now().UnixMilli()
	}
	res, err := s.DB.ExecContext(ctx,
		`UPDATE opportunities SET status = 'placed', placement_attempted_at = ?, updated_at = ? WHERE id = ?`,
		at, time.Now().UnixMilli(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func nullableInt(v int64) any {
	if v == 0 {
		return nil
	}
	return v
}
