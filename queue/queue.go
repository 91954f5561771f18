// Package queue is the durable instruction queue: placement instructions
// written by the matcher, dequeued in bounded batches by agents, and
// advanced through a strict four-state lifecycle.
//
// The queue owns instruction status exclusively. Agents only propose
// transitions; Advance validates and commits them. Terminal states are
// frozen: re-delivered reports cannot regress a completed or failed
// instruction, they are rejected with ErrInvalidTransition.
package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hazyhaar/weave/idgen"
)

// Status is the instruction lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusExecuting, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Result is the execution outcome an agent reports with a terminal
// transition. Completed requires PlacementURL; failed requires Error.
type Result struct {
	PlacementURL        string `json:"placement_url,omitempty"`
	InsertionMethod     string `json:"insertion_method,omitempty"`
	VerificationSuccess bool   `json:"verification_success,omitempty"`
	Error               string `json:"error,omitempty"`
	Timestamp           int64  `json:"timestamp,omitempty"`
}

// Instruction is one planned mutation: insert a link with given anchor
// text into the tracked page, preferring blocks that mention one of the
// keywords.
type Instruction struct {
	ID              string   `json:"id"`
	TargetContentID string   `json:"target_content_id"`
	OpportunityID   string   `json:"opportunity_id"`
	Status          Status   `json:"status"`
	TargetURL       string   `json:"target_url"`
	AnchorText      string   `json:"anchor_text"`
	Keywords        []string `json:"keywords"`
	ExecutionResult *Result  `json:"execution_result,omitempty"`
	RetryCount      int      `json:"retry_count"`
	CreatedAt       int64    `json:"created_at"`
	ExecutedAt      int64    `json:"executed_at,omitempty"`
	UpdatedAt       int64    `json:"updated_at"`
}

// DefaultDequeueLimit bounds one agent poll's batch.
const DefaultDequeueLimit = 5

// Queue is the data access layer for placement instructions.
type Queue struct {
	DB    *sql.DB
	newID idgen.Generator
}

// Option configures a Queue.
type Option func(*Queue)

// WithIDGenerator sets a custom ID generator for instruction IDs.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(q *Queue) { q.newID = gen }
}

// New creates a Queue on an already-opened database; apply Schema via
// dbopen.WithSchema at startup.
func New(db *sql.DB, opts ...Option) *Queue {
	q := &Queue{
		DB:    db,
		newID: idgen.Prefixed("ins_", idgen.Default),
	}
	for _, o := range opts {
		o(q)
	}
	return q
}

// Enqueue inserts a new pending instruction on behalf of the matcher and
// returns it.
func (q *Queue) Enqueue(ctx context.Context, targetContentID, opportunityID, targetURL, anchorText string, keywords []string) (*Instruction, error) {
	if targetContentID == "" || targetURL == "" || anchorText == "" {
		return nil, ErrInvalidInput
	}
	if keywords == nil {
		keywords = []string{}
	}
	kw, err := json.Marshal(keywords)
	if err != nil {
		return nil, fmt.Errorf("queue: marshal keywords: %w", err)
	}

	now := time.Now().UnixMilli()
	ins := &Instruction{
		ID:              q.newID(),
		TargetContentID: targetContentID,
		OpportunityID:   opportunityID,
		Status:          StatusPending,
		TargetURL:       targetURL,
		AnchorText:      anchorText,
		Keywords:        keywords,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	_, err = q.DB.ExecContext(ctx,
		`INSERT INTO placement_instructions (id, target_content_id, opportunity_id, status,
		target_url, anchor_text, keywords, retry_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		ins.ID, ins.TargetContentID, ins.OpportunityID, string(ins.Status),
		ins.TargetURL, ins.AnchorText, string(kw), ins.CreatedAt, ins.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("queue: enqueue: %w", err)
	}
	return ins, nil
}

const instructionColumns = `id, target_content_id, opportunity_id, status, target_url,
	anchor_text, keywords, execution_result, retry_count, created_at, executed_at, updated_at`

// Get retrieves an instruction by ID. Returns ErrNotFound if absent.
func (q *Queue) Get(ctx context.Context, id string) (*Instruction, error) {
	row := q.DB.QueryRowContext(ctx,
		`SELECT `+instructionColumns+` FROM placement_instructions WHERE id = ?`, id)
	return scanInstruction(row)
}

// ListPending returns up to limit pending instructions for one target
// content, oldest first. limit <= 0 applies DefaultDequeueLimit.
func (q *Queue) ListPending(ctx context.Context, targetContentID string, limit int) ([]*Instruction, error) {
	if limit <= 0 {
		limit = DefaultDequeueLimit
	}
	rows, err := q.DB.QueryContext(ctx,
		`SELECT `+instructionColumns+` FROM placement_instructions
		WHERE target_content_id = ? AND status = ?
		ORDER BY created_at ASC, id ASC
		LIMIT ?`,
		targetContentID, string(StatusPending), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	instructions := []*Instruction{}
	for rows.Next() {
		ins, err := scanInstruction(rows)
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, ins)
	}
	return instructions, rows.Err()
}

// Advance commits a status transition and returns the updated instruction.
//
// Allowed transitions:
//
//	pending   → executing  (stamps executed_at; no result required)
//	executing → completed  (requires result with a placement URL)
//	executing → failed     (requires result.Error; increments retry_count)
//
// Everything else, including pending to completed, any same-state repeat,
// and any transition out of a terminal state, returns ErrInvalidTransition
// and leaves the row untouched.
func (q *Queue) Advance(ctx context.Context, id string, newStatus Status, result *Result) (*Instruction, error) {
	if !newStatus.Valid() || newStatus == StatusPending {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, string(newStatus))
	}

	ins, err := q.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := validateTransition(ins.Status, newStatus, result); err != nil {
		return nil, err
	}

	now := time.Now().UnixMilli()
	switch newStatus {
	case StatusExecuting:
		_, err = q.DB.ExecContext(ctx,
			`UPDATE placement_instructions SET status = ?, executed_at = ?, updated_at = ? WHERE id = ?`,
			string(StatusExecuting), now, now, id)
	case StatusCompleted:
		res, merr := json.Marshal(result)
		if merr != nil {
			return nil, fmt.Errorf("queue: marshal result: %w", merr)
		}
		_, err = q.DB.ExecContext(ctx,
			`UPDATE placement_instructions SET status = ?, execution_result = ?, updated_at = ? WHERE id = ?`,
			string(StatusCompleted), string(res), now, id)
	case StatusFailed:
		res, merr := json.Marshal(result)
		if merr != nil {
			return nil, fmt.Errorf("queue: marshal result: %w", merr)
		}
		_, err = q.DB.ExecContext(ctx,
			`UPDATE placement_instructions
			SET status = ?, execution_result = ?, retry_count = retry_count + 1, updated_at = ? WHERE id = ?`,
			string(StatusFailed), string(res), now, id)
	}
	if err != nil {
		return nil, fmt.Errorf("queue: advance %s: %w", id, err)
	}

	return q.Get(ctx, id)
}

func validateTransition(from, to Status, result *Result) error {
	if from.Terminal() {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, from)
	}

	switch {
	case from == StatusPending && to == StatusExecuting:
		return nil
	case from == StatusExecuting && to == StatusCompleted:
		if result == nil || result.PlacementURL == "" {
			return fmt.Errorf("%w: completed requires a placement URL", ErrMissingResult)
		}
		return nil
	case from == StatusExecuting && to == StatusFailed:
		if result == nil || result.Error == "" {
			return fmt.Errorf("%w: failed requires an error", ErrMissingResult)
		}
		return nil
	}
	return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, from, to)
}

func scanInstruction(row interface{ Scan(...any) error }) (*Instruction, error) {
	var ins Instruction
	var status, keywords string
	var result sql.NullString
	var executedAt sql.NullInt64
	err := row.Scan(&ins.ID, &ins.TargetContentID, &ins.OpportunityID, &status,
		&ins.TargetURL, &ins.AnchorText, &keywords, &result, &ins.RetryCount,
		&ins.CreatedAt, &executedAt, &ins.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	ins.Status = Status(status)
	if err := json.Unmarshal([]byte(keywords), &ins.Keywords); err != nil {
		return nil, fmt.Errorf("queue: corrupt keywords for %s: %w", ins.ID, err)
	}
	if result.Valid && result.String != "" {
		var r Result
		if err := json.Unmarshal([]byte(result.String), &r); err != nil {
			return nil, fmt.Errorf("queue: corrupt result for %s: %w", ins.ID, err)
		}
		ins.ExecutionResult = &r
	}
	if executedAt.Valid {
		ins.ExecutedAt = executedAt.Int64
	}
	return &ins, nil
}
