// Package reconcile validates agent status reports and commits their
// consequences: the queue transition itself, the downstream opportunity
// update, and the append-only attempt trail.
package reconcile

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"github.com/hazyhaar/weave/audit"
	"github.com/hazyhaar/weave/queue"
	"github.com/hazyhaar/weave/track"
)

// Reconciler applies reported status transitions.
type Reconciler struct {
	queue   *queue.Queue
	opps    *OpportunityStore
	content *track.Store
	audit   *audit.Logger
	logger  *slog.Logger
}

// New creates a Reconciler. content may be nil; the target domain then
// falls back to the placement URL host in attempt rows.
func New(q *queue.Queue, opps *OpportunityStore, content *track.Store, auditLog *audit.Logger, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{queue: q, opps: opps, content: content, audit: auditLog, logger: logger}
}

// Report validates and commits one proposed transition, returning the
// updated instruction. The queue's state machine does the validation;
// this layer adds the side effects that only terminal transitions carry:
//
//	completed → attempt row (success), opportunity marked placed when
//	            verification succeeded
//	failed    → attempt row (failure); the opportunity is untouched
//
// An invalid transition returns the queue's error untouched and performs
// no side effects.
func (r *Reconciler) Report(ctx context.Context, instructionID string, status queue.Status, result *queue.Result) (*queue.Instruction, error) {
	ins, err := r.queue.Advance(ctx, instructionID, status, result)
	if err != nil {
		return nil, err
	}

	switch status {
	case queue.StatusCompleted:
		r.onCompleted(ctx, ins, result)
	case queue.StatusFailed:
		r.onFailed(ctx, ins, result)
	}

	r.audit.LogEvent(ctx, audit.Event{
		EventType:  "instruction_status_reported",
		EntityType: "placement_instruction",
		EntityID:   ins.ID,
		Action:     string(status),
		Success:    status != queue.StatusFailed,
	})
	return ins, nil
}

func (r *Reconciler) onCompleted(ctx context.Context, ins *queue.Instruction, result *queue.Result) {
	if result.VerificationSuccess && ins.OpportunityID != "" {
		placed, err := r.opps.MarkPlaced(ctx, ins.OpportunityID, time.Now().UnixMilli())
		if err != nil {
			r.logger.Error("reconcile: mark opportunity placed failed", "opportunity_id", ins.OpportunityID, "error", err)
		} else if !placed {
			r.logger.Warn("reconcile: opportunity not found", "opportunity_id", ins.OpportunityID)
		}
	}

	err := r.audit.AppendAttempt(ctx, audit.Attempt{
		OpportunityID:         ins.OpportunityID,
		TargetDomain:          r.targetDomain(ctx, ins, result),
		PlacementMethod:       result.InsertionMethod,
		Success:               true,
		VerificationAttempted: true,
		VerificationSuccess:   result.VerificationSuccess,
		AttemptedAt:           result.Timestamp,
	})
	if err != nil {
		r.logger.Error("reconcile: append attempt failed", "instruction_id", ins.ID, "error", err)
	}
}

func (r *Reconciler) onFailed(ctx context.Context, ins *queue.Instruction, result *queue.Result) {
	err := r.audit.AppendAttempt(ctx, audit.Attempt{
		OpportunityID:         ins.OpportunityID,
		TargetDomain:          r.targetDomain(ctx, ins, result),
		Success:               false,
		VerificationAttempted: false,
		AttemptedAt:           result.Timestamp,
	})
	if err != nil {
		r.logger.Error("reconcile: append attempt failed", "instruction_id", ins.ID, "error", err)
	}
}

// targetDomain resolves the domain of the page that hosts (or was meant
// to host) the placement: the tracked content's URL. Falls back to the
// placement URL host when the content row cannot be resolved.
func (r *Reconciler) targetDomain(ctx context.Context, ins *queue.Instruction, result *queue.Result) string {
	if r.content != nil {
		if c, err := r.content.Get(ctx, ins.TargetContentID); err == nil {
			if u, err := url.Parse(c.URL); err == nil && u.Host != "" {
				return u.Host
			}
		}
	}
	if result != nil && result.PlacementURL != "" {
		if u, err := url.Parse(result.PlacementURL); err == nil {
			return u.Host
		}
	}
	return ""
}
