// Package agent executes placement instructions against a live page: it
// submits the page's presence fingerprint, polls for pending
// instructions, and applies each one through a ContentMutator.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/weave/queue"
)

// Fingerprint is the presence submission for the page the agent runs on.
type Fingerprint struct {
	URL      string
	Title    string
	Referrer string
	Content  string
}

// API is the server surface the agent talks to.
type API interface {
	SubmitFingerprint(ctx context.Context, fp Fingerprint, at time.Time) error
	ListInstructions(ctx context.Context) ([]*queue.Instruction, error)
	ReportStatus(ctx context.Context, instructionID string, status queue.Status, result *queue.Result) error
}

// Poll cadence. The warm-up delay lets the page settle before the first
// poll; afterwards the agent polls on a fixed interval.
const (
	DefaultWarmup       = 2 * time.Second
	DefaultPollInterval = 30 * time.Second
)

// Config carries the page identity and mutation tuning.
type Config struct {
	Fingerprint Fingerprint
	Connector   string
	Logger      *slog.Logger
}

func (c *Config) defaults() {
	if c.Connector == "" {
		c.Connector = DefaultConnector
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Agent drives the placement loop for a single page.
type Agent struct {
	cfg     Config
	api     API
	mutator ContentMutator
	logger  *slog.Logger
}

// New creates an Agent for the page described by cfg.Fingerprint.
func New(cfg Config, api API, mutator ContentMutator) *Agent {
	cfg.defaults()
	return &Agent{cfg: cfg, api: api, mutator: mutator, logger: cfg.Logger}
}

// Start submits the page fingerprint. Called once when the agent comes
// up; the server creates or refreshes the tracked content row.
func (a *Agent) Start(ctx context.Context) error {
	if err := a.api.SubmitFingerprint(ctx, a.cfg.Fingerprint, time.Now()); err != nil {
		return fmt.Errorf("agent: submit fingerprint: %w", err)
	}
	a.logger.Info("agent: fingerprint submitted", "url", a.cfg.Fingerprint.URL)
	return nil
}

// Poll fetches one batch of pending instructions and executes them in
// order. A reported failure still counts as processed; an instruction is
// only skipped (left for the next cycle) when its executing report does
// not get through. Returns the number of instructions carried to a
// terminal report.
func (a *Agent) Poll(ctx context.Context) (int, error) {
	instructions, err := a.api.ListInstructions(ctx)
	if err != nil {
		return 0, fmt.Errorf("agent: list instructions: %w", err)
	}

	n := 0
	for _, ins := range instructions {
		if err := a.execute(ctx, ins); err != nil {
			a.logger.Error("agent: instruction skipped", "instruction_id", ins.ID, "error", err)
			continue
		}
		n++
	}
	return n, nil
}

// Run is the long-lived loop: fingerprint, warm-up, then poll on a fixed
// interval until ctx is canceled. Poll errors are logged, never fatal.
func (a *Agent) Run(ctx context.Context, warmup, interval time.Duration) error {
	if warmup <= 0 {
		warmup = DefaultWarmup
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	if err := a.Start(ctx); err != nil {
		a.logger.Error("agent: fingerprint submission failed", "error", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(warmup):
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if n, err := a.Poll(ctx); err != nil {
			a.logger.Error("agent: poll failed", "error", err)
		} else if n > 0 {
			a.logger.Info("agent: instructions executed", "count", n)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// execute carries one instruction to a terminal report. The executing
// report goes first so a crash mid-mutation leaves an executing row
// behind rather than a silently re-deliverable pending one.
func (a *Agent) execute(ctx context.Context, ins *queue.Instruction) error {
	if err := a.api.ReportStatus(ctx, ins.ID, queue.StatusExecuting, nil); err != nil {
		return fmt.Errorf("report executing: %w", err)
	}

	block, err := a.mutator.FindInsertionPoint(ctx, ins.Keywords)
	if err != nil {
		return a.reportFailure(ctx, ins, err)
	}

	link := Link{URL: ins.TargetURL, AnchorText: ins.AnchorText}
	if err := a.mutator.Mutate(ctx, block, link, a.cfg.Connector); err != nil {
		return a.reportFailure(ctx, ins, err)
	}

	verified, err := a.mutator.VerifyLink(ctx, ins.TargetURL)
	if err != nil {
		a.logger.Warn("agent: verification errored", "instruction_id", ins.ID, "error", err)
		verified = false
	}

	result := &queue.Result{
		PlacementURL:        a.cfg.Fingerprint.URL,
		InsertionMethod:     InsertionMethod,
		VerificationSuccess: verified,
		Timestamp:           time.Now().UnixMilli(),
	}
	if err := a.api.ReportStatus(ctx, ins.ID, queue.StatusCompleted, result); err != nil {
		return fmt.Errorf("report completed: %w", err)
	}
	a.logger.Info("agent: link placed",
		"instruction_id", ins.ID, "target_url", ins.TargetURL, "verified", verified)
	return nil
}

// noInsertionPointMessage is the canonical failure text agents report
// when no block can safely take the link.
const noInsertionPointMessage = "No suitable insertion point found"

func (a *Agent) reportFailure(ctx context.Context, ins *queue.Instruction, cause error) error {
	msg := cause.Error()
	if errors.Is(cause, ErrNoInsertionPoint) || errors.Is(cause, ErrContentTooShort) {
		msg = noInsertionPointMessage
	}
	result := &queue.Result{Error: msg, Timestamp: time.Now().UnixMilli()}
	if err := a.api.ReportStatus(ctx, ins.ID, queue.StatusFailed, result); err != nil {
		return fmt.Errorf("report failed: %w", err)
	}
	a.logger.Warn("agent: placement failed", "instruction_id", ins.ID, "error", msg)
	return nil
}
