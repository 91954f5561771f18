// Package track is the fingerprint store: it persists the text each agent
// last submitted for a page and detects no-op resubmissions by content
// digest, so downstream keyword ranking and matching only run when a page
// actually changed.
package track

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/weave/idgen"
	"github.com/hazyhaar/weave/matcher"
	"github.com/hazyhaar/weave/salience"
)

// MaxContentLen bounds the stored page text. Agents cap their captures at
// the same figure; the server re-truncates rather than rejecting so a
// misbehaving agent degrades instead of failing.
const MaxContentLen = 2000

// Outcome describes what a submission did.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
)

// Tracker implements the fingerprint submission pipeline: dedup by
// digest, keyword re-ranking on change, matcher notification on every
// outcome (even unchanged, to keep downstream matching warm).
type Tracker struct {
	store    *Store
	engine   *salience.Engine
	notifier matcher.Notifier
	sanitize *bluemonday.Policy
	newID    idgen.Generator
	logger   *slog.Logger
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithIDGenerator sets a custom ID generator for content IDs.
func WithIDGenerator(gen idgen.Generator) TrackerOption {
	return func(t *Tracker) { t.newID = gen }
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) TrackerOption {
	return func(t *Tracker) { t.logger = l }
}

// NewTracker creates a Tracker. notifier may be nil (no matcher wired).
func NewTracker(store *Store, engine *salience.Engine, notifier matcher.Notifier, opts ...TrackerOption) *Tracker {
	if notifier == nil {
		notifier = matcher.Nop()
	}
	t := &Tracker{
		store:    store,
		engine:   engine,
		notifier: notifier,
		sanitize: bluemonday.StrictPolicy(),
		newID:    idgen.Prefixed("trk_", idgen.Default),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// ContentHash returns the hex SHA-256 digest of content. Exposed so tests
// and tooling agree with the dedup comparison.
func ContentHash(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}

// Submit records a page fingerprint for (ownerID, url).
//
// Absent row: insert with freshly ranked keywords, return created.
// Same digest: no write at all, return unchanged. The dedup fast path.
// Different digest: re-rank keywords, update in place, return updated.
//
// On every outcome the matcher intake hook runs before Submit returns;
// its result is logged and its failure never alters the outcome.
func (t *Tracker) Submit(ctx context.Context, ownerID, url, title, referrer, content string, ts time.Time) (Outcome, error) {
	if ownerID == "" || strings.TrimSpace(url) == "" || ts.IsZero() {
		return "", ErrInvalidInput
	}

	title = t.sanitize.Sanitize(title)
	content = t.sanitize.Sanitize(content)
	if r := []rune(content); len(r) > MaxContentLen {
		content = string(r[:MaxContentLen])
	}

	existing, err := t.store.GetByOwnerURL(ctx, ownerID, url)
	switch {
	case err == ErrNotFound:
		c := &Content{
			ID:          t.newID(),
			OwnerID:     ownerID,
			URL:         url,
			Title:       title,
			ReferrerURL: referrer,
			Content:     content,
		}
		t.rankInto(ctx, c)
		if err := t.store.Insert(ctx, c); err != nil {
			return "", err
		}
		t.notify(ctx, c.ID, ownerID, OutcomeCreated)
		return OutcomeCreated, nil

	case err != nil:
		return "", err

	case ContentHash(content) == ContentHash(existing.Content):
		t.notify(ctx, existing.ID, ownerID, OutcomeUnchanged)
		return OutcomeUnchanged, nil

	default:
		existing.Title = title
		existing.ReferrerURL = referrer
		existing.Content = content
		t.rankInto(ctx, existing)
		if err := t.store.Update(ctx, existing); err != nil {
			return "", err
		}
		t.notify(ctx, existing.ID, ownerID, OutcomeUpdated)
		return OutcomeUpdated, nil
	}
}

func (t *Tracker) rankInto(ctx context.Context, c *Content) {
	ranked := t.engine.Rank(ctx, c.Content, "")
	phrases := make([]string, 0, len(ranked))
	for _, k := range ranked {
		phrases = append(phrases, k.Phrase)
	}
	c.Keywords = phrases
	c.KeywordDensity = salience.Density(c.Content, phrases)
}

// notify runs the matcher intake hook. Awaited so a failure is observable
// here, but observable means logged: Submit's own result is already
// decided by the time this runs.
func (t *Tracker) notify(ctx context.Context, contentID, ownerID string, outcome Outcome) {
	n, err := t.notifier.NotifyContentReady(ctx, contentID, ownerID)
	if err != nil {
		t.logger.Warn("track: matcher notify failed", "content_id", contentID, "outcome", string(outcome), "error", err)
		return
	}
	t.logger.Debug("track: matcher notified", "content_id", contentID, "outcome", string(outcome), "opportunities_created", n)
}
