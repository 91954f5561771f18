package audit_test

import (
	"context"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/weave/audit"
	"github.com/hazyhaar/weave/dbopen"
)

func newLogger(t *testing.T) *audit.Logger {
	t.Helper()
	db := dbopen.OpenMemory(t, dbopen.WithSchema(audit.Schema))
	return audit.NewLogger(db)
}

func TestAppendAndListAttempts(t *testing.T) {
	l := newLogger(t)
	ctx := context.Background()

	for i, ok := range []bool{true, false} {
		err := l.AppendAttempt(ctx, audit.Attempt{
			OpportunityID:         "opp_1",
			TargetDomain:          "partner.test",
			PlacementMethod:       "first-sentence-split",
			Success:               ok,
			VerificationAttempted: true,
			VerificationSuccess:   ok,
			AttemptedAt:           int64(1000 + i),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	attempts, err := l.ListAttempts(ctx, "opp_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 2 {
		t.Fatalf("got %d attempts, want 2", len(attempts))
	}
	if !attempts[0].Success || attempts[1].Success {
		t.Fatalf("attempt order/flags wrong: %+v", attempts)
	}
	if attempts[0].ID == attempts[1].ID {
		t.Fatal("attempt IDs collide")
	}
}

func TestListAttemptsScopedToOpportunity(t *testing.T) {
	l := newLogger(t)
	ctx := context.Background()

	l.AppendAttempt(ctx, audit.Attempt{OpportunityID: "opp_1"})
	l.AppendAttempt(ctx, audit.Attempt{OpportunityID: "opp_2"})

	attempts, err := l.ListAttempts(ctx, "opp_1")
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 1 {
		t.Fatalf("got %d attempts for opp_1, want 1", len(attempts))
	}
}

func TestLogEventNeverFails(t *testing.T) {
	// Point the logger at a database without the schema: LogEvent must
	// swallow the failure.
	db := dbopen.OpenMemory(t)
	l := audit.NewLogger(db)
	l.LogEvent(context.Background(), audit.Event{EventType: "fingerprint_submitted"})
}
