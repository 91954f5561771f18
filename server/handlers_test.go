package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/weave/audit"
	"github.com/hazyhaar/weave/dbopen"
	"github.com/hazyhaar/weave/queue"
	"github.com/hazyhaar/weave/reconcile"
	"github.com/hazyhaar/weave/salience"
	"github.com/hazyhaar/weave/server"
	"github.com/hazyhaar/weave/track"
)

type env struct {
	t       *testing.T
	srv     *httptest.Server
	keyA    string
	keyB    string
	queue   *queue.Queue
	content *track.Store
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := dbopen.OpenMemory(t,
		dbopen.WithSchema(track.Schema),
		dbopen.WithSchema(queue.Schema),
		dbopen.WithSchema(audit.Schema),
		dbopen.WithSchema(reconcile.OpportunitySchema),
		dbopen.WithSchema(server.KeySchema))
	ctx := context.Background()

	keys := server.NewKeyStore(db)
	keyA, err := keys.Create(ctx, "own_a", "test a")
	if err != nil {
		t.Fatal(err)
	}
	keyB, err := keys.Create(ctx, "own_b", "test b")
	if err != nil {
		t.Fatal(err)
	}

	contentStore := track.NewStore(db)
	q := queue.New(db)
	cfg, err := server.LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}

	s := server.New(cfg, server.Deps{
		Keys:       keys,
		Tracker:    track.NewTracker(contentStore, salience.New(salience.Options{}, nil), nil),
		Content:    contentStore,
		Queue:      q,
		Reconciler: reconcile.New(q, reconcile.NewOpportunityStore(db), contentStore, audit.NewLogger(db), nil),
		Audit:      audit.NewLogger(db),
	})

	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return &env{t: t, srv: srv, keyA: keyA, keyB: keyB, queue: q, content: contentStore}
}

func (e *env) post(path string, body map[string]any) (int, map[string]any) {
	e.t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		e.t.Fatal(err)
	}
	resp, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(payload))
	if err != nil {
		e.t.Fatal(err)
	}
	defer resp.Body.Close()

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		e.t.Fatal(err)
	}
	return resp.StatusCode, out
}

func (e *env) fingerprint(key, url string) map[string]any {
	e.t.Helper()
	code, out := e.post("/api/v1/fingerprint", map[string]any{
		"apiKey":    key,
		"url":       url,
		"title":     "Garden Notes",
		"content":   "Gardening in raised beds keeps the soil loose across seasons.",
		"timestamp": "2026-08-01T12:00:00Z",
	})
	if code != http.StatusOK {
		e.t.Fatalf("fingerprint status = %d: %v", code, out)
	}
	return out
}

func TestFingerprintEndpoint(t *testing.T) {
	e := newEnv(t)

	out := e.fingerprint(e.keyA, "https://host.test/article")
	if out["success"] != true {
		t.Fatalf("response = %v", out)
	}
	if out["outcome"] != "created" {
		t.Fatalf("outcome = %v, want created", out["outcome"])
	}
	if out["content_id"] == "" || out["content_id"] == nil {
		t.Fatal("missing content_id")
	}

	// Same payload again dedups.
	out = e.fingerprint(e.keyA, "https://host.test/article")
	if out["outcome"] != "unchanged" {
		t.Fatalf("outcome = %v, want unchanged", out["outcome"])
	}
}

func TestFingerprintRejectsBadKey(t *testing.T) {
	e := newEnv(t)

	code, out := e.post("/api/v1/fingerprint", map[string]any{
		"apiKey": "wv_bogusbogusbogus", "url": "https://host.test/x",
	})
	if code != http.StatusUnauthorized {
		t.Fatalf("status = %d: %v", code, out)
	}
}

func TestFingerprintRejectsMissingURL(t *testing.T) {
	e := newEnv(t)

	code, _ := e.post("/api/v1/fingerprint", map[string]any{
		"apiKey": e.keyA, "url": "", "content": "text",
	})
	if code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}
}

func TestListInstructionsScopedToOwnerAndURL(t *testing.T) {
	e := newEnv(t)
	url := "https://host.test/article"
	e.fingerprint(e.keyA, url)

	// Untracked page: empty batch, not an error.
	code, out := e.post("/api/v1/instructions/list", map[string]any{"apiKey": e.keyA, "url": "https://host.test/other"})
	if code != http.StatusOK || out["count"].(float64) != 0 {
		t.Fatalf("untracked page: status %d, %v", code, out)
	}

	code, out = e.post("/api/v1/instructions", map[string]any{
		"apiKey": e.keyA, "url": url,
		"targetUrl": "https://partner.test/a", "anchorText": "first", "keywords": []string{"soil"},
	})
	if code != http.StatusCreated {
		t.Fatalf("enqueue status = %d: %v", code, out)
	}
	code, _ = e.post("/api/v1/instructions", map[string]any{
		"apiKey": e.keyA, "url": url,
		"targetUrl": "https://partner.test/b", "anchorText": "second",
	})
	if code != http.StatusCreated {
		t.Fatalf("enqueue status = %d", code)
	}

	code, out = e.post("/api/v1/instructions/list", map[string]any{"apiKey": e.keyA, "url": url})
	if code != http.StatusOK {
		t.Fatalf("list status = %d", code)
	}
	if out["count"].(float64) != 2 {
		t.Fatalf("count = %v, want 2", out["count"])
	}
	instructions := out["instructions"].([]any)
	first := instructions[0].(map[string]any)
	if first["anchor_text"] != "first" {
		t.Fatalf("batch not oldest first: %v", instructions)
	}

	// Another owner's key never sees this page's queue.
	code, out = e.post("/api/v1/instructions/list", map[string]any{"apiKey": e.keyB, "url": url})
	if code != http.StatusOK || out["count"].(float64) != 0 {
		t.Fatalf("cross-owner list: status %d, %v", code, out)
	}
}

func TestInstructionStatusLifecycle(t *testing.T) {
	e := newEnv(t)
	url := "https://host.test/article"
	e.fingerprint(e.keyA, url)

	code, out := e.post("/api/v1/instructions", map[string]any{
		"apiKey": e.keyA, "url": url,
		"targetUrl": "https://partner.test/a", "anchorText": "anchor",
	})
	if code != http.StatusCreated {
		t.Fatalf("enqueue status = %d: %v", code, out)
	}
	insID := out["instruction"].(map[string]any)["id"].(string)

	code, out = e.post("/api/v1/instructions/status", map[string]any{
		"apiKey": e.keyA, "instructionId": insID, "status": "executing",
	})
	if code != http.StatusOK || out["status"] != "executing" {
		t.Fatalf("executing report: status %d, %v", code, out)
	}

	code, out = e.post("/api/v1/instructions/status", map[string]any{
		"apiKey": e.keyA, "instructionId": insID, "status": "completed",
		"result": map[string]any{
			"placement_url": url, "insertion_method": "first-sentence-split", "verification_success": true,
		},
	})
	if code != http.StatusOK || out["status"] != "completed" {
		t.Fatalf("completed report: status %d, %v", code, out)
	}
	if out["updated_at"] == nil {
		t.Fatal("missing updated_at")
	}
}

func TestInstructionStatusRejectsInvalidTransitions(t *testing.T) {
	e := newEnv(t)
	url := "https://host.test/article"
	e.fingerprint(e.keyA, url)

	code, out := e.post("/api/v1/instructions", map[string]any{
		"apiKey": e.keyA, "url": url,
		"targetUrl": "https://partner.test/a", "anchorText": "anchor",
	})
	if code != http.StatusCreated {
		t.Fatalf("enqueue status = %d: %v", code, out)
	}
	insID := out["instruction"].(map[string]any)["id"].(string)

	// Terminal report straight from pending.
	code, _ = e.post("/api/v1/instructions/status", map[string]any{
		"apiKey": e.keyA, "instructionId": insID, "status": "completed",
		"result": map[string]any{"placement_url": url},
	})
	if code != http.StatusBadRequest {
		t.Fatalf("pending->completed status = %d, want 400", code)
	}

	code, _ = e.post("/api/v1/instructions/status", map[string]any{
		"apiKey": e.keyA, "instructionId": insID, "status": "sideways",
	})
	if code != http.StatusBadRequest {
		t.Fatalf("unknown status = %d, want 400", code)
	}

	code, _ = e.post("/api/v1/instructions/status", map[string]any{
		"apiKey": e.keyA, "instructionId": "ins_missing", "status": "executing",
	})
	if code != http.StatusNotFound {
		t.Fatalf("missing instruction status = %d, want 404", code)
	}

	// Cross-owner report reads as absent.
	code, _ = e.post("/api/v1/instructions/status", map[string]any{
		"apiKey": e.keyB, "instructionId": insID, "status": "executing",
	})
	if code != http.StatusNotFound {
		t.Fatalf("cross-owner status = %d, want 404", code)
	}
}

func TestEnqueueValidation(t *testing.T) {
	e := newEnv(t)
	url := "https://host.test/article"
	e.fingerprint(e.keyA, url)

	code, _ := e.post("/api/v1/instructions", map[string]any{
		"apiKey": e.keyA, "url": url, "targetUrl": "https://partner.test/a",
	})
	if code != http.StatusBadRequest {
		t.Fatalf("missing anchor status = %d, want 400", code)
	}

	code, _ = e.post("/api/v1/instructions", map[string]any{
		"apiKey": e.keyA, "url": "https://host.test/untracked",
		"targetUrl": "https://partner.test/a", "anchorText": "anchor",
	})
	if code != http.StatusNotFound {
		t.Fatalf("untracked page status = %d, want 404", code)
	}
}

func TestHealthz(t *testing.T) {
	e := newEnv(t)
	resp, err := http.Get(e.srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
