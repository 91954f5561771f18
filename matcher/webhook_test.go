package matcher_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hazyhaar/weave/matcher"
)

func TestWebhookNotify(t *testing.T) {
	var gotContentID, gotOwnerID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ContentID string `json:"content_id"`
			OwnerID   string `json:"owner_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		gotContentID, gotOwnerID = req.ContentID, req.OwnerID
		json.NewEncoder(w).Encode(map[string]int{"opportunities_created": 3})
	}))
	defer srv.Close()

	n, err := matcher.NewWebhook(srv.URL, nil).NotifyContentReady(context.Background(), "trk_1", "own_1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("opportunities created = %d, want 3", n)
	}
	if gotContentID != "trk_1" || gotOwnerID != "own_1" {
		t.Fatalf("server saw %q/%q", gotContentID, gotOwnerID)
	}
}

func TestWebhookNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	if _, err := matcher.NewWebhook(srv.URL, nil).NotifyContentReady(context.Background(), "trk_1", "own_1"); err == nil {
		t.Fatal("expected error on 502")
	}
}

func TestNop(t *testing.T) {
	n, err := matcher.Nop().NotifyContentReady(context.Background(), "trk_1", "own_1")
	if err != nil || n != 0 {
		t.Fatalf("nop returned %d, %v", n, err)
	}
}
