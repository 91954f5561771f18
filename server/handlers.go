package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/hazyhaar/weave/audit"
	"github.com/hazyhaar/weave/queue"
	"github.com/hazyhaar/weave/track"
)

type fingerprintRequest struct {
	APIKey    string `json:"apiKey"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Referrer  string `json:"referrer"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// handleFingerprint records a page presence submission.
func (s *Server) handleFingerprint(w http.ResponseWriter, r *http.Request) {
	var req fingerprintRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ownerID, err := s.keys.Resolve(r.Context(), req.APIKey)
	if err != nil {
		s.unauthorized(w, err)
		return
	}

	if req.Timestamp == "" {
		writeErrorMsg(w, http.StatusBadRequest, "timestamp required")
		return
	}
	ts, err := time.Parse(time.RFC3339, req.Timestamp)
	if err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "invalid timestamp")
		return
	}

	outcome, err := s.tracker.Submit(r.Context(), ownerID, req.URL, req.Title, req.Referrer, req.Content, ts)
	if err != nil {
		if errors.Is(err, track.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		s.internal(w, "fingerprint", err)
		return
	}

	content, err := s.content.GetByOwnerURL(r.Context(), ownerID, req.URL)
	if err != nil {
		s.internal(w, "fingerprint lookup", err)
		return
	}

	if s.audit != nil {
		s.audit.LogEvent(r.Context(), audit.Event{
			EventType:  "fingerprint_submitted",
			EntityType: "tracked_content",
			EntityID:   content.ID,
			Action:     string(outcome),
			OwnerID:    ownerID,
			Success:    true,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"content_id": content.ID,
		"outcome":    string(outcome),
		"keywords":   content.Keywords,
	})
}

type listInstructionsRequest struct {
	APIKey string `json:"apiKey"`
	URL    string `json:"url"`
}

// handleListInstructions returns the pending batch for the caller's page.
// An untracked URL is an empty batch, not an error: agents start polling
// before their first fingerprint lands.
func (s *Server) handleListInstructions(w http.ResponseWriter, r *http.Request) {
	var req listInstructionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ownerID, err := s.keys.Resolve(r.Context(), req.APIKey)
	if err != nil {
		s.unauthorized(w, err)
		return
	}
	if req.URL == "" {
		writeErrorMsg(w, http.StatusBadRequest, "url required")
		return
	}

	content, err := s.content.GetByOwnerURL(r.Context(), ownerID, req.URL)
	if err != nil {
		if errors.Is(err, track.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]any{
				"success": true, "instructions": []*queue.Instruction{}, "count": 0,
			})
			return
		}
		s.internal(w, "list instructions", err)
		return
	}

	instructions, err := s.queue.ListPending(r.Context(), content.ID, s.cfg.DequeueLimit)
	if err != nil {
		s.internal(w, "list instructions", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true, "instructions": instructions, "count": len(instructions),
	})
}

type statusRequest struct {
	APIKey        string        `json:"apiKey"`
	InstructionID string        `json:"instructionId"`
	Status        string        `json:"status"`
	Result        *queue.Result `json:"result"`
}

// handleInstructionStatus applies a reported transition through the
// reconciler.
func (s *Server) handleInstructionStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ownerID, err := s.keys.Resolve(r.Context(), req.APIKey)
	if err != nil {
		s.unauthorized(w, err)
		return
	}

	status := queue.Status(req.Status)
	if !status.Valid() {
		writeErrorMsg(w, http.StatusBadRequest, "unknown status")
		return
	}

	// The instruction must belong to a page this key's owner tracks.
	// Cross-owner probes read as absent, not forbidden.
	ins, err := s.queue.Get(r.Context(), req.InstructionID)
	if err != nil {
		if errors.Is(err, queue.ErrNotFound) {
			writeErrorMsg(w, http.StatusNotFound, "instruction not found")
			return
		}
		s.internal(w, "instruction status", err)
		return
	}
	content, err := s.content.Get(r.Context(), ins.TargetContentID)
	if err != nil || content.OwnerID != ownerID {
		writeErrorMsg(w, http.StatusNotFound, "instruction not found")
		return
	}

	updated, err := s.reconciler.Report(r.Context(), req.InstructionID, status, req.Result)
	if err != nil {
		switch {
		case errors.Is(err, queue.ErrNotFound):
			writeErrorMsg(w, http.StatusNotFound, "instruction not found")
		case errors.Is(err, queue.ErrUnknownStatus),
			errors.Is(err, queue.ErrInvalidTransition),
			errors.Is(err, queue.ErrMissingResult):
			writeError(w, http.StatusBadRequest, err)
		default:
			s.internal(w, "instruction status", err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":        true,
		"instruction_id": updated.ID,
		"status":         string(updated.Status),
		"updated_at":     updated.UpdatedAt,
	})
}

type enqueueRequest struct {
	APIKey          string   `json:"apiKey"`
	TargetContentID string   `json:"targetContentId"`
	URL             string   `json:"url"`
	OpportunityID   string   `json:"opportunityId"`
	TargetURL       string   `json:"targetUrl"`
	AnchorText      string   `json:"anchorText"`
	Keywords        []string `json:"keywords"`
}

// handleEnqueue is the matcher intake: it plans a placement against a
// tracked page. The page may be named by content ID or by URL.
func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	ownerID, err := s.keys.Resolve(r.Context(), req.APIKey)
	if err != nil {
		s.unauthorized(w, err)
		return
	}

	var content *track.Content
	switch {
	case req.TargetContentID != "":
		content, err = s.content.Get(r.Context(), req.TargetContentID)
	case req.URL != "":
		content, err = s.content.GetByOwnerURL(r.Context(), ownerID, req.URL)
	default:
		writeErrorMsg(w, http.StatusBadRequest, "targetContentId or url required")
		return
	}
	if err != nil {
		if errors.Is(err, track.ErrNotFound) {
			writeErrorMsg(w, http.StatusNotFound, "tracked content not found")
			return
		}
		s.internal(w, "enqueue", err)
		return
	}
	if content.OwnerID != ownerID {
		writeErrorMsg(w, http.StatusNotFound, "tracked content not found")
		return
	}

	ins, err := s.queue.Enqueue(r.Context(), content.ID, req.OpportunityID, req.TargetURL, req.AnchorText, req.Keywords)
	if err != nil {
		if errors.Is(err, queue.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		s.internal(w, "enqueue", err)
		return
	}
	if s.audit != nil {
		s.audit.LogEvent(r.Context(), audit.Event{
			EventType:  "instruction_enqueued",
			EntityType: "placement_instruction",
			EntityID:   ins.ID,
			Action:     "enqueue",
			OwnerID:    ownerID,
			Success:    true,
		})
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "instruction": ins})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) unauthorized(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrUnknownAPIKey) {
		writeErrorMsg(w, http.StatusUnauthorized, "invalid api key")
		return
	}
	s.internal(w, "resolve api key", err)
}

func (s *Server) internal(w http.ResponseWriter, op string, err error) {
	s.logger.Error("server: "+op+" failed", "error", err)
	writeErrorMsg(w, http.StatusInternalServerError, "internal error")
}
