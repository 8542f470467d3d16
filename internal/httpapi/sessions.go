package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/taskforge/orchestrator/pkg/model"
)

type startSessionRequest struct {
	UserID         string `json:"userId"`
	TeamID         string `json:"teamId"`
	PersonaID      string `json:"personaId"`
	InitialContext string `json:"initialContext"`
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	sess, err := s.Orchestrator.StartSession(r.Context(), req.UserID, req.TeamID, req.PersonaID, req.InitialContext)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

type sendMessageRequest struct {
	Role       model.MessageRole `json:"role"`
	Content    string            `json:"content"`
	References []string          `json:"references"`
	BranchID   *string           `json:"branchId"`
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	sessionID := chi.URLParam(r, "sessionID")
	msg := model.Message{
		ID:         "msg-" + uuid.NewString(),
		SessionID:  sessionID,
		Role:       req.Role,
		Content:    req.Content,
		Timestamp:  time.Now().UTC(),
		References: req.References,
		BranchID:   req.BranchID,
	}
	if err := s.Orchestrator.SendMessage(r.Context(), sessionID, msg, req.BranchID); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) getSessionHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.HistoryFilter{
		Limit:  parseIntParam(q.Get("limit"), 50),
		Offset: parseIntParam(q.Get("offset"), 0),
	}
	if b := q.Get("branchId"); b != "" {
		filter.BranchID = &b
	}
	page, err := s.Orchestrator.GetSessionHistory(r.Context(), chi.URLParam(r, "sessionID"), filter)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

type createBranchRequest struct {
	ParentMessageID string `json:"parentMessageId"`
	Name            string `json:"name"`
	Description     string `json:"description"`
}

func (s *Server) createBranch(w http.ResponseWriter, r *http.Request) {
	var req createBranchRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	branch, err := s.Orchestrator.CreateBranch(r.Context(), chi.URLParam(r, "sessionID"), req.ParentMessageID, req.Name, req.Description)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, branch)
}

type generateSummaryRequest struct {
	Kind  model.SummaryKind `json:"kind"`
	Since *time.Time        `json:"since"`
	Until *time.Time        `json:"until"`
}

func (s *Server) generateSummary(w http.ResponseWriter, r *http.Request) {
	var req generateSummaryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	var rng *model.TimeRange
	if req.Since != nil && req.Until != nil {
		rng = &model.TimeRange{Since: *req.Since, Until: *req.Until}
	}
	summary, err := s.Orchestrator.GenerateSummary(r.Context(), chi.URLParam(r, "sessionID"), req.Kind, rng)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, summary)
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	summary, err := s.Orchestrator.EndSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func parseIntParam(v string, fallback int) int {
	if v == "" {
		return fallback
	}
	n := 0
	for _, c := range v {
		if c < '0' || c > '9' {
			return fallback
		}
		n = n*10 + int(c-'0')
	}
	return n
}
