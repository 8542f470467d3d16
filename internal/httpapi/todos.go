package httpapi

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taskforge/orchestrator/pkg/model"
	"github.com/taskforge/orchestrator/pkg/todograph"
)

type updateTodoStatusRequest struct {
	Status model.TodoStatus `json:"status"`
	Actor  string           `json:"actor"`
	Reason string           `json:"reason"`
	Force  bool             `json:"force"`
}

func (s *Server) updateTodoStatus(w http.ResponseWriter, r *http.Request) {
	var req updateTodoStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	impact, err := s.Orchestrator.UpdateTodoStatus(r.Context(), chi.URLParam(r, "taskID"), chi.URLParam(r, "todoID"), req.Status, todograph.UpdateMetadata{
		Actor:  req.Actor,
		Reason: req.Reason,
		Force:  req.Force,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, impact)
}

func (s *Server) submitDeliverable(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.writeError(w, err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, err)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, err)
		return
	}

	fileType := r.FormValue("fileType")
	submitter := r.FormValue("submitter")

	deliverable, err := s.Orchestrator.SubmitDeliverable(r.Context(), chi.URLParam(r, "todoID"), header.Filename, fileType, submitter, content)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, deliverable)
}

func (s *Server) getDeliverables(w http.ResponseWriter, r *http.Request) {
	deliverables, err := s.Orchestrator.GetDeliverables(r.Context(), chi.URLParam(r, "todoID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deliverables)
}

func (s *Server) getDeliverableStatus(w http.ResponseWriter, r *http.Request) {
	deliverable, err := s.Orchestrator.GetDeliverableStatus(r.Context(), chi.URLParam(r, "deliverableID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deliverable)
}
