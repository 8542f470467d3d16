package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taskforge/orchestrator/pkg/model"
)

type submitTaskRequest struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Content     string         `json:"content"`
	Submitter   string         `json:"submitter"`
	Team        string         `json:"team"`
	Priority    model.Priority `json:"priority"`
	Category    string         `json:"category"`
	Tags        []string       `json:"tags"`
}

func (s *Server) submitTask(w http.ResponseWriter, r *http.Request) {
	var req submitTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	task, err := s.Orchestrator.SubmitTask(r.Context(), model.WorkTask{
		Title:       req.Title,
		Description: req.Description,
		Content:     req.Content,
		Submitter:   req.Submitter,
		Team:        req.Team,
		Priority:    req.Priority,
		Category:    req.Category,
		Tags:        req.Tags,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.Orchestrator.GetTask(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tasks, err := s.Orchestrator.ListTasks(r.Context(), q.Get("team"), model.TaskStatus(q.Get("status")))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (s *Server) approveTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.Orchestrator.ApproveTaskSubmission(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) analyzeTask(w http.ResponseWriter, r *http.Request) {
	result, err := s.Orchestrator.AnalyzeTask(r.Context(), chi.URLParam(r, "taskID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) getTodos(w http.ResponseWriter, r *http.Request) {
	status := model.TodoStatus(r.URL.Query().Get("status"))
	todos, err := s.Orchestrator.GetTodos(r.Context(), chi.URLParam(r, "taskID"), status)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, todos)
}

func (s *Server) getBlockers(w http.ResponseWriter, r *http.Request) {
	blockers := s.Orchestrator.GetBlockers(r.Context(), chi.URLParam(r, "taskID"))
	writeJSON(w, http.StatusOK, blockers)
}

func (s *Server) getProgress(w http.ResponseWriter, r *http.Request) {
	progress := s.Orchestrator.GetProgress(r.Context(), chi.URLParam(r, "taskID"))
	writeJSON(w, http.StatusOK, progress)
}

func (s *Server) generateReport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rng := model.ReportRange{}
	if since := q.Get("since"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			rng.Since = t
		}
	}
	if until := q.Get("until"); until != "" {
		if t, err := time.Parse(time.RFC3339, until); err == nil {
			rng.Until = t
		}
	}
	cfg := model.ReportConfig{
		IncludeVisualizationData: q.Get("visualization") == "true",
		IncludeQualityMetrics:    q.Get("quality") == "true",
	}
	report := s.Orchestrator.GenerateReport(r.Context(), chi.URLParam(r, "taskID"), rng, cfg)
	writeJSON(w, http.StatusOK, report)
}
