// Package httpapi exposes the orchestrator facade's operations over
// HTTP: a chi router for the request/response endpoints and a
// gorilla/websocket upgrade for SubscribeEvents, modeled on this
// corpus's own REST-over-chi services.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	apperrors "github.com/taskforge/orchestrator/internal/errors"
	"github.com/taskforge/orchestrator/pkg/orchestrator"
)

// Server holds the dependencies every HTTP handler needs.
type Server struct {
	Orchestrator *orchestrator.Orchestrator
	Logger       *logrus.Logger
}

// Routes builds the full router: CORS, request ID/logging/recovery
// middleware, then every task/todo/deliverable/session endpoint plus the
// websocket event stream.
func (s *Server) Routes(corsOrigins []string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/v1/tasks", func(r chi.Router) {
		r.Post("/", s.submitTask)
		r.Get("/", s.listTasks)
		r.Get("/{taskID}", s.getTask)
		r.Post("/{taskID}/approve", s.approveTask)
		r.Post("/{taskID}/analyze", s.analyzeTask)
		r.Get("/{taskID}/todos", s.getTodos)
		r.Get("/{taskID}/blockers", s.getBlockers)
		r.Get("/{taskID}/progress", s.getProgress)
		r.Get("/{taskID}/report", s.generateReport)
		r.Patch("/{taskID}/todos/{todoID}/status", s.updateTodoStatus)
	})

	r.Route("/v1/todos/{todoID}", func(r chi.Router) {
		r.Post("/deliverables", s.submitDeliverable)
		r.Get("/deliverables", s.getDeliverables)
	})

	r.Get("/v1/deliverables/{deliverableID}", s.getDeliverableStatus)

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Post("/", s.startSession)
		r.Get("/{sessionID}/history", s.getSessionHistory)
		r.Post("/{sessionID}/messages", s.sendMessage)
		r.Post("/{sessionID}/branches", s.createBranch)
		r.Post("/{sessionID}/summary", s.generateSummary)
		r.Post("/{sessionID}/end", s.endSession)
	})

	r.Get("/v1/events", s.subscribeEvents)

	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := apperrors.GetStatusCode(err)
	msg := apperrors.SafeErrorMessage(err)
	if code >= http.StatusInternalServerError {
		s.Logger.WithError(err).Error("request failed")
	}
	writeJSON(w, code, errorResponse{Error: msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// RunSessionSweeper periodically calls SweepExpiredSessions until ctx is
// done. Intended to run as a background goroutine alongside the HTTP
// server.
func RunSessionSweeper(stop <-chan struct{}, o *orchestrator.Orchestrator, logger *logrus.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if n := o.SweepExpiredSessions(); n > 0 {
				logger.WithField("expired", n).Info("swept idle sessions")
			}
		}
	}
}
