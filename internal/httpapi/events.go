package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/taskforge/orchestrator/pkg/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// subscribeEvents upgrades to a websocket and streams every todo-graph
// event matching the query's taskId/kinds filter until the client
// disconnects.
func (s *Server) subscribeEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.EventFilter{TaskID: q.Get("taskId")}
	for _, k := range q["kind"] {
		filter.Kinds = append(filter.Kinds, model.EventKind(k))
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	events, unsubscribe := s.Orchestrator.SubscribeEvents(filter)
	defer unsubscribe()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	go func() {
		for {
			if _, _, err := conn.NextReader(); err != nil {
				_ = conn.Close()
				return
			}
		}
	}()

	for evt := range events {
		if err := conn.WriteJSON(evt); err != nil {
			return
		}
	}
}
