package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"subforge/internal/logging"
	"subforge/internal/workflow"
)

const (
	wsWriteWait    = 10 * time.Second
	wsPongWait     = 60 * time.Second
	wsPingInterval = wsPongWait * 9 / 10
)

// handleEvents streams job events as JSON messages. The stream opens with a
// job.updated event for every existing job so clients can render without a
// separate list request.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		return
	}
	defer conn.Close()

	events, unsubscribe := s.manager.Subscribe()
	defer unsubscribe()

	logger := logging.WithContext(r.Context(), s.logger)
	logger.Debug("event stream opened", logging.String("remote", r.RemoteAddr))

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	write := func(event Event) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := conn.WriteJSON(event); err != nil {
			logger.Debug("event stream write failed", logging.Error(err))
			return false
		}
		return true
	}

	for _, job := range s.manager.List() {
		dto := FromJob(job, false)
		if !write(Event{Type: string(workflow.EventJobUpdated), JobID: job.ID, Job: &dto}) {
			return
		}
	}

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-closed:
			return
		case <-s.done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(wsWriteWait))
			return
		case event, ok := <-events:
			if !ok || !write(FromEvent(event)) {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
