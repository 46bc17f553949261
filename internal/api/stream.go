package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gwlsn/augmentor/internal/jobs"
	"github.com/gwlsn/augmentor/internal/logger"
	"github.com/gwlsn/augmentor/internal/session"
)

const wsWriteTimeout = 10 * time.Second

// streamMessage is one frame of the SSE and WebSocket streams.
type streamMessage struct {
	Type    string        `json:"type"` // "init" or the new job state
	Session *session.View `json:"session,omitempty"`
	Job     *jobs.Job     `json:"job,omitempty"`
	Status  string        `json:"status,omitempty"`
}

func initMessage(s *session.Session) streamMessage {
	return streamMessage{Type: "init", Session: s.View()}
}

func eventMessage(s *session.Session, ev jobs.Event) streamMessage {
	return streamMessage{Type: ev.Type, Job: ev.Job, Status: s.StatusLine(ev.Job)}
}

// Events handles GET /api/events?kind= (SSE endpoint)
func (h *Handler) Events(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	// Get flusher
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Subscribe before the snapshot so no transition falls in between
	eventCh := s.Controller().Subscribe()
	defer s.Controller().Unsubscribe(eventCh)

	send := func(msg streamMessage) {
		data, err := json.Marshal(msg)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	// Send initial state
	send(initMessage(s))

	// Stream events
	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			send(eventMessage(s, event))
		}
	}
}

// WebSocket handles GET /api/ws?kind=, carrying the same messages as Events
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		logger.Debug("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	eventCh := s.Controller().Subscribe()
	defer s.Controller().Unsubscribe(eventCh)

	write := func(msg streamMessage) error {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(msg)
	}
	if err := write(initMessage(s)); err != nil {
		return
	}

	// Read messages from the client only to notice when it goes away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			if err := write(eventMessage(s, event)); err != nil {
				logger.Debug("WebSocket write failed", "error", err)
				return
			}
		}
	}
}
