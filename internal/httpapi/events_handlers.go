package httpapi

import (
	"net/http"
	"time"

	"leadhunt-engine/internal/events"
)

const defaultHeartbeat = 25 * time.Second

type EventsHandler struct {
	Hub       *events.Hub
	Heartbeat time.Duration
}

// ServeSSE streams lead events until the client goes away. A heartbeat goes
// out on connect and whenever the stream has been idle for Heartbeat.
func (h EventsHandler) ServeSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, r, http.StatusInternalServerError, "stream_unsupported", "Streaming unsupported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := h.Hub.Subscribe()
	defer h.Hub.Unsubscribe(sub)

	every := h.Heartbeat
	if every <= 0 {
		every = defaultHeartbeat
	}
	idle := time.NewTimer(every)
	defer idle.Stop()

	reqID := RequestIDFrom(r.Context())
	send := func(e events.Event) bool {
		if _, err := e.WriteTo(w); err != nil {
			return false
		}
		flusher.Flush()
		idle.Reset(every)
		return true
	}

	if !send(events.Heartbeat(reqID)) {
		return
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-idle.C:
			if !send(events.Heartbeat(reqID)) {
				return
			}
		case e, ok := <-sub:
			if !ok || !send(e) {
				return
			}
		}
	}
}
