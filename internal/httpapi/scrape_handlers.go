package httpapi

import (
	"context"
	"net/http"

	"go.uber.org/zap"
)

type ScrapeHandler struct {
	Ingest Refresher
	Log    *zap.Logger
}

func (h ScrapeHandler) Status(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.Ingest.Status())
}

// Run starts a refresh in the background. A run already in flight is joined,
// not duplicated.
func (h ScrapeHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.Ingest.Status().Running {
		WriteJSON(w, http.StatusOK, map[string]any{"ok": false, "msg": "already running"})
		return
	}

	reqID := RequestIDFrom(r.Context())
	go func() {
		if _, err := h.Ingest.Run(context.Background()); err != nil {
			h.Log.Warn("manual refresh failed", zap.String("request_id", reqID), zap.Error(err))
		}
	}()
	WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}
