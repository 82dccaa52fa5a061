package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/lifecycle"
	"leadhunt-engine/internal/query"
	"leadhunt-engine/internal/store"
)

const (
	actionUpdateStatus = "update_status"
	actionSaveLead     = "save_lead"
	actionDismissLead  = "dismiss_lead"
	actionSendResponse = "send_response"
)

type LeadsHandler struct {
	Query     *query.Service
	Lifecycle *lifecycle.Controller
	Ingest    Refresher
	Log       *zap.Logger
}

type listResponse struct {
	Success     bool            `json:"success"`
	Count       int             `json:"count"`
	Leads       []domain.Lead   `json:"leads"`
	Sources     []domain.Source `json:"sources"`
	LastUpdated *time.Time      `json:"lastUpdated"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// GET /leads?source=&category=&status=&area=&saved=&refresh=
func (h LeadsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if refresh, _ := strconv.ParseBool(q.Get("refresh")); refresh && h.Ingest != nil {
		// stored leads are still worth serving when some or all sources fail
		if _, err := h.Ingest.Run(r.Context()); err != nil {
			h.Log.Warn("refresh failed", zap.String("request_id", RequestIDFrom(r.Context())), zap.Error(err))
		}
	}

	saved, _ := strconv.ParseBool(q.Get("saved"))
	res, err := h.Query.Leads(r.Context(), query.Request{
		Source:    q.Get("source"),
		Category:  q.Get("category"),
		Status:    q.Get("status"),
		Area:      q.Get("area"),
		SavedOnly: saved,
	})
	if err != nil {
		h.fail(w, r, err, "Failed to fetch leads")
		return
	}

	out := listResponse{Success: true, Count: len(res.Leads), Leads: res.Leads, Sources: res.Sources}
	if out.Leads == nil {
		out.Leads = []domain.Lead{}
	}
	if out.Sources == nil {
		out.Sources = []domain.Source{}
	}
	if !res.LastUpdated.IsZero() {
		t := res.LastUpdated.UTC()
		out.LastUpdated = &t
	}
	WriteJSON(w, http.StatusOK, out)
}

func (h LeadsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseLeadID(chi.URLParam(r, "id"))
	if !ok {
		writeFailure(w, http.StatusNotFound, "Lead not found")
		return
	}
	l, err := h.Query.Lead(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Failed to fetch lead")
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "lead": l})
}

func (h LeadsHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := parseLeadID(chi.URLParam(r, "id"))
	if !ok {
		writeFailure(w, http.StatusNotFound, "Lead not found")
		return
	}
	hist, err := h.Query.History(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "Failed to fetch history")
		return
	}
	if hist == nil {
		hist = []domain.StatusChange{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{"success": true, "count": len(hist), "history": hist})
}

// leadRef accepts the id as a JSON string or number.
type leadRef string

func (l *leadRef) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = leadRef(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*l = leadRef(n.String())
	return nil
}

type actionRequest struct {
	LeadID leadRef         `json:"leadId"`
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type actionData struct {
	Status  string `json:"status"`
	Reason  string `json:"reason"`
	Saved   *bool  `json:"saved"`
	Message string `json:"message"`
}

// POST /leads {leadId, action, data}
func (h LeadsHandler) Act(w http.ResponseWriter, r *http.Request) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	var data actionData
	if len(req.Data) > 0 && string(req.Data) != "null" {
		if err := json.Unmarshal(req.Data, &data); err != nil {
			writeFailure(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	switch req.Action {
	case actionUpdateStatus, actionSaveLead, actionDismissLead, actionSendResponse:
	default:
		writeFailure(w, http.StatusBadRequest, "Unknown action")
		return
	}

	id, ok := parseLeadID(string(req.LeadID))
	if !ok {
		writeFailure(w, http.StatusNotFound, "Lead not found")
		return
	}

	msg, err := h.apply(r, id, req.Action, data)
	if err != nil {
		h.fail(w, r, err, "Failed to update lead")
		return
	}
	WriteJSON(w, http.StatusOK, messageResponse{Success: true, Message: msg})
}

func (h LeadsHandler) apply(r *http.Request, id int64, action string, data actionData) (string, error) {
	ctx := r.Context()
	switch action {
	case actionUpdateStatus:
		l, changed, err := h.Lifecycle.Transition(ctx, id, data.Status, data.Reason)
		if err != nil {
			return "", err
		}
		if !changed {
			return fmt.Sprintf("Lead already %s", l.Status), nil
		}
		return fmt.Sprintf("Lead status updated to %s", l.Status), nil

	case actionSaveLead:
		saved := data.Saved == nil || *data.Saved
		if _, err := h.Lifecycle.Save(ctx, id, saved); err != nil {
			return "", err
		}
		if !saved {
			return "Lead unsaved", nil
		}
		return "Lead saved", nil

	case actionDismissLead:
		if _, _, err := h.Lifecycle.Dismiss(ctx, id, data.Reason); err != nil {
			return "", err
		}
		return "Lead dismissed", nil

	default: // actionSendResponse
		if _, err := h.Lifecycle.Respond(ctx, id, data.Message); err != nil {
			return "", err
		}
		return "Response recorded", nil
	}
}

// fail maps domain errors to status codes. Anything unexpected is logged and
// answered with fallback only.
func (h LeadsHandler) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeFailure(w, http.StatusNotFound, "Lead not found")
	case errors.Is(err, domain.ErrInvalidStatus):
		writeFailure(w, http.StatusBadRequest, "Invalid status")
	case errors.Is(err, query.ErrInvalidFilter):
		writeFailure(w, http.StatusBadRequest, "Invalid filter")
	case errors.Is(err, lifecycle.ErrTerminalStatus):
		writeFailure(w, http.StatusConflict, "Lead is closed and cannot be reopened")
	default:
		h.Log.Error("lead request failed",
			zap.String("request_id", RequestIDFrom(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		writeFailure(w, http.StatusInternalServerError, fallback)
	}
}

func parseLeadID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
