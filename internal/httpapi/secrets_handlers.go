package httpapi

import (
	"encoding/json"
	"net/http"
	"sync/atomic"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/secrets"
)

type SecretsHandler struct {
	CfgVal *atomic.Value // stores config.Config
}

type setIMAPPasswordReq struct {
	Source   string `json:"source"`
	Password string `json:"password"`
}

func (h SecretsHandler) SetIMAPPassword(w http.ResponseWriter, r *http.Request) {
	var req setIMAPPasswordReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}

	cfg := h.CfgVal.Load().(config.Config)
	src, ok := cfg.SourceByName(req.Source)
	if !ok || src.Kind != "imap" {
		WriteError(w, r, http.StatusBadRequest, "unknown_source", "no imap source named "+req.Source)
		return
	}
	if err := secrets.SetIMAPPassword(secrets.IMAPKeyringAccount(src), req.Password); err != nil {
		WriteError(w, r, http.StatusBadRequest, "store_failed", "failed to store password: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
