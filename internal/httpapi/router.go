package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"leadhunt-engine/internal/logging"
	"leadhunt-engine/internal/metrics"
)

func NewRouter(d Deps) http.Handler {
	log := logging.OrNop(d.Logger).Named("http")

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog(log))
	r.Use(Metrics)
	r.Use(Recover(log))
	r.Use(Cors)

	hh := HealthHandler{}
	r.Get("/health", hh.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	lh := LeadsHandler{Query: d.Query, Lifecycle: d.Lifecycle, Ingest: d.Ingest, Log: log}
	r.Route("/leads", func(r chi.Router) {
		r.Get("/", lh.List)
		r.Post("/", lh.Act)
		r.Get("/{id}", lh.Get)
		r.Get("/{id}/history", lh.History)
	})

	ch := ConfigHandler{CfgVal: d.CfgVal, UserCfgPath: d.UserCfgPath, LoadCfg: d.LoadCfg, Log: log}
	r.Get("/config", ch.Get)
	r.Put("/config", ch.Put)
	r.Get("/config/path", ch.Path)
	r.Get("/config/validate", ch.Validate)

	// Secrets (use cfgVal, NOT a snapshot cfg)
	sh := SecretsHandler{CfgVal: d.CfgVal}
	r.Post("/api/secrets/imap", sh.SetIMAPPassword)

	sch := ScrapeHandler{Ingest: d.Ingest, Log: log}
	r.Get("/scrape/status", sch.Status)
	r.Post("/scrape/run", sch.Run)

	eh := EventsHandler{Hub: d.Hub}
	r.Get("/events", eh.ServeSSE)

	return r
}
