package httpapi

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/events"
	"leadhunt-engine/internal/ingest"
	"leadhunt-engine/internal/lifecycle"
	"leadhunt-engine/internal/query"
	"leadhunt-engine/internal/scrape/types"
)

// Refresher runs ingestion; *ingest.Runner in production.
type Refresher interface {
	Run(ctx context.Context) (ingest.Summary, error)
	Status() types.ScrapeStatus
}

type Deps struct {
	Query     *query.Service
	Lifecycle *lifecycle.Controller
	Ingest    Refresher
	Hub       *events.Hub
	Logger    *zap.Logger

	// Atomic store of config.Config
	CfgVal *atomic.Value

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)
}
