package types

import (
	"context"

	"leadhunt-engine/internal/domain"
)

// ScrapeResult is one adapter's output. Finalize, when set, runs after the
// postings have been stored (the inbox adapter marks mail read there).
type ScrapeResult struct {
	Source   string
	Postings []domain.RawPosting
	Finalize func(context.Context) error
}

// Adapter fetches raw postings for sources of one kind. An error means the
// whole source failed; bad individual postings are skipped, not returned.
type Adapter interface {
	Kind() string
	Fetch(ctx context.Context, src domain.Source) (ScrapeResult, error)
}

type Registry map[string]Adapter

func NewRegistry(adapters ...Adapter) Registry {
	r := Registry{}
	for _, a := range adapters {
		r[a.Kind()] = a
	}
	return r
}

func (r Registry) Lookup(kind string) (Adapter, bool) {
	a, ok := r[kind]
	return a, ok
}

type SourceStatus struct {
	Name       string `json:"name"`
	Fetched    int    `json:"fetched"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

type ScrapeStatus struct {
	LastRunAt  string         `json:"last_run_at"`
	LastOkAt   string         `json:"last_ok_at"`
	LastError  string         `json:"last_error"`
	LastAdded  int            `json:"last_added"`
	LastMerged int            `json:"last_merged"`
	Running    bool           `json:"running"`
	Sources    []SourceStatus `json:"sources"`
}
