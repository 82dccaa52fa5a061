// Package ingest runs every enabled source adapter and feeds the postings
// through the lead pipeline into the repository.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/dedupe"
	"leadhunt-engine/internal/domain"
	"leadhunt-engine/internal/lifecycle"
	"leadhunt-engine/internal/logging"
	"leadhunt-engine/internal/metrics"
	"leadhunt-engine/internal/scrape/types"
	"leadhunt-engine/internal/store"
)

var ErrAllSourcesFailed = errors.New("every enabled source failed")

type Options struct {
	Sources  []domain.Source
	Registry types.Registry
	Config   func() config.Config
	Notifier lifecycle.Notifier
	Logger   *zap.Logger
	Now      func() time.Time
	// NotifyTimeout bounds each notification; zero means 10s.
	NotifyTimeout time.Duration
}

type Summary struct {
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Added      int                  `json:"added"`
	Merged     int                  `json:"merged"`
	Dropped    int                  `json:"dropped"`
	Sources    []types.SourceStatus `json:"sources"`
}

type Runner struct {
	repo  store.Repository
	opts  Options
	log   *zap.Logger
	locks keyLocks
	sf    singleflight.Group
	wg    sync.WaitGroup // in-flight notifications

	statusMu sync.Mutex
	status   atomic.Value // types.ScrapeStatus
}

func NewRunner(repo store.Repository, opts Options) *Runner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 10 * time.Second
	}
	r := &Runner{repo: repo, opts: opts, log: logging.OrNop(opts.Logger).Named("ingest")}
	r.status.Store(types.ScrapeStatus{})
	return r
}

func (r *Runner) Status() types.ScrapeStatus {
	return r.status.Load().(types.ScrapeStatus)
}

func (r *Runner) updateStatus(fn func(*types.ScrapeStatus)) {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	st := r.Status()
	fn(&st)
	r.status.Store(st)
}

// Run performs one ingestion. Concurrent callers share a single run. The
// caller's cancellation does not reach adapters; each is bounded by its own
// timeout instead.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	v, err, _ := r.sf.Do("run", func() (any, error) {
		return r.run(context.WithoutCancel(ctx))
	})
	s, _ := v.(Summary)
	return s, err
}

type fetched struct {
	src    domain.Source
	res    types.ScrapeResult
	status types.SourceStatus
	ok     bool
}

func (r *Runner) run(ctx context.Context) (Summary, error) {
	cfg := r.opts.Config()
	start := r.opts.Now().UTC()
	sum := Summary{StartedAt: start}

	r.updateStatus(func(st *types.ScrapeStatus) {
		st.Running = true
		st.LastRunAt = start.Format(time.RFC3339)
	})
	r.notify(domain.LeadEvent{Type: domain.EventIngestStarted, At: start})

	pipe, err := NewPipeline(cfg)
	if err != nil {
		r.finish(sum, err)
		return sum, err
	}

	results := r.fetchAll(ctx, cfg)

	var failed, enabled int
	for _, f := range results {
		enabled++
		if !f.ok {
			failed++
		}
		sum.Sources = append(sum.Sources, f.status)
	}

	for i := range results {
		if !results[i].ok {
			continue
		}
		added, merged, dropped := r.process(ctx, pipe, results[i])
		sum.Added += added
		sum.Merged += merged
		sum.Dropped += dropped

		if fin := results[i].res.Finalize; fin != nil && dropped == 0 {
			if err := fin(ctx); err != nil {
				r.log.Warn("finalize failed", zap.String("source", results[i].src.Name), zap.Error(err))
			}
		}
	}

	sum.FinishedAt = r.opts.Now().UTC()
	if err := r.repo.SetLastUpdated(ctx, sum.FinishedAt); err != nil {
		r.log.Error("record last updated", zap.Error(err))
	}

	var runErr error
	if enabled > 0 && failed == enabled {
		runErr = ErrAllSourcesFailed
	}
	r.finish(sum, runErr)
	return sum, runErr
}

func (r *Runner) finish(sum Summary, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	end := r.opts.Now().UTC()
	metrics.ObserveRun(outcome, end.Sub(sum.StartedAt))

	r.updateStatus(func(st *types.ScrapeStatus) {
		st.Running = false
		st.LastAdded = sum.Added
		st.LastMerged = sum.Merged
		st.Sources = sum.Sources
		if err != nil {
			st.LastError = err.Error()
		} else {
			st.LastError = ""
			st.LastOkAt = end.Format(time.RFC3339)
		}
	})

	if err != nil {
		r.log.Warn("ingest finished with error", zap.Error(err), zap.Int("added", sum.Added), zap.Int("merged", sum.Merged))
	} else {
		r.log.Info("ingest finished", zap.Int("added", sum.Added), zap.Int("merged", sum.Merged), zap.Int("dropped", sum.Dropped))
	}
	r.notify(domain.LeadEvent{Type: domain.EventIngestDone, At: end,
		Message: fmt.Sprintf("added=%d merged=%d", sum.Added, sum.Merged)})
}

// fetchAll runs the enabled sources concurrently and waits for all of them
// to settle. Failures are recorded, never propagated.
func (r *Runner) fetchAll(ctx context.Context, cfg config.Config) []fetched {
	var enabled []domain.Source
	for _, s := range r.opts.Sources {
		if s.Enabled {
			enabled = append(enabled, s)
		}
	}

	out := make([]fetched, len(enabled))
	var g errgroup.Group
	for i, src := range enabled {
		g.Go(func() error {
			out[i] = r.fetchOne(ctx, src, cfg)
			return nil // best-effort: don't cancel siblings
		})
	}
	_ = g.Wait()
	return out
}

func (r *Runner) fetchOne(ctx context.Context, src domain.Source, cfg config.Config) fetched {
	f := fetched{src: src, status: types.SourceStatus{Name: src.Name}}
	start := time.Now()

	fail := func(err error) fetched {
		f.status.Error = err.Error()
		f.status.DurationMs = time.Since(start).Milliseconds()
		metrics.ObserveAdapterFailure(src.Name)
		r.log.Warn("source failed", zap.String("source", src.Name), zap.String("kind", src.Kind), zap.Error(err))
		return f
	}

	a, ok := r.opts.Registry.Lookup(src.Kind)
	if !ok {
		return fail(fmt.Errorf("no adapter for kind %q", src.Kind))
	}

	timeout := time.Duration(cfg.App.AdapterTimeoutSeconds) * time.Second
	if src.TimeoutSeconds > 0 {
		timeout = time.Duration(src.TimeoutSeconds) * time.Second
	}
	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		res types.ScrapeResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{err: fmt.Errorf("adapter panic: %v", p)}
			}
		}()
		res, err := a.Fetch(fctx, src)
		done <- result{res: res, err: err}
	}()

	// an adapter that ignores its context is abandoned at the deadline
	select {
	case <-fctx.Done():
		return fail(fmt.Errorf("timed out after %s", timeout))
	case res := <-done:
		if res.err != nil {
			return fail(res.err)
		}
		f.res = res.res
		f.ok = true
		f.status.Fetched = len(res.res.Postings)
		f.status.DurationMs = time.Since(start).Milliseconds()
		metrics.ObservePostings(src.Name, len(res.res.Postings))
		r.log.Info("source fetched", zap.String("source", src.Name), zap.Int("postings", len(res.res.Postings)))
		return f
	}
}

// process pushes one source's postings through the pipeline with bounded
// parallelism. Writes to the same dedupe key are serialized.
func (r *Runner) process(ctx context.Context, pipe *Pipeline, f fetched) (added, merged, dropped int) {
	workers := r.opts.Config().App.IngestWorkers
	if workers <= 0 {
		workers = 4
	}
	now := r.opts.Now()

	var nAdded, nMerged, nDropped atomic.Int64
	var g errgroup.Group
	g.SetLimit(workers)

	for _, raw := range f.res.Postings {
		g.Go(func() error {
			lead, created, err := r.ingestOne(ctx, pipe, raw, f.src, now)
			if err != nil {
				nDropped.Add(1)
				metrics.ObserveDropped(f.src.Name)
				r.log.Warn("posting dropped", zap.String("source", f.src.Name), zap.String("title", raw.Title), zap.Error(err))
				return nil
			}
			metrics.ObserveUpsert(created)
			if created {
				nAdded.Add(1)
				r.notify(domain.LeadEvent{Type: domain.EventLeadCreated, Lead: &lead, At: now.UTC()})
			} else {
				nMerged.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(nAdded.Load()), int(nMerged.Load()), int(nDropped.Load())
}

func (r *Runner) ingestOne(ctx context.Context, pipe *Pipeline, raw domain.RawPosting, src domain.Source, now time.Time) (lead domain.Lead, created bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("pipeline panic: %v", p)
		}
	}()

	cand, err := pipe.Candidate(raw, src, now)
	if err != nil {
		return domain.Lead{}, false, err
	}

	unlock := r.locks.lock(cand.DedupeKey)
	defer unlock()

	lead, created, err = r.repo.Upsert(ctx, cand, dedupe.Merge)
	if err != nil {
		return domain.Lead{}, false, fmt.Errorf("upsert: %w", err)
	}
	// a merge can change postedAt and budget, so score what was stored
	lead.Score = pipe.scorer.Score(lead, now)
	return lead, created, nil
}

// notify hands ev to the notifier in the background, bounded by
// NotifyTimeout.
func (r *Runner) notify(ev domain.LeadEvent) {
	if r.opts.Notifier == nil {
		return
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				r.log.Error("notifier panic", zap.String("event", ev.Type), zap.Any("panic", p))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), r.opts.NotifyTimeout)
		defer cancel()
		if err := r.opts.Notifier.Notify(ctx, ev); err != nil {
			r.log.Warn("notify failed", zap.String("event", ev.Type), zap.Error(err))
		}
	}()
}

// Wait blocks until in-flight notifications finish.
func (r *Runner) Wait() {
	r.wg.Wait()
}
