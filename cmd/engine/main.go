package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"leadhunt-engine/internal/config"
	"leadhunt-engine/internal/events"
	"leadhunt-engine/internal/httpapi"
	"leadhunt-engine/internal/ingest"
	"leadhunt-engine/internal/lifecycle"
	"leadhunt-engine/internal/logging"
	"leadhunt-engine/internal/notify"
	"leadhunt-engine/internal/query"
	"leadhunt-engine/internal/scheduler"
	"leadhunt-engine/internal/scrape/board"
	"leadhunt-engine/internal/scrape/inbox"
	"leadhunt-engine/internal/scrape/rss"
	"leadhunt-engine/internal/scrape/types"
	"leadhunt-engine/internal/scrape/util"
	"leadhunt-engine/internal/store"
)

func main() {
	opts, err := parseOptions(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if opts == nil {
		return
	}
	if err := run(*opts); err != nil {
		fmt.Fprintln(os.Stderr, "engine:", err)
		os.Exit(1)
	}
}

func run(opts options) error {
	if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
		return err
	}

	userCfgPath, err := config.EnsureUserConfig(opts.DataDir, opts.DefaultConfig)
	if err != nil {
		return fmt.Errorf("config bootstrap failed: %w", err)
	}

	// Load config and keep it reloadable
	var cfgVal atomic.Value // stores config.Config
	loadCfg := func() (config.Config, error) {
		return config.Load(userCfgPath)
	}
	cfg, err := loadCfg()
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", userCfgPath, err)
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	cfgVal.Store(cfg)
	current := func() config.Config { return cfgVal.Load().(config.Config) }

	logger, err := logging.New(opts.DevLog || cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	lock, err := store.LockDataDir(opts.DataDir)
	if err != nil {
		return err
	}
	defer func() { _ = lock.Unlock() }()

	var repo store.Repository
	if opts.Memory {
		repo = store.NewMemoryRepository()
		logger.Warn("using in-memory repository; leads are lost on exit")
	} else {
		dbPath := filepath.Join(opts.DataDir, "leadhunt.db")
		db, err := store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		repo = store.NewSQLiteRepository(db)
		logger.Info("database ready", zap.String("path", dbPath))
	}

	hub := events.NewHub()
	notifiers := notify.Multi{hub}
	if len(cfg.Notify.KafkaBrokers) > 0 {
		k, err := notify.NewKafka(cfg.Notify.KafkaBrokers, cfg.Notify.KafkaTopic, logger)
		if err != nil {
			return fmt.Errorf("kafka notifier: %w", err)
		}
		defer k.Close()
		notifiers = append(notifiers, k)
		logger.Info("kafka notifications enabled", zap.String("topic", cfg.Notify.KafkaTopic))
	}

	hc := &http.Client{Timeout: 45 * time.Second}
	limiter := util.NewHostLimiter(1, 2)
	registry := types.NewRegistry(
		rss.New(hc, limiter),
		board.New(hc, limiter),
		inbox.New(logger),
	)

	runner := ingest.NewRunner(repo, ingest.Options{
		Sources:  cfg.Sources,
		Registry: registry,
		Config:   current,
		Notifier: notifiers,
		Logger:   logger,
	})
	ctl := lifecycle.New(repo, notifiers, lifecycle.Options{
		AllowTerminalReopen: func() bool { return current().Lifecycle.AllowTerminalReopen },
		Logger:              logger,
	})
	qs := query.New(repo, cfg.Sources, current, nil)

	refresh := func(ctx context.Context) error {
		_, err := runner.Run(ctx)
		return err
	}
	sched := scheduler.New(logger)
	runTimeout := time.Duration(cfg.App.AdapterTimeoutSeconds)*time.Second + time.Minute
	if err := sched.Add(cfg.App.RefreshCron, "refresh", runTimeout, refresh); err != nil {
		return err
	}
	sched.Start()
	if !opts.NoRefresh {
		sched.RunNow("refresh", runTimeout, refresh)
	}

	handler := httpapi.NewRouter(httpapi.Deps{
		Query:       qs,
		Lifecycle:   ctl,
		Ingest:      runner,
		Hub:         hub,
		Logger:      logger,
		CfgVal:      &cfgVal,
		UserCfgPath: userCfgPath,
		LoadCfg:     loadCfg,
	})

	addr := cfg.App.Addr
	if opts.Addr != "" {
		addr = opts.Addr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("engine listening", zap.String("addr", "http://"+ln.Addr().String()), zap.Int("sources", len(cfg.Sources)))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	sched.Stop(shutdownCtx)
	ctl.Wait()
	runner.Wait()
	logger.Info("shutdown complete")
	return nil
}
