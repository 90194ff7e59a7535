package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/souqly/marketd/internal/api"
	"github.com/souqly/marketd/internal/app"
	"github.com/souqly/marketd/internal/database"
	"github.com/souqly/marketd/internal/jobs"
	"github.com/souqly/marketd/internal/monitoring"
	"github.com/souqly/marketd/internal/monitoring/checks"
	"github.com/souqly/marketd/internal/notifications"
	"github.com/souqly/marketd/internal/scheduler"
	apperrors "github.com/souqly/marketd/pkg/errors"
	"github.com/souqly/marketd/pkg/logger"
)

const (
	defaultRetryInterval = time.Minute
	opsShutdownTimeout   = 5 * time.Second
)

// runtimeStack bundles the long-lived components of the worker.
type runtimeStack struct {
	Config    *app.Config
	DB        *gorm.DB
	Monitor   *monitoring.Module
	Sink      *notifications.Sink
	Scheduler *scheduler.Scheduler
	Server    *http.Server
}

func newMonitoring() (*monitoring.Module, error) {
	mon, err := monitoring.NewModule(monitoring.Options{})
	if err != nil {
		return nil, err
	}
	monitoring.SetModule(mon)
	return mon, nil
}

// connectStore loads configuration and opens the store, retrying every scheduler interval
// until it succeeds or ctx ends. Missing configuration and an unreachable store are logged
// at error level; neither terminates the process.
func connectStore(ctx context.Context, configPath string, log *zap.Logger) (*app.Config, *gorm.DB, error) {
	loggingReady := false
	for attempt := 1; ; attempt++ {
		cfg, err := app.LoadConfig(configPath)
		if err == nil && !loggingReady {
			if logErr := app.ConfigureLogging(cfg.Log.Level); logErr != nil {
				log.Warn("invalid log level; keeping defaults", zap.String("level", cfg.Log.Level), zap.Error(logErr))
			} else {
				log = logger.WithModule("bootstrap")
			}
			loggingReady = true
		}

		retry := defaultRetryInterval
		if cfg != nil && cfg.Scheduler.Interval > 0 {
			retry = cfg.Scheduler.Interval
		}

		if err == nil {
			err = cfg.StoreReady()
		}
		if err == nil {
			var db *gorm.DB
			if db, err = database.OpenAndMigrate(ctx, cfg.DatabaseSettings()); err == nil {
				monitoring.RecordStoreReady(true)
				log.Info("store connected",
					zap.String("driver", cfg.DatabaseSettings().Driver),
					zap.Int("attempt", attempt),
				)
				return cfg, db, nil
			}
		}

		monitoring.RecordStoreReady(false)
		log.Error("store not ready; worker idle",
			zap.String("kind", string(apperrors.KindOf(err))),
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", retry),
			zap.Error(err),
		)

		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// bootstrapRuntime wires the notification sink, the jobs and the scheduler around an open store.
func bootstrapRuntime(cfg *app.Config, db *gorm.DB, mon *monitoring.Module, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{Config: cfg, DB: db, Monitor: mon}

	sinkOpts := []notifications.Option{notifications.WithPushTimeout(cfg.Push.Timeout)}
	pushCfg := cfg.PushSettings()
	if pushCfg.Configured() {
		sinkOpts = append(sinkOpts, notifications.WithPusher(notifications.NewWebPusher(pushCfg)))
		log.Info("push delivery enabled", zap.String("subject", pushCfg.Subject))
	} else {
		log.Warn("push delivery disabled: VAPID key pair not configured")
	}

	sink, err := notifications.NewSink(db, sinkOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise notification sink: %w", err)
	}
	stack.Sink = sink

	plan := scheduler.DefaultPlan(jobs.Deps{
		DB:       db,
		Notifier: sink,
		Config:   cfg.JobSettings(),
	})
	stack.Scheduler, err = scheduler.New(plan, scheduler.WithInterval(cfg.Scheduler.Interval))
	if err != nil {
		return nil, fmt.Errorf("initialise scheduler: %w", err)
	}

	if mon != nil {
		mon.Health().RegisterReadiness(checks.Database(db, cfg.Database.Timeout))
		maxAge := cfg.Monitoring.JobMaxAge
		// Retention runs daily; its freshness window must cover a full cycle.
		if day := 1440 * cfg.Scheduler.Interval; day > maxAge {
			maxAge = day + cfg.Scheduler.Interval
		}
		mon.Health().RegisterReadiness(checks.Jobs(maxAge))
	}

	if cfg.Monitoring.Enabled && mon != nil {
		if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
			gin.SetMode(gin.ReleaseMode)
		}
		router, err := api.NewRouter(mon)
		if err != nil {
			return nil, fmt.Errorf("build ops router: %w", err)
		}
		stack.Server = &http.Server{
			Addr:              strings.TrimSpace(cfg.Monitoring.Address),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return stack, nil
}

// StartOpsServer serves the ops router in the background. The returned channel yields a
// serve error, if any, and is nil when the ops surface is disabled.
func (s *runtimeStack) StartOpsServer(log *zap.Logger) <-chan error {
	if s.Server == nil {
		return nil
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("ops server listening", zap.String("addr", s.Server.Addr))
		if err := s.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()
	return serverErr
}

// Shutdown stops the scheduler within ctx and then the ops server.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if s.Scheduler != nil {
		if err := s.Scheduler.Stop(ctx); err != nil {
			log.Warn("scheduler did not stop within the grace period", zap.Error(err))
		}
	}

	if s.Server != nil {
		serverCtx, cancel := context.WithTimeout(context.Background(), opsShutdownTimeout)
		defer cancel()
		if err := s.Server.Shutdown(serverCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn("ops server shutdown failed", zap.Error(err))
		}
	}
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if err := database.Close(db); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
