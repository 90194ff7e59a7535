package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/souqly/marketd/pkg/logger"
)

const defaultShutdownGrace = 30 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("marketd", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	var (
		configPath string
		once       bool
	)
	fs.StringVar(&configPath, "config", "", "Path to configuration directory or file")
	fs.BoolVar(&once, "once", false, "Run every job once and exit")

	if err := fs.Parse(args); err != nil {
		return err
	}
	defer logger.Sync() // best effort

	log := logger.WithModule("bootstrap")

	mon, err := newMonitoring()
	if err != nil {
		return fmt.Errorf("initialise monitoring: %w", err)
	}

	cfg, db, err := connectStore(ctx, configPath, log)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Info("shutdown signal received before the store became ready")
			return nil
		}
		return err
	}
	log = logger.WithModule("bootstrap")
	defer closeDatabase(db, log)

	stack, err := bootstrapRuntime(cfg, db, mon, log)
	if err != nil {
		return err
	}

	grace := cfg.Scheduler.ShutdownGrace
	if grace <= 0 {
		grace = defaultShutdownGrace
	}

	if once {
		tickCtx, cancelTick := graceContext(ctx, grace)
		defer cancelTick()
		report := stack.Scheduler.RunTick(tickCtx)
		log.Info("single run finished", zap.Strings("ran", report.Ran), zap.Strings("failed", report.Failed))
		if len(report.Failed) > 0 {
			return fmt.Errorf("jobs failed: %v", report.Failed)
		}
		return nil
	}

	serverErr := stack.StartOpsServer(log)

	if err := stack.Scheduler.Start(ctx); err != nil {
		stack.Shutdown(context.Background(), log)
		return fmt.Errorf("start scheduler: %w", err)
	}

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error("ops server failed", zap.Error(err))
		}
		<-ctx.Done()
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	stack.Shutdown(shutdownCtx, log)
	log.Info("worker stopped")
	return nil
}

// graceContext returns a context that outlives ctx by grace: it is cancelled only once grace
// has elapsed after ctx ends, or when the returned cancel is called.
func graceContext(ctx context.Context, grace time.Duration) (context.Context, context.CancelFunc) {
	out, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(ctx, func() {
		timer := time.AfterFunc(grace, cancel)
		context.AfterFunc(out, func() { timer.Stop() })
	})
	return out, func() {
		stop()
		cancel()
	}
}
