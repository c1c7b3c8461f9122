// Command scripthost runs a scene of scripted objects, headless or in a
// window with the debug inspector.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/plus3/scripthost/internal/config"
	"github.com/plus3/scripthost/internal/logging"
	"github.com/plus3/scripthost/internal/reload"
	"github.com/plus3/scripthost/script"
)

func main() {
	cfg, err := config.Parse(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, teardown, err := logging.Init(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("logging: %v", err)
	}
	defer teardown()

	host, err := NewHost(cfg, logger, script.SystemClock{})
	if err != nil {
		log.Fatalf("load scene: %v", err)
	}
	defer func() {
		if err := host.Close(); err != nil {
			logger.Error("scripthost: close failed", "error", err)
		}
	}()

	if err := host.Spawn(); err != nil {
		logger.Warn("scripthost: some scripts failed to start", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	if cfg.Watch {
		watch(ctx, host, logger)
	}

	if cfg.Window {
		if err := runWindow(host, "scripthost", cfg.Width, cfg.Height); err != nil {
			logger.Error("scripthost: window failed", "error", err)
		}
		return
	}

	logger.Info("scripthost: running", "tick", cfg.TickInterval, "instances", len(host.Controller().Instances()))
	host.Controller().Run(ctx, cfg.TickInterval)
	stats := host.Controller().Stats()
	logger.Info("scripthost: stopped", "ticks", stats.TickCount, "avg_tick", stats.AvgTick, "coroutines", stats.Scheduler.Started)
}

// watch reloads changed script files until ctx is done.
func watch(ctx context.Context, host *Host, logger *slog.Logger) {
	dir := host.SourceDir()
	if dir == "" {
		logger.Warn("scripthost: watch needs a scene file; embedded scripts are not watched")
		return
	}
	w, err := reload.New([]string{dir}, ".tengo", ".lua")
	if err != nil {
		logger.Error("scripthost: watch failed", "dir", dir, "error", err)
		return
	}
	go func() {
		defer w.Close()
		w.Forward(ctx, host.Controller(), host.Reload, func(err error) {
			logger.Warn("scripthost: watcher error", "error", err)
		})
	}()
	logger.Info("scripthost: watching scripts", "dir", dir)
}
