// Command zeusd runs the transcription orchestration daemon.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"zeus/internal/config"
	"zeus/internal/daemon"
	"zeus/internal/jobs"
	"zeus/internal/logging"
	"zeus/internal/platform"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	store, err := jobs.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return
	}

	client := platform.NewHTTPClient(cfg.Platform)
	d, err := daemon.New(cfg, store, client, logger)
	if err != nil {
		logger.Error("create daemon", logging.Error(err))
		_ = store.Close()
		return
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		logger.Error("start daemon", logging.Error(err))
		return
	}

	<-ctx.Done()
	logger.Info("zeusd shutting down")
}
