package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/choretab/choretab/internal/backup"
	"github.com/choretab/choretab/internal/clock"
	"github.com/choretab/choretab/internal/config"
	"github.com/choretab/choretab/internal/database"
	"github.com/choretab/choretab/internal/event"
	"github.com/choretab/choretab/internal/jobs"
	"github.com/choretab/choretab/internal/ledger"
	"github.com/choretab/choretab/internal/logging"
	"github.com/choretab/choretab/internal/server"
	ws "github.com/choretab/choretab/internal/websocket"
	"github.com/choretab/choretab/internal/workflow"
)

func main() {
	configPath := flag.String("config", os.Getenv("CHORETAB_CONFIG"), "path to config.toml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := logging.Setup(cfg.Server.LogLevel)

	db, err := database.Open(cfg.DB.Path)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	hub := ws.NewHub(logger.With("component", "websocket"))

	sinks := []event.Sink{hub}
	if cfg.Events.WebhookURL != "" {
		sinks = append(sinks, event.NewWebhookSink(cfg.Events.WebhookURL, logger.With("component", "webhook")))
	}

	clk := clock.NewReal(cfg.Location())
	lgr := ledger.New(db, clk, logger.With("component", "ledger"))
	svc := workflow.New(db, lgr, clk, event.MultiSink(sinks), logger.With("component", "workflow"))

	jobList := []jobs.Job{
		jobs.Generation(svc, logger, cfg.Jobs.GenerationInterval.Duration),
		jobs.AutoApprove(svc, logger, cfg.Jobs.AutoApproveInterval.Duration),
		jobs.MissedSweep(svc, logger, cfg.Jobs.MissedInterval.Duration),
		jobs.RewardExpiry(svc, logger, cfg.Jobs.RewardExpiryInterval.Duration, cfg.Jobs.RewardMaxPending.Duration),
		jobs.BalanceAudit(lgr, logger, cfg.Jobs.AuditInterval.Duration),
	}
	if cfg.Backup.Enabled {
		bk := backup.New(db, cfg.DB.Path, backup.S3Config{
			Endpoint:  cfg.Backup.Endpoint,
			Bucket:    cfg.Backup.Bucket,
			Region:    cfg.Backup.Region,
			AccessKey: cfg.Backup.AccessKeyID,
			SecretKey: cfg.Backup.SecretAccessKey,
		}, cfg.Backup.Passphrase, 30, logger.With("component", "backup"))
		jobList = append(jobList, jobs.Backup(bk, logger, cfg.Jobs.BackupInterval.Duration))
	}

	runner := jobs.NewRunner(logger.With("component", "jobs"), jobList...)
	runner.Start(context.Background())
	defer runner.Stop()

	srv := server.New(cfg.Server.Port, hub, lgr, logger.With("component", "http"))
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("http server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown", "error", err)
	}
}
