package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.io/infrasutra/threadparse/internal/api"
	"github.io/infrasutra/threadparse/internal/auth"
	"github.io/infrasutra/threadparse/internal/config"
	"github.io/infrasutra/threadparse/internal/janitor"
	"github.io/infrasutra/threadparse/internal/metrics"
	"github.io/infrasutra/threadparse/internal/notify"
	"github.io/infrasutra/threadparse/internal/smtpserver"
	"github.io/infrasutra/threadparse/internal/sse"
	"github.io/infrasutra/threadparse/internal/store"
	"github.io/infrasutra/threadparse/internal/worker"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		logger.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		logger.Error("ensure schema", "error", err)
		os.Exit(1)
	}

	authManager, err := auth.New(cfg.AuthSecret, cfg.Expiry)
	if err != nil {
		logger.Error("init auth", "error", err)
		os.Exit(1)
	}
	if cfg.AuthSecret == "" {
		logger.Warn("AUTH_SECRET not set; conversation links stop working on restart")
	}

	m := metrics.New()
	hub := sse.NewHub()

	notifiers := notify.Multi{notify.HubNotifier{Hub: hub}}
	if cfg.NotifyEnabled {
		notifiers = append(notifiers, notify.NewMailer(notify.MailerConfig{
			RelayAddr: cfg.RelayAddr,
			Username:  cfg.RelayUsername,
			Password:  cfg.RelayPassword,
			From:      cfg.NotifyFrom,
			PublicURL: cfg.PublicURL,
		}, authManager, logger))
		logger.Info("email notifications enabled", "relay", cfg.RelayAddr)
	}

	pool := worker.New(worker.Config{
		Workers:      cfg.Workers,
		QueueSize:    cfg.QueueSize,
		MaxAttempts:  cfg.MaxAttempts,
		RetryBackoff: cfg.RetryBackoff,
		Expiry:       cfg.Expiry,
	}, db, notifiers, m, logger)
	pool.Start(ctx)
	go resumePending(ctx, db, pool, logger)

	purger, err := janitor.New(db, cfg.PurgeSchedule, m, logger)
	if err != nil {
		logger.Error("init janitor", "error", err)
		os.Exit(1)
	}
	purger.Start(ctx)

	apiServer := api.NewServer(db, pool, authManager, hub, m, logger)

	smtpAuthCfg := smtpserver.AuthConfig{
		Enabled:  cfg.SMTPAuthEnabled,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
	}
	if smtpAuthCfg.Enabled {
		logger.Info("smtp auth enabled", "username", smtpAuthCfg.Username)
	} else {
		logger.Warn("smtp auth disabled; server accepts unauthenticated connections")
	}

	smtpAddr := fmt.Sprintf(":%d", cfg.SMTPPort)
	smtpSrv := smtpserver.New(db, pool, m, logger, smtpAddr, smtpAuthCfg)

	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           apiServer,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := smtpSrv.ListenAndServe(); err != nil {
			logger.Error("smtp server stopped", "error", err)
		}
	}()

	go func() {
		logger.Info("http server listening", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown http", "error", err)
	}
	if err := smtpSrv.Close(); err != nil {
		logger.Error("shutdown smtp", "error", err)
	}
	purger.Stop()
	stop()
	pool.Stop()
}

// resumePending queues conversations that were stored but never parsed,
// e.g. because the process stopped with jobs still in the queue.
func resumePending(ctx context.Context, db *store.Store, pool *worker.Pool, logger *slog.Logger) {
	ids, err := db.ListPending(ctx)
	if err != nil {
		logger.Error("list pending conversations", "error", err)
		return
	}
	if len(ids) == 0 {
		return
	}
	logger.Info("resuming pending conversations", "count", len(ids))

	for _, id := range ids {
		conversation, err := db.GetConversation(ctx, id)
		if err != nil {
			logger.Warn("load pending conversation", "conversation", id, "error", err)
			continue
		}
		job := worker.Job{ConversationID: id, Notify: conversation.Source == store.SourceSMTP}
		for {
			err := pool.Enqueue(ctx, job)
			if !errors.Is(err, worker.ErrQueueFull) {
				if err != nil {
					logger.Warn("resume conversation", "conversation", id, "error", err)
				}
				break
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
		}
	}
}

func logLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}
	return level
}
