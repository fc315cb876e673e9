package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/dukerupert/classpoints/internal/auth"
	"github.com/dukerupert/classpoints/internal/config"
	"github.com/dukerupert/classpoints/internal/database"
	"github.com/dukerupert/classpoints/internal/email"
	"github.com/dukerupert/classpoints/internal/logging"
	"github.com/dukerupert/classpoints/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.Server.LogLevel, cfg.Server.LogFormat)

	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		slog.Error("failed to open database", "driver", cfg.Database.Driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	emailClient := email.NewClient(cfg.Email.PostmarkToken, cfg.Email.FromEmail, cfg.BaseURLOrDefault())
	if !emailClient.Configured() {
		slog.Warn("postmark not configured, password reset emails are disabled")
	}

	srv := server.New(db, cfg, emailClient, logger)

	if cfg.Auth.SuperAdminEmail != "" && cfg.Auth.SuperAdminPassword != "" {
		hash, err := auth.HashPassword(cfg.Auth.SuperAdminPassword)
		if err != nil {
			slog.Error("hash super admin password", "error", err)
			os.Exit(1)
		}
		admin, err := srv.TeacherStore().EnsureSuperAdmin(auth.NormalizeEmail(cfg.Auth.SuperAdminEmail), hash)
		if err != nil {
			slog.Error("bootstrap super admin", "error", err)
			os.Exit(1)
		}
		slog.Info("super admin ready", "email", admin.Email)
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	go srv.RateLimiter().Run(bgCtx, 10*time.Minute)

	if relay := srv.Relay(); relay != nil {
		pingCtx, cancel := context.WithTimeout(bgCtx, 2*time.Second)
		if err := relay.Ping(pingCtx); err != nil {
			slog.Warn("redis unreachable at start-up, relay will keep retrying", "addr", cfg.Redis.Addr, "error", err)
		}
		cancel()
		go relay.Run(bgCtx)
	}

	srv.BackupManager().Start(bgCtx)
	if srv.BackupManager().Enabled() {
		slog.Info("snapshot backups enabled", "bucket", cfg.Backup.Bucket, "retention_days", cfg.Backup.RetentionDays)
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("classpoints starting", "addr", httpServer.Addr, "driver", cfg.Database.Driver, "timezone", cfg.Server.Timezone)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	bgCancel()
	srv.BackupManager().Stop()
}
