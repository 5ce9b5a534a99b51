package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/machineskills/console/cmd/console/cli"
	"github.com/machineskills/console/internal/admins"
	"github.com/machineskills/console/internal/app"
	"github.com/machineskills/console/internal/auth"
	"github.com/machineskills/console/internal/backend"
	"github.com/machineskills/console/internal/centers"
	"github.com/machineskills/console/internal/dashboard"
	"github.com/machineskills/console/internal/drafts"
	"github.com/machineskills/console/internal/gallery"
	"github.com/machineskills/console/internal/notify"
	"github.com/machineskills/console/internal/observability"
	"github.com/machineskills/console/internal/platform/cache"
	"github.com/machineskills/console/internal/platform/db"
	"github.com/machineskills/console/internal/products"
	"github.com/machineskills/console/internal/shared"
	"github.com/machineskills/console/internal/staging"
	"github.com/machineskills/console/internal/view"
	"github.com/machineskills/console/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		jobsCLI := cli.NewJobsCLI(cfg.QueueRedis())
		code := jobsCLI.Command(ctx, os.Args[2:], os.Stdout, os.Stderr)
		_ = jobsCLI.Close()
		os.Exit(code)
	}

	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	var auditRecorder shared.AuditRecorder = shared.NopAuditRecorder{}
	if cfg.AuditEnabled() {
		pool, err := db.New(ctx, cfg.PGDSN, db.Options{
			MaxConns:        cfg.PGMaxConns,
			ApplicationName: "machineskills-console",
			ConnectTimeout:  5 * time.Second,
		})
		if err != nil {
			logger.Error("connect postgres", slog.Any("error", err))
			os.Exit(1)
		}
		defer pool.Close()
		if err := db.EnsureSchema(ctx, pool); err != nil {
			logger.Error("ensure audit schema", slog.Any("error", err))
			os.Exit(1)
		}
		auditRecorder = shared.NewAuditLogger(pool)
	}

	sessionManager := shared.NewSessionManager(redisClient, "console_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	metrics := observability.NewMetrics()

	client, err := backend.New(backend.Config{
		BaseURL: cfg.BackendBaseURL,
		Timeout: cfg.BackendTimeout,
		Logger:  logger,
		OnError: metrics.ObserveBackendError,
	})
	if err != nil {
		logger.Error("init backend client", slog.Any("error", err))
		os.Exit(1)
	}

	templates, err := view.NewEngine(view.WithAssetURL(client.AssetURL))
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	stage, err := staging.New(staging.Config{Dir: cfg.StagingDir, MaxBytes: cfg.UploadMaxBytes(), Logger: logger})
	if err != nil {
		logger.Error("init staging", slog.Any("error", err))
		os.Exit(1)
	}

	toasts := notify.NewSessionSink(cfg.ToastDismiss, logger)
	store := drafts.NewStore(drafts.Config{
		Previews: stage,
		Notifier: toasts,
		Observer: metrics,
		Logger:   logger,
	})
	defer func() {
		if n := store.CloseAll(); n > 0 {
			logger.Info("closed open drafts", slog.Int("count", n))
		}
	}()
	metrics.TrackActivePreviews(stage.ActivePreviews)
	metrics.TrackOpenDrafts(store.Len)
	go store.RunJanitor(ctx, cfg.DraftTTL, janitorInterval(cfg.DraftTTL))

	pages := &view.Responder{
		Engine:   templates,
		CSRF:     csrfManager,
		Sessions: sessionManager,
		Logger:   logger,
		Toasts:   toasts,
		OnSessionEnd: func(_ context.Context, sessionID string) {
			store.CloseOwner(sessionID)
		},
	}

	inspector := asynq.NewInspector(cfg.QueueRedis())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("close asynq inspector", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      auth.NewHandler(logger, client, pages, store),
		DashboardHandler: dashboard.NewHandler(logger, dashboard.NewService(client), pages),
		GalleryHandler:   gallery.NewHandler(logger, client, pages, store, stage, auditRecorder),
		CentersHandler:   centers.NewHandler(logger, client, pages, store, stage, auditRecorder),
		ProductsHandler:  products.NewHandler(logger, client, pages, store, stage, auditRecorder),
		AdminsHandler:    admins.NewHandler(logger, client, pages, auditRecorder),
		Previews:         stage,
		JobHandler:       jobs.NewHandler(inspector, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:              cfg.AppAddr,
		Handler:           router,
		ReadTimeout:       cfg.AppReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.AppWriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("http server starting",
			slog.String("addr", cfg.AppAddr),
			slog.String("backend", cfg.BackendBaseURL),
			slog.Bool("audit", cfg.AuditEnabled()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", slog.Any("error", err))
	}
}

// janitorInterval checks a few times per draft lifetime, at most once a minute.
func janitorInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	if interval < time.Minute {
		return time.Minute
	}
	return interval
}
