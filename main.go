package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"golang.org/x/time/rate"
	"gopkg.in/natefinch/lumberjack.v2"

	"streamvault/api"
	"streamvault/handlers"
	"streamvault/internal/config"
	"streamvault/internal/database"
	"streamvault/services/admin"
	"streamvault/services/catalog"
	"streamvault/services/media"
	"streamvault/services/metadata"
	"streamvault/services/seed"
	"streamvault/utils"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.LogPath)
	slog.SetDefault(logger)

	db, err := database.NewDB(database.Config{DatabasePath: cfg.DatabasePath})
	if err != nil {
		logger.Error("database init failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	contentRepo := database.NewContentRepository(db.Connection())
	engagementRepo := database.NewEngagementRepository(db.Connection())

	reconciler := seed.NewReconciler(cfg.SeedPath, contentRepo, logger)
	if err := reconciler.SeedContentIfNeeded(context.Background(), false); err != nil {
		logger.Warn("seed load failed", "error", err)
	}

	checker := media.NewChecker(afero.NewOsFs(), cfg.MediaRoot, reconciler, contentRepo, logger)
	catalogSvc := catalog.NewService(contentRepo, engagementRepo, checker, logger)
	metaClient := metadata.NewClient(cfg.MetadataBaseURL, cfg.MetadataAPIKey)
	adminSvc := admin.NewService(contentRepo, reconciler, metaClient, checker, logger)

	catalogHandler := handlers.NewCatalogHandler(catalogSvc, logger)
	engagementHandler := handlers.NewEngagementHandler(engagementRepo, logger)
	adminHandler := handlers.NewAdminHandler(adminSvc, logger)

	perMinute := cfg.RateLimitPerMinute
	if perMinute < 1 {
		perMinute = 1
	}
	limiter := api.NewIPRateLimiter(rate.Every(time.Minute/time.Duration(perMinute)), cfg.RateLimitBurst)

	r := utils.NewRouter()
	r.Use(api.RequestIDMiddleware())
	r.Use(api.LoggingMiddleware(logger))

	r.HandleFunc("/feed", catalogHandler.Feed).Methods(http.MethodGet)
	r.HandleFunc("/search", catalogHandler.Search).Methods(http.MethodGet)
	r.HandleFunc("/similar", catalogHandler.Similar).Methods(http.MethodGet)
	r.HandleFunc("/recommendations", catalogHandler.Recommendations).Methods(http.MethodGet)
	r.HandleFunc("/content/{extId}", catalogHandler.Detail).Methods(http.MethodGet)

	r.HandleFunc("/likes/toggle", api.RateLimit(limiter, engagementHandler.ToggleLike)).Methods(http.MethodPost)
	r.HandleFunc("/progress", engagementHandler.GetProgress).Methods(http.MethodGet)
	r.HandleFunc("/progress", api.RateLimit(limiter, engagementHandler.PostProgress)).Methods(http.MethodPost)
	r.HandleFunc("/progress", api.RateLimit(limiter, engagementHandler.DeleteProgress)).Methods(http.MethodDelete)
	r.HandleFunc("/progress/continue", engagementHandler.ContinueWatching).Methods(http.MethodGet)

	adm := r.PathPrefix("/admin").Subrouter()
	adm.HandleFunc("/content", adminHandler.List).Methods(http.MethodGet)
	adm.HandleFunc("/content", api.RateLimit(limiter, adminHandler.Create)).Methods(http.MethodPost)
	adm.HandleFunc("/content/{extId}", api.RateLimit(limiter, adminHandler.Update)).Methods(http.MethodPut)
	adm.HandleFunc("/content/{extId}", api.RateLimit(limiter, adminHandler.Delete)).Methods(http.MethodDelete)
	adm.HandleFunc("/content/{extId}/episodes", api.RateLimit(limiter, adminHandler.AddEpisode)).Methods(http.MethodPost)
	adm.HandleFunc("/content/{extId}/episodes/{season}/{episode}", api.RateLimit(limiter, adminHandler.RemoveEpisode)).Methods(http.MethodDelete)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

func newLogger(path string) *slog.Logger {
	var out io.Writer = os.Stdout
	if path != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   path,
			MaxSize:    20, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}
	return slog.New(slog.NewJSONHandler(out, nil))
}
