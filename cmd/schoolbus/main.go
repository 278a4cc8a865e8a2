package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"schoolbus/internal/cache"
	"schoolbus/internal/config"
	"schoolbus/internal/events"
	"schoolbus/internal/geo"
	"schoolbus/internal/handler"
	"schoolbus/internal/hub"
	"schoolbus/internal/metrics"
	"schoolbus/internal/middleware"
	"schoolbus/internal/roster"
	"schoolbus/internal/store"
	"schoolbus/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("starting schoolbus tracker",
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"persistence", cfg.DatabaseURL != "",
		"redis_enabled", cfg.RedisEnabled,
		"nats_enabled", cfg.NATSURL != "",
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var pg *store.Postgres
	if cfg.DatabaseURL != "" {
		pg, err = store.OpenPostgres(cfg.DatabaseURL, logger)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pg.Close()

		if err := pg.EnsureSchema(ctx); err != nil {
			logger.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
	}

	var rosterProvider tracker.Roster
	memRoster := roster.NewMemory()
	if cfg.RosterCSVPath != "" {
		loaded, err := roster.LoadCSV(cfg.RosterCSVPath)
		if err != nil {
			logger.Error("failed to load roster CSV", "path", cfg.RosterCSVPath, "error", err)
			os.Exit(1)
		}
		logger.Info("loaded roster CSV", "path", cfg.RosterCSVPath, "students", len(loaded))

		if pg != nil {
			if err := pg.UpsertStudents(ctx, loaded); err != nil {
				logger.Error("failed to seed students table", "error", err)
				os.Exit(1)
			}
		} else {
			for _, s := range loaded {
				memRoster.Add(s)
			}
		}
	}
	if pg != nil {
		rosterProvider = pg
	} else {
		rosterProvider = memRoster
	}

	var redisCache *cache.RedisCache
	if cfg.RedisEnabled {
		redisCache, err = cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisCache.Close()
	}

	var publisher tracker.EventPublisher
	if cfg.NATSURL != "" {
		natsPub, err := events.NewNATSPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to connect to nats", "error", err)
			os.Exit(1)
		}
		defer natsPub.Close()
		publisher = natsPub
	}

	collector := metrics.NewCollector()
	wsHub := hub.NewHub(logger)

	var persister tracker.Persister
	if pg != nil {
		persister = pg
	}

	tk := tracker.New(tracker.Deps{
		Roster:      rosterProvider,
		Persister:   persister,
		Broadcaster: wsHub,
		Publisher:   publisher,
		Metrics:     collector,
		DefaultCenter: geo.Point{
			Lat: cfg.DefaultCenterLat,
			Lng: cfg.DefaultCenterLng,
		},
		Logger: logger,
	})

	if redisCache != nil && cfg.CacheWarmOnStart {
		warmer := cache.NewWarmer(redisCache, func(ctx context.Context) (any, error) {
			return rosterProvider.ActiveStudents(ctx)
		}, cfg.CacheTTL, logger)
		if err := warmer.WarmAll(ctx); err != nil {
			logger.Warn("initial cache warming failed", "error", err)
		}
		go warmer.ScheduleMidnightRefresh(ctx)
	}

	routeHandler := handler.NewRouteHandler(tk, rosterProvider, redisCache, cfg.CacheTTL, logger)
	wsHandler := handler.NewWSHandler(wsHub, tk, collector, cfg.WSSendBuffer, logger)
	healthHandler := handler.NewHealthHandler(tk)
	statsHandler := handler.NewStatsHandler(tk)

	rateLimiter := middleware.NewRateLimiter(
		cfg.RateLimitPerWindow,
		cfg.RateLimitWindow,
		cfg.RateLimitWhitelist,
		handler.ServerStats.IncRateLimitBlocked,
		logger,
	)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/routes", routeHandler.StartRoute)
	mux.HandleFunc("GET /v1/routes", routeHandler.ListRoutes)
	mux.HandleFunc("GET /v1/routes/{id}", routeHandler.GetRoute)
	mux.HandleFunc("POST /v1/routes/{id}/fixes", routeHandler.IngestFix)
	mux.HandleFunc("POST /v1/routes/{id}/pickups", routeHandler.MarkPickup)
	mux.HandleFunc("POST /v1/routes/{id}/end", routeHandler.EndRoute)
	mux.HandleFunc("GET /v1/routes/{id}/map", routeHandler.MapView)
	mux.HandleFunc("GET /v1/students", routeHandler.ListStudents)
	mux.HandleFunc("/v1/ws", wsHandler.ServeWS)

	mux.HandleFunc("GET /v1/stats", statsHandler.GetStats)
	mux.Handle("GET /metrics", collector.Handler())
	mux.HandleFunc("GET /healthz", healthHandler.Healthz)
	mux.HandleFunc("GET /readyz", healthHandler.Readyz)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      handler.GzipMiddleware(handler.CORSMiddleware(rateLimiter.Middleware(mux))),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go wsHub.Run(ctx)

	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
