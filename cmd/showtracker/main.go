package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"showtracker/api"
	"showtracker/config"
	"showtracker/handlers"
	"showtracker/internal/auth"
	"showtracker/internal/cache"
	"showtracker/internal/database"
	"showtracker/internal/logger"
	"showtracker/internal/search"
	"showtracker/services/metadata"
	"showtracker/services/users"
	"showtracker/services/watched"
	"showtracker/services/watchlist"
)

const shutdownTimeout = 10 * time.Second

func main() {
	config.BindFlags(pflag.CommandLine)
	pflag.Parse()
	configFile, _ := pflag.CommandLine.GetString("config")

	cfg, err := config.Load(configFile)
	if err != nil {
		logger.New("info", "").WithError(err).Fatal("failed to load configuration")
	}
	if addr, _ := pflag.CommandLine.GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if dbPath, _ := pflag.CommandLine.GetString("db"); dbPath != "" {
		cfg.Database.Path = dbPath
	}

	log := logger.New(cfg.Log.Level, cfg.Log.File)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(database.Config{Path: cfg.Database.Path})
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	defer db.Close()

	var store cache.Cache
	switch cfg.Cache.Backend {
	case "redis":
		redis, err := cache.NewRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to redis")
		}
		defer redis.Close()
		store = redis
	default:
		mem := cache.NewMemory()
		defer mem.Close()
		store = mem
	}

	idx, err := search.New(cfg.Search.IndexPath, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open search index")
	}
	defer idx.Close()

	issuer, err := auth.NewTokenIssuer(cfg.JWT.Key, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.Expiry())
	if err != nil {
		log.WithError(err).Fatal("failed to configure token issuer")
	}

	client := metadata.NewClient(metadata.ClientConfig{
		BaseURL:           cfg.TMDb.BaseURL,
		APIKey:            cfg.TMDb.APIKey,
		RequestsPerSecond: cfg.TMDb.RequestsPerSecond,
		Logger:            log,
	})

	conn := db.Connection()
	showRepo := database.NewShowRepository(conn)
	episodeRepo := database.NewEpisodeRepository(conn)

	metaSvc := metadata.NewService(client, showRepo,
		database.NewSeasonRepository(conn), episodeRepo, idx, store, log)
	defer metaSvc.Close()

	userSvc := users.NewService(database.NewUserRepository(conn), log)
	if err := userSvc.EnsureAdmin(ctx); err != nil {
		log.WithError(err).Fatal("failed to bootstrap admin account")
	}

	watchedSvc := watched.NewService(database.NewWatchedEpisodeRepository(conn), episodeRepo, log)
	watchlistSvc := watchlist.NewService(database.NewWatchlistRepository(conn), showRepo, episodeRepo, log)

	// Login and registration get 5 attempts per IP per minute.
	loginLimiter := api.NewIPRateLimiter(rate.Every(12*time.Second), 5)
	defer loginLimiter.Close()

	router := handlers.NewRouter(handlers.RouterConfig{
		Auth:         handlers.NewAuthHandler(userSvc, issuer, log),
		Shows:        handlers.NewShowsHandler(metaSvc, log),
		Watchlist:    handlers.NewWatchlistHandler(watchlistSvc, log),
		Watched:      handlers.NewWatchedHandler(watchedSvc, log),
		Issuer:       issuer,
		LoginLimiter: loginLimiter,
		Log:          log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Server.Addr).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown incomplete")
	}
}
