package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"authorsite/internal/auth"
	"authorsite/internal/book"
	"authorsite/internal/config"
	"authorsite/internal/logging"
	"authorsite/internal/ratelimit"
	"authorsite/internal/server"
	"authorsite/internal/session"
	"authorsite/internal/settings"
	"authorsite/internal/storage"
	"authorsite/pkg/database"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := logging.InitLogger(cfg.LogLevel)

	logs, err := logging.Open(cfg.LogDir)
	if err != nil {
		log.Fatalf("failed to open logs: %v", err)
	}
	defer logs.Close()

	dbCfg := database.Config{
		Driver:   cfg.DBDriver,
		Path:     cfg.DBPath,
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		Name:     cfg.DBName,
		User:     cfg.DBUser,
		Password: cfg.DBPass,
	}
	db, err := database.Open(dbCfg)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db, cfg.DBDriver); err != nil {
		log.Fatalf("failed to migrate: %v", err)
	}
	seed(db, cfg.SeedFile, logger)

	admin, usingDefault, err := auth.NewAdmin(cfg.AdminUsername, cfg.AdminPasswordHash, config.DefaultAdminPassword)
	if err != nil {
		log.Fatalf("invalid admin credential: %v", err)
	}
	if usingDefault {
		logger.Warn("ADMIN_PASSWORD_HASH is unset; the built-in default admin password is active")
	}
	if cfg.JWTKey == config.Defaults().JWTKey {
		logger.Warn("JWT_KEY still holds the shipped placeholder; set a random value")
	}

	ttl, err := cfg.SessionDuration()
	if err != nil {
		log.Fatalf("invalid session ttl: %v", err)
	}
	var sessions session.Store
	var limiter ratelimit.Limiter = ratelimit.Unlimited{}
	if cfg.RedisAddr != "" {
		rs := session.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, ttl)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rs.Ping(ctx)
		cancel()
		if err != nil {
			log.Fatalf("failed to reach redis: %v", err)
		}
		defer rs.Close()
		sessions = rs

		if cfg.LoginRateLimitPerMinute > 0 {
			rl, err := ratelimit.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, "authorsite:login", cfg.LoginRateLimitPerMinute, time.Minute)
			if err != nil {
				log.Fatalf("failed to init rate limiter: %v", err)
			}
			defer rl.Close()
			limiter = rl
		}
	} else {
		sessions = session.NewMemoryStore(ttl)
		if cfg.LoginRateLimitPerMinute > 0 {
			ml, err := ratelimit.NewMemoryLimiter(cfg.LoginRateLimitPerMinute, time.Minute)
			if err != nil {
				log.Fatalf("failed to init rate limiter: %v", err)
			}
			limiter = ml
		}
	}

	objects, err := openObjectStore(cfg)
	if err != nil {
		log.Fatalf("failed to init upload storage: %v", err)
	}

	srv, err := server.New(server.Deps{
		Config:   cfg,
		Books:    book.NewManager(db, logger),
		Settings: settings.NewManager(db, logger),
		Uploads: storage.NewUploader(objects, storage.UploaderConfig{
			MaxSize:    cfg.UploadMaxSize,
			ImageTypes: cfg.UploadImageTypes,
			DocTypes:   cfg.UploadDocTypes,
		}),
		Auth:    &auth.Authenticator{Secret: []byte(cfg.JWTKey), Sessions: sessions, CookieName: cfg.SessionCookie},
		Admin:   admin,
		Limiter: limiter,
		Logs:    logs,
		DB:      db,
	})
	if err != nil {
		log.Fatalf("failed to build server: %v", err)
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", "addr", httpServer.Addr, "env", cfg.AppEnv, "db", cfg.DBDriver, "storage", cfg.StorageBackend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

func seed(db *sql.DB, path string, logger *slog.Logger) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		logger.Warn("seed file not found; skip seeding", "path", path, "err", err)
		return
	}
	books, err := database.LoadBooksFromJSON(path)
	if err != nil {
		log.Fatalf("failed to load seed: %v", err)
	}
	n, err := database.SeedBooks(db, books)
	if err != nil {
		log.Fatalf("failed to seed books: %v", err)
	}
	if n > 0 {
		logger.Info("seeded books", "count", n, "path", path)
	}
}

func openObjectStore(cfg config.Config) (storage.ObjectStore, error) {
	if cfg.StorageBackend == "minio" {
		return storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	}
	return storage.NewFileStore(cfg.UploadDir)
}
