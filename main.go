package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"identity_api_gateway/internal/config"
	"identity_api_gateway/internal/crypto"
	"identity_api_gateway/internal/logger"
	"identity_api_gateway/internal/messaging"
	"identity_api_gateway/internal/metrics"
	"identity_api_gateway/internal/provider"
	"identity_api_gateway/internal/repository"
	"identity_api_gateway/internal/service"
	"identity_api_gateway/internal/transport"
)

func runMigrations(db *pgxpool.Pool, log *zap.Logger) error {
	log.Info("Running database migrations")

	migrationsDir := "migrations"
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrationFiles []string
	for _, file := range files {
		if strings.HasSuffix(file.Name(), ".sql") {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)

	for _, filename := range migrationFiles {
		log.Info("Running migration", zap.String("file", filename))

		content, err := os.ReadFile(filepath.Join(migrationsDir, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		_, err = db.Exec(context.Background(), string(content))
		if err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}

		log.Info("Migration completed", zap.String("file", filename))
	}

	log.Info("All migrations completed successfully")
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.JSON)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting identity verification gateway")

	db, err := pgxpool.New(context.Background(), cfg.DatabaseDSN())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	log.Info("Connected to database")

	if err := runMigrations(db, log); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal("Failed to connect to redis", zap.Error(err))
	}

	log.Info("Connected to redis")

	// Completion events are best-effort; the gateway stays up without NATS.
	events, err := messaging.NewNATSClient(cfg.NATS.URL, log)
	if err != nil {
		log.Warn("Failed to connect to NATS, completion events disabled", zap.Error(err))
		events = nil
	} else {
		defer events.Close()
	}

	// Key material failing to load keeps the server up: issuance answers
	// with a structured error until the configuration is fixed.
	gateway, err := crypto.NewAESGateway(cfg.Crypto.ServiceID, cfg.Crypto.Key)
	if err != nil {
		log.Error("Failed to initialize crypto gateway, issuance will be unavailable", zap.Error(err))
		gateway = nil
	}

	sessionRepo := repository.NewSessionRepository(redisClient, cfg.Provider.SessionTTL, log)
	profileRepo := repository.NewProfileRepository(db, log)
	providerClient := provider.NewClient(cfg.Provider.ResultURL, cfg.Provider.RequestTimeout, log)

	verificationService := service.NewVerificationService(
		sessionRepo,
		profileRepo,
		gateway,
		providerClient,
		events,
		cfg.Provider,
		log,
	)

	m := metrics.New()
	tokens := transport.NewTokenResolver(cfg.Auth.JWTSigningKey)
	handler := transport.NewHandler(verificationService, m, cfg.Provider, tokens, log)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: transport.NewRouter(handler),
	}

	log.Info("Starting server", zap.String("address", addr))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}
