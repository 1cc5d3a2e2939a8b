package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	_ "github.com/redmonkez12/credentials-api/docs" // Swagger docs (generated)
	"github.com/redmonkez12/credentials-api/internal/account"
	"github.com/redmonkez12/credentials-api/internal/auth"
	"github.com/redmonkez12/credentials-api/internal/config"
	"github.com/redmonkez12/credentials-api/internal/database"
	"github.com/redmonkez12/credentials-api/internal/email"
	httpServer "github.com/redmonkez12/credentials-api/internal/http"
	"github.com/redmonkez12/credentials-api/internal/logging"
	"github.com/redmonkez12/credentials-api/internal/metrics"
	"github.com/redmonkez12/credentials-api/internal/password"
)

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}

	serveCmd.Flags().Bool("migrate", false, "Apply pending schema migrations before serving")
	return serveCmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	autoMigrate, _ := cmd.Flags().GetBool("migrate")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Initialize logger
	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"token_ttl", cfg.Auth.TokenTTL,
		"password_algorithm", cfg.Password.Algorithm,
	)

	// Initialize database connection
	sqlDB, err := database.Open(cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer sqlDB.Close()

	if autoMigrate {
		if err := database.Migrate(cmd.Context(), sqlDB, "postgres"); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	db := database.NewBunDB(sqlDB)

	// Redis only backs the profile cache, the service runs without it
	var cache auth.ProfileCache
	if cfg.Redis.Enabled {
		redisClient, err := initRedis(cmd.Context(), cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to initialize Redis: %w", err)
		}
		defer redisClient.Close()
		cache = auth.NewRedisProfileCache(redisClient, cfg.Redis.ProfileCacheTTL)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.New(registry)

	// Initialize PASETO service
	pasetoService, err := auth.NewPasetoService(auth.TokenConfig{
		Key:    cfg.Auth.PasetoKey,
		TTL:    cfg.Auth.TokenTTL,
		Issuer: cfg.Auth.Issuer,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize PASETO service: %w", err)
	}

	hasher := password.NewHasher(passwordConfig(cfg.Password))

	// Initialize email service
	emailService := email.NewService(email.Config{
		SMTPHost:     cfg.Email.SMTPHost,
		SMTPPort:     cfg.Email.SMTPPort,
		SMTPUser:     cfg.Email.SMTPUser,
		SMTPPassword: cfg.Email.SMTPPassword,
		FromAddress:  cfg.Email.FromAddress,
	}, logger)

	// Initialize auth service
	authService := auth.NewService(
		account.NewRepository(db),
		hasher,
		pasetoService,
		emailService,
		cache,
		recorder,
		logger,
		auth.Timeouts{Store: cfg.Database.StoreTimeout, Notify: cfg.Email.NotifyTimeout},
	)

	// Initialize router
	router := httpServer.NewRouter(
		cfg,
		auth.NewHandler(authService),
		auth.NewMiddleware(pasetoService),
		registry,
		logger,
	)

	// Initialize HTTP server
	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received signal", "signal", sig.String())

		// Graceful shutdown with timeout
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		// Welcome mails still in flight get the rest of the shutdown window
		if err := authService.WaitForNotifications(ctx); err != nil {
			logger.Warn("abandoned pending notifications", "error", err)
		}
	}

	return nil
}

func passwordConfig(cfg config.PasswordConfig) password.Config {
	pc := password.DefaultConfig()
	pc.Algorithm = cfg.Algorithm
	// ranges are enforced by config.Validate
	pc.Argon2.MemoryKiB = uint32(cfg.Argon2MemoryKiB)
	pc.Argon2.Iterations = uint32(cfg.Argon2Iterations)
	pc.Argon2.Parallelism = uint8(cfg.Argon2Parallelism)
	pc.BcryptCost = cfg.BcryptCost
	pc.MaxConcurrent = cfg.MaxConcurrent
	return pc
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Verify connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
