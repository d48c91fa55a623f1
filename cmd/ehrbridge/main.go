package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/ehrbridge/internal/config"
	"github.com/ehr/ehrbridge/internal/domain/billing"
	"github.com/ehr/ehrbridge/internal/domain/clinical"
	"github.com/ehr/ehrbridge/internal/domain/integration"
	"github.com/ehr/ehrbridge/internal/domain/patient"
	"github.com/ehr/ehrbridge/internal/domain/scheduling"
	"github.com/ehr/ehrbridge/internal/ehr"
	"github.com/ehr/ehrbridge/internal/ehr/athena"
	"github.com/ehr/ehrbridge/internal/ehr/credential"
	"github.com/ehr/ehrbridge/internal/ehr/modmed"
	"github.com/ehr/ehrbridge/internal/platform/auth"
	"github.com/ehr/ehrbridge/internal/platform/db"
	"github.com/ehr/ehrbridge/internal/platform/hipaa"
	"github.com/ehr/ehrbridge/internal/platform/middleware"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "ehrbridge",
		Short: "Practice-management bridge to ModMed and athenahealth",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(outboxCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			to, _ := cmd.Flags().GetInt("to")
			ctx := context.Background()
			migrator, pool, err := openMigrator(ctx, cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := migrator.UpTo(ctx, to)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().Int("to", 0, "Stop after this version (0 applies all)")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			migrator, pool, err := openMigrator(ctx, cmd)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	cmd.AddCommand(statusCmd)

	cmd.PersistentFlags().String("schema", db.DefaultSchema, "Target schema for migrations")
	cmd.PersistentFlags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	return cmd
}

func openMigrator(ctx context.Context, cmd *cobra.Command) (*db.Migrator, *pgxpool.Pool, error) {
	schema, _ := cmd.Flags().GetString("schema")
	dir, _ := cmd.Flags().GetString("dir")

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}
	if dir == "" {
		dir = cfg.MigrationsDir
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.WithConns(cfg.DBMaxConns, cfg.DBMinConns))
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, dir).WithSchema(schema), pool, nil
}

func outboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and drain the mirror outbox",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "replay",
		Short: "Apply pending mirror writes once",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger := newLogger(cfg)

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL,
				db.WithConns(cfg.DBMaxConns, cfg.DBMinConns),
				db.WithApplicationName("ehrbridge-replay"),
			)
			if err != nil {
				return err
			}
			defer pool.Close()

			st, err := newStores(cfg, pool, logger)
			if err != nil {
				return err
			}
			stats, err := newReplayer(cfg, pool, st, logger).ReplayOnce(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Applied %d, failed %d outbox entr(ies).\n", stats.Applied, stats.Failed)
			return nil
		},
	})
	return cmd
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// stores groups the persistence wiring shared by serve and outbox replay.
type stores struct {
	tokens credential.Store
	mirror patient.Repository
	outbox patient.OutboxRepository
}

func newStores(cfg *config.Config, pool *pgxpool.Pool, logger zerolog.Logger) (*stores, error) {
	key, err := cfg.EncryptionKey()
	if err != nil {
		return nil, err
	}

	var (
		tokenSealer   credential.Sealer
		payloadSealer patient.PayloadSealer
	)
	if key != nil {
		sealer, err := hipaa.NewSealer(key)
		if err != nil {
			return nil, fmt.Errorf("build sealer: %w", err)
		}
		tokenSealer, payloadSealer = sealer, sealer
	} else {
		logger.Warn().Msg("ENCRYPTION_KEY_BASE64 not set; tokens and outbox payloads are stored unsealed")
	}

	return &stores{
		tokens: credential.NewPGStore(pool, tokenSealer),
		mirror: patient.NewRepo(pool),
		outbox: patient.NewOutboxRepo(pool, payloadSealer),
	}, nil
}

func newReplayer(cfg *config.Config, pool *pgxpool.Pool, st *stores, logger zerolog.Logger) *patient.Replayer {
	return patient.NewReplayer(st.mirror, st.outbox, logger.With().Str("component", "outbox").Logger(),
		patient.WithTx(func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.InTx(ctx, pool, fn)
		}),
		patient.WithBatchSize(cfg.OutboxBatchSize),
		patient.WithMaxAttempts(cfg.OutboxMaxAttempts),
	)
}

// newProviders builds one provider per configured vendor.
func newProviders(cfg *config.Config, tokens credential.Store, logger zerolog.Logger) []ehr.Provider {
	var providers []ehr.Provider
	if cfg.ModMedEnabled() {
		providers = append(providers, modmed.NewProvider(cfg.ModMedConfig(), tokens, logger.With().Str("vendor", ehr.VendorModMed).Logger()))
	} else {
		logger.Warn().Msg("ModMed not configured; its routes are disabled")
	}
	if cfg.AthenaEnabled() {
		providers = append(providers, athena.NewProvider(cfg.AthenaConfig(), tokens, logger.With().Str("vendor", ehr.VendorAthena).Logger()))
	} else {
		logger.Warn().Msg("athenahealth not configured; its routes are disabled")
	}
	return providers
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL,
		db.WithConns(cfg.DBMaxConns, cfg.DBMinConns),
		db.WithHealthCheckPeriod(30*time.Second),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	st, err := newStores(cfg, pool, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build stores")
	}

	e := newServer(cfg, logger, pool, st, newProviders(cfg, st.tokens, logger))

	// Outbox replayer
	replayDone := make(chan struct{})
	go func() {
		defer close(replayDone)
		newReplayer(cfg, pool, st, logger).Run(ctx, cfg.OutboxInterval())
	}()

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	<-replayDone
	logger.Info().Msg("server stopped")
	return nil
}

// newServer wires middleware and routes. pool may be any db.Pinger.
func newServer(cfg *config.Config, logger zerolog.Logger, pinger db.Pinger, st *stores, providers []ehr.Provider) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(logger)
	e.Validator = middleware.NewRequestValidator()

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders(!cfg.IsDev()))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders:     []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		AllowCredentials: true,
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(pinger))

	apiV1 := e.Group("/api/v1")

	// Auth middleware
	if cfg.IsDev() && cfg.SessionSecret == "" {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.SessionMiddleware(auth.SessionConfig{
			Secret: []byte(cfg.SessionSecret),
			Issuer: cfg.SessionIssuer,
		}))
	}

	// Rate limiting runs after auth so buckets are per user.
	rateLimitCfg := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rateLimitCfg.RequestsPerSecond = cfg.RateLimitRPS
		rateLimitCfg.BurstSize = cfg.RateLimitBurst
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	patientSvc := patient.NewService(st.mirror, st.outbox, logger.With().Str("component", "mirror").Logger())
	schedulingSvc := scheduling.NewService()
	clinicalSvc := clinical.NewService()
	billingSvc := billing.NewService()
	integrationSvc := integration.NewService(logger)

	for _, p := range providers {
		g := apiV1.Group("/" + p.Vendor())
		patient.NewHandler(patientSvc, p).RegisterRoutes(g)
		scheduling.NewHandler(schedulingSvc, p).RegisterRoutes(g)
		clinical.NewHandler(clinicalSvc, p).RegisterRoutes(g)
		billing.NewHandler(billingSvc, p).RegisterRoutes(g)
		integration.NewConnectionHandler(integrationSvc, p).RegisterRoutes(g)
	}
	integration.NewSearchHandler(integrationSvc, providers...).RegisterRoutes(apiV1)
	patient.NewMirrorHandler(patientSvc).RegisterRoutes(apiV1)

	return e
}
