package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/motorpool/motorpool/internal/adapter/http"
	"github.com/motorpool/motorpool/internal/adapter/memory"
	"github.com/motorpool/motorpool/internal/adapter/persistence"
	"github.com/motorpool/motorpool/internal/adapter/sheetstore"
	"github.com/motorpool/motorpool/internal/adapter/telegram"
	"github.com/motorpool/motorpool/internal/config"
	"github.com/motorpool/motorpool/internal/gate"
	"github.com/motorpool/motorpool/internal/ports"
	"github.com/motorpool/motorpool/internal/retry"
	"github.com/motorpool/motorpool/internal/scheduler"
	"github.com/motorpool/motorpool/internal/service/auth"
	"github.com/motorpool/motorpool/internal/service/logger"
	"github.com/motorpool/motorpool/internal/service/ratelimit"
	"github.com/motorpool/motorpool/internal/service/report"
	"github.com/motorpool/motorpool/internal/usecase"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// Version and build information
var (
	Version   = "development"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Could not load .env file: %v", err)
	}

	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *version {
		fmt.Printf("Motorpool Fleet Bot\n")
		fmt.Printf("Version: %s\n", Version)
		fmt.Printf("Build Time: %s\n", BuildTime)
		fmt.Printf("Git Commit: %s\n", GitCommit)
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	structuredLogger := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		ServiceName: "motorpool",
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	structuredLogger.Info(ctx, "Application starting", map[string]interface{}{
		"version": Version,
		"env":     cfg.Server.Environment,
		"backend": cfg.Store.Backend,
	})

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Failed to load timezone: %v", err)
	}

	// Initialize record store backend
	stores, closeStores, err := initStores(ctx, cfg, structuredLogger, loc)
	if err != nil {
		log.Fatalf("Failed to initialize record store: %v", err)
	}
	defer closeStores()

	// Chat transport; the bot client doubles as the outbound notifier
	botClient := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.Timeout, structuredLogger)

	// Initialize use cases
	retryCfg := retry.Config{
		MaxAttempts: cfg.Retry.MaxAttempts,
		Base:        cfg.Retry.Base,
		Multiplier:  cfg.Retry.Multiplier,
	}
	g := gate.New()
	adminChat := cfg.Telegram.AdminChatID

	fleet := usecase.NewFleetUseCase(
		stores.Ledger, stores.Vehicles, botClient, g, retryCfg, structuredLogger, loc, adminChat,
	)
	access := usecase.NewAccessUseCase(
		stores.Requests, stores.Actors, stores.Settings, botClient, g, retryCfg, structuredLogger, adminChat,
	)
	reports := report.NewService(loc)

	commands := telegram.NewHandler(fleet, access, botClient, structuredLogger, loc)

	authService := auth.NewService(auth.Config{
		Username:     cfg.Security.AdminUsername,
		PasswordHash: cfg.Security.AdminPasswordHash,
		JWTSecret:    cfg.Security.JWTSecret,
		TokenTTL:     cfg.Security.JWTExpiration,
	})

	limiter, err := ratelimit.New(ratelimit.Config{
		Enabled:  cfg.Security.RateLimitEnabled,
		RedisURL: cfg.GetRedisURL(),
		Limit:    cfg.Security.RateLimitRequests,
		Window:   cfg.Security.RateLimitWindow,
	}, structuredLogger)
	if err != nil {
		structuredLogger.Error(ctx, "Rate limiter unavailable, continuing without", err, nil)
		limiter = ratelimit.NewNoop()
	}
	defer limiter.Close()

	// Background jobs: snooze wakes, maintenance checks, usage summaries
	sched := scheduler.New(
		fleet, access, reports, botClient, structuredLogger, loc,
		cfg.Scheduler.TickInterval, adminChat,
	)
	go sched.Run(ctx)

	server := httpadapter.NewServer(
		httpadapter.ServerConfig{
			Port:          cfg.Server.Port,
			ReadTimeout:   cfg.Server.ReadTimeout,
			WriteTimeout:  cfg.Server.WriteTimeout,
			IdleTimeout:   cfg.Server.IdleTimeout,
			WebhookSecret: cfg.Telegram.WebhookSecret,
		},
		fleet, access, commands, reports, authService, limiter, structuredLogger, loc,
	)

	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	structuredLogger.Info(ctx, "Shutting down", nil)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		structuredLogger.Error(shutdownCtx, "Error during server shutdown", err, nil)
	}

	// Stop the tick loop and drain in-flight jobs
	cancel()
	sched.Wait()

	structuredLogger.Info(context.Background(), "Stopped", nil)
}

// Stores bundles the record store views the use cases depend on.
type Stores struct {
	Ledger   ports.LedgerStore
	Vehicles ports.VehicleStore
	Actors   ports.ActorStore
	Requests ports.RequestStore
	Settings ports.SettingStore
}

// initStores builds the configured record store backend.
func initStores(ctx context.Context, cfg *config.Config, log logger.Logger, loc *time.Location) (Stores, func(), error) {
	switch cfg.Store.Backend {
	case "postgres":
		db, err := persistence.NewConnection(cfg.GetDatabaseURL())
		if err != nil {
			return Stores{}, nil, fmt.Errorf("failed to connect database: %w", err)
		}
		return Stores{
			Ledger:   persistence.NewPostgresLedgerRepository(db),
			Vehicles: persistence.NewPostgresVehicleRepository(db),
			Actors:   persistence.NewPostgresActorRepository(db),
			Requests: persistence.NewPostgresRequestRepository(db),
			Settings: persistence.NewPostgresSettingRepository(db),
		}, func() { db.Close() }, nil

	case "sheets":
		client := sheetstore.NewClient(
			cfg.Store.Sheets.BaseURL,
			cfg.Store.Sheets.DocumentID,
			cfg.Store.Sheets.Token,
			cfg.Store.Sheets.Timeout,
			log,
		)
		store := sheetstore.New(client, sheetstore.DefaultWorksheets(), loc)
		if err := store.EnsureSheets(ctx); err != nil {
			return Stores{}, nil, fmt.Errorf("failed to prepare worksheets: %w", err)
		}
		return Stores{
			Ledger:   store.Ledger(),
			Vehicles: store.Vehicles(),
			Actors:   store.Actors(),
			Requests: store.Requests(),
			Settings: store.Settings(),
		}, func() {}, nil

	case "memory":
		store := memory.New()
		return Stores{
			Ledger:   store.Ledger(),
			Vehicles: store.Vehicles(),
			Actors:   store.Actors(),
			Requests: store.Requests(),
			Settings: store.Settings(),
		}, func() {}, nil

	default:
		return Stores{}, nil, fmt.Errorf("unknown store backend: %s", cfg.Store.Backend)
	}
}
