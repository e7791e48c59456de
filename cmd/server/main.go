// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"evactron-service/internal/config"
	"evactron-service/internal/database"
	"evactron-service/internal/discovery"
	"evactron-service/internal/handler"
	"evactron-service/internal/repository"
	"evactron-service/internal/routes"
	"evactron-service/internal/service"
	"evactron-service/internal/simulator"
	"evactron-service/internal/utils"
	"evactron-service/pkg/evactron"
	"evactron-service/pkg/evactron/vendordll"
)

const simulatorTick = 250 * time.Millisecond

// Application represents the main application
type Application struct {
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
	database *database.DB

	// Vendor library
	library   evactron.Library
	simulator *simulator.Simulator

	// Services
	evactronService  *service.EvactronService
	operationService *service.OperationService
	discoveryService *service.DiscoveryService

	// Repositories
	readingRepo   repository.ReadingRepository
	operationRepo repository.OperationRepository

	// Events
	eventBus  *handler.EventBus
	wsHandler *handler.WebSocketHandler

	ctx    context.Context
	cancel context.CancelFunc
}

func main() {
	configPath := flag.String("config", "", "path to the configuration file")
	migrateOnly := flag.Bool("migrate", false, "run database migrations and exit")
	flag.Parse()

	app, err := NewApplication(*configPath)
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if *migrateOnly {
		if app.database == nil {
			app.logger.Fatal("Database is disabled, nothing to migrate")
		}
		if err := database.NewMigrator(app.database, app.logger).Up(); err != nil {
			app.logger.Fatal("Migration failed", zap.Error(err))
		}
		app.shutdown()
		return
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}
}

// NewApplication creates a new application instance
func NewApplication(configPath string) (*Application, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	serviceLogger := utils.NewServiceLogger(logger, "evactron-service")
	serviceLogger.LogServiceStart(cfg.App.Version,
		zap.String("environment", cfg.App.Environment),
		zap.String("library", cfg.Device.Library),
		zap.Bool("database", cfg.Database.Enabled),
	)

	ctx, cancel := context.WithCancel(context.Background())
	app := &Application{
		config: cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := app.initializeDatabase(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.initializeRepositories()

	if err := app.initializeLibrary(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize vendor library: %w", err)
	}

	app.initializeServices()
	app.initializeServer()

	return app, nil
}

// initializeDatabase sets up database connection and runs migrations
func (app *Application) initializeDatabase() error {
	if !app.config.Database.Enabled {
		app.logger.Info("Database disabled, keeping readings and operations in memory")
		return nil
	}

	db, err := database.NewConnection(app.config, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	app.database = db

	if app.config.Database.RunMigrations {
		if err := database.NewMigrator(db, app.logger).Up(); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}

	app.logger.Info("Database initialized successfully")
	return nil
}

// initializeRepositories creates repository instances
func (app *Application) initializeRepositories() {
	if app.database != nil {
		app.readingRepo = repository.NewReadingRepository(app.database, app.logger)
		app.operationRepo = repository.NewOperationRepository(app.database, app.logger)
	} else {
		app.readingRepo = repository.NewMemoryReadingRepository(0)
		app.operationRepo = repository.NewMemoryOperationRepository(0)
	}

	app.logger.Info("Repositories initialized successfully")
}

// initializeLibrary loads the vendor DLL or sets up the simulated unit
func (app *Application) initializeLibrary() error {
	switch app.config.Device.Library {
	case config.LibraryDLL:
		lib, err := vendordll.Load(app.config.Device.DLLPath)
		if err != nil {
			return err
		}
		app.library = lib
		app.logger.Info("Vendor library loaded", zap.String("path", app.config.Device.DLLPath))

	case config.LibrarySimulator:
		app.simulator = simulator.New()
		app.library = app.simulator
		app.logger.Info("Using simulated unit")

	default:
		return fmt.Errorf("unknown library %q", app.config.Device.Library)
	}
	return nil
}

// initializeServices creates service instances
func (app *Application) initializeServices() {
	app.eventBus = handler.NewEventBus(app.logger)

	app.operationService = service.NewOperationService(app.operationRepo, app.eventBus, app.logger)

	app.evactronService = service.NewEvactronService(
		app.library,
		app.config.Device.Library,
		app.readingRepo,
		app.operationService,
		app.eventBus,
		&app.config.Device,
		app.logger,
	)

	app.discoveryService = service.NewDiscoveryService(
		discovery.NewScanner(app.logger),
		app.evactronService,
		app.logger,
	)

	app.wsHandler = handler.NewWebSocketHandler(
		app.evactronService,
		app.eventBus,
		app.config.Security.AllowedOrigins,
		app.logger,
	)

	app.logger.Info("Services initialized successfully")
}

// initializeServer sets up HTTP server and routes
func (app *Application) initializeServer() {
	var db handler.DatabaseChecker
	if app.database != nil {
		db = app.database
	}

	routerManager := routes.NewRouter(
		app.config,
		app.logger,
		db,
		app.evactronService,
		app.operationService,
		app.discoveryService,
		app.wsHandler,
	)

	app.server = &http.Server{
		Addr:         app.config.GetServerAddr(),
		Handler:      routerManager.SetupRouter(),
		ReadTimeout:  app.config.Server.ReadTimeout,
		WriteTimeout: app.config.Server.WriteTimeout,
		IdleTimeout:  app.config.Server.IdleTimeout,
	}

	app.logger.Info("HTTP server initialized",
		zap.String("address", app.config.GetServerAddr()),
		zap.Bool("tls_enabled", app.config.Server.TLS.Enabled),
	)
}

// startBackgroundServices starts background services
func (app *Application) startBackgroundServices() {
	go app.eventBus.Start(app.ctx)
	go app.wsHandler.Start(app.ctx)

	if app.simulator != nil {
		go app.simulator.Run(app.ctx, simulatorTick)
		if app.config.Device.Simulator.AutoStart && app.simulator.Start() {
			app.logger.Info("Simulated cleaning run started")
		}
	}

	if app.config.Device.AutoConnect {
		app.autoConnect()
	}

	go app.startTelemetryPolling()
	go app.startCleanupService()

	app.logger.Info("Background services started")
}

// autoConnect opens the session on the configured port. Failure is logged
// and leaves the service running without a session.
func (app *Application) autoConnect() {
	ctx, cancel := context.WithTimeout(app.ctx, app.config.Device.OperationTimeout)
	defer cancel()

	session, err := app.evactronService.Connect(ctx, 0)
	if err != nil {
		app.logger.Warn("Auto-connect failed",
			zap.Int("comm_port", app.config.Device.CommPort),
			zap.Error(err),
		)
		return
	}
	app.logger.Info("Auto-connected", zap.Int("comm_port", session.Port))
}

// startTelemetryPolling takes a reading every poll interval while a session
// is open
func (app *Application) startTelemetryPolling() {
	interval := app.config.Device.PollInterval
	if interval <= 0 {
		app.logger.Info("Telemetry polling disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	app.logger.Info("Telemetry polling started", zap.Duration("interval", interval))

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(app.ctx, app.config.Device.OperationTimeout)
			_, err := app.evactronService.PollTelemetry(ctx)
			cancel()
			if err != nil && !errors.Is(err, evactron.ErrNotConnected) {
				app.logger.Debug("Telemetry poll failed", zap.Error(err))
			}
		}
	}
}

// startCleanupService removes readings and operations past retention
func (app *Application) startCleanupService() {
	interval := app.config.Device.CleanupInterval
	if interval <= 0 || app.config.Device.ReadingRetention <= 0 {
		app.logger.Info("Cleanup service disabled")
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	app.logger.Info("Cleanup service started",
		zap.Duration("interval", interval),
		zap.Duration("retention", app.config.Device.ReadingRetention),
	)

	for {
		select {
		case <-app.ctx.Done():
			return
		case <-ticker.C:
			app.cleanup()
		}
	}
}

func (app *Application) cleanup() {
	ctx, cancel := context.WithTimeout(app.ctx, 10*time.Minute)
	defer cancel()

	deletedReadings, err := app.evactronService.CleanupReadings(ctx)
	if err != nil {
		app.logger.Error("Failed to cleanup old readings", zap.Error(err))
	} else if deletedReadings > 0 {
		app.logger.Info("Cleaned up old readings", zap.Int64("deleted", deletedReadings))
	}

	cutoff := time.Now().Add(-app.config.Device.ReadingRetention)
	deletedOps, err := app.operationService.CleanupOperations(ctx, cutoff)
	if err != nil {
		app.logger.Error("Failed to cleanup old operations", zap.Error(err))
	} else if deletedOps > 0 {
		app.logger.Info("Cleaned up old operations", zap.Int64("deleted", deletedOps))
	}
}

// waitForShutdown waits for shutdown signal and performs graceful shutdown
func (app *Application) waitForShutdown() {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	app.logger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	app.shutdown()
}

// shutdown performs graceful shutdown
func (app *Application) shutdown() {
	serviceLogger := utils.NewServiceLogger(app.logger, "evactron-service")
	serviceLogger.LogServiceStop("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if app.server != nil {
		if err := app.server.Shutdown(ctx); err != nil {
			app.logger.Error("HTTP server shutdown error", zap.Error(err))
		} else {
			app.logger.Info("HTTP server stopped")
		}
	}

	if app.evactronService != nil {
		if err := app.evactronService.Close(ctx); err != nil {
			app.logger.Error("Failed to close device session", zap.Error(err))
		}
	}

	app.cancel()

	if app.database != nil {
		if err := app.database.Close(); err != nil {
			app.logger.Error("Database close error", zap.Error(err))
		} else {
			app.logger.Info("Database connection closed")
		}
	}

	app.logger.Info("Application shutdown completed")

	if err := utils.CloseLogger(app.logger); err != nil {
		fmt.Printf("Logger close error: %v\n", err)
	}
}

// Start runs the HTTP server and background services until a shutdown signal
func (app *Application) Start() error {
	go func() {
		app.logger.Info("Starting HTTP server",
			zap.String("address", app.server.Addr),
		)

		var err error
		if app.config.Server.TLS.Enabled {
			err = app.server.ListenAndServeTLS(
				app.config.Server.TLS.CertFile,
				app.config.Server.TLS.KeyFile,
			)
		} else {
			err = app.server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.logger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	app.startBackgroundServices()
	app.waitForShutdown()

	return nil
}
