package runtime

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	app "github.com/kingpin-stream/economy-core/internal/app"
	"github.com/kingpin-stream/economy-core/internal/app/storage/postgres"
	"github.com/kingpin-stream/economy-core/internal/platform/database"
	"github.com/kingpin-stream/economy-core/internal/platform/migrations"
	"github.com/kingpin-stream/economy-core/pkg/config"
	"github.com/kingpin-stream/economy-core/pkg/logger"
)

// Application wires core dependencies and manages the process lifecycle.
type Application struct {
	cfg        *config.Config
	log        *logger.Logger
	app        *app.Application
	listenAddr string
	db         *sql.DB
}

// NewApplication constructs a new application instance with default wiring.
func NewApplication() (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logCfg := logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	}
	log := logger.New(logCfg)

	stores, db, err := buildStores(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("configure stores: %w", err)
	}

	application, err := app.New(stores, cfg, log)
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, fmt.Errorf("initialise application: %w", err)
	}

	return &Application{
		cfg:        cfg,
		log:        log,
		app:        application,
		listenAddr: determineListenAddr(cfg),
		db:         db,
	}, nil
}

// Run starts the application and blocks until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return err
	}

	a.log.Infof("economy core listening on %s", a.listenAddr)

	<-ctx.Done()
	return nil
}

// Shutdown gracefully stops the application and releases resources.
func (a *Application) Shutdown(ctx context.Context) error {
	if err := a.app.Stop(ctx); err != nil {
		return err
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}

	return nil
}

// buildStores opens the postgres connection named by cfg.Database and, when
// cfg.Database.MigrateOnStart is set, applies the embedded schema before
// handing the pool to the store implementation. An empty driver/DSN falls
// back to the in-memory store (app.Stores.applyDefaults), matching the
// teacher's local/dev convenience path.
func buildStores(ctx context.Context, cfg *config.Config) (app.Stores, *sql.DB, error) {
	driver := strings.TrimSpace(cfg.Database.Driver)
	dsn := strings.TrimSpace(cfg.Database.DSN)
	if dsn == "" && strings.TrimSpace(cfg.Database.Host) != "" {
		dsn = cfg.Database.ConnectionString()
	}

	if driver == "" || dsn == "" {
		return app.Stores{}, nil, nil
	}

	if !strings.EqualFold(driver, "postgres") {
		return app.Stores{}, nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := database.Open(ctx, dsn)
	if err != nil {
		return app.Stores{}, nil, err
	}

	configurePool(db, cfg.Database)

	if cfg.Database.MigrateOnStart {
		if err := migrations.Apply(ctx, db); err != nil {
			db.Close()
			return app.Stores{}, nil, fmt.Errorf("apply migrations: %w", err)
		}
	}

	store := postgres.New(db)

	return app.Stores{Backing: store}, db, nil
}

func configurePool(db *sql.DB, cfg config.DatabaseConfig) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}
}

func determineListenAddr(cfg *config.Config) string {
	host := strings.TrimSpace(cfg.Server.Host)
	if host == "" {
		host = "0.0.0.0"
	}

	port := cfg.Server.Port
	if port <= 0 {
		port = 8080
	}

	return fmt.Sprintf("%s:%d", host, port)
}
