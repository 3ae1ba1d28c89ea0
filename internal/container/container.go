package container

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	database "github.com/ceylonroots/tour-admin/app/db"
	"github.com/ceylonroots/tour-admin/config"
	"github.com/ceylonroots/tour-admin/internal/api/tour"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *slog.Logger
	Pool        *pgxpool.Pool
	TourHandler *tour.TourHandler
}

// NewContainer initializes and returns a new dependency container
func NewContainer(cfg *config.Config, logger *slog.Logger) (*Container, error) {
	dbConfig, err := database.NewDatabaseConfig(cfg, logger)
	if err != nil {
		logger.Error("Failed to generate database config", slog.Any("error", err))
		return nil, err
	}

	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		return nil, err
	}

	tourRepo := tour.NewPostgresTourRepo(pool, cfg.Media.UploadDir, cfg.Media.PublicBaseURL, logger)
	tourService := tour.NewSyncService(tourRepo, logger)
	tourHandler := tour.NewTourHandler(tourService, cfg.Media.PreviewDir, logger)

	return &Container{
		Config:      cfg,
		Logger:      logger,
		Pool:        pool,
		TourHandler: tourHandler,
	}, nil
}

// Close releases all resources held by the container
func (c *Container) Close() {
	if c.Pool != nil {
		c.Pool.Close()
	}
}

// WaitForDB waits for the database to be ready
func (c *Container) WaitForDB(ctx context.Context) bool {
	return database.WaitForDB(ctx, c.Pool, c.Logger)
}

// RunMigrations runs database migrations
func (c *Container) RunMigrations(connectionURL string) error {
	return database.RunMigrations(connectionURL, c.Logger)
}
