package main

import (
	"context"
	"fmt"

	"github.com/pantryhub/pantry-backend/internal/inventory/repository"
	"github.com/pantryhub/pantry-backend/internal/inventory/repository/memory"
	"github.com/pantryhub/pantry-backend/internal/inventory/service"
	"github.com/pantryhub/pantry-backend/pkg/config"
	"github.com/pantryhub/pantry-backend/pkg/database"
	"github.com/pantryhub/pantry-backend/pkg/logger"
)

// storage bundles the tables for the configured driver
type storage struct {
	stores service.Stores
	plans  service.PlanStore
	db     *database.DB
}

func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*storage, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		log.Warn().Msg("using in-memory storage; data is lost on restart")
		m := memory.New()
		return &storage{
			stores: service.Stores{
				Batches:       m.Batches(),
				Barcodes:      m.Barcodes(),
				ChangeLog:     m.ChangeLog(),
				Distributions: m.Distributions(),
			},
			plans: m.Plans(),
		}, nil
	}

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		return nil, err
	}

	if cfg.Storage.AutoMigrate {
		if err := db.Migrate(ctx, repository.Migrations()); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
		log.Info().Msg("schema migrated")
	}

	return &storage{
		stores: service.Stores{
			Batches:       repository.NewBatchRepository(db),
			Barcodes:      repository.NewBarcodeCacheRepository(db),
			ChangeLog:     repository.NewChangeLogRepository(db),
			Distributions: repository.NewDistributionRepository(db),
		},
		plans: repository.NewPlanRepository(db),
		db:    db,
	}, nil
}

// Health reports the database pool, or the memory driver
func (s *storage) Health(ctx context.Context) map[string]string {
	if s.db == nil {
		return map[string]string{"status": "healthy", "driver": config.StorageMemory}
	}
	return s.db.Health(ctx)
}

func (s *storage) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
