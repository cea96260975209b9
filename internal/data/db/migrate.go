package db

import (
	"context"
	"fmt"

	"github.com/yungbote/mdr-backend/internal/data/graphstore/sqlstore"
	"github.com/yungbote/mdr-backend/internal/platform/logger"
)

// AutoMigrateAll creates the graph store tables and indexes.
func AutoMigrateAll(ctx context.Context, s *Service, log *logger.Logger) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("migrate: nil db")
	}
	if err := sqlstore.New(s.db, log).Migrate(ctx); err != nil {
		return err
	}
	log.Info("Database migrated")
	return nil
}
