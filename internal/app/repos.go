package app

import (
	"context"
	"fmt"

	"github.com/yungbote/mdr-backend/internal/data/db"
	"github.com/yungbote/mdr-backend/internal/data/graphstore"
	"github.com/yungbote/mdr-backend/internal/data/graphstore/memory"
	"github.com/yungbote/mdr-backend/internal/data/graphstore/sqlstore"
	"github.com/yungbote/mdr-backend/internal/platform/logger"
)

// wireStore picks the graph store backend and migrates relational ones.
func wireStore(ctx context.Context, cfg Config, clients Clients, log *logger.Logger) (graphstore.Store, error) {
	log.Info("Wiring graph store...", "driver", cfg.Store.Driver)
	if clients.DB == nil {
		return memory.New(), nil
	}
	if err := db.AutoMigrateAll(ctx, clients.DB, log); err != nil {
		return nil, fmt.Errorf("%s automigrate: %w", cfg.Store.Driver, err)
	}
	return sqlstore.New(clients.DB.DB(), log), nil
}
