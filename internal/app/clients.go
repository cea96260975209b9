package app

import (
	"context"
	"fmt"

	"github.com/yungbote/mdr-backend/internal/data/db"
	"github.com/yungbote/mdr-backend/internal/platform/logger"
	"github.com/yungbote/mdr-backend/internal/platform/neo4jdb"
	"github.com/yungbote/mdr-backend/internal/platform/rootlock"
)

type Clients struct {
	// DB is nil for the memory store driver.
	DB *db.Service
	// Neo4j is nil when NEO4J_URI is unset.
	Neo4j *neo4jdb.Client
	Locks rootlock.Locker

	redisLocks *rootlock.Redis
}

func wireClients(cfg Config, log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")
	var c Clients

	if cfg.Store.Driver != db.DriverMemory {
		svc, err := db.Open(cfg.Store, log)
		if err != nil {
			return Clients{}, fmt.Errorf("init database: %w", err)
		}
		c.DB = svc
	}

	graph, err := neo4jdb.New(cfg.Neo4j, log)
	if err != nil {
		c.Close()
		return Clients{}, fmt.Errorf("init neo4j: %w", err)
	}
	c.Neo4j = graph

	if cfg.RedisAddr != "" {
		locks, err := rootlock.NewRedis(rootlock.RedisConfig{Addr: cfg.RedisAddr, TTL: cfg.LockTTL, Wait: cfg.LockWait}, log)
		if err != nil {
			c.Close()
			return Clients{}, fmt.Errorf("init redis locks: %w", err)
		}
		c.redisLocks = locks
		c.Locks = locks
	} else {
		c.Locks = rootlock.NewMemory(cfg.LockWait)
	}
	return c, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.redisLocks != nil {
		_ = c.redisLocks.Close()
	}
	if c.Neo4j != nil {
		_ = c.Neo4j.Close(context.Background())
	}
	if c.DB != nil {
		_ = c.DB.Close()
	}
}
