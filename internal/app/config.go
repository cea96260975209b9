package app

import (
	"time"

	"github.com/yungbote/mdr-backend/internal/data/db"
	"github.com/yungbote/mdr-backend/internal/platform/envutil"
	"github.com/yungbote/mdr-backend/internal/platform/logger"
	"github.com/yungbote/mdr-backend/internal/platform/neo4jdb"
)

type Config struct {
	LogMode     string
	Port        string
	ServiceName string
	Environment string
	Version     string

	Store db.Config
	Neo4j neo4jdb.Config

	// RedisAddr enables cross-process cascade locks; empty keeps them in-process.
	RedisAddr string
	LockTTL   time.Duration
	LockWait  time.Duration

	MetricsEnabled bool
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		LogMode:        envutil.String("LOG_MODE", "development"),
		Port:           envutil.String("PORT", "8080"),
		ServiceName:    envutil.String("OTEL_SERVICE_NAME", "mdr-backend"),
		Environment:    envutil.String("APP_ENV", "local"),
		Version:        envutil.String("APP_VERSION", "dev"),
		Store:          db.ConfigFromEnv(),
		Neo4j:          neo4jdb.ConfigFromEnv(),
		RedisAddr:      envutil.String("REDIS_ADDR", ""),
		LockTTL:        envutil.Seconds("ROOT_LOCK_TTL_SECONDS", 30*time.Second),
		LockWait:       envutil.Seconds("ROOT_LOCK_WAIT_SECONDS", 5*time.Second),
		MetricsEnabled: envutil.Bool("METRICS_ENABLED", false),
	}
	if log != nil {
		log.Info("Config loaded",
			"store_driver", cfg.Store.Driver,
			"neo4j", cfg.Neo4j.URI != "",
			"redis_locks", cfg.RedisAddr != "",
			"metrics", cfg.MetricsEnabled,
		)
	}
	return cfg
}
