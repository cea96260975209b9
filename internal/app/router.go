package app

import (
	"github.com/yungbote/mdr-backend/internal/http"
	"github.com/yungbote/mdr-backend/internal/observability"
	"github.com/yungbote/mdr-backend/internal/platform/logger"
)

func wireServer(cfg Config, log *logger.Logger, metrics *observability.Metrics, handlers Handlers) *http.Server {
	return http.NewServer(":"+cfg.Port, http.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		ServiceName:    cfg.ServiceName,
		LibraryHandler: handlers.Library,
		HealthHandler:  handlers.Health,
	})
}
