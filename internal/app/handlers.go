package app

import (
	"context"

	httpH "github.com/yungbote/mdr-backend/internal/http/handlers"
	"github.com/yungbote/mdr-backend/internal/platform/logger"
)

type Handlers struct {
	Health  *httpH.HealthHandler
	Library *httpH.LibraryHandler
}

func wireHandlers(log *logger.Logger, clients Clients, services Services) Handlers {
	log.Info("Wiring handlers...")
	var checks []httpH.HealthCheck
	if clients.DB != nil {
		checks = append(checks, httpH.HealthCheck{Name: "store", Check: clients.DB.Ping})
	}
	if clients.Neo4j != nil {
		graph := clients.Neo4j
		checks = append(checks, httpH.HealthCheck{Name: "neo4j", Check: func(ctx context.Context) error {
			return graph.Driver.VerifyConnectivity(ctx)
		}})
	}
	return Handlers{
		Health:  httpH.NewHealthHandler(checks...),
		Library: httpH.NewLibraryHandler(log, services.Library),
	}
}
