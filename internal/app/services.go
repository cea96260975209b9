package app

import (
	"fmt"

	"github.com/yungbote/mdr-backend/internal/data/aggregates"
	"github.com/yungbote/mdr-backend/internal/data/graph"
	"github.com/yungbote/mdr-backend/internal/data/graphstore"
	"github.com/yungbote/mdr-backend/internal/domain/library"
	librarymod "github.com/yungbote/mdr-backend/internal/modules/library"
	"github.com/yungbote/mdr-backend/internal/observability"
	"github.com/yungbote/mdr-backend/internal/platform/logger"
)

type Services struct {
	Engine *aggregates.Engine
	// Projector is nil without a neo4j client.
	Projector *graph.VersionProjector
	Library   librarymod.Usecases
}

func wireServices(log *logger.Logger, store graphstore.Store, clients Clients, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	catalog, err := library.LoadCatalog()
	if err != nil {
		return Services{}, fmt.Errorf("load catalog: %w", err)
	}
	registry := librarymod.DefaultRegistry()
	for _, k := range registry.Kinds() {
		if _, ok := catalog.Kind(k); !ok {
			return Services{}, fmt.Errorf("catalog is missing kind %s", k)
		}
	}

	var opts []aggregates.Option
	var projector *graph.VersionProjector
	if clients.Neo4j != nil {
		projector = graph.NewVersionProjector(clients.Neo4j, store, log, metrics)
		opts = append(opts, aggregates.WithProjector(projector))
	}

	engine := aggregates.NewEngine(aggregates.BaseDeps{
		Store: store,
		Log:   log,
		Hooks: aggregates.NewObservabilityHooks(metrics),
	}, catalog, opts...)

	usecases := librarymod.New(librarymod.UsecasesDeps{
		Engine:   engine,
		Registry: registry,
		Locks:    clients.Locks,
		Log:      log,
		Metrics:  metrics,
	})

	return Services{Engine: engine, Projector: projector, Library: usecases}, nil
}
