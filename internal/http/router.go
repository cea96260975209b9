package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/mdr-backend/internal/http/handlers"
	httpMW "github.com/yungbote/mdr-backend/internal/http/middleware"
	"github.com/yungbote/mdr-backend/internal/observability"
	"github.com/yungbote/mdr-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string

	LibraryHandler *httpH.LibraryHandler
	HealthHandler  *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS())
	r.Use(httpMW.AttachAuthor())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := r.Group("/api")
	{
		// Library
		if h := cfg.LibraryHandler; h != nil {
			api.GET("/library", h.ListKinds)
			api.POST("/library/:kind", h.Create)
			api.GET("/library/:kind", h.List)
			api.GET("/library/:kind/:uid", h.Get)
			api.PATCH("/library/:kind/:uid", h.Edit)
			api.POST("/library/:kind/:uid/approvals", h.Approve)
			api.POST("/library/:kind/:uid/versions", h.NewVersion)
			api.GET("/library/:kind/:uid/versions", h.History)
			api.DELETE("/library/:kind/:uid/activations", h.Inactivate)
			api.POST("/library/:kind/:uid/activations", h.Reactivate)
			api.GET("/library/:kind/:uid/stale-links", h.StaleLinks)
		}
	}

	return r
}
