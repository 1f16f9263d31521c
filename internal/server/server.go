// Package server exposes the ingest and read APIs over HTTP.
package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"github.com/smallbiznis/uprl/internal/config"
	dlqdomain "github.com/smallbiznis/uprl/internal/dlq/domain"
	ingestdomain "github.com/smallbiznis/uprl/internal/ingest/domain"
	"github.com/smallbiznis/uprl/internal/observability"
	obsmiddleware "github.com/smallbiznis/uprl/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/uprl/internal/observability/metrics"
	obstracing "github.com/smallbiznis/uprl/internal/observability/tracing"
	projectiondomain "github.com/smallbiznis/uprl/internal/projection/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(
		provideSnowflake,
		registerGin,
	),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func provideSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, genID *snowflake.Node) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestIDMiddleware(genID))
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(httpMetrics.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, genID *snowflake.Node) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics, genID)
}

// requestIDMiddleware stamps inbound requests that carry no request id
// before the logging middleware picks one up.
func requestIDMiddleware(genID *snowflake.Node) gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.TrimSpace(c.GetHeader("X-Request-Id")) == "" && strings.TrimSpace(c.GetHeader("X-Request-ID")) == "" {
			c.Set("request_id", genID.Generate().String())
		}
		c.Next()
	}
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	ingestSvc     ingestdomain.Service
	projectionSvc projectiondomain.Service
	dlqSvc        dlqdomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	IngestSvc     ingestdomain.Service
	ProjectionSvc projectiondomain.Service
	DLQSvc        dlqdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		ingestSvc:     p.IngestSvc,
		projectionSvc: p.ProjectionSvc,
		dlqSvc:        p.DLQSvc,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/events", s.IngestEvent)

	v1.GET("/orders", s.ListOrders)
	v1.GET("/orders/:order_id", s.GetOrder)
	v1.GET("/orders/:order_id/payables", s.GetEffectivePayables)
	v1.GET("/orders/:order_id/payables/timeline", s.GetPayablesTimeline)
	v1.GET("/orders/:order_id/pricing/history", s.GetPricingHistory)
	v1.GET("/orders/:order_id/history/:family", s.GetFamilyHistory)

	v1.GET("/components/:semantic_id/lineage", s.GetComponentLineage)

	v1.GET("/dlq", s.ListDLQ)
	v1.POST("/dlq/:dlq_id/replay", s.ReplayDLQ)
}
