package server

import (
	"context"
	"net/http"
	"time"

	auditdomain "github.com/marketlane/backoffice/internal/audit/domain"
	"github.com/marketlane/backoffice/internal/config"
	"github.com/marketlane/backoffice/internal/metrics"
	ruledomain "github.com/marketlane/backoffice/internal/rule/domain"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Cfg      config.Config
	Log      *zap.Logger
	Engine   *gin.Engine
	RuleSvc  ruledomain.Service
	AuditSvc auditdomain.Service
	Metrics  *metrics.Collector
}

type Server struct {
	cfg      config.Config
	log      *zap.Logger
	engine   *gin.Engine
	ruleSvc  ruledomain.Service
	auditSvc auditdomain.Service
	metrics  *metrics.Collector
}

func NewEngine(cfg config.Config, log *zap.Logger, collector *metrics.Collector) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestContextMiddleware(log))
	r.Use(metrics.GinMiddleware(collector))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}

func NewServer(p Params) *Server {
	s := &Server{
		cfg:      p.Cfg,
		log:      p.Log.Named("http.server"),
		engine:   p.Engine,
		ruleSvc:  p.RuleSvc,
		auditSvc: p.AuditSvc,
		metrics:  p.Metrics,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := s.engine.Group("/api/v1")

	commission := api.Group("/commission-rules")
	commission.POST("", s.CreateCommissionRule)
	commission.GET("", s.ListCommissionRules)
	commission.GET("/resolve", s.ResolveCommissionRate)
	commission.GET("/:id", s.GetCommissionRule)
	commission.PATCH("/:id", s.UpdateCommissionRule)
	commission.DELETE("/:id", s.DeleteCommissionRule)
	commission.GET("/:id/history", s.GetCommissionRuleHistory)

	tax := api.Group("/tax-rules")
	tax.POST("", s.CreateTaxRule)
	tax.GET("", s.ListTaxRules)
	tax.GET("/resolve", s.ResolveTaxRate)
	tax.GET("/:id", s.GetTaxRule)
	tax.PATCH("/:id", s.UpdateTaxRule)
	tax.DELETE("/:id", s.DeleteTaxRule)
	tax.GET("/:id/history", s.GetTaxRuleHistory)

	api.GET("/audit-logs", s.ListAuditLogs)
}

func run(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			_ = ctx
			s.log.Info("http server listening", zap.String("addr", s.cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					s.log.Error("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

// Module wires the HTTP surface.
var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)
