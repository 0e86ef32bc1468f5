package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/creatorpay/internal/audit"
	auditdomain "github.com/smallbiznis/creatorpay/internal/audit/domain"
	"github.com/smallbiznis/creatorpay/internal/authorization"
	"github.com/smallbiznis/creatorpay/internal/campaign"
	campaigndomain "github.com/smallbiznis/creatorpay/internal/campaign/domain"
	"github.com/smallbiznis/creatorpay/internal/config"
	"github.com/smallbiznis/creatorpay/internal/earnings"
	earningsdomain "github.com/smallbiznis/creatorpay/internal/earnings/domain"
	"github.com/smallbiznis/creatorpay/internal/impression"
	impressiondomain "github.com/smallbiznis/creatorpay/internal/impression/domain"
	"github.com/smallbiznis/creatorpay/internal/impression/liveevents"
	"github.com/smallbiznis/creatorpay/internal/observability"
	obsmiddleware "github.com/smallbiznis/creatorpay/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/creatorpay/internal/observability/metrics"
	obstracing "github.com/smallbiznis/creatorpay/internal/observability/tracing"
	"github.com/smallbiznis/creatorpay/internal/payout"
	payoutdomain "github.com/smallbiznis/creatorpay/internal/payout/domain"
	"github.com/smallbiznis/creatorpay/internal/ratelimit"
	"github.com/smallbiznis/creatorpay/internal/submission"
	submissiondomain "github.com/smallbiznis/creatorpay/internal/submission/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	audit.Module,
	campaign.Module,
	submission.Module,
	impression.Module,
	earnings.Module,
	payout.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
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
	db            *gorm.DB
	genID         *snowflake.Node
	authzSvc      authorization.Service
	auditSvc      auditdomain.Service
	campaignSvc   campaigndomain.Service
	submissionSvc submissiondomain.Service
	impressionSvc impressiondomain.Service
	earningsSvc   earningsdomain.Service
	payoutSvc     payoutdomain.Service
	liveEvents    *liveevents.Hub
	obsMetrics    *obsmetrics.Metrics
	viewLimiter   *ratelimit.ViewIngestLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	GenID         *snowflake.Node
	AuthzSvc      authorization.Service
	AuditSvc      auditdomain.Service
	CampaignSvc   campaigndomain.Service
	SubmissionSvc submissiondomain.Service
	ImpressionSvc impressiondomain.Service
	EarningsSvc   earningsdomain.Service
	PayoutSvc     payoutdomain.Service
	LiveEvents    *liveevents.Hub             `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics         `optional:"true"`
	ViewLimiter   *ratelimit.ViewIngestLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		genID:         p.GenID,
		authzSvc:      p.AuthzSvc,
		auditSvc:      p.AuditSvc,
		campaignSvc:   p.CampaignSvc,
		submissionSvc: p.SubmissionSvc,
		impressionSvc: p.ImpressionSvc,
		earningsSvc:   p.EarningsSvc,
		payoutSvc:     p.PayoutSvc,
		liveEvents:    p.LiveEvents,
		obsMetrics:    p.ObsMetrics,
		viewLimiter:   p.ViewLimiter,
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")
	api.Use(s.ActorContext())

	// -------- Campaigns --------
	api.GET("/campaigns", s.ListCampaigns)
	api.GET("/campaigns/:id", s.GetCampaignByID)

	// -------- Submissions --------
	api.POST("/submissions", s.CreateSubmission)
	api.GET("/submissions", s.ListSubmissions)
	api.GET("/submissions/:id", s.GetSubmissionByID)
	api.GET("/submissions/:id/impressions", s.ListSubmissionImpressions)
	api.GET("/submissions/:id/live-events", s.StreamSubmissionLiveEvents)

	// -------- Views --------
	api.POST("/views", s.ViewIngestRateLimit(), s.RecordView)

	// -------- Earnings --------
	api.GET("/creators/:id/earnings", s.GetEarningsSummary)
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin")

	admin.Use(s.ActorContext())
	admin.Use(s.ActorRequired())

	// -------- Moderation --------
	admin.POST("/submissions/:id/approve", s.requireAction(authorization.ObjectSubmission, authorization.ActionSubmissionReview), s.ApproveSubmission)
	admin.POST("/submissions/:id/reject", s.requireAction(authorization.ObjectSubmission, authorization.ActionSubmissionReview), s.RejectSubmission)
	admin.POST("/submissions/:id/flag", s.requireAction(authorization.ObjectSubmission, authorization.ActionSubmissionReview), s.FlagSubmission)

	// -------- Payouts --------
	admin.POST("/payouts/generate", s.requireAction(authorization.ObjectPayout, authorization.ActionPayoutGenerate), s.GeneratePayouts)
	admin.GET("/payouts", s.requireAction(authorization.ObjectPayout, authorization.ActionPayoutView), s.ListPayouts)
	admin.GET("/payouts/:id", s.requireAction(authorization.ObjectPayout, authorization.ActionPayoutView), s.GetPayoutByID)
	admin.POST("/payouts/:id/send", s.requireAction(authorization.ObjectPayout, authorization.ActionPayoutDispatch), s.SendPayout)
	admin.POST("/payouts/:id/fail", s.requireAction(authorization.ObjectPayout, authorization.ActionPayoutDispatch), s.FailPayout)

	// -------- Audit Logs --------
	admin.GET("/audit-logs", s.requireAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)
}
