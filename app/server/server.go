package server

import (
	"context"
	"net/http"
	"time"

	"auto-tube/app/collaborator"
	"auto-tube/app/config"
	"auto-tube/app/database"
	"auto-tube/app/handler"
	"auto-tube/app/logger"
	"auto-tube/app/middleware"
	"auto-tube/app/pipeline"
	"auto-tube/app/service"

	"github.com/gin-gonic/gin"
)

// Server 表示 HTTP 服务器及其持有的流水线组件
type Server struct {
	Config *config.Config
	Logger *logger.Logger
	gin    *gin.Engine
	http   *http.Server

	forbidden *service.ForbiddenWords
	limiter   *pipeline.CollaboratorLimiter
	orch      *pipeline.Orchestrator
	pool      *pipeline.WorkerPool
	scheduler *service.SchedulerService
	cleanup   *service.CleanupService
	hub       *handler.JobUpdateHub
}

// New 创建一个新的 Server 实例并完成流水线组件装配
func New(cfg *config.Config, log *logger.Logger) *Server {
	router := gin.Default()
	db := database.GetDB()

	s := &Server{
		gin: router,
		http: &http.Server{
			Addr:    ":" + cfg.Server.Port,
			Handler: router,
		},
		Config: cfg,
		Logger: log,
	}

	// 判重窗口从库中已发布标题恢复
	seed, err := pipeline.LoadRecentTitles(db, cfg.Content.RecentTitleWindow)
	if err != nil {
		log.Errorf("加载判重窗口失败: %v", err)
	}
	detector := pipeline.NewDuplicateDetector(
		cfg.Content.DuplicateThreshold,
		cfg.Content.RecentTitleWindow,
		cfg.Content.StopWords,
		seed,
	)

	s.forbidden = service.NewForbiddenWords(cfg.Content.ForbiddenWordsFile, log)
	s.limiter = pipeline.NewCollaboratorLimiter(cfg.Pipeline.RateBudgets,
		time.Duration(cfg.Pipeline.RateInterval)*time.Second, log)

	scorer := pipeline.NewTrendScorer(cfg.Content.TrendWeights)
	gate := pipeline.NewQualityGate(cfg.Content, s.forbidden, detector)
	runner := pipeline.NewStageRunner(db, cfg.Pipeline, log, s.limiter)

	collab := pipeline.Collaborators{
		Topics:    collaborator.NewNewsCollector(cfg.Collaborators),
		Script:    collaborator.NewScriptGenerator(cfg.Collaborators),
		Voice:     collaborator.NewVoiceSynthesizer(cfg.Collaborators),
		Visuals:   collaborator.NewVisualGatherer(cfg.Collaborators),
		Render:    collaborator.NewVideoRenderer(cfg.Collaborators),
		Thumbnail: collaborator.NewThumbnailGenerator(cfg.Collaborators),
		Publish:   collaborator.NewUploader(cfg.Collaborators),
	}

	s.orch = pipeline.NewOrchestrator(db, cfg, log, scorer, detector, gate, runner, collab)
	s.pool = pipeline.NewWorkerPool(db, cfg.Pipeline, log, s.orch)
	s.cleanup = service.NewCleanupService(db, cfg.Pipeline, log)
	s.hub = handler.NewJobUpdateHub(log)
	s.orch.SetNotifier(s.hub.NotifyJob)

	s.scheduler = service.NewSchedulerService(db, log, func(ctx context.Context, category string) error {
		_, err := s.orch.SubmitJob(ctx, category)
		return err
	})

	// 设置路由
	s.setupRoutes()

	return s
}

// Start 启动流水线组件和 HTTP 服务器
func (s *Server) Start() error {
	s.Logger.Infof("在端口 %s 启动服务器", s.http.Addr)

	if err := s.forbidden.Watch(); err != nil {
		s.Logger.Errorf("启动违禁词监控失败: %v", err)
	}
	s.limiter.Start()
	s.hub.Start()
	s.pool.Start()
	s.cleanup.Start()
	if err := s.scheduler.Start(); err != nil {
		return err
	}

	return s.http.ListenAndServe()
}

// Shutdown 按依赖的反序停止各组件
func (s *Server) Shutdown(ctx context.Context) error {
	s.scheduler.Stop()
	s.pool.Stop()
	s.cleanup.Stop()
	s.limiter.Stop()
	s.hub.Stop()
	s.forbidden.Stop()

	// 关闭数据库连接
	if err := database.Close(); err != nil {
		s.Logger.Errorf("关闭数据库连接失败: %v", err)
	}
	return s.http.Shutdown(ctx)
}

// setupRoutes 设置API路由
func (s *Server) setupRoutes() {
	authHandler := handler.NewAuthHandler(s.Config)
	jobHandler := handler.NewJobHandler(s.orch, s.pool)
	scheduleHandler := handler.NewScheduleHandler(s.scheduler)

	// API路由组
	api := s.gin.Group("/api")

	// 认证相关路由（不需要JWT验证）
	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.RefreshToken)
	}

	// 需要JWT验证的路由
	protected := api.Group("/")
	protected.Use(middleware.JWTAuth(s.Config))
	{
		// 用户相关
		protected.GET("/me", authHandler.Me)

		// 任务相关路由
		jobs := protected.Group("/jobs")
		{
			jobs.POST("/", jobHandler.SubmitJob)
			jobs.GET("/", jobHandler.ListJobs)
			jobs.GET("/:id", jobHandler.GetJob)
			jobs.POST("/:id/cancel", jobHandler.CancelJob)
		}

		// 队列状态
		protected.GET("/queue/status", jobHandler.QueueStatus)

		// 调度表管理
		schedules := protected.Group("/schedules")
		{
			schedules.GET("/", scheduleHandler.ListSchedules)
			schedules.POST("/", scheduleHandler.CreateSchedule)
			schedules.PUT("/:id", scheduleHandler.UpdateSchedule)
			schedules.DELETE("/:id", scheduleHandler.DeleteSchedule)
		}

		// 任务状态变更推送
		protected.GET("/ws/jobs", s.hub.ServeWS)
	}
}
