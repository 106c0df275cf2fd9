package server

import (
	"context"
	"net/http"
	"summary-fusion/app/config"
	"summary-fusion/app/database"
	"summary-fusion/app/extractor"
	"summary-fusion/app/filewatcher"
	"summary-fusion/app/handler"
	"summary-fusion/app/logger"
	"summary-fusion/app/middleware"
	"summary-fusion/app/provider"
	"summary-fusion/app/service"

	"github.com/gin-gonic/gin"
)

// Server 表示 HTTP 服务器及其挂载的后台服务
type Server struct {
	Config *config.Config
	Logger *logger.Logger
	gin    *gin.Engine
	http   *http.Server

	jobService   *service.JobService
	catalog      *service.PromptCatalog
	pipeline     *service.PipelineService
	sweeper      *service.SweeperService
	inboxWatcher *filewatcher.InboxWatcher
}

// New 创建一个新的 Server 实例
func New(cfg *config.Config, log *logger.Logger) *Server {
	router := gin.Default()

	db := database.GetDB()

	// 组装流水线依赖
	state := service.NewJobStateMachine(db, log)
	keys := service.NewKeyPoolService(db, log, cfg.Pipeline.KeyErrorThreshold)
	catalog := service.NewPromptCatalog(db)
	providers := provider.NewRegistry(cfg)
	engine := service.NewSummarizeEngine(cfg, log, keys, providers)
	ext := extractor.NewService(cfg.Extractor.LinkTimeoutSec)
	pipeline := service.NewPipelineService(db, cfg, log, state, engine, catalog, ext)
	sweeper := service.NewSweeperService(db, cfg, log, state)
	jobService := service.NewJobService(db, cfg, log, state)

	inboxWatcher, err := filewatcher.NewInboxWatcher(cfg.Extractor.InboxDir, jobService, log)
	if err != nil {
		log.Errorf("创建投递目录监控器失败: %v", err)
	}

	s := &Server{
		gin: router,
		http: &http.Server{
			Addr:    ":" + cfg.Server.Port,
			Handler: router,
		},
		Config:       cfg,
		Logger:       log,
		jobService:   jobService,
		catalog:      catalog,
		pipeline:     pipeline,
		sweeper:      sweeper,
		inboxWatcher: inboxWatcher,
	}

	// 设置路由
	s.setupRoutes()

	return s
}

// Start 启动服务器和后台服务
func (s *Server) Start() error {
	s.Logger.Infof("在端口 %s 启动服务器", s.http.Addr)

	// 启动流水线工作池和僵死任务回收器
	s.pipeline.Start()
	s.sweeper.Start()

	// 启动投递目录监控
	if s.inboxWatcher != nil {
		if err := s.inboxWatcher.Start(); err != nil {
			s.Logger.Errorf("启动投递目录监控失败: %v", err)
		}
	}

	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	// 停止后台服务
	if s.inboxWatcher != nil {
		s.inboxWatcher.Stop()
	}
	s.sweeper.Stop()
	s.pipeline.Stop()

	// 关闭数据库连接
	if err := database.Close(); err != nil {
		s.Logger.Errorf("关闭数据库连接失败: %v", err)
	}
	return s.http.Shutdown(ctx)
}

// setupRoutes 设置API路由
func (s *Server) setupRoutes() {
	// 创建处理器实例
	authHandler := handler.NewAuthHandler(s.Config)
	jobHandler := handler.NewJobHandler(s.jobService)
	promptHandler := handler.NewSystemPromptHandler(s.catalog)
	keyHandler := handler.NewApiKeyHandler()

	// API路由组
	api := s.gin.Group("/api")

	// 认证相关路由（不需要JWT验证）
	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/register", authHandler.Register)
		auth.POST("/refresh", authHandler.RefreshToken)
	}

	// 任务提交和查询允许匿名访问，有登录态时记录所属用户
	jobs := api.Group("/jobs")
	jobs.Use(middleware.OptionalJWTAuth(s.Config))
	{
		jobs.POST("/", jobHandler.Submit)
		jobs.GET("/:job_id/status", jobHandler.GetStatus)
		jobs.POST("/:job_id/cancel", jobHandler.Cancel)
	}

	// 需要JWT验证的路由
	protected := api.Group("/")
	protected.Use(middleware.JWTAuth(s.Config))
	{
		// 用户相关
		protected.GET("/me", authHandler.Me)

		// 任务列表（按当前用户过滤）
		protected.GET("/jobs", jobHandler.List)

		// 提示词相关路由
		prompts := protected.Group("/prompts")
		{
			prompts.POST("/", promptHandler.CreatePrompt)
			prompts.GET("/", promptHandler.GetPrompts)
			prompts.GET("/active", promptHandler.GetActivePrompts)
			prompts.PUT("/:id", promptHandler.UpdatePrompt)
			prompts.DELETE("/:id", promptHandler.DeletePrompt)
		}

		// API密钥相关路由
		keys := protected.Group("/keys")
		{
			keys.POST("/", keyHandler.CreateKey)
			keys.GET("/", keyHandler.GetKeys)
			keys.PUT("/:id", keyHandler.UpdateKey)
			keys.DELETE("/:id", keyHandler.DeleteKey)
			keys.GET("/usage", keyHandler.GetUsageRecords)
		}
	}
}
