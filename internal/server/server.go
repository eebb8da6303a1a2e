package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"yuzu/internal/ai"
	"yuzu/internal/config"
	"yuzu/internal/handler"
	authHandler "yuzu/internal/handler/auth"
	"yuzu/internal/pkg/cache"
	"yuzu/internal/pkg/mongodb"
	"yuzu/internal/repository"
	authRepo "yuzu/internal/repository/auth"
	"yuzu/internal/server/middleware"
	"yuzu/internal/service"
	"yuzu/internal/session"
)

// Server HTTP 服务器
type Server struct {
	cfg      *config.Config
	engine   *gin.Engine
	mongo    *mongodb.Client
	redis    *cache.RedisCache
	sessions *session.Manager
	authSvc  *service.AuthService
}

// New 创建服务器实例
func New(cfg *config.Config) (*Server, error) {
	// 设置 Gin 模式
	switch cfg.Server.Mode {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建 Gin 引擎
	engine := gin.New()

	// 初始化 MongoDB（必须：对话、消息、设置全部落库）
	mongoClient, err := mongodb.New(&cfg.Mongo)
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}
	log.Info().Str("database", cfg.Mongo.Database).Msg("connected to MongoDB")

	// 创建索引
	if err := mongodb.EnsureIndexes(mongoClient.Database()); err != nil {
		log.Warn().Err(err).Msg("failed to ensure indexes")
	}

	// 初始化 Redis (可选，仅用作设置缓存)
	var redisCache *cache.RedisCache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("failed to connect to Redis, continuing without it")
		} else {
			redisCache = rc
			log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to Redis")
		}
	}

	db := mongoClient.Database()

	// 存储层
	stores := session.Stores{
		Chats:         repository.NewChatRepo(db),
		Messages:      repository.NewMessageRepo(db),
		Personalities: repository.NewPersonalityRepo(db),
		Settings:      repository.NewSettingsRepo(db, redisCache, cfg.Chat),
	}

	// 会话管理器：每个用户一个补全客户端（密钥互相隔离）
	aiCfg := cfg.AI
	sessions := session.NewManager(stores, func() session.Completer {
		return ai.NewClient(&aiCfg)
	})

	// 认证服务
	userRepo := authRepo.NewUserRepo(db)
	refreshTokenRepo := authRepo.NewRefreshTokenRepo(db)

	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "default-secret-key-change-in-production"
		log.Warn().Msg("JWT secret not configured, using default (NOT SECURE for production)")
	}

	accessTokenExpiry := cfg.Auth.AccessTokenExpiry
	if accessTokenExpiry == 0 {
		accessTokenExpiry = 24 * time.Hour
	}

	refreshTokenExpiry := cfg.Auth.RefreshTokenExpiry
	if refreshTokenExpiry == 0 {
		refreshTokenExpiry = 7 * 24 * time.Hour
	}

	authSvc := service.NewAuthService(
		userRepo,
		refreshTokenRepo,
		jwtSecret,
		accessTokenExpiry,
		refreshTokenExpiry,
	)

	srv := &Server{
		cfg:      cfg,
		engine:   engine,
		mongo:    mongoClient,
		redis:    redisCache,
		sessions: sessions,
		authSvc:  authSvc,
	}

	// 设置路由
	srv.setupRoutes()

	return srv, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	// 全局中间件
	s.engine.Use(middleware.Recovery())
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger())
	s.engine.Use(middleware.CORS())

	// 健康检查
	healthHandler := handler.NewHealthHandler(s.mongo)
	s.engine.GET("/health", healthHandler.Health)
	s.engine.GET("/ready", healthHandler.Ready)

	// Swagger 文档
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// API v1
	v1 := s.engine.Group("/api/v1")
	{
		// 认证接口（公开）
		authHdl := authHandler.NewHandler(s.authSvc, s.sessions.Remove)
		v1.POST("/auth/register", authHdl.Register)
		v1.POST("/auth/login", authHdl.Login)
		v1.POST("/auth/refresh", authHdl.Refresh)
		v1.POST("/auth/logout", authHdl.Logout)
		v1.GET("/auth/me", authHdl.GetMe)

		// 业务接口（需要认证）
		authed := v1.Group("")
		authed.Use(middleware.Auth(s.authSvc.JWT()))
		{
			chatHdl := handler.NewChatHandler(s.sessions)
			authed.GET("/session", chatHdl.Snapshot)
			authed.POST("/chat/send", chatHdl.Send)
			authed.POST("/chat/stop", chatHdl.Stop)

			convHdl := handler.NewConversationHandler(s.sessions)
			authed.GET("/chats", convHdl.List)
			authed.POST("/chats", convHdl.Create)
			authed.POST("/chats/:id/select", convHdl.Select)
			authed.PUT("/chats/:id/title", convHdl.UpdateTitle)
			authed.DELETE("/chats/:id", convHdl.Delete)

			persHdl := handler.NewPersonalityHandler(s.sessions)
			authed.GET("/personalities", persHdl.List)
			authed.POST("/personalities", persHdl.Create)
			authed.PUT("/personalities/:id", persHdl.Update)
			authed.POST("/personalities/:id/activate", persHdl.Activate)
			authed.DELETE("/personalities/:id", persHdl.Delete)

			settingsHdl := handler.NewSettingsHandler(s.sessions)
			authed.GET("/settings", settingsHdl.Get)
			authed.PUT("/settings", settingsHdl.Update)
			authed.POST("/settings/validate-key", settingsHdl.ValidateKey)
		}
	}
}

// Run 启动服务器
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	// 启动服务器
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待关闭信号或错误
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server...")

		// 关闭连接
		if s.mongo != nil {
			if err := s.mongo.Close(context.Background()); err != nil {
				log.Error().Err(err).Msg("failed to close MongoDB connection")
			}
		}
		if s.redis != nil {
			if err := s.redis.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close Redis connection")
			}
		}

		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

// Engine 获取 Gin 引擎 (用于测试)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}
