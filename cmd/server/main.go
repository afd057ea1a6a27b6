package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fulinvn/hr-auth/internal/config"
	"github.com/fulinvn/hr-auth/internal/database"
	"github.com/fulinvn/hr-auth/internal/handler"
	"github.com/fulinvn/hr-auth/internal/ldapauth"
	"github.com/fulinvn/hr-auth/internal/middleware"
	"github.com/fulinvn/hr-auth/internal/model"
	"github.com/fulinvn/hr-auth/internal/redis"
	"github.com/fulinvn/hr-auth/internal/repository"
	"github.com/fulinvn/hr-auth/internal/service"
	"github.com/fulinvn/hr-auth/pkg/response"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	logger := middleware.GetLogger()

	// 初始化数据库连接
	if err := database.Init(&cfg.Database); err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}
	defer database.Close()
	logger.Info("数据库连接成功")

	// 初始化 Redis 连接
	if err := redis.Init(&cfg.Redis); err != nil {
		log.Fatalf("初始化 Redis 失败: %v", err)
	}
	defer redis.Close()
	logger.Info("Redis 连接成功")

	// 自动迁移数据库表
	if err := database.AutoMigrate(
		&model.UserSession{},
		&model.TokenBlacklist{},
		&model.LoginHistory{},
		&model.UserLoginAttempt{},
	); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}
	logger.Info("数据库迁移完成")

	// 展示时区，令牌计算一律使用 UTC
	display, err := time.LoadLocation(cfg.Timezone.Display)
	if err != nil {
		logger.Warn("加载展示时区失败，回退到 UTC", zap.String("timezone", cfg.Timezone.Display))
		display = time.UTC
	}

	// 初始化 Repository
	sessionRepo := repository.NewSessionRepository(database.GetDB())
	blacklistRepo := repository.NewBlacklistRepository(database.GetDB())
	auditRepo := repository.NewLoginAuditRepository(database.GetDB())

	// 初始化 Service
	tokenService := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Algorithm)
	sessionManager := service.NewSessionManager(
		service.SessionManagerConfig{
			AccessExpiry:     cfg.JWT.AccessExpiry,
			RefreshExpiry:    cfg.JWT.RefreshExpiry,
			RememberMeExpiry: cfg.JWT.RememberMeExpiry,
			AttemptRetention: cfg.Cleanup.AttemptRetention,
		},
		tokenService, sessionRepo, blacklistRepo, auditRepo, logger,
	)

	// 目录后端按配置可选
	var directory ldapauth.Authenticator
	if cfg.LDAP.Enabled {
		directory = ldapauth.New(ldapauth.Config{
			Server:           cfg.LDAP.Server,
			Port:             cfg.LDAP.Port,
			Domain:           cfg.LDAP.Domain,
			Organization:     cfg.LDAP.Organization,
			BindTimeout:      cfg.LDAP.BindTimeout,
			SearchTimeout:    cfg.LDAP.SearchTimeout,
			SubordinateLimit: cfg.LDAP.SubordinateLimit,
		}, logger)
	} else {
		logger.Warn("目录认证未启用，所有登入将被拒绝")
	}

	throttle := service.NewLoginThrottle(redis.GetClient(), 0, 0, logger)
	authService := service.NewAuthService(directory, sessionManager, throttle, logger)

	// 初始化 Handler
	authHandler := handler.NewAuthHandler(authService, sessionManager, display, logger)

	// 设置 Gin 模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()

	// 全局中间件
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		dbStatus := "ok"
		if err := database.Ping(); err != nil {
			dbStatus = "error"
		}

		redisStatus := "ok"
		if client := redis.GetClient(); client == nil {
			redisStatus = "error"
		} else if err := client.Ping(c.Request.Context()).Err(); err != nil {
			redisStatus = "error"
		}

		response.Success(c, "ok", gin.H{
			"service":  "hr-auth",
			"time":     time.Now().In(display).Format(time.RFC3339),
			"database": dbStatus,
			"redis":    redisStatus,
		})
	})

	// API 路由组
	api := router.Group("/api/v1")
	{
		// 认证路由（公开）
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
			auth.POST("/logout", authHandler.Logout)
		}

		// 需要认证的路由
		authRequired := api.Group("")
		authRequired.Use(middleware.JWTAuth(sessionManager))
		{
			authRequired.GET("/auth/me", authHandler.Me)
			authRequired.GET("/auth/sessions", authHandler.Sessions)
		}

		// 管理路由（需要主管身份）
		admin := api.Group("/admin")
		admin.Use(middleware.JWTAuth(sessionManager), middleware.RequireManager())
		{
			admin.GET("/security-stats", authHandler.SecurityStats)
		}
	}

	// 周期清理过期数据
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	defer stopCleanup()
	go runCleanup(cleanupCtx, sessionManager, cfg.Cleanup.Interval, logger)

	// 创建 HTTP 服务器
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		logger.Info("服务启动", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("正在关闭服务...")
	stopCleanup()

	// 优雅关闭，等待 5 秒
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务关闭失败: %v", err)
	}

	logger.Info("服务已关闭")
}

// runCleanup 周期执行过期数据清理
func runCleanup(ctx context.Context, sessions service.SessionManager, interval time.Duration, logger *zap.Logger) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := sessions.Cleanup(ctx)
			if err != nil {
				logger.Error("周期清理出错", zap.Error(err))
			}
			if stats != nil {
				logger.Info("周期清理完成",
					zap.Int64("blacklist_removed", stats.BlacklistRemoved),
					zap.Int64("sessions_expired", stats.SessionsExpired),
					zap.Int64("attempts_removed", stats.AttemptsRemoved))
			}
		}
	}
}
