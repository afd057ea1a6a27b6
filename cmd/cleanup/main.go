// Package main 过期数据清理工具，适合 cron 调用
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/fulinvn/hr-auth/internal/config"
	"github.com/fulinvn/hr-auth/internal/database"
	"github.com/fulinvn/hr-auth/internal/repository"
	"github.com/fulinvn/hr-auth/internal/service"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	timeout := flag.Duration("timeout", 5*time.Minute, "清理超时")
	flag.Parse()

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	if err := database.Init(&cfg.Database); err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}
	defer database.Close()

	sessionManager := service.NewSessionManager(
		service.SessionManagerConfig{
			AccessExpiry:     cfg.JWT.AccessExpiry,
			RefreshExpiry:    cfg.JWT.RefreshExpiry,
			RememberMeExpiry: cfg.JWT.RememberMeExpiry,
			AttemptRetention: cfg.Cleanup.AttemptRetention,
		},
		service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Algorithm),
		repository.NewSessionRepository(database.GetDB()),
		repository.NewBlacklistRepository(database.GetDB()),
		repository.NewLoginAuditRepository(database.GetDB()),
		nil,
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	stats, err := sessionManager.Cleanup(ctx)
	if stats != nil {
		log.Printf("清理完成: 黑名单 %d 条, 过期会话 %d 个, 尝试记录 %d 条",
			stats.BlacklistRemoved, stats.SessionsExpired, stats.AttemptsRemoved)
	}
	if err != nil {
		log.Fatalf("清理出错: %v", err)
	}
}
