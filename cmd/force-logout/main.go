// Package main 管理工具：强制登出指定用户的全部活跃会话
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
	username := flag.String("user", "", "要强制登出的用户名")
	admin := flag.String("admin", "cli", "操作人标识，记入黑名单")
	flag.Parse()

	if *username == "" {
		log.Fatal("必须指定 -user")
	}

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

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	count, err := sessionManager.ForceLogout(ctx, *username, *admin)
	if err != nil {
		log.Fatalf("强制登出失败: %v", err)
	}
	log.Printf("已强制登出用户 %s 的 %d 个会话", *username, count)
}
