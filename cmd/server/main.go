package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/habityfy/internal/config"
	"github.com/habityfy/internal/db"
	"github.com/habityfy/internal/handler"
	"github.com/habityfy/internal/logger"
	"github.com/habityfy/internal/mailer"
	"github.com/habityfy/internal/router"
	"github.com/habityfy/internal/service"
	"github.com/habityfy/internal/streak"
	"github.com/joho/godotenv"
)

func main() {
	// 没有 .env 时直接使用环境变量
	_ = godotenv.Load()

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	if err := logger.Init(logger.Config{Debug: cfg.Debug, LogDir: cfg.LogDir}); err != nil {
		logger.L().Fatal("failed to initialize logger", "err", err)
	}

	// 初始化数据库
	if err := db.Init(cfg.DatabasePath); err != nil {
		logger.L().Fatal("failed to initialize database", "err", err)
	}

	// 按需创建后台管理员
	if err := db.EnsureAdminUser(cfg.AdminUsername, cfg.AdminPassword); err != nil {
		logger.L().Fatal("failed to ensure admin user", "err", err)
	}

	// 日界策略：TIMEZONE 非法时回退 UTC
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.L().Warn("invalid TIMEZONE, falling back to UTC", "timezone", cfg.Timezone)
		loc = time.UTC
	}
	clock := streak.SystemClock(loc)

	m := mailer.NewLogMailer()
	api := handler.NewAPI(db.DB, handler.Options{
		JWTSecret: cfg.JWTSecret,
		OTPTTL:    cfg.OTPTTL,
		Clock:     clock,
		Mailer:    m,
	})

	// 提醒扫描在后台按分钟运行，收到退出信号后停止
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		exit := make(chan os.Signal, 1)
		signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
		<-exit
		cancel()
	}()

	reminders := service.NewReminderService(
		db.DB,
		service.NewHabitService(db.DB, clock),
		service.NewNotificationService(db.DB),
		m,
		clock,
	)
	go reminders.Run(ctx)

	// 设置并运行 Gin 服务器
	r := router.SetupRouter(api, cfg.SessionSecret)
	if err := r.Run(cfg.ListenAddr); err != nil {
		logger.L().Fatal("failed to run server", "err", err)
	}
}
