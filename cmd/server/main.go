package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	handlers "VoiceFlow/internal/handler"
	"VoiceFlow/internal/models"
	"VoiceFlow/internal/transcription"
	"VoiceFlow/internal/workflow"
	"VoiceFlow/pkg/backup"
	"VoiceFlow/pkg/cache"
	"VoiceFlow/pkg/config"
	"VoiceFlow/pkg/logger"
	"VoiceFlow/pkg/metrics"
	"VoiceFlow/pkg/middleware"
	"VoiceFlow/pkg/retry"
	"VoiceFlow/pkg/scheduler"
	"VoiceFlow/pkg/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.GlobalConfig

	if err := logger.Init(cfg.Log); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := util.InitDatabase(cfg.DBDriver, cfg.DSN)
	if err != nil {
		logger.Error("failed to open database", zap.Error(err))
		os.Exit(1)
	}
	if err := db.AutoMigrate(
		&models.WorkflowRecord{},
		&models.WorkflowHistoryEntry{},
		&models.Transcript{},
	); err != nil {
		logger.Error("failed to migrate database", zap.Error(err))
		os.Exit(1)
	}

	c, err := cache.NewCache(cache.Config{
		Type: cfg.CacheType,
		Redis: cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		},
	})
	if err != nil {
		logger.Error("failed to init cache", zap.Error(err))
		os.Exit(1)
	}
	defer c.Close()

	sched := scheduler.New()
	defer sched.Stop()

	engine := workflow.NewEngine(db, sched, transcription.NewMockProducer(0), logger.L(), workflow.Config{
		CreateDelay:   cfg.AutoProgressCreateDelay,
		ReviewDelay:   cfg.AutoProgressReviewDelay,
		ApprovalDelay: cfg.AutoProgressApprovalDelay,
	})

	remote := transcription.NewRemoteSpeechProducer(retry.DefaultPolicy(), logger.L())
	fallback := transcription.NewMockProducer(0.1)

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		Rate:       cfg.RateLimit,
		AddHeaders: true,
		SkipPaths:  []string{"/metrics", cfg.APIPrefix + "/system/health"},
	}, nil).WithObserver(middleware.NewPrometheusObserver())

	// 周期任务：备份 + 每小时打一条统计日志
	cr := scheduler.NewCron(nil, logger.L())
	if cfg.BackupEnabled {
		err := backup.Register(cr, backup.Config{
			Driver:   cfg.DBDriver,
			DSN:      cfg.DSN,
			Path:     cfg.BackupPath,
			Schedule: cfg.BackupSchedule,
		})
		if err != nil {
			logger.Warn("failed to register backup job", zap.Error(err))
		}
	}
	cr.Start()
	defer cr.Stop()

	sched.Every(time.Hour, scheduler.FuncJob(func(ctx context.Context) {
		if stats, err := engine.Stats(ctx); err == nil {
			logger.Info("workflow stats snapshot",
				zap.Int64("total", stats.Total),
				zap.Any("statistics", stats.Statistics))
		}
		logger.Debug("system snapshot", zap.Any("stats", metrics.CollectSystemStats()))
	}))

	router := gin.New()
	router.Use(gin.Recovery())
	handlers.NewHandlers(db, engine, remote, fallback, limiter, c).Register(router)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", zap.Error(err))
	}
}
