package config

import (
	"VoiceFlow/pkg/logger"
	"VoiceFlow/pkg/util"
	"log"
	"os"
	"time"
)

// config/config.go
type Config struct {
	DBDriver  string `env:"DB_DRIVER"`
	DSN       string `env:"DSN"`
	Log       logger.LogConfig
	Addr      string `env:"ADDR"`
	Mode      string `env:"MODE"`
	APIPrefix string `env:"API_PREFIX"`

	// 工作流自动推进延迟
	AutoProgressCreateDelay   time.Duration `env:"AUTO_PROGRESS_CREATE_DELAY"`
	AutoProgressReviewDelay   time.Duration `env:"AUTO_PROGRESS_REVIEW_DELAY"`
	AutoProgressApprovalDelay time.Duration `env:"AUTO_PROGRESS_APPROVAL_DELAY"`

	RateLimit     string `env:"RATE_LIMIT"` // e.g. "100-M"
	CacheType     string `env:"CACHE_TYPE"` // gocache | redis
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	StatsCacheTTL time.Duration `env:"STATS_CACHE_TTL"`

	BackupEnabled  bool   `env:"BACKUP_ENABLED"`
	BackupPath     string `env:"BACKUP_PATH"`
	BackupSchedule string `env:"BACKUP_SCHEDULE"`
}

var GlobalConfig *Config

func Load() error {
	// 1. 根据环境加载 .env 文件
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development" // 默认使用开发环境
	}
	err := util.LoadEnv(env)
	if err != nil {
		log.Printf("Failed to load .env file: %v", err)
	}

	// 2. 加载全局配置
	GlobalConfig = &Config{
		DBDriver:  util.GetEnv("DB_DRIVER"),
		DSN:       util.GetEnv("DSN"),
		Addr:      util.GetEnvDefault("ADDR", ":8080"),
		Mode:      util.GetEnv("MODE"),
		APIPrefix: util.GetEnvDefault("API_PREFIX", "/api"),
		Log: logger.LogConfig{
			Level:      util.GetEnv("LOG_LEVEL"),
			Filename:   util.GetEnv("LOG_FILENAME"),
			MaxSize:    int(util.GetIntEnv("LOG_MAX_SIZE")),
			MaxAge:     int(util.GetIntEnv("LOG_MAX_AGE")),
			MaxBackups: int(util.GetIntEnv("LOG_MAX_BACKUPS")),
		},
		AutoProgressCreateDelay:   durationEnv("AUTO_PROGRESS_CREATE_DELAY", 2*time.Second),
		AutoProgressReviewDelay:   durationEnv("AUTO_PROGRESS_REVIEW_DELAY", 3*time.Second),
		AutoProgressApprovalDelay: durationEnv("AUTO_PROGRESS_APPROVAL_DELAY", 5*time.Second),
		RateLimit:                 util.GetEnvDefault("RATE_LIMIT", "100-M"),
		CacheType:                 util.GetEnvDefault("CACHE_TYPE", "gocache"),
		RedisAddr:                 util.GetEnv("REDIS_ADDR"),
		RedisPassword:             util.GetEnv("REDIS_PASSWORD"),
		StatsCacheTTL:             durationEnv("STATS_CACHE_TTL", 5*time.Second),
		BackupEnabled:             util.GetBoolEnv("BACKUP_ENABLED"),
		BackupPath:                util.GetEnv("BACKUP_PATH"),
		BackupSchedule:            util.GetEnvDefault("BACKUP_SCHEDULE", "0 3 * * *"),
	}
	return nil
}

func durationEnv(key string, def time.Duration) time.Duration {
	v := util.GetEnv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("invalid duration for %s: %v", key, err)
		return def
	}
	return d
}
