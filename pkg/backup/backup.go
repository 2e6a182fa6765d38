package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"VoiceFlow/pkg/logger"
	"VoiceFlow/pkg/scheduler"

	"go.uber.org/zap"
)

// Config 备份配置
type Config struct {
	Driver   string // sqlite 以外的驱动暂不支持
	DSN      string
	Path     string
	Schedule string // cron 表达式
}

// Register 在 cron 上注册周期备份任务
func Register(cr *scheduler.Cron, cfg Config) error {
	_, err := cr.AddWithCtx(cfg.Schedule, func(ctx context.Context) {
		if err := Execute(cfg); err != nil {
			logger.Warn("backup failed", zap.Error(err))
		} else {
			logger.Info("backup completed")
		}
	})
	return err
}

// Execute 根据配置执行数据库备份
func Execute(cfg Config) error {
	switch cfg.Driver {
	case "", "sqlite":
		dst := filepath.Join(cfg.Path, fmt.Sprintf("voiceflow_backup_%s.db", time.Now().Format("20060102_150405")))
		return backupSQLite(cfg.DSN, dst)
	default:
		return fmt.Errorf("unsupported DB driver for backup: %s", cfg.Driver)
	}
}

// backupSQLite 拷贝 SQLite 数据库文件
func backupSQLite(src, dst string) error {
	backupDir := filepath.Dir(dst)
	if _, err := os.Stat(backupDir); os.IsNotExist(err) {
		if err := os.MkdirAll(backupDir, os.ModePerm); err != nil {
			return fmt.Errorf("failed to create backup directory: %v", err)
		}
	}

	sourceFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("error opening source file: %v", err)
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("error creating destination file: %v", err)
	}
	defer destFile.Close()

	if _, err = io.Copy(destFile, sourceFile); err != nil {
		return fmt.Errorf("error copying data: %v", err)
	}
	return nil
}
