package handlers

import (
	"net/http"

	"VoiceFlow/pkg/metrics"
	"VoiceFlow/pkg/middleware"
	"VoiceFlow/pkg/response"

	"github.com/gin-gonic/gin"
)

// UpdateRateLimiterConfig 更新限流配置
func (h *Handlers) UpdateRateLimiterConfig(c *gin.Context) {
	var cfg middleware.RateLimiterConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		response.Fail(c, "invalid request", nil)
		return
	}

	if h.limiter == nil {
		response.FailWithStatus(c, http.StatusServiceUnavailable, "rate limiter disabled")
		return
	}
	h.limiter.UpdateConfig(cfg)
	response.Success(c, "rate limiter config updated", nil)
}

// HealthCheck 健康检查接口
func (h *Handlers) HealthCheck(c *gin.Context) {
	// 检查数据库连接
	sqlDB, err := h.db.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database connection failed"})
		return
	}
	if err := sqlDB.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": "database ping failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// SystemStats 系统资源快照
func (h *Handlers) SystemStats(c *gin.Context) {
	response.Success(c, "system stats", metrics.CollectSystemStats())
}
