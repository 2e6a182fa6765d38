package handlers

import (
	"time"

	"VoiceFlow/internal/transcription"
	"VoiceFlow/internal/workflow"
	"VoiceFlow/pkg/cache"
	"VoiceFlow/pkg/config"
	"VoiceFlow/pkg/metrics"
	"VoiceFlow/pkg/middleware"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type Handlers struct {
	db       *gorm.DB
	engine   *workflow.Engine
	remote   transcription.Producer
	fallback transcription.Producer
	limiter  *middleware.RateLimiter
	cache    cache.Cache
}

func NewHandlers(db *gorm.DB, engine *workflow.Engine, remote, fallback transcription.Producer, limiter *middleware.RateLimiter, c cache.Cache) *Handlers {
	return &Handlers{
		db:       db,
		engine:   engine,
		remote:   remote,
		fallback: fallback,
		limiter:  limiter,
		cache:    c,
	}
}

func (h *Handlers) Register(engine *gin.Engine) {
	engine.Use(middleware.SecurityHeaders())
	engine.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	engine.Use(metrics.GinMiddleware())
	if h.limiter != nil {
		engine.Use(h.limiter.Middleware())
	}

	engine.GET("/metrics", metrics.Handler())

	r := engine.Group(config.GlobalConfig.APIPrefix)

	h.registerWorkflowRoutes(r)
	h.registerTranscriptRoutes(r)
	h.registerSystemRoutes(r)
}

// Workflow Module
func (h *Handlers) registerWorkflowRoutes(r *gin.RouterGroup) {
	r.POST("/workflow",
		middleware.IdempotencyMiddleware(middleware.IdempotencyConfig{}),
		h.handleCreateWorkflow)

	// stats 必须先于 :id 注册
	r.GET("/workflow/stats", h.handleWorkflowStats)

	r.GET("/workflow/:id", h.handleGetWorkflow)

	r.PUT("/workflow/:id/transition", h.handleTransitionWorkflow)

	r.GET("/workflows", h.handleListWorkflows)
}

// Transcription Module（独立转写，不走审核工作流）
func (h *Handlers) registerTranscriptRoutes(r *gin.RouterGroup) {
	t := r.Group("transcriptions")
	{
		t.POST("", h.handleCreateTranscription)

		t.GET("", h.handleListTranscripts)

		t.GET("/:id", h.handleGetTranscript)
	}
}

func statsCacheTTL() time.Duration {
	if config.GlobalConfig != nil && config.GlobalConfig.StatsCacheTTL > 0 {
		return config.GlobalConfig.StatsCacheTTL
	}
	return 5 * time.Second
}

func (h *Handlers) registerSystemRoutes(r *gin.RouterGroup) {
	system := r.Group("system")
	{
		system.POST("/rate-limiter/config", h.UpdateRateLimiterConfig)

		system.GET("/health", h.HealthCheck)

		system.GET("/stats", h.SystemStats)
	}
}
