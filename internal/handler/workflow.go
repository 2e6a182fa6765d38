package handlers

import (
	"strconv"

	"VoiceFlow/pkg/errors"
	"VoiceFlow/pkg/response"

	"github.com/gin-gonic/gin"
)

// 创建转写工作流
func (h *Handlers) handleCreateWorkflow(c *gin.Context) {
	var req struct {
		AudioURL string `json:"audioUrl"`
		Language string `json:"language"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request body", nil)
		return
	}

	view, err := h.engine.Create(c.Request.Context(), req.AudioURL, req.Language)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Created(c, "workflow created", view)
}

// 执行状态流转
func (h *Handlers) handleTransitionWorkflow(c *gin.Context) {
	var req struct {
		NewStatus  string `json:"newStatus"`
		Comment    string `json:"comment"`
		ReviewedBy string `json:"reviewedBy"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request body", nil)
		return
	}
	if req.NewStatus == "" {
		response.Fail(c, "newStatus is required", nil)
		return
	}

	view, err := h.engine.Transition(c.Request.Context(), c.Param("id"), req.NewStatus, req.Comment, req.ReviewedBy)
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, "workflow transitioned", view)
}

// 查询单个工作流状态
func (h *Handlers) handleGetWorkflow(c *gin.Context) {
	view, err := h.engine.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	response.Success(c, "workflow status", view)
}

// 分页查询工作流列表
func (h *Handlers) handleListWorkflows(c *gin.Context) {
	page, err := intQuery(c, "page", 1)
	if err != nil {
		response.Fail(c, "page must be an integer", nil)
		return
	}
	limit, err := intQuery(c, "limit", 10)
	if err != nil {
		response.Fail(c, "limit must be an integer", nil)
		return
	}

	view, listErr := h.engine.List(c.Request.Context(), c.Query("status"), page, limit)
	if listErr != nil {
		respondError(c, listErr)
		return
	}
	response.Success(c, "workflow list", view)
}

// 按状态统计工作流数量，结果短暂缓存
func (h *Handlers) handleWorkflowStats(c *gin.Context) {
	const cacheKey = "workflow:stats"
	if h.cache != nil {
		if cached, ok := h.cache.Get(c.Request.Context(), cacheKey); ok {
			response.Success(c, "workflow stats", cached)
			return
		}
	}

	view, err := h.engine.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if h.cache != nil {
		_ = h.cache.Set(c.Request.Context(), cacheKey, view, statsCacheTTL())
	}
	response.Success(c, "workflow stats", view)
}

func respondError(c *gin.Context, err error) {
	response.FailWithStatus(c, errors.HTTPStatus(err), errors.GetMessage(err))
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
