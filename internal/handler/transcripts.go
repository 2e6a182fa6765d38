package handlers

import (
	"net/http"

	"VoiceFlow/internal/models"
	"VoiceFlow/internal/workflow"
	"VoiceFlow/pkg/logger"
	"VoiceFlow/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 创建独立转写：优先走远端识别，重试耗尽后落库 mock 兜底文本
func (h *Handlers) handleCreateTranscription(c *gin.Context) {
	var req struct {
		AudioURL string `json:"audioUrl"`
		Language string `json:"language"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, "invalid request body", nil)
		return
	}
	if !workflow.ValidAudioURL(req.AudioURL) {
		response.Fail(c, "audioUrl must be a valid http, https or ftp URL", nil)
		return
	}
	language := req.Language
	if language == "" {
		language = workflow.DefaultLanguage
	} else if !workflow.ValidLanguage(language) {
		response.Fail(c, "language must match the xx-XX format, e.g. en-US", nil)
		return
	}

	source := models.TranscriptSourceRemote
	text, err := h.remote.Produce(c.Request.Context(), req.AudioURL, language)
	if err != nil {
		logger.Warn("remote transcription exhausted retries, falling back to mock",
			zap.String("audio_url", req.AudioURL), zap.Error(err))
		source = models.TranscriptSourceFallback
		text, err = h.fallback.Produce(c.Request.Context(), req.AudioURL, language)
		if err != nil {
			response.FailWithStatus(c, http.StatusInternalServerError, "transcription failed")
			return
		}
	}

	transcript := models.Transcript{
		ID:       uuid.NewString(),
		AudioURL: req.AudioURL,
		Language: language,
		Text:     text,
		Source:   source,
	}
	if err := h.db.Create(&transcript).Error; err != nil {
		// 兜底写入失败是硬错误
		response.FailWithStatus(c, http.StatusInternalServerError, "failed to persist transcript")
		return
	}

	response.Created(c, "transcription created", transcript)
}

// 查询单条转写
func (h *Handlers) handleGetTranscript(c *gin.Context) {
	var transcript models.Transcript
	if err := h.db.First(&transcript, "id = ?", c.Param("id")).Error; err != nil {
		response.FailWithStatus(c, http.StatusNotFound, "transcript not found")
		return
	}
	response.Success(c, "transcript", transcript)
}

// 查询全部转写
func (h *Handlers) handleListTranscripts(c *gin.Context) {
	var transcripts []models.Transcript
	if err := h.db.Order("created_at DESC").Find(&transcripts).Error; err != nil {
		response.FailWithStatus(c, http.StatusInternalServerError, "failed to list transcripts")
		return
	}
	response.Success(c, "transcripts", transcripts)
}
