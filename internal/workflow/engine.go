package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"VoiceFlow/internal/models"
	"VoiceFlow/internal/transcription"
	"VoiceFlow/pkg/errors"
	"VoiceFlow/pkg/metrics"
	"VoiceFlow/pkg/scheduler"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SystemActor tags history entries written by the auto-progression scheduler.
const SystemActor = "system"

// DefaultLanguage is applied when create requests omit the language tag.
const DefaultLanguage = "en-US"

// Config holds auto-progression delays. Zero values fall back to the
// production defaults; tests shrink them to milliseconds.
type Config struct {
	CreateDelay   time.Duration // transcription → review
	ReviewDelay   time.Duration // review → approval
	ApprovalDelay time.Duration // approval → completed
}

func (c *Config) applyDefaults() {
	if c.CreateDelay <= 0 {
		c.CreateDelay = 2 * time.Second
	}
	if c.ReviewDelay <= 0 {
		c.ReviewDelay = 3 * time.Second
	}
	if c.ApprovalDelay <= 0 {
		c.ApprovalDelay = 5 * time.Second
	}
}

// Engine is the workflow state machine. All record mutation funnels through
// Transition; the store handle is injected, never a process-wide singleton.
type Engine struct {
	db       *gorm.DB
	sched    *scheduler.Scheduler
	producer transcription.Producer
	log      *zap.Logger
	cfg      Config
}

func NewEngine(db *gorm.DB, sched *scheduler.Scheduler, producer transcription.Producer, log *zap.Logger, cfg Config) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	cfg.applyDefaults()
	return &Engine{db: db, sched: sched, producer: producer, log: log, cfg: cfg}
}

// HistoryView 单条历史的对外投影
type HistoryView struct {
	Status     string    `json:"status"`
	Timestamp  time.Time `json:"timestamp"`
	Comment    string    `json:"comment,omitempty"`
	ReviewedBy string    `json:"reviewedBy,omitempty"`
}

// StatusView 工作流状态的对外投影
type StatusView struct {
	ID              string        `json:"id"`
	CurrentStatus   string        `json:"currentStatus"`
	WorkflowHistory []HistoryView `json:"workflowHistory"`
	CanTransition   []string      `json:"canTransition"`
}

// ListView 分页列表结果，Total 统计的是过滤后的全集
type ListView struct {
	Workflows []models.WorkflowRecord `json:"workflows"`
	Total     int64                   `json:"total"`
	Page      int                     `json:"page"`
	Limit     int                     `json:"limit"`
}

// StatsView 按状态聚合计数，未出现的状态补零
type StatsView struct {
	Statistics map[string]int64 `json:"statistics"`
	Total      int64            `json:"total"`
}

// Create validates the inputs, produces the transcription text, persists the
// record with its initial history entry, and schedules auto-progression to
// review. Nothing is persisted when the producer or the write fails.
func (e *Engine) Create(ctx context.Context, audioURL, language string) (*StatusView, error) {
	if !ValidAudioURL(audioURL) {
		return nil, errors.Validationf("audioUrl must be a valid http, https or ftp URL")
	}
	if language == "" {
		language = DefaultLanguage
	} else if !ValidLanguage(language) {
		return nil, errors.Validationf("language must match the xx-XX format, e.g. en-US")
	}

	text, err := e.producer.Produce(ctx, audioURL, language)
	if err != nil {
		return nil, errors.WrapCode(errors.CodeProducer, err, "transcription failed")
	}

	now := time.Now()
	rec := models.WorkflowRecord{
		ID:                uuid.NewString(),
		AudioURL:          audioURL,
		Language:          language,
		TranscriptionText: text,
		Status:            string(StatusTranscription),
		CreatedAt:         now,
		UpdatedAt:         now,
		History: []models.WorkflowHistoryEntry{{
			Status:    string(StatusTranscription),
			Timestamp: now,
			Comment:   "Workflow initiated - transcription completed",
		}},
	}

	if err := e.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, errors.WrapCode(errors.CodeStore, err, "failed to persist workflow record")
	}

	e.scheduleAutoProgress(rec.ID, e.cfg.CreateDelay)
	e.log.Info("workflow created",
		zap.String("id", rec.ID),
		zap.String("audio_url", audioURL),
		zap.String("language", language))

	return buildStatusView(&rec), nil
}

// Transition applies a validated state change. The status update is an atomic
// conditional write: two concurrent calls racing on the same record cannot
// both succeed against a stale status.
func (e *Engine) Transition(ctx context.Context, id, newStatus, comment, reviewedBy string) (*StatusView, error) {
	target := Status(newStatus)
	if !IsValidStatus(target) {
		return nil, errors.Validationf("unknown status %q. Valid statuses: %s",
			newStatus, strings.Join(statusStrings(AllStatuses), ", "))
	}

	var rec models.WorkflowRecord
	if err := e.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NotFoundf("workflow %s not found", id)
		}
		return nil, errors.WrapCode(errors.CodeStore, err, "failed to load workflow record")
	}

	current := Status(rec.Status)
	if !CanTransition(current, target) {
		return nil, invalidTransitionError(current, target)
	}

	now := time.Now()
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Conditional update: only advance if the status is still the one we
		// validated against. RowsAffected == 0 means another caller won.
		res := tx.Model(&models.WorkflowRecord{}).
			Where("id = ? AND status = ?", id, string(current)).
			Updates(map[string]interface{}{
				"status":     string(target),
				"updated_at": now,
			})
		if res.Error != nil {
			return errors.WrapCode(errors.CodeStore, res.Error, "failed to update workflow status")
		}
		if res.RowsAffected == 0 {
			return errors.InvalidTransitionf(
				"workflow %s was modified concurrently, transition from '%s' no longer applies", id, current)
		}

		entry := models.WorkflowHistoryEntry{
			RecordID:   id,
			Status:     string(target),
			Timestamp:  now,
			Comment:    comment,
			ReviewedBy: reviewedBy,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return errors.WrapCode(errors.CodeStore, err, "failed to append workflow history")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	actor := reviewedBy
	if actor == "" {
		actor = "user"
	}
	metrics.WorkflowTransitions.WithLabelValues(string(current), string(target), actor).Inc()
	e.log.Info("workflow transitioned",
		zap.String("id", id),
		zap.String("from", string(current)),
		zap.String("to", string(target)),
		zap.String("reviewed_by", reviewedBy))

	// review and approval get a system-driven follow-up; rejected, completed
	// and manual reopens to transcription do not.
	switch target {
	case StatusReview:
		e.scheduleAutoProgress(id, e.cfg.ReviewDelay)
	case StatusApproval:
		e.scheduleAutoProgress(id, e.cfg.ApprovalDelay)
	}

	return e.GetStatus(ctx, id)
}

// GetStatus returns the read-only projection of a record.
func (e *Engine) GetStatus(ctx context.Context, id string) (*StatusView, error) {
	var rec models.WorkflowRecord
	err := e.db.WithContext(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&rec, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NotFoundf("workflow %s not found", id)
		}
		return nil, errors.WrapCode(errors.CodeStore, err, "failed to load workflow record")
	}
	return buildStatusView(&rec), nil
}

// List returns records ordered most-recently-updated first, optionally
// filtered by status, with offset/limit pagination.
func (e *Engine) List(ctx context.Context, statusFilter string, page, limit int) (*ListView, error) {
	if page < 1 {
		return nil, errors.Validationf("page must be >= 1")
	}
	if limit < 1 || limit > 100 {
		return nil, errors.Validationf("limit must be between 1 and 100")
	}
	if statusFilter != "" && !IsValidStatus(Status(statusFilter)) {
		return nil, errors.Validationf("unknown status filter %q. Valid statuses: %s",
			statusFilter, strings.Join(statusStrings(AllStatuses), ", "))
	}

	q := e.db.WithContext(ctx).Model(&models.WorkflowRecord{})
	if statusFilter != "" {
		q = q.Where("status = ?", statusFilter)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, errors.WrapCode(errors.CodeStore, err, "failed to count workflow records")
	}

	var records []models.WorkflowRecord
	err := q.Order("updated_at DESC").Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Preload("History", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Find(&records).Error
	if err != nil {
		return nil, errors.WrapCode(errors.CodeStore, err, "failed to list workflow records")
	}

	return &ListView{Workflows: records, Total: total, Page: page, Limit: limit}, nil
}

// Stats returns the per-status counts across all records, zero-filled.
func (e *Engine) Stats(ctx context.Context) (*StatsView, error) {
	type row struct {
		Status string
		Count  int64
	}
	var rows []row
	err := e.db.WithContext(ctx).Model(&models.WorkflowRecord{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, errors.WrapCode(errors.CodeStore, err, "failed to aggregate workflow stats")
	}

	stats := make(map[string]int64, len(AllStatuses))
	for _, s := range AllStatuses {
		stats[string(s)] = 0
	}
	var total int64
	for _, r := range rows {
		stats[r.Status] = r.Count
		total += r.Count
	}
	return &StatsView{Statistics: stats, Total: total}, nil
}

// scheduleAutoProgress arms a fire-once timer for the record. The timer holds
// no lock while waiting and re-reads the live status when it fires.
func (e *Engine) scheduleAutoProgress(id string, delay time.Duration) {
	if e.sched == nil {
		return
	}
	e.sched.After(delay, scheduler.FuncJob(func(ctx context.Context) {
		e.autoProgress(ctx, id)
	}))
}

// autoProgress decides the next step from the record's CURRENT status, not
// from any snapshot captured at schedule time. A manual transition that moved
// the record elsewhere makes this a no-op. Failures are logged, never
// propagated.
func (e *Engine) autoProgress(ctx context.Context, id string) {
	var rec models.WorkflowRecord
	if err := e.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		metrics.AutoProgressFirings.WithLabelValues("missing").Inc()
		e.log.Warn("auto-progression: record not found", zap.String("id", id), zap.Error(err))
		return
	}

	next, ok := AutoNext(Status(rec.Status))
	if !ok {
		metrics.AutoProgressFirings.WithLabelValues("noop").Inc()
		e.log.Debug("auto-progression: nothing to do",
			zap.String("id", id), zap.String("status", rec.Status))
		return
	}

	comment := fmt.Sprintf("Automatically progressed to %s", next)
	if _, err := e.Transition(ctx, id, string(next), comment, SystemActor); err != nil {
		metrics.AutoProgressFirings.WithLabelValues("failed").Inc()
		e.log.Warn("auto-progression failed",
			zap.String("id", id), zap.String("to", string(next)), zap.Error(err))
		return
	}
	metrics.AutoProgressFirings.WithLabelValues("advanced").Inc()
}

func invalidTransitionError(from, to Status) *errors.Error {
	allowed := statusStrings(AllowedNext(from))
	if len(allowed) == 0 {
		return errors.InvalidTransitionf(
			"cannot transition from '%s' to '%s': '%s' is a terminal state", from, to, from)
	}
	return errors.InvalidTransitionf(
		"cannot transition from '%s' to '%s'. Valid transitions: %s",
		from, to, strings.Join(allowed, ", "))
}

func buildStatusView(rec *models.WorkflowRecord) *StatusView {
	history := make([]HistoryView, len(rec.History))
	for i, h := range rec.History {
		history[i] = HistoryView{
			Status:     h.Status,
			Timestamp:  h.Timestamp,
			Comment:    h.Comment,
			ReviewedBy: h.ReviewedBy,
		}
	}
	return &StatusView{
		ID:              rec.ID,
		CurrentStatus:   rec.Status,
		WorkflowHistory: history,
		CanTransition:   statusStrings(AllowedNext(Status(rec.Status))),
	}
}
