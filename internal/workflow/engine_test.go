package workflow

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"VoiceFlow/internal/models"
	"VoiceFlow/internal/transcription"
	"VoiceFlow/pkg/errors"
	"VoiceFlow/pkg/scheduler"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.WorkflowRecord{}, &models.WorkflowHistoryEntry{}))
	return db
}

// newTestEngine builds an engine without a scheduler; auto-progression tests
// construct their own.
func newTestEngine(t *testing.T) (*Engine, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	e := NewEngine(db, nil, transcription.NewMockProducer(0), nil, Config{})
	return e, db
}

func TestCreateWorkflow(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()

	view, err := e.Create(ctx, "https://example.com/a.mp3", "")
	require.NoError(t, err)

	assert.NotEmpty(t, view.ID)
	assert.Equal(t, "transcription", view.CurrentStatus)
	assert.Equal(t, []string{"review", "rejected"}, view.CanTransition)
	require.Len(t, view.WorkflowHistory, 1)
	assert.Equal(t, "transcription", view.WorkflowHistory[0].Status)
	assert.NotEmpty(t, view.WorkflowHistory[0].Comment)

	var rec models.WorkflowRecord
	require.NoError(t, db.First(&rec, "id = ?", view.ID).Error)
	assert.Equal(t, "en-US", rec.Language)
	assert.NotEmpty(t, rec.TranscriptionText)
}

func TestCreateWorkflowValidation(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()

	t.Run("bad url", func(t *testing.T) {
		_, err := e.Create(ctx, "not-a-url", "")
		require.Error(t, err)
		assert.Equal(t, errors.CodeValidation, errors.GetCode(err))
	})

	t.Run("bad language", func(t *testing.T) {
		_, err := e.Create(ctx, "https://example.com/a.mp3", "xx")
		require.Error(t, err)
		assert.Equal(t, errors.CodeValidation, errors.GetCode(err))
	})

	// 校验失败时不落库
	var count int64
	require.NoError(t, db.Model(&models.WorkflowRecord{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestCreateWorkflowProducerFailure(t *testing.T) {
	db := newTestDB(t)
	e := NewEngine(db, nil, transcription.NewMockProducer(1.0), nil, Config{})

	_, err := e.Create(context.Background(), "https://example.com/a.mp3", "")
	require.Error(t, err)
	assert.Equal(t, errors.CodeProducer, errors.GetCode(err))

	var count int64
	require.NoError(t, db.Model(&models.WorkflowRecord{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestTransition(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	created, err := e.Create(ctx, "https://example.com/a.mp3", "en-US")
	require.NoError(t, err)

	view, err := e.Transition(ctx, created.ID, "review", "looks fine", "alice")
	require.NoError(t, err)
	assert.Equal(t, "review", view.CurrentStatus)
	require.Len(t, view.WorkflowHistory, 2)
	assert.Equal(t, "review", view.WorkflowHistory[1].Status)
	assert.Equal(t, "looks fine", view.WorkflowHistory[1].Comment)
	assert.Equal(t, "alice", view.WorkflowHistory[1].ReviewedBy)
	assert.ElementsMatch(t, []string{"approval", "rejected", "transcription"}, view.CanTransition)
}

func TestTransitionInvalid(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	created, err := e.Create(ctx, "https://example.com/a.mp3", "en-US")
	require.NoError(t, err)

	t.Run("not in allowed set", func(t *testing.T) {
		_, err := e.Transition(ctx, created.ID, "completed", "", "")
		require.Error(t, err)
		assert.Equal(t, errors.CodeInvalidTransition, errors.GetCode(err))
		assert.Contains(t, err.Error(), "review")
		assert.Contains(t, err.Error(), "rejected")
	})

	t.Run("same status", func(t *testing.T) {
		_, err := e.Transition(ctx, created.ID, "transcription", "", "")
		require.Error(t, err)
		assert.Equal(t, errors.CodeInvalidTransition, errors.GetCode(err))
	})

	t.Run("unknown status", func(t *testing.T) {
		_, err := e.Transition(ctx, created.ID, "archived", "", "")
		require.Error(t, err)
		assert.Equal(t, errors.CodeValidation, errors.GetCode(err))
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := e.Transition(ctx, "no-such-id", "review", "", "")
		require.Error(t, err)
		assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
	})

	// 失败的流转不得改变记录
	view, err := e.GetStatus(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "transcription", view.CurrentStatus)
	assert.Len(t, view.WorkflowHistory, 1)
}

func TestCompletedIsAbsorbing(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	created, err := e.Create(ctx, "https://example.com/a.mp3", "en-US")
	require.NoError(t, err)

	for _, next := range []string{"review", "approval", "completed"} {
		_, err = e.Transition(ctx, created.ID, next, "", "")
		require.NoError(t, err)
	}

	for _, target := range []string{"transcription", "review", "approval", "rejected", "completed"} {
		_, err := e.Transition(ctx, created.ID, target, "", "")
		require.Error(t, err, "completed -> %s must fail", target)
		assert.Equal(t, errors.CodeInvalidTransition, errors.GetCode(err))
	}

	view, err := e.GetStatus(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", view.CurrentStatus)
	assert.Empty(t, view.CanTransition)
	assert.Len(t, view.WorkflowHistory, 4)
}

func TestRejectedCanReopen(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	created, err := e.Create(ctx, "https://example.com/a.mp3", "en-US")
	require.NoError(t, err)

	_, err = e.Transition(ctx, created.ID, "rejected", "bad audio", "bob")
	require.NoError(t, err)

	view, err := e.Transition(ctx, created.ID, "transcription", "retrying", "bob")
	require.NoError(t, err)
	assert.Equal(t, "transcription", view.CurrentStatus)
	assert.Len(t, view.WorkflowHistory, 3)
}

func TestHistoryGrowsByOnePerTransition(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	created, err := e.Create(ctx, "https://example.com/a.mp3", "en-US")
	require.NoError(t, err)

	steps := []string{"review", "rejected", "transcription", "review", "approval", "completed"}
	for i, next := range steps {
		view, err := e.Transition(ctx, created.ID, next, "", "")
		require.NoError(t, err)
		assert.Len(t, view.WorkflowHistory, i+2)
		assert.Equal(t, next, view.WorkflowHistory[len(view.WorkflowHistory)-1].Status)
		assert.Equal(t, next, view.CurrentStatus)
	}
}

func TestConcurrentTransitionsOnlyOneWins(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	created, err := e.Create(ctx, "https://example.com/a.mp3", "en-US")
	require.NoError(t, err)

	// 两个并发流转都以 transcription → review 为目标：无论交错顺序如何，
	// 条件更新保证只有一个生效，另一个拿到 InvalidTransition
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.Transition(ctx, created.ID, "review", "", "")
		}(i)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			assert.Equal(t, errors.CodeInvalidTransition, errors.GetCode(err))
		}
	}
	assert.Equal(t, 1, failures, "exactly one of the two racing transitions must lose")

	view, err := e.GetStatus(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "review", view.CurrentStatus)
	assert.Len(t, view.WorkflowHistory, 2)
}

func TestList(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		view, err := e.Create(ctx, fmt.Sprintf("https://example.com/%d.mp3", i), "en-US")
		require.NoError(t, err)
		ids = append(ids, view.ID)
		time.Sleep(5 * time.Millisecond) // 保证 updated_at 有序
	}
	_, err := e.Transition(ctx, ids[0], "review", "", "")
	require.NoError(t, err)

	t.Run("most recently updated first", func(t *testing.T) {
		list, err := e.List(ctx, "", 1, 10)
		require.NoError(t, err)
		assert.EqualValues(t, 3, list.Total)
		require.Len(t, list.Workflows, 3)
		assert.Equal(t, ids[0], list.Workflows[0].ID)
	})

	t.Run("status filter", func(t *testing.T) {
		list, err := e.List(ctx, "review", 1, 10)
		require.NoError(t, err)
		assert.EqualValues(t, 1, list.Total)
		require.Len(t, list.Workflows, 1)
		assert.Equal(t, ids[0], list.Workflows[0].ID)
	})

	t.Run("pagination window", func(t *testing.T) {
		list, err := e.List(ctx, "", 2, 2)
		require.NoError(t, err)
		assert.EqualValues(t, 3, list.Total)
		assert.Len(t, list.Workflows, 1)
	})

	t.Run("bad pagination", func(t *testing.T) {
		_, err := e.List(ctx, "", 0, 10)
		assert.Equal(t, errors.CodeValidation, errors.GetCode(err))
		_, err = e.List(ctx, "", 1, 0)
		assert.Equal(t, errors.CodeValidation, errors.GetCode(err))
		_, err = e.List(ctx, "", 1, 101)
		assert.Equal(t, errors.CodeValidation, errors.GetCode(err))
	})

	t.Run("bad status filter", func(t *testing.T) {
		_, err := e.List(ctx, "pending", 1, 10)
		assert.Equal(t, errors.CodeValidation, errors.GetCode(err))
	})
}

func TestStats(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	first, err := e.Create(ctx, "https://example.com/1.mp3", "en-US")
	require.NoError(t, err)
	_, err = e.Create(ctx, "https://example.com/2.mp3", "en-US")
	require.NoError(t, err)
	_, err = e.Transition(ctx, first.ID, "review", "", "")
	require.NoError(t, err)

	stats, err := e.Stats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Total)
	assert.EqualValues(t, 1, stats.Statistics["transcription"])
	assert.EqualValues(t, 1, stats.Statistics["review"])
	assert.EqualValues(t, 0, stats.Statistics["approval"])
	assert.EqualValues(t, 0, stats.Statistics["completed"])
	assert.EqualValues(t, 0, stats.Statistics["rejected"])
}

func TestAutoProgression(t *testing.T) {
	db := newTestDB(t)
	sched := scheduler.New()
	t.Cleanup(sched.Stop)

	e := NewEngine(db, sched, transcription.NewMockProducer(0), nil, Config{
		CreateDelay:   20 * time.Millisecond,
		ReviewDelay:   20 * time.Millisecond,
		ApprovalDelay: 20 * time.Millisecond,
	})
	ctx := context.Background()

	created, err := e.Create(ctx, "https://example.com/a.mp3", "en-US")
	require.NoError(t, err)
	assert.Equal(t, "transcription", created.CurrentStatus)

	// transcription → review → approval → completed 全程由定时器驱动
	require.Eventually(t, func() bool {
		view, err := e.GetStatus(ctx, created.ID)
		return err == nil && view.CurrentStatus == "completed"
	}, 2*time.Second, 10*time.Millisecond)

	view, err := e.GetStatus(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, view.WorkflowHistory, 4)
	for _, entry := range view.WorkflowHistory[1:] {
		assert.Equal(t, SystemActor, entry.ReviewedBy)
	}
}

func TestAutoProgressionNoOpsAfterManualTransition(t *testing.T) {
	db := newTestDB(t)
	sched := scheduler.New()
	t.Cleanup(sched.Stop)

	e := NewEngine(db, sched, transcription.NewMockProducer(0), nil, Config{
		CreateDelay: 50 * time.Millisecond,
	})
	ctx := context.Background()

	created, err := e.Create(ctx, "https://example.com/a.mp3", "en-US")
	require.NoError(t, err)

	// 定时器触发前手动拒绝
	_, err = e.Transition(ctx, created.ID, "rejected", "bad audio", "bob")
	require.NoError(t, err)

	time.Sleep(150 * time.Millisecond)

	view, err := e.GetStatus(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "rejected", view.CurrentStatus)
	assert.Len(t, view.WorkflowHistory, 2)
}
