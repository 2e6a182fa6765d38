package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAfterFires(t *testing.T) {
	s := New()
	defer s.Stop()

	var fired atomic.Bool
	task := s.After(10*time.Millisecond, FuncJob(func(ctx context.Context) {
		fired.Store(true)
	}))

	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task did not fire in time")
	}
	assert.True(t, fired.Load())
}

func TestAfterCancel(t *testing.T) {
	s := New()
	defer s.Stop()

	var fired atomic.Bool
	task := s.After(50*time.Millisecond, FuncJob(func(ctx context.Context) {
		fired.Store(true)
	}))
	task.Cancel()

	<-task.Done()
	time.Sleep(100 * time.Millisecond)
	assert.False(t, fired.Load(), "cancelled task must not fire")
}

func TestStopCancelsPendingTasks(t *testing.T) {
	s := New()

	var fired atomic.Bool
	task := s.After(50*time.Millisecond, FuncJob(func(ctx context.Context) {
		fired.Store(true)
	}))
	s.Stop()

	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task did not observe scheduler stop")
	}
	assert.False(t, fired.Load())
}

func TestEvery(t *testing.T) {
	s := New()
	defer s.Stop()

	var count atomic.Int32
	s.Every(10*time.Millisecond, FuncJob(func(ctx context.Context) {
		count.Add(1)
	}))

	require.Eventually(t, func() bool { return count.Load() >= 3 }, time.Second, 5*time.Millisecond)
}
