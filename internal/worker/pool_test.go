package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPoolRunsTasksAndSurvivesPanics(t *testing.T) {
	p := NewPool(2, 8, zap.NewNop())
	var done int32

	require.NoError(t, p.Submit("boom", func(context.Context) { panic("bad payload") }))
	for i := 0; i < 5; i++ {
		require.NoError(t, p.Submit("count", func(context.Context) { atomic.AddInt32(&done, 1) }))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Shutdown(ctx))
	assert.Equal(t, int32(5), atomic.LoadInt32(&done))

	assert.ErrorIs(t, p.Submit("late", func(context.Context) {}), ErrStopped)
}

func TestPoolQueueFull(t *testing.T) {
	p := NewPool(1, 1, zap.NewNop())
	release := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, p.Submit("block", func(context.Context) {
		close(started)
		<-release
	}))
	<-started
	require.NoError(t, p.Submit("queued", func(context.Context) {}))
	assert.ErrorIs(t, p.Submit("overflow", func(context.Context) {}), ErrQueueFull)

	close(release)
	require.NoError(t, p.Shutdown(context.Background()))
}

func TestPoolShutdownDeadline(t *testing.T) {
	p := NewPool(1, 1, zap.NewNop())
	release := make(chan struct{})
	defer close(release)
	require.NoError(t, p.Submit("slow", func(context.Context) { <-release }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Shutdown(ctx), context.DeadlineExceeded)
}
