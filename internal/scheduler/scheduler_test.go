package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddRejectsBadSpec(t *testing.T) {
	s := New(nil)
	err := s.Add("every now and then", "refresh", time.Second, func(context.Context) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refresh")
}

func TestScheduledTaskRuns(t *testing.T) {
	s := New(nil)
	var n atomic.Int32
	require.NoError(t, s.Add("@every 1s", "tick", time.Second, func(context.Context) error {
		n.Add(1)
		return errors.New("ignored")
	}))
	s.Start()
	defer s.Stop(context.Background())

	assert.Eventually(t, func() bool { return n.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
}

func TestRunNowSurvivesPanicAndHonoursTimeout(t *testing.T) {
	s := New(nil)
	s.RunNow("boom", 0, func(context.Context) error { panic("boom") })

	got := make(chan error, 1)
	s.RunNow("slow", 20*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		got <- ctx.Err()
		return ctx.Err()
	})
	select {
	case err := <-got:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(2 * time.Second):
		t.Fatal("task context never expired")
	}
}
