package tasksup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanicStringRun(t *testing.T) {
	s := New(context.Background())
	s.Spawn("test", func(ctx context.Context) error {
		panic("foo hello")
	})
	err := s.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task test")
	assert.Contains(t, err.Error(), "panic: foo hello")
}

func TestPanicWithUnknownPayloadTypeRun(t *testing.T) {
	s := New(context.Background())
	s.Spawn("test", func(ctx context.Context) error {
		panic(struct{ code int }{code: 42})
	})
	err := s.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task test")
	assert.Contains(t, err.Error(), "panic: <unknown>")
}

func TestErrorPropagatesWithName(t *testing.T) {
	s := New(context.Background())
	s.Spawn("worker", func(ctx context.Context) error {
		return errors.New("boom")
	})
	err := s.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task worker")
	assert.Contains(t, err.Error(), "boom")
}

func TestEarlyReturnIsFailure(t *testing.T) {
	s := New(context.Background())
	s.Spawn("quick", func(ctx context.Context) error {
		return nil
	})
	err := s.Run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "returned early")
}

func TestNoTasksBlocksUntilCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := New(ctx)

	done := make(chan error, 1)
	go func() { done <- s.Run() }()

	select {
	case <-done:
		t.Fatal("Run returned before any cancellation")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not unblock after cancel")
	}
}

func TestShutdownDrainsAllTasks(t *testing.T) {
	s := New(context.Background())
	started := make(chan struct{}, 3)
	for i := 0; i < 3; i++ {
		s.Spawn("long", func(ctx context.Context) error {
			started <- struct{}{}
			<-ctx.Done()
			return ctx.Err()
		})
	}
	for i := 0; i < 3; i++ {
		<-started
	}

	err := s.Shutdown(context.Background())
	assert.Error(t, err)
}
