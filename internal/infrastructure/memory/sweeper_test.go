package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweeper_RunEvictsAndStops(t *testing.T) {
	s := NewStore(2, time.Minute)
	require.NoError(t, s.Put(context.Background(), reg("a@x.com", "123456", t0)))

	swept := make(chan int, 16)
	sw := NewSweeper(s, 5*time.Millisecond, func(n int) { swept <- n })
	sw.now = func() time.Time { return t0.Add(time.Hour) }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sw.Run(ctx) }()

	select {
	case n := <-swept:
		assert.Equal(t, 1, n)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper never ran")
	}
	assert.Equal(t, 0, s.Len())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestSweeper_DisabledBlocksUntilCancel(t *testing.T) {
	sw := NewSweeper(NewStore(1, time.Minute), 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, sw.Run(ctx))
}
