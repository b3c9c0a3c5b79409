package courier

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/qa"
)

func TestFIFOKeepsOrderAndLimit(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	q := newFIFO[int](2)
	requireT.NoError(q.Push(1))
	requireT.NoError(q.Push(2))
	requireT.ErrorIs(q.Push(3), errQueueFull)

	v, ok := q.Pop(ctx)
	requireT.True(ok)
	requireT.Equal(1, v)
	requireT.NoError(q.Push(3))

	for _, expected := range []int{2, 3} {
		v, ok := q.Pop(ctx)
		requireT.True(ok)
		requireT.Equal(expected, v)
	}
}

func TestFIFOCloseDrains(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	q := newFIFO[int](0)
	requireT.NoError(q.Push(1))
	q.Close()
	requireT.ErrorIs(q.Push(2), errQueueClosed)

	v, ok := q.Pop(ctx)
	requireT.True(ok)
	requireT.Equal(1, v)

	_, ok = q.Pop(ctx)
	requireT.False(ok)
}

func TestFIFODiscardWakesConsumer(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	q := newFIFO[int](0)
	popped := make(chan bool, 1)
	go func() {
		_, ok := q.Pop(ctx)
		popped <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	q.Discard()

	select {
	case ok := <-popped:
		requireT.False(ok)
	case <-time.After(time.Second):
		requireT.FailNow("consumer not woken")
	}

	requireT.ErrorIs(q.Push(1), errQueueClosed)
}

func TestFIFOPopReturnsOnCanceledContext(t *testing.T) {
	requireT := require.New(t)

	ctx, cancel := context.WithCancel(qa.NewContext(t))
	cancel()

	_, ok := newFIFO[int](0).Pop(ctx)
	requireT.False(ok)
}
