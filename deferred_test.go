package courier

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/courier/codec"
	"github.com/outofforest/qa"
)

func TestDeferredRequestSettlesOnce(t *testing.T) {
	requireT := require.New(t)

	d := newDeferredRequest(1, "chan", 1)
	requireT.False(d.IsSettled())

	requireT.True(d.Resolve(Payload{values: []any{"first"}}))
	requireT.False(d.Resolve(Payload{values: []any{"second"}}))
	requireT.False(d.Reject(errors.New("late")))
	requireT.True(d.IsSettled())

	result, err := d.Result()
	requireT.NoError(err)
	requireT.Equal([]any{"first"}, result.values)
}

func TestDeferredRequestRejectWins(t *testing.T) {
	requireT := require.New(t)

	d := newDeferredRequest(1, "chan", 1)
	requireT.True(d.Reject(nil))
	requireT.False(d.Resolve(Payload{values: []any{"value"}}))

	_, err := d.Result()
	requireT.Error(err)
}

func TestDeferredRequestTimesOut(t *testing.T) {
	requireT := require.New(t)

	table := newRequestTable()
	d := newDeferredRequest(1, "chan", 1)
	table.Add(d)
	requireT.Equal(1, table.Len())

	d.armTimeout(10 * time.Millisecond)

	_, err := d.Wait(qa.NewContext(t))
	requireT.ErrorIs(err, ErrRequestTimeout)
	requireT.Nil(table.Get(1))
	requireT.Zero(table.Len())
}

func TestDeferredRequestResolvedBeforeTimeout(t *testing.T) {
	requireT := require.New(t)

	d := newDeferredRequest(1, "chan", 1)
	d.armTimeout(20 * time.Millisecond)
	requireT.True(d.Resolve(Payload{values: []any{"value"}, serializer: codec.Msgpack{}}))

	time.Sleep(50 * time.Millisecond)

	result, err := d.Result()
	requireT.NoError(err)
	var value string
	requireT.NoError(result.Decode(&value))
	requireT.Equal("value", value)
}

func TestDeferredRequestNegativeTimeoutNeverFires(t *testing.T) {
	requireT := require.New(t)

	d := newDeferredRequest(1, "chan", 1)
	d.armTimeout(-1)

	select {
	case <-d.Done():
		requireT.Fail("request settled")
	case <-time.After(30 * time.Millisecond):
	}
	requireT.False(d.IsSettled())
}

func TestDeferredRequestWaitHonorsContext(t *testing.T) {
	requireT := require.New(t)

	ctx, cancel := context.WithCancel(qa.NewContext(t))
	cancel()

	d := newDeferredRequest(1, "chan", 1)
	_, err := d.Wait(ctx)
	requireT.ErrorIs(err, context.Canceled)
	requireT.True(d.IsSettled())
}

func TestRequestTableOwned(t *testing.T) {
	requireT := require.New(t)

	table := newRequestTable()
	d1 := newDeferredRequest(1, "chan", 1)
	d2 := newDeferredRequest(2, "chan", 2)
	d3 := newDeferredRequest(3, "chan", 1)
	table.Add(d1)
	table.Add(d2)
	table.Add(d3)

	requireT.ElementsMatch([]*DeferredRequest{d1, d3}, table.Owned(1))
	requireT.Len(table.All(), 3)

	requireT.True(d1.Reject(ErrRequestCancelled))
	requireT.ElementsMatch([]*DeferredRequest{d3}, table.Owned(1))
	requireT.Equal(2, table.Len())
}

func TestResponderSettlesOnce(t *testing.T) {
	requireT := require.New(t)

	var resolved []any
	var rejected []error
	r := &Responder{
		id:      7,
		channel: "chan",
		resolve: func(value any) {
			resolved = append(resolved, value)
		},
		reject: func(err error) {
			rejected = append(rejected, err)
		},
	}

	requireT.True(r.Resolve(1))
	requireT.False(r.Resolve(2))
	requireT.False(r.Reject(errors.New("error")))
	requireT.True(r.IsSettled())
	requireT.Equal([]any{1}, resolved)
	requireT.Empty(rejected)
}
