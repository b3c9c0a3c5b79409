package courier

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/outofforest/courier/wire"
)

// DeferredRequest is one outstanding request waiting for its settlement.
// It is settled exactly once: the first Resolve or Reject wins, the rest are ignored.
type DeferredRequest struct {
	id      wire.RequestID
	channel string
	owner   uint64

	mu        sync.Mutex
	settled   bool
	timer     *time.Timer
	onSettled func()
	done      chan struct{}
	result    Payload
	err       error
}

func newDeferredRequest(id wire.RequestID, channel string, owner uint64) *DeferredRequest {
	return &DeferredRequest{
		id:      id,
		channel: channel,
		owner:   owner,
		done:    make(chan struct{}),
	}
}

// ID returns ID of the request.
func (d *DeferredRequest) ID() wire.RequestID {
	return d.id
}

// Channel returns the channel request was sent on.
func (d *DeferredRequest) Channel() string {
	return d.channel
}

// IsSettled returns true if request has been resolved or rejected.
func (d *DeferredRequest) IsSettled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.settled
}

// Resolve settles request with result. It returns false if request was already settled.
func (d *DeferredRequest) Resolve(result Payload) bool {
	return d.settle(result, nil)
}

// Reject settles request with error. It returns false if request was already settled.
func (d *DeferredRequest) Reject(err error) bool {
	if err == nil {
		err = errors.New("request rejected")
	}
	return d.settle(Payload{}, err)
}

// Done returns channel closed when request is settled.
func (d *DeferredRequest) Done() <-chan struct{} {
	return d.done
}

// Result returns the outcome of settled request.
func (d *DeferredRequest) Result() (Payload, error) {
	<-d.done
	return d.result, d.err
}

// Wait waits until request is settled or context is canceled. Canceled request is rejected.
func (d *DeferredRequest) Wait(ctx context.Context) (Payload, error) {
	select {
	case <-d.done:
	case <-ctx.Done():
		d.Reject(errors.WithStack(ctx.Err()))
	}
	return d.Result()
}

// armTimeout rejects request with ErrRequestTimeout if it is not settled before delay elapses.
// Negative delay means request never times out.
func (d *DeferredRequest) armTimeout(delay time.Duration) {
	if delay < 0 {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.settled || d.timer != nil {
		return
	}
	d.timer = time.AfterFunc(delay, func() {
		d.Reject(errors.Wrapf(ErrRequestTimeout, "request %d on channel %q", d.id, d.channel))
	})
}

func (d *DeferredRequest) settle(result Payload, err error) bool {
	d.mu.Lock()
	if d.settled {
		d.mu.Unlock()
		return false
	}
	d.settled = true
	d.result = result
	d.err = err
	if d.timer != nil {
		d.timer.Stop()
	}
	onSettled := d.onSettled
	d.mu.Unlock()

	if onSettled != nil {
		onSettled()
	}
	close(d.done)
	return true
}

// requestTable holds outstanding requests by ID. Settled requests remove themselves,
// so responses arriving late find nothing and are dropped.
type requestTable struct {
	mu       sync.Mutex
	requests map[wire.RequestID]*DeferredRequest
}

func newRequestTable() *requestTable {
	return &requestTable{
		requests: map[wire.RequestID]*DeferredRequest{},
	}
}

func (t *requestTable) Add(d *DeferredRequest) {
	t.mu.Lock()
	t.requests[d.id] = d
	t.mu.Unlock()

	d.mu.Lock()
	d.onSettled = func() {
		t.remove(d)
	}
	d.mu.Unlock()
}

func (t *requestTable) Get(id wire.RequestID) *DeferredRequest {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.requests[id]
}

// Owned returns requests created by the owner.
func (t *requestTable) Owned(owner uint64) []*DeferredRequest {
	t.mu.Lock()
	defer t.mu.Unlock()

	var result []*DeferredRequest
	for _, d := range t.requests {
		if d.owner == owner {
			result = append(result, d)
		}
	}
	return result
}

// All returns all outstanding requests.
func (t *requestTable) All() []*DeferredRequest {
	t.mu.Lock()
	defer t.mu.Unlock()

	result := make([]*DeferredRequest, 0, len(t.requests))
	for _, d := range t.requests {
		result = append(result, d)
	}
	return result
}

func (t *requestTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.requests)
}

func (t *requestTable) remove(d *DeferredRequest) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.requests[d.id] == d {
		delete(t.requests, d.id)
	}
}
