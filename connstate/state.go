// Package connstate serializes connect and close operations of a connectable object.
package connstate

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// Status is the status of connectable object.
type Status int

// Statuses.
const (
	Idle Status = iota
	Connecting
	Connected
	Closing
)

func (s Status) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	default:
		return "idle"
	}
}

type operation struct {
	done chan struct{}
	err  error
}

func newOperation() *operation {
	return &operation{done: make(chan struct{})}
}

// wait returns result of the operation. Finished operation wins over canceled context.
func (op *operation) wait(ctx context.Context) error {
	select {
	case <-op.done:
		return op.err
	case <-ctx.Done():
		select {
		case <-op.done:
			return op.err
		default:
			return errors.WithStack(ctx.Err())
		}
	}
}

func (op *operation) finish(err error) {
	op.err = err
	close(op.done)
}

// State guards connect and close calls so they never interleave.
// Zero value is ready to use and starts idle.
type State struct {
	mu      sync.Mutex
	status  Status
	connect *operation
	close   *operation
}

// Status returns current status.
func (s *State) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.status
}

// Connect runs fn unless the object is already connected or connecting, in which case
// the result of the in-flight operation is returned. If close is in progress, a fresh
// connect starts after it finishes. Failed connect leaves the object idle.
func (s *State) Connect(ctx context.Context, fn func(ctx context.Context) error) error {
	for {
		s.mu.Lock()
		switch s.status {
		case Connecting, Connected:
			op := s.connect
			s.mu.Unlock()
			return op.wait(ctx)
		case Closing:
			op := s.close
			s.mu.Unlock()
			if err := op.wait(ctx); err != nil && ctx.Err() != nil {
				return err
			}
			continue
		}

		op := newOperation()
		s.status = Connecting
		s.connect = op
		s.mu.Unlock()

		err := fn(ctx)

		s.mu.Lock()
		if err != nil {
			s.status = Idle
			s.connect = nil
		} else {
			s.status = Connected
		}
		s.mu.Unlock()

		op.finish(err)
		return err
	}
}

// Close runs fn if the object is connected. When connect is in flight, close waits for it
// first. The object always ends idle, the error returned by fn is passed to the caller.
func (s *State) Close(ctx context.Context, fn func(ctx context.Context) error) error {
	for {
		s.mu.Lock()
		switch s.status {
		case Idle:
			s.mu.Unlock()
			return nil
		case Closing:
			op := s.close
			s.mu.Unlock()
			return op.wait(ctx)
		case Connecting:
			op := s.connect
			s.mu.Unlock()
			if err := op.wait(ctx); err != nil && ctx.Err() != nil {
				return err
			}
			continue
		}

		op := newOperation()
		s.status = Closing
		s.close = op
		s.mu.Unlock()

		err := fn(ctx)

		s.mu.Lock()
		s.status = Idle
		s.connect = nil
		s.close = nil
		s.mu.Unlock()

		op.finish(err)
		return err
	}
}

// Reset forces the object into idle state without running any close logic.
// It is used when the underlying resource is lost unexpectedly.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status == Connected {
		s.status = Idle
		s.connect = nil
	}
}
