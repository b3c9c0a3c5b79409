package courier

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

var (
	// ErrNotConnected is returned when message is posted through transport which is not connected.
	ErrNotConnected = errors.New("not connected")

	// ErrConnect is returned when connection can't be established.
	ErrConnect = errors.New("connect failed")

	// ErrRequestTimeout is returned when response does not arrive on time.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrRequestCancelled is returned for requests pending when their client disconnects.
	ErrRequestCancelled = errors.New("request cancelled")

	// ErrProtocolViolation is returned when peer sends unexpected message.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrShutdown is returned when connector is already shut down.
	ErrShutdown = errors.New("connector is shut down")
)

// RemoteError is the rejection reported by the peer which handled the request.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

func connectError(err error, format string, args ...any) error {
	if err == nil {
		return errors.Wrapf(ErrConnect, format, args...)
	}
	return multierr.Combine(ErrConnect, errors.Wrapf(err, format, args...))
}
