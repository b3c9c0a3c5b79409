package courier

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestConnectErrorKeepsCause(t *testing.T) {
	requireT := require.New(t)

	err := connectError(errors.WithStack(context.DeadlineExceeded), "handshake interrupted")
	requireT.ErrorIs(err, ErrConnect)
	requireT.ErrorIs(err, context.DeadlineExceeded)
	requireT.Contains(err.Error(), "handshake interrupted")

	err = connectError(nil, "handshake timed out after %s", "1s")
	requireT.ErrorIs(err, ErrConnect)
	requireT.Contains(err.Error(), "1s")
}
