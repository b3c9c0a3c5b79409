package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type point struct {
	X int
	Y int
}

func TestDecodeIntoTypedDestinations(t *testing.T) {
	requireT := require.New(t)

	var s Msgpack
	data, err := s.Marshal([]any{"x", point{X: 1, Y: 2}, 3})
	requireT.NoError(err)

	var str string
	var p point
	requireT.NoError(s.UnmarshalInto(data, &str, &p))
	requireT.Equal("x", str)
	requireT.Equal(point{X: 1, Y: 2}, p)
}

func TestSkippedDestination(t *testing.T) {
	requireT := require.New(t)

	var s Msgpack
	data, err := s.Marshal([]any{"x", 7})
	requireT.NoError(err)

	var n int
	requireT.NoError(s.UnmarshalInto(data, nil, &n))
	requireT.Equal(7, n)
}

func TestTooManyDestinations(t *testing.T) {
	requireT := require.New(t)

	var s Msgpack
	data, err := s.Marshal([]any{"x"})
	requireT.NoError(err)

	var a, b string
	requireT.Error(s.UnmarshalInto(data, &a, &b))
}

func TestGenericDecoding(t *testing.T) {
	requireT := require.New(t)

	var s Msgpack
	data, err := s.Marshal([]any{"x", map[string]any{"n": 1}})
	requireT.NoError(err)

	args, err := s.Unmarshal(data)
	requireT.NoError(err)
	requireT.Len(args, 2)
	requireT.Equal("x", args[0])
	requireT.Contains(args[1], "n")

	args, err = s.Unmarshal(nil)
	requireT.NoError(err)
	requireT.Empty(args)
}
