// Package codec turns message arguments into bytes and back.
package codec

import (
	"bytes"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// Serializer encodes arguments of messages exchanged between processes.
type Serializer interface {
	// Marshal encodes list of arguments.
	Marshal(args []any) ([]byte, error)

	// Unmarshal decodes list of arguments into generic values.
	Unmarshal(data []byte) ([]any, error)

	// UnmarshalInto decodes arguments into the provided destinations, one destination per argument.
	// Arguments having no destination are skipped.
	UnmarshalInto(data []byte, dst ...any) error
}

var _ Serializer = Msgpack{}

// Msgpack is the serializer using msgpack encoding.
type Msgpack struct{}

// Marshal encodes list of arguments.
func (Msgpack) Marshal(args []any) ([]byte, error) {
	if args == nil {
		args = []any{}
	}
	data, err := msgpack.Marshal(args)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}

// Unmarshal decodes list of arguments into generic values.
func (Msgpack) Unmarshal(data []byte) ([]any, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var args []any
	if err := msgpack.Unmarshal(data, &args); err != nil {
		return nil, errors.WithStack(err)
	}
	return args, nil
}

// UnmarshalInto decodes arguments into the provided destinations.
func (Msgpack) UnmarshalInto(data []byte, dst ...any) error {
	if len(data) == 0 {
		if len(dst) > 0 {
			return errors.Errorf("%d arguments expected, none received", len(dst))
		}
		return nil
	}

	dec := msgpack.NewDecoder(bytes.NewReader(data))
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return errors.WithStack(err)
	}
	if n < len(dst) {
		return errors.Errorf("%d arguments expected, %d received", len(dst), n)
	}

	for _, d := range dst {
		if d == nil {
			if err := dec.Skip(); err != nil {
				return errors.WithStack(err)
			}
			continue
		}
		if err := dec.Decode(d); err != nil {
			return errors.WithStack(err)
		}
	}
	return nil
}
