package courier

import (
	"context"
	"net"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/outofforest/courier/wire"
	"github.com/outofforest/parallel"
	"github.com/outofforest/resonance"
)

// Packet is the wire message together with its payload.
type Packet struct {
	// Message is one of the message types defined in wire package.
	Message any

	// Payload is the serialized arguments, set for SendMessage and RequestResponse.
	Payload []byte

	// Args are the arguments as passed by the sender. They are set only when packet does not leave the process.
	Args []any
}

type wireConn interface {
	Send(p Packet) error
	Receive() (Packet, error)
	Close()
}

type socketConn struct {
	c         *resonance.Connection
	m         wire.Marshaller
	closeOnce sync.Once
}

func newSocketConn(c *resonance.Connection) *socketConn {
	return &socketConn{
		c: c,
		m: wire.NewMarshaller(),
	}
}

func (c *socketConn) Send(p Packet) error {
	return c.c.SendProton(wire.WithPayload(p.Message, p.Payload), c.m)
}

func (c *socketConn) Receive() (Packet, error) {
	msg, err := c.c.ReceiveProton(c.m)
	if err != nil {
		return Packet{}, err
	}
	msg, payload := wire.SplitPayload(msg)
	return Packet{Message: msg, Payload: payload}, nil
}

func (c *socketConn) Close() {
	c.closeOnce.Do(func() {
		c.c.Close()
	})
}

type webSocketConn struct {
	c         *websocket.Conn
	m         wire.Marshaller
	closeOnce sync.Once
}

func newWebSocketConn(c *websocket.Conn, maxMessageSize uint64) *webSocketConn {
	if maxMessageSize > 0 {
		c.SetReadLimit(int64(maxMessageSize))
	}
	return &webSocketConn{
		c: c,
		m: wire.NewMarshaller(),
	}
}

func (c *webSocketConn) Send(p Packet) error {
	frame, err := wire.EncodeFrame(c.m, wire.WithPayload(p.Message, p.Payload))
	if err != nil {
		return err
	}
	return errors.WithStack(c.c.WriteMessage(websocket.BinaryMessage, frame))
}

func (c *webSocketConn) Receive() (Packet, error) {
	msgType, frame, err := c.c.ReadMessage()
	if err != nil {
		return Packet{}, errors.WithStack(err)
	}
	if msgType != websocket.BinaryMessage {
		return Packet{}, errors.Wrapf(ErrProtocolViolation, "binary frame expected, got type %d", msgType)
	}
	msg, err := wire.DecodeFrame(c.m, frame)
	if err != nil {
		return Packet{}, err
	}
	msg, payload := wire.SplitPayload(msg)
	return Packet{Message: msg, Payload: payload}, nil
}

func (c *webSocketConn) Close() {
	c.closeOnce.Do(func() {
		_ = c.c.Close()
	})
}

// runConn pumps packets between connection and the routing logic until connection breaks
// or context is canceled. onExit must close the outbound queue.
func runConn(
	ctx context.Context,
	c wireConn,
	outbound *fifo[Packet],
	onPacket func(p Packet) error,
	onExit func(),
) error {
	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("receiver", parallel.Fail, func(ctx context.Context) error {
			defer onExit()

			for {
				p, err := c.Receive()
				if err != nil {
					return err
				}
				if err := onPacket(p); err != nil {
					return err
				}
			}
		})
		spawn("sender", parallel.Fail, func(ctx context.Context) error {
			defer c.Close()

			for {
				p, ok := outbound.Pop(ctx)
				if !ok {
					return errors.WithStack(ctx.Err())
				}
				if err := c.Send(p); err != nil {
					return err
				}
			}
		})
		spawn("closer", parallel.Fail, func(ctx context.Context) error {
			<-ctx.Done()
			c.Close()
			return errors.WithStack(ctx.Err())
		})

		return nil
	})
}

// runStreamConn runs resonance connection over already established stream, the way
// resonance runs TCP connections it accepts or dials itself.
func runStreamConn(
	ctx context.Context,
	conn net.Conn,
	config resonance.Config,
	handler func(ctx context.Context, c *resonance.Connection) error,
) error {
	c := resonance.NewConnection(conn, config)
	return parallel.Run(ctx, func(ctx context.Context, spawn parallel.SpawnFn) error {
		spawn("connection", parallel.Fail, c.Run)
		spawn("handler", parallel.Exit, func(ctx context.Context) error {
			return handler(ctx, c)
		})
		return nil
	})
}
