package courier

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/outofforest/courier/connstate"
	"github.com/outofforest/courier/wire"
)

type listenerEntry struct {
	id      ListenerID
	channel string
	fn      Listener
	once    bool
}

// Client sends messages and requests through the transport and receives those
// arriving on channels it listens to. Many clients may share one transport.
type Client struct {
	transport *Transport
	id        uint64
	state     connstate.State

	// listeners are guarded by the transport's mutex.
	listeners []listenerEntry
}

// NewClient creates new client using the transport.
func NewClient(transport *Transport) *Client {
	return &Client{
		transport: transport,
		id:        transport.nextClientID.Add(1),
	}
}

// ID returns ID of the client, unique within its transport.
func (c *Client) ID() uint64 {
	return c.id
}

// Peer returns identity of the transport client is connected through.
func (c *Client) Peer() wire.Peer {
	return c.transport.Peer()
}

// Connect connects client. Transport is connected when the first of its clients connects.
func (c *Client) Connect(ctx context.Context) error {
	return c.state.Connect(ctx, func(ctx context.Context) error {
		return c.transport.attach(ctx, c)
	})
}

// Close disconnects client. Outstanding requests of the client are cancelled.
// Transport is disconnected when the last of its clients closes.
func (c *Client) Close(ctx context.Context) error {
	return c.state.Close(ctx, func(ctx context.Context) error {
		return c.transport.detach(ctx, c)
	})
}

// Send sends message to the channel.
func (c *Client) Send(channel string, args ...any) error {
	if err := c.ensureConnected(); err != nil {
		return err
	}
	return c.transport.send(channel, wire.PeerID{}, args)
}

// SendTo sends message to the channel of the single target peer.
func (c *Client) SendTo(target wire.PeerID, channel string, args ...any) error {
	if err := c.ensureConnected(); err != nil {
		return err
	}
	if target.IsZero() {
		return errors.New("target peer is not set")
	}
	return c.transport.send(channel, target, args)
}

// Request sends request to the channel and waits for the first response.
// Zero timeout means DefaultTimeout, negative timeout means waiting until context is canceled.
func (c *Client) Request(ctx context.Context, channel string, timeout time.Duration, args ...any) (Result, error) {
	if err := c.ensureConnected(); err != nil {
		return Result{}, err
	}
	return c.transport.request(ctx, c.id, channel, wire.PeerID{}, timeout, args)
}

// RequestTo sends request to the channel of the single target peer and waits for its response.
func (c *Client) RequestTo(
	ctx context.Context,
	target wire.PeerID,
	channel string,
	timeout time.Duration,
	args ...any,
) (Result, error) {
	if err := c.ensureConnected(); err != nil {
		return Result{}, err
	}
	if target.IsZero() {
		return Result{}, errors.New("target peer is not set")
	}
	return c.transport.request(ctx, c.id, channel, target, timeout, args)
}

// QueryState returns snapshot of subscriptions known to the broker.
func (c *Client) QueryState(ctx context.Context) ([]wire.ChannelState, error) {
	if err := c.ensureConnected(); err != nil {
		return nil, err
	}
	return c.transport.queryState(ctx, c.id)
}

// AddListener registers listener on the channel.
func (c *Client) AddListener(channel string, listener Listener) ListenerID {
	return c.addListener(channel, listener, false)
}

// Once registers listener removed after its first invocation.
func (c *Client) Once(channel string, listener Listener) ListenerID {
	return c.addListener(channel, listener, true)
}

// RemoveListener removes listener. It returns false if listener does not exist.
func (c *Client) RemoveListener(id ListenerID) bool {
	t := c.transport
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, l := range c.listeners {
		if l.id == id {
			c.removeListenerLocked(i)
			return true
		}
	}
	return false
}

// RemoveAllListeners removes listeners registered on the channel, or all listeners
// if channel is empty. It returns the number of removed listeners.
func (c *Client) RemoveAllListeners(channel string) int {
	t := c.transport
	t.mu.Lock()
	defer t.mu.Unlock()

	var removed int
	for i := len(c.listeners) - 1; i >= 0; i-- {
		if channel == "" || c.listeners[i].channel == channel {
			c.removeListenerLocked(i)
			removed++
		}
	}
	return removed
}

// ListenerCount returns the number of listeners registered on the channel.
func (c *Client) ListenerCount(channel string) int {
	t := c.transport
	t.mu.Lock()
	defer t.mu.Unlock()

	var count int
	for _, l := range c.listeners {
		if l.channel == channel {
			count++
		}
	}
	return count
}

func (c *Client) addListener(channel string, listener Listener, once bool) ListenerID {
	t := c.transport
	id := ListenerID(t.nextListener.Add(1))

	t.mu.Lock()
	defer t.mu.Unlock()

	c.listeners = append(c.listeners, listenerEntry{
		id:      id,
		channel: channel,
		fn:      listener,
		once:    once,
	})
	if c.attachedLocked() {
		t.subscriptions.AddRef(channel, c.id, c, 1)
	}
	return id
}

func (c *Client) removeListenerLocked(i int) {
	channel := c.listeners[i].channel
	c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
	if c.attachedLocked() {
		c.transport.subscriptions.Release(channel, c.id)
	}
}

// takeListeners returns listeners of the channel. Once listeners are removed.
// It must be called with the transport's mutex held.
func (c *Client) takeListeners(channel string) []listenerEntry {
	var result []listenerEntry
	for i := 0; i < len(c.listeners); {
		l := c.listeners[i]
		if l.channel != channel {
			i++
			continue
		}
		result = append(result, l)
		if l.once {
			c.removeListenerLocked(i)
			continue
		}
		i++
	}
	return result
}

func (c *Client) attachedLocked() bool {
	return c.transport.clients[c.id] == c
}

func (c *Client) ensureConnected() error {
	if c.state.Status() != connstate.Connected {
		return errors.WithStack(ErrNotConnected)
	}
	return nil
}
