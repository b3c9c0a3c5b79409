package courier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/outofforest/courier/wire"
	"github.com/outofforest/qa"
)

type packetRecorder struct {
	packets          chan Packet
	disconnected     chan struct{}
	disconnectedOnce sync.Once
}

func newPacketRecorder() *packetRecorder {
	return &packetRecorder{
		packets:      make(chan Packet, 100),
		disconnected: make(chan struct{}),
	}
}

func (r *packetRecorder) DeliverPacket(p Packet) error {
	r.packets <- p
	return nil
}

func (r *packetRecorder) Disconnected() {
	r.disconnectedOnce.Do(func() {
		close(r.disconnected)
	})
}

func (r *packetRecorder) Next(t *testing.T) Packet {
	select {
	case p := <-r.packets:
		return p
	case <-time.After(time.Second):
		require.FailNow(t, "packet not received")
		return Packet{}
	}
}

func (r *packetRecorder) RequireNone(t *testing.T) {
	select {
	case p := <-r.packets:
		require.FailNow(t, "unexpected packet", "%s", messageKind(p.Message))
	case <-time.After(50 * time.Millisecond):
	}
}

type testPeer struct {
	peer     wire.Peer
	session  *Session
	recorder *packetRecorder
}

func newTestBroker(ctx context.Context, t *testing.T) *Broker {
	requireT := require.New(t)

	b, err := NewBroker(BrokerConfig{})
	requireT.NoError(err)
	requireT.NoError(b.Connect(ctx))
	t.Cleanup(func() {
		requireT.NoError(b.Close(context.WithoutCancel(ctx)))
	})
	return b
}

func addTestPeer(t *testing.T, b *Broker, name string, bridge bool) testPeer {
	requireT := require.New(t)

	peer, err := NewPeer(PeerOptions{Role: wire.RoleWorker, Name: name})
	requireT.NoError(err)

	recorder := newPacketRecorder()
	var session *Session
	if bridge {
		session, err = b.AddBridge(peer, recorder)
	} else {
		session, err = b.AddClient(peer, recorder)
	}
	requireT.NoError(err)

	return testPeer{
		peer:     peer,
		session:  session,
		recorder: recorder,
	}
}

func (p testPeer) Subscribe(t *testing.T, channel string) {
	require.NoError(t, p.session.Post(Packet{Message: &wire.AddChannelListener{Channel: channel, Peer: p.peer}}))
}

func (p testPeer) Send(t *testing.T, channel string, target wire.PeerID, payload string) {
	require.NoError(t, p.session.Post(Packet{
		Message: &wire.SendMessage{
			Channel: channel,
			Peer:    p.peer,
			Target:  target,
		},
		Payload: []byte(payload),
	}))
}

func TestBrokerSuppressesEcho(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	b := newTestBroker(ctx, t)
	peerA := addTestPeer(t, b, "a", false)
	peerB := addTestPeer(t, b, "b", false)

	peerA.Subscribe(t, "chan1")
	peerB.Subscribe(t, "chan1")
	peerA.Send(t, "chan1", wire.PeerID{}, "x")

	p := peerB.recorder.Next(t)
	msg, ok := p.Message.(*wire.SendMessage)
	requireT.True(ok)
	requireT.Equal("chan1", msg.Channel)
	requireT.Equal(peerA.peer, msg.Peer)
	requireT.Equal([]byte("x"), p.Payload)

	peerA.recorder.RequireNone(t)
}

func TestBrokerRoutesBySubscription(t *testing.T) {
	ctx := qa.NewContext(t)

	b := newTestBroker(ctx, t)
	peerA := addTestPeer(t, b, "a", false)
	peerB := addTestPeer(t, b, "b", false)
	peerC := addTestPeer(t, b, "c", false)

	peerA.Subscribe(t, "chan1")
	peerB.Send(t, "chan1", wire.PeerID{}, "x")
	peerB.Send(t, "chan2", wire.PeerID{}, "y")

	p := peerA.recorder.Next(t)
	require.Equal(t, []byte("x"), p.Payload)
	peerA.recorder.RequireNone(t)
	peerB.recorder.RequireNone(t)
	peerC.recorder.RequireNone(t)
}

func TestBrokerAddressedMessageBypassesSubscriptions(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	b := newTestBroker(ctx, t)
	peerA := addTestPeer(t, b, "a", false)
	peerB := addTestPeer(t, b, "b", false)
	peerC := addTestPeer(t, b, "c", false)

	peerB.Subscribe(t, "chan1")
	peerA.Send(t, "chan1", peerC.peer.ID, "x")

	p := peerC.recorder.Next(t)
	requireT.Equal([]byte("x"), p.Payload)
	peerB.recorder.RequireNone(t)
}

func TestBrokerDropsMessageToUnknownPeer(t *testing.T) {
	ctx := qa.NewContext(t)

	b := newTestBroker(ctx, t)
	peerA := addTestPeer(t, b, "a", false)
	peerB := addTestPeer(t, b, "b", false)

	peerB.Subscribe(t, "chan1")
	unknown, err := peerID()
	require.NoError(t, err)
	peerA.Send(t, "chan1", unknown, "x")

	peerB.recorder.RequireNone(t)
}

func TestBrokerRoutesResponseToTarget(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	b := newTestBroker(ctx, t)
	peerA := addTestPeer(t, b, "a", false)
	peerB := addTestPeer(t, b, "b", false)

	requireT.NoError(peerB.session.Post(Packet{
		Message: &wire.RequestResponse{
			Channel: "svc",
			Peer:    peerB.peer,
			Target:  peerA.peer.ID,
			Request: wire.RequestDescriptor{ID: 3, Channel: "svc"},
		},
		Payload: []byte("r"),
	}))

	p := peerA.recorder.Next(t)
	msg, ok := p.Message.(*wire.RequestResponse)
	requireT.True(ok)
	requireT.EqualValues(3, msg.Request.ID)
	peerB.recorder.RequireNone(t)
}

func TestBrokerRefCounts(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	b := newTestBroker(ctx, t)
	peerA := addTestPeer(t, b, "a", false)

	peerA.Subscribe(t, "x")
	peerA.Subscribe(t, "x")
	requireT.Equal([]wire.ChannelState{
		{
			Channel:     "x",
			Subscribers: []wire.SubscriberState{{Peer: peerA.peer, RefCount: 2}},
		},
	}, b.State())

	requireT.NoError(peerA.session.Post(Packet{Message: &wire.RemoveChannelListener{Channel: "x", Peer: peerA.peer}}))
	requireT.Len(b.State(), 1)

	requireT.NoError(peerA.session.Post(Packet{Message: &wire.RemoveChannelListener{Channel: "x", Peer: peerA.peer}}))
	requireT.Empty(b.State())

	peerA.Subscribe(t, "x")
	peerA.Subscribe(t, "y")
	requireT.NoError(peerA.session.Post(Packet{Message: &wire.RemoveChannelAllListeners{Channel: "x", Peer: peerA.peer}}))
	requireT.Len(b.State(), 1)

	requireT.NoError(peerA.session.Post(Packet{Message: &wire.RemoveListeners{Peer: peerA.peer}}))
	requireT.Empty(b.State())
}

func TestBrokerPeerRemovalKeepsOthers(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	b := newTestBroker(ctx, t)
	peerA := addTestPeer(t, b, "a", false)
	peerB := addTestPeer(t, b, "b", false)
	peerC := addTestPeer(t, b, "c", false)

	peerA.Subscribe(t, "x")
	peerB.Subscribe(t, "x")
	peerC.Subscribe(t, "x")

	requireT.NoError(peerA.session.Post(Packet{Message: &wire.RemoveChannelAllListeners{Channel: "x", Peer: peerA.peer}}))
	peerA.session.Close()

	requireT.Equal([]wire.ChannelState{
		{
			Channel: "x",
			Subscribers: []wire.SubscriberState{
				{Peer: peerB.peer, RefCount: 1},
				{Peer: peerC.peer, RefCount: 1},
			},
		},
	}, b.State())

	peerB.Send(t, "x", wire.PeerID{}, "m")
	requireT.Equal([]byte("m"), peerC.recorder.Next(t).Payload)
	peerA.recorder.RequireNone(t)
}

func TestBrokerShutdownCommandRemovesPeer(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	b := newTestBroker(ctx, t)
	peerA := addTestPeer(t, b, "a", false)
	peerB := addTestPeer(t, b, "b", false)

	peerA.Subscribe(t, "x")
	requireT.NoError(peerA.session.Post(Packet{Message: &wire.Shutdown{Peer: peerA.peer}}))
	requireT.Empty(b.State())

	peerB.Send(t, "x", peerA.peer.ID, "m")
	peerA.recorder.RequireNone(t)
}

func TestBrokerRelaysQueryStateToAllPeers(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	b := newTestBroker(ctx, t)
	peerA := addTestPeer(t, b, "a", false)
	peerB := addTestPeer(t, b, "b", false)

	peerB.Subscribe(t, "x")
	requireT.NoError(peerA.session.Post(Packet{Message: &wire.QueryState{Peer: peerA.peer, RequestID: 5}}))

	p := peerA.recorder.Next(t)
	msg, ok := p.Message.(*wire.QueryStateResponse)
	requireT.True(ok)
	requireT.Equal(b.Peer(), msg.Peer)
	requireT.Equal(peerA.peer.ID, msg.Target)
	requireT.EqualValues(5, msg.RequestID)
	requireT.Equal([]wire.ChannelState{
		{
			Channel:     "x",
			Subscribers: []wire.SubscriberState{{Peer: peerB.peer, RefCount: 1}},
		},
	}, msg.Channels)

	relayed, ok := peerB.recorder.Next(t).Message.(*wire.QueryStateResponse)
	requireT.True(ok)
	requireT.Equal(peerA.peer.ID, relayed.Target)
	requireT.Equal(msg.Channels, relayed.Channels)
}

func TestBrokerForwardsBroadcastsToBridge(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	b := newTestBroker(ctx, t)
	peerA := addTestPeer(t, b, "a", false)
	bridge := addTestPeer(t, b, "bridge", true)

	peerA.Send(t, "anything", wire.PeerID{}, "m1")
	requireT.Equal([]byte("m1"), bridge.recorder.Next(t).Payload)

	peerA.Send(t, "anything", bridge.peer.ID, "m2")
	requireT.Equal([]byte("m2"), bridge.recorder.Next(t).Payload)

	bridge.Subscribe(t, "anything")
	bridge.Send(t, "anything", wire.PeerID{}, "m3")
	bridge.recorder.RequireNone(t)
	peerA.recorder.RequireNone(t)
}

func TestBrokerRejectsProtocolViolation(t *testing.T) {
	ctx := qa.NewContext(t)

	b := newTestBroker(ctx, t)
	peerA := addTestPeer(t, b, "a", false)

	err := peerA.session.Post(Packet{Message: &wire.Handshake{Peer: peerA.peer}})
	require.ErrorIs(t, err, ErrProtocolViolation)
}

func TestBrokerCloseDropsPeers(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	b, err := NewBroker(BrokerConfig{})
	requireT.NoError(err)
	requireT.NoError(b.Connect(ctx))

	peerA := addTestPeer(t, b, "a", false)
	peerA.Subscribe(t, "x")

	requireT.NoError(b.Close(ctx))

	select {
	case <-peerA.recorder.disconnected:
	case <-time.After(time.Second):
		requireT.Fail("peer not disconnected")
	}
	requireT.Empty(b.State())
	requireT.ErrorIs(peerA.session.Post(Packet{Message: &wire.AddChannelListener{Channel: "x"}}), ErrNotConnected)

	_, err = b.AddClient(peerA.peer, newPacketRecorder())
	requireT.ErrorIs(err, ErrNotConnected)

	requireT.NoError(b.Connect(ctx))
	addTestPeer(t, b, "b", false)
	requireT.NoError(b.Close(ctx))
}

type stalledAdapter struct {
	release          chan struct{}
	disconnected     chan struct{}
	disconnectedOnce sync.Once
}

func (a *stalledAdapter) DeliverPacket(Packet) error {
	<-a.release
	return nil
}

func (a *stalledAdapter) Disconnected() {
	a.disconnectedOnce.Do(func() {
		close(a.disconnected)
	})
}

func TestBrokerDropsPeerNotKeepingUp(t *testing.T) {
	requireT := require.New(t)
	ctx := qa.NewContext(t)

	b := newTestBroker(ctx, t)
	peerA := addTestPeer(t, b, "a", false)
	peerB := addTestPeer(t, b, "b", false)

	stalledPeer, err := NewPeer(PeerOptions{Role: wire.RoleWorker, Name: "stalled"})
	requireT.NoError(err)
	stalled := &stalledAdapter{
		release:      make(chan struct{}),
		disconnected: make(chan struct{}),
	}
	defer close(stalled.release)

	stalledSession, err := b.AddClient(stalledPeer, stalled)
	requireT.NoError(err)
	requireT.NoError(stalledSession.Post(Packet{
		Message: &wire.AddChannelListener{Channel: "chan1", Peer: stalledPeer},
	}))

	posted := make(chan error, 1)
	go func() {
		for range brokerQueueSize + 10 {
			err := peerA.session.Post(Packet{
				Message: &wire.SendMessage{Channel: "chan1", Peer: peerA.peer},
				Payload: []byte("x"),
			})
			if err != nil {
				posted <- err
				return
			}
		}
		posted <- nil
	}()

	select {
	case err := <-posted:
		requireT.NoError(err)
	case <-time.After(5 * time.Second):
		requireT.FailNow("sender blocked by stalled peer")
	}

	select {
	case <-stalled.disconnected:
	case <-time.After(time.Second):
		requireT.FailNow("stalled peer not disconnected")
	}

	for _, state := range b.State() {
		for _, sub := range state.Subscribers {
			requireT.NotEqual(stalledPeer.ID, sub.Peer.ID)
		}
	}

	peerB.Subscribe(t, "chan1")
	peerA.Send(t, "chan1", wire.PeerID{}, "y")
	p := peerB.recorder.Next(t)
	requireT.Equal([]byte("y"), p.Payload)
}
