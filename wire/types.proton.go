package wire

import (
	"reflect"
	"unsafe"

	"github.com/outofforest/proton"
	"github.com/outofforest/proton/helpers"
	"github.com/pkg/errors"
)

const (
	id5 uint64 = iota + 1
	id6
	id7
	id8
	id9
	id10
	id11
	id12
	id13
	id14
)

var _ proton.Marshaller = Marshaller{}

// NewMarshaller creates marshaller.
func NewMarshaller() Marshaller {
	return Marshaller{}
}

// Marshaller marshals and unmarshals messages.
type Marshaller struct {
}

// Messages returns list of the message types supported by marshaller.
func (m Marshaller) Messages() []any {
	return []any {
		Handshake{},
		Shutdown{},
		AddChannelListener{},
		RemoveChannelListener{},
		RemoveChannelAllListeners{},
		RemoveListeners{},
		SendMessage{},
		RequestResponse{},
		QueryState{},
		QueryStateResponse{},
	}
}

// ID returns ID of message type.
func (m Marshaller) ID(msg any) (uint64, error) {
	switch msg.(type) {
	case *Handshake:
		return id5, nil
	case *Shutdown:
		return id6, nil
	case *AddChannelListener:
		return id7, nil
	case *RemoveChannelListener:
		return id8, nil
	case *RemoveChannelAllListeners:
		return id9, nil
	case *RemoveListeners:
		return id10, nil
	case *SendMessage:
		return id11, nil
	case *RequestResponse:
		return id12, nil
	case *QueryState:
		return id13, nil
	case *QueryStateResponse:
		return id14, nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Size computes the size of marshalled message.
func (m Marshaller) Size(msg any) (uint64, error) {
	switch msg2 := msg.(type) {
	case *Handshake:
		return size5(msg2), nil
	case *Shutdown:
		return size6(msg2), nil
	case *AddChannelListener:
		return size7(msg2), nil
	case *RemoveChannelListener:
		return size8(msg2), nil
	case *RemoveChannelAllListeners:
		return size9(msg2), nil
	case *RemoveListeners:
		return size10(msg2), nil
	case *SendMessage:
		return size11(msg2), nil
	case *RequestResponse:
		return size12(msg2), nil
	case *QueryState:
		return size13(msg2), nil
	case *QueryStateResponse:
		return size14(msg2), nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Marshal marshals message.
func (m Marshaller) Marshal(msg any, buf []byte) (retID, retSize uint64, retErr error) {
	defer helpers.RecoverMarshal(&retErr)

	switch msg2 := msg.(type) {
	case *Handshake:
		return id5, marshal5(msg2, buf), nil
	case *Shutdown:
		return id6, marshal6(msg2, buf), nil
	case *AddChannelListener:
		return id7, marshal7(msg2, buf), nil
	case *RemoveChannelListener:
		return id8, marshal8(msg2, buf), nil
	case *RemoveChannelAllListeners:
		return id9, marshal9(msg2, buf), nil
	case *RemoveListeners:
		return id10, marshal10(msg2, buf), nil
	case *SendMessage:
		return id11, marshal11(msg2, buf), nil
	case *RequestResponse:
		return id12, marshal12(msg2, buf), nil
	case *QueryState:
		return id13, marshal13(msg2, buf), nil
	case *QueryStateResponse:
		return id14, marshal14(msg2, buf), nil
	default:
		return 0, 0, errors.Errorf("unknown message type %T", msg)
	}
}

// Unmarshal unmarshals message.
func (m Marshaller) Unmarshal(id uint64, buf []byte) (retMsg any, retSize uint64, retErr error) {
	defer helpers.RecoverUnmarshal(&retErr)

	switch id {
	case id5:
		msg := &Handshake{}
		return msg, unmarshal5(msg, buf), nil
	case id6:
		msg := &Shutdown{}
		return msg, unmarshal6(msg, buf), nil
	case id7:
		msg := &AddChannelListener{}
		return msg, unmarshal7(msg, buf), nil
	case id8:
		msg := &RemoveChannelListener{}
		return msg, unmarshal8(msg, buf), nil
	case id9:
		msg := &RemoveChannelAllListeners{}
		return msg, unmarshal9(msg, buf), nil
	case id10:
		msg := &RemoveListeners{}
		return msg, unmarshal10(msg, buf), nil
	case id11:
		msg := &SendMessage{}
		return msg, unmarshal11(msg, buf), nil
	case id12:
		msg := &RequestResponse{}
		return msg, unmarshal12(msg, buf), nil
	case id13:
		msg := &QueryState{}
		return msg, unmarshal13(msg, buf), nil
	case id14:
		msg := &QueryStateResponse{}
		return msg, unmarshal14(msg, buf), nil
	default:
		return nil, 0, errors.Errorf("unknown ID %d", id)
	}
}

// MakePatch creates a patch.
func (m Marshaller) MakePatch(msgDst, msgSrc any, buf []byte) (retID, retSize uint64, retErr error) {
	defer helpers.RecoverMakePatch(&retErr)

	switch msg2 := msgDst.(type) {
	case *Handshake:
		return id5, makePatch5(msg2, msgSrc.(*Handshake), buf), nil
	case *Shutdown:
		return id6, makePatch6(msg2, msgSrc.(*Shutdown), buf), nil
	case *AddChannelListener:
		return id7, makePatch7(msg2, msgSrc.(*AddChannelListener), buf), nil
	case *RemoveChannelListener:
		return id8, makePatch8(msg2, msgSrc.(*RemoveChannelListener), buf), nil
	case *RemoveChannelAllListeners:
		return id9, makePatch9(msg2, msgSrc.(*RemoveChannelAllListeners), buf), nil
	case *RemoveListeners:
		return id10, makePatch10(msg2, msgSrc.(*RemoveListeners), buf), nil
	case *SendMessage:
		return id11, makePatch11(msg2, msgSrc.(*SendMessage), buf), nil
	case *RequestResponse:
		return id12, makePatch12(msg2, msgSrc.(*RequestResponse), buf), nil
	case *QueryState:
		return id13, makePatch13(msg2, msgSrc.(*QueryState), buf), nil
	case *QueryStateResponse:
		return id14, makePatch14(msg2, msgSrc.(*QueryStateResponse), buf), nil
	default:
		return 0, 0, errors.Errorf("unknown message type %T", msgDst)
	}
}

// ApplyPatch applies patch.
func (m Marshaller) ApplyPatch(msg any, buf []byte) (retSize uint64, retErr error) {
	defer helpers.RecoverApplyPatch(&retErr)

	switch msg2 := msg.(type) {
	case *Handshake:
		return applyPatch5(msg2, buf), nil
	case *Shutdown:
		return applyPatch6(msg2, buf), nil
	case *AddChannelListener:
		return applyPatch7(msg2, buf), nil
	case *RemoveChannelListener:
		return applyPatch8(msg2, buf), nil
	case *RemoveChannelAllListeners:
		return applyPatch9(msg2, buf), nil
	case *RemoveListeners:
		return applyPatch10(msg2, buf), nil
	case *SendMessage:
		return applyPatch11(msg2, buf), nil
	case *RequestResponse:
		return applyPatch12(msg2, buf), nil
	case *QueryState:
		return applyPatch13(msg2, buf), nil
	case *QueryStateResponse:
		return applyPatch14(msg2, buf), nil
	default:
		return 0, errors.Errorf("unknown message type %T", msg)
	}
}

func size0(m *ProcessMetadata) uint64 {
	var n uint64 = 3
	{
		// PID

		helpers.UInt64Size(m.PID, &n)
	}
	{
		// RoutingID

		helpers.UInt64Size(m.RoutingID, &n)
	}
	{
		// FrameID

		helpers.UInt64Size(m.FrameID, &n)
	}
	return n
}

func marshal0(m *ProcessMetadata, b []byte) uint64 {
	var o uint64
	{
		// PID

		helpers.UInt64Marshal(m.PID, b, &o)
	}
	{
		// RoutingID

		helpers.UInt64Marshal(m.RoutingID, b, &o)
	}
	{
		// FrameID

		helpers.UInt64Marshal(m.FrameID, b, &o)
	}

	return o
}

func unmarshal0(m *ProcessMetadata, b []byte) uint64 {
	var o uint64
	{
		// PID

		helpers.UInt64Unmarshal(&m.PID, b, &o)
	}
	{
		// RoutingID

		helpers.UInt64Unmarshal(&m.RoutingID, b, &o)
	}
	{
		// FrameID

		helpers.UInt64Unmarshal(&m.FrameID, b, &o)
	}

	return o
}

func size1(m *Peer) uint64 {
	var n uint64 = 18
	{
		// Role

		helpers.UInt64Size(m.Role, &n)
	}
	{
		// Name

		{
			l := uint64(len(m.Name))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	{
		// Process

		n += size0(&m.Process)
	}
	return n
}

func marshal1(m *Peer, b []byte) uint64 {
	var o uint64
	{
		// ID

		copy(b[o:o+16], unsafe.Slice(&m.ID[0], 16))
		o += 16
	}
	{
		// Role

		helpers.UInt64Marshal(m.Role, b, &o)
	}
	{
		// Name

		{
			l := uint64(len(m.Name))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.Name)
			o += l
		}
	}
	{
		// Process

		o += marshal0(&m.Process, b[o:])
	}

	return o
}

func unmarshal1(m *Peer, b []byte) uint64 {
	var o uint64
	{
		// ID

		copy(unsafe.Slice(&m.ID[0], 16), b[o:o+16])
		o += 16
	}
	{
		// Role

		helpers.UInt64Unmarshal(&m.Role, b, &o)
	}
	{
		// Name

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.Name = string(b[o:o+l])
				o += l
			}
		}
	}
	{
		// Process

		o += unmarshal0(&m.Process, b[o:])
	}

	return o
}

func size2(m *RequestDescriptor) uint64 {
	var n uint64 = 3
	{
		// ID

		helpers.UInt64Size(m.ID, &n)
	}
	{
		// Channel

		{
			l := uint64(len(m.Channel))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	return n
}

func marshal2(m *RequestDescriptor, b []byte) uint64 {
	var o uint64 = 1
	{
		// ID

		helpers.UInt64Marshal(m.ID, b, &o)
	}
	{
		// Channel

		{
			l := uint64(len(m.Channel))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.Channel)
			o += l
		}
	}
	{
		// Rejected

		if m.Rejected {
			b[0] |= 0x01
		} else {
			b[0] &= 0xFE
		}
	}

	return o
}

func unmarshal2(m *RequestDescriptor, b []byte) uint64 {
	var o uint64 = 1
	{
		// ID

		helpers.UInt64Unmarshal(&m.ID, b, &o)
	}
	{
		// Channel

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.Channel = string(b[o:o+l])
				o += l
			}
		}
	}
	{
		// Rejected

		m.Rejected = b[0]&0x01 != 0
	}

	return o
}

func size3(m *SubscriberState) uint64 {
	var n uint64 = 1
	{
		// Peer

		n += size1(&m.Peer)
	}
	{
		// RefCount

		helpers.UInt64Size(m.RefCount, &n)
	}
	return n
}

func marshal3(m *SubscriberState, b []byte) uint64 {
	var o uint64
	{
		// Peer

		o += marshal1(&m.Peer, b[o:])
	}
	{
		// RefCount

		helpers.UInt64Marshal(m.RefCount, b, &o)
	}

	return o
}

func unmarshal3(m *SubscriberState, b []byte) uint64 {
	var o uint64
	{
		// Peer

		o += unmarshal1(&m.Peer, b[o:])
	}
	{
		// RefCount

		helpers.UInt64Unmarshal(&m.RefCount, b, &o)
	}

	return o
}

func size4(m *ChannelState) uint64 {
	var n uint64 = 2
	{
		// Channel

		{
			l := uint64(len(m.Channel))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	{
		// Subscribers

		l := uint64(len(m.Subscribers))
		helpers.UInt64Size(l, &n)
		for _, sv1 := range m.Subscribers {
			n += size3(&sv1)
		}
	}
	return n
}

func marshal4(m *ChannelState, b []byte) uint64 {
	var o uint64
	{
		// Channel

		{
			l := uint64(len(m.Channel))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.Channel)
			o += l
		}
	}
	{
		// Subscribers

		helpers.UInt64Marshal(uint64(len(m.Subscribers)), b, &o)
		for _, sv1 := range m.Subscribers {
			o += marshal3(&sv1, b[o:])
		}
	}

	return o
}

func unmarshal4(m *ChannelState, b []byte) uint64 {
	var o uint64
	{
		// Channel

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.Channel = string(b[o:o+l])
				o += l
			}
		}
	}
	{
		// Subscribers

		var l uint64
		helpers.UInt64Unmarshal(&l, b, &o)
		if l > 0 {
			m.Subscribers = make([]SubscriberState, l)
			for i1 := range l {
				o += unmarshal3(&m.Subscribers[i1], b[o:])
			}
		}
	}

	return o
}

func size5(m *Handshake) uint64 {
	var n uint64 = 1
	{
		// Peer

		n += size1(&m.Peer)
	}
	{
		// LogLevel

		helpers.UInt64Size(m.LogLevel, &n)
	}
	return n
}

func marshal5(m *Handshake, b []byte) uint64 {
	var o uint64
	{
		// Peer

		o += marshal1(&m.Peer, b[o:])
	}
	{
		// LogLevel

		helpers.UInt64Marshal(m.LogLevel, b, &o)
	}

	return o
}

func unmarshal5(m *Handshake, b []byte) uint64 {
	var o uint64
	{
		// Peer

		o += unmarshal1(&m.Peer, b[o:])
	}
	{
		// LogLevel

		helpers.UInt64Unmarshal(&m.LogLevel, b, &o)
	}

	return o
}

func makePatch5(m, mSrc *Handshake, b []byte) uint64 {
	var o uint64 = 1
	{
		// Peer

		if reflect.DeepEqual(m.Peer, mSrc.Peer) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			o += marshal1(&m.Peer, b[o:])
		}
	}
	{
		// LogLevel

		if m.LogLevel == mSrc.LogLevel {
			b[0] &= 0xFD
		} else {
			b[0] |= 0x02
			helpers.UInt64Marshal(m.LogLevel, b, &o)
		}
	}

	return o
}

func applyPatch5(m *Handshake, b []byte) uint64 {
	var o uint64 = 1
	{
		// Peer

		if b[0]&0x01 != 0 {
			o += unmarshal1(&m.Peer, b[o:])
		}
	}
	{
		// LogLevel

		if b[0]&0x02 != 0 {
			helpers.UInt64Unmarshal(&m.LogLevel, b, &o)
		}
	}

	return o
}

func size6(m *Shutdown) uint64 {
	var n uint64
	{
		// Peer

		n += size1(&m.Peer)
	}
	return n
}

func marshal6(m *Shutdown, b []byte) uint64 {
	var o uint64
	{
		// Peer

		o += marshal1(&m.Peer, b[o:])
	}

	return o
}

func unmarshal6(m *Shutdown, b []byte) uint64 {
	var o uint64
	{
		// Peer

		o += unmarshal1(&m.Peer, b[o:])
	}

	return o
}

func makePatch6(m, mSrc *Shutdown, b []byte) uint64 {
	var o uint64 = 1
	{
		// Peer

		if reflect.DeepEqual(m.Peer, mSrc.Peer) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			o += marshal1(&m.Peer, b[o:])
		}
	}

	return o
}

func applyPatch6(m *Shutdown, b []byte) uint64 {
	var o uint64 = 1
	{
		// Peer

		if b[0]&0x01 != 0 {
			o += unmarshal1(&m.Peer, b[o:])
		}
	}

	return o
}

func size7(m *AddChannelListener) uint64 {
	var n uint64 = 1
	{
		// Channel

		{
			l := uint64(len(m.Channel))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	{
		// Peer

		n += size1(&m.Peer)
	}
	return n
}

func marshal7(m *AddChannelListener, b []byte) uint64 {
	var o uint64
	{
		// Channel

		{
			l := uint64(len(m.Channel))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.Channel)
			o += l
		}
	}
	{
		// Peer

		o += marshal1(&m.Peer, b[o:])
	}

	return o
}

func unmarshal7(m *AddChannelListener, b []byte) uint64 {
	var o uint64
	{
		// Channel

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.Channel = string(b[o:o+l])
				o += l
			}
		}
	}
	{
		// Peer

		o += unmarshal1(&m.Peer, b[o:])
	}

	return o
}

func makePatch7(m, mSrc *AddChannelListener, b []byte) uint64 {
	var o uint64 = 1
	{
		// Channel

		if m.Channel == mSrc.Channel {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			{
				l := uint64(len(m.Channel))
				helpers.UInt64Marshal(l, b, &o)
				copy(b[o:o+l], m.Channel)
				o += l
			}
		}
	}
	{
		// Peer

		if reflect.DeepEqual(m.Peer, mSrc.Peer) {
			b[0] &= 0xFD
		} else {
			b[0] |= 0x02
			o += marshal1(&m.Peer, b[o:])
		}
	}

	return o
}

func applyPatch7(m *AddChannelListener, b []byte) uint64 {
	var o uint64 = 1
	{
		// Channel

		if b[0]&0x01 != 0 {
			{
				var l uint64
				helpers.UInt64Unmarshal(&l, b, &o)
				if l > 0 {
					m.Channel = string(b[o:o+l])
					o += l
				}
			}
		}
	}
	{
		// Peer

		if b[0]&0x02 != 0 {
			o += unmarshal1(&m.Peer, b[o:])
		}
	}

	return o
}

func size8(m *RemoveChannelListener) uint64 {
	var n uint64 = 1
	{
		// Channel

		{
			l := uint64(len(m.Channel))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	{
		// Peer

		n += size1(&m.Peer)
	}
	return n
}

func marshal8(m *RemoveChannelListener, b []byte) uint64 {
	var o uint64
	{
		// Channel

		{
			l := uint64(len(m.Channel))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.Channel)
			o += l
		}
	}
	{
		// Peer

		o += marshal1(&m.Peer, b[o:])
	}

	return o
}

func unmarshal8(m *RemoveChannelListener, b []byte) uint64 {
	var o uint64
	{
		// Channel

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.Channel = string(b[o:o+l])
				o += l
			}
		}
	}
	{
		// Peer

		o += unmarshal1(&m.Peer, b[o:])
	}

	return o
}

func makePatch8(m, mSrc *RemoveChannelListener, b []byte) uint64 {
	var o uint64 = 1
	{
		// Channel

		if m.Channel == mSrc.Channel {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			{
				l := uint64(len(m.Channel))
				helpers.UInt64Marshal(l, b, &o)
				copy(b[o:o+l], m.Channel)
				o += l
			}
		}
	}
	{
		// Peer

		if reflect.DeepEqual(m.Peer, mSrc.Peer) {
			b[0] &= 0xFD
		} else {
			b[0] |= 0x02
			o += marshal1(&m.Peer, b[o:])
		}
	}

	return o
}

func applyPatch8(m *RemoveChannelListener, b []byte) uint64 {
	var o uint64 = 1
	{
		// Channel

		if b[0]&0x01 != 0 {
			{
				var l uint64
				helpers.UInt64Unmarshal(&l, b, &o)
				if l > 0 {
					m.Channel = string(b[o:o+l])
					o += l
				}
			}
		}
	}
	{
		// Peer

		if b[0]&0x02 != 0 {
			o += unmarshal1(&m.Peer, b[o:])
		}
	}

	return o
}

func size9(m *RemoveChannelAllListeners) uint64 {
	var n uint64 = 1
	{
		// Channel

		{
			l := uint64(len(m.Channel))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	{
		// Peer

		n += size1(&m.Peer)
	}
	return n
}

func marshal9(m *RemoveChannelAllListeners, b []byte) uint64 {
	var o uint64
	{
		// Channel

		{
			l := uint64(len(m.Channel))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.Channel)
			o += l
		}
	}
	{
		// Peer

		o += marshal1(&m.Peer, b[o:])
	}

	return o
}

func unmarshal9(m *RemoveChannelAllListeners, b []byte) uint64 {
	var o uint64
	{
		// Channel

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.Channel = string(b[o:o+l])
				o += l
			}
		}
	}
	{
		// Peer

		o += unmarshal1(&m.Peer, b[o:])
	}

	return o
}

func makePatch9(m, mSrc *RemoveChannelAllListeners, b []byte) uint64 {
	var o uint64 = 1
	{
		// Channel

		if m.Channel == mSrc.Channel {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			{
				l := uint64(len(m.Channel))
				helpers.UInt64Marshal(l, b, &o)
				copy(b[o:o+l], m.Channel)
				o += l
			}
		}
	}
	{
		// Peer

		if reflect.DeepEqual(m.Peer, mSrc.Peer) {
			b[0] &= 0xFD
		} else {
			b[0] |= 0x02
			o += marshal1(&m.Peer, b[o:])
		}
	}

	return o
}

func applyPatch9(m *RemoveChannelAllListeners, b []byte) uint64 {
	var o uint64 = 1
	{
		// Channel

		if b[0]&0x01 != 0 {
			{
				var l uint64
				helpers.UInt64Unmarshal(&l, b, &o)
				if l > 0 {
					m.Channel = string(b[o:o+l])
					o += l
				}
			}
		}
	}
	{
		// Peer

		if b[0]&0x02 != 0 {
			o += unmarshal1(&m.Peer, b[o:])
		}
	}

	return o
}

func size10(m *RemoveListeners) uint64 {
	var n uint64
	{
		// Peer

		n += size1(&m.Peer)
	}
	return n
}

func marshal10(m *RemoveListeners, b []byte) uint64 {
	var o uint64
	{
		// Peer

		o += marshal1(&m.Peer, b[o:])
	}

	return o
}

func unmarshal10(m *RemoveListeners, b []byte) uint64 {
	var o uint64
	{
		// Peer

		o += unmarshal1(&m.Peer, b[o:])
	}

	return o
}

func makePatch10(m, mSrc *RemoveListeners, b []byte) uint64 {
	var o uint64 = 1
	{
		// Peer

		if reflect.DeepEqual(m.Peer, mSrc.Peer) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			o += marshal1(&m.Peer, b[o:])
		}
	}

	return o
}

func applyPatch10(m *RemoveListeners, b []byte) uint64 {
	var o uint64 = 1
	{
		// Peer

		if b[0]&0x01 != 0 {
			o += unmarshal1(&m.Peer, b[o:])
		}
	}

	return o
}

func size11(m *SendMessage) uint64 {
	var n uint64 = 19
	{
		// Channel

		{
			l := uint64(len(m.Channel))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	{
		// Peer

		n += size1(&m.Peer)
	}
	{
		// Request

		n += size2(&m.Request)
	}
	{
		// Payload

		l := uint64(len(m.Payload))
		helpers.UInt64Size(l, &n)
		n += l
	}
	return n
}

func marshal11(m *SendMessage, b []byte) uint64 {
	var o uint64 = 1
	{
		// Channel

		{
			l := uint64(len(m.Channel))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.Channel)
			o += l
		}
	}
	{
		// Peer

		o += marshal1(&m.Peer, b[o:])
	}
	{
		// Target

		copy(b[o:o+16], unsafe.Slice(&m.Target[0], 16))
		o += 16
	}
	{
		// IsRequest

		if m.IsRequest {
			b[0] |= 0x01
		} else {
			b[0] &= 0xFE
		}
	}
	{
		// Request

		o += marshal2(&m.Request, b[o:])
	}
	{
		// Payload

		l := uint64(len(m.Payload))
		helpers.UInt64Marshal(l, b, &o)
		if l > 0 {
			copy(b[o:o+l], unsafe.Slice(&m.Payload[0], l))
			o += l
		}
	}

	return o
}

func unmarshal11(m *SendMessage, b []byte) uint64 {
	var o uint64 = 1
	{
		// Channel

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.Channel = string(b[o:o+l])
				o += l
			}
		}
	}
	{
		// Peer

		o += unmarshal1(&m.Peer, b[o:])
	}
	{
		// Target

		copy(unsafe.Slice(&m.Target[0], 16), b[o:o+16])
		o += 16
	}
	{
		// IsRequest

		m.IsRequest = b[0]&0x01 != 0
	}
	{
		// Request

		o += unmarshal2(&m.Request, b[o:])
	}
	{
		// Payload

		var l uint64
		helpers.UInt64Unmarshal(&l, b, &o)
		if l > 0 {
			m.Payload = make([]uint8, l)
			copy(m.Payload, b[o:o+l])
			o += l
		}
	}

	return o
}

func makePatch11(m, mSrc *SendMessage, b []byte) uint64 {
	var o uint64 = 2
	{
		// Channel

		if m.Channel == mSrc.Channel {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			{
				l := uint64(len(m.Channel))
				helpers.UInt64Marshal(l, b, &o)
				copy(b[o:o+l], m.Channel)
				o += l
			}
		}
	}
	{
		// Peer

		if reflect.DeepEqual(m.Peer, mSrc.Peer) {
			b[0] &= 0xFD
		} else {
			b[0] |= 0x02
			o += marshal1(&m.Peer, b[o:])
		}
	}
	{
		// Target

		if reflect.DeepEqual(m.Target, mSrc.Target) {
			b[0] &= 0xFB
		} else {
			b[0] |= 0x04
			copy(b[o:o+16], unsafe.Slice(&m.Target[0], 16))
			o += 16
		}
	}
	{
		// IsRequest

		if m.IsRequest == mSrc.IsRequest {
			b[1] &= 0xFE
		} else {
			b[1] |= 0x01
		}
	}
	{
		// Request

		if reflect.DeepEqual(m.Request, mSrc.Request) {
			b[0] &= 0xF7
		} else {
			b[0] |= 0x08
			o += marshal2(&m.Request, b[o:])
		}
	}
	{
		// Payload

		if reflect.DeepEqual(m.Payload, mSrc.Payload) {
			b[0] &= 0xEF
		} else {
			b[0] |= 0x10
			l := uint64(len(m.Payload))
			helpers.UInt64Marshal(l, b, &o)
			if l > 0 {
				copy(b[o:o+l], unsafe.Slice(&m.Payload[0], l))
				o += l
			}
		}
	}

	return o
}

func applyPatch11(m *SendMessage, b []byte) uint64 {
	var o uint64 = 2
	{
		// Channel

		if b[0]&0x01 != 0 {
			{
				var l uint64
				helpers.UInt64Unmarshal(&l, b, &o)
				if l > 0 {
					m.Channel = string(b[o:o+l])
					o += l
				}
			}
		}
	}
	{
		// Peer

		if b[0]&0x02 != 0 {
			o += unmarshal1(&m.Peer, b[o:])
		}
	}
	{
		// Target

		if b[0]&0x04 != 0 {
			copy(unsafe.Slice(&m.Target[0], 16), b[o:o+16])
			o += 16
		}
	}
	{
		// IsRequest

		if b[1]&0x01 != 0 {
			m.IsRequest = !m.IsRequest
		}
	}
	{
		// Request

		if b[0]&0x08 != 0 {
			o += unmarshal2(&m.Request, b[o:])
		}
	}
	{
		// Payload

		if b[0]&0x10 != 0 {
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.Payload = make([]uint8, l)
				copy(m.Payload, b[o:o+l])
				o += l
			}
		}
	}

	return o
}

func size12(m *RequestResponse) uint64 {
	var n uint64 = 18
	{
		// Channel

		{
			l := uint64(len(m.Channel))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	{
		// Peer

		n += size1(&m.Peer)
	}
	{
		// Request

		n += size2(&m.Request)
	}
	{
		// Payload

		l := uint64(len(m.Payload))
		helpers.UInt64Size(l, &n)
		n += l
	}
	return n
}

func marshal12(m *RequestResponse, b []byte) uint64 {
	var o uint64
	{
		// Channel

		{
			l := uint64(len(m.Channel))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.Channel)
			o += l
		}
	}
	{
		// Peer

		o += marshal1(&m.Peer, b[o:])
	}
	{
		// Target

		copy(b[o:o+16], unsafe.Slice(&m.Target[0], 16))
		o += 16
	}
	{
		// Request

		o += marshal2(&m.Request, b[o:])
	}
	{
		// Payload

		l := uint64(len(m.Payload))
		helpers.UInt64Marshal(l, b, &o)
		if l > 0 {
			copy(b[o:o+l], unsafe.Slice(&m.Payload[0], l))
			o += l
		}
	}

	return o
}

func unmarshal12(m *RequestResponse, b []byte) uint64 {
	var o uint64
	{
		// Channel

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.Channel = string(b[o:o+l])
				o += l
			}
		}
	}
	{
		// Peer

		o += unmarshal1(&m.Peer, b[o:])
	}
	{
		// Target

		copy(unsafe.Slice(&m.Target[0], 16), b[o:o+16])
		o += 16
	}
	{
		// Request

		o += unmarshal2(&m.Request, b[o:])
	}
	{
		// Payload

		var l uint64
		helpers.UInt64Unmarshal(&l, b, &o)
		if l > 0 {
			m.Payload = make([]uint8, l)
			copy(m.Payload, b[o:o+l])
			o += l
		}
	}

	return o
}

func makePatch12(m, mSrc *RequestResponse, b []byte) uint64 {
	var o uint64 = 1
	{
		// Channel

		if m.Channel == mSrc.Channel {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			{
				l := uint64(len(m.Channel))
				helpers.UInt64Marshal(l, b, &o)
				copy(b[o:o+l], m.Channel)
				o += l
			}
		}
	}
	{
		// Peer

		if reflect.DeepEqual(m.Peer, mSrc.Peer) {
			b[0] &= 0xFD
		} else {
			b[0] |= 0x02
			o += marshal1(&m.Peer, b[o:])
		}
	}
	{
		// Target

		if reflect.DeepEqual(m.Target, mSrc.Target) {
			b[0] &= 0xFB
		} else {
			b[0] |= 0x04
			copy(b[o:o+16], unsafe.Slice(&m.Target[0], 16))
			o += 16
		}
	}
	{
		// Request

		if reflect.DeepEqual(m.Request, mSrc.Request) {
			b[0] &= 0xF7
		} else {
			b[0] |= 0x08
			o += marshal2(&m.Request, b[o:])
		}
	}
	{
		// Payload

		if reflect.DeepEqual(m.Payload, mSrc.Payload) {
			b[0] &= 0xEF
		} else {
			b[0] |= 0x10
			l := uint64(len(m.Payload))
			helpers.UInt64Marshal(l, b, &o)
			if l > 0 {
				copy(b[o:o+l], unsafe.Slice(&m.Payload[0], l))
				o += l
			}
		}
	}

	return o
}

func applyPatch12(m *RequestResponse, b []byte) uint64 {
	var o uint64 = 1
	{
		// Channel

		if b[0]&0x01 != 0 {
			{
				var l uint64
				helpers.UInt64Unmarshal(&l, b, &o)
				if l > 0 {
					m.Channel = string(b[o:o+l])
					o += l
				}
			}
		}
	}
	{
		// Peer

		if b[0]&0x02 != 0 {
			o += unmarshal1(&m.Peer, b[o:])
		}
	}
	{
		// Target

		if b[0]&0x04 != 0 {
			copy(unsafe.Slice(&m.Target[0], 16), b[o:o+16])
			o += 16
		}
	}
	{
		// Request

		if b[0]&0x08 != 0 {
			o += unmarshal2(&m.Request, b[o:])
		}
	}
	{
		// Payload

		if b[0]&0x10 != 0 {
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.Payload = make([]uint8, l)
				copy(m.Payload, b[o:o+l])
				o += l
			}
		}
	}

	return o
}

func size13(m *QueryState) uint64 {
	var n uint64 = 2
	{
		// Channel

		{
			l := uint64(len(m.Channel))
			helpers.UInt64Size(l, &n)
			n += l
		}
	}
	{
		// Peer

		n += size1(&m.Peer)
	}
	{
		// RequestID

		helpers.UInt64Size(m.RequestID, &n)
	}
	return n
}

func marshal13(m *QueryState, b []byte) uint64 {
	var o uint64
	{
		// Channel

		{
			l := uint64(len(m.Channel))
			helpers.UInt64Marshal(l, b, &o)
			copy(b[o:o+l], m.Channel)
			o += l
		}
	}
	{
		// Peer

		o += marshal1(&m.Peer, b[o:])
	}
	{
		// RequestID

		helpers.UInt64Marshal(m.RequestID, b, &o)
	}

	return o
}

func unmarshal13(m *QueryState, b []byte) uint64 {
	var o uint64
	{
		// Channel

		{
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.Channel = string(b[o:o+l])
				o += l
			}
		}
	}
	{
		// Peer

		o += unmarshal1(&m.Peer, b[o:])
	}
	{
		// RequestID

		helpers.UInt64Unmarshal(&m.RequestID, b, &o)
	}

	return o
}

func makePatch13(m, mSrc *QueryState, b []byte) uint64 {
	var o uint64 = 1
	{
		// Channel

		if m.Channel == mSrc.Channel {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			{
				l := uint64(len(m.Channel))
				helpers.UInt64Marshal(l, b, &o)
				copy(b[o:o+l], m.Channel)
				o += l
			}
		}
	}
	{
		// Peer

		if reflect.DeepEqual(m.Peer, mSrc.Peer) {
			b[0] &= 0xFD
		} else {
			b[0] |= 0x02
			o += marshal1(&m.Peer, b[o:])
		}
	}
	{
		// RequestID

		if m.RequestID == mSrc.RequestID {
			b[0] &= 0xFB
		} else {
			b[0] |= 0x04
			helpers.UInt64Marshal(m.RequestID, b, &o)
		}
	}

	return o
}

func applyPatch13(m *QueryState, b []byte) uint64 {
	var o uint64 = 1
	{
		// Channel

		if b[0]&0x01 != 0 {
			{
				var l uint64
				helpers.UInt64Unmarshal(&l, b, &o)
				if l > 0 {
					m.Channel = string(b[o:o+l])
					o += l
				}
			}
		}
	}
	{
		// Peer

		if b[0]&0x02 != 0 {
			o += unmarshal1(&m.Peer, b[o:])
		}
	}
	{
		// RequestID

		if b[0]&0x04 != 0 {
			helpers.UInt64Unmarshal(&m.RequestID, b, &o)
		}
	}

	return o
}

func size14(m *QueryStateResponse) uint64 {
	var n uint64 = 18
	{
		// Peer

		n += size1(&m.Peer)
	}
	{
		// RequestID

		helpers.UInt64Size(m.RequestID, &n)
	}
	{
		// Channels

		l := uint64(len(m.Channels))
		helpers.UInt64Size(l, &n)
		for _, sv1 := range m.Channels {
			n += size4(&sv1)
		}
	}
	return n
}

func marshal14(m *QueryStateResponse, b []byte) uint64 {
	var o uint64
	{
		// Peer

		o += marshal1(&m.Peer, b[o:])
	}
	{
		// Target

		copy(b[o:o+16], unsafe.Slice(&m.Target[0], 16))
		o += 16
	}
	{
		// RequestID

		helpers.UInt64Marshal(m.RequestID, b, &o)
	}
	{
		// Channels

		helpers.UInt64Marshal(uint64(len(m.Channels)), b, &o)
		for _, sv1 := range m.Channels {
			o += marshal4(&sv1, b[o:])
		}
	}

	return o
}

func unmarshal14(m *QueryStateResponse, b []byte) uint64 {
	var o uint64
	{
		// Peer

		o += unmarshal1(&m.Peer, b[o:])
	}
	{
		// Target

		copy(unsafe.Slice(&m.Target[0], 16), b[o:o+16])
		o += 16
	}
	{
		// RequestID

		helpers.UInt64Unmarshal(&m.RequestID, b, &o)
	}
	{
		// Channels

		var l uint64
		helpers.UInt64Unmarshal(&l, b, &o)
		if l > 0 {
			m.Channels = make([]ChannelState, l)
			for i1 := range l {
				o += unmarshal4(&m.Channels[i1], b[o:])
			}
		}
	}

	return o
}

func makePatch14(m, mSrc *QueryStateResponse, b []byte) uint64 {
	var o uint64 = 1
	{
		// Peer

		if reflect.DeepEqual(m.Peer, mSrc.Peer) {
			b[0] &= 0xFE
		} else {
			b[0] |= 0x01
			o += marshal1(&m.Peer, b[o:])
		}
	}
	{
		// Target

		if reflect.DeepEqual(m.Target, mSrc.Target) {
			b[0] &= 0xFD
		} else {
			b[0] |= 0x02
			copy(b[o:o+16], unsafe.Slice(&m.Target[0], 16))
			o += 16
		}
	}
	{
		// RequestID

		if m.RequestID == mSrc.RequestID {
			b[0] &= 0xFB
		} else {
			b[0] |= 0x04
			helpers.UInt64Marshal(m.RequestID, b, &o)
		}
	}
	{
		// Channels

		if reflect.DeepEqual(m.Channels, mSrc.Channels) {
			b[0] &= 0xF7
		} else {
			b[0] |= 0x08
			helpers.UInt64Marshal(uint64(len(m.Channels)), b, &o)
			for _, sv1 := range m.Channels {
				o += marshal4(&sv1, b[o:])
			}
		}
	}

	return o
}

func applyPatch14(m *QueryStateResponse, b []byte) uint64 {
	var o uint64 = 1
	{
		// Peer

		if b[0]&0x01 != 0 {
			o += unmarshal1(&m.Peer, b[o:])
		}
	}
	{
		// Target

		if b[0]&0x02 != 0 {
			copy(unsafe.Slice(&m.Target[0], 16), b[o:o+16])
			o += 16
		}
	}
	{
		// RequestID

		if b[0]&0x04 != 0 {
			helpers.UInt64Unmarshal(&m.RequestID, b, &o)
		}
	}
	{
		// Channels

		if b[0]&0x08 != 0 {
			var l uint64
			helpers.UInt64Unmarshal(&l, b, &o)
			if l > 0 {
				m.Channels = make([]ChannelState, l)
				for i1 := range l {
					o += unmarshal4(&m.Channels[i1], b[o:])
				}
			}
		}
	}

	return o
}
