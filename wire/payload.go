package wire

// WithPayload returns copy of the message carrying the payload. Messages which carry no payload
// are returned unchanged. The original is never modified because it may be shared by many senders.
func WithPayload(msg any, payload []byte) any {
	switch msg := msg.(type) {
	case *SendMessage:
		m := *msg
		m.Payload = payload
		return &m
	case *RequestResponse:
		m := *msg
		m.Payload = payload
		return &m
	default:
		return msg
	}
}

// SplitPayload detaches the payload from the received message.
func SplitPayload(msg any) (any, []byte) {
	switch msg := msg.(type) {
	case *SendMessage:
		payload := msg.Payload
		msg.Payload = nil
		return msg, payload
	case *RequestResponse:
		payload := msg.Payload
		msg.Payload = nil
		return msg, payload
	default:
		return msg, nil
	}
}
