package chat

import (
	"encoding/json"
	"errors"
)

const (
	EventSendMessage = "send_message"
	EventTyping      = "typing"
)

var (
	ErrMalformedEvent = errors.New("malformed event")
	ErrUnknownEvent   = errors.New("unknown event")
)

// InboundEvent is the tagged union of everything a client may send over the
// websocket.
type InboundEvent struct {
	Event   string `json:"event"`
	Payload string `json:"payload"`
}

// ParseInbound decodes a raw frame into an InboundEvent. Parsing is the only
// place frame shape is checked; a failure here is reported to the sender and
// never terminates the connection.
func ParseInbound(data []byte) (*InboundEvent, error) {
	ev := &InboundEvent{}
	if err := json.Unmarshal(data, ev); err != nil {
		return nil, ErrMalformedEvent
	}
	switch ev.Event {
	case EventSendMessage:
		if ev.Payload == "" {
			return nil, ErrMalformedEvent
		}
		return ev, nil
	case EventTyping:
		return ev, nil
	default:
		return nil, ErrUnknownEvent
	}
}

type typingEvent struct {
	Event  string `json:"event"`
	UserID string `json:"user_id"`
}

type errorEvent struct {
	Error string `json:"error"`
}

func errorFrame(msg string) []byte {
	b, _ := json.Marshal(errorEvent{Error: msg})
	return b
}
