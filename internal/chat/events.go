package chat

import "context"

type EventType string

const (
	EventNewMessage   EventType = "new_message"
	EventClearHistory EventType = "clear_history"
)

// Event is pushed to every open realtime connection regardless of session; clients
// filter by session themselves.
type Event struct {
	Type      EventType `json:"type"`
	Message   *Message  `json:"message,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
}

func NewMessageEvent(m *Message) Event {
	return Event{Type: EventNewMessage, Message: m}
}

func ClearHistoryEvent(sessionID string) Event {
	return Event{Type: EventClearHistory, SessionID: sessionID}
}

type Broadcaster interface {
	Broadcast(ctx context.Context, ev Event)
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(context.Context, Event) {}
