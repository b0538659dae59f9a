package bus

import "time"

// EventKind classifies one inbound delivery by the shape of its payload.
type EventKind string

const (
	KindText   EventKind = "text"
	KindButton EventKind = "button"
	KindList   EventKind = "list"
	KindMedia  EventKind = "media"
	KindOrder  EventKind = "order"
	KindStatus EventKind = "status"
)

// InboundEvent is one delivery from a transport adapter.
//
// EventID is unique per logical event but may repeat on redelivery;
// the engine deduplicates on it. ConversationKey scopes queueing, rate
// limiting, and flow state to one counterpart.
type InboundEvent struct {
	EventID         string            `json:"event_id"`
	ConversationKey string            `json:"conversation_key"`
	Channel         string            `json:"channel"`
	Kind            EventKind         `json:"kind"`
	Payload         string            `json:"payload"`
	SenderID        string            `json:"sender_id,omitempty"`
	ReceivedAt      time.Time         `json:"received_at"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// OutboundMessage is one response handed back to a transport adapter.
type OutboundMessage struct {
	Channel         string            `json:"channel"`
	ConversationKey string            `json:"conversation_key"`
	Content         string            `json:"content"`
	Error           string            `json:"error,omitempty"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}
