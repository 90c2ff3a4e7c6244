package websockets

import (
	"sync"

	"github.com/bwise1/sosedi/internal/chat"
	"github.com/bwise1/sosedi/internal/model"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Client message types
const (
	MsgTypeJoinChat    = "join_chat"
	MsgTypeLeaveChat   = "leave_chat"
	MsgTypeSendMessage = "send_message"
)

// Server event types
const (
	EventJoined     = "joined"
	EventLeft       = "left"
	EventNewMessage = "new_message"
	EventError      = "error"
)

// Client represents a connected WebSocket user
type Client struct {
	Conn   *websocket.Conn
	UserID uuid.UUID

	send chan Event
	done chan struct{}
	once sync.Once

	mu   sync.Mutex
	subs map[uuid.UUID]*chat.Subscription
}

// Message is an incoming client frame.
type Message struct {
	Type   string    `json:"type"`
	ChatID uuid.UUID `json:"chat_id"`
	Text   string    `json:"text,omitempty"`
}

// Event is an outgoing server frame.
type Event struct {
	Type    string         `json:"type"`
	ChatID  uuid.UUID      `json:"chat_id,omitempty"`
	Message *model.Message `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
}
