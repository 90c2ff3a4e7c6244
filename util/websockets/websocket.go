package websockets

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/bwise1/sosedi/internal/apperr"
	"github.com/bwise1/sosedi/internal/chat"
	"github.com/bwise1/sosedi/internal/metrics"
	"github.com/bwise1/sosedi/internal/model"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 16 << 10
	sendBufferSize = 64
)

// ChatService is the part of the chat engine the live channel drives.
type ChatService interface {
	Subscribe(ctx context.Context, chatID, viewer uuid.UUID) (*chat.Subscription, error)
	AppendMessage(ctx context.Context, chatID, sender uuid.UUID, text string) (model.Message, error)
}

// WebSocketManager handles WebSocket connections and messaging
type WebSocketManager struct {
	chats    ChatService
	log      *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*Client]struct{}
}

// NewWebSocketManager initializes a WebSocketManager
func NewWebSocketManager(chats ChatService, logger *slog.Logger) *WebSocketManager {
	return &WebSocketManager{
		chats: chats,
		log:   logger.With("component", "websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients: make(map[*Client]struct{}),
	}
}

// Connections is the number of open connections.
func (manager *WebSocketManager) Connections() int {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	return len(manager.clients)
}

// Shutdown closes every open connection.
func (manager *WebSocketManager) Shutdown() {
	manager.mu.Lock()
	clients := make([]*Client, 0, len(manager.clients))
	for c := range manager.clients {
		clients = append(clients, c)
	}
	manager.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

// HandleConnections upgrades the request and serves the live chat channel for
// userID until the connection drops.
func (manager *WebSocketManager) HandleConnections(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	conn, err := manager.upgrader.Upgrade(w, r, nil)
	if err != nil {
		manager.log.Warn("websocket upgrade failed", "user_id", userID, "error", err)
		return
	}

	client := &Client{
		Conn:   conn,
		UserID: userID,
		send:   make(chan Event, sendBufferSize),
		done:   make(chan struct{}),
		subs:   make(map[uuid.UUID]*chat.Subscription),
	}
	manager.register(client)
	defer manager.unregister(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go manager.writePump(client)
	manager.readPump(ctx, client)
}

func (manager *WebSocketManager) register(c *Client) {
	manager.mu.Lock()
	manager.clients[c] = struct{}{}
	manager.mu.Unlock()
	metrics.WebsocketConnections.Inc()
}

func (manager *WebSocketManager) unregister(c *Client) {
	manager.mu.Lock()
	_, ok := manager.clients[c]
	delete(manager.clients, c)
	manager.mu.Unlock()
	if ok {
		metrics.WebsocketConnections.Dec()
	}
	c.close()
	manager.log.Debug("client disconnected", "user_id", c.UserID)
}

func (manager *WebSocketManager) readPump(ctx context.Context, c *Client) {
	c.Conn.SetReadLimit(maxFrameSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				manager.log.Warn("websocket read failed", "user_id", c.UserID, "error", err)
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.enqueue(Event{Type: EventError, Error: "invalid JSON"})
			continue
		}

		switch msg.Type {
		case MsgTypeJoinChat:
			manager.join(ctx, c, msg.ChatID)
		case MsgTypeLeaveChat:
			c.leave(msg.ChatID)
			c.enqueue(Event{Type: EventLeft, ChatID: msg.ChatID})
		case MsgTypeSendMessage:
			if _, err := manager.chats.AppendMessage(ctx, msg.ChatID, c.UserID, msg.Text); err != nil {
				c.enqueue(errorEvent(msg.ChatID, err))
			}
		default:
			c.enqueue(Event{Type: EventError, ChatID: msg.ChatID, Error: "unknown message type"})
		}
	}
}

func (manager *WebSocketManager) join(ctx context.Context, c *Client, chatID uuid.UUID) {
	c.mu.Lock()
	_, already := c.subs[chatID]
	c.mu.Unlock()
	if already {
		c.enqueue(Event{Type: EventJoined, ChatID: chatID})
		return
	}

	sub, err := manager.chats.Subscribe(ctx, chatID, c.UserID)
	if err != nil {
		c.enqueue(errorEvent(chatID, err))
		return
	}
	c.mu.Lock()
	select {
	case <-c.done:
		c.mu.Unlock()
		sub.Close()
		return
	default:
	}
	c.subs[chatID] = sub
	c.mu.Unlock()

	go func() {
		for m := range sub.C() {
			m := m
			c.enqueue(Event{Type: EventNewMessage, ChatID: chatID, Message: &m})
		}
	}()
	c.enqueue(Event{Type: EventJoined, ChatID: chatID})
}

func (manager *WebSocketManager) writePump(c *Client) {
	ticker := time.NewTicker(pingPeriod)
	// closing the conn releases the reader blocked in ReadMessage
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case ev := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteJSON(ev); err != nil {
				manager.log.Debug("websocket write failed", "user_id", c.UserID, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// enqueue hands an event to the writer, dropping it if the client is gone or
// not keeping up.
func (c *Client) enqueue(ev Event) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- ev:
	case <-c.done:
	default:
		metrics.ChatDeliveriesDropped.Inc()
	}
}

func (c *Client) leave(chatID uuid.UUID) {
	c.mu.Lock()
	sub := c.subs[chatID]
	delete(c.subs, chatID)
	c.mu.Unlock()
	if sub != nil {
		sub.Close()
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.done)
		c.mu.Lock()
		subs := c.subs
		c.subs = make(map[uuid.UUID]*chat.Subscription)
		c.mu.Unlock()
		for _, sub := range subs {
			sub.Close()
		}
	})
}

func errorEvent(chatID uuid.UUID, err error) Event {
	return Event{Type: EventError, ChatID: chatID, Error: apperr.MessageOf(err)}
}
