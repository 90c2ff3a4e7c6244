package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bwise1/sosedi/internal/metrics"
	"github.com/bwise1/sosedi/internal/model"
	"github.com/google/uuid"
)

const (
	hubQueueSize       = 4096
	subscriptionBuffer = 64
)

// Publisher fans a persisted message out to live listeners. Publish must not
// block on slow listeners.
type Publisher interface {
	Publish(chatID uuid.UUID, msg model.Message)
}

type delivery struct {
	chatID uuid.UUID
	msg    model.Message
}

// Hub delivers messages to the subscribers of a chat in this process. A
// single dispatcher goroutine drains one FIFO queue, so each subscriber sees
// the messages of a chat in publish order.
type Hub struct {
	mu    sync.RWMutex
	subs  map[uuid.UUID]map[*Subscription]struct{}
	queue chan delivery
	log   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subs:  make(map[uuid.UUID]map[*Subscription]struct{}),
		queue: make(chan delivery, hubQueueSize),
		log:   logger.With("component", "chat_hub"),
	}
}

// Run dispatches until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-h.queue:
			h.dispatch(d)
		}
	}
}

func (h *Hub) dispatch(d delivery) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[d.chatID] {
		select {
		case sub.ch <- d.msg:
		default:
			metrics.ChatDeliveriesDropped.Inc()
			h.log.Warn("subscriber too slow, message dropped", "chat_id", d.chatID, "user_id", sub.UserID)
		}
	}
}

func (h *Hub) Publish(chatID uuid.UUID, msg model.Message) {
	select {
	case h.queue <- delivery{chatID: chatID, msg: msg}:
	default:
		metrics.ChatDeliveriesDropped.Inc()
		h.log.Warn("hub queue full, message dropped", "chat_id", chatID)
	}
}

// Subscribe registers a listener on chatID. Callers must Close it.
func (h *Hub) Subscribe(chatID, userID uuid.UUID) *Subscription {
	sub := &Subscription{
		ChatID: chatID,
		UserID: userID,
		ch:     make(chan model.Message, subscriptionBuffer),
		hub:    h,
	}
	h.mu.Lock()
	set := h.subs[chatID]
	if set == nil {
		set = make(map[*Subscription]struct{})
		h.subs[chatID] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Subscribers is the number of live subscriptions on chatID.
func (h *Hub) Subscribers(chatID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[chatID])
}

type Subscription struct {
	ChatID uuid.UUID
	UserID uuid.UUID

	ch     chan model.Message
	hub    *Hub
	closed bool
}

// C yields messages until the subscription is closed.
func (s *Subscription) C() <-chan model.Message { return s.ch }

func (s *Subscription) Close() {
	h := s.hub
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if set := h.subs[s.ChatID]; set != nil {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, s.ChatID)
		}
	}
	close(s.ch)
}
