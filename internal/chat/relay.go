package chat

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/bwise1/sosedi/internal/metrics"
	"github.com/bwise1/sosedi/internal/model"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	relayChannelPrefix = "chat:"
	relayQueueSize     = 4096
	relayPublishWait   = 2 * time.Second
)

// RedisRelay carries live messages between instances. Publish queues the
// message for Redis; every instance, including the sender, receives it back
// through its pattern subscription and hands it to its local Hub.
type RedisRelay struct {
	client *redis.Client
	hub    *Hub
	queue  chan delivery
	log    *slog.Logger
}

func NewRedisRelay(client *redis.Client, hub *Hub, logger *slog.Logger) *RedisRelay {
	return &RedisRelay{
		client: client,
		hub:    hub,
		queue:  make(chan delivery, relayQueueSize),
		log:    logger.With("component", "chat_relay"),
	}
}

func (r *RedisRelay) Publish(chatID uuid.UUID, msg model.Message) {
	select {
	case r.queue <- delivery{chatID: chatID, msg: msg}:
	default:
		metrics.ChatDeliveriesDropped.Inc()
		r.log.Warn("relay queue full, message dropped", "chat_id", chatID)
	}
}

// Run subscribes to every chat channel and forwards queued messages until
// ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.PSubscribe(ctx, relayChannelPrefix+"*")
	defer pubsub.Close()

	// wait for the subscription so our own first messages are not missed
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}

	go r.forward(ctx)

	incoming := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-incoming:
			if !ok {
				return nil
			}
			r.deliver(m)
		}
	}
}

func (r *RedisRelay) deliver(m *redis.Message) {
	chatID, err := uuid.Parse(strings.TrimPrefix(m.Channel, relayChannelPrefix))
	if err != nil {
		r.log.Warn("ignoring message on unexpected channel", "channel", m.Channel)
		return
	}
	var msg model.Message
	if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
		r.log.Warn("undecodable relay payload", "chat_id", chatID, "error", err)
		return
	}
	r.hub.Publish(chatID, msg)
}

func (r *RedisRelay) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-r.queue:
			payload, err := json.Marshal(d.msg)
			if err != nil {
				r.log.Error("encode relay payload", "error", err)
				continue
			}
			pctx, cancel := context.WithTimeout(ctx, relayPublishWait)
			err = r.client.Publish(pctx, relayChannelPrefix+d.chatID.String(), payload).Err()
			cancel()
			if err != nil {
				metrics.ChatDeliveriesDropped.Inc()
				r.log.Warn("relay publish failed", "chat_id", d.chatID, "error", err)
			}
		}
	}
}
