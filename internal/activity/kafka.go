package activity

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/bwise1/sosedi/internal/metrics"
	"github.com/segmentio/kafka-go"
)

const (
	queueSize    = 1024
	writeTimeout = 5 * time.Second
)

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// Kafka publishes events keyed by entity id, so events of one entity stay
// ordered within a partition. Publish only enqueues; a single writer
// goroutine does the network I/O.
type Kafka struct {
	writer *kafka.Writer
	queue  chan Event
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	log    *slog.Logger
}

func NewKafka(cfg KafkaConfig, logger *slog.Logger) *Kafka {
	k := &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 50 * time.Millisecond,
		},
		queue: make(chan Event, queueSize),
		log:   logger.With("component", "activity"),
	}
	k.wg.Add(1)
	go k.run()
	return k
}

func (k *Kafka) Publish(_ context.Context, e Event) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.closed {
		metrics.ActivityDropped.WithLabelValues("closed").Inc()
		return
	}
	select {
	case k.queue <- e:
	default:
		metrics.ActivityDropped.WithLabelValues("queue_full").Inc()
	}
}

func (k *Kafka) run() {
	defer k.wg.Done()
	for e := range k.queue {
		value, err := json.Marshal(e)
		if err != nil {
			k.log.Error("encode activity event", "error", err)
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err = k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.EntityID.String()), Value: value})
		cancel()
		if err != nil {
			metrics.ActivityDropped.WithLabelValues("write_failed").Inc()
			k.log.Warn("publish activity event", "kind", e.Kind, "entity", e.EntityID, "error", err)
		}
	}
}

// Close flushes queued events and closes the writer. Later publishes are dropped.
func (k *Kafka) Close() error {
	k.mu.Lock()
	if k.closed {
		k.mu.Unlock()
		return nil
	}
	k.closed = true
	close(k.queue)
	k.mu.Unlock()

	k.wg.Wait()
	return k.writer.Close()
}
