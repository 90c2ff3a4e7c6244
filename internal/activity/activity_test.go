package activity

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
)

func TestRecorderDrain(t *testing.T) {
	r := NewRecorder(2)
	ctx := context.Background()
	id := uuid.New()

	r.Publish(ctx, Event{Kind: PostLiked, EntityID: id})
	r.Publish(ctx, Event{Kind: PostUnliked, EntityID: id})
	r.Publish(ctx, Event{Kind: PostLiked, EntityID: id}) // over capacity, dropped

	got := r.Drain()
	if len(got) != 2 || got[0].Kind != PostLiked || got[1].Kind != PostUnliked {
		t.Fatalf("Drain() = %+v", got)
	}
	if rest := r.Drain(); len(rest) != 0 {
		t.Errorf("second Drain() = %+v, want empty", rest)
	}
}

func TestKafkaCloseIsIdempotent(t *testing.T) {
	k := NewKafka(KafkaConfig{Brokers: []string{"127.0.0.1:1"}, Topic: "test"}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := k.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := k.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	// dropped, must not panic on the closed queue
	k.Publish(context.Background(), Event{Kind: GroupJoined, EntityID: uuid.New()})
}
