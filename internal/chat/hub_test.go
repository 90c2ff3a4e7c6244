package chat

import (
	"context"
	"testing"
	"time"

	"github.com/bwise1/sosedi/internal/model"
	"github.com/google/uuid"
)

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(discard)
	go hub.Run(ctx)

	chatID := uuid.New()
	slow := hub.Subscribe(chatID, uuid.New())
	defer slow.Close()
	fast := hub.Subscribe(chatID, uuid.New())
	defer fast.Close()

	total := subscriptionBuffer * 2
	done := make(chan struct{})
	go func() {
		for i := 0; i < total; i++ {
			hub.Publish(chatID, model.Message{ID: uuid.New(), Text: "x"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	received := 0
	timeout := time.After(2 * time.Second)
	for received < subscriptionBuffer {
		select {
		case <-fast.C():
			received++
		case <-timeout:
			t.Fatalf("fast subscriber got %d messages", received)
		}
	}
}

func TestHubCloseUnsubscribes(t *testing.T) {
	hub := NewHub(discard)
	chatID := uuid.New()
	sub := hub.Subscribe(chatID, uuid.New())
	if hub.Subscribers(chatID) != 1 {
		t.Fatal("subscription not registered")
	}
	sub.Close()
	sub.Close()
	if hub.Subscribers(chatID) != 0 {
		t.Fatal("subscription not removed")
	}
	if _, ok := <-sub.C(); ok {
		t.Fatal("channel of a closed subscription is still open")
	}

	// publishing to a chat nobody listens to is fine
	hub.dispatch(delivery{chatID: chatID, msg: model.Message{}})
}
