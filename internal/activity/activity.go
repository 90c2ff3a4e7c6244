// Package activity streams relationship and chat events to downstream
// consumers. Delivery is best effort: a failed publish never fails the
// operation that produced the event.
package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	PostLiked          Kind = "post.liked"
	PostUnliked        Kind = "post.unliked"
	PostCommented      Kind = "post.commented"
	GroupJoined        Kind = "group.joined"
	GroupLeft          Kind = "group.left"
	EventJoined        Kind = "event.joined"
	EventLeft          Kind = "event.left"
	AdInterested       Kind = "advertisement.interested"
	AdUninterested     Kind = "advertisement.uninterested"
	ChatMessageCreated Kind = "chat.message_created"
)

type Event struct {
	Kind     Kind      `json:"kind"`
	EntityID uuid.UUID `json:"entityId"`
	ActorID  uuid.UUID `json:"actorId"`
	Count    int       `json:"count"`
	At       time.Time `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, Event) {}

// Recorder keeps events in memory. Tests use it to assert what was emitted.
type Recorder struct {
	ch chan Event
}

func NewRecorder(size int) *Recorder { return &Recorder{ch: make(chan Event, size)} }

func (r *Recorder) Publish(_ context.Context, e Event) {
	select {
	case r.ch <- e:
	default:
	}
}

// Drain returns everything recorded so far.
func (r *Recorder) Drain() []Event {
	var out []Event
	for {
		select {
		case e := <-r.ch:
			out = append(out, e)
		default:
			return out
		}
	}
}
