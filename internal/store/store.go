// Package store defines persistence for every entity kind. Backends live in
// the memory and postgres subpackages.
package store

import (
	"context"

	"github.com/bwise1/sosedi/internal/geo"
	"github.com/bwise1/sosedi/internal/model"
	"github.com/google/uuid"
)

// Collection holds one entity kind keyed by id.
//
// Get returns soft-deleted records too; callers decide visibility. Update
// runs fn on a private copy while holding the record's lock and persists the
// copy only when fn returns nil, so concurrent updates of one record never
// lose writes and a failed fn leaves nothing behind.
type Collection[T model.Record[T]] interface {
	Insert(ctx context.Context, v T) error
	Get(ctx context.Context, id uuid.UUID) (T, error)
	// GetMany keeps the order of ids and skips unknown ones.
	GetMany(ctx context.Context, ids []uuid.UUID) ([]T, error)
	Update(ctx context.Context, id uuid.UUID, fn func(*T) error) (T, error)
	Each(ctx context.Context, fn func(T) error) error
}

// Locator is implemented by collections that answer proximity queries
// themselves. Near returns the ids of visible records within radius meters of
// center (inclusive), newest first with ties broken by id.
//
// Backends shared by several processes implement it, so a record written
// through one process is found by every other one. Callers fall back to an
// in-process geo.Index for collections without it.
type Locator interface {
	Near(ctx context.Context, center geo.Point, radius float64) ([]uuid.UUID, error)
}

type UserStore interface {
	Collection[model.User]
	GetByAuthUID(ctx context.Context, uid string) (model.User, error)
}

// ChatStore keeps one private chat per unordered pair and one chat per
// group. Both keys are unique among non-deleted chats only: deleting a chat
// frees its key, and a later lookup creates a fresh chat.
type ChatStore interface {
	Collection[model.Chat]
	GetByPairKey(ctx context.Context, key string) (model.Chat, error)
	GetGroupChat(ctx context.Context, groupID uuid.UUID) (model.Chat, error)
	// ListForParticipant returns the non-deleted chats of userID, most
	// recently updated first.
	ListForParticipant(ctx context.Context, userID uuid.UUID) ([]model.Chat, error)
}

type Store interface {
	Users() UserStore
	Posts() Collection[model.Post]
	Groups() Collection[model.Group]
	Advertisements() Collection[model.Advertisement]
	Events() Collection[model.Event]
	Chats() ChatStore
	Close() error
}
