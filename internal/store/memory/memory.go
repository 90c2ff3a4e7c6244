// Package memory is the in-process Store backend used for tests and
// single-instance deployments without a database.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/bwise1/sosedi/internal/apperr"
	"github.com/bwise1/sosedi/internal/keylock"
	"github.com/bwise1/sosedi/internal/model"
	"github.com/bwise1/sosedi/internal/store"
	"github.com/google/uuid"
)

type collection[T model.Record[T]] struct {
	kind   string
	mu     sync.RWMutex
	docs   map[uuid.UUID]T
	unique map[string]uuid.UUID
	keys   func(T) []string
	locks  *keylock.Table[uuid.UUID]
}

func newCollection[T model.Record[T]](kind string, keys func(T) []string) *collection[T] {
	if keys == nil {
		keys = func(T) []string { return nil }
	}
	return &collection[T]{
		kind:   kind,
		docs:   make(map[uuid.UUID]T),
		unique: make(map[string]uuid.UUID),
		keys:   keys,
		locks:  keylock.New[uuid.UUID](),
	}
}

func (c *collection[T]) notFound(id uuid.UUID) error {
	return apperr.E(apperr.NotFound, "%s %s not found", c.kind, id)
}

func (c *collection[T]) Insert(_ context.Context, v T) error {
	h := v.Header()
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.docs[h.ID]; ok {
		return apperr.E(apperr.AlreadyExists, "%s %s already exists", c.kind, h.ID)
	}
	keys := c.keys(v)
	for _, k := range keys {
		if _, taken := c.unique[k]; taken {
			return apperr.E(apperr.AlreadyExists, "%s with %s already exists", c.kind, k)
		}
	}
	for _, k := range keys {
		c.unique[k] = h.ID
	}
	c.docs[h.ID] = v.Clone()
	return nil
}

func (c *collection[T]) Get(_ context.Context, id uuid.UUID) (T, error) {
	c.mu.RLock()
	v, ok := c.docs[id]
	c.mu.RUnlock()
	if !ok {
		var zero T
		return zero, c.notFound(id)
	}
	return v.Clone(), nil
}

func (c *collection[T]) GetMany(_ context.Context, ids []uuid.UUID) ([]T, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0, len(ids))
	for _, id := range ids {
		if v, ok := c.docs[id]; ok {
			out = append(out, v.Clone())
		}
	}
	return out, nil
}

func (c *collection[T]) Update(ctx context.Context, id uuid.UUID, fn func(*T) error) (T, error) {
	var zero T
	unlock := c.locks.Lock(id)
	defer unlock()

	cur, err := c.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	next := cur.Clone()
	if err := fn(&next); err != nil {
		return zero, err
	}
	if next.Header().ID != id {
		return zero, apperr.E(apperr.InvalidInput, "%s id cannot change", c.kind)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	oldKeys, newKeys := c.keys(cur), c.keys(next)
	for _, k := range newKeys {
		if owner, taken := c.unique[k]; taken && owner != id {
			return zero, apperr.E(apperr.AlreadyExists, "%s with %s already exists", c.kind, k)
		}
	}
	for _, k := range oldKeys {
		delete(c.unique, k)
	}
	for _, k := range newKeys {
		c.unique[k] = id
	}
	c.docs[id] = next.Clone()
	return next, nil
}

func (c *collection[T]) Each(ctx context.Context, fn func(T) error) error {
	c.mu.RLock()
	snapshot := make([]T, 0, len(c.docs))
	for _, v := range c.docs {
		snapshot = append(snapshot, v.Clone())
	}
	c.mu.RUnlock()

	for _, v := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}

func (c *collection[T]) byKey(key string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.unique[key]
	if !ok {
		var zero T
		return zero, false
	}
	return c.docs[id].Clone(), true
}

type users struct{ *collection[model.User] }

func (u users) GetByAuthUID(_ context.Context, uid string) (model.User, error) {
	if v, ok := u.byKey("authUid=" + uid); ok {
		return v, nil
	}
	return model.User{}, apperr.E(apperr.NotFound, "user not found")
}

type chats struct{ *collection[model.Chat] }

func (c chats) GetByPairKey(_ context.Context, key string) (model.Chat, error) {
	if v, ok := c.byKey("pairKey=" + key); ok {
		return v, nil
	}
	return model.Chat{}, apperr.E(apperr.NotFound, "chat not found")
}

func (c chats) GetGroupChat(_ context.Context, groupID uuid.UUID) (model.Chat, error) {
	if v, ok := c.byKey("groupId=" + groupID.String()); ok {
		return v, nil
	}
	return model.Chat{}, apperr.E(apperr.NotFound, "chat not found")
}

func (c chats) ListForParticipant(_ context.Context, userID uuid.UUID) ([]model.Chat, error) {
	c.mu.RLock()
	var out []model.Chat
	for _, ch := range c.docs {
		if !ch.IsDeleted && ch.IsParticipant(userID) {
			out = append(out, ch.Clone())
		}
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// Store keeps every collection in process memory.
type Store struct {
	users  users
	posts  *collection[model.Post]
	groups *collection[model.Group]
	ads    *collection[model.Advertisement]
	events *collection[model.Event]
	chats  chats
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users: users{newCollection("user", func(u model.User) []string {
			var keys []string
			if u.AuthUID != "" {
				keys = append(keys, "authUid="+u.AuthUID)
			}
			if u.PhoneNumber != "" {
				keys = append(keys, "phoneNumber="+u.PhoneNumber)
			}
			return keys
		})},
		posts:  newCollection[model.Post]("post", nil),
		groups: newCollection[model.Group]("group", nil),
		ads:    newCollection[model.Advertisement]("advertisement", nil),
		events: newCollection[model.Event]("event", nil),
		chats: chats{newCollection("chat", func(c model.Chat) []string {
			// a deleted chat releases its pair and group so a new one can be opened
			if c.IsDeleted {
				return nil
			}
			var keys []string
			if c.PairKey != "" {
				keys = append(keys, "pairKey="+c.PairKey)
			}
			if c.GroupID != nil {
				keys = append(keys, "groupId="+c.GroupID.String())
			}
			return keys
		})},
	}
}

func (s *Store) Users() store.UserStore                                { return s.users }
func (s *Store) Posts() store.Collection[model.Post]                   { return s.posts }
func (s *Store) Groups() store.Collection[model.Group]                 { return s.groups }
func (s *Store) Advertisements() store.Collection[model.Advertisement] { return s.ads }
func (s *Store) Events() store.Collection[model.Event]                 { return s.events }
func (s *Store) Chats() store.ChatStore                                { return s.chats }
func (s *Store) Close() error                                          { return nil }
