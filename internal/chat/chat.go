// Package chat implements private and group conversations: lookup,
// messaging, read tracking and live delivery.
package chat

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwise1/sosedi/internal/activity"
	"github.com/bwise1/sosedi/internal/apperr"
	"github.com/bwise1/sosedi/internal/keylock"
	"github.com/bwise1/sosedi/internal/metrics"
	"github.com/bwise1/sosedi/internal/model"
	"github.com/bwise1/sosedi/internal/store"
	"github.com/google/uuid"
)

// MaxMessageLength is the longest accepted message, in characters.
const MaxMessageLength = 4000

type Engine struct {
	store  store.Store
	hub    *Hub
	out    Publisher
	events activity.Publisher
	pairs  *keylock.Table[string]
	groups *keylock.Table[uuid.UUID]
	// appends holds a chat from commit until its message is queued for
	// delivery, so live order matches stored order.
	appends *keylock.Table[uuid.UUID]
	now     func() time.Time
}

// New builds an engine that delivers live messages through out. A nil out
// publishes straight to hub.
func New(s store.Store, hub *Hub, out Publisher, events activity.Publisher) *Engine {
	if out == nil {
		out = hub
	}
	if events == nil {
		events = activity.Nop{}
	}
	return &Engine{
		store:   s,
		hub:     hub,
		out:     out,
		events:  events,
		pairs:   keylock.New[string](),
		groups:  keylock.New[uuid.UUID](),
		appends: keylock.New[uuid.UUID](),
		now:     time.Now,
	}
}

// FindOrCreatePrivate returns the private chat between a and b, creating it
// on first use. The argument order does not matter.
func (e *Engine) FindOrCreatePrivate(ctx context.Context, a, b uuid.UUID) (model.Chat, error) {
	if a == b {
		return model.Chat{}, apperr.E(apperr.InvalidInput, "cannot start a chat with yourself")
	}
	other, err := e.store.Users().Get(ctx, b)
	if err != nil || other.IsDeleted {
		return model.Chat{}, apperr.E(apperr.NotFound, "user not found")
	}

	key := model.CanonicalPair(a, b)
	unlock := e.pairs.Lock(key)
	defer unlock()

	c, err := e.store.Chats().GetByPairKey(ctx, key)
	if err == nil {
		return c, nil
	}
	if apperr.KindOf(err) != apperr.NotFound {
		return model.Chat{}, err
	}

	now := e.now()
	c = model.Chat{
		Meta:         model.NewMeta(now),
		Type:         model.ChatPrivate,
		PairKey:      key,
		Participants: []model.Member{{UserID: a, JoinedAt: now}, {UserID: b, JoinedAt: now}},
	}
	err = e.store.Chats().Insert(ctx, c)
	if apperr.KindOf(err) == apperr.AlreadyExists {
		// another instance created it first
		return e.store.Chats().GetByPairKey(ctx, key)
	}
	if err != nil {
		return model.Chat{}, err
	}
	return c, nil
}

// OpenGroupChat returns the chat of a group, creating it on first use, and
// makes sure viewer is one of its participants.
func (e *Engine) OpenGroupChat(ctx context.Context, groupID, viewer uuid.UUID) (model.Chat, error) {
	g, err := e.store.Groups().Get(ctx, groupID)
	if err != nil || g.IsDeleted {
		return model.Chat{}, apperr.E(apperr.NotFound, "group not found")
	}
	if !g.IsMember(viewer) {
		return model.Chat{}, apperr.E(apperr.NotAMember, "only group members can open the group chat")
	}

	unlock := e.groups.Lock(groupID)
	defer unlock()

	c, err := e.store.Chats().GetGroupChat(ctx, groupID)
	switch {
	case err == nil:
	case apperr.KindOf(err) == apperr.NotFound:
		now := e.now()
		gid := groupID
		c = model.Chat{
			Meta:      model.NewMeta(now),
			Type:      model.ChatGroup,
			GroupID:   &gid,
			GroupName: g.Name,
		}
		for _, m := range g.Members {
			c.AddParticipant(m.UserID, now)
		}
		err = e.store.Chats().Insert(ctx, c)
		if apperr.KindOf(err) == apperr.AlreadyExists {
			c, err = e.store.Chats().GetGroupChat(ctx, groupID)
		}
		if err != nil {
			return model.Chat{}, err
		}
	default:
		return model.Chat{}, err
	}

	if c.IsParticipant(viewer) {
		return c, nil
	}
	return e.store.Chats().Update(ctx, c.ID, func(c *model.Chat) error {
		c.AddParticipant(viewer, e.now())
		return nil
	})
}

// AppendMessage persists a message and then hands it to live delivery.
func (e *Engine) AppendMessage(ctx context.Context, chatID, sender uuid.UUID, text string) (model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Message{}, apperr.E(apperr.InvalidInput, "message text is required")
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return model.Message{}, apperr.E(apperr.InvalidInput, "message is longer than %d characters", MaxMessageLength)
	}

	current, err := e.visible(ctx, chatID)
	if err != nil {
		return model.Message{}, err
	}
	groupMember := false
	if current.Type == model.ChatGroup && current.GroupID != nil {
		g, err := e.store.Groups().Get(ctx, *current.GroupID)
		if err != nil || g.IsDeleted {
			return model.Message{}, apperr.E(apperr.NotFound, "group not found")
		}
		if !g.IsMember(sender) {
			return model.Message{}, apperr.E(apperr.NotAParticipant, "you are not a participant of this chat")
		}
		groupMember = true
	}

	unlock := e.appends.Lock(chatID)
	defer unlock()

	var msg model.Message
	_, err = e.store.Chats().Update(ctx, chatID, func(c *model.Chat) error {
		if c.IsDeleted {
			return apperr.E(apperr.NotFound, "chat not found")
		}
		now := e.now()
		if !c.IsParticipant(sender) {
			if !groupMember {
				return apperr.E(apperr.NotAParticipant, "you are not a participant of this chat")
			}
			c.AddParticipant(sender, now)
		}
		msg = model.Message{ID: uuid.New(), ChatID: chatID, SenderID: sender, Text: text, CreatedAt: now}
		c.Messages = append(c.Messages, msg)
		c.LastMessage = &model.MessagePreview{Text: text, SenderID: sender, CreatedAt: now}
		c.Touch(now)
		return nil
	})
	if err != nil {
		return model.Message{}, err
	}

	metrics.ChatMessagesTotal.Inc()
	e.out.Publish(chatID, msg)
	unlock()
	e.events.Publish(ctx, activity.Event{Kind: activity.ChatMessageCreated, EntityID: chatID, ActorID: sender, At: msg.CreatedAt})
	return msg, nil
}

// MarkRead marks every message from others as read by viewer and returns how
// many changed. Repeating it changes nothing.
func (e *Engine) MarkRead(ctx context.Context, chatID, viewer uuid.UUID) (int, error) {
	n := 0
	_, err := e.store.Chats().Update(ctx, chatID, func(c *model.Chat) error {
		if c.IsDeleted {
			return apperr.E(apperr.NotFound, "chat not found")
		}
		if !c.IsParticipant(viewer) {
			return apperr.E(apperr.NotAParticipant, "you are not a participant of this chat")
		}
		n = c.MarkRead(viewer)
		return nil
	})
	return n, err
}

// Get returns a chat the viewer participates in.
func (e *Engine) Get(ctx context.Context, chatID, viewer uuid.UUID) (model.Chat, error) {
	c, err := e.visible(ctx, chatID)
	if err != nil {
		return model.Chat{}, err
	}
	if !c.IsParticipant(viewer) {
		return model.Chat{}, apperr.E(apperr.NotAParticipant, "you are not a participant of this chat")
	}
	return c, nil
}

func (e *Engine) Messages(ctx context.Context, chatID, viewer uuid.UUID) ([]model.Message, error) {
	c, err := e.Get(ctx, chatID, viewer)
	if err != nil {
		return nil, err
	}
	return c.Messages, nil
}

// List returns the viewer's chats, most recently active first.
func (e *Engine) List(ctx context.Context, viewer uuid.UUID) ([]model.Chat, error) {
	return e.store.Chats().ListForParticipant(ctx, viewer)
}

// Delete soft-deletes a chat. Group chats may only be deleted by the group's
// author. A deleted chat accepts no further messages.
func (e *Engine) Delete(ctx context.Context, chatID, viewer uuid.UUID) error {
	c, err := e.Get(ctx, chatID, viewer)
	if err != nil {
		return err
	}
	if c.Type == model.ChatGroup && c.GroupID != nil {
		g, err := e.store.Groups().Get(ctx, *c.GroupID)
		if err == nil && g.AuthorID != viewer {
			return apperr.E(apperr.NotAuthorized, "only the group author can delete the group chat")
		}
	}
	_, err = e.store.Chats().Update(ctx, chatID, func(c *model.Chat) error {
		if c.IsDeleted {
			return apperr.E(apperr.NotFound, "chat not found")
		}
		c.IsDeleted = true
		c.Touch(e.now())
		return nil
	})
	return err
}

// Subscribe attaches a live listener to a chat the viewer participates in.
func (e *Engine) Subscribe(ctx context.Context, chatID, viewer uuid.UUID) (*Subscription, error) {
	if _, err := e.Get(ctx, chatID, viewer); err != nil {
		return nil, err
	}
	return e.hub.Subscribe(chatID, viewer), nil
}

func (e *Engine) visible(ctx context.Context, chatID uuid.UUID) (model.Chat, error) {
	c, err := e.store.Chats().Get(ctx, chatID)
	if err != nil {
		return model.Chat{}, err
	}
	if c.IsDeleted {
		return model.Chat{}, apperr.E(apperr.NotFound, "chat not found")
	}
	return c, nil
}
