package model

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

type ChatType string

const (
	ChatPrivate ChatType = "private"
	ChatGroup   ChatType = "group"
)

type Message struct {
	ID        uuid.UUID   `json:"id"`
	ChatID    uuid.UUID   `json:"chatId"`
	SenderID  uuid.UUID   `json:"senderId"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"createdAt"`
	ReadBy    []uuid.UUID `json:"readBy"`
}

func (m Message) ReadByUser(id uuid.UUID) bool { return containsID(m.ReadBy, id) }

type MessagePreview struct {
	Text      string    `json:"text"`
	SenderID  uuid.UUID `json:"senderId"`
	CreatedAt time.Time `json:"createdAt"`
}

type Chat struct {
	Meta
	Type         ChatType        `json:"type"`
	Participants []Member        `json:"participants"`
	PairKey      string          `json:"pairKey,omitempty"`
	GroupID      *uuid.UUID      `json:"groupId,omitempty"`
	GroupName    string          `json:"groupName,omitempty"`
	Messages     []Message       `json:"messages"`
	LastMessage  *MessagePreview `json:"lastMessage,omitempty"`
}

func (c Chat) Header() Header {
	return Header{
		ID: c.ID, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
		Deleted: c.IsDeleted, Active: true,
	}
}

func (c Chat) Clone() Chat {
	c.Participants = cloneMembers(c.Participants)
	if c.GroupID != nil {
		g := *c.GroupID
		c.GroupID = &g
	}
	if c.LastMessage != nil {
		lm := *c.LastMessage
		c.LastMessage = &lm
	}
	if c.Messages != nil {
		msgs := make([]Message, len(c.Messages))
		for i, m := range c.Messages {
			m.ReadBy = cloneIDs(m.ReadBy)
			msgs[i] = m
		}
		c.Messages = msgs
	}
	return c
}

func (c Chat) IsParticipant(id uuid.UUID) bool { return hasMember(c.Participants, id) }

func (c *Chat) AddParticipant(id uuid.UUID, at time.Time) bool {
	if c.IsParticipant(id) {
		return false
	}
	c.Participants = append(c.Participants, Member{UserID: id, JoinedAt: at})
	return true
}

// OtherParticipant returns the counterpart of viewer in a private chat.
func (c Chat) OtherParticipant(viewer uuid.UUID) (uuid.UUID, bool) {
	if c.Type != ChatPrivate {
		return uuid.Nil, false
	}
	for _, m := range c.Participants {
		if m.UserID != viewer {
			return m.UserID, true
		}
	}
	return uuid.Nil, false
}

// UnreadCount counts messages from others that viewer has not read.
func (c Chat) UnreadCount(viewer uuid.UUID) int {
	n := 0
	for _, m := range c.Messages {
		if m.SenderID != viewer && !m.ReadByUser(viewer) {
			n++
		}
	}
	return n
}

// MarkRead records viewer as a reader of every message sent by someone else.
// It reports how many messages changed.
func (c *Chat) MarkRead(viewer uuid.UUID) int {
	n := 0
	for i := range c.Messages {
		m := &c.Messages[i]
		if m.SenderID != viewer && !m.ReadByUser(viewer) {
			m.ReadBy = append(m.ReadBy, viewer)
			n++
		}
	}
	return n
}

// CanonicalPair is the order-independent key of a private chat between a and b.
func CanonicalPair(a, b uuid.UUID) string {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return a.String() + ":" + b.String()
}
