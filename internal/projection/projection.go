// Package projection derives viewer-relative views from stored records.
// Every function is pure: it copies the record and never mutates its input.
package projection

import (
	"time"

	"github.com/bwise1/sosedi/internal/model"
	"github.com/google/uuid"
)

type PostView struct {
	model.Post
	IsLiked       bool `json:"isLiked"`
	LikesCount    int  `json:"likesCount"`
	CommentsCount int  `json:"commentsCount"`
}

func Post(p model.Post, viewer uuid.UUID) PostView {
	return PostView{
		Post:          p.Clone(),
		IsLiked:       p.LikedByUser(viewer),
		LikesCount:    len(p.LikedBy),
		CommentsCount: len(p.Comments),
	}
}

type GroupView struct {
	model.Group
	IsMember    bool `json:"isMember"`
	IsMyGroup   bool `json:"isMyGroup"`
	MemberCount int  `json:"memberCount"`
}

func Group(g model.Group, viewer uuid.UUID) GroupView {
	member := g.IsMember(viewer)
	return GroupView{
		Group:       g.Clone(),
		IsMember:    member,
		IsMyGroup:   member,
		MemberCount: len(g.Members),
	}
}

type AdvertisementView struct {
	model.Advertisement
	IsInterested    bool `json:"isInterested"`
	InterestedCount int  `json:"interestedCount"`
}

func Advertisement(a model.Advertisement, viewer uuid.UUID) AdvertisementView {
	return AdvertisementView{
		Advertisement:   a.Clone(),
		IsInterested:    a.IsInterested(viewer),
		InterestedCount: len(a.InterestedUsers),
	}
}

type EventView struct {
	model.Event
	IsParticipant    bool `json:"isParticipant"`
	ParticipantCount int  `json:"participantCount"`
	IsFull           bool `json:"isFull"`
}

func Event(e model.Event, viewer uuid.UUID) EventView {
	return EventView{
		Event:            e.Clone(),
		IsParticipant:    e.IsParticipant(viewer),
		ParticipantCount: len(e.Participants),
		IsFull:           e.IsFull(),
	}
}

// UserView is a user as shown to any viewer; the external auth subject is hidden.
type UserView struct {
	ID          uuid.UUID       `json:"id"`
	PhoneNumber string          `json:"phoneNumber"`
	FirstName   string          `json:"firstName,omitempty"`
	LastName    string          `json:"lastName,omitempty"`
	DisplayName string          `json:"displayName,omitempty"`
	FullName    string          `json:"fullName"`
	AvatarURL   string          `json:"avatar,omitempty"`
	Address     string          `json:"address"`
	Location    *model.GeoPoint `json:"location,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	IsDeleted   bool            `json:"isDeleted,omitempty"`
}

func User(u model.User) UserView {
	u = u.Clone()
	return UserView{
		ID:          u.ID,
		PhoneNumber: u.PhoneNumber,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		DisplayName: u.DisplayName,
		FullName:    u.FullName(),
		AvatarURL:   u.AvatarURL,
		Address:     u.Address,
		Location:    u.Location,
		CreatedAt:   u.CreatedAt,
		IsDeleted:   u.IsDeleted,
	}
}

type ChatView struct {
	ID           uuid.UUID             `json:"id"`
	Type         model.ChatType        `json:"type"`
	Participants []model.Member        `json:"participants"`
	GroupID      *uuid.UUID            `json:"groupId,omitempty"`
	GroupName    string                `json:"groupName,omitempty"`
	LastMessage  *model.MessagePreview `json:"lastMessage,omitempty"`
	UnreadCount  int                   `json:"unreadCount"`
	OtherUserID  *uuid.UUID            `json:"otherUserId,omitempty"`
	Messages     []model.Message       `json:"messages,omitempty"`
	CreatedAt    time.Time             `json:"createdAt"`
	UpdatedAt    time.Time             `json:"updatedAt"`
}

// Chat builds the list view of c; messages are left out.
func Chat(c model.Chat, viewer uuid.UUID) ChatView {
	c = c.Clone()
	v := ChatView{
		ID:           c.ID,
		Type:         c.Type,
		Participants: c.Participants,
		GroupID:      c.GroupID,
		GroupName:    c.GroupName,
		LastMessage:  c.LastMessage,
		UnreadCount:  c.UnreadCount(viewer),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
	if other, ok := c.OtherParticipant(viewer); ok {
		v.OtherUserID = &other
	}
	return v
}

// ChatWithMessages is Chat plus the full message history.
func ChatWithMessages(c model.Chat, viewer uuid.UUID) ChatView {
	v := Chat(c, viewer)
	v.Messages = c.Clone().Messages
	return v
}

func Posts(ps []model.Post, viewer uuid.UUID) []PostView {
	out := make([]PostView, len(ps))
	for i, p := range ps {
		out[i] = Post(p, viewer)
	}
	return out
}

func Groups(gs []model.Group, viewer uuid.UUID) []GroupView {
	out := make([]GroupView, len(gs))
	for i, g := range gs {
		out[i] = Group(g, viewer)
	}
	return out
}

func Advertisements(as []model.Advertisement, viewer uuid.UUID) []AdvertisementView {
	out := make([]AdvertisementView, len(as))
	for i, a := range as {
		out[i] = Advertisement(a, viewer)
	}
	return out
}

func Events(es []model.Event, viewer uuid.UUID) []EventView {
	out := make([]EventView, len(es))
	for i, e := range es {
		out[i] = Event(e, viewer)
	}
	return out
}

func Users(us []model.User) []UserView {
	out := make([]UserView, len(us))
	for i, u := range us {
		out[i] = User(u)
	}
	return out
}

func Chats(cs []model.Chat, viewer uuid.UUID) []ChatView {
	out := make([]ChatView, len(cs))
	for i, c := range cs {
		out[i] = Chat(c, viewer)
	}
	return out
}
