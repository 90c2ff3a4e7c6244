package model

import (
	"time"

	"github.com/google/uuid"
)

type Event struct {
	Meta
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Date            time.Time `json:"date"`
	LocationName    string    `json:"locationName"`
	Location        *GeoPoint `json:"coordinates,omitempty"`
	AuthorID        uuid.UUID `json:"authorId"`
	AuthorName      string    `json:"authorName"`
	AuthorAddress   string    `json:"authorAddress"`
	ImageURL        string    `json:"imageUrl,omitempty"`
	VideoURL        string    `json:"videoUrl,omitempty"`
	Participants    []Member  `json:"participants"`
	MaxParticipants *int      `json:"maxParticipants,omitempty"`
	IsActive        bool      `json:"isActive"`
}

func (e Event) Header() Header {
	return Header{
		ID: e.ID, OwnerID: e.AuthorID, Location: e.Location.Point(),
		CreatedAt: e.CreatedAt, UpdatedAt: e.UpdatedAt,
		Deleted: e.IsDeleted, Active: e.IsActive,
	}
}

func (e Event) Clone() Event {
	if e.Location != nil {
		l := *e.Location
		e.Location = &l
	}
	if e.MaxParticipants != nil {
		m := *e.MaxParticipants
		e.MaxParticipants = &m
	}
	e.Participants = cloneMembers(e.Participants)
	return e
}

func (e Event) IsParticipant(id uuid.UUID) bool { return hasMember(e.Participants, id) }

// IsFull is false for events without a capacity.
func (e Event) IsFull() bool {
	return e.MaxParticipants != nil && len(e.Participants) >= *e.MaxParticipants
}

func (e *Event) Join(id uuid.UUID, at time.Time) {
	e.Participants = append(e.Participants, Member{UserID: id, JoinedAt: at})
}

func (e *Event) Leave(id uuid.UUID) bool {
	var ok bool
	e.Participants, ok = removeMember(e.Participants, id)
	return ok
}
