package model

import (
	"time"

	"github.com/google/uuid"
)

type AdType string

const (
	AdSale AdType = "sale"
	AdFree AdType = "free"
)

func (t AdType) Valid() bool { return t == AdSale || t == AdFree }

type Interest struct {
	UserID       uuid.UUID `json:"userId"`
	InterestedAt time.Time `json:"interestedAt"`
}

type Advertisement struct {
	Meta
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Type            AdType     `json:"type"`
	Price           *string    `json:"price,omitempty"`
	AuthorID        uuid.UUID  `json:"authorId"`
	AuthorName      string     `json:"authorName"`
	AuthorAddress   string     `json:"authorAddress"`
	Location        *GeoPoint  `json:"location,omitempty"`
	ImagePath       string     `json:"imagePath,omitempty"`
	InterestedUsers []Interest `json:"interestedUsers"`
	IsActive        bool       `json:"isActive"`
}

func (a Advertisement) Header() Header {
	return Header{
		ID: a.ID, OwnerID: a.AuthorID, Location: a.Location.Point(),
		CreatedAt: a.CreatedAt, UpdatedAt: a.UpdatedAt,
		Deleted: a.IsDeleted, Active: a.IsActive,
	}
}

func (a Advertisement) Clone() Advertisement {
	if a.Location != nil {
		l := *a.Location
		a.Location = &l
	}
	if a.Price != nil {
		p := *a.Price
		a.Price = &p
	}
	if a.InterestedUsers != nil {
		a.InterestedUsers = append([]Interest(nil), a.InterestedUsers...)
	}
	return a
}

func (a Advertisement) IsInterested(id uuid.UUID) bool {
	for _, in := range a.InterestedUsers {
		if in.UserID == id {
			return true
		}
	}
	return false
}

// ToggleInterest flips id's interest and reports the new state.
func (a *Advertisement) ToggleInterest(id uuid.UUID, at time.Time) bool {
	for i, in := range a.InterestedUsers {
		if in.UserID == id {
			a.InterestedUsers = append(a.InterestedUsers[:i:i], a.InterestedUsers[i+1:]...)
			return false
		}
	}
	a.InterestedUsers = append(a.InterestedUsers, Interest{UserID: id, InterestedAt: at})
	return true
}
