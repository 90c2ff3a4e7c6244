package model

import (
	"time"

	"github.com/google/uuid"
)

type Comment struct {
	ID         uuid.UUID `json:"id"`
	AuthorID   uuid.UUID `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Post struct {
	Meta
	AuthorID      uuid.UUID   `json:"authorId"`
	AuthorName    string      `json:"authorName"`
	AuthorAddress string      `json:"authorAddress"`
	Text          string      `json:"text"`
	ImagePath     string      `json:"imagePath,omitempty"`
	Location      *GeoPoint   `json:"location,omitempty"`
	LikedBy       []uuid.UUID `json:"likedBy"`
	Comments      []Comment   `json:"comments"`
}

func (p Post) Header() Header {
	return Header{
		ID: p.ID, OwnerID: p.AuthorID, Location: p.Location.Point(),
		CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt,
		Deleted: p.IsDeleted, Active: true,
	}
}

func (p Post) Clone() Post {
	if p.Location != nil {
		l := *p.Location
		p.Location = &l
	}
	p.LikedBy = cloneIDs(p.LikedBy)
	if p.Comments != nil {
		p.Comments = append([]Comment(nil), p.Comments...)
	}
	return p
}

func (p Post) LikedByUser(id uuid.UUID) bool { return containsID(p.LikedBy, id) }

// ToggleLike flips id's like and reports the new state.
func (p *Post) ToggleLike(id uuid.UUID) bool {
	for i, x := range p.LikedBy {
		if x == id {
			p.LikedBy = append(p.LikedBy[:i:i], p.LikedBy[i+1:]...)
			return false
		}
	}
	p.LikedBy = append(p.LikedBy, id)
	return true
}
