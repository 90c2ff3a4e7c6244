package model

import (
	"time"

	"github.com/google/uuid"
)

// DefaultGroupDistance is the reach of a group in meters when none is given.
const DefaultGroupDistance = 1000

type GroupPost struct {
	ID         uuid.UUID `json:"id"`
	AuthorID   uuid.UUID `json:"authorId"`
	AuthorName string    `json:"authorName"`
	Text       string    `json:"text"`
	ImagePath  string    `json:"imagePath,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Group struct {
	Meta
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	AuthorID      uuid.UUID   `json:"authorId"`
	AuthorName    string      `json:"authorName"`
	AuthorAddress string      `json:"authorAddress"`
	Location      *GeoPoint   `json:"location,omitempty"`
	Members       []Member    `json:"members"`
	Posts         []GroupPost `json:"posts"`
	IsPrivate     bool        `json:"isPrivate"`
	MaxDistance   float64     `json:"maxDistance"`
}

func (g Group) Header() Header {
	return Header{
		ID: g.ID, OwnerID: g.AuthorID, Location: g.Location.Point(),
		CreatedAt: g.CreatedAt, UpdatedAt: g.UpdatedAt,
		Deleted: g.IsDeleted, Active: true,
	}
}

func (g Group) Clone() Group {
	if g.Location != nil {
		l := *g.Location
		g.Location = &l
	}
	g.Members = cloneMembers(g.Members)
	if g.Posts != nil {
		g.Posts = append([]GroupPost(nil), g.Posts...)
	}
	return g
}

func (g Group) IsMember(id uuid.UUID) bool { return hasMember(g.Members, id) }

// Join adds id unless already a member; it reports whether anything changed.
func (g *Group) Join(id uuid.UUID, at time.Time) bool {
	if g.IsMember(id) {
		return false
	}
	g.Members = append(g.Members, Member{UserID: id, JoinedAt: at})
	return true
}

func (g *Group) Leave(id uuid.UUID) bool {
	var ok bool
	g.Members, ok = removeMember(g.Members, id)
	return ok
}
