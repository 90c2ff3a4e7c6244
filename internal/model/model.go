package model

import (
	"time"

	"github.com/bwise1/sosedi/internal/geo"
	"github.com/google/uuid"
)

// Meta is embedded by every stored record.
type Meta struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	IsDeleted bool      `json:"isDeleted"`
}

func (m *Meta) Touch(now time.Time) { m.UpdatedAt = now }

// NewMeta stamps a fresh id and creation time.
func NewMeta(now time.Time) Meta {
	return Meta{ID: uuid.New(), CreatedAt: now, UpdatedAt: now}
}

// GeoPoint is a GeoJSON point; Coordinates are [lng, lat].
type GeoPoint struct {
	Type        string    `json:"type"`
	Coordinates geo.Point `json:"coordinates"`
}

func NewGeoPoint(p geo.Point) *GeoPoint {
	return &GeoPoint{Type: "Point", Coordinates: p}
}

func (g *GeoPoint) Point() *geo.Point {
	if g == nil {
		return nil
	}
	p := g.Coordinates
	return &p
}

// Header is the kind-independent view of a record used by stores and indexes.
type Header struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Location  *geo.Point
	CreatedAt time.Time
	UpdatedAt time.Time
	Deleted   bool
	Active    bool
}

// Visible reports whether the record may appear in listings and nearby results.
func (h Header) Visible() bool { return !h.Deleted && h.Active }

// Record is implemented by every entity kind.
type Record[T any] interface {
	Header() Header
	Clone() T
}

// Member is a user's membership in a group, event or chat.
type Member struct {
	UserID   uuid.UUID `json:"userId"`
	JoinedAt time.Time `json:"joinedAt"`
}

func cloneMembers(in []Member) []Member {
	if in == nil {
		return nil
	}
	return append([]Member(nil), in...)
}

func cloneIDs(in []uuid.UUID) []uuid.UUID {
	if in == nil {
		return nil
	}
	return append([]uuid.UUID(nil), in...)
}

func hasMember(ms []Member, id uuid.UUID) bool {
	for _, m := range ms {
		if m.UserID == id {
			return true
		}
	}
	return false
}

func removeMember(ms []Member, id uuid.UUID) ([]Member, bool) {
	for i, m := range ms {
		if m.UserID == id {
			return append(ms[:i:i], ms[i+1:]...), true
		}
	}
	return ms, false
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}
