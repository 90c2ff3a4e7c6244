package model

import (
	"strings"

	"github.com/google/uuid"
)

type User struct {
	Meta
	AuthUID     string    `json:"authUid"`
	PhoneNumber string    `json:"phoneNumber"`
	FirstName   string    `json:"firstName,omitempty"`
	LastName    string    `json:"lastName,omitempty"`
	DisplayName string    `json:"displayName,omitempty"`
	AvatarURL   string    `json:"avatar,omitempty"`
	Address     string    `json:"address"`
	Location    *GeoPoint `json:"location,omitempty"`
}

func (u User) Header() Header {
	return Header{
		ID: u.ID, OwnerID: u.ID, Location: u.Location.Point(),
		CreatedAt: u.CreatedAt, UpdatedAt: u.UpdatedAt,
		Deleted: u.IsDeleted, Active: true,
	}
}

func (u User) Clone() User {
	if u.Location != nil {
		l := *u.Location
		u.Location = &l
	}
	return u
}

// FullName is what other users see as the author of content.
func (u User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	switch {
	case name != "":
		return name
	case u.DisplayName != "":
		return u.DisplayName
	default:
		return u.PhoneNumber
	}
}

// Author is the denormalised author snapshot copied onto content.
type Author struct {
	ID      uuid.UUID
	Name    string
	Address string
}

func (u User) Author() Author {
	return Author{ID: u.ID, Name: u.FullName(), Address: u.Address}
}
