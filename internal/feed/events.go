package feed

import (
	"context"
	"strings"
	"time"

	"github.com/bwise1/sosedi/internal/apperr"
	"github.com/bwise1/sosedi/internal/model"
	"github.com/bwise1/sosedi/internal/projection"
	"github.com/google/uuid"
)

type EventInput struct {
	Title           string    `json:"title" validate:"required,notblank,max=200"`
	Description     string    `json:"description" validate:"max=5000"`
	Date            time.Time `json:"date" validate:"required"`
	LocationName    string    `json:"location" validate:"required,max=300"`
	Latitude        *float64  `json:"latitude" validate:"required,latitude"`
	Longitude       *float64  `json:"longitude" validate:"required,longitude"`
	MaxParticipants *int      `json:"maxParticipants" validate:"omitempty,min=1"`
	ImageURL        string    `json:"imageUrl" validate:"omitempty,url"`
	VideoURL        string    `json:"videoUrl" validate:"omitempty,url"`
}

type EventPatch struct {
	Title           *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description     *string    `json:"description" validate:"omitempty,max=5000"`
	Date            *time.Time `json:"date"`
	LocationName    *string    `json:"location" validate:"omitempty,min=1,max=300"`
	MaxParticipants *int       `json:"maxParticipants" validate:"omitempty,min=1"`
	ImageURL        *string    `json:"imageUrl" validate:"omitempty,url"`
	VideoURL        *string    `json:"videoUrl" validate:"omitempty,url"`
	IsActive        *bool      `json:"isActive"`
}

func (s *Service) CreateEvent(ctx context.Context, author model.User, in EventInput) (projection.EventView, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.LocationName = strings.TrimSpace(in.LocationName)
	if err := validate(in); err != nil {
		return projection.EventView{}, err
	}
	p, err := point(in.Latitude, in.Longitude)
	if err != nil {
		return projection.EventView{}, err
	}

	now := s.now()
	a := author.Author()
	ev := model.Event{
		Meta:            model.NewMeta(now),
		Title:           in.Title,
		Description:     strings.TrimSpace(in.Description),
		Date:            in.Date,
		LocationName:    in.LocationName,
		Location:        model.NewGeoPoint(*p),
		AuthorID:        a.ID,
		AuthorName:      a.Name,
		AuthorAddress:   a.Address,
		ImageURL:        in.ImageURL,
		VideoURL:        in.VideoURL,
		Participants:    []model.Member{{UserID: a.ID, JoinedAt: now}},
		MaxParticipants: in.MaxParticipants,
		IsActive:        true,
	}
	unlock := s.locks.Lock(ev.ID)
	defer unlock()
	if err := s.store.Events().Insert(ctx, ev); err != nil {
		return projection.EventView{}, err
	}
	index(s.evts, ev.Header())
	return projection.Event(ev, author.ID), nil
}

func (s *Service) GetEvent(ctx context.Context, id, viewer uuid.UUID) (projection.EventView, error) {
	ev, err := s.store.Events().Get(ctx, id)
	if err != nil {
		return projection.EventView{}, err
	}
	return projection.Event(ev, viewer), nil
}

func (s *Service) UpdateEvent(ctx context.Context, id, viewer uuid.UUID, patch EventPatch) (projection.EventView, error) {
	if err := validate(patch); err != nil {
		return projection.EventView{}, err
	}
	unlock := s.locks.Lock(id)
	defer unlock()
	ev, err := s.store.Events().Update(ctx, id, func(e *model.Event) error {
		if err := editable(e.Header(), viewer, "event"); err != nil {
			return err
		}
		if patch.MaxParticipants != nil && *patch.MaxParticipants < len(e.Participants) {
			return apperr.E(apperr.InvalidInput, "maxParticipants is below the current number of participants")
		}
		if patch.Title != nil {
			e.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			e.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Date != nil {
			e.Date = *patch.Date
		}
		if patch.LocationName != nil {
			e.LocationName = strings.TrimSpace(*patch.LocationName)
		}
		if patch.MaxParticipants != nil {
			m := *patch.MaxParticipants
			e.MaxParticipants = &m
		}
		if patch.ImageURL != nil {
			e.ImageURL = *patch.ImageURL
		}
		if patch.VideoURL != nil {
			e.VideoURL = *patch.VideoURL
		}
		if patch.IsActive != nil {
			e.IsActive = *patch.IsActive
		}
		e.Touch(s.now())
		return nil
	})
	if err != nil {
		return projection.EventView{}, err
	}
	index(s.evts, ev.Header())
	return projection.Event(ev, viewer), nil
}

func (s *Service) DeleteEvent(ctx context.Context, id, viewer uuid.UUID) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	ev, err := s.store.Events().Update(ctx, id, func(e *model.Event) error {
		if err := editable(e.Header(), viewer, "event"); err != nil {
			return err
		}
		e.IsDeleted = true
		e.Touch(s.now())
		return nil
	})
	if err != nil {
		return err
	}
	index(s.evts, ev.Header())
	return nil
}

func (s *Service) NearbyEvents(ctx context.Context, viewer uuid.UUID, q Query) ([]projection.EventView, error) {
	events, err := nearby(ctx, "events", s.evts, s.store.Events(), q, DefaultRadius, nil, nil)
	if err != nil {
		return nil, err
	}
	return projection.Events(events, viewer), nil
}
