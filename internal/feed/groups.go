package feed

import (
	"context"
	"strings"

	"github.com/bwise1/sosedi/internal/apperr"
	"github.com/bwise1/sosedi/internal/model"
	"github.com/bwise1/sosedi/internal/projection"
	"github.com/google/uuid"
)

type GroupInput struct {
	Name        string   `json:"name" validate:"required,notblank,max=100"`
	Description string   `json:"description" validate:"required,notblank,max=2000"`
	Latitude    *float64 `json:"latitude" validate:"required,latitude"`
	Longitude   *float64 `json:"longitude" validate:"required,longitude"`
	IsPrivate   bool     `json:"isPrivate"`
	MaxDistance *float64 `json:"maxDistance" validate:"omitempty,gt=0"`
}

type GroupPatch struct {
	Name        *string  `json:"name" validate:"omitempty,min=1,max=100"`
	Description *string  `json:"description" validate:"omitempty,max=2000"`
	IsPrivate   *bool    `json:"isPrivate"`
	MaxDistance *float64 `json:"maxDistance" validate:"omitempty,gt=0"`
}

type GroupPostInput struct {
	Text      string `json:"text" schema:"text" validate:"required,notblank,max=5000"`
	ImagePath string `json:"-" schema:"-"`
}

func (s *Service) CreateGroup(ctx context.Context, author model.User, in GroupInput) (projection.GroupView, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := validate(in); err != nil {
		return projection.GroupView{}, err
	}
	p, err := point(in.Latitude, in.Longitude)
	if err != nil {
		return projection.GroupView{}, err
	}

	now := s.now()
	a := author.Author()
	g := model.Group{
		Meta:          model.NewMeta(now),
		Name:          in.Name,
		Description:   in.Description,
		AuthorID:      a.ID,
		AuthorName:    a.Name,
		AuthorAddress: a.Address,
		Location:      model.NewGeoPoint(*p),
		Members:       []model.Member{{UserID: a.ID, JoinedAt: now}},
		Posts:         []model.GroupPost{},
		IsPrivate:     in.IsPrivate,
		MaxDistance:   model.DefaultGroupDistance,
	}
	if in.MaxDistance != nil {
		g.MaxDistance = *in.MaxDistance
	}
	unlock := s.locks.Lock(g.ID)
	defer unlock()
	if err := s.store.Groups().Insert(ctx, g); err != nil {
		return projection.GroupView{}, err
	}
	index(s.groups, g.Header())
	return projection.Group(g, author.ID), nil
}

func (s *Service) GetGroup(ctx context.Context, id, viewer uuid.UUID) (projection.GroupView, error) {
	g, err := s.store.Groups().Get(ctx, id)
	if err != nil {
		return projection.GroupView{}, err
	}
	return projection.Group(g, viewer), nil
}

func (s *Service) UpdateGroup(ctx context.Context, id, viewer uuid.UUID, patch GroupPatch) (projection.GroupView, error) {
	if err := validate(patch); err != nil {
		return projection.GroupView{}, err
	}
	g, err := s.store.Groups().Update(ctx, id, func(g *model.Group) error {
		if err := editable(g.Header(), viewer, "group"); err != nil {
			return err
		}
		if patch.Name != nil {
			g.Name = strings.TrimSpace(*patch.Name)
		}
		if patch.Description != nil {
			g.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.IsPrivate != nil {
			g.IsPrivate = *patch.IsPrivate
		}
		if patch.MaxDistance != nil {
			g.MaxDistance = *patch.MaxDistance
		}
		g.Touch(s.now())
		return nil
	})
	if err != nil {
		return projection.GroupView{}, err
	}
	return projection.Group(g, viewer), nil
}

func (s *Service) DeleteGroup(ctx context.Context, id, viewer uuid.UUID) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	g, err := s.store.Groups().Update(ctx, id, func(g *model.Group) error {
		if err := editable(g.Header(), viewer, "group"); err != nil {
			return err
		}
		g.IsDeleted = true
		g.Touch(s.now())
		return nil
	})
	if err != nil {
		return err
	}
	index(s.groups, g.Header())
	return nil
}

// AddGroupPost publishes a post inside a group. Only members may post.
func (s *Service) AddGroupPost(ctx context.Context, groupID uuid.UUID, author model.User, in GroupPostInput) (model.GroupPost, error) {
	in.Text = strings.TrimSpace(in.Text)
	if err := validate(in); err != nil {
		return model.GroupPost{}, err
	}
	var gp model.GroupPost
	_, err := s.store.Groups().Update(ctx, groupID, func(g *model.Group) error {
		if g.IsDeleted {
			return apperr.E(apperr.NotFound, "group not found")
		}
		if !g.IsMember(author.ID) {
			return apperr.E(apperr.NotAMember, "only group members can post")
		}
		now := s.now()
		gp = model.GroupPost{
			ID: uuid.New(), AuthorID: author.ID, AuthorName: author.FullName(),
			Text: in.Text, ImagePath: in.ImagePath, CreatedAt: now,
		}
		g.Posts = append(g.Posts, gp)
		g.Touch(now)
		return nil
	})
	if err != nil {
		return model.GroupPost{}, err
	}
	return gp, nil
}

func (s *Service) NearbyGroups(ctx context.Context, viewer uuid.UUID, q Query) ([]projection.GroupView, error) {
	groups, err := nearby(ctx, "groups", s.groups, s.store.Groups(), q, DefaultGroupRadius, nil, nil)
	if err != nil {
		return nil, err
	}
	return projection.Groups(groups, viewer), nil
}
