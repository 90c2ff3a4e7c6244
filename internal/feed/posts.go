package feed

import (
	"context"
	"strings"

	"github.com/bwise1/sosedi/internal/activity"
	"github.com/bwise1/sosedi/internal/apperr"
	"github.com/bwise1/sosedi/internal/model"
	"github.com/bwise1/sosedi/internal/projection"
	"github.com/google/uuid"
)

type PostInput struct {
	Text      string   `json:"text" schema:"text" validate:"required,notblank,max=5000"`
	Latitude  *float64 `json:"latitude" schema:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" schema:"longitude" validate:"required,longitude"`
	ImagePath string   `json:"-" schema:"-"`
}

type PostPatch struct {
	Text *string `json:"text" validate:"omitempty,min=1,max=5000"`
}

type CommentInput struct {
	Text string `json:"text" validate:"required,notblank,max=2000"`
}

func (s *Service) CreatePost(ctx context.Context, author model.User, in PostInput) (projection.PostView, error) {
	in.Text = strings.TrimSpace(in.Text)
	if err := validate(in); err != nil {
		return projection.PostView{}, err
	}
	p, err := point(in.Latitude, in.Longitude)
	if err != nil {
		return projection.PostView{}, err
	}

	a := author.Author()
	post := model.Post{
		Meta:          model.NewMeta(s.now()),
		AuthorID:      a.ID,
		AuthorName:    a.Name,
		AuthorAddress: a.Address,
		Text:          in.Text,
		ImagePath:     in.ImagePath,
		Location:      model.NewGeoPoint(*p),
		LikedBy:       []uuid.UUID{},
		Comments:      []model.Comment{},
	}
	unlock := s.locks.Lock(post.ID)
	defer unlock()
	if err := s.store.Posts().Insert(ctx, post); err != nil {
		return projection.PostView{}, err
	}
	index(s.posts, post.Header())
	return projection.Post(post, author.ID), nil
}

// GetPost returns a post by id, including a soft-deleted one.
func (s *Service) GetPost(ctx context.Context, id, viewer uuid.UUID) (projection.PostView, error) {
	p, err := s.store.Posts().Get(ctx, id)
	if err != nil {
		return projection.PostView{}, err
	}
	return projection.Post(p, viewer), nil
}

func (s *Service) UpdatePost(ctx context.Context, id, viewer uuid.UUID, patch PostPatch) (projection.PostView, error) {
	if patch.Text != nil {
		t := strings.TrimSpace(*patch.Text)
		patch.Text = &t
	}
	if err := validate(patch); err != nil {
		return projection.PostView{}, err
	}
	p, err := s.store.Posts().Update(ctx, id, func(p *model.Post) error {
		if err := editable(p.Header(), viewer, "post"); err != nil {
			return err
		}
		if patch.Text != nil {
			p.Text = *patch.Text
		}
		p.Touch(s.now())
		return nil
	})
	if err != nil {
		return projection.PostView{}, err
	}
	return projection.Post(p, viewer), nil
}

func (s *Service) DeletePost(ctx context.Context, id, viewer uuid.UUID) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	p, err := s.store.Posts().Update(ctx, id, func(p *model.Post) error {
		if err := editable(p.Header(), viewer, "post"); err != nil {
			return err
		}
		p.IsDeleted = true
		p.Touch(s.now())
		return nil
	})
	if err != nil {
		return err
	}
	index(s.posts, p.Header())
	return nil
}

func (s *Service) AddComment(ctx context.Context, postID uuid.UUID, author model.User, in CommentInput) (model.Comment, error) {
	in.Text = strings.TrimSpace(in.Text)
	if err := validate(in); err != nil {
		return model.Comment{}, err
	}
	var c model.Comment
	p, err := s.store.Posts().Update(ctx, postID, func(p *model.Post) error {
		if p.IsDeleted {
			return apperr.E(apperr.NotFound, "post not found")
		}
		now := s.now()
		c = model.Comment{ID: uuid.New(), AuthorID: author.ID, AuthorName: author.FullName(), Text: in.Text, CreatedAt: now}
		p.Comments = append(p.Comments, c)
		p.Touch(now)
		return nil
	})
	if err != nil {
		return model.Comment{}, err
	}
	s.emit(ctx, activity.PostCommented, postID, author.ID, len(p.Comments))
	return c, nil
}

func (s *Service) NearbyPosts(ctx context.Context, viewer uuid.UUID, q Query) ([]projection.PostView, error) {
	posts, err := nearby(ctx, "posts", s.posts, s.store.Posts(), q, DefaultRadius, nil, nil)
	if err != nil {
		return nil, err
	}
	return projection.Posts(posts, viewer), nil
}
