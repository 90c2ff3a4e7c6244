package feed

import (
	"context"
	"strings"

	"github.com/bwise1/sosedi/internal/apperr"
	"github.com/bwise1/sosedi/internal/model"
	"github.com/bwise1/sosedi/internal/projection"
	"github.com/google/uuid"
)

type AdvertisementInput struct {
	Title       string   `json:"title" schema:"title" validate:"required,notblank,max=200"`
	Description string   `json:"description" schema:"description" validate:"required,notblank,max=5000"`
	Type        string   `json:"type" schema:"type" validate:"required,oneof=sale free"`
	Price       *string  `json:"price" schema:"price" validate:"omitempty,max=50"`
	Latitude    *float64 `json:"latitude" schema:"latitude" validate:"required,latitude"`
	Longitude   *float64 `json:"longitude" schema:"longitude" validate:"required,longitude"`
	ImagePath   string   `json:"-" schema:"-"`
}

type AdvertisementPatch struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Price       *string `json:"price" validate:"omitempty,max=50"`
	IsActive    *bool   `json:"isActive"`
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func (s *Service) CreateAdvertisement(ctx context.Context, author model.User, in AdvertisementInput) (projection.AdvertisementView, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Price = trimmed(in.Price)
	if err := validate(in); err != nil {
		return projection.AdvertisementView{}, err
	}
	p, err := point(in.Latitude, in.Longitude)
	if err != nil {
		return projection.AdvertisementView{}, err
	}

	kind := model.AdType(in.Type)
	price := in.Price
	switch kind {
	case model.AdSale:
		if price == nil {
			return projection.AdvertisementView{}, apperr.E(apperr.InvalidInput, "price is required for items on sale")
		}
	case model.AdFree:
		price = nil
	}

	a := author.Author()
	ad := model.Advertisement{
		Meta:            model.NewMeta(s.now()),
		Title:           in.Title,
		Description:     in.Description,
		Type:            kind,
		Price:           price,
		AuthorID:        a.ID,
		AuthorName:      a.Name,
		AuthorAddress:   a.Address,
		Location:        model.NewGeoPoint(*p),
		ImagePath:       in.ImagePath,
		InterestedUsers: []model.Interest{},
		IsActive:        true,
	}
	unlock := s.locks.Lock(ad.ID)
	defer unlock()
	if err := s.store.Advertisements().Insert(ctx, ad); err != nil {
		return projection.AdvertisementView{}, err
	}
	index(s.ads, ad.Header())
	return projection.Advertisement(ad, author.ID), nil
}

func (s *Service) GetAdvertisement(ctx context.Context, id, viewer uuid.UUID) (projection.AdvertisementView, error) {
	ad, err := s.store.Advertisements().Get(ctx, id)
	if err != nil {
		return projection.AdvertisementView{}, err
	}
	return projection.Advertisement(ad, viewer), nil
}

// UpdateAdvertisement edits an ad. Deactivating hides it from nearby results
// without deleting it.
func (s *Service) UpdateAdvertisement(ctx context.Context, id, viewer uuid.UUID, patch AdvertisementPatch) (projection.AdvertisementView, error) {
	if err := validate(patch); err != nil {
		return projection.AdvertisementView{}, err
	}
	unlock := s.locks.Lock(id)
	defer unlock()
	ad, err := s.store.Advertisements().Update(ctx, id, func(a *model.Advertisement) error {
		if err := editable(a.Header(), viewer, "advertisement"); err != nil {
			return err
		}
		if patch.Title != nil {
			a.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Description != nil {
			a.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.Price != nil {
			if a.Type == model.AdFree {
				return apperr.E(apperr.InvalidInput, "free items have no price")
			}
			price := trimmed(patch.Price)
			if price == nil {
				return apperr.E(apperr.InvalidInput, "price is required for items on sale")
			}
			a.Price = price
		}
		if patch.IsActive != nil {
			a.IsActive = *patch.IsActive
		}
		a.Touch(s.now())
		return nil
	})
	if err != nil {
		return projection.AdvertisementView{}, err
	}
	index(s.ads, ad.Header())
	return projection.Advertisement(ad, viewer), nil
}

func (s *Service) DeleteAdvertisement(ctx context.Context, id, viewer uuid.UUID) error {
	unlock := s.locks.Lock(id)
	defer unlock()
	ad, err := s.store.Advertisements().Update(ctx, id, func(a *model.Advertisement) error {
		if err := editable(a.Header(), viewer, "advertisement"); err != nil {
			return err
		}
		a.IsDeleted = true
		a.Touch(s.now())
		return nil
	})
	if err != nil {
		return err
	}
	index(s.ads, ad.Header())
	return nil
}

// NearbyAdvertisements lists active ads around q.Center, optionally of one type.
func (s *Service) NearbyAdvertisements(ctx context.Context, viewer uuid.UUID, q Query) ([]projection.AdvertisementView, error) {
	var keep func(model.Advertisement) bool
	if q.Type != "" {
		keep = func(a model.Advertisement) bool { return a.Type == q.Type }
	}
	ads, err := nearby(ctx, "advertisements", s.ads, s.store.Advertisements(), q, DefaultRadius, nil, keep)
	if err != nil {
		return nil, err
	}
	return projection.Advertisements(ads, viewer), nil
}
