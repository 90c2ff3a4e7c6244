package feed

import (
	"context"
	"strings"

	"github.com/bwise1/sosedi/internal/apperr"
	"github.com/bwise1/sosedi/internal/model"
	"github.com/bwise1/sosedi/internal/projection"
	"github.com/google/uuid"
)

// ProfileInput carries profile fields; nil fields are left unchanged.
type ProfileInput struct {
	PhoneNumber *string  `json:"phoneNumber" validate:"omitempty,min=3,max=32"`
	FirstName   *string  `json:"firstName" validate:"omitempty,max=100"`
	LastName    *string  `json:"lastName" validate:"omitempty,max=100"`
	DisplayName *string  `json:"displayName" validate:"omitempty,max=100"`
	Address     *string  `json:"address" validate:"omitempty,max=300"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,latitude"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,longitude"`
}

func (in ProfileInput) apply(u *model.User) error {
	if in.PhoneNumber != nil {
		u.PhoneNumber = strings.TrimSpace(*in.PhoneNumber)
	}
	if in.FirstName != nil {
		u.FirstName = strings.TrimSpace(*in.FirstName)
	}
	if in.LastName != nil {
		u.LastName = strings.TrimSpace(*in.LastName)
	}
	if in.DisplayName != nil {
		u.DisplayName = strings.TrimSpace(*in.DisplayName)
	}
	if in.Address != nil {
		u.Address = strings.TrimSpace(*in.Address)
	}
	p, err := point(in.Latitude, in.Longitude)
	if err != nil {
		return err
	}
	if p != nil {
		u.Location = model.NewGeoPoint(*p)
	}
	return nil
}

// SaveProfile creates the user for an authenticated subject on first call
// and updates it afterwards. phone is the number vouched for by the
// identity provider, used when the input has none.
func (s *Service) SaveProfile(ctx context.Context, authUID, phone string, in ProfileInput) (model.User, error) {
	if err := validate(in); err != nil {
		return model.User{}, err
	}

	existing, err := s.store.Users().GetByAuthUID(ctx, authUID)
	switch {
	case err == nil:
		if existing.IsDeleted {
			return model.User{}, apperr.E(apperr.NotFound, "user not found")
		}
		return s.UpdateProfile(ctx, existing.ID, in)
	case apperr.KindOf(err) != apperr.NotFound:
		return model.User{}, err
	}

	now := s.now()
	u := model.User{Meta: model.NewMeta(now), AuthUID: authUID, PhoneNumber: phone}
	if err := in.apply(&u); err != nil {
		return model.User{}, err
	}
	if u.PhoneNumber == "" {
		return model.User{}, apperr.E(apperr.InvalidInput, "phoneNumber is required")
	}
	if u.Location == nil {
		return model.User{}, apperr.E(apperr.InvalidInput, "latitude and longitude are required")
	}
	if u.Address == "" {
		u.Address = s.resolveAddress(ctx, u)
	}
	if u.Address == "" {
		return model.User{}, apperr.E(apperr.InvalidInput, "address is required")
	}

	unlock := s.locks.Lock(u.ID)
	defer unlock()
	if err := s.store.Users().Insert(ctx, u); err != nil {
		return model.User{}, err
	}
	index(s.users, u.Header())
	return u, nil
}

func (s *Service) resolveAddress(ctx context.Context, u model.User) string {
	if s.resolver == nil || u.Location == nil {
		return ""
	}
	addr, err := s.resolver.Address(ctx, u.Location.Coordinates)
	if err != nil {
		s.log.Warn("reverse geocoding failed", "user_id", u.ID, "error", err)
		return ""
	}
	return addr
}

func (s *Service) UpdateProfile(ctx context.Context, userID uuid.UUID, in ProfileInput) (model.User, error) {
	if err := validate(in); err != nil {
		return model.User{}, err
	}
	unlock := s.locks.Lock(userID)
	defer unlock()
	u, err := s.store.Users().Update(ctx, userID, func(u *model.User) error {
		if u.IsDeleted {
			return apperr.E(apperr.NotFound, "user not found")
		}
		if err := in.apply(u); err != nil {
			return err
		}
		if u.PhoneNumber == "" {
			return apperr.E(apperr.InvalidInput, "phoneNumber cannot be empty")
		}
		u.Touch(s.now())
		return nil
	})
	if err != nil {
		return model.User{}, err
	}
	index(s.users, u.Header())
	return u, nil
}

func (s *Service) SetAvatar(ctx context.Context, userID uuid.UUID, ref string) (model.User, error) {
	return s.store.Users().Update(ctx, userID, func(u *model.User) error {
		if u.IsDeleted {
			return apperr.E(apperr.NotFound, "user not found")
		}
		u.AvatarURL = ref
		u.Touch(s.now())
		return nil
	})
}

// DeleteUser soft-deletes a user; their content stays.
func (s *Service) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	unlock := s.locks.Lock(userID)
	defer unlock()
	u, err := s.store.Users().Update(ctx, userID, func(u *model.User) error {
		if u.IsDeleted {
			return apperr.E(apperr.NotFound, "user not found")
		}
		u.IsDeleted = true
		u.Touch(s.now())
		return nil
	})
	if err != nil {
		return err
	}
	index(s.users, u.Header())
	return nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (model.User, error) {
	return s.store.Users().Get(ctx, id)
}

func (s *Service) UserByAuthUID(ctx context.Context, uid string) (model.User, error) {
	return s.store.Users().GetByAuthUID(ctx, uid)
}

// NearbyUsers lists other users around q.Center.
func (s *Service) NearbyUsers(ctx context.Context, viewer uuid.UUID, q Query) ([]projection.UserView, error) {
	users, err := nearby(ctx, "users", s.users, s.store.Users(), q, DefaultRadius,
		func(id uuid.UUID) bool { return id == viewer }, nil)
	if err != nil {
		return nil, err
	}
	return projection.Users(users), nil
}
