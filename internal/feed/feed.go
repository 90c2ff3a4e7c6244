// Package feed owns the neighbourhood content: profiles, posts, groups,
// advertisements and events. It keeps one proximity index per kind in step
// with the store and answers nearby queries through them.
package feed

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/bwise1/sosedi/internal/activity"
	"github.com/bwise1/sosedi/internal/apperr"
	"github.com/bwise1/sosedi/internal/geo"
	"github.com/bwise1/sosedi/internal/keylock"
	"github.com/bwise1/sosedi/internal/metrics"
	"github.com/bwise1/sosedi/internal/model"
	"github.com/bwise1/sosedi/internal/store"
	"github.com/bwise1/sosedi/util"
	"github.com/google/uuid"
)

// Nearby defaults, in meters and records.
const (
	DefaultRadius      = 500
	DefaultGroupRadius = 1000
	DefaultLimit       = 20
	MaxLimit           = 100
)

// AddressResolver fills in a profile address from coordinates.
type AddressResolver interface {
	Address(ctx context.Context, p geo.Point) (string, error)
}

type Service struct {
	store    store.Store
	resolver AddressResolver
	events   activity.Publisher
	log      *slog.Logger
	now      func() time.Time
	// locks orders the store write and index write of one record.
	locks *keylock.Table[uuid.UUID]

	// in-process indexes, used for collections that are not store.Locators
	users  *geo.Index
	posts  *geo.Index
	groups *geo.Index
	ads    *geo.Index
	evts   *geo.Index
}

type Option func(*Service)

func WithAddressResolver(r AddressResolver) Option { return func(s *Service) { s.resolver = r } }
func WithActivity(p activity.Publisher) Option     { return func(s *Service) { s.events = p } }
func WithLogger(l *slog.Logger) Option             { return func(s *Service) { s.log = l } }

func New(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		events: activity.Nop{},
		log:    slog.Default(),
		now:    time.Now,
		locks:  keylock.New[uuid.UUID](),
		users:  geo.NewIndex(),
		posts:  geo.NewIndex(),
		groups: geo.NewIndex(),
		ads:    geo.NewIndex(),
		evts:   geo.NewIndex(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Warm rebuilds every index from the store. Call it once before serving.
func (s *Service) Warm(ctx context.Context) error {
	start := time.Now()
	if err := warm(ctx, s.store.Users(), s.users); err != nil {
		return err
	}
	if err := warm(ctx, s.store.Posts(), s.posts); err != nil {
		return err
	}
	if err := warm(ctx, s.store.Groups(), s.groups); err != nil {
		return err
	}
	if err := warm(ctx, s.store.Advertisements(), s.ads); err != nil {
		return err
	}
	if err := warm(ctx, s.store.Events(), s.evts); err != nil {
		return err
	}
	s.log.Info("proximity indexes warmed",
		"users", s.users.Len(), "posts", s.posts.Len(), "groups", s.groups.Len(),
		"advertisements", s.ads.Len(), "events", s.evts.Len(), "took", time.Since(start))
	return nil
}

func warm[T model.Record[T]](ctx context.Context, c store.Collection[T], ix *geo.Index) error {
	if _, ok := c.(store.Locator); ok {
		return nil
	}
	return c.Each(ctx, func(v T) error {
		index(ix, v.Header())
		return nil
	})
}

// index keeps ix in step with a record: present iff located and visible.
func index(ix *geo.Index, h model.Header) {
	if h.Location == nil || !h.Visible() {
		ix.Remove(h.ID)
		return
	}
	if err := ix.Put(h.ID, *h.Location, h.CreatedAt); err != nil {
		// stored coordinates are validated on write
		ix.Remove(h.ID)
	}
}

// Query selects records around Center. A nil Radius takes the kind's
// default; a non-positive one matches nothing.
type Query struct {
	Center geo.Point
	Radius *float64
	Limit  int
	// Type filters advertisements by kind when set.
	Type model.AdType
}

func (q Query) normalize(defaultRadius float64) (Query, float64, error) {
	if err := q.Center.Validate(); err != nil {
		return q, 0, err
	}
	radius := defaultRadius
	if q.Radius != nil {
		radius = *q.Radius
	}
	switch {
	case q.Limit < 0:
		return q, 0, apperr.E(apperr.InvalidInput, "limit must not be negative")
	case q.Limit == 0:
		q.Limit = DefaultLimit
	case q.Limit > MaxLimit:
		q.Limit = MaxLimit
	}
	if q.Type != "" && !q.Type.Valid() {
		return q, 0, apperr.E(apperr.InvalidInput, "type must be sale or free")
	}
	return q, radius, nil
}

// nearby runs the index query and loads records in recency order until limit
// visible ones are found.
func nearby[T model.Record[T]](ctx context.Context, kind string, ix *geo.Index, c store.Collection[T],
	q Query, defaultRadius float64, skip func(uuid.UUID) bool, keep func(T) bool) ([]T, error) {
	start := time.Now()
	q, radius, err := q.normalize(defaultRadius)
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	if loc, ok := c.(store.Locator); ok {
		if ids, err = loc.Near(ctx, q.Center, radius); err != nil {
			return nil, err
		}
		if skip != nil {
			ids = slices.DeleteFunc(ids, skip)
		}
	} else {
		var filter func(uuid.UUID) bool
		if skip != nil {
			filter = func(id uuid.UUID) bool { return !skip(id) }
		}
		ids = ix.Query(q.Center, radius, filter)
	}

	out := make([]T, 0, min(q.Limit, len(ids)))
	batch := 2 * q.Limit
	for from := 0; from < len(ids) && len(out) < q.Limit; from += batch {
		recs, err := c.GetMany(ctx, ids[from:min(from+batch, len(ids))])
		if err != nil {
			return nil, err
		}
		for _, r := range recs {
			if !r.Header().Visible() || (keep != nil && !keep(r)) {
				continue
			}
			out = append(out, r)
			if len(out) == q.Limit {
				break
			}
		}
	}

	metrics.NearbyDurationMs.WithLabelValues(kind).Observe(float64(time.Since(start).Microseconds()) / 1000)
	metrics.NearbyResults.WithLabelValues(kind).Observe(float64(len(out)))
	return out, nil
}

// validate runs struct validation and maps failures onto the error kinds.
func validate(v any) error {
	err := util.ValidateStruct(v)
	if err == nil {
		return nil
	}
	if field, tag, ok := util.FirstFailure(err); ok {
		switch tag {
		case "latitude", "longitude":
			return apperr.E(apperr.InvalidCoordinate, "%s is out of range", field)
		case "required", "notblank":
			return apperr.E(apperr.InvalidInput, "%s is required", field)
		default:
			return apperr.E(apperr.InvalidInput, "%s is invalid", field)
		}
	}
	return apperr.Wrap(apperr.InvalidInput, err, "invalid input")
}

// point builds a location from optional latitude/longitude inputs.
func point(lat, lng *float64) (*geo.Point, error) {
	if lat == nil && lng == nil {
		return nil, nil
	}
	if lat == nil || lng == nil {
		return nil, apperr.E(apperr.InvalidInput, "latitude and longitude must be given together")
	}
	p := geo.Point{Lng: *lng, Lat: *lat}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// editable loads the checks shared by author-only mutations.
func editable(h model.Header, viewer uuid.UUID, kind string) error {
	if h.Deleted {
		return apperr.E(apperr.NotFound, "%s not found", kind)
	}
	if h.OwnerID != viewer {
		return apperr.E(apperr.NotAuthorized, "only the author can change this %s", kind)
	}
	return nil
}

func (s *Service) emit(ctx context.Context, kind activity.Kind, entity, actor uuid.UUID, count int) {
	s.events.Publish(ctx, activity.Event{Kind: kind, EntityID: entity, ActorID: actor, Count: count, At: s.now()})
}
