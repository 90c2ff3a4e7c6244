package feed

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/bwise1/sosedi/internal/geo"
	"github.com/bwise1/sosedi/internal/model"
	"github.com/bwise1/sosedi/internal/store"
	"github.com/bwise1/sosedi/internal/store/memory"
	"github.com/google/uuid"
)

// overlay swaps individual collections of a store.
type overlay struct {
	store.Store
	posts store.Collection[model.Post]
	ads   store.Collection[model.Advertisement]
}

func (o overlay) Posts() store.Collection[model.Post] {
	if o.posts != nil {
		return o.posts
	}
	return o.Store.Posts()
}

func (o overlay) Advertisements() store.Collection[model.Advertisement] {
	if o.ads != nil {
		return o.ads
	}
	return o.Store.Advertisements()
}

// stalledAds holds back the return of the first Update after it commits.
type stalledAds struct {
	store.Collection[model.Advertisement]
	once      sync.Once
	committed chan struct{}
}

func (c *stalledAds) Update(ctx context.Context, id uuid.UUID, fn func(*model.Advertisement) error) (model.Advertisement, error) {
	v, err := c.Collection.Update(ctx, id, fn)
	c.once.Do(func() {
		close(c.committed)
		time.Sleep(100 * time.Millisecond)
	})
	return v, err
}

func TestOverlappingUpdatesKeepIndexInStep(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	ads := &stalledAds{Collection: mem.Advertisements(), committed: make(chan struct{})}
	s := New(overlay{Store: mem, ads: ads})

	alice := newUser(t, s, "alice", moscow)
	ad, err := s.CreateAdvertisement(ctx, alice, AdvertisementInput{Title: "Lamp", Description: "desk lamp",
		Type: "free", Latitude: f64(moscow.Lat), Longitude: f64(moscow.Lng)})
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := s.UpdateAdvertisement(ctx, ad.ID, alice.ID, AdvertisementPatch{IsActive: new(bool)})
		done <- err
	}()
	<-ads.committed
	active := true
	if _, err := s.UpdateAdvertisement(ctx, ad.ID, alice.ID, AdvertisementPatch{IsActive: &active}); err != nil {
		t.Fatal(err)
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}

	stored, err := mem.Advertisements().Get(ctx, ad.ID)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.NearbyAdvertisements(ctx, alice.ID, Query{Center: moscow})
	if err != nil {
		t.Fatal(err)
	}
	if !stored.IsActive || !s.ads.Has(ad.ID) || len(got) != 1 {
		t.Fatalf("stored isActive=%v, indexed=%v, nearby=%d; want true, true, 1",
			stored.IsActive, s.ads.Has(ad.ID), len(got))
	}
}

// sharedPosts answers Near from the collection itself, like a database
// shared by several processes.
type sharedPosts struct {
	store.Collection[model.Post]
}

func (c sharedPosts) Near(ctx context.Context, center geo.Point, radius float64) ([]uuid.UUID, error) {
	var hits []model.Header
	err := c.Each(ctx, func(p model.Post) error {
		h := p.Header()
		if h.Visible() && h.Location != nil && geo.Distance(center, *h.Location) <= radius {
			hits = append(hits, h)
		}
		return nil
	})
	sort.Slice(hits, func(i, j int) bool {
		if !hits[i].CreatedAt.Equal(hits[j].CreatedAt) {
			return hits[i].CreatedAt.After(hits[j].CreatedAt)
		}
		return bytes.Compare(hits[i].ID[:], hits[j].ID[:]) < 0
	})
	ids := make([]uuid.UUID, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ids, err
}

func TestLocatorSeesWritesFromOtherInstances(t *testing.T) {
	ctx := context.Background()
	shared := overlay{Store: memory.New(), posts: sharedPosts{Collection: memory.New().Posts()}}
	a, b := New(shared), New(shared)
	if err := b.Warm(ctx); err != nil {
		t.Fatal(err)
	}

	alice := newUser(t, a, "alice", moscow)
	post, err := a.CreatePost(ctx, alice, PostInput{Text: "anyone lost a cat?", Latitude: f64(moscow.Lat), Longitude: f64(moscow.Lng)})
	if err != nil {
		t.Fatal(err)
	}

	got, err := b.NearbyPosts(ctx, alice.ID, Query{Center: moscow})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != post.ID {
		t.Fatalf("other instance nearby = %d posts; want the new one", len(got))
	}

	if err := a.DeletePost(ctx, post.ID, alice.ID); err != nil {
		t.Fatal(err)
	}
	if got, _ := b.NearbyPosts(ctx, alice.ID, Query{Center: moscow}); len(got) != 0 {
		t.Fatalf("deleted post still listed by the other instance: %d", len(got))
	}
}
