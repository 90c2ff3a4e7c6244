// Package relations applies the membership-style mutations between a viewer
// and a target entity: likes, group and event membership, ad interest.
// Each mutation is one atomic store update of the target.
package relations

import (
	"context"
	"time"

	"github.com/bwise1/sosedi/internal/activity"
	"github.com/bwise1/sosedi/internal/apperr"
	"github.com/bwise1/sosedi/internal/model"
	"github.com/bwise1/sosedi/internal/store"
	"github.com/google/uuid"
)

type Engine struct {
	store  store.Store
	events activity.Publisher
	now    func() time.Time
}

func New(s store.Store, events activity.Publisher) *Engine {
	if events == nil {
		events = activity.Nop{}
	}
	return &Engine{store: s, events: events, now: time.Now}
}

type LikeResult struct {
	IsLiked    bool `json:"isLiked"`
	LikesCount int  `json:"likesCount"`
}

type InterestResult struct {
	IsInterested    bool `json:"isInterested"`
	InterestedCount int  `json:"interestedCount"`
}

func gone(kind string) error {
	return apperr.E(apperr.NotFound, "%s not found", kind)
}

// ToggleLike flips the viewer's like on a post.
func (e *Engine) ToggleLike(ctx context.Context, postID, viewer uuid.UUID) (LikeResult, error) {
	var res LikeResult
	_, err := e.store.Posts().Update(ctx, postID, func(p *model.Post) error {
		if !p.Header().Visible() {
			return gone("post")
		}
		res.IsLiked = p.ToggleLike(viewer)
		res.LikesCount = len(p.LikedBy)
		p.Touch(e.now())
		return nil
	})
	if err != nil {
		return LikeResult{}, err
	}

	kind := activity.PostUnliked
	if res.IsLiked {
		kind = activity.PostLiked
	}
	e.emit(ctx, kind, postID, viewer, res.LikesCount)
	return res, nil
}

// JoinGroup adds the viewer to a group. Joining twice is a no-op.
func (e *Engine) JoinGroup(ctx context.Context, groupID, viewer uuid.UUID) (model.Group, error) {
	changed := false
	g, err := e.store.Groups().Update(ctx, groupID, func(g *model.Group) error {
		if !g.Header().Visible() {
			return gone("group")
		}
		now := e.now()
		if changed = g.Join(viewer, now); changed {
			g.Touch(now)
		}
		return nil
	})
	if err != nil {
		return model.Group{}, err
	}
	if changed {
		e.emit(ctx, activity.GroupJoined, groupID, viewer, len(g.Members))
	}
	return g, nil
}

func (e *Engine) LeaveGroup(ctx context.Context, groupID, viewer uuid.UUID) (model.Group, error) {
	g, err := e.store.Groups().Update(ctx, groupID, func(g *model.Group) error {
		if !g.Header().Visible() {
			return gone("group")
		}
		if !g.Leave(viewer) {
			return apperr.E(apperr.NotAMember, "you are not a member of this group")
		}
		g.Touch(e.now())
		return nil
	})
	if err != nil {
		return model.Group{}, err
	}
	e.emit(ctx, activity.GroupLeft, groupID, viewer, len(g.Members))
	return g, nil
}

// JoinEvent adds the viewer to an event's participants. An existing
// participant joins again as a no-op; otherwise a full event rejects the join.
func (e *Engine) JoinEvent(ctx context.Context, eventID, viewer uuid.UUID) (model.Event, error) {
	changed := false
	ev, err := e.store.Events().Update(ctx, eventID, func(ev *model.Event) error {
		if !ev.Header().Visible() {
			return gone("event")
		}
		changed = false
		if ev.IsParticipant(viewer) {
			return nil
		}
		if ev.IsFull() {
			return apperr.E(apperr.EventFull, "event has reached its maximum number of participants")
		}
		now := e.now()
		ev.Join(viewer, now)
		ev.Touch(now)
		changed = true
		return nil
	})
	if err != nil {
		return model.Event{}, err
	}
	if changed {
		e.emit(ctx, activity.EventJoined, eventID, viewer, len(ev.Participants))
	}
	return ev, nil
}

func (e *Engine) LeaveEvent(ctx context.Context, eventID, viewer uuid.UUID) (model.Event, error) {
	ev, err := e.store.Events().Update(ctx, eventID, func(ev *model.Event) error {
		if !ev.Header().Visible() {
			return gone("event")
		}
		if !ev.Leave(viewer) {
			return apperr.E(apperr.NotAMember, "you are not a participant of this event")
		}
		ev.Touch(e.now())
		return nil
	})
	if err != nil {
		return model.Event{}, err
	}
	e.emit(ctx, activity.EventLeft, eventID, viewer, len(ev.Participants))
	return ev, nil
}

// ToggleInterest flips the viewer's interest in an advertisement.
func (e *Engine) ToggleInterest(ctx context.Context, adID, viewer uuid.UUID) (InterestResult, error) {
	var res InterestResult
	_, err := e.store.Advertisements().Update(ctx, adID, func(a *model.Advertisement) error {
		if !a.Header().Visible() {
			return gone("advertisement")
		}
		now := e.now()
		res.IsInterested = a.ToggleInterest(viewer, now)
		res.InterestedCount = len(a.InterestedUsers)
		a.Touch(now)
		return nil
	})
	if err != nil {
		return InterestResult{}, err
	}

	kind := activity.AdUninterested
	if res.IsInterested {
		kind = activity.AdInterested
	}
	e.emit(ctx, kind, adID, viewer, res.InterestedCount)
	return res, nil
}

func (e *Engine) emit(ctx context.Context, kind activity.Kind, entity, actor uuid.UUID, count int) {
	e.events.Publish(ctx, activity.Event{Kind: kind, EntityID: entity, ActorID: actor, Count: count, At: e.now()})
}
