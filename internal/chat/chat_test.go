package chat

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/bwise1/sosedi/internal/apperr"
	"github.com/bwise1/sosedi/internal/model"
	"github.com/bwise1/sosedi/internal/store/memory"
	"github.com/google/uuid"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// checkingPublisher asserts that every published message is already stored.
type checkingPublisher struct {
	t     *testing.T
	store *memory.Store
	mu    sync.Mutex
	seen  []model.Message
}

func (p *checkingPublisher) Publish(chatID uuid.UUID, msg model.Message) {
	c, err := p.store.Chats().Get(context.Background(), chatID)
	if err != nil {
		p.t.Errorf("publish before persist: %v", err)
		return
	}
	found := false
	for _, m := range c.Messages {
		found = found || m.ID == msg.ID
	}
	if !found {
		p.t.Errorf("message %v published before it was stored", msg.ID)
	}
	p.mu.Lock()
	p.seen = append(p.seen, msg)
	p.mu.Unlock()
}

func newUser(t *testing.T, s *memory.Store) uuid.UUID {
	t.Helper()
	u := model.User{Meta: model.NewMeta(time.Now()), AuthUID: uuid.NewString(), PhoneNumber: uuid.NewString()}
	if err := s.Users().Insert(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return u.ID
}

func setup(t *testing.T) (*Engine, *memory.Store, *checkingPublisher) {
	t.Helper()
	s := memory.New()
	pub := &checkingPublisher{t: t, store: s}
	return New(s, NewHub(discard), pub, nil), s, pub
}

func TestFindOrCreatePrivateIsSymmetric(t *testing.T) {
	ctx := context.Background()
	e, s, _ := setup(t)
	a, b := newUser(t, s), newUser(t, s)

	c1, err := e.FindOrCreatePrivate(ctx, a, b)
	if err != nil {
		t.Fatal(err)
	}
	c2, err := e.FindOrCreatePrivate(ctx, b, a)
	if err != nil {
		t.Fatal(err)
	}
	if c1.ID != c2.ID {
		t.Fatalf("argument order produced two chats: %v and %v", c1.ID, c2.ID)
	}
	if !c1.IsParticipant(a) || !c1.IsParticipant(b) || len(c1.Participants) != 2 {
		t.Fatalf("participants = %+v", c1.Participants)
	}
}

func TestFindOrCreatePrivateConcurrent(t *testing.T) {
	ctx := context.Background()
	e, s, _ := setup(t)
	a, b := newUser(t, s), newUser(t, s)

	ids := make(chan uuid.UUID, 20)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			x, y := a, b
			if i%2 == 1 {
				x, y = b, a
			}
			c, err := e.FindOrCreatePrivate(ctx, x, y)
			if err != nil {
				t.Error(err)
				return
			}
			ids <- c.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	var first uuid.UUID
	for id := range ids {
		if first == uuid.Nil {
			first = id
		}
		if id != first {
			t.Fatalf("concurrent calls created distinct chats %v and %v", first, id)
		}
	}
}

func TestFindOrCreatePrivateRejects(t *testing.T) {
	ctx := context.Background()
	e, s, _ := setup(t)
	a := newUser(t, s)

	if _, err := e.FindOrCreatePrivate(ctx, a, a); apperr.KindOf(err) != apperr.InvalidInput {
		t.Fatalf("self chat: got %v; want InvalidInput", err)
	}
	if _, err := e.FindOrCreatePrivate(ctx, a, uuid.New()); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("unknown user: got %v; want NotFound", err)
	}
}

func TestUnreadScenario(t *testing.T) {
	ctx := context.Background()
	e, s, pub := setup(t)
	a, b := newUser(t, s), newUser(t, s)
	c, _ := e.FindOrCreatePrivate(ctx, a, b)

	for _, text := range []string{"hi", "are you there?"} {
		if _, err := e.AppendMessage(ctx, c.ID, a, text); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := e.AppendMessage(ctx, c.ID, b, "yes"); err != nil {
		t.Fatal(err)
	}

	unread := func(viewer uuid.UUID) int {
		got, err := e.Get(ctx, c.ID, viewer)
		if err != nil {
			t.Fatal(err)
		}
		return got.UnreadCount(viewer)
	}
	if unread(b) != 2 || unread(a) != 1 {
		t.Fatalf("unread b=%d a=%d; want 2 and 1", unread(b), unread(a))
	}

	n, err := e.MarkRead(ctx, c.ID, b)
	if err != nil || n != 2 {
		t.Fatalf("MarkRead = %d, %v; want 2", n, err)
	}
	if n, _ := e.MarkRead(ctx, c.ID, b); n != 0 {
		t.Fatalf("second MarkRead changed %d messages", n)
	}
	if unread(b) != 0 || unread(a) != 1 {
		t.Fatalf("after read: unread b=%d a=%d; want 0 and 1", unread(b), unread(a))
	}

	got, _ := e.Get(ctx, c.ID, a)
	if got.LastMessage == nil || got.LastMessage.Text != "yes" || got.LastMessage.SenderID != b {
		t.Fatalf("lastMessage = %+v", got.LastMessage)
	}
	if len(pub.seen) != 3 {
		t.Fatalf("published %d messages; want 3", len(pub.seen))
	}
}

func TestAppendMessageRejects(t *testing.T) {
	ctx := context.Background()
	e, s, pub := setup(t)
	a, b, stranger := newUser(t, s), newUser(t, s), newUser(t, s)
	c, _ := e.FindOrCreatePrivate(ctx, a, b)

	testCases := []struct {
		name   string
		chat   uuid.UUID
		sender uuid.UUID
		text   string
		want   apperr.Kind
	}{
		{"blank text", c.ID, a, "   ", apperr.InvalidInput},
		{"stranger", c.ID, stranger, "hello", apperr.NotAParticipant},
		{"unknown chat", uuid.New(), a, "hello", apperr.NotFound},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.AppendMessage(ctx, tc.chat, tc.sender, tc.text); apperr.KindOf(err) != tc.want {
				t.Fatalf("got %v; want %v", err, tc.want)
			}
		})
	}
	if len(pub.seen) != 0 {
		t.Fatal("rejected messages were published")
	}
	if _, err := e.MarkRead(ctx, c.ID, stranger); apperr.KindOf(err) != apperr.NotAParticipant {
		t.Fatalf("MarkRead by stranger: got %v", err)
	}
}

func TestDeletedChatIsTerminal(t *testing.T) {
	ctx := context.Background()
	e, s, _ := setup(t)
	a, b := newUser(t, s), newUser(t, s)
	c, _ := e.FindOrCreatePrivate(ctx, a, b)

	if err := e.Delete(ctx, c.ID, a); err != nil {
		t.Fatal(err)
	}
	if _, err := e.AppendMessage(ctx, c.ID, b, "hello?"); apperr.KindOf(err) != apperr.NotFound {
		t.Fatalf("append to deleted chat: got %v; want NotFound", err)
	}
	if list, _ := e.List(ctx, a); len(list) != 0 {
		t.Fatalf("deleted chat still listed: %+v", list)
	}

	fresh, err := e.FindOrCreatePrivate(ctx, b, a)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.ID == c.ID {
		t.Fatal("deleted chat was resurrected")
	}
}

func TestGroupChatFollowsMembership(t *testing.T) {
	ctx := context.Background()
	e, s, _ := setup(t)
	author, member, outsider := newUser(t, s), newUser(t, s), newUser(t, s)

	now := time.Now()
	g := model.Group{Meta: model.NewMeta(now), Name: "Yard", AuthorID: author,
		Members: []model.Member{{UserID: author, JoinedAt: now}}}
	_ = s.Groups().Insert(ctx, g)

	if _, err := e.OpenGroupChat(ctx, g.ID, outsider); apperr.KindOf(err) != apperr.NotAMember {
		t.Fatalf("outsider open: got %v; want NotAMember", err)
	}
	c, err := e.OpenGroupChat(ctx, g.ID, author)
	if err != nil {
		t.Fatal(err)
	}
	if c.Type != model.ChatGroup || c.GroupName != "Yard" {
		t.Fatalf("unexpected chat %+v", c)
	}

	// a member who joined after the chat was created can still write
	_, _ = s.Groups().Update(ctx, g.ID, func(g *model.Group) error {
		g.Join(member, time.Now())
		return nil
	})
	if _, err := e.AppendMessage(ctx, c.ID, member, "hello neighbours"); err != nil {
		t.Fatal(err)
	}
	// and loses access when they leave the group
	_, _ = s.Groups().Update(ctx, g.ID, func(g *model.Group) error {
		g.Leave(member)
		return nil
	})
	if _, err := e.AppendMessage(ctx, c.ID, member, "still here?"); apperr.KindOf(err) != apperr.NotAParticipant {
		t.Fatalf("former member: got %v; want NotAParticipant", err)
	}

	again, _ := e.OpenGroupChat(ctx, g.ID, author)
	if again.ID != c.ID {
		t.Fatal("group got a second chat")
	}
	if err := e.Delete(ctx, c.ID, member); apperr.KindOf(err) != apperr.NotAuthorized {
		t.Fatalf("delete by non-author: got %v; want NotAuthorized", err)
	}
	if err := e.Delete(ctx, c.ID, author); err != nil {
		t.Fatal(err)
	}
}

func TestSubscribeReceivesInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := memory.New()
	hub := NewHub(discard)
	go hub.Run(ctx)
	e := New(s, hub, nil, nil)

	a, b := newUser(t, s), newUser(t, s)
	c, _ := e.FindOrCreatePrivate(ctx, a, b)

	if _, err := e.Subscribe(ctx, c.ID, newUser(t, s)); apperr.KindOf(err) != apperr.NotAParticipant {
		t.Fatalf("stranger subscribe: got %v", err)
	}
	sub, err := e.Subscribe(ctx, c.ID, b)
	if err != nil {
		t.Fatal(err)
	}
	defer sub.Close()

	texts := []string{"one", "two", "three", "four"}
	for _, text := range texts {
		if _, err := e.AppendMessage(ctx, c.ID, a, text); err != nil {
			t.Fatal(err)
		}
	}
	for _, want := range texts {
		select {
		case m := <-sub.C():
			if m.Text != want {
				t.Fatalf("got %q; want %q", m.Text, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}
}

func TestConcurrentAppendsDeliverInStoredOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := memory.New()
	hub := NewHub(discard)
	go hub.Run(ctx)
	e := New(s, hub, nil, nil)

	a, b := newUser(t, s), newUser(t, s)
	c, err := e.FindOrCreatePrivate(ctx, a, b)
	if err != nil {
		t.Fatal(err)
	}

	const rounds, perRound = 10, 60
	for round := 0; round < rounds; round++ {
		sub, err := e.Subscribe(ctx, c.ID, b)
		if err != nil {
			t.Fatal(err)
		}

		var wg sync.WaitGroup
		for i := 0; i < perRound; i++ {
			wg.Add(1)
			go func(sender uuid.UUID) {
				defer wg.Done()
				if _, err := e.AppendMessage(ctx, c.ID, sender, "hi"); err != nil {
					t.Error(err)
				}
			}([]uuid.UUID{a, b}[i%2])
		}
		wg.Wait()

		var got []uuid.UUID
		for len(got) < perRound {
			select {
			case m := <-sub.C():
				got = append(got, m.ID)
			case <-time.After(2 * time.Second):
				t.Fatalf("round %d: received %d of %d messages", round, len(got), perRound)
			}
		}
		sub.Close()

		stored, err := s.Chats().Get(ctx, c.ID)
		if err != nil {
			t.Fatal(err)
		}
		tail := stored.Messages[len(stored.Messages)-perRound:]
		for i, m := range tail {
			if got[i] != m.ID {
				t.Fatalf("round %d: live message %d is %v, stored is %v", round, i, got[i], m.ID)
			}
		}
	}
}
