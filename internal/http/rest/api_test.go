package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwise1/sosedi/config"
	"github.com/bwise1/sosedi/internal/auth"
	deps "github.com/bwise1/sosedi/internal/debs"
	"github.com/google/uuid"
)

const testSecret = "test-secret"

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t   *testing.T
	srv *httptest.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &config.Config{UploadDir: t.TempDir(), JwtSecret: testSecret}
	d, err := deps.New(ctx, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(d.Close)
	d.Run(ctx)

	api := &API{Config: cfg, Deps: d}
	srv := httptest.NewServer(api.Routes())
	t.Cleanup(srv.Close)
	return &testServer{t: t, srv: srv}
}

func token(t *testing.T, uid, phone string) string {
	t.Helper()
	tok, err := auth.NewJWTVerifier(testSecret).Issue(auth.Identity{UID: uid, Phone: phone}, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	return tok
}

func (s *testServer) send(req *http.Request, tok string) (int, envelope) {
	s.t.Helper()
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		s.t.Fatal(err)
	}
	defer resp.Body.Close()
	var env envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	return resp.StatusCode, env
}

func (s *testServer) do(method, path, tok string, body any) (int, envelope) {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			s.t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, r)
	if err != nil {
		s.t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	return s.send(req, tok)
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(env.Data, &v); err != nil {
		t.Fatalf("decode %s: %v", env.Data, err)
	}
	return v
}

type idOnly struct {
	ID uuid.UUID `json:"id"`
}

func (s *testServer) register(uid, first string, lat, lng float64) (string, uuid.UUID) {
	s.t.Helper()
	tok := token(s.t, uid, "+7900"+uid)
	code, env := s.do(http.MethodPost, "/users/profile", tok, map[string]any{
		"firstName": first, "lastName": "Test", "address": "Tverskaya 1",
		"latitude": lat, "longitude": lng,
	})
	if code != http.StatusCreated {
		s.t.Fatalf("register %s: %d %+v", uid, code, env)
	}
	return tok, decode[idOnly](s.t, env).ID
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name string
		tok  string
		want int
	}{
		{"no token", "", http.StatusUnauthorized},
		{"garbage token", "nope", http.StatusUnauthorized},
		{"valid token without profile", token(t, "ghost", "+7999"), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, env := s.do(http.MethodGet, "/users/profile", tt.tok, nil); code != tt.want {
				t.Fatalf("got %d %+v; want %d", code, env, tt.want)
			}
		})
	}

	expired, err := auth.NewJWTVerifier(testSecret).Issue(auth.Identity{UID: "old", Phone: "+7"}, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, env := s.do(http.MethodGet, "/users/profile", expired, nil); env.Message != "token-expired" {
		t.Fatalf("expired token: %+v", env)
	}

	if code, _ := s.do(http.MethodGet, "/health", "", nil); code != http.StatusOK {
		t.Fatalf("health = %d", code)
	}
}

func TestProfileFlow(t *testing.T) {
	s := newTestServer(t)
	tok, id := s.register("alice", "Alice", 55.7558, 37.6173)

	code, env := s.do(http.MethodGet, "/users/profile", tok, nil)
	if code != http.StatusOK {
		t.Fatalf("get profile: %d %+v", code, env)
	}
	profile := decode[map[string]any](t, env)
	if profile["fullName"] != "Alice Test" {
		t.Fatalf("profile = %v", profile)
	}
	if _, leaked := profile["authUid"]; leaked {
		t.Fatal("auth subject exposed")
	}

	code, env = s.do(http.MethodPut, "/users/profile", tok, map[string]any{"displayName": "Al"})
	if code != http.StatusOK || decode[idOnly](t, env).ID != id {
		t.Fatalf("update profile: %d %+v", code, env)
	}

	code, _ = s.do(http.MethodPost, "/users/profile", token(t, "bob", "+7901"), map[string]any{
		"address": "x", "latitude": 95, "longitude": 37,
	})
	if code != http.StatusBadRequest {
		t.Fatalf("bad latitude: %d", code)
	}

	if code, _ := s.do(http.MethodDelete, "/users/profile", tok, nil); code != http.StatusOK {
		t.Fatalf("delete: %d", code)
	}
	if code, _ := s.do(http.MethodGet, "/users/profile", tok, nil); code != http.StatusUnauthorized {
		t.Fatalf("deleted user still authenticated: %d", code)
	}
}

func TestPostsAndLikes(t *testing.T) {
	s := newTestServer(t)
	alice, _ := s.register("alice", "Alice", 55.7558, 37.6173)
	bob, _ := s.register("bob", "Bob", 55.7559, 37.6173)

	code, env := s.do(http.MethodPost, "/posts", alice, map[string]any{
		"text": "Lost cat", "latitude": 55.7558, "longitude": 37.6173,
	})
	if code != http.StatusCreated {
		t.Fatalf("create post: %d %+v", code, env)
	}
	post := decode[idOnly](t, env).ID

	if code, _ := s.do(http.MethodGet, "/posts", bob, nil); code != http.StatusBadRequest {
		t.Fatalf("nearby without coordinates: %d", code)
	}
	code, env = s.do(http.MethodGet, "/posts?lat=55.7558&lng=37.6173", bob, nil)
	if code != http.StatusOK || len(decode[[]idOnly](t, env)) != 1 {
		t.Fatalf("nearby posts: %d %s", code, env.Data)
	}

	code, env = s.do(http.MethodPost, "/posts/"+post.String()+"/like", bob, nil)
	like := decode[map[string]any](t, env)
	if code != http.StatusOK || like["isLiked"] != true || like["likesCount"] != float64(1) {
		t.Fatalf("like: %d %v", code, like)
	}

	if code, _ := s.do(http.MethodPut, "/posts/"+post.String(), bob, map[string]any{"text": "mine"}); code != http.StatusForbidden {
		t.Fatalf("foreign update: %d", code)
	}
	if code, _ := s.do(http.MethodGet, "/posts/not-a-uuid", bob, nil); code != http.StatusBadRequest {
		t.Fatalf("bad id: %d", code)
	}
	if code, _ := s.do(http.MethodGet, "/posts/"+uuid.NewString(), bob, nil); code != http.StatusNotFound {
		t.Fatalf("missing post: %d", code)
	}
	if code, _ := s.do(http.MethodPost, "/posts/"+post.String()+"/comments", bob, map[string]any{"text": "found it"}); code != http.StatusCreated {
		t.Fatalf("comment: %d", code)
	}
}

func TestMultipartPostWithImage(t *testing.T) {
	s := newTestServer(t)
	alice, _ := s.register("alice", "Alice", 55.7558, 37.6173)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("text", "Sofa for free")
	_ = mw.WriteField("latitude", "55.7558")
	_ = mw.WriteField("longitude", "37.6173")
	fw, _ := mw.CreateFormFile("image", "sofa.JPG")
	_, _ = fw.Write([]byte("not really a jpeg"))
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPost, s.srv.URL+"/posts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	code, env := s.send(req, alice)
	if code != http.StatusCreated {
		t.Fatalf("create: %d %+v", code, env)
	}
	post := decode[map[string]any](t, env)
	path, _ := post["imagePath"].(string)
	if !strings.HasPrefix(path, "/uploads/posts/") || !strings.HasSuffix(path, ".jpg") {
		t.Fatalf("image path = %q", path)
	}

	resp, err := http.Get(s.srv.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "not really a jpeg" {
		t.Fatalf("serving upload: %d %q", resp.StatusCode, body)
	}
}

func TestEventCapacityAndGroups(t *testing.T) {
	s := newTestServer(t)
	alice, _ := s.register("alice", "Alice", 55.7558, 37.6173)
	bob, _ := s.register("bob", "Bob", 55.7558, 37.6173)

	code, env := s.do(http.MethodPost, "/events", alice, map[string]any{
		"title": "Tea", "date": "2024-06-01T10:00:00Z", "location": "Yard",
		"latitude": 55.7558, "longitude": 37.6173, "maxParticipants": 1,
	})
	if code != http.StatusCreated {
		t.Fatalf("create event: %d %+v", code, env)
	}
	event := decode[idOnly](t, env).ID
	if code, _ := s.do(http.MethodPost, "/events/"+event.String()+"/join", bob, nil); code != http.StatusConflict {
		t.Fatalf("join full event: %d", code)
	}

	code, env = s.do(http.MethodPost, "/groups", alice, map[string]any{
		"name": "Yard", "description": "our yard", "latitude": 55.7558, "longitude": 37.6173,
	})
	if code != http.StatusCreated {
		t.Fatalf("create group: %d %+v", code, env)
	}
	group := decode[idOnly](t, env).ID.String()

	if code, _ := s.do(http.MethodPost, "/groups/"+group+"/posts", bob, map[string]any{"text": "hi"}); code != http.StatusForbidden {
		t.Fatalf("non-member post: %d", code)
	}
	code, env = s.do(http.MethodPost, "/groups/"+group+"/join", bob, nil)
	if code != http.StatusOK || decode[map[string]any](t, env)["memberCount"] != float64(2) {
		t.Fatalf("join group: %d %s", code, env.Data)
	}
	if code, _ := s.do(http.MethodPost, "/groups/"+group+"/posts", bob, map[string]any{"text": "hi"}); code != http.StatusCreated {
		t.Fatalf("member post: %d", code)
	}
	if code, _ := s.do(http.MethodPost, "/groups/"+group+"/chat", bob, nil); code != http.StatusOK {
		t.Fatalf("group chat: %d", code)
	}
}

func TestPrivateChatUnread(t *testing.T) {
	s := newTestServer(t)
	alice, aliceID := s.register("alice", "Alice", 55.7558, 37.6173)
	bob, _ := s.register("bob", "Bob", 55.7558, 37.6173)

	code, env := s.do(http.MethodPost, "/chats/private", bob, map[string]any{"userId": aliceID})
	if code != http.StatusOK {
		t.Fatalf("start chat: %d %+v", code, env)
	}
	chat := decode[idOnly](t, env).ID.String()

	if code, _ := s.do(http.MethodPost, "/chats/"+chat+"/messages", bob, map[string]any{"text": "hello"}); code != http.StatusCreated {
		t.Fatalf("send: %d", code)
	}
	if code, _ := s.do(http.MethodPost, "/chats/"+chat+"/messages", bob, map[string]any{"text": "  "}); code != http.StatusBadRequest {
		t.Fatalf("blank message: %d", code)
	}

	type listed struct {
		ID            uuid.UUID `json:"id"`
		UnreadCount   int       `json:"unreadCount"`
		OtherUserName string    `json:"otherUserName"`
	}
	_, env = s.do(http.MethodGet, "/chats", alice, nil)
	chats := decode[[]listed](t, env)
	if len(chats) != 1 || chats[0].UnreadCount != 1 || chats[0].OtherUserName != "Bob Test" {
		t.Fatalf("alice chats = %+v", chats)
	}

	code, env = s.do(http.MethodGet, "/chats/"+chat+"/messages", alice, nil)
	if code != http.StatusOK || len(decode[[]idOnly](t, env)) != 1 {
		t.Fatalf("messages: %d %s", code, env.Data)
	}
	_, env = s.do(http.MethodGet, "/chats", alice, nil)
	if chats := decode[[]listed](t, env); chats[0].UnreadCount != 0 {
		t.Fatalf("unread after reading = %d", chats[0].UnreadCount)
	}

	outsider, _ := s.register("carol", "Carol", 55.7558, 37.6173)
	if code, _ := s.do(http.MethodGet, "/chats/"+chat, outsider, nil); code != http.StatusForbidden {
		t.Fatalf("outsider read: %d", code)
	}
}
