package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/juju/clock/testclock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/murmurnet/murmur/internal/auth"
	"github.com/murmurnet/murmur/internal/metrics"
	"github.com/murmurnet/murmur/internal/models"
	"github.com/murmurnet/murmur/internal/realtime"
)

// fakeStore is an in-memory Store for handler tests. It also satisfies the
// dispatcher's NotificationStore and the OTP VerificationStore so one fake
// backs the whole handler stack.
type fakeStore struct {
	mu            sync.Mutex
	users         map[uuid.UUID]*models.User
	posts         map[uuid.UUID]*models.Post
	follows       map[[2]uuid.UUID]struct{}
	chats         map[uuid.UUID]*models.Chat
	messages      map[uuid.UUID]*models.Message
	notifications []*models.Notification
	verifications map[string]*models.EmailVerification
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:         make(map[uuid.UUID]*models.User),
		posts:         make(map[uuid.UUID]*models.Post),
		follows:       make(map[[2]uuid.UUID]struct{}),
		chats:         make(map[uuid.UUID]*models.Chat),
		messages:      make(map[uuid.UUID]*models.Message),
		verifications: make(map[string]*models.EmailVerification),
	}
}

func (s *fakeStore) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user.ID = uuid.New()
	user.CreatedAt = time.Now()
	s.users[user.ID] = user
	return nil
}

func (s *fakeStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id], nil
}

func (s *fakeStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) SearchUsers(_ context.Context, query string) ([]*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.User
	for _, u := range s.users {
		if strings.HasPrefix(u.Username, query) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

func (s *fakeStore) DeleteUser(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

func (s *fakeStore) MarkVerified(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			u.Verified = true
		}
	}
	return nil
}

func (s *fakeStore) FollowUser(_ context.Context, followerID, followeeID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	edge := [2]uuid.UUID{followerID, followeeID}
	if _, ok := s.follows[edge]; ok {
		return false, nil
	}
	s.follows[edge] = struct{}{}
	return true, nil
}

func (s *fakeStore) UnfollowUser(_ context.Context, followerID, followeeID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	edge := [2]uuid.UUID{followerID, followeeID}
	if _, ok := s.follows[edge]; !ok {
		return false, nil
	}
	delete(s.follows, edge)
	return true, nil
}

func (s *fakeStore) FollowCounts(_ context.Context, id uuid.UUID) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var followers, following int
	for edge := range s.follows {
		if edge[1] == id {
			followers++
		}
		if edge[0] == id {
			following++
		}
	}
	return followers, following, nil
}

func (s *fakeStore) CreatePost(_ context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	post.ID = uuid.New()
	post.CreatedAt = time.Now()
	post.Likes = []uuid.UUID{}
	post.Comments = []*models.Comment{}
	s.posts[post.ID] = post
	return nil
}

func (s *fakeStore) GetPostByID(_ context.Context, id uuid.UUID) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.posts[id], nil
}

func (s *fakeStore) ListPosts(_ context.Context, page, perPage int) ([]*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*models.Post
	for _, p := range s.posts {
		all = append(all, p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	start := (page - 1) * perPage
	if start >= len(all) {
		return nil, nil
	}
	end := start + perPage
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], nil
}

func (s *fakeStore) SearchPosts(_ context.Context, query string, _ []string) ([]*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Post
	for _, p := range s.posts {
		if query == "" || strings.Contains(p.Title+" "+p.Body, query) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdatePost(_ context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[post.ID] = post
	return nil
}

func (s *fakeStore) DeletePost(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.posts, id)
	return nil
}

func (s *fakeStore) TogglePostLike(_ context.Context, postID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	post := s.posts[postID]
	for i, id := range post.Likes {
		if id == userID {
			post.Likes = append(post.Likes[:i], post.Likes[i+1:]...)
			return false, nil
		}
	}
	post.Likes = append(post.Likes, userID)
	return true, nil
}

func (s *fakeStore) AddComment(_ context.Context, comment *models.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	comment.ID = uuid.New()
	comment.CreatedAt = time.Now()
	comment.Likes = []uuid.UUID{}
	post := s.posts[comment.PostID]
	post.Comments = append(post.Comments, comment)
	return nil
}

func (s *fakeStore) ToggleCommentLike(_ context.Context, commentID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, post := range s.posts {
		for _, c := range post.Comments {
			if c.ID != commentID {
				continue
			}
			for i, id := range c.Likes {
				if id == userID {
					c.Likes = append(c.Likes[:i], c.Likes[i+1:]...)
					return false, nil
				}
			}
			c.Likes = append(c.Likes, userID)
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) IncrementShareCount(_ context.Context, postID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	post, ok := s.posts[postID]
	if !ok {
		return 0, errors.New("no rows updated")
	}
	post.ShareCount++
	return post.ShareCount, nil
}

func (s *fakeStore) CreateDirectChat(_ context.Context, a, b uuid.UUID) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, chat := range s.chats {
		if chat.IsGroup || len(chat.Users) != 2 {
			continue
		}
		if (chat.Users[0] == a && chat.Users[1] == b) || (chat.Users[0] == b && chat.Users[1] == a) {
			return chat, nil
		}
	}
	chat := &models.Chat{ID: uuid.New(), Users: []uuid.UUID{a, b}, CreatedAt: time.Now()}
	s.chats[chat.ID] = chat
	return chat, nil
}

func (s *fakeStore) CreateGroupChat(_ context.Context, name string, creatorID uuid.UUID, memberIDs []uuid.UUID) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := []uuid.UUID{creatorID}
	for _, id := range memberIDs {
		if id != creatorID {
			users = append(users, id)
		}
	}
	chat := &models.Chat{ID: uuid.New(), Name: name, IsGroup: true, Users: users, CreatedAt: time.Now()}
	s.chats[chat.ID] = chat
	return chat, nil
}

func (s *fakeStore) GetChatByID(_ context.Context, id uuid.UUID) (*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chats[id], nil
}

func (s *fakeStore) ListChatsForUser(_ context.Context, userID uuid.UUID) ([]*models.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Chat
	for _, chat := range s.chats {
		for _, member := range chat.Users {
			if member == userID {
				out = append(out, chat)
				break
			}
		}
	}
	return out, nil
}

func (s *fakeStore) IsChatMember(_ context.Context, chatID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chat, ok := s.chats[chatID]
	if !ok {
		return false, nil
	}
	for _, member := range chat.Users {
		if member == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) CreateMessage(_ context.Context, msg *models.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now()
	s.messages[msg.ID] = msg
	if chat, ok := s.chats[msg.ChatID]; ok {
		chat.LatestMessage = msg
	}
	return nil
}

func (s *fakeStore) GetMessageByID(_ context.Context, id uuid.UUID) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.messages[id], nil
}

func (s *fakeStore) ListMessages(_ context.Context, chatID uuid.UUID) ([]*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Message
	for _, msg := range s.messages {
		if msg.ChatID == chatID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeStore) DeleteMessage(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, id)
	return nil
}

func (s *fakeStore) ListNotifications(_ context.Context, recipientID uuid.UUID) ([]*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Notification
	for i := len(s.notifications) - 1; i >= 0; i-- {
		if s.notifications[i].RecipientID == recipientID {
			out = append(out, s.notifications[i])
		}
	}
	return out, nil
}

func (s *fakeStore) CountUnread(_ context.Context, recipientID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.notifications {
		if n.RecipientID == recipientID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (s *fakeStore) MarkAllRead(_ context.Context, recipientID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.RecipientID == recipientID {
			n.Read = true
		}
	}
	return nil
}

func (s *fakeStore) ClearNotifications(_ context.Context, recipientID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.notifications[:0]
	for _, n := range s.notifications {
		if n.RecipientID != recipientID {
			kept = append(kept, n)
		}
	}
	s.notifications = kept
	return nil
}

func (s *fakeStore) CreateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *fakeStore) HasUnreadLike(_ context.Context, recipientID, senderID, postID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, n := range s.notifications {
		if n.Type == models.NotificationLike && !n.Read &&
			n.RecipientID == recipientID && n.SenderID == senderID &&
			n.PostID != nil && *n.PostID == postID {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeStore) UpsertVerification(_ context.Context, email, codeHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifications[email] = &models.EmailVerification{Email: email, CodeHash: codeHash, ExpiresAt: expiresAt}
	return nil
}

func (s *fakeStore) GetVerification(_ context.Context, email string, now time.Time) (*models.EmailVerification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.verifications[email]
	if !ok || now.After(v.ExpiresAt) {
		delete(s.verifications, email)
		return nil, nil
	}
	return v, nil
}

func (s *fakeStore) DeleteVerification(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.verifications, email)
	return nil
}

func (s *fakeStore) notificationsFor(recipientID uuid.UUID) []*models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Notification
	for _, n := range s.notifications {
		if n.RecipientID == recipientID {
			out = append(out, n)
		}
	}
	return out
}

// captureSender records issued OTP codes for assertions; set fail to make
// delivery break.
type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
	fail  error
}

func (s *captureSender) Send(_ context.Context, email, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return s.fail
	}
	s.codes[email] = code
	return nil
}

type env struct {
	store  *fakeStore
	hub    *realtime.Hub
	h      *Handler
	tokens *auth.Tokens
	codes  *captureSender
	clk    *testclock.Clock
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := newFakeStore()
	m := metrics.New(prometheus.NewRegistry())
	hub := realtime.NewHub(zerolog.Nop(), m)
	dispatcher := realtime.NewDispatcher(hub, store, zerolog.Nop(), m)
	clk := testclock.NewClock(time.Now())
	tokens := auth.NewTokens([]byte("test-secret"), time.Hour, clk)
	codes := &captureSender{codes: make(map[string]string)}
	otp := auth.NewOTP(store, codes, clk)
	return &env{
		store:  store,
		hub:    hub,
		h:      New(store, dispatcher, hub, tokens, otp, zerolog.Nop()),
		tokens: tokens,
		codes:  codes,
		clk:    clk,
	}
}

// seedUser creates a verified account directly in the store.
func (e *env) seedUser(t *testing.T, name, username string) *models.User {
	t.Helper()
	user := &models.User{Name: name, Email: username + "@example.com", Username: username, Verified: true}
	require.NoError(t, e.store.CreateUser(context.Background(), user))
	return user
}

func (e *env) seedPost(t *testing.T, creatorID uuid.UUID, title string) *models.Post {
	t.Helper()
	post := &models.Post{CreatorID: creatorID, Title: title, Body: "body text", Tags: []string{}}
	require.NoError(t, e.store.CreatePost(context.Background(), post))
	return post
}

func request(method, target string, userID uuid.UUID, body any, vars map[string]string) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	if userID != uuid.Nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), userID))
	}
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func errMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decode(t, rec, &body)
	return body["message"]
}
