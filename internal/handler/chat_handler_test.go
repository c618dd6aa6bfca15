package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"shadownet-chat/internal/domain"
	"shadownet-chat/internal/middleware"
	"shadownet-chat/internal/service"
)

type stubUserRepo struct{ user *domain.User }

func (s *stubUserRepo) Create(ctx context.Context, user *domain.User) error { return nil }
func (s *stubUserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if s.user == nil {
		return nil, domain.ErrUserNotFound
	}
	return s.user, nil
}
func (s *stubUserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}
func (s *stubUserRepo) GetByDisplayName(ctx context.Context, name string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}
func (s *stubUserRepo) SetMutedUntil(ctx context.Context, userID string, until time.Time) error {
	return nil
}
func (s *stubUserRepo) List(ctx context.Context) ([]*domain.User, error) { return nil, nil }

type stubGroupRepo struct{}

func (s *stubGroupRepo) Create(ctx context.Context, group *domain.Group) error { return nil }
func (s *stubGroupRepo) GetByID(ctx context.Context, id string) (*domain.Group, error) {
	return &domain.Group{ID: id, Name: "general"}, nil
}
func (s *stubGroupRepo) List(ctx context.Context) ([]*domain.Group, error) { return nil, nil }
func (s *stubGroupRepo) Delete(ctx context.Context, id string) error       { return nil }

type stubMessageRepo struct {
	msg        *domain.ChatMessage
	updateBody string
}

func (s *stubMessageRepo) Create(ctx context.Context, message *domain.ChatMessage) error { return nil }
func (s *stubMessageRepo) GetByID(ctx context.Context, id string) (*domain.ChatMessage, error) {
	if s.msg == nil {
		return nil, domain.ErrMessageNotFound
	}
	cp := *s.msg
	if s.updateBody != "" {
		cp.Body = s.updateBody
	}
	return &cp, nil
}
func (s *stubMessageRepo) ListByGroup(ctx context.Context, groupID string) ([]*domain.ChatMessage, error) {
	if s.msg == nil {
		return nil, nil
	}
	return []*domain.ChatMessage{s.msg}, nil
}
func (s *stubMessageRepo) ListRecent(ctx context.Context, limit int) ([]*domain.ChatMessage, error) {
	return nil, nil
}
func (s *stubMessageRepo) UpdateBody(ctx context.Context, id, body string, edited bool) error {
	s.updateBody = body
	return nil
}
func (s *stubMessageRepo) Delete(ctx context.Context, id string) error { return nil }

type stubReactionRepo struct{}

func (s *stubReactionRepo) Get(ctx context.Context, messageID, userID string) (*domain.Reaction, error) {
	return nil, domain.ErrReactionNotFound
}
func (s *stubReactionRepo) Upsert(ctx context.Context, reaction *domain.Reaction) error { return nil }
func (s *stubReactionRepo) Delete(ctx context.Context, messageID, userID string) error  { return nil }

type stubBallotRepo struct{}

func (s *stubBallotRepo) Upsert(ctx context.Context, ballot *domain.PollBallot) error { return nil }

type stubHistoryRepo struct{}

func (s *stubHistoryRepo) Append(ctx context.Context, entry *domain.EditHistoryEntry) error {
	return nil
}
func (s *stubHistoryRepo) ListByMessage(ctx context.Context, messageID string) ([]*domain.EditHistoryEntry, error) {
	return nil, nil
}

type passFilter struct{}

func (passFilter) Evaluate(text string) int { return 0 }

type recordingBroadcaster struct {
	groupID string
	payload []byte
}

func (b *recordingBroadcaster) Broadcast(groupID string, message []byte) {
	b.groupID = groupID
	b.payload = message
}

func newChatFixture(msg *domain.ChatMessage) (*ChatHandler, *recordingBroadcaster, *stubMessageRepo) {
	messages := &stubMessageRepo{msg: msg}
	svc := service.NewChatService(
		&stubUserRepo{user: &domain.User{ID: "user-1", DisplayName: "SilentGhost42", Role: domain.RoleUser}},
		&stubGroupRepo{},
		messages,
		&stubReactionRepo{},
		&stubBallotRepo{},
		&stubHistoryRepo{},
		passFilter{},
	)
	broadcaster := &recordingBroadcaster{}
	return NewChatHandler(svc, broadcaster), broadcaster, messages
}

func doRequest(h http.HandlerFunc, method, target, body, paramName, paramValue string, identity *domain.Identity) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(paramName, paramValue)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if identity != nil {
		ctx = middleware.WithIdentity(ctx, identity)
	}
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestChatHandler_Edit_BroadcastsUpdate(t *testing.T) {
	msg := &domain.ChatMessage{
		ID:        "msg-1",
		GroupID:   "group-1",
		AuthorID:  "user-1",
		Body:      "before",
		Kind:      domain.KindText,
		CreatedAt: time.Now(),
	}
	h, broadcaster, _ := newChatFixture(msg)

	rec := doRequest(h.Edit, http.MethodPatch, "/api/messages/msg-1", `{"body":"after"}`,
		"id", "msg-1", &domain.Identity{UserID: "user-1", DisplayName: "SilentGhost42"})

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if broadcaster.groupID != "group-1" {
		t.Errorf("Expected broadcast to group-1, got %q", broadcaster.groupID)
	}
	if !strings.Contains(string(broadcaster.payload), "message_edited") {
		t.Errorf("Expected message_edited frame, got %s", broadcaster.payload)
	}
}

func TestChatHandler_Edit_WindowExpired(t *testing.T) {
	msg := &domain.ChatMessage{
		ID:        "msg-1",
		GroupID:   "group-1",
		AuthorID:  "user-1",
		Body:      "old",
		CreatedAt: time.Now().Add(-10 * time.Minute),
	}
	h, broadcaster, _ := newChatFixture(msg)

	rec := doRequest(h.Edit, http.MethodPatch, "/api/messages/msg-1", `{"body":"late"}`,
		"id", "msg-1", &domain.Identity{UserID: "user-1"})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for expired window, got %d", rec.Code)
	}
	if broadcaster.payload != nil {
		t.Error("Expected no broadcast on failure")
	}
}

func TestChatHandler_Vote_NotAPoll(t *testing.T) {
	msg := &domain.ChatMessage{
		ID:       "msg-1",
		GroupID:  "group-1",
		AuthorID: "user-1",
		Kind:     domain.KindText,
	}
	h, _, _ := newChatFixture(msg)

	rec := doRequest(h.Vote, http.MethodPost, "/api/messages/msg-1/vote", `{"option_index":0}`,
		"id", "msg-1", &domain.Identity{UserID: "user-1"})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for non-poll vote, got %d", rec.Code)
	}
}

func TestChatHandler_React_BroadcastsUpdate(t *testing.T) {
	msg := &domain.ChatMessage{
		ID:       "msg-1",
		GroupID:  "group-1",
		AuthorID: "user-2",
		Kind:     domain.KindText,
	}
	h, broadcaster, _ := newChatFixture(msg)

	rec := doRequest(h.React, http.MethodPost, "/api/messages/msg-1/reactions", `{"emoji":"🔥"}`,
		"id", "msg-1", &domain.Identity{UserID: "user-1"})

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(string(broadcaster.payload), "reaction_updated") {
		t.Errorf("Expected reaction_updated frame, got %s", broadcaster.payload)
	}
}

func TestChatHandler_GetMessages_RequiresIdentity(t *testing.T) {
	h, _, _ := newChatFixture(nil)

	rec := doRequest(h.GetMessages, http.MethodGet, "/api/groups/group-1/messages", "",
		"id", "group-1", nil)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without identity, got %d", rec.Code)
	}
}

func TestChatHandler_GetMessages_RedactsExpired(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	msg := &domain.ChatMessage{
		ID:        "msg-1",
		GroupID:   "group-1",
		AuthorID:  "user-1",
		Body:      "secret",
		ExpiresAt: &past,
	}
	h, _, _ := newChatFixture(msg)

	rec := doRequest(h.GetMessages, http.MethodGet, "/api/groups/group-1/messages", "",
		"id", "group-1", &domain.Identity{UserID: "user-1"})

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp struct {
		Messages []*domain.ChatMessage `json:"messages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(resp.Messages) != 1 || resp.Messages[0].Body == "secret" {
		t.Errorf("Expected redacted body, got %+v", resp.Messages)
	}
}
