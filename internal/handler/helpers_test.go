package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/pertindetu/internal/backend"
	"github.com/hitoshi/pertindetu/internal/capability"
	"github.com/hitoshi/pertindetu/internal/middleware"
	"github.com/hitoshi/pertindetu/internal/model"
	"github.com/hitoshi/pertindetu/internal/security"
	"github.com/hitoshi/pertindetu/internal/session"
)

// --- セッション用フェイク ---

// fakeIdentityBackend は session.Backend のフェイク。
// パスワードは全ユーザー共通で "secret"。
type fakeIdentityBackend struct {
	mu          sync.Mutex
	users       map[string]*model.User // email -> user
	providers   map[int64]*model.ProviderProfile
	unavailable bool
	calls       atomic.Int32
}

var _ session.Backend = (*fakeIdentityBackend)(nil)

func newFakeIdentityBackend() *fakeIdentityBackend {
	return &fakeIdentityBackend{
		users: map[string]*model.User{
			"client@example.com":   {ID: 42, Name: "Ana", Email: "client@example.com", Active: true},
			"provider@example.com": {ID: 50, Name: "Bruno", Email: "provider@example.com", Active: true},
		},
		providers: map[int64]*model.ProviderProfile{
			50: {ID: 7, UserID: 50, Bio: "<p>Eletricista</p><script>alert(1)</script>"},
		},
	}
}

func (f *fakeIdentityBackend) userByID(id int64) *model.User {
	for _, u := range f.users {
		if u.ID == id {
			c := *u
			return &c
		}
	}
	return nil
}

func (f *fakeIdentityBackend) Login(ctx context.Context, email, password string) (*model.LoginResult, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return nil, &backend.StatusError{Endpoint: "login", StatusCode: http.StatusServiceUnavailable}
	}
	u, ok := f.users[email]
	if !ok || password != "secret" {
		return nil, &backend.StatusError{Endpoint: "login", StatusCode: http.StatusUnauthorized, Message: "Credenciais inválidas"}
	}
	return &model.LoginResult{StatusCode: http.StatusOK, UserID: u.ID}, nil
}

func (f *fakeIdentityBackend) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return nil, &backend.StatusError{Endpoint: "get_user", StatusCode: http.StatusServiceUnavailable}
	}
	return f.userByID(userID), nil
}

func (f *fakeIdentityBackend) FindProviderByUserID(ctx context.Context, userID int64) (*model.ProviderProfile, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return nil, &backend.StatusError{Endpoint: "list_providers", StatusCode: http.StatusServiceUnavailable}
	}
	p, ok := f.providers[userID]
	if !ok {
		return nil, nil
	}
	c := *p
	return &c, nil
}

func (f *fakeIdentityBackend) BecomeProvider(ctx context.Context, userID int64) (*model.User, error) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unavailable {
		return nil, &backend.StatusError{Endpoint: "become_provider", StatusCode: http.StatusServiceUnavailable}
	}
	f.providers[userID] = &model.ProviderProfile{ID: 100 + userID, UserID: userID}
	return f.userByID(userID), nil
}

// memorySnapshots は session.SnapshotStore のメモリ実装。
type memorySnapshots struct {
	mu     sync.Mutex
	data   map[string]model.SessionSnapshot
	delErr error
}

var _ session.SnapshotStore = (*memorySnapshots)(nil)

func newMemorySnapshots() *memorySnapshots {
	return &memorySnapshots{data: make(map[string]model.SessionSnapshot)}
}

func (m *memorySnapshots) Load(_ context.Context, key string) (*model.SessionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memorySnapshots) Save(_ context.Context, snap *model.SessionSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[snap.Key] = *snap
	return nil
}

func (m *memorySnapshots) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delErr != nil {
		return m.delErr
	}
	delete(m.data, key)
	return nil
}

func (m *memorySnapshots) setDeleteError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delErr = err
}

func (m *memorySnapshots) has(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	return ok
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T, b session.Backend, snaps session.SnapshotStore) *session.Manager {
	t.Helper()
	m := session.NewManager(b, snaps, nil, discardLogger(), session.ManagerConfig{})
	t.Cleanup(m.Stop)
	return m
}

// loginKey はManager経由でログインし、セッションキーを返す。
func loginKey(t *testing.T, m *session.Manager, email string) string {
	t.Helper()
	store, err := m.Login(context.Background(), "", email, "secret")
	if err != nil {
		t.Fatalf("Login(%s) returned error: %v", email, err)
	}
	return store.Key()
}

// --- 注文・レビュー用モック ---

type mockActorResolver struct {
	actors map[string]capability.Actor
	err    error
}

func (m *mockActorResolver) Actor(ctx context.Context, key string) (capability.Actor, error) {
	if m.err != nil {
		return capability.Actor{}, m.err
	}
	return m.actors[key], nil
}

var (
	clientActor   = capability.Actor{UserID: 42}
	providerActor = capability.Actor{UserID: 50, ProviderID: 7}
	adminActor    = capability.Actor{UserID: 1, IsAdmin: true}
)

func newMockActors() *mockActorResolver {
	return &mockActorResolver{actors: map[string]capability.Actor{
		"client-key":   clientActor,
		"provider-key": providerActor,
		"admin-key":    adminActor,
	}}
}

func sampleOrder(id int64, status model.OrderStatus) model.Order {
	details := "Bolo de <b>chocolate</b>"
	return model.Order{
		ID:        id,
		Status:    status,
		Details:   &details,
		Quantity:  3,
		Value:     decimal.RequireFromString("7.50"),
		CreatedAt: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
		Client:    model.ClientSummary{ID: 42, Name: "Ana"},
		Provider:  model.ProviderSummary{ID: 7, Name: "Bruno", Bio: `<a href="javascript:x()">bio</a>`},
		Service:   model.ServiceSummary{ID: 3, Title: "Bolos", BasePrice: decimal.RequireFromString("7.50")},
	}
}

func orderPage(orders ...model.Order) *model.Page[model.Order] {
	return &model.Page[model.Order]{
		Content:       orders,
		TotalElements: int64(len(orders)),
		TotalPages:    1,
		Size:          model.DefaultPageSize,
		Number:        0,
	}
}

// withSession はセッションミドルウェアを通過したリクエストを模擬する。
func withSession(req *http.Request, key string) *http.Request {
	return req.WithContext(middleware.ContextWithSessionKey(req.Context(), key))
}

func testSanitizer() security.TextSanitizer {
	return security.NewTextSanitizer()
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return v
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body: %s)", w.Code, want, w.Body.String())
	}
}

func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, want string) {
	t.Helper()
	body := decodeBody[middleware.ErrorResponseBody](t, w)
	if body.Code != want {
		t.Errorf("error code = %q, want %q", body.Code, want)
	}
}
