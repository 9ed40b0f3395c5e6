package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/hitoshi/pertindetu/internal/middleware"
	"github.com/hitoshi/pertindetu/internal/model"
	"github.com/hitoshi/pertindetu/internal/security"
	"github.com/hitoshi/pertindetu/internal/session"
)

// SessionService は認証ハンドラーが必要とするセッション管理のインターフェース。
// session.Manager が満たす。
type SessionService interface {
	Get(ctx context.Context, key string) (*session.Store, error)
	Login(ctx context.Context, previousKey, email, password string) (*session.Store, error)
	Logout(ctx context.Context, key string) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はログイン・ログアウトとセッション状態のHTTPハンドラー。
type AuthHandler struct {
	sessions SessionService
	config   AuthHandlerConfig
	views    views
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(sessions SessionService, config AuthHandlerConfig, sanitizer security.TextSanitizer) *AuthHandler {
	return &AuthHandler{
		sessions: sessions,
		config:   config,
		views:    views{sanitizer: sanitizer},
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login はメールアドレスとパスワードで認証し、新しいセッションCookieを発行する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		handleServiceError(w, r, model.NewValidationError("email and password are required"))
		return
	}

	store, err := h.sessions.Login(r.Context(), middleware.SessionKeyFromRequest(r), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(store.Key(), h.config.SessionMaxAge))
	writeJSON(w, http.StatusOK, h.views.session(store.State()))
}

// Logout はセッションを破棄する。Cookieは常にクリアする。
// スナップショットを削除できなかった場合はセッションを失効済みとして保持し、エラーを返す。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, h.sessionCookie("", -1))

	if key := middleware.SessionKeyFromRequest(r); key != "" {
		if err := h.sessions.Logout(r.Context(), key); err != nil {
			handleServiceError(w, r, err)
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のセッション状態を返す。バックエンドへは問い合わせない。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	key := middleware.SessionKeyFromRequest(r)
	if key == "" {
		writeJSON(w, http.StatusOK, sessionView{})
		return
	}

	store, err := h.sessions.Get(r.Context(), key)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.views.session(store.State()))
}

// Refresh はユーザーレコードとプロバイダープロフィールを再取得する。
// 失敗しても直前の状態は保持される。
// POST /auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	store, ok := h.currentStore(w, r)
	if !ok {
		return
	}
	if err := store.Refresh(r.Context()); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.views.session(store.State()))
}

// BecomeProvider は現在のユーザーをプロバイダーに昇格させる。
// POST /api/me/become-provider
func (h *AuthHandler) BecomeProvider(w http.ResponseWriter, r *http.Request) {
	store, ok := h.currentStore(w, r)
	if !ok {
		return
	}
	if err := store.BecomeProvider(r.Context()); err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.views.session(store.State()))
}

func (h *AuthHandler) currentStore(w http.ResponseWriter, r *http.Request) (*session.Store, bool) {
	key := middleware.SessionKeyFromContext(r.Context())
	if key == "" {
		handleServiceError(w, r, model.NewUnauthenticatedError())
		return nil, false
	}
	store, err := h.sessions.Get(r.Context(), key)
	if err != nil {
		handleServiceError(w, r, err)
		return nil, false
	}
	return store, true
}

func (h *AuthHandler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}
