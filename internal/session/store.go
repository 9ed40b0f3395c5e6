// Package session は利用者ごとのセッション/アイデンティティ状態とそのライフサイクルを提供する。
// 状態の変更は Store の Login / Logout / LoadUserData / RefreshProvider を通してのみ行う。
package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/pertindetu/internal/backend"
	"github.com/hitoshi/pertindetu/internal/metrics"
	"github.com/hitoshi/pertindetu/internal/model"
)

// Backend はセッションが利用するマーケットプレイスAPIの操作。
type Backend interface {
	Login(ctx context.Context, email, password string) (*model.LoginResult, error)
	GetUser(ctx context.Context, userID int64) (*model.User, error)
	FindProviderByUserID(ctx context.Context, userID int64) (*model.ProviderProfile, error)
	BecomeProvider(ctx context.Context, userID int64) (*model.User, error)
}

// SnapshotStore はセッションスナップショットの永続化先。
type SnapshotStore interface {
	// Load はスナップショットを取得する。存在しない場合はnilを返す。
	Load(ctx context.Context, key string) (*model.SessionSnapshot, error)
	Save(ctx context.Context, snapshot *model.SessionSnapshot) error
	Delete(ctx context.Context, key string) error
}

// State はある時点のセッション状態のコピー。
// IsProvider と IsAdmin は User / Provider から導出され、個別には保持しない。
type State struct {
	LoggedIn   bool                   `json:"loggedIn"`
	UserID     int64                  `json:"userId"`
	User       *model.User            `json:"user"`
	Provider   *model.ProviderProfile `json:"provider"`
	IsProvider bool                   `json:"isProvider"`
	IsAdmin    bool                   `json:"isAdmin"`
}

// Store は1利用者分のセッション状態を保持する。
// ネットワーク呼び出し中はロックを保持しない。
type Store struct {
	key       string
	backend   Backend
	snapshots SnapshotStore
	metrics   metrics.MetricsCollector
	logger    *slog.Logger

	mu       sync.RWMutex
	userID   int64
	user     *model.User
	provider *model.ProviderProfile
	// generation はログイン・ログアウトのたびに進み、それ以前に開始した更新の結果を破棄する。
	generation uint64

	// persistMu はスナップショットの書き込みとログアウト時の削除を直列化する。
	persistMu sync.Mutex
}

// NewStore はStoreを生成する。生成直後は匿名状態。
func NewStore(key string, b Backend, snapshots SnapshotStore, mc metrics.MetricsCollector, logger *slog.Logger) *Store {
	if mc == nil {
		mc = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		key:       key,
		backend:   b,
		snapshots: snapshots,
		metrics:   mc,
		logger:    logger,
	}
}

// Key はセッションキーを返す。
func (s *Store) Key() string {
	return s.key
}

// State は現在の状態のコピーを返す。
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		LoggedIn: s.userID != 0,
		UserID:   s.userID,
		User:     cloneUser(s.user),
		Provider: cloneProvider(s.provider),
	}
	st.IsProvider = st.Provider != nil
	st.IsAdmin = st.User.IsAdmin()
	return st
}

// Restore はスナップショットがあればメモリへ読み込む。バックエンドへは問い合わせない。
func (s *Store) Restore(ctx context.Context) error {
	snap, err := s.snapshots.Load(ctx, s.key)
	if err != nil {
		return fmt.Errorf("failed to load session snapshot: %w", err)
	}
	if snap == nil || snap.User.ID == 0 {
		return nil
	}

	user := snap.User
	s.mu.Lock()
	s.userID = user.ID
	s.user = &user
	s.provider = cloneProvider(snap.Provider)
	s.generation++
	s.mu.Unlock()
	return nil
}

// Login は認証を行い、ユーザーレコードとプロバイダープロフィールを取得して認証済み状態へ遷移する。
// 認証またはユーザー取得に失敗した場合は既存の状態を変更せずにエラーを返す。
// プロバイダープロフィールの取得失敗はログイン自体を失敗させない。
func (s *Store) Login(ctx context.Context, email, password string) error {
	result, err := s.backend.Login(ctx, email, password)
	if err != nil {
		return s.loginFailure(err)
	}

	user, err := s.backend.GetUser(ctx, result.UserID)
	if err != nil {
		return s.loginFailure(err)
	}
	if user == nil {
		s.metrics.RecordLogin("invalid_credentials")
		return model.NewAuthenticationFailedError("")
	}

	provider, err := s.backend.FindProviderByUserID(ctx, user.ID)
	if err != nil {
		s.logger.Warn("failed to fetch provider profile at login",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		provider = nil
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.userID = user.ID
	s.user = user
	s.provider = provider
	s.mu.Unlock()

	s.metrics.RecordLogin("success")
	s.logger.Info("user logged in",
		slog.Int64("user_id", user.ID),
		slog.Bool("is_provider", provider != nil),
	)

	s.persist(ctx, gen)
	return nil
}

func (s *Store) loginFailure(err error) error {
	switch backend.Classify(err) {
	case backend.OutcomeTransient:
		s.metrics.RecordLogin("error")
		s.logger.Error("login failed",
			slog.String("error", err.Error()),
		)
		return model.NewBackendUnavailableError()
	default:
		s.metrics.RecordLogin("invalid_credentials")
		return model.NewAuthenticationFailedError(backend.Message(err))
	}
}

// Logout はスナップショットとメモリ上の全フィールドを消去する。
// メモリ上の状態は1回のロックで消去され、中間状態は観測されない。
func (s *Store) Logout(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	userID := s.userID
	s.userID = 0
	s.user = nil
	s.provider = nil
	s.generation++
	s.mu.Unlock()

	if err := s.snapshots.Delete(ctx, s.key); err != nil {
		return fmt.Errorf("failed to delete session snapshot: %w", err)
	}

	if userID != 0 {
		s.logger.Info("user logged out", slog.Int64("user_id", userID))
	}
	return nil
}

// LoadUserData はユーザーレコードを再取得する。ユーザーIDが未設定の場合は何もしない。
// 取得に失敗した場合は既存の状態を保持したままエラーを返す。
func (s *Store) LoadUserData(ctx context.Context) error {
	userID, gen := s.current()
	if userID == 0 {
		return nil
	}

	user, err := s.backend.GetUser(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to reload user data, keeping last known state",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return model.NewBackendUnavailableError()
	}
	if user == nil {
		s.logger.Warn("user record not found, keeping last known state",
			slog.Int64("user_id", userID),
		)
		return nil
	}

	if !s.apply(gen, func() { s.user = user }) {
		return nil
	}
	s.persist(ctx, gen)
	return nil
}

// RefreshProvider はプロバイダープロフィールを再取得する。
// プロフィールが存在しない場合はnilに設定する。これが IsProvider を false に戻す唯一の経路。
// 取得に失敗した場合は既存のプロフィールを保持したままエラーを返す。
func (s *Store) RefreshProvider(ctx context.Context) error {
	userID, gen := s.current()
	if userID == 0 {
		return nil
	}

	provider, err := s.backend.FindProviderByUserID(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to refresh provider profile, keeping last known state",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		return model.NewBackendUnavailableError()
	}

	if !s.apply(gen, func() { s.provider = provider }) {
		return nil
	}
	s.persist(ctx, gen)
	return nil
}

// Refresh は LoadUserData と RefreshProvider を並行に実行する。
// 両者は別々のフィールドのみを書き換えるため互いに干渉しない。
func (s *Store) Refresh(ctx context.Context) error {
	var wg sync.WaitGroup
	var userErr, providerErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		userErr = s.LoadUserData(ctx)
	}()
	go func() {
		defer wg.Done()
		providerErr = s.RefreshProvider(ctx)
	}()
	wg.Wait()

	if userErr != nil {
		return userErr
	}
	return providerErr
}

// BecomeProvider は現在のユーザーをプロバイダーへ昇格させ、セッションを再取得する。
func (s *Store) BecomeProvider(ctx context.Context) error {
	userID, _ := s.current()
	if userID == 0 {
		return model.NewUnauthenticatedError()
	}

	if _, err := s.backend.BecomeProvider(ctx, userID); err != nil {
		s.logger.Error("failed to become provider",
			slog.Int64("user_id", userID),
			slog.String("error", err.Error()),
		)
		if backend.Classify(err) == backend.OutcomeTransient {
			return model.NewActionFailedError("become provider")
		}
		return model.NewForbiddenActionError(rejectionMessage(err, "provider registration was rejected"))
	}

	return s.Refresh(ctx)
}

func (s *Store) current() (int64, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID, s.generation
}

// apply は取得開始時から世代が変わっていなければ fn を適用する。
func (s *Store) apply(gen uint64, fn func()) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || s.userID == 0 {
		s.logger.Debug("discarding stale session refresh", slog.String("session_key", s.key))
		return false
	}
	fn()
	return true
}

// persist は現在の状態をスナップショットとして保存する。
// 保存前に世代が変わっていた場合は何もしない。保存の失敗はメモリ上の状態に影響しない。
func (s *Store) persist(ctx context.Context, gen uint64) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	if s.generation != gen || s.user == nil {
		s.mu.RUnlock()
		return
	}
	snap := &model.SessionSnapshot{
		Key:       s.key,
		User:      *cloneUser(s.user),
		Provider:  cloneProvider(s.provider),
		UpdatedAt: time.Now(),
	}
	s.mu.RUnlock()

	if err := s.snapshots.Save(ctx, snap); err != nil {
		s.logger.Warn("failed to save session snapshot",
			slog.Int64("user_id", snap.User.ID),
			slog.String("error", err.Error()),
		)
	}
}

func rejectionMessage(err error, fallback string) string {
	if msg := backend.Message(err); msg != "" {
		return msg
	}
	return fallback
}

func cloneUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func cloneProvider(p *model.ProviderProfile) *model.ProviderProfile {
	if p == nil {
		return nil
	}
	c := *p
	if p.Categories != nil {
		c.Categories = append([]model.Category(nil), p.Categories...)
	}
	if p.ProfilePhotoURL != nil {
		url := *p.ProfilePhotoURL
		c.ProfilePhotoURL = &url
	}
	return &c
}
