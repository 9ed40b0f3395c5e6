package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/pertindetu/internal/capability"
	"github.com/hitoshi/pertindetu/internal/metrics"
)

// ManagerConfig はManagerの設定。
type ManagerConfig struct {
	// IdleTimeout はアクセスのないStoreをメモリから追い出すまでの時間。
	// スナップショットは残るため、次回アクセス時に復元される。
	IdleTimeout time.Duration
	// CleanupInterval は追い出し処理の実行間隔。0以下ならバックグラウンド処理を行わない。
	CleanupInterval time.Duration
}

type entry struct {
	store      *Store
	ready      chan struct{}
	err        error
	lastAccess time.Time
	// revoked はログアウト済みだがスナップショットの削除に失敗したことを示す。
	// 削除できるまでメモリに残し、スナップショットからの再復元を防ぐ。
	revoked bool
}

// Manager はセッションキーごとのStoreを管理する。
type Manager struct {
	backend   Backend
	snapshots SnapshotStore
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
	config    ManagerConfig

	mu     sync.Mutex
	stores map[string]*entry

	stopCh chan struct{}
	once   sync.Once
}

// NewManager はManagerを生成し、必要であれば追い出し処理を開始する。
func NewManager(b Backend, snapshots SnapshotStore, mc metrics.MetricsCollector, logger *slog.Logger, cfg ManagerConfig) *Manager {
	if mc == nil {
		mc = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		backend:   b,
		snapshots: snapshots,
		metrics:   mc,
		logger:    logger,
		config:    cfg,
		stores:    make(map[string]*entry),
		stopCh:    make(chan struct{}),
	}
	if cfg.CleanupInterval > 0 && cfg.IdleTimeout > 0 {
		go m.cleanupLoop()
	}
	return m
}

// Get はキーに対応するStoreを返す。初回アクセス時はスナップショットから復元する。
// 同じキーへの同時アクセスでは復元は1回だけ行われ、他の呼び出しは完了を待つ。
// スナップショットがないキーは匿名のStoreを返し、メモリには保持しない。
func (m *Manager) Get(ctx context.Context, key string) (*Store, error) {
	m.mu.Lock()
	e, ok := m.stores[key]
	if !ok {
		e = &entry{
			store: NewStore(key, m.backend, m.snapshots, m.metrics, m.logger),
			ready: make(chan struct{}),
		}
		m.stores[key] = e
	}
	e.lastAccess = time.Now()
	m.mu.Unlock()

	if !ok {
		e.err = e.store.Restore(ctx)
		if e.err != nil || !e.store.State().LoggedIn {
			m.remove(key, e)
		}
		close(e.ready)
		m.reportActive()
	}

	select {
	case <-e.ready:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if e.err != nil {
		return nil, e.err
	}
	return e.store, nil
}

// Login は新しいセッションキーでログインを行う。
// 成功した場合のみStoreを登録し、previousKey のセッションは破棄する。
// 失敗した場合は既存のセッションに一切影響しない。
func (m *Manager) Login(ctx context.Context, previousKey, email, password string) (*Store, error) {
	key, err := NewKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session key: %w", err)
	}

	store := NewStore(key, m.backend, m.snapshots, m.metrics, m.logger)
	if err := store.Login(ctx, email, password); err != nil {
		return nil, err
	}

	e := &entry{store: store, ready: make(chan struct{}), lastAccess: time.Now()}
	close(e.ready)
	m.mu.Lock()
	m.stores[key] = e
	m.mu.Unlock()
	m.reportActive()

	if previousKey != "" && previousKey != key {
		if err := m.Logout(ctx, previousKey); err != nil {
			m.logger.Warn("failed to discard previous session",
				slog.String("error", err.Error()),
			)
		}
	}
	return store, nil
}

// Logout はセッションをログアウトさせ、メモリから取り除く。
// スナップショットの削除に失敗した場合は匿名のStoreを失効済みとして保持し、エラーを返す。
// 失効済みのキーは復元されず、削除は cleanupLoop または次回の Logout で再試行される。
func (m *Manager) Logout(ctx context.Context, key string) error {
	store, err := m.Get(ctx, key)
	if err != nil {
		return err
	}

	if err := store.Logout(ctx); err != nil {
		e := &entry{store: store, ready: make(chan struct{}), lastAccess: time.Now(), revoked: true}
		close(e.ready)
		m.mu.Lock()
		m.stores[key] = e
		m.mu.Unlock()
		m.reportActive()
		m.logger.Warn("session snapshot could not be deleted, keeping session revoked",
			slog.String("error", err.Error()),
		)
		return err
	}

	m.mu.Lock()
	delete(m.stores, key)
	m.mu.Unlock()
	m.reportActive()
	return nil
}

// retryRevoked は失効済みセッションのスナップショット削除を再試行し、削除できた件数を返す。
func (m *Manager) retryRevoked(ctx context.Context) int {
	m.mu.Lock()
	pending := make(map[string]*entry)
	for key, e := range m.stores {
		if e.revoked {
			pending[key] = e
		}
	}
	m.mu.Unlock()

	cleared := 0
	for key, e := range pending {
		if err := m.snapshots.Delete(ctx, key); err != nil {
			m.logger.Warn("retry of session snapshot deletion failed",
				slog.String("error", err.Error()),
			)
			continue
		}
		m.remove(key, e)
		cleared++
	}
	if cleared > 0 {
		m.reportActive()
	}
	return cleared
}

// remove は key の登録が e のままであれば取り除く。
func (m *Manager) remove(key string, e *entry) {
	m.mu.Lock()
	if m.stores[key] == e {
		delete(m.stores, key)
	}
	m.mu.Unlock()
}

// AuthenticatedUserID はセッションのユーザーIDを返す。匿名の場合は0を返す。
func (m *Manager) AuthenticatedUserID(ctx context.Context, key string) (int64, error) {
	store, err := m.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	return store.State().UserID, nil
}

// Actor はセッションの現在の状態から認可判定用の Actor を返す。匿名の場合はゼロ値。
func (m *Manager) Actor(ctx context.Context, key string) (capability.Actor, error) {
	store, err := m.Get(ctx, key)
	if err != nil {
		return capability.Actor{}, err
	}
	return ActorFromState(store.State()), nil
}

// Count はメモリ上のStore数を返す。
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stores)
}

// Stop はバックグラウンド処理を停止する。複数回呼び出しても安全。
func (m *Manager) Stop() {
	m.once.Do(func() {
		close(m.stopCh)
	})
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.retryRevoked(context.Background())
			m.evictIdle(time.Now())
		case <-m.stopCh:
			return
		}
	}
}

// evictIdle は now 時点で IdleTimeout を超えてアクセスのないStoreを取り除く。
func (m *Manager) evictIdle(now time.Time) int {
	m.mu.Lock()
	evicted := 0
	for key, e := range m.stores {
		select {
		case <-e.ready:
		default:
			continue
		}
		if !e.revoked && now.Sub(e.lastAccess) > m.config.IdleTimeout {
			delete(m.stores, key)
			evicted++
		}
	}
	m.mu.Unlock()

	if evicted > 0 {
		m.logger.Debug("evicted idle sessions", slog.Int("count", evicted))
	}
	m.reportActive()
	return evicted
}

func (m *Manager) reportActive() {
	m.metrics.SetActiveSessions(m.Count())
}

// NewKey は暗号的に安全なセッションキーを生成する。
func NewKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
