package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/pertindetu/internal/model"
)

// PostgresSnapshotRepo はPostgreSQLを使用したセッションスナップショットリポジトリ。
// ユーザーレコードとプロバイダープロフィールはJSONBとして保存する。
type PostgresSnapshotRepo struct {
	db *sql.DB
}

// NewPostgresSnapshotRepo はPostgresSnapshotRepoを生成する。
func NewPostgresSnapshotRepo(db *sql.DB) *PostgresSnapshotRepo {
	return &PostgresSnapshotRepo{db: db}
}

// Load は指定キーのスナップショットを取得する。見つからない場合はnilを返す。
func (r *PostgresSnapshotRepo) Load(ctx context.Context, key string) (*model.SessionSnapshot, error) {
	var (
		userJSON     []byte
		providerJSON []byte
		snap         = &model.SessionSnapshot{Key: key}
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT user_json, provider_json, updated_at
		 FROM session_snapshots
		 WHERE key = $1`,
		key,
	).Scan(&userJSON, &providerJSON, &snap.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session snapshot: %w", err)
	}

	if err := json.Unmarshal(userJSON, &snap.User); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot user: %w", err)
	}
	if len(providerJSON) > 0 {
		var provider model.ProviderProfile
		if err := json.Unmarshal(providerJSON, &provider); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot provider: %w", err)
		}
		snap.Provider = &provider
	}

	return snap, nil
}

// Save はスナップショットを作成または上書きする。
func (r *PostgresSnapshotRepo) Save(ctx context.Context, snap *model.SessionSnapshot) error {
	userJSON, err := json.Marshal(snap.User)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot user: %w", err)
	}

	var providerJSON []byte
	if snap.Provider != nil {
		providerJSON, err = json.Marshal(snap.Provider)
		if err != nil {
			return fmt.Errorf("failed to encode snapshot provider: %w", err)
		}
	}

	updatedAt := snap.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO session_snapshots (key, user_id, user_json, provider_json, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (key) DO UPDATE SET
		     user_id = EXCLUDED.user_id,
		     user_json = EXCLUDED.user_json,
		     provider_json = EXCLUDED.provider_json,
		     updated_at = EXCLUDED.updated_at`,
		snap.Key, snap.User.ID, userJSON, nullableJSON(providerJSON), updatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save session snapshot: %w", err)
	}
	return nil
}

// Delete は指定キーのスナップショットを削除する。
func (r *PostgresSnapshotRepo) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM session_snapshots WHERE key = $1`,
		key,
	)
	if err != nil {
		return fmt.Errorf("failed to delete session snapshot: %w", err)
	}
	return nil
}

// DeleteOlderThan は cutoff より前に更新されたスナップショットを削除する。
func (r *PostgresSnapshotRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM session_snapshots WHERE updated_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired session snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted session snapshots: %w", err)
	}
	return n, nil
}

// nullableJSON は空のJSONをSQLのNULLとして渡す。
func nullableJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// compile-time interface check
var _ SnapshotRepository = (*PostgresSnapshotRepo)(nil)
