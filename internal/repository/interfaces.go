// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/pertindetu/internal/model"
)

// SnapshotRepository はセッションスナップショットの永続化インターフェース。
type SnapshotRepository interface {
	// Load は指定キーのスナップショットを取得する。見つからない場合はnilを返す。
	Load(ctx context.Context, key string) (*model.SessionSnapshot, error)
	// Save はスナップショットを作成または上書きする。
	Save(ctx context.Context, snapshot *model.SessionSnapshot) error
	// Delete は指定キーのスナップショットを削除する。存在しなくてもエラーにしない。
	Delete(ctx context.Context, key string) error
	// DeleteOlderThan は cutoff より前に更新されたスナップショットを削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
