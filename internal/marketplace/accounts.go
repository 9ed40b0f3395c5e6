package marketplace

import (
	"context"
	"log/slog"

	"github.com/hitoshi/pertindetu/internal/backend"
	"github.com/hitoshi/pertindetu/internal/model"
)

// AccountBackend は新規登録が利用するマーケットプレイスAPIの操作。
type AccountBackend interface {
	Register(ctx context.Context, reg model.Registration) (int64, error)
}

// AccountService は新規ユーザー登録のワークフロー。
// 登録してもセッションは作らない。利用者は続けてログインする。
type AccountService struct {
	backend AccountBackend
	logger  *slog.Logger
}

// NewAccountService はAccountServiceの新しいインスタンスを生成する。
func NewAccountService(b AccountBackend, logger *slog.Logger) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{backend: b, logger: logger}
}

// Register は入力を正規化・検証してからバックエンドへ登録し、作成されたユーザーIDを返す。
func (s *AccountService) Register(ctx context.Context, reg model.Registration) (int64, error) {
	reg = reg.Normalize()
	if err := reg.Validate(); err != nil {
		return 0, err
	}

	userID, err := s.backend.Register(ctx, reg)
	if err != nil {
		if backend.Classify(err) == backend.OutcomeTransient {
			s.logger.Error("registration failed",
				slog.String("error", err.Error()),
			)
			return 0, model.NewActionFailedError("register")
		}
		return 0, model.NewRegistrationRejectedError(backend.Message(err))
	}

	s.logger.Info("user registered",
		slog.Int64("user_id", userID),
	)
	return userID, nil
}
