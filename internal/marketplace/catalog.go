package marketplace

import (
	"context"
	"log/slog"

	"github.com/hitoshi/pertindetu/internal/backend"
	"github.com/hitoshi/pertindetu/internal/model"
)

// CatalogBackend は公開カタログが利用するマーケットプレイスAPIの操作。
type CatalogBackend interface {
	ListPublicServices(ctx context.Context, f model.ServiceFilter, pr model.PageRequest) (*model.Page[model.Service], error)
	GetService(ctx context.Context, serviceID int64) (*model.Service, error)
}

// CatalogService は公開サービス一覧と詳細の読み取り専用ワークフロー。ログインは不要。
type CatalogService struct {
	backend CatalogBackend
	logger  *slog.Logger
}

// NewCatalogService はCatalogServiceの新しいインスタンスを生成する。
func NewCatalogService(b CatalogBackend, logger *slog.Logger) *CatalogService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogService{backend: b, logger: logger}
}

// List は条件に合う公開サービスをページ単位で返す。
func (s *CatalogService) List(ctx context.Context, f model.ServiceFilter, pr model.PageRequest) (*model.Page[model.Service], error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	page, err := s.backend.ListPublicServices(ctx, f, pr.Normalize())
	if err != nil {
		return nil, s.readFailure("list services", err)
	}
	if page.Content == nil {
		page.Content = []model.Service{}
	}
	return page, nil
}

// Get はサービスを1件返す。
func (s *CatalogService) Get(ctx context.Context, serviceID int64) (*model.Service, error) {
	if serviceID <= 0 {
		return nil, model.NewValidationError("service id must be positive")
	}
	svc, err := s.backend.GetService(ctx, serviceID)
	if err != nil {
		return nil, s.readFailure("get service", err)
	}
	if svc == nil {
		return nil, model.NewServiceNotFoundError(serviceID)
	}
	return svc, nil
}

func (s *CatalogService) readFailure(action string, err error) error {
	if backend.Classify(err) == backend.OutcomeTransient {
		s.logger.Warn("marketplace read failed",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
		return model.NewBackendUnavailableError()
	}
	return model.NewValidationError(messageOr(err, action+" was rejected by the marketplace"))
}
