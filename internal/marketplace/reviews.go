package marketplace

import (
	"context"
	"log/slog"

	"github.com/hitoshi/pertindetu/internal/backend"
	"github.com/hitoshi/pertindetu/internal/capability"
	"github.com/hitoshi/pertindetu/internal/model"
)

// ReviewBackend はレビューワークフローが利用するマーケットプレイスAPIの操作。
type ReviewBackend interface {
	GetOrder(ctx context.Context, orderID int64) (*model.Order, error)
	ListReviewsByUser(ctx context.Context, userID int64, pr model.PageRequest) (*model.Page[model.Review], error)
	ListReviewsByService(ctx context.Context, serviceID int64, pr model.PageRequest) (*model.Page[model.Review], error)
	GetReview(ctx context.Context, reviewID int64) (*model.Review, error)
	CreateReview(ctx context.Context, in model.ReviewInput) (*model.Review, error)
	UpdateReview(ctx context.Context, reviewID int64, in model.ReviewInput) (*model.Review, error)
	DeleteReview(ctx context.Context, reviewID, userID int64) error
}

// ReviewService はレビューの投稿・編集・削除のワークフロー。
// 注文と同じく、操作できるのは所有者本人のみ。
type ReviewService struct {
	backend ReviewBackend
	logger  *slog.Logger
}

// NewReviewService はReviewServiceの新しいインスタンスを生成する。
func NewReviewService(b ReviewBackend, logger *slog.Logger) *ReviewService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewService{backend: b, logger: logger}
}

// ListMine は actor が投稿したレビューの一覧を返す。
func (s *ReviewService) ListMine(ctx context.Context, actor capability.Actor, pr model.PageRequest) (*model.Page[model.Review], error) {
	if actor.UserID == 0 {
		return nil, model.NewUnauthenticatedError()
	}
	page, err := s.backend.ListReviewsByUser(ctx, actor.UserID, pr.Normalize())
	if err != nil {
		if backend.Classify(err) == backend.OutcomeTransient {
			return nil, model.NewBackendUnavailableError()
		}
		return nil, model.NewForbiddenActionError(messageOr(err, "reviews could not be listed"))
	}
	if page.Content == nil {
		page.Content = []model.Review{}
	}
	return page, nil
}

// ListForService はサービスに寄せられたレビューの一覧を返す。ログインしていれば誰でも閲覧できる。
func (s *ReviewService) ListForService(ctx context.Context, serviceID int64, pr model.PageRequest) (*model.Page[model.Review], error) {
	if serviceID <= 0 {
		return nil, model.NewValidationError("service id must be positive")
	}
	page, err := s.backend.ListReviewsByService(ctx, serviceID, pr.Normalize())
	if err != nil {
		if backend.Classify(err) == backend.OutcomeTransient {
			return nil, model.NewBackendUnavailableError()
		}
		return nil, model.NewForbiddenActionError(messageOr(err, "reviews could not be listed"))
	}
	if page.Content == nil {
		page.Content = []model.Review{}
	}
	return page, nil
}

// Create は自分が依頼した完了済み注文に対してレビューを投稿する。
func (s *ReviewService) Create(ctx context.Context, actor capability.Actor, in model.ReviewInput) (*model.Review, error) {
	if actor.UserID == 0 {
		return nil, model.NewUnauthenticatedError()
	}

	o, err := s.backend.GetOrder(ctx, in.OrderID)
	if err != nil {
		if backend.Classify(err) == backend.OutcomeTransient {
			return nil, model.NewBackendUnavailableError()
		}
		return nil, model.NewForbiddenActionError(messageOr(err, "order could not be loaded"))
	}
	if o == nil {
		return nil, model.NewOrderNotFoundError(in.OrderID)
	}
	if !capability.ForOrder(actor, capability.RoleClient, o).Review {
		return nil, model.NewForbiddenActionError("only the client of a completed order can review it")
	}

	in.UserID = actor.UserID
	in.ServiceID = o.Service.ID
	if err := in.Validate(); err != nil {
		return nil, err
	}

	r, err := s.backend.CreateReview(ctx, in)
	if err != nil {
		return nil, s.writeFailure("create review", err)
	}
	s.logger.Info("review created",
		slog.Int64("review_id", r.ID),
		slog.Int64("order_id", in.OrderID),
		slog.Int64("user_id", actor.UserID),
	)
	return r, nil
}

// Update は自分のレビューの評価とコメントを更新する。
func (s *ReviewService) Update(ctx context.Context, actor capability.Actor, reviewID int64, in model.ReviewInput) (*model.Review, error) {
	existing, err := s.owned(ctx, actor, reviewID, func(c capability.ReviewCapabilities) bool { return c.Edit })
	if err != nil {
		return nil, err
	}

	in.UserID = actor.UserID
	in.OrderID = existing.OrderID
	in.ServiceID = existing.Service.ID
	if err := in.Validate(); err != nil {
		return nil, err
	}

	r, err := s.backend.UpdateReview(ctx, reviewID, in)
	if err != nil {
		return nil, s.writeFailure("update review", err)
	}
	return r, nil
}

// Delete は自分のレビューを削除する。
func (s *ReviewService) Delete(ctx context.Context, actor capability.Actor, reviewID int64) error {
	if _, err := s.owned(ctx, actor, reviewID, func(c capability.ReviewCapabilities) bool { return c.Delete }); err != nil {
		return err
	}
	if err := s.backend.DeleteReview(ctx, reviewID, actor.UserID); err != nil {
		return s.writeFailure("delete review", err)
	}
	s.logger.Info("review deleted",
		slog.Int64("review_id", reviewID),
		slog.Int64("user_id", actor.UserID),
	)
	return nil
}

// owned はレビューを取得し、allowed が真を返す場合のみ返す。
func (s *ReviewService) owned(ctx context.Context, actor capability.Actor, reviewID int64, allowed func(capability.ReviewCapabilities) bool) (*model.Review, error) {
	if actor.UserID == 0 {
		return nil, model.NewUnauthenticatedError()
	}
	r, err := s.backend.GetReview(ctx, reviewID)
	if err != nil {
		if backend.Classify(err) == backend.OutcomeTransient {
			return nil, model.NewBackendUnavailableError()
		}
		return nil, model.NewForbiddenActionError(messageOr(err, "review could not be loaded"))
	}
	if r == nil {
		return nil, model.NewReviewNotFoundError(reviewID)
	}
	if !allowed(capability.ForReview(actor, r)) {
		return nil, model.NewForbiddenActionError("review belongs to another user")
	}
	return r, nil
}

func (s *ReviewService) writeFailure(action string, err error) error {
	if backend.Classify(err) == backend.OutcomeTransient {
		s.logger.Error("review mutation failed",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
		return model.NewActionFailedError(action)
	}
	return model.NewForbiddenActionError(messageOr(err, action+" was rejected by the marketplace"))
}
