package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/pertindetu/internal/capability"
	"github.com/hitoshi/pertindetu/internal/model"
	"github.com/hitoshi/pertindetu/internal/security"
)

// ReviewServiceInterface はレビューハンドラーが必要とするサービスインターフェース。
type ReviewServiceInterface interface {
	ListMine(ctx context.Context, actor capability.Actor, pr model.PageRequest) (*model.Page[model.Review], error)
	ListForService(ctx context.Context, serviceID int64, pr model.PageRequest) (*model.Page[model.Review], error)
	Create(ctx context.Context, actor capability.Actor, in model.ReviewInput) (*model.Review, error)
	Update(ctx context.Context, actor capability.Actor, reviewID int64, in model.ReviewInput) (*model.Review, error)
	Delete(ctx context.Context, actor capability.Actor, reviewID int64) error
}

// ReviewHandler はレビュー管理のHTTPハンドラー。
type ReviewHandler struct {
	service ReviewServiceInterface
	actors  ActorResolver
	views   views
}

// NewReviewHandler はReviewHandlerを生成する。
func NewReviewHandler(service ReviewServiceInterface, actors ActorResolver, sanitizer security.TextSanitizer) *ReviewHandler {
	return &ReviewHandler{
		service: service,
		actors:  actors,
		views:   views{sanitizer: sanitizer},
	}
}

type reviewRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
	OrderID int64  `json:"orderId"`
}

// ListMyReviews はセッションユーザーが投稿したレビュー一覧を返す。
// GET /api/reviews/mine
func (h *ReviewHandler) ListMyReviews(w http.ResponseWriter, r *http.Request) {
	actor, ok := resolveActor(w, r, h.actors)
	if !ok {
		return
	}
	pr, err := pageRequest(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	page, err := h.service.ListMine(r.Context(), actor, pr)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.views.reviewPage(page, actor))
}

// ListServiceReviews はサービスに寄せられたレビュー一覧を返す。
// 自分のレビューには編集・削除の操作集合が付く。
// GET /api/services/{id}/reviews
func (h *ReviewHandler) ListServiceReviews(w http.ResponseWriter, r *http.Request) {
	actor, ok := resolveActor(w, r, h.actors)
	if !ok {
		return
	}
	serviceID, err := pathID(r, "id")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	pr, err := pageRequest(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	page, err := h.service.ListForService(r.Context(), serviceID, pr)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.views.reviewPage(page, actor))
}

// CreateReview は完了済み注文にレビューを投稿する。
// POST /api/reviews
func (h *ReviewHandler) CreateReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := resolveActor(w, r, h.actors)
	if !ok {
		return
	}
	var req reviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}
	if req.OrderID <= 0 {
		handleServiceError(w, r, model.NewValidationError("order is required"))
		return
	}

	review, err := h.service.Create(r.Context(), actor, model.ReviewInput{
		Rating:  req.Rating,
		Comment: req.Comment,
		OrderID: req.OrderID,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.views.review(review, actor))
}

// UpdateReview は自分のレビューを更新する。
// PUT /api/reviews/{id}
func (h *ReviewHandler) UpdateReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := resolveActor(w, r, h.actors)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	var req reviewRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	review, err := h.service.Update(r.Context(), actor, id, model.ReviewInput{
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.views.review(review, actor))
}

// DeleteReview は自分のレビューを削除する。
// DELETE /api/reviews/{id}
func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	actor, ok := resolveActor(w, r, h.actors)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), actor, id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
