package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/pertindetu/internal/model"
)

// ListReviewsByUser はユーザーが投稿したレビューをページ単位で取得する。
func (c *Client) ListReviewsByUser(ctx context.Context, userID int64, pr model.PageRequest) (*model.Page[model.Review], error) {
	return c.listReviews(ctx, "list_reviews_by_user", idPath("/reviews/user/%d", userID), pr)
}

// ListReviewsByService はサービスに対するレビューをページ単位で取得する。
func (c *Client) ListReviewsByService(ctx context.Context, serviceID int64, pr model.PageRequest) (*model.Page[model.Review], error) {
	return c.listReviews(ctx, "list_reviews_by_service", idPath("/reviews/service/%d", serviceID), pr)
}

func (c *Client) listReviews(ctx context.Context, endpoint, path string, pr model.PageRequest) (*model.Page[model.Review], error) {
	var page model.Page[model.Review]
	if err := c.call(ctx, endpoint, http.MethodGet, path, pr.Values(), nil, &page); err != nil {
		return nil, err
	}
	if page.Content == nil {
		page.Content = []model.Review{}
	}
	return &page, nil
}

// GetReview はレビューを1件取得する。見つからない場合はnilを返す。
func (c *Client) GetReview(ctx context.Context, reviewID int64) (*model.Review, error) {
	var r model.Review
	if err := c.call(ctx, "get_review", http.MethodGet, idPath("/reviews/%d", reviewID), nil, nil, &r); err != nil {
		if Classify(err) == OutcomeNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// CreateReview はレビューを投稿する。
func (c *Client) CreateReview(ctx context.Context, in model.ReviewInput) (*model.Review, error) {
	var r model.Review
	if err := c.call(ctx, "create_review", http.MethodPost, "/reviews", nil, in, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateReview はレビューを更新する。
func (c *Client) UpdateReview(ctx context.Context, reviewID int64, in model.ReviewInput) (*model.Review, error) {
	var r model.Review
	if err := c.call(ctx, "update_review", http.MethodPut, idPath("/reviews/%d", reviewID), nil, in, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// DeleteReview はレビューを削除する。
func (c *Client) DeleteReview(ctx context.Context, reviewID, userID int64) error {
	q := url.Values{}
	q.Set("userId", strconv.FormatInt(userID, 10))
	return c.call(ctx, "delete_review", http.MethodDelete, idPath("/reviews/%d", reviewID), q, nil, nil)
}
