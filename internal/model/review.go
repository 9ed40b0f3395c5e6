package model

import "time"

// Review は完了済み注文に対するクライアントのレビュー。
type Review struct {
	ID        int64             `json:"id"`
	Rating    int               `json:"rating"`
	Comment   string            `json:"comment"`
	OrderID   int64             `json:"orderId"`
	CreatedAt time.Time         `json:"createdAt"`
	User      ReviewAuthor      `json:"user"`
	Service   ReviewServiceInfo `json:"service"`
}

// ReviewAuthor はレビュー投稿者のスナップショット。
type ReviewAuthor struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ReviewServiceInfo はレビュー対象サービスのスナップショット。
type ReviewServiceInfo struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	CategoryName string `json:"categoryName"`
}

// ReviewInput はレビューの作成・更新リクエスト。
type ReviewInput struct {
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	OrderID   int64  `json:"orderId"`
	UserID    int64  `json:"userId"`
	ServiceID int64  `json:"serviceId"`
}

// Validate は評価値の範囲と必須項目を検証する。
func (r *ReviewInput) Validate() error {
	switch {
	case r.Rating < 1 || r.Rating > 5:
		return NewValidationError("rating must be between 1 and 5")
	case r.OrderID <= 0:
		return NewValidationError("order is required")
	case r.ServiceID <= 0:
		return NewValidationError("service is required")
	}
	return nil
}
