package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/pertindetu/internal/capability"
	"github.com/hitoshi/pertindetu/internal/marketplace"
	"github.com/hitoshi/pertindetu/internal/model"
	"github.com/hitoshi/pertindetu/internal/order"
	"github.com/hitoshi/pertindetu/internal/security"
	"github.com/hitoshi/pertindetu/internal/session"
)

// orderView は1件の注文と、閲覧者が実行できる操作集合。
// 利用者が入力したテキストはサニタイズ済み。
type orderView struct {
	ID           int64                        `json:"id"`
	Status       model.OrderStatus            `json:"status"`
	StatusLabel  string                       `json:"statusLabel"`
	Terminal     bool                         `json:"terminal"`
	Quantity     int64                        `json:"quantity"`
	Value        decimal.Decimal              `json:"value"`
	Total        decimal.Decimal              `json:"total"`
	Details      string                       `json:"details"`
	EventDate    *time.Time                   `json:"eventDate,omitempty"`
	CreatedAt    time.Time                    `json:"createdAt"`
	Client       model.ClientSummary          `json:"client"`
	Provider     model.ProviderSummary        `json:"provider"`
	Service      model.ServiceSummary         `json:"service"`
	Capabilities capability.OrderCapabilities `json:"capabilities"`
}

type pageView[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Size          int   `json:"size"`
	Number        int   `json:"number"`
}

// sessionView はログイン状態の表示用。匿名の場合は loggedIn のみ false。
type sessionView struct {
	LoggedIn   bool                   `json:"loggedIn"`
	UserID     int64                  `json:"userId"`
	User       *model.User            `json:"user"`
	Provider   *model.ProviderProfile `json:"provider"`
	IsProvider bool                   `json:"isProvider"`
	IsAdmin    bool                   `json:"isAdmin"`
}

type reviewView struct {
	model.Review
	Capabilities capability.ReviewCapabilities `json:"capabilities"`
}

// mutationView は注文の変更結果と、再取得した一覧。
type mutationView struct {
	Order  *orderView           `json:"order"`
	Orders *pageView[orderView] `json:"orders"`
}

// rejectionView はバックエンドに拒否された変更のエラー本文。再取得した一覧を含む。
type rejectionView struct {
	Code     string               `json:"code"`
	Message  string               `json:"message"`
	Category string               `json:"category"`
	Action   string               `json:"action"`
	Orders   *pageView[orderView] `json:"orders"`
}

// serviceView は公開サービスの表示用。タイトルと説明はサニタイズ済み。
type serviceView struct {
	model.Service
}

// views はドメインモデルを表示用の形へ変換する。
type views struct {
	sanitizer security.TextSanitizer
}

func (v views) order(o *model.Order, caps capability.OrderCapabilities) orderView {
	details := ""
	if o.Details != nil {
		details = v.sanitizer.Text(*o.Details)
	}
	if caps.Transitions == nil {
		caps.Transitions = []model.OrderStatus{}
	}
	provider := o.Provider
	provider.Bio = v.sanitizer.RichText(provider.Bio)
	service := o.Service
	service.Description = v.sanitizer.Text(service.Description)

	return orderView{
		ID:           o.ID,
		Status:       o.Status,
		StatusLabel:  o.Status.Label(),
		Terminal:     order.IsTerminal(o.Status),
		Quantity:     o.Quantity,
		Value:        o.Value,
		Total:        o.Total(),
		Details:      details,
		EventDate:    o.EventDate,
		CreatedAt:    o.CreatedAt,
		Client:       o.Client,
		Provider:     provider,
		Service:      service,
		Capabilities: caps,
	}
}

// orderPage は一覧の各注文に actor の role での操作集合を付けて変換する。
func (v views) orderPage(page *model.Page[model.Order], actor capability.Actor, role capability.Role) *pageView[orderView] {
	if page == nil {
		return nil
	}
	out := &pageView[orderView]{
		Content:       make([]orderView, 0, len(page.Content)),
		TotalElements: page.TotalElements,
		TotalPages:    page.TotalPages,
		Size:          page.Size,
		Number:        page.Number,
	}
	for i := range page.Content {
		o := &page.Content[i]
		out.Content = append(out.Content, v.order(o, capability.ForOrder(actor, role, o)))
	}
	return out
}

func (v views) mutation(result *marketplace.MutationResult, actor capability.Actor, role capability.Role) mutationView {
	var out mutationView
	if result == nil {
		return out
	}
	if result.Order != nil {
		ov := v.order(result.Order, capability.ForOrder(actor, role, result.Order))
		out.Order = &ov
	}
	out.Orders = v.orderPage(result.Orders, actor, role)
	return out
}

func (v views) session(st session.State) sessionView {
	if st.Provider != nil {
		st.Provider.Bio = v.sanitizer.RichText(st.Provider.Bio)
	}
	return sessionView{
		LoggedIn:   st.LoggedIn,
		UserID:     st.UserID,
		User:       st.User,
		Provider:   st.Provider,
		IsProvider: st.IsProvider,
		IsAdmin:    st.IsAdmin,
	}
}

func (v views) review(r *model.Review, actor capability.Actor) reviewView {
	out := reviewView{Review: *r, Capabilities: capability.ForReview(actor, r)}
	out.Comment = v.sanitizer.Text(r.Comment)
	return out
}

func (v views) reviewPage(page *model.Page[model.Review], actor capability.Actor) pageView[reviewView] {
	out := pageView[reviewView]{
		Content:       make([]reviewView, 0, len(page.Content)),
		TotalElements: page.TotalElements,
		TotalPages:    page.TotalPages,
		Size:          page.Size,
		Number:        page.Number,
	}
	for i := range page.Content {
		out.Content = append(out.Content, v.review(&page.Content[i], actor))
	}
	return out
}

func (v views) service(s *model.Service) serviceView {
	out := serviceView{Service: *s}
	out.Title = v.sanitizer.Text(s.Title)
	out.Description = v.sanitizer.Text(s.Description)
	return out
}

func (v views) servicePage(page *model.Page[model.Service]) pageView[serviceView] {
	out := pageView[serviceView]{
		Content:       make([]serviceView, 0, len(page.Content)),
		TotalElements: page.TotalElements,
		TotalPages:    page.TotalPages,
		Size:          page.Size,
		Number:        page.Number,
	}
	for i := range page.Content {
		out.Content = append(out.Content, v.service(&page.Content[i]))
	}
	return out
}
