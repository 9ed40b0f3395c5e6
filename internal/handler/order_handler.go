package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/pertindetu/internal/capability"
	"github.com/hitoshi/pertindetu/internal/marketplace"
	"github.com/hitoshi/pertindetu/internal/middleware"
	"github.com/hitoshi/pertindetu/internal/model"
	"github.com/hitoshi/pertindetu/internal/security"
)

// ActorResolver はセッションキーから操作主体を解決する。session.Manager が満たす。
type ActorResolver interface {
	Actor(ctx context.Context, key string) (capability.Actor, error)
}

// OrderServiceInterface は注文ハンドラーが必要とするサービスインターフェース。
type OrderServiceInterface interface {
	Get(ctx context.Context, actor capability.Actor, role capability.Role, orderID int64) (*model.Order, capability.OrderCapabilities, error)
	ListForClient(ctx context.Context, actor capability.Actor, pr model.PageRequest, status model.OrderStatus) (*model.Page[model.Order], error)
	ListForProvider(ctx context.Context, actor capability.Actor, pr model.PageRequest, status model.OrderStatus) (*model.Page[model.Order], error)
	ListByStatus(ctx context.Context, actor capability.Actor, status model.OrderStatus, pr model.PageRequest) (*model.Page[model.Order], error)
	Create(ctx context.Context, actor capability.Actor, in model.NewOrder) (*model.Order, error)
	Transition(ctx context.Context, actor capability.Actor, req marketplace.TransitionRequest, pr model.PageRequest) (*marketplace.MutationResult, error)
	Cancel(ctx context.Context, actor capability.Actor, req marketplace.CancelRequest, pr model.PageRequest) (*marketplace.MutationResult, error)
}

// OrderHandler は注文の閲覧と状態変更のHTTPハンドラー。
type OrderHandler struct {
	service OrderServiceInterface
	actors  ActorResolver
	views   views
}

// NewOrderHandler はOrderHandlerを生成する。
func NewOrderHandler(service OrderServiceInterface, actors ActorResolver, sanitizer security.TextSanitizer) *OrderHandler {
	return &OrderHandler{
		service: service,
		actors:  actors,
		views:   views{sanitizer: sanitizer},
	}
}

// transitionRequest は状態変更リクエストのボディ。
// from は画面に表示されていた状態で、省略可能。
type transitionRequest struct {
	Status string `json:"status"`
	From   string `json:"from,omitempty"`
}

type cancelRequest struct {
	From string `json:"from,omitempty"`
}

// ListClientOrders はセッションユーザーが依頼した注文の一覧を返す。
// GET /api/orders/client?page=&size=&status=
func (h *OrderHandler) ListClientOrders(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, capability.RoleClient, h.service.ListForClient)
}

// ListProviderOrders はセッションユーザーが担当する注文の一覧を返す。
// GET /api/orders/provider?page=&size=&status=
func (h *OrderHandler) ListProviderOrders(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, capability.RoleProvider, h.service.ListForProvider)
}

func (h *OrderHandler) list(
	w http.ResponseWriter,
	r *http.Request,
	role capability.Role,
	fetch func(context.Context, capability.Actor, model.PageRequest, model.OrderStatus) (*model.Page[model.Order], error),
) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	pr, err := pageRequest(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	status, err := optionalStatus(r.URL.Query().Get("status"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	page, err := fetch(r.Context(), actor, pr, status)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.views.orderPage(page, actor, role))
}

// ListOrdersByStatus は状態ごとの注文一覧を返す。管理者のみ。
// GET /api/orders/status/{status}
func (h *OrderHandler) ListOrdersByStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	status, err := optionalStatus(chi.URLParam(r, "status"))
	if err != nil || status == "" {
		handleServiceError(w, r, model.NewValidationError("invalid order status"))
		return
	}
	pr, err := pageRequest(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	page, err := h.service.ListByStatus(r.Context(), actor, status, pr)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.views.orderPage(page, actor, capability.RoleAdmin))
}

// ListAllOrders は全注文の一覧を返す。?status で絞り込める。管理者のみ。
// GET /api/orders
func (h *OrderHandler) ListAllOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	status, err := optionalStatus(r.URL.Query().Get("status"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	pr, err := pageRequest(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	page, err := h.service.ListByStatus(r.Context(), actor, status, pr)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.views.orderPage(page, actor, capability.RoleAdmin))
}

// GetOrder は注文1件と、as で指定した立場での操作集合を返す。
// GET /api/orders/{id}?as=client|provider|admin
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	role := capability.RoleClient
	if as := r.URL.Query().Get("as"); as != "" {
		parsed, ok := capability.ParseRole(as)
		if !ok {
			handleServiceError(w, r, model.NewValidationError("invalid role: "+as))
			return
		}
		role = parsed
	}

	o, caps, err := h.service.Get(r.Context(), actor, role, id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.views.order(o, caps))
}

// CreateOrder はセッションユーザーを依頼者として注文を作成する。
// POST /api/orders
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var in model.NewOrder
	if err := decodeJSON(w, r, &in); err != nil {
		handleServiceError(w, r, err)
		return
	}

	o, err := h.service.Create(r.Context(), actor, in)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.views.order(o, capability.ForOrder(actor, capability.RoleClient, o)))
}

// TransitionOrder はプロバイダーとして注文の状態を変更する。
// POST /api/orders/{id}/transitions
func (h *OrderHandler) TransitionOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	pr, err := pageRequest(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	var body transitionRequest
	if err := decodeJSON(w, r, &body); err != nil {
		handleServiceError(w, r, err)
		return
	}
	target, err := optionalStatus(body.Status)
	if err != nil || target == "" {
		handleServiceError(w, r, model.NewValidationError("invalid target status"))
		return
	}
	from, err := optionalStatus(body.From)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.service.Transition(r.Context(), actor, marketplace.TransitionRequest{
		OrderID: id,
		Target:  target,
		From:    from,
	}, pr)
	h.writeMutation(w, r, actor, capability.RoleProvider, result, err)
}

// CancelOrder はクライアントとして注文を取り消す。
// POST /api/orders/{id}/cancel
func (h *OrderHandler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	pr, err := pageRequest(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	var body cancelRequest
	if err := decodeOptionalJSON(w, r, &body); err != nil {
		handleServiceError(w, r, err)
		return
	}
	from, err := optionalStatus(body.From)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	result, err := h.service.Cancel(r.Context(), actor, marketplace.CancelRequest{OrderID: id, From: from}, pr)
	h.writeMutation(w, r, actor, capability.RoleClient, result, err)
}

// writeMutation は変更結果を書き込む。
// バックエンドに拒否された場合はエラー本文に再取得した一覧を含める。
func (h *OrderHandler) writeMutation(w http.ResponseWriter, r *http.Request, actor capability.Actor, role capability.Role, result *marketplace.MutationResult, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, h.views.mutation(result, actor, role))
		return
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || result == nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, mapAPIErrorToHTTPStatus(apiErr), rejectionView{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
		Orders:   h.views.orderPage(result.Orders, actor, role),
	})
}

// actor はセッションの操作主体を解決する。未ログインの場合は401を書き込む。
func (h *OrderHandler) actor(w http.ResponseWriter, r *http.Request) (capability.Actor, bool) {
	return resolveActor(w, r, h.actors)
}

func resolveActor(w http.ResponseWriter, r *http.Request, actors ActorResolver) (capability.Actor, bool) {
	key := middleware.SessionKeyFromContext(r.Context())
	if key == "" {
		handleServiceError(w, r, model.NewUnauthenticatedError())
		return capability.Actor{}, false
	}
	actor, err := actors.Actor(r.Context(), key)
	if err != nil {
		handleServiceError(w, r, err)
		return capability.Actor{}, false
	}
	if actor.UserID == 0 {
		handleServiceError(w, r, model.NewUnauthenticatedError())
		return capability.Actor{}, false
	}
	return actor, true
}
