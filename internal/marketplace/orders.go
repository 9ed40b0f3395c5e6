// Package marketplace は注文とレビューに対する利用者操作、公開カタログの閲覧、新規登録のワークフローを提供する。
// 変更系の操作はすべて、認可判定とクライアント側のガードを通過した後にのみバックエンドへ送られる。
package marketplace

import (
	"context"
	"log/slog"

	"github.com/hitoshi/pertindetu/internal/backend"
	"github.com/hitoshi/pertindetu/internal/capability"
	"github.com/hitoshi/pertindetu/internal/metrics"
	"github.com/hitoshi/pertindetu/internal/model"
	"github.com/hitoshi/pertindetu/internal/order"
)

// OrderBackend は注文ワークフローが利用するマーケットプレイスAPIの操作。
type OrderBackend interface {
	GetOrder(ctx context.Context, orderID int64) (*model.Order, error)
	ListOrdersByClient(ctx context.Context, clientID int64, pr model.PageRequest) (*model.Page[model.Order], error)
	ListOrdersByProvider(ctx context.Context, providerID int64, pr model.PageRequest) (*model.Page[model.Order], error)
	ListOrders(ctx context.Context, pr model.PageRequest) (*model.Page[model.Order], error)
	ListOrdersByStatus(ctx context.Context, status model.OrderStatus, pr model.PageRequest) (*model.Page[model.Order], error)
	CreateOrder(ctx context.Context, in model.NewOrder) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID, providerID int64, status model.OrderStatus) (*model.Order, error)
	CancelOrder(ctx context.Context, orderID, clientID int64) (*model.Order, error)
}

// TransitionRequest はプロバイダーによる状態変更の要求。
// From は画面に表示されていた状態で、指定されていればネットワーク呼び出しの前に検証する。
type TransitionRequest struct {
	OrderID int64
	Target  model.OrderStatus
	From    model.OrderStatus
}

// CancelRequest はクライアントによる取消の要求。
type CancelRequest struct {
	OrderID int64
	From    model.OrderStatus
}

// MutationResult は変更操作の結果。
// Orders は変更後に再取得した一覧で、再取得に失敗した場合はnil。
type MutationResult struct {
	Order  *model.Order
	Orders *model.Page[model.Order]
}

// OrderService は注文の閲覧と状態変更のワークフロー。
type OrderService struct {
	backend OrderBackend
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewOrderService はOrderServiceの新しいインスタンスを生成する。
func NewOrderService(b OrderBackend, mc metrics.MetricsCollector, logger *slog.Logger) *OrderService {
	if mc == nil {
		mc = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &OrderService{backend: b, metrics: mc, logger: logger}
}

// Get は1件の注文と、role の立場での操作集合を返す。
// 当事者でない場合は FORBIDDEN_ACTION を返す。
func (s *OrderService) Get(ctx context.Context, actor capability.Actor, role capability.Role, orderID int64) (*model.Order, capability.OrderCapabilities, error) {
	o, err := s.fetch(ctx, orderID)
	if err != nil {
		return nil, capability.OrderCapabilities{}, err
	}

	caps := capability.ForOrder(actor, role, o)
	if !caps.ViewDetails {
		return nil, capability.OrderCapabilities{}, model.NewForbiddenActionError("not a party to this order")
	}
	return o, caps, nil
}

// ListForClient はクライアントとしての注文一覧を返す。
// status が空でなければ取得したページをその状態で絞り込む。
// 絞り込みはページ内のみで、TotalElements と TotalPages はバックエンドの値のまま。
func (s *OrderService) ListForClient(ctx context.Context, actor capability.Actor, pr model.PageRequest, status model.OrderStatus) (*model.Page[model.Order], error) {
	if actor.UserID == 0 {
		return nil, model.NewUnauthenticatedError()
	}
	page, err := s.backend.ListOrdersByClient(ctx, actor.UserID, pr.Normalize())
	if err != nil {
		return nil, s.readFailure("list client orders", err)
	}
	return filterByStatus(page, status), nil
}

// ListForProvider はプロバイダーとしての注文一覧を返す。
// プロバイダープロフィールを持たない場合は NOT_PROVIDER を返す。
// status による絞り込みは ListForClient と同じくページ内のみ。
func (s *OrderService) ListForProvider(ctx context.Context, actor capability.Actor, pr model.PageRequest, status model.OrderStatus) (*model.Page[model.Order], error) {
	if !actor.IsProvider() {
		return nil, model.NewNotProviderError()
	}
	page, err := s.backend.ListOrdersByProvider(ctx, actor.ProviderID, pr.Normalize())
	if err != nil {
		return nil, s.readFailure("list provider orders", err)
	}
	return filterByStatus(page, status), nil
}

// ListByStatus は管理者向けに状態別の注文一覧を返す。status が空なら全件。
func (s *OrderService) ListByStatus(ctx context.Context, actor capability.Actor, status model.OrderStatus, pr model.PageRequest) (*model.Page[model.Order], error) {
	if !actor.IsAdmin {
		return nil, model.NewForbiddenActionError("administrator role required")
	}
	if status == "" {
		page, err := s.backend.ListOrders(ctx, pr.Normalize())
		if err != nil {
			return nil, s.readFailure("list orders", err)
		}
		return page, nil
	}
	if !status.Valid() {
		return nil, model.NewValidationError("unknown order status: " + string(status))
	}
	page, err := s.backend.ListOrdersByStatus(ctx, status, pr.Normalize())
	if err != nil {
		return nil, s.readFailure("list orders by status", err)
	}
	return page, nil
}

// Create はクライアントとして注文を作成する。作成直後の状態は常に PENDING。
func (s *OrderService) Create(ctx context.Context, actor capability.Actor, in model.NewOrder) (*model.Order, error) {
	if actor.UserID == 0 {
		return nil, model.NewUnauthenticatedError()
	}
	in.ClientID = actor.UserID
	if err := in.Validate(); err != nil {
		return nil, err
	}

	o, err := s.backend.CreateOrder(ctx, in)
	if err != nil {
		if backend.Classify(err) == backend.OutcomeTransient {
			s.logger.Error("failed to create order",
				slog.Int64("client_id", actor.UserID),
				slog.String("error", err.Error()),
			)
			return nil, model.NewActionFailedError("create order")
		}
		return nil, model.NewValidationError(messageOr(err, "order was rejected by the marketplace"))
	}

	s.logger.Info("order created",
		slog.Int64("order_id", o.ID),
		slog.Int64("client_id", actor.UserID),
		slog.Int64("provider_id", in.ProviderID),
	)
	return o, nil
}

// Transition はプロバイダーとして注文の状態を変更する。
// 遷移表にない変更はバックエンドの変更APIを呼ばずに INVALID_TRANSITION を返す。
// 変更が成功した後にのみプロバイダーの一覧を再取得する。
func (s *OrderService) Transition(ctx context.Context, actor capability.Actor, req TransitionRequest, pr model.PageRequest) (*MutationResult, error) {
	if !actor.IsProvider() {
		return nil, model.NewNotProviderError()
	}
	if !req.Target.Valid() {
		return nil, model.NewValidationError("unknown order status: " + string(req.Target))
	}
	if req.From != "" {
		if err := order.ValidateTransition(req.From, req.Target); err != nil {
			s.metrics.RecordTransition(string(req.From), string(req.Target), "invalid")
			return nil, err
		}
	}

	current, err := s.fetch(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if !capability.OwnsAsProvider(actor, current) {
		return nil, model.NewForbiddenActionError("order belongs to another provider")
	}
	if err := order.ValidateTransition(current.Status, req.Target); err != nil {
		s.metrics.RecordTransition(string(current.Status), string(req.Target), "invalid")
		return nil, err
	}

	updated, err := s.backend.UpdateOrderStatus(ctx, req.OrderID, actor.ProviderID, req.Target)
	if err != nil {
		return s.mutationFailure(ctx, "update order status", current.Status, req.Target, err, func(ctx context.Context) (*model.Page[model.Order], error) {
			return s.backend.ListOrdersByProvider(ctx, actor.ProviderID, pr.Normalize())
		})
	}

	s.metrics.RecordTransition(string(current.Status), string(req.Target), "ok")
	s.logger.Info("order status updated",
		slog.Int64("order_id", req.OrderID),
		slog.Int64("provider_id", actor.ProviderID),
		slog.String("from", string(current.Status)),
		slog.String("to", string(req.Target)),
	)

	return &MutationResult{
		Order: updated,
		Orders: s.refetch(ctx, "list provider orders", func(ctx context.Context) (*model.Page[model.Order], error) {
			return s.backend.ListOrdersByProvider(ctx, actor.ProviderID, pr.Normalize())
		}),
	}, nil
}

// Cancel はクライアントとして注文を取り消す。
// PENDING と ACCEPTED 以外ではバックエンドの変更APIを呼ばずに CANCEL_NOT_ALLOWED を返す。
func (s *OrderService) Cancel(ctx context.Context, actor capability.Actor, req CancelRequest, pr model.PageRequest) (*MutationResult, error) {
	if actor.UserID == 0 {
		return nil, model.NewUnauthenticatedError()
	}
	if req.From != "" && !capability.CanClientCancel(req.From) {
		s.metrics.RecordTransition(string(req.From), string(model.OrderStatusCancelled), "invalid")
		return nil, model.NewCancelNotAllowedError(req.From)
	}

	current, err := s.fetch(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	if !capability.OwnsAsClient(actor, current) {
		return nil, model.NewForbiddenActionError("order belongs to another client")
	}
	if !capability.CanClientCancel(current.Status) {
		s.metrics.RecordTransition(string(current.Status), string(model.OrderStatusCancelled), "invalid")
		return nil, model.NewCancelNotAllowedError(current.Status)
	}

	updated, err := s.backend.CancelOrder(ctx, req.OrderID, actor.UserID)
	if err != nil {
		return s.mutationFailure(ctx, "cancel order", current.Status, model.OrderStatusCancelled, err, func(ctx context.Context) (*model.Page[model.Order], error) {
			return s.backend.ListOrdersByClient(ctx, actor.UserID, pr.Normalize())
		})
	}

	s.metrics.RecordTransition(string(current.Status), string(model.OrderStatusCancelled), "ok")
	s.logger.Info("order cancelled by client",
		slog.Int64("order_id", req.OrderID),
		slog.Int64("client_id", actor.UserID),
		slog.String("from", string(current.Status)),
	)

	return &MutationResult{
		Order: updated,
		Orders: s.refetch(ctx, "list client orders", func(ctx context.Context) (*model.Page[model.Order], error) {
			return s.backend.ListOrdersByClient(ctx, actor.UserID, pr.Normalize())
		}),
	}, nil
}

// fetch は注文の正準状態を取得する。
func (s *OrderService) fetch(ctx context.Context, orderID int64) (*model.Order, error) {
	o, err := s.backend.GetOrder(ctx, orderID)
	if err != nil {
		return nil, s.readFailure("get order", err)
	}
	if o == nil {
		return nil, model.NewOrderNotFoundError(orderID)
	}
	return o, nil
}

// mutationFailure は変更APIの失敗を利用者向けのエラーへ変換する。
// バックエンドが拒否した場合は一覧を再取得して結果に含め、一時的な失敗の場合は何も再取得しない。
func (s *OrderService) mutationFailure(
	ctx context.Context,
	action string,
	from, to model.OrderStatus,
	err error,
	list func(context.Context) (*model.Page[model.Order], error),
) (*MutationResult, error) {
	if backend.Classify(err) == backend.OutcomeTransient {
		s.metrics.RecordTransition(string(from), string(to), "failed")
		s.logger.Error("order mutation failed",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
		return nil, model.NewActionFailedError(action)
	}

	s.metrics.RecordTransition(string(from), string(to), "rejected")
	s.logger.Warn("order mutation rejected by marketplace",
		slog.String("action", action),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("error", err.Error()),
	)
	result := &MutationResult{Orders: s.refetch(ctx, action, list)}
	return result, model.NewForbiddenActionError(messageOr(err, action+" was rejected by the marketplace"))
}

// refetch は一覧を再取得する。失敗しても変更操作自体の結果には影響させない。
func (s *OrderService) refetch(ctx context.Context, action string, list func(context.Context) (*model.Page[model.Order], error)) *model.Page[model.Order] {
	page, err := list(ctx)
	if err != nil {
		s.logger.Warn("failed to re-fetch orders",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return page
}

// readFailure は読み取り系の失敗を利用者向けのエラーへ変換する。
func (s *OrderService) readFailure(action string, err error) error {
	switch backend.Classify(err) {
	case backend.OutcomeTransient:
		s.logger.Warn("marketplace read failed",
			slog.String("action", action),
			slog.String("error", err.Error()),
		)
		return model.NewBackendUnavailableError()
	default:
		return model.NewForbiddenActionError(messageOr(err, action+" was rejected by the marketplace"))
	}
}

// filterByStatus は取得済みページの Content だけを status で絞り込んだコピーを返す。
// ページ内のフィルタであり、TotalElements と TotalPages は絞り込み前のバックエンドの値を保持する。
func filterByStatus(page *model.Page[model.Order], status model.OrderStatus) *model.Page[model.Order] {
	if status == "" || page == nil {
		return page
	}
	filtered := make([]model.Order, 0, len(page.Content))
	for _, o := range page.Content {
		if o.Status == status {
			filtered = append(filtered, o)
		}
	}
	out := *page
	out.Content = filtered
	return &out
}

func messageOr(err error, fallback string) string {
	if msg := backend.Message(err); msg != "" {
		return msg
	}
	return fallback
}
