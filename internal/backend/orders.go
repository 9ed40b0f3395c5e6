package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/pertindetu/internal/model"
)

// GetOrder は注文を1件取得する。見つからない場合はnilを返す。
func (c *Client) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	var o model.Order
	if err := c.call(ctx, "get_order", http.MethodGet, idPath("/orders/%d", orderID), nil, nil, &o); err != nil {
		if Classify(err) == OutcomeNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

// ListOrders は全注文をページ単位で取得する。
func (c *Client) ListOrders(ctx context.Context, pr model.PageRequest) (*model.Page[model.Order], error) {
	return c.listOrders(ctx, "list_orders", "/orders", pr)
}

// ListOrdersByClient は依頼者の注文をページ単位で取得する。
func (c *Client) ListOrdersByClient(ctx context.Context, clientID int64, pr model.PageRequest) (*model.Page[model.Order], error) {
	return c.listOrders(ctx, "list_orders_by_client", idPath("/orders/client/%d", clientID), pr)
}

// ListOrdersByProvider はプロバイダーの注文をページ単位で取得する。
func (c *Client) ListOrdersByProvider(ctx context.Context, providerID int64, pr model.PageRequest) (*model.Page[model.Order], error) {
	return c.listOrders(ctx, "list_orders_by_provider", idPath("/orders/provider/%d", providerID), pr)
}

// ListOrdersByStatus は指定状態の注文をページ単位で取得する。
func (c *Client) ListOrdersByStatus(ctx context.Context, status model.OrderStatus, pr model.PageRequest) (*model.Page[model.Order], error) {
	return c.listOrders(ctx, "list_orders_by_status", "/orders/status/"+url.PathEscape(string(status)), pr)
}

func (c *Client) listOrders(ctx context.Context, endpoint, path string, pr model.PageRequest) (*model.Page[model.Order], error) {
	var page model.Page[model.Order]
	if err := c.call(ctx, endpoint, http.MethodGet, path, pr.Values(), nil, &page); err != nil {
		return nil, err
	}
	if page.Content == nil {
		page.Content = []model.Order{}
	}
	return &page, nil
}

type createOrderRequest struct {
	Status model.OrderStatus `json:"status"`
	model.NewOrder
}

// CreateOrder は注文を作成する。状態は常にPENDINGで送信する。
func (c *Client) CreateOrder(ctx context.Context, in model.NewOrder) (*model.Order, error) {
	var o model.Order
	req := createOrderRequest{Status: model.OrderStatusPending, NewOrder: in}
	if err := c.call(ctx, "create_order", http.MethodPost, "/orders", nil, req, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

type updateStatusRequest struct {
	Status model.OrderStatus `json:"status"`
}

// UpdateOrderStatus はプロバイダーとして注文状態を変更する。
func (c *Client) UpdateOrderStatus(ctx context.Context, orderID, providerID int64, status model.OrderStatus) (*model.Order, error) {
	q := url.Values{}
	q.Set("providerId", strconv.FormatInt(providerID, 10))

	var o model.Order
	err := c.call(ctx, "update_order_status", http.MethodPatch, idPath("/orders/%d/status", orderID), q,
		updateStatusRequest{Status: status}, &o)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// CancelOrder は依頼者として注文を取り消す。
func (c *Client) CancelOrder(ctx context.Context, orderID, clientID int64) (*model.Order, error) {
	q := url.Values{}
	q.Set("clientId", strconv.FormatInt(clientID, 10))

	var o model.Order
	if err := c.call(ctx, "cancel_order", http.MethodPatch, idPath("/orders/%d/cancel", orderID), q, nil, &o); err != nil {
		return nil, err
	}
	return &o, nil
}
