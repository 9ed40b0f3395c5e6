package backend

import (
	"context"
	"net/http"

	"github.com/hitoshi/pertindetu/internal/model"
)

// ListPublicServices は公開サービス一覧を条件付きでページ単位で取得する。
func (c *Client) ListPublicServices(ctx context.Context, f model.ServiceFilter, pr model.PageRequest) (*model.Page[model.Service], error) {
	var page model.Page[model.Service]
	if err := c.call(ctx, "list_public_services", http.MethodGet, "/services/public", f.Values(pr), nil, &page); err != nil {
		return nil, err
	}
	if page.Content == nil {
		page.Content = []model.Service{}
	}
	return &page, nil
}

// GetService はサービスを1件取得する。見つからない場合はnilを返す。
func (c *Client) GetService(ctx context.Context, serviceID int64) (*model.Service, error) {
	var s model.Service
	if err := c.call(ctx, "get_service", http.MethodGet, idPath("/services/%d", serviceID), nil, nil, &s); err != nil {
		if Classify(err) == OutcomeNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}
