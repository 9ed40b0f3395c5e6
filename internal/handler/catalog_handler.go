package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/hitoshi/pertindetu/internal/model"
	"github.com/hitoshi/pertindetu/internal/security"
)

// CatalogServiceInterface はカタログハンドラーが必要とするサービスインターフェース。
type CatalogServiceInterface interface {
	List(ctx context.Context, f model.ServiceFilter, pr model.PageRequest) (*model.Page[model.Service], error)
	Get(ctx context.Context, serviceID int64) (*model.Service, error)
}

// CatalogHandler は公開サービスカタログのHTTPハンドラー。ログインは不要。
type CatalogHandler struct {
	service CatalogServiceInterface
	views   views
}

// NewCatalogHandler はCatalogHandlerを生成する。
func NewCatalogHandler(service CatalogServiceInterface, sanitizer security.TextSanitizer) *CatalogHandler {
	return &CatalogHandler{
		service: service,
		views:   views{sanitizer: sanitizer},
	}
}

// ListServices は公開サービスの一覧を返す。
// GET /api/services?categoryId=&providerId=&minPrice=&maxPrice=&search=&page=&size=&sort=
func (h *CatalogHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	filter, err := serviceFilter(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	pr, err := pageRequest(r)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if r.URL.Query().Get("size") == "" {
		pr.Size = model.CatalogPageSize
	}

	page, err := h.service.List(r.Context(), filter, pr)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.views.servicePage(page))
}

// GetService はサービスの詳細を返す。
// GET /api/services/{id}
func (h *CatalogHandler) GetService(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	svc, err := h.service.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.views.service(svc))
}

// serviceFilter はクエリパラメータから絞り込み条件を組み立てる。
func serviceFilter(r *http.Request) (model.ServiceFilter, error) {
	q := r.URL.Query()
	var f model.ServiceFilter

	for name, dst := range map[string]*int64{"categoryId": &f.CategoryID, "providerId": &f.ProviderID} {
		if v := q.Get(name); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil || n <= 0 {
				return f, model.NewValidationError("invalid " + name)
			}
			*dst = n
		}
	}
	for name, dst := range map[string]**decimal.Decimal{"minPrice": &f.MinPrice, "maxPrice": &f.MaxPrice} {
		if v := q.Get(name); v != "" {
			d, err := decimal.NewFromString(v)
			if err != nil {
				return f, model.NewValidationError("invalid " + name)
			}
			*dst = &d
		}
	}
	f.Search = q.Get("search")
	return f, nil
}
