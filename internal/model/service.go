package model

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// CatalogPageSize は公開サービス一覧のデフォルトのページサイズ。
const CatalogPageSize = 12

// Service はマーケットプレイスで公開されているサービス。
type Service struct {
	ID          int64            `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	BasePrice   decimal.Decimal  `json:"basePrice"`
	Active      bool             `json:"active"`
	AvgDuration *decimal.Decimal `json:"avgDuration,omitempty"`
	ProviderID  int64            `json:"providerId"`
	CategoryID  int64            `json:"categoryId"`
}

// ServiceFilter は公開サービス一覧の絞り込み条件。ゼロ値は絞り込みなし。
type ServiceFilter struct {
	CategoryID int64
	ProviderID int64
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Search     string
}

// Validate はバックエンドへ送る前の入力検証を行う。
func (f ServiceFilter) Validate() error {
	switch {
	case f.CategoryID < 0:
		return NewValidationError("category id must not be negative")
	case f.ProviderID < 0:
		return NewValidationError("provider id must not be negative")
	case f.MinPrice != nil && f.MinPrice.IsNegative():
		return NewValidationError("min price must not be negative")
	case f.MaxPrice != nil && f.MaxPrice.IsNegative():
		return NewValidationError("max price must not be negative")
	case f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice):
		return NewValidationError("min price must not exceed max price")
	}
	return nil
}

// Values はページ指定と合わせたクエリパラメータを返す。未指定の条件は送らない。
func (f ServiceFilter) Values(pr PageRequest) url.Values {
	v := pr.Values()
	if f.CategoryID > 0 {
		v.Set("categoryId", strconv.FormatInt(f.CategoryID, 10))
	}
	if f.ProviderID > 0 {
		v.Set("providerId", strconv.FormatInt(f.ProviderID, 10))
	}
	if f.MinPrice != nil {
		v.Set("minPrice", f.MinPrice.String())
	}
	if f.MaxPrice != nil {
		v.Set("maxPrice", f.MaxPrice.String())
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		v.Set("search", s)
	}
	return v
}
