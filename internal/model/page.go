package model

import (
	"net/url"
	"strconv"
)

// デフォルトのページング設定
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	DefaultSort     = "createdAt,desc"
)

// Page はバックエンドが返すゼロ始まりのページ付きコレクション。
type Page[T any] struct {
	Content       []T   `json:"content"`
	TotalElements int64 `json:"totalElements"`
	TotalPages    int   `json:"totalPages"`
	Size          int   `json:"size"`
	Number        int   `json:"number"`
}

// PageRequest は一覧取得時のページ指定。
type PageRequest struct {
	Page int
	Size int
	Sort string
}

// DefaultPageRequest は先頭ページ、10件、作成日時降順を返す。
func DefaultPageRequest() PageRequest {
	return PageRequest{Page: 0, Size: DefaultPageSize, Sort: DefaultSort}
}

// Normalize は範囲外の値をデフォルトに丸めたコピーを返す。
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	if p.Sort == "" {
		p.Sort = DefaultSort
	}
	return p
}

// Values はクエリパラメータ形式に変換する。
func (p PageRequest) Values() url.Values {
	n := p.Normalize()
	v := url.Values{}
	v.Set("page", strconv.Itoa(n.Page))
	v.Set("size", strconv.Itoa(n.Size))
	v.Set("sort", n.Sort)
	return v
}
