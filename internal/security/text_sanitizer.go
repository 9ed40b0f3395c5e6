// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はマーケットプレイスの利用者が入力したテキスト
// (注文の詳細・レビューコメント・プロバイダーの自己紹介) をブラウザへ返す前に無害化する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、安全なタグと属性のみを通過させる。
package security

import (
	"net/url"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は利用者入力テキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizer interface {
	// Text は全てのHTMLタグを除去する。注文の詳細やレビューコメントに使う。
	Text(raw string) string
	// RichText は限られた書式タグのみを残す。プロバイダーの自己紹介に使う。
	// 許可タグ: p, br, ul, ol, li, strong, em, a (hrefはhttpsのみ)
	RichText(raw string) string
}

// textSanitizer はTextSanitizerの実装。ポリシーはスレッドセーフに共有できる。
type textSanitizer struct {
	strict *bluemonday.Policy
	rich   *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	rich := bluemonday.NewPolicy()
	rich.AllowElements("p", "br", "ul", "ol", "li", "strong", "em")

	// aタグは https の絶対URLのみ。target="_blank" と rel="noreferrer noopener" を強制付与する
	rich.AllowAttrs("href").OnElements("a")
	rich.AllowRelativeURLs(false)
	rich.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return u.Host != ""
	})
	rich.AddTargetBlankToFullyQualifiedLinks(true)
	rich.RequireNoReferrerOnLinks(true)

	return &textSanitizer{
		strict: bluemonday.StrictPolicy(),
		rich:   rich,
	}
}

func (s *textSanitizer) Text(raw string) string {
	return s.strict.Sanitize(raw)
}

func (s *textSanitizer) RichText(raw string) string {
	return s.rich.Sanitize(raw)
}
