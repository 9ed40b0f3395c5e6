package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnsuccessful はバックエンドが2xxを返しつつ success=false を示した場合のエラー。
var ErrUnsuccessful = errors.New("marketplace responded with success=false")

// ErrScanTruncated はプロバイダー一覧の走査が上限ページ数に達し、結果を確定できなかったことを示す。
// Classify では一時的な失敗として扱う。
var ErrScanTruncated = errors.New("provider scan truncated")

// StatusError はバックエンドが2xx以外のステータスを返したことを表す。
type StatusError struct {
	Endpoint   string
	StatusCode int
	Message    string // レスポンスボディから抽出したメッセージ（空の場合あり）
}

// Error はerrorインターフェースを実装する。
func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: status %d", e.Endpoint, e.StatusCode)
}

// Outcome はバックエンド呼び出し結果の分類。
type Outcome int

const (
	// OutcomeOK は成功（2xx）。
	OutcomeOK Outcome = iota
	// OutcomeNotFound は対象が存在しない（404/410）。
	OutcomeNotFound
	// OutcomeUnauthorized は認証失敗（401）。
	OutcomeUnauthorized
	// OutcomeRejected はバックエンドが要求を拒否した（403/400/409など）。
	OutcomeRejected
	// OutcomeTransient は一時的な失敗（ネットワーク、429、5xx）。
	OutcomeTransient
)

// String はメトリクスのラベル値として使う名前を返す。
func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeUnauthorized:
		return "unauthorized"
	case OutcomeRejected:
		return "rejected"
	default:
		return "transient"
	}
}

// ClassifyHTTPStatus はHTTPステータスコードを呼び出し結果に分類する。
func ClassifyHTTPStatus(statusCode int) Outcome {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return OutcomeOK
	case statusCode == http.StatusNotFound || statusCode == http.StatusGone:
		return OutcomeNotFound
	case statusCode == http.StatusUnauthorized:
		return OutcomeUnauthorized
	case statusCode == http.StatusTooManyRequests:
		return OutcomeTransient
	case statusCode >= 400 && statusCode < 500:
		return OutcomeRejected
	default:
		return OutcomeTransient
	}
}

// Classify はエラーを呼び出し結果に分類する。
// ネットワークエラーやデコード失敗は一時的な失敗として扱う。
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	var se *StatusError
	if errors.As(err, &se) {
		return ClassifyHTTPStatus(se.StatusCode)
	}
	if errors.Is(err, ErrUnsuccessful) {
		return OutcomeRejected
	}
	return OutcomeTransient
}

// Message はエラーに含まれるバックエンド由来のメッセージを返す。なければ空文字。
func Message(err error) string {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Message
	}
	return ""
}
