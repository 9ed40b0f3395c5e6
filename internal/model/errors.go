// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, order, review, catalog, backend, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodeCancelNotAllowed     = "CANCEL_NOT_ALLOWED"
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeAuthenticationFailed = "AUTHENTICATION_FAILED"
	ErrCodeUnauthenticated      = "UNAUTHENTICATED"
	ErrCodeForbiddenAction      = "FORBIDDEN_ACTION"
	ErrCodeNotProvider          = "NOT_PROVIDER"
	ErrCodeOrderNotFound        = "ORDER_NOT_FOUND"
	ErrCodeReviewNotFound       = "REVIEW_NOT_FOUND"
	ErrCodeServiceNotFound      = "SERVICE_NOT_FOUND"
	ErrCodeRegistrationRejected = "REGISTRATION_REJECTED"
	ErrCodeBackendUnavailable   = "BACKEND_UNAVAILABLE"
	ErrCodeActionFailed         = "ACTION_FAILED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// NewInvalidTransitionError は状態機械が許可しない遷移のエラーを生成する。
func NewInvalidTransitionError(from, to OrderStatus) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("invalid status transition: %s -> %s", from, to),
		Category: "validation",
		Action:   "注文の現在の状態から選択可能な操作を選んでください。",
	}
}

// NewCancelNotAllowedError はクライアントが取消できない状態の注文に対するエラーを生成する。
func NewCancelNotAllowedError(status OrderStatus) *APIError {
	return &APIError{
		Code:     ErrCodeCancelNotAllowed,
		Message:  fmt.Sprintf("order cannot be cancelled in status %s", status),
		Category: "validation",
		Action:   "取消は保留中または承認済みの注文に対してのみ実行できます。",
	}
}

// NewValidationError は入力値検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  reason,
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewAuthenticationFailedError はログイン失敗エラーを生成する。
func NewAuthenticationFailedError(message string) *APIError {
	if message == "" {
		message = "invalid email or password"
	}
	return &APIError{
		Code:     ErrCodeAuthenticationFailed,
		Message:  message,
		Category: "auth",
		Action:   "メールアドレスとパスワードを確認してください。",
	}
}

// NewUnauthenticatedError は未ログイン状態での操作エラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "authentication required",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenActionError は所有者でない、またはバックエンドが拒否した操作のエラーを生成する。
func NewForbiddenActionError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeForbiddenAction,
		Message:  reason,
		Category: "auth",
		Action:   "この操作を実行する権限がありません。一覧を再読み込みしてください。",
	}
}

// NewNotProviderError はプロバイダープロフィールを持たないユーザーのエラーを生成する。
func NewNotProviderError() *APIError {
	return &APIError{
		Code:     ErrCodeNotProvider,
		Message:  "provider profile required",
		Category: "auth",
		Action:   "プロバイダー登録を行ってから再度お試しください。",
	}
}

// NewOrderNotFoundError は注文未検出エラーを生成する。
func NewOrderNotFoundError(orderID int64) *APIError {
	return &APIError{
		Code:     ErrCodeOrderNotFound,
		Message:  fmt.Sprintf("order not found: %d", orderID),
		Category: "order",
		Action:   "注文IDを確認してください。",
	}
}

// NewReviewNotFoundError はレビュー未検出エラーを生成する。
func NewReviewNotFoundError(reviewID int64) *APIError {
	return &APIError{
		Code:     ErrCodeReviewNotFound,
		Message:  fmt.Sprintf("review not found: %d", reviewID),
		Category: "review",
		Action:   "レビューIDを確認してください。",
	}
}

// NewServiceNotFoundError はサービス未検出エラーを生成する。
func NewServiceNotFoundError(serviceID int64) *APIError {
	return &APIError{
		Code:     ErrCodeServiceNotFound,
		Message:  fmt.Sprintf("service not found: %d", serviceID),
		Category: "catalog",
		Action:   "サービス一覧から選び直してください。",
	}
}

// NewRegistrationRejectedError はバックエンドが登録を拒否した場合のエラーを生成する。
// 登録済みのメールアドレスなど、バックエンドのメッセージをそのまま伝える。
func NewRegistrationRejectedError(message string) *APIError {
	if message == "" {
		message = "registration was rejected"
	}
	return &APIError{
		Code:     ErrCodeRegistrationRejected,
		Message:  message,
		Category: "auth",
		Action:   "入力内容を確認するか、既存のアカウントでログインしてください。",
	}
}

// NewBackendUnavailableError は読み取り系の一時的な失敗エラーを生成する。
// 呼び出し側は最後に取得できたデータを保持する。
func NewBackendUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeBackendUnavailable,
		Message:  "marketplace service is temporarily unavailable",
		Category: "backend",
		Action:   "しばらく待ってから再読み込みしてください。",
	}
}

// NewActionFailedError は書き込み系の一時的な失敗エラーを生成する。
// ローカル状態には何も反映されていない。
func NewActionFailedError(action string) *APIError {
	return &APIError{
		Code:     ErrCodeActionFailed,
		Message:  fmt.Sprintf("%s failed", action),
		Category: "backend",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は想定外の失敗を表すエラーを生成する。詳細はログにのみ残す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "internal error",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
