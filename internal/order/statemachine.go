// Package order は注文ライフサイクルの状態機械を提供する。
package order

import "github.com/hitoshi/pertindetu/internal/model"

// allowedTransitions は各状態から遷移可能な状態を表示順で保持する。
// 終端状態は空スライスを持つ。PENDING へ遷移する経路は存在しない。
var allowedTransitions = map[model.OrderStatus][]model.OrderStatus{
	model.OrderStatusPending:    {model.OrderStatusAccepted, model.OrderStatusRejected},
	model.OrderStatusAccepted:   {model.OrderStatusInProgress, model.OrderStatusCancelled},
	model.OrderStatusInProgress: {model.OrderStatusCompleted, model.OrderStatusCancelled},
	model.OrderStatusRejected:   {},
	model.OrderStatusCompleted:  {},
	model.OrderStatusCancelled:  {},
}

// NextStatuses は現在の状態から遷移可能な状態を返す。
// 戻り値は呼び出し側が変更してよいコピーで、終端状態や未知の状態では空スライス。
func NextStatuses(current model.OrderStatus) []model.OrderStatus {
	next := allowedTransitions[current]
	out := make([]model.OrderStatus, len(next))
	copy(out, next)
	return out
}

// CanTransition は from から to への遷移が許可されているかを返す。
func CanTransition(from, to model.OrderStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ValidateTransition は遷移が許可されていなければ INVALID_TRANSITION エラーを返す。
// 変更系のバックエンド呼び出しの前に必ず通す。
func ValidateTransition(from, to model.OrderStatus) error {
	if !CanTransition(from, to) {
		return model.NewInvalidTransitionError(from, to)
	}
	return nil
}

// IsTerminal は終端状態かどうかを返す。
func IsTerminal(status model.OrderStatus) bool {
	next, ok := allowedTransitions[status]
	return ok && len(next) == 0
}
