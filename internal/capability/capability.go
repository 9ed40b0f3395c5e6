// Package capability はセッションの主体と注文の状態から、UIに提示する操作の集合を導出する。
// すべて純粋関数で、ネットワーク呼び出しは行わない。
package capability

import (
	"github.com/hitoshi/pertindetu/internal/model"
	"github.com/hitoshi/pertindetu/internal/order"
)

// Role は注文をどの立場で閲覧しているかを表す。
type Role string

const (
	RoleClient   Role = "client"
	RoleProvider Role = "provider"
	RoleAdmin    Role = "admin"
)

// ParseRole は文字列を Role に変換する。未知の値は false を返す。
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleClient, RoleProvider, RoleAdmin:
		return Role(s), true
	}
	return "", false
}

// Actor は操作主体。ProviderID が 0 の場合はプロバイダープロフィールを持たない。
type Actor struct {
	UserID     int64
	ProviderID int64
	IsAdmin    bool
}

// IsProvider はプロバイダープロフィールを持つかどうかを返す。
func (a Actor) IsProvider() bool {
	return a.ProviderID != 0
}

// OrderCapabilities は1件の注文に対して提示できる操作の集合。
type OrderCapabilities struct {
	ViewDetails    bool                `json:"viewDetails"`
	Cancel         bool                `json:"cancel"`
	Review         bool                `json:"review"`
	Accept         bool                `json:"accept"`
	Reject         bool                `json:"reject"`
	Progress       bool                `json:"progress"`
	Complete       bool                `json:"complete"`
	ProviderCancel bool                `json:"providerCancel"`
	Transitions    []model.OrderStatus `json:"transitions"`
}

// Empty は何も操作できないかどうかを返す。
func (c OrderCapabilities) Empty() bool {
	return !c.ViewDetails && !c.Cancel && !c.Review && len(c.Transitions) == 0
}

// CanClientCancel はクライアントが取消できる状態かどうかを返す。
// 状態機械の遷移表とは独立した述語で、PENDING と ACCEPTED のみ true。
func CanClientCancel(status model.OrderStatus) bool {
	return status == model.OrderStatusPending || status == model.OrderStatusAccepted
}

// CanProviderAct はプロバイダーが状態を進められるかどうかを返す。
func CanProviderAct(status model.OrderStatus) bool {
	switch status {
	case model.OrderStatusPending, model.OrderStatusAccepted, model.OrderStatusInProgress:
		return true
	}
	return false
}

// OwnsAsClient は注文の依頼者が actor 本人かどうかを返す。
func OwnsAsClient(actor Actor, o *model.Order) bool {
	return o != nil && actor.UserID != 0 && o.Client.ID == actor.UserID
}

// OwnsAsProvider は注文の担当プロバイダーが actor 本人かどうかを返す。
func OwnsAsProvider(actor Actor, o *model.Order) bool {
	return o != nil && actor.IsProvider() && o.Provider.ID == actor.ProviderID
}

// ForOrder は role の立場で order を見たときの操作集合を返す。
// 所有者でない場合は空集合になる。
func ForOrder(actor Actor, role Role, o *model.Order) OrderCapabilities {
	caps := OrderCapabilities{Transitions: []model.OrderStatus{}}
	if o == nil {
		return caps
	}

	switch role {
	case RoleClient:
		if !OwnsAsClient(actor, o) {
			return caps
		}
		caps.ViewDetails = true
		caps.Cancel = CanClientCancel(o.Status)
		caps.Review = o.Status == model.OrderStatusCompleted
	case RoleProvider:
		if !OwnsAsProvider(actor, o) {
			return caps
		}
		caps.ViewDetails = true
		if !CanProviderAct(o.Status) {
			return caps
		}
		caps.Transitions = order.NextStatuses(o.Status)
		for _, next := range caps.Transitions {
			switch next {
			case model.OrderStatusAccepted:
				caps.Accept = true
			case model.OrderStatusRejected:
				caps.Reject = true
			case model.OrderStatusInProgress:
				caps.Progress = true
			case model.OrderStatusCompleted:
				caps.Complete = true
			case model.OrderStatusCancelled:
				caps.ProviderCancel = true
			}
		}
	case RoleAdmin:
		if actor.IsAdmin {
			caps.ViewDetails = true
		}
	}
	return caps
}

// ReviewCapabilities はレビューに対する操作集合。
type ReviewCapabilities struct {
	Edit   bool `json:"edit"`
	Delete bool `json:"delete"`
}

// ForReview は投稿者本人にのみ編集・削除を許可する。
func ForReview(actor Actor, r *model.Review) ReviewCapabilities {
	if r == nil || actor.UserID == 0 || r.User.ID != actor.UserID {
		return ReviewCapabilities{}
	}
	return ReviewCapabilities{Edit: true, Delete: true}
}
