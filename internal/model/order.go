package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus は注文のライフサイクル状態を表す。
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusAccepted   OrderStatus = "ACCEPTED"
	OrderStatusRejected   OrderStatus = "REJECTED"
	OrderStatusInProgress OrderStatus = "IN_PROGRESS"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// AllOrderStatuses は全状態を定義順に返す。
func AllOrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusPending,
		OrderStatusAccepted,
		OrderStatusRejected,
		OrderStatusInProgress,
		OrderStatusCompleted,
		OrderStatusCancelled,
	}
}

var orderStatusLabels = map[OrderStatus]string{
	OrderStatusPending:    "Pendente",
	OrderStatusAccepted:   "Aceito",
	OrderStatusRejected:   "Rejeitado",
	OrderStatusInProgress: "Em Andamento",
	OrderStatusCompleted:  "Concluído",
	OrderStatusCancelled:  "Cancelado",
}

// Valid は定義済みの状態かどうかを返す。
func (s OrderStatus) Valid() bool {
	_, ok := orderStatusLabels[s]
	return ok
}

// Label はUI表示用のラベルを返す。
func (s OrderStatus) Label() string {
	if l, ok := orderStatusLabels[s]; ok {
		return l
	}
	return string(s)
}

// ParseOrderStatus は文字列を注文状態に変換する。未知の値はエラー。
func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown order status: %q", s)
	}
	return st, nil
}

// UnmarshalJSON は未知の状態値をデコード時点で拒否する。
func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	st, err := ParseOrderStatus(raw)
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// Order はマーケットプレイスの注文を表す。
// Client/Provider/Service はバックエンドが埋め込む読み取り専用のスナップショット。
type Order struct {
	ID        int64           `json:"id"`
	Status    OrderStatus     `json:"status"`
	Details   *string         `json:"details,omitempty"`
	Quantity  int64           `json:"quantity"`
	Value     decimal.Decimal `json:"value"`
	EventDate *time.Time      `json:"eventDate,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	Client    ClientSummary   `json:"client"`
	Provider  ProviderSummary `json:"provider"`
	Service   ServiceSummary  `json:"service"`
}

// Total は単価×数量を返す。保存はしない。
func (o *Order) Total() decimal.Decimal {
	return o.Value.Mul(decimal.NewFromInt(o.Quantity))
}

// ClientSummary は注文に埋め込まれた依頼者情報。
type ClientSummary struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// ProviderSummary は注文に埋め込まれたプロバイダー情報。
// ID はユーザーIDではなくプロバイダープロフィールID。
type ProviderSummary struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Bio      string `json:"bio"`
	Verified bool   `json:"verified"`
}

// ServiceSummary は注文に埋め込まれたサービス情報。
type ServiceSummary struct {
	ID           int64           `json:"id"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	BasePrice    decimal.Decimal `json:"basePrice"`
	CategoryName string          `json:"categoryName"`
}

// NewOrder は注文作成リクエストを表す。状態は常にPENDINGで作成される。
type NewOrder struct {
	Details    *string         `json:"details,omitempty"`
	Quantity   int64           `json:"quantity"`
	Value      decimal.Decimal `json:"value"`
	EventDate  time.Time       `json:"eventDate"`
	ClientID   int64           `json:"clientId"`
	ProviderID int64           `json:"providerId"`
	ServiceID  int64           `json:"serviceId"`
}

// Validate はバックエンドへ送る前の入力検証を行う。
func (n *NewOrder) Validate() error {
	switch {
	case n.Quantity <= 0:
		return NewValidationError("quantity must be greater than zero")
	case n.Value.IsNegative():
		return NewValidationError("value must not be negative")
	case n.EventDate.IsZero():
		return NewValidationError("event date is required")
	case n.ProviderID <= 0:
		return NewValidationError("provider is required")
	case n.ServiceID <= 0:
		return NewValidationError("service is required")
	}
	return nil
}
