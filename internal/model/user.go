package model

import "time"

// UserRole はマーケットプレイス上のユーザー種別。
type UserRole string

const (
	UserRoleAdmin    UserRole = "ADMIN"
	UserRoleClient   UserRole = "CLIENT"
	UserRoleProvider UserRole = "PROVIDER"
)

// User はバックエンドのユーザーレコードを表す。
type User struct {
	ID              int64     `json:"id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	CellphoneNumber string    `json:"cellphoneNumber"`
	DateCreation    time.Time `json:"dateCreation"`
	Active          bool      `json:"active"`
	Role            UserRole  `json:"role,omitempty"`
	Admin           bool      `json:"isAdmin"`
}

// IsAdmin は管理者フラグまたは管理者ロールを持つかどうかを返す。
func (u *User) IsAdmin() bool {
	if u == nil {
		return false
	}
	return u.Admin || u.Role == UserRoleAdmin
}

// Category はプロバイダーが扱うサービスカテゴリ。
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ProviderProfile はユーザーに紐づくプロバイダープロフィール。
type ProviderProfile struct {
	ID              int64      `json:"id"`
	Bio             string     `json:"bio"`
	Verified        bool       `json:"verified"`
	PixKey          string     `json:"pixKey"`
	ProfilePhotoURL *string    `json:"profilePhotoUrl"`
	UserID          int64      `json:"userId"`
	UserName        string     `json:"userName"`
	Categories      []Category `json:"categories"`
}

// LoginResult はバックエンドの認証・登録結果。
type LoginResult struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	UserID     int64  `json:"userId"`
}

// SessionSnapshot は再起動をまたいで保持するセッションのスナップショット。
// Provider が nil の場合はプロバイダープロフィールを持たない。
type SessionSnapshot struct {
	Key       string
	User      User
	Provider  *ProviderProfile
	UpdatedAt time.Time
}
