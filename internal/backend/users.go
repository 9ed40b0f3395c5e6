package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/hitoshi/pertindetu/internal/model"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login はメールアドレスとパスワードで認証する。
// 認証情報の誤りは OutcomeUnauthorized または OutcomeRejected に分類される StatusError を返す。
func (c *Client) Login(ctx context.Context, email, password string) (*model.LoginResult, error) {
	var result model.LoginResult
	err := c.call(ctx, "login", http.MethodPost, "/auth/login", nil,
		loginRequest{Email: email, Password: password}, &result)
	if err != nil {
		return nil, err
	}
	if result.StatusCode != 0 && ClassifyHTTPStatus(result.StatusCode) != OutcomeOK {
		return nil, &StatusError{Endpoint: "login", StatusCode: result.StatusCode, Message: result.Message}
	}
	if result.UserID == 0 {
		return nil, &StatusError{Endpoint: "login", StatusCode: http.StatusUnauthorized, Message: result.Message}
	}
	return &result, nil
}

type registerUser struct {
	Name            string         `json:"name"`
	Email           string         `json:"email"`
	Password        string         `json:"password"`
	CellphoneNumber string         `json:"cellphoneNumber,omitempty"`
	Role            model.UserRole `json:"role"`
}

type registerRequest struct {
	User    registerUser  `json:"user"`
	Address model.Address `json:"address"`
}

// Register は新規ユーザーを CLIENT として登録し、作成されたユーザーIDを返す。
// バックエンドは結果をHTTP 200の本文の statusCode で返すため、そちらで判定する。
func (c *Client) Register(ctx context.Context, reg model.Registration) (int64, error) {
	req := registerRequest{
		User: registerUser{
			Name:            reg.Name,
			Email:           reg.Email,
			Password:        reg.Password,
			CellphoneNumber: reg.CellphoneNumber,
			Role:            model.UserRoleClient,
		},
		Address: reg.Address,
	}

	var result model.LoginResult
	if err := c.call(ctx, "register", http.MethodPost, "/auth/register", nil, req, &result); err != nil {
		return 0, err
	}
	if result.StatusCode != 0 && ClassifyHTTPStatus(result.StatusCode) != OutcomeOK {
		return 0, &StatusError{Endpoint: "register", StatusCode: result.StatusCode, Message: result.Message}
	}
	if result.UserID == 0 {
		return 0, fmt.Errorf("register: response without user id: %q", result.Message)
	}
	return result.UserID, nil
}

// GetUser はユーザーレコードを取得する。見つからない場合はnilを返す。
func (c *Client) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	var env envelope[*model.User]
	err := c.call(ctx, "get_user", http.MethodGet, idPath("/users/%d", userID), nil, nil, &env)
	if err != nil {
		if Classify(err) == OutcomeNotFound {
			return nil, nil
		}
		return nil, err
	}
	return env.unwrap("get_user")
}

// BecomeProvider はユーザーをプロバイダーへ昇格させる。
func (c *Client) BecomeProvider(ctx context.Context, userID int64) (*model.User, error) {
	var env envelope[*model.User]
	err := c.call(ctx, "become_provider", http.MethodPatch, idPath("/users/%d/become-provider", userID), nil, nil, &env)
	if err != nil {
		return nil, err
	}
	return env.unwrap("become_provider")
}

// FindProviderByUserID はユーザーに紐づくプロバイダープロフィールを返す。
// 専用パスが設定されていればそれを使い、なければ一覧をページ単位で走査する。
// プロフィールが存在しない場合はnilを返す。
func (c *Client) FindProviderByUserID(ctx context.Context, userID int64) (*model.ProviderProfile, error) {
	if c.providerLookupPath != "" {
		return c.lookupProvider(ctx, userID)
	}
	return c.scanProviders(ctx, userID)
}

func (c *Client) lookupProvider(ctx context.Context, userID int64) (*model.ProviderProfile, error) {
	path := strings.ReplaceAll(c.providerLookupPath, "{id}", strconv.FormatInt(userID, 10))

	var raw json.RawMessage
	if err := c.call(ctx, "lookup_provider", http.MethodGet, path, nil, nil, &raw); err != nil {
		if Classify(err) == OutcomeNotFound {
			return nil, nil
		}
		return nil, err
	}

	// ラッパーあり・なしの両方を受け付ける
	var probe struct {
		Success *bool           `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && probe.Success != nil {
		if !*probe.Success {
			return nil, nil
		}
		raw = probe.Data
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var profile model.ProviderProfile
	if err := json.Unmarshal(raw, &profile); err != nil {
		return nil, err
	}
	if profile.UserID != 0 && profile.UserID != userID {
		return nil, nil
	}
	return &profile, nil
}

func (c *Client) scanProviders(ctx context.Context, userID int64) (*model.ProviderProfile, error) {
	for page := 0; page < maxProviderScanPages; page++ {
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("size", strconv.Itoa(c.providerScanPageSize))

		var env envelope[model.Page[model.ProviderProfile]]
		if err := c.call(ctx, "list_providers", http.MethodGet, "/providers", q, nil, &env); err != nil {
			return nil, err
		}
		result, err := env.unwrap("list_providers")
		if err != nil {
			return nil, err
		}

		for i := range result.Content {
			if result.Content[i].UserID == userID {
				p := result.Content[i]
				return &p, nil
			}
		}

		if len(result.Content) == 0 || page+1 >= result.TotalPages {
			return nil, nil
		}
	}

	c.logger.Warn("プロバイダー一覧の走査が上限ページ数に達しました",
		slog.Int64("user_id", userID),
		slog.Int("max_pages", maxProviderScanPages),
	)
	return nil, fmt.Errorf("list_providers: %w after %d pages", ErrScanTruncated, maxProviderScanPages)
}
