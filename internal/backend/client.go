// Package backend はマーケットプレイスREST APIのクライアントを提供する。
// すべての呼び出しはレート制限を通り、結果はメトリクスに記録される。
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/pertindetu/internal/metrics"
	"github.com/hitoshi/pertindetu/internal/middleware"
)

const (
	// userAgent はバックエンドへ送るUser-Agent。
	userAgent = "Pertindetu-BFF/1.0"
	// maxResponseSize はレスポンスボディの最大読み取りサイズ（4MB）。
	maxResponseSize = 4 << 20
	// maxErrorBodySize はエラーボディからメッセージを抽出する際の最大読み取りサイズ。
	maxErrorBodySize = 64 << 10
	// defaultProviderScanPageSize はプロバイダー一覧走査時のページサイズ。
	defaultProviderScanPageSize = 100
	// maxProviderScanPages はプロバイダー一覧走査の上限ページ数。
	maxProviderScanPages = 50
)

// Options はClientの任意設定。
type Options struct {
	// RatePerSec はバックエンドへの送信レート上限。0以下なら無制限。
	RatePerSec float64
	// Burst はレート制限のバースト数。
	Burst int
	// ProviderLookupPath はユーザーIDでプロバイダーを直接引くパス（例: /providers/user/{id}）。
	// 空の場合は一覧を走査する。
	ProviderLookupPath string
	// ProviderScanPageSize は一覧走査時のページサイズ。
	ProviderScanPageSize int
	// Metrics はメトリクス収集先。nilの場合は記録しない。
	Metrics metrics.MetricsCollector
}

// Client はマーケットプレイスREST APIのクライアント。
type Client struct {
	httpClient           *http.Client
	logger               *slog.Logger
	baseURL              string
	limiter              *rate.Limiter
	metrics              metrics.MetricsCollector
	providerLookupPath   string
	providerScanPageSize int
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string, opts Options) *Client {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RatePerSec > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSec), burst)
	}

	mc := opts.Metrics
	if mc == nil {
		mc = metrics.Nop{}
	}

	pageSize := opts.ProviderScanPageSize
	if pageSize <= 0 {
		pageSize = defaultProviderScanPageSize
	}

	return &Client{
		httpClient:           httpClient,
		logger:               logger,
		baseURL:              strings.TrimRight(baseURL, "/"),
		limiter:              limiter,
		metrics:              mc,
		providerLookupPath:   opts.ProviderLookupPath,
		providerScanPageSize: pageSize,
	}
}

// envelope はバックエンドの {success, data, error} ラッパー。
type envelope[T any] struct {
	Success bool    `json:"success"`
	Data    T       `json:"data"`
	Error   *string `json:"error"`
}

// unwrap は success=false の場合にエラーを返す。
func (e *envelope[T]) unwrap(endpoint string) (T, error) {
	if !e.Success {
		var zero T
		msg := ""
		if e.Error != nil {
			msg = *e.Error
		}
		return zero, fmt.Errorf("%s: %w: %s", endpoint, ErrUnsuccessful, msg)
	}
	return e.Data, nil
}

// call は1回のAPI呼び出しを行う。
// endpoint はログとメトリクス用の名前、out が nil の場合はボディを読まない。
func (c *Client) call(ctx context.Context, endpoint, method, path string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		c.metrics.RecordBackendRequest(endpoint, OutcomeTransient.String())
		return fmt.Errorf("%s: rate limiter: %w", endpoint, err)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: リクエストボディのエンコードに失敗しました: %w", endpoint, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("%s: HTTPリクエストの作成に失敗しました: %w", endpoint, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := middleware.RequestIDFromContext(ctx); id != "" {
		req.Header.Set(middleware.RequestIDHeader, id)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordBackendLatency(endpoint, time.Since(start))
	if err != nil {
		c.metrics.RecordBackendRequest(endpoint, OutcomeTransient.String())
		c.logger.Error("マーケットプレイスAPIの呼び出しに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("method", method),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	c.metrics.RecordBackendStatus(resp.StatusCode)
	outcome := ClassifyHTTPStatus(resp.StatusCode)
	c.metrics.RecordBackendRequest(endpoint, outcome.String())

	if outcome != OutcomeOK {
		se := &StatusError{
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Message:    extractErrorMessage(io.LimitReader(resp.Body, maxErrorBodySize)),
		}
		level := slog.LevelWarn
		if outcome == OutcomeTransient {
			level = slog.LevelError
		}
		c.logger.Log(ctx, level, "マーケットプレイスAPIがエラーステータスを返しました",
			slog.String("endpoint", endpoint),
			slog.String("method", method),
			slog.Int("http_status", resp.StatusCode),
			slog.String("outcome", outcome.String()),
		)
		return se
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%s: レスポンスボディの読み取りに失敗しました: %w", endpoint, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Error("マーケットプレイスAPIのレスポンスのパースに失敗しました",
			slog.String("endpoint", endpoint),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%s: レスポンスJSONのパースに失敗しました: %w", endpoint, err)
	}
	return nil
}

// extractErrorMessage はエラーレスポンスからメッセージを取り出す。
// JSONの message / error フィールドを優先し、なければ空文字を返す。
func extractErrorMessage(r io.Reader) string {
	raw, err := io.ReadAll(r)
	if err != nil || len(raw) == 0 {
		return ""
	}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

func idPath(format string, id int64) string {
	return fmt.Sprintf(format, id)
}
