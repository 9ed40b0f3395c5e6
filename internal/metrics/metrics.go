// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// バックエンドクライアント、注文サービス、セッション層から利用する。
type MetricsCollector interface {
	RecordBackendRequest(endpoint, outcome string)
	RecordBackendStatus(statusCode int)
	RecordBackendLatency(endpoint string, duration time.Duration)
	RecordTransition(from, to, result string)
	RecordLogin(result string)
	SetActiveSessions(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	backendRequests *prometheus.CounterVec
	backendStatus   *prometheus.CounterVec
	backendLatency  *prometheus.HistogramVec
	transitions     *prometheus.CounterVec
	logins          *prometheus.CounterVec
	activeSessions  prometheus.Gauge
}

var _ MetricsCollector = (*Collector)(nil)

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		backendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pertindetu_backend_requests_total",
			Help: "マーケットプレイスAPI呼び出しの結果別合計数",
		}, []string{"endpoint", "outcome"}),
		backendStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pertindetu_backend_http_status_total",
			Help: "マーケットプレイスAPIのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pertindetu_backend_latency_seconds",
			Help:    "マーケットプレイスAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pertindetu_order_transitions_total",
			Help: "注文状態遷移の要求数",
		}, []string{"from", "to", "result"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pertindetu_logins_total",
			Help: "ログイン試行の結果別合計数",
		}, []string{"result"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pertindetu_active_sessions",
			Help: "メモリ上に保持しているセッションストア数",
		}),
	}

	reg.MustRegister(
		c.backendRequests,
		c.backendStatus,
		c.backendLatency,
		c.transitions,
		c.logins,
		c.activeSessions,
	)

	return c
}

// RecordBackendRequest はAPI呼び出しの結果を記録する。
func (c *Collector) RecordBackendRequest(endpoint, outcome string) {
	c.backendRequests.WithLabelValues(endpoint, outcome).Inc()
}

// RecordBackendStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordBackendStatus(statusCode int) {
	c.backendStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordBackendLatency はAPI呼び出しのレイテンシを記録する。
func (c *Collector) RecordBackendLatency(endpoint string, duration time.Duration) {
	c.backendLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordTransition は状態遷移の要求結果を記録する。
func (c *Collector) RecordTransition(from, to, result string) {
	c.transitions.WithLabelValues(from, to, result).Inc()
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

// SetActiveSessions は保持中のセッション数を設定する。
func (c *Collector) SetActiveSessions(count int) {
	c.activeSessions.Set(float64(count))
}

// Nop は何も記録しないMetricsCollector。メトリクス未設定時とテストで使う。
type Nop struct{}

var _ MetricsCollector = Nop{}

func (Nop) RecordBackendRequest(string, string)        {}
func (Nop) RecordBackendStatus(int)                    {}
func (Nop) RecordBackendLatency(string, time.Duration) {}
func (Nop) RecordTransition(string, string, string)    {}
func (Nop) RecordLogin(string)                         {}
func (Nop) SetActiveSessions(int)                      {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
