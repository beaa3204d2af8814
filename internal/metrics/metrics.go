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
// 認証サービスとバックエンドクライアントから利用する。
type MetricsCollector interface {
	RecordSignIn(method string, outcome string)
	RecordReconciliation(outcome string)
	RecordForcedLogout(statusCode int)
	RecordBackendRequest(method, path string, statusCode int, elapsed time.Duration)
	RecordSessionsCleaned(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signIns         *prometheus.CounterVec
	reconciliations *prometheus.CounterVec
	forcedLogouts   *prometheus.CounterVec
	backendStatus   *prometheus.CounterVec
	backendLatency  prometheus.Histogram
	sessionsCleaned prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pawgate_sign_in_total",
			Help: "認証方式・結果別のサインイン試行数",
		}, []string{"method", "outcome"}),
		reconciliations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pawgate_reconciliation_total",
			Help: "結果別の身元照合数",
		}, []string{"outcome"}),
		forcedLogouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pawgate_forced_logout_total",
			Help: "401/403応答による強制ログアウト数",
		}, []string{"status_code"}),
		backendStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pawgate_backend_status_total",
			Help: "バックエンドAPIのステータスコード別レスポンス数",
		}, []string{"method", "status_code"}),
		backendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pawgate_backend_latency_seconds",
			Help:    "バックエンドAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pawgate_sessions_cleaned_total",
			Help: "削除された期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.signIns,
		c.reconciliations,
		c.forcedLogouts,
		c.backendStatus,
		c.backendLatency,
		c.sessionsCleaned,
	)

	return c
}

// RecordSignIn はサインイン試行の結果を記録する。
func (c *Collector) RecordSignIn(method string, outcome string) {
	c.signIns.WithLabelValues(method, outcome).Inc()
}

// RecordReconciliation は身元照合の結果を記録する。
func (c *Collector) RecordReconciliation(outcome string) {
	c.reconciliations.WithLabelValues(outcome).Inc()
}

// RecordForcedLogout は401/403応答による強制ログアウトを記録する。
func (c *Collector) RecordForcedLogout(statusCode int) {
	c.forcedLogouts.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordBackendRequest はバックエンドAPI呼び出しの結果を記録する。
// statusCode 0 はネットワークエラーを表す。
func (c *Collector) RecordBackendRequest(method, path string, statusCode int, elapsed time.Duration) {
	c.backendStatus.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.backendLatency.Observe(elapsed.Seconds())
}

// RecordSessionsCleaned は削除された期限切れセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int64) {
	c.sessionsCleaned.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
