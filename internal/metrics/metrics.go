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
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordIngestSuccess(mediaType string)
	RecordIngestFailure(reason string)
	RecordTitleCreated(mediaType string)
	RecordConflictRecovered()
	RecordGatewayStatus(statusCode int)
	RecordGatewayLatency(duration time.Duration)
	RecordRefreshSuccess()
	RecordRefreshFailure()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	ingestSuccess     *prometheus.CounterVec
	ingestFail        *prometheus.CounterVec
	titlesCreated     *prometheus.CounterVec
	conflictRecovered prometheus.Counter
	gatewayStatus     *prometheus.CounterVec
	gatewayLatency    prometheus.Histogram
	refreshSuccess    prometheus.Counter
	refreshFail       prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ingestSuccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watchlog_ingest_success_total",
			Help: "ウォッチリスト追加成功の合計数",
		}, []string{"media_type"}),
		ingestFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watchlog_ingest_fail_total",
			Help: "ウォッチリスト追加失敗の合計数",
		}, []string{"reason"}),
		titlesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watchlog_titles_created_total",
			Help: "カタログに新規登録されたタイトルの合計数",
		}, []string{"media_type"}),
		conflictRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watchlog_conflict_recovered_total",
			Help: "一意制約違反から再読込で回復した合計数",
		}),
		gatewayStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watchlog_gateway_status_total",
			Help: "メタデータゲートウェイのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		gatewayLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "watchlog_gateway_latency_seconds",
			Help:    "メタデータゲートウェイ呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		refreshSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watchlog_refresh_success_total",
			Help: "メタデータ再取得成功の合計数",
		}),
		refreshFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watchlog_refresh_fail_total",
			Help: "メタデータ再取得失敗の合計数",
		}),
	}

	reg.MustRegister(
		c.ingestSuccess,
		c.ingestFail,
		c.titlesCreated,
		c.conflictRecovered,
		c.gatewayStatus,
		c.gatewayLatency,
		c.refreshSuccess,
		c.refreshFail,
	)

	return c
}

// RecordIngestSuccess はウォッチリスト追加成功を記録する。
func (c *Collector) RecordIngestSuccess(mediaType string) {
	c.ingestSuccess.WithLabelValues(mediaType).Inc()
}

// RecordIngestFailure はウォッチリスト追加失敗を記録する。
func (c *Collector) RecordIngestFailure(reason string) {
	c.ingestFail.WithLabelValues(reason).Inc()
}

// RecordTitleCreated はカタログへの新規タイトル登録を記録する。
func (c *Collector) RecordTitleCreated(mediaType string) {
	c.titlesCreated.WithLabelValues(mediaType).Inc()
}

// RecordConflictRecovered は一意制約違反からの回復を記録する。
func (c *Collector) RecordConflictRecovered() {
	c.conflictRecovered.Inc()
}

// RecordGatewayStatus はゲートウェイのHTTPステータスコードを記録する。
func (c *Collector) RecordGatewayStatus(statusCode int) {
	c.gatewayStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordGatewayLatency はゲートウェイ呼び出しのレイテンシを記録する。
func (c *Collector) RecordGatewayLatency(duration time.Duration) {
	c.gatewayLatency.Observe(duration.Seconds())
}

// RecordRefreshSuccess はメタデータ再取得成功を記録する。
func (c *Collector) RecordRefreshSuccess() {
	c.refreshSuccess.Inc()
}

// RecordRefreshFailure はメタデータ再取得失敗を記録する。
func (c *Collector) RecordRefreshFailure() {
	c.refreshFail.Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// ルーターの/metricsパスに直接マウントする。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
