// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hitoshi/imgtag/internal/imgsrc"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 描画処理、ポリシー監視、HTTP層から利用する。
type MetricsCollector interface {
	RecordVerdict(reason imgsrc.Reason)
	RecordRender(entry string, isError bool, duration time.Duration)
	RecordSelfClosingFixed(count int)
	RecordPolicyReload(ok bool)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	validations      *prometheus.CounterVec
	renders          *prometheus.CounterVec
	renderLatency    prometheus.Histogram
	selfClosingFixed prometheus.Counter
	policyReloads    *prometheus.CounterVec
	httpStatus       *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imgtag_validations_total",
			Help: "画像URL検証の合計数（理由コード別、成功は ok）",
		}, []string{"reason"}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imgtag_render_total",
			Help: "img要素描画の合計数（入口別、結果別）",
		}, []string{"entry", "result"}),
		renderLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "imgtag_render_latency_seconds",
			Help:    "img要素描画のレイテンシ（秒）",
			Buckets: []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025},
		}),
		selfClosingFixed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "imgtag_self_closing_fixed_total",
			Help: "自己終了形式に修正したimgタグの合計数",
		}),
		policyReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imgtag_policy_reload_total",
			Help: "ポリシーファイル再読み込みの合計数（結果別）",
		}, []string{"result"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "imgtag_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.validations,
		c.renders,
		c.renderLatency,
		c.selfClosingFixed,
		c.policyReloads,
		c.httpStatus,
	)

	// 一度も発生していない理由コードも0として公開する
	c.validations.WithLabelValues("ok")
	for _, reason := range imgsrc.Reasons() {
		c.validations.WithLabelValues(string(reason))
	}

	return c
}

// RecordVerdict は検証結果を記録する。
func (c *Collector) RecordVerdict(reason imgsrc.Reason) {
	label := string(reason)
	if reason == imgsrc.ReasonNone {
		label = "ok"
	}
	c.validations.WithLabelValues(label).Inc()
}

// RecordRender は描画結果とレイテンシを記録する。
func (c *Collector) RecordRender(entry string, isError bool, duration time.Duration) {
	result := "ok"
	if isError {
		result = "error"
	}
	c.renders.WithLabelValues(entry, result).Inc()
	c.renderLatency.Observe(duration.Seconds())
}

// RecordSelfClosingFixed は修正したタグ数を記録する。
func (c *Collector) RecordSelfClosingFixed(count int) {
	c.selfClosingFixed.Add(float64(count))
}

// RecordPolicyReload はポリシー再読み込みの結果を記録する。
func (c *Collector) RecordPolicyReload(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	c.policyReloads.WithLabelValues(result).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
