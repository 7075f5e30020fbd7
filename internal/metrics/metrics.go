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
// サービス層とワーカーから利用する。
type MetricsCollector interface {
	RecordEpisodeList(route string, duration time.Duration)
	RecordSearchRequest(success bool)
	RecordChapterOp(op string)
	RecordChapterReconcile(outcome string)
	RecordFetchSuccess()
	RecordFetchFailure(reason string)
	RecordParseFailure()
	RecordEpisodesUpserted(count int)
	RecordEpisodesDeleted(count int)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	episodeListTotal   *prometheus.CounterVec
	episodeListLatency *prometheus.HistogramVec
	searchRequests     *prometheus.CounterVec
	chapterOps         *prometheus.CounterVec
	chapterReconcile   *prometheus.CounterVec
	fetchSuccess       prometheus.Counter
	fetchFail          *prometheus.CounterVec
	parseFail          prometheus.Counter
	episodesUpserted   prometheus.Counter
	episodesDeleted    prometheus.Counter
	httpStatus         *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		episodeListTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "podverse_episode_list_total",
			Help: "エピソード一覧リクエストの実行経路別の合計数",
		}, []string{"route"}),
		episodeListLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "podverse_episode_list_latency_seconds",
			Help:    "エピソード一覧リクエストの実行経路別レイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		searchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "podverse_search_requests_total",
			Help: "検索エンジンへのリクエスト数（成否別）",
		}, []string{"outcome"}),
		chapterOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "podverse_chapter_ops_total",
			Help: "チャプター再調整で適用された操作数（種別別）",
		}, []string{"op"}),
		chapterReconcile: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "podverse_chapter_reconcile_total",
			Help: "チャプター再調整の実行数（結果別）",
		}, []string{"outcome"}),
		fetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "podverse_feed_fetch_success_total",
			Help: "フィードフェッチ成功の合計数",
		}),
		fetchFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "podverse_feed_fetch_fail_total",
			Help: "フィードフェッチ失敗の合計数（理由別）",
		}, []string{"reason"}),
		parseFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "podverse_feed_parse_fail_total",
			Help: "フィードパース失敗の合計数",
		}),
		episodesUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "podverse_episodes_upserted_total",
			Help: "アップサートされたエピソードの合計数",
		}),
		episodesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "podverse_episodes_deleted_total",
			Help: "クリーンアップで削除されたエピソードの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "podverse_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.episodeListTotal,
		c.episodeListLatency,
		c.searchRequests,
		c.chapterOps,
		c.chapterReconcile,
		c.fetchSuccess,
		c.fetchFail,
		c.parseFail,
		c.episodesUpserted,
		c.episodesDeleted,
		c.httpStatus,
	)

	return c
}

// RecordEpisodeList はエピソード一覧の実行経路とレイテンシを記録する。
func (c *Collector) RecordEpisodeList(route string, duration time.Duration) {
	c.episodeListTotal.WithLabelValues(route).Inc()
	c.episodeListLatency.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordSearchRequest は検索エンジンへのリクエスト結果を記録する。
func (c *Collector) RecordSearchRequest(success bool) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	c.searchRequests.WithLabelValues(outcome).Inc()
}

// RecordChapterOp はチャプター再調整で適用された操作を記録する。
// op: "created", "updated", "retired"
func (c *Collector) RecordChapterOp(op string) {
	c.chapterOps.WithLabelValues(op).Inc()
}

// RecordChapterReconcile はチャプター再調整の実行結果を記録する。
// outcome: "success", "soft_failure", "skipped"
func (c *Collector) RecordChapterReconcile(outcome string) {
	c.chapterReconcile.WithLabelValues(outcome).Inc()
}

// RecordFetchSuccess はフィードフェッチ成功を記録する。
func (c *Collector) RecordFetchSuccess() {
	c.fetchSuccess.Inc()
}

// RecordFetchFailure はフィードフェッチ失敗を理由付きで記録する。
func (c *Collector) RecordFetchFailure(reason string) {
	c.fetchFail.WithLabelValues(reason).Inc()
}

// RecordParseFailure はフィードパース失敗を記録する。
func (c *Collector) RecordParseFailure() {
	c.parseFail.Inc()
}

// RecordEpisodesUpserted はアップサートされたエピソード数を記録する。
func (c *Collector) RecordEpisodesUpserted(count int) {
	c.episodesUpserted.Add(float64(count))
}

// RecordEpisodesDeleted はクリーンアップで削除されたエピソード数を記録する。
func (c *Collector) RecordEpisodesDeleted(count int) {
	c.episodesDeleted.Add(float64(count))
}

// RecordHTTPStatus はHTTPレスポンスのステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// SetupMetricsRoute はメトリクス公開用のHTTPハンドラーを返す。
func SetupMetricsRoute(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// NopCollector は何も記録しないメトリクスコレクター。テスト用。
type NopCollector struct{}

func (NopCollector) RecordEpisodeList(route string, duration time.Duration) {}
func (NopCollector) RecordSearchRequest(success bool)                      {}
func (NopCollector) RecordChapterOp(op string)                             {}
func (NopCollector) RecordChapterReconcile(outcome string)                 {}
func (NopCollector) RecordFetchSuccess()                                   {}
func (NopCollector) RecordFetchFailure(reason string)                      {}
func (NopCollector) RecordParseFailure()                                   {}
func (NopCollector) RecordEpisodesUpserted(count int)                      {}
func (NopCollector) RecordEpisodesDeleted(count int)                       {}
func (NopCollector) RecordHTTPStatus(statusCode int)                       {}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
var _ MetricsCollector = NopCollector{}
