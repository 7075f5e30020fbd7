package parse

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/Trolladactyl/podverse-api/internal/metrics"
	"github.com/Trolladactyl/podverse-api/internal/model"
	"github.com/Trolladactyl/podverse-api/internal/repository"
)

// EpisodeUpserter はエピソードのUPSERT処理のインターフェース。
type EpisodeUpserter interface {
	UpsertEpisodes(ctx context.Context, podcastID string, parsed []model.ParsedEpisode) (int, int, error)
}

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Fetcher は個別フィードURLのHTTPフェッチとパースを行う。
// ETag/Last-Modifiedを使用した条件付きGET、SSRF検証、
// gofeedによるパース、EpisodeUpsertServiceによるエピソード保存を実行する。
type Fetcher struct {
	feedURLs    repository.FeedUrlRepository
	podcasts    repository.PodcastRepository
	upsertSvc   EpisodeUpserter
	ssrfGuard   SSRFValidator
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
func NewFetcher(
	feedURLs repository.FeedUrlRepository,
	podcasts repository.PodcastRepository,
	upsertSvc EpisodeUpserter,
	ssrfGuard SSRFValidator,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	timeout time.Duration,
	maxBodySize int64,
) *Fetcher {
	return &Fetcher{
		feedURLs:    feedURLs,
		podcasts:    podcasts,
		upsertSvc:   upsertSvc,
		ssrfGuard:   ssrfGuard,
		metrics:     collector,
		logger:      logger,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// Fetch はフィードURLをフェッチし、結果に応じて取得状態を更新する。
// FeedFetcherServiceインターフェースを実装する。
// パース失敗とUPSERT失敗はフェッチエラーとしない（記録して継続）。
func (f *Fetcher) Fetch(ctx context.Context, feedURL *model.FeedUrl) error {
	start := time.Now()

	// SSRF検証
	if err := f.ssrfGuard.ValidateURL(feedURL.URL); err != nil {
		f.logger.Error("SSRF検証に失敗しました",
			slog.String("feed_url_id", feedURL.ID),
			slog.String("url", feedURL.URL),
			slog.String("error", err.Error()),
		)
		f.metrics.RecordFetchFailure("ssrf")
		f.recordFetchResult(ctx, feedURL, start, fmt.Sprintf("SSRF検証失敗: %s", err.Error()))
		return fmt.Errorf("SSRF検証に失敗しました: %w", err)
	}

	// HTTPリクエスト構築
	client := f.ssrfGuard.NewSafeClient(f.timeout, f.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL.URL, nil)
	if err != nil {
		return fmt.Errorf("リクエストの作成に失敗しました: %w", err)
	}

	req.Header.Set("User-Agent", "Podverse/1.0 Podcast Indexer")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	// 条件付きGET: ETag
	if feedURL.ETag != "" {
		req.Header.Set("If-None-Match", feedURL.ETag)
	}
	// 条件付きGET: Last-Modified
	if feedURL.LastModified != "" {
		req.Header.Set("If-Modified-Since", feedURL.LastModified)
	}

	// HTTPリクエスト実行
	resp, err := client.Do(req)
	if err != nil {
		f.logger.Error("HTTPリクエストに失敗しました",
			slog.String("feed_url_id", feedURL.ID),
			slog.String("url", feedURL.URL),
			slog.String("error", err.Error()),
		)
		f.metrics.RecordFetchFailure("request")
		f.recordFetchResult(ctx, feedURL, start, fmt.Sprintf("HTTPリクエスト失敗: %s", err.Error()))
		return fmt.Errorf("HTTPリクエストに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start)

	// 304: コンテンツ未変更 - 取得時刻のみ更新
	if resp.StatusCode == http.StatusNotModified {
		f.logger.Info("フィードは未変更です（304）",
			slog.String("feed_url_id", feedURL.ID),
			slog.String("url", feedURL.URL),
			slog.Float64("duration_ms", float64(duration.Milliseconds())),
		)
		f.metrics.RecordFetchSuccess()
		f.recordFetchResult(ctx, feedURL, start, "")
		return nil
	}

	if resp.StatusCode != http.StatusOK {
		f.logger.Warn("フィードが正常ステータスを返しませんでした",
			slog.String("feed_url_id", feedURL.ID),
			slog.String("url", feedURL.URL),
			slog.Int("http_status", resp.StatusCode),
		)
		f.metrics.RecordFetchFailure("http_status")
		f.recordFetchResult(ctx, feedURL, start, fmt.Sprintf("HTTPステータス %d", resp.StatusCode))
		return nil
	}

	// レスポンスボディを読み込み（最大サイズ制限付き）
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		f.logger.Error("レスポンスボディの読み取りに失敗しました",
			slog.String("feed_url_id", feedURL.ID),
			slog.String("error", err.Error()),
		)
		f.metrics.RecordFetchFailure("read_body")
		f.recordFetchResult(ctx, feedURL, start, fmt.Sprintf("レスポンス読み取り失敗: %s", err.Error()))
		return nil
	}

	// ETag/Last-Modifiedを保存
	if etag := resp.Header.Get("ETag"); etag != "" {
		feedURL.ETag = etag
	}
	if lastMod := resp.Header.Get("Last-Modified"); lastMod != "" {
		feedURL.LastModified = lastMod
	}

	// gofeedでフィードをパース
	parser := gofeed.NewParser()
	parsedFeed, err := parser.ParseString(string(body))
	if err != nil {
		f.logger.Error("フィードのパースに失敗しました",
			slog.String("feed_url_id", feedURL.ID),
			slog.String("url", feedURL.URL),
			slog.String("error", err.Error()),
		)
		f.metrics.RecordParseFailure()
		f.recordFetchResult(ctx, feedURL, start, fmt.Sprintf("パース失敗: %s", err.Error()))
		return nil
	}

	// gofeedのアイテムをParsedEpisodeに変換
	episodes := convertFeedItems(parsedFeed.Items)

	// エピソードをUPSERT
	created, updated, err := f.upsertSvc.UpsertEpisodes(ctx, feedURL.PodcastID, episodes)
	if err != nil {
		f.logger.Error("エピソードのUPSERTに失敗しました",
			slog.String("feed_url_id", feedURL.ID),
			slog.String("podcast_id", feedURL.PodcastID),
			slog.String("error", err.Error()),
		)
		f.metrics.RecordFetchFailure("upsert")
		f.recordFetchResult(ctx, feedURL, start, fmt.Sprintf("エピソードUPSERT失敗: %s", err.Error()))
		return nil
	}
	f.metrics.RecordEpisodesUpserted(created + updated)

	// ポッドキャストメタデータを更新
	if err := f.updatePodcastMetadata(ctx, feedURL.PodcastID, parsedFeed, episodes); err != nil {
		f.logger.Error("ポッドキャストメタデータの更新に失敗しました",
			slog.String("podcast_id", feedURL.PodcastID),
			slog.String("error", err.Error()),
		)
	}

	f.metrics.RecordFetchSuccess()
	f.recordFetchResult(ctx, feedURL, start, "")

	f.logger.Info("フィードフェッチが完了しました",
		slog.String("feed_url_id", feedURL.ID),
		slog.String("url", feedURL.URL),
		slog.Int("http_status", resp.StatusCode),
		slog.Int("episodes_created", created),
		slog.Int("episodes_updated", updated),
		slog.Int("episodes_total", len(episodes)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// recordFetchResult はフィードURLの取得結果を保存する。
// fetchErrが空文字の場合は成功として直前のエラーをクリアする。
func (f *Fetcher) recordFetchResult(ctx context.Context, feedURL *model.FeedUrl, fetchedAt time.Time, fetchErr string) {
	feedURL.LastFetchedAt = &fetchedAt
	feedURL.LastFetchError = fetchErr

	if err := f.feedURLs.UpdateFetchState(ctx, feedURL); err != nil {
		f.logger.Error("フィードURL状態の更新に失敗しました",
			slog.String("feed_url_id", feedURL.ID),
			slog.String("error", err.Error()),
		)
	}
}

// updatePodcastMetadata はフィードのチャンネル情報をポッドキャストに反映する。
func (f *Fetcher) updatePodcastMetadata(
	ctx context.Context,
	podcastID string,
	parsedFeed *gofeed.Feed,
	episodes []model.ParsedEpisode,
) error {
	podcast, err := f.podcasts.FindByID(ctx, podcastID)
	if err != nil {
		return err
	}
	if podcast == nil {
		return fmt.Errorf("ポッドキャストが見つかりません: %s", podcastID)
	}

	meta := FeedMetadata{
		Title:       parsedFeed.Title,
		Description: parsedFeed.Description,
		LinkURL:     parsedFeed.Link,
		Updated:     parsedFeed.UpdatedParsed,
	}
	if parsedFeed.Image != nil {
		meta.ImageURL = parsedFeed.Image.URL
	}
	if meta.ImageURL == "" && parsedFeed.ITunesExt != nil {
		meta.ImageURL = parsedFeed.ITunesExt.Image
	}

	applyFeedMetadata(podcast, meta, episodes, time.Now())

	return f.podcasts.Update(ctx, podcast)
}
