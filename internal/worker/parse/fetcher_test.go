package parse

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Trolladactyl/podverse-api/internal/metrics"
	"github.com/Trolladactyl/podverse-api/internal/model"
)

const testRSSBody = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
<channel>
	<title>Test Podcast</title>
	<description>A test feed</description>
	<link>https://example.com</link>
	<item>
		<title>Episode 1</title>
		<guid>guid-1</guid>
		<pubDate>Mon, 02 Jun 2025 10:00:00 GMT</pubDate>
		<enclosure url="https://example.com/1.mp3" type="audio/mpeg" length="1000"/>
	</item>
</channel>
</rss>`

// mockFeedUrlRepoForFetch はテスト用のFeedUrlRepositoryモック。
type mockFeedUrlRepoForFetch struct {
	updates []*model.FeedUrl
}

func (m *mockFeedUrlRepoForFetch) FindByURLs(_ context.Context, _ []string) ([]*model.FeedUrl, error) {
	return nil, nil
}

func (m *mockFeedUrlRepoForFetch) ListAuthority(_ context.Context) ([]*model.FeedUrl, error) {
	return nil, nil
}

func (m *mockFeedUrlRepoForFetch) UpdateFetchState(_ context.Context, feedURL *model.FeedUrl) error {
	clone := *feedURL
	m.updates = append(m.updates, &clone)
	return nil
}

// mockPodcastRepoForFetch はテスト用のPodcastRepositoryモック。
type mockPodcastRepoForFetch struct {
	podcast *model.Podcast
	updated *model.Podcast
}

func (m *mockPodcastRepoForFetch) FindByID(_ context.Context, _ string) (*model.Podcast, error) {
	return m.podcast, nil
}

func (m *mockPodcastRepoForFetch) ListFiltered(_ context.Context, _ *model.PodcastQuery) ([]*model.Podcast, error) {
	return nil, nil
}

func (m *mockPodcastRepoForFetch) CountFiltered(_ context.Context, _ *model.PodcastQuery) (int, error) {
	return 0, nil
}

func (m *mockPodcastRepoForFetch) ListByIDs(_ context.Context, _ []string) ([]*model.Podcast, error) {
	return nil, nil
}

func (m *mockPodcastRepoForFetch) Update(_ context.Context, podcast *model.Podcast) error {
	m.updated = podcast
	return nil
}

// mockUpserter はテスト用のEpisodeUpserterモック。
type mockUpserter struct {
	upsertFn func(ctx context.Context, podcastID string, parsed []model.ParsedEpisode) (int, int, error)
	calls    int
}

func (m *mockUpserter) UpsertEpisodes(ctx context.Context, podcastID string, parsed []model.ParsedEpisode) (int, int, error) {
	m.calls++
	if m.upsertFn != nil {
		return m.upsertFn(ctx, podcastID, parsed)
	}
	return len(parsed), 0, nil
}

// passthroughValidator はテスト用に全URLを許可するSSRF検証。
type passthroughValidator struct {
	client *http.Client
}

func (v *passthroughValidator) ValidateURL(_ string) error { return nil }
func (v *passthroughValidator) NewSafeClient(_ time.Duration, _ int64) *http.Client {
	return v.client
}

func newTestFetcher(
	feedURLs *mockFeedUrlRepoForFetch,
	podcasts *mockPodcastRepoForFetch,
	upserter *mockUpserter,
	client *http.Client,
) *Fetcher {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	return NewFetcher(
		feedURLs, podcasts, upserter,
		&passthroughValidator{client: client},
		metrics.NopCollector{}, logger,
		10*time.Second, 5242880,
	)
}

// TestFetcher_Fetch_UpsertsEpisodesAndUpdatesMetadata は正常フェッチで
// エピソードUPSERTとポッドキャストメタデータ更新が行われることを検証する。
func TestFetcher_Fetch_UpsertsEpisodesAndUpdatesMetadata(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v2"`)
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(testRSSBody))
	}))
	defer server.Close()

	feedURLs := &mockFeedUrlRepoForFetch{}
	podcasts := &mockPodcastRepoForFetch{podcast: &model.Podcast{ID: "p1", Title: "Old"}}
	var gotParsed []model.ParsedEpisode
	upserter := &mockUpserter{
		upsertFn: func(_ context.Context, podcastID string, parsed []model.ParsedEpisode) (int, int, error) {
			if podcastID != "p1" {
				t.Errorf("podcastID = %s, want p1", podcastID)
			}
			gotParsed = parsed
			return 1, 0, nil
		},
	}

	fetcher := newTestFetcher(feedURLs, podcasts, upserter, server.Client())
	feedURL := &model.FeedUrl{ID: "f1", PodcastID: "p1", URL: server.URL + "/feed.xml", IsAuthority: true}

	if err := fetcher.Fetch(context.Background(), feedURL); err != nil {
		t.Fatalf("Fetch がエラーを返した: %v", err)
	}

	if len(gotParsed) != 1 || gotParsed[0].GUID != "guid-1" {
		t.Errorf("UPSERTされたエピソード = %+v", gotParsed)
	}

	// メタデータ更新
	if podcasts.updated == nil || podcasts.updated.Title != "Test Podcast" {
		t.Errorf("ポッドキャストメタデータが更新されていません: %+v", podcasts.updated)
	}

	// 取得状態の保存: ETag保持、エラークリア
	if len(feedURLs.updates) != 1 {
		t.Fatalf("状態更新回数 = %d, want 1", len(feedURLs.updates))
	}
	state := feedURLs.updates[0]
	if state.ETag != `"v2"` {
		t.Errorf("ETag = %s", state.ETag)
	}
	if state.LastFetchError != "" || state.LastFetchedAt == nil {
		t.Errorf("取得状態 = %+v", state)
	}
}

// TestFetcher_Fetch_NotModified は304で取得時刻のみが更新され、
// UPSERTが呼ばれないことを検証する。
func TestFetcher_Fetch_NotModified(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-None-Match") != `"v1"` {
			t.Errorf("If-None-Match = %s", r.Header.Get("If-None-Match"))
		}
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	feedURLs := &mockFeedUrlRepoForFetch{}
	upserter := &mockUpserter{}
	fetcher := newTestFetcher(feedURLs, &mockPodcastRepoForFetch{}, upserter, server.Client())
	feedURL := &model.FeedUrl{ID: "f1", PodcastID: "p1", URL: server.URL, ETag: `"v1"`}

	if err := fetcher.Fetch(context.Background(), feedURL); err != nil {
		t.Fatalf("Fetch がエラーを返した: %v", err)
	}

	if upserter.calls != 0 {
		t.Error("304なのにUPSERTが呼ばれました")
	}
	if len(feedURLs.updates) != 1 || feedURLs.updates[0].LastFetchedAt == nil {
		t.Errorf("取得時刻が更新されていません: %+v", feedURLs.updates)
	}
}

// TestFetcher_Fetch_HTTPErrorStatus は4xx/5xxでエラーが記録され、
// フェッチエラーとして扱われないことを検証する。
func TestFetcher_Fetch_HTTPErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	feedURLs := &mockFeedUrlRepoForFetch{}
	upserter := &mockUpserter{}
	fetcher := newTestFetcher(feedURLs, &mockPodcastRepoForFetch{}, upserter, server.Client())
	feedURL := &model.FeedUrl{ID: "f1", PodcastID: "p1", URL: server.URL}

	if err := fetcher.Fetch(context.Background(), feedURL); err != nil {
		t.Fatalf("ステータスエラーがフェッチエラーとして返されました: %v", err)
	}

	if upserter.calls != 0 {
		t.Error("エラーステータスなのにUPSERTが呼ばれました")
	}
	if len(feedURLs.updates) != 1 || feedURLs.updates[0].LastFetchError == "" {
		t.Errorf("エラーが記録されていません: %+v", feedURLs.updates)
	}
}

// TestFetcher_Fetch_ParseFailureIsSoft はパース失敗が記録されて継続する
// ことを検証する。
func TestFetcher_Fetch_ParseFailureIsSoft(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not a feed"))
	}))
	defer server.Close()

	feedURLs := &mockFeedUrlRepoForFetch{}
	upserter := &mockUpserter{}
	fetcher := newTestFetcher(feedURLs, &mockPodcastRepoForFetch{}, upserter, server.Client())
	feedURL := &model.FeedUrl{ID: "f1", PodcastID: "p1", URL: server.URL}

	if err := fetcher.Fetch(context.Background(), feedURL); err != nil {
		t.Fatalf("パース失敗がフェッチエラーとして返されました: %v", err)
	}

	if upserter.calls != 0 {
		t.Error("パース失敗なのにUPSERTが呼ばれました")
	}
	if len(feedURLs.updates) != 1 || feedURLs.updates[0].LastFetchError == "" {
		t.Errorf("パースエラーが記録されていません: %+v", feedURLs.updates)
	}
}
