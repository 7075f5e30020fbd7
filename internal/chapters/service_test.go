package chapters

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/Trolladactyl/podverse-api/internal/metrics"
	"github.com/Trolladactyl/podverse-api/internal/model"
)

// mockEpisodeRepoForChapters はチャプターサービステスト用のEpisodeRepositoryモック。
type mockEpisodeRepoForChapters struct {
	getChaptersStateFn func(ctx context.Context, id string) (*model.EpisodeChaptersState, error)

	lastParsedUpdates []string
}

func (m *mockEpisodeRepoForChapters) GetChaptersState(ctx context.Context, id string) (*model.EpisodeChaptersState, error) {
	if m.getChaptersStateFn != nil {
		return m.getChaptersStateFn(ctx, id)
	}
	return nil, nil
}

func (m *mockEpisodeRepoForChapters) UpdateChaptersLastParsed(_ context.Context, id string, _ time.Time) error {
	m.lastParsedUpdates = append(m.lastParsedUpdates, id)
	return nil
}

func (m *mockEpisodeRepoForChapters) FindByID(_ context.Context, _ string) (*model.Episode, error) {
	return nil, nil
}

func (m *mockEpisodeRepoForChapters) FindNewerPublicByPodcastAndTitle(_ context.Context, _, _, _ string) (*model.Episode, error) {
	return nil, nil
}

func (m *mockEpisodeRepoForChapters) ListFiltered(_ context.Context, _ *model.EpisodeQuery) ([]*model.Episode, error) {
	return nil, nil
}

func (m *mockEpisodeRepoForChapters) CountFiltered(_ context.Context, _ *model.EpisodeQuery) (int, error) {
	return 0, nil
}

func (m *mockEpisodeRepoForChapters) ListByIDs(_ context.Context, _ []string, _ bool) ([]*model.Episode, error) {
	return nil, nil
}

func (m *mockEpisodeRepoForChapters) FindByPodcastAndGUID(_ context.Context, _, _ string) (*model.Episode, error) {
	return nil, nil
}

func (m *mockEpisodeRepoForChapters) FindByPodcastAndMediaURL(_ context.Context, _, _ string) (*model.Episode, error) {
	return nil, nil
}

func (m *mockEpisodeRepoForChapters) Create(_ context.Context, _ *model.Episode) error { return nil }
func (m *mockEpisodeRepoForChapters) Update(_ context.Context, _ *model.Episode) error { return nil }
func (m *mockEpisodeRepoForChapters) DeleteDead(_ context.Context) (int64, error)      { return 0, nil }

// mockFetcher はテスト用のChapterFetcherモック。
type mockFetcher struct {
	fetchFn func(ctx context.Context, chaptersURL string) ([]model.ParsedChapter, error)
	calls   int
}

func (m *mockFetcher) Fetch(ctx context.Context, chaptersURL string) ([]model.ParsedChapter, error) {
	m.calls++
	if m.fetchFn != nil {
		return m.fetchFn(ctx, chaptersURL)
	}
	return nil, nil
}

func newTestChaptersService(episodes *mockEpisodeRepoForChapters, mediaRefs *mockMediaRefRepo, fetcher *mockFetcher) *Service {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	applier := NewApplier(mediaRefs, "super-user-1", metrics.NopCollector{}, logger)
	svc := NewService(episodes, mediaRefs, fetcher, applier, time.Hour, metrics.NopCollector{}, logger)
	// テストでは再調整を同期実行する
	svc.runDetached = func(fn func()) { fn() }
	return svc
}

func chaptersState(url string, lastParsed *time.Time) *model.EpisodeChaptersState {
	return &model.EpisodeChaptersState{
		EpisodeID:             "e1",
		ChaptersURL:           url,
		ChaptersURLLastParsed: lastParsed,
	}
}

// TestService_RetrieveLatestChapters_NotFound は存在しないエピソードで
// 未検出エラーが返ることを検証する。
func TestService_RetrieveLatestChapters_NotFound(t *testing.T) {
	svc := newTestChaptersService(&mockEpisodeRepoForChapters{}, &mockMediaRefRepo{}, &mockFetcher{})
	_, err := svc.RetrieveLatestChapters(context.Background(), "missing")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeEpisodeNotFound {
		t.Errorf("エラーコードがEPISODE_NOT_FOUNDではありません: %v", err)
	}
}

// TestService_RetrieveLatestChapters_WithinWindowSkipsFetch は前回取得から
// 一定時間以内の場合に再取得が起動しないことを検証する。
func TestService_RetrieveLatestChapters_WithinWindowSkipsFetch(t *testing.T) {
	recent := time.Now().Add(-10 * time.Minute)
	episodes := &mockEpisodeRepoForChapters{
		getChaptersStateFn: func(_ context.Context, _ string) (*model.EpisodeChaptersState, error) {
			return chaptersState("https://example.com/chapters.json", &recent), nil
		},
	}
	mediaRefs := &mockMediaRefRepo{
		listFn: func(_ context.Context, _ string) ([]*model.MediaRef, error) {
			return []*model.MediaRef{storedChapter("m1", 0, "Intro")}, nil
		},
	}
	fetcher := &mockFetcher{}

	svc := newTestChaptersService(episodes, mediaRefs, fetcher)
	refs, err := svc.RetrieveLatestChapters(context.Background(), "e1")
	if err != nil {
		t.Fatalf("RetrieveLatestChapters がエラーを返した: %v", err)
	}

	if fetcher.calls != 0 {
		t.Errorf("取得回数 = %d, want 0（抑止期間内）", fetcher.calls)
	}
	if len(refs) != 1 || refs[0].ID != "m1" {
		t.Errorf("保存済みチャプターが返っていません: %+v", refs)
	}
}

// TestService_RetrieveLatestChapters_NeverParsedTriggersReconcile は未取得の
// エピソードで再調整が起動し、取得時刻がフェッチ前に記録されることを検証する。
func TestService_RetrieveLatestChapters_NeverParsedTriggersReconcile(t *testing.T) {
	episodes := &mockEpisodeRepoForChapters{
		getChaptersStateFn: func(_ context.Context, _ string) (*model.EpisodeChaptersState, error) {
			return chaptersState("https://example.com/chapters.json", nil), nil
		},
	}
	mediaRefs := &mockMediaRefRepo{}

	var timestampBeforeFetch bool
	var episodesRef *mockEpisodeRepoForChapters = episodes
	fetcher := &mockFetcher{
		fetchFn: func(_ context.Context, _ string) ([]model.ParsedChapter, error) {
			timestampBeforeFetch = len(episodesRef.lastParsedUpdates) == 1
			return []model.ParsedChapter{{StartTime: 0, Title: "Intro"}}, nil
		},
	}

	svc := newTestChaptersService(episodes, mediaRefs, fetcher)
	if _, err := svc.RetrieveLatestChapters(context.Background(), "e1"); err != nil {
		t.Fatalf("RetrieveLatestChapters がエラーを返した: %v", err)
	}

	if fetcher.calls != 1 {
		t.Errorf("取得回数 = %d, want 1", fetcher.calls)
	}
	if !timestampBeforeFetch {
		t.Error("取得時刻がフェッチ前に記録されていません")
	}
	if len(mediaRefs.created) != 1 || mediaRefs.created[0].Title != "Intro" {
		t.Errorf("差分が適用されていません: %+v", mediaRefs.created)
	}
}

// TestService_RetrieveLatestChapters_FetchFailureIsSoft はフェッチ失敗が
// 保存済みチャプターの返却に影響しないことを検証する。
func TestService_RetrieveLatestChapters_FetchFailureIsSoft(t *testing.T) {
	episodes := &mockEpisodeRepoForChapters{
		getChaptersStateFn: func(_ context.Context, _ string) (*model.EpisodeChaptersState, error) {
			return chaptersState("https://example.com/chapters.json", nil), nil
		},
	}
	mediaRefs := &mockMediaRefRepo{
		listFn: func(_ context.Context, _ string) ([]*model.MediaRef, error) {
			return []*model.MediaRef{storedChapter("m1", 0, "Intro")}, nil
		},
	}
	fetcher := &mockFetcher{
		fetchFn: func(_ context.Context, _ string) ([]model.ParsedChapter, error) {
			return nil, errors.New("connection refused")
		},
	}

	svc := newTestChaptersService(episodes, mediaRefs, fetcher)
	refs, err := svc.RetrieveLatestChapters(context.Background(), "e1")
	if err != nil {
		t.Fatalf("RetrieveLatestChapters がエラーを返した: %v", err)
	}

	if len(refs) != 1 {
		t.Errorf("保存済みチャプターが返っていません: %+v", refs)
	}
	if len(mediaRefs.created) != 0 || len(mediaRefs.setPublic) != 0 {
		t.Error("フェッチ失敗時に書き込みが発生しました")
	}
}

// TestService_RetrieveLatestChapters_NoChaptersURLSkipsFetch はチャプターURLの
// ないエピソードで再取得が起動しないことを検証する。
func TestService_RetrieveLatestChapters_NoChaptersURLSkipsFetch(t *testing.T) {
	episodes := &mockEpisodeRepoForChapters{
		getChaptersStateFn: func(_ context.Context, _ string) (*model.EpisodeChaptersState, error) {
			return chaptersState("", nil), nil
		},
	}
	fetcher := &mockFetcher{}

	svc := newTestChaptersService(episodes, &mockMediaRefRepo{}, fetcher)
	if _, err := svc.RetrieveLatestChapters(context.Background(), "e1"); err != nil {
		t.Fatalf("RetrieveLatestChapters がエラーを返した: %v", err)
	}

	if fetcher.calls != 0 {
		t.Errorf("取得回数 = %d, want 0", fetcher.calls)
	}
}
