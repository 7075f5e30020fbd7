package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Trolladactyl/podverse-api/internal/episode"
	"github.com/Trolladactyl/podverse-api/internal/model"
)

// mockEpisodeService はテスト用のEpisodeServiceInterfaceモック。
type mockEpisodeService struct {
	listFn func(ctx context.Context, q *model.EpisodeQuery) (*episode.ListResult, error)
	getFn  func(ctx context.Context, id string) (*model.Episode, error)
}

func (m *mockEpisodeService) List(ctx context.Context, q *model.EpisodeQuery) (*episode.ListResult, error) {
	if m.listFn != nil {
		return m.listFn(ctx, q)
	}
	return &episode.ListResult{}, nil
}

func (m *mockEpisodeService) GetEpisode(ctx context.Context, id string) (*model.Episode, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewEpisodeNotFoundError(id)
}

// mockChapterService はテスト用のChapterServiceInterfaceモック。
type mockChapterService struct {
	retrieveFn func(ctx context.Context, episodeID string) ([]*model.MediaRef, error)
}

func (m *mockChapterService) RetrieveLatestChapters(ctx context.Context, episodeID string) ([]*model.MediaRef, error) {
	if m.retrieveFn != nil {
		return m.retrieveFn(ctx, episodeID)
	}
	return nil, nil
}

func newEpisodeTestRouter(svc EpisodeServiceInterface, chapters ChapterServiceInterface) http.Handler {
	r := chi.NewRouter()
	h := NewEpisodeHandler(svc, chapters)
	r.Get("/api/v1/episode", h.ListEpisodes)
	r.Get("/api/v1/episode/{id}", h.GetEpisode)
	r.Get("/api/v1/episode/{id}/retrieve-latest-chapters", h.RetrieveLatestChapters)
	return r
}

// TestListEpisodes_ParsesQueryParams はクエリパラメータの正規化を検証する。
func TestListEpisodes_ParsesQueryParams(t *testing.T) {
	var gotQuery *model.EpisodeQuery
	svc := &mockEpisodeService{
		listFn: func(_ context.Context, q *model.EpisodeQuery) (*episode.ListResult, error) {
			gotQuery = q
			return &episode.ListResult{Total: 0}, nil
		},
	}

	router := newEpisodeTestRouter(svc, &mockChapterService{})
	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/episode?searchTitle=golang&podcastId=p1,p2&categoryId=c1&sort=most-recent&skip=20&take=10&includePodcast=true&hasVideo=true&sincePubDate=2025-01-01T00:00:00Z", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotQuery.SearchTitle != "golang" {
		t.Errorf("SearchTitle = %s", gotQuery.SearchTitle)
	}
	if len(gotQuery.PodcastIDs) != 2 || gotQuery.PodcastIDs[0] != "p1" {
		t.Errorf("PodcastIDs = %v", gotQuery.PodcastIDs)
	}
	if len(gotQuery.CategoryIDs) != 1 {
		t.Errorf("CategoryIDs = %v", gotQuery.CategoryIDs)
	}
	if gotQuery.Sort != model.SortMostRecent {
		t.Errorf("Sort = %s", gotQuery.Sort)
	}
	if gotQuery.Skip != 20 || gotQuery.Take != 10 {
		t.Errorf("Skip = %d, Take = %d", gotQuery.Skip, gotQuery.Take)
	}
	if !gotQuery.IncludePodcast || !gotQuery.HasVideo {
		t.Error("booleanパラメータが解析されていません")
	}
	if gotQuery.SincePubDate == nil || gotQuery.SincePubDate.Year() != 2025 {
		t.Errorf("SincePubDate = %v", gotQuery.SincePubDate)
	}
}

// TestListEpisodes_ReturnsEpisodes は一覧レスポンスの形式を検証する。
func TestListEpisodes_ReturnsEpisodes(t *testing.T) {
	pubDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	svc := &mockEpisodeService{
		listFn: func(_ context.Context, _ *model.EpisodeQuery) (*episode.ListResult, error) {
			return &episode.ListResult{
				Episodes: []*model.Episode{
					{
						ID: "e1", PodcastID: "p1", Title: "Episode 1",
						MediaURL: "https://example.com/1.mp3", PubDate: &pubDate,
						Podcast: &model.Podcast{ID: "p1", Title: "Show"},
					},
				},
				Total: 42,
			}, nil
		},
	}

	router := newEpisodeTestRouter(svc, &mockChapterService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/episode", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp episodeListResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if resp.Total != 42 || len(resp.Episodes) != 1 {
		t.Errorf("resp = %+v", resp)
	}
	if resp.Episodes[0].Podcast == nil || resp.Episodes[0].Podcast.Title != "Show" {
		t.Errorf("結合されたポッドキャスト = %+v", resp.Episodes[0].Podcast)
	}
}

// TestListEpisodes_SearchUnavailable は検索エンジン障害で503が返ることを検証する。
func TestListEpisodes_SearchUnavailable(t *testing.T) {
	svc := &mockEpisodeService{
		listFn: func(_ context.Context, _ *model.EpisodeQuery) (*episode.ListResult, error) {
			return nil, model.NewSearchUnavailableError()
		},
	}

	router := newEpisodeTestRouter(svc, &mockChapterService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/episode?searchTitle=x", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

// TestGetEpisode_NotFound は未検出エピソードで404が返ることを検証する。
func TestGetEpisode_NotFound(t *testing.T) {
	router := newEpisodeTestRouter(&mockEpisodeService{}, &mockChapterService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/episode/missing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

// TestGetEpisode_Found はエピソード詳細の取得を検証する。
func TestGetEpisode_Found(t *testing.T) {
	svc := &mockEpisodeService{
		getFn: func(_ context.Context, id string) (*model.Episode, error) {
			return &model.Episode{ID: id, Title: "Found", MediaURL: "https://example.com/1.mp3"}, nil
		},
	}

	router := newEpisodeTestRouter(svc, &mockChapterService{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/episode/e1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp episodeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if resp.ID != "e1" || resp.Title != "Found" {
		t.Errorf("resp = %+v", resp)
	}
}

// TestRetrieveLatestChapters はチャプター一覧の取得を検証する。
func TestRetrieveLatestChapters(t *testing.T) {
	endTime := 120
	chapters := &mockChapterService{
		retrieveFn: func(_ context.Context, episodeID string) ([]*model.MediaRef, error) {
			return []*model.MediaRef{
				{ID: "m1", EpisodeID: episodeID, Title: "Intro", StartTime: 0, EndTime: &endTime},
				{ID: "m2", EpisodeID: episodeID, Title: "Main", StartTime: 120},
			}, nil
		},
	}

	router := newEpisodeTestRouter(&mockEpisodeService{}, chapters)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/episode/e1/retrieve-latest-chapters", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var resp struct {
		Chapters []chapterResponse `json:"chapters"`
		Total    int               `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("レスポンスのデコードに失敗: %v", err)
	}
	if len(resp.Chapters) != 2 || resp.Chapters[0].Title != "Intro" {
		t.Errorf("chapters = %+v", resp.Chapters)
	}
	if resp.Total != 2 {
		t.Errorf("total = %d, want 2", resp.Total)
	}
	if resp.Chapters[0].EndTime == nil || *resp.Chapters[0].EndTime != 120 {
		t.Errorf("EndTime = %v", resp.Chapters[0].EndTime)
	}
}

// TestSplitIDParam はカンマ区切りIDの分解を検証する。
func TestSplitIDParam(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"a,b,c", 3},
		{"a, b , c", 3},
		{",,", 0},
	}

	for _, tt := range tests {
		if got := splitIDParam(tt.raw); len(got) != tt.want {
			t.Errorf("splitIDParam(%q) = %v, want %d件", tt.raw, got, tt.want)
		}
	}
}
