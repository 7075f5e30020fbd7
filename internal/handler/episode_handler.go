// Package handler はHTTP APIハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Trolladactyl/podverse-api/internal/episode"
	"github.com/Trolladactyl/podverse-api/internal/middleware"
	"github.com/Trolladactyl/podverse-api/internal/model"
)

// EpisodeServiceInterface はエピソードハンドラーが必要とするサービスインターフェース。
type EpisodeServiceInterface interface {
	// List はエピソード一覧をクエリ条件に応じた経路で取得する。
	List(ctx context.Context, q *model.EpisodeQuery) (*episode.ListResult, error)
	// GetEpisode はエピソード詳細を公開状態の検証付きで取得する。
	GetEpisode(ctx context.Context, id string) (*model.Episode, error)
}

// ChapterServiceInterface はチャプター取得サービスのインターフェース。
type ChapterServiceInterface interface {
	// RetrieveLatestChapters は保存済みチャプターを返し、必要なら
	// バックグラウンドで再調整を開始する。
	RetrieveLatestChapters(ctx context.Context, episodeID string) ([]*model.MediaRef, error)
}

// EpisodeHandler はエピソードカタログのHTTPハンドラー。
type EpisodeHandler struct {
	service  EpisodeServiceInterface
	chapters ChapterServiceInterface
}

// NewEpisodeHandler はEpisodeHandlerを生成する。
func NewEpisodeHandler(service EpisodeServiceInterface, chapters ChapterServiceInterface) *EpisodeHandler {
	return &EpisodeHandler{
		service:  service,
		chapters: chapters,
	}
}

// --- レスポンス型 ---

// podcastSummaryResponse はエピソードに結合されるポッドキャスト情報。
type podcastSummaryResponse struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ImageURL string `json:"image_url,omitempty"`
	LinkURL  string `json:"link_url,omitempty"`
}

// episodeResponse はエピソードのレスポンス。
type episodeResponse struct {
	ID          string                  `json:"id"`
	PodcastID   string                  `json:"podcast_id"`
	Title       string                  `json:"title"`
	Description string                  `json:"description,omitempty"`
	MediaURL    string                  `json:"media_url"`
	MediaType   string                  `json:"media_type,omitempty"`
	Duration    int                     `json:"duration,omitempty"`
	ImageURL    string                  `json:"image_url,omitempty"`
	LinkURL     string                  `json:"link_url,omitempty"`
	PubDate     *time.Time              `json:"pub_date,omitempty"`
	Podcast     *podcastSummaryResponse `json:"podcast,omitempty"`
}

// episodeListResponse はエピソード一覧のレスポンス。
type episodeListResponse struct {
	Episodes []episodeResponse `json:"episodes"`
	Total    int               `json:"total"`
}

// chapterResponse はチャプターのレスポンス。
type chapterResponse struct {
	ID        string `json:"id"`
	EpisodeID string `json:"episode_id"`
	Title     string `json:"title"`
	StartTime int    `json:"start_time"`
	EndTime   *int   `json:"end_time,omitempty"`
	ImageURL  string `json:"image_url,omitempty"`
	LinkURL   string `json:"link_url,omitempty"`
}

func toEpisodeResponse(e *model.Episode) episodeResponse {
	resp := episodeResponse{
		ID:          e.ID,
		PodcastID:   e.PodcastID,
		Title:       e.Title,
		Description: e.Description,
		MediaURL:    e.MediaURL,
		MediaType:   e.MediaType,
		Duration:    e.Duration,
		ImageURL:    e.ImageURL,
		LinkURL:     e.LinkURL,
		PubDate:     e.PubDate,
	}
	if e.Podcast != nil {
		resp.Podcast = &podcastSummaryResponse{
			ID:       e.Podcast.ID,
			Title:    e.Podcast.Title,
			ImageURL: e.Podcast.ImageURL,
			LinkURL:  e.Podcast.LinkURL,
		}
	}
	return resp
}

// ListEpisodes はエピソード一覧を取得する。
// GET /api/v1/episode?searchTitle=&podcastId=&categoryId=&episodeId=&sort=&skip=&take=
func (h *EpisodeHandler) ListEpisodes(w http.ResponseWriter, r *http.Request) {
	q := parseEpisodeQuery(r)

	result, err := h.service.List(r.Context(), q)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	resp := episodeListResponse{
		Episodes: make([]episodeResponse, 0, len(result.Episodes)),
		Total:    result.Total,
	}
	for _, e := range result.Episodes {
		resp.Episodes = append(resp.Episodes, toEpisodeResponse(e))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetEpisode はエピソード詳細を取得する。
// GET /api/v1/episode/{id}
func (h *EpisodeHandler) GetEpisode(w http.ResponseWriter, r *http.Request) {
	episodeID := chi.URLParam(r, "id")

	e, err := h.service.GetEpisode(r.Context(), episodeID)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toEpisodeResponse(e))
}

// RetrieveLatestChapters はエピソードのチャプター一覧を取得する。
// 必要に応じてバックグラウンドの再調整が開始されるが、レスポンスは
// 常に保存済みのチャプターを返す。
// GET /api/v1/episode/{id}/retrieve-latest-chapters
func (h *EpisodeHandler) RetrieveLatestChapters(w http.ResponseWriter, r *http.Request) {
	episodeID := chi.URLParam(r, "id")

	refs, err := h.chapters.RetrieveLatestChapters(r.Context(), episodeID)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	resp := make([]chapterResponse, 0, len(refs))
	for _, ref := range refs {
		resp = append(resp, chapterResponse{
			ID:        ref.ID,
			EpisodeID: ref.EpisodeID,
			Title:     ref.Title,
			StartTime: ref.StartTime,
			EndTime:   ref.EndTime,
			ImageURL:  ref.ImageURL,
			LinkURL:   ref.LinkURL,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"chapters": resp,
		"total":    len(resp),
	})
}

// parseEpisodeQuery はクエリパラメータをEpisodeQueryへ正規化する。
// 不正な数値や日付は黙って無視し、デフォルト値を適用する。
func parseEpisodeQuery(r *http.Request) *model.EpisodeQuery {
	values := r.URL.Query()

	q := &model.EpisodeQuery{
		SearchTitle:    values.Get("searchTitle"),
		EpisodeIDs:     splitIDParam(values.Get("episodeId")),
		PodcastIDs:     splitIDParam(values.Get("podcastId")),
		CategoryIDs:    splitIDParam(values.Get("categoryId")),
		HasVideo:       values.Get("hasVideo") == "true",
		IncludePodcast: values.Get("includePodcast") == "true",
		Sort:           model.SortKey(values.Get("sort")),
		Skip:           parseIntParam(values.Get("skip")),
		Take:           parseIntParam(values.Get("take")),
	}

	if since := values.Get("sincePubDate"); since != "" {
		if t, err := time.Parse(time.RFC3339, since); err == nil {
			q.SincePubDate = &t
		}
	}

	return q
}

// splitIDParam はカンマ区切りのIDパラメータを分解する。空要素は除外する。
func splitIDParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return ids
}

// parseIntParam は非負整数パラメータを解析する。不正な値は0を返す。
func parseIntParam(raw string) int {
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
