package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Trolladactyl/podverse-api/internal/middleware"
	"github.com/Trolladactyl/podverse-api/internal/model"
	"github.com/Trolladactyl/podverse-api/internal/podcast"
)

// PodcastServiceInterface はポッドキャストハンドラーが必要とするサービスインターフェース。
type PodcastServiceInterface interface {
	// List はポッドキャスト一覧をクエリ条件に応じた経路で取得する。
	List(ctx context.Context, q *model.PodcastQuery) (*podcast.ListResult, error)
	// GetPodcast はポッドキャスト詳細を公開状態の検証付きで取得する。
	GetPodcast(ctx context.Context, id string) (*model.Podcast, error)
	// GetMetadata は指定ID群のポッドキャストの軽量メタデータを返す。
	GetMetadata(ctx context.Context, ids []string) ([]*model.Podcast, error)
}

// PodcastHandler はポッドキャストカタログのHTTPハンドラー。
type PodcastHandler struct {
	service PodcastServiceInterface
}

// NewPodcastHandler はPodcastHandlerを生成する。
func NewPodcastHandler(service PodcastServiceInterface) *PodcastHandler {
	return &PodcastHandler{service: service}
}

// --- レスポンス型 ---

// categoryResponse はカテゴリのレスポンス。
type categoryResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// podcastResponse はポッドキャストのレスポンス。
type podcastResponse struct {
	ID                 string             `json:"id"`
	Title              string             `json:"title"`
	Description        string             `json:"description,omitempty"`
	ImageURL           string             `json:"image_url,omitempty"`
	LinkURL            string             `json:"link_url,omitempty"`
	HasVideo           bool               `json:"has_video"`
	Medium             string             `json:"medium,omitempty"`
	LastEpisodeTitle   string             `json:"last_episode_title,omitempty"`
	LastEpisodePubDate *time.Time         `json:"last_episode_pub_date,omitempty"`
	AuthorityFeedURL   string             `json:"authority_feed_url,omitempty"`
	Categories         []categoryResponse `json:"categories,omitempty"`
}

// podcastListResponse はポッドキャスト一覧のレスポンス。
type podcastListResponse struct {
	Podcasts []podcastResponse `json:"podcasts"`
	Total    int               `json:"total"`
}

// podcastMetadataResponse はメタデータ取得の軽量レスポンス。
type podcastMetadataResponse struct {
	ID                 string     `json:"id"`
	Title              string     `json:"title"`
	LastEpisodeTitle   string     `json:"last_episode_title,omitempty"`
	LastEpisodePubDate *time.Time `json:"last_episode_pub_date,omitempty"`
}

func toPodcastResponse(p *model.Podcast) podcastResponse {
	resp := podcastResponse{
		ID:                 p.ID,
		Title:              p.Title,
		Description:        p.Description,
		ImageURL:           p.ImageURL,
		LinkURL:            p.LinkURL,
		HasVideo:           p.HasVideo,
		Medium:             p.Medium,
		LastEpisodeTitle:   p.LastEpisodeTitle,
		LastEpisodePubDate: p.LastEpisodePubDate,
		AuthorityFeedURL:   p.AuthorityFeedURL,
	}
	for _, c := range p.Categories {
		resp.Categories = append(resp.Categories, categoryResponse{ID: c.ID, Title: c.Title})
	}
	return resp
}

// ListPodcasts はポッドキャスト一覧を取得する。
// GET /api/v1/podcast?searchTitle=&podcastId=&categoryId=&sort=&skip=&take=
func (h *PodcastHandler) ListPodcasts(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()

	q := &model.PodcastQuery{
		SearchTitle:  values.Get("searchTitle"),
		SearchAuthor: values.Get("searchAuthor"),
		HasVideo:     values.Get("hasVideo") == "true",
		PodcastIDs:   splitIDParam(values.Get("podcastId")),
		CategoryIDs:  splitIDParam(values.Get("categoryId")),
		Sort:         model.SortKey(values.Get("sort")),
		Skip:         parseIntParam(values.Get("skip")),
		Take:         parseIntParam(values.Get("take")),
	}

	result, err := h.service.List(r.Context(), q)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	resp := podcastListResponse{
		Podcasts: make([]podcastResponse, 0, len(result.Podcasts)),
		Total:    result.Total,
	}
	for _, p := range result.Podcasts {
		resp.Podcasts = append(resp.Podcasts, toPodcastResponse(p))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// GetPodcast はポッドキャスト詳細を取得する。
// GET /api/v1/podcast/{id}
func (h *PodcastHandler) GetPodcast(w http.ResponseWriter, r *http.Request) {
	podcastID := chi.URLParam(r, "id")

	p, err := h.service.GetPodcast(r.Context(), podcastID)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPodcastResponse(p))
}

// GetMetadata は指定ID群のポッドキャストの軽量メタデータを取得する。
// クライアントの購読リスト更新チェック用で、ID数には上限がある。
// GET /api/v1/podcast/metadata?podcastId=p1,p2
func (h *PodcastHandler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	ids := splitIDParam(r.URL.Query().Get("podcastId"))
	if len(ids) == 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "podcastIdパラメータが指定されていません。",
			Category: "validation",
			Action:   "podcastIdにカンマ区切りのIDを指定してください。",
		})
		return
	}

	podcasts, err := h.service.GetMetadata(r.Context(), ids)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	resp := make([]podcastMetadataResponse, 0, len(podcasts))
	for _, p := range podcasts {
		resp = append(resp, podcastMetadataResponse{
			ID:                 p.ID,
			Title:              p.Title,
			LastEpisodeTitle:   p.LastEpisodeTitle,
			LastEpisodePubDate: p.LastEpisodePubDate,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"podcasts": resp})
}
