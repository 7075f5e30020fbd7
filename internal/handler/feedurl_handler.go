package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Trolladactyl/podverse-api/internal/feedurl"
	"github.com/Trolladactyl/podverse-api/internal/middleware"
	"github.com/Trolladactyl/podverse-api/internal/model"
)

// FeedUrlServiceInterface はフィードURLハンドラーが必要とするサービスインターフェース。
type FeedUrlServiceInterface interface {
	// FindPodcastsByFeedURLs は登録済みフィードURLからポッドキャストを一括で引き当てる。
	FindPodcastsByFeedURLs(ctx context.Context, urls []string) (*feedurl.ResolveResult, error)
	// DiscoverFeedURL は任意のURLからフィードURL候補を検出する。
	DiscoverFeedURL(ctx context.Context, rawURL string) ([]feedurl.FeedCandidate, error)
}

// FeedUrlHandler はフィードURL解決のHTTPハンドラー。
type FeedUrlHandler struct {
	service FeedUrlServiceInterface
}

// NewFeedUrlHandler はFeedUrlHandlerを生成する。
func NewFeedUrlHandler(service FeedUrlServiceInterface) *FeedUrlHandler {
	return &FeedUrlHandler{service: service}
}

// --- リクエスト/レスポンス型 ---

// resolveRequest はフィードURL一括解決リクエストのボディ。
type resolveRequest struct {
	URLs []string `json:"urls"`
}

// foundFeedUrlResponse は解決済みフィードURLのレスポンス。
type foundFeedUrlResponse struct {
	URL         string `json:"url"`
	PodcastID   string `json:"podcast_id"`
	IsAuthority bool   `json:"is_authority"`
}

// resolveResponse はフィードURL一括解決のレスポンス。
type resolveResponse struct {
	Found    []foundFeedUrlResponse `json:"found"`
	NotFound []string               `json:"not_found"`
}

// discoverRequest はフィードURL検出リクエストのボディ。
type discoverRequest struct {
	URL string `json:"url"`
}

// feedCandidateResponse は検出されたフィード候補のレスポンス。
type feedCandidateResponse struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// ResolveFeedURLs は登録済みフィードURLからポッドキャストを一括で引き当てる。
// POST /api/v1/feed-url/resolve
func (h *FeedUrlHandler) ResolveFeedURLs(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	result, err := h.service.FindPodcastsByFeedURLs(r.Context(), req.URLs)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	resp := resolveResponse{
		Found:    make([]foundFeedUrlResponse, 0, len(result.Found)),
		NotFound: result.NotFound,
	}
	if resp.NotFound == nil {
		resp.NotFound = []string{}
	}
	for _, f := range result.Found {
		resp.Found = append(resp.Found, foundFeedUrlResponse{
			URL:         f.URL,
			PodcastID:   f.PodcastID,
			IsAuthority: f.IsAuthority,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// DiscoverFeedURL は任意のURLからフィードURL候補を検出する。
// POST /api/v1/feed-url/discover
func (h *FeedUrlHandler) DiscoverFeedURL(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "urlフィールドを含むJSONボディが必要です。",
			Category: "validation",
			Action:   "検出対象のURLを指定してください。",
		})
		return
	}

	candidates, err := h.service.DiscoverFeedURL(r.Context(), req.URL)
	if err != nil {
		middleware.WriteServiceError(w, err)
		return
	}

	resp := make([]feedCandidateResponse, 0, len(candidates))
	for _, c := range candidates {
		resp = append(resp, feedCandidateResponse{URL: c.URL, Title: c.Title})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"candidates": resp})
}
