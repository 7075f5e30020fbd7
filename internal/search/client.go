// Package search は外部検索エンジン（Manticore互換のHTTP JSON API）との連携を提供する。
// タイトル検索のヒットID列とランク順はここで取得し、行の実体はリレーショナル層が持つ。
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const (
	// indexEpisodes はエピソードの検索インデックス名。
	indexEpisodes = "idx_episode"
	// indexPodcasts はポッドキャストの検索インデックス名。
	indexPodcasts = "idx_podcast"
)

// Client は検索エンジンのHTTP JSON APIクライアント。
// ヒットのID列（ランク降順）と総ヒット数のみを返す。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // テスト用にベースURLを差し替え可能
}

// NewClient はClient の新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    baseURL,
	}
}

// searchRequest は検索エンジンへのリクエストボディ。
type searchRequest struct {
	Index  string      `json:"index"`
	Query  searchQuery `json:"query"`
	Limit  int         `json:"limit"`
	Offset int         `json:"offset"`
}

type searchQuery struct {
	Match map[string]string `json:"match"`
}

// searchResponse は検索エンジンからのレスポンスボディ。
type searchResponse struct {
	Hits struct {
		Total int `json:"total"`
		Hits  []struct {
			ID string `json:"_id"`
		} `json:"hits"`
	} `json:"hits"`
}

// SearchEpisodes はエピソードインデックスをタイトルで検索する。
// ランク降順のエピソードID列と総ヒット数を返す。skip/takeは検索エンジン側で適用される。
func (c *Client) SearchEpisodes(ctx context.Context, query string, skip, take int) ([]string, int, error) {
	return c.search(ctx, indexEpisodes, query, skip, take)
}

// SearchPodcasts はポッドキャストインデックスをタイトルで検索する。
func (c *Client) SearchPodcasts(ctx context.Context, query string, skip, take int) ([]string, int, error) {
	return c.search(ctx, indexPodcasts, query, skip, take)
}

func (c *Client) search(ctx context.Context, index, query string, skip, take int) ([]string, int, error) {
	reqBody := searchRequest{
		Index:  index,
		Query:  searchQuery{Match: map[string]string{"title": query}},
		Limit:  take,
		Offset: skip,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, 0, fmt.Errorf("検索リクエストのエンコードに失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("検索エンジンの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("index", index),
		)
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("検索エンジンがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("index", index),
		)
		return nil, 0, fmt.Errorf("検索エンジンがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Error("検索エンジンのレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, 0, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	ids := make([]string, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		ids = append(ids, hit.ID)
	}

	return ids, result.Hits.Total, nil
}
