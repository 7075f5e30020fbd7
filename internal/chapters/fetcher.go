package chapters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/Trolladactyl/podverse-api/internal/model"
	"github.com/Trolladactyl/podverse-api/internal/security"
)

// Fetcher は外部チャプターフィード（Podcast Index chapters形式のJSON）を取得・パースする。
// HTTPクライアントにはSSRF防止付きのものを渡すこと。
type Fetcher struct {
	httpClient *http.Client
	sanitizer  security.ContentSanitizerService
	maxSize    int64
}

// NewFetcher はFetcherを生成する。
func NewFetcher(httpClient *http.Client, sanitizer security.ContentSanitizerService, maxSize int64) *Fetcher {
	return &Fetcher{
		httpClient: httpClient,
		sanitizer:  sanitizer,
		maxSize:    maxSize,
	}
}

// chaptersDocument はPodcast Index chapters形式のドキュメント。
type chaptersDocument struct {
	Version  string `json:"version"`
	Chapters []struct {
		StartTime float64 `json:"startTime"`
		Title     string  `json:"title"`
		Img       string  `json:"img"`
		URL       string  `json:"url"`
	} `json:"chapters"`
}

// Fetch はチャプターフィードを取得し、開始時刻昇順のパース結果を返す。
// タイトルはタグ除去サニタイズを通す。開始時刻が負のエントリは捨てる。
func (f *Fetcher) Fetch(ctx context.Context, chaptersURL string) ([]model.ParsedChapter, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, chaptersURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Accept", "application/json+chapters, application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("チャプターフィードの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("チャプターフィードがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxSize))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var doc chaptersDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("チャプターJSONのパースに失敗しました: %w", err)
	}

	parsed := make([]model.ParsedChapter, 0, len(doc.Chapters))
	for _, c := range doc.Chapters {
		if c.StartTime < 0 {
			continue
		}
		parsed = append(parsed, model.ParsedChapter{
			StartTime: c.StartTime,
			Title:     f.sanitizer.SanitizeText(c.Title),
			ImageURL:  c.Img,
			LinkURL:   c.URL,
		})
	}

	sort.Slice(parsed, func(i, j int) bool {
		return parsed[i].StartTime < parsed[j].StartTime
	})

	return parsed, nil
}
