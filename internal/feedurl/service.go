package feedurl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Trolladactyl/podverse-api/internal/model"
	"github.com/Trolladactyl/podverse-api/internal/repository"
	"github.com/Trolladactyl/podverse-api/internal/security"
)

// maxResolveURLs はフィードURL一括解決の1リクエストあたりの最大URL数。
const maxResolveURLs = 2000

// FoundFeedUrl は解決に成功したフィードURLとポッドキャストの対応を表す。
type FoundFeedUrl struct {
	URL         string
	PodcastID   string
	IsAuthority bool
}

// ResolveResult はフィードURL一括解決の結果を表す。
type ResolveResult struct {
	Found    []FoundFeedUrl
	NotFound []string
}

// Service はフィードURLの解決サービス。
type Service struct {
	feedURLs   repository.FeedUrlRepository
	detector   *Detector
	ssrfGuard  security.SSRFGuardService
	httpClient *http.Client
	maxSize    int64
	logger     *slog.Logger
}

// NewService はServiceを生成する。httpClientにはSSRF防止付きのものを渡すこと。
func NewService(
	feedURLs repository.FeedUrlRepository,
	detector *Detector,
	ssrfGuard security.SSRFGuardService,
	httpClient *http.Client,
	maxSize int64,
	logger *slog.Logger,
) *Service {
	return &Service{
		feedURLs:   feedURLs,
		detector:   detector,
		ssrfGuard:  ssrfGuard,
		httpClient: httpClient,
		maxSize:    maxSize,
		logger:     logger,
	}
}

// FindPodcastsByFeedURLs は登録済みフィードURLからポッドキャストを一括で引き当てる。
// URL数が上限を超えた場合は先頭から上限件数まで処理する。
// 結果は入力順を保ち、未登録URLはNotFoundに入る。
func (s *Service) FindPodcastsByFeedURLs(ctx context.Context, urls []string) (*ResolveResult, error) {
	if len(urls) > maxResolveURLs {
		urls = urls[:maxResolveURLs]
	}

	feedURLs, err := s.feedURLs.FindByURLs(ctx, urls)
	if err != nil {
		return nil, fmt.Errorf("フィードURLの引き当てに失敗しました: %w", err)
	}

	byURL := make(map[string]*model.FeedUrl, len(feedURLs))
	for _, f := range feedURLs {
		byURL[f.URL] = f
	}

	result := &ResolveResult{}
	for _, u := range urls {
		f, ok := byURL[u]
		if !ok || f.PodcastID == "" {
			result.NotFound = append(result.NotFound, u)
			continue
		}
		result.Found = append(result.Found, FoundFeedUrl{
			URL:         f.URL,
			PodcastID:   f.PodcastID,
			IsAuthority: f.IsAuthority,
		})
	}

	return result, nil
}

// DiscoverFeedURL は任意のURLからフィードURLを検出する。
// URLがフィードそのものの場合はそのURLを単独候補として返し、
// HTMLページの場合は<head>のフィードリンクを候補として返す。
func (s *Service) DiscoverFeedURL(ctx context.Context, rawURL string) ([]FeedCandidate, error) {
	if err := s.ssrfGuard.ValidateURL(rawURL); err != nil {
		if errors.Is(err, security.ErrBlockedURL) {
			return nil, model.NewSSRFBlockedError()
		}
		return nil, model.NewInvalidURLError(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, model.NewInvalidURLError(err.Error())
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("フィード検出のためのページ取得に失敗しました",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("ページの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ページがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if s.detector.IsDirectFeed(contentType, body) {
		return []FeedCandidate{{URL: rawURL}}, nil
	}

	return s.detector.ParseFeedLinksFromHTML(body, rawURL), nil
}
