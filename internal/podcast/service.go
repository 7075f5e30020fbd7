// Package podcast はポッドキャストカタログの照会を提供する。
package podcast

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Trolladactyl/podverse-api/internal/metrics"
	"github.com/Trolladactyl/podverse-api/internal/model"
	"github.com/Trolladactyl/podverse-api/internal/repository"
)

// maxMetadataIDs はメタデータ一括取得の1リクエストあたりの最大ID数。
const maxMetadataIDs = 500

// Searcher は外部検索エンジンへの問い合わせインターフェース。
type Searcher interface {
	SearchPodcasts(ctx context.Context, query string, skip, take int) ([]string, int, error)
}

// CountStrategy は一覧クエリの総数の算出戦略を表す。
type CountStrategy int

const (
	// CountApproximate は総数を固定の近似値で返す戦略。
	// カテゴリ全体や無制限スコープのCOUNTは実行しない。
	CountApproximate CountStrategy = iota
	// CountExact は総数を正確に数える戦略。
	CountExact
)

// approximateTotal は近似戦略で返す総数の固定値。
const approximateTotal = 10000

// selectCountStrategy は件数戦略を決定する。
// 明示的なポッドキャストID集合で範囲が限定されている場合のみ正確に数える。
// 判定箇所はここに集約する。
func selectCountStrategy(q *model.PodcastQuery) CountStrategy {
	if len(q.PodcastIDs) > 0 {
		return CountExact
	}
	return CountApproximate
}

// ListResult はポッドキャスト一覧の取得結果を表す。
type ListResult struct {
	Podcasts []*model.Podcast
	Total    int
}

// Service はポッドキャストカタログの照会サービス。
type Service struct {
	podcasts repository.PodcastRepository
	searcher Searcher
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(podcasts repository.PodcastRepository, searcher Searcher, collector metrics.MetricsCollector, logger *slog.Logger) *Service {
	return &Service{
		podcasts: podcasts,
		searcher: searcher,
		metrics:  collector,
		logger:   logger,
	}
}

// List はクエリ条件に応じてポッドキャスト一覧を取得する。
// searchTitle指定時は検索エンジン経由になり、外部ランク順が維持される。
func (s *Service) List(ctx context.Context, q *model.PodcastQuery) (*ListResult, error) {
	q.Take = model.NormalizeTake(q.Take)
	if q.Skip < 0 {
		q.Skip = 0
	}

	if q.SearchTitle != "" {
		return s.listViaSearch(ctx, q)
	}

	podcasts, err := s.podcasts.ListFiltered(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("ポッドキャスト一覧の取得に失敗しました: %w", err)
	}

	total := approximateTotal
	if selectCountStrategy(q) == CountExact {
		total, err = s.podcasts.CountFiltered(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("ポッドキャスト総数の取得に失敗しました: %w", err)
		}
	}

	return &ListResult{Podcasts: podcasts, Total: total}, nil
}

func (s *Service) listViaSearch(ctx context.Context, q *model.PodcastQuery) (*ListResult, error) {
	if err := model.ValidateSearchText(q.SearchTitle); err != nil {
		return nil, err
	}

	ids, total, err := s.searcher.SearchPodcasts(ctx, q.SearchTitle, q.Skip, q.Take)
	s.metrics.RecordSearchRequest(err == nil)
	if err != nil {
		s.logger.Error("検索エンジンへの問い合わせに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.NewSearchUnavailableError()
	}

	if len(ids) == 0 {
		return &ListResult{Total: total}, nil
	}

	podcasts, err := s.podcasts.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("検索ヒットの取得に失敗しました: %w", err)
	}

	return &ListResult{Podcasts: mergeByExternalRank(podcasts, ids), Total: total}, nil
}

// mergeByExternalRank はリレーショナル層から取得した行を外部ランク順に並べ替える。
// ランクにない行は元の相対順を保って末尾に置く。
func mergeByExternalRank(podcasts []*model.Podcast, rankedIDs []string) []*model.Podcast {
	if len(rankedIDs) == 0 || len(podcasts) == 0 {
		return podcasts
	}

	byID := make(map[string]*model.Podcast, len(podcasts))
	for _, p := range podcasts {
		byID[p.ID] = p
	}

	merged := make([]*model.Podcast, 0, len(podcasts))
	seen := make(map[string]bool, len(rankedIDs))
	for _, id := range rankedIDs {
		if p, ok := byID[id]; ok && !seen[id] {
			merged = append(merged, p)
			seen[id] = true
		}
	}
	for _, p := range podcasts {
		if !seen[p.ID] {
			merged = append(merged, p)
		}
	}

	return merged
}

// GetPodcast は指定IDの公開ポッドキャストを取得する。
// 非公開ポッドキャストは未検出として扱う。
func (s *Service) GetPodcast(ctx context.Context, id string) (*model.Podcast, error) {
	podcast, err := s.podcasts.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ポッドキャストの取得に失敗しました: %w", err)
	}
	if podcast == nil || !podcast.IsPublic {
		return nil, model.NewPodcastNotFoundError(id)
	}
	return podcast, nil
}

// GetMetadata は指定ID群の公開ポッドキャストを一括取得する。
// ID数が上限を超えた場合は先頭から上限件数まで処理する。
func (s *Service) GetMetadata(ctx context.Context, ids []string) ([]*model.Podcast, error) {
	if len(ids) > maxMetadataIDs {
		ids = ids[:maxMetadataIDs]
	}

	podcasts, err := s.podcasts.ListByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("ポッドキャストメタデータの取得に失敗しました: %w", err)
	}
	return podcasts, nil
}
