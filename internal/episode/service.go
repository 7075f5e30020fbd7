package episode

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Trolladactyl/podverse-api/internal/metrics"
	"github.com/Trolladactyl/podverse-api/internal/model"
	"github.com/Trolladactyl/podverse-api/internal/repository"
)

// Searcher は外部検索エンジンへの問い合わせインターフェース。
// ランク降順のエピソードID列と総ヒット数を返す。
type Searcher interface {
	SearchEpisodes(ctx context.Context, query string, skip, take int) ([]string, int, error)
}

// ListResult はエピソード一覧の取得結果を表す。
// Totalは件数戦略によって正確値または固定の近似値になる。
type ListResult struct {
	Episodes []*model.Episode
	Total    int
}

// Service はエピソードカタログの照会サービス。
type Service struct {
	episodes repository.EpisodeRepository
	recents  repository.RecentEpisodeRepository
	searcher Searcher
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(
	episodes repository.EpisodeRepository,
	recents repository.RecentEpisodeRepository,
	searcher Searcher,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		episodes: episodes,
		recents:  recents,
		searcher: searcher,
		metrics:  collector,
		logger:   logger,
	}
}

// List はクエリ条件に応じた実行経路でエピソード一覧を取得する。
// 実行経路の選択順:
//  1. searchTitle指定 → 検索エンジン経由
//  2. 最新順 + カテゴリ/ポッドキャスト絞り込み + 動画制限なし → 新着索引
//  3. 明示的なID集合あり → リレーショナル（正確な総数）
//  4. それ以外 → リレーショナル（近似の総数）
func (s *Service) List(ctx context.Context, q *model.EpisodeQuery) (*ListResult, error) {
	q.Take = model.NormalizeTake(q.Take)
	if q.Skip < 0 {
		q.Skip = 0
	}

	route := selectRoute(q)
	start := time.Now()
	defer func() {
		s.metrics.RecordEpisodeList(string(route), time.Since(start))
	}()

	switch route {
	case RouteSearch:
		return s.listViaSearch(ctx, q)
	case RouteFastPath:
		return s.listViaRecentIndex(ctx, q)
	default:
		return s.listRelational(ctx, q)
	}
}

// listViaSearch は検索エンジンでヒットIDを取得し、行の実体をリレーショナル層から
// 補完する。skip/takeは検索エンジン側で適用済みのため、行の取得はID指定のみで行う。
// 検索エンジンの障害時は部分的な結果を返さずエラーを返す。
func (s *Service) listViaSearch(ctx context.Context, q *model.EpisodeQuery) (*ListResult, error) {
	if err := model.ValidateSearchText(q.SearchTitle); err != nil {
		return nil, err
	}

	ids, total, err := s.searcher.SearchEpisodes(ctx, q.SearchTitle, q.Skip, q.Take)
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

	var episodes []*model.Episode
	if q.Sort == model.SortUnspecified {
		// ソート未指定の場合は外部ランク順を維持する
		episodes, err = s.episodes.ListByIDs(ctx, ids, q.IncludePodcast)
		if err != nil {
			return nil, fmt.Errorf("検索ヒットの取得に失敗しました: %w", err)
		}
		episodes = mergeByExternalRank(episodes, ids)
	} else {
		// 明示的なソート指定はリレーショナル層の並び替えを優先する
		sub := &model.EpisodeQuery{
			EpisodeIDs:     ids,
			Sort:           q.Sort,
			IncludePodcast: q.IncludePodcast,
			Take:           len(ids),
		}
		episodes, err = s.episodes.ListFiltered(ctx, sub)
		if err != nil {
			return nil, fmt.Errorf("検索ヒットの取得に失敗しました: %w", err)
		}
	}

	return &ListResult{Episodes: episodes, Total: total}, nil
}

// listViaRecentIndex は非正規化済みの新着索引からエピソードIDを引き、
// 行の実体をリレーショナル層から補完する。索引のpub_date降順を維持する。
func (s *Service) listViaRecentIndex(ctx context.Context, q *model.EpisodeQuery) (*ListResult, error) {
	groupType := model.RecentGroupCategory
	groupIDs := q.CategoryIDs
	if len(q.PodcastIDs) > 0 {
		groupType = model.RecentGroupPodcast
		groupIDs = q.PodcastIDs
	}

	// 索引行は絞り込み済みなので、総数は索引の正確値をそのまま使う
	entries, total, err := s.recents.ListRecent(ctx, groupType, groupIDs, q.Skip, q.Take)
	if err != nil {
		return nil, fmt.Errorf("新着索引の参照に失敗しました: %w", err)
	}

	if len(entries) == 0 {
		return &ListResult{Total: total}, nil
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.EpisodeID)
	}

	episodes, err := s.episodes.ListByIDs(ctx, ids, q.IncludePodcast)
	if err != nil {
		return nil, fmt.Errorf("新着エピソードの取得に失敗しました: %w", err)
	}

	// 索引は本体テーブルより遅延することがあり、欠落IDは結果から落ちるだけで
	// エラーにはしない
	episodes = mergeByExternalRank(episodes, ids)

	return &ListResult{Episodes: episodes, Total: total}, nil
}

// listRelational はリレーショナル層の動的フィルタで一覧を取得する。
// 総数は件数戦略に従い、明示的なID集合がある場合のみ正確に数える。
func (s *Service) listRelational(ctx context.Context, q *model.EpisodeQuery) (*ListResult, error) {
	episodes, err := s.episodes.ListFiltered(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("エピソード一覧の取得に失敗しました: %w", err)
	}

	total := approximateTotal
	if selectCountStrategy(q) == CountExact {
		total, err = s.episodes.CountFiltered(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("エピソード総数の取得に失敗しました: %w", err)
		}
	}

	return &ListResult{Episodes: episodes, Total: total}, nil
}

// GetEpisode は指定IDの公開エピソードを取得する。
// 所属ポッドキャストが非公開の場合は未検出として扱う。
// エピソード本体が非公開の場合は、同一ポッドキャスト内で同じタイトルを持つ
// 公開エピソード（フィード再取り込みでIDが変わった後継）へ振り替える。
func (s *Service) GetEpisode(ctx context.Context, id string) (*model.Episode, error) {
	episode, err := s.episodes.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("エピソードの取得に失敗しました: %w", err)
	}
	if episode == nil || episode.Podcast == nil || !episode.Podcast.IsPublic {
		return nil, model.NewEpisodeNotFoundError(id)
	}
	if episode.IsPublic {
		return episode, nil
	}

	if episode.Title == "" {
		return nil, model.NewEpisodeNotFoundError(id)
	}

	successor, err := s.episodes.FindNewerPublicByPodcastAndTitle(ctx, episode.PodcastID, episode.Title, episode.ID)
	if err != nil {
		return nil, fmt.Errorf("後継エピソードの検索に失敗しました: %w", err)
	}
	if successor == nil {
		return nil, model.NewEpisodeNotFoundError(id)
	}

	return successor, nil
}
