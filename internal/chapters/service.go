package chapters

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Trolladactyl/podverse-api/internal/metrics"
	"github.com/Trolladactyl/podverse-api/internal/model"
	"github.com/Trolladactyl/podverse-api/internal/repository"
)

// reconcileTimeout は切り離した再調整処理1回の全体タイムアウト。
const reconcileTimeout = 2 * time.Minute

// ChapterFetcher は外部チャプターフィードの取得インターフェース。
type ChapterFetcher interface {
	Fetch(ctx context.Context, chaptersURL string) ([]model.ParsedChapter, error)
}

// Service はチャプターの読み取りと再調整のオーケストレーションを提供する。
// 読み取りは常に保存済みの公式・公開チャプターを即座に返し、
// 再取得が必要な場合だけ裏で再調整を走らせる。
type Service struct {
	episodes        repository.EpisodeRepository
	mediaRefs       repository.MediaRefRepository
	fetcher         ChapterFetcher
	applier         *Applier
	refreshInterval time.Duration
	metrics         metrics.MetricsCollector
	logger          *slog.Logger

	// runDetached は再調整を呼び出し元のリクエストから切り離して実行する。
	// テストでは同期実行に差し替える。
	runDetached func(fn func())
}

// NewService はServiceを生成する。
func NewService(
	episodes repository.EpisodeRepository,
	mediaRefs repository.MediaRefRepository,
	fetcher ChapterFetcher,
	applier *Applier,
	refreshInterval time.Duration,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		episodes:        episodes,
		mediaRefs:       mediaRefs,
		fetcher:         fetcher,
		applier:         applier,
		refreshInterval: refreshInterval,
		metrics:         collector,
		logger:          logger,
		runDetached:     func(fn func()) { go fn() },
	}
}

// RetrieveLatestChapters はエピソードの公式・公開チャプターを返す。
// チャプターフィードが未取得または取得から一定時間が経過している場合は、
// 裏で再調整を起動する。再調整の失敗は返却結果に影響しない（ソフト失敗）。
func (s *Service) RetrieveLatestChapters(ctx context.Context, episodeID string) ([]*model.MediaRef, error) {
	state, err := s.episodes.GetChaptersState(ctx, episodeID)
	if err != nil {
		return nil, fmt.Errorf("チャプター状態の取得に失敗しました: %w", err)
	}
	if state == nil {
		return nil, model.NewEpisodeNotFoundError(episodeID)
	}

	if s.needsRefresh(state, time.Now()) {
		s.runDetached(func() {
			detachedCtx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
			defer cancel()
			s.reconcile(detachedCtx, state)
		})
	}

	refs, err := s.mediaRefs.ListOfficialPublicByEpisode(ctx, episodeID)
	if err != nil {
		return nil, fmt.Errorf("チャプター一覧の取得に失敗しました: %w", err)
	}
	return refs, nil
}

// needsRefresh は再調整を起動すべきかを判定する。
// チャプターURLがない場合は起動せず、前回取得から一定時間以内の場合も抑止する。
func (s *Service) needsRefresh(state *model.EpisodeChaptersState, now time.Time) bool {
	if state.ChaptersURL == "" {
		return false
	}
	if state.ChaptersURLLastParsed == nil {
		return true
	}
	return now.Sub(*state.ChaptersURLLastParsed) >= s.refreshInterval
}

// reconcile は外部チャプターフィードを取得し、保存済み集合との差分を適用する。
// 取得時刻はフェッチ前に記録する。これにより同一エピソードへの連続アクセスが
// 取得の多重起動にならない。フェッチやパースの失敗は保存済み集合を変更しない。
func (s *Service) reconcile(ctx context.Context, state *model.EpisodeChaptersState) {
	if err := s.episodes.UpdateChaptersLastParsed(ctx, state.EpisodeID, time.Now()); err != nil {
		s.logger.Warn("チャプター取得時刻の記録に失敗しました",
			slog.String("episode_id", state.EpisodeID),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordChapterReconcile("soft_failure")
		return
	}

	parsed, err := s.fetcher.Fetch(ctx, state.ChaptersURL)
	if err != nil {
		s.logger.Warn("チャプターフィードの取得に失敗しました",
			slog.String("episode_id", state.EpisodeID),
			slog.String("chapters_url", state.ChaptersURL),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordChapterReconcile("soft_failure")
		return
	}

	stored, err := s.mediaRefs.ListOfficialPublicByEpisode(ctx, state.EpisodeID)
	if err != nil {
		s.logger.Warn("保存済みチャプターの取得に失敗しました",
			slog.String("episode_id", state.EpisodeID),
			slog.String("error", err.Error()),
		)
		s.metrics.RecordChapterReconcile("soft_failure")
		return
	}

	diff := diffChapters(stored, parsed)
	if diff.Empty() {
		s.metrics.RecordChapterReconcile("success")
		return
	}

	applied, failed := s.applier.Apply(ctx, state.EpisodeID, diff)
	s.logger.Info("チャプターを再調整しました",
		slog.String("episode_id", state.EpisodeID),
		slog.Int("created", len(diff.Create)),
		slog.Int("updated", len(diff.Update)),
		slog.Int("retired", len(diff.Retire)),
		slog.Int("applied", applied),
		slog.Int("failed", failed),
	)

	if failed > 0 {
		s.metrics.RecordChapterReconcile("soft_failure")
		return
	}
	s.metrics.RecordChapterReconcile("success")
}
