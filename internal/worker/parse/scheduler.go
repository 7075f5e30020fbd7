// Package parse はフィードのバックグラウンド取り込み処理を提供する。
// スケジューラ、フェッチャー、エピソードのUPSERTサービスを含む。
package parse

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Trolladactyl/podverse-api/internal/model"
	"github.com/Trolladactyl/podverse-api/internal/repository"
)

// FeedFetcherService はフィードフェッチの実行インターフェース。
type FeedFetcherService interface {
	// Fetch は指定フィードURLをフェッチし、結果に応じて取得状態を更新する。
	Fetch(ctx context.Context, feedURL *model.FeedUrl) error
}

// Scheduler はフィードフェッチのスケジューリングと並列制御を行う。
// 一定間隔のティッカーでオーソリティフィードURLを取得し、
// semaphoreパターンで最大並列数を制御しながらフェッチを実行する。
type Scheduler struct {
	feedURLs       repository.FeedUrlRepository
	fetcher        FeedFetcherService
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10を使用する。
func NewScheduler(
	feedURLs repository.FeedUrlRepository,
	fetcher FeedFetcherService,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Scheduler{
		feedURLs:       feedURLs,
		fetcher:        fetcher,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("フィード取り込みスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("取り込みサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("フィード取り込みスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("取り込みサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce はオーソリティフィードURLを1回取得し、並列でフェッチを実行する。
// semaphoreパターンで最大並列数を制御する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	feedURLs, err := s.feedURLs.ListAuthority(ctx)
	if err != nil {
		return err
	}

	if len(feedURLs) == 0 {
		s.logger.Info("取り込み対象のフィードURLはありません")
		return nil
	}

	s.logger.Info("取り込みサイクルを開始します",
		slog.Int("feed_url_count", len(feedURLs)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, feedURL := range feedURLs {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(fu *model.FeedUrl) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if err := s.fetcher.Fetch(ctx, fu); err != nil {
				s.logger.Error("フィードフェッチに失敗しました",
					slog.String("feed_url_id", fu.ID),
					slog.String("url", fu.URL),
					slog.String("error", err.Error()),
				)
			}
		}(feedURL)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("取り込みサイクルが完了しました",
		slog.Int("feed_url_count", len(feedURLs)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
