// Package cleanup は不要エピソードの自動削除ジョブを提供する。
// 非公開かつメディア参照を一つも持たないエピソードを定期バッチで削除する。
// チャプターやクリップが残っているエピソードは非公開でも削除しない。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Trolladactyl/podverse-api/internal/metrics"
	"github.com/Trolladactyl/podverse-api/internal/repository"
)

// CleanupJob は不要エピソードの自動削除ジョブ。
// 定期実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	episodes repository.EpisodeRepository
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(
	episodes repository.EpisodeRepository,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *CleanupJob {
	return &CleanupJob{
		episodes: episodes,
		metrics:  collector,
		logger:   logger,
	}
}

// Run は非公開かつメディア参照のないエピソードを削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.episodes.DeleteDead(ctx)
	if err != nil {
		j.logger.Error("エピソードクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("エピソードクリーンアップの実行に失敗しました: %w", err)
	}

	j.metrics.RecordEpisodesDeleted(int(deletedCount))

	duration := time.Since(start)
	j.logger.Info("エピソードクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は指定間隔のティッカーでクリーンアップジョブを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("クリーンアップジョブの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
