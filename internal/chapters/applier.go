package chapters

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Trolladactyl/podverse-api/internal/metrics"
	"github.com/Trolladactyl/podverse-api/internal/model"
	"github.com/Trolladactyl/podverse-api/internal/repository"
)

// Applier は差分操作を保存層へ適用する。
// 公式チャプターの書き込みはすべてシステムアクター（superUserID）に帰属する。
type Applier struct {
	mediaRefs   repository.MediaRefRepository
	superUserID string
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
}

// NewApplier はApplierを生成する。
func NewApplier(mediaRefs repository.MediaRefRepository, superUserID string, collector metrics.MetricsCollector, logger *slog.Logger) *Applier {
	return &Applier{
		mediaRefs:   mediaRefs,
		superUserID: superUserID,
		metrics:     collector,
		logger:      logger,
	}
}

// Apply は差分操作を1件ずつ適用し、適用数と失敗数を返す。
// 個別の失敗はログに記録して処理を継続する（1件の不正が全体を壊さない）。
// 廃止は削除ではなく非公開化で行い、履歴と参照の整合を保つ。
func (a *Applier) Apply(ctx context.Context, episodeID string, diff Diff) (applied, failed int) {
	now := time.Now()

	for _, chapter := range diff.Create {
		ref := &model.MediaRef{
			ID:                uuid.NewString(),
			EpisodeID:         episodeID,
			OwnerID:           a.superUserID,
			Title:             chapter.Title,
			StartTime:         roundStartTime(chapter.StartTime),
			IsPublic:          true,
			IsOfficialChapter: true,
			ImageURL:          chapter.ImageURL,
			LinkURL:           chapter.LinkURL,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := a.mediaRefs.Create(ctx, ref); err != nil {
			a.logger.Warn("チャプターの作成に失敗しました",
				slog.String("episode_id", episodeID),
				slog.Int("start_time", ref.StartTime),
				slog.String("error", err.Error()),
			)
			failed++
			continue
		}
		a.metrics.RecordChapterOp("created")
		applied++
	}

	for _, op := range diff.Update {
		ref := op.Stored
		ref.Title = op.Parsed.Title
		ref.ImageURL = op.Parsed.ImageURL
		ref.LinkURL = op.Parsed.LinkURL
		ref.UpdatedAt = now
		if err := a.mediaRefs.Update(ctx, ref); err != nil {
			a.logger.Warn("チャプターの更新に失敗しました",
				slog.String("episode_id", episodeID),
				slog.String("media_ref_id", ref.ID),
				slog.String("error", err.Error()),
			)
			failed++
			continue
		}
		a.metrics.RecordChapterOp("updated")
		applied++
	}

	for _, ref := range diff.Retire {
		if err := a.mediaRefs.SetPublic(ctx, ref.ID, false); err != nil {
			a.logger.Warn("チャプターの非公開化に失敗しました",
				slog.String("episode_id", episodeID),
				slog.String("media_ref_id", ref.ID),
				slog.String("error", err.Error()),
			)
			failed++
			continue
		}
		a.metrics.RecordChapterOp("retired")
		applied++
	}

	return applied, failed
}
