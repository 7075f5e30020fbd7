package parse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Trolladactyl/podverse-api/internal/model"
	"github.com/Trolladactyl/podverse-api/internal/repository"
	"github.com/Trolladactyl/podverse-api/internal/security"
)

// EpisodeUpsertService はエピソードの同一性判定とUPSERT処理を提供する。
// 2段階の同一性判定ロジックにより、重複登録を防ぎつつ既存エピソードの
// 上書き更新を行う。
type EpisodeUpsertService struct {
	episodes  repository.EpisodeRepository
	sanitizer security.ContentSanitizerService
	logger    *slog.Logger
}

// NewEpisodeUpsertService はEpisodeUpsertServiceの新しいインスタンスを生成する。
func NewEpisodeUpsertService(
	episodes repository.EpisodeRepository,
	sanitizer security.ContentSanitizerService,
	logger *slog.Logger,
) *EpisodeUpsertService {
	return &EpisodeUpsertService{
		episodes:  episodes,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// UpsertEpisodes はフィードから取得したエピソードをUPSERTする。
// 2段階の同一性判定ロジック:
//  1. (podcast_id, guid) - 最優先
//  2. (podcast_id, media_url) - 第2優先
//
// 戻り値は挿入数、更新数、エラー。
func (s *EpisodeUpsertService) UpsertEpisodes(
	ctx context.Context,
	podcastID string,
	parsed []model.ParsedEpisode,
) (created int, updated int, err error) {
	if len(parsed) == 0 {
		return 0, 0, nil
	}

	now := time.Now()

	for _, p := range parsed {
		// メディアURLのないエピソードは再生できないため取り込まない
		if p.MediaURL == "" {
			continue
		}

		sanitizedTitle := s.sanitizer.SanitizeText(p.Title)
		sanitizedDescription := s.sanitizer.SanitizeHTML(p.Description)

		existing, findErr := s.findExistingEpisode(ctx, podcastID, p)
		if findErr != nil {
			s.logger.Error("エピソードの同一性判定でエラー",
				slog.String("podcast_id", podcastID),
				slog.String("guid", p.GUID),
				slog.String("error", findErr.Error()),
			)
			return created, updated, fmt.Errorf("エピソードの同一性判定に失敗しました: %w", findErr)
		}

		if existing != nil {
			updateErr := s.updateExistingEpisode(ctx, existing, p, sanitizedTitle, sanitizedDescription, now)
			if updateErr != nil {
				s.logger.Error("エピソードの更新でエラー",
					slog.String("podcast_id", podcastID),
					slog.String("episode_id", existing.ID),
					slog.String("error", updateErr.Error()),
				)
				return created, updated, fmt.Errorf("エピソードの更新に失敗しました: %w", updateErr)
			}
			updated++
		} else {
			createErr := s.createNewEpisode(ctx, podcastID, p, sanitizedTitle, sanitizedDescription, now)
			if createErr != nil {
				s.logger.Error("エピソードの挿入でエラー",
					slog.String("podcast_id", podcastID),
					slog.String("guid", p.GUID),
					slog.String("error", createErr.Error()),
				)
				return created, updated, fmt.Errorf("エピソードの挿入に失敗しました: %w", createErr)
			}
			created++
		}
	}

	s.logger.Info("エピソードUPSERT完了",
		slog.String("podcast_id", podcastID),
		slog.Int("created", created),
		slog.Int("updated", updated),
	)

	return created, updated, nil
}

// findExistingEpisode は2段階の同一性判定で既存エピソードを検索する。
// 優先順位: (podcast_id, guid) > (podcast_id, media_url)
func (s *EpisodeUpsertService) findExistingEpisode(
	ctx context.Context,
	podcastID string,
	parsed model.ParsedEpisode,
) (*model.Episode, error) {
	// 第1優先: podcast_id + guid
	if parsed.GUID != "" {
		episode, err := s.episodes.FindByPodcastAndGUID(ctx, podcastID, parsed.GUID)
		if err != nil {
			return nil, err
		}
		if episode != nil {
			return episode, nil
		}
	}

	// 第2優先: podcast_id + media_url
	episode, err := s.episodes.FindByPodcastAndMediaURL(ctx, podcastID, parsed.MediaURL)
	if err != nil {
		return nil, err
	}
	if episode != nil {
		return episode, nil
	}

	return nil, nil
}

// updateExistingEpisode は既存エピソードを上書き更新する。履歴は保持しない。
// チャプター取得時刻はフィード側の更新では変化しないため維持する。
func (s *EpisodeUpsertService) updateExistingEpisode(
	ctx context.Context,
	existing *model.Episode,
	parsed model.ParsedEpisode,
	sanitizedTitle, sanitizedDescription string,
	now time.Time,
) error {
	existing.GUID = parsed.GUID
	existing.Title = sanitizedTitle
	existing.Description = sanitizedDescription
	existing.MediaURL = parsed.MediaURL
	existing.MediaType = parsed.MediaType
	existing.Duration = parsed.Duration
	existing.ImageURL = parsed.ImageURL
	existing.LinkURL = parsed.LinkURL
	existing.ChaptersURL = parsed.ChaptersURL
	existing.UpdatedAt = now

	if parsed.PubDate != nil {
		existing.PubDate = parsed.PubDate
	}
	// parsed.PubDateがnilの場合は既存の値を維持

	return s.episodes.Update(ctx, existing)
}

// createNewEpisode は新規エピソードを作成する。
// フィード経由で取り込まれたエピソードは公開状態で作成される。
func (s *EpisodeUpsertService) createNewEpisode(
	ctx context.Context,
	podcastID string,
	parsed model.ParsedEpisode,
	sanitizedTitle, sanitizedDescription string,
	now time.Time,
) error {
	episode := &model.Episode{
		ID:          uuid.New().String(),
		PodcastID:   podcastID,
		GUID:        parsed.GUID,
		Title:       sanitizedTitle,
		Description: sanitizedDescription,
		MediaURL:    parsed.MediaURL,
		MediaType:   parsed.MediaType,
		Duration:    parsed.Duration,
		ImageURL:    parsed.ImageURL,
		LinkURL:     parsed.LinkURL,
		ChaptersURL: parsed.ChaptersURL,
		IsPublic:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if parsed.PubDate != nil {
		episode.PubDate = parsed.PubDate
	} else {
		// 公開日が不明な場合は取り込み時刻を代用する
		episode.PubDate = &now
	}

	return s.episodes.Create(ctx, episode)
}
