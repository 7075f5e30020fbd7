package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/Trolladactyl/podverse-api/internal/model"
)

// PostgresEpisodeRepo はPostgreSQLを使用したエピソードリポジトリ。
type PostgresEpisodeRepo struct {
	db *sql.DB
}

// NewPostgresEpisodeRepo はPostgresEpisodeRepoを生成する。
func NewPostgresEpisodeRepo(db *sql.DB) *PostgresEpisodeRepo {
	return &PostgresEpisodeRepo{db: db}
}

// episodeColumns はエピソード行の取得カラム。スキャン順はscanEpisodeと揃えること。
const episodeColumns = `e.id, e.podcast_id, e.title, e.description, e.guid,
	e.media_url, e.media_type, e.duration, e.image_url, e.link_url,
	e.is_public, e.pub_date, e.chapters_url, e.chapters_url_last_parsed,
	e.past_hour_total_unique_pageviews, e.past_day_total_unique_pageviews,
	e.past_week_total_unique_pageviews, e.past_month_total_unique_pageviews,
	e.past_year_total_unique_pageviews, e.past_all_time_total_unique_pageviews,
	e.created_at, e.updated_at`

// podcastJoinColumns は結合取得時のポッドキャスト側カラム。
const podcastJoinColumns = `p.id, p.title, p.sortable_title, p.image_url, p.link_url,
	p.is_public, p.has_video, p.medium, p.last_episode_pub_date`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanEpisode はエピソード行を読み取る。includePodcastがtrueの場合は
// ポッドキャスト側カラムも続けて読み取り、Episode.Podcastに設定する。
func scanEpisode(s rowScanner, includePodcast bool) (*model.Episode, error) {
	episode := &model.Episode{}
	var title, description, guid, mediaType, imageURL, linkURL, chaptersURL sql.NullString
	var pubDate, chaptersLastParsed sql.NullTime

	dest := []interface{}{
		&episode.ID, &episode.PodcastID, &title, &description, &guid,
		&episode.MediaURL, &mediaType, &episode.Duration, &imageURL, &linkURL,
		&episode.IsPublic, &pubDate, &chaptersURL, &chaptersLastParsed,
		&episode.PastHourTotalUniquePageviews, &episode.PastDayTotalUniquePageviews,
		&episode.PastWeekTotalUniquePageviews, &episode.PastMonthTotalUniquePageviews,
		&episode.PastYearTotalUniquePageviews, &episode.PastAllTimeTotalUniquePageviews,
		&episode.CreatedAt, &episode.UpdatedAt,
	}

	podcast := &model.Podcast{}
	var pTitle, pSortableTitle, pImageURL, pLinkURL sql.NullString
	var pLastEpisodePubDate sql.NullTime
	if includePodcast {
		dest = append(dest,
			&podcast.ID, &pTitle, &pSortableTitle, &pImageURL, &pLinkURL,
			&podcast.IsPublic, &podcast.HasVideo, &podcast.Medium, &pLastEpisodePubDate,
		)
	}

	if err := s.Scan(dest...); err != nil {
		return nil, err
	}

	episode.Title = nullStringValue(title)
	episode.Description = nullStringValue(description)
	episode.GUID = nullStringValue(guid)
	episode.MediaType = nullStringValue(mediaType)
	episode.ImageURL = nullStringValue(imageURL)
	episode.LinkURL = nullStringValue(linkURL)
	episode.ChaptersURL = nullStringValue(chaptersURL)
	if pubDate.Valid {
		episode.PubDate = &pubDate.Time
	}
	if chaptersLastParsed.Valid {
		episode.ChaptersURLLastParsed = &chaptersLastParsed.Time
	}

	if includePodcast {
		podcast.Title = nullStringValue(pTitle)
		podcast.SortableTitle = nullStringValue(pSortableTitle)
		podcast.ImageURL = nullStringValue(pImageURL)
		podcast.LinkURL = nullStringValue(pLinkURL)
		if pLastEpisodePubDate.Valid {
			podcast.LastEpisodePubDate = &pLastEpisodePubDate.Time
		}
		episode.Podcast = podcast
	}

	return episode, nil
}

// FindByID は指定IDのエピソードをポッドキャスト情報付きで取得する。
// 公開状態は問わず取得し、可視性の判定は呼び出し側で行う。
func (r *PostgresEpisodeRepo) FindByID(ctx context.Context, id string) (*model.Episode, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+episodeColumns+`, `+podcastJoinColumns+`
		 FROM episodes e
		 JOIN podcasts p ON e.podcast_id = p.id
		 WHERE e.id = $1`,
		id,
	)

	episode, err := scanEpisode(row, true)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("エピソードの取得に失敗しました: %w", err)
	}
	return episode, nil
}

// FindNewerPublicByPodcastAndTitle は同一ポッドキャスト内で同じタイトルを持つ
// 公開エピソードのうち最新のものを検索する。
func (r *PostgresEpisodeRepo) FindNewerPublicByPodcastAndTitle(ctx context.Context, podcastID, title, excludeID string) (*model.Episode, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+episodeColumns+`, `+podcastJoinColumns+`
		 FROM episodes e
		 JOIN podcasts p ON e.podcast_id = p.id
		 WHERE e.podcast_id = $1 AND e.title = $2 AND e.id <> $3 AND e.is_public = TRUE
		 ORDER BY e.pub_date DESC NULLS LAST
		 LIMIT 1`,
		podcastID, title, excludeID,
	)

	episode, err := scanEpisode(row, true)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("同一タイトルの公開エピソードの検索に失敗しました: %w", err)
	}
	return episode, nil
}

// buildEpisodeFilter はクエリ条件からWHERE句とバインド引数を構築する。
// 公開エピソードかつ公開ポッドキャストの制約は常に付与される。
func buildEpisodeFilter(q *model.EpisodeQuery) (string, []interface{}) {
	where := " WHERE e.is_public = TRUE AND p.is_public = TRUE"
	args := []interface{}{}
	argIndex := 1

	if q.SearchTitle != "" {
		where += fmt.Sprintf(" AND LOWER(e.title) LIKE '%%' || LOWER($%d) || '%%'", argIndex)
		args = append(args, q.SearchTitle)
		argIndex++
	}
	if q.SincePubDate != nil {
		where += fmt.Sprintf(" AND e.pub_date >= $%d", argIndex)
		args = append(args, *q.SincePubDate)
		argIndex++
	}
	if q.HasVideo {
		where += " AND e.media_type LIKE 'video%'"
	}
	if len(q.EpisodeIDs) > 0 {
		where += fmt.Sprintf(" AND e.id = ANY($%d::uuid[])", argIndex)
		args = append(args, pq.Array(q.EpisodeIDs))
		argIndex++
	}
	if len(q.PodcastIDs) > 0 {
		where += fmt.Sprintf(" AND e.podcast_id = ANY($%d::uuid[])", argIndex)
		args = append(args, pq.Array(q.PodcastIDs))
		argIndex++
	}
	if len(q.CategoryIDs) > 0 {
		where += fmt.Sprintf(` AND EXISTS (
			SELECT 1 FROM podcast_categories pc
			WHERE pc.podcast_id = e.podcast_id AND pc.category_id = ANY($%d::uuid[]))`, argIndex)
		args = append(args, pq.Array(q.CategoryIDs))
		argIndex++
	}

	return where, args
}

// episodeOrderBy はソートキーをORDER BY句へ変換する。
// 未知のキーは過去1週間の人気順にフォールバックする。
func episodeOrderBy(sort model.SortKey) string {
	switch sort {
	case model.SortMostRecent:
		return " ORDER BY e.pub_date DESC NULLS LAST, e.id ASC"
	case model.SortOldest:
		return " ORDER BY e.pub_date ASC NULLS LAST, e.id ASC"
	case model.SortAlphabetical:
		return " ORDER BY e.title ASC, e.id ASC"
	case model.SortRandom:
		return " ORDER BY RANDOM()"
	case model.SortTopPastHour:
		return " ORDER BY e.past_hour_total_unique_pageviews DESC, e.id ASC"
	case model.SortTopPastDay:
		return " ORDER BY e.past_day_total_unique_pageviews DESC, e.id ASC"
	case model.SortTopPastWeek:
		return " ORDER BY e.past_week_total_unique_pageviews DESC, e.id ASC"
	case model.SortTopPastMonth:
		return " ORDER BY e.past_month_total_unique_pageviews DESC, e.id ASC"
	case model.SortTopPastYear:
		return " ORDER BY e.past_year_total_unique_pageviews DESC, e.id ASC"
	case model.SortTopAllTime:
		return " ORDER BY e.past_all_time_total_unique_pageviews DESC, e.id ASC"
	default:
		return " ORDER BY e.past_week_total_unique_pageviews DESC, e.id ASC"
	}
}

// ListFiltered はクエリ条件に一致する公開エピソードの一覧を取得する。
func (r *PostgresEpisodeRepo) ListFiltered(ctx context.Context, q *model.EpisodeQuery) ([]*model.Episode, error) {
	columns := episodeColumns
	if q.IncludePodcast {
		columns += ", " + podcastJoinColumns
	}

	where, args := buildEpisodeFilter(q)
	query := `SELECT ` + columns + `
		 FROM episodes e
		 JOIN podcasts p ON e.podcast_id = p.id` + where + episodeOrderBy(q.Sort)

	argIndex := len(args) + 1
	query += fmt.Sprintf(" OFFSET $%d LIMIT $%d", argIndex, argIndex+1)
	args = append(args, q.Skip, q.Take)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("エピソード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var episodes []*model.Episode
	for rows.Next() {
		episode, err := scanEpisode(rows, q.IncludePodcast)
		if err != nil {
			return nil, fmt.Errorf("エピソード行の読み取りに失敗しました: %w", err)
		}
		episodes = append(episodes, episode)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("エピソード一覧の走査に失敗しました: %w", err)
	}

	return episodes, nil
}

// CountFiltered はクエリ条件に一致する公開エピソードの総数を返す。
func (r *PostgresEpisodeRepo) CountFiltered(ctx context.Context, q *model.EpisodeQuery) (int, error) {
	where, args := buildEpisodeFilter(q)
	query := `SELECT COUNT(*)
		 FROM episodes e
		 JOIN podcasts p ON e.podcast_id = p.id` + where

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("エピソード総数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// ListByIDs は指定ID群の公開エピソードを取得する。順序は保証しない。
func (r *PostgresEpisodeRepo) ListByIDs(ctx context.Context, ids []string, includePodcast bool) ([]*model.Episode, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	columns := episodeColumns
	if includePodcast {
		columns += ", " + podcastJoinColumns
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+columns+`
		 FROM episodes e
		 JOIN podcasts p ON e.podcast_id = p.id
		 WHERE e.id = ANY($1::uuid[]) AND e.is_public = TRUE AND p.is_public = TRUE`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("ID指定のエピソード取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var episodes []*model.Episode
	for rows.Next() {
		episode, err := scanEpisode(rows, includePodcast)
		if err != nil {
			return nil, fmt.Errorf("エピソード行の読み取りに失敗しました: %w", err)
		}
		episodes = append(episodes, episode)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("エピソード一覧の走査に失敗しました: %w", err)
	}

	return episodes, nil
}

// GetChaptersState はチャプター再取得判定に必要な最小限の状態を取得する。
func (r *PostgresEpisodeRepo) GetChaptersState(ctx context.Context, id string) (*model.EpisodeChaptersState, error) {
	state := &model.EpisodeChaptersState{}
	var chaptersURL sql.NullString
	var lastParsed sql.NullTime

	err := r.db.QueryRowContext(ctx,
		`SELECT id, chapters_url, chapters_url_last_parsed FROM episodes WHERE id = $1`,
		id,
	).Scan(&state.EpisodeID, &chaptersURL, &lastParsed)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("チャプター状態の取得に失敗しました: %w", err)
	}

	state.ChaptersURL = nullStringValue(chaptersURL)
	if lastParsed.Valid {
		state.ChaptersURLLastParsed = &lastParsed.Time
	}
	return state, nil
}

// UpdateChaptersLastParsed はチャプター取得時刻を更新する。
func (r *PostgresEpisodeRepo) UpdateChaptersLastParsed(ctx context.Context, id string, parsedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE episodes SET chapters_url_last_parsed = $2, updated_at = now() WHERE id = $1`,
		id, parsedAt,
	)
	if err != nil {
		return fmt.Errorf("チャプター取得時刻の更新に失敗しました: %w", err)
	}
	return nil
}

// FindByPodcastAndGUID はpodcast_idとguidでエピソードを検索する。
func (r *PostgresEpisodeRepo) FindByPodcastAndGUID(ctx context.Context, podcastID, guid string) (*model.Episode, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+episodeColumns+`
		 FROM episodes e
		 WHERE e.podcast_id = $1 AND e.guid = $2`,
		podcastID, guid,
	)

	episode, err := scanEpisode(row, false)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GUID によるエピソードの検索に失敗しました: %w", err)
	}
	return episode, nil
}

// FindByPodcastAndMediaURL はpodcast_idとmedia_urlでエピソードを検索する。
func (r *PostgresEpisodeRepo) FindByPodcastAndMediaURL(ctx context.Context, podcastID, mediaURL string) (*model.Episode, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+episodeColumns+`
		 FROM episodes e
		 WHERE e.podcast_id = $1 AND e.media_url = $2`,
		podcastID, mediaURL,
	)

	episode, err := scanEpisode(row, false)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("media_url によるエピソードの検索に失敗しました: %w", err)
	}
	return episode, nil
}

// Create は新規エピソードを作成する。IDは呼び出し側で採番する。
func (r *PostgresEpisodeRepo) Create(ctx context.Context, episode *model.Episode) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO episodes (id, podcast_id, title, description, guid, media_url,
		                       media_type, duration, image_url, link_url, is_public,
		                       pub_date, chapters_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		episode.ID, episode.PodcastID, nullString(episode.Title),
		nullString(episode.Description), nullString(episode.GUID), episode.MediaURL,
		nullString(episode.MediaType), episode.Duration, nullString(episode.ImageURL),
		nullString(episode.LinkURL), episode.IsPublic, episode.PubDate,
		nullString(episode.ChaptersURL), episode.CreatedAt, episode.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("エピソードの作成に失敗しました: %w", err)
	}
	return nil
}

// Update は既存エピソードを上書き更新する。履歴は保持しない。
func (r *PostgresEpisodeRepo) Update(ctx context.Context, episode *model.Episode) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE episodes SET
		    title = $2, description = $3, guid = $4, media_url = $5, media_type = $6,
		    duration = $7, image_url = $8, link_url = $9, is_public = $10,
		    pub_date = $11, chapters_url = $12, updated_at = $13
		 WHERE id = $1`,
		episode.ID, nullString(episode.Title), nullString(episode.Description),
		nullString(episode.GUID), episode.MediaURL, nullString(episode.MediaType),
		episode.Duration, nullString(episode.ImageURL), nullString(episode.LinkURL),
		episode.IsPublic, episode.PubDate, nullString(episode.ChaptersURL),
		episode.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("エピソードの更新に失敗しました: %w", err)
	}
	return nil
}

// DeleteDead は非公開かつメディア参照を一つも持たないエピソードを削除する。
func (r *PostgresEpisodeRepo) DeleteDead(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM episodes e
		 WHERE e.is_public = FALSE
		   AND NOT EXISTS (SELECT 1 FROM media_refs m WHERE m.episode_id = e.id)`,
	)
	if err != nil {
		return 0, fmt.Errorf("不要エピソードの削除に失敗しました: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	return deleted, nil
}

// compile-time interface check
var _ EpisodeRepository = (*PostgresEpisodeRepo)(nil)
