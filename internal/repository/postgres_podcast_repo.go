package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/Trolladactyl/podverse-api/internal/model"
)

// PostgresPodcastRepo はPostgreSQLを使用したポッドキャストリポジトリ。
type PostgresPodcastRepo struct {
	db *sql.DB
}

// NewPostgresPodcastRepo はPostgresPodcastRepoを生成する。
func NewPostgresPodcastRepo(db *sql.DB) *PostgresPodcastRepo {
	return &PostgresPodcastRepo{db: db}
}

// podcastColumns はポッドキャスト行の取得カラム。スキャン順はscanPodcastと揃えること。
const podcastColumns = `p.id, p.title, p.sortable_title, p.description, p.image_url,
	p.link_url, p.is_public, p.has_video, p.medium,
	p.last_episode_title, p.last_episode_pub_date, p.feed_last_updated,
	p.past_hour_total_unique_pageviews, p.past_day_total_unique_pageviews,
	p.past_week_total_unique_pageviews, p.past_month_total_unique_pageviews,
	p.past_year_total_unique_pageviews, p.past_all_time_total_unique_pageviews,
	p.created_at, p.updated_at`

// scanPodcast はポッドキャスト行を読み取る。
func scanPodcast(s rowScanner) (*model.Podcast, error) {
	podcast := &model.Podcast{}
	var title, sortableTitle, description, imageURL, linkURL, lastEpisodeTitle sql.NullString
	var lastEpisodePubDate, feedLastUpdated sql.NullTime

	err := s.Scan(
		&podcast.ID, &title, &sortableTitle, &description, &imageURL,
		&linkURL, &podcast.IsPublic, &podcast.HasVideo, &podcast.Medium,
		&lastEpisodeTitle, &lastEpisodePubDate, &feedLastUpdated,
		&podcast.PastHourTotalUniquePageviews, &podcast.PastDayTotalUniquePageviews,
		&podcast.PastWeekTotalUniquePageviews, &podcast.PastMonthTotalUniquePageviews,
		&podcast.PastYearTotalUniquePageviews, &podcast.PastAllTimeTotalUniquePageviews,
		&podcast.CreatedAt, &podcast.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	podcast.Title = nullStringValue(title)
	podcast.SortableTitle = nullStringValue(sortableTitle)
	podcast.Description = nullStringValue(description)
	podcast.ImageURL = nullStringValue(imageURL)
	podcast.LinkURL = nullStringValue(linkURL)
	podcast.LastEpisodeTitle = nullStringValue(lastEpisodeTitle)
	if lastEpisodePubDate.Valid {
		podcast.LastEpisodePubDate = &lastEpisodePubDate.Time
	}
	if feedLastUpdated.Valid {
		podcast.FeedLastUpdated = &feedLastUpdated.Time
	}

	return podcast, nil
}

// FindByID は指定IDのポッドキャストをカテゴリとオーソリティフィードURL付きで取得する。
// 公開状態は問わず取得し、可視性の判定は呼び出し側で行う。
func (r *PostgresPodcastRepo) FindByID(ctx context.Context, id string) (*model.Podcast, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+podcastColumns+`
		 FROM podcasts p WHERE p.id = $1`,
		id,
	)

	podcast, err := scanPodcast(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ポッドキャストの取得に失敗しました: %w", err)
	}

	var authorityURL sql.NullString
	err = r.db.QueryRowContext(ctx,
		`SELECT url FROM feed_urls WHERE podcast_id = $1 AND is_authority = TRUE`,
		id,
	).Scan(&authorityURL)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("オーソリティフィードURLの取得に失敗しました: %w", err)
	}
	podcast.AuthorityFeedURL = nullStringValue(authorityURL)

	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.title
		 FROM categories c
		 JOIN podcast_categories pc ON c.id = pc.category_id
		 WHERE pc.podcast_id = $1
		 ORDER BY c.title ASC`,
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("カテゴリの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Title); err != nil {
			return nil, fmt.Errorf("カテゴリ行の読み取りに失敗しました: %w", err)
		}
		podcast.Categories = append(podcast.Categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("カテゴリ一覧の走査に失敗しました: %w", err)
	}

	return podcast, nil
}

// buildPodcastFilter はクエリ条件からWHERE句とバインド引数を構築する。
// 公開ポッドキャストの制約は常に付与される。
func buildPodcastFilter(q *model.PodcastQuery) (string, []interface{}) {
	where := " WHERE p.is_public = TRUE"
	args := []interface{}{}
	argIndex := 1

	if q.SearchTitle != "" {
		where += fmt.Sprintf(" AND LOWER(p.title) LIKE '%%' || LOWER($%d) || '%%'", argIndex)
		args = append(args, q.SearchTitle)
		argIndex++
	}
	if q.SearchAuthor != "" {
		where += fmt.Sprintf(` AND EXISTS (
			SELECT 1 FROM podcast_authors pa
			JOIN authors a ON a.id = pa.author_id
			WHERE pa.podcast_id = p.id AND a.name ILIKE '%%' || $%d || '%%')`, argIndex)
		args = append(args, q.SearchAuthor)
		argIndex++
	}
	if q.HasVideo {
		where += " AND p.has_video = TRUE"
	}
	if len(q.PodcastIDs) > 0 {
		where += fmt.Sprintf(" AND p.id = ANY($%d::uuid[])", argIndex)
		args = append(args, pq.Array(q.PodcastIDs))
		argIndex++
	}
	if len(q.CategoryIDs) > 0 {
		where += fmt.Sprintf(` AND EXISTS (
			SELECT 1 FROM podcast_categories pc
			WHERE pc.podcast_id = p.id AND pc.category_id = ANY($%d::uuid[]))`, argIndex)
		args = append(args, pq.Array(q.CategoryIDs))
		argIndex++
	}

	return where, args
}

// podcastOrderBy はソートキーをORDER BY句へ変換する。
// 辞書順は冠詞を除去したsortable_titleを使用する。
// 未知のキーは過去1週間の人気順にフォールバックする。
func podcastOrderBy(sort model.SortKey) string {
	switch sort {
	case model.SortMostRecent:
		return " ORDER BY p.last_episode_pub_date DESC NULLS LAST, p.id ASC"
	case model.SortOldest:
		return " ORDER BY p.last_episode_pub_date ASC NULLS LAST, p.id ASC"
	case model.SortAlphabetical:
		return " ORDER BY p.sortable_title ASC, p.id ASC"
	case model.SortRandom:
		return " ORDER BY RANDOM()"
	case model.SortTopPastHour:
		return " ORDER BY p.past_hour_total_unique_pageviews DESC, p.id ASC"
	case model.SortTopPastDay:
		return " ORDER BY p.past_day_total_unique_pageviews DESC, p.id ASC"
	case model.SortTopPastWeek:
		return " ORDER BY p.past_week_total_unique_pageviews DESC, p.id ASC"
	case model.SortTopPastMonth:
		return " ORDER BY p.past_month_total_unique_pageviews DESC, p.id ASC"
	case model.SortTopPastYear:
		return " ORDER BY p.past_year_total_unique_pageviews DESC, p.id ASC"
	case model.SortTopAllTime:
		return " ORDER BY p.past_all_time_total_unique_pageviews DESC, p.id ASC"
	default:
		return " ORDER BY p.past_week_total_unique_pageviews DESC, p.id ASC"
	}
}

// ListFiltered はクエリ条件に一致する公開ポッドキャストの一覧を取得する。
func (r *PostgresPodcastRepo) ListFiltered(ctx context.Context, q *model.PodcastQuery) ([]*model.Podcast, error) {
	where, args := buildPodcastFilter(q)
	query := `SELECT ` + podcastColumns + ` FROM podcasts p` + where + podcastOrderBy(q.Sort)

	argIndex := len(args) + 1
	query += fmt.Sprintf(" OFFSET $%d LIMIT $%d", argIndex, argIndex+1)
	args = append(args, q.Skip, q.Take)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ポッドキャスト一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var podcasts []*model.Podcast
	for rows.Next() {
		podcast, err := scanPodcast(rows)
		if err != nil {
			return nil, fmt.Errorf("ポッドキャスト行の読み取りに失敗しました: %w", err)
		}
		podcasts = append(podcasts, podcast)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ポッドキャスト一覧の走査に失敗しました: %w", err)
	}

	return podcasts, nil
}

// CountFiltered はクエリ条件に一致する公開ポッドキャストの総数を返す。
func (r *PostgresPodcastRepo) CountFiltered(ctx context.Context, q *model.PodcastQuery) (int, error) {
	where, args := buildPodcastFilter(q)

	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM podcasts p`+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ポッドキャスト総数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// ListByIDs は指定ID群の公開ポッドキャストを取得する。順序は保証しない。
func (r *PostgresPodcastRepo) ListByIDs(ctx context.Context, ids []string) ([]*model.Podcast, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+podcastColumns+`
		 FROM podcasts p
		 WHERE p.id = ANY($1::uuid[]) AND p.is_public = TRUE`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("ID指定のポッドキャスト取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var podcasts []*model.Podcast
	for rows.Next() {
		podcast, err := scanPodcast(rows)
		if err != nil {
			return nil, fmt.Errorf("ポッドキャスト行の読み取りに失敗しました: %w", err)
		}
		podcasts = append(podcasts, podcast)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ポッドキャスト一覧の走査に失敗しました: %w", err)
	}

	return podcasts, nil
}

// Update はフィード取り込みで得たポッドキャストのメタデータを更新する。
func (r *PostgresPodcastRepo) Update(ctx context.Context, podcast *model.Podcast) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE podcasts SET
		    title = $2, sortable_title = $3, description = $4, image_url = $5,
		    link_url = $6, is_public = $7, has_video = $8,
		    last_episode_title = $9, last_episode_pub_date = $10,
		    feed_last_updated = $11, updated_at = $12
		 WHERE id = $1`,
		podcast.ID, nullString(podcast.Title), nullString(podcast.SortableTitle),
		nullString(podcast.Description), nullString(podcast.ImageURL),
		nullString(podcast.LinkURL), podcast.IsPublic, podcast.HasVideo,
		nullString(podcast.LastEpisodeTitle), podcast.LastEpisodePubDate,
		podcast.FeedLastUpdated, podcast.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ポッドキャストの更新に失敗しました: %w", err)
	}
	return nil
}

// nullString は空文字列をNULLに変換する。
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// nullStringValue はNULLを空文字列に変換する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// compile-time interface check
var _ PodcastRepository = (*PostgresPodcastRepo)(nil)
