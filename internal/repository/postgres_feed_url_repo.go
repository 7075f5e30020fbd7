package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/Trolladactyl/podverse-api/internal/model"
)

// PostgresFeedUrlRepo はPostgreSQLを使用したフィードURLリポジトリ。
type PostgresFeedUrlRepo struct {
	db *sql.DB
}

// NewPostgresFeedUrlRepo はPostgresFeedUrlRepoを生成する。
func NewPostgresFeedUrlRepo(db *sql.DB) *PostgresFeedUrlRepo {
	return &PostgresFeedUrlRepo{db: db}
}

const feedURLColumns = `id, podcast_id, url, is_authority, etag, last_modified,
	last_fetched_at, last_fetch_error, created_at, updated_at`

// scanFeedURL はフィードURL行を読み取る。
func scanFeedURL(s rowScanner) (*model.FeedUrl, error) {
	feedURL := &model.FeedUrl{}
	var podcastID, etag, lastModified, lastFetchError sql.NullString
	var lastFetchedAt sql.NullTime

	err := s.Scan(
		&feedURL.ID, &podcastID, &feedURL.URL, &feedURL.IsAuthority,
		&etag, &lastModified, &lastFetchedAt, &lastFetchError,
		&feedURL.CreatedAt, &feedURL.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	feedURL.PodcastID = nullStringValue(podcastID)
	feedURL.ETag = nullStringValue(etag)
	feedURL.LastModified = nullStringValue(lastModified)
	feedURL.LastFetchError = nullStringValue(lastFetchError)
	if lastFetchedAt.Valid {
		feedURL.LastFetchedAt = &lastFetchedAt.Time
	}

	return feedURL, nil
}

// FindByURLs は指定URL群に一致するフィードURLを取得する。
func (r *PostgresFeedUrlRepo) FindByURLs(ctx context.Context, urls []string) ([]*model.FeedUrl, error) {
	if len(urls) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+feedURLColumns+`
		 FROM feed_urls
		 WHERE url = ANY($1)`,
		pq.Array(urls),
	)
	if err != nil {
		return nil, fmt.Errorf("URL指定のフィードURL取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var feedURLs []*model.FeedUrl
	for rows.Next() {
		feedURL, err := scanFeedURL(rows)
		if err != nil {
			return nil, fmt.Errorf("フィードURL行の読み取りに失敗しました: %w", err)
		}
		feedURLs = append(feedURLs, feedURL)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フィードURL一覧の走査に失敗しました: %w", err)
	}

	return feedURLs, nil
}

// ListAuthority は取得対象のフィードURL一覧を返す。
// ポッドキャストに紐付いていないURLは取得対象外。
func (r *PostgresFeedUrlRepo) ListAuthority(ctx context.Context) ([]*model.FeedUrl, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+feedURLColumns+`
		 FROM feed_urls
		 WHERE is_authority = TRUE AND podcast_id IS NOT NULL
		 ORDER BY last_fetched_at ASC NULLS FIRST`,
	)
	if err != nil {
		return nil, fmt.Errorf("取得対象フィードURL一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var feedURLs []*model.FeedUrl
	for rows.Next() {
		feedURL, err := scanFeedURL(rows)
		if err != nil {
			return nil, fmt.Errorf("フィードURL行の読み取りに失敗しました: %w", err)
		}
		feedURLs = append(feedURLs, feedURL)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フィードURL一覧の走査に失敗しました: %w", err)
	}

	return feedURLs, nil
}

// UpdateFetchState はフィードURLの取得状態を更新する。
func (r *PostgresFeedUrlRepo) UpdateFetchState(ctx context.Context, feedURL *model.FeedUrl) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE feed_urls SET
		    etag = $2, last_modified = $3, last_fetched_at = $4,
		    last_fetch_error = $5, updated_at = now()
		 WHERE id = $1`,
		feedURL.ID, nullString(feedURL.ETag), nullString(feedURL.LastModified),
		feedURL.LastFetchedAt, nullString(feedURL.LastFetchError),
	)
	if err != nil {
		return fmt.Errorf("フィードURLの取得状態更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ FeedUrlRepository = (*PostgresFeedUrlRepo)(nil)
