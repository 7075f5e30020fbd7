package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/Trolladactyl/podverse-api/internal/model"
)

// PostgresRecentEpisodeRepo はPostgreSQLを使用した新着エピソード索引リポジトリ。
// 索引テーブルは外部バッチが構築するため読み取り専用。
type PostgresRecentEpisodeRepo struct {
	db *sql.DB
}

// NewPostgresRecentEpisodeRepo はPostgresRecentEpisodeRepoを生成する。
func NewPostgresRecentEpisodeRepo(db *sql.DB) *PostgresRecentEpisodeRepo {
	return &PostgresRecentEpisodeRepo{db: db}
}

// recentTableName はグループ種別から索引テーブル名を決定する。
// テーブル名はバインドできないため固定文字列のみを返す。
func recentTableName(groupType model.RecentGroupType) (table, groupColumn string, err error) {
	switch groupType {
	case model.RecentGroupCategory:
		return "recent_episodes_by_category", "category_id", nil
	case model.RecentGroupPodcast:
		return "recent_episodes_by_podcast", "podcast_id", nil
	default:
		return "", "", fmt.Errorf("未知のグループ種別です: %s", groupType)
	}
}

// ListRecent は指定グループ群の新着エピソードをpub_date降順で取得し、
// 正確な総数とあわせて返す。
func (r *PostgresRecentEpisodeRepo) ListRecent(ctx context.Context, groupType model.RecentGroupType, groupIDs []string, skip, take int) ([]model.RecentEpisode, int, error) {
	if len(groupIDs) == 0 {
		return nil, 0, nil
	}

	table, groupColumn, err := recentTableName(groupType)
	if err != nil {
		return nil, 0, err
	}

	var total int
	err = r.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s = ANY($1::uuid[])`, table, groupColumn),
		pq.Array(groupIDs),
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("新着エピソード総数の取得に失敗しました: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s, episode_id, pub_date
		 FROM %s
		 WHERE %s = ANY($1::uuid[])
		 ORDER BY pub_date DESC, episode_id ASC
		 OFFSET $2 LIMIT $3`, groupColumn, table, groupColumn),
		pq.Array(groupIDs), skip, take,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("新着エピソード一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var entries []model.RecentEpisode
	for rows.Next() {
		var entry model.RecentEpisode
		if err := rows.Scan(&entry.GroupID, &entry.EpisodeID, &entry.PubDate); err != nil {
			return nil, 0, fmt.Errorf("新着エピソード行の読み取りに失敗しました: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("新着エピソード一覧の走査に失敗しました: %w", err)
	}

	return entries, total, nil
}

// compile-time interface check
var _ RecentEpisodeRepository = (*PostgresRecentEpisodeRepo)(nil)
