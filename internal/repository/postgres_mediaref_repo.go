package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Trolladactyl/podverse-api/internal/model"
)

// PostgresMediaRefRepo はPostgreSQLを使用したメディア参照リポジトリ。
type PostgresMediaRefRepo struct {
	db *sql.DB
}

// NewPostgresMediaRefRepo はPostgresMediaRefRepoを生成する。
func NewPostgresMediaRefRepo(db *sql.DB) *PostgresMediaRefRepo {
	return &PostgresMediaRefRepo{db: db}
}

const mediaRefColumns = `id, episode_id, owner_id, title, start_time, end_time,
	is_public, is_official_chapter, image_url, link_url, created_at, updated_at`

// scanMediaRef はメディア参照行を読み取る。
func scanMediaRef(s rowScanner) (*model.MediaRef, error) {
	ref := &model.MediaRef{}
	var title, imageURL, linkURL sql.NullString
	var endTime sql.NullInt64

	err := s.Scan(
		&ref.ID, &ref.EpisodeID, &ref.OwnerID, &title, &ref.StartTime, &endTime,
		&ref.IsPublic, &ref.IsOfficialChapter, &imageURL, &linkURL,
		&ref.CreatedAt, &ref.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	ref.Title = nullStringValue(title)
	ref.ImageURL = nullStringValue(imageURL)
	ref.LinkURL = nullStringValue(linkURL)
	if endTime.Valid {
		v := int(endTime.Int64)
		ref.EndTime = &v
	}

	return ref, nil
}

// ListOfficialPublicByEpisode はエピソードの公式かつ公開のチャプターを
// start_time昇順で取得する。
func (r *PostgresMediaRefRepo) ListOfficialPublicByEpisode(ctx context.Context, episodeID string) ([]*model.MediaRef, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+mediaRefColumns+`
		 FROM media_refs
		 WHERE episode_id = $1 AND is_official_chapter = TRUE AND is_public = TRUE
		 ORDER BY start_time ASC, id ASC`,
		episodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("公式チャプター一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var refs []*model.MediaRef
	for rows.Next() {
		ref, err := scanMediaRef(rows)
		if err != nil {
			return nil, fmt.Errorf("メディア参照行の読み取りに失敗しました: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("メディア参照一覧の走査に失敗しました: %w", err)
	}

	return refs, nil
}

// Create はメディア参照を作成する。IDは呼び出し側で採番する。
func (r *PostgresMediaRefRepo) Create(ctx context.Context, ref *model.MediaRef) error {
	var endTime interface{}
	if ref.EndTime != nil {
		endTime = *ref.EndTime
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO media_refs (id, episode_id, owner_id, title, start_time, end_time,
		                         is_public, is_official_chapter, image_url, link_url,
		                         created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		ref.ID, ref.EpisodeID, ref.OwnerID, nullString(ref.Title), ref.StartTime,
		endTime, ref.IsPublic, ref.IsOfficialChapter, nullString(ref.ImageURL),
		nullString(ref.LinkURL), ref.CreatedAt, ref.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("メディア参照の作成に失敗しました: %w", err)
	}
	return nil
}

// Update はメディア参照を上書き更新する。
func (r *PostgresMediaRefRepo) Update(ctx context.Context, ref *model.MediaRef) error {
	var endTime interface{}
	if ref.EndTime != nil {
		endTime = *ref.EndTime
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE media_refs SET
		    title = $2, start_time = $3, end_time = $4, is_public = $5,
		    image_url = $6, link_url = $7, updated_at = $8
		 WHERE id = $1`,
		ref.ID, nullString(ref.Title), ref.StartTime, endTime, ref.IsPublic,
		nullString(ref.ImageURL), nullString(ref.LinkURL), ref.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("メディア参照の更新に失敗しました: %w", err)
	}
	return nil
}

// SetPublic はメディア参照の公開フラグを変更する。
func (r *PostgresMediaRefRepo) SetPublic(ctx context.Context, id string, isPublic bool) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE media_refs SET is_public = $2, updated_at = now() WHERE id = $1`,
		id, isPublic,
	)
	if err != nil {
		return fmt.Errorf("メディア参照の公開フラグ更新に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ MediaRefRepository = (*PostgresMediaRefRepo)(nil)
