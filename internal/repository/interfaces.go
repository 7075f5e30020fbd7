// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/Trolladactyl/podverse-api/internal/model"
)

// EpisodeRepository はエピソードデータの永続化インターフェース。
// 一覧取得の動的フィルタとチャプター再調整に必要な操作を提供する。
type EpisodeRepository interface {
	// FindByID は指定IDのエピソードをポッドキャスト情報付きで取得する。
	// 見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Episode, error)

	// FindNewerPublicByPodcastAndTitle は同一ポッドキャスト内で同じタイトルを持つ
	// 公開エピソードのうち最新のものを検索する。excludeIDのエピソードは除外する。
	// 見つからない場合はnilを返す。
	FindNewerPublicByPodcastAndTitle(ctx context.Context, podcastID, title, excludeID string) (*model.Episode, error)

	// ListFiltered はクエリ条件に一致する公開エピソードの一覧を取得する。
	// 公開エピソードかつ公開ポッドキャストに属するものだけが対象となる。
	ListFiltered(ctx context.Context, q *model.EpisodeQuery) ([]*model.Episode, error)

	// CountFiltered はクエリ条件に一致する公開エピソードの総数を返す。
	// skip/takeは無視される。
	CountFiltered(ctx context.Context, q *model.EpisodeQuery) (int, error)

	// ListByIDs は指定ID群の公開エピソードを取得する。順序は保証しない。
	ListByIDs(ctx context.Context, ids []string, includePodcast bool) ([]*model.Episode, error)

	// GetChaptersState はチャプター再調整に必要な最小限の状態を取得する。
	// 見つからない場合はnilを返す。
	GetChaptersState(ctx context.Context, id string) (*model.EpisodeChaptersState, error)

	// UpdateChaptersLastParsed はチャプター取得時刻を更新する。
	UpdateChaptersLastParsed(ctx context.Context, id string, parsedAt time.Time) error

	// FindByPodcastAndGUID はpodcast_idとguidでエピソードを検索する。
	// フィード取り込み時の同一性判定の最優先手段。見つからない場合はnilを返す。
	FindByPodcastAndGUID(ctx context.Context, podcastID, guid string) (*model.Episode, error)

	// FindByPodcastAndMediaURL はpodcast_idとmedia_urlでエピソードを検索する。
	// 同一性判定の第2優先手段。見つからない場合はnilを返す。
	FindByPodcastAndMediaURL(ctx context.Context, podcastID, mediaURL string) (*model.Episode, error)

	// Create は新規エピソードを作成する。
	Create(ctx context.Context, episode *model.Episode) error

	// Update は既存エピソードを上書き更新する。
	Update(ctx context.Context, episode *model.Episode) error

	// DeleteDead は非公開かつメディア参照を一つも持たないエピソードを削除し、
	// 削除件数を返す。
	DeleteDead(ctx context.Context) (int64, error)
}

// PodcastRepository はポッドキャストデータの永続化インターフェース。
type PodcastRepository interface {
	// FindByID は指定IDのポッドキャストを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Podcast, error)

	// ListFiltered はクエリ条件に一致する公開ポッドキャストの一覧を取得する。
	ListFiltered(ctx context.Context, q *model.PodcastQuery) ([]*model.Podcast, error)

	// CountFiltered はクエリ条件に一致する公開ポッドキャストの総数を返す。
	CountFiltered(ctx context.Context, q *model.PodcastQuery) (int, error)

	// ListByIDs は指定ID群の公開ポッドキャストを取得する。順序は保証しない。
	ListByIDs(ctx context.Context, ids []string) ([]*model.Podcast, error)

	// Update はフィード取り込みで得たポッドキャストのメタデータを更新する。
	Update(ctx context.Context, podcast *model.Podcast) error
}

// MediaRefRepository はメディア参照（チャプター・クリップ）の永続化インターフェース。
type MediaRefRepository interface {
	// ListOfficialPublicByEpisode はエピソードの公式かつ公開のチャプターを
	// start_time昇順で取得する。
	ListOfficialPublicByEpisode(ctx context.Context, episodeID string) ([]*model.MediaRef, error)

	// Create はメディア参照を作成する。
	Create(ctx context.Context, ref *model.MediaRef) error

	// Update はメディア参照を上書き更新する。
	Update(ctx context.Context, ref *model.MediaRef) error

	// SetPublic はメディア参照の公開フラグを変更する。
	// 公式チャプターの廃止は削除ではなく非公開化で行う。
	SetPublic(ctx context.Context, id string, isPublic bool) error
}

// RecentEpisodeRepository は新着エピソードインデックスの読み取りインターフェース。
// インデックスは集計バッチが管理するため、APIからは読み取り専用。
type RecentEpisodeRepository interface {
	// ListRecent は指定グループ群の新着エピソードをpub_date降順で取得し、
	// 該当範囲の正確な総数とあわせて返す。
	ListRecent(ctx context.Context, groupType model.RecentGroupType, groupIDs []string, skip, take int) ([]model.RecentEpisode, int, error)
}

// FeedUrlRepository はフィードURLデータの永続化インターフェース。
type FeedUrlRepository interface {
	// FindByURLs は指定URL群に一致するフィードURLを取得する。
	FindByURLs(ctx context.Context, urls []string) ([]*model.FeedUrl, error)

	// ListAuthority は取得対象（is_authority = TRUE かつポッドキャスト紐付きあり）の
	// フィードURL一覧を返す。
	ListAuthority(ctx context.Context) ([]*model.FeedUrl, error)

	// UpdateFetchState はフィードURLの取得状態（etag、last_modified、エラー）を更新する。
	UpdateFetchState(ctx context.Context, feedURL *model.FeedUrl) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
