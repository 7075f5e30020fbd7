package model

import "time"

// SortKey は一覧クエリのソート戦略を表す。
type SortKey string

const (
	// SortUnspecified はソート未指定を表す。デフォルトソートが適用される。
	// ただし検索エンジン経由の結果は外部ランク順が維持される。
	SortUnspecified SortKey = ""
	// SortMostRecent は公開日時の降順ソート。
	SortMostRecent SortKey = "most-recent"
	// SortOldest は公開日時の昇順ソート。
	SortOldest SortKey = "oldest"
	// SortAlphabetical はタイトルの辞書順ソート。
	SortAlphabetical SortKey = "alphabetical"
	// SortRandom はランダム順。
	SortRandom SortKey = "random"
	// SortTopPastHour は過去1時間のユニークページビュー降順ソート。
	SortTopPastHour SortKey = "top-past-hour"
	// SortTopPastDay は過去1日のユニークページビュー降順ソート。
	SortTopPastDay SortKey = "top-past-day"
	// SortTopPastWeek は過去1週間のユニークページビュー降順ソート。未知のソートキーの
	// フォールバック先でもある。
	SortTopPastWeek SortKey = "top-past-week"
	// SortTopPastMonth は過去1ヶ月のユニークページビュー降順ソート。
	SortTopPastMonth SortKey = "top-past-month"
	// SortTopPastYear は過去1年のユニークページビュー降順ソート。
	SortTopPastYear SortKey = "top-past-year"
	// SortTopAllTime は全期間のユニークページビュー降順ソート。
	SortTopAllTime SortKey = "top-all-time"
)

// ページネーションの既定値と上限。
const (
	// DefaultTake は一覧クエリの1ページあたりのデフォルト件数。
	DefaultTake = 20
	// MaxTake は一覧クエリの1ページあたりの最大件数。
	MaxTake = 1000
)

// EpisodeQuery はエピソード一覧の正規化済みクエリパラメータを表す。
// バリデーション層（ハンドラー）で正規化された後にサービス層へ渡される。
type EpisodeQuery struct {
	SearchTitle    string     // タイトルの部分一致検索語。指定時は検索エンジン経由になる
	SincePubDate   *time.Time // 公開日時の下限
	HasVideo       bool       // 動画エピソードのみに制限する
	EpisodeIDs     []string   // 明示的なID集合への制限
	PodcastIDs     []string   // ポッドキャストスコープ
	CategoryIDs    []string   // カテゴリスコープ
	IncludePodcast bool       // 結果にポッドキャスト情報を結合する
	Sort           SortKey
	Skip           int
	Take           int
}

// PodcastQuery はポッドキャスト一覧の正規化済みクエリパラメータを表す。
type PodcastQuery struct {
	SearchTitle  string
	SearchAuthor string
	HasVideo     bool
	PodcastIDs   []string
	CategoryIDs  []string
	Sort         SortKey
	Skip         int
	Take         int
}

// NormalizeTake はtakeをデフォルト値と上限の範囲内に収める。
func NormalizeTake(take int) int {
	if take <= 0 {
		return DefaultTake
	}
	if take > MaxTake {
		return MaxTake
	}
	return take
}
