package model

import "time"

// Podcast はポッドキャスト（エピソードのコレクション）を表す。
// 複数のカテゴリに属し、複数のFeedUrlを持つ。そのうち1本がオーソリティ
// （正規のフィードURL）として扱われる。
type Podcast struct {
	ID            string
	Title         string
	SortableTitle string // 辞書順ソート用に正規化したタイトル（冠詞除去・小文字化）
	Description   string
	ImageURL      string
	LinkURL       string
	IsPublic      bool
	HasVideo      bool
	Medium        string

	LastEpisodeTitle   string
	LastEpisodePubDate *time.Time
	FeedLastUpdated    *time.Time

	// 期間別ユニークページビュー（外部バッチが集計する）
	PastHourTotalUniquePageviews    int
	PastDayTotalUniquePageviews     int
	PastWeekTotalUniquePageviews    int
	PastMonthTotalUniquePageviews   int
	PastYearTotalUniquePageviews    int
	PastAllTimeTotalUniquePageviews int

	CreatedAt time.Time
	UpdatedAt time.Time

	// 結合指定時のみ設定される
	AuthorityFeedURL string
	Categories       []Category
}

// Category はポッドキャストのジャンル分類を表す。
type Category struct {
	ID    string
	Title string
}

// FeedUrl はポッドキャストのフィードURLを表す。
// 1つのポッドキャストが複数のフィードURLを持ちうるが、
// is_authority = true のものだけがフェッチ対象の正規URLとなる。
type FeedUrl struct {
	ID             string
	PodcastID      string
	URL            string
	IsAuthority    bool
	ETag           string
	LastModified   string
	LastFetchedAt  *time.Time
	LastFetchError string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
