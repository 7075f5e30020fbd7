// Package model はドメインモデルを定義する。
package model

import "time"

// Episode はポッドキャストの1エピソードを表す。
// ポッドキャストに1対1で属し、複数のMediaRef（チャプター/クリップ）を持つ。
type Episode struct {
	ID          string
	PodcastID   string
	Title       string
	Description string
	GUID        string
	MediaURL    string
	MediaType   string // 例: "audio/mpeg", "video/mp4"
	Duration    int    // 秒
	ImageURL    string
	LinkURL     string
	IsPublic    bool
	PubDate     *time.Time

	// チャプターフィード連携
	ChaptersURL           string
	ChaptersURLLastParsed *time.Time

	// 期間別ユニークページビュー（外部バッチが集計する）
	PastHourTotalUniquePageviews    int
	PastDayTotalUniquePageviews     int
	PastWeekTotalUniquePageviews    int
	PastMonthTotalUniquePageviews   int
	PastYearTotalUniquePageviews    int
	PastAllTimeTotalUniquePageviews int

	CreatedAt time.Time
	UpdatedAt time.Time

	// IncludePodcast指定時のみ結合される
	Podcast *Podcast
}

// EpisodeChaptersState はチャプター再取得判定に必要なエピソードの最小状態。
type EpisodeChaptersState struct {
	EpisodeID             string
	ChaptersURL           string
	ChaptersURLLastParsed *time.Time
}

// ParsedEpisode はフィードパーサーから取得した未保存のエピソードデータを表す。
// ワーカーがフィードをパースした後、EpisodeUpsertServiceに渡される。
type ParsedEpisode struct {
	GUID        string
	Title       string
	Description string
	MediaURL    string
	MediaType   string
	Duration    int
	ImageURL    string
	LinkURL     string
	ChaptersURL string
	PubDate     *time.Time
}
