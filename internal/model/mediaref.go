package model

import "time"

// MediaRef はエピソードに付与されたタイムスタンプ付き注釈（チャプター/クリップ）を表す。
// is_official_chapter = true のものは外部チャプターフィード由来で、
// システムアクターにより再調整（リコンサイル）される。false のものはユーザー作成クリップ。
type MediaRef struct {
	ID                string
	EpisodeID         string
	OwnerID           string
	Title             string
	StartTime         int  // 秒（整数に丸めて保存する）
	EndTime           *int // 秒。未設定の場合はエピソード末尾まで
	IsPublic          bool
	IsOfficialChapter bool
	ImageURL          string
	LinkURL           string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ParsedChapter は外部チャプターフィードからパースした未保存のチャプターデータを表す。
// startTimeは秒の小数値で届くことがあるため、保存時に整数へ丸める。
type ParsedChapter struct {
	StartTime float64
	Title     string
	ImageURL  string
	LinkURL   string
}
