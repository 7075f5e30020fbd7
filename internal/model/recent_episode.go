package model

import "time"

// RecentGroupType は最新エピソード索引のパーティション種別を表す。
type RecentGroupType string

const (
	// RecentGroupCategory はカテゴリ単位の最新エピソード索引。
	RecentGroupCategory RecentGroupType = "category"
	// RecentGroupPodcast はポッドキャスト単位の最新エピソード索引。
	RecentGroupPodcast RecentGroupType = "podcast"
)

// RecentEpisode は「グループごとの最新エピソード」の非正規化索引行を表す。
// 外部バッチが構築・更新するため本体テーブルより遅延することがあり、
// 本サービスからは読み取り専用として扱う。
type RecentEpisode struct {
	GroupID   string // カテゴリID またはポッドキャストID
	EpisodeID string
	PubDate   time.Time
}
