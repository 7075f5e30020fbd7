// Package episode はエピソードカタログの照会とランキングを提供する。
// クエリ条件から実行経路（検索エンジン経由・新着索引・リレーショナル）を選択し、
// 件数戦略（正確値・近似値）を決定する。
package episode

import "github.com/Trolladactyl/podverse-api/internal/model"

// Route はエピソード一覧クエリの実行経路を表す。
type Route string

const (
	// RouteSearch は検索エンジン経由の経路。searchTitle指定時に選択される。
	RouteSearch Route = "search"
	// RouteFastPath は新着エピソード索引経由の経路。
	// 「最新順 + カテゴリまたはポッドキャスト絞り込み + 動画制限なし」の時に選択される。
	RouteFastPath Route = "fast_path"
	// RouteDirect は明示的なID集合によるリレーショナル経路。件数は正確値になる。
	RouteDirect Route = "direct"
	// RouteUnbounded は無制限スコープのリレーショナル経路。件数は近似値になる。
	RouteUnbounded Route = "unbounded"
)

// selectRoute はクエリ条件から実行経路を決定する。
// 判定は上から順に評価され、最初に一致した経路が使われる。
func selectRoute(q *model.EpisodeQuery) Route {
	if q.SearchTitle != "" {
		return RouteSearch
	}
	if q.Sort == model.SortMostRecent && !q.HasVideo &&
		(len(q.CategoryIDs) > 0 || len(q.PodcastIDs) > 0) {
		return RouteFastPath
	}
	if len(q.EpisodeIDs) > 0 || len(q.PodcastIDs) > 0 {
		return RouteDirect
	}
	return RouteUnbounded
}

// CountStrategy は一覧クエリの総数の算出戦略を表す。
type CountStrategy int

const (
	// CountApproximate は総数を固定の近似値で返す戦略。
	// 無制限スコープのCOUNTはテーブル全走査になるため実行しない。
	CountApproximate CountStrategy = iota
	// CountExact は総数を正確に数える戦略。
	CountExact
)

// approximateTotal は近似戦略で返す総数の固定値。
// ページネーションUIが「十分大きい」と解釈できる値であればよい。
const approximateTotal = 10000

// selectCountStrategy は件数戦略を決定する。
// 明示的なID集合（エピソードIDまたはポッドキャストID）で範囲が
// 限定されている場合のみ正確に数える。判定箇所はここに集約する。
func selectCountStrategy(q *model.EpisodeQuery) CountStrategy {
	if len(q.EpisodeIDs) > 0 || len(q.PodcastIDs) > 0 {
		return CountExact
	}
	return CountApproximate
}
