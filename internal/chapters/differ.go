// Package chapters は外部チャプターフィードと保存済み公式チャプターの再調整を提供する。
// 取得（フェッチ）、差分計算（ディファー）、適用（アプライヤー）の3段で構成され、
// 途中の失敗は保存済みチャプターを壊さないソフト失敗として扱う。
package chapters

import (
	"math"

	"github.com/Trolladactyl/podverse-api/internal/model"
)

// UpdateOp は既存チャプターへの上書き更新1件を表す。
type UpdateOp struct {
	Stored *model.MediaRef
	Parsed model.ParsedChapter
}

// Diff は保存済みチャプター集合をパース結果と一致させるための操作集合。
type Diff struct {
	Create []model.ParsedChapter
	Update []UpdateOp
	Retire []*model.MediaRef
}

// Empty はDiffが操作を1つも含まないことを返す。
func (d Diff) Empty() bool {
	return len(d.Create) == 0 && len(d.Update) == 0 && len(d.Retire) == 0
}

// roundStartTime は秒の小数値を保存単位の整数秒へ丸める。
func roundStartTime(startTime float64) int {
	return int(math.Round(startTime))
}

// diffChapters は保存済みチャプターとパース結果の差分を計算する。
// 同一性は整数秒に丸めた開始時刻で判定する。
//   - パース結果にのみある開始時刻 → Create
//   - 両方にあり内容が異なる → Update（内容が同じなら何もしない）
//   - 保存済みにのみある開始時刻 → Retire（削除ではなく非公開化の対象）
//
// パース結果内で開始時刻が重複した場合は最初の1件だけを採用する。
func diffChapters(stored []*model.MediaRef, parsed []model.ParsedChapter) Diff {
	storedByStart := make(map[int]*model.MediaRef, len(stored))
	for _, ref := range stored {
		if _, ok := storedByStart[ref.StartTime]; !ok {
			storedByStart[ref.StartTime] = ref
		}
	}

	var diff Diff
	parsedStarts := make(map[int]bool, len(parsed))
	for _, chapter := range parsed {
		start := roundStartTime(chapter.StartTime)
		if parsedStarts[start] {
			continue
		}
		parsedStarts[start] = true

		ref, ok := storedByStart[start]
		if !ok {
			diff.Create = append(diff.Create, chapter)
			continue
		}
		if chapterFieldsDiffer(ref, chapter) {
			diff.Update = append(diff.Update, UpdateOp{Stored: ref, Parsed: chapter})
		}
	}

	for _, ref := range stored {
		if !parsedStarts[ref.StartTime] {
			diff.Retire = append(diff.Retire, ref)
		}
	}

	return diff
}

// chapterFieldsDiffer は保存済みチャプターとパース結果の内容差を判定する。
// 差がない場合に更新を発行しないことで、同一入力に対する再実行を無操作にする。
func chapterFieldsDiffer(ref *model.MediaRef, chapter model.ParsedChapter) bool {
	return ref.Title != chapter.Title ||
		ref.ImageURL != chapter.ImageURL ||
		ref.LinkURL != chapter.LinkURL
}
