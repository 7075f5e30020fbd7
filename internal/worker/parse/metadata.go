package parse

import (
	"strings"
	"time"

	"github.com/Trolladactyl/podverse-api/internal/model"
)

// FeedMetadata はフィードのチャンネルレベルのメタデータを表す。
type FeedMetadata struct {
	Title       string
	Description string
	LinkURL     string
	ImageURL    string
	Updated     *time.Time
}

// applyFeedMetadata はフィードから得たメタデータをポッドキャストに反映する。
// 最新エピソードのタイトルと公開日、動画有無のフラグもここで更新する。
func applyFeedMetadata(p *model.Podcast, meta FeedMetadata, episodes []model.ParsedEpisode, now time.Time) {
	if meta.Title != "" {
		p.Title = meta.Title
		p.SortableTitle = sortableTitle(meta.Title)
	}
	if meta.Description != "" {
		p.Description = meta.Description
	}
	if meta.LinkURL != "" {
		p.LinkURL = meta.LinkURL
	}
	if meta.ImageURL != "" {
		p.ImageURL = meta.ImageURL
	}

	if meta.Updated != nil {
		p.FeedLastUpdated = meta.Updated
	} else {
		t := now
		p.FeedLastUpdated = &t
	}

	p.HasVideo = hasVideoEpisode(episodes)

	if latest := latestEpisode(episodes); latest != nil {
		p.LastEpisodeTitle = latest.Title
		if latest.PubDate != nil {
			t := *latest.PubDate
			p.LastEpisodePubDate = &t
		}
	}
}

// sortableTitle は辞書順ソート用のタイトルを生成する。
// 小文字化し、先頭の冠詞（the/a/an）を除去する。
func sortableTitle(title string) string {
	lowered := strings.ToLower(strings.TrimSpace(title))
	for _, article := range []string{"the ", "a ", "an "} {
		if strings.HasPrefix(lowered, article) {
			return strings.TrimSpace(lowered[len(article):])
		}
	}
	return lowered
}

// hasVideoEpisode はエピソード群に動画メディアが含まれるかを判定する。
func hasVideoEpisode(episodes []model.ParsedEpisode) bool {
	for _, e := range episodes {
		if strings.HasPrefix(e.MediaType, "video") {
			return true
		}
	}
	return false
}

// latestEpisode は公開日が最新のエピソードを返す。
// 公開日を持つエピソードがない場合は先頭を返し、空の場合はnilを返す。
func latestEpisode(episodes []model.ParsedEpisode) *model.ParsedEpisode {
	if len(episodes) == 0 {
		return nil
	}

	latest := &episodes[0]
	for i := range episodes {
		e := &episodes[i]
		if e.PubDate == nil {
			continue
		}
		if latest.PubDate == nil || e.PubDate.After(*latest.PubDate) {
			latest = e
		}
	}
	return latest
}
