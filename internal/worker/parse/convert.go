package parse

import (
	"strconv"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/Trolladactyl/podverse-api/internal/model"
)

// convertFeedItems はgofeedのアイテムをmodel.ParsedEpisodeに変換する。
// メディアエンクロージャを持たないアイテムはエピソードとして扱えないため除外する。
func convertFeedItems(items []*gofeed.Item) []model.ParsedEpisode {
	episodes := make([]model.ParsedEpisode, 0, len(items))

	for _, item := range items {
		if item == nil {
			continue
		}

		mediaURL, mediaType := selectEnclosure(item.Enclosures)
		if mediaURL == "" {
			continue
		}

		parsed := model.ParsedEpisode{
			GUID:        item.GUID,
			Title:       item.Title,
			Description: item.Description,
			MediaURL:    mediaURL,
			MediaType:   mediaType,
			LinkURL:     item.Link,
			ChaptersURL: chaptersURLFromExtensions(item),
		}

		if item.Content != "" {
			parsed.Description = item.Content
		}

		if item.Image != nil {
			parsed.ImageURL = item.Image.URL
		}

		if item.ITunesExt != nil {
			parsed.Duration = parseDuration(item.ITunesExt.Duration)
			if parsed.ImageURL == "" {
				parsed.ImageURL = item.ITunesExt.Image
			}
		}

		if item.PublishedParsed != nil {
			t := *item.PublishedParsed
			parsed.PubDate = &t
		} else if item.UpdatedParsed != nil {
			t := *item.UpdatedParsed
			parsed.PubDate = &t
		}

		episodes = append(episodes, parsed)
	}

	return episodes
}

// selectEnclosure はエンクロージャからメディアURLとMIMEタイプを選択する。
// 複数ある場合はaudio/videoタイプを優先し、なければ先頭を使用する。
func selectEnclosure(enclosures []*gofeed.Enclosure) (string, string) {
	var fallbackURL, fallbackType string

	for _, enc := range enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if strings.HasPrefix(enc.Type, "audio") || strings.HasPrefix(enc.Type, "video") {
			return enc.URL, enc.Type
		}
		if fallbackURL == "" {
			fallbackURL = enc.URL
			fallbackType = enc.Type
		}
	}

	return fallbackURL, fallbackType
}

// chaptersURLFromExtensions はpodcast名前空間のchapters拡張からURLを取得する。
// gofeedは未知の名前空間をExtensionsに格納する。
func chaptersURLFromExtensions(item *gofeed.Item) string {
	podcastExt, ok := item.Extensions["podcast"]
	if !ok {
		return ""
	}
	chapters, ok := podcastExt["chapters"]
	if !ok || len(chapters) == 0 {
		return ""
	}
	return chapters[0].Attrs["url"]
}

// parseDuration はiTunes形式の再生時間を秒に変換する。
// "HH:MM:SS"、"MM:SS"、秒数そのままの3形式に対応し、解析できない場合は0を返す。
func parseDuration(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}

	parts := strings.Split(raw, ":")
	if len(parts) > 3 {
		return 0
	}

	total := 0
	for _, part := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || n < 0 {
			return 0
		}
		total = total*60 + n
	}
	return total
}
