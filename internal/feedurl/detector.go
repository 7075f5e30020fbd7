// Package feedurl はフィードURLの解決とポッドキャストへの紐付けを提供する。
package feedurl

import (
	"bytes"
	"mime"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// FeedCandidate はHTMLページから検出されたフィード候補を表す。
type FeedCandidate struct {
	URL   string
	Title string
}

// Detector はポッドキャストフィードの自動検出機能を提供する。
// 直接フィードの判定とHTMLの<head>からのフィードリンク検出を行う。
type Detector struct{}

// NewDetector はDetectorの新しいインスタンスを生成する。
func NewDetector() *Detector {
	return &Detector{}
}

// feedContentTypes はフィードとして認識するContent-Type。
var feedContentTypes = []string{
	"application/rss+xml",
	"application/atom+xml",
}

// xmlContentTypes はXMLとして認識するContent-Type（ボディ解析が必要）。
var xmlContentTypes = []string{
	"text/xml",
	"application/xml",
}

// IsDirectFeed はContent-Typeとボディから、レスポンスがフィードそのものかを判定する。
func (d *Detector) IsDirectFeed(contentType string, body []byte) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(strings.Split(contentType, ";")[0])
	}
	mediaType = strings.ToLower(mediaType)

	for _, feedCT := range feedContentTypes {
		if mediaType == feedCT {
			return true
		}
	}

	isXML := false
	for _, xmlCT := range xmlContentTypes {
		if mediaType == xmlCT {
			isXML = true
			break
		}
	}
	if !isXML || len(body) == 0 {
		return false
	}

	return isFeedXML(body)
}

// isFeedXML はXMLボディの先頭部分からRSS/Atomフィードかを判定する。
func isFeedXML(body []byte) bool {
	// XMLプロローグとルート要素が含まれるのに先頭4KBで十分
	checkSize := 4096
	if len(body) < checkSize {
		checkSize = len(body)
	}
	prefix := strings.ToLower(string(body[:checkSize]))

	if strings.Contains(prefix, "<rss") || strings.Contains(prefix, "<rdf:rdf") {
		return true
	}
	return strings.Contains(prefix, "<feed") && strings.Contains(prefix, "http://www.w3.org/2005/atom")
}

// ParseFeedLinksFromHTML はHTMLの<head>からフィードリンクを検出する。
// rel="alternate" かつフィードContent-Typeの<link>要素のみを対象とし、
// 相対URLはbaseURLを基準に絶対URLへ解決する。
func (d *Detector) ParseFeedLinksFromHTML(htmlBody []byte, baseURL string) []FeedCandidate {
	var candidates []FeedCandidate

	baseU, err := url.Parse(baseURL)
	if err != nil {
		return candidates
	}

	tokenizer := html.NewTokenizer(bytes.NewReader(htmlBody))
	inHead := false

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return candidates

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			tagName := string(tn)

			if tagName == "head" {
				inHead = true
				continue
			}
			if tagName == "body" {
				return candidates
			}
			if !inHead || tagName != "link" || !hasAttr {
				continue
			}

			var rel, linkType, href, title string
			for {
				key, val, more := tokenizer.TagAttr()
				switch strings.ToLower(string(key)) {
				case "rel":
					rel = strings.ToLower(string(val))
				case "type":
					linkType = strings.ToLower(string(val))
				case "href":
					href = string(val)
				case "title":
					title = string(val)
				}
				if !more {
					break
				}
			}

			if rel != "alternate" || href == "" {
				continue
			}
			isFeedType := false
			for _, feedCT := range feedContentTypes {
				if linkType == feedCT {
					isFeedType = true
					break
				}
			}
			if !isFeedType {
				continue
			}

			ref, err := url.Parse(href)
			if err != nil {
				continue
			}
			resolved := baseU.ResolveReference(ref)
			if resolved.Scheme != "http" && resolved.Scheme != "https" {
				continue
			}

			candidates = append(candidates, FeedCandidate{
				URL:   resolved.String(),
				Title: title,
			})

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "head" {
				return candidates
			}
		}
	}
}
