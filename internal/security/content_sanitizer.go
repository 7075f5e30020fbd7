package security

import (
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService は外部由来コンテンツのサニタイズ機能のインターフェースを定義する。
// フィード/チャプターの取り込み時に使用される。
type ContentSanitizerService interface {
	// SanitizeText はプレーンテキスト扱いの値（チャプタータイトル、エピソードタイトル等）
	// から全てのHTMLタグを除去する。同一入力に対して常に同一出力を返す。
	SanitizeText(raw string) string

	// SanitizeHTML は説明文などのHTMLコンテンツをサニタイズして安全なHTMLを返す。
	// 許可リストに含まれるタグのみを通過させ、script等とon*イベント属性を除去する。
	SanitizeHTML(rawHTML string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type contentSanitizer struct {
	textPolicy *bluemonday.Policy
	htmlPolicy *bluemonday.Policy
}

// NewContentSanitizer はContentSanitizerServiceの新しいインスタンスを生成する。
// テキストポリシーは全タグを除去する。HTMLポリシーの内容:
//   - 許可タグ: p, br, a, ul, ol, li, blockquote, pre, code, strong, em, img
//   - imgのsrc属性: httpsスキームのみ許可
//   - aタグ: target="_blank" と rel="noopener noreferrer" を自動付与
func NewContentSanitizer() *contentSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)
	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)
	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return true
	})

	return &contentSanitizer{
		textPolicy: bluemonday.StrictPolicy(),
		htmlPolicy: p,
	}
}

// SanitizeText はプレーンテキスト扱いの値から全てのHTMLタグを除去する。
func (s *contentSanitizer) SanitizeText(raw string) string {
	return strings.TrimSpace(s.textPolicy.Sanitize(raw))
}

// SanitizeHTML はHTMLコンテンツをサニタイズして安全なHTMLを返す。
func (s *contentSanitizer) SanitizeHTML(rawHTML string) string {
	return s.htmlPolicy.Sanitize(rawHTML)
}
