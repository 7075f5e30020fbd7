package security

import (
	"strings"
	"testing"
)

// TestContentSanitizer_SanitizeText は全タグ除去ポリシーを検証する。
func TestContentSanitizer_SanitizeText(t *testing.T) {
	s := NewContentSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキスト", "Introduction", "Introduction"},
		{"タグ除去", "<b>Chapter</b> 1", "Chapter 1"},
		{"scriptタグ除去", `<script>alert(1)</script>Intro`, "Intro"},
		{"前後の空白除去", "  Intro  ", "Intro"},
		{"空文字列", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.SanitizeText(tt.input); got != tt.want {
				t.Errorf("SanitizeText(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestContentSanitizer_SanitizeText_Idempotent は同一入力に同一出力を返すことを検証する。
func TestContentSanitizer_SanitizeText_Idempotent(t *testing.T) {
	s := NewContentSanitizer()
	input := "<em>Chapter</em> & more"

	first := s.SanitizeText(input)
	second := s.SanitizeText(first)
	if s.SanitizeText(input) != first {
		t.Error("同一入力に対する出力が安定していません")
	}
	if second != first {
		t.Errorf("冪等ではありません: %q -> %q", first, second)
	}
}

// TestContentSanitizer_SanitizeHTML は許可リストベースのHTMLサニタイズを検証する。
func TestContentSanitizer_SanitizeHTML(t *testing.T) {
	s := NewContentSanitizer()

	// 許可タグは残る
	got := s.SanitizeHTML("<p>desc <strong>bold</strong></p>")
	if !strings.Contains(got, "<strong>bold</strong>") {
		t.Errorf("許可タグが除去されました: %q", got)
	}

	// scriptタグは除去される
	got = s.SanitizeHTML(`<p>ok</p><script>alert(1)</script>`)
	if strings.Contains(got, "script") {
		t.Errorf("scriptタグが残っています: %q", got)
	}

	// imgはhttpsのみ許可
	got = s.SanitizeHTML(`<img src="http://example.com/x.png"><img src="https://example.com/y.png">`)
	if strings.Contains(got, "x.png") {
		t.Errorf("httpスキームのimgが残っています: %q", got)
	}
	if !strings.Contains(got, "y.png") {
		t.Errorf("httpsスキームのimgが除去されました: %q", got)
	}
}
