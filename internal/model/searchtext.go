package model

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxSearchTextLength は検索語の最大文字数（rune単位）。
const MaxSearchTextLength = 200

// forbiddenSearchRunes は検索エンジンへ渡す前に拒否する記号。
// クエリ構文のメタ文字とHTML断片になりうる文字を保守的に弾く。
const forbiddenSearchRunes = `<>{}[]\;"` + "`"

// ValidateSearchText は検索語の安全性を検証する。
// 不正な場合はINVALID_QUERYのAPIErrorを返す。
func ValidateSearchText(s string) error {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return NewInvalidQueryError("検索語が空です")
	}
	if utf8.RuneCountInString(trimmed) > MaxSearchTextLength {
		return NewInvalidQueryError("検索語が長すぎます")
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return NewInvalidQueryError("制御文字は使用できません")
		}
		if strings.ContainsRune(forbiddenSearchRunes, r) {
			return NewInvalidQueryError("使用できない記号が含まれています")
		}
	}
	return nil
}
