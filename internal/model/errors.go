// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: catalog, validation, search, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeEpisodeNotFound   = "EPISODE_NOT_FOUND"
	ErrCodePodcastNotFound   = "PODCAST_NOT_FOUND"
	ErrCodeInvalidQuery      = "INVALID_QUERY"
	ErrCodeSearchUnavailable = "SEARCH_UNAVAILABLE"
	ErrCodeInvalidURL        = "INVALID_URL"
	ErrCodeSSRFBlocked       = "SSRF_BLOCKED"
)

// NewEpisodeNotFoundError はエピソード未検出エラーを生成する。
// 非公開エピソードへの未認証アクセスも同じエラーとして扱う。
func NewEpisodeNotFoundError(episodeID string) *APIError {
	return &APIError{
		Code:     ErrCodeEpisodeNotFound,
		Message:  fmt.Sprintf("指定されたエピソードが見つかりません: %s", episodeID),
		Category: "catalog",
		Action:   "エピソードIDを確認してください。",
	}
}

// NewPodcastNotFoundError はポッドキャスト未検出エラーを生成する。
func NewPodcastNotFoundError(podcastID string) *APIError {
	return &APIError{
		Code:     ErrCodePodcastNotFound,
		Message:  fmt.Sprintf("指定されたポッドキャストが見つかりません: %s", podcastID),
		Category: "catalog",
		Action:   "ポッドキャストIDを確認してください。",
	}
}

// NewInvalidQueryError は検索語が安全性検証に失敗した場合のエラーを生成する。
func NewInvalidQueryError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidQuery,
		Message:  fmt.Sprintf("無効な検索クエリです: %s", reason),
		Category: "validation",
		Action:   "検索語は200文字以内で、使用できない記号を含めないでください。",
	}
}

// NewSearchUnavailableError は検索エンジンへの問い合わせに失敗した場合のエラーを生成する。
// 検索経由の一覧は部分的な結果を返さず、このエラーをそのまま呼び出し元へ返す。
func NewSearchUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeSearchUnavailable,
		Message:  "検索エンジンへの問い合わせに失敗しました。",
		Category: "search",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewSSRFBlockedError はSSRFブロックエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "セキュリティポリシーにより、指定されたURLへのアクセスがブロックされました。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを入力してください。ローカルネットワークやプライベートIPへのアクセスは許可されていません。",
	}
}
