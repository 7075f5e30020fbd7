package app

// Command は起動サブコマンドを表す。
type Command string

const (
	CommandServe       Command = "serve"       // APIサーバー
	CommandWorker      Command = "worker"      // フィード取り込み・クリーンアップワーカー
	CommandMigrate     Command = "migrate"     // スキーママイグレーション
	CommandHealthcheck Command = "healthcheck" // Dockerヘルスチェック用（distrolessにはシェルがない）
)

// ParseCommand は引数の先頭要素をサブコマンドとして解釈する。
// 未指定または未知のコマンドはserveにフォールバックする。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch cmd := Command(args[0]); cmd {
	case CommandServe, CommandWorker, CommandMigrate, CommandHealthcheck:
		return cmd
	default:
		return CommandServe
	}
}
