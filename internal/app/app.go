// Package app はアプリケーションの起動とワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Trolladactyl/podverse-api/internal/chapters"
	"github.com/Trolladactyl/podverse-api/internal/config"
	"github.com/Trolladactyl/podverse-api/internal/database"
	"github.com/Trolladactyl/podverse-api/internal/episode"
	"github.com/Trolladactyl/podverse-api/internal/feedurl"
	"github.com/Trolladactyl/podverse-api/internal/handler"
	"github.com/Trolladactyl/podverse-api/internal/logger"
	"github.com/Trolladactyl/podverse-api/internal/metrics"
	"github.com/Trolladactyl/podverse-api/internal/middleware"
	"github.com/Trolladactyl/podverse-api/internal/podcast"
	"github.com/Trolladactyl/podverse-api/internal/repository"
	"github.com/Trolladactyl/podverse-api/internal/search"
	"github.com/Trolladactyl/podverse-api/internal/security"
	"github.com/Trolladactyl/podverse-api/internal/worker/cleanup"
	parsepkg "github.com/Trolladactyl/podverse-api/internal/worker/parse"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	episodeRepo := repository.NewPostgresEpisodeRepo(db)
	podcastRepo := repository.NewPostgresPodcastRepo(db)
	mediaRefRepo := repository.NewPostgresMediaRefRepo(db)
	recentRepo := repository.NewPostgresRecentEpisodeRepo(db)
	feedURLRepo := repository.NewPostgresFeedUrlRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 5. 検索クライアントの初期化
	searchClient := search.NewClient(
		&http.Client{Timeout: cfg.SearchTimeout},
		slog.Default(), cfg.SearchURL,
	)

	// 6. ドメインサービスの初期化
	episodeService := episode.NewService(episodeRepo, recentRepo, searchClient, collector, slog.Default())
	podcastService := podcast.NewService(podcastRepo, searchClient, collector, slog.Default())

	chapterFetcher := chapters.NewFetcher(
		ssrfGuard.NewSafeClient(cfg.ChaptersFetchTimeout, cfg.ChaptersFetchMaxSize),
		sanitizer, cfg.ChaptersFetchMaxSize,
	)
	chapterApplier := chapters.NewApplier(mediaRefRepo, cfg.SuperUserID, collector, slog.Default())
	chapterService := chapters.NewService(
		episodeRepo, mediaRefRepo, chapterFetcher, chapterApplier,
		cfg.ChaptersRefreshInterval, collector, slog.Default(),
	)

	feedURLService := feedurl.NewService(
		feedURLRepo, feedurl.NewDetector(), ssrfGuard,
		ssrfGuard.NewSafeClient(cfg.FetchTimeout, cfg.FetchMaxSize),
		cfg.FetchMaxSize, slog.Default(),
	)

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.DefaultRateLimiterConfig(cfg.RateLimitGeneral),
		slog.Default(),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		Metrics:           collector,
		MetricsRegistry:   registry,

		EpisodeService: episodeService,
		ChapterService: chapterService,
		PodcastService: podcastService,
		FeedUrlService: feedURLService,
	})

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、フィード取り込みスケジューラとクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	episodeRepo := repository.NewPostgresEpisodeRepo(db)
	podcastRepo := repository.NewPostgresPodcastRepo(db)
	feedURLRepo := repository.NewPostgresFeedUrlRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 5. フェッチャーの初期化
	fetchLog := logger.WithComponent("feed-fetch")
	upsertSvc := parsepkg.NewEpisodeUpsertService(episodeRepo, sanitizer, fetchLog)
	fetcher := parsepkg.NewFetcher(
		feedURLRepo, podcastRepo, upsertSvc, ssrfGuard,
		collector, fetchLog, cfg.FetchTimeout, cfg.FetchMaxSize,
	)

	// 6. スケジューラの初期化
	scheduler := parsepkg.NewScheduler(
		feedURLRepo, fetcher, fetchLog, cfg.FetchMaxConcurrent,
	)

	// 7. クリーンアップジョブの初期化
	cleanupJob := cleanup.NewCleanupJob(episodeRepo, collector, logger.WithComponent("cleanup"))

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("fetch_interval", cfg.FetchInterval),
		slog.Int("max_concurrent", cfg.FetchMaxConcurrent),
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
	)

	// クリーンアップジョブをバックグラウンドで定期実行
	go cleanupJob.Start(ctx, cfg.CleanupInterval)

	// フィード取り込みスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.FetchInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
