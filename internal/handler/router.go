package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Trolladactyl/podverse-api/internal/metrics"
	"github.com/Trolladactyl/podverse-api/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	MetricsRegistry   *prometheus.Registry

	// サービス
	EpisodeService EpisodeServiceInterface
	ChapterService ChapterServiceInterface
	PodcastService PodcastServiceInterface
	FeedUrlService FeedUrlServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → RateLimit
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.Metrics))

	episodeHandler := NewEpisodeHandler(deps.EpisodeService, deps.ChapterService)
	podcastHandler := NewPodcastHandler(deps.PodcastService)
	feedURLHandler := NewFeedUrlHandler(deps.FeedUrlService)

	// --- 運用ルート（レート制限の対象外） ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	if deps.MetricsRegistry != nil {
		r.Handle("/metrics", metrics.SetupMetricsRoute(deps.MetricsRegistry))
	}

	// --- APIルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.Middleware())

		// エピソードカタログ
		r.Route("/api/v1/episode", func(r chi.Router) {
			r.Get("/", episodeHandler.ListEpisodes)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", episodeHandler.GetEpisode)
				r.Get("/retrieve-latest-chapters", episodeHandler.RetrieveLatestChapters)
			})
		})

		// ポッドキャストカタログ
		r.Route("/api/v1/podcast", func(r chi.Router) {
			r.Get("/", podcastHandler.ListPodcasts)
			r.Get("/metadata", podcastHandler.GetMetadata)
			r.Get("/{id}", podcastHandler.GetPodcast)
		})

		// フィードURL解決
		r.Route("/api/v1/feed-url", func(r chi.Router) {
			r.Post("/resolve", feedURLHandler.ResolveFeedURLs)
			r.Post("/discover", feedURLHandler.DiscoverFeedURL)
		})
	})

	return r
}
