package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/watchlog/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// カタログ・取り込み
	CatalogService CatalogServiceInterface
	TitleService   TitleServiceInterface

	// 視聴状態
	WatchStateService WatchStateServiceInterface

	// フォローグラフ
	SocialService SocialServiceInterface

	// 集計・ディスカバリー
	StatsService StatsServiceInterface

	// Prometheusメトリクスエンドポイント
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Logging → Recovery → Session → RateLimit(General)
//
// ヘルスチェック（/health）とメトリクス（/metrics）は認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// 全ルートに効くミドルウェア
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))

	watchlistHandler := NewWatchlistHandler(deps.CatalogService, deps.WatchStateService)
	titleHandler := NewTitleHandler(deps.TitleService)
	socialHandler := NewSocialHandler(deps.SocialService)
	statsHandler := NewStatsHandler(deps.StatsService)

	// --- 認証不要のルート ---

	r.Get("/health", handleHealthCheck)

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ウォッチリスト管理
		r.Route("/api/watchlist", func(r chi.Router) {
			// POST /api/watchlist - 追加（外部フェッチを伴うため専用レート制限を追加）
			r.With(deps.RateLimiter.IngestionMiddleware()).Post("/", watchlistHandler.AddToWatchlist)

			r.Get("/", watchlistHandler.ListWatchlist)

			r.Route("/{id}", func(r chi.Router) {
				r.Patch("/status", watchlistHandler.UpdateStatus)
				r.Patch("/progress", watchlistHandler.UpdateProgress)
				r.Post("/favourite", watchlistHandler.ToggleFavourite)
				r.Delete("/", watchlistHandler.Remove)
			})
		})

		// カタログ
		r.Get("/api/titles/{id}", titleHandler.GetTitle)

		// ユーザー・フォローグラフ
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me/stats", statsHandler.QuickStats)

			r.Route("/{id}", func(r chi.Router) {
				r.Post("/follow", socialHandler.Follow)
				r.Delete("/follow", socialHandler.Unfollow)
				r.Get("/followers", socialHandler.ListFollowers)
				r.Get("/following", socialHandler.ListFollowing)
			})
		})

		// ディスカバリーフィード
		r.Get("/api/discover", statsHandler.DiscoveryFeed)
	})

	return r
}

// handleHealthCheck はプロセスの生存確認エンドポイント。
// GET /health
func handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
