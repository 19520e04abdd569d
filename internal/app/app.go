// Package app はアプリケーションの起動とワイヤリングを提供する。
// serve / worker / migrate / healthcheck の4つの起動モードを持つ。
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
	"golang.org/x/time/rate"

	"github.com/hitoshi/watchlog/internal/catalog"
	"github.com/hitoshi/watchlog/internal/config"
	"github.com/hitoshi/watchlog/internal/database"
	"github.com/hitoshi/watchlog/internal/handler"
	"github.com/hitoshi/watchlog/internal/logger"
	"github.com/hitoshi/watchlog/internal/metadata"
	"github.com/hitoshi/watchlog/internal/metrics"
	"github.com/hitoshi/watchlog/internal/middleware"
	"github.com/hitoshi/watchlog/internal/repository"
	"github.com/hitoshi/watchlog/internal/security"
	"github.com/hitoshi/watchlog/internal/social"
	"github.com/hitoshi/watchlog/internal/stats"
	"github.com/hitoshi/watchlog/internal/watchstate"
	refreshpkg "github.com/hitoshi/watchlog/internal/worker/refresh"
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
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
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
	// 1. DB接続（起動直後のDB未準備に備えてPingをリトライする）
	connectCtx, connectCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer connectCancel()

	db, err := database.Connect(connectCtx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	titleRepo := repository.NewPostgresTitleRepo(db)
	entryRepo := repository.NewPostgresWatchStateRepo(db)
	followRepo := repository.NewPostgresFollowRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. 外部メタデータゲートウェイの初期化
	// SSRF防止付きHTTPクライアントと概要サニタイザーを組み込む
	guard := security.NewOutboundGuard()
	sanitizer := security.NewDescriptionSanitizer()
	gateway := metadata.NewClient(
		cfg.MetadataAPIBaseURL,
		cfg.MetadataAPIKey,
		guard.NewSafeClient(cfg.GatewayTimeout),
		sanitizer,
		collector,
		slog.Default(),
	)

	// 5. ドメインサービスの初期化
	catalogService := catalog.NewService(titleRepo, entryRepo, userRepo, gateway, collector)
	watchStateService := watchstate.NewService(entryRepo)
	socialService := social.NewService(followRepo, userRepo)
	statsService := stats.NewService(entryRepo, followRepo, userRepo)

	// 6. ルーターの構築
	deps := &handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       middleware.NewRateLimiter(rateLimiterConfig(cfg)),
		Logger:            slog.Default(),

		CatalogService:    catalogService,
		TitleService:      catalogService,
		WatchStateService: watchStateService,
		SocialService:     socialService,
		StatsService:      statsService,

		MetricsHandler: metrics.Handler(registry),
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
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

// runWorker はメタデータリフレッシュワーカーモードで起動する。
// DB接続を開き、鮮度切れタイトルの定期リフレッシュを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	connectCtx, connectCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer connectCancel()

	db, err := database.Connect(connectCtx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. リポジトリ・メトリクスの初期化
	titleRepo := repository.NewPostgresTitleRepo(db)
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. ゲートウェイの初期化
	guard := security.NewOutboundGuard()
	sanitizer := security.NewDescriptionSanitizer()
	gateway := metadata.NewClient(
		cfg.MetadataAPIBaseURL,
		cfg.MetadataAPIKey,
		guard.NewSafeClient(cfg.GatewayTimeout),
		sanitizer,
		collector,
		slog.Default(),
	)

	// 4. リフレッシャーの初期化
	refresher := refreshpkg.NewRefresher(
		titleRepo, gateway, collector, slog.Default(),
		refreshpkg.Config{
			StaleAfter:     cfg.RefreshStaleAfter,
			BatchSize:      cfg.RefreshBatchSize,
			MaxConcurrency: cfg.RefreshMaxConcurrent,
		},
	)

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
		slog.Duration("refresh_interval", cfg.RefreshInterval),
		slog.Duration("stale_after", cfg.RefreshStaleAfter),
		slog.Int("max_concurrent", cfg.RefreshMaxConcurrent),
	)

	// リフレッシャーをメインgoroutineで実行（ブロッキング）
	refresher.Start(ctx, cfg.RefreshInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
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

// rateLimiterConfig は運用設定（req/min単位）からレート制限設定を組み立てる。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rlCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rlCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rlCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitIngest > 0 {
		rlCfg.IngestRate = rate.Limit(float64(cfg.RateLimitIngest) / 60.0)
		rlCfg.IngestBurst = cfg.RateLimitIngest
	}
	return rlCfg
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
