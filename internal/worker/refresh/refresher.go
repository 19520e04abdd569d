// Package refresh はカタログメタデータのバックグラウンド更新処理を提供する。
// 最終更新から一定期間を経過したタイトルを定期的に再取得し、
// 外部プロバイダ側の属性変更をカタログに反映する。
package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/watchlog/internal/metadata"
	"github.com/hitoshi/watchlog/internal/metrics"
	"github.com/hitoshi/watchlog/internal/model"
	"github.com/hitoshi/watchlog/internal/repository"
)

// Config はRefresherの動作設定。
type Config struct {
	StaleAfter     time.Duration // この期間更新されていないタイトルが対象
	BatchSize      int           // 1サイクルで処理する最大タイトル数
	MaxConcurrency int           // 再取得の最大並列数
}

// Refresher は鮮度切れタイトルのメタデータ再取得を行う。
// 定期ティッカーで対象タイトルを取得し、semaphoreパターンで
// 最大並列数を制御しながらプロバイダへの再取得を実行する。
//
// 個々のタイトルの失敗はサイクル全体を止めない。失敗したタイトルは
// updated_atが据え置かれるため、次のサイクルで再び対象になる。
type Refresher struct {
	titleRepo repository.TitleRepository
	gateway   metadata.Gateway
	collector metrics.MetricsCollector
	logger    *slog.Logger
	config    Config
}

// NewRefresher はRefresherの新しいインスタンスを生成する。
// StaleAfterが0以下の場合は7日、BatchSizeが0以下の場合は50、
// MaxConcurrencyが0以下の場合は5を使用する。
func NewRefresher(
	titleRepo repository.TitleRepository,
	gateway metadata.Gateway,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	config Config,
) *Refresher {
	if config.StaleAfter <= 0 {
		config.StaleAfter = 7 * 24 * time.Hour
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 50
	}
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 5
	}
	return &Refresher{
		titleRepo: titleRepo,
		gateway:   gateway,
		collector: collector,
		logger:    logger,
		config:    config,
	}
}

// Start は指定間隔のティッカーでリフレッシュループを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (r *Refresher) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("メタデータリフレッシュワーカーを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("stale_after", r.config.StaleAfter),
		slog.Int("batch_size", r.config.BatchSize),
		slog.Int("max_concurrency", r.config.MaxConcurrency),
	)

	// 起動直後に1回実行
	if err := r.RunOnce(ctx); err != nil {
		r.logger.Error("リフレッシュサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("メタデータリフレッシュワーカーを停止しました")
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.logger.Error("リフレッシュサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は鮮度切れタイトルを1バッチ取得し、並列で再取得を実行する。
// semaphoreパターンで最大並列数を制御する。
func (r *Refresher) RunOnce(ctx context.Context) error {
	start := time.Now()

	olderThan := time.Now().Add(-r.config.StaleAfter)
	titles, err := r.titleRepo.ListStale(ctx, olderThan, r.config.BatchSize)
	if err != nil {
		return err
	}

	if len(titles) == 0 {
		r.logger.Info("リフレッシュ対象のタイトルはありません")
		return nil
	}

	r.logger.Info("リフレッシュサイクルを開始します",
		slog.Int("title_count", len(titles)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, r.config.MaxConcurrency)
	var wg sync.WaitGroup

	for _, title := range titles {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(t *model.Title) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if err := r.RefreshTitle(ctx, t); err != nil {
				r.logger.Error("タイトルのリフレッシュに失敗しました",
					slog.String("title_id", t.ID),
					slog.Int64("external_id", t.ExternalID),
					slog.String("media_type", string(t.MediaType)),
					slog.String("error", err.Error()),
				)
			}
		}(title)
	}

	wg.Wait()

	duration := time.Since(start)
	r.logger.Info("リフレッシュサイクルが完了しました",
		slog.Int("title_count", len(titles)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// RefreshTitle は単一タイトルの属性をプロバイダから再取得して上書きする。
// 一意キー（external_id, media_type）と既に設定済みの
// secondary_external_idは変更しない。クロスリファレンスIDが未設定の
// 場合のみ再取得を試みる。
// 失敗した場合updated_atは据え置かれ、次サイクルで再試行される。
func (r *Refresher) RefreshTitle(ctx context.Context, title *model.Title) error {
	attrs, err := r.gateway.FetchTitleAttributes(ctx, title.ExternalID, title.MediaType)
	if err != nil {
		r.collector.RecordRefreshFailure()
		return err
	}

	title.Name = attrs.Name
	title.PosterURL = attrs.PosterURL
	title.BackdropURL = attrs.BackdropURL
	title.Description = attrs.Description
	title.Directors = attrs.Directors
	title.ReleaseDate = attrs.ReleaseDate
	title.Genres = model.JoinGenres(attrs.Genres)
	// updated_atを進めないと次サイクルで再び鮮度切れ扱いになる
	title.UpdatedAt = time.Now()

	if title.SecondaryExternalID == "" {
		secondaryID, err := r.gateway.FetchSecondaryExternalID(ctx, title.ExternalID, title.MediaType)
		if err != nil {
			r.collector.RecordRefreshFailure()
			return err
		}
		title.SecondaryExternalID = secondaryID
	}

	if err := r.titleRepo.Update(ctx, title); err != nil {
		r.collector.RecordRefreshFailure()
		return err
	}

	r.collector.RecordRefreshSuccess()
	return nil
}
