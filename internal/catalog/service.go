// Package catalog はカタログ重複排除と取り込み調整のドメインロジックを提供する。
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/watchlog/internal/metadata"
	"github.com/hitoshi/watchlog/internal/metrics"
	"github.com/hitoshi/watchlog/internal/model"
	"github.com/hitoshi/watchlog/internal/repository"
)

// Service は取り込みコーディネータのサービス層。
// ウォッチリスト追加の全フロー（カタログ検索 → 外部メタデータ取得 →
// タイトル登録 → 視聴状態作成）を調整する。
//
// 同じ外部作品に対する並行追加はストレージ層の一意制約で検出され、
// 競争に敗れた側は既存レコードの再読込で回復する。このためタイトルの
// 二重登録は発生せず、呼び出し元にConflictが露出することもない。
type Service struct {
	titleRepo repository.TitleRepository
	entryRepo repository.WatchStateRepository
	userRepo  repository.UserRepository
	gateway   metadata.Gateway
	collector metrics.MetricsCollector
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	titleRepo repository.TitleRepository,
	entryRepo repository.WatchStateRepository,
	userRepo repository.UserRepository,
	gateway metadata.Gateway,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		titleRepo: titleRepo,
		entryRepo: entryRepo,
		userRepo:  userRepo,
		gateway:   gateway,
		collector: collector,
	}
}

// AddToWatchlist は外部IDで指定された作品をユーザーのウォッチリストに追加する。
// カタログに未登録の場合は外部メタデータを取得してタイトルを登録する。
// メタデータ取得は全件成功か全件失敗のどちらかで、部分的な書き込みは行わない。
// 既にウォッチリストに存在する場合は既存の視聴状態をそのまま返し、
// ステータスや進捗には触れない（冪等）。
//
// initialStatus が空の場合、ユーザーのデフォルトステータス、
// それも未設定なら planned が使用される。
// 戻り値の created は視聴状態が新規作成されたかを示す。
func (s *Service) AddToWatchlist(
	ctx context.Context,
	userID string,
	externalID int64,
	mediaType model.MediaType,
	initialStatus model.WatchStatus,
) (*model.WatchStateEntry, *model.Title, bool, error) {
	if !model.ValidMediaType(mediaType) {
		return nil, nil, false, model.NewInvalidMediaTypeError(string(mediaType))
	}
	if initialStatus != "" && !model.ValidWatchStatus(initialStatus) {
		return nil, nil, false, model.NewInvalidStatusError(string(initialStatus))
	}

	title, err := s.ensureTitle(ctx, externalID, mediaType)
	if err != nil {
		s.collector.RecordIngestFailure(failureReason(err))
		return nil, nil, false, err
	}

	entry, created, err := s.ensureEntry(ctx, userID, title.ID, initialStatus)
	if err != nil {
		s.collector.RecordIngestFailure(failureReason(err))
		return nil, nil, false, err
	}

	s.collector.RecordIngestSuccess(string(mediaType))
	return entry, title, created, nil
}

// GetTitle はカタログのタイトル詳細を取得する。
// 内部IDのほか、クロスリファレンスID（例: tt0133093）での逆引きにも対応する。
func (s *Service) GetTitle(ctx context.Context, titleID string) (*model.Title, error) {
	var title *model.Title
	var err error

	if _, uuidErr := uuid.Parse(titleID); uuidErr == nil {
		title, err = s.titleRepo.FindByID(ctx, titleID)
	} else {
		title, err = s.titleRepo.FindBySecondaryID(ctx, titleID)
	}
	if err != nil {
		return nil, fmt.Errorf("タイトルの取得に失敗しました: %w", err)
	}
	if title == nil {
		return nil, model.NewTitleNotFoundError(titleID)
	}
	return title, nil
}

// ensureTitle は(external_id, media_type)のタイトルをカタログに存在させる。
// フロー: 既存検索 → 外部メタデータ取得（属性 + クロスリファレンスID、
// 全件成功が必須） → 挿入 → 一意制約違反時は既存レコードを再読込。
func (s *Service) ensureTitle(ctx context.Context, externalID int64, mediaType model.MediaType) (*model.Title, error) {
	existing, err := s.titleRepo.FindByExternalID(ctx, externalID, mediaType)
	if err != nil {
		return nil, fmt.Errorf("タイトルの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	// 外部メタデータ取得。属性とクロスリファレンスIDの両方が揃わない限り
	// カタログには何も書き込まない。
	attrs, err := s.gateway.FetchTitleAttributes(ctx, externalID, mediaType)
	if err != nil {
		return nil, err
	}
	secondaryID, err := s.gateway.FetchSecondaryExternalID(ctx, externalID, mediaType)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	title := &model.Title{
		ID:                  uuid.New().String(),
		ExternalID:          externalID,
		SecondaryExternalID: secondaryID,
		MediaType:           mediaType,
		Name:                attrs.Name,
		PosterURL:           attrs.PosterURL,
		BackdropURL:         attrs.BackdropURL,
		Description:         attrs.Description,
		Directors:           attrs.Directors,
		ReleaseDate:         attrs.ReleaseDate,
		Genres:              model.JoinGenres(attrs.Genres),
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.titleRepo.Create(ctx, title); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// 並行する挿入競争に敗れた。勝者のレコードを再読込する。
			return s.recoverTitleConflict(ctx, externalID, mediaType, secondaryID)
		}
		return nil, fmt.Errorf("タイトルの保存に失敗しました: %w", err)
	}

	s.collector.RecordTitleCreated(string(mediaType))
	return title, nil
}

// recoverTitleConflict は一意制約違反後の既存タイトル再読込を行う。
// 違反は(external_id, media_type)かsecondary_external_idのどちらの
// 制約でも起こりうるため、両方のキーで検索する。
func (s *Service) recoverTitleConflict(ctx context.Context, externalID int64, mediaType model.MediaType, secondaryID string) (*model.Title, error) {
	s.collector.RecordConflictRecovered()

	existing, err := s.titleRepo.FindByExternalID(ctx, externalID, mediaType)
	if err != nil {
		return nil, fmt.Errorf("競合回復のタイトル再読込に失敗しました: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	if secondaryID != "" {
		existing, err = s.titleRepo.FindBySecondaryID(ctx, secondaryID)
		if err != nil {
			return nil, fmt.Errorf("競合回復のタイトル再読込に失敗しました: %w", err)
		}
		if existing != nil {
			return existing, nil
		}
	}

	return nil, fmt.Errorf("一意制約違反後にタイトルが見つかりません: external_id=%d media_type=%s", externalID, mediaType)
}

// ensureEntry は(user_id, title_id)の視聴状態を存在させる。
// 既に存在する場合は一切変更せず既存レコードを返す。
func (s *Service) ensureEntry(ctx context.Context, userID, titleID string, initialStatus model.WatchStatus) (*model.WatchStateEntry, bool, error) {
	existing, err := s.entryRepo.FindByUserAndTitle(ctx, userID, titleID)
	if err != nil {
		return nil, false, fmt.Errorf("視聴状態の検索に失敗しました: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	status, err := s.resolveInitialStatus(ctx, userID, initialStatus)
	if err != nil {
		return nil, false, err
	}

	now := time.Now()
	entry := &model.WatchStateEntry{
		ID:        uuid.New().String(),
		UserID:    userID,
		TitleID:   titleID,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.entryRepo.Create(ctx, entry); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// 同一ユーザーの並行追加。既存レコードをそのまま返す。
			s.collector.RecordConflictRecovered()
			existing, err := s.entryRepo.FindByUserAndTitle(ctx, userID, titleID)
			if err != nil {
				return nil, false, fmt.Errorf("競合回復の視聴状態再読込に失敗しました: %w", err)
			}
			if existing == nil {
				return nil, false, fmt.Errorf("一意制約違反後に視聴状態が見つかりません: user_id=%s title_id=%s", userID, titleID)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("視聴状態の保存に失敗しました: %w", err)
	}

	return entry, true, nil
}

// resolveInitialStatus は新規視聴状態の初期ステータスを決定する。
// 優先順位: リクエスト指定 > ユーザーのデフォルト設定 > planned。
func (s *Service) resolveInitialStatus(ctx context.Context, userID string, initialStatus model.WatchStatus) (model.WatchStatus, error) {
	if initialStatus != "" {
		return initialStatus, nil
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return "", model.NewUserNotFoundError()
	}
	if user.DefaultStatus != "" && model.ValidWatchStatus(user.DefaultStatus) {
		return user.DefaultStatus, nil
	}

	return model.StatusPlanned, nil
}

// failureReason はメトリクスラベル用に失敗理由を分類する。
func failureReason(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return strings.ToLower(apiErr.Code)
	}
	return "internal"
}
