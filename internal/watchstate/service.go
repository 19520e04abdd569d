// Package watchstate は視聴状態管理のドメインロジックを提供する。
package watchstate

import (
	"context"
	"fmt"
	"time"

	"github.com/hitoshi/watchlog/internal/model"
	"github.com/hitoshi/watchlog/internal/repository"
)

// Service は視聴状態のサービス層。
// ステータス変更、進捗更新、お気に入り切替、削除のビジネスロジックを提供する。
// すべての変更系操作は呼び出しユーザーの所有権を検証する。
type Service struct {
	entryRepo repository.WatchStateRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(entryRepo repository.WatchStateRepository) *Service {
	return &Service{entryRepo: entryRepo}
}

// ListWatchlist はユーザーのウォッチリストをタイトル情報付きで返す。
// statusがnilの場合は全件を返す。
func (s *Service) ListWatchlist(ctx context.Context, userID string, status *model.WatchStatus) ([]model.EntryWithTitle, error) {
	if status != nil && !model.ValidWatchStatus(*status) {
		return nil, model.NewInvalidStatusError(string(*status))
	}

	entries, err := s.entryRepo.ListByUserWithTitle(ctx, userID, status)
	if err != nil {
		return nil, fmt.Errorf("ウォッチリストの取得に失敗しました: %w", err)
	}
	return entries, nil
}

// UpdateStatus は視聴状態のステータスを変更する。
// ステータスはユーザーが宣言するラベルで、どの状態からどの状態へも
// 自由に遷移できる。進捗フィールドは変更されず、中断からの再開時に
// 視聴位置が復元される。
func (s *Service) UpdateStatus(ctx context.Context, userID, entryID string, status model.WatchStatus) (*model.WatchStateEntry, error) {
	if !model.ValidWatchStatus(status) {
		return nil, model.NewInvalidStatusError(string(status))
	}

	entry, err := s.ownedEntry(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.entryRepo.UpdateStatus(ctx, entryID, status, now); err != nil {
		return nil, fmt.Errorf("ステータスの更新に失敗しました: %w", err)
	}

	entry.Status = status
	entry.UpdatedAt = now
	return entry, nil
}

// UpdateProgress は進捗を部分更新する。
// 指定されたフィールドのみ更新し、nilフィールドは既存値を維持する。
// すべての進捗値は0以上でなければならない。
func (s *Service) UpdateProgress(ctx context.Context, userID, entryID string, progress model.ProgressUpdate) (*model.WatchStateEntry, error) {
	if progress.Empty() {
		return nil, model.NewInvalidProgressError("更新するフィールドが指定されていません")
	}
	if err := validateProgress(progress); err != nil {
		return nil, err
	}

	entry, err := s.ownedEntry(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := s.entryRepo.UpdateProgress(ctx, entryID, progress, now); err != nil {
		return nil, fmt.Errorf("進捗の更新に失敗しました: %w", err)
	}

	if progress.Episode != nil {
		entry.CurrentEpisode = progress.Episode
	}
	if progress.Season != nil {
		entry.CurrentSeason = progress.Season
	}
	if progress.RuntimeMinutes != nil {
		entry.CurrentRuntimeMinutes = progress.RuntimeMinutes
	}
	entry.UpdatedAt = now
	return entry, nil
}

// ToggleFavourite はお気に入りフラグを反転する。
func (s *Service) ToggleFavourite(ctx context.Context, userID, entryID string) (*model.WatchStateEntry, error) {
	entry, err := s.ownedEntry(ctx, userID, entryID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	flipped := !entry.IsFavourite
	if err := s.entryRepo.UpdateFavourite(ctx, entryID, flipped, now); err != nil {
		return nil, fmt.Errorf("お気に入りの更新に失敗しました: %w", err)
	}

	entry.IsFavourite = flipped
	entry.UpdatedAt = now
	return entry, nil
}

// Remove は視聴状態を削除する。カタログのタイトルには影響しない。
func (s *Service) Remove(ctx context.Context, userID, entryID string) error {
	if _, err := s.ownedEntry(ctx, userID, entryID); err != nil {
		return err
	}

	if err := s.entryRepo.Delete(ctx, entryID); err != nil {
		return fmt.Errorf("視聴状態の削除に失敗しました: %w", err)
	}
	return nil
}

// ownedEntry は視聴状態を取得し、呼び出しユーザーの所有物であることを検証する。
// 存在しない場合はENTRY_NOT_FOUND、他ユーザーの所有物の場合はFORBIDDENを返す。
func (s *Service) ownedEntry(ctx context.Context, userID, entryID string) (*model.WatchStateEntry, error) {
	entry, err := s.entryRepo.FindByID(ctx, entryID)
	if err != nil {
		return nil, fmt.Errorf("視聴状態の取得に失敗しました: %w", err)
	}
	if entry == nil {
		return nil, model.NewEntryNotFoundError(entryID)
	}
	if entry.UserID != userID {
		return nil, model.NewForbiddenError()
	}
	return entry, nil
}

// validateProgress は進捗値の非負制約を検証する。
func validateProgress(progress model.ProgressUpdate) error {
	if progress.Episode != nil && *progress.Episode < 0 {
		return model.NewInvalidProgressError(fmt.Sprintf("エピソード番号が負数です: %d", *progress.Episode))
	}
	if progress.Season != nil && *progress.Season < 0 {
		return model.NewInvalidProgressError(fmt.Sprintf("シーズン番号が負数です: %d", *progress.Season))
	}
	if progress.RuntimeMinutes != nil && *progress.RuntimeMinutes < 0 {
		return model.NewInvalidProgressError(fmt.Sprintf("再生時間が負数です: %d", *progress.RuntimeMinutes))
	}
	return nil
}
