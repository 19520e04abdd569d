// Package social はフォロー関係のドメインロジックを提供する。
package social

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/watchlog/internal/model"
	"github.com/hitoshi/watchlog/internal/repository"
)

// Service はフォローグラフのサービス層。
// フォロー・アンフォローと公開プロフィール一覧の取得を提供する。
type Service struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(followRepo repository.FollowRepository, userRepo repository.UserRepository) *Service {
	return &Service{
		followRepo: followRepo,
		userRepo:   userRepo,
	}
}

// Follow はfollowerIDからfollowedIDへのフォローエッジを作成する。
// 自分自身へのフォローはSELF_FOLLOWエラー。既にフォロー済みの場合は
// 何もせず成功する（冪等）。
func (s *Service) Follow(ctx context.Context, followerID, followedID string) error {
	if followerID == followedID {
		return model.NewSelfFollowError()
	}

	target, err := s.userRepo.FindByID(ctx, followedID)
	if err != nil {
		return fmt.Errorf("フォロー対象ユーザーの取得に失敗しました: %w", err)
	}
	if target == nil {
		return model.NewUserNotFoundError()
	}

	edge := &model.FollowEdge{
		FollowerID: followerID,
		FollowedID: followedID,
		CreatedAt:  time.Now(),
	}
	if err := s.followRepo.Create(ctx, edge); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// 既にフォロー済み。重複フォローは成功扱い。
			return nil
		}
		return fmt.Errorf("フォローの作成に失敗しました: %w", err)
	}
	return nil
}

// Unfollow はフォローエッジを削除する。
// エッジが存在しない場合も成功する（冪等）。
func (s *Service) Unfollow(ctx context.Context, followerID, followedID string) error {
	if err := s.followRepo.Delete(ctx, followerID, followedID); err != nil {
		return fmt.Errorf("フォローの解除に失敗しました: %w", err)
	}
	return nil
}

// ListFollowers は指定ユーザーのフォロワーを公開プロフィールで返す。
// エッジ作成日時の昇順。
func (s *Service) ListFollowers(ctx context.Context, userID string) ([]model.UserProfile, error) {
	users, err := s.followRepo.ListFollowers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("フォロワー一覧の取得に失敗しました: %w", err)
	}
	return toProfiles(users), nil
}

// ListFollowing は指定ユーザーがフォローしているユーザーを公開プロフィールで返す。
// エッジ作成日時の昇順。
func (s *Service) ListFollowing(ctx context.Context, userID string) ([]model.UserProfile, error) {
	users, err := s.followRepo.ListFollowing(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("フォロー一覧の取得に失敗しました: %w", err)
	}
	return toProfiles(users), nil
}

// toProfiles はユーザーを公開プロフィールに変換する。
// メールアドレスや内部IDはここで落とされる。
func toProfiles(users []*model.User) []model.UserProfile {
	profiles := make([]model.UserProfile, len(users))
	for i, u := range users {
		profiles[i] = u.PublicProfile()
	}
	return profiles
}
