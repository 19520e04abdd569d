// Package stats は視聴状態とフォローグラフの集計機能を提供する。
// 読み取り専用の射影のみを計算し、ストアを変更することはない。
package stats

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hitoshi/watchlog/internal/model"
	"github.com/hitoshi/watchlog/internal/repository"
)

// previewLimit はディスカバリープロフィールに含める
// フォロワー・フォロープレビューの最大件数。
const previewLimit = 5

// Service は集計エンジンのサービス層。
// クイック統計とディスカバリーフィードを都度計算する。
// 集計読み取りはロックを取らず、複数クエリにまたがる多少の
// 不整合（古いスナップショット）を許容する。表示用データであり、
// 正確性が求められるのは単一クエリ内のカウントのみ。
type Service struct {
	entryRepo  repository.WatchStateRepository
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	entryRepo repository.WatchStateRepository,
	followRepo repository.FollowRepository,
	userRepo repository.UserRepository,
) *Service {
	return &Service{
		entryRepo:  entryRepo,
		followRepo: followRepo,
		userRepo:   userRepo,
	}
}

// QuickStats はユーザーの視聴状態の集計を返す。
// 各カウントは正確な値で、サンプリングは行わない。
func (s *Service) QuickStats(ctx context.Context, userID string) (*model.QuickStats, error) {
	counts, err := s.entryRepo.StatusCounts(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("視聴状態の集計に失敗しました: %w", err)
	}
	favourites, err := s.entryRepo.FavouriteCount(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("お気に入り数の集計に失敗しました: %w", err)
	}

	return &model.QuickStats{
		Watching:   counts[model.StatusWatching],
		Finished:   counts[model.StatusFinished],
		Planned:    counts[model.StatusPlanned],
		Favourites: favourites,
	}, nil
}

// DiscoveryFeed はアカウント作成日時の昇順でユーザープロフィールを返す。
// 各プロフィールには追跡タイトル由来の重複排除済みジャンルタグ、
// フォロワー・フォロー数、プレビュー（公開プロフィールのみ）が付与される。
func (s *Service) DiscoveryFeed(ctx context.Context, limit int) ([]model.DiscoveryProfile, error) {
	if limit < 1 {
		return nil, model.NewInvalidLimitError(limit)
	}

	users, err := s.userRepo.ListByCreation(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}

	feed := make([]model.DiscoveryProfile, 0, len(users))
	for _, user := range users {
		profile, err := s.buildProfile(ctx, user)
		if err != nil {
			return nil, err
		}
		feed = append(feed, *profile)
	}
	return feed, nil
}

// FollowerCount は指定ユーザーのフォロワー数を返す。
func (s *Service) FollowerCount(ctx context.Context, userID string) (int, error) {
	count, err := s.followRepo.CountFollowers(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("フォロワー数の集計に失敗しました: %w", err)
	}
	return count, nil
}

// FollowingCount は指定ユーザーのフォロー数を返す。
func (s *Service) FollowingCount(ctx context.Context, userID string) (int, error) {
	count, err := s.followRepo.CountFollowing(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("フォロー数の集計に失敗しました: %w", err)
	}
	return count, nil
}

// buildProfile は1ユーザー分のディスカバリープロフィールを構築する。
func (s *Service) buildProfile(ctx context.Context, user *model.User) (*model.DiscoveryProfile, error) {
	rawGenres, err := s.entryRepo.ListGenresByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("ジャンルの取得に失敗しました: %w", err)
	}

	followerCount, err := s.followRepo.CountFollowers(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("フォロワー数の集計に失敗しました: %w", err)
	}
	followingCount, err := s.followRepo.CountFollowing(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("フォロー数の集計に失敗しました: %w", err)
	}

	followers, err := s.followRepo.ListFollowers(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("フォロワー一覧の取得に失敗しました: %w", err)
	}
	following, err := s.followRepo.ListFollowing(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("フォロー一覧の取得に失敗しました: %w", err)
	}

	return &model.DiscoveryProfile{
		UserProfile:    user.PublicProfile(),
		JoinedAt:       user.CreatedAt,
		Genres:         distinctGenres(rawGenres),
		FollowerCount:  followerCount,
		FollowingCount: followingCount,
		Followers:      previewProfiles(followers),
		Following:      previewProfiles(following),
	}, nil
}

// distinctGenres はカンマ区切りの生ジャンル文字列群を
// 重複排除済みのソート済みタグ一覧に変換する。
func distinctGenres(rawGenres []string) []string {
	seen := make(map[string]bool)
	var genres []string
	for _, raw := range rawGenres {
		for _, part := range strings.Split(raw, ",") {
			tag := strings.TrimSpace(part)
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			genres = append(genres, tag)
		}
	}
	sort.Strings(genres)
	return genres
}

// previewProfiles はプレビュー上限までの公開プロフィールを返す。
// メールアドレスや内部IDは公開プロフィールに含まれない。
func previewProfiles(users []*model.User) []model.UserProfile {
	if len(users) > previewLimit {
		users = users[:previewLimit]
	}
	profiles := make([]model.UserProfile, len(users))
	for i, u := range users {
		profiles[i] = u.PublicProfile()
	}
	return profiles
}
