// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/watchlog/internal/model"
)

// ErrConflict は一意制約違反による挿入失敗を表す。
// 並行する挿入競争に敗れた呼び出し側は、既存レコードの再読込で回復する。
// このエラーが呼び出し元のユーザーまで伝播することはない。
var ErrConflict = errors.New("unique constraint violation")

// TitleRepository はカタログタイトルの永続化インターフェース。
// (external_id, media_type) と secondary_external_id の一意性は
// ストレージ層の制約として強制され、このリポジトリが真実の源となる。
type TitleRepository interface {
	// FindByID は指定IDのタイトルを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Title, error)

	// FindByExternalID は(external_id, media_type)でタイトルを検索する。
	// カタログ重複排除の一意キーによる検索。見つからない場合はnilを返す。
	FindByExternalID(ctx context.Context, externalID int64, mediaType model.MediaType) (*model.Title, error)

	// FindBySecondaryID はクロスリファレンスIDでタイトルを検索する。
	// 見つからない場合はnilを返す。
	FindBySecondaryID(ctx context.Context, secondaryID string) (*model.Title, error)

	// Create はタイトルを作成する。
	// (external_id, media_type) が既に存在する場合はErrConflictを返す。
	Create(ctx context.Context, title *model.Title) error

	// Update はタイトルの属性を上書き更新する。updated_atを更新する。
	Update(ctx context.Context, title *model.Title) error

	// ListStale はupdated_atがolderThanより古いタイトルを古い順に取得する。
	// メタデータリフレッシュワーカーの処理対象選定に使用する。
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*model.Title, error)
}

// WatchStateRepository はユーザーごとの視聴状態の永続化インターフェース。
// (user_id, title_id) の一意性はストレージ層の制約として強制される。
type WatchStateRepository interface {
	// FindByID は指定IDの視聴状態を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.WatchStateEntry, error)

	// FindByUserAndTitle はユーザーIDとタイトルIDで視聴状態を検索する。
	// 見つからない場合はnilを返す。
	FindByUserAndTitle(ctx context.Context, userID, titleID string) (*model.WatchStateEntry, error)

	// Create は視聴状態を作成する。
	// (user_id, title_id) が既に存在する場合はErrConflictを返す。
	Create(ctx context.Context, entry *model.WatchStateEntry) error

	// UpdateStatus は視聴状態のステータスを更新する。
	// 進捗フィールドには触れない（中断後の再開で視聴位置を復元するため）。
	UpdateStatus(ctx context.Context, id string, status model.WatchStatus, now time.Time) error

	// UpdateProgress は進捗を部分更新する。nilフィールドは変更しない。
	UpdateProgress(ctx context.Context, id string, progress model.ProgressUpdate, now time.Time) error

	// UpdateFavourite はお気に入りフラグを設定する。
	UpdateFavourite(ctx context.Context, id string, favourite bool, now time.Time) error

	// Delete は指定IDの視聴状態を削除する。
	Delete(ctx context.Context, id string) error

	// ListByUserWithTitle はユーザーの視聴状態一覧をタイトル情報とJOINして返す。
	// statusがnilの場合は全件、指定された場合はそのステータスのみ。
	// 作成日時の降順で返す。
	ListByUserWithTitle(ctx context.Context, userID string, status *model.WatchStatus) ([]model.EntryWithTitle, error)

	// StatusCounts はユーザーの視聴状態をステータス別に集計する。
	StatusCounts(ctx context.Context, userID string) (map[model.WatchStatus]int, error)

	// FavouriteCount はユーザーのお気に入り数を返す。
	FavouriteCount(ctx context.Context, userID string) (int, error)

	// ListGenresByUser はユーザーが追跡中のタイトルのジャンル文字列を返す。
	// 返されるのはカンマ区切りの生文字列で、分解・重複排除は呼び出し側が行う。
	ListGenresByUser(ctx context.Context, userID string) ([]string, error)
}

// FollowRepository はフォロー関係の永続化インターフェース。
// (follower_id, followed_id) の一意性はストレージ層の制約として強制される。
type FollowRepository interface {
	// Create はフォローエッジを作成する。
	// 同じ順序対のエッジが既に存在する場合はErrConflictを返す。
	Create(ctx context.Context, edge *model.FollowEdge) error

	// Delete は指定順序対のフォローエッジを削除する。
	// エッジが存在しない場合もエラーを返さない。
	Delete(ctx context.Context, followerID, followedID string) error

	// ListFollowers は指定ユーザーをフォローしているユーザーを
	// エッジ作成日時の昇順で返す。
	ListFollowers(ctx context.Context, userID string) ([]*model.User, error)

	// ListFollowing は指定ユーザーがフォローしているユーザーを
	// エッジ作成日時の昇順で返す。
	ListFollowing(ctx context.Context, userID string) ([]*model.User, error)

	// CountFollowers は指定ユーザーのフォロワー数を返す。
	CountFollowers(ctx context.Context, userID string) (int, error)

	// CountFollowing は指定ユーザーのフォロー数を返す。
	CountFollowing(ctx context.Context, userID string) (int, error)
}

// UserRepository はユーザーデータの永続化インターフェース。
// ユーザーの作成・更新は認証コラボレータの責務で、ここでは読み取りのみ。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// ListByCreation はアカウント作成日時の昇順でユーザーを取得する。
	// ディスカバリーフィードの基礎となる順序付け。
	ListByCreation(ctx context.Context, limit int) ([]*model.User, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
}
