package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/watchlog/internal/model"
)

// PostgresFollowRepo はPostgreSQLを使用したフォロー関係リポジトリ。
type PostgresFollowRepo struct {
	db *sql.DB
}

// NewPostgresFollowRepo はPostgresFollowRepoを生成する。
func NewPostgresFollowRepo(db *sql.DB) *PostgresFollowRepo {
	return &PostgresFollowRepo{db: db}
}

// Create はフォローエッジを作成する。
// PRIMARY KEY(follower_id, followed_id) 制約に違反した場合はErrConflictを返す。
func (r *PostgresFollowRepo) Create(ctx context.Context, edge *model.FollowEdge) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO follows (follower_id, followed_id, created_at)
		 VALUES ($1, $2, $3)`,
		edge.FollowerID, edge.FollowedID, edge.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("フォローの作成に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定順序対のフォローエッジを削除する。存在しない場合もエラーにしない。
func (r *PostgresFollowRepo) Delete(ctx context.Context, followerID, followedID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND followed_id = $2`,
		followerID, followedID,
	)
	if err != nil {
		return fmt.Errorf("フォローの削除に失敗しました: %w", err)
	}
	return nil
}

// listUsersByEdge はフォローエッジとJOINしてユーザーを取得する共通処理。
func (r *PostgresFollowRepo) listUsersByEdge(ctx context.Context, query, userID string) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("フォロー関係の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user := &model.User{}
		var username, displayName, avatarURL, defaultStatus sql.NullString

		if err := rows.Scan(
			&user.ID, &user.Email, &username, &displayName, &avatarURL,
			&defaultStatus, &user.CreatedAt, &user.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("フォロー関係の読み取りに失敗しました: %w", err)
		}

		user.Username = nullStringValue(username)
		user.DisplayName = nullStringValue(displayName)
		user.AvatarURL = nullStringValue(avatarURL)
		user.DefaultStatus = model.WatchStatus(nullStringValue(defaultStatus))

		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("フォロー関係の走査に失敗しました: %w", err)
	}

	return users, nil
}

// ListFollowers は指定ユーザーをフォローしているユーザーを
// エッジ作成日時の昇順で返す。
func (r *PostgresFollowRepo) ListFollowers(ctx context.Context, userID string) ([]*model.User, error) {
	return r.listUsersByEdge(ctx,
		`SELECT u.id, u.email, u.username, u.display_name, u.avatar_url,
		        u.default_status, u.created_at, u.updated_at
		 FROM follows f
		 INNER JOIN users u ON f.follower_id = u.id
		 WHERE f.followed_id = $1
		 ORDER BY f.created_at ASC`,
		userID)
}

// ListFollowing は指定ユーザーがフォローしているユーザーを
// エッジ作成日時の昇順で返す。
func (r *PostgresFollowRepo) ListFollowing(ctx context.Context, userID string) ([]*model.User, error) {
	return r.listUsersByEdge(ctx,
		`SELECT u.id, u.email, u.username, u.display_name, u.avatar_url,
		        u.default_status, u.created_at, u.updated_at
		 FROM follows f
		 INNER JOIN users u ON f.followed_id = u.id
		 WHERE f.follower_id = $1
		 ORDER BY f.created_at ASC`,
		userID)
}

// CountFollowers は指定ユーザーのフォロワー数を返す。
func (r *PostgresFollowRepo) CountFollowers(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM follows WHERE followed_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("フォロワー数の集計に失敗しました: %w", err)
	}
	return count, nil
}

// CountFollowing は指定ユーザーのフォロー数を返す。
func (r *PostgresFollowRepo) CountFollowing(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM follows WHERE follower_id = $1`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("フォロー数の集計に失敗しました: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ FollowRepository = (*PostgresFollowRepo)(nil)
