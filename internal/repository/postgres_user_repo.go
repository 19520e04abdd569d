package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/watchlog/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
// ユーザー行の作成・更新は認証コラボレータが行うため、読み取り専用。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// userColumns はユーザー取得クエリの共通カラムリスト。
const userColumns = `id, email, username, display_name, avatar_url,
	        default_status, created_at, updated_at`

// scanUser は1行分のユーザーをスキャンする。
func scanUser(row interface {
	Scan(dest ...any) error
}) (*model.User, error) {
	user := &model.User{}
	var username, displayName, avatarURL, defaultStatus sql.NullString

	err := row.Scan(
		&user.ID, &user.Email, &username, &displayName, &avatarURL,
		&defaultStatus, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.Username = nullStringValue(username)
	user.DisplayName = nullStringValue(displayName)
	user.AvatarURL = nullStringValue(avatarURL)
	user.DefaultStatus = model.WatchStatus(nullStringValue(defaultStatus))

	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)

	user, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	return user, nil
}

// ListByCreation はアカウント作成日時の昇順でユーザーを取得する。
func (r *PostgresUserRepo) ListByCreation(ctx context.Context, limit int) ([]*model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at ASC LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("ユーザー一覧の読み取りに失敗しました: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ユーザー一覧の走査に失敗しました: %w", err)
	}

	return users, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
