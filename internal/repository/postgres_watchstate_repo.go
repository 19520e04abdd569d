package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/watchlog/internal/model"
)

// PostgresWatchStateRepo はPostgreSQLを使用した視聴状態リポジトリ。
type PostgresWatchStateRepo struct {
	db *sql.DB
}

// NewPostgresWatchStateRepo はPostgresWatchStateRepoを生成する。
func NewPostgresWatchStateRepo(db *sql.DB) *PostgresWatchStateRepo {
	return &PostgresWatchStateRepo{db: db}
}

// entryColumns は視聴状態取得クエリの共通カラムリスト。
const entryColumns = `id, user_id, title_id, status, current_episode,
	        current_season, current_runtime_minutes, is_favourite,
	        created_at, updated_at`

// scanEntry は1行分の視聴状態をスキャンする。
func scanEntry(row interface {
	Scan(dest ...any) error
}) (*model.WatchStateEntry, error) {
	entry := &model.WatchStateEntry{}
	var episode, season, runtime sql.NullInt64

	err := row.Scan(
		&entry.ID, &entry.UserID, &entry.TitleID, &entry.Status,
		&episode, &season, &runtime, &entry.IsFavourite,
		&entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	entry.CurrentEpisode = nullIntValue(episode)
	entry.CurrentSeason = nullIntValue(season)
	entry.CurrentRuntimeMinutes = nullIntValue(runtime)

	return entry, nil
}

// FindByID は指定IDの視聴状態を取得する。見つからない場合はnilを返す。
func (r *PostgresWatchStateRepo) FindByID(ctx context.Context, id string) (*model.WatchStateEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM watch_states WHERE id = $1`, id)

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("視聴状態の取得に失敗しました: %w", err)
	}
	return entry, nil
}

// FindByUserAndTitle はユーザーIDとタイトルIDで視聴状態を検索する。
// 見つからない場合はnilを返す。
func (r *PostgresWatchStateRepo) FindByUserAndTitle(ctx context.Context, userID, titleID string) (*model.WatchStateEntry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM watch_states WHERE user_id = $1 AND title_id = $2`,
		userID, titleID)

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザーとタイトルによる視聴状態の検索に失敗しました: %w", err)
	}
	return entry, nil
}

// Create は視聴状態を作成する。
// UNIQUE(user_id, title_id) 制約に違反した場合はErrConflictを返す。
func (r *PostgresWatchStateRepo) Create(ctx context.Context, entry *model.WatchStateEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO watch_states (id, user_id, title_id, status, current_episode,
		                           current_season, current_runtime_minutes, is_favourite,
		                           created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.UserID, entry.TitleID, entry.Status,
		nullInt(entry.CurrentEpisode), nullInt(entry.CurrentSeason),
		nullInt(entry.CurrentRuntimeMinutes), entry.IsFavourite,
		entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("視聴状態の作成に失敗しました: %w", err)
	}
	return nil
}

// UpdateStatus は視聴状態のステータスを更新する。進捗フィールドには触れない。
func (r *PostgresWatchStateRepo) UpdateStatus(ctx context.Context, id string, status model.WatchStatus, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE watch_states SET status = $2, updated_at = $3 WHERE id = $1`,
		id, status, now,
	)
	if err != nil {
		return fmt.Errorf("視聴状態の更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateProgress は進捗を部分更新する。
// COALESCEによりnilフィールドは既存の値を維持する。
func (r *PostgresWatchStateRepo) UpdateProgress(ctx context.Context, id string, progress model.ProgressUpdate, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE watch_states SET
		    current_episode = COALESCE($2, current_episode),
		    current_season = COALESCE($3, current_season),
		    current_runtime_minutes = COALESCE($4, current_runtime_minutes),
		    updated_at = $5
		 WHERE id = $1`,
		id, nullInt(progress.Episode), nullInt(progress.Season),
		nullInt(progress.RuntimeMinutes), now,
	)
	if err != nil {
		return fmt.Errorf("進捗の更新に失敗しました: %w", err)
	}
	return nil
}

// UpdateFavourite はお気に入りフラグを設定する。
func (r *PostgresWatchStateRepo) UpdateFavourite(ctx context.Context, id string, favourite bool, now time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE watch_states SET is_favourite = $2, updated_at = $3 WHERE id = $1`,
		id, favourite, now,
	)
	if err != nil {
		return fmt.Errorf("お気に入りの更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDの視聴状態を削除する。
func (r *PostgresWatchStateRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM watch_states WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("視聴状態の削除に失敗しました: %w", err)
	}
	return nil
}

// ListByUserWithTitle はユーザーの視聴状態一覧をタイトル情報とJOINして返す。
func (r *PostgresWatchStateRepo) ListByUserWithTitle(ctx context.Context, userID string, status *model.WatchStatus) ([]model.EntryWithTitle, error) {
	query := `SELECT w.id, w.user_id, w.title_id, w.status, w.current_episode,
	                 w.current_season, w.current_runtime_minutes, w.is_favourite,
	                 w.created_at, w.updated_at,
	                 t.name, t.media_type, t.poster_url, t.genres, t.release_date
	          FROM watch_states w
	          INNER JOIN titles t ON w.title_id = t.id
	          WHERE w.user_id = $1`
	args := []any{userID}

	if status != nil {
		query += ` AND w.status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY w.created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("視聴状態一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var entries []model.EntryWithTitle
	for rows.Next() {
		var e model.EntryWithTitle
		var episode, season, runtime sql.NullInt64
		var posterURL, genres, releaseDate sql.NullString

		if err := rows.Scan(
			&e.ID, &e.UserID, &e.TitleID, &e.Status,
			&episode, &season, &runtime, &e.IsFavourite,
			&e.CreatedAt, &e.UpdatedAt,
			&e.TitleName, &e.MediaType, &posterURL, &genres, &releaseDate,
		); err != nil {
			return nil, fmt.Errorf("視聴状態一覧の読み取りに失敗しました: %w", err)
		}

		e.CurrentEpisode = nullIntValue(episode)
		e.CurrentSeason = nullIntValue(season)
		e.CurrentRuntimeMinutes = nullIntValue(runtime)
		e.PosterURL = nullStringValue(posterURL)
		e.Genres = nullStringValue(genres)
		e.ReleaseDate = nullStringValue(releaseDate)

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("視聴状態一覧の走査に失敗しました: %w", err)
	}

	return entries, nil
}

// StatusCounts はユーザーの視聴状態をステータス別に集計する。
func (r *PostgresWatchStateRepo) StatusCounts(ctx context.Context, userID string) (map[model.WatchStatus]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM watch_states WHERE user_id = $1 GROUP BY status`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("視聴状態の集計に失敗しました: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.WatchStatus]int)
	for rows.Next() {
		var status model.WatchStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("視聴状態の集計結果の読み取りに失敗しました: %w", err)
		}
		counts[status] = count
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("視聴状態の集計結果の走査に失敗しました: %w", err)
	}

	return counts, nil
}

// FavouriteCount はユーザーのお気に入り数を返す。
func (r *PostgresWatchStateRepo) FavouriteCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM watch_states WHERE user_id = $1 AND is_favourite = TRUE`,
		userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("お気に入り数の集計に失敗しました: %w", err)
	}
	return count, nil
}

// ListGenresByUser はユーザーが追跡中のタイトルのジャンル文字列を返す。
func (r *PostgresWatchStateRepo) ListGenresByUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT t.genres
		 FROM watch_states w
		 INNER JOIN titles t ON w.title_id = t.id
		 WHERE w.user_id = $1 AND t.genres IS NOT NULL`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("ジャンルの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var genres []string
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, fmt.Errorf("ジャンルの読み取りに失敗しました: %w", err)
		}
		genres = append(genres, g)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ジャンルの走査に失敗しました: %w", err)
	}

	return genres, nil
}

// compile-time interface check
var _ WatchStateRepository = (*PostgresWatchStateRepo)(nil)
