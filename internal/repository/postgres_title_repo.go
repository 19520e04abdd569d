package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/watchlog/internal/model"
)

// PostgresTitleRepo はPostgreSQLを使用したタイトルリポジトリ。
type PostgresTitleRepo struct {
	db *sql.DB
}

// NewPostgresTitleRepo はPostgresTitleRepoを生成する。
func NewPostgresTitleRepo(db *sql.DB) *PostgresTitleRepo {
	return &PostgresTitleRepo{db: db}
}

// titleColumns はタイトル取得クエリの共通カラムリスト。
const titleColumns = `id, external_id, secondary_external_id, media_type, name,
	        poster_url, backdrop_url, description, directors,
	        release_date, genres, created_at, updated_at`

// scanTitle は1行分のタイトルをスキャンする。
func scanTitle(row interface {
	Scan(dest ...any) error
}) (*model.Title, error) {
	title := &model.Title{}
	var secondaryID, posterURL, backdropURL, description, releaseDate, genres sql.NullString

	err := row.Scan(
		&title.ID, &title.ExternalID, &secondaryID, &title.MediaType, &title.Name,
		&posterURL, &backdropURL, &description, pq.Array(&title.Directors),
		&releaseDate, &genres, &title.CreatedAt, &title.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	title.SecondaryExternalID = nullStringValue(secondaryID)
	title.PosterURL = nullStringValue(posterURL)
	title.BackdropURL = nullStringValue(backdropURL)
	title.Description = nullStringValue(description)
	title.ReleaseDate = nullStringValue(releaseDate)
	title.Genres = nullStringValue(genres)

	return title, nil
}

// FindByID は指定IDのタイトルを取得する。見つからない場合はnilを返す。
func (r *PostgresTitleRepo) FindByID(ctx context.Context, id string) (*model.Title, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+titleColumns+` FROM titles WHERE id = $1`, id)

	title, err := scanTitle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("タイトルの取得に失敗しました: %w", err)
	}
	return title, nil
}

// FindByExternalID は(external_id, media_type)でタイトルを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresTitleRepo) FindByExternalID(ctx context.Context, externalID int64, mediaType model.MediaType) (*model.Title, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+titleColumns+` FROM titles WHERE external_id = $1 AND media_type = $2`,
		externalID, mediaType)

	title, err := scanTitle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("外部IDによるタイトルの検索に失敗しました: %w", err)
	}
	return title, nil
}

// FindBySecondaryID はクロスリファレンスIDでタイトルを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresTitleRepo) FindBySecondaryID(ctx context.Context, secondaryID string) (*model.Title, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+titleColumns+` FROM titles WHERE secondary_external_id = $1`,
		secondaryID)

	title, err := scanTitle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("クロスリファレンスIDによるタイトルの検索に失敗しました: %w", err)
	}
	return title, nil
}

// Create はタイトルを作成する。
// UNIQUE(external_id, media_type) 制約に違反した場合はErrConflictを返す。
// 呼び出し側は事前に存在チェックをしていても、並行挿入の競争に備えて
// このエラーを処理しなければならない。
func (r *PostgresTitleRepo) Create(ctx context.Context, title *model.Title) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO titles (id, external_id, secondary_external_id, media_type, name,
		                     poster_url, backdrop_url, description, directors,
		                     release_date, genres, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		title.ID, title.ExternalID, nullString(title.SecondaryExternalID),
		title.MediaType, title.Name,
		nullString(title.PosterURL), nullString(title.BackdropURL),
		nullString(title.Description), pq.Array(title.Directors),
		nullString(title.ReleaseDate), nullString(title.Genres),
		title.CreatedAt, title.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("タイトルの作成に失敗しました: %w", err)
	}
	return nil
}

// Update はタイトルの属性を上書き更新する。
func (r *PostgresTitleRepo) Update(ctx context.Context, title *model.Title) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE titles SET
		    secondary_external_id = $2, name = $3, poster_url = $4,
		    backdrop_url = $5, description = $6, directors = $7,
		    release_date = $8, genres = $9, updated_at = $10
		 WHERE id = $1`,
		title.ID, nullString(title.SecondaryExternalID), title.Name,
		nullString(title.PosterURL), nullString(title.BackdropURL),
		nullString(title.Description), pq.Array(title.Directors),
		nullString(title.ReleaseDate), nullString(title.Genres),
		title.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("タイトルの更新に失敗しました: %w", err)
	}
	return nil
}

// ListStale はupdated_atがolderThanより古いタイトルを古い順に取得する。
func (r *PostgresTitleRepo) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*model.Title, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+titleColumns+` FROM titles
		 WHERE updated_at < $1
		 ORDER BY updated_at ASC
		 LIMIT $2`,
		olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("リフレッシュ対象タイトルの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var titles []*model.Title
	for rows.Next() {
		title, err := scanTitle(rows)
		if err != nil {
			return nil, fmt.Errorf("リフレッシュ対象タイトルの読み取りに失敗しました: %w", err)
		}
		titles = append(titles, title)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("リフレッシュ対象タイトルの走査に失敗しました: %w", err)
	}

	return titles, nil
}

// compile-time interface check
var _ TitleRepository = (*PostgresTitleRepo)(nil)
