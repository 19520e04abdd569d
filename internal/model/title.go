// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// MediaType はタイトルの媒体種別を表す。
type MediaType string

const (
	// MediaTypeMovie は映画を表す。
	MediaTypeMovie MediaType = "movie"
	// MediaTypeSeries はシリーズ作品を表す。
	MediaTypeSeries MediaType = "series"
)

// ValidMediaType はメディア種別が定義済みの値かを判定する。
func ValidMediaType(mt MediaType) bool {
	return mt == MediaTypeMovie || mt == MediaTypeSeries
}

// Title はカタログの正規化済みタイトルを表す。
// (external_id, media_type) の組で一意に識別され、同じ外部作品が
// 二重登録されることはない。secondary_external_id は外部のクロス
// リファレンスID（IMDb ID等）で、存在する場合は全タイトル間で一意。
type Title struct {
	ID                  string
	ExternalID          int64
	SecondaryExternalID string
	MediaType           MediaType
	Name                string
	PosterURL           string
	BackdropURL         string
	Description         string // サニタイズ済み
	Directors           []string
	ReleaseDate         string // YYYY-MM-DD。不明な場合は空文字列
	Genres              string // カンマ区切りのタグ文字列
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// GenreList はカンマ区切りのジャンル文字列を個別タグに分解して返す。
// 空要素は除外する。
func (t *Title) GenreList() []string {
	if t.Genres == "" {
		return nil
	}
	parts := strings.Split(t.Genres, ",")
	genres := make([]string, 0, len(parts))
	for _, p := range parts {
		if g := strings.TrimSpace(p); g != "" {
			genres = append(genres, g)
		}
	}
	return genres
}

// JoinGenres は個別ジャンルタグをカンマ区切り文字列に結合する。
func JoinGenres(genres []string) string {
	return strings.Join(genres, ", ")
}
