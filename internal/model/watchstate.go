// Package model はドメインモデルを定義する。
package model

import "time"

// WatchStatus は視聴状態を表す。
// 状態はユーザーが宣言するラベルであり、遷移に制約はない。
type WatchStatus string

const (
	// StatusPlanned は視聴予定の状態。
	StatusPlanned WatchStatus = "planned"
	// StatusWatching は視聴中の状態。
	StatusWatching WatchStatus = "watching"
	// StatusOnHold は視聴中断中の状態。
	StatusOnHold WatchStatus = "on_hold"
	// StatusDropped は視聴をやめた状態。
	StatusDropped WatchStatus = "dropped"
	// StatusFinished は視聴完了の状態。
	StatusFinished WatchStatus = "finished"
	// StatusRewatching は再視聴中の状態。
	StatusRewatching WatchStatus = "rewatching"
)

// validStatuses は有効な視聴状態のセット。
var validStatuses = map[WatchStatus]bool{
	StatusPlanned:    true,
	StatusWatching:   true,
	StatusOnHold:     true,
	StatusDropped:    true,
	StatusFinished:   true,
	StatusRewatching: true,
}

// ValidWatchStatus は視聴状態が定義済みの値かを判定する。
func ValidWatchStatus(s WatchStatus) bool {
	return validStatuses[s]
}

// WatchStateEntry はユーザーとタイトルの視聴関係を表す。
// (user_id, title_id) の組で一意で、ユーザーは1タイトルにつき
// 最大1レコードを持つ。進捗フィールドは状態変更をまたいで保持され、
// 中断後の再開時に視聴位置を復元できる。
type WatchStateEntry struct {
	ID                    string
	UserID                string
	TitleID               string
	Status                WatchStatus
	CurrentEpisode        *int
	CurrentSeason         *int
	CurrentRuntimeMinutes *int
	IsFavourite           bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// ProgressUpdate は進捗の部分更新を表す。
// nilフィールドは変更せず、既存の値を維持する。
type ProgressUpdate struct {
	Episode        *int
	Season         *int
	RuntimeMinutes *int
}

// Empty は更新対象のフィールドが1つも指定されていないかを返す。
func (p ProgressUpdate) Empty() bool {
	return p.Episode == nil && p.Season == nil && p.RuntimeMinutes == nil
}

// EntryWithTitle は視聴状態とタイトル情報を結合したモデル。
// titlesテーブルとJOINして取得される。
type EntryWithTitle struct {
	WatchStateEntry
	TitleName   string
	MediaType   MediaType
	PosterURL   string
	Genres      string
	ReleaseDate string
}
