// Package model はドメインモデルを定義する。
package model

import "time"

// FollowEdge はユーザー間の有向フォロー関係を表す。
// (follower_id, followed_id) の組で一意で、自己フォローは許可されない。
type FollowEdge struct {
	FollowerID string
	FollowedID string
	CreatedAt  time.Time
}

// QuickStats はユーザーの視聴状態の集計を表す。
// 各カウントは正確な値で、サンプリングは行わない。
type QuickStats struct {
	Watching   int
	Finished   int
	Planned    int
	Favourites int
}

// DiscoveryProfile はディスカバリーフィードの1件を表す。
// 公開プロフィールに、視聴タイトル由来のジャンルタグと
// フォロー関係の集計・プレビューを付与した読み取り専用の射影。
type DiscoveryProfile struct {
	UserProfile
	JoinedAt       time.Time
	Genres         []string
	FollowerCount  int
	FollowingCount int
	Followers      []UserProfile // 上位のプレビューのみ
	Following      []UserProfile // 上位のプレビューのみ
}
