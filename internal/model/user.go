// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// 作成・認証は外部の認証コラボレータが担い、このコアでは
// idとdefault_statusの読み取りのみを行う。
type User struct {
	ID            string
	Email         string
	Username      string
	DisplayName   string
	AvatarURL     string
	DefaultStatus WatchStatus // 未設定の場合は空文字列
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Session はユーザーのログインセッションを表す。
// 発行は認証コラボレータの責務で、ここでは検証のみ行う。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// UserProfile はユーザーの公開プロフィールを表す。
// メールアドレスや内部IDは含まない。
type UserProfile struct {
	Username    string
	DisplayName string
	AvatarURL   string
}

// PublicProfile はUserから公開プロフィールを生成する。
func (u *User) PublicProfile() UserProfile {
	return UserProfile{
		Username:    u.Username,
		DisplayName: u.DisplayName,
		AvatarURL:   u.AvatarURL,
	}
}
