// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, catalog, social, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeTitleNotFound      = "TITLE_NOT_FOUND"
	ErrCodeEntryNotFound      = "ENTRY_NOT_FOUND"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeSelfFollow         = "SELF_FOLLOW"
	ErrCodeInvalidMediaType   = "INVALID_MEDIA_TYPE"
	ErrCodeInvalidStatus      = "INVALID_STATUS"
	ErrCodeInvalidProgress    = "INVALID_PROGRESS"
	ErrCodeInvalidLimit       = "INVALID_LIMIT"
	ErrCodeGatewayUnavailable = "GATEWAY_UNAVAILABLE"
)

// NewUnauthorizedError は未認証リクエストへの統一エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証されていません。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewTitleNotFoundError はタイトル未検出エラーを生成する。
func NewTitleNotFoundError(titleID string) *APIError {
	return &APIError{
		Code:     ErrCodeTitleNotFound,
		Message:  fmt.Sprintf("指定されたタイトルが見つかりません: %s", titleID),
		Category: "catalog",
		Action:   "タイトルIDを確認してください。",
	}
}

// NewEntryNotFoundError は視聴状態未検出エラーを生成する。
func NewEntryNotFoundError(entryID string) *APIError {
	return &APIError{
		Code:     ErrCodeEntryNotFound,
		Message:  fmt.Sprintf("指定された視聴記録が見つかりません: %s", entryID),
		Category: "catalog",
		Action:   "視聴記録IDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewForbiddenError は所有権チェック失敗のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この視聴記録を操作する権限がありません。",
		Category: "auth",
		Action:   "自分の視聴記録に対してのみ操作できます。",
	}
}

// NewSelfFollowError は自己フォローエラーを生成する。
func NewSelfFollowError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfFollow,
		Message:  "自分自身をフォローすることはできません。",
		Category: "social",
		Action:   "他のユーザーを指定してください。",
	}
}

// NewInvalidMediaTypeError は無効なメディア種別エラーを生成する。
func NewInvalidMediaTypeError(mt string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidMediaType,
		Message:  fmt.Sprintf("無効なメディア種別です: %s", mt),
		Category: "validation",
		Action:   "メディア種別には movie、series のいずれかを指定してください。",
	}
}

// NewInvalidStatusError は無効な視聴状態エラーを生成する。
func NewInvalidStatusError(status string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidStatus,
		Message:  fmt.Sprintf("無効な視聴状態です: %s", status),
		Category: "validation",
		Action:   "視聴状態には planned、watching、on_hold、dropped、finished、rewatching のいずれかを指定してください。",
	}
}

// NewInvalidProgressError は無効な進捗値エラーを生成する。
func NewInvalidProgressError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidProgress,
		Message:  fmt.Sprintf("無効な進捗値です: %s", reason),
		Category: "validation",
		Action:   "進捗には0以上の整数を指定してください。",
	}
}

// NewInvalidLimitError は無効な取得件数エラーを生成する。
func NewInvalidLimitError(limit int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidLimit,
		Message:  fmt.Sprintf("無効な取得件数です: %d", limit),
		Category: "validation",
		Action:   "取得件数には1以上の整数を指定してください。",
	}
}

// NewGatewayUnavailableError は外部メタデータゲートウェイの障害エラーを生成する。
// タイムアウトや不正応答の場合に返され、呼び出し側はリトライ可能。
func NewGatewayUnavailableError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeGatewayUnavailable,
		Message:  fmt.Sprintf("メタデータプロバイダへの接続に失敗しました: %s", reason),
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。操作は安全にリトライできます。",
	}
}
