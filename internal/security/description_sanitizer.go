// Package security はアプリケーションのセキュリティ機能を提供する。
//
// DescriptionSanitizerService は外部メタデータプロバイダから取得した
// タイトル概要文をサニタイズし、XSS攻撃などのセキュリティリスクから
// ユーザーを保護する。bluemondayライブラリを使用した許可リストベースの
// ポリシーで、安全なタグのみを通過させる。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// DescriptionSanitizerService はタイトル概要文のサニタイズ機能のインターフェースを定義する。
// ゲートウェイ応答の保存前に使用される。
type DescriptionSanitizerService interface {
	// Sanitize は概要文をサニタイズして安全なテキストを返す。
	// 許可タグ（p, br, em, strong, i, b）のみを通過させ、
	// script, iframe, styleタグおよびon*イベント属性を除去する。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// descriptionSanitizer はDescriptionSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type descriptionSanitizer struct {
	policy *bluemonday.Policy
}

// NewDescriptionSanitizer はDescriptionSanitizerServiceの新しいインスタンスを生成する。
// メタデータプロバイダの概要文は基本的にプレーンテキストだが、
// 一部のプロバイダは簡易マークアップを混入させるため、
// 最小限のインライン整形タグのみを許可するポリシーを構築する。
func NewDescriptionSanitizer() *descriptionSanitizer {
	p := bluemonday.NewPolicy()

	// 許可タグ: 段落・改行と最小限のインライン強調のみ
	// script, iframe, style等は許可リストに含めないことで自動的に除去される
	// on*イベント属性はbluemondayのデフォルトで許可されない
	p.AllowElements("p", "br", "em", "strong", "i", "b")

	return &descriptionSanitizer{
		policy: p,
	}
}

// Sanitize は概要文をサニタイズして安全なテキストを返す。
func (s *descriptionSanitizer) Sanitize(raw string) string {
	return strings.TrimSpace(s.policy.Sanitize(raw))
}
