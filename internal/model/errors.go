// Package model はドメインモデルを定義する。
package model

import (
	"fmt"

	"github.com/hitoshi/imgtag/internal/imgsrc"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, image, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidRequest  = "INVALID_REQUEST"
	ErrCodeUnsupportedMode = "UNSUPPORTED_MODE"
	ErrCodeEmptySrc        = "EMPTY_SRC"
	ErrCodeInvalidSrc      = "INVALID_SRC"
	ErrCodeNotWhitelisted  = "NOT_WHITELISTED_SRC"
	ErrCodeBlacklisted     = "BLACKLISTED_SRC"
	ErrCodeRateLimited     = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// SrcMessageCatalog は検証失敗の理由コードとユーザー向けメッセージの対応表。
// 判定エンジンは理由コードのみを返し、文言はこの表で決まる。
type SrcMessageCatalog map[imgsrc.Reason]string

// DefaultSrcMessages は既定のメッセージ表を返す。
func DefaultSrcMessages() SrcMessageCatalog {
	return SrcMessageCatalog{
		imgsrc.ReasonEmptySrc:       "画像のURLが指定されていません。",
		imgsrc.ReasonInvalidSrc:     "画像のURLが無効です。",
		imgsrc.ReasonNotWhitelisted: "画像のURLは許可されたドメインではありません。",
		imgsrc.ReasonBlacklisted:    "画像のURLは使用が禁止されています。",
	}
}

// Message は理由コードに対応するメッセージを返す。
// 未登録の理由コードはコード文字列をそのまま返す。
func (c SrcMessageCatalog) Message(reason imgsrc.Reason) string {
	if msg, ok := c[reason]; ok {
		return msg
	}
	return string(reason)
}

// NewInvalidRequestError は不正なリクエストボディのエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエストボディのJSON形式を確認してください。",
	}
}

// NewUnsupportedModeError は未対応の描画モードまたは出力形式のエラーを生成する。
func NewUnsupportedModeError(mode string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedMode,
		Message:  fmt.Sprintf("未対応のモードです: %s", mode),
		Category: "validation",
		Action:   "mode には tag、function、element のいずれか、output には html、wiki、plain のいずれかを指定してください。",
	}
}

// NewRateLimitError はレート制限超過のエラーを生成する。
func NewRateLimitError(retryAfterSec int) *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   fmt.Sprintf("%d秒ほど待ってから再度お試しください。", retryAfterSec),
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewSrcRejectedError は画像URLの検証失敗をAPIErrorに変換する。
// 成功の判定結果に対してはnilを返す。
func NewSrcRejectedError(v imgsrc.Verdict, messages SrcMessageCatalog) *APIError {
	if v.OK() {
		return nil
	}
	if messages == nil {
		messages = DefaultSrcMessages()
	}

	apiErr := &APIError{
		Message:  messages.Message(v.Reason),
		Category: "image",
	}
	switch v.Reason {
	case imgsrc.ReasonEmptySrc:
		apiErr.Code = ErrCodeEmptySrc
		apiErr.Category = "validation"
		apiErr.Action = "src に画像のURLを指定してください。"
	case imgsrc.ReasonInvalidSrc:
		apiErr.Code = ErrCodeInvalidSrc
		apiErr.Action = "http:// または https:// で始まる画像のURLを指定してください。"
	case imgsrc.ReasonNotWhitelisted:
		apiErr.Code = ErrCodeNotWhitelisted
		apiErr.Action = "許可されたドメインの画像を使用するか、サイト管理者にドメインの追加を依頼してください。"
	case imgsrc.ReasonBlacklisted:
		apiErr.Code = ErrCodeBlacklisted
		apiErr.Action = "別の画像を使用してください。"
	default:
		apiErr.Code = ErrCodeInvalidSrc
		apiErr.Action = "画像のURLを確認してください。"
	}
	return apiErr
}
