// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"regexp"

	"github.com/google/uuid"
)

// RequestIDHeader はリクエストIDを受け渡すHTTPヘッダー。
const RequestIDHeader = "X-Request-ID"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// requestIDContextKey はリクエストコンテキストにリクエストIDを格納するためのキー。
var requestIDContextKey = contextKey("request_id")

// validRequestID は呼び出し元から引き継ぐリクエストIDの形式。
var validRequestID = regexp.MustCompile(`^[A-Za-z0-9._-]{1,64}$`)

// NewRequestIDMiddleware はリクエストごとにIDを割り当てるミドルウェアを返す。
// 呼び出し元が X-Request-ID を指定し、その形式が妥当な場合はそれを引き継ぐ。
// それ以外はUUIDを生成する。IDはレスポンスヘッダーとコンテキストに設定する。
func NewRequestIDMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if !validRequestID.MatchString(id) {
				id = uuid.NewString()
			}

			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(ContextWithRequestID(r.Context(), id)))
		})
	}
}

// RequestIDFromContext はリクエストコンテキストからリクエストIDを取得する。
// リクエストIDミドルウェアを通過したリクエストでのみ有効。
func RequestIDFromContext(ctx context.Context) (string, error) {
	id, ok := ctx.Value(requestIDContextKey).(string)
	if !ok || id == "" {
		return "", fmt.Errorf("request ID not found in context")
	}
	return id, nil
}

// ContextWithRequestID はコンテキストにリクエストIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey, id)
}
