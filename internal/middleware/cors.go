package middleware

import (
	"net/http"
	"strings"
)

// corsAllowHeaders はプリフライトで許可するリクエストヘッダー。
var corsAllowHeaders = strings.Join([]string{"Content-Type", RequestIDHeader}, ", ")

// NewCORSMiddleware は指定されたオリジンに対するCORSミドルウェアを返す。
// APIはGETとPOSTのみを提供し、Cookieを使わないため資格情報は許可しない。
// allowedOriginが空の場合はCORSヘッダーを付与しない（同一オリジンのみ）。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if allowedOrigin == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowedOrigin)
			h.Set("Access-Control-Expose-Headers", RequestIDHeader)
			h.Add("Vary", "Origin")

			// プリフライトにはハンドラーを呼ばずに204で応答
			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				h.Set("Access-Control-Allow-Headers", corsAllowHeaders)
				h.Set("Access-Control-Max-Age", "86400")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
