package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/imgtag/internal/middleware"
	"github.com/hitoshi/imgtag/internal/model"
)

// maxRequestBodyBytes はJSONリクエストボディの上限。
const maxRequestBodyBytes = 1 << 20

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをvにデコードする。
// 失敗した場合は400レスポンスを書き込んでfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		reason := "JSONの解析に失敗しました"
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			reason = "リクエストボディが大きすぎます"
		}
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError(reason))
		return false
	}
	return true
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidRequest, model.ErrCodeUnsupportedMode, model.ErrCodeEmptySrc:
		return http.StatusBadRequest
	case model.ErrCodeInvalidSrc, model.ErrCodeNotWhitelisted, model.ErrCodeBlacklisted:
		return http.StatusUnprocessableEntity
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
