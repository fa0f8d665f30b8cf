package handler

import (
	"net/http"

	"github.com/hitoshi/imgtag/internal/wikitext"
)

// SelfClosingSwitch は自己終了タグの修正が有効かを返す。
// config.PolicyStoreが実装する。
type SelfClosingSwitch interface {
	FixSelfClosing() bool
}

// SelfClosingRecorder は修正したタグ数を記録する。
type SelfClosingRecorder interface {
	RecordSelfClosingFixed(count int)
}

// WikitextHandler はwikitext前処理のHTTPハンドラー。
type WikitextHandler struct {
	enabled  SelfClosingSwitch
	recorder SelfClosingRecorder
}

// NewWikitextHandler はWikitextHandlerを生成する。recorderはnilでもよい。
func NewWikitextHandler(enabled SelfClosingSwitch, recorder SelfClosingRecorder) *WikitextHandler {
	return &WikitextHandler{
		enabled:  enabled,
		recorder: recorder,
	}
}

type fixSelfClosingRequest struct {
	Text string `json:"text"`
}

type fixSelfClosingResponse struct {
	Text    string `json:"text"`
	Fixed   int    `json:"fixed"`
	Enabled bool   `json:"enabled"`
}

// FixSelfClosing は閉じられていないimgタグを自己終了形式に修正する。
// 機能が無効の場合はテキストをそのまま返す。
// POST /api/wikitext/fix-self-closing
func (h *WikitextHandler) FixSelfClosing(w http.ResponseWriter, r *http.Request) {
	var req fixSelfClosingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if h.enabled == nil || !h.enabled.FixSelfClosing() {
		writeJSON(w, http.StatusOK, fixSelfClosingResponse{Text: req.Text})
		return
	}

	text, fixed := wikitext.FixSelfClosing(req.Text)
	if h.recorder != nil && fixed > 0 {
		h.recorder.RecordSelfClosingFixed(fixed)
	}

	writeJSON(w, http.StatusOK, fixSelfClosingResponse{
		Text:    text,
		Fixed:   fixed,
		Enabled: true,
	})
}
