package handler

import (
	"net/http"
	"strconv"

	"github.com/hitoshi/imgtag/internal/imgsrc"
	"github.com/hitoshi/imgtag/internal/middleware"
	"github.com/hitoshi/imgtag/internal/model"
	"github.com/hitoshi/imgtag/internal/render"
)

// RendererInterface は画像ハンドラーが必要とする描画インターフェース。
// render.Rendererが実装する。
type RendererInterface interface {
	Validate(rawSrc string) imgsrc.Verdict
	CreateImgElement(attrs render.Attributes) render.Result
	RenderTag(input string, args render.Attributes) render.Result
	RenderFunction(out render.OutputType, args ...string) render.Result
}

// 描画モード
const (
	modeTag      = "tag"
	modeFunction = "function"
	modeElement  = "element"
)

// ImgHandler は画像URLの検証と描画のHTTPハンドラー。
type ImgHandler struct {
	renderer RendererInterface
	messages model.SrcMessageCatalog
}

// NewImgHandler はImgHandlerを生成する。messagesがnilの場合は既定のメッセージを使う。
func NewImgHandler(renderer RendererInterface, messages model.SrcMessageCatalog) *ImgHandler {
	if messages == nil {
		messages = model.DefaultSrcMessages()
	}
	return &ImgHandler{
		renderer: renderer,
		messages: messages,
	}
}

// validateRequest は検証リクエストのボディ。
type validateRequest struct {
	Src string `json:"src"`
}

// validateResponse は検証結果のAPIレスポンス。
type validateResponse struct {
	OK      bool                          `json:"ok"`
	Src     string                        `json:"src"`
	Reason  string                        `json:"reason"`
	Message string                        `json:"message"`
	Error   *middleware.ErrorResponseBody `json:"error,omitempty"`
}

// Validate は画像URLを検証する。
// POST /api/img/validate
//
// 既定では判定結果を200で返す。?strict=true の場合、拒否されたURLは
// 統一エラーフォーマットのエラーレスポンスとなる。
func (h *ImgHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	v := h.renderer.Validate(req.Src)
	apiErr := model.NewSrcRejectedError(v, h.messages)

	if strict, _ := strconv.ParseBool(r.URL.Query().Get("strict")); strict && apiErr != nil {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	resp := validateResponse{
		OK:     v.OK(),
		Src:    v.Src,
		Reason: string(v.Reason),
	}
	if apiErr != nil {
		resp.Message = apiErr.Message
		body := middleware.NewErrorResponseBody(apiErr)
		resp.Error = &body
	}
	writeJSON(w, http.StatusOK, resp)
}

// renderRequest は描画リクエストのボディ。
type renderRequest struct {
	Mode   string            `json:"mode"`
	Src    string            `json:"src"`
	Input  string            `json:"input"`
	Attrs  map[string]string `json:"attrs"`
	Args   []string          `json:"args"`
	Output string            `json:"output"`
}

// renderResponse は描画結果のAPIレスポンス。
type renderResponse struct {
	HTML    string `json:"html"`
	IsHTML  bool   `json:"is_html"`
	IsError bool   `json:"is_error"`
	NoParse bool   `json:"no_parse"`
	Reason  string `json:"reason"`
}

// Render はimg要素を描画する。
// POST /api/img/render
//
// mode が tag の場合はタグ形式、function の場合はパーサー関数形式、
// element（既定）の場合は属性から直接img要素を生成する。
// src が指定された場合は attrs の src より優先する。
func (h *ImgHandler) Render(w http.ResponseWriter, r *http.Request) {
	var req renderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	attrs := render.Attributes(req.Attrs).Clone()
	if req.Src != "" {
		attrs["src"] = req.Src
	}

	var res render.Result
	switch req.Mode {
	case modeTag:
		res = h.renderer.RenderTag(req.Input, attrs)
	case modeFunction:
		out, ok := render.ParseOutputType(req.Output)
		if !ok {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewUnsupportedModeError("output="+req.Output))
			return
		}
		args := req.Args
		if req.Src != "" {
			args = append([]string{req.Src}, args...)
		}
		res = h.renderer.RenderFunction(out, args...)
	case modeElement, "":
		res = h.renderer.CreateImgElement(attrs)
	default:
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewUnsupportedModeError("mode="+req.Mode))
		return
	}

	writeJSON(w, http.StatusOK, renderResponse{
		HTML:    res.Output,
		IsHTML:  res.IsHTML,
		IsError: res.IsError,
		NoParse: res.NoParse,
		Reason:  string(res.Reason),
	})
}
