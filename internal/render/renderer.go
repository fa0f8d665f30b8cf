// Package render はimgsrcの判定結果をHTMLに変換する。
//
// 検証に成功したURLからはimg要素を、失敗した場合は理由を表示するインラインの
// エラーマーカーを生成する。タグ形式（<img src=...>）とパーサー関数形式（{{#img:...}}）の
// 2つの入口を持つ。
package render

import (
	"log/slog"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/hitoshi/imgtag/internal/imgsrc"
	"github.com/hitoshi/imgtag/internal/model"
	"github.com/hitoshi/imgtag/internal/security"
)

const (
	// errorClass はエラーマーカーのspanに付与するクラス。
	errorClass = "error imgtag-error"
	// srcInputAttr はエラーマーカーに拒否された入力を保持する属性。
	srcInputAttr = "data-src-input"
)

// PolicySource は現在有効な検証ポリシーを返す。
// 設定のリロードに対応するため、呼び出しごとに問い合わせる。
type PolicySource interface {
	Policy() *imgsrc.Policy
}

// StaticPolicy は固定のPolicyを返すPolicySource。
type StaticPolicy struct {
	P *imgsrc.Policy
}

// Policy は保持しているPolicyを返す。
func (s StaticPolicy) Policy() *imgsrc.Policy {
	return s.P
}

// MessageCatalog は理由コードをユーザー向けメッセージに変換する。
type MessageCatalog interface {
	Message(reason imgsrc.Reason) string
}

// Recorder は描画結果のメトリクスを記録する。
type Recorder interface {
	RecordVerdict(reason imgsrc.Reason)
	RecordRender(entry string, isError bool, duration time.Duration)
}

// Result は描画結果。
type Result struct {
	// Output は出力文字列。IsHTMLがfalseの場合はプレーンテキスト。
	Output  string
	IsHTML  bool
	IsError bool
	// NoParse は出力をこれ以上wikitextとして解釈しないことを示す。
	NoParse bool
	// Reason は検証失敗時の理由コード。
	Reason imgsrc.Reason
}

// Renderer はimg要素とエラーマーカーを生成する。
type Renderer struct {
	policies  PolicySource
	sanitizer security.ImgSanitizerService
	messages  MessageCatalog
	recorder  Recorder
	logger    *slog.Logger
}

// NewRenderer はRendererを生成する。
// recorderはnilでもよい。policiesがnilの場合は制限なし、sanitizerとmessagesがnilの場合は既定のもの、
// loggerがnilの場合はslog.Default()を使用する。
func NewRenderer(
	policies PolicySource,
	sanitizer security.ImgSanitizerService,
	messages MessageCatalog,
	recorder Recorder,
	logger *slog.Logger,
) *Renderer {
	if policies == nil {
		policies = StaticPolicy{}
	}
	if sanitizer == nil {
		sanitizer = security.NewImgSanitizer()
	}
	if messages == nil {
		messages = model.DefaultSrcMessages()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		policies:  policies,
		sanitizer: sanitizer,
		messages:  messages,
		recorder:  recorder,
		logger:    logger,
	}
}

// Validate はsrcを正規化し、現在のポリシーで検証する。
func (r *Renderer) Validate(rawSrc string) imgsrc.Verdict {
	return r.validate(imgsrc.Normalize(rawSrc))
}

// validate は正規化済みのsrcを検証し、判定を記録する。
func (r *Renderer) validate(src string) imgsrc.Verdict {
	v := r.policies.Policy().Validate(src)
	if r.recorder != nil {
		r.recorder.RecordVerdict(v.Reason)
	}
	return v
}

// CreateImgElement は属性からimg要素を生成する。
//
// srcは正規化してから検証する。正規化後のsrcが空の場合は何も出力しない。
// 検証に失敗した場合は理由を表示するspan要素を返す。
// loading属性は明示的に eager が指定された場合を除き lazy とする。
func (r *Renderer) CreateImgElement(attrs Attributes) Result {
	return r.createImgElement("element", attrs)
}

func (r *Renderer) createImgElement(entry string, attrs Attributes) (res Result) {
	start := time.Now()
	defer func() {
		if r.recorder != nil && res.IsHTML {
			r.recorder.RecordRender(entry, res.IsError, time.Since(start))
		}
	}()

	attrs = attrs.Clone()
	src := imgsrc.Normalize(attrs["src"])
	if src == "" {
		return Result{IsHTML: true}
	}

	v := r.validate(src)
	if !v.OK() {
		return r.rejectSrc(entry, src, v.Reason)
	}

	attrs["src"] = v.Src
	if attrs["loading"] != "eager" {
		attrs["loading"] = "lazy"
	}

	markup, err := renderElement("img", attrs.ordered(), "")
	if err != nil {
		r.logger.Error("failed to render img element", slog.String("error", err.Error()))
		return Result{IsHTML: true}
	}

	out := r.sanitizer.Sanitize(markup)
	if !hasImgSrc(out) {
		// サニタイザーがsrcを落とした場合はsrcのないimgを出さずにエラーとする
		return r.rejectSrc(entry, src, imgsrc.ReasonInvalidSrc)
	}
	return Result{Output: out, IsHTML: true}
}

// rejectSrc は理由を表示するエラーマーカーを生成する。
func (r *Renderer) rejectSrc(entry, src string, reason imgsrc.Reason) Result {
	r.logger.Info("image src rejected",
		slog.String("entry", entry),
		slog.String("reason", string(reason)),
		slog.String("src", src),
	)
	markup, err := renderElement("span", []attr{
		{Key: "class", Val: errorClass},
		{Key: srcInputAttr, Val: src},
	}, r.messages.Message(reason))
	if err != nil {
		r.logger.Error("failed to render error marker", slog.String("error", err.Error()))
		return Result{IsHTML: true, IsError: true, Reason: reason}
	}
	return Result{Output: markup, IsHTML: true, IsError: true, Reason: reason}
}

// hasImgSrc はマークアップ中のimg要素が空でないsrcを持つかを返す。
func hasImgSrc(markup string) bool {
	z := html.NewTokenizer(strings.NewReader(markup))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data != "img" {
				continue
			}
			for _, a := range tok.Attr {
				if a.Key == "src" && a.Val != "" {
					return true
				}
			}
			return false
		}
	}
}
