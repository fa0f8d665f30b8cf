// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ImgSanitizerService は描画済みのimg要素を最終的にサニタイズし、
// src 以外の属性（class, style, 任意属性）から混入するXSSを防ぐ。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// img要素と安全な属性のみを通過させる。
package security

import (
	"net/url"
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

// ImgSanitizerService はimg要素のサニタイズ機能のインターフェースを定義する。
// レンダラーがimg要素を出力する直前に使用される。
type ImgSanitizerService interface {
	// Sanitize はimg要素のマークアップをサニタイズして安全なHTMLを返す。
	// img以外のタグは除去され、許可されていない属性とon*イベント属性は削除される。
	// srcはスキーム付きの絶対URLのみ許可され、危険なスキームは除去される。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(markup string) string
}

// loadingValues はloading属性に許可する値。
var loadingValues = regexp.MustCompile(`^(lazy|eager)$`)

// decodingValues はdecoding属性に許可する値。
var decodingValues = regexp.MustCompile(`^(sync|async|auto)$`)

// urlScheme はRFC 3986のスキーム構文。url.Parseがスキームを小文字化した後に照合される。
var urlScheme = regexp.MustCompile(`^[a-z][a-z0-9+.-]*$`)

// deniedSchemes はimgsrcが invalid-src とするスキーム。
// スキーム単位の設定は urlScheme の照合より優先される。
var deniedSchemes = []string{"data", "blob", "javascript", "vbscript", "file", "ftp"}

func denyURL(*url.URL) bool { return false }

// imgSanitizer はImgSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type imgSanitizer struct {
	policy *bluemonday.Policy
}

// NewImgSanitizer はImgSanitizerServiceの新しいインスタンスを生成する。
// 初期化時にbluemondayのカスタムポリシーを構築する。
// ポリシーの内容:
//   - 許可タグ: img のみ
//   - src: スキーム付きの絶対URL（data, javascript 等の危険なスキームを除く）
//   - alt, title, class, style, data-* はそのまま許可
//   - width, height は整数のみ
//   - loading は lazy/eager、decoding は sync/async/auto のみ
func NewImgSanitizer() *imgSanitizer {
	p := bluemonday.NewPolicy()

	// スキームの可否はimgsrcと揃える。最終出力でも相対URLと危険なスキームは拒否する
	p.AllowAttrs("src").OnElements("img")
	p.AllowURLSchemesMatching(urlScheme)
	for _, scheme := range deniedSchemes {
		p.AllowURLSchemeWithCustomPolicy(scheme, denyURL)
	}
	p.AllowRelativeURLs(false)
	p.RequireParseableURLs(true)

	p.AllowAttrs("alt", "title").OnElements("img")
	p.AllowAttrs("class").Matching(bluemonday.SpaceSeparatedTokens).OnElements("img")
	p.AllowAttrs("style").OnElements("img")
	p.AllowAttrs("width", "height").Matching(bluemonday.Integer).OnElements("img")
	p.AllowAttrs("loading").Matching(loadingValues).OnElements("img")
	p.AllowAttrs("decoding").Matching(decodingValues).OnElements("img")
	p.AllowDataAttributes()

	return &imgSanitizer{
		policy: p,
	}
}

// Sanitize はimg要素のマークアップをサニタイズして安全なHTMLを返す。
func (s *imgSanitizer) Sanitize(markup string) string {
	return s.policy.Sanitize(markup)
}
