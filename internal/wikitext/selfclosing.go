// Package wikitext はパース前のwikitextに対する前処理を提供する。
package wikitext

import "regexp"

// SelfClosingMark は自己終了形式に修正したimgタグに付与する属性。
const SelfClosingMark = "data-imgtag-unsafe-self-closing"

var (
	imgTag        = regexp.MustCompile(`(?i)<img\b([^<>]*?)>`)
	selfClosedEnd = regexp.MustCompile(`/\s*>$`)
)

// FixSelfClosing は閉じられていない <img ...> を <img ... data-imgtag-unsafe-self-closing /> に書き換える。
// 既に /> で終わるタグはそのまま残す。書き換えた後のテキストと書き換えた件数を返す。
func FixSelfClosing(text string) (string, int) {
	fixed := 0
	out := imgTag.ReplaceAllStringFunc(text, func(tag string) string {
		if selfClosedEnd.MatchString(tag) {
			return tag
		}
		fixed++
		attrs := imgTag.FindStringSubmatch(tag)[1]
		return "<img" + attrs + " " + SelfClosingMark + " />"
	})
	return out, fixed
}
