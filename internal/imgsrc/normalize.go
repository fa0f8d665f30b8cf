// Package imgsrc は画像ソースURLの受け入れ判定を提供する。
//
// ユーザーが入力した信頼できない src と、サイト設定のホワイトリスト/ブラックリストから、
// そのURLを img 要素として描画してよいかを判定し、拒否する場合は理由コードを返す。
// このパッケージは純粋な文字列処理のみを行い、ネットワークI/O、ログ出力、
// 共有された可変状態を一切持たない。並行に呼び出しても安全である。
package imgsrc

import "strings"

const (
	// encodedSchemeSep はテンプレートのショートカットがエスケープ済みマークアップ内に
	// URLを出力した際に現れる、コロンがHTMLエンティティ化された区切り。
	encodedSchemeSep = "&#58;//"
	schemeSep        = "://"
)

// Normalize は既知の崩れたURL形式を正規の絶対URL文字列へ書き換える。
//
//   - "&#58;//" をすべて "://" に置換する
//   - 置換後の文字列が "//" で始まる場合（プロトコル相対URL）は "https:" を前置する
//
// エンティティの置換はプロトコル相対の判定より先に行う。
// そのため "&#58;//x" は "://x" となり、"https:" は付与されない。
// それ以外の書き換えは行わない。
func Normalize(rawSrc string) string {
	src := rawSrc
	if strings.Contains(src, encodedSchemeSep) {
		src = strings.ReplaceAll(src, encodedSchemeSep, schemeSep)
	}
	if strings.HasPrefix(src, "//") {
		src = "https:" + src
	}
	return src
}
