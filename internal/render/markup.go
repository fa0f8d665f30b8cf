package render

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Attributes はタグまたはパーサー関数に渡された属性。
type Attributes map[string]string

// attr は出力順を保持した属性。
type attr = html.Attribute

// attrName は出力を許可する属性名。名前はそのままマークアップに書き出されるため、
// 引用符や空白を含む名前はここで落とす。
var attrName = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)

// omitWhenEmpty は値が空のとき出力しない属性。
var omitWhenEmpty = map[string]bool{
	"class": true,
	"style": true,
}

// Clone は属性名を小文字化・空白除去したコピーを返す。
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

// ordered は src を先頭に、残りを名前順に並べた属性を返す。
func (a Attributes) ordered() []attr {
	keys := make([]string, 0, len(a))
	for k, v := range a {
		if k == "src" || !attrName.MatchString(k) {
			continue
		}
		if omitWhenEmpty[k] && strings.TrimSpace(v) == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]attr, 0, len(keys)+1)
	if src, ok := a["src"]; ok {
		out = append(out, attr{Key: "src", Val: src})
	}
	for _, k := range keys {
		out = append(out, attr{Key: k, Val: a[k]})
	}
	return out
}

// appendClass はクラス文字列に cls を追加する。
func appendClass(classes, cls string) string {
	classes = strings.TrimSpace(classes)
	if classes == "" {
		return cls
	}
	return classes + " " + cls
}

// renderElement は単一の要素をシリアライズする。属性値とテキストはエスケープされる。
func renderElement(tag string, attrs []attr, text string) (string, error) {
	n := &html.Node{
		Type:     html.ElementNode,
		Data:     tag,
		DataAtom: atom.Lookup([]byte(tag)),
		Attr:     attrs,
	}
	if text != "" {
		n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	}

	var buf bytes.Buffer
	if err := html.Render(&buf, n); err != nil {
		return "", fmt.Errorf("render <%s>: %w", tag, err)
	}
	return buf.String(), nil
}
