package render

import "strings"

const (
	// tagClass はタグ形式で生成したimg要素に付与するクラス。
	tagClass = "imgtag-hook"
	// functionClass はパーサー関数形式で生成したimg要素に付与するクラス。
	functionClass = "imgtag-function"
)

// OutputType はパーサー関数の出力先の種類。
type OutputType string

const (
	// OutputHTML はHTMLとして出力する。
	OutputHTML OutputType = "html"
	// OutputWiki はwikitextの前処理段階。srcをそのまま返す。
	OutputWiki OutputType = "wiki"
	// OutputPlain はプレーンテキスト出力。srcをそのまま返し、以降の解釈を止める。
	OutputPlain OutputType = "plain"
)

// ParseOutputType は文字列をOutputTypeに変換する。空文字列はOutputHTMLとなる。
func ParseOutputType(s string) (OutputType, bool) {
	switch OutputType(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputHTML:
		return OutputHTML, true
	case OutputWiki:
		return OutputWiki, true
	case OutputPlain:
		return OutputPlain, true
	default:
		return "", false
	}
}

// RenderTag はタグ形式 <img src="..." ...> を描画する。
//
// srcは属性から取得し、空の場合はタグの内側の入力を使う（<img>URL</img> のような誤用への対応）。
// どちらも空なら何も出力しない。
func (r *Renderer) RenderTag(input string, args Attributes) Result {
	attrs := args.Clone()

	src := strings.TrimSpace(attrs["src"])
	if src == "" {
		src = strings.TrimSpace(input)
	}
	if src == "" {
		return Result{}
	}

	attrs["src"] = src
	attrs["class"] = appendClass(attrs["class"], tagClass)

	return r.createImgElement("tag", attrs)
}

// RenderFunction はパーサー関数形式 {{#img:...}} を描画する。
//
// srcは src= オプション、なければ最初の引数から取得する。
// src= が空で指定された場合は最初の引数を使わず、何も出力しない。
// OutputWiki と OutputPlain ではsrcの文字列をそのまま返す。
func (r *Renderer) RenderFunction(out OutputType, args ...string) Result {
	opts := ExtractOptions(args)

	src, ok := opts["src"]
	if !ok && len(args) > 0 {
		src = args[0]
	}
	src = strings.TrimSpace(src)
	if src == "" {
		return Result{}
	}

	switch out {
	case OutputWiki:
		return Result{Output: src}
	case OutputPlain:
		return Result{Output: src, NoParse: true}
	}

	opts["src"] = src
	opts["class"] = appendClass(opts["class"], functionClass)

	return r.createImgElement("function", opts)
}

// ExtractOptions は "key=value" 形式の引数をオプションに変換する。
// 最初の "=" で分割し、キーと値の前後の空白を除去する。
// "=" を含まない引数は値が空のフラグとして扱う。後の引数が優先される。
func ExtractOptions(args []string) Attributes {
	opts := make(Attributes, len(args))
	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if found {
			opts[key] = strings.TrimSpace(value)
		} else {
			opts[key] = ""
		}
	}
	return opts
}
