package imgsrc

import (
	"net/url"
	"strings"
)

// PatternKind はホワイトリスト/ブラックリストのエントリ種別を表す。
type PatternKind int

const (
	// HostPattern はホスト名のみのパターン（例: example.com）。
	// URLのホストと完全一致（大文字小文字を区別）した場合にマッチする。
	HostPattern PatternKind = iota
	// WildcardHostPattern は "*" を含むホスト名パターン（例: *.example.com）。
	// "*" を除去した残りがホストに部分文字列として含まれる場合（大文字小文字を区別しない）にマッチする。
	WildcardHostPattern
	// ExactURLPattern は "://" を含む完全URLパターン（例: https://example.com）。
	// 候補URLと文字列として完全一致した場合のみマッチする。
	// パス付きURLやワイルドカード付きURLもこの種別に含まれる。
	ExactURLPattern
)

// String は種別名を返す。
func (k PatternKind) String() string {
	switch k {
	case HostPattern:
		return "host"
	case WildcardHostPattern:
		return "wildcard-host"
	case ExactURLPattern:
		return "exact-url"
	default:
		return "unknown"
	}
}

// Pattern は設定読み込み時に一度だけ分類されたパターン。
type Pattern struct {
	Kind PatternKind
	// Raw は設定に書かれた元の文字列。
	Raw string
	// value は照合に使う値。WildcardHostPatternでは "*" を除去し小文字化した残り。
	value string
}

// ParsePattern は設定文字列を分類してPatternを返す。
// "://" を含めばExactURLPattern、そうでなく "*" を含めばWildcardHostPattern、
// それ以外はHostPatternとなる。
func ParsePattern(s string) Pattern {
	switch {
	case strings.Contains(s, schemeSep):
		return Pattern{Kind: ExactURLPattern, Raw: s, value: s}
	case strings.Contains(s, "*"):
		return Pattern{
			Kind:  WildcardHostPattern,
			Raw:   s,
			value: strings.ToLower(strings.ReplaceAll(s, "*", "")),
		}
	default:
		return Pattern{Kind: HostPattern, Raw: s, value: s}
	}
}

// CompilePatterns は設定文字列のリストをPatternのリストに変換する。
// 空文字列も含めて要素を落とさない。空のHostPatternは実在のホストと一致しない。
func CompilePatterns(raw []string) []Pattern {
	if len(raw) == 0 {
		return nil
	}
	patterns := make([]Pattern, 0, len(raw))
	for _, s := range raw {
		patterns = append(patterns, ParsePattern(s))
	}
	return patterns
}

// Match は候補URL文字列とそこから抽出済みのホストに対してパターンを照合する。
func (p Pattern) Match(rawURL, host string) bool {
	switch p.Kind {
	case ExactURLPattern:
		return rawURL == p.value
	case WildcardHostPattern:
		// 接尾辞ではなく部分文字列で判定する。既存の設定がこの挙動に依存している。
		return strings.Contains(strings.ToLower(host), p.value)
	default:
		return host == p.value
	}
}

// MatchAny はURLがいずれかのパターンにマッチするかを返す。
// URLのパースは呼び出しごとに1回のみ行う。パースできない、またはホストがない場合は
// パターンに関わらずfalseを返す。
func MatchAny(rawURL string, patterns []Pattern) bool {
	host, ok := extractHost(rawURL)
	if !ok {
		return false
	}
	for _, p := range patterns {
		if p.Match(rawURL, host) {
			return true
		}
	}
	return false
}

// Matches は文字列のパターンリストに対してURLを照合する。
// パターンを都度分類するため、繰り返し使う場合はCompilePatternsとMatchAnyを使うこと。
func Matches(rawURL string, patterns []string) bool {
	return MatchAny(rawURL, CompilePatterns(patterns))
}

// extractHost はURLからホスト名（ポートと角括弧を除く）を取り出す。
func extractHost(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := u.Hostname()
	if host == "" {
		return "", false
	}
	return host, true
}
