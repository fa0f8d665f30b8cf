package imgsrc

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Reason は検証失敗の理由コード。外部でユーザー向けメッセージに対応付けられる。
type Reason string

const (
	// ReasonNone は検証成功を表す。
	ReasonNone Reason = ""
	// ReasonEmptySrc は src が空または空白のみであることを表す。
	ReasonEmptySrc Reason = "empty-src"
	// ReasonInvalidSrc は危険なスキーム、またはホストを抽出できないURLであることを表す。
	ReasonInvalidSrc Reason = "invalid-src"
	// ReasonNotWhitelisted はホワイトリストに一致しないことを表す。
	ReasonNotWhitelisted Reason = "not-whitelisted"
	// ReasonBlacklisted はブラックリストに一致したことを表す。
	ReasonBlacklisted Reason = "blacklisted"
)

// Reasons は失敗理由コードの一覧を返す。
func Reasons() []Reason {
	return []Reason{ReasonEmptySrc, ReasonInvalidSrc, ReasonNotWhitelisted, ReasonBlacklisted}
}

// 理由コードに対応するセンチネルエラー。errors.Isで判定できる。
var (
	ErrEmptySrc       = errors.New("empty image src")
	ErrInvalidSrc     = errors.New("invalid image src")
	ErrNotWhitelisted = errors.New("image src is not whitelisted")
	ErrBlacklisted    = errors.New("image src is blacklisted")
)

// Verdict は検証結果。Reasonが空の場合は受け入れ可能。
type Verdict struct {
	// Src は前後の空白を除去した候補URL。
	Src    string
	Reason Reason
}

// OK は検証に成功したかを返す。
func (v Verdict) OK() bool {
	return v.Reason == ReasonNone
}

// Err は失敗理由に対応するエラーを返す。成功時はnil。
func (v Verdict) Err() error {
	var base error
	switch v.Reason {
	case ReasonNone:
		return nil
	case ReasonEmptySrc:
		return ErrEmptySrc
	case ReasonInvalidSrc:
		base = ErrInvalidSrc
	case ReasonNotWhitelisted:
		base = ErrNotWhitelisted
	case ReasonBlacklisted:
		base = ErrBlacklisted
	default:
		return fmt.Errorf("unknown verdict reason %q", v.Reason)
	}
	return fmt.Errorf("%w: %s", base, v.Src)
}

// Policy は検証に使うホワイトリストとブラックリスト。
// 読み込み時に構築し、以後は読み取り専用として扱う。
type Policy struct {
	Whitelist []Pattern
	Blacklist []Pattern
}

// NewPolicy は設定文字列のリストからPolicyを生成する。
func NewPolicy(whitelist, blacklist []string) *Policy {
	return &Policy{
		Whitelist: CompilePatterns(whitelist),
		Blacklist: CompilePatterns(blacklist),
	}
}

// dangerousScheme は拒否するスキーム。先頭の空白を許容し、大文字小文字を区別しない。
var dangerousScheme = regexp.MustCompile(`(?i)^\s*(data:|blob:|javascript:|vbscript:|file:|ftp:)`)

// Validate は src を検証して判定結果を返す。各段階は失敗した時点で打ち切られる。
//
//  1. 空白除去後に空なら empty-src
//  2. 危険なスキームで始まるなら invalid-src
//  3. 1回だけURLデコードした結果が危険なスキームで始まるなら invalid-src
//  4. デコード前の文字列からホストを抽出できなければ invalid-src
//  5. ホワイトリストが空でなく、一致しなければ not-whitelisted
//  6. ブラックリストが空でなく、一致すれば blacklisted
//
// nilのPolicyはリストなしとして扱う。
func (p *Policy) Validate(rawSrc string) Verdict {
	src := strings.TrimSpace(rawSrc)
	if src == "" {
		return Verdict{Src: src, Reason: ReasonEmptySrc}
	}

	if dangerousScheme.MatchString(src) {
		return Verdict{Src: src, Reason: ReasonInvalidSrc}
	}
	if dangerousScheme.MatchString(decodeOnce(src)) {
		return Verdict{Src: src, Reason: ReasonInvalidSrc}
	}

	if _, ok := extractHost(src); !ok {
		return Verdict{Src: src, Reason: ReasonInvalidSrc}
	}

	if p == nil {
		return Verdict{Src: src}
	}

	if len(p.Whitelist) > 0 && !MatchAny(src, p.Whitelist) {
		return Verdict{Src: src, Reason: ReasonNotWhitelisted}
	}
	if len(p.Blacklist) > 0 && MatchAny(src, p.Blacklist) {
		return Verdict{Src: src, Reason: ReasonBlacklisted}
	}

	return Verdict{Src: src}
}

// Validate は文字列リストを直接受け取って検証する。
func Validate(rawSrc string, whitelist, blacklist []string) Verdict {
	return NewPolicy(whitelist, blacklist).Validate(rawSrc)
}

// decodeOnce はクエリ文字列形式のデコードを1回だけ行う。
// "+" は空白に、正しい %XX は対応するバイトに置換する。
// 不正な % はそのまま残し、デコード全体を失敗させない。
func decodeOnce(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}
