package imgsrc

import "testing"

func TestParsePattern_Kind(t *testing.T) {
	tests := []struct {
		in   string
		want PatternKind
	}{
		{"example.com", HostPattern},
		{"*.example.com", WildcardHostPattern},
		{"https://example.com", ExactURLPattern},
		{"https://*.example.com", ExactURLPattern},
		{"https://example.com/path", ExactURLPattern},
		{"", HostPattern},
	}
	for _, tt := range tests {
		if got := ParsePattern(tt.in).Kind; got != tt.want {
			t.Errorf("ParsePattern(%q).Kind = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		patterns []string
		want     bool
	}{
		{
			name:     "ホスト名が完全一致する",
			url:      "http://example.com/x.png",
			patterns: []string{"example.com"},
			want:     true,
		},
		{
			name:     "ホスト名はスキームを問わない",
			url:      "https://example.com/deep/path/x.png",
			patterns: []string{"example.com"},
			want:     true,
		},
		{
			name:     "ホスト名のポートは無視する",
			url:      "https://example.com:8443/x.png",
			patterns: []string{"example.com"},
			want:     true,
		},
		{
			name:     "ホスト名はサブドメインに一致しない",
			url:      "http://cdn.example.com/x.png",
			patterns: []string{"example.com"},
			want:     false,
		},
		{
			name:     "ホスト名は大文字小文字を区別する",
			url:      "http://EXAMPLE.com/x.png",
			patterns: []string{"example.com"},
			want:     false,
		},
		{
			name:     "ワイルドカードはサブドメインに一致する",
			url:      "https://cdn.example.com/a.png",
			patterns: []string{"*.example.com"},
			want:     true,
		},
		{
			name:     "ワイルドカードは多段サブドメインに一致する",
			url:      "https://a.b.example.com/a.png",
			patterns: []string{"*.example.com"},
			want:     true,
		},
		{
			name:     "ワイルドカードは裸のドメインに一致しない",
			url:      "https://example.com/a.png",
			patterns: []string{"*.example.com"},
			want:     false,
		},
		{
			name:     "ワイルドカードは大文字小文字を区別しない",
			url:      "https://CDN.Example.COM/a.png",
			patterns: []string{"*.example.com"},
			want:     true,
		},
		{
			name:     "ワイルドカードは部分文字列で判定する",
			url:      "https://cdn.example.com.evil.net/a.png",
			patterns: []string{"*.example.com"},
			want:     true,
		},
		{
			name:     "完全URLは文字列が完全一致する場合のみ一致する",
			url:      "https://example.com",
			patterns: []string{"https://example.com"},
			want:     true,
		},
		{
			name:     "完全URLは前方一致しない",
			url:      "https://example.com/path/to/x.png",
			patterns: []string{"https://example.com/path"},
			want:     false,
		},
		{
			name:     "完全URLは末尾スラッシュを許容しない",
			url:      "https://example.com/",
			patterns: []string{"https://example.com"},
			want:     false,
		},
		{
			name:     "ワイルドカード付き完全URLはリテラルとしてのみ一致する",
			url:      "https://cdn.example.com",
			patterns: []string{"https://*.example.com"},
			want:     false,
		},
		{
			name:     "いずれかのパターンに一致すれば真",
			url:      "https://img.example.org/a.png",
			patterns: []string{"example.com", "*.example.org"},
			want:     true,
		},
		{
			name:     "ホストがないURLは常に偽",
			url:      "/a/b.png",
			patterns: []string{"/a/b.png", "*"},
			want:     false,
		},
		{
			name:     "パースできないURLは常に偽",
			url:      "http://exa mple.com/%zz",
			patterns: []string{"http://exa mple.com/%zz"},
			want:     false,
		},
		{
			name:     "空のパターンリストは偽",
			url:      "https://example.com/a.png",
			patterns: nil,
			want:     false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.url, tt.patterns); got != tt.want {
				t.Errorf("Matches(%q, %v) = %v, want %v", tt.url, tt.patterns, got, tt.want)
			}
		})
	}
}

func TestCompilePatterns_KeepsOrderAndLength(t *testing.T) {
	raw := []string{"example.com", "*.cdn.net", "https://a.example.com/x.png", ""}
	got := CompilePatterns(raw)
	if len(got) != len(raw) {
		t.Fatalf("len(CompilePatterns) = %d, want %d", len(got), len(raw))
	}
	for i, p := range got {
		if p.Raw != raw[i] {
			t.Errorf("pattern[%d].Raw = %q, want %q", i, p.Raw, raw[i])
		}
	}
}
