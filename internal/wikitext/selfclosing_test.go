package wikitext

import "testing"

func TestFixSelfClosing(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		fixed int
	}{
		{
			name:  "閉じていないタグを修正",
			input: `<img src="https://example.com/a.png">`,
			want:  `<img src="https://example.com/a.png" data-imgtag-unsafe-self-closing />`,
			fixed: 1,
		},
		{
			name:  "自己終了タグはそのまま",
			input: `<img src="https://example.com/a.png"/>`,
			want:  `<img src="https://example.com/a.png"/>`,
		},
		{
			name:  "スラッシュと>の間の空白も許容",
			input: `<img src="a" / >`,
			want:  `<img src="a" / >`,
		},
		{
			name:  "大文字のタグ名",
			input: `<IMG src="a">`,
			want:  `<img src="a" data-imgtag-unsafe-self-closing />`,
			fixed: 1,
		},
		{
			name:  "属性なし",
			input: `<img>`,
			want:  `<img data-imgtag-unsafe-self-closing />`,
			fixed: 1,
		},
		{
			name:  "複数のタグ",
			input: "前 <img src=\"a\"> 中 <img src=\"b\" /> 後 <img src=\"c\">",
			want:  "前 <img src=\"a\" data-imgtag-unsafe-self-closing /> 中 <img src=\"b\" /> 後 <img src=\"c\" data-imgtag-unsafe-self-closing />",
			fixed: 2,
		},
		{
			name:  "imgで始まる別のタグは対象外",
			input: `<imgx src="a">`,
			want:  `<imgx src="a">`,
		},
		{
			name:  "内側に<を含む場合は対象外",
			input: `<img src="<a">`,
			want:  `<img src="<a">`,
		},
		{
			name:  "タグなし",
			input: "plain text",
			want:  "plain text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, fixed := FixSelfClosing(tt.input)
			if got != tt.want {
				t.Errorf("FixSelfClosing(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if fixed != tt.fixed {
				t.Errorf("fixed = %d, want %d", fixed, tt.fixed)
			}
		})
	}
}

func TestFixSelfClosing_Idempotent(t *testing.T) {
	once, _ := FixSelfClosing(`<img src="a"><img src="b">`)
	twice, fixed := FixSelfClosing(once)
	if twice != once {
		t.Errorf("second pass changed text: %q -> %q", once, twice)
	}
	if fixed != 0 {
		t.Errorf("second pass fixed = %d, want 0", fixed)
	}
}
