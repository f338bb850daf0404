package naming

import "testing"

func TestTransliterate(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple syllables",
			input: "모찌고",
			want:  "mojjigo",
		},
		{
			name:  "syllables with trail consonants",
			input: "한국",
			want:  "hangug",
		},
		{
			name:  "tense lead consonant",
			input: "빵",
			want:  "ppang",
		},
		{
			name:  "empty lead (ieung)",
			input: "아이",
			want:  "ai",
		},
		{
			name:  "compound trail",
			input: "닭",
			want:  "dalg",
		},
		{
			name:  "ascii passthrough",
			input: "abc XYZ 123",
			want:  "abc XYZ 123",
		},
		{
			name:  "whitespace runs collapse",
			input: "a  \t b",
			want:  "a b",
		},
		{
			name:  "symbols dropped",
			input: "a!@#b",
			want:  "ab",
		},
		{
			name:  "non-hangul non-ascii dropped",
			input: "日本語abc",
			want:  "abc",
		},
		{
			name:  "empty input",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Transliterate(tt.input)
			if got != tt.want {
				t.Errorf("Transliterate(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTransliterate_Deterministic(t *testing.T) {
	input := "모찌고 Trading 한국 2호점"
	first := Transliterate(input)
	for i := 0; i < 10; i++ {
		if got := Transliterate(input); got != first {
			t.Fatalf("call %d produced %q, first call produced %q", i, got, first)
		}
	}
}

func TestIsHangulSyllable(t *testing.T) {
	if !IsHangulSyllable('가') {
		t.Error("expected 가 to be a Hangul syllable")
	}
	if !IsHangulSyllable('힣') {
		t.Error("expected 힣 to be a Hangul syllable")
	}
	if IsHangulSyllable('a') {
		t.Error("expected 'a' not to be a Hangul syllable")
	}
	if IsHangulSyllable('ㄱ') {
		t.Error("expected bare jamo not to be a precomposed syllable")
	}
}
