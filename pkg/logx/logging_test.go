package logx

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	cases := []struct {
		name string
		in   string
		maxN int
		want string
	}{
		{"short string untouched", "hello", 1800, "hello"},
		{"exact length untouched", "hello", 5, "hello"},
		{"ascii cut with ellipsis", strings.Repeat("a", 20), 13, strings.Repeat("a", 10) + "..."},
		{"tiny budget cuts hard", "hello world", 4, "hell"},
		{"zero budget is a no-op", "hello", 0, "hello"},
	}
	for _, tc := range cases {
		if got := truncate(tc.in, tc.maxN); got != tc.want {
			t.Errorf("%s: truncate(%q, %d) = %q, want %q", tc.name, tc.in, tc.maxN, got, tc.want)
		}
	}
}

func TestTruncateKeepsUTF8Valid(t *testing.T) {
	// Each rune is 3 bytes; byte budgets land mid-rune on purpose.
	in := strings.Repeat("日", 10)
	for maxN := 1; maxN < len(in); maxN++ {
		got := truncate(in, maxN)
		if !utf8.ValidString(got) {
			t.Fatalf("truncate(%q, %d) = %q: invalid UTF-8", in, maxN, got)
		}
		if len(got) > maxN {
			t.Fatalf("truncate(%q, %d) = %q: %d bytes over budget", in, maxN, got, len(got))
		}
	}
}
