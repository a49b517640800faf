package api

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestHeaderSafe(t *testing.T) {
	long := strings.Repeat("a", maxErrorHeaderLength-1) + "ßß"

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "unchanged", in: "title: must not be empty", want: "title: must not be empty"},
		{name: "newlines", in: "line one\r\nline two", want: "line one  line two"},
		{name: "ascii cut", in: strings.Repeat("x", maxErrorHeaderLength+10), want: strings.Repeat("x", maxErrorHeaderLength)},
		{name: "cut inside a rune", in: long, want: strings.Repeat("a", maxErrorHeaderLength-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := headerSafe(tt.in)
			if got != tt.want {
				t.Errorf("headerSafe() = %q (len %d), want len %d", got, len(got), len(tt.want))
			}
			if !utf8.ValidString(got) {
				t.Errorf("headerSafe() returned invalid UTF-8")
			}
		})
	}
}
