package util

import (
	"testing"
	"unicode/utf8"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"shorter than max", "jazz", 10, "jazz"},
		{"exactly max", "jazz", 4, "jazz"},
		{"over max", "jazz and blues", 4, "jazz..."},
		{"empty", "", 3, ""},
		{"multi-byte kept whole", "héllo wörld", 7, "héllo w..."},
		{"cjk", "記憶のパイプライン", 3, "記憶の..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.in, tt.max)
			if got != tt.want {
				t.Fatalf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("Truncate produced invalid UTF-8: %q", got)
			}
		})
	}
}

func TestRenderTemplate(t *testing.T) {
	out, err := RenderTemplate("Conversation:\n{{.Conversation}}", map[string]any{"Conversation": "user: hi"})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if out != "Conversation:\nuser: hi" {
		t.Fatalf("unexpected render: %q", out)
	}

	out, err = RenderTemplate("no markers here", nil)
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if out != "no markers here" {
		t.Fatalf("fast path must return input unchanged: %q", out)
	}
}
