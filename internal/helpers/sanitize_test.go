package helpers

import "testing"

func TestPlainText(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"<b>Bold</b> move", "Bold move"},
		{"Fish &amp; Chips", "Fish & Chips"},
		{"<script>alert(1)</script>safe", "safe"},
		{"  spaced\n\tout   text ", "spaced out text"},
	}
	for _, tt := range tests {
		if got := PlainText(tt.in); got != tt.want {
			t.Fatalf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()
	if got := Truncate("hello", 10); got != "hello" {
		t.Fatalf("short string changed: %q", got)
	}
	if got := Truncate("hello", 3); got != "hel" {
		t.Fatalf("Truncate = %q", got)
	}
	if got := Truncate("héllo", 2); got != "hé" {
		t.Fatalf("rune boundary not respected: %q", got)
	}
	if got := Truncate("abc", 0); got != "abc" {
		t.Fatalf("zero max should not truncate: %q", got)
	}
}
