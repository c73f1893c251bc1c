package metainfo

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizePath_Traversal(t *testing.T) {
	// A crafted segment must never escape the torrent root.
	got, err := sanitizePath([]string{"../../etc/passwd"})
	if err != nil {
		t.Fatalf("sanitizePath: %v", err)
	}
	want := "etc/passwd"
	if strings.Join(got, "/") != want {
		t.Errorf("sanitized = %q, want %q", strings.Join(got, "/"), want)
	}
	for _, seg := range got {
		if seg == ".." || strings.Contains(seg, "/") {
			t.Errorf("segment %q survived sanitization", seg)
		}
	}
}

func TestSanitizePath_AllRejected(t *testing.T) {
	_, err := sanitizePath([]string{"..", ".", "//", `\`})
	if !errors.Is(err, ErrInvalidPath) {
		t.Fatalf("error = %v, want ErrInvalidPath", err)
	}
}

func TestSanitizeSegment(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"normal.txt", "normal.txt", true},
		{"", "", false},
		{".", "", false},
		{"..", "", false},
		{"C:", "", false},
		{"c:stuff", "c_stuff", true},
		{"a:b", "a_b", true},
		{"name:stream", "name_stream", true},
		{`wild*card?`, "wild_card_", true},
		{`quo"ted<>|`, "quo_ted___", true},
		{"trailing. . ", "trailing", true},
		{"...", "", false},
		{"with\x00null", "", false},
		{"with\tcontrol", "", false},
		{"\xff\xfebad", "%ff%febad", true},
		{"héllo", "héllo", true},
	}
	for _, tt := range tests {
		got, ok := sanitizeSegment(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("sanitizeSegment(%q) = (%q, %v), want (%q, %v)", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSanitizePath_SplitsEmbeddedSeparators(t *testing.T) {
	got, err := sanitizePath([]string{`dir\sub`, "a//b"})
	if err != nil {
		t.Fatalf("sanitizePath: %v", err)
	}
	want := []string{"dir", "sub", "a", "b"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("segment %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSanitizePath_DriveLetter(t *testing.T) {
	// The drive component is dropped after splitting; the rest of the
	// path survives.
	got, err := sanitizePath([]string{`C:\evil\payload`})
	if err != nil {
		t.Fatalf("sanitizePath: %v", err)
	}
	want := "evil/payload"
	if strings.Join(got, "/") != want {
		t.Errorf("sanitized = %q, want %q", strings.Join(got, "/"), want)
	}
}

func TestSanitizePath_Pure(t *testing.T) {
	in := []string{"a", "b.txt"}
	first, err := sanitizePath(in)
	if err != nil {
		t.Fatalf("sanitizePath: %v", err)
	}
	second, err := sanitizePath(in)
	if err != nil {
		t.Fatalf("sanitizePath: %v", err)
	}
	if strings.Join(first, "/") != strings.Join(second, "/") {
		t.Error("sanitizePath is not deterministic")
	}
}
