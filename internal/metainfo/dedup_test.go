package metainfo

import (
	"strings"
	"testing"

	"torrentmeta/internal/layout"
)

func dedupLayout(t *testing.T, paths ...string) *layout.FileLayout {
	t.Helper()
	entries := make([]layout.FileEntry, len(paths))
	for i, p := range paths {
		entries[i] = layout.FileEntry{Path: strings.Split(p, "/"), Length: 1}
	}
	l, err := layout.New(entries, 16384)
	if err != nil {
		t.Fatalf("layout.New: %v", err)
	}
	return l
}

func resolve(l *layout.FileLayout) {
	if collided := detectCollisions(l); len(collided) > 0 {
		disambiguate(l, collided)
	}
}

func paths(t *testing.T, l *layout.FileLayout) []string {
	t.Helper()
	out := make([]string, l.NumFiles())
	for i := range out {
		f, err := l.FileAt(i)
		if err != nil {
			t.Fatalf("FileAt(%d): %v", i, err)
		}
		out[i] = f.DisplayPath()
	}
	return out
}

func assertNoCollisions(t *testing.T, l *layout.FileLayout) {
	t.Helper()
	seen := make(map[string]string)
	for _, p := range paths(t, l) {
		key := normPath(strings.Split(p, "/"))
		if prev, ok := seen[key]; ok {
			t.Errorf("paths %q and %q still collide", prev, p)
		}
		seen[key] = p
	}
	if got := detectCollisions(l); len(got) != 0 {
		t.Errorf("detectCollisions after resolve = %v, want none", got)
	}
}

func TestDedup_NoCollisionsUntouched(t *testing.T) {
	l := dedupLayout(t, "dir/a", "dir/b", "c")
	before := paths(t, l)
	resolve(l)
	after := paths(t, l)
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("collision-free path %q changed to %q", before[i], after[i])
		}
	}
	if got := detectCollisions(l); len(got) != 0 {
		t.Errorf("detectCollisions = %v, want none", got)
	}
}

func TestDedup_IdenticalNames(t *testing.T) {
	l := dedupLayout(t, "dir/a", "dir/a")
	resolve(l)

	got := paths(t, l)
	if got[0] != "dir/a" {
		t.Errorf("first entry renamed to %q, want dir/a", got[0])
	}
	if got[1] != "dir/a_1" {
		t.Errorf("second entry = %q, want dir/a_1", got[1])
	}
	assertNoCollisions(t, l)
}

func TestDedup_CaseInsensitive(t *testing.T) {
	l := dedupLayout(t, "Readme.TXT", "readme.txt", "README.txt")
	resolve(l)
	assertNoCollisions(t, l)

	// First entry keeps its name; later ones get suffixes before the
	// extension.
	got := paths(t, l)
	if got[0] != "Readme.TXT" {
		t.Errorf("first entry renamed to %q", got[0])
	}
	if got[1] != "readme_1.txt" {
		t.Errorf("second entry = %q, want readme_1.txt", got[1])
	}
	if got[2] != "README_2.txt" {
		t.Errorf("third entry = %q, want README_2.txt", got[2])
	}
}

func TestDedup_FileVsDirectory(t *testing.T) {
	// "a" the file collides with "a" the directory implied by "a/b".
	l := dedupLayout(t, "a/b", "a")
	resolve(l)
	assertNoCollisions(t, l)

	got := paths(t, l)
	if got[1] != "a_1" {
		t.Errorf("colliding file = %q, want a_1", got[1])
	}
}

func TestDedup_FileBeforeDirectory(t *testing.T) {
	// The directory implied by "a/b" collides with the earlier file
	// "a". Suffixing the leaf cannot fix that; the directory component
	// itself gets renamed.
	l := dedupLayout(t, "a", "a/b")
	resolve(l)
	assertNoCollisions(t, l)

	got := paths(t, l)
	if got[0] != "a" {
		t.Errorf("first entry renamed to %q, want a", got[0])
	}
	if got[1] != "a_1/b" {
		t.Errorf("second entry = %q, want a_1/b", got[1])
	}

	// A second pass must leave the layout untouched.
	resolve(l)
	twice := paths(t, l)
	for i := range got {
		if got[i] != twice[i] {
			t.Errorf("entry %d: %q after one pass, %q after two", i, got[i], twice[i])
		}
	}
}

func TestDedup_FileBeforeNestedDirectory(t *testing.T) {
	l := dedupLayout(t, "x", "x/y/z")
	resolve(l)
	assertNoCollisions(t, l)

	got := paths(t, l)
	if got[1] != "x_1/y/z" {
		t.Errorf("nested entry = %q, want x_1/y/z", got[1])
	}
}

func TestDedup_Idempotent(t *testing.T) {
	l := dedupLayout(t, "x", "x", "X", "x_1")
	resolve(l)
	once := paths(t, l)
	resolve(l)
	twice := paths(t, l)
	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("entry %d: %q after one pass, %q after two", i, once[i], twice[i])
		}
	}
	assertNoCollisions(t, l)
}

func TestDedup_Deterministic(t *testing.T) {
	build := func() []string {
		l := dedupLayout(t, "f", "f", "f", "f")
		resolve(l)
		return paths(t, l)
	}
	a, b := build(), build()
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("entry %d differs between runs: %q vs %q", i, a[i], b[i])
		}
	}
}

func TestDedup_PreservesLengthAndOffset(t *testing.T) {
	entries := []layout.FileEntry{
		{Path: []string{"same"}, Length: 100},
		{Path: []string{"same"}, Length: 50},
	}
	l, err := layout.New(entries, 64)
	if err != nil {
		t.Fatalf("layout.New: %v", err)
	}
	resolve(l)

	f0, _ := l.FileAt(0)
	f1, _ := l.FileAt(1)
	if f0.Length != 100 || f1.Length != 50 {
		t.Error("resolver changed file lengths")
	}
	if f0.Offset != 0 || f1.Offset != 100 {
		t.Error("resolver changed file offsets")
	}
}
