package layout

import (
	"testing"
)

func mustNew(t *testing.T, entries []FileEntry, pieceLength int64) *FileLayout {
	t.Helper()
	l, err := New(entries, pieceLength)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return l
}

func TestNew_SingleFileExactPieces(t *testing.T) {
	// 1 MiB file, 256 KiB pieces: 4 pieces, last one full.
	l := mustNew(t, []FileEntry{{Path: []string{"a"}, Length: 1048576}}, 262144)

	if got := l.NumPieces(); got != 4 {
		t.Errorf("NumPieces = %d, want 4", got)
	}
	if got := l.LastPieceSize(); got != 262144 {
		t.Errorf("LastPieceSize = %d, want 262144", got)
	}
}

func TestNew_SingleFilePartialLastPiece(t *testing.T) {
	l := mustNew(t, []FileEntry{{Path: []string{"a"}, Length: 1000000}}, 262144)

	if got := l.NumPieces(); got != 4 {
		t.Errorf("NumPieces = %d, want 4", got)
	}
	if got := l.LastPieceSize(); got != 212608 {
		t.Errorf("LastPieceSize = %d, want 212608", got)
	}
}

func TestNew_PieceCountInvariant(t *testing.T) {
	sizes := []int64{1, 100, 16384, 16385, 999999, 1 << 30}
	for _, size := range sizes {
		l := mustNew(t, []FileEntry{{Path: []string{"f"}, Length: size}}, 16384)
		want := int((size + 16383) / 16384)
		if got := l.NumPieces(); got != want {
			t.Errorf("size %d: NumPieces = %d, want %d", size, got, want)
		}
		last := l.LastPieceSize()
		if last <= 0 || last > l.PieceLength() {
			t.Errorf("size %d: LastPieceSize = %d, want in (0, %d]", size, last, l.PieceLength())
		}
	}
}

func TestNew_OffsetsCumulative(t *testing.T) {
	l := mustNew(t, []FileEntry{
		{Path: []string{"a"}, Length: 100},
		{Path: []string{"b"}, Length: 0},
		{Path: []string{"c"}, Length: 50},
		{Path: []string{"d"}, Length: 7},
	}, 64)

	var offset int64
	for i := 0; i < l.NumFiles(); i++ {
		f, err := l.FileAt(i)
		if err != nil {
			t.Fatalf("FileAt(%d): %v", i, err)
		}
		if f.Offset != offset {
			t.Errorf("file %d: Offset = %d, want %d", i, f.Offset, offset)
		}
		offset += f.Length
	}
	if offset != l.TotalLength() {
		t.Errorf("TotalLength = %d, want %d", l.TotalLength(), offset)
	}
}

func TestNew_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		entries     []FileEntry
		pieceLength int64
	}{
		{"empty list", nil, 16384},
		{"zero piece length", []FileEntry{{Path: []string{"a"}, Length: 1}}, 0},
		{"negative length", []FileEntry{{Path: []string{"a"}, Length: -1}}, 16384},
		{"zero total", []FileEntry{{Path: []string{"a"}, Length: 0}}, 16384},
		{"overflow", []FileEntry{
			{Path: []string{"a"}, Length: 1 << 62},
			{Path: []string{"b"}, Length: 1 << 62},
			{Path: []string{"c"}, Length: 1 << 62},
		}, 16384},
	}
	for _, tt := range tests {
		if _, err := New(tt.entries, tt.pieceLength); err == nil {
			t.Errorf("%s: New succeeded, want error", tt.name)
		}
	}
}

func TestMapPiece_SpansFiles(t *testing.T) {
	// Files of 100, 20, 200 bytes with 64-byte pieces. Piece 1 covers
	// bytes [64, 128): tail of file 0, all of file 1, head of file 2.
	l := mustNew(t, []FileEntry{
		{Path: []string{"a"}, Length: 100},
		{Path: []string{"b"}, Length: 20},
		{Path: []string{"c"}, Length: 200},
	}, 64)

	ranges, err := l.MapPiece(1, 0, 64)
	if err != nil {
		t.Fatalf("MapPiece: %v", err)
	}
	want := []FileRange{
		{FileIndex: 0, Offset: 64, Length: 36},
		{FileIndex: 1, Offset: 0, Length: 20},
		{FileIndex: 2, Offset: 0, Length: 8},
	}
	if len(ranges) != len(want) {
		t.Fatalf("got %d ranges, want %d: %+v", len(ranges), len(want), ranges)
	}
	for i, r := range ranges {
		if r != want[i] {
			t.Errorf("range %d = %+v, want %+v", i, r, want[i])
		}
	}
}

func TestMapPiece_OutOfRange(t *testing.T) {
	l := mustNew(t, []FileEntry{{Path: []string{"a"}, Length: 100}}, 64)

	if _, err := l.MapPiece(2, 0, 1); err == nil {
		t.Error("MapPiece(2, ...) succeeded, want error")
	}
	if _, err := l.MapPiece(1, 0, 64); err == nil {
		t.Error("MapPiece past total size succeeded, want error")
	}
	if _, err := l.MapPiece(0, -1, 1); err == nil {
		t.Error("MapPiece with negative offset succeeded, want error")
	}
}

func TestMapFile_InverseOfMapPiece(t *testing.T) {
	l := mustNew(t, []FileEntry{
		{Path: []string{"a"}, Length: 100},
		{Path: []string{"b"}, Length: 150},
	}, 64)

	// File 1 spans global bytes [100, 250): pieces 1..3.
	ranges, err := l.MapFile(1, 0, 150)
	if err != nil {
		t.Fatalf("MapFile: %v", err)
	}
	want := []PieceRange{
		{PieceIndex: 1, Offset: 36, Length: 28},
		{PieceIndex: 2, Offset: 0, Length: 64},
		{PieceIndex: 3, Offset: 0, Length: 58},
	}
	if len(ranges) != len(want) {
		t.Fatalf("got %d ranges, want %d: %+v", len(ranges), len(want), ranges)
	}
	for i, r := range ranges {
		if r != want[i] {
			t.Errorf("range %d = %+v, want %+v", i, r, want[i])
		}
	}

	var total int64
	for _, r := range ranges {
		total += r.Length
	}
	if total != 150 {
		t.Errorf("mapped lengths sum to %d, want 150", total)
	}
}

func TestPieceSize_Bounds(t *testing.T) {
	l := mustNew(t, []FileEntry{{Path: []string{"a"}, Length: 100}}, 64)

	if _, err := l.PieceSize(-1); err == nil {
		t.Error("PieceSize(-1) succeeded, want error")
	}
	if _, err := l.PieceSize(2); err == nil {
		t.Error("PieceSize(2) succeeded, want error")
	}
	size, err := l.PieceSize(1)
	if err != nil {
		t.Fatalf("PieceSize(1): %v", err)
	}
	if size != 36 {
		t.Errorf("PieceSize(1) = %d, want 36", size)
	}
}

func TestClone_Independent(t *testing.T) {
	l := mustNew(t, []FileEntry{{Path: []string{"orig"}, Length: 10}}, 16384)
	c := l.Clone()

	if err := c.SetPath(0, []string{"renamed"}); err != nil {
		t.Fatalf("SetPath: %v", err)
	}
	f, _ := l.FileAt(0)
	if f.Path[0] != "orig" {
		t.Errorf("original layout path = %q, want orig", f.Path[0])
	}
}
