package layout

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// FileEntry describes one file in the torrent's content. Identity is
// the entry's position in the ordered file list; everything except
// Path is fixed once the layout is built.
type FileEntry struct {
	Path        []string // sanitized path segments, relative to the torrent root
	Length      int64    // file length in bytes
	Offset      int64    // cumulative offset in the concatenated content
	PiecesRoot  [32]byte // v2 merkle root, zero when absent
	HasRoot     bool     // whether PiecesRoot is meaningful
	PadFile     bool     // BEP 47 pad file
	Executable  bool
	Hidden      bool
	SymlinkPath []string // symlink target segments, empty for regular files
}

// DisplayPath joins the path segments with forward slashes.
func (e *FileEntry) DisplayPath() string {
	return strings.Join(e.Path, "/")
}

// FileLayout is the ordered (path, size) table for a torrent plus the
// piece arithmetic derived from it. Entries keep their file-list order;
// offsets are cumulative and downstream piece mapping depends on that
// order never changing.
type FileLayout struct {
	entries     []FileEntry
	pieceLength int64
	totalLength int64
}

// FileRange is a byte range within one file, produced when mapping a
// piece onto the file list.
type FileRange struct {
	FileIndex int
	Offset    int64 // offset within the file
	Length    int64
}

// PieceRange is a byte range within one piece, produced when mapping a
// file span onto the piece space.
type PieceRange struct {
	PieceIndex int
	Offset     int64 // offset within the piece
	Length     int64
}

// New builds a layout from entries in file-list order. Offsets are
// assigned here; any Offset already present on the entries is
// overwritten. Fails on an empty list, a non-positive piece length, a
// negative entry length, or a total size that overflows int64.
func New(entries []FileEntry, pieceLength int64) (*FileLayout, error) {
	if len(entries) == 0 {
		return nil, errors.New("empty file list")
	}
	if pieceLength <= 0 {
		return nil, fmt.Errorf("invalid piece length %d", pieceLength)
	}

	var offset int64
	for i := range entries {
		if entries[i].Length < 0 {
			return nil, fmt.Errorf("file %d has negative length %d", i, entries[i].Length)
		}
		if entries[i].Length > math.MaxInt64-offset {
			return nil, errors.New("total size overflows")
		}
		entries[i].Offset = offset
		offset += entries[i].Length
	}
	if offset == 0 {
		return nil, errors.New("zero total size")
	}

	return &FileLayout{
		entries:     entries,
		pieceLength: pieceLength,
		totalLength: offset,
	}, nil
}

// NumFiles returns the number of entries in the layout.
func (l *FileLayout) NumFiles() int { return len(l.entries) }

// FileAt returns the entry at index i. The returned pointer stays valid
// for the lifetime of the layout; callers must not mutate it.
func (l *FileLayout) FileAt(i int) (*FileEntry, error) {
	if i < 0 || i >= len(l.entries) {
		return nil, fmt.Errorf("file index %d out of range [0, %d)", i, len(l.entries))
	}
	return &l.entries[i], nil
}

// SetPath rewrites the path of entry i in place. Length, offset and
// index are untouched.
func (l *FileLayout) SetPath(i int, segments []string) error {
	if i < 0 || i >= len(l.entries) {
		return fmt.Errorf("file index %d out of range [0, %d)", i, len(l.entries))
	}
	if len(segments) == 0 {
		return errors.New("empty path")
	}
	l.entries[i].Path = append([]string(nil), segments...)
	return nil
}

// PieceLength returns the nominal piece size in bytes.
func (l *FileLayout) PieceLength() int64 { return l.pieceLength }

// TotalLength returns the sum of all entry lengths.
func (l *FileLayout) TotalLength() int64 { return l.totalLength }

// NumPieces returns ceil(total length / piece length). Always positive
// for a constructed layout.
func (l *FileLayout) NumPieces() int {
	return int((l.totalLength + l.pieceLength - 1) / l.pieceLength)
}

// PieceSize returns the size of piece i. Every piece is pieceLength
// bytes except possibly the last, whose size is in (0, pieceLength].
func (l *FileLayout) PieceSize(i int) (int64, error) {
	num := l.NumPieces()
	if i < 0 || i >= num {
		return 0, fmt.Errorf("piece index %d out of range [0, %d)", i, num)
	}
	if i < num-1 {
		return l.pieceLength, nil
	}
	return l.totalLength - l.pieceLength*int64(num-1), nil
}

// LastPieceSize returns the size of the final piece.
func (l *FileLayout) LastPieceSize() int64 {
	size, _ := l.PieceSize(l.NumPieces() - 1)
	return size
}

// fileIndexAt returns the index of the entry containing the global
// byte offset. Zero-length entries are skipped over.
func (l *FileLayout) fileIndexAt(offset int64) int {
	i := sort.Search(len(l.entries), func(i int) bool {
		return l.entries[i].Offset+l.entries[i].Length > offset
	})
	return i
}

// MapPiece returns the file byte ranges touched by the span starting
// at (piece, offset) and running for length bytes. The span must lie
// within the torrent's content.
func (l *FileLayout) MapPiece(piece int, offset, length int64) ([]FileRange, error) {
	num := l.NumPieces()
	if piece < 0 || piece >= num {
		return nil, fmt.Errorf("piece index %d out of range [0, %d)", piece, num)
	}
	if offset < 0 || length < 0 {
		return nil, errors.New("negative offset or length")
	}
	start := int64(piece)*l.pieceLength + offset
	end := start + length
	if end > l.totalLength {
		return nil, fmt.Errorf("span [%d, %d) exceeds total size %d", start, end, l.totalLength)
	}

	var ranges []FileRange
	for i := l.fileIndexAt(start); i < len(l.entries) && start < end; i++ {
		file := &l.entries[i]
		if file.Length == 0 {
			continue
		}
		fileEnd := file.Offset + file.Length
		n := min(end, fileEnd) - start
		ranges = append(ranges, FileRange{
			FileIndex: i,
			Offset:    start - file.Offset,
			Length:    n,
		})
		start += n
	}
	return ranges, nil
}

// MapFile is the inverse of MapPiece: it returns the piece byte ranges
// covering the span starting at offset within file i and running for
// length bytes.
func (l *FileLayout) MapFile(i int, offset, length int64) ([]PieceRange, error) {
	file, err := l.FileAt(i)
	if err != nil {
		return nil, err
	}
	if offset < 0 || length < 0 {
		return nil, errors.New("negative offset or length")
	}
	if offset+length > file.Length {
		return nil, fmt.Errorf("span [%d, %d) exceeds file size %d", offset, offset+length, file.Length)
	}

	start := file.Offset + offset
	end := start + length
	var ranges []PieceRange
	for start < end {
		piece := start / l.pieceLength
		pieceEnd := (piece + 1) * l.pieceLength
		n := min(end, pieceEnd) - start
		ranges = append(ranges, PieceRange{
			PieceIndex: int(piece),
			Offset:     start - piece*l.pieceLength,
			Length:     n,
		})
		start += n
	}
	return ranges, nil
}

// Clone returns a deep copy of the layout. Entry paths are copied so
// later renames on either side stay independent.
func (l *FileLayout) Clone() *FileLayout {
	entries := make([]FileEntry, len(l.entries))
	copy(entries, l.entries)
	for i := range entries {
		entries[i].Path = append([]string(nil), entries[i].Path...)
		if entries[i].SymlinkPath != nil {
			entries[i].SymlinkPath = append([]string(nil), entries[i].SymlinkPath...)
		}
	}
	return &FileLayout{
		entries:     entries,
		pieceLength: l.pieceLength,
		totalLength: l.totalLength,
	}
}
