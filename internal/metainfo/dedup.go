package metainfo

import (
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"torrentmeta/internal/layout"
)

// Duplicate name resolution. Target filesystems may be
// case-insensitive and Unicode-normalizing, so two entries whose paths
// differ only in case or normalization form would land on the same
// file. The resolver guarantees no two final paths collide under that
// comparison, and also that no file path collides with a directory
// implied by another entry.
//
// Per the two-tier design, detection and disambiguation are separate
// pure passes; the engine runs the expensive second pass only when the
// first one found something.

// normPath folds a path for collision comparison: NFC-normalized,
// lowercased, segments joined with '/'.
func normPath(segments []string) string {
	return norm.NFC.String(strings.ToLower(strings.Join(segments, "/")))
}

// detectCollisions reports which entries collide with an
// earlier-indexed entry, either directly or as file-vs-directory.
// The typical torrent has none, and this single pass is all it costs.
func detectCollisions(l *layout.FileLayout) []int {
	files := make(map[string]bool, l.NumFiles())
	dirs := make(map[string]bool)
	var collided []int

	for i := 0; i < l.NumFiles(); i++ {
		entry, _ := l.FileAt(i)
		key := normPath(entry.Path)

		clash := files[key] || dirs[key]
		for _, prefix := range dirPrefixes(key) {
			if files[prefix] {
				clash = true
			}
		}
		if clash {
			collided = append(collided, i)
			continue
		}

		files[key] = true
		for _, prefix := range dirPrefixes(key) {
			dirs[prefix] = true
		}
	}
	return collided
}

// disambiguate renames the collided entries by inserting a numeric
// suffix before the extension of whichever path component carries the
// collision, in ascending file-list order so the outcome is
// reproducible for identical input. Suffixing is unbounded, so this
// always converges.
func disambiguate(l *layout.FileLayout, collided []int) {
	takenFiles := make(map[string]bool, l.NumFiles())
	takenDirs := make(map[string]bool)
	isCollided := make(map[int]bool, len(collided))
	for _, i := range collided {
		isCollided[i] = true
	}
	record := func(path []string) {
		key := normPath(path)
		takenFiles[key] = true
		for _, prefix := range dirPrefixes(key) {
			takenDirs[prefix] = true
		}
	}
	for i := 0; i < l.NumFiles(); i++ {
		if isCollided[i] {
			continue
		}
		entry, _ := l.FileAt(i)
		record(entry.Path)
	}

	for _, i := range collided {
		entry, _ := l.FileAt(i)
		path := append([]string(nil), entry.Path...)
		// A rename at component idx leaves prefixes below idx
		// untouched and collision-free, so this terminates after at
		// most len(path) renames.
		for {
			idx, clash := conflictIndex(takenFiles, takenDirs, path)
			if !clash {
				break
			}
			renameComponent(takenFiles, takenDirs, path, idx)
		}
		record(path)
		l.SetPath(i, path)
	}
}

// conflictIndex returns the first path component whose cumulative
// prefix collides with a taken name: a directory component matching a
// taken file, or the final component matching a taken file or
// directory. Two entries sharing a directory name is not a collision.
func conflictIndex(takenFiles, takenDirs map[string]bool, path []string) (int, bool) {
	for i := range path {
		key := normPath(path[:i+1])
		if takenFiles[key] || (i == len(path)-1 && takenDirs[key]) {
			return i, true
		}
	}
	return 0, false
}

// renameComponent suffixes component idx until its cumulative prefix
// stops colliding.
func renameComponent(takenFiles, takenDirs map[string]bool, path []string, idx int) {
	stem, ext := splitExt(path[idx])
	leaf := idx == len(path)-1
	for n := 1; ; n++ {
		path[idx] = stem + "_" + strconv.Itoa(n) + ext
		key := normPath(path[:idx+1])
		if !takenFiles[key] && (!leaf || !takenDirs[key]) {
			return
		}
	}
}

// dirPrefixes lists every directory implied by a joined path key:
// "a/b/c" implies "a" and "a/b".
func dirPrefixes(key string) []string {
	var prefixes []string
	for i := 0; i < len(key); i++ {
		if key[i] == '/' {
			prefixes = append(prefixes, key[:i])
		}
	}
	return prefixes
}

// splitExt splits "archive.tar.gz" into "archive.tar" and ".gz". A
// leading dot is not an extension.
func splitExt(name string) (stem, ext string) {
	dot := strings.LastIndexByte(name, '.')
	if dot <= 0 {
		return name, ""
	}
	return name[:dot], name[dot:]
}
