package metainfo

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Characters rejected on filesystems we may extract to. The colon also
// covers Windows alternate data streams.
const unsafeChars = `*?"<>|:`

// sanitizePath runs every raw segment of a file entry through the
// segment sanitizer and returns the surviving segments. A segment that
// contains path separators is split and each part handled on its own,
// so a crafted entry like "../../etc/passwd" in a single segment
// cannot escape the torrent root. Fails only when nothing survives.
func sanitizePath(segments []string) ([]string, error) {
	var out []string
	for _, seg := range segments {
		for _, part := range strings.Split(strings.ReplaceAll(seg, `\`, "/"), "/") {
			if clean, ok := sanitizeSegment(part); ok {
				out = append(out, clean)
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, strings.Join(segments, "/"))
	}
	return out, nil
}

// sanitizeSegment normalizes one path segment. It is a pure function:
// the result depends only on the input. Returns false when the segment
// must be dropped entirely.
func sanitizeSegment(seg string) (string, bool) {
	// Traversal and no-op segments. Empty segments come from
	// redundant separators and collapse silently.
	if seg == "" || seg == "." || seg == ".." {
		return "", false
	}
	// A bare drive letter ("C:") would anchor the path on Windows.
	// Separators are already split out by the caller, so longer
	// segments like "a:b" are plain names; the colon is replaced
	// below.
	if len(seg) == 2 && seg[1] == ':' && isASCIILetter(seg[0]) {
		return "", false
	}

	var b strings.Builder
	for i := 0; i < len(seg); {
		r, size := utf8.DecodeRuneInString(seg[i:])
		switch {
		case r == utf8.RuneError && size == 1:
			// Invalid encoding: escape the byte instead of
			// failing the whole file list.
			fmt.Fprintf(&b, "%%%02x", seg[i])
		case r < 0x20 || r == 0x7f:
			return "", false
		case size == 1 && strings.ContainsRune(unsafeChars, r):
			b.WriteByte('_')
		default:
			b.WriteString(seg[i : i+size])
		}
		i += size
	}

	// Windows refuses names with trailing dots or spaces.
	clean := strings.TrimRight(b.String(), ". ")
	if clean == "" {
		return "", false
	}
	return clean, true
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
