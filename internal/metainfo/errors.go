package metainfo

import (
	"errors"

	"torrentmeta/internal/layout"
)

// Construction and mutation errors. All parse-time errors abort the
// whole ingestion; a TorrentInfo is never exposed half built. Callers
// distinguish categories with errors.Is.
var (
	// ErrMalformedTree means a required key is missing or has the
	// wrong type in the metadata dictionary.
	ErrMalformedTree = errors.New("malformed metadata tree")

	// ErrInvalidPath means sanitizing a file's path rejected every
	// segment, leaving nothing to name the file by.
	ErrInvalidPath = errors.New("invalid file path")

	// ErrInvalidLayout covers bad piece lengths, empty file lists,
	// negative file sizes and size overflow.
	ErrInvalidLayout = errors.New("invalid file layout")

	// ErrHashSizeMismatch means the pieces string length disagrees
	// with the piece count.
	ErrHashSizeMismatch = errors.New("piece hash size mismatch")

	// ErrHashTreeMismatch means a recomputed piece-layer merkle root
	// differs from the root declared in the file list.
	ErrHashTreeMismatch = errors.New("piece layer hash mismatch")

	// ErrMissingHashTree means hashes were required but a multi-piece
	// v2 file has no piece layer.
	ErrMissingHashTree = errors.New("missing piece layer")

	// ErrLayoutSizeMismatch is returned by Relayout when the
	// replacement layout has a different total size.
	ErrLayoutSizeMismatch = layout.ErrLayoutSizeMismatch

	// ErrBufferTooLarge means the convenience loader refused an input
	// over the configured ceiling.
	ErrBufferTooLarge = errors.New("metadata buffer exceeds size limit")

	// ErrIoFailure wraps a read error from the convenience loader.
	ErrIoFailure = errors.New("metadata read failure")
)
