package layout

import (
	"errors"
	"fmt"
)

// ErrLayoutSizeMismatch is returned by Relayout when the replacement
// layout's total size differs from the current one.
var ErrLayoutSizeMismatch = errors.New("layout size mismatch")

// Holder wraps a FileLayout so that local mutations (renames, a full
// relayout) do not disturb the originally published view. The first
// mutation clones the current layout into a private snapshot; readers
// needing the as-published names use Original.
//
// Holder is not safe for concurrent use with mutations; see the
// package-level sharing contract in metainfo.
type Holder struct {
	current *FileLayout
	orig    *FileLayout // nil until the first mutation
}

// NewHolder wraps a freshly built layout.
func NewHolder(l *FileLayout) *Holder {
	return &Holder{current: l}
}

// Current returns the live layout, reflecting any renames or relayout.
func (h *Holder) Current() *FileLayout { return h.current }

// Original returns the layout as it was before the first mutation, or
// the current layout if nothing was ever mutated.
func (h *Holder) Original() *FileLayout {
	if h.orig != nil {
		return h.orig
	}
	return h.current
}

// snapshot captures the pre-mutation layout. Called before every
// mutation; only the first call clones.
func (h *Holder) snapshot() {
	if h.orig == nil {
		h.orig = h.current.Clone()
	}
}

// Rename rewrites the path of entry i. The original layout keeps the
// old name.
func (h *Holder) Rename(i int, segments []string) error {
	if i < 0 || i >= h.current.NumFiles() {
		return fmt.Errorf("file index %d out of range [0, %d)", i, h.current.NumFiles())
	}
	if len(segments) == 0 {
		return errors.New("empty path")
	}
	h.snapshot()
	return h.current.SetPath(i, segments)
}

// Relayout replaces the whole layout. The replacement must describe
// exactly the same number of content bytes; on mismatch the holder is
// left unchanged.
func (h *Holder) Relayout(l *FileLayout) error {
	if l.TotalLength() != h.current.TotalLength() {
		return fmt.Errorf("%w: have %d bytes, replacement has %d",
			ErrLayoutSizeMismatch, h.current.TotalLength(), l.TotalLength())
	}
	h.snapshot()
	h.current = l
	return nil
}
