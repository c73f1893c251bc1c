package metainfo

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"torrentmeta/internal/layout"
)

// v2 merkle trees hash the file content in 16 KiB blocks regardless of
// the piece length (BEP 52).
const merkleBlockSize = 1 << 14

// verifyPieceLayers checks every v2 file's piece layer against the
// root declared in the file list and returns the retained leaf layers
// keyed by file index. Pad files and files of at most one piece carry
// no layer; for the latter the declared root already is the single
// piece digest, and a layer, if supplied anyway, must match it.
//
// A missing layer for a multi-piece file is fatal only when
// requireHashes is set; otherwise the torrent is marked not yet fully
// verified and the caller decides what to do with that.
func verifyPieceLayers(l *layout.FileLayout, layers map[string]string, requireHashes bool) (map[int][][32]byte, bool, error) {
	trees := make(map[int][][32]byte)
	verified := true

	for i := 0; i < l.NumFiles(); i++ {
		file, _ := l.FileAt(i)
		if !file.HasRoot || file.PadFile || file.Length == 0 {
			continue
		}

		layer, ok := layers[string(file.PiecesRoot[:])]
		if file.Length <= l.PieceLength() {
			// Single-piece file: the root is the piece digest
			// itself. No tree to rebuild.
			if ok && !bytes.Equal([]byte(layer), file.PiecesRoot[:]) {
				return nil, false, fmt.Errorf("%w: file %d", ErrHashTreeMismatch, i)
			}
			continue
		}

		if !ok {
			if requireHashes {
				return nil, false, fmt.Errorf("%w: file %d (%s)", ErrMissingHashTree, i, file.DisplayPath())
			}
			verified = false
			continue
		}

		leaves, err := splitLayer(layer)
		if err != nil {
			return nil, false, fmt.Errorf("file %d: %w", i, err)
		}
		wantLeaves := (file.Length + l.PieceLength() - 1) / l.PieceLength()
		if int64(len(leaves)) != wantLeaves {
			return nil, false, fmt.Errorf("%w: file %d has %d layer digests, want %d",
				ErrMalformedTree, i, len(leaves), wantLeaves)
		}

		root := merkleRoot(leaves, padDigest(l.PieceLength()))
		if root != file.PiecesRoot {
			return nil, false, fmt.Errorf("%w: file %d (%s)", ErrHashTreeMismatch, i, file.DisplayPath())
		}
		trees[i] = leaves
	}
	return trees, verified, nil
}

// splitLayer cuts the flat piece-layer string into 32-byte digests.
func splitLayer(layer string) ([][32]byte, error) {
	if len(layer) == 0 || len(layer)%32 != 0 {
		return nil, fmt.Errorf("%w: piece layer length %d not a multiple of 32",
			ErrMalformedTree, len(layer))
	}
	leaves := make([][32]byte, len(layer)/32)
	for i := range leaves {
		copy(leaves[i][:], layer[i*32:])
	}
	return leaves, nil
}

// padDigest returns the digest standing in for an absent piece-sized
// subtree: the root of an all-zero tree with one leaf per 16 KiB
// block of a piece.
func padDigest(pieceLength int64) [32]byte {
	var d [32]byte
	for n := pieceLength / merkleBlockSize; n > 1; n /= 2 {
		d = combineDigests(d, d)
	}
	return d
}

// merkleRoot rebuilds the binary hash tree bottom-up. Incomplete
// levels are padded with pad so the leaf count reaches the next power
// of two.
func merkleRoot(leaves [][32]byte, pad [32]byte) [32]byte {
	if len(leaves) == 0 {
		return pad
	}
	level := append([][32]byte(nil), leaves...)
	for len(level)&(len(level)-1) != 0 {
		level = append(level, pad)
	}
	for len(level) > 1 {
		next := level[:len(level)/2]
		for i := range next {
			next[i] = combineDigests(level[2*i], level[2*i+1])
		}
		level = next
	}
	return level[0]
}

func combineDigests(left, right [32]byte) [32]byte {
	h := sha256.New()
	h.Write(left[:])
	h.Write(right[:])
	var out [32]byte
	h.Sum(out[:0])
	return out
}
