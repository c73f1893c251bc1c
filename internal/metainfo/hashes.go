package metainfo

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// InfoHash is the legacy (SHA-1) whole-info-dict digest.
type InfoHash [20]byte

func (h InfoHash) String() string { return hex.EncodeToString(h[:]) }

// InfoHashV2 is the modern (SHA-256) whole-info-dict digest.
type InfoHashV2 [32]byte

func (h InfoHashV2) String() string { return hex.EncodeToString(h[:]) }

// HybridInfoHash holds zero, one or two content identifiers. Which are
// set determines which hash paths (legacy pieces string, v2 piece
// layers) were active for the torrent.
type HybridInfoHash struct {
	V1    InfoHash
	HasV1 bool
	V2    InfoHashV2
	HasV2 bool
}

// hybridFromInfoBytes digests the verbatim info-dict bytes for the
// formats in use.
func hybridFromInfoBytes(infoBytes []byte, v1, v2 bool) HybridInfoHash {
	var h HybridInfoHash
	if v1 {
		h.V1 = sha1.Sum(infoBytes)
		h.HasV1 = true
	}
	if v2 {
		h.V2 = sha256.Sum256(infoBytes)
		h.HasV2 = true
	}
	return h
}

// Best returns the modern identifier when present, else the legacy
// one, as a hex string.
func (h HybridInfoHash) Best() string {
	if h.HasV2 {
		return h.V2.String()
	}
	if h.HasV1 {
		return h.V1.String()
	}
	return ""
}

const sha1Size = 20

// PieceHashes is a bounds-checked view over the legacy "pieces" byte
// string: one 20-byte digest per piece index, no copying. The view
// shares the decoded buffer; it stays valid as long as any holder of
// the torrent description does.
type PieceHashes struct {
	data  []byte
	count int
}

// NewPieceHashes validates the backing length once, at construction.
// The length must equal count*20 exactly; a truncated or padded table
// is a fatal error, never clamped.
func NewPieceHashes(data []byte, count int) (PieceHashes, error) {
	if len(data) != count*sha1Size {
		return PieceHashes{}, fmt.Errorf("%w: %d bytes of hashes for %d pieces",
			ErrHashSizeMismatch, len(data), count)
	}
	return PieceHashes{data: data, count: count}, nil
}

// Count returns the number of digests in the table.
func (p PieceHashes) Count() int { return p.count }

// At returns the 20-byte digest for a piece. The slice aliases the
// backing buffer and must not be modified.
func (p PieceHashes) At(i int) ([]byte, error) {
	if i < 0 || i >= p.count {
		return nil, fmt.Errorf("piece index %d out of range [0, %d)", i, p.count)
	}
	return p.data[i*sha1Size : (i+1)*sha1Size], nil
}
