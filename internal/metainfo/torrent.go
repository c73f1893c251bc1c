package metainfo

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/bencode"

	"torrentmeta/internal/layout"
)

// Node is one DHT bootstrap node in its original (host, port) form.
type Node struct {
	Host string
	Port int
}

// TorrentInfo is the validated description of one torrent. Once built
// it is read-mostly: any number of goroutines may call read accessors
// concurrently. The mutating methods (RenameFile, Relayout, the list
// editors) are not safe to run concurrently with anything else on the
// same description; callers sharing one across goroutines must either
// provide their own exclusion or not mutate.
//
// A TorrentInfo built by NewFromInfoHash is a placeholder for metadata
// that has not been fetched yet; only InfoHashes reports anything and
// IsValid returns false.
type TorrentInfo struct {
	name        string
	files       *layout.Holder
	pieceHashes PieceHashes
	fileTrees   map[int][][32]byte
	infoHash    HybridInfoHash
	infoBytes   []byte

	trackers    []AnnounceEntry
	webSeeds    []WebSeed
	nodes       []Node
	similar     []InfoHash
	collections []string

	comment      string
	createdBy    string
	encoding     string
	sslCert      string
	creationDate time.Time

	multifile  bool
	ambiguous  bool
	private    bool
	i2p        bool
	v2         bool
	v2Verified bool

	// Retained tree handles for lazy auxiliary-key lookups.
	doc      Dict
	infoDict Dict

	auxMu    sync.Mutex
	auxCache map[string]interface{}
}

// NewFromInfoHash builds a placeholder description for metadata known
// only by its identifier, e.g. from a magnet link.
func NewFromInfoHash(h HybridInfoHash) *TorrentInfo {
	return &TorrentInfo{infoHash: h}
}

// IsValid reports whether the description holds loaded metadata.
func (t *TorrentInfo) IsValid() bool { return t.files != nil }

// Name returns the torrent's display name.
func (t *TorrentInfo) Name() string { return t.name }

// InfoHashes returns the hybrid content identifier.
func (t *TorrentInfo) InfoHashes() HybridInfoHash { return t.infoHash }

// InfoBytes returns the verbatim bencoded info dictionary, e.g. for
// serving metadata to peers. Callers must not modify it.
func (t *TorrentInfo) InfoBytes() []byte { return t.infoBytes }

// Files returns the live file layout, reflecting renames.
func (t *TorrentInfo) Files() *layout.FileLayout { return t.files.Current() }

// OrigFiles returns the layout as published in the torrent, before any
// local rename or relayout. Web seed URLs must be built against these
// names, not the renamed ones.
func (t *TorrentInfo) OrigFiles() *layout.FileLayout { return t.files.Original() }

// NumFiles returns the number of files.
func (t *TorrentInfo) NumFiles() int { return t.files.Current().NumFiles() }

// TotalLength returns the content size in bytes.
func (t *TorrentInfo) TotalLength() int64 { return t.files.Current().TotalLength() }

// PieceLength returns the nominal piece size.
func (t *TorrentInfo) PieceLength() int64 { return t.files.Current().PieceLength() }

// NumPieces returns the piece count.
func (t *TorrentInfo) NumPieces() int { return t.files.Current().NumPieces() }

// PieceSize returns the size of piece i.
func (t *TorrentInfo) PieceSize(i int) (int64, error) { return t.files.Current().PieceSize(i) }

// PieceHash returns the legacy 20-byte digest for a piece. Only
// meaningful when InfoHashes().HasV1.
func (t *TorrentInfo) PieceHash(i int) ([]byte, error) { return t.pieceHashes.At(i) }

// FileTree returns the retained v2 leaf digests for a file, one per
// piece, or nil when the file has none (short file, pad file, or the
// layer was absent).
func (t *TorrentInfo) FileTree(i int) [][32]byte { return t.fileTrees[i] }

// MapPiece returns the file byte ranges the given piece span touches.
func (t *TorrentInfo) MapPiece(piece int, offset, length int64) ([]layout.FileRange, error) {
	return t.files.Current().MapPiece(piece, offset, length)
}

// MapFile returns the piece byte ranges covering a span of one file.
func (t *TorrentInfo) MapFile(file int, offset, length int64) ([]layout.PieceRange, error) {
	return t.files.Current().MapFile(file, offset, length)
}

// Trackers returns the announce entries sorted by tier.
func (t *TorrentInfo) Trackers() []AnnounceEntry { return t.trackers }

// WebSeeds returns the alternate HTTP sources.
func (t *TorrentInfo) WebSeeds() []WebSeed { return t.webSeeds }

// Nodes returns the DHT bootstrap nodes.
func (t *TorrentInfo) Nodes() []Node { return t.nodes }

// SimilarTorrents returns the BEP 38 similar-torrent identifiers from
// both inside and outside the info dictionary.
func (t *TorrentInfo) SimilarTorrents() []InfoHash { return t.similar }

// Collections returns the BEP 38 collection names from both inside and
// outside the info dictionary.
func (t *TorrentInfo) Collections() []string { return t.collections }

// Comment returns the optional comment string.
func (t *TorrentInfo) Comment() string { return t.comment }

// Creator returns the optional created-by string.
func (t *TorrentInfo) Creator() string { return t.createdBy }

// Encoding returns the optional encoding hint.
func (t *TorrentInfo) Encoding() string { return t.encoding }

// SSLCert returns the inline certificate for SSL torrents, empty when
// absent.
func (t *TorrentInfo) SSLCert() string { return t.sslCert }

// CreationDate returns the creation timestamp, or the Unix epoch when
// the torrent did not carry a usable one.
func (t *TorrentInfo) CreationDate() time.Time { return t.creationDate }

// IsMultiFile reports whether the torrent used the multi-file form.
func (t *TorrentInfo) IsMultiFile() bool { return t.multifile }

// AmbiguousLayout reports that the info dictionary carried both the
// single- and multi-file forms, so re-creating it byte for byte needs
// out-of-band disambiguation.
func (t *TorrentInfo) AmbiguousLayout() bool { return t.ambiguous }

// Private reports the BEP 27 private flag: no DHT, no PEX, trackers
// only.
func (t *TorrentInfo) Private() bool { return t.private }

// IsI2P reports whether the torrent has a tracker on the i2p network.
func (t *TorrentInfo) IsI2P() bool { return t.i2p }

// HasV2 reports whether modern (meta version 2) metadata was present.
func (t *TorrentInfo) HasV2() bool { return t.v2 }

// V2Verified reports whether every multi-piece v2 file had its piece
// layer present and verified against its root.
func (t *TorrentInfo) V2Verified() bool { return t.v2Verified }

// AuxValue looks up a key the engine does not interpret, first in the
// top-level dictionary and then in the info dictionary, decoding it
// into plain Go values. Results are cached; the lookup is safe to call
// from concurrent readers.
func (t *TorrentInfo) AuxValue(key string) (interface{}, bool) {
	t.auxMu.Lock()
	defer t.auxMu.Unlock()

	if v, ok := t.auxCache[key]; ok {
		return v, true
	}
	raw, ok := t.doc[key]
	if !ok {
		raw, ok = t.infoDict[key]
	}
	if !ok {
		return nil, false
	}
	var v interface{}
	if err := bencode.DecodeBytes(raw, &v); err != nil {
		return nil, false
	}
	if t.auxCache == nil {
		t.auxCache = make(map[string]interface{})
	}
	t.auxCache[key] = v
	return v, true
}

// RenameFile changes the path of one file. Segments are separated by
// '/' and sanitized like paths from the torrent itself; a path that
// sanitizes to nothing fails with ErrInvalidPath. The original name
// remains visible through OrigFiles.
func (t *TorrentInfo) RenameFile(i int, newPath string) error {
	segments, err := sanitizePath(strings.Split(newPath, "/"))
	if err != nil {
		return err
	}
	return t.files.Rename(i, segments)
}

// Relayout replaces the whole file layout, e.g. to remap content into
// differently split files. The replacement must describe exactly the
// same number of bytes; on ErrLayoutSizeMismatch nothing changes.
func (t *TorrentInfo) Relayout(l *layout.FileLayout) error {
	return t.files.Relayout(l)
}

// AddTracker adds one announce URL at the given tier. Adding a URL
// already present is a no-op regardless of tier.
func (t *TorrentInfo) AddTracker(url string, tier int) error {
	if !validTrackerURL(url) {
		return fmt.Errorf("%w: tracker URL %q", ErrMalformedTree, url)
	}
	for _, entry := range t.trackers {
		if entry.URL == url {
			return nil
		}
	}
	t.trackers = append(t.trackers, AnnounceEntry{URL: url, Tier: tier})
	sortTrackers(t.trackers)
	if isI2PTracker(url) {
		t.i2p = true
	}
	return nil
}

// AddWebSeed adds a BEP 19 URL seed with optional auth and extra
// headers. Duplicate (url, kind) pairs are ignored.
func (t *TorrentInfo) AddWebSeed(url, auth string, headers map[string]string) {
	t.addWebSeed(WebSeed{URL: url, Kind: WebSeedURL, Auth: auth, ExtraHeaders: headers})
}

// AddHTTPSeed adds a BEP 17 HTTP seed.
func (t *TorrentInfo) AddHTTPSeed(url, auth string, headers map[string]string) {
	t.addWebSeed(WebSeed{URL: url, Kind: WebSeedHTTP, Auth: auth, ExtraHeaders: headers})
}

func (t *TorrentInfo) addWebSeed(seed WebSeed) {
	for _, existing := range t.webSeeds {
		if existing.equal(seed) {
			return
		}
	}
	t.webSeeds = append(t.webSeeds, seed)
}

// SetWebSeeds replaces the whole web seed list.
func (t *TorrentInfo) SetWebSeeds(seeds []WebSeed) {
	t.webSeeds = append([]WebSeed(nil), seeds...)
}

// AddNode adds a DHT bootstrap node.
func (t *TorrentInfo) AddNode(host string, port int) {
	t.nodes = append(t.nodes, Node{Host: host, Port: port})
}
