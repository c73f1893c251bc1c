package metainfo

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/bencode"

	"torrentmeta/internal/layout"
)

// Dict is a decoded bencoded dictionary with its values still in wire
// form. It is the tree handle the engine walks; values are decoded on
// demand so one bad optional key cannot poison the rest.
type Dict = map[string]bencode.RawMessage

// DefaultMaxBufferSize bounds Load. Torrent files are small; anything
// bigger is either broken or hostile.
const DefaultMaxBufferSize = 12 << 20

// ParseOptions configures one ingestion. The zero value accepts
// legacy-only torrents and tolerates missing piece layers.
type ParseOptions struct {
	// RequireV2 rejects torrents that carry no v2 (meta version 2)
	// metadata.
	RequireV2 bool

	// RequireHashes makes a missing piece layer for a multi-piece v2
	// file fatal. When false the torrent loads and reports
	// V2Verified() == false instead.
	RequireHashes bool

	// MaxBufferSize overrides DefaultMaxBufferSize for Load.
	MaxBufferSize int64

	// Logger receives warnings about skipped non-fatal entries
	// (malformed tracker or web seed URLs). Nil means slog.Default.
	Logger *slog.Logger
}

func (o ParseOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

func (o ParseOptions) maxBufferSize() int64 {
	if o.MaxBufferSize > 0 {
		return o.MaxBufferSize
	}
	return DefaultMaxBufferSize
}

// Load reads a torrent file from disk and parses it. This is the only
// disk touch in the package: a bounded read delegating to ParseBytes.
func Load(path string, opts ParseOptions) (*TorrentInfo, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %v", ErrIoFailure, path, err)
	}
	if fi.Size() > opts.maxBufferSize() {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d",
			ErrBufferTooLarge, path, fi.Size(), opts.maxBufferSize())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrIoFailure, path, err)
	}
	return ParseBytes(data, opts)
}

// ParseBytes decodes a serialized torrent document and parses it.
func ParseBytes(data []byte, opts ParseOptions) (*TorrentInfo, error) {
	if int64(len(data)) > opts.maxBufferSize() {
		return nil, fmt.Errorf("%w: %d bytes, limit %d",
			ErrBufferTooLarge, len(data), opts.maxBufferSize())
	}
	var doc Dict
	if err := bencode.DecodeBytes(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTree, err)
	}
	return Parse(doc, opts)
}

// Parse ingests an already-decoded metadata tree and returns the
// validated description, or a specific error from the taxonomy in
// errors.go. The tree is never mutated and, except for lazy auxiliary
// lookups, never touched again after Parse returns.
func Parse(doc Dict, opts ParseOptions) (*TorrentInfo, error) {
	logger := opts.logger()

	infoRaw, ok := doc["info"]
	if !ok {
		return nil, fmt.Errorf("%w: missing info dictionary", ErrMalformedTree)
	}
	var info Dict
	if err := bencode.DecodeBytes(infoRaw, &info); err != nil {
		return nil, fmt.Errorf("%w: info: %v", ErrMalformedTree, err)
	}

	name, err := bestName(info)
	if err != nil {
		return nil, err
	}

	metaVersion, _, err := intKey(info, "meta version")
	if err != nil {
		return nil, err
	}
	if metaVersion > 2 {
		return nil, fmt.Errorf("%w: unsupported meta version %d", ErrMalformedTree, metaVersion)
	}
	hasV2 := metaVersion == 2
	if opts.RequireV2 && !hasV2 {
		return nil, fmt.Errorf("%w: legacy-only torrent rejected", ErrMalformedTree)
	}

	pieceLength, ok, err := intKey(info, "piece length")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: missing piece length", ErrMalformedTree)
	}
	if pieceLength <= 0 || pieceLength&(pieceLength-1) != 0 {
		return nil, fmt.Errorf("%w: piece length %d is not a positive power of two",
			ErrInvalidLayout, pieceLength)
	}
	if hasV2 && pieceLength < merkleBlockSize {
		return nil, fmt.Errorf("%w: piece length %d below v2 minimum %d",
			ErrInvalidLayout, pieceLength, merkleBlockSize)
	}

	entries, shape, err := buildEntries(info, name, hasV2)
	if err != nil {
		return nil, err
	}

	files, err := layout.New(entries, pieceLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLayout, err)
	}

	// Legacy hash table. Length must agree with the piece count
	// exactly, checked once here.
	piecesStr, hasPieces, err := stringKey(info, "pieces")
	if err != nil {
		return nil, err
	}
	var pieceHashes PieceHashes
	if hasPieces {
		pieceHashes, err = NewPieceHashes([]byte(piecesStr), files.NumPieces())
		if err != nil {
			return nil, err
		}
	}
	if !hasPieces && !hasV2 {
		return nil, fmt.Errorf("%w: no piece hashes in either format", ErrMalformedTree)
	}
	// A hybrid torrent must carry a usable v1 side.
	if shape.hasV1 && hasV2 && !hasPieces {
		return nil, fmt.Errorf("%w: hybrid torrent without pieces key", ErrMalformedTree)
	}

	// Modern hash trees.
	var fileTrees map[int][][32]byte
	v2Verified := false
	if hasV2 {
		layers, err := pieceLayers(doc)
		if err != nil {
			return nil, err
		}
		fileTrees, v2Verified, err = verifyPieceLayers(files, layers, opts.RequireHashes)
		if err != nil {
			return nil, err
		}
	}

	if collided := detectCollisions(files); len(collided) > 0 {
		disambiguate(files, collided)
	}

	t := &TorrentInfo{
		name:        name,
		files:       layout.NewHolder(files),
		pieceHashes: pieceHashes,
		fileTrees:   fileTrees,
		infoHash:    hybridFromInfoBytes(infoRaw, hasPieces, hasV2),
		infoBytes:   append([]byte(nil), infoRaw...),
		multifile:   shape.multiFile,
		ambiguous:   shape.ambiguous,
		v2:          hasV2,
		v2Verified:  hasV2 && v2Verified,
		doc:         doc,
		infoDict:    info,
	}
	parseAuxiliary(t, doc, info, logger)
	return t, nil
}

// parseAuxiliary extracts everything that lives outside the validation
// chain. All of it tolerates absence and most of it tolerates
// malformation; nothing here can fail the ingestion.
func parseAuxiliary(t *TorrentInfo, doc, info Dict, logger *slog.Logger) {
	announce, _, _ := stringKey(doc, "announce")
	t.trackers = parseTrackers(announce, announceTiers(doc, logger), logger)
	for _, entry := range t.trackers {
		if isI2PTracker(entry.URL) {
			t.i2p = true
		}
	}

	t.webSeeds = parseWebSeeds(urlList(doc), stringList(doc, "httpseeds"), logger)
	t.nodes = parseNodes(doc, logger)

	t.comment, _, _ = stringKey(doc, "comment")
	t.createdBy, _, _ = stringKey(doc, "created by")
	t.encoding, _, _ = stringKey(doc, "encoding")
	t.sslCert, _, _ = stringKey(info, "ssl-cert")

	// Epoch start when absent or unparsable.
	created, ok, err := intKey(doc, "creation date")
	if err != nil || !ok {
		created = 0
	}
	t.creationDate = time.Unix(created, 0).UTC()

	if private, ok, err := intKey(info, "private"); err == nil && ok && private != 0 {
		t.private = true
	}

	// BEP 38 linkage appears both inside and outside the info dict;
	// expose the union. The decoded values are owned copies either
	// way, so in-dict and out-of-dict entries need no distinction.
	for _, d := range []Dict{info, doc} {
		for _, raw := range stringList(d, "similar") {
			if len(raw) == sha1Size {
				var h InfoHash
				copy(h[:], raw)
				t.similar = append(t.similar, h)
			}
		}
		t.collections = append(t.collections, stringList(d, "collections")...)
	}
}

// bestName prefers the name.utf-8 key per BEP 3's utf-8 convention.
func bestName(info Dict) (string, error) {
	if name, ok, err := stringKey(info, "name.utf-8"); err == nil && ok && name != "" {
		return name, nil
	}
	name, ok, err := stringKey(info, "name")
	if err != nil {
		return "", err
	}
	if !ok || name == "" {
		return "", fmt.Errorf("%w: missing name", ErrMalformedTree)
	}
	return name, nil
}

// fileDict is one entry of the v1 "files" list.
type fileDict struct {
	Length   int64    `bencode:"length"`
	Path     []string `bencode:"path"`
	PathUTF8 []string `bencode:"path.utf-8"`
	Attr     string   `bencode:"attr"`
	Symlink  []string `bencode:"symlink path"`
}

// layoutShape records how the file list was expressed, which the
// engine needs for flags and hybrid checks.
type layoutShape struct {
	multiFile bool // "files" list, or a v2 tree with more than one file
	ambiguous bool // both single- and multi-file forms present
	hasV1     bool // a v1 file list (either form) was found
}

// buildEntries walks the file list in whichever forms are present and
// returns the ordered entries plus the shape they were given in.
func buildEntries(info Dict, name string, hasV2 bool) ([]layout.FileEntry, layoutShape, error) {
	var shape layoutShape

	length, hasLength, err := intKey(info, "length")
	if err != nil {
		return nil, shape, err
	}
	filesRaw, hasFiles := info["files"]

	var v1Entries []layout.FileEntry
	switch {
	case hasFiles:
		var files []fileDict
		if err := bencode.DecodeBytes(filesRaw, &files); err != nil {
			return nil, shape, fmt.Errorf("%w: files: %v", ErrMalformedTree, err)
		}
		for i, f := range files {
			segs := f.Path
			if len(f.PathUTF8) > 0 {
				segs = f.PathUTF8
			}
			path, err := sanitizePath(segs)
			if err != nil {
				return nil, shape, fmt.Errorf("file %d: %w", i, err)
			}
			entry := layout.FileEntry{Path: path, Length: f.Length}
			applyAttr(&entry, f.Attr, f.Symlink)
			v1Entries = append(v1Entries, entry)
		}
	case hasLength:
		path, err := sanitizePath([]string{name})
		if err != nil {
			return nil, shape, err
		}
		attr, _, _ := stringKey(info, "attr")
		entry := layout.FileEntry{Path: path, Length: length}
		applyAttr(&entry, attr, nil)
		v1Entries = append(v1Entries, entry)
	}
	// Both forms present: a downstream writer cannot know which shape
	// to reproduce byte for byte, so record the ambiguity. The files
	// list wins for the layout.
	shape.ambiguous = hasFiles && hasLength
	shape.hasV1 = hasFiles || hasLength
	shape.multiFile = hasFiles

	if !hasV2 {
		if !shape.hasV1 {
			return nil, shape, fmt.Errorf("%w: missing length and files", ErrMalformedTree)
		}
		return v1Entries, shape, nil
	}

	treeRaw, ok := info["file tree"]
	if !ok {
		return nil, shape, fmt.Errorf("%w: meta version 2 without file tree", ErrMalformedTree)
	}
	var tree Dict
	if err := bencode.DecodeBytes(treeRaw, &tree); err != nil {
		return nil, shape, fmt.Errorf("%w: file tree: %v", ErrMalformedTree, err)
	}
	var v2Entries []layout.FileEntry
	if err := walkFileTree(tree, nil, &v2Entries); err != nil {
		return nil, shape, err
	}
	// v2-only: the tree alone decides the shape. More than one file,
	// or one file below a directory, is a multi-file layout.
	if !shape.hasV1 {
		shape.multiFile = len(v2Entries) > 1 ||
			(len(v2Entries) == 1 && len(v2Entries[0].Path) > 1)
		return v2Entries, shape, nil
	}

	// Hybrid: the v1 list (pad files included) is the layout; the v2
	// side contributes the per-file roots and must describe the same
	// content.
	if err := mergeHybrid(v1Entries, v2Entries); err != nil {
		return nil, shape, err
	}
	return v1Entries, shape, nil
}

// walkFileTree descends the BEP 52 file tree. An inner key maps either
// to a directory dictionary or, via the empty-string key, to a file
// leaf carrying length and pieces root. Keys are visited in bencode
// dictionary order (lexicographic) so the entry order is canonical.
func walkFileTree(tree Dict, prefix []string, out *[]layout.FileEntry) error {
	names := make([]string, 0, len(tree))
	for name := range tree {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if name == "" {
			return fmt.Errorf("%w: file tree leaf outside a file node", ErrMalformedTree)
		}
		var node Dict
		if err := bencode.DecodeBytes(tree[name], &node); err != nil {
			return fmt.Errorf("%w: file tree node %q: %v", ErrMalformedTree, name, err)
		}

		path := append(append([]string(nil), prefix...), name)

		leafRaw, isFile := node[""]
		if !isFile {
			if err := walkFileTree(node, path, out); err != nil {
				return err
			}
			continue
		}

		var leaf struct {
			Length     int64    `bencode:"length"`
			PiecesRoot string   `bencode:"pieces root"`
			Attr       string   `bencode:"attr"`
			Symlink    []string `bencode:"symlink path"`
		}
		if err := bencode.DecodeBytes(leafRaw, &leaf); err != nil {
			return fmt.Errorf("%w: file tree leaf %q: %v", ErrMalformedTree, name, err)
		}
		sanitized, err := sanitizePath(path)
		if err != nil {
			return err
		}
		entry := layout.FileEntry{Path: sanitized, Length: leaf.Length}
		applyAttr(&entry, leaf.Attr, leaf.Symlink)
		if leaf.Length > 0 {
			if len(leaf.PiecesRoot) != 32 {
				return fmt.Errorf("%w: file %q pieces root is %d bytes",
					ErrMalformedTree, strings.Join(path, "/"), len(leaf.PiecesRoot))
			}
			copy(entry.PiecesRoot[:], leaf.PiecesRoot)
			entry.HasRoot = true
		}
		*out = append(*out, entry)
	}
	return nil
}

// mergeHybrid checks that the v1 list and the v2 tree describe the
// same files (the v1 side additionally carries BEP 47 pad files) and
// copies the v2 roots onto the v1 entries in place.
func mergeHybrid(v1 []layout.FileEntry, v2 []layout.FileEntry) error {
	j := 0
	for i := range v1 {
		if v1[i].PadFile {
			continue
		}
		if j >= len(v2) {
			return fmt.Errorf("%w: hybrid file lists disagree in length", ErrMalformedTree)
		}
		if v1[i].Length != v2[j].Length {
			return fmt.Errorf("%w: hybrid file %d length %d vs %d",
				ErrMalformedTree, i, v1[i].Length, v2[j].Length)
		}
		if !pathsEqual(v1[i].Path, v2[j].Path) {
			return fmt.Errorf("%w: hybrid file %d named %q vs %q",
				ErrMalformedTree, i,
				strings.Join(v1[i].Path, "/"), strings.Join(v2[j].Path, "/"))
		}
		v1[i].PiecesRoot = v2[j].PiecesRoot
		v1[i].HasRoot = v2[j].HasRoot
		j++
	}
	if j != len(v2) {
		return fmt.Errorf("%w: hybrid file lists disagree in length", ErrMalformedTree)
	}
	return nil
}

func pathsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// applyAttr translates the BEP 47 attr string onto entry flags.
func applyAttr(entry *layout.FileEntry, attr string, symlink []string) {
	entry.PadFile = strings.ContainsRune(attr, 'p')
	entry.Executable = strings.ContainsRune(attr, 'x')
	entry.Hidden = strings.ContainsRune(attr, 'h')
	if strings.ContainsRune(attr, 'l') && len(symlink) > 0 {
		if target, err := sanitizePath(symlink); err == nil {
			entry.SymlinkPath = target
		}
	}
}

// pieceLayers decodes the top-level "piece layers" dictionary: flat
// digest strings keyed by each file's pieces root.
func pieceLayers(doc Dict) (map[string]string, error) {
	raw, ok := doc["piece layers"]
	if !ok {
		return nil, nil
	}
	var layers map[string]string
	if err := bencode.DecodeBytes(raw, &layers); err != nil {
		return nil, fmt.Errorf("%w: piece layers: %v", ErrMalformedTree, err)
	}
	return layers, nil
}

// announceTiers decodes announce-list tolerantly: a tier that fails to
// decode is dropped, not fatal.
func announceTiers(doc Dict, logger *slog.Logger) [][]string {
	raw, ok := doc["announce-list"]
	if !ok {
		return nil
	}
	var tiersRaw []bencode.RawMessage
	if err := bencode.DecodeBytes(raw, &tiersRaw); err != nil {
		logger.Warn("skipping malformed announce-list", "err", err)
		return nil
	}
	var tiers [][]string
	for _, tierRaw := range tiersRaw {
		var tier []string
		if err := bencode.DecodeBytes(tierRaw, &tier); err != nil {
			logger.Warn("skipping malformed announce-list tier", "err", err)
			continue
		}
		tiers = append(tiers, tier)
	}
	return tiers
}

// urlList handles the BEP 19 quirk that "url-list" may be a single
// string or a list of strings.
func urlList(doc Dict) []string {
	raw, ok := doc["url-list"]
	if !ok || len(raw) == 0 {
		return nil
	}
	if raw[0] == 'l' {
		var urls []string
		if err := bencode.DecodeBytes(raw, &urls); err != nil {
			return nil
		}
		return urls
	}
	var url string
	if err := bencode.DecodeBytes(raw, &url); err != nil {
		return nil
	}
	return []string{url}
}

// parseNodes decodes the DHT bootstrap list: two-element [host, port]
// lists, anything else skipped.
func parseNodes(doc Dict, logger *slog.Logger) []Node {
	raw, ok := doc["nodes"]
	if !ok {
		return nil
	}
	var nodesRaw []bencode.RawMessage
	if err := bencode.DecodeBytes(raw, &nodesRaw); err != nil {
		logger.Warn("skipping malformed nodes list", "err", err)
		return nil
	}
	var nodes []Node
	for _, nodeRaw := range nodesRaw {
		var pair []interface{}
		if err := bencode.DecodeBytes(nodeRaw, &pair); err != nil || len(pair) != 2 {
			logger.Warn("skipping malformed DHT node entry")
			continue
		}
		host, ok1 := pair[0].(string)
		port, ok2 := pair[1].(int64)
		if !ok1 || !ok2 || host == "" || port <= 0 || port > 65535 {
			logger.Warn("skipping malformed DHT node entry", "host", pair[0])
			continue
		}
		nodes = append(nodes, Node{Host: host, Port: int(port)})
	}
	return nodes
}

// stringKey reads one byte-string value. The second return reports
// presence; a present key of the wrong type is an error.
func stringKey(d Dict, key string) (string, bool, error) {
	raw, ok := d[key]
	if !ok {
		return "", false, nil
	}
	var s string
	if err := bencode.DecodeBytes(raw, &s); err != nil {
		return "", true, fmt.Errorf("%w: key %q: %v", ErrMalformedTree, key, err)
	}
	return s, true, nil
}

// intKey reads one integer value, same contract as stringKey.
func intKey(d Dict, key string) (int64, bool, error) {
	raw, ok := d[key]
	if !ok {
		return 0, false, nil
	}
	var n int64
	if err := bencode.DecodeBytes(raw, &n); err != nil {
		return 0, true, fmt.Errorf("%w: key %q: %v", ErrMalformedTree, key, err)
	}
	return n, true, nil
}

// stringList reads a list of byte strings, empty on absence or
// malformation.
func stringList(d Dict, key string) []string {
	raw, ok := d[key]
	if !ok {
		return nil
	}
	var list []string
	if err := bencode.DecodeBytes(raw, &list); err != nil {
		return nil
	}
	return list
}
