package metainfo

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"

	bencode "github.com/jackpal/bencode-go"
)

// Re-export of the torrent document. The info dictionary is spliced in
// verbatim so the content identifiers survive the round trip; keys
// with locally editable state (trackers, web seeds, nodes) are
// re-encoded from that state, and everything else is carried over in
// its original wire form.

// Bytes serializes the description back into a torrent document.
func (t *TorrentInfo) Bytes() ([]byte, error) {
	if !t.IsValid() {
		return nil, errors.New("metadata not loaded")
	}

	fields := make(map[string][]byte, len(t.doc)+4)
	for key, raw := range t.doc {
		fields[key] = raw
	}
	fields["info"] = t.infoBytes

	for _, key := range []string{"announce", "announce-list", "url-list", "httpseeds", "nodes"} {
		delete(fields, key)
	}

	if len(t.trackers) > 0 {
		if err := setField(fields, "announce", t.trackers[0].URL); err != nil {
			return nil, err
		}
		var tiers [][]string
		for _, entry := range t.trackers {
			for entry.Tier >= len(tiers) {
				tiers = append(tiers, nil)
			}
			tiers[entry.Tier] = append(tiers[entry.Tier], entry.URL)
		}
		if err := setField(fields, "announce-list", tiers); err != nil {
			return nil, err
		}
	}

	var urlSeeds, httpSeeds []string
	for _, seed := range t.webSeeds {
		if seed.Kind == WebSeedHTTP {
			httpSeeds = append(httpSeeds, seed.URL)
		} else {
			urlSeeds = append(urlSeeds, seed.URL)
		}
	}
	if len(urlSeeds) > 0 {
		if err := setField(fields, "url-list", urlSeeds); err != nil {
			return nil, err
		}
	}
	if len(httpSeeds) > 0 {
		if err := setField(fields, "httpseeds", httpSeeds); err != nil {
			return nil, err
		}
	}

	if len(t.nodes) > 0 {
		nodes := make([]interface{}, len(t.nodes))
		for i, n := range t.nodes {
			nodes[i] = []interface{}{n.Host, int64(n.Port)}
		}
		if err := setField(fields, "nodes", nodes); err != nil {
			return nil, err
		}
	}

	// Bencode dictionaries are sorted by raw key.
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var out bytes.Buffer
	out.WriteByte('d')
	for _, key := range keys {
		fmt.Fprintf(&out, "%d:%s", len(key), key)
		out.Write(fields[key])
	}
	out.WriteByte('e')
	return out.Bytes(), nil
}

// Save writes the serialized document to a file.
func (t *TorrentInfo) Save(path string) error {
	data, err := t.Bytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func setField(fields map[string][]byte, key string, value interface{}) error {
	var buf bytes.Buffer
	if err := bencode.Marshal(&buf, value); err != nil {
		return fmt.Errorf("encoding %q: %w", key, err)
	}
	fields[key] = buf.Bytes()
	return nil
}
