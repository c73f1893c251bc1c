package metainfo

import (
	"log/slog"
	"net/url"
	"sort"
	"strings"
)

// AnnounceEntry is one tracker URL with its tier. Lower tiers are
// tried first; entries within a tier keep their file order. Two
// entries are the same tracker when their URLs match, regardless of
// tier.
type AnnounceEntry struct {
	URL  string
	Tier int
}

// parseTrackers builds the tracker list from the single "announce" key
// and the tiered "announce-list". A flat announce gives tier 0; in a
// tiered list the tier is the outer list index. Unparsable URLs are
// not fatal, they are skipped with a warning.
func parseTrackers(announce string, announceList [][]string, logger *slog.Logger) []AnnounceEntry {
	var entries []AnnounceEntry
	seen := make(map[string]bool)

	add := func(raw string, tier int) {
		raw = strings.TrimSpace(raw)
		if raw == "" || seen[raw] {
			return
		}
		if !validTrackerURL(raw) {
			logger.Warn("skipping malformed tracker URL", "url", raw)
			return
		}
		seen[raw] = true
		entries = append(entries, AnnounceEntry{URL: raw, Tier: tier})
	}

	for tier, urls := range announceList {
		for _, u := range urls {
			add(u, tier)
		}
	}
	// The flat announce key is a fallback for clients that predate
	// tiered lists; only used when the list gave us nothing.
	if len(entries) == 0 {
		add(announce, 0)
	}

	sortTrackers(entries)
	return entries
}

// sortTrackers orders by tier, keeping the original order within each
// tier.
func sortTrackers(entries []AnnounceEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Tier < entries[j].Tier
	})
}

func validTrackerURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	switch u.Scheme {
	case "http", "https", "udp", "ws", "wss":
		return true
	}
	return false
}

// isI2PTracker reports whether the tracker lives on the i2p
// anonymizing network. Such torrents must not announce peers outside
// that network.
func isI2PTracker(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return strings.HasSuffix(u.Hostname(), ".i2p")
}
