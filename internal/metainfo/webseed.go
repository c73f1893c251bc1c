package metainfo

import (
	"log/slog"
	"net/url"
)

// WebSeedKind distinguishes the two web seed protocols: plain URL
// seeds (BEP 19, "url-list") and the older HTTP seed scheme (BEP 17,
// "httpseeds").
type WebSeedKind int

const (
	WebSeedURL WebSeedKind = iota
	WebSeedHTTP
)

// WebSeed is an HTTP-reachable copy of the content outside the swarm.
// Auth and ExtraHeaders only apply to entries added locally; the
// torrent file itself carries bare URLs. Two entries are the same
// seed when URL and Kind match.
type WebSeed struct {
	URL          string
	Kind         WebSeedKind
	Auth         string // "user:password", empty for none
	ExtraHeaders map[string]string
}

func (w WebSeed) equal(o WebSeed) bool {
	return w.URL == o.URL && w.Kind == o.Kind
}

// parseWebSeeds collects url-list and httpseeds entries. Like
// trackers, malformed URLs are skipped, not fatal.
func parseWebSeeds(urlList, httpSeeds []string, logger *slog.Logger) []WebSeed {
	var seeds []WebSeed
	add := func(raw string, kind WebSeedKind) {
		if raw == "" {
			return
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			logger.Warn("skipping malformed web seed URL", "url", raw)
			return
		}
		entry := WebSeed{URL: raw, Kind: kind}
		for _, existing := range seeds {
			if existing.equal(entry) {
				return
			}
		}
		seeds = append(seeds, entry)
	}
	for _, u := range urlList {
		add(u, WebSeedURL)
	}
	for _, u := range httpSeeds {
		add(u, WebSeedHTTP)
	}
	return seeds
}
