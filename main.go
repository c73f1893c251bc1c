package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"torrentmeta/internal/metainfo"
)

func main() {
	requireHashes := flag.Bool("require-hashes", false, "fail on v2 files without piece layers")
	requireV2 := flag.Bool("require-v2", false, "reject torrents without v2 metadata")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: torrentmeta [flags] <torrent-file>")
		os.Exit(1)
	}

	t, err := metainfo.Load(flag.Arg(0), metainfo.ParseOptions{
		RequireHashes: *requireHashes,
		RequireV2:     *requireV2,
	})
	if err != nil {
		log.Fatalf("failed to parse torrent: %v", err)
	}

	fmt.Printf("Name:         %s\n", t.Name())
	hashes := t.InfoHashes()
	if hashes.HasV1 {
		fmt.Printf("Info hash v1: %s\n", hashes.V1)
	}
	if hashes.HasV2 {
		fmt.Printf("Info hash v2: %s\n", hashes.V2)
	}
	fmt.Printf("Total size:   %s\n", formatBytes(t.TotalLength()))
	fmt.Printf("Pieces:       %d x %s\n", t.NumPieces(), formatBytes(t.PieceLength()))
	if t.Creator() != "" {
		fmt.Printf("Created by:   %s\n", t.Creator())
	}
	if !t.CreationDate().Equal(time.Unix(0, 0)) {
		fmt.Printf("Created:      %s\n", t.CreationDate().Format(time.RFC3339))
	}
	if t.Comment() != "" {
		fmt.Printf("Comment:      %s\n", t.Comment())
	}
	fmt.Printf("Private:      %v\n", t.Private())
	if t.HasV2() {
		fmt.Printf("V2 verified:  %v\n", t.V2Verified())
	}

	fmt.Printf("\nFiles (%d):\n", t.NumFiles())
	files := t.Files()
	for i := 0; i < files.NumFiles(); i++ {
		f, _ := files.FileAt(i)
		marker := ""
		if f.PadFile {
			marker = " [pad]"
		}
		fmt.Printf("  %10s  %s%s\n", formatBytes(f.Length), f.DisplayPath(), marker)
	}

	if trackers := t.Trackers(); len(trackers) > 0 {
		fmt.Println("\nTrackers:")
		for _, tr := range trackers {
			fmt.Printf("  tier %d: %s\n", tr.Tier, tr.URL)
		}
	}
	if seeds := t.WebSeeds(); len(seeds) > 0 {
		fmt.Println("\nWeb seeds:")
		for _, s := range seeds {
			fmt.Printf("  %s\n", s.URL)
		}
	}
	if nodes := t.Nodes(); len(nodes) > 0 {
		fmt.Println("\nDHT nodes:")
		for _, n := range nodes {
			fmt.Printf("  %s:%d\n", n.Host, n.Port)
		}
	}
}

func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
