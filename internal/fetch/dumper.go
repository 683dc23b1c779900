package fetch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/driftlab/revdrift/internal/corpus"
)

// Dumper turns an article's revision history into the dumps/ layout:
// version v is the revision v steps back from the current one, sampled
// every corpus.VersionStep revisions up to corpus.MaxVersion.
type Dumper struct {
	client *Client
}

// NewDumper wraps a client.
func NewDumper(client *Client) *Dumper {
	return &Dumper{client: client}
}

// Download writes dump files for doc (e.g. "Miami_FL", where the article
// title is the part before the tag with hyphens as spaces) into outdir.
// Already-present dump files are kept, so interrupted downloads resume.
func (d *Dumper) Download(ctx context.Context, doc, title, outdir string) error {
	revs, err := d.client.Revisions(ctx, title, corpus.MaxVersion+1)
	if err != nil {
		return err
	}
	if len(revs) == 0 {
		return fmt.Errorf("no revisions found for %q", title)
	}
	log.Printf("[INFO] %s: %d revisions available", doc, len(revs))

	if err := os.MkdirAll(outdir, 0755); err != nil {
		return fmt.Errorf("create dump dir: %w", err)
	}

	for v := 0; v <= corpus.MaxVersion && v < len(revs); v += corpus.VersionStep {
		path := filepath.Join(outdir, fmt.Sprintf("%s_C-%d.txt", doc, v))
		if _, err := os.Stat(path); err == nil {
			log.Printf("[INFO] %s C-%d already dumped, skipping", doc, v)
			continue
		}

		html, err := d.client.RevisionHTML(ctx, revs[v].RevID)
		if err != nil {
			return fmt.Errorf("%s C-%d: %w", doc, v, err)
		}
		text, err := ExtractText(html)
		if err != nil {
			return fmt.Errorf("%s C-%d: %w", doc, v, err)
		}
		if err := os.WriteFile(path, []byte(text), 0644); err != nil {
			return fmt.Errorf("write dump %s: %w", path, err)
		}
		log.Printf("[INFO] Wrote %s (revid %d)", path, revs[v].RevID)
	}
	return nil
}
