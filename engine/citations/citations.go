// Package citations attaches source evidence to query results. Each result
// record names the graph node it came from; the node's citations are fetched
// from the store and merged into a deduplicated bundle. A citation that cannot
// be fetched is logged and skipped, never fatal: answers without sources are
// preferable to no answers.
package citations

import (
	"context"
	"fmt"
	"strings"

	"github.com/graphrag-collective/pipeline-engine/engine/logging"
	"github.com/graphrag-collective/pipeline-engine/engine/records"
)

// Citation is a single evidence source attached to a graph node.
type Citation struct {
	ID        string `json:"id"`
	NodeID    string `json:"node_id,omitempty"`
	Title     string `json:"title,omitempty"`
	Authors   string `json:"authors,omitempty"`
	Publisher string `json:"publisher,omitempty"`
	Year      int    `json:"year,omitempty"`
	URL       string `json:"url,omitempty"`
	Snippet   string `json:"snippet,omitempty"`
}

// Source fetches citations for a graph node.
type Source interface {
	FetchCitations(ctx context.Context, nodeID string) ([]Citation, error)
}

// Bundle is the merged, deduplicated evidence for a result set.
type Bundle struct {
	Citations []Citation `json:"citations"`
	Count     int        `json:"count"`
}

// Has reports whether the bundle carries any citations.
func (b *Bundle) Has() bool { return b != nil && b.Count > 0 }

// NodeIDField is the record field naming the originating graph node.
const NodeIDField = "id"

// Merge collects citations for every result record that names a node.
// Records without an id field are skipped silently; fetch failures are logged
// per node and skipped. Duplicate citation ids keep their first occurrence so
// ordering follows the result set.
func Merge(ctx context.Context, source Source, results []records.Record, logger logging.Logger) *Bundle {
	bundle := &Bundle{}
	if source == nil {
		return bundle
	}
	seen := make(map[string]bool)
	for _, rec := range results {
		if err := ctx.Err(); err != nil {
			logger.Warn("citation merge interrupted", "error", err)
			break
		}
		nodeID := rec.String(NodeIDField)
		if nodeID == "" {
			continue
		}
		fetched, err := source.FetchCitations(ctx, nodeID)
		if err != nil {
			logger.Warn("citation fetch failed, skipping node", "node_id", nodeID, "error", err)
			continue
		}
		for _, c := range fetched {
			key := c.ID
			if key == "" {
				key = c.Title + "|" + c.URL
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			if c.NodeID == "" {
				c.NodeID = nodeID
			}
			bundle.Citations = append(bundle.Citations, c)
		}
	}
	bundle.Count = len(bundle.Citations)
	return bundle
}

// Format renders a citation as a single reference line.
func Format(c Citation) string {
	parts := make([]string, 0, 4)
	if c.Title != "" {
		parts = append(parts, c.Title)
	}
	if c.Authors != "" {
		parts = append(parts, c.Authors)
	}
	if c.Publisher != "" {
		if c.Year > 0 {
			parts = append(parts, fmt.Sprintf("%s (%d)", c.Publisher, c.Year))
		} else {
			parts = append(parts, c.Publisher)
		}
	} else if c.Year > 0 {
		parts = append(parts, fmt.Sprintf("%d", c.Year))
	}
	if c.URL != "" {
		parts = append(parts, c.URL)
	}
	if len(parts) == 0 {
		return c.ID
	}
	return strings.Join(parts, ". ")
}
