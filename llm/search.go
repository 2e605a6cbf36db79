package llm

import (
	"context"
	"strings"
)

// SearchResult is one web hit offered to the model.
type SearchResult struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	URL   string `json:"href"`
}

// Searcher looks people up on the open web when the repository does not
// know them.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]SearchResult, error)
}

// formatHits renders hits one per line as "- title: body".
func formatHits(hits []SearchResult) string {
	if len(hits) == 0 {
		return "(no results)"
	}
	var b strings.Builder
	for i, h := range hits {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- " + h.Title + ": " + h.Body)
	}
	return b.String()
}
