package clients

import (
	"context"
	"fmt"
	"net/url"

	"github.com/maastricht-university/claimlens/llm"
)

// --- Web search (/search) ---
type SearchResp struct {
	Results []llm.SearchResult `json:"results"`
}

// Search queries a web search gateway. It implements llm.Searcher.
type Search struct {
	h   *HTTP
	URL string
}

func NewSearch(h *HTTP, url string) *Search { return &Search{h: h, URL: url} }

func (s *Search) Search(ctx context.Context, query string, limit int) ([]llm.SearchResult, error) {
	q := url.Values{"q": {query}}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	var out SearchResp
	if err := s.h.getJSON(ctx, "search", s.URL+"/search?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	if limit > 0 && len(out.Results) > limit {
		out.Results = out.Results[:limit]
	}
	return out.Results, nil
}
