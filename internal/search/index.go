// Package search keeps an optional full-text index over assembled deck
// text so previously ingested decks can be queried by content.
package search

import (
	"os"

	"github.com/blevesearch/bleve"

	"github.com/mohammad-safakhou/deckray/models"
)

// Doc is what gets indexed per deck. Fields are stored in the index
// itself so snippets survive a process restart.
type Doc struct {
	Fingerprint string `json:"fingerprint"`
	Text        string `json:"text"`
	Pages       int    `json:"pages"`
}

// Hit is one search result.
type Hit struct {
	Fingerprint string  `json:"fingerprint"`
	Snippet     string  `json:"snippet"`
	Score       float64 `json:"score"`
}

// Index wraps a bleve index over ingested decks.
type Index struct {
	idx bleve.Index
}

// NewMemOnly builds an in-process index that lives with the server.
func NewMemOnly() (*Index, error) {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, err
	}
	return &Index{idx: idx}, nil
}

// Open opens or creates a persistent index at path.
func Open(path string) (*Index, error) {
	idx, err := bleve.Open(path)
	if err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, err
		}
		idx, err = bleve.New(path, bleve.NewIndexMapping())
		if err != nil {
			return nil, err
		}
	}
	return &Index{idx: idx}, nil
}

// Add indexes one assembled deck, keyed by fingerprint. Re-ingesting the
// same fingerprint overwrites the previous document.
func (i *Index) Add(res models.DeckResult) error {
	doc := Doc{Fingerprint: res.Fingerprint, Text: res.AssembledText, Pages: res.ProcessedPages}
	return i.idx.Index(res.Fingerprint, doc)
}

// Search runs a query-string query and returns up to k hits. Snippets
// come from the stored text field, not process state.
func (i *Index) Search(q string, k int) ([]Hit, error) {
	if k <= 0 {
		k = 10
	}
	query := bleve.NewQueryStringQuery(q)
	req := bleve.NewSearchRequestOptions(query, k, 0, false)
	req.Fields = []string{"text"}
	res, err := i.idx.Search(req)
	if err != nil {
		return nil, err
	}
	var out []Hit
	for _, hit := range res.Hits {
		text, _ := hit.Fields["text"].(string)
		out = append(out, Hit{Fingerprint: hit.ID, Snippet: snippet(text), Score: hit.Score})
	}
	return out, nil
}

// Close releases the underlying index.
func (i *Index) Close() error { return i.idx.Close() }

func snippet(s string) string {
	if len(s) <= 240 {
		return s
	}
	return s[:240] + "…"
}
