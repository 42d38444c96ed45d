// Package assemble orders per-page records into the final DeckResult.
package assemble

import (
	"sort"
	"strings"

	"github.com/mohammad-safakhou/deckray/models"
)

// PageBreak separates slides in the assembled text.
const PageBreak = "\n<pagebreak>\n"

// Build produces the immutable DeckResult for one session. Pages are
// sorted by index; duplicates are dropped keeping the first occurrence.
// Failed pages stay out of the assembled text but remain in errs so
// consumers can tell "recovered with low confidence" from "not recovered".
func Build(fingerprint string, totalPages int, pages []models.PageRecord, errs []models.DeckError, timing models.TimingMetrics) models.DeckResult {
	ordered := make([]models.PageRecord, 0, len(pages))
	seen := make(map[int]bool, len(pages))
	for _, p := range pages {
		if p.Index < 1 || seen[p.Index] {
			continue
		}
		seen[p.Index] = true
		ordered = append(ordered, p)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	texts := make([]string, 0, len(ordered))
	for _, p := range ordered {
		texts = append(texts, p.RawText)
	}

	return models.DeckResult{
		Fingerprint:    fingerprint,
		TotalPages:     totalPages,
		ProcessedPages: len(ordered),
		Pages:          ordered,
		Success:        len(errs) == 0,
		Errors:         errs,
		AssembledText:  strings.Join(texts, PageBreak),
		Timing:         timing,
	}
}
