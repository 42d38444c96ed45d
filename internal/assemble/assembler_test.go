package assemble

import (
	"testing"

	"github.com/mohammad-safakhou/deckray/models"
)

func rec(index int, text string) models.PageRecord {
	return models.PageRecord{Index: index, RawText: text, Confidence: 95}
}

func TestBuildConcreteScenario(t *testing.T) {
	pages := []models.PageRecord{rec(1, "Slide A"), rec(2, "Slide B"), rec(3, "Slide C")}
	res := Build("fp", 3, pages, nil, models.TimingMetrics{})
	if res.AssembledText != "Slide A\n<pagebreak>\nSlide B\n<pagebreak>\nSlide C" {
		t.Fatalf("unexpected assembled text: %q", res.AssembledText)
	}
	if res.TotalPages != 3 || res.ProcessedPages != 3 || !res.Success {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestBuildOrdersAndDeduplicates(t *testing.T) {
	pages := []models.PageRecord{rec(3, "c"), rec(1, "a"), rec(2, "b"), rec(2, "dup"), rec(0, "bogus")}
	res := Build("fp", 3, pages, nil, models.TimingMetrics{})
	if res.ProcessedPages != 3 {
		t.Fatalf("expected 3 pages, got %d", res.ProcessedPages)
	}
	for i := 0; i < len(res.Pages)-1; i++ {
		if res.Pages[i].Index >= res.Pages[i+1].Index {
			t.Fatalf("indices not strictly increasing: %+v", res.Pages)
		}
	}
	if res.AssembledText != "a\n<pagebreak>\nb\n<pagebreak>\nc" {
		t.Fatalf("unexpected assembled text: %q", res.AssembledText)
	}
}

func TestBuildOmitsFailedPagesButKeepsErrors(t *testing.T) {
	pages := []models.PageRecord{rec(1, "a"), rec(3, "c")}
	errs := []models.DeckError{{PageIndex: 2, Kind: models.KindCaptureFailure, Message: "blank snapshot"}}
	res := Build("fp", 3, pages, errs, models.TimingMetrics{})
	if res.Success {
		t.Fatalf("expected success=false with errors present")
	}
	if res.ProcessedPages != 2 {
		t.Fatalf("expected 2 processed pages, got %d", res.ProcessedPages)
	}
	if res.AssembledText != "a\n<pagebreak>\nc" {
		t.Fatalf("failed page leaked into assembled text: %q", res.AssembledText)
	}
	if len(res.Errors) != 1 || res.Errors[0].PageIndex != 2 {
		t.Fatalf("errors not preserved: %+v", res.Errors)
	}
}
