package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"
)

// Tesseract implements Engine with a gosseract client per recognition.
// A fresh client per call keeps the engine safe for concurrent sessions.
type Tesseract struct {
	clientFactory func() *gosseract.Client
	languages     []string
}

// NewTesseract constructs a Tesseract-backed recovery engine.
func NewTesseract(languages []string) *Tesseract {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	return &Tesseract{clientFactory: gosseract.NewClient, languages: languages}
}

// Recognize performs OCR on one snapshot.
func (t *Tesseract) Recognize(ctx context.Context, png []byte) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	c := t.clientFactory()
	defer c.Close()

	if err := c.SetImageFromBytes(png); err != nil {
		return Result{}, fmt.Errorf("set image: %w", err)
	}
	if err := c.SetLanguage(t.languages...); err != nil {
		return Result{}, fmt.Errorf("set languages: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return Result{}, fmt.Errorf("recognize text: %w", err)
	}

	return Result{
		Text:       strings.TrimSpace(text),
		Confidence: wordConfidence(c),
	}, nil
}

// wordConfidence averages Tesseract's word-level confidences onto the
// 0-100 scale. Empty output reports zero, which downstream flags as low
// confidence rather than discarding.
func wordConfidence(c *gosseract.Client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	for _, b := range boxes {
		sum += b.Confidence
	}
	return clampConfidence(sum / float64(len(boxes)))
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
