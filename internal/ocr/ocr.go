// Package ocr recovers text from rasterized slide snapshots.
package ocr

import "context"

// Result is one recovery outcome. Confidence is on a 0-100 scale; low
// confidence flags the page downstream, it never drops the text.
type Result struct {
	Text       string
	Confidence float64
}

// Engine converts a PNG snapshot into text plus a confidence score.
// Backend unavailability must surface as an error so the supervisor can
// classify it as a transient RecoveryFailure.
type Engine interface {
	Recognize(ctx context.Context, png []byte) (Result, error)
}
