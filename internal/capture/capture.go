// Package capture takes lossless snapshots of the currently displayed
// slide and validates them before they reach optical recovery.
package capture

import (
	"bytes"
	"context"
	"image"
	"image/color"
	_ "image/png"
	"time"

	"github.com/mohammad-safakhou/deckray/models"
)

// Snapshotter produces one PNG of the current slide. The chromedp
// implementation lives in internal/browser.
type Snapshotter interface {
	Snapshot(ctx context.Context) ([]byte, error)
}

// Capturer validates snapshots. Retrying is the supervisor's job; every
// failure here is a typed CaptureFailure.
type Capturer struct {
	snap Snapshotter
}

// New constructs a Capturer.
func New(snap Snapshotter) *Capturer {
	return &Capturer{snap: snap}
}

// Capture returns a validated PNG of the current slide plus the time the
// snapshot took. Blank and undecodable captures fail typed so the
// supervisor retries them.
func (c *Capturer) Capture(ctx context.Context, pageIndex int) ([]byte, time.Duration, error) {
	start := time.Now()
	png, err := c.snap.Snapshot(ctx)
	elapsed := time.Since(start)
	if err != nil {
		return nil, elapsed, models.Fail(models.KindCaptureFailure, pageIndex, err)
	}
	if len(png) == 0 {
		return nil, elapsed, models.Failf(models.KindCaptureFailure, pageIndex, "empty snapshot")
	}
	if err := validate(png); err != nil {
		return nil, elapsed, models.Fail(models.KindCaptureFailure, pageIndex, err)
	}
	return png, elapsed, nil
}

// validate decodes the snapshot and rejects captures where every sampled
// pixel carries the same color, which is what a not-yet-rendered slide
// screenshots as.
func validate(data []byte) error {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return models.Failf(models.KindCaptureFailure, 0, "undecodable snapshot: %v", err)
	}
	b := img.Bounds()
	if b.Dx() < 2 || b.Dy() < 2 {
		return models.Failf(models.KindCaptureFailure, 0, "degenerate snapshot %dx%d", b.Dx(), b.Dy())
	}

	stepX := b.Dx() / 16
	if stepX == 0 {
		stepX = 1
	}
	stepY := b.Dy() / 16
	if stepY == 0 {
		stepY = 1
	}
	var first color.Color
	for y := b.Min.Y; y < b.Max.Y; y += stepY {
		for x := b.Min.X; x < b.Max.X; x += stepX {
			px := img.At(x, y)
			if first == nil {
				first = px
				continue
			}
			r0, g0, b0, _ := first.RGBA()
			r1, g1, b1, _ := px.RGBA()
			if r0 != r1 || g0 != g1 || b0 != b1 {
				return nil
			}
		}
	}
	return models.Failf(models.KindCaptureFailure, 0, "blank snapshot (uniform color)")
}
