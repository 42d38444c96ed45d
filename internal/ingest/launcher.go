package ingest

import (
	"context"
	"log"

	"github.com/mohammad-safakhou/deckray/internal/browser"
	"github.com/mohammad-safakhou/deckray/internal/capture"
	"github.com/mohammad-safakhou/deckray/internal/gate"
	"github.com/mohammad-safakhou/deckray/internal/nav"
	"github.com/mohammad-safakhou/deckray/models"
)

// Deck is one launched browsing context pointed at a deck. It bundles the
// capability surfaces the pipeline stages need; tests provide fakes,
// production uses the chromedp-backed browser.Page.
type Deck interface {
	Open(ctx context.Context, address string) error
	gate.Form
	nav.Viewer
	capture.Snapshotter
	Close()
}

// Launcher acquires a Deck under a stealth profile. The returned Deck is
// exclusively owned by the calling session and must be closed on every
// exit path.
type Launcher interface {
	Launch(ctx context.Context, profile models.StealthProfile) (Deck, error)
}

type chromeLauncher struct {
	logger *log.Logger
}

// NewChromeLauncher returns the production launcher backed by headless
// Chrome.
func NewChromeLauncher(logger *log.Logger) Launcher {
	return chromeLauncher{logger: logger}
}

func (l chromeLauncher) Launch(ctx context.Context, profile models.StealthProfile) (Deck, error) {
	sess, err := browser.Launch(ctx, profile, l.logger)
	if err != nil {
		return nil, err
	}
	return sess.Page(profile), nil
}
