// Package browser owns the automated browsing context and implements the
// page-level capabilities (gate form, viewer, snapshotter) on chromedp.
package browser

import (
	"context"
	"log"
	"sync"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	"github.com/mohammad-safakhou/deckray/models"
)

// Session is one exclusively-owned browsing context. It is created per
// ingestion attempt and must be closed on every exit path; Close is
// idempotent so callers can defer it at acquisition.
type Session struct {
	ID     string
	ctx    context.Context
	logger *log.Logger

	closeOnce sync.Once
	cancels   []context.CancelFunc
}

// Launch creates an isolated browser context configured by the stealth
// profile. The context inherits cancellation from parent, so a session
// timeout tears the browser down as well.
func Launch(parent context.Context, profile models.StealthProfile, logger *log.Logger) (*Session, error) {
	if logger == nil {
		logger = log.New(log.Writer(), "[BROWSER] ", log.LstdFlags)
	}

	actx, cancelAlloc := chromedp.NewExecAllocator(parent, allocatorOptions(profile)...)
	bctx, cancelBrowser := chromedp.NewContext(actx)

	s := &Session{
		ID:      uuid.NewString(),
		ctx:     bctx,
		logger:  logger,
		cancels: []context.CancelFunc{cancelBrowser, cancelAlloc},
	}

	// Start the browser and install the stealth script before any
	// navigation happens.
	if err := chromedp.Run(bctx, stealthActions(profile)...); err != nil {
		s.Close()
		return nil, err
	}
	logger.Printf("session %s launched", s.ID)
	return s, nil
}

// Context returns the browsing context for chromedp actions.
func (s *Session) Context() context.Context { return s.ctx }

// Close releases the browser and every underlying OS resource. Safe to
// call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		for _, cancel := range s.cancels {
			cancel()
		}
		s.logger.Printf("session %s released", s.ID)
	})
}

// Page returns the driver bound to this session's context.
func (s *Session) Page(profile models.StealthProfile) *Page {
	return &Page{sess: s, profile: profile}
}

func allocatorOptions(profile models.StealthProfile) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", profile.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(profile.WindowWidth, profile.WindowHeight),
	)
	if profile.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(profile.UserAgent))
	}
	if profile.SuppressAutomation {
		opts = append(opts,
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.Flag("exclude-switches", "enable-automation"),
		)
	}
	return opts
}
