package browser

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/mohammad-safakhou/deckray/internal/gate"
	"github.com/mohammad-safakhou/deckray/internal/nav"
	"github.com/mohammad-safakhou/deckray/models"
)

// Viewer selectors. The host controls this markup and changes it without
// notice; keeping every selector here isolates the blast radius.
var (
	selEmail     = `input[type="email"]`
	selPass      = `input[type="password"]`
	selViewer    = `.preso-view, .page-view, .page`
	selIndicator = `.page-label, .toolbar-page-indicator, .page-number`
	selNext      = `.nextPageIcon, .toolbar-next, button[aria-label="Next"], button[aria-label="Next page"]`
	selRejection = `.flash-error, .alert-danger, .error-message`
)

// Page drives the loaded deck page. It implements gate.Form, nav.Viewer
// and capture.Snapshotter against one Session.
type Page struct {
	sess    *Session
	profile models.StealthProfile
}

// Open navigates to the deck address and waits for the document body.
func (p *Page) Open(ctx context.Context, address string) error {
	if strings.TrimSpace(address) == "" {
		return fmt.Errorf("empty deck address")
	}
	return p.run(ctx,
		chromedp.Navigate(address),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

// probeResult mirrors the JS gate probe.
type probeResult struct {
	Gate  bool `json:"gate"`
	Email bool `json:"email"`
	Pass  bool `json:"pass"`
}

const probeJS = `(() => {
	const vis = el => !!el && !!(el.offsetWidth || el.offsetHeight || el.getClientRects().length);
	const email = document.querySelector('input[type="email"]');
	const pass = document.querySelector('input[type="password"]');
	return { gate: vis(email) || vis(pass), email: vis(email), pass: vis(pass) };
})()`

// Detect implements gate.Form.
func (p *Page) Detect(ctx context.Context) (gate.Probe, error) {
	var res probeResult
	if err := p.run(ctx, chromedp.Evaluate(probeJS, &res)); err != nil {
		return gate.Probe{}, err
	}
	return gate.Probe{GatePresent: res.Gate, EmailField: res.Email, PassphraseField: res.Pass}, nil
}

// SubmitIdentity implements gate.Form. The form is submitted through the
// passphrase field when present, matching what a human pressing return
// would do.
func (p *Page) SubmitIdentity(ctx context.Context, email, passphrase string) error {
	var actions []chromedp.Action
	submitSel := selEmail
	if email != "" {
		actions = append(actions, chromedp.SendKeys(selEmail, email, chromedp.ByQuery))
	}
	if passphrase != "" {
		actions = append(actions, chromedp.SendKeys(selPass, passphrase, chromedp.ByQuery))
		submitSel = selPass
	}
	actions = append(actions, chromedp.Submit(submitSel, chromedp.ByQuery))
	return p.run(ctx, actions...)
}

const dismissedJS = `(() => {
	const vis = el => !!el && !!(el.offsetWidth || el.offsetHeight || el.getClientRects().length);
	const gateVisible = vis(document.querySelector('input[type="email"]')) || vis(document.querySelector('input[type="password"]'));
	const viewer = document.querySelector('.preso-view, .page-view, .page');
	return !gateVisible && vis(viewer);
})()`

// Dismissed implements gate.Form.
func (p *Page) Dismissed(ctx context.Context) (bool, error) {
	var gone bool
	if err := p.run(ctx, chromedp.Evaluate(dismissedJS, &gone)); err != nil {
		return false, err
	}
	return gone, nil
}

// Rejection implements gate.Form.
func (p *Page) Rejection(ctx context.Context) (string, bool, error) {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		return el ? el.textContent.trim() : "";
	})()`, selRejection)
	var msg string
	if err := p.run(ctx, chromedp.Evaluate(js, &msg)); err != nil {
		return "", false, err
	}
	return msg, msg != "", nil
}

// State implements nav.Viewer: the page indicator text plus a hash of the
// visible slide markup.
func (p *Page) State(ctx context.Context) (nav.State, error) {
	indicatorJS := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		return el ? el.textContent.trim() : "";
	})()`, selIndicator)
	contentJS := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		return el ? el.outerHTML : document.body.innerHTML;
	})()`, selViewer)

	var indicator, content string
	if err := p.run(ctx,
		chromedp.Evaluate(indicatorJS, &indicator),
		chromedp.Evaluate(contentJS, &content),
	); err != nil {
		return nav.State{}, err
	}
	sum := sha1.Sum([]byte(content))
	return nav.State{Indicator: indicator, ContentHash: hex.EncodeToString(sum[:])}, nil
}

// Advance implements nav.Viewer.
func (p *Page) Advance(ctx context.Context, s nav.Strategy) error {
	switch s {
	case nav.StrategyNextControl:
		return p.run(ctx, chromedp.Click(selNext, chromedp.ByQuery, chromedp.NodeVisible))
	case nav.StrategyKeyboard:
		return p.run(ctx, chromedp.KeyEvent(kb.ArrowRight))
	case nav.StrategyPositionalClick:
		x := float64(p.profile.WindowWidth) - 60
		y := float64(p.profile.WindowHeight) / 2
		return p.run(ctx, chromedp.MouseClickXY(x, y))
	default:
		return fmt.Errorf("unknown advancement strategy %q", s)
	}
}

// Snapshot implements capture.Snapshotter with a lossless PNG of the
// slide element, falling back to the full viewport when the element
// cannot be isolated.
func (p *Page) Snapshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := p.run(ctx, chromedp.Screenshot(selViewer, &buf, chromedp.ByQuery)); err == nil && len(buf) > 0 {
		return buf, nil
	}
	if err := p.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close releases the owning session.
func (p *Page) Close() { p.sess.Close() }

// run executes chromedp actions on the session context while honoring the
// caller's cancellation.
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(p.sess.ctx, actions...) }()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}
