package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/mohammad-safakhou/deckray/models"
)

// webdriverPatch hides the properties headless Chrome leaks to scripted
// detectors: the webdriver flag, an empty plugin list and a missing
// chrome runtime object.
const webdriverPatch = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3] });
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
window.chrome = window.chrome || { runtime: {} };
`

// stealthActions returns the actions run once at session start. Scripts
// registered here are evaluated on every new document before the page's
// own scripts, which is what keeps the patch ahead of detection code.
func stealthActions(profile models.StealthProfile) []chromedp.Action {
	var script string
	if profile.SuppressAutomation {
		script += webdriverPatch
	}
	if profile.PlatformSpoof != "" {
		script += fmt.Sprintf("Object.defineProperty(navigator, 'platform', { get: () => %q });\n", profile.PlatformSpoof)
	}
	if script == "" {
		return nil
	}
	s := script
	return []chromedp.Action{
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(s).Do(ctx)
			return err
		}),
	}
}
