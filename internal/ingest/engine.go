// Package ingest orchestrates one DeckSession per request: launch,
// authenticate, navigate, capture, recover, assemble, cache.
package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mohammad-safakhou/deckray/config"
	"github.com/mohammad-safakhou/deckray/internal/assemble"
	"github.com/mohammad-safakhou/deckray/internal/capture"
	"github.com/mohammad-safakhou/deckray/internal/deckcache"
	"github.com/mohammad-safakhou/deckray/internal/gate"
	"github.com/mohammad-safakhou/deckray/internal/metrics"
	"github.com/mohammad-safakhou/deckray/internal/nav"
	"github.com/mohammad-safakhou/deckray/internal/ocr"
	"github.com/mohammad-safakhou/deckray/internal/retry"
	"github.com/mohammad-safakhou/deckray/internal/search"
	"github.com/mohammad-safakhou/deckray/models"
)

// Engine runs deck-ingestion sessions. Sessions share no mutable state
// except the cache, so one Engine serves concurrent requests.
type Engine struct {
	cfg        *config.Config
	logger     *log.Logger
	launcher   Launcher
	recognizer ocr.Engine
	memo       *deckcache.Memoizer
	metrics    *metrics.Metrics
	index      *search.Index
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics attaches prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithSearchIndex feeds assembled decks into a full-text index.
func WithSearchIndex(idx *search.Index) Option {
	return func(e *Engine) { e.index = idx }
}

// New constructs an Engine.
func New(cfg *config.Config, logger *log.Logger, launcher Launcher, recognizer ocr.Engine, store deckcache.Store, opts ...Option) *Engine {
	if logger == nil {
		logger = log.New(log.Writer(), "[ENGINE] ", log.LstdFlags)
	}
	e := &Engine{
		cfg:        cfg,
		logger:     logger,
		launcher:   launcher,
		recognizer: recognizer,
		memo:       deckcache.NewMemoizer(store, cfg.Cache.TTL),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ingest processes one request. The DeckResult always carries the full
// failure accounting; the error return is reserved for infrastructure
// faults (cache backend unreachable).
func (e *Engine) Ingest(ctx context.Context, req models.IngestRequest) (models.DeckResult, error) {
	fp := Fingerprint(req)

	result, cached, err := e.memo.Do(ctx, fp, func(ctx context.Context) (models.DeckResult, bool, error) {
		return e.run(ctx, fp, req)
	})
	if err != nil {
		return models.DeckResult{}, err
	}
	if e.metrics != nil {
		if cached {
			e.metrics.CacheLookups.WithLabelValues("hit").Inc()
		} else {
			e.metrics.CacheLookups.WithLabelValues("miss").Inc()
		}
	}
	if cached {
		e.logger.Printf("cache hit for %s, no navigation performed", short(fp))
	}
	return result, nil
}

// run executes the full pipeline for one fingerprint. Failures are
// encoded in the DeckResult; the bool reports whether the outcome may be
// cached (terminal session failures other than AuthenticationRequired
// stay uncached so a plain retry recomputes).
func (e *Engine) run(ctx context.Context, fp string, req models.IngestRequest) (models.DeckResult, bool, error) {
	start := time.Now()
	timing := models.TimingMetrics{StartedAt: start}
	profile := e.profile(req)

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.cfg.General.DefaultTimeout
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sessionFail := func(err error) (models.DeckResult, bool, error) {
		timing.FinishedAt = time.Now()
		timing.TotalMS = time.Since(start).Milliseconds()
		kind := models.KindOf(err)
		e.logger.Printf("session for %s aborted: %v", short(fp), err)
		res := models.DeckResult{
			Fingerprint: fp,
			Success:     false,
			Errors:      []models.DeckError{models.ToDeckError(err)},
			Timing:      timing,
		}
		e.observe(res)
		return res, kind == models.KindAuthenticationRequired, nil
	}

	e.logger.Printf("session %s starting for %s", short(fp), req.Address)

	deck, err := e.launcher.Launch(sctx, profile)
	if err != nil {
		return sessionFail(mapCtx(sctx, err))
	}
	// Release the browsing context on every exit path, before any result
	// or error reaches the caller.
	defer deck.Close()

	if err := retry.Do(sctx, e.policy(), classifySession, func(ctx context.Context) error {
		return deck.Open(ctx, req.Address)
	}); err != nil {
		return sessionFail(mapCtx(sctx, err))
	}

	authStart := time.Now()
	neg := gate.New(deck, e.logger, gate.WithTimeouts(e.cfg.Gate.DetectTimeout, e.cfg.Gate.DismissTimeout, e.cfg.Gate.PollInterval))
	err = retry.Do(sctx, e.policy(), classifySession, func(ctx context.Context) error {
		return neg.Negotiate(ctx, req.IdentityEmail, req.Passphrase)
	})
	timing.AuthMS = time.Since(authStart).Milliseconds()
	if err != nil {
		return sessionFail(mapCtx(sctx, err))
	}

	navStart := time.Now()
	capt := capture.New(deck)
	navigator := nav.New(deck, e.logger,
		nav.WithStrategies(nav.ParseStrategies(e.cfg.Navigation.Strategies)),
		nav.WithAttemptsPerStrategy(e.cfg.Navigation.AttemptsPerStrategy),
		nav.WithMaxPages(e.cfg.Navigation.MaxPages),
		nav.WithMaxConsecutiveSkips(e.cfg.Navigation.MaxConsecutiveSkips),
		nav.WithPacing(profile.JitterMinMS, profile.JitterMaxMS),
	)

	var pages []models.PageRecord
	var pageErrs []models.DeckError
	var recoveryMS int64

	sum, err := navigator.Run(sctx, func(ctx context.Context, index int) {
		rec, recMS, perr := e.processPage(ctx, capt, fp, index)
		recoveryMS += recMS
		if perr != nil {
			if ctx.Err() != nil {
				return // session cancellation is accounted at session level
			}
			e.logger.Printf("page %d failed: %v", index, perr)
			pageErrs = append(pageErrs, models.ToDeckError(perr))
			if e.metrics != nil {
				e.metrics.PageFailures.WithLabelValues(string(models.KindOf(perr))).Inc()
			}
			return
		}
		pages = append(pages, rec)
		if e.metrics != nil {
			e.metrics.PagesProcessed.Inc()
		}
	})
	timing.NavigationMS = time.Since(navStart).Milliseconds() - recoveryMS
	timing.RecoveryMS = recoveryMS
	if err != nil {
		return sessionFail(mapCtx(sctx, err))
	}
	pageErrs = append(pageErrs, sum.Failures...)

	timing.FinishedAt = time.Now()
	timing.TotalMS = time.Since(start).Milliseconds()
	result := assemble.Build(fp, sum.TotalPages, pages, pageErrs, timing)
	e.logger.Printf("session %s done: %d/%d pages, success=%t", short(fp), result.ProcessedPages, result.TotalPages, result.Success)
	e.observe(result)

	if e.index != nil && result.ProcessedPages > 0 {
		if err := e.index.Add(result); err != nil {
			e.logger.Printf("warn: indexing %s failed: %v", short(fp), err)
		}
	}
	return result, true, nil
}

// processPage captures and recovers one slide under the supervisor. The
// returned duration is the recovery share, for timing attribution.
func (e *Engine) processPage(ctx context.Context, capt *capture.Capturer, fp string, index int) (models.PageRecord, int64, error) {
	var png []byte
	var capDur time.Duration
	err := retry.Do(ctx, e.pagePolicy(), classifyPage, func(ctx context.Context) error {
		var cerr error
		png, capDur, cerr = capt.Capture(ctx, index)
		return cerr
	})
	if err != nil {
		return models.PageRecord{}, 0, err
	}

	recStart := time.Now()
	var out ocr.Result
	err = retry.Do(ctx, e.pagePolicy(), classifyPage, func(ctx context.Context) error {
		res, rerr := e.recognizer.Recognize(ctx, png)
		if rerr != nil {
			return models.Fail(models.KindRecoveryFailure, index, rerr)
		}
		out = res
		return nil
	})
	recMS := time.Since(recStart).Milliseconds()
	if err != nil {
		return models.PageRecord{}, recMS, err
	}

	return models.PageRecord{
		Index:             index,
		ImageRef:          e.persistSnapshot(fp, index, png),
		RawText:           out.Text,
		Confidence:        out.Confidence,
		LowConfidence:     out.Confidence < e.cfg.OCR.ConfidenceThreshold,
		CaptureDurationMS: capDur.Milliseconds(),
	}, recMS, nil
}

// persistSnapshot writes the PNG under the data dir when one is
// configured and returns its path as the page's image reference.
func (e *Engine) persistSnapshot(fp string, index int, png []byte) string {
	if e.cfg.Storage.DataDir == "" {
		return ""
	}
	dir := filepath.Join(e.cfg.Storage.DataDir, fp)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		e.logger.Printf("warn: snapshot dir: %v", err)
		return ""
	}
	path := filepath.Join(dir, fmt.Sprintf("page_%03d.png", index))
	if err := os.WriteFile(path, png, 0o644); err != nil {
		e.logger.Printf("warn: snapshot write: %v", err)
		return ""
	}
	return path
}

// profile merges a request-supplied stealth profile over the configured
// defaults. Requests usually override one or two fields; unset dimensions
// must never reach the allocator as zero window sizes.
func (e *Engine) profile(req models.IngestRequest) models.StealthProfile {
	base := e.cfg.Browser.Stealth
	if req.Stealth == nil {
		return base
	}
	p := *req.Stealth
	if strings.TrimSpace(p.UserAgent) == "" {
		p.UserAgent = base.UserAgent
	}
	if p.PlatformSpoof == "" {
		p.PlatformSpoof = base.PlatformSpoof
	}
	if p.WindowWidth <= 0 {
		p.WindowWidth = base.WindowWidth
	}
	if p.WindowHeight <= 0 {
		p.WindowHeight = base.WindowHeight
	}
	if p.JitterMinMS <= 0 && p.JitterMaxMS <= 0 {
		p.JitterMinMS, p.JitterMaxMS = base.JitterMinMS, base.JitterMaxMS
	}
	return (config.BrowserConfig{Stealth: p}).Normalize().Stealth
}

func (e *Engine) policy() retry.Policy {
	return retry.Policy{
		MaxAttempts: e.cfg.Retry.MaxAttempts,
		BaseDelay:   e.cfg.Retry.BaseBackoff,
		MaxDelay:    e.cfg.Retry.MaxBackoff,
		JitterFrac:  e.cfg.Retry.JitterFrac,
	}
}

// pagePolicy keeps per-page backoff short so one bad slide cannot starve
// the rest of the walk.
func (e *Engine) pagePolicy() retry.Policy {
	p := e.policy()
	if p.MaxDelay > time.Second {
		p.MaxDelay = time.Second
	}
	return p
}

func (e *Engine) observe(res models.DeckResult) {
	if e.metrics == nil {
		return
	}
	outcome := "success"
	if !res.Success {
		outcome = "failure"
		if len(res.Errors) > 0 && res.Errors[0].Kind.SessionTerminal() {
			outcome = string(res.Errors[0].Kind)
		}
	}
	e.metrics.DecksIngested.WithLabelValues(outcome).Inc()
	e.metrics.SessionDuration.Observe(float64(res.Timing.TotalMS) / 1000)
}

// classifySession treats every session-terminal kind as terminal; other
// failures (slow loads, flaky interactions) are transient up to the bound.
func classifySession(err error) retry.Class {
	if models.KindOf(err).SessionTerminal() {
		return retry.Terminal
	}
	return retry.Transient
}

// classifyPage retries capture/recovery/navigation failures and surfaces
// cancellation immediately.
func classifyPage(err error) retry.Class {
	switch models.KindOf(err) {
	case models.KindCaptureFailure, models.KindRecoveryFailure, models.KindNavigationFailure:
		return retry.Transient
	}
	return retry.Terminal
}

// mapCtx rewrites raw context expiry into the session Timeout kind.
func mapCtx(ctx context.Context, err error) error {
	if ctx.Err() != nil && models.KindOf(err) == models.KindTimeout {
		return models.Fail(models.KindTimeout, 0, err)
	}
	return err
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
