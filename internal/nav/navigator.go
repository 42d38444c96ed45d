// Package nav discovers a deck's page count and walks its slides in order.
// The viewer markup is host-controlled and fragile, so every interaction
// goes through the Viewer capability interface and an ordered fallback
// list of advancement strategies.
package nav

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"regexp"
	"strconv"
	"time"

	"github.com/mohammad-safakhou/deckray/models"
)

// Strategy names one way of advancing to the next slide. Priority is the
// order strategies appear in the navigator's list, strictly left to right.
type Strategy string

const (
	StrategyNextControl     Strategy = "next_control"
	StrategyKeyboard        Strategy = "keyboard"
	StrategyPositionalClick Strategy = "positional_click"
)

// ParseStrategies maps config strings onto known strategies, dropping
// anything unrecognized.
func ParseStrategies(names []string) []Strategy {
	var out []Strategy
	for _, name := range names {
		switch Strategy(name) {
		case StrategyNextControl, StrategyKeyboard, StrategyPositionalClick:
			out = append(out, Strategy(name))
		}
	}
	if len(out) == 0 {
		out = []Strategy{StrategyNextControl, StrategyKeyboard, StrategyPositionalClick}
	}
	return out
}

// State is one observation of the viewer: the page indicator text (for
// example "3 of 12") and a hash of the visible slide content. A transition
// succeeded when the hash changed.
type State struct {
	Indicator   string
	ContentHash string
}

// Viewer is the capability surface the navigator drives. The chromedp
// implementation lives in internal/browser.
type Viewer interface {
	State(ctx context.Context) (State, error)
	Advance(ctx context.Context, s Strategy) error
}

// Summary reports what a walk achieved.
type Summary struct {
	TotalPages   int
	Visited      int
	Failures     []models.DeckError
	AdvanceCalls int
}

// Navigator walks a deck slide by slide.
type Navigator struct {
	viewer              Viewer
	logger              *log.Logger
	strategies          []Strategy
	attemptsPerStrategy int
	maxPages            int
	maxConsecutiveSkips int
	pause               func(ctx context.Context)

	advanceCalls int
}

// Option tweaks a Navigator.
type Option func(*Navigator)

// WithStrategies sets the ordered fallback list.
func WithStrategies(s []Strategy) Option {
	return func(n *Navigator) {
		if len(s) > 0 {
			n.strategies = s
		}
	}
}

// WithAttemptsPerStrategy sets each strategy's internal retry budget.
func WithAttemptsPerStrategy(attempts int) Option {
	return func(n *Navigator) {
		if attempts > 0 {
			n.attemptsPerStrategy = attempts
		}
	}
}

// WithMaxPages caps a walk regardless of what the indicator claims.
func WithMaxPages(max int) Option {
	return func(n *Navigator) {
		if max > 0 {
			n.maxPages = max
		}
	}
}

// WithMaxConsecutiveSkips bounds how many pages in a row may fail to
// advance before the walk gives up.
func WithMaxConsecutiveSkips(max int) Option {
	return func(n *Navigator) {
		if max > 0 {
			n.maxConsecutiveSkips = max
		}
	}
}

// WithPacing installs human-pacing delays between navigation actions.
// Zero bounds disable pacing.
func WithPacing(minMS, maxMS int) Option {
	return func(n *Navigator) {
		if maxMS < minMS {
			maxMS = minMS
		}
		if maxMS <= 0 {
			n.pause = func(context.Context) {}
			return
		}
		n.pause = func(ctx context.Context) {
			d := time.Duration(minMS) * time.Millisecond
			if span := maxMS - minMS; span > 0 {
				d += time.Duration(rand.Intn(span+1)) * time.Millisecond
			}
			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
		}
	}
}

// New constructs a Navigator.
func New(viewer Viewer, logger *log.Logger, opts ...Option) *Navigator {
	if logger == nil {
		logger = log.New(log.Writer(), "[NAV] ", log.LstdFlags)
	}
	n := &Navigator{
		viewer:              viewer,
		logger:              logger,
		strategies:          []Strategy{StrategyNextControl, StrategyKeyboard, StrategyPositionalClick},
		attemptsPerStrategy: 2,
		maxPages:            200,
		maxConsecutiveSkips: 3,
		pause:               func(context.Context) {},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// AdvanceCalls returns how many advancement actions this navigator issued.
func (n *Navigator) AdvanceCalls() int { return n.advanceCalls }

var indicatorRE = regexp.MustCompile(`(?i)(\d+)\s*(?:of|/)\s*(\d+)`)

// ParseTotal extracts M from an "N of M" / "N / M" indicator, zero when the
// indicator is absent or unparsable.
func ParseTotal(indicator string) int {
	m := indicatorRE.FindStringSubmatch(indicator)
	if m == nil {
		return 0
	}
	total, err := strconv.Atoi(m[2])
	if err != nil || total < 1 {
		return 0
	}
	return total
}

// Run walks the deck, calling visit for every reachable page in strictly
// increasing index order. Pages that could not be reached are recorded in
// the summary as NavigationFailures and the walk continues. A non-nil
// error means the walk never reached page 1 or the context expired.
func (n *Navigator) Run(ctx context.Context, visit func(ctx context.Context, index int)) (Summary, error) {
	st, err := n.viewer.State(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Summary{}, ctx.Err()
		}
		return Summary{}, models.Fail(models.KindNavigationFailure, 0, err)
	}

	total := ParseTotal(st.Indicator)
	probing := total == 0
	if probing {
		n.logger.Printf("page indicator absent or unparsable, probing until content repeats")
	} else {
		n.logger.Printf("deck reports %d pages", total)
	}

	sum := Summary{TotalPages: total}
	visit(ctx, 1)
	sum.Visited = 1

	index := 1
	skips := 0
	for {
		if err := ctx.Err(); err != nil {
			sum.AdvanceCalls = n.advanceCalls
			return sum, err
		}
		if !probing && index >= total {
			break
		}
		if index >= n.maxPages {
			n.logger.Printf("page cap %d reached, stopping walk", n.maxPages)
			break
		}

		next, err := n.advance(ctx, st)
		if err != nil {
			if ctx.Err() != nil {
				sum.AdvanceCalls = n.advanceCalls
				return sum, ctx.Err()
			}
			if probing && errors.Is(err, errNoChange) {
				// Content repeated under every strategy: terminal page.
				break
			}
			index++
			skips++
			n.logger.Printf("all strategies failed for page %d, skipping", index)
			sum.Failures = append(sum.Failures, models.ToDeckError(models.Fail(models.KindNavigationFailure, index, err)))
			if skips >= n.maxConsecutiveSkips {
				n.logger.Printf("%d consecutive navigation failures, giving up at page %d", skips, index)
				break
			}
			continue
		}

		skips = 0
		index++
		st = next
		visit(ctx, index)
		sum.Visited++
	}

	if probing {
		sum.TotalPages = index
	}
	sum.AdvanceCalls = n.advanceCalls
	return sum, nil
}

// errNoChange marks an advancement that ran but left the slide content
// identical. Distinct from interaction errors: during probing it is the
// only signal that the deck ended.
var errNoChange = errors.New("content did not change")

// advance tries each strategy in priority order until the slide content
// visibly changes. A strategy that exhausts its attempt budget is skipped
// in favor of the next.
func (n *Navigator) advance(ctx context.Context, prev State) (State, error) {
	var lastErr error
	for _, strat := range n.strategies {
		for attempt := 0; attempt < n.attemptsPerStrategy; attempt++ {
			if err := ctx.Err(); err != nil {
				return State{}, err
			}
			n.advanceCalls++
			if err := n.viewer.Advance(ctx, strat); err != nil {
				lastErr = err
				continue
			}
			n.pause(ctx)
			cur, err := n.viewer.State(ctx)
			if err != nil {
				lastErr = err
				continue
			}
			if cur.ContentHash != prev.ContentHash {
				return cur, nil
			}
			lastErr = fmt.Errorf("strategy %s: %w", strat, errNoChange)
		}
	}
	return State{}, lastErr
}
