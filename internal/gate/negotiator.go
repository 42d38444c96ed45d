// Package gate negotiates the identity wall some deck viewers place in
// front of their content.
package gate

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/mohammad-safakhou/deckray/models"
)

// Status tracks the negotiation state machine.
type Status string

const (
	StatusLoading            Status = "loading"
	StatusGateDetected       Status = "gate_detected"
	StatusSubmittingIdentity Status = "submitting_identity"
	StatusAwaitingDismissal  Status = "awaiting_dismissal"
	StatusReady              Status = "ready"
	StatusRejected           Status = "rejected"
)

// Probe is the result of inspecting the loaded page for a gating form.
type Probe struct {
	GatePresent     bool
	EmailField      bool
	PassphraseField bool
}

// Form is the capability surface the negotiator needs from the page. The
// chromedp implementation lives in internal/browser; tests use fakes.
type Form interface {
	// Detect inspects the current page for a gating form.
	Detect(ctx context.Context) (Probe, error)
	// SubmitIdentity fills and submits the form. passphrase may be empty
	// when the form has no passphrase field.
	SubmitIdentity(ctx context.Context, email, passphrase string) error
	// Dismissed reports whether the gate overlay is gone and the viewer
	// content is visible.
	Dismissed(ctx context.Context) (bool, error)
	// Rejection returns an explicit rejection message (invalid credentials,
	// domain restriction) when the viewer shows one.
	Rejection(ctx context.Context) (string, bool, error)
}

// Negotiator drives a Form through the gate state machine.
type Negotiator struct {
	form           Form
	logger         *log.Logger
	detectTimeout  time.Duration
	dismissTimeout time.Duration
	pollInterval   time.Duration

	status Status
}

// Option tweaks a Negotiator.
type Option func(*Negotiator)

// WithTimeouts overrides the detect/dismiss bounds.
func WithTimeouts(detect, dismiss, poll time.Duration) Option {
	return func(n *Negotiator) {
		if detect > 0 {
			n.detectTimeout = detect
		}
		if dismiss > 0 {
			n.dismissTimeout = dismiss
		}
		if poll > 0 {
			n.pollInterval = poll
		}
	}
}

// New constructs a Negotiator with default bounds.
func New(form Form, logger *log.Logger, opts ...Option) *Negotiator {
	if logger == nil {
		logger = log.New(log.Writer(), "[GATE] ", log.LstdFlags)
	}
	n := &Negotiator{
		form:           form,
		logger:         logger,
		detectTimeout:  5 * time.Second,
		dismissTimeout: 15 * time.Second,
		pollInterval:   250 * time.Millisecond,
		status:         StatusLoading,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Status returns the last observed state.
func (n *Negotiator) Status() Status { return n.status }

// Negotiate detects and clears the gate. A nil return means the deck
// content is visible. Typed failures:
//   - AuthenticationRequired: identity or passphrase needed but not supplied
//   - AccessDenied: explicit rejection, never retried
//   - AuthenticationFailed: gate did not dismiss within the bound
func (n *Negotiator) Negotiate(ctx context.Context, email, passphrase string) error {
	n.status = StatusLoading
	probe, err := n.detect(ctx)
	if err != nil {
		return err
	}
	if !probe.GatePresent {
		n.status = StatusReady
		n.logger.Printf("no gate detected, deck is open")
		return nil
	}

	n.status = StatusGateDetected
	n.logger.Printf("gate detected (email=%t passphrase=%t)", probe.EmailField, probe.PassphraseField)

	if probe.EmailField && strings.TrimSpace(email) == "" {
		return models.Failf(models.KindAuthenticationRequired, 0, "gate requires an identity email and none was supplied")
	}
	if probe.PassphraseField && passphrase == "" {
		return models.Failf(models.KindAuthenticationRequired, 0, "gate requires a passphrase and none was supplied")
	}

	n.status = StatusSubmittingIdentity
	if err := n.form.SubmitIdentity(ctx, email, passphrase); err != nil {
		return models.Fail(models.KindAuthenticationFailed, 0, err)
	}

	n.status = StatusAwaitingDismissal
	deadline := time.Now().Add(n.dismissTimeout)
	for {
		if msg, rejected, err := n.form.Rejection(ctx); err == nil && rejected {
			n.status = StatusRejected
			return models.Failf(models.KindAccessDenied, 0, "gate rejected identity: %s", msg)
		}
		dismissed, err := n.form.Dismissed(ctx)
		if err == nil && dismissed {
			n.status = StatusReady
			n.logger.Printf("gate dismissed")
			return nil
		}
		if time.Now().After(deadline) {
			return models.Failf(models.KindAuthenticationFailed, 0, "gate did not dismiss within %s", n.dismissTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(n.pollInterval):
		}
	}
}

// detect polls for the gating form until it shows up, the viewer content
// appears instead, or the detect bound expires. A bound expiry with no form
// and no content means the deck never rendered.
func (n *Negotiator) detect(ctx context.Context) (Probe, error) {
	deadline := time.Now().Add(n.detectTimeout)
	for {
		probe, err := n.form.Detect(ctx)
		if err == nil {
			if probe.GatePresent {
				return probe, nil
			}
			if dismissed, derr := n.form.Dismissed(ctx); derr == nil && dismissed {
				return Probe{}, nil
			}
		}
		if time.Now().After(deadline) {
			if err != nil {
				return Probe{}, models.Fail(models.KindNavigationFailure, 0, err)
			}
			// No gate and no content: treat as ungated and let the
			// navigator decide whether page 1 is reachable.
			return Probe{}, nil
		}
		select {
		case <-ctx.Done():
			return Probe{}, ctx.Err()
		case <-time.After(n.pollInterval):
		}
	}
}
