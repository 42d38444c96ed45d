package models

import "time"

// StealthProfile bundles browser characteristics that reduce the chance of
// the viewer flagging the session as an automated client.
type StealthProfile struct {
	UserAgent          string `json:"user_agent" mapstructure:"user_agent"`
	PlatformSpoof      string `json:"platform_spoof" mapstructure:"platform_spoof"`
	SuppressAutomation bool   `json:"suppress_automation" mapstructure:"suppress_automation"`
	JitterMinMS        int    `json:"jitter_min_ms" mapstructure:"jitter_min_ms"`
	JitterMaxMS        int    `json:"jitter_max_ms" mapstructure:"jitter_max_ms"`
	WindowWidth        int    `json:"window_width" mapstructure:"window_width"`
	WindowHeight       int    `json:"window_height" mapstructure:"window_height"`
	Headless           bool   `json:"headless" mapstructure:"headless"`
}

// IngestRequest describes one deck-ingestion attempt as submitted by the
// intake side (UI or cron). Request-level retry decisions stay with the
// caller; the engine only reports enough to make them.
type IngestRequest struct {
	Address       string          `json:"address"`
	IdentityEmail string          `json:"identity_email,omitempty"`
	Passphrase    string          `json:"passphrase,omitempty"`
	Timeout       time.Duration   `json:"timeout,omitempty"`
	Stealth       *StealthProfile `json:"stealth_profile,omitempty"`
}

// PageRecord is the immutable per-slide outcome. Index starts at 1.
type PageRecord struct {
	Index             int     `json:"index"`
	ImageRef          string  `json:"image_ref,omitempty"`
	RawText           string  `json:"raw_text"`
	Confidence        float64 `json:"confidence"`
	LowConfidence     bool    `json:"low_confidence,omitempty"`
	CaptureDurationMS int64   `json:"capture_duration_ms"`
}

// DeckError is one entry in the structured error list. PageIndex is zero
// for session-level conditions.
type DeckError struct {
	PageIndex int       `json:"page_index,omitempty"`
	Kind      ErrorKind `json:"kind"`
	Message   string    `json:"message"`
}

// TimingMetrics accounts for where a session spent its time.
type TimingMetrics struct {
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	AuthMS       int64     `json:"auth_ms"`
	NavigationMS int64     `json:"navigation_ms"`
	RecoveryMS   int64     `json:"recovery_ms"`
	TotalMS      int64     `json:"total_ms"`
}

// DeckResult is the engine response for one fingerprint. Pages are ordered
// by strictly increasing index; failed pages appear only in Errors.
type DeckResult struct {
	Fingerprint    string        `json:"fingerprint"`
	TotalPages     int           `json:"total_pages"`
	ProcessedPages int           `json:"processed_pages"`
	Pages          []PageRecord  `json:"pages"`
	Success        bool          `json:"success"`
	Errors         []DeckError   `json:"errors,omitempty"`
	AssembledText  string        `json:"assembled_text"`
	Timing         TimingMetrics `json:"timing_metrics"`
}

// CacheEntry wraps a DeckResult for the fingerprint cache. Entries are
// written once and never mutated; expiry replaces them wholesale.
type CacheEntry struct {
	Fingerprint string        `json:"fingerprint"`
	Result      DeckResult    `json:"result"`
	CreatedAt   time.Time     `json:"created_at"`
	TTL         time.Duration `json:"ttl"`
}

// Expired reports whether the entry has outlived its TTL at the given time.
func (e CacheEntry) Expired(now time.Time) bool {
	if e.TTL <= 0 {
		return false
	}
	return now.After(e.CreatedAt.Add(e.TTL))
}
