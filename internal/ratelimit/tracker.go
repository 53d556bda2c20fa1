// Package ratelimit tracks which marketplace endpoint classes are currently
// throttled so callers can short-circuit instead of burning requests.
package ratelimit

import (
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"
)

const maxKeySegments = 4

type entry struct {
	retryAt time.Time
	hits    int
}

// Tracker is a process-wide registry of throttled endpoint classes.
// Entries expire lazily: an endpoint whose retry timestamp has passed is
// evicted on the next lookup.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
	logger  *slog.Logger
}

// NewTracker creates an empty tracker.
func NewTracker(logger *slog.Logger) *Tracker {
	return &Tracker{
		entries: make(map[string]entry),
		now:     time.Now,
		logger:  logger,
	}
}

// EndpointKey normalizes a URL into an endpoint-class key. Pure-numeric path
// segments (listing ids, shop ids) are stripped and the key is capped at the
// first four remaining segments, so all calls of one endpoint class share a
// single throttle entry.
func EndpointKey(rawURL string) string {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		path = u.Path
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	key := make([]string, 0, maxKeySegments)
	for _, p := range parts {
		if p == "" || isNumeric(p) {
			continue
		}
		key = append(key, p)
		if len(key) == maxKeySegments {
			break
		}
	}
	return strings.Join(key, "/")
}

// IsRateLimited reports whether calls to the endpoint class of rawURL should
// be withheld.
func (t *Tracker) IsRateLimited(rawURL string) bool {
	key := EndpointKey(rawURL)

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		return false
	}
	if !t.now().Before(e.retryAt) {
		delete(t.entries, key)
		return false
	}
	return true
}

// SetRateLimited records a 429 for the endpoint class of rawURL, blocking
// calls for retryAfter seconds.
func (t *Tracker) SetRateLimited(rawURL string, retryAfterSeconds int) {
	key := EndpointKey(rawURL)
	retryAt := t.now().Add(time.Duration(retryAfterSeconds) * time.Second)

	t.mu.Lock()
	e := t.entries[key]
	e.retryAt = retryAt
	e.hits++
	hits := e.hits
	t.entries[key] = e
	t.mu.Unlock()

	if t.logger != nil {
		t.logger.Warn("Endpoint rate limited",
			slog.String("endpoint", key),
			slog.Int("retry_after_seconds", retryAfterSeconds),
			slog.Int("hits", hits),
		)
	}
}

// RetryAfterSeconds returns the remaining seconds until calls to the endpoint
// class are permitted again, or 0 when not limited.
func (t *Tracker) RetryAfterSeconds(rawURL string) int {
	key := EndpointKey(rawURL)

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		return 0
	}
	remaining := e.retryAt.Sub(t.now())
	if remaining <= 0 {
		delete(t.entries, key)
		return 0
	}
	return int(remaining.Seconds() + 0.5)
}

// Hits returns how many 429s have been recorded for the endpoint class while
// its current entry is alive. Used for observability.
func (t *Tracker) Hits(rawURL string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.entries[EndpointKey(rawURL)].hits
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
