package net

import "time"

// Verdict is the rate limiter's decision for one packet.
type Verdict uint8

const (
	Allow Verdict = iota
	Drop
	Kick
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allow"
	case Drop:
		return "drop"
	default:
		return "kick"
	}
}

// RateLimiter is a fixed-window packet counter. Each window that goes over
// the cap raises the abuse count once; a window that stays under the cap
// clears it. Reaching the abuse threshold asks for a disconnect.
type RateLimiter struct {
	window    time.Duration
	limit     int
	threshold int

	start   time.Time
	count   int
	over    bool // current window exceeded the cap
	abuse   int
	flagged bool
	dropped uint64
}

func NewRateLimiter(window time.Duration, limit, threshold int) *RateLimiter {
	if threshold <= 0 {
		threshold = 1
	}
	return &RateLimiter{window: window, limit: limit, threshold: threshold}
}

// Check counts one packet arriving at now.
func (l *RateLimiter) Check(now time.Time) Verdict {
	if l.flagged {
		return Kick
	}
	l.roll(now)
	l.count++
	if l.count <= l.limit {
		return Allow
	}
	l.dropped++
	if !l.over {
		l.over = true
		l.abuse++
		if l.abuse >= l.threshold {
			l.flagged = true
			return Kick
		}
	}
	return Drop
}

func (l *RateLimiter) roll(now time.Time) {
	if l.start.IsZero() {
		l.start = now
		return
	}
	elapsed := now.Sub(l.start)
	if elapsed < l.window {
		return
	}
	windows := elapsed / l.window
	// A compliant window just ended, or at least one silent window passed.
	if !l.over || windows >= 2 {
		l.abuse = 0
	}
	l.start = l.start.Add(windows * l.window)
	l.count = 0
	l.over = false
}

// Abuse returns the number of consecutive over-cap windows.
func (l *RateLimiter) Abuse() int { return l.abuse }

// Flagged reports whether the peer crossed the abuse threshold.
func (l *RateLimiter) Flagged() bool { return l.flagged }

// Dropped returns the total packets dropped for exceeding the cap.
func (l *RateLimiter) Dropped() uint64 { return l.dropped }
