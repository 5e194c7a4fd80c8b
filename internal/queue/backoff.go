// Package queue implements the chat delivery queue: a durable store of
// undelivered conversation entries and the background engine that retries
// them with capped exponential backoff until they reach the server.
package queue

import "time"

// Policy holds the retry tuning for the flush engine.
type Policy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	JitterMax   time.Duration
	MaxAttempts int
}

// DefaultPolicy mirrors the delivery contract: 2s base, 60s ceiling, up to
// 1s of jitter, six attempts before an item is dropped.
func DefaultPolicy() Policy {
	return Policy{
		BaseDelay:   2 * time.Second,
		MaxDelay:    60 * time.Second,
		JitterMax:   time.Second,
		MaxAttempts: 6,
	}
}

// NextAttempt computes when an item that has failed `attempts` times becomes
// eligible again: now + min(MaxDelay, BaseDelay·2^attempts) + jitter, where
// jitter is uniform in [0, JitterMax). randInt supplies the random draw
// (uniform integer in [0, n)) so the function stays pure and testable.
func (p Policy) NextAttempt(now time.Time, attempts int, randInt func(n int64) int64) time.Time {
	delay := p.BaseDelay
	for i := 0; i < attempts && delay < p.MaxDelay; i++ {
		delay *= 2
	}
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}

	var jitter time.Duration
	if p.JitterMax > 0 && randInt != nil {
		jitter = time.Duration(randInt(int64(p.JitterMax)))
	}

	return now.Add(delay + jitter)
}
