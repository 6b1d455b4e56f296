package circuit

import (
	"sync"
	"time"

	"github.com/frankgibbs/algolearn-orb/internal/logger"
)

type state int

const (
	closed state = iota
	open
	halfOpen
)

func (s state) String() string {
	switch s {
	case closed:
		return "CLOSED"
	case open:
		return "OPEN"
	case halfOpen:
		return "HALF-OPEN"
	}
	return "UNKNOWN"
}

// Breaker trips after a run of consecutive failures and stays open for the
// cooldown. Once the cooldown passes, one trial call is let through: if it
// succeeds the breaker closes, if it fails the cooldown restarts.
type Breaker struct {
	name      string
	threshold int
	cooldown  time.Duration

	mu       sync.Mutex
	st       state
	failures int
	openedAt time.Time
}

func NewBreaker(name string, threshold int, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &Breaker{name: name, threshold: threshold, cooldown: cooldown}
}

// Allow reports whether a call may proceed right now.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.st != open {
		return true
	}
	if time.Since(b.openedAt) <= b.cooldown {
		return false
	}
	b.setState(halfOpen)
	return true
}

func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.st == halfOpen {
		b.setState(closed)
	}
}

func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	switch b.st {
	case closed:
		if b.failures >= b.threshold {
			b.openedAt = time.Now()
			b.setState(open)
		}
	case halfOpen:
		// The trial call failed; back to waiting out the cooldown.
		b.openedAt = time.Now()
		b.setState(open)
	}
}

func (b *Breaker) setState(to state) {
	logger.Warnf("Breaker %s: %s -> %s after %d consecutive failures (cooldown %s)",
		b.name, b.st, to, b.failures, b.cooldown)
	b.st = to
}
