package client

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// breaker stops all requests for a while once the catalog starts throttling.
type breaker struct {
	mutex sync.RWMutex
	until time.Time
	delay time.Duration
}

func newBreaker(delay time.Duration) *breaker {
	return &breaker{delay: delay}
}

// remaining returns how long requests stay blocked, or 0 when they are allowed.
func (b *breaker) remaining() time.Duration {
	b.mutex.RLock()
	until := b.until
	b.mutex.RUnlock()

	if until.IsZero() {
		return 0
	}
	if left := time.Until(until); left > 0 {
		return left
	}

	b.mutex.Lock()
	// Double-check after acquiring write lock
	if !b.until.IsZero() && time.Now().After(b.until) {
		b.until = time.Time{}
		log.Infof("✅ Circuit breaker re-enabled, requests are allowed again")
	}
	b.mutex.Unlock()
	return 0
}

func (b *breaker) trip() {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.until = time.Now().Add(b.delay)
	log.Warnf("🚫 Circuit breaker activated! Requests disabled until %s (%v)",
		b.until.Format("15:04:05"), b.delay)
}
